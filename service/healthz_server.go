package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/rs/cors"
)

// RunStatus is what the status endpoint reports about the most recent run.
type RunStatus struct {
	RunID   string `json:"run_id"`
	Total   int    `json:"total"`
	Passed  int    `json:"passed"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
	Errored int    `json:"errored"`
}

type HealthzServer struct {
	ctx    context.Context
	server *http.Server

	mu     sync.RWMutex
	status *RunStatus
}

func (h *HealthzServer) Start(ctx context.Context, addr string) error {
	hdlr := http.NewServeMux()
	hdlr.HandleFunc("/healthz", h.handleHealthz)
	hdlr.HandleFunc("/status", h.handleStatus)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	server := &http.Server{
		Handler: c.Handler(hdlr),
		Addr:    addr,
	}
	h.server = server
	h.ctx = ctx
	return h.server.ListenAndServe()
}

func (h *HealthzServer) Shutdown() error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(h.ctx)
}

// SetRunStatus records the latest run's tallies for the status endpoint.
func (h *HealthzServer) SetRunStatus(status RunStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = &status
}

func (h *HealthzServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK")) //nolint:errcheck
}

func (h *HealthzServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	status := h.status
	h.mu.RUnlock()

	if status == nil {
		http.Error(w, "no runs recorded", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status) //nolint:errcheck
}
