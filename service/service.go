// Package service exposes the operational HTTP surface: a health check,
// a status endpoint reporting the latest run, and Prometheus metrics.
package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/log"

	"github.com/testpipe/testpipe/metrics"
)

const (
	DefaultHealthzAddr = "0.0.0.0:8080"
	DefaultMetricsAddr = "0.0.0.0:7300"
)

// Config holds the listen addresses. Zero values get the defaults.
type Config struct {
	HealthzAddr string
	MetricsAddr string
}

type Service struct {
	cfg Config

	Healthz *HealthzServer
	Metrics *MetricsServer
}

func New() *Service {
	return NewWithConfig(Config{})
}

func NewWithConfig(cfg Config) *Service {
	if cfg.HealthzAddr == "" {
		cfg.HealthzAddr = DefaultHealthzAddr
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = DefaultMetricsAddr
	}
	return &Service{
		cfg:     cfg,
		Healthz: &HealthzServer{},
		Metrics: &MetricsServer{},
	}
}

// Start brings both servers up in the background. Listen failures are logged
// and counted but do not interrupt the run being served.
func (s *Service) Start(ctx context.Context) {
	go s.serve(ctx, "healthz", s.cfg.HealthzAddr, s.Healthz.Start)
	go s.serve(ctx, "metrics", s.cfg.MetricsAddr, s.Metrics.Start)
	log.Info("service started", "healthz", s.cfg.HealthzAddr, "metrics", s.cfg.MetricsAddr)
}

func (s *Service) serve(ctx context.Context, name, addr string, start func(context.Context, string) error) {
	log.Info("starting server", "server", name, "addr", addr)
	if err := start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "server", name, "err", err)
		metrics.RecordError(name + "_server")
	}
}

func (s *Service) Shutdown() {
	log.Info("service shutting down")
	if err := s.Healthz.Shutdown(); err != nil {
		log.Error("healthz shutdown failed", "err", err)
	}
	if err := s.Metrics.Shutdown(); err != nil {
		log.Error("metrics shutdown failed", "err", err)
	}
	log.Info("service stopped")
}
