// Package capture spawns a test-runner process and streams its output into
// bounded buffers while scanning stdout for framed structured payloads. It
// knows nothing about result formats beyond the framing protocol; parsing and
// reconciliation happen upstream.
package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/testpipe/testpipe/frame"
)

const readChunkSize = 32 * 1024

// Request describes one process to run and capture.
type Request struct {
	Command        string
	Args           []string
	Dir            string
	Env            map[string]string // overrides applied on top of the inherited environment
	SessionID      string            // filters framed payloads; empty matches all
	MaxBufferBytes int64             // per-stream cap; 0 means DefaultMaxBufferBytes
}

// Capture is everything observed from one process run. A structured payload
// decoded from the stream short-circuits downstream parsing; otherwise the
// caller parses the raw text.
type Capture struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	Structured json.RawMessage // payload of the last "results" frame, nil if none
	Overflowed bool
	Cancelled  bool
}

// CombinedOutput returns stdout and stderr joined for raw-text parsing.
func (c *Capture) CombinedOutput() string {
	if c.Stderr == "" {
		return c.Stdout
	}
	return c.Stdout + "\n" + c.Stderr
}

// SpawnError wraps a failure to start the process (binary not found,
// permission denied). It is the only fully fatal condition at this layer.
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn test process: %v", e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Runner spawns and captures processes. Independent runs share no mutable
// state; each Run gets its own buffers and decoder.
type Runner struct {
	log    log.Logger
	tracer trace.Tracer
}

// NewRunner creates a process runner.
func NewRunner(logger log.Logger) *Runner {
	if logger == nil {
		logger = log.Root()
	}
	return &Runner{
		log:    logger,
		tracer: otel.Tracer("testpipe/capture"),
	}
}

// Run executes the request's command to completion, or until cancellation or
// a buffer overflow kills it. Only spawn failures are returned as errors;
// every other condition is described by the Capture.
func (r *Runner) Run(ctx context.Context, req Request) (*Capture, error) {
	if req.Command == "" {
		return nil, &SpawnError{Err: fmt.Errorf("no command given")}
	}

	ctx, span := r.tracer.Start(ctx, "capture run")
	defer span.End()

	cmd := exec.CommandContext(ctx, req.Command, req.Args...)
	cmd.Dir = req.Dir
	cmd.Env = mergedEnv(req.Env)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Err: err}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Err: err}
	}

	r.log.Debug("Spawning test process", "command", cmd.String(), "dir", req.Dir, "session", req.SessionID)
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Err: err}
	}

	var killOnce sync.Once
	kill := func() {
		killOnce.Do(func() {
			r.log.Warn("Killing test process", "pid", cmd.Process.Pid)
			_ = cmd.Process.Kill()
		})
	}

	stdoutBuf := newStreamBuffer(req.MaxBufferBytes)
	stderrBuf := newStreamBuffer(req.MaxBufferBytes)
	decoder := frame.NewDecoder(req.SessionID)

	var structured json.RawMessage
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		drain(stdoutPipe, stdoutBuf, kill, func(chunk []byte) {
			for _, msg := range decoder.Feed(chunk) {
				if msg.Type == frame.MessageTypeResults {
					r.log.Debug("Decoded structured results frame", "bytes", len(msg.Payload))
					structured = msg.Payload
				}
			}
		})
	}()
	go func() {
		defer wg.Done()
		drain(stderrPipe, stderrBuf, kill, nil)
	}()

	wg.Wait()
	waitErr := cmd.Wait()

	capture := &Capture{
		Stdout:     stdoutBuf.String(),
		Stderr:     stderrBuf.String(),
		Structured: structured,
		Overflowed: stdoutBuf.Overflowed() || stderrBuf.Overflowed(),
		Cancelled:  ctx.Err() != nil,
	}
	capture.ExitCode = exitCode(cmd, waitErr)

	r.log.Debug("Test process finished",
		"exitCode", capture.ExitCode,
		"stdoutBytes", stdoutBuf.TotalBytes(),
		"stderrBytes", stderrBuf.TotalBytes(),
		"structured", capture.Structured != nil,
		"overflowed", capture.Overflowed,
		"cancelled", capture.Cancelled)

	return capture, nil
}

// drain reads pipe in chunks into buf until EOF. A write that trips the
// buffer cap kills the process and stops reading; the overflow is recorded on
// the buffer itself.
func drain(pipe interface{ Read([]byte) (int, error) }, buf *streamBuffer, kill func(), onChunk func([]byte)) {
	chunk := make([]byte, readChunkSize)
	for {
		n, err := pipe.Read(chunk)
		if n > 0 {
			if _, werr := buf.Write(chunk[:n]); werr != nil {
				kill()
				return
			}
			if onChunk != nil {
				onChunk(chunk[:n])
			}
		}
		if err != nil {
			return
		}
	}
}

// mergedEnv layers overrides on top of the inherited environment in a
// deterministic order.
func mergedEnv(overrides map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}

func exitCode(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		return -1
	}
	return 0
}
