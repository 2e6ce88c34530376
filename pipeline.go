// Package testpipe ties process capture to result reconciliation: it runs one
// external test command, normalizes whatever the process emitted, and resolves
// every caller-supplied identity to exactly one outcome.
package testpipe

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/testpipe/testpipe/capture"
	"github.com/testpipe/testpipe/logging"
	"github.com/testpipe/testpipe/metrics"
	"github.com/testpipe/testpipe/parser"
	"github.com/testpipe/testpipe/reconcile"
	"github.com/testpipe/testpipe/types"
)

// Request describes one test run.
type Request struct {
	Command string
	Args    []string
	Dir     string
	Env     map[string]string

	// Identities to resolve; trees are flattened to their leaves.
	Identities []*types.Identity

	// SessionID tags framed payloads for this run. Generated when empty;
	// must be unique across concurrent runs sharing a decoder.
	SessionID string

	MaxBufferBytes int64

	// FastPath skips parsing and reconciliation entirely and resolves every
	// identity from the exit code alone.
	FastPath bool

	// Artifacts, when set, receives the run's raw captured output.
	Artifacts *logging.FileLogger
}

// Pipeline is the execution facade. One Pipeline serves any number of runs;
// each run gets its own process, buffers and decoder state.
type Pipeline struct {
	log     log.Logger
	runner  *capture.Runner
	engine  *reconcile.Engine
	scripts *ScriptCache
	tracer  trace.Tracer
}

// New creates a Pipeline from cfg.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Log == nil {
		cfg.Log = log.Root()
		cfg.Log.Error("No logger provided, using default")
	}
	return &Pipeline{
		log:     cfg.Log,
		runner:  capture.NewRunner(cfg.Log),
		engine:  reconcile.New(cfg.Log),
		scripts: cfg.Scripts,
		tracer:  otel.Tracer("testpipe/pipeline"),
	}, nil
}

// RunTests spawns the request's command, captures its output and reports one
// outcome per identity through sink, in the caller-supplied order. The
// returned slice mirrors the reported outcomes.
//
// Only two conditions are fatal and surface as errors: a process that could
// not be spawned (RuntimeError) and an empty identity list. Even then every
// known identity has already received a terminal outcome; a run is never
// silently incomplete.
func (p *Pipeline) RunTests(ctx context.Context, req Request, sink types.Sink) ([]types.Outcome, error) {
	identities := types.FlattenIdentities(req.Identities)
	if len(identities) == 0 {
		return nil, NewRuntimeError(errors.New("no test identities supplied"))
	}
	if sink == nil {
		sink = &types.CollectorSink{}
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	ctx, span := p.tracer.Start(ctx, "test run")
	defer span.End()

	env := p.runEnv(req)
	p.log.Info("Running tests", "command", req.Command, "identities", len(identities), "session", req.SessionID)

	cap, err := p.runner.Run(ctx, capture.Request{
		Command:        req.Command,
		Args:           req.Args,
		Dir:            req.Dir,
		Env:            env,
		SessionID:      req.SessionID,
		MaxBufferBytes: req.MaxBufferBytes,
	})
	if err != nil {
		metrics.RecordRun(metrics.RunSpawnError)
		metrics.RecordSpawnFailure()
		p.log.Error("Test process failed to spawn", "error", err)
		outcomes := p.resolveAll(identities, sink, types.Outcome{
			Status:  types.OutcomeFailed,
			Message: err.Error(),
		})
		return outcomes, NewRuntimeError(err)
	}

	if req.Artifacts != nil {
		if err := req.Artifacts.LogRawOutput(cap.CombinedOutput()); err != nil {
			p.log.Error("Failed to persist raw output", "error", err)
		}
	}

	switch {
	case cap.Cancelled:
		metrics.RecordRun(metrics.RunCancelled)
		p.log.Info("Run cancelled, resolving pending identities as skipped")
		return p.resolveAll(identities, sink, types.Outcome{Status: types.OutcomeSkipped}), nil

	case cap.Overflowed:
		metrics.RecordRun(metrics.RunOverflowed)
		metrics.RecordBufferOverflow()
		p.log.Error("Output buffer limit exceeded, run aborted", "limit", bufferLimit(req))
		outcomes := p.resolveAll(identities, sink, types.Outcome{
			Status:  types.OutcomeFailed,
			Message: fmt.Sprintf("test process output exceeded the %d byte buffer limit and was killed", bufferLimit(req)),
		})
		return outcomes, &TestFailureError{Failed: len(outcomes)}
	}

	metrics.RecordRun(metrics.RunCompleted)

	var outcomes []types.Outcome
	if req.FastPath {
		outcomes = p.fastPathOutcomes(cap, identities, sink)
	} else {
		outcomes = p.standardPathOutcomes(ctx, cap, identities, sink)
	}

	for _, outcome := range outcomes {
		metrics.RecordOutcome(outcome.Status)
	}
	if failed, errored := countFailures(outcomes); failed+errored > 0 {
		return outcomes, &TestFailureError{Failed: failed, Errored: errored}
	}
	return outcomes, nil
}

// runEnv layers the pipeline's own variables over the request's overrides.
func (p *Pipeline) runEnv(req Request) map[string]string {
	env := make(map[string]string, len(req.Env)+2)
	for k, v := range req.Env {
		env[k] = v
	}
	env[EnvSessionID] = req.SessionID
	if p.scripts != nil {
		if path, err := p.scripts.ReporterPath(); err == nil {
			env[EnvReporterPath] = path
		} else {
			p.log.Warn("Reporter script unavailable, runner will not emit frames", "error", err)
		}
	}
	return env
}

// fastPathOutcomes resolves every identity from the exit code alone.
func (p *Pipeline) fastPathOutcomes(cap *capture.Capture, identities []*types.Identity, sink types.Sink) []types.Outcome {
	if cap.ExitCode == 0 {
		return p.resolveAll(identities, sink, types.Outcome{Status: types.OutcomePassed})
	}
	return p.resolveAll(identities, sink, types.Outcome{
		Status:  types.OutcomeFailed,
		Message: fmt.Sprintf("test process exited with code %d", cap.ExitCode),
	})
}

// standardPathOutcomes runs the full parse + reconcile chain: a framed
// structured payload wins, then each format parser over the combined text,
// then the raw-text fallback.
func (p *Pipeline) standardPathOutcomes(ctx context.Context, cap *capture.Capture, identities []*types.Identity, sink types.Sink) []types.Outcome {
	_, span := p.tracer.Start(ctx, "reconcile")
	defer span.End()

	if cap.Structured != nil {
		if run, ok := parser.NormalizeJSONPayload(cap.Structured); ok {
			metrics.RecordParse("frame")
			return p.engine.Reconcile(run, identities, sink)
		}
		// A frame decoded but its payload fits neither dialect; degrade to
		// the raw-text chain rather than failing the run.
		p.log.Warn("Structured payload did not match any dialect, falling back to raw output")
	}

	combined := cap.CombinedOutput()
	if run, format, ok := parser.ParseRunOutput(combined); ok {
		metrics.RecordParse(string(format))
		p.log.Debug("Parsed run output", "format", format, "assertions", len(run.Assertions()))
		return p.engine.Reconcile(run, identities, sink)
	}

	metrics.RecordParse("fallback")
	p.log.Warn("No parser matched run output, using raw-text heuristics", "bytes", len(combined))
	return p.engine.FallbackFromRaw(combined, identities, sink)
}

// resolveAll reports the same terminal outcome for every identity.
func (p *Pipeline) resolveAll(identities []*types.Identity, sink types.Sink, template types.Outcome) []types.Outcome {
	outcomes := make([]types.Outcome, 0, len(identities))
	for _, identity := range identities {
		outcome := template
		outcome.Identity = identity
		sink.Report(outcome)
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func countFailures(outcomes []types.Outcome) (failed, errored int) {
	for _, o := range outcomes {
		switch o.Status {
		case types.OutcomeFailed:
			failed++
		case types.OutcomeErrored:
			errored++
		}
	}
	return failed, errored
}

func bufferLimit(req Request) int64 {
	if req.MaxBufferBytes > 0 {
		return req.MaxBufferBytes
	}
	return capture.DefaultMaxBufferBytes
}
