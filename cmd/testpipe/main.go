package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	testpipe "github.com/testpipe/testpipe"
	"github.com/testpipe/testpipe/exitcodes"
	"github.com/testpipe/testpipe/flags"
	"github.com/testpipe/testpipe/logging"
	"github.com/testpipe/testpipe/registry"
	"github.com/testpipe/testpipe/service"
	"github.com/testpipe/testpipe/types"
)

var (
	Version   = "v0.3.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "testpipe"
	app.Usage = "Test runner output capture and reconciliation"
	app.Description = "testpipe spawns a test runner, captures its output and resolves every declared test to a terminal outcome"
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			cli.HandleExitCoder(cli.Exit(err.Error(), testpipe.ExitCodeForError(err)))
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer otelShutdown()

	if err := app.RunContext(ctx, os.Args); err != nil {
		os.Exit(testpipe.ExitCodeForError(err))
	}
	os.Exit(exitcodes.Success)
}

func run(ctx *cli.Context) error {
	if err := flags.CheckRequired(ctx); err != nil {
		return testpipe.NewRuntimeError(err)
	}

	logger, err := setupLogger(ctx.String(flags.LogLevel.Name))
	if err != nil {
		return testpipe.NewRuntimeError(err)
	}

	reg, err := registry.NewRegistry(registry.Config{
		Log:          logger,
		ManifestFile: ctx.String(flags.Manifest.Name),
	})
	if err != nil {
		return testpipe.NewRuntimeError(fmt.Errorf("loading manifest: %w", err))
	}

	pipeline, err := testpipe.New(testpipe.Config{
		Log:     logger,
		Scripts: &testpipe.ScriptCache{},
	})
	if err != nil {
		return testpipe.NewRuntimeError(fmt.Errorf("creating pipeline: %w", err))
	}

	var svc *service.Service
	if ctx.Bool(flags.Serve.Name) {
		svc = service.New()
		svc.Start(ctx.Context)
		defer svc.Shutdown()
	}

	fileLogger, err := logging.NewFileLogger(ctx.String(flags.LogDir.Name), ctx.String(flags.SessionID.Name))
	if err != nil {
		return testpipe.NewRuntimeError(fmt.Errorf("creating file logger: %w", err))
	}
	logger.Info("Run starting", "runID", fileLogger.GetRunID(), "dir", fileLogger.RunDir())

	req := testpipe.Request{
		Command:        ctx.String(flags.Command.Name),
		Args:           ctx.Args().Slice(),
		Dir:            ctx.String(flags.WorkDir.Name),
		Identities:     reg.GetIdentities(),
		SessionID:      ctx.String(flags.SessionID.Name),
		MaxBufferBytes: int64(ctx.Int(flags.MaxBufferBytes.Name)),
		FastPath:       ctx.Bool(flags.FastPath.Name),
		Artifacts:      fileLogger,
	}

	outcomes, runErr := pipeline.RunTests(ctx.Context, req, nil)

	if err := fileLogger.LogOutcomes(outcomes); err != nil {
		logger.Error("Failed to persist outcome summary", "error", err)
	}

	formatter := testpipe.NewTableResultFormatter(os.Stdout)
	if err := formatter.FormatOutcomes(outcomes); err != nil {
		logger.Error("Failed to render results", "error", err)
	}

	if svc != nil {
		svc.Healthz.SetRunStatus(runStatus(fileLogger.GetRunID(), outcomes))
	}

	return runErr
}

func setupLogger(level string) (log.Logger, error) {
	lvl, err := log.LvlFromString(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, lvl, true)
	logger := log.NewLogger(handler)
	log.SetDefault(logger)
	return logger, nil
}

func runStatus(runID string, outcomes []types.Outcome) service.RunStatus {
	status := service.RunStatus{RunID: runID, Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case types.OutcomePassed:
			status.Passed++
		case types.OutcomeFailed:
			status.Failed++
		case types.OutcomeSkipped:
			status.Skipped++
		case types.OutcomeErrored:
			status.Errored++
		}
	}
	return status
}
