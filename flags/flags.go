package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "TESTPIPE"

func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	Command = &cli.StringFlag{
		Name:     "command",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVars("COMMAND"),
		Usage:    "Test runner executable to spawn (eg. 'npx')",
	}
	Manifest = &cli.StringFlag{
		Name:     "manifest",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVars("MANIFEST"),
		Usage:    "Path to the test manifest file (eg. 'tests.yaml')",
	}
	WorkDir = &cli.StringFlag{
		Name:    "workdir",
		Value:   "",
		EnvVars: prefixEnvVars("WORKDIR"),
		Usage:   "Working directory for the spawned runner",
	}
	SessionID = &cli.StringFlag{
		Name:    "session-id",
		Value:   "",
		EnvVars: prefixEnvVars("SESSION_ID"),
		Usage:   "Session identifier for framed output. Generated when omitted.",
	}
	MaxBufferBytes = &cli.IntFlag{
		Name:    "max-buffer-bytes",
		Value:   0,
		EnvVars: prefixEnvVars("MAX_BUFFER_BYTES"),
		Usage:   "Cap on captured output per stream. Set to 0 for the default.",
	}
	FastPath = &cli.BoolFlag{
		Name:    "fast-path",
		Value:   false,
		EnvVars: prefixEnvVars("FAST_PATH"),
		Usage:   "Skip output parsing and derive outcomes from the exit code alone",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: prefixEnvVars("LOGDIR"),
		Usage:   "Directory to store run artifacts in",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Usage:   "Lowest log level that will be output (trace|debug|info|warn|error|crit)",
	}
	Serve = &cli.BoolFlag{
		Name:    "serve",
		Value:   false,
		EnvVars: prefixEnvVars("SERVE"),
		Usage:   "Expose healthz, status and metrics HTTP endpoints during the run",
	}
)

var requiredFlags = []cli.Flag{
	Command,
	Manifest,
}

var optionalFlags = []cli.Flag{
	WorkDir,
	SessionID,
	MaxBufferBytes,
	FastPath,
	LogDir,
	LogLevel,
	Serve,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
