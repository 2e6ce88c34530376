package testpipe

import (
	"fmt"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// Environment variables exposed to spawned runner processes.
const (
	// EnvSessionID carries the frame session id so an instrumented runner
	// can tag the payloads it emits.
	EnvSessionID = "TESTPIPE_SESSION"
	// EnvReporterPath points at the helper reporter script.
	EnvReporterPath = "TESTPIPE_REPORTER"
)

// reporterScript is the helper an instrumented Node runner loads to wrap its
// native results in the framing protocol. Written to a temp file once per
// process and shared by every run.
const reporterScript = `// testpipe reporter: wraps runner results in the framing protocol.
'use strict';
const BEGIN = '##testpipe-begin##';
const END = '##testpipe-end##';

module.exports = function emitResults(results) {
  const sessionId = process.env.TESTPIPE_SESSION || '';
  const body = JSON.stringify(results);
  process.stdout.write(
    BEGIN + sessionId + '::results::' + Buffer.byteLength(body) + '::' + body +
    END + sessionId + '::results'
  );
};
`

// ScriptCache lazily materializes the helper scripts spawned runners load.
// The path is computed once behind a sync.Once and is immutable afterwards,
// so concurrent runs can read it without locking.
type ScriptCache struct {
	once sync.Once
	path string
	err  error
}

// ReporterPath returns the on-disk path of the reporter helper, writing it on
// first use.
func (c *ScriptCache) ReporterPath() (string, error) {
	c.once.Do(func() {
		f, err := os.CreateTemp("", "testpipe-reporter-*.js")
		if err != nil {
			c.err = fmt.Errorf("creating reporter script: %w", err)
			return
		}
		if _, err := f.WriteString(reporterScript); err != nil {
			_ = f.Close()
			c.err = fmt.Errorf("writing reporter script: %w", err)
			return
		}
		if err := f.Close(); err != nil {
			c.err = fmt.Errorf("closing reporter script: %w", err)
			return
		}
		c.path = f.Name()
	})
	return c.path, c.err
}

// Config holds configuration for creating a Pipeline.
type Config struct {
	Log log.Logger

	// Scripts is the shared helper-script cache. Optional; runs proceed
	// without the reporter env when absent.
	Scripts *ScriptCache
}
