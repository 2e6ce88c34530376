// Package logging persists run artifacts: the raw captured output and a
// plain-text outcome summary, one directory per run.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/testpipe/testpipe/types"
)

const (
	rawOutputFilename = "raw_output.log"
	summaryFilename   = "summary.log"
	latestSymlink     = "latest"
)

// FileLogger stores artifacts for one run under baseDir/<runID>/.
type FileLogger struct {
	baseDir string
	runID   string

	mu sync.Mutex
}

// NewFileLogger creates the run directory and refreshes the "latest" symlink.
// An empty runID gets a generated UUID.
func NewFileLogger(baseDir string, runID string) (*FileLogger, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if runID == "" {
		runID = uuid.NewString()
	}

	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}

	// Best effort; some filesystems refuse symlinks.
	link := filepath.Join(baseDir, latestSymlink)
	_ = os.Remove(link)
	_ = os.Symlink(runID, link)

	return &FileLogger{baseDir: baseDir, runID: runID}, nil
}

// GetRunID returns the run's identifier.
func (l *FileLogger) GetRunID() string {
	return l.runID
}

// RunDir returns the directory artifacts are written to.
func (l *FileLogger) RunDir() string {
	return filepath.Join(l.baseDir, l.runID)
}

// LogRawOutput persists the combined process output.
func (l *FileLogger) LogRawOutput(output string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	path := filepath.Join(l.RunDir(), rawOutputFilename)
	if err := os.WriteFile(path, []byte(output), 0o644); err != nil {
		return fmt.Errorf("writing raw output: %w", err)
	}
	return nil
}

// LogOutcomes persists a plain-text summary of the run's outcomes.
func (l *FileLogger) LogOutcomes(outcomes []types.Outcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var b strings.Builder
	b.WriteString(fmt.Sprintf("run %s at %s\n\n", l.runID, time.Now().Format(time.RFC3339)))
	for _, outcome := range outcomes {
		b.WriteString(fmt.Sprintf("%-8s %s", outcome.Status, outcome.Identity.Label))
		if outcome.Duration > 0 {
			b.WriteString(fmt.Sprintf(" (%s)", outcome.Duration.Truncate(time.Millisecond)))
		}
		b.WriteString("\n")
		if outcome.Message != "" {
			b.WriteString(indentText(outcome.Message, "    "))
			b.WriteString("\n")
		}
	}

	path := filepath.Join(l.RunDir(), summaryFilename)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}

func indentText(text, indent string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}
