package parser

import (
	"bytes"
	"encoding/json"

	"github.com/testpipe/testpipe/types"
)

// Markers that identify a run document inside free text. Each is a leading
// field of one of the accepted dialects.
var jsonMarkers = []string{
	`"numTotalTestSuites"`,
	`"numTotalTests"`,
	`"numFailedTests"`,
	`"testResults"`,
}

// ParseJSON accepts either a pure JSON run document or free text with one
// embedded in it (log lines before and after are common when a wrapper tool
// owns the process). Two dialects are understood; both are adapted onto the
// canonical schema.
func ParseJSON(text string) (*types.RunResult, bool) {
	raw := []byte(text)
	if run, ok := NormalizeJSONPayload(raw); ok {
		return run, true
	}
	slice, ok := extractEmbeddedObject(raw)
	if !ok {
		return nil, false
	}
	return NormalizeJSONPayload(slice)
}

// NormalizeJSONPayload adapts a single JSON document onto the canonical
// schema. It is also used for framed payloads, which arrive pre-sliced.
func NormalizeJSONPayload(raw []byte) (*types.RunResult, bool) {
	switch sniffDialect(raw) {
	case dialectVitest:
		var doc vitestRunDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, false
		}
		if !doc.looksLikeRunDocument() {
			return nil, false
		}
		return adaptVitest(&doc), true
	default:
		var doc jestRunDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, false
		}
		if !doc.looksLikeRunDocument() {
			return nil, false
		}
		return adaptJest(&doc), true
	}
}

// extractEmbeddedObject locates a known leading field name and brace-matches
// outward from the nearest preceding '{'. The matcher tracks quoted-string
// and escape state; a payload whose failure messages contain braces must not
// derail it.
func extractEmbeddedObject(raw []byte) ([]byte, bool) {
	for _, marker := range jsonMarkers {
		idx := bytes.Index(raw, []byte(marker))
		if idx < 0 {
			continue
		}
		open := bytes.LastIndexByte(raw[:idx], '{')
		if open < 0 {
			continue
		}
		if end, ok := matchBraces(raw, open); ok {
			return raw[open : end+1], true
		}
	}
	return nil, false
}

// matchBraces returns the index of the brace closing the one at open.
func matchBraces(raw []byte, open int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

type dialect int

const (
	dialectJest dialect = iota
	dialectVitest
)

// sniffDialect distinguishes the two accepted run-document shapes. The vitest
// reporter names files via "filepath" and assertions via "fullTitle"; the
// jest reporter uses "name" and "fullName".
func sniffDialect(raw []byte) dialect {
	if bytes.Contains(raw, []byte(`"filepath"`)) || bytes.Contains(raw, []byte(`"fullTitle"`)) {
		return dialectVitest
	}
	return dialectJest
}

// jestRunDocument is the jest-reporter dialect. Aggregate counts use pointer
// fields so absence can be told apart from zero.
type jestRunDocument struct {
	NumTotalTests        *int             `json:"numTotalTests"`
	NumPassedTests       *int             `json:"numPassedTests"`
	NumFailedTests       *int             `json:"numFailedTests"`
	NumPendingTests      *int             `json:"numPendingTests"`
	NumTotalTestSuites   *int             `json:"numTotalTestSuites"`
	NumPassedTestSuites  *int             `json:"numPassedTestSuites"`
	NumFailedTestSuites  *int             `json:"numFailedTestSuites"`
	NumPendingTestSuites *int             `json:"numPendingTestSuites"`
	Success              *bool            `json:"success"`
	TestResults          []jestFileResult `json:"testResults"`
}

type jestFileResult struct {
	Name             string          `json:"name"`
	Status           string          `json:"status"`
	StartTime        *float64        `json:"startTime"`
	EndTime          *float64        `json:"endTime"`
	AssertionResults []jestAssertion `json:"assertionResults"`
}

type jestAssertion struct {
	AncestorTitles  []string        `json:"ancestorTitles"`
	Title           string          `json:"title"`
	FullName        string          `json:"fullName"`
	Status          string          `json:"status"`
	Duration        *float64        `json:"duration"`
	FailureMessages []string        `json:"failureMessages"`
	Location        *types.Location `json:"location"`
}

func (d *jestRunDocument) looksLikeRunDocument() bool {
	return d.TestResults != nil || d.NumTotalTests != nil || d.NumFailedTests != nil || d.Success != nil
}

// vitestRunDocument is the vitest-reporter dialect: same envelope, but files
// may be named via "filepath", assertions carry "fullTitle", and the
// aggregate counts are frequently absent.
type vitestRunDocument struct {
	NumTotalTests        *int               `json:"numTotalTests"`
	NumPassedTests       *int               `json:"numPassedTests"`
	NumFailedTests       *int               `json:"numFailedTests"`
	NumPendingTests      *int               `json:"numPendingTests"`
	NumTotalTestSuites   *int               `json:"numTotalTestSuites"`
	NumPassedTestSuites  *int               `json:"numPassedTestSuites"`
	NumFailedTestSuites  *int               `json:"numFailedTestSuites"`
	NumPendingTestSuites *int               `json:"numPendingTestSuites"`
	Success              *bool              `json:"success"`
	TestResults          []vitestFileResult `json:"testResults"`
}

type vitestFileResult struct {
	Name             string            `json:"name"`
	Filepath         string            `json:"filepath"`
	Status           string            `json:"status"`
	StartTime        *float64          `json:"startTime"`
	EndTime          *float64          `json:"endTime"`
	AssertionResults []vitestAssertion `json:"assertionResults"`
}

type vitestAssertion struct {
	AncestorTitles  []string        `json:"ancestorTitles"`
	Title           string          `json:"title"`
	FullName        string          `json:"fullName"`
	FullTitle       string          `json:"fullTitle"`
	Status          string          `json:"status"`
	Duration        *float64        `json:"duration"`
	FailureMessages []string        `json:"failureMessages"`
	Location        *types.Location `json:"location"`
}

func (d *vitestRunDocument) looksLikeRunDocument() bool {
	return d.TestResults != nil || d.NumTotalTests != nil || d.NumFailedTests != nil || d.Success != nil
}

func adaptJest(doc *jestRunDocument) *types.RunResult {
	run := &types.RunResult{
		NumTotalTests:        intOrZero(doc.NumTotalTests),
		NumPassedTests:       intOrZero(doc.NumPassedTests),
		NumFailedTests:       intOrZero(doc.NumFailedTests),
		NumPendingTests:      intOrZero(doc.NumPendingTests),
		NumTotalTestSuites:   intOrZero(doc.NumTotalTestSuites),
		NumPassedTestSuites:  intOrZero(doc.NumPassedTestSuites),
		NumFailedTestSuites:  intOrZero(doc.NumFailedTestSuites),
		NumPendingTestSuites: intOrZero(doc.NumPendingTestSuites),
	}
	for _, file := range doc.TestResults {
		out := types.FileResult{
			Name:      file.Name,
			Status:    fileStatus(file.Status),
			StartTime: file.StartTime,
			EndTime:   file.EndTime,
		}
		for _, a := range file.AssertionResults {
			out.AssertionResults = append(out.AssertionResults, types.AssertionResult{
				AncestorTitles:  a.AncestorTitles,
				Title:           a.Title,
				FullName:        a.FullName,
				Status:          assertionStatus(a.Status),
				Duration:        a.Duration,
				FailureMessages: a.FailureMessages,
				Location:        a.Location,
			})
		}
		run.TestResults = append(run.TestResults, out)
	}
	run.Success = computeSuccess(doc.Success, run)
	return run
}

func adaptVitest(doc *vitestRunDocument) *types.RunResult {
	run := &types.RunResult{
		NumTotalTests:        intOrZero(doc.NumTotalTests),
		NumPassedTests:       intOrZero(doc.NumPassedTests),
		NumFailedTests:       intOrZero(doc.NumFailedTests),
		NumPendingTests:      intOrZero(doc.NumPendingTests),
		NumTotalTestSuites:   intOrZero(doc.NumTotalTestSuites),
		NumPassedTestSuites:  intOrZero(doc.NumPassedTestSuites),
		NumFailedTestSuites:  intOrZero(doc.NumFailedTestSuites),
		NumPendingTestSuites: intOrZero(doc.NumPendingTestSuites),
	}
	for _, file := range doc.TestResults {
		name := file.Name
		if name == "" {
			name = file.Filepath
		}
		out := types.FileResult{
			Name:      name,
			Status:    fileStatus(file.Status),
			StartTime: file.StartTime,
			EndTime:   file.EndTime,
		}
		for _, a := range file.AssertionResults {
			fullName := a.FullName
			if fullName == "" {
				fullName = a.FullTitle
			}
			out.AssertionResults = append(out.AssertionResults, types.AssertionResult{
				AncestorTitles:  a.AncestorTitles,
				Title:           a.Title,
				FullName:        fullName,
				Status:          assertionStatus(a.Status),
				Duration:        a.Duration,
				FailureMessages: a.FailureMessages,
				Location:        a.Location,
			})
		}
		run.TestResults = append(run.TestResults, out)
	}
	run.Success = computeSuccess(doc.Success, run)
	return run
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// computeSuccess honors an explicit success flag; when absent it is derived
// from the failed-test count, recounting from assertions if the aggregate
// count was itself absent.
func computeSuccess(explicit *bool, run *types.RunResult) bool {
	if explicit != nil {
		return *explicit
	}
	failed := run.NumFailedTests
	if failed == 0 {
		for _, a := range run.Assertions() {
			if a.Status == types.AssertionFailed {
				failed++
			}
		}
	}
	return failed == 0
}

func fileStatus(s string) types.FileStatus {
	if s == string(types.FileStatusFailed) {
		return types.FileStatusFailed
	}
	return types.FileStatusPassed
}

func assertionStatus(s string) types.AssertionStatus {
	switch types.AssertionStatus(s) {
	case types.AssertionPassed, types.AssertionFailed, types.AssertionSkipped,
		types.AssertionPending, types.AssertionTodo:
		return types.AssertionStatus(s)
	case "":
		return types.AssertionSkipped
	default:
		// Unknown statuses ("disabled", "focused", ...) are treated as not run.
		return types.AssertionSkipped
	}
}
