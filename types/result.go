package types

// AssertionStatus represents the possible states of a single observed assertion
type AssertionStatus string

const (
	AssertionPassed  AssertionStatus = "passed"
	AssertionFailed  AssertionStatus = "failed"
	AssertionSkipped AssertionStatus = "skipped"
	AssertionPending AssertionStatus = "pending"
	AssertionTodo    AssertionStatus = "todo"
)

// Location is a source position. Line is 1-based, Column is 0-based.
type Location struct {
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
}

// AssertionResult is one observed test outcome in the canonical schema.
// All parsers normalize into this shape regardless of the wire format.
type AssertionResult struct {
	AncestorTitles  []string        `json:"ancestorTitles"` // enclosing suite names, outermost first
	Title           string          `json:"title"`
	FullName        string          `json:"fullName,omitempty"`
	Status          AssertionStatus `json:"status"`
	Duration        *float64        `json:"duration,omitempty"` // milliseconds
	FailureMessages []string        `json:"failureMessages,omitempty"`
	Location        *Location       `json:"location,omitempty"`
}

// ComputedFullName returns FullName when set, otherwise the ancestor titles
// joined with the title.
func (a *AssertionResult) ComputedFullName() string {
	if a.FullName != "" {
		return a.FullName
	}
	name := a.Title
	for i := len(a.AncestorTitles) - 1; i >= 0; i-- {
		name = a.AncestorTitles[i] + " " + name
	}
	return name
}

// FileStatus represents the aggregate state of one source file's results
type FileStatus string

const (
	FileStatusPassed FileStatus = "passed"
	FileStatusFailed FileStatus = "failed"
)

// FileResult holds one source file's outcomes.
type FileResult struct {
	Name             string            `json:"name"`
	Status           FileStatus        `json:"status"`
	AssertionResults []AssertionResult `json:"assertionResults"`
	StartTime        *float64          `json:"startTime,omitempty"` // unix millis
	EndTime          *float64          `json:"endTime,omitempty"`
}

// RunResult is the top-level normalized payload every parser produces and the
// framing protocol transports.
type RunResult struct {
	NumTotalTests        int          `json:"numTotalTests"`
	NumPassedTests       int          `json:"numPassedTests"`
	NumFailedTests       int          `json:"numFailedTests"`
	NumPendingTests      int          `json:"numPendingTests"`
	NumTotalTestSuites   int          `json:"numTotalTestSuites"`
	NumPassedTestSuites  int          `json:"numPassedTestSuites"`
	NumFailedTestSuites  int          `json:"numFailedTestSuites"`
	NumPendingTestSuites int          `json:"numPendingTestSuites"`
	Success              bool         `json:"success"`
	TestResults          []FileResult `json:"testResults"`
}

// Assertions returns every assertion across all file results, in file order.
func (r *RunResult) Assertions() []AssertionResult {
	var out []AssertionResult
	for _, file := range r.TestResults {
		out = append(out, file.AssertionResults...)
	}
	return out
}

// Recount recomputes the aggregate counts, file statuses and the success flag
// from the assertion results. Parsers call this after assembling file results
// so hand-built payloads stay internally consistent.
func (r *RunResult) Recount() {
	r.NumTotalTests = 0
	r.NumPassedTests = 0
	r.NumFailedTests = 0
	r.NumPendingTests = 0
	r.NumTotalTestSuites = len(r.TestResults)
	r.NumPassedTestSuites = 0
	r.NumFailedTestSuites = 0
	r.NumPendingTestSuites = 0

	for i := range r.TestResults {
		file := &r.TestResults[i]
		failed := false
		for _, a := range file.AssertionResults {
			r.NumTotalTests++
			switch a.Status {
			case AssertionPassed:
				r.NumPassedTests++
			case AssertionFailed:
				r.NumFailedTests++
				failed = true
			default:
				r.NumPendingTests++
			}
		}
		if failed {
			file.Status = FileStatusFailed
			r.NumFailedTestSuites++
		} else {
			file.Status = FileStatusPassed
			r.NumPassedTestSuites++
		}
	}
	r.Success = r.NumFailedTests == 0
}
