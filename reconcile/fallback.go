package reconcile

import (
	"strings"

	"github.com/acarl005/stripansi"
	"github.com/testpipe/testpipe/types"
)

// Indicator substrings used when no parser produced a canonical result.
// These cover the common human-readable summaries of the supported runners.
var (
	passIndicators = []string{"PASS", "passed", "✓", "√"}
	failIndicators = []string{"FAIL", "failed", "✗", "×", "not ok"}
)

// failNeighborhood is how many lines after a fail-indicator line a label may
// appear and still be attributed that failure.
const failNeighborhood = 2

// FallbackFromRaw resolves identities from raw output when every parser
// failed. Pass-indicators alone mark everything passed. Fail-indicators mark
// each identity failed when its own label appears near an indicator line and
// errored otherwise. No indicators at all mark everything errored.
func (e *Engine) FallbackFromRaw(raw string, identities []*types.Identity, sink types.Sink) []types.Outcome {
	raw = stripansi.Strip(raw)
	lines := strings.Split(raw, "\n")

	failLines := indicatorLines(lines, failIndicators)
	hasFail := len(failLines) > 0
	hasPass := indicatorsPresent(lines, passIndicators)

	outcomes := make([]types.Outcome, 0, len(identities))
	for _, identity := range identities {
		var outcome types.Outcome
		switch {
		case hasFail:
			if labelNearFailure(identity.Label, lines, failLines) {
				outcome = types.Outcome{
					Identity: identity,
					Status:   types.OutcomeFailed,
					Message:  defaultFailureMessage,
					Location: identity.SourceLocation,
				}
			} else {
				outcome = types.Outcome{
					Identity: identity,
					Status:   types.OutcomeErrored,
					Message:  "test run reported failures but this test's result could not be read",
				}
			}
		case hasPass:
			outcome = types.Outcome{Identity: identity, Status: types.OutcomePassed}
		default:
			e.log.Debug("No pass/fail indicators in raw output, reporting errored", "label", identity.Label)
			outcome = types.Outcome{
				Identity: identity,
				Status:   types.OutcomeErrored,
				Message:  "test produced no recognizable output",
			}
		}
		sink.Report(outcome)
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func indicatorLines(lines []string, indicators []string) []int {
	var hits []int
	for i, line := range lines {
		for _, ind := range indicators {
			if strings.Contains(line, ind) {
				hits = append(hits, i)
				break
			}
		}
	}
	return hits
}

func indicatorsPresent(lines []string, indicators []string) bool {
	return len(indicatorLines(lines, indicators)) > 0
}

// labelNearFailure reports whether label occurs on a fail-indicator line or
// within the few lines following one.
func labelNearFailure(label string, lines []string, failLines []int) bool {
	for _, idx := range failLines {
		end := idx + failNeighborhood
		if end >= len(lines) {
			end = len(lines) - 1
		}
		for i := idx; i <= end; i++ {
			if strings.Contains(lines[i], label) {
				return true
			}
		}
	}
	return false
}
