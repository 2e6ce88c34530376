// Package reconcile maps canonical assertion results back onto the
// caller-supplied identity tree. Matching is fuzzy on purpose: runner titles
// drift from editor labels through parameterization, suite nesting and retry
// suffixes, and the engine must still attribute every result at most once and
// resolve every identity exactly once.
package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/testpipe/testpipe/types"
)

const defaultFailureMessage = "test failed (no failure detail reported by the runner)"

// Engine reconciles canonical run results against identities.
type Engine struct {
	log log.Logger
}

// New creates a reconciliation engine.
func New(logger log.Logger) *Engine {
	if logger == nil {
		logger = log.Root()
	}
	return &Engine{log: logger}
}

// Reconcile reports exactly one outcome per identity, in the caller-supplied
// order, through sink. The returned slice mirrors what was reported. Each
// canonical result is consumed by at most one identity.
func (e *Engine) Reconcile(run *types.RunResult, identities []*types.Identity, sink types.Sink) []types.Outcome {
	assertions := run.Assertions()
	consumed := make(map[int]bool, len(assertions))
	outcomes := make([]types.Outcome, 0, len(identities))

	for _, identity := range identities {
		matched := e.matchCandidates(identity, assertions, consumed)

		var outcome types.Outcome
		switch {
		case len(matched) == 0:
			e.log.Debug("No canonical result matched identity, reporting skipped", "label", identity.Label)
			outcome = types.Outcome{Identity: identity, Status: types.OutcomeSkipped}

		case hasTemplateToken(identity.Label) && len(matched) > 1:
			for _, idx := range matched {
				consumed[idx] = true
			}
			outcome = aggregateOutcome(identity, assertions, matched)

		default:
			idx := tieBreak(identity, assertions, matched)
			consumed[idx] = true
			outcome = singleOutcome(identity, &assertions[idx])
		}

		sink.Report(outcome)
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// matchCandidates returns the unconsumed assertion indices matching identity.
func (e *Engine) matchCandidates(identity *types.Identity, assertions []types.AssertionResult, consumed map[int]bool) []int {
	label := identity.Label

	templated := hasTemplateToken(label)
	var templateRe interface{ MatchString(string) bool }
	if templated && !isOnlyTemplateToken(label) {
		if re, ok := compileTemplate(label); ok {
			templateRe = re
		}
	}
	retryRe := retrySuffixRe(label)

	// A label that is nothing but a template token cannot be discriminated
	// by name at all; align the identity's ancestor chain against the
	// result's instead.
	if templated && isOnlyTemplateToken(label) {
		ancestors := identity.AncestorLabels()
		var matched []int
		for i := range assertions {
			if consumed[i] {
				continue
			}
			if ancestorSuffixAligned(assertions[i].AncestorTitles, ancestors) {
				matched = append(matched, i)
			}
		}
		return matched
	}

	var matched []int
	for i := range assertions {
		if consumed[i] {
			continue
		}
		a := &assertions[i]
		switch {
		case a.Title == label,
			a.Title == identity.TrailingWord(),
			a.ComputedFullName() == label,
			joinedName(a) == label:
			matched = append(matched, i)
		case templateRe != nil && templateRe.MatchString(a.Title):
			matched = append(matched, i)
		case retryRe != nil && retryRe.MatchString(a.Title):
			matched = append(matched, i)
		}
	}
	return matched
}

func joinedName(a *types.AssertionResult) string {
	if len(a.AncestorTitles) == 0 {
		return a.Title
	}
	return strings.Join(a.AncestorTitles, " ") + " " + a.Title
}

// ancestorSuffixAligned reports whether chain ends with exactly want.
func ancestorSuffixAligned(chain, want []string) bool {
	if len(want) > len(chain) {
		return false
	}
	offset := len(chain) - len(want)
	for i, label := range want {
		if chain[offset+i] != label {
			return false
		}
	}
	return true
}

// tieBreak picks one candidate when several non-templated results share a
// label (two identities with the same name under different suites). Results
// commonly carry 1-indexed lines against 0-indexed identity locations, so a
// candidate whose line is the identity's line + 1 wins; otherwise the first
// remaining candidate does.
func tieBreak(identity *types.Identity, assertions []types.AssertionResult, matched []int) int {
	if len(matched) > 1 && identity.SourceLocation != nil {
		for _, idx := range matched {
			loc := assertions[idx].Location
			if loc != nil && loc.Line == identity.SourceLocation.Line+1 {
				return idx
			}
		}
	}
	return matched[0]
}

// singleOutcome converts one matched assertion into the identity's outcome.
func singleOutcome(identity *types.Identity, a *types.AssertionResult) types.Outcome {
	outcome := types.Outcome{Identity: identity}

	switch a.Status {
	case types.AssertionPassed:
		outcome.Status = types.OutcomePassed
		outcome.Duration = durationOf(a)
	case types.AssertionFailed:
		outcome.Status = types.OutcomeFailed
		outcome.Duration = durationOf(a)
		outcome.Message = failureText(a.FailureMessages)
		outcome.Location = failureLocation(identity, a)
	default: // skipped, pending, todo
		outcome.Status = types.OutcomeSkipped
	}
	return outcome
}

// aggregateOutcome folds all matches of one templated identity (an identity
// standing for a whole parameterized table) into a single outcome.
func aggregateOutcome(identity *types.Identity, assertions []types.AssertionResult, matched []int) types.Outcome {
	outcome := types.Outcome{Identity: identity, Status: types.OutcomeSkipped}

	anyPassed := false
	anyFailed := false
	var total time.Duration
	var messages []string

	// One line per matched instance, so a failed table still names the
	// instances that passed.
	for _, idx := range matched {
		a := &assertions[idx]
		total += durationOf(a)
		switch a.Status {
		case types.AssertionPassed:
			anyPassed = true
			messages = append(messages, fmt.Sprintf("[%s]: passed", a.Title))
		case types.AssertionFailed:
			anyFailed = true
			messages = append(messages, fmt.Sprintf("[%s]: %s", a.Title, failureText(a.FailureMessages)))
			if outcome.Location == nil {
				outcome.Location = failureLocation(identity, a)
			}
		default:
			messages = append(messages, fmt.Sprintf("[%s]: skipped", a.Title))
		}
	}

	switch {
	case anyFailed:
		outcome.Status = types.OutcomeFailed
		outcome.Message = strings.Join(messages, "\n")
	case anyPassed:
		outcome.Status = types.OutcomePassed
	}
	outcome.Duration = total
	return outcome
}

func durationOf(a *types.AssertionResult) time.Duration {
	if a.Duration == nil {
		return 0
	}
	return time.Duration(*a.Duration * float64(time.Millisecond))
}

func failureText(messages []string) string {
	joined := strings.TrimSpace(strings.Join(messages, "\n"))
	if joined == "" {
		return defaultFailureMessage
	}
	return joined
}

// failureLocation prefers the result's own position, falling back to where
// the identity was declared.
func failureLocation(identity *types.Identity, a *types.AssertionResult) *types.Location {
	if a.Location != nil {
		return a.Location
	}
	return identity.SourceLocation
}
