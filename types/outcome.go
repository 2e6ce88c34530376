package types

import "time"

// OutcomeStatus is the terminal state reported for an identity.
type OutcomeStatus string

const (
	OutcomePassed  OutcomeStatus = "passed"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeErrored OutcomeStatus = "errored"
)

// Outcome is the terminal result for one identity. Every identity handed to a
// run receives exactly one Outcome.
type Outcome struct {
	Identity *Identity
	Status   OutcomeStatus
	Duration time.Duration
	Message  string    // failure detail, empty unless failed/errored
	Location *Location // source position of the failure when known
}

// Sink receives per-identity outcomes as they are resolved.
type Sink interface {
	Report(outcome Outcome)
}

// CollectorSink is a Sink that accumulates outcomes in report order.
type CollectorSink struct {
	Outcomes []Outcome
}

func (s *CollectorSink) Report(outcome Outcome) {
	s.Outcomes = append(s.Outcomes, outcome)
}
