// Package exitcodes defines the standard exit codes used by testpipe.
package exitcodes

// Exit codes reported by the CLI:
//
// * Success (0): every identity passed or was skipped
// * TestFailure (1): one or more identities failed or errored
// * RuntimeErr (2): the run itself could not be executed (spawn failure,
//   bad configuration)
const (
	Success     = 0
	TestFailure = 1
	RuntimeErr  = 2
)
