package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testpipe/testpipe/types"
)

func fallbackAll(t *testing.T, raw string, identities []*types.Identity) []types.Outcome {
	t.Helper()
	sink := &types.CollectorSink{}
	outcomes := New(nil).FallbackFromRaw(raw, identities, sink)
	require.Len(t, outcomes, len(identities))
	return outcomes
}

func TestFallbackFromRaw_PassIndicatorsOnly(t *testing.T) {
	raw := "PASS src/math.test.js\nPASS src/util.test.js\n"
	identities := []*types.Identity{
		types.NewIdentity("adds", nil),
		types.NewIdentity("trims", nil),
	}

	outcomes := fallbackAll(t, raw, identities)
	for _, outcome := range outcomes {
		assert.Equal(t, types.OutcomePassed, outcome.Status)
	}
}

func TestFallbackFromRaw_FailIndicatorNearLabel(t *testing.T) {
	raw := `PASS src/util.test.js
FAIL src/math.test.js
  ✗ divides
  ✓ adds
`
	identities := []*types.Identity{
		types.NewIdentity("adds", nil),
		types.NewIdentity("divides", nil),
		types.NewIdentity("rounds", nil),
	}

	outcomes := fallbackAll(t, raw, identities)

	// "adds" sits two lines under the FAIL line, inside the neighborhood.
	assert.Equal(t, types.OutcomeFailed, outcomes[0].Status)
	assert.Equal(t, types.OutcomeFailed, outcomes[1].Status)
	assert.Equal(t, defaultFailureMessage, outcomes[1].Message)

	// "rounds" never appears near a failure; with failures present but no
	// readable result it is errored, not silently passed.
	assert.Equal(t, types.OutcomeErrored, outcomes[2].Status)
	assert.NotEmpty(t, outcomes[2].Message)
}

func TestFallbackFromRaw_NoIndicatorsMeansErrored(t *testing.T) {
	raw := "node: command not found\n"
	identities := []*types.Identity{types.NewIdentity("adds", nil)}

	outcomes := fallbackAll(t, raw, identities)
	assert.Equal(t, types.OutcomeErrored, outcomes[0].Status)
	assert.Equal(t, "test produced no recognizable output", outcomes[0].Message)
}

func TestFallbackFromRaw_StripsANSIBeforeScanning(t *testing.T) {
	raw := "\x1b[31mFAIL\x1b[0m math\n  \x1b[31m✗\x1b[0m divides\n"
	identities := []*types.Identity{types.NewIdentity("divides", nil)}

	outcomes := fallbackAll(t, raw, identities)
	assert.Equal(t, types.OutcomeFailed, outcomes[0].Status)
}
