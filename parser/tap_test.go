package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testpipe/testpipe/types"
)

func TestParseTAP_FlatResults(t *testing.T) {
	text := `TAP version 13
1..3
ok 1 - adds
not ok 2 - divides
ok 3 - rounds # SKIP not implemented
`

	run, ok := ParseTAP(text)
	require.True(t, ok)

	assertions := run.Assertions()
	require.Len(t, assertions, 3)
	assert.Equal(t, "adds", assertions[0].Title)
	assert.Equal(t, types.AssertionPassed, assertions[0].Status)
	assert.Equal(t, types.AssertionFailed, assertions[1].Status)
	assert.Equal(t, types.AssertionSkipped, assertions[2].Status)
	assert.Equal(t, "rounds", assertions[2].Title)

	assert.Equal(t, 3, run.NumTotalTests)
	assert.Equal(t, 1, run.NumFailedTests)
	assert.False(t, run.Success)
}

func TestParseTAP_RootSubtestSummaryIsNotALeaf(t *testing.T) {
	// A lone root-level subtest whose closing line matches the declaration
	// is a file/suite wrapper, not a test of its own.
	text := "# Subtest: A\nok 1 - A\n"

	run, ok := ParseTAP(text)
	require.True(t, ok)
	assert.Empty(t, run.Assertions())
	assert.Equal(t, 0, run.NumTotalTests)
}

func TestParseTAP_NestedSubtests(t *testing.T) {
	text := `TAP version 13
# Subtest: math
    # Subtest: adds
    ok 1 - adds
    not ok 2 - divides
ok 1 - math
1..1
`

	run, ok := ParseTAP(text)
	require.True(t, ok)

	assertions := run.Assertions()
	require.Len(t, assertions, 2)

	assert.Equal(t, "adds", assertions[0].Title)
	assert.Equal(t, []string{"math"}, assertions[0].AncestorTitles)
	assert.Equal(t, "math adds", assertions[0].FullName)

	assert.Equal(t, "divides", assertions[1].Title)
	assert.Equal(t, types.AssertionFailed, assertions[1].Status)

	// The summary line for "math" must not also be reported.
	for _, a := range assertions {
		assert.NotEqual(t, "math", a.Title)
	}
}

func TestParseTAP_DiagnosticBlock(t *testing.T) {
	text := `TAP version 13
not ok 1 - divides
  ---
  duration_ms: 1.5
  error: 'expected 2 to be 3'
  stack: |-
    at divides (math.test.js:14:2)
  line: 14
  column: 2
  ...
1..1
`

	run, ok := ParseTAP(text)
	require.True(t, ok)

	assertions := run.Assertions()
	require.Len(t, assertions, 1)
	a := assertions[0]

	require.NotNil(t, a.Duration)
	assert.Equal(t, 1.5, *a.Duration)
	require.Len(t, a.FailureMessages, 2)
	assert.Equal(t, "expected 2 to be 3", a.FailureMessages[0])
	assert.Contains(t, a.FailureMessages[1], "math.test.js:14:2")
	require.NotNil(t, a.Location)
	assert.Equal(t, 14, a.Location.Line)
	assert.Equal(t, 2, a.Location.Column)
}

func TestParseTAP_DiagnosticOnPassingTestKeepsMessagesEmpty(t *testing.T) {
	text := `TAP version 13
ok 1 - adds
  ---
  duration_ms: 3
  ...
`

	run, ok := ParseTAP(text)
	require.True(t, ok)

	a := run.Assertions()[0]
	assert.Empty(t, a.FailureMessages)
	require.NotNil(t, a.Duration)
	assert.Equal(t, float64(3), *a.Duration)
}

func TestParseTAP_TodoDirective(t *testing.T) {
	text := "TAP version 13\nok 1 - later # TODO finish this\n"

	run, ok := ParseTAP(text)
	require.True(t, ok)
	a := run.Assertions()[0]
	assert.Equal(t, "later", a.Title)
	assert.Equal(t, types.AssertionTodo, a.Status)
}

func TestParseTAP_RejectsNonTAPText(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "log lines", text: "starting server\nlistening on :8080\n"},
		{name: "json", text: `{"numTotalTests": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseTAP(tt.text)
			assert.False(t, ok)
		})
	}
}
