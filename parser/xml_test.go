package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testpipe/testpipe/types"
)

func TestParseXML_BasicReport(t *testing.T) {
	report := `<?xml version="1.0" encoding="UTF-8"?>
<testsuites>
	<testsuite name="math" tests="3">
		<testcase name="adds" classname="math" file="/src/math.test.js" time="0.025"/>
		<testcase name="divides" classname="math" file="/src/math.test.js" time="0.003">
			<failure message="expected 2 to be 3">AssertionError: expected 2 to be 3</failure>
		</testcase>
		<testcase name="rounds" classname="math" file="/src/math.test.js">
			<skipped/>
		</testcase>
	</testsuite>
</testsuites>`

	run, ok := ParseXML(report)
	require.True(t, ok)
	require.Len(t, run.TestResults, 1)
	assert.Equal(t, "/src/math.test.js", run.TestResults[0].Name)

	assertions := run.TestResults[0].AssertionResults
	require.Len(t, assertions, 3)

	assert.Equal(t, types.AssertionPassed, assertions[0].Status)
	require.NotNil(t, assertions[0].Duration)
	assert.InDelta(t, 25.0, *assertions[0].Duration, 0.001)

	assert.Equal(t, types.AssertionFailed, assertions[1].Status)
	assert.Equal(t, []string{"expected 2 to be 3"}, assertions[1].FailureMessages)

	assert.Equal(t, types.AssertionSkipped, assertions[2].Status)

	assert.Equal(t, 3, run.NumTotalTests)
	assert.Equal(t, 1, run.NumFailedTests)
	assert.False(t, run.Success)
}

func TestParseXML_HierarchicalNameSplitsOnSeparator(t *testing.T) {
	report := `<testcase name="Suite &gt; nested &gt; case" classname="spec"/>`

	run, ok := ParseXML(report)
	require.True(t, ok)

	assertions := run.Assertions()
	require.Len(t, assertions, 1)
	assert.Equal(t, []string{"Suite", "nested"}, assertions[0].AncestorTitles)
	assert.Equal(t, "case", assertions[0].Title)
	assert.Equal(t, "Suite nested case", assertions[0].FullName)
}

func TestParseXML_FailureMessageFallsBackToBody(t *testing.T) {
	report := `<testcase name="t" classname="c"><failure>stack trace here</failure></testcase>`

	run, ok := ParseXML(report)
	require.True(t, ok)
	assert.Equal(t, []string{"stack trace here"}, run.Assertions()[0].FailureMessages)
}

func TestParseXML_ErrorElementCountsAsFailure(t *testing.T) {
	report := `<testcase name="t" classname="c"><error message="boom"/></testcase>`

	run, ok := ParseXML(report)
	require.True(t, ok)
	a := run.Assertions()[0]
	assert.Equal(t, types.AssertionFailed, a.Status)
	assert.Equal(t, []string{"boom"}, a.FailureMessages)
}

func TestParseXML_GroupsByClassnameWhenFileAbsent(t *testing.T) {
	report := `
<testcase name="a" classname="one"/>
<testcase name="b" classname="two"/>
<testcase name="c" classname="one"/>`

	run, ok := ParseXML(report)
	require.True(t, ok)
	require.Len(t, run.TestResults, 2)
	assert.Equal(t, "one", run.TestResults[0].Name)
	assert.Len(t, run.TestResults[0].AssertionResults, 2)
	assert.Equal(t, "two", run.TestResults[1].Name)
}

func TestParseXML_EntityUnescapeAndLineAttr(t *testing.T) {
	report := `<testcase name="compares a &amp; b" classname="c" line="42"/>`

	run, ok := ParseXML(report)
	require.True(t, ok)
	a := run.Assertions()[0]
	assert.Equal(t, "compares a & b", a.Title)
	require.NotNil(t, a.Location)
	assert.Equal(t, 42, a.Location.Line)
}

func TestParseXML_RejectsInputWithoutTestCases(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "unrelated xml", text: `<project><name>demo</name></project>`},
		{name: "nameless case", text: `<testcase classname="c" time="0.1"/>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseXML(tt.text)
			assert.False(t, ok)
		})
	}
}
