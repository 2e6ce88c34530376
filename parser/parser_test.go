package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRunOutput_FormatDetection(t *testing.T) {
	tests := []struct {
		name       string
		output     string
		wantFormat Format
	}{
		{
			name:       "json document",
			output:     `{"numTotalTests": 1, "testResults": [{"name": "a", "assertionResults": [{"title": "t", "status": "passed"}]}]}`,
			wantFormat: FormatJSON,
		},
		{
			name:       "xml report",
			output:     `<testsuite><testcase name="t" classname="c"/></testsuite>`,
			wantFormat: FormatXML,
		},
		{
			name:       "tap stream",
			output:     "TAP version 13\nok 1 - t\n1..1\n",
			wantFormat: FormatTAP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run, format, ok := ParseRunOutput(tt.output)
			require.True(t, ok)
			assert.Equal(t, tt.wantFormat, format)
			assert.Equal(t, 1, run.NumTotalTests)
		})
	}
}

func TestParseRunOutput_StripsANSIEscapes(t *testing.T) {
	colored := "\x1b[32mTAP version 13\x1b[0m\nok 1 - \x1b[1madds\x1b[0m\n"

	run, format, ok := ParseRunOutput(colored)
	require.True(t, ok)
	assert.Equal(t, FormatTAP, format)
	require.Len(t, run.Assertions(), 1)
	assert.Equal(t, "adds", run.Assertions()[0].Title)
}

func TestParseRunOutput_NoFormatMatches(t *testing.T) {
	_, _, ok := ParseRunOutput("Tests completed successfully in 1.2s\n")
	assert.False(t, ok)
}

func TestParseRunOutput_IsDeterministic(t *testing.T) {
	output := "TAP version 13\nok 1 - adds\nnot ok 2 - divides\n1..2\n"

	first, firstFormat, ok := ParseRunOutput(output)
	require.True(t, ok)
	second, secondFormat, ok := ParseRunOutput(output)
	require.True(t, ok)

	assert.Equal(t, firstFormat, secondFormat)
	assert.Equal(t, first, second)
}
