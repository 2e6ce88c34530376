// Package parser normalizes heterogeneous test-runner output into the
// canonical run-result schema. Three independent grammars are supported: JSON
// result documents (two dialects), XML test reports and the line-oriented TAP
// protocol. Parsers are pure functions of their input; a miss is reported by
// returning false, never by an error, so callers can degrade down the chain.
package parser

import (
	"strings"

	"github.com/acarl005/stripansi"
	"github.com/testpipe/testpipe/types"
)

// Format identifies which grammar produced a run result.
type Format string

const (
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
	FormatTAP  Format = "tap"
)

// ParseRunOutput tries each known format against the raw process output and
// returns the first run result obtained. ANSI escapes are stripped up front;
// runners routinely colorize output even when writing to a pipe.
func ParseRunOutput(output string) (*types.RunResult, Format, bool) {
	output = stripansi.Strip(output)

	if run, ok := ParseJSON(output); ok {
		return run, FormatJSON, true
	}
	if run, ok := ParseXML(output); ok {
		return run, FormatXML, true
	}
	if run, ok := ParseTAP(output); ok {
		return run, FormatTAP, true
	}
	return nil, "", false
}

// joinTitles renders an ancestor chain and title as a single full name.
func joinTitles(ancestors []string, title string) string {
	if len(ancestors) == 0 {
		return title
	}
	return strings.Join(ancestors, " ") + " " + title
}
