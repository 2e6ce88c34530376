package reconcile

import (
	"regexp"
	"strings"
)

// templateTokenRe recognizes the placeholders parameterized test tables
// interpolate into titles: printf-style verbs, $name and ${name}.
var templateTokenRe = regexp.MustCompile(`%[sdifjo#]|\$\{[^}]*\}|\$[A-Za-z_][A-Za-z0-9_.]*`)

// hasTemplateToken reports whether label came from a parameterized table.
func hasTemplateToken(label string) bool {
	return templateTokenRe.MatchString(label)
}

// isOnlyTemplateToken reports whether label is nothing but a single token.
// Such labels carry no literal text to discriminate on; the caller falls back
// to ancestor-chain matching.
func isOnlyTemplateToken(label string) bool {
	trimmed := strings.TrimSpace(label)
	m := templateTokenRe.FindStringIndex(trimmed)
	return m != nil && m[0] == 0 && m[1] == len(trimmed)
}

// compileTemplate turns a templated label into an anchored regex: literal
// portions are escaped, each token becomes a non-greedy wildcard.
func compileTemplate(label string) (*regexp.Regexp, bool) {
	var pattern strings.Builder
	pattern.WriteString(`^`)
	last := 0
	for _, m := range templateTokenRe.FindAllStringIndex(label, -1) {
		pattern.WriteString(regexp.QuoteMeta(label[last:m[0]]))
		pattern.WriteString(`(.*?)`)
		last = m[1]
	}
	pattern.WriteString(regexp.QuoteMeta(label[last:]))
	pattern.WriteString(`$`)

	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return nil, false
	}
	return re, true
}

// retrySuffixRe matches a title equal to the label plus an " (N)" retry
// suffix appended by runners that re-execute flaky tests.
func retrySuffixRe(label string) *regexp.Regexp {
	re, err := regexp.Compile(`^` + regexp.QuoteMeta(label) + ` \(\d+\)$`)
	if err != nil {
		return nil
	}
	return re
}
