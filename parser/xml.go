package parser

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/testpipe/testpipe/types"
)

// Report XML in the wild is too inconsistent for a strict parser: attribute
// order varies, elements are self-closing or paired, and some emitters write
// malformed documents. Tolerant regex scanning over the narrow <testcase>
// subset is deliberate; see the canonical-output contract in the package doc.
var (
	testCaseRe = regexp.MustCompile(`(?s)<testcase\b([^>]*?)(?:/>|>(.*?)</testcase>)`)
	attrRe     = regexp.MustCompile(`([\w-]+)\s*=\s*"([^"]*)"`)
	failureRe  = regexp.MustCompile(`(?s)<(failure|error)\b([^>]*?)(?:/>|>(.*?)</(?:failure|error)>)`)
	skippedRe  = regexp.MustCompile(`(?s)<skipped\b[^>]*?(?:/>|>.*?</skipped>)`)
)

// hierarchySeparator reconstructs suite nesting that flat <testcase> elements
// do not otherwise encode: "Suite > case" splits into ancestors and title.
const hierarchySeparator = " > "

// ParseXML extracts <testcase> elements from an XML test report and groups
// them into one file result per file/classname attribute. Elements without a
// name attribute are skipped.
func ParseXML(text string) (*types.RunResult, bool) {
	matches := testCaseRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil, false
	}

	run := &types.RunResult{}
	fileIndex := make(map[string]int)
	sawCase := false

	for _, m := range matches {
		attrs := parseAttrs(m[1])
		name, ok := attrs["name"]
		if !ok || name == "" {
			continue
		}
		sawCase = true

		assertion := types.AssertionResult{
			Status: types.AssertionPassed,
		}
		assertion.AncestorTitles, assertion.Title = splitHierarchicalName(html.UnescapeString(name))
		assertion.FullName = joinTitles(assertion.AncestorTitles, assertion.Title)

		body := m[2]
		if fm := failureRe.FindStringSubmatch(body); fm != nil {
			assertion.Status = types.AssertionFailed
			if msg := failureMessage(fm); msg != "" {
				assertion.FailureMessages = []string{msg}
			}
		} else if skippedRe.MatchString(body) {
			assertion.Status = types.AssertionSkipped
		}

		if t, ok := attrs["time"]; ok {
			if seconds, err := strconv.ParseFloat(t, 64); err == nil {
				ms := seconds * 1000
				assertion.Duration = &ms
			}
		}
		if l, ok := attrs["line"]; ok {
			if line, err := strconv.Atoi(l); err == nil && line >= 1 {
				assertion.Location = &types.Location{Line: line}
			}
		}

		fileName := attrs["file"]
		if fileName == "" {
			fileName = attrs["classname"]
		}
		idx, ok := fileIndex[fileName]
		if !ok {
			idx = len(run.TestResults)
			fileIndex[fileName] = idx
			run.TestResults = append(run.TestResults, types.FileResult{Name: fileName})
		}
		run.TestResults[idx].AssertionResults = append(run.TestResults[idx].AssertionResults, assertion)
	}

	if !sawCase {
		return nil, false
	}
	run.Recount()
	return run, true
}

func parseAttrs(s string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(s, -1) {
		attrs[m[1]] = m[2]
	}
	return attrs
}

// failureMessage prefers the element's message attribute, falling back to its
// inner text.
func failureMessage(m []string) string {
	attrs := parseAttrs(m[2])
	if msg, ok := attrs["message"]; ok && msg != "" {
		return html.UnescapeString(msg)
	}
	return strings.TrimSpace(html.UnescapeString(m[3]))
}

// splitHierarchicalName splits a test name on its separator token. Everything
// before the last separator becomes the ancestor chain, the rest the title.
func splitHierarchicalName(name string) ([]string, string) {
	idx := strings.LastIndex(name, hierarchySeparator)
	if idx < 0 {
		return nil, name
	}
	ancestors := strings.Split(name[:idx], hierarchySeparator)
	for i := range ancestors {
		ancestors[i] = strings.TrimSpace(ancestors[i])
	}
	return ancestors, strings.TrimSpace(name[idx+len(hierarchySeparator):])
}
