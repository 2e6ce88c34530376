package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/testpipe/testpipe/types"
	"gopkg.in/yaml.v3"
)

var (
	tapVersionRe   = regexp.MustCompile(`^TAP version \d+`)
	tapSubtestRe   = regexp.MustCompile(`^# Subtest: (.+)$`)
	tapResultRe    = regexp.MustCompile(`^(not )?ok\b\s*(\d*)\s*(.*)$`)
	tapDirectiveRe = regexp.MustCompile(`(?i)\s*#\s*(SKIP|TODO)\b\s*(.*)$`)
	tapPlanRe      = regexp.MustCompile(`^\d+\.\.\d+`)
)

// tapFrame is one open subtest declaration. hasChildren flips once anything
// nests inside it, which is what distinguishes a suite from a leaf when its
// closing result line pops it.
type tapFrame struct {
	name        string
	hasChildren bool
}

// ParseTAP parses the line-oriented protocol: result lines, subtest
// declaration lines, and ---/... diagnostic blocks carrying a YAML subset.
//
// Subtest declarations push frames; a result line matching the top frame pops
// it. A popped frame below the root that never gained children is a leaf test
// and is emitted with the remaining stack as its ancestors; anything else was
// a suite (or the file-level wrapper) and only summarizes results already
// reported. Result lines matching no open frame are leaves at the current
// depth, which covers flat emitters that skip declarations.
func ParseTAP(text string) (*types.RunResult, bool) {
	var (
		stack      []tapFrame
		assertions []types.AssertionResult
		lastLeaf   = -1
		sawTAP     bool
	)

	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")
		trimmed := strings.TrimLeft(line, " \t")

		switch {
		case tapVersionRe.MatchString(trimmed):
			sawTAP = true

		case tapSubtestRe.MatchString(trimmed):
			sawTAP = true
			name := tapSubtestRe.FindStringSubmatch(trimmed)[1]
			if len(stack) > 0 {
				stack[len(stack)-1].hasChildren = true
			}
			stack = append(stack, tapFrame{name: name})

		case trimmed == "---":
			block, next := collectDiagnostic(lines, i)
			i = next
			if lastLeaf >= 0 {
				applyDiagnostic(&assertions[lastLeaf], block)
			}

		case tapPlanRe.MatchString(trimmed):
			sawTAP = true

		case tapResultRe.MatchString(trimmed):
			sawTAP = true
			m := tapResultRe.FindStringSubmatch(trimmed)
			status, name := tapResultStatus(m)

			if n := len(stack); n > 0 && stack[n-1].name == name {
				frame := stack[n-1]
				stack = stack[:n-1]
				if frame.hasChildren || len(stack) == 0 {
					// Suite summary, or the file-level wrapper frame.
					continue
				}
				assertions = append(assertions, tapLeaf(name, status, stack))
				lastLeaf = len(assertions) - 1
				continue
			}

			if len(stack) > 0 {
				stack[len(stack)-1].hasChildren = true
			}
			assertions = append(assertions, tapLeaf(name, status, stack))
			lastLeaf = len(assertions) - 1
		}
	}

	if !sawTAP {
		return nil, false
	}

	run := &types.RunResult{}
	if len(assertions) > 0 {
		run.TestResults = []types.FileResult{{AssertionResults: assertions}}
	}
	run.Recount()
	return run, true
}

// tapResultStatus decodes a matched result line into a status and case name.
func tapResultStatus(m []string) (types.AssertionStatus, string) {
	status := types.AssertionPassed
	if m[1] != "" {
		status = types.AssertionFailed
	}

	description := m[3]
	if dm := tapDirectiveRe.FindStringSubmatchIndex(description); dm != nil {
		directive := strings.ToUpper(description[dm[2]:dm[3]])
		description = description[:dm[0]]
		switch directive {
		case "SKIP":
			status = types.AssertionSkipped
		case "TODO":
			status = types.AssertionTodo
		}
	}

	name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(description), "-"))
	return status, strings.TrimSpace(name)
}

func tapLeaf(name string, status types.AssertionStatus, stack []tapFrame) types.AssertionResult {
	var ancestors []string
	for _, frame := range stack {
		ancestors = append(ancestors, frame.name)
	}
	a := types.AssertionResult{
		AncestorTitles: ancestors,
		Title:          name,
		Status:         status,
	}
	a.FullName = joinTitles(ancestors, name)
	return a
}

// collectDiagnostic gathers the lines of a ---/... block starting at the
// opening line's index and decodes them as YAML. It returns the index of the
// closing line and tolerates unterminated blocks at EOF.
func collectDiagnostic(lines []string, open int) (map[string]any, int) {
	indent := leadingWhitespace(lines[open])
	var body []string
	i := open + 1
	for ; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")
		if strings.TrimLeft(line, " \t") == "..." {
			break
		}
		body = append(body, strings.TrimPrefix(line, indent))
	}

	block := make(map[string]any)
	if err := yaml.Unmarshal([]byte(strings.Join(body, "\n")), &block); err != nil {
		return nil, i
	}
	return block, i
}

func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// applyDiagnostic folds a decoded diagnostic block into the assertion it
// follows: failure detail, timing and source position.
func applyDiagnostic(a *types.AssertionResult, block map[string]any) {
	if block == nil {
		return
	}

	if a.Status == types.AssertionFailed {
		var messages []string
		for _, key := range []string{"error", "message", "stack"} {
			if v, ok := block[key]; ok {
				if s := scalarString(v); s != "" {
					messages = append(messages, s)
				}
			}
		}
		if len(messages) > 0 {
			a.FailureMessages = append(a.FailureMessages, messages...)
		}
	}

	if v, ok := block["duration_ms"]; ok {
		if ms, ok := scalarFloat(v); ok {
			a.Duration = &ms
		}
	}

	line, hasLine := block["line"]
	if hasLine {
		if l, ok := scalarInt(line); ok && l >= 1 {
			loc := &types.Location{Line: l}
			if c, ok := block["column"]; ok {
				if col, ok := scalarInt(c); ok && col >= 0 {
					loc.Column = col
				}
			}
			a.Location = loc
		}
	}
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func scalarFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

func scalarInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	case string:
		var i int
		if _, err := fmt.Sscanf(n, "%d", &i); err == nil {
			return i, true
		}
	}
	return 0, false
}
