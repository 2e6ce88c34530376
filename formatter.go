package testpipe

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/testpipe/testpipe/types"
)

// ResultFormatter renders per-identity outcomes for a human.
type ResultFormatter interface {
	FormatOutcomes(outcomes []types.Outcome) error
}

// TableResultFormatter renders outcomes as a console table.
type TableResultFormatter struct {
	out io.Writer
}

// NewTableResultFormatter creates a formatter writing to out.
func NewTableResultFormatter(out io.Writer) *TableResultFormatter {
	return &TableResultFormatter{out: out}
}

// FormatOutcomes writes one row per identity, in report order.
func (f *TableResultFormatter) FormatOutcomes(outcomes []types.Outcome) error {
	t := table.NewWriter()
	t.SetOutputMirror(f.out)

	passed, failed, skipped, errored := tallyOutcomes(outcomes)
	t.SetTitle(fmt.Sprintf("Test Results: %d passed, %d failed, %d skipped, %d errored",
		passed, failed, skipped, errored))

	t.AppendHeader(table.Row{"Status", "Test", "Duration", "Detail"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Test", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Detail", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, outcome := range outcomes {
		t.AppendRow(table.Row{
			statusGlyph(outcome.Status),
			outcome.Identity.Label,
			formatOutcomeDuration(outcome.Duration),
			outcomeDetail(outcome),
		})
	}

	t.Render()
	return nil
}

func tallyOutcomes(outcomes []types.Outcome) (passed, failed, skipped, errored int) {
	for _, o := range outcomes {
		switch o.Status {
		case types.OutcomePassed:
			passed++
		case types.OutcomeFailed:
			failed++
		case types.OutcomeSkipped:
			skipped++
		case types.OutcomeErrored:
			errored++
		}
	}
	return
}

func statusGlyph(status types.OutcomeStatus) string {
	switch status {
	case types.OutcomePassed:
		return "✓ pass"
	case types.OutcomeSkipped:
		return "- skip"
	case types.OutcomeErrored:
		return "! error"
	default:
		return "✗ fail"
	}
}

func formatOutcomeDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func outcomeDetail(outcome types.Outcome) string {
	detail := outcome.Message
	if outcome.Location != nil {
		detail = fmt.Sprintf("%s (line %d)", detail, outcome.Location.Line)
	}
	return detail
}
