package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/VoidMesh/txlab/internal/db"
	"github.com/VoidMesh/txlab/internal/harness"
)

var (
	PrimaryColor   = lipgloss.Color("#7D56F4")
	SecondaryColor = lipgloss.Color("#04B575")
	DangerColor    = lipgloss.Color("#F25D94")
	LightGray      = lipgloss.Color("#D9D9D9")
	Gray           = lipgloss.Color("#8B8B8B")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	TableHeaderStyle = lipgloss.NewStyle().
				Foreground(PrimaryColor).
				Bold(true).
				Align(lipgloss.Center).
				Padding(0, 1)

	TableCellStyle = lipgloss.NewStyle().
			Foreground(LightGray).
			Padding(0, 1)

	SuccessStyle = lipgloss.NewStyle().Foreground(SecondaryColor)
	DangerStyle  = lipgloss.NewStyle().Foreground(DangerColor).Bold(true)
	MutedStyle   = lipgloss.NewStyle().Foreground(Gray)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Gray)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		})
}

// columns returns the column names of a result in a stable order.
func columns(result db.Result) []string {
	seen := map[string]bool{}
	var cols []string
	for _, row := range result {
		for c := range row {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func renderResult(w io.Writer, result db.Result) {
	if result.Len() == 0 {
		fmt.Fprintln(w, MutedStyle.Render("(0 rows)"))
		return
	}
	cols := columns(result)
	t := newTable(cols...)
	for _, row := range result {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = formatValue(row[c])
		}
		t.Row(cells...)
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, MutedStyle.Render(fmt.Sprintf("(%d rows)", result.Len())))
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func renderSummary(w io.Writer, s harness.Summary) {
	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("Parallel insert  %s  run %s", s.Isolation.Slug(), s.RunID)))

	t := newTable("worker", "successful", "exceptions", "time", "avg/record")
	for _, o := range s.Outcomes {
		t.Row(
			strconv.Itoa(o.Worker),
			strconv.Itoa(o.SuccessfulInserts),
			strconv.Itoa(o.Exceptions),
			o.Elapsed.String(),
			o.AveragePerRecord().String(),
		)
	}
	fmt.Fprintln(w, t.Render())

	totals := newTable("attempted", "successful", "exceptions", "total time", "avg/record")
	totals.Row(
		strconv.Itoa(s.TotalAttempted),
		strconv.Itoa(s.TotalSuccessful),
		strconv.Itoa(s.TotalExceptions),
		s.TotalElapsed.String(),
		s.AveragePerRecord().String(),
	)
	fmt.Fprintln(w, totals.Render())
}

func renderConflict(w io.Writer, r harness.ConflictReport) {
	fmt.Fprintln(w, TitleStyle.Render("Serializable conflict  run "+r.RunID))

	t := newTable("party", "outcome", "error")
	for _, p := range r.Parties {
		outcome := SuccessStyle.Render("committed")
		if !p.Committed {
			outcome = DangerStyle.Render("rolled back")
		}
		t.Row(p.Name, outcome, p.Error)
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "exceptions: %d  committed: %d  rows: %d -> %d  time: %s\n",
		r.Exceptions, r.Committed, r.InitialRows, r.FinalRows, r.Elapsed)
}

func renderMigration(w io.Writer, r db.MigrationReport) {
	if !r.Applied {
		fmt.Fprintln(w, MutedStyle.Render(fmt.Sprintf("Schema up to date at version %d", r.VersionAfter)))
		return
	}
	fmt.Fprintln(w, SuccessStyle.Render(fmt.Sprintf("Migrated from version %d to %d", r.VersionBefore, r.VersionAfter)))
}

func renderPlan(w io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}
