// Package report renders translation statistics as an HTML table fragment,
// a terminal table or JSON.
package report

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/minios-linux/catsync/langmeta"
	"github.com/minios-linux/catsync/stats"
)

//go:embed templates/*.html
var templateFS embed.FS

var tmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"percent": formatPercent,
	"width":   func(p float64) string { return strconv.FormatFloat(clamp(p), 'f', 1, 64) },
	"comma":   func(n int) string { return humanize.Comma(int64(n)) },
}).ParseFS(templateFS, "templates/*.html"))

// Grouping selects what the table rows represent.
type Grouping string

const (
	ByProject   Grouping = "project"
	ByComponent Grouping = "component"
	ByLanguage  Grouping = "language"
)

// ParseGrouping validates a grouping name.
func ParseGrouping(s string) (Grouping, error) {
	switch g := Grouping(s); g {
	case ByProject, ByComponent, ByLanguage:
		return g, nil
	}
	return "", fmt.Errorf("unknown grouping %q (valid: project, component, language)", s)
}

// Row is one line of the table.
type Row struct {
	Name   string
	Detail string
	Flag   string
	// Below is set when the translated percentage is under the threshold.
	Below bool
	stats.Stats
}

// Table is the view model of the statistics table.
type Table struct {
	Title string
	Rows  []Row
	Total *Row
}

// Options tune table building.
type Options struct {
	Group Grouping
	// MinPercent flags rows translated below it; 0 disables the flag.
	MinPercent float64
}

// Build turns a report into table rows.
func Build(r *stats.Report, opts Options) Table {
	var t Table
	row := func(name, detail string, s stats.Stats) Row {
		return Row{Name: name, Detail: detail, Below: opts.MinPercent > 0 && s.TranslatedPercent < opts.MinPercent, Stats: s}
	}

	switch opts.Group {
	case ByLanguage:
		t.Title = "Language"
		for _, l := range r.Languages {
			meta := langmeta.Resolve(l.Code)
			rw := row(meta.Name, l.Code, l.Stats)
			rw.Flag = meta.Flag()
			if meta.Name == l.Code {
				rw.Detail = ""
			}
			t.Rows = append(t.Rows, rw)
		}
	case ByComponent:
		t.Title = "Component"
		for _, p := range r.Projects {
			for _, c := range p.Components {
				t.Rows = append(t.Rows, row(c.Name, p.Name, c.Stats))
			}
		}
	default:
		t.Title = "Project"
		for _, p := range r.Projects {
			t.Rows = append(t.Rows, row(p.Name, "", p.Stats))
		}
	}

	if len(t.Rows) > 1 {
		total := row("Total", "", r.Total)
		total.Below = false
		t.Total = &total
	}
	return t
}

// HTML writes the table as an HTML fragment.
func HTML(w io.Writer, t Table) error {
	return tmpl.ExecuteTemplate(w, "table", t)
}

// JSON writes the whole report as indented JSON.
func JSON(w io.Writer, r *stats.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// ANSI colors for the terminal table.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
)

// Text writes the table for a terminal. Colors are used unless noColor.
func Text(w io.Writer, t Table, noColor bool) error {
	nameWidth := len(t.Title)
	for _, r := range append(append([]Row(nil), t.Rows...), totalRows(t)...) {
		if n := len([]rune(label(r))); n > nameWidth {
			nameWidth = n
		}
	}

	line := strings.Repeat("─", nameWidth+62)
	fmt.Fprintf(w, "%-*s   %-26s %10s %10s %8s %8s\n", nameWidth, t.Title, "Translated", "Strings", "Todo", "Words", "Checks")
	fmt.Fprintln(w, line)
	for _, r := range t.Rows {
		writeTextRow(w, r, nameWidth, noColor)
	}
	if t.Total != nil {
		fmt.Fprintln(w, line)
		writeTextRow(w, *t.Total, nameWidth, noColor)
	}
	return nil
}

func totalRows(t Table) []Row {
	if t.Total == nil {
		return nil
	}
	return []Row{*t.Total}
}

func label(r Row) string {
	if r.Detail == "" {
		return r.Name
	}
	return r.Name + " (" + r.Detail + ")"
}

func writeTextRow(w io.Writer, r Row, nameWidth int, noColor bool) {
	name := label(r)
	pad := nameWidth - len([]rune(name))
	if pad < 0 {
		pad = 0
	}
	mark := " "
	if r.Below {
		mark = "!"
	}
	fmt.Fprintf(w, "%s%s %s %10s %10s %8s %8s %8s\n",
		name, strings.Repeat(" ", pad), mark,
		ProgressBar(r.TranslatedPercent, 20, noColor),
		humanize.Comma(int64(r.Total)),
		humanize.Comma(int64(r.Todo)),
		humanize.Comma(int64(r.TodoWords)),
		humanize.Comma(int64(r.AllChecks)),
	)
}

// ProgressBar draws a bar of width cells followed by the percentage.
func ProgressBar(percent float64, width int, noColor bool) string {
	percent = clamp(percent)
	filled := int(percent * float64(width) / 100)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	text := fmt.Sprintf("%6s", formatPercent(percent))
	if noColor {
		return bar + text
	}

	color := colorRed
	switch {
	case percent >= 100:
		color = colorGreen
	case percent >= 50:
		color = colorYellow
	}
	return color + bar + colorReset + text
}

func clamp(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64) + "%"
}
