// Package render formats a debt report for terminal, markdown, or
// JSON output. It only reads the report through its query surface.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/steveyegge/fossil/internal/report"
	"github.com/steveyegge/fossil/internal/types"
)

// Format selects an output renderer.
type Format string

const (
	FormatTerminal Format = "terminal"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat validates a format name from the CLI.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatTerminal, FormatMarkdown, FormatJSON:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown format %q: use terminal, markdown, or json", s)
}

// Options controls filtering and sizing of the rendered view. The
// stored report is never mutated.
type Options struct {
	// Type keeps only markers of this type (case-insensitive exact)
	Type string

	// Author keeps only markers attributed to a matching author
	Author string

	// MinAgeDays keeps only markers at least this old; negative
	// disables the filter
	MinAgeDays int

	// Top bounds the oldest-markers section
	Top int

	// CountOnly suppresses everything except summary counts
	CountOnly bool
}

// Render writes the report to w in the requested format.
func Render(w io.Writer, r *report.DebtReport, format Format, opts Options) error {
	markers := selectMarkers(r, opts)

	switch format {
	case FormatMarkdown:
		return renderMarkdown(w, r, markers, opts)
	case FormatJSON:
		return renderJSON(w, r, markers)
	default:
		return renderTerminal(w, r, markers, opts)
	}
}

// selectMarkers applies the option filters through the report's
// query operations.
func selectMarkers(r *report.DebtReport, opts Options) []types.DebtMarker {
	markers := r.Markers
	if opts.Type != "" {
		markers = r.FilterByType(opts.Type)
	}
	if opts.Author != "" {
		markers = intersect(markers, r.FilterByAuthor(opts.Author))
	}
	if opts.MinAgeDays >= 0 {
		markers = intersect(markers, r.FilterOlderThan(opts.MinAgeDays))
	}
	return markers
}

// intersect keeps the markers of a that also appear in b, preserving
// a's order. Marker identity is (file, line).
func intersect(a, b []types.DebtMarker) []types.DebtMarker {
	keys := make(map[string]bool, len(b))
	for _, m := range b {
		keys[fmt.Sprintf("%s:%d", m.FilePath, m.LineNumber)] = true
	}
	var out []types.DebtMarker
	for _, m := range a {
		if keys[fmt.Sprintf("%s:%d", m.FilePath, m.LineNumber)] {
			out = append(out, m)
		}
	}
	return out
}

// oldest sorts a marker subset the same way the report orders its
// top-N view: age descending, then (file, line) ascending.
func oldest(markers []types.DebtMarker, n int) []types.DebtMarker {
	var aged []types.DebtMarker
	for _, m := range markers {
		if m.History != nil {
			aged = append(aged, m)
		}
	}
	sort.Slice(aged, func(i, j int) bool {
		if aged[i].History.AgeDays != aged[j].History.AgeDays {
			return aged[i].History.AgeDays > aged[j].History.AgeDays
		}
		if aged[i].FilePath != aged[j].FilePath {
			return aged[i].FilePath < aged[j].FilePath
		}
		return aged[i].LineNumber < aged[j].LineNumber
	})
	if n > 0 && len(aged) > n {
		aged = aged[:n]
	}
	return aged
}

func renderTerminal(w io.Writer, r *report.DebtReport, markers []types.DebtMarker, opts Options) error {
	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "%s\n", cyan("Fossil - Technical Debt Report"))
	fmt.Fprintf(w, "Scanned: %s\n", r.ScanRoot)
	fmt.Fprintf(w, "Scan time: %s\n", r.ScanTime.Format(time.RFC3339))
	fmt.Fprintf(w, "Markers: %d\n\n", len(markers))

	if opts.CountOnly {
		return nil
	}

	byType, byAuthor := report.Summarize(markers)

	if len(byType) > 0 {
		fmt.Fprintf(w, "%s\n", yellow("By type:"))
		for _, kv := range sortedCounts(byType) {
			fmt.Fprintf(w, "  %-8s %d\n", kv.key, kv.count)
		}
		fmt.Fprintln(w)
	}

	if len(byAuthor) > 0 {
		fmt.Fprintf(w, "%s\n", yellow("By author:"))
		for _, kv := range sortedCounts(byAuthor) {
			fmt.Fprintf(w, "  %-24s %d\n", kv.key, kv.count)
		}
		fmt.Fprintln(w)
	}

	top := oldest(markers, opts.Top)
	if len(top) > 0 {
		fmt.Fprintf(w, "%s\n", yellow(fmt.Sprintf("Oldest markers (top %d):", len(top))))
		for _, m := range top {
			fmt.Fprintf(w, "  %s %s %s:%d %s\n",
				green(fmt.Sprintf("%-4s", m.History.AgeDisplay())),
				cyan(m.MarkerType),
				m.FilePath, m.LineNumber,
				gray(m.History.Author))
			fmt.Fprintf(w, "       %s\n", strings.TrimSpace(m.LineContent))
		}
		fmt.Fprintln(w)
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintf(w, "%s\n", yellow(fmt.Sprintf("Warnings (%d):", len(r.Warnings))))
		for _, warning := range r.Warnings {
			fmt.Fprintf(w, "  %s\n", gray(warning.String()))
		}
	}

	return nil
}

func renderMarkdown(w io.Writer, r *report.DebtReport, markers []types.DebtMarker, opts Options) error {
	fmt.Fprintf(w, "# Technical Debt Report\n\n")
	fmt.Fprintf(w, "- **Scanned:** %s\n", r.ScanRoot)
	fmt.Fprintf(w, "- **Scan time:** %s\n", r.ScanTime.Format(time.RFC3339))
	fmt.Fprintf(w, "- **Markers:** %d\n\n", len(markers))

	if opts.CountOnly {
		return nil
	}

	byType, byAuthor := report.Summarize(markers)

	if len(byType) > 0 {
		fmt.Fprintf(w, "## By Type\n\n| Type | Count |\n|------|-------|\n")
		for _, kv := range sortedCounts(byType) {
			fmt.Fprintf(w, "| %s | %d |\n", kv.key, kv.count)
		}
		fmt.Fprintln(w)
	}

	if len(byAuthor) > 0 {
		fmt.Fprintf(w, "## By Author\n\n| Author | Count |\n|--------|-------|\n")
		for _, kv := range sortedCounts(byAuthor) {
			fmt.Fprintf(w, "| %s | %d |\n", kv.key, kv.count)
		}
		fmt.Fprintln(w)
	}

	top := oldest(markers, opts.Top)
	if len(top) > 0 {
		fmt.Fprintf(w, "## Oldest Markers\n\n| Age | Type | Location | Author | Line |\n|-----|------|----------|--------|------|\n")
		for _, m := range top {
			fmt.Fprintf(w, "| %s | %s | %s:%d | %s | `%s` |\n",
				m.History.AgeDisplay(), m.MarkerType,
				m.FilePath, m.LineNumber,
				m.History.Author,
				strings.TrimSpace(m.LineContent))
		}
		fmt.Fprintln(w)
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintf(w, "## Warnings\n\n")
		for _, warning := range r.Warnings {
			fmt.Fprintf(w, "- %s\n", warning.String())
		}
	}

	return nil
}

// jsonReport is the stable JSON shape: the report metadata plus the
// filtered marker view and its derived counts.
type jsonReport struct {
	ScanID   string             `json:"scan_id"`
	ScanRoot string             `json:"scan_root"`
	ScanTime time.Time          `json:"scan_time"`
	Total    int                `json:"total_count"`
	ByType   map[string]int     `json:"by_type"`
	ByAuthor map[string]int     `json:"by_author"`
	Markers  []types.DebtMarker `json:"markers"`
	Warnings []types.Warning    `json:"warnings,omitempty"`
}

func renderJSON(w io.Writer, r *report.DebtReport, markers []types.DebtMarker) error {
	byType, byAuthor := report.Summarize(markers)

	out := jsonReport{
		ScanID:   r.ScanID,
		ScanRoot: r.ScanRoot,
		ScanTime: r.ScanTime,
		Total:    len(markers),
		ByType:   byType,
		ByAuthor: byAuthor,
		Markers:  markers,
		Warnings: r.Warnings,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

type keyCount struct {
	key   string
	count int
}

// sortedCounts orders counts descending, ties by key for stable
// output.
func sortedCounts(counts map[string]int) []keyCount {
	out := make([]keyCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, keyCount{k, v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	return out
}
