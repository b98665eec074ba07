// Package report holds the aggregated result of one scan and the
// query operations the rendering layer builds on.
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/fossil/internal/types"
)

// DebtReport is the aggregate result of one scan. It is immutable
// once built; all query operations return views, never mutate.
type DebtReport struct {
	// ScanID uniquely identifies this scan run
	ScanID string `json:"scan_id"`

	// ScanRoot is the path that was scanned
	ScanRoot string `json:"scan_root"`

	// ScanTime is the single reference point for every age in the
	// report, captured at scan start
	ScanTime time.Time `json:"scan_time"`

	// Markers is the full marker list. Internal order may vary
	// between runs with different concurrency; content does not.
	Markers []types.DebtMarker `json:"markers"`

	// ByType counts markers per marker type
	ByType map[string]int `json:"by_type"`

	// ByAuthor counts markers per attributed author. Markers
	// without history are not counted here.
	ByAuthor map[string]int `json:"by_author"`

	// Warnings lists files skipped non-fatally during the scan
	Warnings []types.Warning `json:"warnings,omitempty"`
}

// TotalCount returns the number of markers in the report.
func (r *DebtReport) TotalCount() int {
	return len(r.Markers)
}

// OldestMarkers returns up to n markers ordered by age descending.
// Ties break by (file path, line number) ascending so the ordering
// is reproducible across runs. Markers without history are excluded:
// their age is unknown, not zero. n <= 0 returns all aged markers.
func (r *DebtReport) OldestMarkers(n int) []types.DebtMarker {
	aged := make([]types.DebtMarker, 0, len(r.Markers))
	for _, m := range r.Markers {
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

// FilterByType returns markers of the given type, matched
// case-insensitively.
func (r *DebtReport) FilterByType(markerType string) []types.DebtMarker {
	want := strings.ToLower(markerType)
	return filter(r.Markers, func(m types.DebtMarker) bool {
		return strings.ToLower(m.MarkerType) == want
	})
}

// FilterByAuthor returns markers attributed to an author whose name
// or email contains the query, case-insensitively. Markers without
// history never match.
func (r *DebtReport) FilterByAuthor(author string) []types.DebtMarker {
	want := strings.ToLower(author)
	return filter(r.Markers, func(m types.DebtMarker) bool {
		if m.History == nil {
			return false
		}
		return strings.Contains(strings.ToLower(m.History.Author), want) ||
			strings.Contains(strings.ToLower(m.History.AuthorEmail), want)
	})
}

// FilterOlderThan returns markers at least minDays old. Markers
// without history are excluded regardless of minDays.
func (r *DebtReport) FilterOlderThan(minDays int) []types.DebtMarker {
	return filter(r.Markers, func(m types.DebtMarker) bool {
		return m.History != nil && m.History.AgeDays >= minDays
	})
}

func filter(markers []types.DebtMarker, keep func(types.DebtMarker) bool) []types.DebtMarker {
	var out []types.DebtMarker
	for _, m := range markers {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// Summarize recomputes type and author counts for an arbitrary
// marker subset, e.g. after the rendering layer applies filters.
func Summarize(markers []types.DebtMarker) (byType, byAuthor map[string]int) {
	byType = make(map[string]int)
	byAuthor = make(map[string]int)
	for _, m := range markers {
		byType[m.MarkerType]++
		if m.History != nil {
			byAuthor[m.History.Author]++
		}
	}
	return byType, byAuthor
}

// Builder merges per-file batches into a DebtReport. It is the
// single point of serialization for a scan: exactly one goroutine
// may call Add/AddWarning, which is what keeps the count invariants
// exact under any worker count.
type Builder struct {
	report *DebtReport
}

// NewBuilder starts a report for one scan. scanTime is the reference
// point for every age computation in the finished report.
func NewBuilder(scanRoot string, scanTime time.Time) *Builder {
	return &Builder{
		report: &DebtReport{
			ScanID:   uuid.New().String(),
			ScanRoot: scanRoot,
			ScanTime: scanTime,
			ByType:   make(map[string]int),
			ByAuthor: make(map[string]int),
		},
	}
}

// Add merges one file's markers into the report.
func (b *Builder) Add(markers []types.DebtMarker) {
	for _, m := range markers {
		b.report.Markers = append(b.report.Markers, m)
		b.report.ByType[m.MarkerType]++
		if m.History != nil {
			b.report.ByAuthor[m.History.Author]++
		}
	}
}

// AddWarning records a non-fatal skip.
func (b *Builder) AddWarning(w types.Warning) {
	b.report.Warnings = append(b.report.Warnings, w)
}

// Build returns the finished report. The builder must not be used
// afterwards.
func (b *Builder) Build() *DebtReport {
	return b.report
}
