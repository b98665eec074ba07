package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/fossil/internal/types"
)

func marker(markerType, file string, line, ageDays int, author string) types.DebtMarker {
	m := types.DebtMarker{
		MarkerType:  markerType,
		FilePath:    file,
		LineNumber:  line,
		LineContent: "// " + markerType + ": test",
	}
	if author != "" {
		m.History = &types.HistoryInfo{
			Author:      author,
			AuthorEmail: author + "@example.com",
			Revision:    "abc1234",
			CommitTime:  time.Now().UTC().Add(-time.Duration(ageDays) * 24 * time.Hour),
			AgeDays:     ageDays,
		}
	}
	return m
}

func buildReport(markers ...types.DebtMarker) *DebtReport {
	b := NewBuilder("/tmp/project", time.Now().UTC())
	b.Add(markers)
	return b.Build()
}

func TestBuilderCounts(t *testing.T) {
	r := buildReport(
		marker("TODO", "a.go", 1, 10, "alice"),
		marker("TODO", "a.go", 9, 0, ""),
		marker("FIXME", "b.go", 3, 45, "bob"),
	)

	assert.Equal(t, 3, r.TotalCount())
	assert.Equal(t, map[string]int{"TODO": 2, "FIXME": 1}, r.ByType)
	assert.Equal(t, map[string]int{"alice": 1, "bob": 1}, r.ByAuthor)

	// sum(by_type) == len(markers); sum(by_author) <= len(markers)
	total := 0
	for _, n := range r.ByType {
		total += n
	}
	assert.Equal(t, len(r.Markers), total)

	attributed := 0
	for _, n := range r.ByAuthor {
		attributed += n
	}
	assert.LessOrEqual(t, attributed, len(r.Markers))
}

func TestOldestMarkersOrdering(t *testing.T) {
	r := buildReport(
		marker("TODO", "z.go", 5, 10, "alice"),
		marker("FIXME", "a.go", 2, 45, "bob"),
		marker("HACK", "m.go", 1, 45, "carol"),
		marker("NOTE", "m.go", 9, 45, "carol"),
		marker("XXX", "u.go", 7, 0, ""), // no history, excluded
	)

	top := r.OldestMarkers(10)
	require.Len(t, top, 4)

	// Non-increasing age; ties broken by (file, line) ascending.
	assert.Equal(t, "a.go", top[0].FilePath)
	assert.Equal(t, "m.go", top[1].FilePath)
	assert.Equal(t, 1, top[1].LineNumber)
	assert.Equal(t, 9, top[2].LineNumber)
	assert.Equal(t, "z.go", top[3].FilePath)

	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].History.AgeDays, top[i].History.AgeDays)
	}
}

func TestOldestMarkersLimit(t *testing.T) {
	r := buildReport(
		marker("TODO", "a.go", 1, 30, "alice"),
		marker("TODO", "b.go", 1, 20, "alice"),
		marker("TODO", "c.go", 1, 10, "alice"),
	)

	top := r.OldestMarkers(2)
	require.Len(t, top, 2)
	assert.Equal(t, 30, top[0].History.AgeDays)
	assert.Equal(t, 20, top[1].History.AgeDays)

	assert.Len(t, r.OldestMarkers(0), 3)
}

func TestFilterByType(t *testing.T) {
	r := buildReport(
		marker("TODO", "a.go", 1, 10, "alice"),
		marker("FIXME", "b.go", 2, 20, "bob"),
		marker("TODO", "c.go", 3, 0, ""),
	)

	todos := r.FilterByType("todo")
	require.Len(t, todos, 2)
	for _, m := range todos {
		assert.Equal(t, "TODO", m.MarkerType)
	}

	// Non-destructive: the stored report is untouched.
	assert.Equal(t, 3, r.TotalCount())
}

func TestFilterByAuthor(t *testing.T) {
	r := buildReport(
		marker("TODO", "a.go", 1, 10, "Alice"),
		marker("TODO", "b.go", 2, 20, "Bob"),
		marker("TODO", "c.go", 3, 0, ""),
	)

	assert.Len(t, r.FilterByAuthor("alice"), 1)

	// Substring match over name and email.
	assert.Len(t, r.FilterByAuthor("ob"), 1)
	assert.Len(t, r.FilterByAuthor("example.com"), 2)

	// Empty query matches every attributed marker, never the
	// unattributed one.
	assert.Len(t, r.FilterByAuthor(""), 2)
}

func TestFilterOlderThan(t *testing.T) {
	r := buildReport(
		marker("TODO", "a.go", 1, 10, "alice"),
		marker("TODO", "b.go", 2, 45, "bob"),
		marker("TODO", "c.go", 3, 0, ""),
	)

	old := r.FilterOlderThan(30)
	require.Len(t, old, 1)
	assert.Equal(t, 45, old[0].History.AgeDays)

	// Unknown age is not zero age: unattributed markers stay out
	// even with a zero threshold.
	assert.Len(t, r.FilterOlderThan(0), 2)
}

func TestSummarize(t *testing.T) {
	markers := []types.DebtMarker{
		marker("TODO", "a.go", 1, 10, "alice"),
		marker("TODO", "b.go", 2, 20, "alice"),
		marker("HACK", "c.go", 3, 0, ""),
	}

	byType, byAuthor := Summarize(markers)
	assert.Equal(t, map[string]int{"TODO": 2, "HACK": 1}, byType)
	assert.Equal(t, map[string]int{"alice": 2}, byAuthor)
}

func TestBuilderWarnings(t *testing.T) {
	b := NewBuilder(".", time.Now().UTC())
	b.AddWarning(types.Warning{Path: "big.bin", Reason: types.SkipTooLarge})
	r := b.Build()

	require.Len(t, r.Warnings, 1)
	assert.Equal(t, types.SkipTooLarge, r.Warnings[0].Reason)
	assert.Zero(t, r.TotalCount())
}
