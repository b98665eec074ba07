package types

import (
	"fmt"
	"time"
)

// DebtMarker represents one debt comment discovered in a source file
type DebtMarker struct {
	// MarkerType is the keyword that triggered the match (TODO, FIXME, ...).
	// Always a member of the configured marker set.
	MarkerType string `json:"marker_type"`

	// FilePath is relative to the scan root, using forward slashes
	FilePath string `json:"file_path"`

	// LineNumber is the 1-based physical line index of the marker line
	LineNumber int `json:"line_number"`

	// LineContent is the raw source line containing the marker
	LineContent string `json:"line_content"`

	// ContextBefore and ContextAfter hold up to context_lines raw lines
	// on either side of the marker, clipped at file boundaries
	ContextBefore []string `json:"context_before,omitempty"`
	ContextAfter  []string `json:"context_after,omitempty"`

	// Severity is the user-configured label for this marker type, if any.
	// Carried through for reporting; the scanner never interprets it.
	Severity string `json:"severity,omitempty"`

	// History is the version-control attribution for the marker line.
	// Nil when the file has no usable history (untracked, no repository,
	// blame failed or timed out).
	History *HistoryInfo `json:"history,omitempty"`
}

// Validate checks if the marker has valid field values
func (m *DebtMarker) Validate() error {
	if m.MarkerType == "" {
		return fmt.Errorf("marker_type is required")
	}
	if m.FilePath == "" {
		return fmt.Errorf("file_path is required")
	}
	if m.LineNumber < 1 {
		return fmt.Errorf("line_number must be 1-based (got %d)", m.LineNumber)
	}
	if m.History != nil && m.History.AgeDays < 0 {
		return fmt.Errorf("age_days cannot be negative (got %d)", m.History.AgeDays)
	}
	return nil
}

// HistoryInfo is the version-control attribution for a single line.
type HistoryInfo struct {
	// Author name from the commit that last touched the line
	Author string `json:"author"`

	// AuthorEmail from the same commit
	AuthorEmail string `json:"author_email"`

	// Revision is the abbreviated commit hash
	Revision string `json:"revision"`

	// CommitTime is when the line was committed (UTC)
	CommitTime time.Time `json:"commit_time"`

	// AgeDays is whole days between CommitTime and the scan's reference
	// time. Never negative: future commit times clamp to 0.
	AgeDays int `json:"age_days"`
}

// AgeDisplay formats the age as a compact human-readable string
// (e.g., "15d", "2m", "1y").
func (h *HistoryInfo) AgeDisplay() string {
	switch {
	case h.AgeDays < 30:
		return fmt.Sprintf("%dd", h.AgeDays)
	case h.AgeDays < 365:
		return fmt.Sprintf("%dm", h.AgeDays/30)
	default:
		return fmt.Sprintf("%dy", h.AgeDays/365)
	}
}

// AgeDays computes the whole-day age of commitTime relative to scanTime.
// Clock skew can put commitTime after scanTime; that clamps to 0 rather
// than going negative.
func AgeDays(scanTime, commitTime time.Time) int {
	days := int(scanTime.Sub(commitTime) / (24 * time.Hour))
	if days < 0 {
		return 0
	}
	return days
}

// SkipReason explains why a file was excluded from a scan.
type SkipReason string

const (
	// SkipTooLarge means the file exceeded the configured size ceiling
	SkipTooLarge SkipReason = "too-large"

	// SkipUnreadable means the file or directory could not be read
	SkipUnreadable SkipReason = "unreadable"

	// SkipUndecodable means the file does not look like text
	SkipUndecodable SkipReason = "undecodable"
)

// IsValid checks if the skip reason is a known value
func (r SkipReason) IsValid() bool {
	switch r {
	case SkipTooLarge, SkipUnreadable, SkipUndecodable:
		return true
	}
	return false
}

// Warning records a non-fatal problem encountered during a scan.
// Warnings are attached to the report; they never fail the scan.
type Warning struct {
	Path   string     `json:"path"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

func (w Warning) String() string {
	if w.Detail != "" {
		return fmt.Sprintf("%s: skipped (%s): %s", w.Path, w.Reason, w.Detail)
	}
	return fmt.Sprintf("%s: skipped (%s)", w.Path, w.Reason)
}
