package scanner

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/steveyegge/fossil/internal/types"
)

// maxLineBytes caps a single source line. Lines past this are a
// strong signal the file is not hand-written text; the file is
// skipped as undecodable.
const maxLineBytes = 1024 * 1024

// Extractor finds debt markers in a single file's line stream.
//
// Detection is deliberately line-oriented: a keyword inside a string
// literal is indistinguishable from one inside a comment, and that
// false positive is accepted rather than requiring per-language
// parsing.
type Extractor struct {
	pattern      *regexp.Regexp
	contextLines int
	severity     map[string]string
}

// NewExtractor compiles the marker pattern once for the whole scan.
// The pattern matches any configured keyword at a word boundary,
// followed by a colon or an assignee parenthesis ("TODO:" or
// "TODO(alice):").
func NewExtractor(markers []string, contextLines int, severity map[string]string) (*Extractor, error) {
	if len(markers) == 0 {
		return nil, fmt.Errorf("at least one marker keyword is required")
	}

	quoted := make([]string, len(markers))
	for i, m := range markers {
		quoted[i] = regexp.QuoteMeta(m)
	}

	pattern, err := regexp.Compile(`\b(` + strings.Join(quoted, "|") + `)\s*[:(]`)
	if err != nil {
		return nil, fmt.Errorf("compiling marker pattern: %w", err)
	}

	return &Extractor{
		pattern:      pattern,
		contextLines: contextLines,
		severity:     severity,
	}, nil
}

// parseState tracks block-comment state across lines of one file.
type parseState int

const (
	stateNormal parseState = iota
	stateInBlock
)

// pendingMarker is a discovered marker still collecting context-after
// lines from the stream.
type pendingMarker struct {
	marker    types.DebtMarker
	remaining int
}

// Extract streams relPath's content and returns its markers, without
// history attribution. The file is never buffered whole: context is
// kept in a bounded rolling window and context-after collection is
// deferred across subsequent lines.
func (e *Extractor) Extract(relPath string, r io.Reader) ([]types.DebtMarker, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var (
		markers []types.DebtMarker
		before  []string
		pending []*pendingMarker
		state   parseState
		lineNo  int
	)

	for scanner.Scan() {
		line := scanner.Text()
		lineNo++

		pending, markers = feedContext(pending, markers, line)

		var commented bool
		commented, state = commentState(line, state)

		if commented {
			if m := e.pattern.FindStringSubmatch(line); m != nil {
				marker := types.DebtMarker{
					MarkerType:    m[1],
					FilePath:      relPath,
					LineNumber:    lineNo,
					LineContent:   line,
					ContextBefore: append([]string(nil), before...),
					Severity:      e.severity[m[1]],
				}

				if e.contextLines > 0 {
					pending = append(pending, &pendingMarker{marker: marker, remaining: e.contextLines})
				} else {
					markers = append(markers, marker)
				}

				// The marker line never leaks into the next
				// marker's context-before.
				before = before[:0]
				continue
			}
		}

		if e.contextLines > 0 {
			before = append(before, line)
			if len(before) > e.contextLines {
				copy(before, before[1:])
				before = before[:e.contextLines]
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", relPath, err)
	}

	// Markers near EOF get whatever context was available.
	for _, p := range pending {
		markers = append(markers, p.marker)
	}

	return markers, nil
}

// feedContext appends line to every marker still collecting
// context-after, flushing markers whose context is complete.
func feedContext(pending []*pendingMarker, markers []types.DebtMarker, line string) ([]*pendingMarker, []types.DebtMarker) {
	if len(pending) == 0 {
		return pending, markers
	}

	remaining := pending[:0]
	for _, p := range pending {
		p.marker.ContextAfter = append(p.marker.ContextAfter, line)
		p.remaining--
		if p.remaining == 0 {
			markers = append(markers, p.marker)
		} else {
			remaining = append(remaining, p)
		}
	}
	return remaining, markers
}

// commentState reports whether any part of line is plausibly comment
// text and returns the block-comment state for the next line.
//
// Recognized openers: //, #, <!--, a leading * (docblock
// continuation), and /* ... */ blocks spanning lines. Detection is
// positional only; being wrong is safe (see Extractor doc).
func commentState(line string, state parseState) (bool, parseState) {
	if state == stateInBlock {
		end := strings.Index(line, "*/")
		if end < 0 {
			return true, stateInBlock
		}
		// The block closed; a new one may open on the same line.
		if reopensBlock(line[end+2:]) {
			return true, stateInBlock
		}
		return true, stateNormal
	}

	commented := false

	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "*") {
		commented = true
	}
	if strings.Contains(line, "//") || strings.Contains(line, "#") || strings.Contains(line, "<!--") {
		commented = true
	}

	if open := strings.Index(line, "/*"); open >= 0 {
		commented = true
		if reopensBlock(line[open:]) {
			return true, stateInBlock
		}
	}

	return commented, stateNormal
}

// reopensBlock reports whether s contains a /* with no matching */
// after it, leaving the stream inside a block comment.
func reopensBlock(s string) bool {
	for {
		open := strings.Index(s, "/*")
		if open < 0 {
			return false
		}
		end := strings.Index(s[open+2:], "*/")
		if end < 0 {
			return true
		}
		s = s[open+2+end+2:]
	}
}
