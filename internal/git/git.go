// Package git provides history attribution backed by the git CLI.
//
// Attribution maps a file line to the author, revision, and commit
// time responsible for it. A single `git blame --line-porcelain` run
// yields the table for every line of a file, so the scan pipeline
// queries each file's history at most once.
package git

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrNotARepository is returned when the scan root is not inside a
// git working tree. Callers degrade to scanning without attribution.
var ErrNotARepository = errors.New("not a git repository")

// Git runs git commands for history attribution using the git CLI.
type Git struct {
	// gitPath is the path to the git executable
	gitPath string
}

// NewGit creates a new Git instance.
// It verifies that git is available on the system.
func NewGit(ctx context.Context) (*Git, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git not found in PATH: %w", err)
	}

	// Verify git works
	cmd := exec.CommandContext(ctx, gitPath, "version")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git command failed: %w", err)
	}

	return &Git{gitPath: gitPath}, nil
}

// RepoRoot returns the absolute path of the working tree containing
// dir, or ErrNotARepository when dir is not under version control.
func (g *Git) RepoRoot(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, g.gitPath, "-C", dir, "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotARepository, dir)
	}
	return strings.TrimSpace(string(output)), nil
}

// Commit holds the attribution fields for one revision.
type Commit struct {
	SHA         string
	Author      string
	AuthorEmail string
	Time        time.Time
}

// LineTable maps 1-based line numbers to the commit that last
// touched them. Lines with uncommitted-only history are absent.
type LineTable map[int]Commit

// BlameFile runs blame once for relPath (relative to repoRoot) and
// returns the per-line attribution table.
func (g *Git) BlameFile(ctx context.Context, repoRoot, relPath string) (LineTable, error) {
	cmd := exec.CommandContext(ctx, g.gitPath, "-C", repoRoot, "blame", "--line-porcelain", "--", relPath)
	output, err := cmd.Output()
	if err != nil {
		// Untracked files, empty repositories, and paths outside the
		// tree all land here. The caller records the file as
		// unattributable; this is never escalated.
		return nil, fmt.Errorf("git blame failed for %s: %w", relPath, err)
	}

	return parseLinePorcelain(output), nil
}

// zeroSHA marks lines that only exist in the working tree.
const zeroSHA = "0000000000000000000000000000000000000000"

// parseLinePorcelain parses `git blame --line-porcelain` output.
// The format emits, for every file line, a header of the form
// "<sha> <orig-line> <final-line> [<group>]" followed by key-value
// attribution lines and finally the tab-prefixed content line.
func parseLinePorcelain(output []byte) LineTable {
	table := LineTable{}
	commits := make(map[string]*Commit)

	var cur *Commit
	curLine := 0

	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		// Tab-prefixed lines carry file content and terminate the
		// current entry.
		if strings.HasPrefix(line, "\t") {
			if cur != nil && curLine > 0 && cur.SHA != zeroSHA {
				table[curLine] = *cur
			}
			cur = nil
			curLine = 0
			continue
		}

		if sha, final, ok := parseBlameHeader(line); ok {
			c, seen := commits[sha]
			if !seen {
				c = &Commit{SHA: sha}
				commits[sha] = c
			}
			cur = c
			curLine = final
			continue
		}

		if cur == nil {
			continue
		}

		switch {
		case strings.HasPrefix(line, "author "):
			cur.Author = strings.TrimPrefix(line, "author ")
		case strings.HasPrefix(line, "author-mail "):
			cur.AuthorEmail = strings.Trim(strings.TrimPrefix(line, "author-mail "), "<>")
		case strings.HasPrefix(line, "author-time "):
			if secs, err := strconv.ParseInt(strings.TrimPrefix(line, "author-time "), 10, 64); err == nil {
				cur.Time = time.Unix(secs, 0).UTC()
			}
		}
	}

	return table
}

// parseBlameHeader matches "<40-hex-sha> <orig> <final> [<group>]".
func parseBlameHeader(line string) (sha string, finalLine int, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 || len(fields[0]) != 40 || !isHex(fields[0]) {
		return "", 0, false
	}
	final, err := strconv.Atoi(fields[2])
	if err != nil || final < 1 {
		return "", 0, false
	}
	return fields[0], final, true
}

func isHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
