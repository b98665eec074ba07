package git

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/steveyegge/fossil/internal/types"
)

// blameLaunchRate bounds how many blame subprocesses may start per
// second. Blame cost dominates a scan; the limiter keeps a huge tree
// from spawning a subprocess storm.
const (
	blameLaunchRate  = rate.Limit(50)
	blameLaunchBurst = 16
)

// BlameAttributor memoizes per-file history lookups for one scan.
//
// Each distinct file is blamed at most once: concurrent requests for
// the same file collapse into a single query via singleflight, and
// the resulting per-line table is held for the lifetime of the scan.
// A failed query records a negative entry so it is never retried.
// Safe for concurrent use by scan workers.
type BlameAttributor struct {
	git      *Git
	repoRoot string
	scanRoot string
	timeout  time.Duration
	limiter  *rate.Limiter

	group singleflight.Group

	mu    sync.RWMutex
	files map[string]LineTable // nil value = attribution unavailable
}

// NewBlameAttributor discovers the repository containing scanRoot and
// returns an attributor scoped to one scan. Returns ErrNotARepository
// when scanRoot is not under version control; the caller then scans
// without attribution.
func NewBlameAttributor(ctx context.Context, g *Git, scanRoot string, timeout time.Duration) (*BlameAttributor, error) {
	absRoot, err := filepath.Abs(scanRoot)
	if err != nil {
		return nil, err
	}
	// A single-file scan root resolves paths against its directory.
	if info, err := os.Stat(absRoot); err == nil && !info.IsDir() {
		absRoot = filepath.Dir(absRoot)
	}

	repoRoot, err := g.RepoRoot(ctx, absRoot)
	if err != nil {
		return nil, err
	}

	return &BlameAttributor{
		git:      g,
		repoRoot: repoRoot,
		scanRoot: absRoot,
		timeout:  timeout,
		limiter:  rate.NewLimiter(blameLaunchRate, blameLaunchBurst),
		files:    make(map[string]LineTable),
	}, nil
}

// Attribute returns the attribution for a line of relPath (relative
// to the scan root), or nil when no usable history exists. Failures,
// timeouts, and untracked files all degrade to nil; Attribute never
// fails the scan.
//
// The returned HistoryInfo carries no AgeDays: the scanner derives
// age from its single scan-time reference point.
func (a *BlameAttributor) Attribute(ctx context.Context, relPath string, line int) *types.HistoryInfo {
	key, ok := a.repoPath(relPath)
	if !ok {
		return nil
	}

	table, cached := a.lookup(key)
	if !cached {
		table = a.blameOnce(ctx, key)
	}
	if table == nil {
		return nil
	}

	commit, ok := table[line]
	if !ok {
		return nil
	}

	revision := commit.SHA
	if len(revision) > 7 {
		revision = revision[:7]
	}

	return &types.HistoryInfo{
		Author:      commit.Author,
		AuthorEmail: commit.AuthorEmail,
		Revision:    revision,
		CommitTime:  commit.Time,
	}
}

// repoPath canonicalizes a scan-relative path into a repo-relative
// cache key. Files outside the working tree are unattributable.
func (a *BlameAttributor) repoPath(relPath string) (string, bool) {
	abs := filepath.Join(a.scanRoot, filepath.FromSlash(relPath))
	rel, err := filepath.Rel(a.repoRoot, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (a *BlameAttributor) lookup(key string) (LineTable, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	table, ok := a.files[key]
	return table, ok
}

// blameOnce runs the blame query for key, collapsing concurrent
// callers into one subprocess and caching the outcome either way.
func (a *BlameAttributor) blameOnce(ctx context.Context, key string) LineTable {
	result, _, _ := a.group.Do(key, func() (interface{}, error) {
		if table, ok := a.lookup(key); ok {
			return table, nil
		}

		table := a.runBlame(ctx, key)

		a.mu.Lock()
		a.files[key] = table
		a.mu.Unlock()

		return table, nil
	})

	table, _ := result.(LineTable)
	return table
}

// runBlame executes one bounded blame query. Any failure, including
// the per-file timeout, yields a nil table.
func (a *BlameAttributor) runBlame(ctx context.Context, key string) LineTable {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil
	}

	blameCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	table, err := a.git.BlameFile(blameCtx, a.repoRoot, key)
	if err != nil {
		return nil
	}
	return table
}
