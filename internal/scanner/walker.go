package scanner

import (
	"bufio"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/steveyegge/fossil/internal/config"
	"github.com/steveyegge/fossil/internal/types"
)

// binaryExtensions are skipped without opening the file. The NUL
// sniff in the worker catches binaries this list misses.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".pdf": true, ".zip": true, ".tar": true, ".gz": true, ".bz2": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true,
	".bin": true, ".dat": true, ".woff": true, ".woff2": true, ".ttf": true,
	".class": true, ".jar": true, ".wasm": true,
}

// Walker enumerates eligible files under a scan root, pruning ignored
// directories before descending into them.
type Walker struct {
	root        string
	ignoredDirs []string
	gitignore   []string
	maxFileSize int64
}

// NewWalker builds a walker for one scan. Ignore rules come from the
// config plus, best effort, the patterns in the root's .gitignore.
func NewWalker(root string, cfg *config.Config) *Walker {
	return &Walker{
		root:        root,
		ignoredDirs: cfg.IgnoredDirs,
		gitignore:   loadGitignore(filepath.Join(root, ".gitignore")),
		maxFileSize: cfg.MaxFileSize,
	}
}

// Walk enumerates candidate files, calling visit for each eligible
// file (path relative to the root, forward slashes) and warn for
// files and subtrees that are skipped non-fatally. Cancellation is
// checked at each dispatch boundary; Walk returns the context error
// when interrupted.
func (w *Walker) Walk(ctx context.Context, visit func(rel string), warn func(types.Warning)) error {
	info, err := os.Stat(w.root)
	if err == nil && !info.IsDir() {
		// Scanning a single file is allowed; eligibility rules still apply.
		w.checkFile(filepath.Base(w.root), info.Size(), visit, warn)
		return nil
	}

	return filepath.WalkDir(w.root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		rel := w.relPath(path)

		if walkErr != nil {
			// Root failure is handled before scheduling; anything
			// below it is a warning, not a scan failure.
			warn(types.Warning{Path: rel, Reason: types.SkipUnreadable, Detail: walkErr.Error()})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != w.root && w.ignoreDir(d.Name(), rel) {
				return fs.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if w.ignoredByPatterns(d.Name(), rel) {
			return nil
		}

		fileInfo, err := d.Info()
		if err != nil {
			warn(types.Warning{Path: rel, Reason: types.SkipUnreadable, Detail: err.Error()})
			return nil
		}

		w.checkFile(rel, fileInfo.Size(), visit, warn)
		return nil
	})
}

// checkFile applies the per-file eligibility rules.
func (w *Walker) checkFile(rel string, size int64, visit func(string), warn func(types.Warning)) {
	if binaryExtensions[strings.ToLower(filepath.Ext(rel))] {
		return
	}
	if size > w.maxFileSize {
		warn(types.Warning{
			Path:   rel,
			Reason: types.SkipTooLarge,
			Detail: "exceeds max_file_size",
		})
		return
	}
	visit(rel)
}

// relPath returns path relative to the root with forward slashes.
func (w *Walker) relPath(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// ignoreDir reports whether a directory should be pruned.
func (w *Walker) ignoreDir(name, rel string) bool {
	for _, pattern := range w.ignoredDirs {
		if pattern == name {
			return true
		}
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return w.matchGitignore(name, rel)
}

// ignoredByPatterns reports whether a file matches the ambient
// ignore patterns.
func (w *Walker) ignoredByPatterns(name, rel string) bool {
	return w.matchGitignore(name, rel)
}

func (w *Walker) matchGitignore(name, rel string) bool {
	for _, pattern := range w.gitignore {
		if strings.Contains(pattern, "/") {
			if ok, _ := filepath.Match(strings.TrimPrefix(pattern, "/"), rel); ok {
				return true
			}
		} else {
			if pattern == name {
				return true
			}
			if ok, _ := filepath.Match(pattern, name); ok {
				return true
			}
		}
	}
	return false
}

// loadGitignore reads the supported subset of a .gitignore file:
// plain names and glob patterns, optionally rooted with a leading
// slash. Negations and nested .gitignore files are not honored;
// the explicit ignored_dirs config covers those cases.
func loadGitignore(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		line = strings.TrimSuffix(line, "/")
		if line != "" {
			patterns = append(patterns, line)
		}
	}
	return patterns
}
