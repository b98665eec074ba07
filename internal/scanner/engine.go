// Package scanner implements the debt-marker discovery pipeline:
// walk a source tree, extract markers from comment text, enrich them
// with history attribution, and merge everything into one report.
package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/steveyegge/fossil/internal/config"
	"github.com/steveyegge/fossil/internal/report"
	"github.com/steveyegge/fossil/internal/types"
)

// ErrRootUnreadable is returned when the scan root itself cannot be
// enumerated. This is the only fatal error a scan produces; every
// problem below the root degrades to a recorded warning.
var ErrRootUnreadable = errors.New("scan root unreadable")

// sniffBytes is how much of a file is inspected for binary content
// before extraction starts.
const sniffBytes = 8000

// Attributor supplies history attribution for marker lines. The
// pipeline works with a nil Attributor: every marker then carries no
// history.
//
// Implementations must be safe for concurrent use and must absorb
// their own failures: a line with no usable history yields nil,
// never an error. AgeDays on the returned HistoryInfo is left zero;
// the scanner derives it from the scan's single reference time.
type Attributor interface {
	Attribute(ctx context.Context, relPath string, line int) *types.HistoryInfo
}

// batch is one file's completed contribution to the report. Batches
// are handed off as whole values; workers never share mutable state.
type batch struct {
	markers []types.DebtMarker
	warning *types.Warning
}

// Scan walks root and produces the aggregated debt report.
//
// Files are processed by a bounded worker pool; each worker extracts
// markers for its file, requests attribution for files that yielded
// any, and emits a completed batch. All batches drain through a
// single consumer into the report builder, so the aggregate counts
// are identical for any pool size.
func Scan(ctx context.Context, root string, cfg *config.Config, attr Attributor) (*report.DebtReport, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving scan root: %w", err)
	}

	// Only the root gets to fail the scan, and it fails before any
	// work is scheduled.
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRootUnreadable, err)
	}

	// File paths come back from the walker relative to a directory:
	// the root itself, or its parent when the root is a single file.
	baseDir := absRoot
	if info.IsDir() {
		if _, err := os.ReadDir(absRoot); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRootUnreadable, err)
		}
	} else {
		baseDir = filepath.Dir(absRoot)
	}

	extractor, err := NewExtractor(cfg.Markers, cfg.ContextLines, cfg.Severity)
	if err != nil {
		return nil, err
	}

	scanTime := time.Now().UTC()
	builder := report.NewBuilder(root, scanTime)
	walker := NewWalker(absRoot, cfg)

	batches := make(chan batch, 64)
	merged := make(chan struct{})

	// Single consumer: the only writer to the builder.
	go func() {
		defer close(merged)
		for b := range batches {
			if b.warning != nil {
				builder.AddWarning(*b.warning)
			}
			builder.Add(b.markers)
		}
	}()

	sem := semaphore.NewWeighted(int64(cfg.WorkerCount()))
	var wg sync.WaitGroup

	walkErr := walker.Walk(ctx,
		func(rel string) {
			if err := sem.Acquire(ctx, 1); err != nil {
				// Cancelled; stop scheduling. In-flight workers
				// finish so the merge never sees a torn batch.
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				batches <- scanFile(ctx, baseDir, rel, extractor, attr, scanTime)
			}()
		},
		func(w types.Warning) {
			batches <- batch{warning: &w}
		},
	)

	wg.Wait()
	close(batches)
	<-merged

	if walkErr != nil {
		return nil, fmt.Errorf("scan interrupted: %w", walkErr)
	}

	return builder.Build(), nil
}

// scanFile runs the full per-file pipeline: binary sniff, extraction,
// then attribution for files that produced markers.
func scanFile(ctx context.Context, baseDir, rel string, extractor *Extractor, attr Attributor, scanTime time.Time) batch {
	path := filepath.Join(baseDir, filepath.FromSlash(rel))

	f, err := os.Open(path)
	if err != nil {
		return batch{warning: &types.Warning{Path: rel, Reason: types.SkipUnreadable, Detail: err.Error()}}
	}
	defer f.Close()

	prefix := make([]byte, sniffBytes)
	n, err := io.ReadFull(f, prefix)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return batch{warning: &types.Warning{Path: rel, Reason: types.SkipUnreadable, Detail: err.Error()}}
	}
	if bytes.IndexByte(prefix[:n], 0) >= 0 {
		return batch{warning: &types.Warning{Path: rel, Reason: types.SkipUndecodable, Detail: "binary content"}}
	}

	markers, err := extractor.Extract(rel, io.MultiReader(bytes.NewReader(prefix[:n]), f))
	if err != nil {
		return batch{warning: &types.Warning{Path: rel, Reason: types.SkipUndecodable, Detail: err.Error()}}
	}

	// Attribution is lazy by construction: only files that yielded
	// markers are ever queried against history.
	if attr != nil {
		for i := range markers {
			h := attr.Attribute(ctx, rel, markers[i].LineNumber)
			if h != nil {
				h.AgeDays = types.AgeDays(scanTime, h.CommitTime)
			}
			markers[i].History = h
		}
	}

	return batch{markers: markers}
}
