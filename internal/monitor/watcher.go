package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cipher241/Smart-Cities-Banorte/internal/storage"
)

// Dispatcher hands a document in the docs directory to the pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, path string) error
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(ctx context.Context, path string) error

func (f DispatchFunc) Dispatch(ctx context.Context, path string) error { return f(ctx, path) }

// DocumentWatcher moves new PDFs from the sample directory into the docs
// directory and dispatches them.
type DocumentWatcher struct {
	sampleDir string
	docsDir   string
	manifest  *storage.Manifest
	dispatch  Dispatcher
	logger    *slog.Logger
}

func NewDocumentWatcher(sampleDir, docsDir string, manifest *storage.Manifest, d Dispatcher, logger *slog.Logger) *DocumentWatcher {
	return &DocumentWatcher{
		sampleDir: sampleDir,
		docsDir:   docsDir,
		manifest:  manifest,
		dispatch:  d,
		logger:    logger,
	}
}

// Scan copies every PDF in the sample directory that the manifest does not
// list yet, records it and dispatches it. It returns how many documents were
// dispatched. A failure on one document is logged and the scan continues.
func (w *DocumentWatcher) Scan(ctx context.Context) (int, error) {
	names, err := listPDFs(w.sampleDir)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		known, err := w.manifest.Contains(name)
		if err != nil {
			return n, err
		}
		if known {
			continue
		}

		dst := filepath.Join(w.docsDir, name)
		if err := storage.CopyFileAtomic(filepath.Join(w.sampleDir, name), dst); err != nil {
			w.logger.Error("copy document failed", "doc", name, "error", err)
			continue
		}
		if _, err := w.manifest.Add(name); err != nil {
			return n, fmt.Errorf("manifest add %s: %w", name, err)
		}
		w.logger.Info("new document", "doc", name)

		if err := w.dispatch.Dispatch(ctx, dst); err != nil {
			w.logger.Error("dispatch failed", "doc", name, "error", err)
			continue
		}
		n++
	}
	return n, nil
}

// Bootstrap dispatches every manifest entry already present in the docs
// directory. The pipeline skips the ones its ledger has seen.
func (w *DocumentWatcher) Bootstrap(ctx context.Context) (int, error) {
	names, err := w.manifest.Entries()
	if err != nil {
		return 0, err
	}

	n := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		path := filepath.Join(w.docsDir, name)
		if _, err := os.Stat(path); err != nil {
			w.logger.Debug("manifest entry missing from docs", "doc", name)
			continue
		}
		if err := w.dispatch.Dispatch(ctx, path); err != nil {
			w.logger.Error("dispatch failed", "doc", name, "error", err)
			continue
		}
		n++
	}
	w.logger.Info("bootstrap complete", "manifest", len(names), "dispatched", n)
	return n, nil
}

// Run bootstraps once and then scans on every interval until ctx is done.
func (w *DocumentWatcher) Run(ctx context.Context, interval time.Duration) error {
	if _, err := w.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	Loop(ctx, interval, func(ctx context.Context) {
		n, err := w.Scan(ctx)
		if err != nil {
			w.logger.Error("scan failed", "dir", w.sampleDir, "error", err)
			return
		}
		if n > 0 {
			w.logger.Info("scan complete", "dispatched", n)
		}
	})
	return nil
}

func listPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
