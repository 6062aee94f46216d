// Package processor runs one document through extraction, normalization,
// validation and persistence.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cipher241/Smart-Cities-Banorte/internal/docsource"
	"github.com/cipher241/Smart-Cities-Banorte/internal/extractor"
	"github.com/cipher241/Smart-Cities-Banorte/internal/hermes"
	"github.com/cipher241/Smart-Cities-Banorte/internal/normalize"
	"github.com/cipher241/Smart-Cities-Banorte/internal/project"
	"github.com/cipher241/Smart-Cities-Banorte/internal/storage"
)

// ReasonInsufficientText marks documents whose text was too short to extract.
const ReasonInsufficientText = "insufficient_text"

// ErrInProgress is returned when the same document is already being processed.
var ErrInProgress = errors.New("document already in progress")

// Extractor produces a record for one document's text.
type Extractor interface {
	Extract(ctx context.Context, docName, text string) (*extractor.Result, error)
}

// Warehouse persists validated records.
type Warehouse interface {
	WriteProject(ctx context.Context, rec map[string]any) (int64, error)
}

type Options struct {
	DebugDir          string
	UploadToWarehouse bool
	DryRun            bool
}

// Processor orchestrates the per-document pipeline.
type Processor struct {
	ledger    *storage.Ledger
	records   *storage.Records
	extractor Extractor
	warehouse Warehouse
	events    hermes.Publisher
	opts      Options
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New builds a Processor. warehouse may be nil; events may be nil, in which
// case no events are published.
func New(ledger *storage.Ledger, records *storage.Records, ext Extractor, warehouse Warehouse, events hermes.Publisher, opts Options, logger *slog.Logger) *Processor {
	if events == nil {
		events = hermes.Nop{}
	}
	return &Processor{
		ledger:    ledger,
		records:   records,
		extractor: ext,
		warehouse: warehouse,
		events:    events,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
		inflight:  make(map[string]struct{}),
	}
}

// Report summarises what happened to one document.
type Report struct {
	Doc        string
	Skipped    bool
	Status     string
	Reason     string
	Method     string
	Validation string
	RecordID   string
	ProjectID  int64
	Record     map[string]any
}

// Process handles the document at path. Documents already in the ledger are
// skipped. Extraction failures fall back to the heuristic extractor, so the
// only errors returned are I/O failures and cancellation.
func (p *Processor) Process(ctx context.Context, path string) (*Report, error) {
	name := filepath.Base(path)
	rep := &Report{Doc: name}

	if p.ledger.Has(name) {
		p.logger.Debug("already processed", "doc", name)
		rep.Skipped = true
		return rep, nil
	}
	if !p.acquire(name) {
		return rep, ErrInProgress
	}
	defer p.release(name)
	// Another worker may have finished the document between the check above
	// and acquire.
	if p.ledger.Has(name) {
		rep.Skipped = true
		return rep, nil
	}

	p.logger.Info("processing document", "doc", name)

	raw, err := docsource.Extract(path)
	if err != nil {
		p.finish(rep, storage.Entry{Status: storage.StatusError, Reason: err.Error()})
		return rep, fmt.Errorf("extract text %s: %w", name, err)
	}
	if !docsource.Sufficient(raw.Text) {
		p.logger.Warn("insufficient text", "doc", name, "chars", len(raw.Text))
		p.finish(rep, storage.Entry{Status: storage.StatusFailed, Reason: ReasonInsufficientText})
		return rep, nil
	}

	rec, err := p.extract(ctx, name, raw.Text)
	if err != nil {
		return rep, err
	}

	now := p.now().UTC()
	rec = project.Stamp(normalize.Record(rec), now)
	rep.RecordID = uuid.NewString()
	rec["_record_id"] = rep.RecordID
	rep.Record = rec
	rep.Method, _ = rec["_extraction_method"].(string)
	rep.Validation, _ = rec["_validation"].(string)

	if err := storage.WriteDebug(p.opts.DebugDir, name, rec); err != nil {
		p.logger.Warn("debug write failed", "doc", name, "error", err)
	}

	if p.opts.UploadToWarehouse && p.warehouse != nil {
		if project.IsValid(rec) {
			id, err := p.warehouse.WriteProject(ctx, rec)
			if err != nil {
				p.logger.Error("warehouse upload failed", "doc", name, "error", err)
			} else {
				rep.ProjectID = id
				rec["id_proyecto"] = id
			}
		} else {
			p.logger.Info("skipping warehouse upload", "doc", name, "validation", rep.Validation)
		}
	}

	// The ledger entry is written only once the outputs hold the record, so a
	// failed append leaves the document eligible for a retry.
	if !p.opts.DryRun {
		if err := p.records.Append(rec); err != nil {
			return rep, fmt.Errorf("append outputs %s: %w", name, err)
		}
	}

	p.finish(rep, storage.Entry{
		Status:     storage.StatusSuccess,
		Validation: rep.Validation,
		RecordID:   rep.RecordID,
	})

	nombre, _ := rec["nombre"].(string)
	sector, _ := rec["sector"].(string)
	if err := p.events.Publish(hermes.SubjectRecordStored, hermes.RecordStored{
		EventID:     hermes.NewEventID(),
		DocFuente:   name,
		Nombre:      nombre,
		Sector:      sector,
		Validation:  rep.Validation,
		Method:      rep.Method,
		ProjectID:   rep.ProjectID,
		ProcessedAt: now,
	}); err != nil {
		p.logger.Warn("publish record event failed", "doc", name, "error", err)
	}

	p.logger.Info("document processed",
		"doc", name,
		"method", rep.Method,
		"validation", rep.Validation,
		"id_proyecto", rep.ProjectID,
	)
	return rep, nil
}

// extract runs the model extractor and falls back to the heuristic when it
// yields no record.
func (p *Processor) extract(ctx context.Context, name, text string) (map[string]any, error) {
	res, err := p.extractor.Extract(ctx, name, text)
	if err == nil {
		return res.Record, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	p.logger.Warn("model extraction failed, using heuristic", "doc", name, "error", err)
	if werr := storage.WriteDebug(p.opts.DebugDir, name+".error", extractor.FailureReport(res, err)); werr != nil {
		p.logger.Warn("debug write failed", "doc", name, "error", werr)
	}
	return project.Heuristic(text, name, p.now()), nil
}

func (p *Processor) finish(rep *Report, e storage.Entry) {
	rep.Status = e.Status
	rep.Reason = e.Reason
	p.ledger.Mark(rep.Doc, e)
	if err := p.ledger.Save(); err != nil {
		p.logger.Error("ledger save failed", "doc", rep.Doc, "error", err)
	}
}

func (p *Processor) acquire(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[name]; busy {
		return false
	}
	p.inflight[name] = struct{}{}
	return true
}

func (p *Processor) release(name string) {
	p.mu.Lock()
	delete(p.inflight, name)
	p.mu.Unlock()
}

// Summary counts the outcomes of a directory run.
type Summary struct {
	Processed int
	Skipped   int
	Failed    int
	Errors    int
}

// ProcessDir runs Process over every supported document in dir in name
// order. Per-document errors are logged and counted; the run continues.
func (p *Processor) ProcessDir(ctx context.Context, dir string) (Summary, error) {
	var sum Summary

	entries, err := os.ReadDir(dir)
	if err != nil {
		return sum, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !docsource.Supported(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		rep, err := p.Process(ctx, path)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			p.logger.Error("document failed", "path", path, "error", err)
			sum.Errors++
		case rep.Skipped:
			sum.Skipped++
		case rep.Status == storage.StatusFailed:
			sum.Failed++
		default:
			sum.Processed++
		}
	}

	p.logger.Info("directory processed",
		"dir", dir,
		"processed", sum.Processed,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"errors", sum.Errors,
	)
	return sum, nil
}
