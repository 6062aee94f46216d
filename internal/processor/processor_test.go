package processor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cipher241/Smart-Cities-Banorte/internal/extractor"
	"github.com/cipher241/Smart-Cities-Banorte/internal/hermes"
	"github.com/cipher241/Smart-Cities-Banorte/internal/project"
	"github.com/cipher241/Smart-Cities-Banorte/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeExtractor struct {
	rec   map[string]any
	err   error
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, docName, _ string) (*extractor.Result, error) {
	f.calls++
	if f.err != nil {
		return &extractor.Result{Raw: "sin json"}, f.err
	}
	rec := map[string]any{}
	for k, v := range f.rec {
		rec[k] = v
	}
	rec["doc_fuente"] = docName
	rec["_extraction_method"] = extractor.MethodLLM
	return &extractor.Result{Record: rec, Method: extractor.MethodLLM}, nil
}

type fakeWarehouse struct {
	written []map[string]any
	err     error
}

func (w *fakeWarehouse) WriteProject(_ context.Context, rec map[string]any) (int64, error) {
	if w.err != nil {
		return 0, w.err
	}
	w.written = append(w.written, rec)
	return int64(len(w.written)), nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	events   []any
}

func (r *recordingPublisher) Publish(subject string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, subject)
	r.events = append(r.events, data)
	return nil
}

type env struct {
	dir    string
	ledger *storage.Ledger
	ext    *fakeExtractor
	wh     *fakeWarehouse
	pub    *recordingPublisher
	proc   *Processor
}

func newEnv(t *testing.T, opts Options) *env {
	t.Helper()
	dir := t.TempDir()
	ledger, err := storage.LoadLedger(filepath.Join(dir, "procesados.json"))
	if err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	if opts.DebugDir == "" {
		opts.DebugDir = filepath.Join(dir, "debug")
	}
	e := &env{
		dir:    dir,
		ledger: ledger,
		ext: &fakeExtractor{rec: map[string]any{
			"nombre":                "Línea 4 del Metro",
			"sector":                "Transporte",
			"presupuesto_total_mxn": "1,200 millones",
			"anio_inicio":           "2023",
			"anio_fin":              "2026",
		}},
		wh:  &fakeWarehouse{},
		pub: &recordingPublisher{},
	}
	records := storage.NewRecords(filepath.Join(dir, "salida.json"), filepath.Join(dir, "results.csv"))
	e.proc = New(ledger, records, e.ext, e.wh, e.pub, opts, discardLogger())
	e.proc.now = func() time.Time { return time.Date(2025, 10, 4, 9, 0, 0, 0, time.UTC) }
	return e
}

func (e *env) writeDoc(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

var longText = "Proyecto Línea 4 del Metro de Monterrey\n" +
	strings.Repeat("Obra de transporte público con inversión de 1,200 millones de pesos entre 2023 y 2026. ", 3)

func TestProcessSuccess(t *testing.T) {
	e := newEnv(t, Options{UploadToWarehouse: true})
	path := e.writeDoc(t, "metro.txt", longText)

	rep, err := e.proc.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if rep.Status != storage.StatusSuccess {
		t.Errorf("expected status success, got %s", rep.Status)
	}
	if rep.Validation != project.ValidationOK {
		t.Errorf("expected validation OK, got %s", rep.Validation)
	}
	if rep.Record["presupuesto_total_mxn"] != 1.2e9 {
		t.Errorf("expected normalized budget 1.2e9, got %v", rep.Record["presupuesto_total_mxn"])
	}
	if rep.Record["anio_inicio"] != 2023 {
		t.Errorf("expected anio_inicio 2023, got %v", rep.Record["anio_inicio"])
	}
	if rep.ProjectID != 1 || len(e.wh.written) != 1 {
		t.Errorf("expected one warehouse write, got id=%d writes=%d", rep.ProjectID, len(e.wh.written))
	}

	entry, ok := e.ledger.Get("metro.txt")
	if !ok || entry.Status != storage.StatusSuccess || entry.RecordID != rep.RecordID {
		t.Errorf("unexpected ledger entry %+v", entry)
	}

	data, err := os.ReadFile(filepath.Join(e.dir, "salida.json"))
	if err != nil {
		t.Fatalf("expected output json: %v", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(data, &out); err != nil || len(out) != 1 {
		t.Fatalf("expected one record in output, got %d (%v)", len(out), err)
	}
	if _, err := os.Stat(filepath.Join(e.dir, "results.csv")); err != nil {
		t.Errorf("expected csv output: %v", err)
	}
	if _, err := os.Stat(filepath.Join(e.dir, "debug", "metro.txt.json")); err != nil {
		t.Errorf("expected debug file: %v", err)
	}

	if len(e.pub.subjects) != 1 || e.pub.subjects[0] != hermes.SubjectRecordStored {
		t.Fatalf("expected one record.stored event, got %v", e.pub.subjects)
	}
	ev := e.pub.events[0].(hermes.RecordStored)
	if ev.DocFuente != "metro.txt" || ev.ProjectID != 1 {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestProcessSkipsLedgerEntries(t *testing.T) {
	e := newEnv(t, Options{})
	path := e.writeDoc(t, "metro.txt", longText)
	e.ledger.Mark("metro.txt", storage.Entry{Status: storage.StatusSuccess})

	rep, err := e.proc.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if !rep.Skipped {
		t.Error("expected document to be skipped")
	}
	if e.ext.calls != 0 {
		t.Errorf("expected no extractor calls, got %d", e.ext.calls)
	}
}

func TestProcessInsufficientText(t *testing.T) {
	e := newEnv(t, Options{})
	path := e.writeDoc(t, "corto.txt", "muy poco")

	rep, err := e.proc.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if rep.Status != storage.StatusFailed || rep.Reason != ReasonInsufficientText {
		t.Errorf("expected failed/insufficient_text, got %s/%s", rep.Status, rep.Reason)
	}
	if e.ext.calls != 0 {
		t.Errorf("expected no extractor calls, got %d", e.ext.calls)
	}
	if len(e.pub.subjects) != 0 {
		t.Errorf("expected no events, got %v", e.pub.subjects)
	}
}

func TestProcessHeuristicFallback(t *testing.T) {
	e := newEnv(t, Options{UploadToWarehouse: true})
	e.ext.err = errors.New("recover extraction: no json")
	path := e.writeDoc(t, "metro.txt", longText)

	rep, err := e.proc.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if rep.Method != project.MethodHeuristic {
		t.Errorf("expected heuristic method, got %s", rep.Method)
	}
	if rep.Record["sector"] != "Transporte" {
		t.Errorf("expected heuristic sector Transporte, got %v", rep.Record["sector"])
	}
	if rep.Record["anio_inicio"] != 2023 || rep.Record["anio_fin"] != 2026 {
		t.Errorf("unexpected years %v-%v", rep.Record["anio_inicio"], rep.Record["anio_fin"])
	}
	if _, err := os.Stat(filepath.Join(e.dir, "debug", "metro.txt.error.json")); err != nil {
		t.Errorf("expected error debug file: %v", err)
	}
}

func TestProcessSkipsUploadForInvalidRecord(t *testing.T) {
	e := newEnv(t, Options{UploadToWarehouse: true})
	e.ext.rec["sector"] = "espacial"
	path := e.writeDoc(t, "metro.txt", longText)

	rep, err := e.proc.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if !strings.Contains(rep.Validation, "sector_invalid:espacial") {
		t.Errorf("expected sector_invalid issue, got %s", rep.Validation)
	}
	if len(e.wh.written) != 0 {
		t.Errorf("expected no warehouse writes, got %d", len(e.wh.written))
	}
	if rep.Status != storage.StatusSuccess {
		t.Errorf("expected ledger success for invalid record, got %s", rep.Status)
	}
}

func TestProcessWarehouseErrorIsNotFatal(t *testing.T) {
	e := newEnv(t, Options{UploadToWarehouse: true})
	e.wh.err = errors.New("connection refused")
	path := e.writeDoc(t, "metro.txt", longText)

	rep, err := e.proc.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if rep.ProjectID != 0 {
		t.Errorf("expected no project id, got %d", rep.ProjectID)
	}
	if rep.Status != storage.StatusSuccess {
		t.Errorf("expected success, got %s", rep.Status)
	}
}

func TestProcessDryRunSkipsOutputs(t *testing.T) {
	e := newEnv(t, Options{DryRun: true})
	path := e.writeDoc(t, "metro.txt", longText)

	if _, err := e.proc.Process(context.Background(), path); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(e.dir, "salida.json")); !os.IsNotExist(err) {
		t.Errorf("expected no output json in dry run, got %v", err)
	}
}

func TestProcessDir(t *testing.T) {
	e := newEnv(t, Options{})
	docs := filepath.Join(e.dir, "docs")
	os.MkdirAll(docs, 0o755)
	os.WriteFile(filepath.Join(docs, "a.txt"), []byte(longText), 0o644)
	os.WriteFile(filepath.Join(docs, "b.txt"), []byte("corto"), 0o644)
	os.WriteFile(filepath.Join(docs, "c.docx"), []byte(longText), 0o644)
	e.ledger.Mark("d.txt", storage.Entry{Status: storage.StatusSuccess})
	os.WriteFile(filepath.Join(docs, "d.txt"), []byte(longText), 0o644)

	sum, err := e.proc.ProcessDir(context.Background(), docs)
	if err != nil {
		t.Fatalf("process dir failed: %v", err)
	}
	want := Summary{Processed: 1, Skipped: 1, Failed: 1}
	if sum != want {
		t.Errorf("expected %+v, got %+v", want, sum)
	}
}

func TestProcessInProgress(t *testing.T) {
	e := newEnv(t, Options{})
	path := e.writeDoc(t, "metro.txt", longText)
	e.proc.acquire("metro.txt")

	if _, err := e.proc.Process(context.Background(), path); !errors.Is(err, ErrInProgress) {
		t.Errorf("expected ErrInProgress, got %v", err)
	}
}

func TestProcessAppendFailureLeavesDocumentRetryable(t *testing.T) {
	e := newEnv(t, Options{})
	path := e.writeDoc(t, "metro.txt", longText)

	blocked := filepath.Join(e.dir, "blocked")
	if err := os.MkdirAll(filepath.Join(blocked, "salida.json"), 0o755); err != nil {
		t.Fatal(err)
	}
	e.proc.records = storage.NewRecords(filepath.Join(blocked, "salida.json"), filepath.Join(blocked, "results.csv"))

	if _, err := e.proc.Process(context.Background(), path); err == nil {
		t.Fatal("expected append error")
	}
	if e.ledger.Has("metro.txt") {
		t.Fatal("expected no ledger entry after failed append")
	}
	if len(e.pub.subjects) != 0 {
		t.Errorf("expected no events after failed append, got %v", e.pub.subjects)
	}

	e.proc.records = storage.NewRecords(filepath.Join(e.dir, "salida.json"), filepath.Join(e.dir, "results.csv"))
	rep, err := e.proc.Process(context.Background(), path)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if rep.Skipped {
		t.Fatal("expected retry to process the document")
	}
	data, err := os.ReadFile(filepath.Join(e.dir, "salida.json"))
	if err != nil {
		t.Fatalf("expected output json after retry: %v", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(data, &out); err != nil || len(out) != 1 {
		t.Errorf("expected one record after retry, got %d (%v)", len(out), err)
	}
	if entry, ok := e.ledger.Get("metro.txt"); !ok || entry.Status != storage.StatusSuccess {
		t.Errorf("expected success entry after retry, got %+v", entry)
	}
}

type countingExtractor struct {
	mu    sync.Mutex
	next  *fakeExtractor
	calls int
}

func (c *countingExtractor) Extract(ctx context.Context, docName, text string) (*extractor.Result, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.next.Extract(ctx, docName, text)
}

func TestProcessConcurrentWorkersProcessOnce(t *testing.T) {
	e := newEnv(t, Options{})
	path := e.writeDoc(t, "metro.txt", longText)
	ext := &countingExtractor{next: e.ext}
	e.proc.extractor = ext

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, err := e.proc.Process(context.Background(), path)
				if !errors.Is(err, ErrInProgress) {
					return
				}
			}
		}()
	}
	wg.Wait()

	if ext.calls != 1 {
		t.Errorf("expected one extraction, got %d", ext.calls)
	}
	data, _ := os.ReadFile(filepath.Join(e.dir, "salida.json"))
	var out []map[string]any
	json.Unmarshal(data, &out)
	if len(out) != 1 {
		t.Errorf("expected one output record, got %d", len(out))
	}
}
