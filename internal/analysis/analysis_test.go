package analysis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cipher241/Smart-Cities-Banorte/internal/genai"
	"github.com/cipher241/Smart-Cities-Banorte/internal/jsonrecover"
	"github.com/cipher241/Smart-Cities-Banorte/internal/project"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeLLM struct {
	reply string
	err   error
	last  genai.Request
}

func (f *fakeLLM) Model() string { return "fake-model" }

func (f *fakeLLM) Generate(_ context.Context, req genai.Request) (string, error) {
	f.last = req
	return f.reply, f.err
}

const fullReply = "Aquí está el análisis:\n```json\n" + `{
	"nombre": "Presa El Zapotillo",
	"sector": "Agua",
	"presupuesto_total_mxn": 1500000000,
	"beneficiarios_estimados": 250000,
	"score_costo_beneficio": 7.5,
	"analisis_financiero": "Viable con supervisión.",
	"riesgo_financiero": "1. Sobrecosto.",
	"recomendaciones": "1. Auditoría."
}` + "\n```"

func TestAnalyzeBuiltinPrompt(t *testing.T) {
	dir := t.TempDir()
	dict := filepath.Join(dir, "training_dataset.json")
	os.WriteFile(dict, []byte(`[{"sector":"Agua","presupuesto_total":1000,"score_costo_beneficio":6}]`), 0o644)

	llm := &fakeLLM{reply: fullReply}
	a := New(llm, Options{
		BestPromptPath:   filepath.Join(dir, "missing.txt"),
		DatasetDictPath:  dict,
		MaxDocumentChars: 50000,
	}, discardLogger())

	res, err := a.Analyze(context.Background(), "Documento del proyecto de la presa")
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if res["nombre"] != "Presa El Zapotillo" {
		t.Errorf("unexpected nombre %v", res["nombre"])
	}
	if res["veredicto_banorte"] != project.VerdictConditional {
		t.Errorf("expected conditional verdict, got %v", res["veredicto_banorte"])
	}
	if res["justificacion_veredicto"] != project.DefaultJustification {
		t.Errorf("expected default justification, got %v", res["justificacion_veredicto"])
	}
	if res["riesgo_financiero"] != "1. Sobrecosto." {
		t.Errorf("expected model risks kept, got %v", res["riesgo_financiero"])
	}

	debug := res["_debug"].(map[string]any)
	if debug["model"] != "fake-model" || debug["dataset_size"] != 1 || debug["prompt_source"] != SourceBuiltin {
		t.Errorf("unexpected debug %v", debug)
	}

	if !strings.Contains(llm.last.Prompt, "Proyectos analizados: 1") {
		t.Errorf("expected dataset context in prompt, got %q", llm.last.Prompt)
	}
	if !strings.Contains(llm.last.Prompt, "Documento del proyecto de la presa") {
		t.Error("expected document text in prompt")
	}
	if llm.last.Temperature != 0.3 || llm.last.MaxTokens != 8000 {
		t.Errorf("unexpected generation params %+v", llm.last)
	}
}

func TestAnalyzeTrainedPrompt(t *testing.T) {
	dir := t.TempDir()
	best := filepath.Join(dir, "best_analysis_prompt.txt")
	os.WriteFile(best, []byte(strings.Repeat("=", 80)+"\nMEJOR PROMPT\n"+strings.Repeat("=", 80)+
		"\n\nREGLAS FUNDAMENTALES\nEvalúa:\n{DOCUMENTO}\nFin."), 0o644)

	llm := &fakeLLM{reply: `{"score_costo_beneficio": 9.2}`}
	a := New(llm, Options{BestPromptPath: best, DatasetDictPath: filepath.Join(dir, "none.json")}, discardLogger())

	res, err := a.Analyze(context.Background(), "TEXTO DEL DOCUMENTO")
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	want := "REGLAS FUNDAMENTALES\nEvalúa:\nTEXTO DEL DOCUMENTO\nFin."
	if llm.last.Prompt != want {
		t.Errorf("expected trained prompt with document, got %q", llm.last.Prompt)
	}
	if res["_debug"].(map[string]any)["prompt_source"] != SourceTrained {
		t.Error("expected trained prompt source")
	}
	if res["veredicto_banorte"] != project.VerdictPriority {
		t.Errorf("expected priority verdict, got %v", res["veredicto_banorte"])
	}
}

func TestAnalyzeTruncatesDocument(t *testing.T) {
	llm := &fakeLLM{reply: `{"score_costo_beneficio": 5}`}
	a := New(llm, Options{MaxDocumentChars: 100}, discardLogger())

	if _, err := a.Analyze(context.Background(), strings.Repeat("a", 1000)); err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if strings.Contains(llm.last.Prompt, strings.Repeat("a", 200)) {
		t.Error("expected document to be truncated")
	}
	if !strings.Contains(llm.last.Prompt, "TRUNCADO") {
		t.Error("expected truncation marker")
	}
}

func TestAnalyzeInvalidJSON(t *testing.T) {
	a := New(&fakeLLM{reply: "lo siento, no puedo"}, Options{}, discardLogger())
	_, err := a.Analyze(context.Background(), "texto")
	if !errors.Is(err, jsonrecover.ErrNoJSONFound) {
		t.Errorf("expected ErrNoJSONFound, got %v", err)
	}
}

func TestAnalyzeGenerationError(t *testing.T) {
	a := New(&fakeLLM{err: errors.New("quota")}, Options{}, discardLogger())
	if _, err := a.Analyze(context.Background(), "texto"); err == nil {
		t.Error("expected error")
	}
}

func TestAnalyzeFileInsufficientText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corto.txt")
	os.WriteFile(path, []byte("breve"), 0o644)
	a := New(&fakeLLM{}, Options{}, discardLogger())
	if _, err := a.AnalyzeFile(context.Background(), path); !errors.Is(err, ErrInsufficientText) {
		t.Errorf("expected ErrInsufficientText, got %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	res := map[string]any{
		"beneficiarios_estimados": "0",
		"riesgo_financiero":       "  ",
		"score_costo_beneficio":   "4",
		"veredicto_banorte":       "",
	}
	ApplyDefaults(res)

	if res["beneficiarios_estimados"] != DefaultBeneficiaries {
		t.Errorf("expected default beneficiaries, got %v", res["beneficiarios_estimados"])
	}
	if res["riesgo_financiero"] != DefaultRisks {
		t.Errorf("expected default risks, got %v", res["riesgo_financiero"])
	}
	if res["recomendaciones"] != DefaultRecommendations {
		t.Errorf("expected default recommendations, got %v", res["recomendaciones"])
	}
	if res["veredicto_banorte"] != project.VerdictReject {
		t.Errorf("expected reject verdict, got %v", res["veredicto_banorte"])
	}

	kept := map[string]any{"veredicto_banorte": "propio", "beneficiarios_estimados": 12.0}
	ApplyDefaults(kept)
	if kept["veredicto_banorte"] != "propio" || kept["beneficiarios_estimados"] != 12.0 {
		t.Errorf("expected model values kept, got %v", kept)
	}
}
