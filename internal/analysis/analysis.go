// Package analysis produces the financing scorecard for one uploaded project
// document.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cipher241/Smart-Cities-Banorte/internal/dataset"
	"github.com/cipher241/Smart-Cities-Banorte/internal/docsource"
	"github.com/cipher241/Smart-Cities-Banorte/internal/genai"
	"github.com/cipher241/Smart-Cities-Banorte/internal/jsonrecover"
	"github.com/cipher241/Smart-Cities-Banorte/internal/normalize"
	"github.com/cipher241/Smart-Cities-Banorte/internal/project"
	"github.com/cipher241/Smart-Cities-Banorte/internal/training"
)

// MinTextChars is the shortest document text worth analysing.
const MinTextChars = 80

// Prompt sources reported under _debug.
const (
	SourceTrained = "trained"
	SourceBuiltin = "builtin"
)

var ErrInsufficientText = errors.New("could not extract enough text from document")

type Options struct {
	BestPromptPath   string
	DatasetDictPath  string
	MaxDocumentChars int
	QuoteAware       bool
}

type Analyzer struct {
	llm       genai.Client
	recoverer *jsonrecover.Recoverer
	opts      Options
	logger    *slog.Logger
}

func New(llm genai.Client, opts Options, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		llm:       llm,
		recoverer: jsonrecover.New(jsonrecover.Options{QuoteAware: opts.QuoteAware}),
		opts:      opts,
		logger:    logger,
	}
}

// AnalyzeFile extracts the document at path and analyses it.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (map[string]any, error) {
	raw, err := docsource.Extract(path)
	if err != nil {
		return nil, err
	}
	if len([]rune(raw.Text)) < MinTextChars {
		return nil, ErrInsufficientText
	}
	return a.Analyze(ctx, raw.Text)
}

// Analyze asks the model for a scorecard of text. The trained prompt is
// re-read on every call so promotions apply without a restart.
func (a *Analyzer) Analyze(ctx context.Context, text string) (map[string]any, error) {
	data, err := dataset.LoadDicts(a.opts.DatasetDictPath)
	if err != nil && !errors.Is(err, dataset.ErrNotFound) {
		a.logger.Warn("dataset unreadable, continuing without context", "error", err)
	}

	doc := docsource.Truncate(text, a.opts.MaxDocumentChars)
	prompt, source := a.buildPrompt(doc, data)

	a.logger.Info("analyzing document",
		"chars_in", len([]rune(text)),
		"prompt_source", source,
		"dataset_size", data.Len(),
		"model", a.llm.Model(),
	)

	reply, err := a.llm.Generate(ctx, genai.Request{
		Prompt:      prompt,
		Temperature: 0.3,
		MaxTokens:   8000,
	})
	if err != nil {
		return nil, fmt.Errorf("generate scorecard: %w", err)
	}

	out := a.recoverer.Recover(reply)
	if err := out.Err(); err != nil {
		a.logger.Error("invalid model json", "kind", out.Kind.String(), "excerpt", out.Excerpt)
		return nil, fmt.Errorf("recover scorecard: %w", err)
	}

	result := out.Object
	ApplyDefaults(result)
	result["_debug"] = map[string]any{
		"model":         a.llm.Model(),
		"chars_in":      len([]rune(text)),
		"dataset_size":  data.Len(),
		"prompt_source": source,
	}
	return result, nil
}

func (a *Analyzer) buildPrompt(doc string, data dataset.Dataset) (string, string) {
	if a.opts.BestPromptPath != "" {
		best, err := training.LoadBestPrompt(a.opts.BestPromptPath)
		if err == nil && strings.Contains(best, training.DocumentPlaceholder) {
			return strings.ReplaceAll(best, training.DocumentPlaceholder, doc), SourceTrained
		}
		if err == nil {
			a.logger.Debug("trained prompt has no document placeholder, using builtin")
		}
	}
	return fmt.Sprintf(scorecardPrompt, data.Summarize().AnalysisContext(), doc), SourceBuiltin
}

// ApplyDefaults fills beneficiaries, risks and recommendations when missing
// and sets the verdict fields unless the model already did.
func ApplyDefaults(result map[string]any) {
	if b, ok := normalize.ToNumber(result["beneficiarios_estimados"]); !ok || b <= 0 {
		result["beneficiarios_estimados"] = DefaultBeneficiaries
	}
	if blank(result["riesgo_financiero"]) {
		result["riesgo_financiero"] = DefaultRisks
	}
	if blank(result["recomendaciones"]) {
		result["recomendaciones"] = DefaultRecommendations
	}

	score, _ := normalize.ToNumber(result["score_costo_beneficio"])
	if blank(result["veredicto_banorte"]) {
		result["veredicto_banorte"] = project.Verdict(score)
	}
	if blank(result["justificacion_veredicto"]) {
		result["justificacion_veredicto"] = project.DefaultJustification
	}
}

func blank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	}
	return false
}
