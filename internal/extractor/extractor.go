// Package extractor turns document text into a project record by asking a
// generation model for JSON and recovering it from the reply.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/cipher241/Smart-Cities-Banorte/internal/docsource"
	"github.com/cipher241/Smart-Cities-Banorte/internal/genai"
	"github.com/cipher241/Smart-Cities-Banorte/internal/jsonrecover"
)

// Extraction methods recorded under _extraction_method.
const (
	MethodLLM         = "llm"
	MethodLLMRepaired = "llm_repaired"
)

const (
	maxOutputTokens = 2048
	rawPreviewChars = 1000
)

// ErrGeneration wraps failures of the generation call itself.
var ErrGeneration = errors.New("llm generation failed")

type Options struct {
	// RepairMalformed runs jsonrepair over a malformed candidate before
	// giving up on the reply.
	RepairMalformed  bool
	QuoteAware       bool
	MaxDocumentChars int
}

type Extractor struct {
	llm       genai.Client
	recoverer *jsonrecover.Recoverer
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
}

func New(llm genai.Client, opts Options, logger *slog.Logger) *Extractor {
	return &Extractor{
		llm:       llm,
		recoverer: jsonrecover.New(jsonrecover.Options{QuoteAware: opts.QuoteAware}),
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// Result holds what came back for one document. Record is nil when nothing
// could be recovered.
type Result struct {
	Record  map[string]any
	Outcome jsonrecover.Outcome
	Method  string
	Raw     string
}

// Extract asks the model for the project record of one document. A failed
// generation call returns an error wrapping ErrGeneration and no result. A
// reply without a usable JSON object returns the result together with the
// recovery error so the caller can fall back.
func (e *Extractor) Extract(ctx context.Context, docName, text string) (*Result, error) {
	text = docsource.Truncate(text, e.opts.MaxDocumentChars)
	prompt := fmt.Sprintf(extractionPrompt, docName, e.now().Format("2006-01-02"), text)

	e.logger.Info("extracting project record",
		"doc", docName,
		"text_len", len(text),
		"model", e.llm.Model(),
	)

	raw, err := e.llm.Generate(ctx, genai.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		Temperature: 0,
		MaxTokens:   maxOutputTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	res := &Result{Raw: raw, Method: MethodLLM}
	res.Outcome = e.recoverer.RecoverRaw(jsonrecover.RawText{Text: raw, Origin: jsonrecover.FromModel})

	if !res.Outcome.OK() && res.Outcome.Kind == jsonrecover.MalformedJSON && e.opts.RepairMalformed {
		if repaired, ok := e.repair(res.Outcome.Span); ok {
			e.logger.Warn("repaired malformed model json", "doc", docName)
			res.Outcome = repaired
			res.Method = MethodLLMRepaired
		}
	}

	if err := res.Outcome.Err(); err != nil {
		e.logger.Error("no usable json in model reply",
			"doc", docName,
			"kind", res.Outcome.Kind.String(),
			"excerpt", res.Outcome.Excerpt,
		)
		return res, fmt.Errorf("recover extraction: %w", err)
	}

	res.Record = res.Outcome.Object
	res.Record["_extraction_method"] = res.Method
	if res.Record["doc_fuente"] == nil || res.Record["doc_fuente"] == "" {
		res.Record["doc_fuente"] = docName
	}

	e.logger.Info("extraction complete",
		"doc", docName,
		"method", res.Method,
		"fields", len(res.Record),
	)
	return res, nil
}

func (e *Extractor) repair(span string) (jsonrecover.Outcome, bool) {
	fixed, err := jsonrepair.JSONRepair(span)
	if err != nil {
		e.logger.Debug("json repair failed", "error", err)
		return jsonrecover.Outcome{}, false
	}
	o := e.recoverer.RecoverRaw(jsonrecover.RawText{Text: fixed, Origin: jsonrecover.FromModel})
	return o, o.OK()
}

// FailureReport describes a failed extraction for the debug directory.
func FailureReport(res *Result, err error) map[string]any {
	report := map[string]any{"_error": "llm_exception"}
	if err != nil {
		report["details"] = err.Error()
	}
	if res == nil {
		return report
	}
	report["_error"] = "llm_no_json"
	report["kind"] = res.Outcome.Kind.String()
	report["excerpt"] = res.Outcome.Excerpt
	preview := []rune(res.Raw)
	if len(preview) > rawPreviewChars {
		preview = preview[:rawPreviewChars]
	}
	report["raw_preview"] = string(preview)
	return report
}
