// Package training iteratively improves the scorecard analysis prompt by
// asking a generation model to rewrite and self-rate it, keeping the best
// version on disk for the API.
package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cipher241/Smart-Cities-Banorte/internal/dataset"
	"github.com/cipher241/Smart-Cities-Banorte/internal/genai"
	"github.com/cipher241/Smart-Cities-Banorte/internal/hermes"
	"github.com/cipher241/Smart-Cities-Banorte/internal/jsonrecover"
	"github.com/cipher241/Smart-Cities-Banorte/internal/normalize"
)

// Self-rated metric keys.
const (
	MetricPrecision  = "precision_extraccion"
	MetricClarity    = "claridad_instrucciones"
	MetricRobustness = "robustez_formato"
)

var (
	ErrEmptyDataset    = errors.New("training dataset is empty")
	ErrTooManyFailures = errors.New("too many consecutive generation failures")
)

// Suggestion is the optimizer's reply.
type Suggestion struct {
	Prompt    string         `json:"prompt_mejorado"`
	Changes   []string       `json:"cambios_realizados"`
	Reasoning string         `json:"razonamiento"`
	Metrics   map[string]any `json:"metricas_mejora"`
}

// Score averages the three self-rated metrics. Missing or non-numeric
// metrics count as zero. ok is false when the reply carried no metrics.
func (s *Suggestion) Score() (float64, bool) {
	if s == nil || s.Metrics == nil {
		return 0, false
	}
	var sum float64
	for _, k := range []string{MetricPrecision, MetricClarity, MetricRobustness} {
		if f, ok := normalize.ToNumber(s.Metrics[k]); ok {
			sum += f
		}
	}
	return sum / 3, true
}

// EnsureAnchor prepends the anchor block when the marker is missing.
func EnsureAnchor(prompt string) string {
	if strings.Contains(prompt, AnchorMarker) {
		return prompt
	}
	return Anchor + "\n\n" + prompt
}

// Exporter refreshes the dataset files from the warehouse.
type Exporter interface {
	ExportOnce(ctx context.Context) (int, error)
}

type Options struct {
	IterationsDir  string
	StatePath      string
	BestPromptPath string
	DatasetPath    string
	MaxIterations  int
	MaxPromptChars int
	// Interval is the pause between iterations.
	Interval time.Duration
	// MaxFailures bounds consecutive generation failures before a run aborts.
	MaxFailures int
}

// Trainer runs training rounds.
type Trainer struct {
	llm       genai.Client
	exporter  Exporter
	events    hermes.Publisher
	recoverer *jsonrecover.Recoverer
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
}

// New builds a Trainer. exporter and events may be nil.
func New(llm genai.Client, exporter Exporter, events hermes.Publisher, opts Options, logger *slog.Logger) *Trainer {
	if events == nil {
		events = hermes.Nop{}
	}
	if opts.MaxIterations < 1 {
		opts.MaxIterations = 1
	}
	if opts.MaxFailures < 1 {
		opts.MaxFailures = 5
	}
	return &Trainer{
		llm:       llm,
		exporter:  exporter,
		events:    events,
		recoverer: jsonrecover.New(jsonrecover.Options{}),
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// State returns the persisted training state.
func (t *Trainer) State() State {
	return LoadState(t.opts.StatePath)
}

// Train runs MaxIterations rounds starting after the last completed
// iteration. It resumes from the newest iteration file, or seeds from
// initial when there is none.
func (t *Trainer) Train(ctx context.Context, initial string) error {
	if err := os.MkdirAll(t.opts.IterationsDir, 0o755); err != nil {
		return fmt.Errorf("mkdir iterations: %w", err)
	}

	data, err := t.loadDataset(ctx)
	if err != nil {
		return err
	}
	summary := data.Summarize()
	dsContext := summary.TrainingContext()

	st := t.State()
	current, resumed := latestPrompt(t.opts.IterationsDir)
	if !resumed {
		current = EnsureAnchor(initial)
		st.CurrentIteration = 0
		if _, err := writeIteration(t.opts.IterationsDir, iterationRecord{
			Iteration: 0,
			Limit:     t.opts.MaxPromptChars,
			Prompt:    current,
			At:        t.now(),
		}); err != nil {
			return err
		}
		t.logger.Info("baseline saved", "chars", len([]rune(current)))
	}

	first := st.CurrentIteration + 1
	last := st.CurrentIteration + t.opts.MaxIterations
	t.logger.Info("training started",
		"from", first,
		"to", last,
		"resumed", resumed,
		"projects", summary.Projects,
		"model", t.llm.Model(),
	)

	failures := 0
	for iteration := first; iteration <= last; {
		if err := ctx.Err(); err != nil {
			return err
		}

		current = EnsureAnchor(current)
		next, sug, raw, err := t.iterate(ctx, dsContext, current, iteration)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			t.logger.Warn("optimizer call failed", "iteration", iteration, "failures", failures, "error", err)
			if failures >= t.opts.MaxFailures {
				return fmt.Errorf("%w: %w", ErrTooManyFailures, err)
			}
			if err := t.wait(ctx); err != nil {
				return err
			}
			continue
		}
		failures = 0

		if _, err := writeIteration(t.opts.IterationsDir, iterationRecord{
			Iteration: iteration,
			Limit:     t.opts.MaxPromptChars,
			Prompt:    next,
			Previous:  current,
			Raw:       raw,
			Parsed:    sug,
			At:        t.now(),
		}); err != nil {
			return err
		}

		if sug != nil && next != current {
			if score, ok := sug.Score(); ok && score > st.BestScore {
				if err := t.promote(next, iteration, score, &st); err != nil {
					return err
				}
			}
		}
		current = next

		st.CurrentIteration = iteration
		if err := saveState(t.opts.StatePath, st); err != nil {
			return err
		}

		iteration++
		if iteration <= last {
			if err := t.wait(ctx); err != nil {
				return err
			}
		}
	}

	st.RetrainsCompleted++
	if err := saveState(t.opts.StatePath, st); err != nil {
		return err
	}
	t.logger.Info("training complete",
		"best_iteration", st.BestIteration,
		"best_score", st.BestScore,
		"retrains_completed", st.RetrainsCompleted,
	)
	return nil
}

// iterate asks for one improvement. It returns the prompt to carry forward
// (the current one when the reply is unusable), the parsed suggestion (nil
// when unparseable) and the raw reply. Only generation failures are errors.
func (t *Trainer) iterate(ctx context.Context, dsContext, current string, iteration int) (string, *Suggestion, string, error) {
	limit := t.opts.MaxPromptChars
	chars := len([]rune(current))
	pct := 0.0
	if limit > 0 {
		pct = float64(chars) / float64(limit) * 100
	}

	raw, err := t.ask(ctx, fmt.Sprintf(improvePrompt, dsContext, iteration, chars, limit, pct, current, limit))
	if err != nil {
		return current, nil, "", err
	}
	sug, ok := t.parse(raw)
	if !ok {
		t.logger.Warn("unparseable optimizer reply", "iteration", iteration)
		return current, nil, raw, nil
	}

	candidate := current
	if strings.TrimSpace(sug.Prompt) != "" {
		candidate = EnsureAnchor(sug.Prompt)
	}
	if t.fits(candidate) {
		t.logger.Info("prompt optimized", "iteration", iteration, "chars", len([]rune(candidate)))
		return candidate, sug, raw, nil
	}

	t.logger.Warn("prompt exceeds limit, condensing", "iteration", iteration, "chars", len([]rune(candidate)), "limit", limit)
	retryRaw, err := t.ask(ctx, fmt.Sprintf(condensePrompt, len([]rune(candidate)), limit, candidate, limit))
	if err != nil {
		if ctx.Err() != nil {
			return current, nil, raw, ctx.Err()
		}
		t.logger.Warn("condense call failed", "iteration", iteration, "error", err)
		return current, sug, raw, nil
	}
	retry, ok := t.parse(retryRaw)
	if !ok || strings.TrimSpace(retry.Prompt) == "" {
		return current, sug, raw, nil
	}
	condensed := EnsureAnchor(retry.Prompt)
	if !t.fits(condensed) {
		t.logger.Warn("condensed prompt still exceeds limit", "iteration", iteration, "chars", len([]rune(condensed)))
		return current, sug, raw, nil
	}
	if retry.Metrics == nil {
		retry.Metrics = sug.Metrics
	}
	t.logger.Info("prompt condensed", "iteration", iteration, "chars", len([]rune(condensed)))
	return condensed, retry, retryRaw, nil
}

func (t *Trainer) fits(prompt string) bool {
	return t.opts.MaxPromptChars <= 0 || len([]rune(prompt)) <= t.opts.MaxPromptChars
}

func (t *Trainer) ask(ctx context.Context, prompt string) (string, error) {
	return t.llm.Generate(ctx, genai.Request{
		System:      fmt.Sprintf(metaPrompt, t.opts.MaxPromptChars),
		Prompt:      prompt,
		Temperature: 0.7,
		MaxTokens:   4096,
	})
}

func (t *Trainer) parse(raw string) (*Suggestion, bool) {
	var sug Suggestion
	out := t.recoverer.Recover(raw)
	if !out.OK() {
		return nil, false
	}
	if err := out.Decode(&sug); err != nil {
		return nil, false
	}
	return &sug, true
}

func (t *Trainer) promote(prompt string, iteration int, score float64, st *State) error {
	at := t.now().UTC()
	if err := writeBestPrompt(t.opts.BestPromptPath, prompt, iteration, score, at); err != nil {
		return err
	}
	st.BestScore = score
	st.BestIteration = iteration
	t.logger.Info("best prompt promoted", "iteration", iteration, "score", score)

	if err := t.events.Publish(hermes.SubjectPromptPromoted, hermes.PromptPromoted{
		EventID:   hermes.NewEventID(),
		Iteration: iteration,
		Score:     score,
		Chars:     len([]rune(prompt)),
		Path:      t.opts.BestPromptPath,
		At:        at,
	}); err != nil {
		t.logger.Warn("publish prompt promoted failed", "error", err)
	}
	return nil
}

// loadDataset reads the vectors file, exporting it first when missing.
func (t *Trainer) loadDataset(ctx context.Context) (dataset.Dataset, error) {
	data, err := dataset.LoadVectors(t.opts.DatasetPath)
	if errors.Is(err, dataset.ErrNotFound) && t.exporter != nil {
		t.logger.Info("dataset missing, exporting from warehouse", "path", t.opts.DatasetPath)
		if _, err := t.exporter.ExportOnce(ctx); err != nil {
			return dataset.Dataset{}, fmt.Errorf("export dataset: %w", err)
		}
		data, err = dataset.LoadVectors(t.opts.DatasetPath)
	}
	if err != nil {
		return dataset.Dataset{}, err
	}
	if data.Len() == 0 {
		return dataset.Dataset{}, ErrEmptyDataset
	}
	return data, nil
}

func (t *Trainer) wait(ctx context.Context) error {
	if t.opts.Interval <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(t.opts.Interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RunContinuous trains once per request received on triggers until ctx is
// done or the channel closes. A failed round is logged and the trainer keeps
// waiting.
func (t *Trainer) RunContinuous(ctx context.Context, initial string, triggers <-chan hermes.RetrainRequested) error {
	t.logger.Info("waiting for retrain triggers")
	for {
		select {
		case <-ctx.Done():
			return nil
		case req, ok := <-triggers:
			if !ok {
				return nil
			}
			t.logger.Info("retrain triggered",
				"new_records", req.NewRecords,
				"total_records", req.TotalRecords,
				"reason", req.Reason,
			)
			if err := t.Train(ctx, initial); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				t.logger.Error("training round failed", "error", err)
			}
		}
	}
}

// Merge fans several trigger channels into one. The result closes when ctx
// is done or all inputs have closed.
func Merge(ctx context.Context, chans ...<-chan hermes.RetrainRequested) <-chan hermes.RetrainRequested {
	out := make(chan hermes.RetrainRequested)
	var wg sync.WaitGroup
	for _, c := range chans {
		wg.Add(1)
		go func(c <-chan hermes.RetrainRequested) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case req, ok := <-c:
					if !ok {
						return
					}
					select {
					case out <- req:
					case <-ctx.Done():
						return
					}
				}
			}
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
