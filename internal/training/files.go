package training

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/cipher241/Smart-Cities-Banorte/internal/storage"
)

var separator = strings.Repeat("=", 80)

// State is persisted between training runs.
type State struct {
	CurrentIteration  int     `json:"current_iteration"`
	BestIteration     int     `json:"best_iteration"`
	BestScore         float64 `json:"best_score"`
	RetrainsCompleted int     `json:"retrains_completed"`
}

// LoadState reads the state file. A missing or unreadable file starts from
// zero.
func LoadState(path string) State {
	var st State
	data, err := os.ReadFile(path)
	if err != nil {
		return st
	}
	if json.Unmarshal(data, &st) != nil {
		return State{}
	}
	return st
}

func saveState(path string, st State) error {
	if err := storage.WriteJSON(path, st); err != nil {
		return fmt.Errorf("save training state: %w", err)
	}
	return nil
}

// writeBestPrompt replaces the best prompt file. The header block ends with
// a separator line; LoadBestPrompt drops it.
func writeBestPrompt(path, prompt string, iteration int, score float64, at time.Time) error {
	var b strings.Builder
	b.WriteString(separator + "\n")
	b.WriteString("MEJOR PROMPT DE ANÁLISIS (USAR EN API)\n")
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "Iteración: %d\n", iteration)
	fmt.Fprintf(&b, "Score: %.2f/10\n", score)
	fmt.Fprintf(&b, "Generado: %s\n", at.Format(time.RFC3339))
	b.WriteString(separator + "\n\n")
	b.WriteString(prompt)
	if err := storage.WriteFileAtomic(path, []byte(b.String())); err != nil {
		return fmt.Errorf("write best prompt: %w", err)
	}
	return nil
}

// LoadBestPrompt returns the prompt stored at path without its header. A
// file without separators is returned whole.
func LoadBestPrompt(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	content := string(data)
	if i := strings.LastIndex(content, separator); i >= 0 {
		content = content[i+len(separator):]
	}
	return strings.TrimSpace(content), nil
}

const (
	promptHeader  = "PROMPT:\n"
	changesHeader = "\n\nCAMBIOS:\n"
	metricsHeader = "\nMÉTRICAS:\n"
	diffHeader    = "\nDIFF:\n"
	errorHeader   = "ERROR PARSEANDO\n"
	rawErrorChars = 500
)

// iterationRecord is what one iteration file holds.
type iterationRecord struct {
	Iteration int
	Limit     int
	Prompt    string
	Previous  string
	Raw       string
	Parsed    *Suggestion
	At        time.Time
}

func iterationFileName(iteration int, at time.Time) string {
	return fmt.Sprintf("iteration_%04d_%s.txt", iteration, at.Format("20060102_150405"))
}

func writeIteration(dir string, rec iterationRecord) (string, error) {
	chars := len([]rune(rec.Prompt))
	status := "OK"
	if chars > rec.Limit {
		status = "EXCEDE"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "ITERACIÓN %d\n", rec.Iteration)
	fmt.Fprintf(&b, "Tamaño: %d/%d\n", chars, rec.Limit)
	fmt.Fprintf(&b, "Estado: %s\n\n", status)

	if rec.Parsed == nil && rec.Iteration > 0 {
		raw := []rune(rec.Raw)
		if len(raw) > rawErrorChars {
			raw = raw[:rawErrorChars]
		}
		b.WriteString(errorHeader)
		b.WriteString(string(raw))
	} else {
		b.WriteString(promptHeader)
		b.WriteString(rec.Prompt)
		b.WriteString(changesHeader)
		if rec.Parsed != nil {
			for _, c := range rec.Parsed.Changes {
				fmt.Fprintf(&b, "- %s\n", c)
			}
			if rec.Parsed.Metrics != nil {
				m := rec.Parsed.Metrics
				b.WriteString(metricsHeader)
				fmt.Fprintf(&b, "Precisión: %v/10\n", m[MetricPrecision])
				fmt.Fprintf(&b, "Claridad: %v/10\n", m[MetricClarity])
				fmt.Fprintf(&b, "Robustez: %v/10\n", m[MetricRobustness])
			}
		} else {
			b.WriteString("- baseline\n")
		}
		if rec.Previous != "" && rec.Previous != rec.Prompt {
			b.WriteString(diffHeader)
			b.WriteString(promptPatch(rec.Previous, rec.Prompt))
		}
	}

	path := filepath.Join(dir, iterationFileName(rec.Iteration, rec.At))
	if err := storage.WriteFileAtomic(path, []byte(b.String())); err != nil {
		return "", fmt.Errorf("write iteration: %w", err)
	}
	return path, nil
}

// promptPatch renders the change from before to after as a unified patch.
func promptPatch(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	return dmp.PatchToText(dmp.PatchMake(before, diffs))
}

// parseIterationPrompt extracts the prompt section of an iteration file.
func parseIterationPrompt(content string) (string, bool) {
	i := strings.Index(content, promptHeader)
	if i < 0 {
		return "", false
	}
	rest := content[i+len(promptHeader):]
	if j := strings.Index(rest, changesHeader); j >= 0 {
		rest = rest[:j]
	}
	rest = strings.TrimSpace(rest)
	return rest, rest != ""
}

// latestPrompt returns the prompt of the newest iteration file in dir that
// has one. File names sort by iteration number, then time.
func latestPrompt(dir string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(dir, "iteration_*.txt"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			continue
		}
		if p, ok := parseIterationPrompt(string(data)); ok {
			return p, true
		}
	}
	return "", false
}
