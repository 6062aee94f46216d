// Package dataset reads the exported warehouse dataset and summarises it as
// prompt context.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cipher241/Smart-Cities-Banorte/internal/normalize"
)

// ErrNotFound is returned when the dataset file does not exist.
var ErrNotFound = errors.New("dataset not found")

const maxSectors = 5

// Dataset is a table of exported projects.
type Dataset struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of projects.
func (d Dataset) Len() int { return len(d.Rows) }

// LoadVectors reads the vectors file: a JSON array whose first element is the
// header row.
func LoadVectors(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Dataset{}, ErrNotFound
		}
		return Dataset{}, fmt.Errorf("read dataset: %w", err)
	}
	var table [][]any
	if err := json.Unmarshal(data, &table); err != nil {
		return Dataset{}, fmt.Errorf("parse dataset: %w", err)
	}
	if len(table) == 0 {
		return Dataset{}, nil
	}
	d := Dataset{Columns: make([]string, len(table[0])), Rows: table[1:]}
	for i, c := range table[0] {
		d.Columns[i] = fmt.Sprint(c)
	}
	return d, nil
}

// LoadDicts reads the dict file: a JSON array of one object per project.
// Columns are the union of keys in sorted order.
func LoadDicts(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Dataset{}, ErrNotFound
		}
		return Dataset{}, fmt.Errorf("read dataset: %w", err)
	}
	var objs []map[string]any
	if err := json.Unmarshal(data, &objs); err != nil {
		return Dataset{}, fmt.Errorf("parse dataset: %w", err)
	}

	seen := map[string]bool{}
	var d Dataset
	for _, o := range objs {
		for k := range o {
			if !seen[k] {
				seen[k] = true
				d.Columns = append(d.Columns, k)
			}
		}
	}
	sort.Strings(d.Columns)
	for _, o := range objs {
		row := make([]any, len(d.Columns))
		for i, c := range d.Columns {
			row[i] = o[c]
		}
		d.Rows = append(d.Rows, row)
	}
	return d, nil
}

// column finds name case-insensitively.
func (d Dataset) column(name string) int {
	for i, c := range d.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// Summary aggregates the dataset for prompt context.
type Summary struct {
	Projects  int
	Sectors   []string
	Budgets   int
	AvgBudget float64
	MinBudget float64
	MaxBudget float64
	Scores    int
	AvgScore  float64
}

// Summarize collects sectors, budget statistics and the mean score.
func (d Dataset) Summarize() Summary {
	s := Summary{Projects: d.Len()}
	sectorIdx := d.column("sector")
	budgetIdx := d.column("presupuesto_total")
	if budgetIdx < 0 {
		budgetIdx = d.column("presupuesto_total_mxn")
	}
	scoreIdx := d.column("score_costo_beneficio")

	sectors := map[string]bool{}
	var budgetSum, scoreSum float64
	for _, row := range d.Rows {
		if v := cell(row, sectorIdx); v != nil {
			if name := strings.TrimSpace(fmt.Sprint(v)); name != "" {
				sectors[name] = true
			}
		}
		if f, ok := normalize.ToNumber(cell(row, budgetIdx)); ok {
			if s.Budgets == 0 || f < s.MinBudget {
				s.MinBudget = f
			}
			if s.Budgets == 0 || f > s.MaxBudget {
				s.MaxBudget = f
			}
			budgetSum += f
			s.Budgets++
		}
		if f, ok := normalize.ToNumber(cell(row, scoreIdx)); ok {
			scoreSum += f
			s.Scores++
		}
	}

	for name := range sectors {
		s.Sectors = append(s.Sectors, name)
	}
	sort.Strings(s.Sectors)
	if len(s.Sectors) > maxSectors {
		s.Sectors = s.Sectors[:maxSectors]
	}
	if s.Budgets > 0 {
		s.AvgBudget = budgetSum / float64(s.Budgets)
	}
	if s.Scores > 0 {
		s.AvgScore = scoreSum / float64(s.Scores)
	}
	return s
}

func cell(row []any, i int) any {
	if i < 0 || i >= len(row) {
		return nil
	}
	return row[i]
}

var printer = message.NewPrinter(language.English)

// Money formats f as whole pesos with thousands separators.
func Money(f float64) string {
	return printer.Sprintf("$%.0f", f)
}

// TrainingContext is the short dataset description given to the prompt
// trainer.
func (s Summary) TrainingContext() string {
	if s.Projects == 0 {
		return "Dataset vacío"
	}
	if s.Budgets == 0 {
		return fmt.Sprintf("Dataset: %d proyectos", s.Projects)
	}
	return fmt.Sprintf("Dataset real (warehouse): %d proyectos\nSectores: %s\nPresupuesto promedio: %s MXN\nRango: %s - %s",
		s.Projects,
		strings.Join(s.Sectors, ", "),
		Money(s.AvgBudget),
		Money(s.MinBudget),
		Money(s.MaxBudget),
	)
}

// AnalysisContext is the evaluation preamble used by the scorecard analyzer.
func (s Summary) AnalysisContext() string {
	if s.Projects == 0 {
		return "Dataset no disponible"
	}
	if s.Budgets == 0 {
		return fmt.Sprintf("Base de datos: %d proyectos", s.Projects)
	}
	return fmt.Sprintf(`CONTEXTO - BASE DE DATOS ACTUAL:
• Proyectos analizados: %d
• Sectores: %s
• Presupuesto promedio: %s MXN
• Score histórico promedio: %.1f/10
• Rango: %s - %s MXN

ENFOQUE DE EVALUACIÓN:
✓ Realismo sobre promesas políticas
✓ Impacto social MEDIBLE
✓ Riesgos financieros ESPECÍFICOS
✓ Comparación con proyectos similares`,
		s.Projects,
		strings.Join(s.Sectors, ", "),
		Money(s.AvgBudget),
		s.AvgScore,
		Money(s.MinBudget),
		Money(s.MaxBudget),
	)
}
