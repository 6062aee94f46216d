package storage

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// ErrCorruptOutput is returned when an existing output file cannot be
// parsed. The file is never overwritten in that case.
var ErrCorruptOutput = errors.New("output file is corrupt")

// CSVColumns is the fixed column set of the results CSV.
var CSVColumns = []string{
	"nombre",
	"sector",
	"doc_fuente",
	"presupuesto_total_mxn",
	"anio_inicio",
	"anio_fin",
	"beneficiarios_estimados",
	"_validation",
}

// Records appends finished records to the JSON array file and the CSV file.
// It is safe for concurrent use.
type Records struct {
	mu       sync.Mutex
	jsonPath string
	csvPath  string
}

func NewRecords(jsonPath, csvPath string) *Records {
	return &Records{jsonPath: jsonPath, csvPath: csvPath}
}

// Append writes rec to both outputs.
func (r *Records) Append(rec map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := AppendJSON(r.jsonPath, rec); err != nil {
		return err
	}
	return AppendCSV(r.csvPath, rec)
}

// AppendJSON adds rec to the JSON array stored at path. A missing file
// starts a new array; a file that is not a JSON array is left untouched and
// reported as ErrCorruptOutput.
func AppendJSON(path string, rec map[string]any) error {
	var existing []any
	if data, err := os.ReadFile(path); err == nil {
		if len(bytes.TrimSpace(data)) > 0 {
			if err := json.Unmarshal(data, &existing); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrCorruptOutput, filepath.Base(path), err)
			}
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return WriteJSON(path, append(existing, rec))
}

// AppendCSV adds one row for rec to the CSV at path, writing the header
// first when the file is new.
func AppendCSV(path string, rec map[string]any) error {
	_, err := os.Stat(path)
	writeHeader := os.IsNotExist(err)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(CSVColumns); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	row := make([]string, len(CSVColumns))
	for i, col := range CSVColumns {
		row[i] = cell(rec[col])
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	w.Flush()
	return w.Error()
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}

// WriteDebug dumps v as <dir>/<name>.json.
func WriteDebug(dir, name string, v any) error {
	return WriteJSON(filepath.Join(dir, name+".json"), v)
}
