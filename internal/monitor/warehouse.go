package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cipher241/Smart-Cities-Banorte/internal/hermes"
	"github.com/cipher241/Smart-Cities-Banorte/internal/storage"
	"github.com/cipher241/Smart-Cities-Banorte/internal/store"
)

// Source is the read side of the warehouse.
type Source interface {
	MaxProjectID(ctx context.Context) (int64, error)
	ProjectsAfter(ctx context.Context, lastID int64) ([]store.ProjectRef, error)
	Dataset(ctx context.Context) ([]string, [][]any, error)
}

// WarehouseState is persisted between runs of the warehouse monitor.
type WarehouseState struct {
	LastProjectID     int64      `json:"last_id_proyecto"`
	TotalRecords      int        `json:"total_records"`
	LastUpdate        *time.Time `json:"last_update"`
	RetrainsTriggered int        `json:"retrains_triggered"`
}

// LoadWarehouseState reads the state file. A missing or unreadable file
// starts from zero.
func LoadWarehouseState(path string) WarehouseState {
	var st WarehouseState
	data, err := os.ReadFile(path)
	if err != nil {
		return st
	}
	if json.Unmarshal(data, &st) != nil {
		return WarehouseState{}
	}
	return st
}

type WarehouseOptions struct {
	StatePath     string
	VectorsPath   string
	DictPath      string
	MinNewRecords int64
}

// WarehouseMonitor watches the projects table and refreshes the training
// dataset files when new rows land.
type WarehouseMonitor struct {
	src     Source
	trigger Trigger
	opts    WarehouseOptions
	logger  *slog.Logger
	now     func() time.Time
}

func NewWarehouseMonitor(src Source, trigger Trigger, opts WarehouseOptions, logger *slog.Logger) *WarehouseMonitor {
	if opts.MinNewRecords < 1 {
		opts.MinNewRecords = 1
	}
	return &WarehouseMonitor{
		src:     src,
		trigger: trigger,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// State returns the persisted monitor state.
func (m *WarehouseMonitor) State() WarehouseState {
	return LoadWarehouseState(m.opts.StatePath)
}

// Check looks for projects newer than the last one seen. When there are any
// it re-exports the dataset and advances the state; when there are at least
// MinNewRecords it also fires the retrain trigger. It reports how many new
// projects were found.
func (m *WarehouseMonitor) Check(ctx context.Context) (int64, error) {
	st := m.State()

	maxID, err := m.src.MaxProjectID(ctx)
	if err != nil {
		return 0, err
	}
	if maxID <= st.LastProjectID {
		m.logger.Debug("no new projects", "last_id_proyecto", st.LastProjectID)
		return 0, nil
	}
	newCount := maxID - st.LastProjectID

	refs, err := m.src.ProjectsAfter(ctx, st.LastProjectID)
	if err != nil {
		m.logger.Warn("list new projects failed", "error", err)
	}
	for _, r := range refs {
		m.logger.Info("new project", "id_proyecto", r.ID, "nombre", r.Nombre, "sector", r.Sector)
	}

	total, err := m.export(ctx)
	if err != nil {
		return 0, err
	}

	st.LastProjectID = maxID
	st.TotalRecords = total
	if err := m.saveState(&st); err != nil {
		return newCount, err
	}

	if newCount < m.opts.MinNewRecords {
		m.logger.Info("waiting for more records before retraining",
			"new", newCount,
			"min", m.opts.MinNewRecords,
		)
		return newCount, nil
	}

	req := hermes.RetrainRequested{
		EventID:      hermes.NewEventID(),
		TriggeredAt:  m.now().UTC(),
		NewRecords:   newCount,
		TotalRecords: int64(total),
		Reason:       ReasonNewData,
	}
	if err := m.trigger.Fire(ctx, req); err != nil {
		return newCount, fmt.Errorf("fire retrain: %w", err)
	}
	st.RetrainsTriggered++
	if err := m.saveState(&st); err != nil {
		return newCount, err
	}
	m.logger.Info("retrain triggered",
		"new", newCount,
		"total", total,
		"retrains_triggered", st.RetrainsTriggered,
	)
	return newCount, nil
}

// ExportOnce writes the dataset files and records the total without
// touching last_id_proyecto or firing a trigger. It returns the row count.
func (m *WarehouseMonitor) ExportOnce(ctx context.Context) (int, error) {
	total, err := m.export(ctx)
	if err != nil {
		return 0, err
	}
	st := m.State()
	st.TotalRecords = total
	if err := m.saveState(&st); err != nil {
		return total, err
	}
	m.logger.Info("dataset exported", "records", total)
	return total, nil
}

// Run checks on every interval until ctx is done.
func (m *WarehouseMonitor) Run(ctx context.Context, interval time.Duration) {
	Loop(ctx, interval, func(ctx context.Context) {
		if _, err := m.Check(ctx); err != nil {
			m.logger.Error("warehouse check failed", "error", err)
		}
	})
}

// export writes the vectors file (header row then value rows) and the dict
// file (one object per row).
func (m *WarehouseMonitor) export(ctx context.Context) (int, error) {
	columns, rows, err := m.src.Dataset(ctx)
	if err != nil {
		return 0, err
	}

	vectors := make([][]any, 0, len(rows)+1)
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	vectors = append(vectors, header)
	vectors = append(vectors, rows...)

	dicts := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		d := make(map[string]any, len(columns))
		for i, c := range columns {
			if i < len(row) {
				d[c] = row[i]
			}
		}
		dicts = append(dicts, d)
	}

	if err := storage.WriteJSON(m.opts.VectorsPath, vectors); err != nil {
		return 0, fmt.Errorf("write dataset vectors: %w", err)
	}
	if err := storage.WriteJSON(m.opts.DictPath, dicts); err != nil {
		return 0, fmt.Errorf("write dataset dict: %w", err)
	}
	return len(rows), nil
}

func (m *WarehouseMonitor) saveState(st *WarehouseState) error {
	now := m.now().UTC()
	st.LastUpdate = &now
	if err := storage.WriteJSON(m.opts.StatePath, st); err != nil {
		return fmt.Errorf("save monitor state: %w", err)
	}
	return nil
}
