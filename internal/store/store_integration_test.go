//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestIntegration_WriteAndReadProject(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	before, err := s.MaxProjectID(ctx)
	if err != nil {
		t.Fatalf("MaxProjectID failed: %v", err)
	}

	name := "integration-" + uuid.New().String()[:8]
	id, err := s.WriteProject(ctx, map[string]any{
		"nombre":                name,
		"sector":                "Transporte",
		"doc_fuente":            name + ".pdf",
		"fecha_carga":           "2025-10-04",
		"anio_inicio":           2025,
		"presupuesto_total_mxn": 1_000_000.0,
		"score_costo_beneficio": 6.0,
	})
	if err != nil {
		t.Fatalf("WriteProject failed: %v", err)
	}
	if id <= before {
		t.Fatalf("expected id greater than %d, got %d", before, id)
	}

	refs, err := s.ProjectsAfter(ctx, before)
	if err != nil {
		t.Fatalf("ProjectsAfter failed: %v", err)
	}
	found := false
	for _, r := range refs {
		if r.ID == id && r.Nombre == name {
			found = true
		}
	}
	if !found {
		t.Errorf("expected project %d in %+v", id, refs)
	}

	cols, rows, err := s.Dataset(ctx)
	if err != nil {
		t.Fatalf("Dataset failed: %v", err)
	}
	if len(cols) != 24 {
		t.Errorf("expected 24 dataset columns, got %d", len(cols))
	}
	if len(rows) == 0 {
		t.Error("expected dataset rows")
	}
}
