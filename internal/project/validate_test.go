package project

import (
	"reflect"
	"testing"
	"time"
)

func validRecord() map[string]any {
	return map[string]any{
		"nombre":                "Acueducto Norte",
		"sector":                "Agua",
		"doc_fuente":            "acueducto.pdf",
		"anio_inicio":           2024,
		"anio_fin":              2027,
		"presupuesto_total_mxn": 15_000_000.0,
		"score_costo_beneficio": 7.5,
	}
}

func TestValidate_OK(t *testing.T) {
	if issues := Validate(validRecord()); len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}
}

func TestValidate_Issues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
		want   []string
	}{
		{"missing nombre", func(r map[string]any) { r["nombre"] = nil }, []string{"nombre_missing"}},
		{"blank sector", func(r map[string]any) { r["sector"] = "  " }, []string{"sector_missing", "sector_invalid:  "}},
		{"missing doc", func(r map[string]any) { delete(r, "doc_fuente") }, []string{"doc_fuente_missing"}},
		{"invalid sector", func(r map[string]any) { r["sector"] = "Minería" }, []string{"sector_invalid:Minería"}},
		{"start year range", func(r map[string]any) { r["anio_inicio"] = 1850 }, []string{"anio_inicio_invalid:1850"}},
		{"end year range", func(r map[string]any) { r["anio_fin"] = 2200 }, []string{"anio_fin_invalid:2200"}},
		{"inconsistent years", func(r map[string]any) { r["anio_inicio"] = 2030 }, []string{"anio_inconsistency"}},
		{"zero year ignored", func(r map[string]any) { r["anio_inicio"] = 0 }, nil},
		{"negative budget", func(r map[string]any) { r["presupuesto_total_mxn"] = -1.0 }, []string{"presupuesto_negative"}},
		{"suspicious budget", func(r map[string]any) { r["presupuesto_total_mxn"] = 2e12 }, []string{"presupuesto_suspicious"}},
		{"budget wrong type", func(r map[string]any) { r["presupuesto_total_mxn"] = []any{1} }, []string{"presupuesto_invalid_type"}},
		{"budget numeric string", func(r map[string]any) { r["presupuesto_total_mxn"] = "1500" }, nil},
		{"score range", func(r map[string]any) { r["score_costo_beneficio"] = 11.0 }, []string{"score_out_of_range"}},
		{"score wrong type", func(r map[string]any) { r["score_costo_beneficio"] = "alto" }, []string{"score_invalid_type"}},
		{"nil score ignored", func(r map[string]any) { r["score_costo_beneficio"] = nil }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(rec)
			got := Validate(rec)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestStamp(t *testing.T) {
	now := time.Date(2025, 10, 4, 12, 0, 0, 0, time.UTC)

	rec := Stamp(validRecord(), now)
	if !IsValid(rec) {
		t.Errorf("expected OK, got %v", rec["_validation"])
	}
	if rec["_validated_at"] != "2025-10-04T12:00:00Z" {
		t.Errorf("unexpected _validated_at %v", rec["_validated_at"])
	}

	bad := validRecord()
	bad["nombre"] = ""
	bad["score_costo_beneficio"] = -2.0
	Stamp(bad, now)
	if bad["_validation"] != "nombre_missing,score_out_of_range" {
		t.Errorf("unexpected _validation %v", bad["_validation"])
	}
	if IsValid(bad) {
		t.Error("expected record to be invalid")
	}
}

func TestVerdict(t *testing.T) {
	tests := map[float64]string{
		10:  VerdictPriority,
		9:   VerdictPriority,
		8.9: VerdictConditional,
		7:   VerdictConditional,
		5:   VerdictRestructure,
		4.9: VerdictReject,
		0:   VerdictReject,
	}
	for score, want := range tests {
		if got := Verdict(score); got != want {
			t.Errorf("Verdict(%v): expected %q, got %q", score, want, got)
		}
	}
}
