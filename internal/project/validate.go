// Package project holds the rules for public-infrastructure project records:
// field validation, the heuristic extraction used when the model fails, and
// the financing verdict bands.
package project

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Validation value for a record with no issues.
const ValidationOK = "OK"

// ValidSectors lists the sector names accepted in a record.
var ValidSectors = []string{
	"Agua",
	"Energía",
	"Transporte",
	"Infraestructura",
	"Salud",
	"Educación",
	"Medio Ambiente",
	"Desarrollo Social",
}

const (
	minYear        = 1900
	maxYear        = 2100
	maxBudgetMXN   = 1_000_000_000_000
	maxBenefitCost = 10
)

// IsValidSector reports whether s is one of ValidSectors.
func IsValidSector(s string) bool {
	for _, v := range ValidSectors {
		if v == s {
			return true
		}
	}
	return false
}

// Validate checks a normalized record and returns its issues in a stable
// order. An empty slice means the record is fine.
func Validate(rec map[string]any) []string {
	var issues []string

	for _, k := range []string{"nombre", "sector", "doc_fuente"} {
		if !present(rec[k]) {
			issues = append(issues, k+"_missing")
		}
	}

	if sector, ok := rec["sector"].(string); ok && sector != "" && !IsValidSector(sector) {
		issues = append(issues, "sector_invalid:"+sector)
	}

	start, hasStart := year(rec["anio_inicio"])
	end, hasEnd := year(rec["anio_fin"])
	if hasStart && (start < minYear || start > maxYear) {
		issues = append(issues, fmt.Sprintf("anio_inicio_invalid:%d", start))
	}
	if hasEnd && (end < minYear || end > maxYear) {
		issues = append(issues, fmt.Sprintf("anio_fin_invalid:%d", end))
	}
	if hasStart && hasEnd && start > end {
		issues = append(issues, "anio_inconsistency")
	}

	if v, ok := rec["presupuesto_total_mxn"]; ok && v != nil {
		p, ok := asFloat(v)
		switch {
		case !ok:
			issues = append(issues, "presupuesto_invalid_type")
		case p < 0:
			issues = append(issues, "presupuesto_negative")
		case p > maxBudgetMXN:
			issues = append(issues, "presupuesto_suspicious")
		}
	}

	if v, ok := rec["score_costo_beneficio"]; ok && v != nil {
		s, ok := asFloat(v)
		switch {
		case !ok:
			issues = append(issues, "score_invalid_type")
		case s < 0 || s > maxBenefitCost:
			issues = append(issues, "score_out_of_range")
		}
	}

	return issues
}

// Stamp runs Validate and records the result on rec under _validation and
// _validated_at. It returns rec for chaining.
func Stamp(rec map[string]any, now time.Time) map[string]any {
	issues := Validate(rec)
	if len(issues) == 0 {
		rec["_validation"] = ValidationOK
	} else {
		rec["_validation"] = strings.Join(issues, ",")
	}
	rec["_validated_at"] = now.Format(time.RFC3339)
	return rec
}

// IsValid reports whether a stamped record passed validation.
func IsValid(rec map[string]any) bool {
	return rec["_validation"] == ValidationOK
}

func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	}
	return true
}

// year accepts the int produced by normalization as well as raw JSON numbers.
// Zero counts as absent.
func year(v any) (int, bool) {
	switch y := v.(type) {
	case int:
		return y, y != 0
	case int64:
		return int(y), y != 0
	case float64:
		return int(y), y != 0
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
