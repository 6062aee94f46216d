package normalize

import (
	"strconv"
	"strings"
)

// NumericFields are converted with ToNumber when present in a record.
var NumericFields = []string{
	"presupuesto_total_mxn",
	"beneficiarios_estimados",
	"costo_operativo_mxn",
	"costo_mantenimiento_mxn",
	"impacto_fisico",
	"kpi",
	"score_costo_beneficio",
	"eficiencia_financiera",
}

var requiredKeys = []string{"nombre", "sector", "doc_fuente", "fecha_carga"}

// Record returns a normalized copy of rec. The input is not modified.
//
// Required keys are always present (nil when unknown), numeric fields that
// are present become float64 or nil, anio_inicio and anio_fin become the int
// formed by their first four characters, and every confianza entry becomes a
// float64 or nil.
func Record(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec)+len(requiredKeys))
	for k, v := range rec {
		out[k] = v
	}
	for _, k := range requiredKeys {
		if _, ok := out[k]; !ok {
			out[k] = nil
		}
	}

	for _, k := range NumericFields {
		if v, ok := out[k]; ok {
			out[k] = Value(v)
		}
	}

	for _, k := range []string{"anio_inicio", "anio_fin"} {
		out[k] = Year(out[k])
	}

	if conf, ok := out["confianza"].(map[string]any); ok {
		cleaned := make(map[string]any, len(conf))
		for k, v := range conf {
			cleaned[k] = confidence(v)
		}
		out["confianza"] = cleaned
	}

	return out
}

// Year parses the first four characters of v as a year. It returns nil for
// empty, null or unparseable values.
func Year(v any) any {
	var s string
	switch y := v.(type) {
	case nil:
		return nil
	case string:
		s = y
	case float64:
		s = strconv.FormatFloat(y, 'f', -1, 64)
	case int:
		s = strconv.Itoa(y)
	case int64:
		s = strconv.FormatInt(y, 10)
	default:
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	if r := []rune(s); len(r) > 4 {
		s = string(r[:4])
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return n
}

func confidence(v any) any {
	switch c := v.(type) {
	case bool:
		if c {
			return 1.0
		}
		return 0.0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return nil
		}
		return f
	}
	if f, ok := ToNumber(v); ok {
		return f
	}
	return nil
}
