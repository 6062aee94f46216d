package project

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/cipher241/Smart-Cities-Banorte/internal/normalize"
)

// MethodHeuristic marks records built by Heuristic.
const MethodHeuristic = "fallback_heuristic"

const maxNameChars = 200

var (
	yearPattern   = regexp.MustCompile(`\b(20\d{2})\b`)
	moneyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*millones?\s*(?:de\s*)?pesos`),
		regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*mil\s*(?:millones?\s*)?pesos`),
		regexp.MustCompile(`(?i)\$\s*(\d+(?:,\d+)*(?:\.\d+)?)\s*(?:millones?|mil)?`),
	}
)

type sectorKeywords struct {
	sector   string
	keywords []string
}

// Checked in order; the first sector with a matching keyword wins.
var sectorTable = []sectorKeywords{
	{"Agua", []string{"agua", "hidraulico", "presa", "acueducto"}},
	{"Energía", []string{"energia", "electricidad", "solar", "eolico"}},
	{"Transporte", []string{"carretera", "autopista", "transporte", "vial"}},
	{"Salud", []string{"hospital", "salud", "clinica", "medico"}},
	{"Educación", []string{"escuela", "educacion", "universidad", "estudiante"}},
}

// Heuristic builds a best-effort record from raw document text when model
// extraction is unavailable. The first non-blank line becomes the name, the
// earliest and latest 20xx years the schedule, the first money phrase the
// budget, and the first keyword hit the sector.
func Heuristic(text, docName string, now time.Time) map[string]any {
	rec := map[string]any{
		"nombre":                  nil,
		"sector":                  nil,
		"dependencia":             nil,
		"ubicacion":               nil,
		"anio_inicio":             nil,
		"anio_fin":                nil,
		"doc_fuente":              docName,
		"fecha_carga":             now.Format("2006-01-02"),
		"presupuesto_total_mxn":   nil,
		"beneficiarios_estimados": nil,
		"_extraction_method":      MethodHeuristic,
	}

	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			if r := []rune(line); len(r) > maxNameChars {
				line = string(r[:maxNameChars])
			}
			rec["nombre"] = line
			break
		}
	}

	if matches := yearPattern.FindAllString(text, -1); len(matches) > 0 {
		years := make([]int, 0, len(matches))
		for _, m := range matches {
			y, _ := strconv.Atoi(m)
			years = append(years, y)
		}
		sort.Ints(years)
		rec["anio_inicio"] = years[0]
		if len(years) > 1 {
			rec["anio_fin"] = years[len(years)-1]
		}
	}

	for _, p := range moneyPatterns {
		if m := p.FindString(text); m != "" {
			rec["presupuesto_total_mxn"] = normalize.Value(m)
			break
		}
	}

	folded := Fold(text)
	for _, s := range sectorTable {
		if containsAny(folded, s.keywords) {
			rec["sector"] = s.sector
			break
		}
	}

	return rec
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Fold lower-cases s and strips diacritics so "Hidráulico" matches "hidraulico".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
