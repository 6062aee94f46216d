package project

// Verdict texts by benefit-cost score band.
const (
	VerdictPriority    = "Banorte recomienda financiamiento prioritario por métricas excepcionales"
	VerdictConditional = "Banorte sugiere financiamiento condicionado a supervisión rigurosa"
	VerdictRestructure = "Banorte no recomienda participación sin reestructuración mayor del proyecto"
	VerdictReject      = "Banorte rechaza financiamiento por riesgos críticos identificados"
)

// DefaultJustification is used when the model gives no justification.
const DefaultJustification = "Decisión sustentada en costo-beneficio, riesgos y comparables históricos."

// Verdict maps a 0-10 benefit-cost score to a financing verdict.
func Verdict(score float64) string {
	switch {
	case score >= 9:
		return VerdictPriority
	case score >= 7:
		return VerdictConditional
	case score >= 5:
		return VerdictRestructure
	default:
		return VerdictReject
	}
}
