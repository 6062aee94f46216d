package analysis

// scorecardPrompt: dataset context, document text.
const scorecardPrompt = `%s

El sistema emplea un modelo de evaluación especializado entrenado con un corpus curado de proyectos públicos,
reforzado con técnicas de prompting y recuperación de contexto. Su objetivo es asistir a gobiernos de distinta
escala en la formulación y priorización de proyectos con mayor impacto social y solidez financiera.

RETORNA ESTRICTAMENTE ESTE JSON (sin texto adicional):
{
  "nombre": "string",
  "sector": "string",
  "ubicacion": "string",
  "presupuesto_total_mxn": float,
  "beneficiarios_estimados": float,
  "eficiencia_financiera": float,
  "score_costo_beneficio": float,
  "analisis_financiero": "string",
  "riesgo_financiero": "1. ... 2. ... 3. ... 4. ... 5. ...",
  "recomendaciones": "1. ... 2. ... 3. ... 4. ... 5. ..."
}

CRITERIOS:
- Beneficiarios: si no hay dato explícito, estimar razonablemente (nunca null).
- Riesgos y Recomendaciones: 5 puntos numerados, concretos.
- Análisis financiero: 150-200 palabras, viabilidad, costo-beneficio, sostenibilidad, riesgos.

DOCUMENTO:
%s`

// DefaultBeneficiaries replaces a missing or non-positive estimate.
const DefaultBeneficiaries = 10000

// DefaultRisks replaces an empty risk list.
const DefaultRisks = "1. Información insuficiente. 2. Requiere auditoría completa. " +
	"3. Falta de datos críticos. 4. Riesgo de ejecución. 5. Riesgo de sobrecosto."

// DefaultRecommendations replaces an empty recommendation list.
const DefaultRecommendations = "1. Solicitar documentación completa. 2. Auditoría independiente. " +
	"3. Rediseñar cronograma. 4. Financiamiento por hitos. 5. KPIs públicos."
