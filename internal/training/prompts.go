package training

// AnchorMarker must appear in every trained prompt.
const AnchorMarker = "REGLAS FUNDAMENTALES"

// Anchor is prepended to any prompt that lost its marker.
const Anchor = `
REGLAS FUNDAMENTALES (INMUTABLES):
1. OBJETIVO: Analizar PDFs de proyectos de infraestructura mexicana
2. OUTPUT: JSON estructurado con análisis completo
3. MÉTRICAS: score_costo_beneficio (0-10), eficiencia_financiera (%), beneficiarios_estimados
4. ENFOQUE: Viabilidad económica, impacto social, sostenibilidad
5. FORMATO: JSON válido siempre
`

// DocumentPlaceholder is replaced with the document text at analysis time.
const DocumentPlaceholder = "{DOCUMENTO}"

// metaPrompt is the system instruction for the optimizing model. %d is the
// prompt size limit.
const metaPrompt = `Eres experto en ingeniería de prompts para análisis financiero.

CONTEXTO:
El prompt que optimizas será usado por una API que recibe PDFs de proyectos.
Debe extraer datos financieros, calcular score costo-beneficio y generar análisis.

CRITERIOS DE MEJORA:
1. Precisión en extracción de datos numéricos
2. Claridad en criterios de scoring
3. Manejo de PDFs difusos o incompletos
4. Output JSON consistente

RESTRICCIONES:
- Máximo %d caracteres
- Mantener "REGLAS FUNDAMENTALES" intacta
- Conservar el marcador {DOCUMENTO}

Responde SOLO en JSON:
{
  "prompt_mejorado": "...",
  "cambios_realizados": ["cambio1", "cambio2"],
  "razonamiento": "...",
  "metricas_mejora": {
    "precision_extraccion": 0-10,
    "claridad_instrucciones": 0-10,
    "robustez_formato": 0-10
  }
}`

// improvePrompt: context, iteration, chars, limit, percentage, prompt, limit.
const improvePrompt = `%s

Prompt actual (Iteración %d):
%d/%d chars (%.1f%%)

%s

Mejora para análisis de PDFs:
- Precisión en extracción financiera
- Criterios claros de scoring
- Manejo de datos incompletos
- NO exceder %d caracteres`

// condensePrompt: chars, limit, prompt, limit.
const condensePrompt = `CONDENSACIÓN FORZADA

Prompt actual (%d/%d chars):
%s

Reduce a %d caracteres manteniendo:
- "REGLAS FUNDAMENTALES"
- Capacidad de análisis
- Output JSON`

// InitialPrompt seeds training when no iteration exists yet.
const InitialPrompt = `
Analiza este PDF de proyecto de infraestructura:

{DOCUMENTO}

Extrae:
1. Datos básicos (nombre, sector, ubicación, años)
2. Financieros (presupuesto, costos)
3. Impacto (beneficiarios)
4. Score costo-beneficio (0-10)

Formato JSON:
{
  "nombre": "string",
  "sector": "string",
  "presupuesto_total_mxn": float,
  "beneficiarios_estimados": float,
  "score_costo_beneficio": float,
  "analisis_financiero": "string"
}
`
