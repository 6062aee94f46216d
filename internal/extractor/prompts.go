package extractor

const systemPrompt = `Eres un extractor de datos para base de datos de proyectos de infraestructura pública en México. Respondes únicamente con JSON válido.`

// extractionPrompt takes the document name, the load date and the document text.
const extractionPrompt = `Analiza el documento y devuelve UN SOLO objeto JSON con estos campos:

{
  "nombre": (string, nombre del proyecto),
  "sector": (string, UNO DE: "Agua", "Energía", "Transporte", "Infraestructura", "Salud", "Educación", "Medio Ambiente", "Desarrollo Social"),
  "dependencia": (string, organismo responsable),
  "ubicacion": (string, ciudad/estado),
  "anio_inicio": (integer 4 dígitos o null),
  "anio_fin": (integer 4 dígitos o null),
  "doc_fuente": (string, nombre del documento o "%[1]s"),
  "fecha_carga": "%[2]s",
  "presupuesto_total_mxn": (float, convertir a número: "15 millones" = 15000000.0, "500 mil" = 500000.0, o null),
  "costo_operativo_mxn": (float o null),
  "costo_mantenimiento_mxn": (float o null),
  "costo_beneficio_estimado_mxn": (float o null),
  "eficiencia_financiera": (float 0-100 porcentaje o null),
  "riesgo_financiero": (string o null),
  "score_costo_beneficio": (float 0.0-10.0 o null),
  "analisis_financiero": (string o null),
  "resumen_observaciones": (string o null),
  "comparativo": (string o null),
  "beneficiarios_estimados": (float, "100 mil" = 100000.0, o null),
  "impacto_principal": (string, máximo 200 caracteres o null),
  "indicador_principal": (string o null),
  "impacto_fisico": (float o null),
  "kpi": (float o null),
  "confianza": (objeto con la certeza 0.0-1.0 de cada campo extraído)
}

REGLAS:
1. Devuelve UN SOLO objeto JSON, sin arreglos ni objetos múltiples.
2. Convierte cantidades a número: "más de 15 millones" = 15000000.0, "más de 50,000 personas" = 50000.0.
3. Años como enteros (2024), no como texto.
4. Si no existe el dato: null. No inventes datos.
5. score_costo_beneficio evalúa de 0 a 10 la viabilidad del proyecto.
6. Responde SOLO el JSON, sin texto adicional.

DOCUMENTO:
%[3]s`
