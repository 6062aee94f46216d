package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// WriteProject stores a validated project record across proyectos, finanzas,
// impacto_social and evaluaciones in one transaction and returns the new
// id_proyecto.
func (s *Store) WriteProject(ctx context.Context, rec map[string]any) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	fecha := date(rec["fecha_carga"])

	// 1. Insert proyecto
	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO proyectos (nombre, sector, dependencia, ubicacion, anio_inicio, anio_fin, doc_fuente, fecha_carga)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id_proyecto`,
		text(rec["nombre"]), text(rec["sector"]), text(rec["dependencia"]), text(rec["ubicacion"]),
		integer(rec["anio_inicio"]), integer(rec["anio_fin"]), text(rec["doc_fuente"]), fecha,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert proyecto: %w", err)
	}

	// 2. Insert finanzas
	_, err = tx.Exec(ctx, `
		INSERT INTO finanzas (id_proyecto, fuente_financiamiento, presupuesto_total, costo_operativo_mxn,
			costo_mantenimiento_mxn, costo_beneficio_estimado_mxn, eficiencia_financiera, riesgo_financiero)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, text(rec["fuente_financiamiento"]), number(rec["presupuesto_total_mxn"]),
		number(rec["costo_operativo_mxn"]), number(rec["costo_mantenimiento_mxn"]),
		number(rec["costo_beneficio_estimado_mxn"]), number(rec["eficiencia_financiera"]),
		text(rec["riesgo_financiero"]),
	)
	if err != nil {
		return 0, fmt.Errorf("insert finanzas: %w", err)
	}

	// 3. Insert impacto_social
	_, err = tx.Exec(ctx, `
		INSERT INTO impacto_social (id_proyecto, beneficiarios_estimados, impacto_principal,
			indicador_principal, avance_fisico, kpi)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, number(rec["beneficiarios_estimados"]), text(rec["impacto_principal"]),
		text(rec["indicador_principal"]), number(rec["impacto_fisico"]), number(rec["kpi"]),
	)
	if err != nil {
		return 0, fmt.Errorf("insert impacto_social: %w", err)
	}

	// 4. Insert evaluacion
	_, err = tx.Exec(ctx, `
		INSERT INTO evaluaciones (id_proyecto, fecha_evaluacion, score_costo_beneficio,
			analisis_financiero, recomendaciones, comparativa)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, fecha, number(rec["score_costo_beneficio"]), text(rec["analisis_financiero"]),
		text(rec["resumen_observaciones"]), text(rec["comparativo"]),
	)
	if err != nil {
		return 0, fmt.Errorf("insert evaluacion: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// MaxProjectID returns the highest id_proyecto, or 0 for an empty table.
func (s *Store) MaxProjectID(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `SELECT COALESCE(MAX(id_proyecto), 0) FROM proyectos`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("max id_proyecto: %w", err)
	}
	return id, nil
}

// ProjectRef identifies a stored project.
type ProjectRef struct {
	ID     int64  `json:"id_proyecto"`
	Nombre string `json:"nombre"`
	Sector string `json:"sector"`
}

// ProjectsAfter lists projects with id_proyecto greater than lastID.
func (s *Store) ProjectsAfter(ctx context.Context, lastID int64) ([]ProjectRef, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id_proyecto, COALESCE(nombre, ''), COALESCE(sector, '')
		FROM proyectos
		WHERE id_proyecto > $1
		ORDER BY id_proyecto`, lastID)
	if err != nil {
		return nil, fmt.Errorf("query new projects: %w", err)
	}
	defer rows.Close()

	var refs []ProjectRef
	for rows.Next() {
		var r ProjectRef
		if err := rows.Scan(&r.ID, &r.Nombre, &r.Sector); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

const datasetQuery = `
	SELECT
		p.id_proyecto, p.nombre, p.sector, p.dependencia, p.ubicacion,
		p.anio_inicio, p.anio_fin, p.doc_fuente, p.fecha_carga,
		f.presupuesto_total, f.costo_operativo_mxn, f.costo_mantenimiento_mxn,
		f.costo_beneficio_estimado_mxn, f.eficiencia_financiera, f.riesgo_financiero,
		i.beneficiarios_estimados, i.impacto_principal, i.indicador_principal,
		i.avance_fisico, i.kpi,
		e.score_costo_beneficio, e.analisis_financiero, e.recomendaciones, e.comparativa
	FROM proyectos p
	LEFT JOIN finanzas f ON p.id_proyecto = f.id_proyecto
	LEFT JOIN impacto_social i ON p.id_proyecto = i.id_proyecto
	LEFT JOIN evaluaciones e ON p.id_proyecto = e.id_proyecto
	ORDER BY p.id_proyecto`

// Dataset returns every project joined across the four tables, as column
// names plus one value slice per row.
func (s *Store) Dataset(ctx context.Context) ([]string, [][]any, error) {
	rows, err := s.db.Query(ctx, datasetQuery)
	if err != nil {
		return nil, nil, fmt.Errorf("query dataset: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	var data [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, nil, fmt.Errorf("read dataset row: %w", err)
		}
		data = append(data, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate dataset: %w", err)
	}
	return columns, data, nil
}

// The record is an open map; these coerce its values to the column types
// and turn anything unusable into NULL.

func text(v any) any {
	switch s := v.(type) {
	case string:
		if strings.TrimSpace(s) == "" {
			return nil
		}
		return s
	case nil:
		return nil
	default:
		return fmt.Sprint(s)
	}
}

func number(v any) any {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return nil
}

func integer(v any) any {
	switch n := v.(type) {
	case int:
		return int32(n)
	case int64:
		return int32(n)
	case float64:
		return int32(n)
	}
	return nil
}

func date(v any) any {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return t
}
