package store

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS proyectos (
		id_proyecto BIGSERIAL PRIMARY KEY,
		nombre      TEXT,
		sector      TEXT,
		dependencia TEXT,
		ubicacion   TEXT,
		anio_inicio INTEGER,
		anio_fin    INTEGER,
		doc_fuente  TEXT,
		fecha_carga DATE
	)`,
	`CREATE TABLE IF NOT EXISTS finanzas (
		id_proyecto                  BIGINT PRIMARY KEY REFERENCES proyectos(id_proyecto) ON DELETE CASCADE,
		fuente_financiamiento        TEXT,
		presupuesto_total            DOUBLE PRECISION,
		costo_operativo_mxn          DOUBLE PRECISION,
		costo_mantenimiento_mxn      DOUBLE PRECISION,
		costo_beneficio_estimado_mxn DOUBLE PRECISION,
		eficiencia_financiera        DOUBLE PRECISION,
		riesgo_financiero            TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS impacto_social (
		id_proyecto             BIGINT PRIMARY KEY REFERENCES proyectos(id_proyecto) ON DELETE CASCADE,
		beneficiarios_estimados DOUBLE PRECISION,
		impacto_principal       TEXT,
		indicador_principal     TEXT,
		avance_fisico           DOUBLE PRECISION,
		kpi                     DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS evaluaciones (
		id_proyecto           BIGINT PRIMARY KEY REFERENCES proyectos(id_proyecto) ON DELETE CASCADE,
		fecha_evaluacion      DATE,
		score_costo_beneficio DOUBLE PRECISION,
		analisis_financiero   TEXT,
		recomendaciones       TEXT,
		comparativa           TEXT
	)`,
}

// EnsureSchema creates the warehouse tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
