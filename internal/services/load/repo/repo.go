// Package repo provides postgres access for loader stages
package repo

import (
	"context"
	"errors"
	"io"

	"birddb/internal/modkit/repokit"
	perr "birddb/internal/platform/errors"
	"birddb/internal/platform/store"
	"birddb/internal/services/load/domain"

	"github.com/jackc/pgx/v5"
)

type (
	// PG is a Postgres binder for domain.StorageRepo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for domain.StorageRepo
func NewPG() repokit.Binder[domain.StorageRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.StorageRepo { return &queries{q: q} }

// EnsureStageRuns creates the bookkeeping table when missing
func (r *queries) EnsureStageRuns(ctx context.Context) error {
	_, err := r.q.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+StageRunsTable+` (
			stage_name   text primary key,
			run_id       uuid,
			status       text not null,
			rows_loaded  bigint not null default 0,
			rows_skipped bigint not null default 0,
			started_at   timestamptz not null default now(),
			finished_at  timestamptz,
			error        text
		)`)
	return perr.FromPostgres(err, "ensure stage_runs")
}

// StartStage stamps a running row for stage (idempotent across re-runs)
func (r *queries) StartStage(ctx context.Context, stage, runID string) error {
	_, err := store.Exec(ctx, r.q, `
		INSERT INTO `+StageRunsTable+` (stage_name, run_id, status)
		VALUES ($1, $2, 'running')
		ON CONFLICT (stage_name) DO UPDATE SET
			run_id = $2, status = 'running', rows_loaded = 0, rows_skipped = 0,
			started_at = now(), finished_at = null, error = null
	`, stage, runID)
	return perr.FromPostgres(err, "start stage")
}

// FinishStage records the terminal state of a stage run. The running row is
// stamped by StartStage, so exactly one row must match
func (r *queries) FinishStage(ctx context.Context, stage string, fin domain.StageFinish) error {
	err := store.ExecOne(ctx, r.q, `
		UPDATE `+StageRunsTable+` SET
			status = $2,
			rows_loaded = $3,
			rows_skipped = $4,
			finished_at = now(),
			error = NULLIF($5, '')
		WHERE stage_name = $1
	`, stage, fin.Status, fin.RowsLoaded, fin.RowsSkipped, fin.ErrText)
	return perr.FromPostgres(err, "finish stage")
}

// StageCompleted reports whether stage finished ok on its latest run
func (r *queries) StageCompleted(ctx context.Context, stage string) (bool, error) {
	status, err := store.Scalar[string](ctx, r.q,
		`SELECT status FROM `+StageRunsTable+` WHERE stage_name = $1`, stage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, perr.FromPostgres(err, "stage lookup")
	}
	return status == "ok", nil
}

// StreamSampling walks every raw sampling row in landing order.
// NULLs surface as empty strings, matching the source representation
func (r *queries) StreamSampling(ctx context.Context, fn func(domain.SamplingRecord) error) error {
	rows, err := r.q.Query(ctx, `
		SELECT
			COALESCE(locality_id, ''), COALESCE(name, ''), COALESCE(type, ''),
			COALESCE(latitude::text, ''), COALESCE(longitude::text, ''),
			COALESCE(sampling_event_id, ''), COALESCE(last_edited_date::text, ''),
			COALESCE(country, ''), COALESCE(country_code, ''),
			COALESCE(state, ''), COALESCE(state_code, ''),
			COALESCE(county, ''), COALESCE(county_code, ''),
			COALESCE(iba_code, ''), COALESCE(bcr_code, ''),
			COALESCE(usfws_code, ''), COALESCE(atlas_block, ''),
			COALESCE(observation_date::text, ''), COALESCE(time_started::text, ''),
			COALESCE(observer_id, ''), COALESCE(protocol_type, ''),
			COALESCE(protocol_code, ''), COALESCE(project_code, ''),
			COALESCE(duration_minutes::text, ''), COALESCE(effort_distance_km::text, ''),
			COALESCE(effort_area_ha::text, ''), COALESCE(number_observers::text, ''),
			COALESCE(all_species_reported::text, ''), COALESCE(group_identifier, ''),
			COALESCE(trip_comments, '')
		FROM `+SamplingTable)
	if err != nil {
		return perr.FromPostgres(err, "stream sampling")
	}
	defer rows.Close()

	for rows.Next() {
		var s domain.SamplingRecord
		if err := rows.Scan(
			&s.LocalityID, &s.Name, &s.Type, &s.Latitude, &s.Longitude,
			&s.SamplingEventID, &s.LastEditedDate, &s.Country, &s.CountryCode,
			&s.State, &s.StateCode, &s.County, &s.CountyCode, &s.IBACode, &s.BCRCode,
			&s.USFWSCode, &s.AtlasBlock, &s.ObservationDate, &s.TimeStarted,
			&s.ObserverID, &s.ProtocolType, &s.ProtocolCode, &s.ProjectCode,
			&s.DurationMinutes, &s.EffortDistanceKM, &s.EffortAreaHA,
			&s.NumberObservers, &s.AllSpecies, &s.GroupIdentifier, &s.TripComments,
		); err != nil {
			return perr.FromPostgres(err, "scan sampling row")
		}
		if err := fn(s); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
	return perr.FromPostgres(rows.Err(), "stream sampling")
}

// SpeciesCodeMap maps scientific names to species codes
func (r *queries) SpeciesCodeMap(ctx context.Context) (map[string]string, error) {
	type pair struct{ sci, code string }
	pairs, err := store.Many(ctx, r.q, func(row store.Row) (pair, error) {
		var p pair
		return p, row.Scan(&p.sci, &p.code)
	}, `SELECT scientific_name, species_code FROM `+SpeciesTable+` WHERE scientific_name IS NOT NULL`)
	if err != nil {
		return nil, perr.FromPostgres(err, "species code map")
	}

	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		out[p.sci] = p.code
	}
	return out, nil
}

// UpsertSpecies writes the taxonomy reference list, refreshing attributes of
// rows that already exist so re-runs converge on the latest source data
func (r *queries) UpsertSpecies(ctx context.Context, recs []domain.SpeciesRecord) (int64, error) {
	_, err := r.q.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+SpeciesTable+` (
			species_code            text primary key,
			common_name             text,
			scientific_name         text,
			category                text,
			taxon_order             double precision,
			banding_codes           text[],
			order_name              text,
			family_code             text,
			family_common_name      text,
			family_scientific_name  text
		)`)
	if err != nil {
		return 0, perr.FromPostgres(err, "ensure species")
	}

	const upsert = `
		INSERT INTO ` + SpeciesTable + ` (
			species_code, common_name, scientific_name, category, taxon_order,
			banding_codes, order_name, family_code, family_common_name, family_scientific_name
		)
		VALUES ($1, NULLIF($2,''), NULLIF($3,''), NULLIF($4,''), $5, $6,
			NULLIF($7,''), NULLIF($8,''), NULLIF($9,''), NULLIF($10,''))
		ON CONFLICT (species_code) DO UPDATE SET
			common_name = EXCLUDED.common_name,
			scientific_name = EXCLUDED.scientific_name,
			category = EXCLUDED.category,
			taxon_order = EXCLUDED.taxon_order,
			banding_codes = EXCLUDED.banding_codes,
			order_name = EXCLUDED.order_name,
			family_code = EXCLUDED.family_code,
			family_common_name = EXCLUDED.family_common_name,
			family_scientific_name = EXCLUDED.family_scientific_name
	`

	var written int64
	for _, sp := range recs {
		if sp.Code == "" {
			continue
		}
		tag, err := r.q.Exec(ctx, upsert,
			sp.Code, sp.CommonName, sp.ScientificName, sp.Category, sp.TaxonOrder,
			sp.BandingCodes, sp.OrderName, sp.FamilyCode, sp.FamilyCommonName, sp.FamilyScientificName,
		)
		if err != nil {
			return written, perr.FromPostgresf(err, "upsert species %s", sp.Code)
		}
		written += tag.RowsAffected()
	}
	return written, nil
}

// DropSampling removes the transient raw sampling table
func (r *queries) DropSampling(ctx context.Context) error {
	_, err := r.q.Exec(ctx, `DROP TABLE IF EXISTS `+SamplingTable)
	return perr.FromPostgres(err, "drop sampling table")
}

// Vacuum reclaims storage after a heavy load. Must run on an autocommit
// querier; VACUUM cannot run inside a transaction
func (r *queries) Vacuum(ctx context.Context, table string) error {
	if !knownTable(table) {
		return perr.InvalidArgf("vacuum: unknown table %q", table)
	}
	_, err := r.q.Exec(ctx, "VACUUM "+table)
	return perr.FromPostgres(err, "vacuum")
}

func knownTable(t string) bool {
	switch t {
	case SamplingTable, LocalitiesTable, ChecklistsTable, SpeciesTable, ObservationsTable:
		return true
	}
	return false
}
