package repo

import "birddb/internal/services/load/domain"

// Destination table names
const (
	SamplingTable     = "tmp_sampling_data"
	LocalitiesTable   = "localities"
	ChecklistsTable   = "checklists"
	SpeciesTable      = "species"
	ObservationsTable = "observations"
	StageRunsTable    = "stage_runs"
)

// samplingCols and samplingTypes are aligned with domain.SamplingRecord.Values
var samplingCols = []string{
	"locality_id", "name", "type", "latitude", "longitude",
	"sampling_event_id", "last_edited_date", "country", "country_code",
	"state", "state_code", "county", "county_code", "iba_code", "bcr_code",
	"usfws_code", "atlas_block", "observation_date", "time_started",
	"observer_id", "protocol_type", "protocol_code", "project_code",
	"duration_minutes", "effort_distance_km", "effort_area_ha",
	"number_observers", "all_species_reported", "group_identifier", "trip_comments",
}

var samplingTypes = []string{
	"text", "text", "text", "double precision", "double precision",
	"text", "timestamptz", "text", "text",
	"text", "text", "text", "text", "text", "text",
	"text", "text", "date", "time",
	"text", "text", "text", "text",
	"int", "double precision", "double precision",
	"int", "bool", "text", "text",
}

// checklistCols are the sampling columns minus the locality attributes,
// plus the locality_id foreign key at the end
var checklistCols = append(append([]string{}, samplingCols[5:]...), "locality_id")

var checklistTypes = append(append([]string{}, samplingTypes[5:]...), "text")

// SamplingSpec describes the transient raw sampling table
func SamplingSpec() domain.TableSpec {
	return domain.TableSpec{
		Name: SamplingTable,
		CreateSQL: `
			CREATE TABLE IF NOT EXISTS ` + SamplingTable + ` (
				locality_id text, name text, type text,
				latitude double precision, longitude double precision,
				sampling_event_id text, last_edited_date timestamptz,
				country text, country_code text,
				state text, state_code text, county text, county_code text,
				iba_code text, bcr_code text, usfws_code text, atlas_block text,
				observation_date date, time_started time,
				observer_id text, protocol_type text, protocol_code text, project_code text,
				duration_minutes int, effort_distance_km double precision,
				effort_area_ha double precision, number_observers int,
				all_species_reported bool, group_identifier text, trip_comments text
			)`,
		Columns: samplingCols,
		Types:   samplingTypes,
		// raw landing table; re-runs drop and recreate instead of deduplicating
		Keys: nil,
	}
}

// LocalitiesSpec describes the deduplicated locality reference table
func LocalitiesSpec() domain.TableSpec {
	return domain.TableSpec{
		Name: LocalitiesTable,
		CreateSQL: `
			CREATE TABLE IF NOT EXISTS ` + LocalitiesTable + ` (
				locality_id text primary key,
				name text, type text,
				latitude double precision, longitude double precision,
				county_code text, state_code text
			)`,
		Columns: []string{"locality_id", "name", "type", "latitude", "longitude", "county_code", "state_code"},
		Types:   []string{"text", "text", "text", "double precision", "double precision", "text", "text"},
		Keys:    []string{"locality_id"},
	}
}

// ChecklistsSpec describes the per-outing checklist table
func ChecklistsSpec() domain.TableSpec {
	return domain.TableSpec{
		Name: ChecklistsTable,
		CreateSQL: `
			CREATE TABLE IF NOT EXISTS ` + ChecklistsTable + ` (
				sampling_event_id text primary key,
				last_edited_date timestamptz,
				country text, country_code text,
				state text, state_code text, county text, county_code text,
				iba_code text, bcr_code text, usfws_code text, atlas_block text,
				observation_date date, time_started time,
				observer_id text, protocol_type text, protocol_code text, project_code text,
				duration_minutes int, effort_distance_km double precision,
				effort_area_ha double precision, number_observers int,
				all_species_reported bool, group_identifier text, trip_comments text,
				locality_id text references ` + LocalitiesTable + `(locality_id)
			)`,
		Columns: checklistCols,
		Types:   checklistTypes,
		Keys:    []string{"sampling_event_id"},
	}
}

// ObservationsSpec describes the per-observation fact table
func ObservationsSpec() domain.TableSpec {
	return domain.TableSpec{
		Name: ObservationsTable,
		CreateSQL: `
			CREATE TABLE IF NOT EXISTS ` + ObservationsTable + ` (
				global_unique_identifier text primary key,
				sampling_event_id text references ` + ChecklistsTable + `(sampling_event_id),
				species_code text references ` + SpeciesTable + `(species_code),
				sub_species_code text references ` + SpeciesTable + `(species_code),
				exotic_code text,
				observation_count int,
				breeding_code text, breeding_category text,
				behavior_code text, age_sex_code text,
				species_comments text,
				has_media bool, approved bool, reviewed bool,
				reason text
			)`,
		Columns: []string{
			"global_unique_identifier", "sampling_event_id", "species_code",
			"sub_species_code", "exotic_code", "observation_count",
			"breeding_code", "breeding_category", "behavior_code", "age_sex_code",
			"species_comments", "has_media", "approved", "reviewed", "reason",
		},
		Types: []string{
			"text", "text", "text",
			"text", "text", "int",
			"text", "text", "text", "text",
			"text", "bool", "bool", "bool", "text",
		},
		Keys: []string{"global_unique_identifier"},
	}
}
