// Package domain holds the core business logic and data structures for the loader
package domain

import (
	"birddb/internal/adapters/ingest/archive"
	"birddb/internal/adapters/ingest/taxonomy"
)

// Row re-exports the parsed archive row shape used by the scanner and stages
type Row = archive.Row

// SpeciesRecord re-exports the taxonomy entry shape served by the reference API
type SpeciesRecord = taxonomy.SpeciesRecord

// Stage names, in dependency order for the full pseudo stage
const (
	StageCopySampling = "copy_sampling"
	StageLocalities   = "localities"
	StageChecklists   = "checklists"
	StageDropSampling = "drop_sampling"
	StageSpecies      = "species"
	StageObservations = "observations"
	StageFull         = "full"
)

// Stages lists every runnable stage including the full pseudo stage
func Stages() []string {
	return []string{
		StageCopySampling, StageLocalities, StageChecklists,
		StageDropSampling, StageSpecies, StageObservations, StageFull,
	}
}

// Deps maps each stage to the stages that must have completed before it runs.
// drop_sampling additionally requires that nothing still needs the raw table
func Deps(stage string) []string {
	switch stage {
	case StageLocalities:
		return []string{StageCopySampling}
	case StageChecklists:
		return []string{StageCopySampling, StageLocalities}
	case StageDropSampling:
		return []string{StageLocalities, StageChecklists}
	case StageObservations:
		return []string{StageChecklists, StageSpecies}
	default:
		return nil
	}
}

// Sampling-member column names as they appear in the source header
const (
	ColLocalityID       = "LOCALITY ID"
	ColLocality         = "LOCALITY"
	ColLocalityType     = "LOCALITY TYPE"
	ColLatitude         = "LATITUDE"
	ColLongitude        = "LONGITUDE"
	ColSamplingEventID  = "SAMPLING EVENT IDENTIFIER"
	ColLastEditedDate   = "LAST EDITED DATE"
	ColCountry          = "COUNTRY"
	ColCountryLower     = "country" // some releases ship the lowercase spelling
	ColCountryCode      = "COUNTRY CODE"
	ColState            = "STATE"
	ColStateCode        = "STATE CODE"
	ColCounty           = "COUNTY"
	ColCountyCode       = "COUNTY CODE"
	ColIBACode          = "IBA CODE"
	ColBCRCode          = "BCR CODE"
	ColUSFWSCode        = "USFWS CODE"
	ColAtlasBlock       = "ATLAS BLOCK"
	ColObservationDate  = "OBSERVATION DATE"
	ColTimeStarted      = "TIME OBSERVATIONS STARTED"
	ColObserverID       = "OBSERVER ID"
	ColProtocolType     = "PROTOCOL TYPE"
	ColProtocolCode     = "PROTOCOL CODE"
	ColProjectCode      = "PROJECT CODE"
	ColDurationMinutes  = "DURATION MINUTES"
	ColEffortDistanceKM = "EFFORT DISTANCE KM"
	ColEffortAreaHA     = "EFFORT AREA HA"
	ColNumberObservers  = "NUMBER OBSERVERS"
	ColAllSpecies       = "ALL SPECIES REPORTED"
	ColGroupIdentifier  = "GROUP IDENTIFIER"
	ColTripComments     = "TRIP COMMENTS"
)

// Observations-member column names beyond the shared sampling ones
const (
	ColGlobalUniqueID    = "GLOBAL UNIQUE IDENTIFIER"
	ColScientificName    = "SCIENTIFIC NAME"
	ColSubspeciesSciName = "SUBSPECIES SCIENTIFIC NAME"
	ColExoticCode        = "EXOTIC CODE"
	ColObservationCount  = "OBSERVATION COUNT"
	ColBreedingCode      = "BREEDING CODE"
	ColBreedingCategory  = "BREEDING CATEGORY"
	ColBehaviorCode      = "BEHAVIOR CODE"
	ColAgeSex            = "AGE/SEX"
	ColSpeciesComments   = "SPECIES COMMENTS"
	ColHasMedia          = "HAS MEDIA"
	ColApproved          = "APPROVED"
	ColReviewed          = "REVIEWED"
	ColReason            = "REASON"
)

// SamplingRequired is the required-column set checked against the sampling
// header before any row processing. COUNTRY is deliberately absent: releases
// disagree on its case and the record binds either spelling
func SamplingRequired() []string {
	return []string{
		ColLocalityID, ColLocality, ColLocalityType, ColLatitude, ColLongitude,
		ColSamplingEventID, ColLastEditedDate, ColCountryCode,
		ColState, ColStateCode, ColCounty, ColCountyCode,
		ColIBACode, ColBCRCode, ColUSFWSCode, ColAtlasBlock,
		ColObservationDate, ColTimeStarted, ColObserverID,
		ColProtocolType, ColProtocolCode, ColProjectCode,
		ColDurationMinutes, ColEffortDistanceKM, ColEffortAreaHA,
		ColNumberObservers, ColAllSpecies, ColGroupIdentifier, ColTripComments,
	}
}

// ObservationsRequired is the required-column set for the observations header
func ObservationsRequired() []string {
	return []string{
		ColGlobalUniqueID, ColSamplingEventID, ColScientificName,
		ColSubspeciesSciName, ColExoticCode, ColObservationCount,
		ColBreedingCode, ColBreedingCategory, ColBehaviorCode, ColAgeSex,
		ColSpeciesComments, ColHasMedia, ColApproved, ColReviewed, ColReason,
		ColStateCode, ColCountyCode, ColObservationDate,
	}
}

// SamplingRecord is one raw sampling row bound to named fields.
// All values are source strings; typing happens at load time
type SamplingRecord struct {
	LocalityID       string
	Name             string
	Type             string
	Latitude         string
	Longitude        string
	SamplingEventID  string
	LastEditedDate   string
	Country          string
	CountryCode      string
	State            string
	StateCode        string
	County           string
	CountyCode       string
	IBACode          string
	BCRCode          string
	USFWSCode        string
	AtlasBlock       string
	ObservationDate  string
	TimeStarted      string
	ObserverID       string
	ProtocolType     string
	ProtocolCode     string
	ProjectCode      string
	DurationMinutes  string
	EffortDistanceKM string
	EffortAreaHA     string
	NumberObservers  string
	AllSpecies       string
	GroupIdentifier  string
	TripComments     string
}

// BindSampling builds a SamplingRecord from a parsed row, tolerating the
// COUNTRY header-case drift seen across source releases
func BindSampling(r Row) SamplingRecord {
	country := r.Get(ColCountry)
	if country == "" {
		country = r.Get(ColCountryLower)
	}
	return SamplingRecord{
		LocalityID:       r.Get(ColLocalityID),
		Name:             r.Get(ColLocality),
		Type:             r.Get(ColLocalityType),
		Latitude:         r.Get(ColLatitude),
		Longitude:        r.Get(ColLongitude),
		SamplingEventID:  r.Get(ColSamplingEventID),
		LastEditedDate:   r.Get(ColLastEditedDate),
		Country:          country,
		CountryCode:      r.Get(ColCountryCode),
		State:            r.Get(ColState),
		StateCode:        r.Get(ColStateCode),
		County:           r.Get(ColCounty),
		CountyCode:       r.Get(ColCountyCode),
		IBACode:          r.Get(ColIBACode),
		BCRCode:          r.Get(ColBCRCode),
		USFWSCode:        r.Get(ColUSFWSCode),
		AtlasBlock:       r.Get(ColAtlasBlock),
		ObservationDate:  r.Get(ColObservationDate),
		TimeStarted:      r.Get(ColTimeStarted),
		ObserverID:       r.Get(ColObserverID),
		ProtocolType:     r.Get(ColProtocolType),
		ProtocolCode:     r.Get(ColProtocolCode),
		ProjectCode:      r.Get(ColProjectCode),
		DurationMinutes:  r.Get(ColDurationMinutes),
		EffortDistanceKM: r.Get(ColEffortDistanceKM),
		EffortAreaHA:     r.Get(ColEffortAreaHA),
		NumberObservers:  r.Get(ColNumberObservers),
		AllSpecies:       r.Get(ColAllSpecies),
		GroupIdentifier:  r.Get(ColGroupIdentifier),
		TripComments:     r.Get(ColTripComments),
	}
}

// Values returns the record in tmp_sampling_data column order
func (s SamplingRecord) Values() []string {
	return []string{
		s.LocalityID, s.Name, s.Type, s.Latitude, s.Longitude,
		s.SamplingEventID, s.LastEditedDate, s.Country, s.CountryCode,
		s.State, s.StateCode, s.County, s.CountyCode, s.IBACode, s.BCRCode,
		s.USFWSCode, s.AtlasBlock, s.ObservationDate, s.TimeStarted,
		s.ObserverID, s.ProtocolType, s.ProtocolCode, s.ProjectCode,
		s.DurationMinutes, s.EffortDistanceKM, s.EffortAreaHA,
		s.NumberObservers, s.AllSpecies, s.GroupIdentifier, s.TripComments,
	}
}

// LocalityValues returns the locality projection in localities column order
func (s SamplingRecord) LocalityValues() []string {
	return []string{s.LocalityID, s.Name, s.Type, s.Latitude, s.Longitude, s.CountyCode, s.StateCode}
}

// ChecklistValues returns the checklist projection in checklists column order
func (s SamplingRecord) ChecklistValues() []string {
	return []string{
		s.SamplingEventID, s.LastEditedDate, s.Country, s.CountryCode,
		s.State, s.StateCode, s.County, s.CountyCode, s.IBACode, s.BCRCode,
		s.USFWSCode, s.AtlasBlock, s.ObservationDate, s.TimeStarted,
		s.ObserverID, s.ProtocolType, s.ProtocolCode, s.ProjectCode,
		s.DurationMinutes, s.EffortDistanceKM, s.EffortAreaHA,
		s.NumberObservers, s.AllSpecies, s.GroupIdentifier, s.TripComments,
		s.LocalityID,
	}
}

// StageFinish carries the terminal bookkeeping for one stage run
type StageFinish struct {
	Status      string // ok | error
	RowsLoaded  int64
	RowsSkipped int64
	ErrText     string
}
