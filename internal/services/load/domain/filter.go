package domain

import (
	"strings"
	"time"
)

// Filter is the pure row predicate applied before any downstream work.
// Zero value passes everything
type Filter struct {
	// StartDate and EndDate bound the observation date, both inclusive
	StartDate *time.Time
	EndDate   *time.Time

	// Region matches a state or county code exactly, or any subordinate code
	// at a hyphen boundary: US-NY matches US-NY and US-NY-109, not US-NYX
	Region string
}

// Empty reports whether the filter passes every row unconditionally
func (f Filter) Empty() bool {
	return f.StartDate == nil && f.EndDate == nil && f.Region == ""
}

// MatchSampling evaluates the filter against a sampling record
func (f Filter) MatchSampling(s SamplingRecord) bool {
	return f.match(s.ObservationDate, s.StateCode, s.CountyCode)
}

// MatchRow evaluates the filter against any parsed row carrying the shared
// date and region columns (used by the observations pass)
func (f Filter) MatchRow(r Row) bool {
	return f.match(r.Get(ColObservationDate), r.Get(ColStateCode), r.Get(ColCountyCode))
}

func (f Filter) match(dateStr, stateCode, countyCode string) bool {
	if f.Region != "" && !regionMatch(f.Region, stateCode) && !regionMatch(f.Region, countyCode) {
		return false
	}
	if (f.StartDate != nil || f.EndDate != nil) && dateStr != "" {
		d, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			// date filters are meaningless on an unparseable date; exclude the row
			return false
		}
		if f.StartDate != nil && d.Before(*f.StartDate) {
			return false
		}
		if f.EndDate != nil && d.After(*f.EndDate) {
			return false
		}
	}
	return true
}

// regionMatch reports whether code equals region or extends it at a hyphen
func regionMatch(region, code string) bool {
	if code == region {
		return true
	}
	return strings.HasPrefix(code, region+"-")
}
