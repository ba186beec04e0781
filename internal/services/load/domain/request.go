package domain

import (
	"time"

	perr "birddb/internal/platform/errors"
	ptime "birddb/internal/platform/time"

	"github.com/go-playground/validator/v10"
)

// Request is one validated loader invocation
type Request struct {
	Stage       string `validate:"required,oneof=copy_sampling localities checklists drop_sampling species observations full"`
	ArchivePath string `validate:"omitempty,filepath"`
	StartDate   string `validate:"omitempty,datetime=2006-01-02"`
	EndDate     string `validate:"omitempty,datetime=2006-01-02"`
	Region      string `validate:"omitempty,min=2,max=16"`
	Chunk       int    `validate:"omitempty,min=1,max=100000"`
	WithDrop    bool
}

var validate = validator.New()

// Validate checks field shapes and cross-field rules before any stage runs
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return perr.WithField(
				perr.Newf(perr.ErrorCodeValidation, "invalid request: %s", ve[0].Tag()),
				ve[0].Field(),
			)
		}
		return perr.Wrap(err, perr.ErrorCodeValidation, "invalid request")
	}

	if needsArchive(r.Stage) && r.ArchivePath == "" {
		return perr.WithField(
			perr.New(perr.ErrorCodeValidation, "stage reads the archive but no archive path was given"),
			"ArchivePath",
		)
	}

	if r.StartDate != "" && r.EndDate != "" {
		s, _ := time.Parse("2006-01-02", r.StartDate)
		e, _ := time.Parse("2006-01-02", r.EndDate)
		if e.Before(s) {
			return perr.WithField(
				perr.New(perr.ErrorCodeValidation, "end date before start date"),
				"EndDate",
			)
		}
	}
	return nil
}

// ToFilter builds the row predicate from the validated request
func (r Request) ToFilter() Filter {
	var f Filter
	if r.StartDate != "" {
		t, _ := time.Parse("2006-01-02", r.StartDate)
		f.StartDate = ptime.Ptr(t)
	}
	if r.EndDate != "" {
		t, _ := time.Parse("2006-01-02", r.EndDate)
		f.EndDate = ptime.Ptr(t)
	}
	f.Region = r.Region
	return f
}

func needsArchive(stage string) bool {
	switch stage {
	case StageCopySampling, StageObservations, StageFull:
		return true
	}
	return false
}
