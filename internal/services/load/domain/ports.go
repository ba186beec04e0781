package domain

import (
	"context"
	"io"
)

// RunnerPort is the public port exposed by the module
type RunnerPort interface {
	Run(ctx context.Context, req Request) error
}

// StorageRepo is the storage repository interface for stage bookkeeping and
// the small reads the stages need between bulk loads
type StorageRepo interface {
	// EnsureStageRuns creates the stage_runs table when missing
	EnsureStageRuns(ctx context.Context) error

	// StartStage stamps a running stage_runs row for stage under runID
	StartStage(ctx context.Context, stage, runID string) error

	// FinishStage records the terminal state of a stage run
	FinishStage(ctx context.Context, stage string, fin StageFinish) error

	// StageCompleted reports whether stage has a completed run on record
	StageCompleted(ctx context.Context, stage string) (bool, error)

	// StreamSampling walks every raw sampling row, invoking fn per record
	StreamSampling(ctx context.Context, fn func(SamplingRecord) error) error

	// SpeciesCodeMap maps scientific names to species codes from the species table
	SpeciesCodeMap(ctx context.Context) (map[string]string, error)

	// UpsertSpecies writes the taxonomy reference list, refreshing existing rows
	UpsertSpecies(ctx context.Context, recs []SpeciesRecord) (int64, error)

	// DropSampling removes the transient raw sampling table
	DropSampling(ctx context.Context) error

	// Vacuum reclaims storage on table after a heavy load (autocommit)
	Vacuum(ctx context.Context, table string) error
}

// TableSpec describes one bulk-load destination
type TableSpec struct {
	// Name is the destination table
	Name string

	// CreateSQL is executed before the first chunk (CREATE TABLE IF NOT EXISTS)
	CreateSQL string

	// Columns and Types are aligned; Types are the destination column types
	// the staged text values are cast to
	Columns []string
	Types   []string

	// Keys are the conflict-target columns; empty means plain append
	Keys []string
}

// RowSource feeds string tuples to the bulk loader; Next returns io.EOF when
// the stream is exhausted
type RowSource interface {
	Next() ([]string, error)
}

// LoadResult summarizes one bulk load
type LoadResult struct {
	Attempted int64 // rows offered to the loader
	Inserted  int64 // rows the destination reported newly inserted
	Committed int64 // rows durably committed, valid even when Load errors
	Chunks    int
}

// TableLoader streams chunked bulk inserts into a destination table.
// On error the returned LoadResult still reports rows committed by prior chunks
type TableLoader interface {
	Load(ctx context.Context, spec TableSpec, src RowSource, chunk int) (LoadResult, error)
}

// MemberStream is a located archive member exposed as a byte stream
type MemberStream interface {
	io.ReadCloser
	Name() string
	Size() int64
}

// ArchiveOpener locates the two members of a source archive
type ArchiveOpener interface {
	Sampling(path string) (MemberStream, error)
	Observations(path string) (MemberStream, error)
}

// RowScanner yields parsed rows from a member stream; io.EOF at end
type RowScanner interface {
	Next() (Row, error)
	Stats() (rows, skipped int, bytes int64)
}

// ScannerFactory builds a RowScanner over a member stream, validating that
// every required header column is present
type ScannerFactory interface {
	New(r io.Reader, required ...string) (RowScanner, error)
}

// TaxonomyFetcher returns the complete species reference list.
// Validate reports configuration problems (a missing API key) without a
// network round trip, so runs can fail before any stage starts
type TaxonomyFetcher interface {
	Validate() error
	Fetch(ctx context.Context) ([]SpeciesRecord, error)
}
