// Package service provides the staged loader implementation
package service

import (
	"context"
	"slices"
	"time"

	"birddb/internal/modkit/repokit"
	perr "birddb/internal/platform/errors"
	"birddb/internal/platform/logger"
	"birddb/internal/services/load/domain"

	"github.com/google/uuid"
)

// Config holds configuration options for the loader service
type Config struct {
	// Chunk is the per-transaction row count for bulk loads; <=0 -> loader default
	Chunk int

	// PresenceAsZero coerces presence-only observation counts to 0 instead of NULL
	PresenceAsZero bool

	// Vacuum runs VACUUM on a stage's table after it completes
	Vacuum bool

	// ProgressEvery logs pipeline progress every N source rows; <=0 -> 500000
	ProgressEvery int64
}

// Service implements the staged loader
type Service struct {
	DB       repokit.TxRunner
	Binder   repokit.Binder[domain.StorageRepo]
	Loader   domain.TableLoader
	Archive  domain.ArchiveOpener
	Scanner  domain.ScannerFactory
	Taxonomy domain.TaxonomyFetcher
	Cfg      Config
}

// New constructs the loader service
func New(
	db repokit.TxRunner,
	binder repokit.Binder[domain.StorageRepo],
	loader domain.TableLoader,
	archive domain.ArchiveOpener,
	scanner domain.ScannerFactory,
	taxonomy domain.TaxonomyFetcher,
	cfg Config,
) *Service {
	if db == nil {
		panic("load.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("load.Service requires a non nil Repo binder")
	}
	if loader == nil {
		panic("load.Service requires a non nil TableLoader")
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 500000
	}
	return &Service{
		DB: db, Binder: binder, Loader: loader,
		Archive: archive, Scanner: scanner, Taxonomy: taxonomy,
		Cfg: cfg,
	}
}

// Run implements domain.RunnerPort. A failed stage aborts the remainder of a
// full run; the operator re-invokes the same stage after remedying the cause
func (s *Service) Run(ctx context.Context, req domain.Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if req.Chunk == 0 {
		req.Chunk = s.Cfg.Chunk
	}

	plan := s.plan(req)
	if slices.Contains(plan, domain.StageSpecies) {
		if s.Taxonomy == nil {
			return perr.Unavailablef("no taxonomy source configured")
		}
		if err := s.Taxonomy.Validate(); err != nil {
			return err
		}
	}

	if err := s.Binder.Bind(s.DB).EnsureStageRuns(ctx); err != nil {
		return err
	}

	for _, stage := range plan {
		if err := s.runStage(ctx, stage, req); err != nil {
			return err
		}
	}
	return nil
}

// plan expands the full pseudo stage into dependency order; drop_sampling
// joins the plan only when requested
func (s *Service) plan(req domain.Request) []string {
	if req.Stage != domain.StageFull {
		return []string{req.Stage}
	}
	stages := []string{domain.StageCopySampling, domain.StageLocalities, domain.StageChecklists}
	if req.WithDrop {
		stages = append(stages, domain.StageDropSampling)
	}
	return append(stages, domain.StageSpecies, domain.StageObservations)
}

func (s *Service) runStage(ctx context.Context, stage string, req domain.Request) (retErr error) {
	runID := uuid.NewString()
	ctx = logger.WithRun(ctx, runID, stage)
	log := logger.C(ctx)

	repo := s.Binder.Bind(s.DB)
	for _, dep := range domain.Deps(stage) {
		ok, err := repo.StageCompleted(ctx, dep)
		if err != nil {
			return err
		}
		if !ok {
			return perr.Conflictf("stage %s requires completed stage %s", stage, dep)
		}
	}

	if err := repo.StartStage(ctx, stage, runID); err != nil {
		return err
	}
	start := time.Now()
	log.Info().Msg("load: stage started")

	var fin domain.StageFinish
	defer func() {
		fin.Status = "ok"
		if retErr != nil {
			fin.Status = "error"
			fin.ErrText = retErr.Error()
		}
		if err := repo.FinishStage(ctx, stage, fin); err != nil && retErr == nil {
			retErr = err
		}
		ev := log.Info()
		if retErr != nil {
			ev = log.Error().Err(retErr)
		}
		ev.Str("status", fin.Status).
			Int64("rows_loaded", fin.RowsLoaded).
			Int64("rows_skipped", fin.RowsSkipped).
			Dur("elapsed", time.Since(start)).
			Msg("load: stage finished")
	}()

	switch stage {
	case domain.StageCopySampling:
		fin, retErr = s.runCopySampling(ctx, req)
	case domain.StageLocalities:
		fin, retErr = s.runLocalities(ctx, req)
	case domain.StageChecklists:
		fin, retErr = s.runChecklists(ctx, req)
	case domain.StageDropSampling:
		retErr = repo.DropSampling(ctx)
	case domain.StageSpecies:
		fin, retErr = s.runSpecies(ctx, req)
	case domain.StageObservations:
		fin, retErr = s.runObservations(ctx, req)
	default:
		retErr = perr.InvalidArgf("unknown stage %q", stage)
	}
	return retErr
}

// vacuum is best effort cleanup after a heavy load; failures are logged,
// never escalated
func (s *Service) vacuum(ctx context.Context, table string) {
	if !s.Cfg.Vacuum {
		return
	}
	if err := s.Binder.Bind(s.DB).Vacuum(ctx, table); err != nil {
		logger.C(ctx).Warn().Err(err).Str("table", table).Msg("load: vacuum failed")
	}
}
