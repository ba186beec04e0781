package service

import (
	"context"
	"io"

	"birddb/internal/modkit/repokit"
	perr "birddb/internal/platform/errors"
	"birddb/internal/platform/logger"
	"birddb/internal/services/load/domain"
	"birddb/internal/services/load/repo"
)

// runCopySampling lands the raw sampling member into tmp_sampling_data.
// Re-runs drop the landing table first so the stage converges instead of
// doubling rows
func (s *Service) runCopySampling(ctx context.Context, req domain.Request) (domain.StageFinish, error) {
	var fin domain.StageFinish

	if err := s.Binder.Bind(s.DB).DropSampling(ctx); err != nil {
		return fin, err
	}

	member, err := s.Archive.Sampling(req.ArchivePath)
	if err != nil {
		return fin, err
	}
	defer member.Close()

	sc, err := s.Scanner.New(member, domain.SamplingRequired()...)
	if err != nil {
		return fin, err
	}

	src := &samplingSource{
		sc:     sc,
		filter: req.ToFilter(),
		size:   member.Size(),
		every:  s.Cfg.ProgressEvery,
		log:    logger.C(ctx),
	}
	res, err := s.Loader.Load(ctx, repo.SamplingSpec(), src, req.Chunk)
	fin.RowsLoaded = res.Committed
	_, short, _ := sc.Stats()
	fin.RowsSkipped = src.filtered + int64(short)
	if err != nil {
		return fin, err
	}

	s.vacuum(ctx, repo.SamplingTable)
	return fin, nil
}

// runLocalities projects deduplicated localities out of the raw sampling rows
func (s *Service) runLocalities(ctx context.Context, req domain.Request) (domain.StageFinish, error) {
	return s.runSamplingProjection(ctx, req, repo.LocalitiesSpec(),
		func(rec domain.SamplingRecord) (string, []string) {
			return rec.LocalityID, rec.LocalityValues()
		})
}

// runChecklists projects deduplicated checklists out of the raw sampling rows
func (s *Service) runChecklists(ctx context.Context, req domain.Request) (domain.StageFinish, error) {
	return s.runSamplingProjection(ctx, req, repo.ChecklistsSpec(),
		func(rec domain.SamplingRecord) (string, []string) {
			return rec.SamplingEventID, rec.ChecklistValues()
		})
}

// projectionBuffer bounds the rows in flight between the sampling scan and
// the bulk loader
const projectionBuffer = 256

// runSamplingProjection streams the landed sampling rows through a keyed,
// filtered projection and bulk loads the first-seen row per key. The scan and
// the load run concurrently over a bounded channel, so memory is proportional
// to the distinct-key set plus the buffer, never the row count
func (s *Service) runSamplingProjection(
	ctx context.Context,
	req domain.Request,
	spec domain.TableSpec,
	project func(domain.SamplingRecord) (key string, row []string),
) (domain.StageFinish, error) {
	var fin domain.StageFinish
	log := logger.C(ctx)
	filter := req.ToFilter()

	dedup := domain.NewDeduper()
	var filtered int64
	src := newProjectionSource(projectionBuffer)
	go func() {
		src.finish(s.Binder.Bind(s.DB).StreamSampling(ctx, func(rec domain.SamplingRecord) error {
			if !filter.MatchSampling(rec) {
				filtered++
				return nil
			}
			key, row := project(rec)
			if key == "" {
				return nil
			}
			if dedup.Seen(key) {
				return nil
			}
			if !src.send(row) {
				// consumer is gone; end the scan cleanly
				return io.EOF
			}
			return nil
		}))
	}()
	defer src.stop()

	res, err := s.Loader.Load(ctx, spec, src, req.Chunk)
	src.stop()
	fin.RowsLoaded = res.Inserted
	fin.RowsSkipped = filtered + int64(dedup.Duplicates()) + (res.Committed - res.Inserted)
	if err != nil {
		return fin, err
	}
	log.Info().
		Str("table", spec.Name).
		Int("distinct", dedup.Distinct()).
		Int("duplicates", dedup.Duplicates()).
		Int64("filtered", filtered).
		Msg("load: sampling projection deduplicated")

	s.vacuum(ctx, spec.Name)
	return fin, nil
}

// runSpecies refreshes the species reference table from the taxonomy source
func (s *Service) runSpecies(ctx context.Context, req domain.Request) (domain.StageFinish, error) {
	var fin domain.StageFinish

	recs, err := s.Taxonomy.Fetch(ctx)
	if err != nil {
		return fin, err
	}
	if len(recs) == 0 {
		return fin, perr.Unavailablef("taxonomy source returned no species")
	}
	logger.C(ctx).Info().Int("species", len(recs)).Msg("load: taxonomy fetched")

	chunk := req.Chunk
	if chunk <= 0 {
		chunk = repo.DefaultChunk
	}
	for start := 0; start < len(recs); start += chunk {
		end := min(start+chunk, len(recs))
		err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
			n, err := s.Binder.Bind(q).UpsertSpecies(ctx, recs[start:end])
			fin.RowsLoaded += n
			return err
		})
		if err != nil {
			return fin, err
		}
	}
	fin.RowsSkipped = int64(len(recs)) - fin.RowsLoaded

	s.vacuum(ctx, repo.SpeciesTable)
	return fin, nil
}

// runObservations lands the observations member, resolving scientific names
// to species codes against the loaded reference table
func (s *Service) runObservations(ctx context.Context, req domain.Request) (domain.StageFinish, error) {
	var fin domain.StageFinish
	log := logger.C(ctx)

	codes, err := s.Binder.Bind(s.DB).SpeciesCodeMap(ctx)
	if err != nil {
		return fin, err
	}
	if len(codes) == 0 {
		return fin, perr.Conflictf("species table is empty; run the species stage first")
	}

	member, err := s.Archive.Observations(req.ArchivePath)
	if err != nil {
		return fin, err
	}
	defer member.Close()

	sc, err := s.Scanner.New(member, domain.ObservationsRequired()...)
	if err != nil {
		return fin, err
	}

	src := &observationSource{
		sc:             sc,
		filter:         req.ToFilter(),
		codes:          codes,
		presenceAsZero: s.Cfg.PresenceAsZero,
		size:           member.Size(),
		every:          s.Cfg.ProgressEvery,
		log:            log,
	}
	res, err := s.Loader.Load(ctx, repo.ObservationsSpec(), src, req.Chunk)
	fin.RowsLoaded = res.Inserted
	_, short, _ := sc.Stats()
	fin.RowsSkipped = src.filtered + src.unknown + int64(short) + (res.Committed - res.Inserted)
	if src.unknown > 0 {
		log.Warn().Int64("rows", src.unknown).Msg("load: observations with unknown scientific names skipped")
	}
	if err != nil {
		return fin, err
	}

	s.vacuum(ctx, repo.ObservationsTable)
	return fin, nil
}
