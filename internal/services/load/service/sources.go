package service

import (
	"io"
	"sync"

	"birddb/internal/platform/logger"
	"birddb/internal/services/load/domain"
)

// projectionSource hands rows from a producer goroutine to the bulk loader
// through a bounded channel. Memory stays capped at the buffer size; once the
// buffer fills, the producer blocks until the loader commits a chunk and pulls
// again
type projectionSource struct {
	rows chan []string
	done chan struct{} // closed by stop; tells the producer to quit
	fin  chan struct{} // closed by finish; the producer has exited
	err  error
	once sync.Once
}

func newProjectionSource(buf int) *projectionSource {
	return &projectionSource{
		rows: make(chan []string, buf),
		done: make(chan struct{}),
		fin:  make(chan struct{}),
	}
}

// send delivers row to the consumer, reporting false when the consumer
// stopped pulling
func (p *projectionSource) send(row []string) bool {
	select {
	case p.rows <- row:
		return true
	case <-p.done:
		return false
	}
}

// finish closes the stream with err as the terminal result. Producer only;
// must be the producer's last call
func (p *projectionSource) finish(err error) {
	p.err = err
	close(p.rows)
	close(p.fin)
}

// stop tells the producer to quit and waits for it, after which the
// producer's counters are safe to read
func (p *projectionSource) stop() {
	p.once.Do(func() { close(p.done) })
	<-p.fin
}

func (p *projectionSource) Next() ([]string, error) {
	row, ok := <-p.rows
	if !ok {
		if p.err != nil {
			return nil, p.err
		}
		return nil, io.EOF
	}
	return row, nil
}

// samplingSource adapts the sampling member scanner to the bulk loader,
// applying the row filter and emitting periodic progress
type samplingSource struct {
	sc     domain.RowScanner
	filter domain.Filter
	size   int64
	every  int64
	log    *logger.Logger

	read     int64
	filtered int64
}

func (s *samplingSource) Next() ([]string, error) {
	for {
		row, err := s.sc.Next()
		if err != nil {
			return nil, err
		}
		s.read++
		s.progress()

		rec := domain.BindSampling(row)
		if !s.filter.MatchSampling(rec) {
			s.filtered++
			continue
		}
		return rec.Values(), nil
	}
}

func (s *samplingSource) progress() {
	if s.every <= 0 || s.read%s.every != 0 {
		return
	}
	_, skipped, bytes := s.sc.Stats()
	ev := s.log.Info().
		Int64("rows", s.read).
		Int64("filtered", s.filtered).
		Int("short_rows", skipped).
		Int64("bytes", bytes)
	if s.size > 0 {
		ev = ev.Float64("pct", float64(bytes)/float64(s.size)*100)
	}
	ev.Msg("load: sampling progress")
}

// observationSource adapts the observations member scanner to the bulk loader.
// Rows are filtered, scientific names resolved to species codes, and
// presence-only counts mapped before the row reaches the staging table
type observationSource struct {
	sc             domain.RowScanner
	filter         domain.Filter
	codes          map[string]string
	presenceAsZero bool
	size           int64
	every          int64
	log            *logger.Logger

	read     int64
	filtered int64
	unknown  int64
}

func (o *observationSource) Next() ([]string, error) {
	for {
		row, err := o.sc.Next()
		if err != nil {
			return nil, err
		}
		o.read++
		o.progress()

		if !o.filter.MatchRow(row) {
			o.filtered++
			continue
		}

		code, ok := o.codes[row.Get(domain.ColScientificName)]
		if !ok {
			o.unknown++
			continue
		}
		// subspecies resolution is best effort; misses land as NULL
		subCode := o.codes[row.Get(domain.ColSubspeciesSciName)]

		count := row.Get(domain.ColObservationCount)
		if count == "X" {
			if o.presenceAsZero {
				count = "0"
			} else {
				count = ""
			}
		}

		return []string{
			row.Get(domain.ColGlobalUniqueID),
			row.Get(domain.ColSamplingEventID),
			code,
			subCode,
			row.Get(domain.ColExoticCode),
			count,
			row.Get(domain.ColBreedingCode),
			row.Get(domain.ColBreedingCategory),
			row.Get(domain.ColBehaviorCode),
			row.Get(domain.ColAgeSex),
			row.Get(domain.ColSpeciesComments),
			row.Get(domain.ColHasMedia),
			row.Get(domain.ColApproved),
			row.Get(domain.ColReviewed),
			row.Get(domain.ColReason),
		}, nil
	}
}

func (o *observationSource) progress() {
	if o.every <= 0 || o.read%o.every != 0 {
		return
	}
	_, skipped, bytes := o.sc.Stats()
	ev := o.log.Info().
		Int64("rows", o.read).
		Int64("filtered", o.filtered).
		Int64("unknown_species", o.unknown).
		Int("short_rows", skipped).
		Int64("bytes", bytes)
	if o.size > 0 {
		ev = ev.Float64("pct", float64(bytes)/float64(o.size)*100)
	}
	ev.Msg("load: observations progress")
}
