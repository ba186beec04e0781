// Package ingest adapts the archive and taxonomy adapters to the loader's ports
package ingest

import (
	"io"

	"birddb/internal/adapters/ingest/archive"
	"birddb/internal/adapters/ingest/taxonomy"
	"birddb/internal/modkit"
	"birddb/internal/services/load/domain"
)

// Opener locates sampling and observations members in a source archive
type Opener struct{}

// Sampling implements domain.ArchiveOpener
func (Opener) Sampling(path string) (domain.MemberStream, error) {
	return archive.SamplingMember(path)
}

// Observations implements domain.ArchiveOpener
func (Opener) Observations(path string) (domain.MemberStream, error) {
	return archive.ObservationsMember(path)
}

// Scanners builds header-validated row scanners over member streams
type Scanners struct{}

// New implements domain.ScannerFactory
func (Scanners) New(r io.Reader, required ...string) (domain.RowScanner, error) {
	sc, err := archive.NewScanner(r, required...)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// NewFetcher builds the taxonomy client from CORE_TAXONOMY_* config.
// The API key stays optional here; the service validates it up front when a
// run's plan includes the species stage
func NewFetcher(deps modkit.Deps) domain.TaxonomyFetcher {
	tx := deps.Cfg.Prefix("CORE_TAXONOMY_")
	return taxonomy.NewClient(taxonomy.Options{
		BaseURL:    tx.MayString("BASE_URL", ""),
		APIKey:     tx.MayString("API_KEY", ""),
		Timeout:    tx.MayDuration("TIMEOUT", 0),
		MaxRetries: tx.MayInt("RETRIES", 0),
	})
}
