// Package module provides the load module implementation
package module

import (
	"context"

	"birddb/internal/modkit"
	"birddb/internal/modkit/repokit"

	"birddb/internal/services/load/domain"
	"birddb/internal/services/load/ingest"
	"birddb/internal/services/load/repo"
	"birddb/internal/services/load/service"
)

// Ports defines the load module ports
type Ports struct {
	Runner domain.RunnerPort
}

// Module implements the load module
type Module struct {
	deps  modkit.Deps
	built modkit.Built
}

// New constructs the load module, wiring the adapters and the service using
// config from deps.Cfg
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)

	db := repokit.TxRunner(deps.PG)
	if opts.SyncCommitOff {
		// trade durability of the last chunk for COPY throughput; each chunk
		// still commits atomically
		db = repokit.WithBeginHooks(db, func(ctx context.Context, q repokit.Queryer) error {
			_, err := q.Exec(ctx, "SET LOCAL synchronous_commit TO off")
			return err
		})
	}

	storeBinder := repo.NewPG()
	loader := repo.NewLoader(db)
	fetch := ingest.NewFetcher(deps) // uses CORE_TAXONOMY_* from deps.Cfg

	svc := service.New(
		db, storeBinder, loader,
		ingest.Opener{}, ingest.Scanners{}, fetch,
		service.Config{
			Chunk:          opts.Chunk,
			PresenceAsZero: opts.PresenceAsZero,
			Vacuum:         opts.Vacuum,
			ProgressEvery:  opts.ProgressEvery,
		},
	)

	return &Module{
		deps: deps,
		built: modkit.Build(
			modkit.WithName("load"),
			modkit.WithPorts(Ports{Runner: svc}),
		),
	}
}

// Name returns the module name
func (m *Module) Name() string { return m.built.Name }

// Ports returns the module ports
func (m *Module) Ports() any { return m.built.Ports }
