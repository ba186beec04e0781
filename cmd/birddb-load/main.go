package main

import (
	"context"
	"flag"
	"net"
	"net/url"
	"os"
	"strconv"

	"birddb/internal/modkit"
	"birddb/internal/modkit/module"
	"birddb/internal/modkit/repokit"
	"birddb/internal/platform/config"
	"birddb/internal/platform/logger"
	"birddb/internal/platform/store"

	loaddom "birddb/internal/services/load/domain"
	loadmod "birddb/internal/services/load/module"

	"github.com/joho/godotenv"
)

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

// pgDSN resolves the database connection URL. A full SERVICE_PGSQL_DBURL
// wins; otherwise the URL is composed from the discrete SERVICE_PGSQL_
// USER/PASSWORD/HOST/PORT/DATABASE parts, with credentials escaped
func pgDSN(cfg config.Conf) string {
	if dsn := cfg.MayString("DBURL", ""); dsn != "" {
		return dsn
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.MustString("USER"), cfg.MustString("PASSWORD")),
		Host:   net.JoinHostPort(cfg.MayString("HOST", "localhost"), cfg.MayString("PORT", "5432")),
		Path:   "/" + cfg.MustString("DATABASE"),
	}
	q := url.Values{}
	q.Set("sslmode", cfg.MayString("SSLMODE", "disable"))
	u.RawQuery = q.Encode()
	return u.String()
}

func main() {
	var (
		fStage    = flag.String("stage", "", "stage to run: copy_sampling | localities | checklists | drop_sampling | species | observations | full")
		fArchive  = flag.String("archive", "", "path to the source archive (.tar or .zip)")
		fStart    = flag.String("start-date", "", "inclusive lower bound on observation date, YYYY-MM-DD")
		fEnd      = flag.String("end-date", "", "inclusive upper bound on observation date, YYYY-MM-DD")
		fRegion   = flag.String("region", "", "state or county code filter, e.g. US-NY or US-NY-109")
		fChunk    = flag.Int("chunk", 0, "rows per load transaction (0 uses CORE_LOAD_CHUNK)")
		fWithDrop = flag.Bool("with-drop", false, "include drop_sampling when running the full stage")
		fPresence = flag.Bool("presence-as-zero", false, "load presence-only counts as 0 instead of NULL")
		fEnvFile  = flag.String("env-file", "", "optional .env file loaded before config is read")
	)
	flag.Parse()

	if *fEnvFile != "" {
		if err := godotenv.Load(*fEnvFile); err != nil {
			logger.Get().Panic().Err(err).Str("path", *fEnvFile).Msg("env file load failed")
		}
	} else {
		_ = godotenv.Load()
	}

	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")

	l := logger.Get()
	st, err := store.Open(context.Background(), store.Config{
		AppName: "birddb-load",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgDSN(pgCfg),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()
	repokit.MustGuard(context.Background(), st)

	// Surface flag opts to the module's FromConfig
	if *fPresence {
		mustSetEnv("CORE_LOAD_PRESENCE_AS_ZERO", "1")
	}
	if *fChunk > 0 {
		mustSetEnv("CORE_LOAD_CHUNK", strconv.Itoa(*fChunk))
	}

	deps := modkit.Deps{
		Cfg: root,
		PG:  st.PG,
		Log: *l,
	}

	ld := loadmod.New(deps)
	module.Register(ld.Name(), ld.Ports())

	ldPorts, ok := module.PortsAs[loadmod.Ports](ld.Name())
	if !ok {
		l.Fatal().Str("module", ld.Name()).Msg("module ports not registered")
	}

	req := loaddom.Request{
		Stage:       *fStage,
		ArchivePath: *fArchive,
		StartDate:   *fStart,
		EndDate:     *fEnd,
		Region:      *fRegion,
		Chunk:       *fChunk,
		WithDrop:    *fWithDrop,
	}

	if err := ldPorts.Runner.Run(context.Background(), req); err != nil {
		l.Fatal().Err(err).Str("stage", *fStage).Msg("load failed")
	}
}
