package module

import (
	"birddb/internal/platform/config"
)

// Options holds configuration options for the load service
type Options struct {
	Chunk          int
	PresenceAsZero bool
	Vacuum         bool
	SyncCommitOff  bool
	ProgressEvery  int64
}

// FromConfig reads the load options from config with CORE_LOAD_ prefix
func FromConfig(cfg config.Conf) Options {
	ld := cfg.Prefix("CORE_LOAD_")
	return Options{
		Chunk:          ld.MayInt("CHUNK", 5000),
		PresenceAsZero: ld.MayBool("PRESENCE_AS_ZERO", false),
		Vacuum:         ld.MayBool("VACUUM", true),
		SyncCommitOff:  ld.MayBool("SYNC_COMMIT_OFF", false),
		ProgressEvery:  int64(ld.MayInt("PROGRESS_EVERY", 500000)),
	}
}
