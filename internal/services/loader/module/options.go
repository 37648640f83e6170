package module

import (
	"strings"

	"modloader/internal/core/specifier"
	"modloader/internal/platform/config"
	"modloader/internal/services/loader/repo"
)

// Backend kinds
const (
	BackendMemory = "memory"
	BackendPG     = "pg"
)

// Options holds configuration settings for the loader module
type Options struct {
	Backend        string
	HiddenPrefixes []string
	Journal        bool
	JournalTable   string
	PGMigrate      bool
}

// FromConfig reads LOADER_* settings from the config.Conf
func FromConfig(cfg config.Conf) Options {
	lc := cfg.Prefix("LOADER_")
	return Options{
		Backend:        strings.ToLower(lc.MayEnum("BACKEND", BackendMemory, BackendMemory, BackendPG)),
		HiddenPrefixes: lc.MayCSV("HIDDEN_PREFIXES", specifier.DefaultHidden),
		Journal:        lc.MayBool("JOURNAL", false),
		JournalTable:   lc.MayString("JOURNAL_TABLE", repo.DefaultJournalTable),
		PGMigrate:      lc.MayBool("PG_MIGRATE", true),
	}
}
