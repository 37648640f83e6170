package module

import (
	"modloader/internal/platform/config"
	"modloader/internal/platform/store"
)

// StoreConfig derives the platform store config the loader options need
// postgres is opened for the pg backend and clickhouse for the journal
// root is read under SERVICE_PGSQL_* and SERVICE_CLICKHOUSE_*
func StoreConfig(root config.Conf, opts Options, clientTag string) store.Config {
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")

	var cfg store.Config
	if opts.Backend == BackendPG {
		cfg.PG = store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),

			ConnectRetries: pgCfg.MayInt("CONNECT_RETRIES", 0),
			PingTimeout:    pgCfg.MayDuration("PING_TIMEOUT", 0),
		}
	}
	if opts.Journal {
		cfg.CH = store.CHConfig{
			Enabled:    true,
			URL:        chCfg.MustString("DBURL"),
			ClientName: "modloader",
			ClientTag:  clientTag,
		}
	}
	return cfg
}
