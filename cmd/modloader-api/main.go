// @title         Module Loader API
// @version       0.1.0
// @description   Admin endpoints for the module cache

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"modloader/internal/core/version"
	"modloader/internal/modkit"
	"modloader/internal/modkit/repokit"
	"modloader/internal/platform/config"
	"modloader/internal/platform/logger"
	phttp "modloader/internal/platform/net/http"
	"modloader/internal/platform/store"

	"modloader/internal/services/api"
	loadermod "modloader/internal/services/loader/module"
)

func main() {
	root := config.New()
	// service-scoped config for HTTP etc (CORE_API_*)
	apiCfg := root.Prefix("CORE_API_")
	rtCfg := root.Prefix("RUNTIME_")

	// bring up logging early
	l := logger.Get()

	version.SetRuntime(version.Runtime{
		Runtime:  rtCfg.MayString("NAME", "modloader"),
		Engine:   rtCfg.MayString("ENGINE", "none"),
		Compiler: rtCfg.MayString("COMPILER", version.DefaultRuntime().Compiler),
		Loader:   version.Info().Version,
	})

	// LOADER_* decides which stores we need
	opts := loadermod.FromConfig(root)

	st, err := store.Open(
		context.Background(),
		loadermod.StoreConfig(root, opts, "api"),
		store.WithLogger(*logger.Get()),
	)
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	// fail fast when a configured store does not answer
	repokit.MustGuard(context.Background(), st)

	loader, err := loadermod.NewWithOptions(context.Background(), modkit.Deps{
		Log: *l,
		Cfg: root,
		PG:  st.PG,
		CH:  st.CH,
	}, opts)
	if err != nil {
		l.Panic().Err(err).Msg("loader init failed")
	}

	// reads CORE_API_PORT, CORE_API_READ_TIMEOUT and CORE_API_WRITE_TIMEOUT
	srv := phttp.NewServer(apiCfg)

	api.Mount(
		srv.Router(),
		api.Options{
			Config:         apiCfg,
			Store:          st,
			Logger:         l,
			Loader:         loader,
			EnableSwagger:  apiCfg.MayBool("SWAGGER", true),
			EnableProfiler: apiCfg.MayBool("PROFILER", false),
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l.Info().Str("addr", srv.Addr()).Msg("listening")
	if err := srv.Run(ctx); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
