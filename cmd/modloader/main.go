// Command modloader inspects and edits the module cache from the shell
package main

import (
	"context"
	"fmt"
	"os"

	"modloader/internal/modkit"
	"modloader/internal/platform/config"
	"modloader/internal/platform/logger"
	"modloader/internal/platform/store"

	loadermod "modloader/internal/services/loader/module"
	"modloader/internal/services/loader/service"
)

func main() {
	os.Exit(realMain(context.Background(), os.Args))
}

func realMain(ctx context.Context, args []string) int {
	app := newApp(os.Stdout, openLoader)
	if err := app.Run(ctx, args); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// openLoader builds the configured backend (LOADER_*) and its stores
func openLoader(ctx context.Context) (*service.Loader, func(), error) {
	root := config.New()
	l := logger.Named("modloader")
	opts := loadermod.FromConfig(root)

	st, err := store.Open(ctx, loadermod.StoreConfig(root, opts, "cli"), store.WithLogger(*l))
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	closeFn := func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}

	m, err := loadermod.NewWithOptions(ctx, modkit.Deps{Log: *l, Cfg: root, PG: st.PG, CH: st.CH}, opts)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return m.Loader(), closeFn, nil
}
