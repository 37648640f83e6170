// Package module wires the module loader service from config and shared deps
package module

import (
	"context"
	"errors"
	"fmt"

	"modloader/internal/modkit"
	"modloader/internal/modkit/httpkit"
	dom "modloader/internal/services/loader/domain"
	"modloader/internal/services/loader/repo"
	"modloader/internal/services/loader/service"
)

// JournalReader lists recorded cache mutations
type JournalReader interface {
	Recent(ctx context.Context, s dom.Specifier, limit int) ([]repo.Event, error)
}

// Ports exposed by the loader module
// Journal is nil unless the clickhouse journal is enabled
type Ports struct {
	Loader  *service.Loader
	Journal JournalReader
}

// Module implements the loader service module
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports
}

// New builds the configured backend and the loader facade over it
func New(ctx context.Context, deps modkit.Deps) (*Module, error) {
	return NewWithOptions(ctx, deps, FromConfig(deps.Cfg))
}

// NewWithOptions is New with explicit options
func NewWithOptions(ctx context.Context, deps modkit.Deps, opts Options) (*Module, error) {
	log := deps.Log.With().Str("component", "loader").Logger()

	var backend dom.Backend
	switch opts.Backend {
	case BackendPG:
		if deps.PG == nil {
			return nil, errors.New("loader: pg backend selected but postgres is not configured")
		}
		pg := repo.NewPG(deps.PG, opts.HiddenPrefixes)
		if opts.PGMigrate {
			if err := pg.EnsureSchema(ctx); err != nil {
				return nil, fmt.Errorf("loader: %w", err)
			}
		}
		backend = pg
	case BackendMemory, "":
		backend = repo.NewMemory(opts.HiddenPrefixes)
	default:
		return nil, fmt.Errorf("loader: unknown backend %q", opts.Backend)
	}

	m := &Module{deps: deps, opts: opts}

	if opts.Journal {
		if deps.CH == nil {
			return nil, errors.New("loader: journal enabled but clickhouse is not configured")
		}
		if opts.JournalTable != "" && !repo.ValidJournalTable(opts.JournalTable) {
			return nil, fmt.Errorf("loader: invalid journal table %q", opts.JournalTable)
		}
		backend = repo.NewJournal(backend, deps.CH, repo.WithJournalTable(opts.JournalTable))
		j := journalOf(backend)
		if err := j.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("loader: journal schema: %w", err)
		}
		m.ports.Journal = j
	}

	m.ports.Loader = service.New(backend, service.WithLogger(&log))

	log.Info().
		Str("backend", opts.Backend).
		Strs("hidden_prefixes", opts.HiddenPrefixes).
		Bool("journal", opts.Journal).
		Msg("loader ready")
	return m, nil
}

func journalOf(b dom.Backend) *repo.Journal {
	switch j := b.(type) {
	case *repo.JournalStore:
		return j.Journal
	case *repo.Journal:
		return j
	}
	return nil
}

// Loader returns the facade
func (m *Module) Loader() *service.Loader { return m.ports.Loader }

// Options returns the options the module was built with
func (m *Module) Options() Options { return m.opts }

// Name satisfies modkit.Module
func (m *Module) Name() string { return "loader" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes satisfies modkit.Module; routes live in the api loader module
func (m *Module) MountRoutes(httpkit.Router) {}
