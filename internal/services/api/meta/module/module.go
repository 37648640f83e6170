// Package module mounts the meta endpoints
package module

import (
	"time"

	modkit "modloader/internal/modkit"
	"modloader/internal/modkit/httpkit"
	"modloader/internal/platform/store"
	metahttp "modloader/internal/services/api/meta/http"
)

// Module serves /meta
type Module struct {
	built modkit.Built
	deps  metahttp.Deps
}

// New builds the meta module; the pg and ch checks come from deps
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("meta"),
		modkit.WithPrefix("/meta"),
	}, opts...)...)

	return &Module{built: b, deps: metahttp.Deps{
		Service:   "modloader-api",
		StartedAt: time.Now(),
		Backends:  map[string]store.Pinger{"pg": pinger(deps.PG), "ch": pinger(deps.CH)},
		Order:     []string{"pg", "ch"},
	}}
}

// pinger keeps unset seams nil so they report as skipped
func pinger(seam any) store.Pinger {
	if p, ok := seam.(store.Pinger); ok {
		return p
	}
	return nil
}

// MountRoutes implements modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {
	m.built.Mount(r, func(sub httpkit.Router) { metahttp.Register(sub, m.deps) })
}

// Name implements modkit.Module
func (m *Module) Name() string { return m.built.Name }

// Ports implements modkit.Module
func (m *Module) Ports() any { return nil }
