// Package module wires the loader admin endpoints into the API using modkit
package module

import (
	"crypto/subtle"

	modkit "modloader/internal/modkit"
	"modloader/internal/modkit/httpkit"
	perr "modloader/internal/platform/errors"
	"modloader/internal/platform/net/middleware"
	lhttp "modloader/internal/services/api/loader/http"
	loadermod "modloader/internal/services/loader/module"
)

// Module implements the loader API module
type Module struct {
	built modkit.Built
	deps  lhttp.Deps
}

// New constructs the loader API module; the loader ports must be injected with modkit.WithPorts
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("loader-api"),
		modkit.WithPrefix("/loader"),
	}, opts...)...)

	injected, _ := b.Ports.(loadermod.Ports)
	if injected.Loader == nil {
		panic("loader API module requires the Loader port (from services/loader)")
	}

	return &Module{built: b, deps: lhttp.Deps{
		Loader:  injected.Loader,
		Journal: injected.Journal,
		Auth:    AdminPort(deps.Cfg.MayString("ADMIN_TOKEN", "")),
	}}
}

// AdminPort accepts a single static bearer token as the admin user with the loader:admin scope
// an empty token disables auth and returns nil
func AdminPort(token string) middleware.AuthPort {
	if token == "" {
		return nil
	}
	want := []byte(token)
	return httpkit.NewPortFunc(func(got string) (string, string, error) {
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			return "", "", perr.Unauthorizedf("invalid bearer token")
		}
		return "admin", "loader:admin", nil
	})
}

// MountRoutes mounts the loader routes under the module prefix
func (m *Module) MountRoutes(r httpkit.Router) {
	m.built.Mount(r, func(sub httpkit.Router) { lhttp.Register(sub, m.deps) })
}

// Name returns the module name
func (m *Module) Name() string { return m.built.Name }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return m.built.Prefix }

// Ports returns nil; the loader ports belong to services/loader
func (m *Module) Ports() any { return nil }
