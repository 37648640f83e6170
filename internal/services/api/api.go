// Package api mounts the versioned HTTP API
package api

import (
	"time"

	"modloader/internal/modkit"
	"modloader/internal/modkit/httpkit"
	"modloader/internal/modkit/swaggerkit"
	"modloader/internal/platform/config"
	"modloader/internal/platform/logger"
	phttp "modloader/internal/platform/net/http"
	"modloader/internal/platform/store"

	apiloader "modloader/internal/services/api/loader/module"
	metamod "modloader/internal/services/api/meta/module"
	loadermod "modloader/internal/services/loader/module"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Options are the API options
// Loader is built by the caller since its construction can fail
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	Loader         *loadermod.Module
	EnableSwagger  bool
	EnableProfiler bool
}

// Deps builds the shared module deps from the options
func (o Options) Deps() modkit.Deps {
	deps := modkit.Deps{Cfg: o.Config}
	if o.Logger != nil {
		deps.Log = *o.Logger
	}
	if o.Store != nil {
		deps.PG = o.Store.PG
		deps.CH = o.Store.CH
	}
	return deps
}

// Modules lists the API modules in mount order
func Modules(opt Options) []modkit.Module {
	deps := opt.Deps()
	ports := modkit.MustPortsOf[loadermod.Ports](opt.Loader)
	return []modkit.Module{
		metamod.New(deps),
		apiloader.New(deps,
			modkit.WithPorts(ports),
			modkit.WithMiddlewares(chimw.Throttle(opt.Config.MayInt("LOADER_MAX_INFLIGHT", 64))),
		),
	}
}

// Mount mounts every module under /api/v1 plus swagger and the profiler at the root
func Mount(r phttp.Router, opt Options) {
	swaggerkit.Mount(r, opt.EnableSwagger)
	phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

	stack := httpkit.CommonStack(
		opt.Config.MayCSV("CORS_ORIGINS", nil),
		opt.Config.MayDuration("REQUEST_TIMEOUT", 30*time.Second),
	)
	httpkit.MountAPIV1(r, stack, func(api httpkit.Router) {
		for _, m := range Modules(opt) {
			m.MountRoutes(api)
		}
	})
}
