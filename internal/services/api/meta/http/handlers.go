// Package http serves service metadata and readiness
package http

import (
	"context"
	"net/http"
	"time"

	"modloader/internal/core/version"
	"modloader/internal/modkit/httpkit"
	"modloader/internal/platform/store"
)

// readyTimeout bounds every backend ping
const readyTimeout = 2 * time.Second

// Deps are the handler dependencies
// a nil entry in Backends is reported as skipped
type Deps struct {
	Service   string
	StartedAt time.Time
	Backends  map[string]store.Pinger
	Order     []string
}

// Register mounts the meta routes
func Register(r httpkit.Router, d Deps) {
	h := &handlers{d}
	httpkit.Get(r, "/health", h.health)
	httpkit.Get(r, "/ready", h.ready)
	httpkit.Get(r, "/version", func(*http.Request) (any, error) { return version.Info(), nil })
	httpkit.Get(r, "/service", h.health)
	httpkit.Get(r, "/runtime", func(*http.Request) (any, error) { return version.GetRuntime(), nil })
}

type handlers struct{ d Deps }

// ServiceResponse names the service and how long it has been up
type ServiceResponse struct {
	Service string `json:"service" example:"modloader-api"`
	Started string `json:"started" example:"2026-01-03T13:00:00Z"`
	Uptime  int64  `json:"uptime"  example:"300"`
}

// ReadyCheck is one backend ping; Status is ok, fail or skipped
type ReadyCheck struct {
	Name   string `json:"name"            example:"pg"`
	Status string `json:"status"          example:"ok"`
	Error  string `json:"error,omitempty"`
}

// ReadyResponse is ok when every configured backend answered
type ReadyResponse struct {
	Status string       `json:"status" example:"ok"`
	Checks []ReadyCheck `json:"checks"`
}

// swagger:route GET /meta/health Meta metaHealth
// @Summary Liveness and uptime
// @Tags Meta
// @Produce json
// @Success 200 {object} ServiceResponse "ok"
// @Router /meta/health [get]
func (h *handlers) health(*http.Request) (any, error) {
	return ServiceResponse{
		Service: h.d.Service,
		Started: h.d.StartedAt.UTC().Format(time.RFC3339),
		Uptime:  int64(time.Since(h.d.StartedAt) / time.Second),
	}, nil
}

// swagger:route GET /meta/ready Meta metaReady
// @Summary Pings the configured backends
// @Tags Meta
// @Produce json
// @Success 200 {object} ReadyResponse "ok"
// @Router /meta/ready [get]
func (h *handlers) ready(r *http.Request) (any, error) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	out := ReadyResponse{Status: "ok", Checks: make([]ReadyCheck, 0, len(h.d.Order))}
	for _, name := range h.d.Order {
		c := ReadyCheck{Name: name, Status: "skipped"}
		if p := h.d.Backends[name]; p != nil {
			c.Status = "ok"
			if err := p.Ping(ctx); err != nil {
				c.Status, c.Error, out.Status = "fail", err.Error(), "fail"
			}
		}
		out.Checks = append(out.Checks, c)
	}
	return out, nil
}
