// Package httpkit is the routing vocabulary API modules are written in
package httpkit

import (
	"net/http"
	"time"

	phttp "modloader/internal/platform/net/http"
	"modloader/internal/platform/net/middleware"
)

type (
	// Router is the platform router seam
	Router = phttp.Router

	// Envelope is the response body every route writes
	Envelope = phttp.Envelope
)

// Get mounts a read handler
func Get(r Router, path string, h func(*http.Request) (any, error)) {
	r.Get(path, phttp.NoBodyHandler(h))
}

// Delete mounts a handler that takes no body
func Delete(r Router, path string, h func(*http.Request) (any, error)) {
	r.Delete(path, phttp.NoBodyHandler(h))
}

// PostJSON mounts a handler fed a validated T body
func PostJSON[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	r.Post(path, phttp.JSONHandler(h))
}

// PutJSON mounts a handler fed a validated T body
func PutJSON[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	r.Put(path, phttp.JSONHandler(h))
}

// MountAPIV1 mounts routes under /api/v1 behind mw
func MountAPIV1(r Router, mw []func(http.Handler) http.Handler, mount func(Router)) {
	r.Route("/api/v1", func(api Router) {
		if len(mw) > 0 {
			api.Use(mw...)
		}
		mount(api)
	})
}

// CommonStack is the API middleware chain with errors written as envelopes
func CommonStack(origins []string, timeout time.Duration) []func(http.Handler) http.Handler {
	return middleware.Stack(middleware.StackOptions{
		Origins: origins,
		Timeout: timeout,
		Slow:    time.Second,
		OnErr:   phttp.WriteError,
	})
}
