package http

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
)

// Router is the routing surface modules mount against
type Router interface {
	Get(path string, h stdhttp.HandlerFunc)
	Post(path string, h stdhttp.HandlerFunc)
	Put(path string, h stdhttp.HandlerFunc)
	Delete(path string, h stdhttp.HandlerFunc)
	Handle(path string, h stdhttp.Handler)
	Use(mw ...func(stdhttp.Handler) stdhttp.Handler)
	Group(fn func(Router))
	Route(prefix string, fn func(Router))
	Mux() stdhttp.Handler
}

// chiRouter lets chi's own methods satisfy Router; only the nesting hooks need wrapping
type chiRouter struct{ chi.Router }

// AdaptChi wraps a chi router
func AdaptChi(r chi.Router) Router { return chiRouter{r} }

func (c chiRouter) Group(fn func(Router)) {
	c.Router.Group(func(sub chi.Router) { fn(chiRouter{sub}) })
}

func (c chiRouter) Route(prefix string, fn func(Router)) {
	c.Router.Route(prefix, func(sub chi.Router) { fn(chiRouter{sub}) })
}

func (c chiRouter) Mux() stdhttp.Handler { return c.Router }
