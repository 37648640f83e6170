// Package service provides the module loader facade and module references
package service

import (
	"context"

	"modloader/internal/platform/logger"
	dom "modloader/internal/services/loader/domain"
)

// Entry pairs a cached specifier with a pre-resolved reference
type Entry struct {
	Specifier dom.Specifier
	Ref       *Ref
}

// Option configures a Loader
type Option func(*Loader)

// WithLogger sets the logger used for debug traces
func WithLogger(l *logger.Logger) Option {
	return func(s *Loader) {
		if l != nil {
			s.log = l
		}
	}
}

// Loader is the public entry point over a backend store
// it adds no caching, retries, or validation of its own
type Loader struct {
	b   dom.Backend
	log *logger.Logger
}

// New constructs a Loader over b
func New(b dom.Backend, opts ...Option) *Loader {
	if b == nil {
		panic("loader: nil backend")
	}
	s := &Loader{b: b, log: logger.Named("loader")}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Backend returns the store the loader delegates to
func (s *Loader) Backend() dom.Backend { return s.b }

// Registrar returns the backend as a Registrar when it supports registration
func (s *Loader) Registrar() (dom.Registrar, bool) {
	r, ok := s.b.(dom.Registrar)
	return r, ok
}

// Ref returns an unresolved reference on sp
func (s *Loader) Ref(sp dom.Specifier) *Ref { return NewRef(s.b, sp) }

// Keys lists cached specifiers
func (s *Loader) Keys(ctx context.Context) ([]dom.Specifier, error) {
	return s.b.Keys(ctx)
}

// Get returns a reference on sp with its id eagerly refreshed
// the reference is returned even when sp is not cached
func (s *Loader) Get(ctx context.Context, sp dom.Specifier) (*Ref, error) {
	r := NewRef(s.b, sp)
	if err := r.Refresh(ctx); err != nil {
		return nil, err
	}
	s.log.Debug().Object("ref", r).Msg("get")
	return r, nil
}

// Set binds sp to the record ref points at
// an unresolvable ref surfaces the lookup error and binds nothing
func (s *Loader) Set(ctx context.Context, sp dom.Specifier, ref *Ref) error {
	id, err := ref.ID(ctx)
	if err != nil {
		return err
	}
	if err := s.b.Bind(ctx, sp, id); err != nil {
		return err
	}
	s.log.Debug().Str("specifier", string(sp)).Int64("module_id", int64(id)).Msg("set")
	return nil
}

// Entries snapshots the cache as specifier and pre-resolved reference pairs
func (s *Loader) Entries(ctx context.Context) ([]Entry, error) {
	bs, err := s.b.Entries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(bs))
	for _, e := range bs {
		out = append(out, Entry{Specifier: e.Specifier, Ref: NewResolvedRef(s.b, e.Specifier, e.ID)})
	}
	return out, nil
}

// Drop removes the binding for sp and reports whether one existed
func (s *Loader) Drop(ctx context.Context, sp dom.Specifier) (bool, error) {
	ok, err := s.b.Delete(ctx, sp)
	if err != nil {
		return false, err
	}
	s.log.Debug().Str("specifier", string(sp)).Bool("removed", ok).Msg("drop")
	return ok, nil
}

// Resolve maps sp against referrer; an empty referrer is allowed
func (s *Loader) Resolve(ctx context.Context, sp, referrer dom.Specifier) (dom.Specifier, error) {
	return s.b.Resolve(ctx, sp, referrer)
}
