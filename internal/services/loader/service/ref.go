package service

import (
	"context"
	"fmt"

	perr "modloader/internal/platform/errors"
	dom "modloader/internal/services/loader/domain"

	"github.com/rs/zerolog"
)

// Ref is a lazily resolved handle on one cached specifier
// the id is fetched on first use and cached; a Ref never keeps a record alive
// a Ref is owned by one goroutine at a time
type Ref struct {
	b     dom.Backend
	spec  dom.Specifier
	id    dom.ID
	known bool
}

// NewRef returns an unresolved handle on s
func NewRef(b dom.Backend, s dom.Specifier) *Ref {
	return &Ref{b: b, spec: s}
}

// NewResolvedRef returns a handle on s whose id is already known
func NewResolvedRef(b dom.Backend, s dom.Specifier, id dom.ID) *Ref {
	return &Ref{b: b, spec: s, id: id, known: true}
}

// Specifier returns the key this handle was created for
func (r *Ref) Specifier() dom.Specifier { return r.spec }

// Cached returns the cached id without contacting the backend
func (r *Ref) Cached() (dom.ID, bool) { return r.id, r.known }

// ID returns the cached id, looking it up once if needed
// absence is a NotFound error and is not cached
func (r *Ref) ID(ctx context.Context) (dom.ID, error) {
	if r.known {
		return r.id, nil
	}
	id, err := r.b.Lookup(ctx, r.spec)
	if err != nil {
		return 0, err
	}
	r.id, r.known = id, true
	return id, nil
}

// Refresh re-queries the backend and overwrites the cached id
// absence clears the cache and is not an error
func (r *Ref) Refresh(ctx context.Context) error {
	id, err := r.b.Lookup(ctx, r.spec)
	switch {
	case err == nil:
		r.id, r.known = id, true
		return nil
	case perr.IsCode(err, perr.ErrorCodeNotFound):
		r.id, r.known = 0, false
		return nil
	default:
		return err
	}
}

// Exports returns the namespace of the referenced record
func (r *Ref) Exports(ctx context.Context) (dom.Exports, error) {
	id, err := r.ID(ctx)
	if err != nil {
		return nil, err
	}
	return r.b.Exports(ctx, id)
}

// Requests returns a snapshot of the specifiers the referenced record imports
func (r *Ref) Requests(ctx context.Context) ([]dom.Specifier, error) {
	id, err := r.ID(ctx)
	if err != nil {
		return nil, err
	}
	xs, err := r.b.Requests(ctx, id)
	if err != nil {
		return nil, err
	}
	return dom.CloneSpecifiers(xs), nil
}

// Drop removes the cache binding for the specifier
// the cached id is kept; call Refresh to observe the removal
func (r *Ref) Drop(ctx context.Context) (bool, error) {
	return r.b.Delete(ctx, r.spec)
}

// String renders ModuleRef(<specifier>, id=<n|?>), resolving the id if needed
func (r *Ref) String() string {
	id := "?"
	if n, err := r.ID(context.Background()); err == nil {
		id = n.String()
	}
	return fmt.Sprintf("ModuleRef(%s, id=%s)", r.spec, id)
}

// MarshalZerologObject logs the specifier and the cached id only
func (r *Ref) MarshalZerologObject(e *zerolog.Event) {
	e.Str("specifier", string(r.spec))
	if r.known {
		e.Int64("module_id", int64(r.id))
	}
}

var _ zerolog.LogObjectMarshaler = (*Ref)(nil)
