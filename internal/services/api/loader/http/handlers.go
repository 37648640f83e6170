// Package http provides http transport for the module loader
package http

import (
	"fmt"
	stdhttp "net/http"
	"strconv"
	"strings"

	"modloader/internal/modkit/httpkit"
	perr "modloader/internal/platform/errors"
	"modloader/internal/platform/logger"
	"modloader/internal/platform/net/middleware"
	"modloader/internal/services/api/loader/domain"
	dom "modloader/internal/services/loader/domain"
	loadermod "modloader/internal/services/loader/module"
	"modloader/internal/services/loader/service"
)

// Deps are the handler dependencies
// Journal may be nil; a nil Auth leaves the mutating routes open
type Deps struct {
	Loader  *service.Loader
	Journal loadermod.JournalReader
	Auth    middleware.AuthPort
}

// Register mounts the loader routes
func Register(r httpkit.Router, d Deps) {
	h := &handlers{l: d.Loader, j: d.Journal}

	httpkit.Get(r, "/keys", h.keys)
	httpkit.Get(r, "/entries", h.entries)
	httpkit.Get(r, "/modules", h.get)
	httpkit.Get(r, "/resolve", h.resolve)
	httpkit.Get(r, "/exports", h.exports)
	httpkit.Get(r, "/requests", h.requests)
	httpkit.Get(r, "/journal", h.journal)

	httpkit.Protected(r, d.Auth, func(pr httpkit.Router) {
		httpkit.PutJSON[domain.SetInput](pr, "/modules", h.set)
		httpkit.Delete(pr, "/modules", h.drop)
		httpkit.PostJSON[domain.RecordInput](pr, "/records", h.register)
		httpkit.PostJSON[domain.AliasInput](pr, "/aliases", h.alias)
	})
}

func audit(r *stdhttp.Request, op string, s string) {
	logger.C(r.Context()).Info().
		Str("actor", httpkit.Actor(r)).
		Str("op", op).
		Str("specifier", s).
		Msg("loader mutation")
}

type handlers struct {
	l *service.Loader
	j loadermod.JournalReader
}

func specifierParam(r *stdhttp.Request) (dom.Specifier, error) {
	s := strings.TrimSpace(r.URL.Query().Get("specifier"))
	if s == "" {
		return "", perr.WithField(perr.Newf(perr.ErrorCodeValidation, "specifier is required"), "specifier")
	}
	return dom.Specifier(s), nil
}

// swagger:route GET /loader/keys Loader loaderKeys
// @Summary Cached specifiers in insertion order
// @Tags Loader
// @Produce json
// @Success 200 {object} domain.KeysResponse "ok"
// @Router /loader/keys [get]
func (h *handlers) keys(r *stdhttp.Request) (any, error) {
	ks, err := h.l.Keys(r.Context())
	if err != nil {
		return nil, err
	}
	out := domain.KeysResponse{Keys: make([]string, len(ks))}
	for i, k := range ks {
		out.Keys[i] = string(k)
	}
	return out, nil
}

// swagger:route GET /loader/entries Loader loaderEntries
// @Summary Cache snapshot with resolved ids
// @Tags Loader
// @Produce json
// @Success 200 {array} domain.EntryRow "ok"
// @Router /loader/entries [get]
func (h *handlers) entries(r *stdhttp.Request) (any, error) {
	es, err := h.l.Entries(r.Context())
	if err != nil {
		return nil, err
	}
	out := make([]domain.EntryRow, 0, len(es))
	for _, e := range es {
		id, _ := e.Ref.Cached()
		out = append(out, domain.EntryRow{Specifier: string(e.Specifier), ID: int64(id)})
	}
	return out, nil
}

// swagger:route GET /loader/modules Loader loaderGet
// @Summary Module reference for a specifier
// @Tags Loader
// @Produce json
// @Param specifier query string true "specifier"
// @Success 200 {object} domain.ModuleRef "ok"
// @Router /loader/modules [get]
func (h *handlers) get(r *stdhttp.Request) (any, error) {
	s, err := specifierParam(r)
	if err != nil {
		return nil, err
	}
	ref, err := h.l.Get(r.Context(), s)
	if err != nil {
		return nil, err
	}
	return toModuleRef(ref), nil
}

func toModuleRef(ref *service.Ref) domain.ModuleRef {
	out := domain.ModuleRef{Specifier: string(ref.Specifier())}
	label := "?"
	if id, ok := ref.Cached(); ok {
		n := int64(id)
		out.ID, out.Cached = &n, true
		label = id.String()
	}
	out.Label = fmt.Sprintf("ModuleRef(%s, id=%s)", ref.Specifier(), label)
	return out
}

// swagger:route PUT /loader/modules Loader loaderSet
// @Summary Bind a specifier to a module id or to another specifier's module
// @Tags Loader
// @Accept json
// @Produce json
// @Param payload body domain.SetInput true "Binding"
// @Success 200 {object} domain.SetOutput "ok"
// @Failure 404 {object} httpkit.Envelope "source not cached"
// @Router /loader/modules [put]
func (h *handlers) set(r *stdhttp.Request, in domain.SetInput) (any, error) {
	ctx := r.Context()
	target := dom.Specifier(in.Specifier)

	var ref *service.Ref
	if in.ID != nil {
		ref = service.NewResolvedRef(h.l.Backend(), target, dom.ID(*in.ID))
	} else {
		ref = h.l.Ref(dom.Specifier(in.From))
	}
	if err := h.l.Set(ctx, target, ref); err != nil {
		return nil, err
	}
	audit(r, "set", in.Specifier)
	id, _ := ref.Cached()
	return domain.SetOutput{Specifier: in.Specifier, ID: int64(id)}, nil
}

// swagger:route DELETE /loader/modules Loader loaderDrop
// @Summary Remove a cache binding
// @Tags Loader
// @Produce json
// @Param specifier query string true "specifier"
// @Success 200 {object} domain.DropOutput "ok"
// @Router /loader/modules [delete]
func (h *handlers) drop(r *stdhttp.Request) (any, error) {
	s, err := specifierParam(r)
	if err != nil {
		return nil, err
	}
	removed, err := h.l.Drop(r.Context(), s)
	if err != nil {
		return nil, err
	}
	audit(r, "drop", string(s))
	return domain.DropOutput{Specifier: string(s), Removed: removed}, nil
}

// swagger:route GET /loader/resolve Loader loaderResolve
// @Summary Resolve a specifier against an optional referrer
// @Tags Loader
// @Produce json
// @Param specifier query string true "specifier"
// @Param referrer query string false "referrer"
// @Success 200 {object} domain.ResolveOutput "ok"
// @Router /loader/resolve [get]
func (h *handlers) resolve(r *stdhttp.Request) (any, error) {
	s, err := specifierParam(r)
	if err != nil {
		return nil, err
	}
	referrer := dom.Specifier(r.URL.Query().Get("referrer"))
	out, err := h.l.Resolve(r.Context(), s, referrer)
	if err != nil {
		return nil, err
	}
	return domain.ResolveOutput{Specifier: string(s), Referrer: string(referrer), Resolved: string(out)}, nil
}

// swagger:route GET /loader/exports Loader loaderExports
// @Summary Namespace of an evaluated module, or one path within it
// @Tags Loader
// @Produce json
// @Param specifier query string true "specifier"
// @Param path query string false "gjson path"
// @Success 200 {object} domain.ExportsOutput "ok"
// @Failure 404 {object} httpkit.Envelope "not cached, not evaluated, or path missing"
// @Router /loader/exports [get]
func (h *handlers) exports(r *stdhttp.Request) (any, error) {
	s, err := specifierParam(r)
	if err != nil {
		return nil, err
	}
	ctx := r.Context()
	ref := h.l.Ref(s)
	e, err := ref.Exports(ctx)
	if err != nil {
		return nil, err
	}
	path := r.URL.Query().Get("path")
	v, ok := e.Lookup(path)
	if !ok {
		return nil, perr.NotFoundf("export path %q not found in %s", path, s)
	}
	id, _ := ref.Cached()
	return domain.ExportsOutput{Specifier: string(s), ID: int64(id), Path: path, Value: v}, nil
}

// swagger:route GET /loader/requests Loader loaderRequests
// @Summary Specifiers a module imports, in source order
// @Tags Loader
// @Produce json
// @Param specifier query string true "specifier"
// @Success 200 {object} domain.RequestsOutput "ok"
// @Router /loader/requests [get]
func (h *handlers) requests(r *stdhttp.Request) (any, error) {
	s, err := specifierParam(r)
	if err != nil {
		return nil, err
	}
	ref := h.l.Ref(s)
	xs, err := ref.Requests(r.Context())
	if err != nil {
		return nil, err
	}
	id, _ := ref.Cached()
	out := domain.RequestsOutput{Specifier: string(s), ID: int64(id), Requests: make([]string, len(xs))}
	for i, x := range xs {
		out.Requests[i] = string(x)
	}
	return out, nil
}

// swagger:route POST /loader/records Loader loaderRegister
// @Summary Register a loaded module record and bind its specifier
// @Tags Loader
// @Accept json
// @Produce json
// @Param payload body domain.RecordInput true "Record"
// @Success 200 {object} domain.RecordOutput "ok"
// @Failure 503 {object} httpkit.Envelope "backend is read only"
// @Router /loader/records [post]
func (h *handlers) register(r *stdhttp.Request, in domain.RecordInput) (any, error) {
	reg, ok := h.l.Registrar()
	if !ok {
		return nil, perr.Unavailablef("backend does not accept new records")
	}
	status := dom.Status(in.Status)
	if status == "" {
		status = dom.StatusEvaluated
	}
	exports := dom.Exports(in.Exports)
	if string(exports) == "null" {
		exports = nil
	}
	reqs := make([]dom.Specifier, len(in.Requests))
	for i, x := range in.Requests {
		reqs[i] = dom.Specifier(x)
	}
	id, err := reg.Register(r.Context(), dom.Record{
		Specifier: dom.Specifier(in.Specifier),
		Status:    status,
		Exports:   exports,
		Requests:  reqs,
	})
	if err != nil {
		return nil, err
	}
	audit(r, "register", in.Specifier)
	return domain.RecordOutput{Specifier: in.Specifier, ID: int64(id)}, nil
}

// swagger:route POST /loader/aliases Loader loaderAlias
// @Summary Bind an alias to whatever its target is bound to
// @Tags Loader
// @Accept json
// @Produce json
// @Param payload body domain.AliasInput true "Alias"
// @Success 200 {object} domain.AliasInput "ok"
// @Router /loader/aliases [post]
func (h *handlers) alias(r *stdhttp.Request, in domain.AliasInput) (any, error) {
	reg, ok := h.l.Registrar()
	if !ok {
		return nil, perr.Unavailablef("backend does not accept aliases")
	}
	if err := reg.Alias(r.Context(), dom.Specifier(in.Alias), dom.Specifier(in.Target)); err != nil {
		return nil, err
	}
	audit(r, "alias", in.Alias)
	return in, nil
}

// swagger:route GET /loader/journal Loader loaderJournal
// @Summary Recent cache mutations
// @Tags Loader
// @Produce json
// @Param specifier query string false "specifier"
// @Param limit query int false "limit (default 100, max 1000)"
// @Success 200 {array} domain.JournalRow "ok"
// @Failure 503 {object} httpkit.Envelope "journal disabled"
// @Router /loader/journal [get]
func (h *handlers) journal(r *stdhttp.Request) (any, error) {
	if h.j == nil {
		return nil, perr.Unavailablef("journal is disabled")
	}
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, perr.WithField(perr.Newf(perr.ErrorCodeValidation, "limit must be a non-negative integer"), "limit")
		}
		limit = n
	}
	evs, err := h.j.Recent(r.Context(), dom.Specifier(q.Get("specifier")), limit)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "read journal")
	}
	out := make([]domain.JournalRow, 0, len(evs))
	for _, e := range evs {
		out = append(out, domain.JournalRow{
			EventID:   e.EventID.String(),
			At:        e.At,
			Op:        e.Op,
			Specifier: string(e.Specifier),
			Target:    string(e.Target),
			ModuleID:  int64(e.ModuleID),
			OK:        e.OK,
			Error:     e.Error,
		})
	}
	return out, nil
}
