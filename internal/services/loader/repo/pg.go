package repo

import (
	"context"
	"errors"
	"fmt"

	"modloader/internal/core/specifier"
	"modloader/internal/modkit/repokit"
	perr "modloader/internal/platform/errors"
	"modloader/internal/platform/store"
	dom "modloader/internal/services/loader/domain"

	"github.com/jackc/pgx/v5"
)

// Schema creates the record table and the specifier cache
// position keeps insertion order across rebinds
const Schema = `
CREATE TABLE IF NOT EXISTS loader_records (
	id         bigserial PRIMARY KEY,
	specifier  text        NOT NULL,
	exports    jsonb       NOT NULL DEFAULT '{}'::jsonb,
	requests   text[]      NOT NULL DEFAULT '{}',
	status     text        NOT NULL CHECK (status IN ('linked', 'evaluated', 'errored')),
	created_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS loader_cache (
	specifier text PRIMARY KEY,
	module_id bigint,
	alias_of  text,
	position  bigserial,
	CHECK ((module_id IS NULL) <> (alias_of IS NULL))
);

CREATE INDEX IF NOT EXISTS loader_cache_position_idx ON loader_cache (position);
`

// entriesSQL follows every alias chain and keeps rows that land on an id
const entriesSQL = `
WITH RECURSIVE chain (root, position, next_alias, module_id, depth) AS (
	SELECT specifier, position, alias_of, module_id, 0
	FROM loader_cache
	UNION ALL
	SELECT ch.root, ch.position, c.alias_of, c.module_id, ch.depth + 1
	FROM chain ch
	JOIN loader_cache c ON c.specifier = ch.next_alias
	WHERE ch.module_id IS NULL AND ch.depth < $1
)
SELECT root, module_id
FROM chain
WHERE module_id IS NOT NULL
ORDER BY position`

// lookupSQL returns the last link of the chain starting at $1
// a last link still pointing at an alias at depth $2 means the chain is too long or cyclic
const lookupSQL = `
WITH RECURSIVE chain (next_alias, module_id, depth) AS (
	SELECT alias_of, module_id, 0
	FROM loader_cache
	WHERE specifier = $1
	UNION ALL
	SELECT c.alias_of, c.module_id, ch.depth + 1
	FROM chain ch
	JOIN loader_cache c ON c.specifier = ch.next_alias
	WHERE ch.module_id IS NULL AND ch.depth < $2
)
SELECT module_id, next_alias, depth FROM chain ORDER BY depth DESC LIMIT 1`

// aliasHops is the deepest chain index the sql walks; maxAliasDepth links in total
const aliasHops = maxAliasDepth - 1

const bindSQL = `
INSERT INTO loader_cache (specifier, module_id, alias_of)
VALUES ($1, $2, NULL)
ON CONFLICT (specifier) DO UPDATE
SET module_id = EXCLUDED.module_id, alias_of = NULL`

const aliasSQL = `
INSERT INTO loader_cache (specifier, module_id, alias_of)
VALUES ($1, NULL, $2)
ON CONFLICT (specifier) DO UPDATE
SET module_id = NULL, alias_of = EXCLUDED.alias_of`

// registerLockSQL serializes record registration across connections
const registerLockSQL = `SELECT pg_advisory_xact_lock(hashtext('loader_records'))`

type (
	sqlStore struct{ q repokit.Queryer }
	binder   struct{}
)

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) *sqlStore { return &sqlStore{q: q} }

var _ repokit.Binder[*sqlStore] = binder{}

// PG is a Postgres backed store
type PG struct {
	db     repokit.TxRunner
	reg    repokit.TxRunner
	bind   repokit.Binder[*sqlStore]
	hidden []string
}

// NewPG constructs a Postgres backend over db hiding the given prefixes
func NewPG(db repokit.TxRunner, hidden []string) *PG {
	return &PG{
		db:     db,
		reg:    repokit.WithBeginHooks(db, lockRegistry),
		bind:   binder{},
		hidden: append([]string(nil), hidden...),
	}
}

var _ dom.Store = (*PG)(nil)

// EnsureSchema creates the loader tables when missing
func (p *PG) EnsureSchema(ctx context.Context) error {
	_, err := p.db.Exec(ctx, Schema)
	return perr.FromPostgres(err, "create loader schema")
}

func lockRegistry(ctx context.Context, q repokit.Queryer) error {
	_, err := q.Exec(ctx, registerLockSQL)
	return perr.FromPostgres(err, "lock loader records")
}

func (p *PG) store() *sqlStore { return repokit.MustBind(p.bind, p.db) }

// Keys implements domain.Backend
func (p *PG) Keys(ctx context.Context) ([]dom.Specifier, error) {
	bs, err := p.Entries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dom.Specifier, 0, len(bs))
	for _, b := range bs {
		out = append(out, b.Specifier)
	}
	return out, nil
}

// Entries implements domain.Backend
func (p *PG) Entries(ctx context.Context) ([]dom.Binding, error) {
	all, err := p.store().entries(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, b := range all {
		if !specifier.Hidden(string(b.Specifier), p.hidden) {
			out = append(out, b)
		}
	}
	return out, nil
}

// Lookup implements domain.Backend
func (p *PG) Lookup(ctx context.Context, s dom.Specifier) (dom.ID, error) {
	return p.store().lookup(ctx, s)
}

// Bind implements domain.Backend
func (p *PG) Bind(ctx context.Context, s dom.Specifier, id dom.ID) error {
	if err := checkSpecifier(s, "specifier"); err != nil {
		return err
	}
	_, err := p.db.Exec(ctx, bindSQL, string(s), int64(id))
	return perr.FromPostgresf(err, "bind %q", s)
}

// Delete implements domain.Backend
func (p *PG) Delete(ctx context.Context, s dom.Specifier) (bool, error) {
	key, err := specifier.Parse(string(s))
	if err != nil {
		return false, err
	}
	tag, err := p.db.Exec(ctx,
		`DELETE FROM loader_cache WHERE specifier = ANY($1)`,
		[]string{string(s), key})
	if err != nil {
		return false, perr.FromPostgresf(err, "delete %q", s)
	}
	return tag.RowsAffected() > 0, nil
}

// Exports implements domain.Backend
func (p *PG) Exports(ctx context.Context, id dom.ID) (dom.Exports, error) {
	rec, err := store.One(ctx, p.db, scanExports,
		`SELECT exports, status FROM loader_records WHERE id = $1`, int64(id))
	if perr.IsCode(err, perr.ErrorCodeNotFound) || (err == nil && rec.Status != dom.StatusEvaluated) {
		return nil, perr.NotFoundf("module %d not evaluated", id)
	}
	if err != nil {
		return nil, perr.FromPostgresf(err, "exports of module %d", id)
	}
	return rec.Exports, nil
}

func scanExports(r store.Row) (dom.Record, error) {
	var (
		raw    []byte
		status string
	)
	err := r.Scan(&raw, &status)
	return dom.Record{Exports: dom.Exports(raw), Status: dom.Status(status)}, err
}

// Requests implements domain.Backend
func (p *PG) Requests(ctx context.Context, id dom.ID) ([]dom.Specifier, error) {
	xs, err := store.Scalar[[]string](ctx, p.db,
		`SELECT requests FROM loader_records WHERE id = $1`, int64(id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, perr.NotFoundf("module %d not found", id)
	}
	if err != nil {
		return nil, perr.FromPostgresf(err, "requests of module %d", id)
	}
	out := make([]dom.Specifier, len(xs))
	for i, x := range xs {
		out[i] = dom.Specifier(x)
	}
	return out, nil
}

// Resolve implements domain.Backend
func (p *PG) Resolve(_ context.Context, s, referrer dom.Specifier) (dom.Specifier, error) {
	out, err := specifier.Resolve(string(s), string(referrer))
	if err != nil {
		return "", err
	}
	return dom.Specifier(out), nil
}

// Register implements domain.Registrar
func (p *PG) Register(ctx context.Context, rec dom.Record) (dom.ID, error) {
	if err := validateRecord(rec); err != nil {
		return 0, err
	}
	var id dom.ID
	err := repokit.WithTx(ctx, p.reg, func(q repokit.Queryer) error {
		var err error
		id, err = p.bind.Bind(q).insertRecord(ctx, rec)
		if err != nil {
			return err
		}
		_, err = q.Exec(ctx, bindSQL, string(rec.Specifier), int64(id))
		return perr.FromPostgresf(err, "bind %q", rec.Specifier)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Alias implements domain.Registrar
func (p *PG) Alias(ctx context.Context, alias, target dom.Specifier) error {
	if err := checkAlias(alias, target); err != nil {
		return err
	}
	_, err := p.db.Exec(ctx, aliasSQL, string(alias), string(target))
	return perr.FromPostgresf(err, "alias %q to %q", alias, target)
}

func (s *sqlStore) entries(ctx context.Context) ([]dom.Binding, error) {
	out, err := store.Many(ctx, s.q, scanBinding, entriesSQL, aliasHops)
	return out, perr.FromPostgres(err, "list loader cache")
}

func scanBinding(r store.Row) (dom.Binding, error) {
	var (
		spec string
		id   int64
	)
	if err := r.Scan(&spec, &id); err != nil {
		return dom.Binding{}, err
	}
	return dom.Binding{Specifier: dom.Specifier(spec), ID: dom.ID(id)}, nil
}

// chainEnd is the last link lookupSQL reached
type chainEnd struct {
	moduleID  *int64
	nextAlias *string
	depth     int
}

func scanChainEnd(r store.Row) (chainEnd, error) {
	var c chainEnd
	err := r.Scan(&c.moduleID, &c.nextAlias, &c.depth)
	return c, err
}

func (s *sqlStore) lookup(ctx context.Context, sp dom.Specifier) (dom.ID, error) {
	end, err := store.One(ctx, s.q, scanChainEnd, lookupSQL, string(sp), aliasHops)
	switch {
	case perr.IsCode(err, perr.ErrorCodeNotFound):
		return 0, perr.NotFoundf("module %q not in cache", sp)
	case err != nil:
		return 0, perr.FromPostgresf(err, "lookup %q", sp)
	case end.moduleID != nil:
		return dom.ID(*end.moduleID), nil
	case end.nextAlias != nil && end.depth >= aliasHops:
		return 0, perr.Conflictf("alias chain for %q exceeds %d hops", sp, maxAliasDepth)
	}
	return 0, perr.NotFoundf("module %q not in cache", sp)
}

func (s *sqlStore) insertRecord(ctx context.Context, rec dom.Record) (dom.ID, error) {
	reqs := make([]string, len(rec.Requests))
	for i, r := range rec.Requests {
		reqs[i] = string(r)
	}
	exports, _ := rec.Exports.MarshalJSON()

	var id int64
	err := s.q.QueryRow(ctx, `
		INSERT INTO loader_records (specifier, exports, requests, status)
		VALUES ($1, $2::jsonb, $3, $4)
		RETURNING id`,
		string(rec.Specifier), string(exports), reqs, string(rec.Status),
	).Scan(&id)
	if err != nil {
		return 0, perr.FromPostgresf(err, "insert record %q", rec.Specifier)
	}
	return dom.ID(id), nil
}

// String names the backend in logs
func (p *PG) String() string { return fmt.Sprintf("pg(hidden=%v)", p.hidden) }
