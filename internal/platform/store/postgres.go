package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"modloader/internal/platform/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultConnectRetries = 20
	defaultPingTimeout    = 3 * time.Second
	backoffStart          = 150 * time.Millisecond
	backoffCeiling        = 2 * time.Second
)

// pgxConn is what a pool and a transaction have in common
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// sqlTracer logs statements; a nil tracer logs nothing
type sqlTracer struct {
	log  logger.Logger
	slow time.Duration
}

func newSQLTracer(cfg PGConfig, log logger.Logger) *sqlTracer {
	if !cfg.LogSQL {
		return nil
	}
	return &sqlTracer{
		log:  log.With().Str("component", "pg").Logger(),
		slow: time.Duration(cfg.SlowQueryMs) * time.Millisecond,
	}
}

func (t *sqlTracer) done(sql string, args []any, start time.Time, err error) {
	if t == nil {
		return
	}
	elapsed := time.Since(start)
	failed := err != nil && !errors.Is(err, pgx.ErrNoRows)
	slow := t.slow > 0 && elapsed >= t.slow

	ev := t.log.Debug()
	if failed || slow {
		ev = t.log.Warn()
	}
	if failed {
		ev = ev.Err(err)
	}
	ev.Bool("slow", slow).
		Dur("elapsed", elapsed).
		Str("sql", squash(sql)).
		Int("args", len(args)).
		Msg("pg query")
}

// squash folds whitespace runs so multi-line statements log on one line
func squash(sql string) string { return strings.Join(strings.Fields(sql), " ") }

// querier runs statements on conn and traces them
type querier struct {
	conn pgxConn
	tr   *sqlTracer
}

func (q querier) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	start := time.Now()
	tag, err := q.conn.Exec(ctx, sql, args...)
	q.tr.done(sql, args, start, err)
	return tag, err
}

func (q querier) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	start := time.Now()
	rows, err := q.conn.Query(ctx, sql, args...)
	q.tr.done(sql, args, start, err)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (q querier) QueryRow(ctx context.Context, sql string, args ...any) Row {
	start := time.Now()
	return tracedRow{row: q.conn.QueryRow(ctx, sql, args...), done: func(err error) {
		q.tr.done(sql, args, start, err)
	}}
}

// tracedRow traces once the deferred QueryRow error is known
type tracedRow struct {
	row  pgx.Row
	done func(error)
}

func (r tracedRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	r.done(err)
	return err
}

// pgDB is the TxRunner over a pgx pool
type pgDB struct {
	querier
	pool *pgxpool.Pool
}

var _ TxRunner = (*pgDB)(nil)

// Tx runs fn in a transaction on one pooled connection
func (p *pgDB) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(querier{conn: tx, tr: p.tr}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// Ping checks the pool can reach the server
func (p *pgDB) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

// Close closes the pool
func (p *pgDB) Close() error {
	p.pool.Close()
	return nil
}

// openPG builds the pool and waits for the server with capped exponential backoff
func openPG(ctx context.Context, cfg PGConfig, log logger.Logger) (*pgDB, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	attempts := cfg.ConnectRetries
	if attempts <= 0 {
		attempts = defaultConnectRetries
	}
	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}

	backoff := backoffStart
	for i := 1; ; i++ {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		err = pool.Ping(pctx)
		cancel()
		if err == nil {
			return &pgDB{querier: querier{conn: pool, tr: newSQLTracer(cfg, log)}, pool: pool}, nil
		}
		if i >= attempts {
			break
		}
		log.Warn().Err(err).Int("attempt", i).Dur("backoff", backoff).Msg("postgres not ready")
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, backoffCeiling)
	}
	pool.Close()
	return nil, fmt.Errorf("ping failed after %d attempts: %w", attempts, err)
}
