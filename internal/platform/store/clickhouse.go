package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// chDB is the Clickhouse seam over a native connection
type chDB struct {
	conn driver.Conn
}

var _ Clickhouse = (*chDB)(nil)

// openConn is swapped in tests
var openConn = clickhouse.Open

func openCH(ctx context.Context, cfg CHConfig) (*chDB, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("empty dsn")
	}
	opts, err := clickhouse.ParseDSN(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	opts.ClientInfo = clientInfo(cfg.ClientName, cfg.ClientTag)

	conn, err := openConn(opts)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &chDB{conn: conn}, nil
}

// clientInfo names this process in system.query_log
func clientInfo(name, tag string) clickhouse.ClientInfo {
	host, _ := os.Hostname()
	type product = struct{ Name, Version string }
	return clickhouse.ClientInfo{Products: []product{
		{Name: or(name, "modloader"), Version: or(tag, "unknown")},
		{Name: "go", Version: runtime.Version()},
		{Name: "commit", Version: revision()},
		{Name: "host", Version: or(host, "unknown")},
	}}
}

func revision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return s.Value[:7]
		}
	}
	return "unknown"
}

func or(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

// Insert sends data, a [][]any in column order, as one batch
func (c *chDB) Insert(ctx context.Context, table string, data any) error {
	rows, ok := data.([][]any)
	if !ok {
		return fmt.Errorf("clickhouse insert into %s: want [][]any, got %T", table, data)
	}
	if len(rows) == 0 {
		return nil
	}
	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO "+table)
	if err != nil {
		return fmt.Errorf("prepare %s: %w", table, err)
	}
	for _, r := range rows {
		if err := batch.Append(r...); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append %s: %w", table, err)
		}
	}
	return batch.Send()
}

func (c *chDB) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return chRows{rows}, nil
}

func (c *chDB) Exec(ctx context.Context, sql string, args ...any) error {
	return c.conn.Exec(ctx, sql, args...)
}

func (c *chDB) Ping(ctx context.Context) error { return c.conn.Ping(ctx) }

func (c *chDB) Close() error { return c.conn.Close() }

// chRows drops the error from driver.Rows.Close
type chRows struct{ driver.Rows }

func (r chRows) Close() { _ = r.Rows.Close() }
