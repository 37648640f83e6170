package store

import (
	"context"
	"errors"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCH_BadDSN(t *testing.T) {
	_, err := openCH(context.Background(), CHConfig{URL: "://nope"})
	assert.ErrorContains(t, err, "parse dsn")
}

func TestOpenCH_ConnectFailure(t *testing.T) {
	orig := openConn
	t.Cleanup(func() { openConn = orig })

	var seen *clickhouse.Options
	openConn = func(o *clickhouse.Options) (driver.Conn, error) {
		seen = o
		return nil, errors.New("refused")
	}

	_, err := openCH(context.Background(), CHConfig{URL: "clickhouse://localhost:9000/loader", ClientTag: "cli"})
	assert.EqualError(t, err, "refused")
	require.NotNil(t, seen)
	assert.Equal(t, "modloader", seen.ClientInfo.Products[0].Name)
	assert.Equal(t, "cli", seen.ClientInfo.Products[0].Version)
}

func TestClientInfo_Defaults(t *testing.T) {
	info := clientInfo(" ", "")
	require.Len(t, info.Products, 4)
	assert.Equal(t, "modloader", info.Products[0].Name)
	assert.Equal(t, "unknown", info.Products[0].Version)
	assert.Equal(t, "go", info.Products[1].Name)
}

func TestCHInsert_Shape(t *testing.T) {
	c := &chDB{}
	assert.ErrorContains(t, c.Insert(context.Background(), "loader_journal", []any{1}), "want [][]any")
	assert.NoError(t, c.Insert(context.Background(), "loader_journal", [][]any{}))
}
