package store

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"modloader/internal/platform/logger"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestSquash(t *testing.T) {
	assert.Equal(t, "SELECT module_id FROM chain WHERE module_id IS NOT NULL",
		squash("\n\tSELECT module_id\n\tFROM chain\n\tWHERE module_id IS NOT NULL"))
}

func TestSQLTracer(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Level: "debug", Format: "json", Writer: &buf})

	assert.Nil(t, newSQLTracer(PGConfig{}, log))

	tr := newSQLTracer(PGConfig{LogSQL: true, SlowQueryMs: 1}, log)
	tr.done("SELECT 1", []any{"mod://a"}, time.Now(), nil)
	assert.Equal(t, "debug", gjson.Get(buf.String(), "level").String())
	assert.Equal(t, "pg", gjson.Get(buf.String(), "component").String())
	assert.Equal(t, int64(1), gjson.Get(buf.String(), "args").Int())

	buf.Reset()
	tr.done("SELECT 1", nil, time.Now().Add(-time.Second), nil)
	assert.Equal(t, "warn", gjson.Get(buf.String(), "level").String())
	assert.True(t, gjson.Get(buf.String(), "slow").Bool())

	buf.Reset()
	tr.done("SELECT 1", nil, time.Now(), pgx.ErrNoRows)
	assert.Equal(t, "debug", gjson.Get(buf.String(), "level").String())

	buf.Reset()
	tr.done("SELECT 1", nil, time.Now(), errors.New("relation does not exist"))
	assert.Equal(t, "warn", gjson.Get(buf.String(), "level").String())
	assert.Equal(t, "relation does not exist", gjson.Get(buf.String(), "error").String())
}

func TestNilTracerIsQuiet(t *testing.T) {
	var tr *sqlTracer
	assert.NotPanics(t, func() { tr.done("SELECT 1", nil, time.Now(), nil) })
}
