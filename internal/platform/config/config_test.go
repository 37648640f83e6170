package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPrefixNests(t *testing.T) {
	c := New().Prefix("SERVICE_").Prefix("PGSQL_")
	assert.Equal(t, "SERVICE_PGSQL_DBURL", c.Key("DBURL"))
}

func TestMayString(t *testing.T) {
	t.Setenv("LOADER_BACKEND", "  pg ")
	t.Setenv("LOADER_EMPTY", "   ")
	c := New().Prefix("LOADER_")

	assert.Equal(t, "pg", c.MayString("BACKEND", "memory"))
	assert.Equal(t, "x", c.MayString("EMPTY", "x"))
	assert.Equal(t, "y", c.MayString("UNSET_KEY", "y"))
}

func TestTypedSettings(t *testing.T) {
	t.Setenv("T_INT", "12")
	t.Setenv("T_BAD_INT", "twelve")
	t.Setenv("T_BOOL", "true")
	t.Setenv("T_DUR", "250ms")
	t.Setenv("T_BAD_DUR", "soon")
	c := New().Prefix("T_")

	assert.Equal(t, 12, c.MayInt("INT", 4))
	assert.Equal(t, 4, c.MayInt("BAD_INT", 4))
	assert.True(t, c.MayBool("BOOL", false))
	assert.Equal(t, 250*time.Millisecond, c.MayDuration("DUR", time.Second))
	assert.Equal(t, time.Second, c.MayDuration("BAD_DUR", time.Second))
}

func TestMayCSV(t *testing.T) {
	def := []string{"ext:", "node"}
	c := New().Prefix("LOADER_")

	t.Setenv("LOADER_HIDDEN_PREFIXES", "internal:, deno: ,,")
	assert.Equal(t, []string{"internal:", "deno:"}, c.MayCSV("HIDDEN_PREFIXES", def))

	t.Setenv("LOADER_HIDDEN_PREFIXES", " , ")
	assert.Equal(t, def, c.MayCSV("HIDDEN_PREFIXES", def))
}

func TestMayEnum(t *testing.T) {
	c := New().Prefix("LOADER_")

	t.Setenv("LOADER_BACKEND", "")
	assert.Equal(t, "memory", c.MayEnum("BACKEND", "memory", "memory", "pg"))

	t.Setenv("LOADER_BACKEND", "PG")
	assert.Equal(t, "PG", c.MayEnum("BACKEND", "memory", "memory", "pg"))

	t.Setenv("LOADER_BACKEND", "redis")
	assert.Panics(t, func() { c.MayEnum("BACKEND", "memory", "memory", "pg") })
}

func TestMustString(t *testing.T) {
	c := New().Prefix("SERVICE_PGSQL_")

	t.Setenv("SERVICE_PGSQL_DBURL", "postgres://localhost/loader")
	assert.Equal(t, "postgres://localhost/loader", c.MustString("DBURL"))

	t.Setenv("SERVICE_PGSQL_DBURL", "")
	assert.Panics(t, func() { c.MustString("DBURL") })
}
