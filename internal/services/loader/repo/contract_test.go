package repo

import (
	"context"
	"testing"

	perr "modloader/internal/platform/errors"
	dom "modloader/internal/services/loader/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runBackendContract exercises behavior every Store must share
// newStore must return an empty store hiding the default prefixes
func runBackendContract(t *testing.T, newStore func(t *testing.T) dom.Store) {
	ctx := context.Background()

	t.Run("register binds and assigns fresh ids", func(t *testing.T) {
		st := newStore(t)
		a, err := st.Register(ctx, dom.Record{Specifier: "mod://a", Status: dom.StatusEvaluated})
		require.NoError(t, err)
		b, err := st.Register(ctx, dom.Record{Specifier: "mod://b", Status: dom.StatusEvaluated})
		require.NoError(t, err)
		assert.NotEqual(t, a, b)

		got, err := st.Lookup(ctx, "mod://a")
		require.NoError(t, err)
		assert.Equal(t, a, got)
	})

	t.Run("lookup of unknown specifier is NotFound", func(t *testing.T) {
		st := newStore(t)
		_, err := st.Lookup(ctx, "mod://missing")
		assert.True(t, perr.IsCode(err, perr.ErrorCodeNotFound))
	})

	t.Run("bind accepts dangling ids", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Bind(ctx, "mod://a", 7))
		id, err := st.Lookup(ctx, "mod://a")
		require.NoError(t, err)
		assert.Equal(t, dom.ID(7), id)

		_, err = st.Exports(ctx, 7)
		assert.True(t, perr.IsCode(err, perr.ErrorCodeNotFound))
	})

	t.Run("keys and entries keep insertion order across rebinds", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Bind(ctx, "mod://c", 1))
		require.NoError(t, st.Bind(ctx, "mod://a", 2))
		require.NoError(t, st.Bind(ctx, "mod://b", 3))
		require.NoError(t, st.Bind(ctx, "mod://c", 9))

		keys, err := st.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []dom.Specifier{"mod://c", "mod://a", "mod://b"}, keys)

		es, err := st.Entries(ctx)
		require.NoError(t, err)
		require.Len(t, es, 3)
		assert.Equal(t, dom.Binding{Specifier: "mod://c", ID: 9}, es[0])
	})

	t.Run("internal specifiers are hidden from enumeration", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Bind(ctx, "ext:core/ops", 1))
		require.NoError(t, st.Bind(ctx, "node:fs", 2))
		require.NoError(t, st.Bind(ctx, "mod://user", 3))

		keys, err := st.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []dom.Specifier{"mod://user"}, keys)

		es, err := st.Entries(ctx)
		require.NoError(t, err)
		assert.Len(t, es, len(keys))

		// still reachable directly
		id, err := st.Lookup(ctx, "node:fs")
		require.NoError(t, err)
		assert.Equal(t, dom.ID(2), id)
	})

	t.Run("aliases are followed", func(t *testing.T) {
		st := newStore(t)
		id, err := st.Register(ctx, dom.Record{Specifier: "mod://real", Status: dom.StatusEvaluated})
		require.NoError(t, err)
		require.NoError(t, st.Alias(ctx, "mod://short", "mod://real"))

		got, err := st.Lookup(ctx, "mod://short")
		require.NoError(t, err)
		assert.Equal(t, id, got)

		es, err := st.Entries(ctx)
		require.NoError(t, err)
		assert.Equal(t, []dom.Binding{{Specifier: "mod://real", ID: id}, {Specifier: "mod://short", ID: id}}, es)

		// rebinding the target moves the alias with it
		require.NoError(t, st.Bind(ctx, "mod://real", 42))
		got, err = st.Lookup(ctx, "mod://short")
		require.NoError(t, err)
		assert.Equal(t, dom.ID(42), got)
	})

	t.Run("dangling aliases are skipped in keys and entries", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Alias(ctx, "mod://ghost", "mod://nowhere"))
		require.NoError(t, st.Bind(ctx, "mod://a", 1))

		keys, err := st.Keys(ctx)
		require.NoError(t, err)
		es, err := st.Entries(ctx)
		require.NoError(t, err)
		assert.Equal(t, []dom.Specifier{"mod://a"}, keys)
		assert.Len(t, es, 1)

		_, err = st.Lookup(ctx, "mod://ghost")
		assert.True(t, perr.IsCode(err, perr.ErrorCodeNotFound))
	})

	t.Run("alias rejects self reference", func(t *testing.T) {
		st := newStore(t)
		err := st.Alias(ctx, "mod://a", "mod://a")
		assert.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument))
	})

	t.Run("alias cycles are a Conflict and stay out of enumeration", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Alias(ctx, "mod://a", "mod://b"))
		require.NoError(t, st.Alias(ctx, "mod://b", "mod://a"))

		_, err := st.Lookup(ctx, "mod://a")
		assert.True(t, perr.IsCode(err, perr.ErrorCodeConflict), "%v", err)

		keys, err := st.Keys(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("writes reject specifiers delete could not address", func(t *testing.T) {
		st := newStore(t)
		for _, bad := range []dom.Specifier{"", "lodash", "./rel.ts", "not a url"} {
			err := st.Bind(ctx, bad, 7)
			assert.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument), "bind %q", bad)
			assert.Equal(t, "specifier", perr.WireFrom(err).Field)

			_, err = st.Register(ctx, dom.Record{Specifier: bad, Status: dom.StatusEvaluated})
			assert.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument), "register %q", bad)

			err = st.Alias(ctx, bad, "mod://a")
			assert.Equal(t, "alias", perr.WireFrom(err).Field, "alias %q", bad)
			err = st.Alias(ctx, "mod://a", bad)
			assert.Equal(t, "target", perr.WireFrom(err).Field, "alias target %q", bad)
		}

		keys, err := st.Keys(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)

		require.NoError(t, st.Bind(ctx, "node:fs", 1))
		ok, err := st.Delete(ctx, "node:fs")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("delete reports removal and validates the specifier", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Bind(ctx, "mod://a", 1))

		ok, err := st.Delete(ctx, "mod://a")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = st.Delete(ctx, "mod://a")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = st.Delete(ctx, "not a url")
		assert.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument))
	})

	t.Run("delete leaves the record in place", func(t *testing.T) {
		st := newStore(t)
		id, err := st.Register(ctx, dom.Record{
			Specifier: "mod://a",
			Status:    dom.StatusEvaluated,
			Exports:   dom.Exports(`{"x":1}`),
		})
		require.NoError(t, err)
		_, err = st.Delete(ctx, "mod://a")
		require.NoError(t, err)

		e, err := st.Exports(ctx, id)
		require.NoError(t, err)
		assert.JSONEq(t, `{"x":1}`, string(e))
	})

	t.Run("exports require an evaluated record", func(t *testing.T) {
		st := newStore(t)
		linked, err := st.Register(ctx, dom.Record{
			Specifier: "mod://linked",
			Status:    dom.StatusLinked,
			Exports:   dom.Exports(`{"x":1}`),
		})
		require.NoError(t, err)
		_, err = st.Exports(ctx, linked)
		assert.True(t, perr.IsCode(err, perr.ErrorCodeNotFound))

		evaluated, err := st.Register(ctx, dom.Record{
			Specifier: "mod://done",
			Status:    dom.StatusEvaluated,
			Exports:   dom.Exports(`{"default":"hi"}`),
		})
		require.NoError(t, err)
		e, err := st.Exports(ctx, evaluated)
		require.NoError(t, err)
		assert.JSONEq(t, `{"default":"hi"}`, string(e))

		empty, err := st.Register(ctx, dom.Record{Specifier: "mod://empty", Status: dom.StatusEvaluated})
		require.NoError(t, err)
		e, err = st.Exports(ctx, empty)
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, string(e))
	})

	t.Run("requests keep source order for any status", func(t *testing.T) {
		st := newStore(t)
		id, err := st.Register(ctx, dom.Record{
			Specifier: "mod://app",
			Status:    dom.StatusLinked,
			Requests:  []dom.Specifier{"mod://z", "mod://a", "mod://m"},
		})
		require.NoError(t, err)

		xs, err := st.Requests(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []dom.Specifier{"mod://z", "mod://a", "mod://m"}, xs)

		none, err := st.Register(ctx, dom.Record{Specifier: "mod://leaf", Status: dom.StatusEvaluated})
		require.NoError(t, err)
		xs, err = st.Requests(ctx, none)
		require.NoError(t, err)
		assert.Empty(t, xs)

		_, err = st.Requests(ctx, 999999)
		assert.True(t, perr.IsCode(err, perr.ErrorCodeNotFound))
	})

	t.Run("register validates records", func(t *testing.T) {
		st := newStore(t)
		cases := []dom.Record{
			{Status: dom.StatusEvaluated},
			{Specifier: "mod://a"},
			{Specifier: "mod://a", Status: "pending"},
			{Specifier: "mod://a", Status: dom.StatusEvaluated, Exports: dom.Exports(`[1]`)},
		}
		for _, rec := range cases {
			_, err := st.Register(ctx, rec)
			assert.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument), "%+v", rec)
		}
	})

	t.Run("resolve joins relative specifiers", func(t *testing.T) {
		st := newStore(t)
		got, err := st.Resolve(ctx, "./dep.ts", "file:///src/main.ts")
		require.NoError(t, err)
		assert.Equal(t, dom.Specifier("file:///src/dep.ts"), got)

		got, err = st.Resolve(ctx, "mod://a", "")
		require.NoError(t, err)
		assert.Equal(t, dom.Specifier("mod://a"), got)

		_, err = st.Resolve(ctx, "lodash", "file:///src/main.ts")
		assert.True(t, perr.IsCode(err, perr.ErrorCodeInvalidArgument))
	})
}
