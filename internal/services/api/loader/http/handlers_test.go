package http

import (
	"context"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"modloader/internal/core/specifier"
	perr "modloader/internal/platform/errors"
	phttp "modloader/internal/platform/net/http"
	dom "modloader/internal/services/loader/domain"
	"modloader/internal/services/loader/repo"
	"modloader/internal/services/loader/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const mainTS = "file:///src/main.ts"

type fixture struct {
	srv *httptest.Server
	mem *repo.Memory
}

func newFixture(t *testing.T, d Deps) *fixture {
	t.Helper()
	mem := repo.NewMemory(specifier.DefaultHidden)
	if d.Loader == nil {
		d.Loader = service.New(mem)
	}
	r := phttp.AdaptChi(chi.NewRouter())
	Register(r, d)
	srv := httptest.NewServer(r.Mux())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, mem: mem}
}

func (f *fixture) do(t *testing.T, method, path string, q url.Values, body string) (int, gjson.Result) {
	t.Helper()
	u := f.srv.URL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := stdhttp.NewRequest(method, u, rdr)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, gjson.ParseBytes(b)
}

func spec(s string) url.Values { return url.Values{"specifier": {s}} }

func (f *fixture) register(t *testing.T, s string, status dom.Status, exports string, reqs ...dom.Specifier) dom.ID {
	t.Helper()
	id, err := f.mem.Register(context.Background(), dom.Record{
		Specifier: dom.Specifier(s),
		Status:    status,
		Exports:   dom.Exports(exports),
		Requests:  reqs,
	})
	require.NoError(t, err)
	return id
}

func TestKeysAndEntries(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Deps{})
	f.register(t, mainTS, dom.StatusEvaluated, `{}`)
	f.register(t, "ext:console", dom.StatusEvaluated, `{}`)
	id := f.register(t, "https://deno.land/std/path.ts", dom.StatusLinked, "")

	code, body := f.do(t, "GET", "/keys", nil, "")
	require.Equal(t, 200, code)
	assert.Equal(t, []string{mainTS, "https://deno.land/std/path.ts"}, strs(body.Get("data.keys")))

	code, body = f.do(t, "GET", "/entries", nil, "")
	require.Equal(t, 200, code)
	rows := body.Get("data").Array()
	require.Len(t, rows, 2)
	assert.Equal(t, "https://deno.land/std/path.ts", rows[1].Get("specifier").String())
	assert.Equal(t, int64(id), rows[1].Get("id").Int())
}

func strs(r gjson.Result) []string {
	out := []string{}
	for _, x := range r.Array() {
		out = append(out, x.String())
	}
	return out
}

func TestGetModule(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Deps{})
	id := f.register(t, mainTS, dom.StatusEvaluated, `{}`)

	code, body := f.do(t, "GET", "/modules", spec(mainTS), "")
	require.Equal(t, 200, code)
	assert.True(t, body.Get("data.cached").Bool())
	assert.Equal(t, int64(id), body.Get("data.id").Int())
	assert.Equal(t, "ModuleRef(file:///src/main.ts, id=1)", body.Get("data.label").String())

	code, body = f.do(t, "GET", "/modules", spec("file:///missing.ts"), "")
	require.Equal(t, 200, code)
	assert.False(t, body.Get("data.cached").Bool())
	assert.Equal(t, gjson.Null, body.Get("data.id").Type)
	assert.Equal(t, "ModuleRef(file:///missing.ts, id=?)", body.Get("data.label").String())

	code, _ = f.do(t, "GET", "/modules", nil, "")
	assert.Equal(t, 400, code)
}

func TestSetModule_ByID(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Deps{})
	id := f.register(t, mainTS, dom.StatusEvaluated, `{}`)

	code, body := f.do(t, "PUT", "/modules", nil, `{"specifier":"file:///copy.ts","id":1}`)
	require.Equal(t, 200, code, body.Raw)
	assert.Equal(t, int64(id), body.Get("data.id").Int())

	got, err := f.mem.Lookup(context.Background(), "file:///copy.ts")
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestSetModule_FromSpecifier(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Deps{})
	id := f.register(t, mainTS, dom.StatusEvaluated, `{}`)

	code, body := f.do(t, "PUT", "/modules", nil, `{"specifier":"file:///copy.ts","from":"`+mainTS+`"}`)
	require.Equal(t, 200, code, body.Raw)
	assert.Equal(t, int64(id), body.Get("data.id").Int())

	code, body = f.do(t, "PUT", "/modules", nil, `{"specifier":"file:///other.ts","from":"file:///missing.ts"}`)
	assert.Equal(t, 404, code)
	assert.Equal(t, int64(404), body.Get("status_code").Int())

	keys, err := f.mem.Keys(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, keys, dom.Specifier("file:///other.ts"))
}

// countingBackend fails the test on any call but Lookup
type countingBackend struct {
	dom.Backend
	lookups int
}

func (c *countingBackend) Lookup(context.Context, dom.Specifier) (dom.ID, error) {
	c.lookups++
	return 0, perr.NotFoundf("not cached")
}

func TestToModuleRef_UsesCachedStateOnly(t *testing.T) {
	t.Parallel()
	b := &countingBackend{}

	miss := toModuleRef(service.NewRef(b, "file:///missing.ts"))
	assert.Equal(t, "ModuleRef(file:///missing.ts, id=?)", miss.Label)
	assert.False(t, miss.Cached)
	assert.Nil(t, miss.ID)

	hit := toModuleRef(service.NewResolvedRef(b, mainTS, 4))
	assert.Equal(t, "ModuleRef(file:///src/main.ts, id=4)", hit.Label)
	require.NotNil(t, hit.ID)
	assert.Equal(t, int64(4), *hit.ID)

	assert.Zero(t, b.lookups)
}

func TestSetModule_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Deps{})

	cases := map[string]string{
		"neither id nor from": `{"specifier":"file:///a.ts"}`,
		"both id and from":    `{"specifier":"file:///a.ts","id":1,"from":"file:///b.ts"}`,
		"missing specifier":   `{"id":1}`,
		"unknown field":       `{"specifier":"file:///a.ts","id":1,"extra":true}`,
		"bare specifier":      `{"specifier":"lodash","id":1}`,
		"bare from":           `{"specifier":"file:///a.ts","from":"lodash"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			code, _ := f.do(t, "PUT", "/modules", nil, body)
			assert.Equal(t, 400, code)
		})
	}
}

func TestDropModule(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Deps{})
	f.register(t, mainTS, dom.StatusEvaluated, `{}`)

	code, body := f.do(t, "DELETE", "/modules", spec(mainTS), "")
	require.Equal(t, 200, code)
	assert.True(t, body.Get("data.removed").Bool())

	code, body = f.do(t, "DELETE", "/modules", spec(mainTS), "")
	require.Equal(t, 200, code)
	assert.False(t, body.Get("data.removed").Bool())

	code, _ = f.do(t, "DELETE", "/modules", spec("not a url"), "")
	assert.Equal(t, 422, code)
}

func TestResolve(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Deps{})

	q := url.Values{"specifier": {"./util.ts"}, "referrer": {mainTS}}
	code, body := f.do(t, "GET", "/resolve", q, "")
	require.Equal(t, 200, code)
	assert.Equal(t, "file:///src/util.ts", body.Get("data.resolved").String())

	code, body = f.do(t, "GET", "/resolve", spec("lodash"), "")
	assert.Equal(t, 422, code)
	assert.Contains(t, body.Get("error").String(), "not prefixed with / or ./ or ../")
}

func TestExports(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Deps{})
	f.register(t, mainTS, dom.StatusEvaluated, `{"default":{"name":"app"},"version":3}`)
	f.register(t, "file:///linked.ts", dom.StatusLinked, "")

	code, body := f.do(t, "GET", "/exports", spec(mainTS), "")
	require.Equal(t, 200, code)
	assert.Equal(t, int64(3), body.Get("data.value.version").Int())

	q := spec(mainTS)
	q.Set("path", "default.name")
	code, body = f.do(t, "GET", "/exports", q, "")
	require.Equal(t, 200, code)
	assert.Equal(t, "app", body.Get("data.value").String())

	q.Set("path", "nope")
	code, _ = f.do(t, "GET", "/exports", q, "")
	assert.Equal(t, 404, code)

	code, _ = f.do(t, "GET", "/exports", spec("file:///linked.ts"), "")
	assert.Equal(t, 404, code)

	code, _ = f.do(t, "GET", "/exports", spec("file:///missing.ts"), "")
	assert.Equal(t, 404, code)
}

func TestRequests(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Deps{})
	f.register(t, mainTS, dom.StatusEvaluated, `{}`, "./a.ts", "https://deno.land/std/path.ts")
	f.register(t, "file:///leaf.ts", dom.StatusEvaluated, `{}`)

	code, body := f.do(t, "GET", "/requests", spec(mainTS), "")
	require.Equal(t, 200, code)
	assert.Equal(t, []string{"./a.ts", "https://deno.land/std/path.ts"}, strs(body.Get("data.requests")))

	code, body = f.do(t, "GET", "/requests", spec("file:///leaf.ts"), "")
	require.Equal(t, 200, code)
	assert.True(t, body.Get("data.requests").IsArray())
	assert.Empty(t, body.Get("data.requests").Array())
}

func TestRegisterAndAlias(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Deps{})

	code, body := f.do(t, "POST", "/records", nil,
		`{"specifier":"`+mainTS+`","exports":{"x":1},"requests":["./dep.ts"]}`)
	require.Equal(t, 200, code, body.Raw)
	id := body.Get("data.id").Int()
	assert.Equal(t, int64(1), id)

	code, body = f.do(t, "POST", "/aliases", nil, `{"alias":"file:///alias.ts","target":"`+mainTS+`"}`)
	require.Equal(t, 200, code, body.Raw)

	code, body = f.do(t, "GET", "/modules", spec("file:///alias.ts"), "")
	require.Equal(t, 200, code)
	assert.Equal(t, id, body.Get("data.id").Int())

	code, _ = f.do(t, "POST", "/aliases", nil, `{"alias":"file:///same.ts","target":"file:///same.ts"}`)
	assert.Equal(t, 400, code)

	code, _ = f.do(t, "POST", "/records", nil, `{"specifier":"file:///bad.ts","status":"running"}`)
	assert.Equal(t, 400, code)

	code, body = f.do(t, "POST", "/aliases", nil, `{"alias":"short","target":"`+mainTS+`"}`)
	assert.Equal(t, 400, code)
	assert.Equal(t, "alias", body.Get("field").String())

	code, body = f.do(t, "POST", "/records", nil, `{"specifier":"lodash"}`)
	assert.Equal(t, 400, code)
	assert.Equal(t, "specifier", body.Get("field").String())

	code, _ = f.do(t, "POST", "/records", nil, `{"specifier":"file:///arr.ts","exports":[1,2]}`)
	assert.Equal(t, 422, code)
}

type readOnly struct{ dom.Backend }

func TestRegister_ReadOnlyBackend(t *testing.T) {
	t.Parallel()
	l := service.New(readOnly{repo.NewMemory(nil)})
	f := newFixture(t, Deps{Loader: l})

	code, _ := f.do(t, "POST", "/records", nil, `{"specifier":"`+mainTS+`"}`)
	assert.Equal(t, 503, code)
	code, _ = f.do(t, "POST", "/aliases", nil, `{"alias":"file:///a.ts","target":"file:///b.ts"}`)
	assert.Equal(t, 503, code)
}

type fakeJournal struct {
	gotSpec  dom.Specifier
	gotLimit int
	events   []repo.Event
}

func (j *fakeJournal) Recent(_ context.Context, s dom.Specifier, limit int) ([]repo.Event, error) {
	j.gotSpec, j.gotLimit = s, limit
	return j.events, nil
}

func TestJournal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Deps{})
	code, _ := f.do(t, "GET", "/journal", nil, "")
	assert.Equal(t, 503, code)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	j := &fakeJournal{events: []repo.Event{{
		EventID:   uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2"),
		At:        at,
		Op:        repo.OpBind,
		Specifier: mainTS,
		ModuleID:  4,
		OK:        true,
	}}}
	f = newFixture(t, Deps{Journal: j})

	q := spec(mainTS)
	q.Set("limit", "5")
	code, body := f.do(t, "GET", "/journal", q, "")
	require.Equal(t, 200, code, body.Raw)
	assert.Equal(t, dom.Specifier(mainTS), j.gotSpec)
	assert.Equal(t, 5, j.gotLimit)
	rows := body.Get("data").Array()
	require.Len(t, rows, 1)
	assert.Equal(t, "bind", rows[0].Get("op").String())
	assert.Equal(t, int64(4), rows[0].Get("module_id").Int())

	q.Set("limit", "-1")
	code, _ = f.do(t, "GET", "/journal", q, "")
	assert.Equal(t, 400, code)
}
