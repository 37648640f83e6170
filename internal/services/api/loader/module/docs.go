package module

import "modloader/internal/modkit/swaggerkit"

func init() { swaggerkit.Register(addPaths) }

type docOp struct {
	method  string
	path    string
	summary string
	query   []string
	body    bool
	secured bool
}

var docOps = []docOp{
	{method: "get", path: "/keys", summary: "Cached specifiers in insertion order"},
	{method: "get", path: "/entries", summary: "Cache snapshot with resolved ids"},
	{method: "get", path: "/modules", summary: "Module reference for a specifier", query: []string{"specifier"}},
	{method: "put", path: "/modules", summary: "Bind a specifier to a module id or another specifier's module", body: true, secured: true},
	{method: "delete", path: "/modules", summary: "Remove a cache binding", query: []string{"specifier"}, secured: true},
	{method: "get", path: "/resolve", summary: "Resolve a specifier against an optional referrer", query: []string{"specifier", "referrer"}},
	{method: "get", path: "/exports", summary: "Namespace of an evaluated module", query: []string{"specifier", "path"}},
	{method: "get", path: "/requests", summary: "Specifiers a module imports", query: []string{"specifier"}},
	{method: "post", path: "/records", summary: "Register a loaded module record", body: true, secured: true},
	{method: "post", path: "/aliases", summary: "Bind an alias to its target's module", body: true, secured: true},
	{method: "get", path: "/journal", summary: "Recent cache mutations", query: []string{"specifier", "limit"}},
}

// addPaths documents the loader routes under /loader
func addPaths(spec map[string]any) {
	paths, ok := spec["paths"].(map[string]any)
	if !ok {
		paths = map[string]any{}
		spec["paths"] = paths
	}
	for _, op := range docOps {
		key := "/loader" + op.path
		node, ok := paths[key].(map[string]any)
		if !ok {
			node = map[string]any{}
			paths[key] = node
		}
		node[op.method] = op.render()
	}
}

func (o docOp) render() map[string]any {
	out := map[string]any{
		"tags":    []any{"Loader"},
		"summary": o.summary,
		"responses": map[string]any{
			"200": map[string]any{"description": "ok"},
		},
	}
	if len(o.query) > 0 {
		params := make([]any, 0, len(o.query))
		for _, q := range o.query {
			params = append(params, map[string]any{
				"name":     q,
				"in":       "query",
				"required": q == "specifier" && o.path != "/journal",
				"schema":   map[string]any{"type": "string"},
			})
		}
		out["parameters"] = params
	}
	if o.body {
		out["requestBody"] = map[string]any{
			"required": true,
			"content":  map[string]any{"application/json": map[string]any{"schema": map[string]any{"type": "object"}}},
		}
	}
	if o.secured {
		out["security"] = []any{map[string]any{"bearerAuth": []any{}}}
	}
	return out
}
