// Package swaggerkit serves the OpenAPI document and Swagger UI
// modules add their paths by registering a mutator from init
package swaggerkit

import (
	"encoding/json"
	"net/http"
	"sync"

	"modloader/internal/core/version"
	phttp "modloader/internal/platform/net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

// Mutator edits the document before it is served
type Mutator func(doc map[string]any)

var (
	mu       sync.Mutex
	mutators []Mutator
)

// Register adds m; nil is ignored
func Register(m Mutator) {
	if m == nil {
		return
	}
	mu.Lock()
	mutators = append(mutators, m)
	mu.Unlock()
}

// Mount serves the UI at /api/docs/ and the document at /api/docs/doc.json
func Mount(r phttp.Router, enabled bool) {
	if !enabled {
		return
	}
	r.Get("/api/docs", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/api/docs/", http.StatusPermanentRedirect)
	})
	r.Get("/api/docs/doc.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(Document())
	})
	r.Handle("/api/docs/*", httpSwagger.Handler(httpSwagger.URL("/api/docs/doc.json")))
}

// Document builds the OpenAPI 3 document from the registered mutators
// every operation gets the envelope as its default 400 and 500 response
func Document() map[string]any {
	doc := map[string]any{
		"openapi": "3.0.3",
		"info":    map[string]any{"title": "Module Loader API", "version": version.Info().Version},
		"servers": []any{map[string]any{"url": "/api/v1"}},
		"paths":   map[string]any{},
		"components": map[string]any{
			"schemas": map[string]any{"Envelope": envelopeSchema},
			"securitySchemes": map[string]any{
				"bearerAuth": map[string]any{"type": "http", "scheme": "bearer"},
			},
		},
	}

	mu.Lock()
	ms := append([]Mutator(nil), mutators...)
	mu.Unlock()
	for _, m := range ms {
		m(doc)
	}

	paths, _ := doc["paths"].(map[string]any)
	for _, node := range paths {
		ops, _ := node.(map[string]any)
		for _, op := range ops {
			o, ok := op.(map[string]any)
			if !ok {
				continue
			}
			resps, ok := o["responses"].(map[string]any)
			if !ok {
				resps = map[string]any{}
				o["responses"] = resps
			}
			for code, desc := range map[string]string{"400": "Bad Request", "500": "Internal Server Error"} {
				if _, ok := resps[code]; !ok {
					resps[code] = envelopeResponse(desc)
				}
			}
		}
	}
	return doc
}

var envelopeSchema = map[string]any{
	"type":     "object",
	"required": []any{"status_code", "status"},
	"properties": map[string]any{
		"status_code": map[string]any{"type": "integer"},
		"status":      map[string]any{"type": "string"},
		"code":        map[string]any{"type": "integer"},
		"error":       map[string]any{"type": "string"},
		"field":       map[string]any{"type": "string"},
		"request_id":  map[string]any{"type": "string"},
		"data":        map[string]any{},
	},
}

func envelopeResponse(desc string) map[string]any {
	return map[string]any{
		"description": desc,
		"content": map[string]any{
			"application/json": map[string]any{
				"schema": map[string]any{"$ref": "#/components/schemas/Envelope"},
			},
		},
	}
}
