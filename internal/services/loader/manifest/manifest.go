// Package manifest seeds a module cache from a YAML document
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	perr "modloader/internal/platform/errors"
	dom "modloader/internal/services/loader/domain"
	"modloader/internal/services/loader/service"

	"gopkg.in/yaml.v3"
)

// Manifest lists the records, aliases, and extra bindings to load
//
//	records:
//	  - specifier: mod://app
//	    status: evaluated
//	    exports: {default: hello}
//	    requests: [mod://dep]
//	aliases:
//	  - alias: mod://short
//	    target: mod://app
//	bindings:
//	  - specifier: mod://copy
//	    from: mod://app
type Manifest struct {
	Records  []Record  `yaml:"records"`
	Aliases  []Alias   `yaml:"aliases"`
	Bindings []Binding `yaml:"bindings"`
}

// Record is one module to register
type Record struct {
	Specifier string         `yaml:"specifier"`
	Status    string         `yaml:"status"`
	Exports   map[string]any `yaml:"exports"`
	Requests  []string       `yaml:"requests"`
}

// Alias binds Alias to whatever Target is bound to
type Alias struct {
	Alias  string `yaml:"alias"`
	Target string `yaml:"target"`
}

// Binding points Specifier at the record From currently resolves to
type Binding struct {
	Specifier string `yaml:"specifier"`
	From      string `yaml:"from"`
}

// Result counts what Apply wrote
type Result struct {
	Registered map[dom.Specifier]dom.ID
	Aliases    int
	Bindings   int
}

// Parse decodes a manifest; unknown fields are rejected
func Parse(r io.Reader) (Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if err == io.EOF {
			return Manifest{}, nil
		}
		return Manifest{}, perr.Wrap(err, perr.ErrorCodeValidation, "decode manifest")
	}
	return m, nil
}

// Load reads and parses the manifest at path
func Load(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Manifest{}, err
	}
	defer f.Close()
	return Parse(f)
}

// records converts the manifest records into domain records
func (m Manifest) records() ([]dom.Record, error) {
	out := make([]dom.Record, 0, len(m.Records))
	for i, r := range m.Records {
		status := dom.Status(r.Status)
		if status == "" {
			status = dom.StatusEvaluated
		}
		var exports dom.Exports
		if r.Exports != nil {
			b, err := json.Marshal(r.Exports)
			if err != nil {
				return nil, perr.Wrapf(err, perr.ErrorCodeValidation, "records[%d]: exports", i)
			}
			exports = b
		}
		reqs := make([]dom.Specifier, len(r.Requests))
		for j, s := range r.Requests {
			reqs[j] = dom.Specifier(s)
		}
		out = append(out, dom.Record{
			Specifier: dom.Specifier(r.Specifier),
			Status:    status,
			Exports:   exports,
			Requests:  reqs,
		})
	}
	return out, nil
}

// Apply registers records, then aliases, then bindings, stopping at the first failure
func Apply(ctx context.Context, l *service.Loader, m Manifest) (Result, error) {
	res := Result{Registered: map[dom.Specifier]dom.ID{}}

	recs, err := m.records()
	if err != nil {
		return res, err
	}
	reg, ok := l.Registrar()
	if !ok && (len(recs) > 0 || len(m.Aliases) > 0) {
		return res, perr.Newf(perr.ErrorCodeUnavailable, "backend does not accept new records")
	}

	for _, rec := range recs {
		id, err := reg.Register(ctx, rec)
		if err != nil {
			return res, fmt.Errorf("register %s: %w", rec.Specifier, err)
		}
		res.Registered[rec.Specifier] = id
	}
	for _, a := range m.Aliases {
		if err := reg.Alias(ctx, dom.Specifier(a.Alias), dom.Specifier(a.Target)); err != nil {
			return res, fmt.Errorf("alias %s: %w", a.Alias, err)
		}
		res.Aliases++
	}
	for _, b := range m.Bindings {
		if err := l.Set(ctx, dom.Specifier(b.Specifier), l.Ref(dom.Specifier(b.From))); err != nil {
			return res, fmt.Errorf("bind %s: %w", b.Specifier, err)
		}
		res.Bindings++
	}
	return res, nil
}
