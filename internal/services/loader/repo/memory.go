// Package repo provides the module cache backends: memory, postgres, and a clickhouse journal
package repo

import (
	"context"
	"sync"

	"modloader/internal/core/specifier"
	perr "modloader/internal/platform/errors"
	dom "modloader/internal/services/loader/domain"
)

// maxAliasDepth bounds alias chains so a cycle fails instead of spinning
const maxAliasDepth = 32

// entry is one cache slot: either a concrete id or an alias of another specifier
type entry struct {
	id    dom.ID
	alias dom.Specifier
}

func (e entry) isAlias() bool { return e.alias != "" }

// Memory is an in-process backend guarded by a RWMutex
// ids start at 1 and are never reused
type Memory struct {
	mu      sync.RWMutex
	hidden  []string
	order   []dom.Specifier
	cache   map[dom.Specifier]entry
	records map[dom.ID]dom.Record
	next    dom.ID
}

// NewMemory constructs an empty Memory backend hiding the given prefixes
func NewMemory(hidden []string) *Memory {
	return &Memory{
		hidden:  append([]string(nil), hidden...),
		cache:   map[dom.Specifier]entry{},
		records: map[dom.ID]dom.Record{},
		next:    1,
	}
}

var _ dom.Store = (*Memory)(nil)

// Keys implements domain.Backend
func (m *Memory) Keys(_ context.Context) ([]dom.Specifier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]dom.Specifier, 0, len(m.order))
	for _, s := range m.order {
		if _, ok := m.visible(s); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// Entries implements domain.Backend
func (m *Memory) Entries(_ context.Context) ([]dom.Binding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]dom.Binding, 0, len(m.order))
	for _, s := range m.order {
		if id, ok := m.visible(s); ok {
			out = append(out, dom.Binding{Specifier: s, ID: id})
		}
	}
	return out, nil
}

// visible resolves s for enumeration; hidden specifiers and dangling aliases are skipped
func (m *Memory) visible(s dom.Specifier) (dom.ID, bool) {
	if specifier.Hidden(string(s), m.hidden) {
		return 0, false
	}
	id, err := m.follow(s)
	return id, err == nil
}

// Lookup implements domain.Backend
func (m *Memory) Lookup(_ context.Context, s dom.Specifier) (dom.ID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.follow(s)
}

func (m *Memory) follow(s dom.Specifier) (dom.ID, error) {
	cur := s
	for range maxAliasDepth {
		e, ok := m.cache[cur]
		if !ok {
			return 0, perr.NotFoundf("module %q not in cache", s)
		}
		if !e.isAlias() {
			return e.id, nil
		}
		cur = e.alias
	}
	return 0, perr.Newf(perr.ErrorCodeConflict, "alias chain for %q exceeds %d hops", s, maxAliasDepth)
}

// Bind implements domain.Backend
// ids are not checked against the record table; a binding may dangle
func (m *Memory) Bind(_ context.Context, s dom.Specifier, id dom.ID) error {
	if err := checkSpecifier(s, "specifier"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(s, entry{id: id})
	return nil
}

func (m *Memory) put(s dom.Specifier, e entry) {
	if _, ok := m.cache[s]; !ok {
		m.order = append(m.order, s)
	}
	m.cache[s] = e
}

// Delete implements domain.Backend
func (m *Memory) Delete(_ context.Context, s dom.Specifier) (bool, error) {
	key, err := specifier.Parse(string(s))
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// the stored key may differ from its canonical form
	for _, k := range []dom.Specifier{s, dom.Specifier(key)} {
		if _, ok := m.cache[k]; ok {
			delete(m.cache, k)
			m.order = removeSpec(m.order, k)
			return true, nil
		}
	}
	return false, nil
}

func removeSpec(xs []dom.Specifier, s dom.Specifier) []dom.Specifier {
	for i, x := range xs {
		if x == s {
			return append(xs[:i], xs[i+1:]...)
		}
	}
	return xs
}

// Exports implements domain.Backend
func (m *Memory) Exports(_ context.Context, id dom.ID) (dom.Exports, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok || rec.Status != dom.StatusEvaluated {
		return nil, perr.NotFoundf("module %d not evaluated", id)
	}
	return rec.Exports.Clone(), nil
}

// Requests implements domain.Backend
func (m *Memory) Requests(_ context.Context, id dom.ID) ([]dom.Specifier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, perr.NotFoundf("module %d not found", id)
	}
	out := dom.CloneSpecifiers(rec.Requests)
	if out == nil {
		out = []dom.Specifier{}
	}
	return out, nil
}

// Resolve implements domain.Backend
func (m *Memory) Resolve(_ context.Context, s, referrer dom.Specifier) (dom.Specifier, error) {
	out, err := specifier.Resolve(string(s), string(referrer))
	if err != nil {
		return "", err
	}
	return dom.Specifier(out), nil
}

// Register implements domain.Registrar
func (m *Memory) Register(_ context.Context, rec dom.Record) (dom.ID, error) {
	if err := validateRecord(rec); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.next
	m.next++
	rec.ID = id
	rec.Exports = rec.Exports.Clone()
	rec.Requests = dom.CloneSpecifiers(rec.Requests)
	m.records[id] = rec
	m.put(rec.Specifier, entry{id: id})
	return id, nil
}

// Alias implements domain.Registrar
func (m *Memory) Alias(_ context.Context, alias, target dom.Specifier) error {
	if err := checkAlias(alias, target); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(alias, entry{alias: target})
	return nil
}

// Len reports the number of cache slots, hidden ones included
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cache)
}

// checkSpecifier rejects anything Delete could not address later
func checkSpecifier(s dom.Specifier, field string) error {
	if _, err := specifier.Parse(string(s)); err != nil {
		return perr.WithField(err, field)
	}
	return nil
}

func checkAlias(alias, target dom.Specifier) error {
	if err := checkSpecifier(alias, "alias"); err != nil {
		return err
	}
	if err := checkSpecifier(target, "target"); err != nil {
		return err
	}
	if alias == target {
		return perr.WithField(perr.InvalidArgf("module %q cannot alias itself", alias), "alias")
	}
	return nil
}

func validateRecord(rec dom.Record) error {
	if err := checkSpecifier(rec.Specifier, "specifier"); err != nil {
		return err
	}
	if rec.Status == "" {
		return perr.WithField(perr.InvalidArgf("status is required"), "status")
	}
	if !rec.Status.Valid() {
		return perr.WithField(perr.InvalidArgf("unknown status %q", rec.Status), "status")
	}
	if !rec.Exports.Valid() {
		return perr.WithField(perr.InvalidArgf("exports must be a JSON object"), "exports")
	}
	return nil
}
