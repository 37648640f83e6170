// Package domain defines the types and interfaces for the module loader
package domain

import (
	"encoding/json"
	"strconv"

	"github.com/tidwall/gjson"
)

// Specifier is the import string a module is cached under
type Specifier string

// ID is the identity the backend assigns to a module record
type ID int64

// String renders the id as a decimal
func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

// Status is the lifecycle state of a module record
type Status string

// Record statuses, in lifecycle order
const (
	StatusLinked    Status = "linked"
	StatusEvaluated Status = "evaluated"
	StatusErrored   Status = "errored"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusLinked, StatusEvaluated, StatusErrored:
		return true
	}
	return false
}

// Binding is one cache entry with aliases already followed
type Binding struct {
	Specifier Specifier
	ID        ID
}

// Record is a loaded module as the backend stores it
type Record struct {
	ID        ID
	Specifier Specifier
	Exports   Exports
	Requests  []Specifier
	Status    Status
}

// Exports is the namespace object of an evaluated module, kept as raw JSON
type Exports json.RawMessage

// MarshalJSON emits the raw namespace, or {} when empty
func (e Exports) MarshalJSON() ([]byte, error) {
	if len(e) == 0 {
		return []byte("{}"), nil
	}
	return e, nil
}

// UnmarshalJSON keeps a copy of the raw namespace
func (e *Exports) UnmarshalJSON(b []byte) error {
	*e = append((*e)[:0], b...)
	return nil
}

// Valid reports whether the namespace is empty or a JSON object
func (e Exports) Valid() bool {
	if len(e) == 0 {
		return true
	}
	return gjson.ValidBytes(e) && gjson.ParseBytes(e).IsObject()
}

// Names lists the top level export names in document order
func (e Exports) Names() []string {
	var out []string
	gjson.ParseBytes(e).ForEach(func(k, _ gjson.Result) bool {
		out = append(out, k.String())
		return true
	})
	return out
}

// Lookup returns the raw JSON at a gjson path and whether it exists
// an empty path returns the whole namespace
func (e Exports) Lookup(path string) (json.RawMessage, bool) {
	if path == "" {
		b, _ := e.MarshalJSON()
		return b, true
	}
	r := gjson.GetBytes(e, path)
	if !r.Exists() {
		return nil, false
	}
	return json.RawMessage(r.Raw), true
}

// Clone returns an independent copy
func (e Exports) Clone() Exports {
	if e == nil {
		return nil
	}
	return append(Exports(nil), e...)
}

// CloneSpecifiers copies a request list so callers cannot alias backend state
func CloneSpecifiers(xs []Specifier) []Specifier {
	if xs == nil {
		return nil
	}
	return append([]Specifier(nil), xs...)
}
