// Package domain holds request and response shapes for the loader API
package domain

import (
	"encoding/json"
	"time"

	"modloader/internal/core/specifier"
	"modloader/internal/platform/net/http/bind"
)

func init() {
	err := bind.RegisterTag("specifier", "{0} must be an absolute module URL", func(s string) bool {
		_, err := specifier.Parse(s)
		return err == nil
	})
	if err != nil {
		panic(err)
	}
}

// KeysResponse lists cached specifiers
type KeysResponse struct {
	Keys []string `json:"keys"`
}

// EntryRow is one cache entry with its resolved id
type EntryRow struct {
	Specifier string `json:"specifier" example:"file:///src/main.ts"`
	ID        int64  `json:"id"        example:"3"`
}

// ModuleRef describes a module reference after an eager refresh
// ID is null when the specifier is not cached
type ModuleRef struct {
	Specifier string `json:"specifier" example:"file:///src/main.ts"`
	ID        *int64 `json:"id"        example:"3"`
	Cached    bool   `json:"cached"    example:"true"`
	Label     string `json:"label"     example:"ModuleRef(file:///src/main.ts, id=3)"`
}

// SetInput binds Specifier to a module id, either given directly or taken from another specifier
type SetInput struct {
	Specifier string `json:"specifier" validate:"required,specifier"`
	ID        *int64 `json:"id"        validate:"required_without=From,excluded_with=From"`
	From      string `json:"from"      validate:"required_without=ID,omitempty,specifier"`
}

// SetOutput echoes the binding that was written
type SetOutput struct {
	Specifier string `json:"specifier"`
	ID        int64  `json:"id"`
}

// DropOutput reports whether a binding was removed
type DropOutput struct {
	Specifier string `json:"specifier"`
	Removed   bool   `json:"removed"`
}

// ResolveOutput is a resolved specifier
type ResolveOutput struct {
	Specifier string `json:"specifier"`
	Referrer  string `json:"referrer,omitempty"`
	Resolved  string `json:"resolved"`
}

// ExportsOutput is a module namespace or a path within it
type ExportsOutput struct {
	Specifier string          `json:"specifier"`
	ID        int64           `json:"id"`
	Path      string          `json:"path,omitempty"`
	Value     json.RawMessage `json:"value"`
}

// RequestsOutput lists the specifiers a module imports
type RequestsOutput struct {
	Specifier string   `json:"specifier"`
	ID        int64    `json:"id"`
	Requests  []string `json:"requests"`
}

// RecordInput registers a loaded module record
type RecordInput struct {
	Specifier string          `json:"specifier" validate:"required,specifier"`
	Status    string          `json:"status"    validate:"omitempty,oneof=linked evaluated errored"`
	Exports   json.RawMessage `json:"exports"`
	Requests  []string        `json:"requests"  validate:"dive,required"`
}

// RecordOutput is the id assigned to a registered record
type RecordOutput struct {
	Specifier string `json:"specifier"`
	ID        int64  `json:"id"`
}

// AliasInput binds Alias to whatever Target is bound to
type AliasInput struct {
	Alias  string `json:"alias"  validate:"required,specifier,nefield=Target"`
	Target string `json:"target" validate:"required,specifier"`
}

// JournalRow is one recorded cache mutation
type JournalRow struct {
	EventID   string    `json:"event_id"`
	At        time.Time `json:"at"`
	Op        string    `json:"op"`
	Specifier string    `json:"specifier"`
	Target    string    `json:"target,omitempty"`
	ModuleID  int64     `json:"module_id,omitempty"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
}
