package domain

import "context"

// Backend is the authoritative specifier to id to record store
// absence is reported as a perr NotFound error
type Backend interface {
	// Keys lists cached specifiers in insertion order, internal ones hidden
	Keys(ctx context.Context) ([]Specifier, error)
	// Entries lists cached bindings in insertion order with aliases followed
	Entries(ctx context.Context) ([]Binding, error)
	// Lookup returns the id bound to s
	Lookup(ctx context.Context, s Specifier) (ID, error)
	// Bind points s at id, replacing any previous binding
	Bind(ctx context.Context, s Specifier, id ID) error
	// Delete removes the binding for s and reports whether one existed
	Delete(ctx context.Context, s Specifier) (bool, error)
	// Exports returns the namespace of an evaluated record
	Exports(ctx context.Context, id ID) (Exports, error)
	// Requests returns the specifiers a record imports, in source order
	Requests(ctx context.Context, id ID) ([]Specifier, error)
	// Resolve maps s against referrer to a cache key
	Resolve(ctx context.Context, s, referrer Specifier) (Specifier, error)
}

// Registrar is implemented by backends that can accept new records
type Registrar interface {
	// Register stores rec under a fresh id and binds its specifier to it
	Register(ctx context.Context, rec Record) (ID, error)
	// Alias binds alias to whatever target is bound to at lookup time
	Alias(ctx context.Context, alias, target Specifier) error
}

// Store is a backend that also registers records
type Store interface {
	Backend
	Registrar
}
