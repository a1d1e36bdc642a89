package engine

import (
	"slices"
	"strings"
	"sync"
)

// Registry stores clause lists keyed by (kind, name).
//
// INVARIANTS:
//   - Clause lists are append-only; registration order is resolution order.
//   - A name is bound to at most one kind.
//   - A lookup of an unregistered name is an error, never an empty list.
//
// Lifecycle: create with NewRegistry at startup, populate with Register,
// then optionally Freeze so the registry is read-only while resolving.
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	kinds   map[string]Kind
	clauses map[registryKey][]Clause
	frozen  bool
}

type registryKey struct {
	kind Kind
	name string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		kinds:   make(map[string]Kind),
		clauses: make(map[registryKey][]Clause),
	}
}

// Register appends clause to the list for (kind, name), creating the list
// if absent.
//
// Fails with KIND_CONFLICT if name is already registered under a different
// kind, INVALID_CLAUSE if the clause body does not fit kind, and
// REGISTRY_FROZEN after Freeze.
func (r *Registry) Register(kind Kind, name string, clause Clause) (ClauseHandle, error) {
	if err := validateClause(kind, name, clause); err != nil {
		return ClauseHandle{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ClauseHandle{}, &RegistryError{
			Code:    ErrCodeRegistryFrozen,
			Name:    name,
			Kind:    kind,
			Message: "registry is frozen",
		}
	}

	if existing, ok := r.kinds[name]; ok && existing != kind {
		return ClauseHandle{}, &RegistryError{
			Code:     ErrCodeKindConflict,
			Name:     name,
			Kind:     kind,
			Existing: existing,
		}
	}

	key := registryKey{kind: kind, name: name}
	r.kinds[name] = kind
	r.clauses[key] = append(r.clauses[key], clause)

	return ClauseHandle{Kind: kind, Name: name, Index: len(r.clauses[key]) - 1}, nil
}

// MustRegister is like Register but panics on error.
// Use only at program initialisation or in tests.
func (r *Registry) MustRegister(kind Kind, name string, clause Clause) ClauseHandle {
	h, err := r.Register(kind, name, clause)
	if err != nil {
		panic(err)
	}
	return h
}

// Clauses returns the ordered clause list for (kind, name).
// The returned slice is a copy; mutating it does not affect the registry.
// Fails with UNKNOWN_PREDICATE if no list exists for that key.
func (r *Registry) Clauses(kind Kind, name string) ([]Clause, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list, ok := r.clauses[registryKey{kind: kind, name: name}]
	if !ok || len(list) == 0 {
		return nil, &RegistryError{Code: ErrCodeUnknownPredicate, Name: name, Kind: kind}
	}
	return slices.Clone(list), nil
}

// KindOf returns the kind name is registered under.
func (r *Registry) KindOf(name string) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.kinds[name]
	return k, ok
}

// Len returns the number of clauses registered for (kind, name).
func (r *Registry) Len(kind Kind, name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clauses[registryKey{kind: kind, name: name}])
}

// Names returns all registered predicate names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.kinds))
	for name := range r.kinds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Freeze makes the registry read-only. Later Register calls fail with
// REGISTRY_FROZEN.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// validateClause checks that the clause body matches its kind.
func validateClause(kind Kind, name string, clause Clause) error {
	invalid := func(msg string) error {
		return &RegistryError{Code: ErrCodeInvalidClause, Name: name, Kind: kind, Message: msg}
	}

	if strings.TrimSpace(name) == "" {
		return invalid("predicate name is required")
	}
	if !kind.Valid() {
		return invalid("unknown resolution kind " + kind.String())
	}

	switch kind {
	case FirstSuccess, AllRequired:
		if clause.Body == nil {
			return invalid(kind.String() + " clause requires a Body")
		}
		if clause.Search != nil {
			return invalid(kind.String() + " clause cannot have a Search body")
		}
	case Backtracking:
		if clause.Search == nil {
			return invalid("backtracking clause requires a Search body")
		}
		if clause.Body != nil {
			return invalid("backtracking clause cannot have a plain Body")
		}
	}
	return nil
}
