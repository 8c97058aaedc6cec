// Package vars implements the shared variable store. Keys are
// "$"-prefixed by convention; values are scalars (float64, string, bool).
// The store is shared by reference between the dialogue interpreter and
// script handlers — single-writer by construction, no locking.
package vars

import "sort"

// Store maps variable names to scalar values.
type Store struct {
	values map[string]any
}

// New creates an empty store.
func New() *Store {
	return &Store{values: map[string]any{}}
}

// Get returns the value for name and whether it is set.
func (s *Store) Get(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Set writes a scalar value. Numbers are normalized to float64 so that
// values written from Lua, JSON, and Go code compare equal.
func (s *Store) Set(name string, value any) {
	s.values[name] = Normalize(value)
}

// Delete removes a variable.
func (s *Store) Delete(name string) {
	delete(s.values, name)
}

// Names returns all set variable names, sorted.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the store contents for serialization.
func (s *Store) Snapshot() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Restore replaces the store contents from a snapshot.
func (s *Store) Restore(values map[string]any) {
	s.values = map[string]any{}
	for k, v := range values {
		s.values[k] = Normalize(v)
	}
}

// Normalize coerces integer-typed numbers to float64. Strings, bools and
// float64 pass through unchanged.
func Normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

// Truthy reports whether a scalar counts as true in a condition:
// false, 0, "" and nil are false, everything else is true.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}
