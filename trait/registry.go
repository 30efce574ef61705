package trait

import (
	"fmt"
	"sort"
)

// Registry is the closed set of payload kinds known to a build.
type Registry struct {
	types  []Type
	byName map[string]int
	byHash map[uint64]int
}

// NewRegistry creates a registry holding the given types.
func NewRegistry(types ...Type) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]int),
		byHash: make(map[uint64]int),
	}
	for _, t := range types {
		if _, err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds t and returns its index. Registering a structurally
// identical type again returns the existing index.
func (r *Registry) Register(t Type) (int, error) {
	if err := t.Validate(); err != nil {
		return -1, err
	}

	h := t.Hash()
	if idx, ok := r.byHash[h]; ok {
		return idx, nil
	}
	if _, ok := r.byName[t.Name]; ok {
		return -1, fmt.Errorf("%w: %s", ErrLayoutConflict, t.Name)
	}

	idx := len(r.types)
	r.types = append(r.types, t)
	r.byName[t.Name] = idx
	r.byHash[h] = idx
	return idx, nil
}

// Lookup returns the type registered under name.
func (r *Registry) Lookup(name string) (Type, bool) {
	idx, ok := r.byName[name]
	if !ok {
		return Type{}, false
	}
	return r.types[idx], true
}

// LookupHash returns the type with the given structural hash.
func (r *Registry) LookupHash(h uint64) (Type, bool) {
	idx, ok := r.byHash[h]
	if !ok {
		return Type{}, false
	}
	return r.types[idx], true
}

// Check validates a payload against its registered type.
func (r *Registry) Check(v Value) (Type, error) {
	t, ok := r.Lookup(v.Type)
	if !ok {
		return Type{}, fmt.Errorf("%w: %q", ErrUnknownType, v.Type)
	}
	if len(v.Payload) != t.NumBytes() {
		return Type{}, fmt.Errorf("%w: %s has %d bytes, want %d", ErrPayloadSize, t.Name, len(v.Payload), t.NumBytes())
	}
	return t, nil
}

// Types returns the registered types sorted by name.
func (r *Registry) Types() []Type {
	out := make([]Type, len(r.types))
	copy(out, r.types)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered types.
func (r *Registry) Len() int { return len(r.types) }
