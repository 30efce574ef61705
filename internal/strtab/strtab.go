// Package strtab implements the interned string table of the motion database.
package strtab

// Table stores each distinct string once. Strings are referenced by their
// insertion index.
type Table struct {
	strs  []string
	index map[string]uint32
}

// New creates an empty table.
func New() *Table {
	return &Table{index: make(map[string]uint32)}
}

// FromSlice rebuilds a table from serialized strings. Duplicate entries keep
// their first index.
func FromSlice(strs []string) *Table {
	t := &Table{
		strs:  make([]string, len(strs)),
		index: make(map[string]uint32, len(strs)),
	}
	copy(t.strs, strs)
	for i, s := range t.strs {
		if _, ok := t.index[s]; !ok {
			t.index[s] = uint32(i)
		}
	}
	return t
}

// Intern returns the index of s, adding it if needed.
func (t *Table) Intern(s string) uint32 {
	if id, ok := t.index[s]; ok {
		return id
	}
	id := uint32(len(t.strs))
	t.strs = append(t.strs, s)
	t.index[s] = id
	return id
}

// Lookup returns the index of s without adding it.
func (t *Table) Lookup(s string) (uint32, bool) {
	id, ok := t.index[s]
	return id, ok
}

// Get returns the string at id.
func (t *Table) Get(id uint32) (string, bool) {
	if int(id) >= len(t.strs) {
		return "", false
	}
	return t.strs[id], true
}

// Len returns the number of distinct strings.
func (t *Table) Len() int {
	return len(t.strs)
}

// Strings returns the backing slice. Callers must not modify it.
func (t *Table) Strings() []string {
	return t.strs
}
