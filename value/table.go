package value

// Table is an open-addressed hash map with linear probing and tombstones,
// keyed by interned strings (pointer-compared), used for fields, methods,
// globals and module exports (spec §4.7).
type Table struct {
	count    int // live entries + tombstones
	entries  []entry
}

type entry struct {
	key   *ObjString // nil key + present tombstone == deleted slot
	value Value
	tomb  bool
}

const tableMaxLoad = 0.75

// NewTable returns an empty table.
func NewTable() *Table { return &Table{} }

// Get looks up key, returning its value and whether it was found.
func (t *Table) Get(key *ObjString) (Value, bool) {
	if len(t.entries) == 0 {
		return Nil, false
	}
	e := t.find(key)
	if e == nil || e.key == nil {
		return Nil, false
	}
	return e.value, true
}

// Has reports whether key is present.
func (t *Table) Has(key *ObjString) bool {
	_, ok := t.Get(key)
	return ok
}

// Set inserts or updates key -> value, returning true if this inserted a
// brand new key (matching clox's tableSet return convention).
func (t *Table) Set(key *ObjString, value Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*tableMaxLoad {
		t.grow()
	}
	e := t.find(key)
	isNew := e.key == nil
	if isNew && !e.tomb {
		t.count++
	}
	e.key = key
	e.value = value
	e.tomb = false
	return isNew
}

// Delete writes a tombstone at key's slot, if present.
func (t *Table) Delete(key *ObjString) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := t.find(key)
	if e == nil || e.key == nil {
		return false
	}
	e.key = nil
	e.tomb = true
	return true
}

// AddAll copies every entry of from into t (used by class inheritance,
// spec §4.3's OP_INHERIT).
func (t *Table) AddAll(from *Table) {
	for i := range from.entries {
		e := &from.entries[i]
		if e.key != nil {
			t.Set(e.key, e.value)
		}
	}
}

// Keys returns a fresh slice of every live key.
func (t *Table) Keys() []*ObjString {
	keys := make([]*ObjString, 0, t.count)
	for i := range t.entries {
		if t.entries[i].key != nil {
			keys = append(keys, t.entries[i].key)
		}
	}
	return keys
}

// Each calls fn for every live key/value pair. Iteration order is the
// table's internal slot order (unspecified, matches clox).
func (t *Table) Each(fn func(key *ObjString, value Value)) {
	for i := range t.entries {
		if t.entries[i].key != nil {
			fn(t.entries[i].key, t.entries[i].value)
		}
	}
}

// FindString looks up a string by its raw bytes and hash, used only by the
// intern table during string creation to dedupe before allocating a new
// ObjString.
func (t *Table) FindString(chars string, hash uint32) *ObjString {
	if len(t.entries) == 0 {
		return nil
	}
	mask := uint32(len(t.entries) - 1)
	idx := hash & mask
	for {
		e := &t.entries[idx]
		if e.key == nil {
			if !e.tomb {
				return nil
			}
		} else if e.key.Hash == hash && e.key.Chars == chars {
			return e.key
		}
		idx = (idx + 1) & mask
	}
}

// RemoveWhite removes any entry whose key was not marked this GC cycle,
// implementing the string-intern and globals tables' weak-reference
// semantics (spec §4.4/§4.7).
func (t *Table) RemoveWhite() {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil && !e.key.marked {
			e.key = nil
			e.tomb = true
		}
	}
}

// Mark marks every live key and value in t for the GC.
func (t *Table) Mark(mark func(Obj)) {
	if t == nil {
		return
	}
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil {
			mark(e.key)
			if e.value.IsObj() {
				mark(e.value.AsObj())
			}
		}
	}
}

func (t *Table) find(key *ObjString) *entry {
	mask := uint32(len(t.entries) - 1)
	idx := key.Hash & mask
	var tombstone *entry
	for {
		e := &t.entries[idx]
		if e.key == nil {
			if !e.tomb {
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			if tombstone == nil {
				tombstone = e
			}
		} else if e.key == key {
			return e
		}
		idx = (idx + 1) & mask
	}
}

func (t *Table) grow() {
	newCap := 8
	if len(t.entries) > 0 {
		newCap = len(t.entries) * 2
	}
	old := t.entries
	t.entries = make([]entry, newCap)
	t.count = 0
	for i := range old {
		if old[i].key != nil {
			t.Set(old[i].key, old[i].value)
		}
	}
}

// Len reports the number of live entries (excludes tombstones).
func (t *Table) Len() int {
	n := 0
	for i := range t.entries {
		if t.entries[i].key != nil {
			n++
		}
	}
	return n
}
