// Package vmtable implements Vine's table type: a hybrid array+hash
// map with an optional metatable, per spec.md §3 and §5.
//
// Tables split storage into a dense "array part" for small positive
// integer keys (1..n with no holes) and a hash part for everything
// else, mirroring the classic Lua table layout: sequences stay cheap
// to index and to grow, while arbitrary keys fall back to a generic
// map.
package vmtable

import (
	"sort"

	"github.com/clarete/vine/value"
	"golang.org/x/exp/maps"
)

// Metamethod names the fixed set of metamethods Vine looks up on a
// table's metatable (spec.md §5).
type Metamethod int

const (
	MMIndex Metamethod = iota
	MMNewIndex
	MMCall
	MMAdd
	MMSub
	MMMul
	MMDiv
	MMMod
	MMPow
	MMConcat
	MMEq
	MMLt
	MMLe
	MMLen
	MMUnm
	MMMode
	MMGC
	mmCount
)

var mmNames = [...]string{
	MMIndex: "__index", MMNewIndex: "__newindex", MMCall: "__call",
	MMAdd: "__add", MMSub: "__sub", MMMul: "__mul", MMDiv: "__div",
	MMMod: "__mod", MMPow: "__pow", MMConcat: "__concat",
	MMEq: "__eq", MMLt: "__lt", MMLe: "__le", MMLen: "__len",
	MMUnm: "__unm", MMMode: "__mode", MMGC: "__gc",
}

func (m Metamethod) String() string { return mmNames[m] }

// LookupMetamethod maps a metamethod's string key to its Metamethod
// constant, returning ok=false for any other key.
func LookupMetamethod(name string) (Metamethod, bool) {
	for i, n := range mmNames {
		if n == name && n != "" {
			return Metamethod(i), true
		}
	}
	return 0, false
}

// Table is Vine's one compound data structure: it is simultaneously an
// array, a map, and (through its metatable) an object (spec.md §3).
type Table struct {
	array []value.Value // array part, array[i] backs key float64(i+1)
	hash  map[value.Value]value.Value

	meta *Table

	// absent caches which metamethods this table's metatable is known
	// NOT to define, one bit per Metamethod, so repeated failed
	// lookups (the overwhelmingly common case for arithmetic
	// metamethods on plain tables) skip the meta chain walk entirely.
	// Invalidated whenever SetMeta is called.
	absent uint32
}

func New() *Table {
	return &Table{hash: make(map[value.Value]value.Value)}
}

// Len reports the table's "border" per spec.md §3: the length of its
// dense array part, which is exact only when the table has no holes.
func (t *Table) Len() int {
	n := len(t.array)
	for n > 0 && t.array[n-1].IsUndefined() {
		n--
	}
	return n
}

// arrayIndex folds an integer-valued double key onto the array part
// boundary so `t[1]` and `t[1.0]` address the same slot.
func arrayIndex(k value.Value) (int, bool) {
	if !k.IsDouble() {
		return 0, false
	}
	f := k.AsDouble()
	i := int(f)
	if float64(i) != f || i < 1 {
		return 0, false
	}
	return i, true
}

// Get performs a raw (metatable-free) lookup, per spec.md §3's
// `rawget`.
func (t *Table) Get(k value.Value) value.Value {
	if i, ok := arrayIndex(k); ok && i <= len(t.array) {
		return t.array[i-1]
	}
	if v, ok := t.hash[k]; ok {
		return v
	}
	return value.Undefined()
}

// Set performs a raw (metatable-free) store, per spec.md §3's
// `rawset`. Assigning Undefined deletes the key, matching the
// language's "absence is undefined" convention.
func (t *Table) Set(k, v value.Value) {
	if i, ok := arrayIndex(k); ok {
		t.setArray(i, v)
		return
	}
	if v.IsUndefined() {
		delete(t.hash, k)
		return
	}
	t.hash[k] = v
}

func (t *Table) setArray(i int, v value.Value) {
	switch {
	case i <= len(t.array):
		t.array[i-1] = v
	case i == len(t.array)+1 && !v.IsUndefined():
		t.array = append(t.array, v)
		t.migrateFromHash()
	default:
		// sparse insert beyond the array boundary: store in the hash
		// part rather than growing the array with holes.
		if v.IsUndefined() {
			delete(t.hash, doubleKey(i))
			return
		}
		t.hash[doubleKey(i)] = v
	}
}

func doubleKey(i int) value.Value { return value.Double(float64(i)) }

// migrateFromHash absorbs any hash entries that now extend the array
// part contiguously, e.g. after array grows to include index n and
// the hash part already had n+1 stored from an earlier sparse insert.
func (t *Table) migrateFromHash() {
	for {
		next := doubleKey(len(t.array) + 1)
		v, ok := t.hash[next]
		if !ok {
			return
		}
		delete(t.hash, next)
		t.array = append(t.array, v)
	}
}

// ForEachMutable walks every live array- and hash-part entry, calling
// f(key, value) for each. Returning false from f deletes that entry
// immediately. Used by the gc package to trace a table's outgoing
// references during mark and to clear weak entries during the atomic
// phase; ordinary Vine code never sees this (it has no stable
// iteration-order guarantee, per Next()'s own doc comment).
func (t *Table) ForEachMutable(f func(k, v value.Value) bool) {
	for i := range t.array {
		if t.array[i].IsUndefined() {
			continue
		}
		if !f(doubleKey(i+1), t.array[i]) {
			t.array[i] = value.Undefined()
		}
	}
	for k, v := range t.hash {
		if !f(k, v) {
			delete(t.hash, k)
		}
	}
}

// Meta returns the table's metatable, or nil.
func (t *Table) Meta() *Table { return t.meta }

// SetMeta installs a new metatable and invalidates the absence cache.
func (t *Table) SetMeta(m *Table) {
	t.meta = m
	t.absent = 0
}

// GetTaggedMethod looks mm up in the table's own metatable (one level;
// the metatable's own metatable is not consulted), caching misses in
// the absence bitmask.
func (t *Table) GetTaggedMethod(mm Metamethod) (value.Value, bool) {
	if t.meta == nil {
		return value.Value{}, false
	}
	bit := uint32(1) << uint(mm)
	if t.absent&bit != 0 {
		return value.Value{}, false
	}
	v := t.meta.Get(stringKey(mm.String()))
	if v.IsUndefined() {
		t.absent |= bit
		return value.Value{}, false
	}
	return v, true
}

// stringKey is a placeholder hook for however package vm interns
// metamethod name strings into Values; vmtable only needs key
// equality, so any stable Value for a given string works. The VM
// package supplies real interned string values through SetStringKeyer
// before any table lookups that cross the metatable boundary occur.
var stringKeyer func(string) value.Value

// SetStringKeyer installs the function vmtable uses to turn a
// metamethod name into the same interned string Value the rest of the
// runtime uses as table keys, so `__index` stored by ordinary Vine
// code (`t.__index = ...`) is found by GetTaggedMethod too.
func SetStringKeyer(f func(string) value.Value) { stringKeyer = f }

func stringKey(s string) value.Value {
	if stringKeyer != nil {
		return stringKeyer(s)
	}
	return value.Undefined()
}

// Next implements stateless iteration over the table for `for k, v in
// pairs(t) do` (spec.md §3): given the previously-yielded key (or
// Undefined to start), it returns the next key/value pair and
// ok=false once iteration is exhausted. Iteration order is: array
// part first (in index order), then hash part in ascending order of
// the keys' raw bit patterns (see orderedHashKeys).
func (t *Table) Next(k value.Value) (value.Value, value.Value, bool) {
	if k.IsUndefined() {
		if len(t.array) > 0 {
			return doubleKey(1), t.array[0], true
		}
		return t.firstHashEntry()
	}
	if i, ok := arrayIndex(k); ok && i <= len(t.array) {
		if i < len(t.array) {
			return doubleKey(i + 1), t.array[i], true
		}
		return t.firstHashEntry()
	}
	return t.hashEntryAfter(k)
}

// orderedHashKeys builds a deterministic ordering (by raw bit
// pattern) over the current hash-part keys. Go randomizes map
// iteration order on every `range`, so Next() cannot rely on two
// successive range loops agreeing; sorting gives a total order that
// only depends on the table's contents, keeping a single pairs() pass
// internally consistent even though spec.md §9 explicitly disclaims
// any cross-run iteration-order guarantee.
func (t *Table) orderedHashKeys() []value.Value {
	keys := maps.Keys(t.hash)
	sort.Slice(keys, func(i, j int) bool { return keys[i].Bits() < keys[j].Bits() })
	return keys
}

func (t *Table) firstHashEntry() (value.Value, value.Value, bool) {
	keys := t.orderedHashKeys()
	if len(keys) == 0 {
		return value.Value{}, value.Value{}, false
	}
	return keys[0], t.hash[keys[0]], true
}

func (t *Table) hashEntryAfter(k value.Value) (value.Value, value.Value, bool) {
	keys := t.orderedHashKeys()
	for i, kk := range keys {
		if kk == k {
			if i+1 < len(keys) {
				return keys[i+1], t.hash[keys[i+1]], true
			}
			return value.Value{}, value.Value{}, false
		}
	}
	return value.Value{}, value.Value{}, false
}
