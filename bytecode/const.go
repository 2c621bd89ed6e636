package bytecode

// ConstKind tags a Constant's payload (spec.md §3's "Constant pool
// entry").
type ConstKind byte

const (
	ConstNull ConstKind = iota
	ConstBool
	ConstNumber
	ConstString
	ConstImport
	ConstTable
	ConstClosure
)

// Constant is a tagged union; only the field matching Kind is
// meaningful.
type Constant struct {
	Kind ConstKind

	Bool    bool
	Number  float64
	StrIdx  int32   // index into the module's string table
	Import  []int32 // packed chain of string-table indices
	Shape   int32   // index into the shape table
	ChildID int32   // child-prototype index
}

func (c Constant) equal(o Constant) bool {
	if c.Kind != o.Kind {
		return false
	}
	switch c.Kind {
	case ConstNull:
		return true
	case ConstBool:
		return c.Bool == o.Bool
	case ConstNumber:
		return c.Number == o.Number
	case ConstString:
		return c.StrIdx == o.StrIdx
	case ConstImport:
		if len(c.Import) != len(o.Import) {
			return false
		}
		for i := range c.Import {
			if c.Import[i] != o.Import[i] {
				return false
			}
		}
		return true
	case ConstTable:
		return c.Shape == o.Shape
	case ConstClosure:
		return c.ChildID == o.ChildID
	}
	return false
}

// maxConstants is the per-function limit named in spec.md §3's
// invariant 5 (2^23 entries).
const maxConstants = 1 << 23

// maxUpvalues is the per-function limit named in the same invariant
// (2^15 closure-child/upvalue references).
const maxUpvalues = 1 << 15

// sentinelIndex is returned by add_constant_* when the pool is full
// (spec.md §4.3: "returns a signed index, or a sentinel if the pool
// is full").
const sentinelIndex int32 = -1
