package bytecode

// DebugLocal names a local's live range for stack traces and a
// potential debugger (spec.md §3: "debug locals (name, register,
// begin-pc, end-pc)").
type DebugLocal struct {
	Name           string
	Register       uint8
	BeginPC, EndPC int32
}

// LineInfo compresses per-instruction source lines into spans: each
// span has a baseline line number and a run of 8-bit deltas (one per
// instruction start in the span), per spec.md §3's invariant 6 ("span
// size is the smallest power of two that satisfies this per
// compile").
type LineInfo struct {
	SpanLog2 uint8
	Baselines []int32 // one per span
	Deltas    []uint8 // one per instruction start, grouped by span
}

// LineAt resolves the source line for the instruction starting at pc
// (an index into the function's list of instruction starts, not a
// byte/word offset).
func (li LineInfo) LineAt(instrIndex int) int32 {
	if len(li.Deltas) == 0 {
		return 0
	}
	spanSize := 1 << li.SpanLog2
	span := instrIndex / spanSize
	if span >= len(li.Baselines) {
		span = len(li.Baselines) - 1
	}
	return li.Baselines[span] + int32(li.Deltas[instrIndex])
}

// compressLines builds a LineInfo from one source line per
// instruction start, choosing the smallest span size (power of two)
// such that every delta within a span fits in a uint8, per spec.md
// §3's invariant 6.
func compressLines(lines []int32) LineInfo {
	if len(lines) == 0 {
		return LineInfo{}
	}
	for log2 := uint8(0); log2 <= 20; log2++ {
		spanSize := 1 << log2
		ok := true
		for start := 0; start < len(lines) && ok; start += spanSize {
			end := start + spanSize
			if end > len(lines) {
				end = len(lines)
			}
			baseline := lines[start]
			for i := start; i < end; i++ {
				if lines[i] < baseline || lines[i]-baseline > 255 {
					ok = false
					break
				}
			}
		}
		if ok {
			return buildLineInfo(lines, log2)
		}
	}
	// fallback: one instruction per span guarantees delta 0 always fits.
	return buildLineInfo(lines, 0)
}

func buildLineInfo(lines []int32, log2 uint8) LineInfo {
	spanSize := 1 << log2
	li := LineInfo{SpanLog2: log2, Deltas: make([]uint8, len(lines))}
	for start := 0; start < len(lines); start += spanSize {
		end := start + spanSize
		if end > len(lines) {
			end = len(lines)
		}
		baseline := lines[start]
		li.Baselines = append(li.Baselines, baseline)
		for i := start; i < end; i++ {
			li.Deltas[i] = uint8(lines[i] - baseline)
		}
	}
	return li
}

// Proto is a compiled function prototype (spec.md §3's "Function
// prototype").
type Proto struct {
	Code      []uint32
	Constants []Constant
	Children  []*Proto

	Lines LineInfo // per-instruction-start source line, compressed

	DebugLocals   []DebugLocal
	DebugUpvalues []string
	DebugName     string

	NumParams    uint8
	IsVararg     bool
	NumUpvalues  uint8
	MaxStackSize uint8
}

// InstrStarts returns the word offset of every instruction start (the
// first word of each, possibly 2-word, instruction), used by
// validation and the disassembler.
func (p *Proto) InstrStarts() []int {
	var starts []int
	for pc := 0; pc < len(p.Code); {
		starts = append(starts, pc)
		op := Op(p.Code[pc] & 0xFF)
		pc += SizeInWords(op)
	}
	return starts
}

// Module is the top of a compiled bytecode unit: a string table
// shared by every Proto's string constants, a shape table shared by
// every table constant, and the module's main (top-level) function.
type Module struct {
	Strings []string
	Shapes  [][]int32 // each shape is an ordered list of string-table indices

	Main *Proto

	// SourceName is recorded for stack traces; not part of the binary
	// format's bit-exact contract (spec.md §4.3.4 doesn't mention it,
	// it's host-side metadata set by the compiler's entry point).
	SourceName string
}
