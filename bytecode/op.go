// Package bytecode implements Vine's instruction set, constant pool,
// builder (validation, jump folding, long-jump expansion), and binary
// serialization, per spec.md §4.3.
package bytecode

// Op is the 8-bit opcode occupying the low byte of every instruction
// word.
type Op byte

const (
	OpMove Op = iota
	OpLoadNull
	OpLoadBoolean
	OpLoadNumber // small integers inlined in D
	OpLoadKey    // constant-pool index in D
	OpLoadKeyExtra
	OpLoadGlobal // AUX: string constant index
	OpSetGlobal
	OpGetUpvalue
	OpSetUpvalue
	OpLoadTable
	OpSetTable
	OpNewTable
	OpSetList
	OpSetTableStringKey
	OpCopyTable
	OpNewClosure
	OpCapture
	OpCall
	OpCallReturn
	OpNamedCall
	OpBindMethod
	OpJump
	OpJumpExtra
	OpJumpIf
	OpJumpIfNot
	OpJumpIfEqualKey
	OpJumpBack
	OpForNumericLoopPrepare
	OpForNumericLoop
	OpForGeneratorLoopPrepareNext
	OpForGeneratorLoopPrepareINext
	OpForGeneratorLoop
	OpCloseUpvalues
	OpPrepareVarargs
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpConcat
	OpBOr
	OpBXor
	OpBAnd
	OpShl
	OpShr
	OpEq
	OpLt
	OpLe
	OpUnm
	OpNot
	OpLen
	OpBNot
	opCount
)

var opNames = [...]string{
	OpMove: "move", OpLoadNull: "load_null", OpLoadBoolean: "load_boolean",
	OpLoadNumber: "load_number", OpLoadKey: "load_key", OpLoadKeyExtra: "load_key_extra",
	OpLoadGlobal: "load_global", OpSetGlobal: "set_global",
	OpGetUpvalue: "get_upvalue", OpSetUpvalue: "set_upvalue",
	OpLoadTable: "load_table", OpSetTable: "set_table", OpNewTable: "new_table",
	OpSetList: "set_list", OpSetTableStringKey: "set_table_string_key",
	OpCopyTable: "copy_table", OpNewClosure: "new_closure", OpCapture: "capture",
	OpCall: "call", OpCallReturn: "call_return", OpNamedCall: "named_call",
	OpBindMethod: "bind_method",
	OpJump: "jump", OpJumpExtra: "jump_extra", OpJumpIf: "jump_if",
	OpJumpIfNot: "jump_if_not", OpJumpIfEqualKey: "jump_if_equal_key",
	OpJumpBack: "jump_back",
	OpForNumericLoopPrepare:       "for_numeric_loop_prepare",
	OpForNumericLoop:              "for_numeric_loop",
	OpForGeneratorLoopPrepareNext: "for_generator_loop_prepare_next",
	OpForGeneratorLoopPrepareINext: "for_generator_loop_prepare_inext",
	OpForGeneratorLoop:            "for_generator_loop",
	OpCloseUpvalues:               "close_upvalues",
	OpPrepareVarargs:              "prepare_varargs",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpMod: "mod",
	OpPow: "pow", OpConcat: "concat", OpBOr: "bor", OpBXor: "bxor", OpBAnd: "band",
	OpShl: "shl", OpShr: "shr", OpEq: "eq", OpLt: "lt", OpLe: "le",
	OpUnm: "unm", OpNot: "not", OpLen: "len", OpBNot: "bnot",
}

func (op Op) String() string {
	if int(op) >= 0 && int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return "?"
}

// Encoding tags which field layout an opcode uses.
type Encoding int

const (
	EncABC Encoding = iota
	EncAD
	EncE
)

// hasAux marks opcodes whose instruction occupies a trailing AUX word
// carrying a full 32-bit constant or constant-pool index (spec.md
// §3's "Many opcodes have an auxiliary following word").
var hasAux = map[Op]bool{
	OpLoadKeyExtra: true,
	OpLoadGlobal:   true,
	OpSetGlobal:    true,
}

// encodingOf reports which word layout op uses. Jump-carrying and
// long-offset opcodes use AD or E; everything else defaults to ABC.
func encodingOf(op Op) Encoding {
	switch op {
	case OpLoadNumber, OpLoadKey, OpLoadKeyExtra, OpLoadGlobal, OpSetGlobal,
		OpJump, OpJumpIf, OpJumpIfNot, OpJumpIfEqualKey, OpJumpBack,
		OpForNumericLoopPrepare, OpForNumericLoop,
		OpForGeneratorLoopPrepareNext, OpForGeneratorLoopPrepareINext, OpForGeneratorLoop,
		OpNewClosure, OpLoadBoolean:
		return EncAD
	case OpJumpExtra:
		return EncE
	default:
		return EncABC
	}
}

// SizeInWords is 2 for an opcode with an AUX word, 1 otherwise
// (spec.md §3: "Each opcode has a fixed length in words (1 or 2)").
func SizeInWords(op Op) int {
	if hasAux[op] {
		return 2
	}
	return 1
}
