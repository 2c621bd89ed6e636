package bytecode

import (
	"fmt"
	"strings"

	"github.com/clarete/vine/ascii"
)

// PrettyString renders a disassembly of p and its children, recursively,
// mirroring the ast package's twin PrettyString/HighlightPrettyString
// accessors.
func (p *Proto) PrettyString() string {
	var sb strings.Builder
	format := func(in string, _ ascii.Token) string { return in }
	printProto(&sb, p, 0, format)
	return sb.String()
}

// HighlightPrettyString is PrettyString with ASCII-color theming.
func (p *Proto) HighlightPrettyString() string {
	var sb strings.Builder
	format := func(in string, tok ascii.Token) string {
		return ascii.DefaultTheme.Color(tok) + in + ascii.Reset
	}
	printProto(&sb, p, 0, format)
	return sb.String()
}

func printProto(sb *strings.Builder, p *Proto, depth int, format func(string, ascii.Token) string) {
	pad := strings.Repeat("  ", depth)
	name := p.DebugName
	if name == "" {
		name = "<anonymous>"
	}
	header := fmt.Sprintf("function %s(params=%d vararg=%t upvalues=%d maxstack=%d)",
		name, p.NumParams, p.IsVararg, p.NumUpvalues, p.MaxStackSize)
	sb.WriteString(pad)
	sb.WriteString(format(header, ascii.TokLabel))
	sb.WriteString("\n")

	for pc, start := range p.InstrStarts() {
		instr := Decode(p.Code, start)
		line := p.Lines.LineAt(pc)
		sb.WriteString(pad)
		sb.WriteString(format(fmt.Sprintf("  [%4d] ", pc), ascii.TokSpan))
		sb.WriteString(format(fmt.Sprintf("%-10s", instr.Op), ascii.TokOperator))
		sb.WriteString(format(operandString(instr), ascii.TokOperand))
		sb.WriteString(format(fmt.Sprintf("  ; line %d", line), ascii.TokComment))
		sb.WriteString("\n")
	}

	for _, c := range p.Children {
		printProto(sb, c, depth+1, format)
	}
}

func operandString(i Instruction) string {
	switch encodingOf(i.Op) {
	case EncABC:
		return fmt.Sprintf("A=%d B=%d C=%d", i.A, i.B, i.C)
	case EncAD:
		s := fmt.Sprintf("A=%d D=%d", i.A, i.D)
		if hasAux[i.Op] {
			s += fmt.Sprintf(" aux=%d", i.Aux)
		}
		return s
	case EncE:
		return fmt.Sprintf("E=%d", i.E)
	}
	return ""
}
