package bytecode

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/buger/jsonparser"
)

// DebugJSON renders p and its children as a JSON document for tooling
// that wants a dump richer than PrettyString's plain text (e.g. an
// editor plugin). The document is assembled incrementally with
// jsonparser.Set rather than built as a Go struct and marshaled in
// one shot, since jsonparser is a streaming scanner/writer better
// suited to composing a large debug dump field-by-field than
// encoding/json's reflection-driven marshaling.
func (p *Proto) DebugJSON() ([]byte, error) {
	return protoJSON(p)
}

func protoJSON(p *Proto) ([]byte, error) {
	doc := []byte(`{}`)
	var err error
	set := func(key string, val []byte) {
		if err != nil {
			return
		}
		doc, err = jsonparser.Set(doc, val, key)
	}

	set("name", jsonString(p.DebugName))
	set("params", jsonInt(int(p.NumParams)))
	set("vararg", []byte(strconv.FormatBool(p.IsVararg)))
	set("upvalues", jsonInt(int(p.NumUpvalues)))
	set("max_stack", jsonInt(int(p.MaxStackSize)))

	instrArray, ierr := instructionsJSON(p)
	if ierr != nil {
		return nil, ierr
	}
	set("instructions", instrArray)

	var childParts [][]byte
	for _, c := range p.Children {
		cb, cerr := protoJSON(c)
		if cerr != nil {
			return nil, cerr
		}
		childParts = append(childParts, cb)
	}
	set("children", jsonArray(childParts))

	if err != nil {
		return nil, err
	}
	return doc, nil
}

func instructionsJSON(p *Proto) ([]byte, error) {
	var parts [][]byte
	for pc, start := range p.InstrStarts() {
		instr := Decode(p.Code, start)
		obj := []byte(`{}`)
		var err error
		set := func(key string, val []byte) {
			if err != nil {
				return
			}
			obj, err = jsonparser.Set(obj, val, key)
		}
		set("pc", jsonInt(pc))
		set("op", jsonString(instr.Op.String()))
		switch encodingOf(instr.Op) {
		case EncABC:
			set("a", jsonInt(int(instr.A)))
			set("b", jsonInt(int(instr.B)))
			set("c", jsonInt(int(instr.C)))
		case EncAD:
			set("a", jsonInt(int(instr.A)))
			set("d", jsonInt(int(instr.D)))
			if hasAux[instr.Op] {
				set("aux", jsonInt(int(instr.Aux)))
			}
		case EncE:
			set("e", jsonInt(int(instr.E)))
		}
		set("line", jsonInt(int(p.Lines.LineAt(pc))))
		if err != nil {
			return nil, err
		}
		parts = append(parts, obj)
	}
	return jsonArray(parts), nil
}

func jsonArray(parts [][]byte) []byte {
	return append(append([]byte("["), bytes.Join(parts, []byte(","))...), ']')
}

func jsonString(s string) []byte {
	b, _ := json.Marshal(s)
	return b
}

func jsonInt(v int) []byte { return []byte(strconv.Itoa(v)) }
