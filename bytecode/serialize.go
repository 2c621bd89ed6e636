package bytecode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// formatVersion is the first byte of every serialized module
// (spec.md §4.3.4).
const formatVersion byte = 1

// Write serializes m to w per spec.md §4.3.4's binary layout.
func (m *Module) Write(w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteByte(formatVersion)

	writeUvarint(&buf, uint64(len(m.Strings)))
	for _, s := range m.Strings {
		writeUvarint(&buf, uint64(len(s)))
		buf.WriteString(s)
	}

	protos := flattenProtos(m.Main)
	writeUvarint(&buf, uint64(len(protos)))
	for _, p := range protos {
		if err := writeProto(&buf, p, protos); err != nil {
			return err
		}
	}

	mainID := int32(0)
	for i, p := range protos {
		if p == m.Main {
			mainID = int32(i)
			break
		}
	}
	writeUvarint(&buf, uint64(mainID))

	_, err := w.Write(buf.Bytes())
	return err
}

// flattenProtos numbers every prototype in the tree breadth-first
// starting from main, so constant-pool ConstClosure entries and
// each Proto's Children list can reference each other by a stable
// integer id.
func flattenProtos(main *Proto) []*Proto {
	order := []*Proto{main}
	for i := 0; i < len(order); i++ {
		order = append(order, order[i].Children...)
	}
	return order
}

func protoID(p *Proto, all []*Proto) int32 {
	for i, q := range all {
		if q == p {
			return int32(i)
		}
	}
	return -1
}

func writeProto(buf *bytes.Buffer, p *Proto, all []*Proto) error {
	buf.WriteByte(p.MaxStackSize)
	buf.WriteByte(p.NumParams)
	buf.WriteByte(p.NumUpvalues)
	if p.IsVararg {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	var instrBuf [4]byte
	binary.LittleEndian.PutUint32(instrBuf[:], uint32(len(p.Code)))
	buf.Write(instrBuf[:])
	for _, word := range p.Code {
		binary.LittleEndian.PutUint32(instrBuf[:], word)
		buf.Write(instrBuf[:])
	}

	binary.LittleEndian.PutUint32(instrBuf[:], uint32(len(p.Constants)))
	buf.Write(instrBuf[:])
	for _, c := range p.Constants {
		if err := writeConstant(buf, c); err != nil {
			return err
		}
	}

	writeUvarint(buf, uint64(len(p.Children)))
	for _, c := range p.Children {
		writeUvarint(buf, uint64(protoID(c, all)))
	}

	writeUvarint(buf, 0) // debug name index placeholder; names are stored inline below
	writeString(buf, p.DebugName)

	if len(p.Lines.Deltas) > 0 {
		buf.WriteByte(1)
		buf.WriteByte(p.Lines.SpanLog2)
		writeUvarint(buf, uint64(len(p.Lines.Deltas)))
		buf.Write(p.Lines.Deltas)
		writeUvarint(buf, uint64(len(p.Lines.Baselines)))
		var prev int32
		for _, b := range p.Lines.Baselines {
			writeSvarint(buf, int64(b-prev))
			prev = b
		}
	} else {
		buf.WriteByte(0)
	}

	if len(p.DebugLocals) > 0 || len(p.DebugUpvalues) > 0 {
		buf.WriteByte(1)
		writeUvarint(buf, uint64(len(p.DebugLocals)))
		for _, l := range p.DebugLocals {
			writeString(buf, l.Name)
			buf.WriteByte(l.Register)
			writeSvarint(buf, int64(l.BeginPC))
			writeSvarint(buf, int64(l.EndPC))
		}
		writeUvarint(buf, uint64(len(p.DebugUpvalues)))
		for _, u := range p.DebugUpvalues {
			writeString(buf, u)
		}
	} else {
		buf.WriteByte(0)
	}

	return nil
}

func writeConstant(buf *bytes.Buffer, c Constant) error {
	buf.WriteByte(byte(c.Kind))
	switch c.Kind {
	case ConstNull:
	case ConstBool:
		if c.Bool {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case ConstNumber:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(c.Number))
		buf.Write(b[:])
	case ConstString:
		writeUvarint(buf, uint64(c.StrIdx))
	case ConstImport:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(len(c.Import)))
		buf.Write(b[:])
		for _, idx := range c.Import {
			binary.LittleEndian.PutUint32(b[:], uint32(idx))
			buf.Write(b[:])
		}
	case ConstTable:
		writeUvarint(buf, uint64(c.Shape))
	case ConstClosure:
		writeUvarint(buf, uint64(c.ChildID))
	default:
		return errors.New("bytecode: unknown constant kind")
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func writeSvarint(buf *bytes.Buffer, v int64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutVarint(tmp[:], v)
	buf.Write(tmp[:n])
}

// Read deserializes a Module from r, the inverse of Write.
func Read(r io.Reader) (*Module, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	br := &byteReader{data: data}

	version := br.readByte()
	if version != formatVersion {
		return nil, errors.New("bytecode: unsupported module version")
	}

	m := &Module{}
	numStrings := br.readUvarint()
	for i := uint64(0); i < numStrings; i++ {
		m.Strings = append(m.Strings, br.readString())
	}

	numFuncs := br.readUvarint()
	protos := make([]*Proto, numFuncs)
	for i := range protos {
		protos[i] = &Proto{}
	}
	childLists := make([][]int32, numFuncs)
	for i := uint64(0); i < numFuncs; i++ {
		childLists[i] = readProto(br, protos[i])
	}
	for i, kids := range childLists {
		for _, k := range kids {
			protos[i].Children = append(protos[i].Children, protos[k])
		}
	}

	mainID := br.readUvarint()
	if int(mainID) < len(protos) {
		m.Main = protos[mainID]
	}
	if br.err != nil {
		return nil, br.err
	}
	return m, nil
}

func readProto(br *byteReader, p *Proto) (childIDs []int32) {
	p.MaxStackSize = br.readByte()
	p.NumParams = br.readByte()
	p.NumUpvalues = br.readByte()
	p.IsVararg = br.readByte() != 0

	numWords := br.readUint32()
	p.Code = make([]uint32, numWords)
	for i := range p.Code {
		p.Code[i] = br.readUint32()
	}

	numConsts := br.readUint32()
	p.Constants = make([]Constant, numConsts)
	for i := range p.Constants {
		p.Constants[i] = readConstant(br)
	}

	numChildren := br.readUvarint()
	for i := uint64(0); i < numChildren; i++ {
		childIDs = append(childIDs, int32(br.readUvarint()))
	}

	_ = br.readUvarint() // debug name index placeholder
	p.DebugName = br.readString()

	if br.readByte() == 1 {
		p.Lines.SpanLog2 = br.readByte()
		n := br.readUvarint()
		p.Lines.Deltas = br.readBytes(int(n))
		numBaselines := br.readUvarint()
		var prev int32
		for i := uint64(0); i < numBaselines; i++ {
			prev += int32(br.readSvarint())
			p.Lines.Baselines = append(p.Lines.Baselines, prev)
		}
	}

	if br.readByte() == 1 {
		numLocals := br.readUvarint()
		for i := uint64(0); i < numLocals; i++ {
			p.DebugLocals = append(p.DebugLocals, DebugLocal{
				Name:     br.readString(),
				Register: br.readByte(),
				BeginPC:  int32(br.readSvarint()),
				EndPC:    int32(br.readSvarint()),
			})
		}
		numUpvals := br.readUvarint()
		for i := uint64(0); i < numUpvals; i++ {
			p.DebugUpvalues = append(p.DebugUpvalues, br.readString())
		}
	}

	return childIDs
}

func readConstant(br *byteReader) Constant {
	kind := ConstKind(br.readByte())
	c := Constant{Kind: kind}
	switch kind {
	case ConstNull:
	case ConstBool:
		c.Bool = br.readByte() != 0
	case ConstNumber:
		c.Number = math.Float64frombits(br.readUint64())
	case ConstString:
		c.StrIdx = int32(br.readUvarint())
	case ConstImport:
		n := br.readUint32()
		c.Import = make([]int32, n)
		for i := range c.Import {
			c.Import[i] = int32(br.readUint32())
		}
	case ConstTable:
		c.Shape = int32(br.readUvarint())
	case ConstClosure:
		c.ChildID = int32(br.readUvarint())
	}
	return c
}

// byteReader is a minimal cursor over an in-memory buffer; deserialization
// never needs to stream since modules are loaded whole.
type byteReader struct {
	data []byte
	pos  int
	err  error
}

func (r *byteReader) readByte() byte {
	if r.err != nil || r.pos >= len(r.data) {
		r.err = errors.New("bytecode: unexpected end of module")
		return 0
	}
	b := r.data[r.pos]
	r.pos++
	return b
}

func (r *byteReader) readBytes(n int) []byte {
	if r.err != nil || r.pos+n > len(r.data) {
		r.err = errors.New("bytecode: unexpected end of module")
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *byteReader) readUint32() uint32 {
	b := r.readBytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *byteReader) readUint64() uint64 {
	b := r.readBytes(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *byteReader) readUvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		r.err = errors.New("bytecode: malformed varint")
		return 0
	}
	r.pos += n
	return v
}

func (r *byteReader) readSvarint() int64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Varint(r.data[r.pos:])
	if n <= 0 {
		r.err = errors.New("bytecode: malformed varint")
		return 0
	}
	r.pos += n
	return v
}

func (r *byteReader) readString() string {
	n := r.readUvarint()
	b := r.readBytes(int(n))
	return string(b)
}
