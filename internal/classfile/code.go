package classfile

import (
	"encoding/binary"

	"github.com/apex/log"
	"github.com/pkg/errors"
)

// ErrBadCode is returned for bytecode that cannot be decoded.
var ErrBadCode = errors.New("classfile: malformed bytecode")

// ErrBranchRange is returned when a conditional branch has to be widened
// but the result cannot carry a complete StackMapTable.
var ErrBranchRange = errors.New("classfile: branch offset out of range")

// Code is a decoded Code attribute.
type Code struct {
	MaxStack     uint16
	MaxLocals    uint16
	Instructions []Instruction
	TryCatch     []TryCatch
	Lines        []LineNumber
	Locals       []LocalVar // LocalVariableTable
	LocalTypes   []LocalVar // LocalVariableTypeTable
	Frames       []Frame
}

// TryCatch is an exception table entry. CatchType is a raw pool index, zero
// for finally blocks.
type TryCatch struct {
	Start     *Label
	End       *Label
	Handler   *Label
	CatchType uint16
}

// LineNumber maps the instruction at Start to a source line.
type LineNumber struct {
	Start *Label
	Line  uint16
}

// LocalVar is a local variable table entry. Name and Desc are raw pool
// indices.
type LocalVar struct {
	Start *Label
	End   *Label
	Name  uint16
	Desc  uint16
	Index uint16
}

type codeDecoder struct {
	pool   *Pool
	code   []byte
	labels map[int]*Label
}

func (d *codeDecoder) label(off int) (*Label, error) {
	if off < 0 || off > len(d.code) {
		return nil, errors.Wrapf(ErrBadCode, "offset %d outside code of length %d", off, len(d.code))
	}
	if l, ok := d.labels[off]; ok {
		return l, nil
	}
	l := &Label{offset: off}
	d.labels[off] = l
	return l, nil
}

func decodeCode(p *Pool, data []byte) (*Code, error) {
	r := newReader(data)
	c := &Code{}
	var err error
	if c.MaxStack, err = r.u16(); err != nil {
		return nil, err
	}
	if c.MaxLocals, err = r.u16(); err != nil {
		return nil, err
	}
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	code, err := r.bytes(int(n))
	if err != nil {
		return nil, err
	}
	d := &codeDecoder{pool: p, code: code, labels: map[int]*Label{}}

	offsets, insns, err := d.instructions()
	if err != nil {
		return nil, err
	}

	count, err := r.u16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(count); i++ {
		var raw [4]uint16
		for j := range raw {
			if raw[j], err = r.u16(); err != nil {
				return nil, err
			}
		}
		tc := TryCatch{CatchType: raw[3]}
		if tc.Start, err = d.label(int(raw[0])); err != nil {
			return nil, err
		}
		if tc.End, err = d.label(int(raw[1])); err != nil {
			return nil, err
		}
		if tc.Handler, err = d.label(int(raw[2])); err != nil {
			return nil, err
		}
		c.TryCatch = append(c.TryCatch, tc)
	}

	if count, err = r.u16(); err != nil {
		return nil, err
	}
	for i := 0; i < int(count); i++ {
		idx, err := r.u16()
		if err != nil {
			return nil, err
		}
		name, err := p.Utf8(idx)
		if err != nil {
			return nil, err
		}
		size, err := r.u32()
		if err != nil {
			return nil, err
		}
		body, err := r.bytes(int(size))
		if err != nil {
			return nil, err
		}
		switch name {
		case "LineNumberTable":
			if c.Lines, err = d.lineNumbers(body); err != nil {
				return nil, errors.Wrap(err, name)
			}
		case "LocalVariableTable":
			if c.Locals, err = d.localVars(body); err != nil {
				return nil, errors.Wrap(err, name)
			}
		case "LocalVariableTypeTable":
			if c.LocalTypes, err = d.localVars(body); err != nil {
				return nil, errors.Wrap(err, name)
			}
		case "StackMapTable":
			if c.Frames, err = d.frames(body); err != nil {
				return nil, errors.Wrap(err, name)
			}
		default:
			// type annotations carry raw offsets that are not tracked
			log.WithField("attribute", name).Debug("dropping code attribute")
		}
	}

	// interleave labels with the instructions they precede
	positions := make(map[int]bool, len(offsets)+1)
	for _, off := range offsets {
		positions[off] = true
	}
	positions[len(code)] = true
	for off := range d.labels {
		if !positions[off] {
			return nil, errors.Wrapf(ErrBadCode, "label at offset %d is inside an instruction", off)
		}
	}
	c.Instructions = make([]Instruction, 0, len(insns)+len(d.labels))
	for i, insn := range insns {
		if l, ok := d.labels[offsets[i]]; ok {
			c.Instructions = append(c.Instructions, l)
		}
		c.Instructions = append(c.Instructions, insn)
	}
	if l, ok := d.labels[len(code)]; ok {
		c.Instructions = append(c.Instructions, l)
	}
	return c, nil
}

func (d *codeDecoder) instructions() ([]int, []Instruction, error) {
	var (
		offsets []int
		insns   []Instruction
	)
	code := d.code
	for pos := 0; pos < len(code); {
		op := code[pos]
		insn, size, err := d.instruction(pos, op)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "opcode 0x%02x at offset %d", op, pos)
		}
		offsets = append(offsets, pos)
		insns = append(insns, insn)
		pos += size
	}
	return offsets, insns, nil
}

func (d *codeDecoder) operands(pos, n int) ([]byte, error) {
	if pos+1+n > len(d.code) {
		return nil, ErrTruncated
	}
	return d.code[pos+1 : pos+1+n], nil
}

func (d *codeDecoder) instruction(pos int, op byte) (Instruction, int, error) {
	code := d.code
	switch {
	case op == TABLESWITCH || op == LOOKUPSWITCH:
		return d.switchInsn(pos, op)
	case op == WIDE:
		if pos+1 >= len(code) {
			return nil, 0, ErrTruncated
		}
		n := 3
		if code[pos+1] == IINC {
			n = 5
		}
		b, err := d.operands(pos, n)
		if err != nil {
			return nil, 0, err
		}
		return &Op{Code: op, Operands: append([]byte(nil), b...)}, 1 + n, nil
	case op == GOTO_W || op == JSR_W:
		b, err := d.operands(pos, 4)
		if err != nil {
			return nil, 0, err
		}
		l, err := d.label(pos + int(int32(binary.BigEndian.Uint32(b))))
		if err != nil {
			return nil, 0, err
		}
		return &JumpInsn{Code: op, Target: l}, 5, nil
	case isJump(op):
		b, err := d.operands(pos, 2)
		if err != nil {
			return nil, 0, err
		}
		l, err := d.label(pos + int(int16(binary.BigEndian.Uint16(b))))
		if err != nil {
			return nil, 0, err
		}
		return &JumpInsn{Code: op, Target: l}, 3, nil
	case IsInvoke(int(op)):
		size := 3
		if op == INVOKEINTERFACE {
			size = 5
		}
		b, err := d.operands(pos, size-1)
		if err != nil {
			return nil, 0, err
		}
		owner, name, desc, itf, err := d.pool.MemberRef(binary.BigEndian.Uint16(b))
		if err != nil {
			return nil, 0, err
		}
		return &MethodInsn{Code: op, Owner: owner, Name: name, Desc: desc, Itf: itf}, size, nil
	case op == NEW || op == ANEWARRAY || op == CHECKCAST || op == INSTANCEOF:
		b, err := d.operands(pos, 2)
		if err != nil {
			return nil, 0, err
		}
		name, err := d.pool.ClassName(binary.BigEndian.Uint16(b))
		if err != nil {
			return nil, 0, err
		}
		return &TypeInsn{Code: op, Type: name}, 3, nil
	case op == LDC:
		b, err := d.operands(pos, 1)
		if err != nil {
			return nil, 0, err
		}
		return &LdcInsn{Index: uint16(b[0])}, 2, nil
	case op == LDC_W || op == LDC2_W:
		b, err := d.operands(pos, 2)
		if err != nil {
			return nil, 0, err
		}
		return &LdcInsn{Wide: op == LDC2_W, Index: binary.BigEndian.Uint16(b)}, 3, nil
	}
	n := operandSizes[op]
	if n < 0 {
		return nil, 0, errors.Wrap(ErrBadCode, "unknown opcode")
	}
	b, err := d.operands(pos, n)
	if err != nil {
		return nil, 0, err
	}
	return &Op{Code: op, Operands: append([]byte(nil), b...)}, 1 + n, nil
}

func switchPadding(pos int) int {
	return (4 - (pos+1)%4) % 4
}

func (d *codeDecoder) switchInsn(pos int, op byte) (Instruction, int, error) {
	r := newReader(d.code)
	r.offset = pos + 1 + switchPadding(pos)
	word := func() (int32, error) {
		v, err := r.u32()
		return int32(v), err
	}
	target := func() (*Label, error) {
		rel, err := word()
		if err != nil {
			return nil, err
		}
		return d.label(pos + int(rel))
	}
	s := &SwitchInsn{Code: op}
	var err error
	if s.Default, err = target(); err != nil {
		return nil, 0, err
	}
	if op == TABLESWITCH {
		if s.Low, err = word(); err != nil {
			return nil, 0, err
		}
		if s.High, err = word(); err != nil {
			return nil, 0, err
		}
		n := int64(s.High) - int64(s.Low) + 1
		if n < 0 || n*4 > int64(r.remaining()) {
			return nil, 0, errors.Wrap(ErrBadCode, "tableswitch bounds")
		}
		for i := int64(0); i < n; i++ {
			l, err := target()
			if err != nil {
				return nil, 0, err
			}
			s.Targets = append(s.Targets, l)
		}
	} else {
		npairs, err := word()
		if err != nil {
			return nil, 0, err
		}
		if npairs < 0 || int64(npairs)*8 > int64(r.remaining()) {
			return nil, 0, errors.Wrap(ErrBadCode, "lookupswitch bounds")
		}
		for i := int32(0); i < npairs; i++ {
			key, err := word()
			if err != nil {
				return nil, 0, err
			}
			l, err := target()
			if err != nil {
				return nil, 0, err
			}
			s.Keys = append(s.Keys, key)
			s.Targets = append(s.Targets, l)
		}
	}
	return s, r.offset - pos, nil
}

func (d *codeDecoder) lineNumbers(data []byte) ([]LineNumber, error) {
	r := newReader(data)
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	out := make([]LineNumber, 0, n)
	for i := 0; i < int(n); i++ {
		pc, err := r.u16()
		if err != nil {
			return nil, err
		}
		line, err := r.u16()
		if err != nil {
			return nil, err
		}
		l, err := d.label(int(pc))
		if err != nil {
			return nil, err
		}
		out = append(out, LineNumber{Start: l, Line: line})
	}
	return out, nil
}

func (d *codeDecoder) localVars(data []byte) ([]LocalVar, error) {
	r := newReader(data)
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	out := make([]LocalVar, 0, n)
	for i := 0; i < int(n); i++ {
		var raw [5]uint16
		for j := range raw {
			if raw[j], err = r.u16(); err != nil {
				return nil, err
			}
		}
		lv := LocalVar{Name: raw[2], Desc: raw[3], Index: raw[4]}
		if lv.Start, err = d.label(int(raw[0])); err != nil {
			return nil, err
		}
		if lv.End, err = d.label(int(raw[0]) + int(raw[1])); err != nil {
			return nil, err
		}
		out = append(out, lv)
	}
	return out, nil
}

// encodeCode lays out the instruction list, widening jumps until every
// branch fits, and serializes the Code attribute body. A goto or jsr that
// does not fit becomes goto_w or jsr_w. A conditional branch becomes its
// inverse skipping over a goto_w to the original target; the skipped-to
// offset is a new branch target, so at Full fidelity a method with frames
// needs one already there.
func (c *Class) encodeCode(code *Code, fid Fidelity) ([]byte, error) {
	insns := code.Instructions
	offsets := make([]int, len(insns))
	wide := map[*JumpInsn]bool{}
	length := 0
	for {
		off := 0
		for i, insn := range insns {
			offsets[i] = off
			if l, ok := insn.(*Label); ok {
				l.offset = off
				continue
			}
			off += insnSize(insn, off, wide)
		}
		length = off
		grew := false
		for i, insn := range insns {
			j, ok := insn.(*JumpInsn)
			if !ok || j.Code == GOTO_W || j.Code == JSR_W || wide[j] {
				continue
			}
			delta := j.Target.offset - offsets[i]
			if delta >= -32768 && delta <= 32767 {
				continue
			}
			if j.Code != GOTO && j.Code != JSR && fid == Full && len(code.Frames) > 0 && !framedAfter(code, insns, i) {
				return nil, errors.Wrapf(ErrBranchRange, "opcode 0x%02x at offset %d has no frame at its fall-through", j.Code, offsets[i])
			}
			wide[j] = true
			grew = true
		}
		if !grew {
			break
		}
	}
	if length == 0 || length > 65535 {
		return nil, errors.Wrapf(ErrBadCode, "code length %d", length)
	}

	w := &writer{}
	for i, insn := range insns {
		pos := offsets[i]
		switch v := insn.(type) {
		case *Label:
		case *Op:
			w.u8(v.Code)
			w.write(v.Operands)
		case *MethodInsn:
			w.u8(v.Code)
			w.u16(c.Pool.AddMethodRef(v.Owner, v.Name, v.Desc, v.Itf))
			if v.Code == INVOKEINTERFACE {
				slots, err := ArgSlots(v.Desc)
				if err != nil {
					return nil, err
				}
				w.u8(uint8(slots + 1))
				w.u8(0)
			}
		case *TypeInsn:
			w.u8(v.Code)
			w.u16(c.Pool.AddClass(v.Type))
		case *DynamicInsn:
			bsm := c.addBootstrap(v.Bootstrap, v.Args)
			w.u8(INVOKEDYNAMIC)
			w.u16(c.Pool.AddInvokeDynamic(bsm, v.Name, v.Desc))
			w.u16(0)
		case *JumpInsn:
			delta := v.Target.offset - pos
			switch {
			case v.Code == GOTO_W || v.Code == JSR_W:
				w.u8(v.Code)
				w.u32(uint32(int32(delta)))
			case wide[v] && (v.Code == GOTO || v.Code == JSR):
				w.u8(v.Code + (GOTO_W - GOTO))
				w.u32(uint32(int32(delta)))
			case wide[v]:
				w.u8(invertJump(v.Code))
				w.u16(8)
				w.u8(GOTO_W)
				w.u32(uint32(int32(delta - 3)))
			default:
				w.u8(v.Code)
				w.u16(uint16(int16(delta)))
			}
		case *SwitchInsn:
			w.u8(v.Code)
			for p := 0; p < switchPadding(pos); p++ {
				w.u8(0)
			}
			w.u32(uint32(int32(v.Default.offset - pos)))
			if v.Code == TABLESWITCH {
				w.u32(uint32(v.Low))
				w.u32(uint32(v.High))
				for _, t := range v.Targets {
					w.u32(uint32(int32(t.offset - pos)))
				}
			} else {
				w.u32(uint32(len(v.Keys)))
				for k, key := range v.Keys {
					w.u32(uint32(key))
					w.u32(uint32(int32(v.Targets[k].offset - pos)))
				}
			}
		case *LdcInsn:
			op := v.Opcode()
			w.u8(uint8(op))
			if op == LDC {
				w.u8(uint8(v.Index))
			} else {
				w.u16(v.Index)
			}
		default:
			return nil, errors.Errorf("classfile: unsupported instruction %T", insn)
		}
	}

	out := &writer{}
	out.u16(code.MaxStack)
	out.u16(code.MaxLocals)
	out.u32(uint32(w.len()))
	out.write(w.buf)
	out.u16(uint16(len(code.TryCatch)))
	for _, tc := range code.TryCatch {
		out.u16(uint16(tc.Start.offset))
		out.u16(uint16(tc.End.offset))
		out.u16(uint16(tc.Handler.offset))
		out.u16(tc.CatchType)
	}

	var attrs []Attribute
	if len(code.Lines) > 0 {
		lw := &writer{}
		lw.u16(uint16(len(code.Lines)))
		for _, ln := range code.Lines {
			lw.u16(uint16(ln.Start.offset))
			lw.u16(ln.Line)
		}
		attrs = append(attrs, Attribute{Name: "LineNumberTable", Data: lw.buf})
	}
	if len(code.Locals) > 0 {
		attrs = append(attrs, Attribute{Name: "LocalVariableTable", Data: encodeLocalVars(code.Locals)})
	}
	if len(code.LocalTypes) > 0 {
		attrs = append(attrs, Attribute{Name: "LocalVariableTypeTable", Data: encodeLocalVars(code.LocalTypes)})
	}
	if fid == Full && len(code.Frames) > 0 {
		data, err := encodeFrames(code.Frames)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, Attribute{Name: "StackMapTable", Data: data})
	}
	if err := c.writeAttributes(out, attrs); err != nil {
		return nil, err
	}
	return out.buf, nil
}

// framedAfter reports whether a stack map frame sits on a label directly
// following insns[i].
func framedAfter(code *Code, insns []Instruction, i int) bool {
	for _, insn := range insns[i+1:] {
		l, ok := insn.(*Label)
		if !ok {
			return false
		}
		for _, f := range code.Frames {
			if f.At == l {
				return true
			}
		}
	}
	return false
}

func encodeLocalVars(vars []LocalVar) []byte {
	w := &writer{}
	w.u16(uint16(len(vars)))
	for _, lv := range vars {
		w.u16(uint16(lv.Start.offset))
		w.u16(uint16(lv.End.offset - lv.Start.offset))
		w.u16(lv.Name)
		w.u16(lv.Desc)
		w.u16(lv.Index)
	}
	return w.buf
}

func insnSize(insn Instruction, off int, wide map[*JumpInsn]bool) int {
	switch v := insn.(type) {
	case *Label:
		return 0
	case *Op:
		return 1 + len(v.Operands)
	case *MethodInsn:
		if v.Code == INVOKEINTERFACE {
			return 5
		}
		return 3
	case *TypeInsn:
		return 3
	case *DynamicInsn:
		return 5
	case *JumpInsn:
		switch {
		case v.Code == GOTO_W || v.Code == JSR_W:
			return 5
		case wide[v] && (v.Code == GOTO || v.Code == JSR):
			return 5
		case wide[v]:
			return 8
		}
		return 3
	case *SwitchInsn:
		n := 1 + switchPadding(off) + 4
		if v.Code == TABLESWITCH {
			return n + 8 + 4*len(v.Targets)
		}
		return n + 4 + 8*len(v.Targets)
	case *LdcInsn:
		if v.Opcode() == LDC {
			return 2
		}
		return 3
	}
	return 0
}

// ArgSlots returns the number of local variable slots taken by the declared
// parameters of a method descriptor.
func ArgSlots(desc string) (int, error) {
	params, _, err := ParseMethodDescriptor(desc)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range params {
		if p == "J" || p == "D" {
			n += 2
		} else {
			n++
		}
	}
	return n, nil
}
