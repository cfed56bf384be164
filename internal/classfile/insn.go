package classfile

// Instruction is one element of a method body. Concrete variants are *Label,
// *Op, *MethodInsn, *TypeInsn, *DynamicInsn, *JumpInsn, *SwitchInsn and
// *LdcInsn.
type Instruction interface {
	// Opcode returns the JVM opcode, or -1 for labels.
	Opcode() int
}

// Label marks a position in the instruction list. Branch targets, exception
// ranges, line numbers, local variable ranges and stack map frames all refer
// to labels so that offsets can be recomputed after a rewrite.
type Label struct {
	offset int
}

func (*Label) Opcode() int { return -1 }

// Offset returns the bytecode offset assigned by the last decode or encode.
func (l *Label) Offset() int { return l.offset }

// Op is an instruction whose operands need no relocation: constant pool
// indices stay valid because the pool is append-only.
type Op struct {
	Code     byte
	Operands []byte
}

func (o *Op) Opcode() int { return int(o.Code) }

// NewOp returns an Op with the given operand bytes.
func NewOp(code byte, operands ...byte) *Op {
	return &Op{Code: code, Operands: operands}
}

// MethodInsn is invokevirtual, invokespecial, invokestatic or
// invokeinterface.
type MethodInsn struct {
	Code  byte
	Owner string
	Name  string
	Desc  string
	Itf   bool // owner is an interface (InterfaceMethodref)
}

func (m *MethodInsn) Opcode() int { return int(m.Code) }

// HasReceiver reports whether the call consumes an object reference in
// addition to its declared arguments.
func (m *MethodInsn) HasReceiver() bool {
	return m.Code != INVOKESTATIC
}

// TypeInsn is new, anewarray, checkcast or instanceof.
type TypeInsn struct {
	Code byte
	Type string // internal name, or an array descriptor
}

func (t *TypeInsn) Opcode() int { return int(t.Code) }

// BootstrapArg is a static argument of a bootstrap method.
type BootstrapArg interface {
	poolIndex(p *Pool) uint16
}

// IntArg is an Integer bootstrap argument.
type IntArg int32

func (a IntArg) poolIndex(p *Pool) uint16 { return p.AddInteger(int32(a)) }

// StringArg is a String bootstrap argument holding a raw Utf8 value.
type StringArg string

func (a StringArg) poolIndex(p *Pool) uint16 { return p.AddString(string(a)) }

// Handle is a method handle constant.
type Handle struct {
	Kind  uint8
	Owner string
	Name  string
	Desc  string
	Itf   bool
}

// DynamicInsn is an invokedynamic created by a transformer. Call sites that
// already exist in a class are kept as *Op, since their bootstrap entries
// are never renumbered.
type DynamicInsn struct {
	Name      string
	Desc      string
	Bootstrap Handle
	Args      []BootstrapArg
}

func (*DynamicInsn) Opcode() int { return INVOKEDYNAMIC }

// JumpInsn is a conditional or unconditional branch. goto and jsr are
// widened to their _w forms when the target is out of 16-bit range.
type JumpInsn struct {
	Code   byte
	Target *Label
}

func (j *JumpInsn) Opcode() int { return int(j.Code) }

// SwitchInsn is tableswitch (Keys nil, Low..High) or lookupswitch.
type SwitchInsn struct {
	Code    byte
	Default *Label
	Low     int32
	High    int32
	Keys    []int32
	Targets []*Label
}

func (s *SwitchInsn) Opcode() int { return int(s.Code) }

// LdcInsn loads a constant by pool index. The short form is chosen on
// encode whenever the index fits.
type LdcInsn struct {
	Wide  bool // ldc2_w
	Index uint16
}

func (l *LdcInsn) Opcode() int {
	switch {
	case l.Wide:
		return LDC2_W
	case l.Index > 0xff:
		return LDC_W
	}
	return LDC
}
