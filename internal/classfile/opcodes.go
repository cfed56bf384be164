package classfile

// JVM opcodes referenced by name in this module. The full operand layout of
// every opcode lives in operandSizes.
const (
	NOP             = 0x00
	ACONST_NULL     = 0x01
	ICONST_M1       = 0x02
	ICONST_0        = 0x03
	ICONST_1        = 0x04
	ICONST_2        = 0x05
	ICONST_3        = 0x06
	ICONST_4        = 0x07
	ICONST_5        = 0x08
	BIPUSH          = 0x10
	SIPUSH          = 0x11
	LDC             = 0x12
	LDC_W           = 0x13
	LDC2_W          = 0x14
	ILOAD           = 0x15
	ALOAD           = 0x19
	ILOAD_0         = 0x1a
	ILOAD_1         = 0x1b
	ILOAD_2         = 0x1c
	ILOAD_3         = 0x1d
	ALOAD_0         = 0x2a
	ALOAD_1         = 0x2b
	ALOAD_2         = 0x2c
	ALOAD_3         = 0x2d
	AALOAD          = 0x32
	CALOAD          = 0x34
	ISTORE          = 0x36
	ASTORE          = 0x3a
	ISTORE_0        = 0x3b
	ASTORE_3        = 0x4e
	CASTORE         = 0x55
	POP             = 0x57
	POP2            = 0x58
	DUP             = 0x59
	IADD            = 0x60
	IMUL            = 0x68
	IREM            = 0x70
	IXOR            = 0x82
	IINC            = 0x84
	I2C             = 0x92
	IFEQ            = 0x99
	IFNE            = 0x9a
	IF_ICMPEQ       = 0x9f
	IF_ICMPNE       = 0xa0
	IF_ICMPLT       = 0xa1
	IF_ICMPGE       = 0xa2
	GOTO            = 0xa7
	JSR             = 0xa8
	RET             = 0xa9
	TABLESWITCH     = 0xaa
	LOOKUPSWITCH    = 0xab
	IRETURN         = 0xac
	ARETURN         = 0xb0
	RETURN          = 0xb1
	GETSTATIC       = 0xb2
	PUTSTATIC       = 0xb3
	GETFIELD        = 0xb4
	PUTFIELD        = 0xb5
	INVOKEVIRTUAL   = 0xb6
	INVOKESPECIAL   = 0xb7
	INVOKESTATIC    = 0xb8
	INVOKEINTERFACE = 0xb9
	INVOKEDYNAMIC   = 0xba
	NEW             = 0xbb
	NEWARRAY        = 0xbc
	ANEWARRAY       = 0xbd
	ARRAYLENGTH     = 0xbe
	ATHROW          = 0xbf
	CHECKCAST       = 0xc0
	INSTANCEOF      = 0xc1
	WIDE            = 0xc4
	MULTIANEWARRAY  = 0xc5
	IFNULL          = 0xc6
	IFNONNULL       = 0xc7
	GOTO_W          = 0xc8
	JSR_W           = 0xc9
)

const (
	opInvalid = -1
	opSwitch  = -2
	opWide    = -3
)

// operandSizes maps an opcode to the number of operand bytes that follow it.
var operandSizes = func() [256]int {
	var t [256]int
	for i := range t {
		t[i] = opInvalid
	}
	// no operands: constants, array loads/stores, stack, arithmetic,
	// conversions, comparisons, returns, misc
	for op := 0x00; op <= 0x0f; op++ {
		t[op] = 0
	}
	for op := 0x1a; op <= 0x35; op++ {
		t[op] = 0
	}
	for op := 0x3b; op <= 0x83; op++ {
		t[op] = 0
	}
	for op := 0x85; op <= 0x98; op++ {
		t[op] = 0
	}
	for op := 0xac; op <= 0xb1; op++ {
		t[op] = 0
	}
	t[ARRAYLENGTH] = 0
	t[ATHROW] = 0
	t[0xc2] = 0 // monitorenter
	t[0xc3] = 0 // monitorexit

	t[BIPUSH] = 1
	t[SIPUSH] = 2
	t[LDC] = 1
	t[LDC_W] = 2
	t[LDC2_W] = 2
	for op := 0x15; op <= 0x19; op++ { // xload
		t[op] = 1
	}
	for op := 0x36; op <= 0x3a; op++ { // xstore
		t[op] = 1
	}
	t[IINC] = 2
	for op := 0x99; op <= 0xa8; op++ { // if<cond>, if_<cmp>, goto, jsr
		t[op] = 2
	}
	t[RET] = 1
	t[TABLESWITCH] = opSwitch
	t[LOOKUPSWITCH] = opSwitch
	for op := GETSTATIC; op <= INVOKESPECIAL+1; op++ { // field insns, invokevirtual/special/static
		t[op] = 2
	}
	t[INVOKEINTERFACE] = 4
	t[INVOKEDYNAMIC] = 4
	t[NEW] = 2
	t[NEWARRAY] = 1
	t[ANEWARRAY] = 2
	t[CHECKCAST] = 2
	t[INSTANCEOF] = 2
	t[WIDE] = opWide
	t[MULTIANEWARRAY] = 3
	t[IFNULL] = 2
	t[IFNONNULL] = 2
	t[GOTO_W] = 4
	t[JSR_W] = 4
	return t
}()

func isJump(op byte) bool {
	return (op >= IFEQ && op <= JSR) || op == IFNULL || op == IFNONNULL || op == GOTO_W || op == JSR_W
}

// invertJump returns the conditional branch taken exactly when op is not.
func invertJump(op byte) byte {
	if op == IFNULL || op == IFNONNULL {
		return op ^ 1
	}
	return IFEQ + ((op - IFEQ) ^ 1)
}

// IsInvoke reports whether op is one of the method invocation opcodes that
// reference a Methodref or InterfaceMethodref.
func IsInvoke(op int) bool {
	return op >= INVOKEVIRTUAL && op <= INVOKEINTERFACE
}
