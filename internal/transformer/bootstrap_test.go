package transformer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/jvmmixer/internal/classfile"
)

func TestBootstrapClassEncodes(t *testing.T) {
	c := buildBootstrapClass("Qx7")
	data, err := c.Encode(classfile.Full)
	require.NoError(t, err)

	parsed, err := classfile.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "Qx7", parsed.Name)
	assert.Equal(t, uint16(classfile.Java5), parsed.Major)
	assert.Equal(t, uint16(classfile.AccPublic|classfile.AccFinal|classfile.AccSuper), parsed.Access)
	assert.Equal(t, "java/lang/Object", parsed.Super)

	a := parsed.Method(decryptName, decryptDesc)
	require.NotNil(t, a)
	assert.Equal(t, uint16(classfile.AccPrivate|classfile.AccStatic), a.Access)
	require.NotNil(t, a.Code)
	assert.Empty(t, a.Code.Frames)

	var sw *classfile.SwitchInsn
	for _, insn := range a.Code.Instructions {
		if s, ok := insn.(*classfile.SwitchInsn); ok {
			sw = s
		}
	}
	require.NotNil(t, sw, "decryptor selects its key with a tableswitch")
	assert.Equal(t, byte(classfile.TABLESWITCH), sw.Code)
	assert.Equal(t, int32(0), sw.Low)
	assert.Equal(t, int32(4), sw.High)
	assert.Len(t, sw.Targets, 5)

	b := parsed.Method(bootstrapName, bootstrapDesc)
	require.NotNil(t, b)
	assert.Equal(t, uint16(classfile.AccPublic|classfile.AccStatic), b.Access)

	var calls []string
	for _, insn := range b.Code.Instructions {
		if m, ok := insn.(*classfile.MethodInsn); ok {
			calls = append(calls, m.Owner+"."+m.Name)
		}
	}
	assert.Contains(t, calls, "Qx7.a")
	assert.Contains(t, calls, "java/lang/invoke/MethodHandles$Lookup.findStatic")
	assert.Contains(t, calls, "java/lang/invoke/MethodHandles$Lookup.findVirtual")
	assert.Contains(t, calls, "java/lang/Throwable.getStackTrace")
	assert.Contains(t, calls, "java/lang/invoke/ConstantCallSite.<init>")
}

func TestBootstrapGeneratorIsLazy(t *testing.T) {
	ctx := newTestContext(t, nil)
	boot := ctx.Bootstrap()
	assert.False(t, boot.Used())
	assert.Nil(t, boot.Class())
	assert.False(t, boot.IsSynthetic(""))

	h1, err := boot.Handle()
	require.NoError(t, err)
	h2, err := boot.Handle()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	require.NotNil(t, boot.Class())
	name := boot.Class().Name
	assert.NotEmpty(t, name)
	assert.True(t, boot.IsSynthetic(name))
	_, emitted := ctx.reg.Class(name)
	assert.True(t, emitted)
	classes, _, _ := ctx.reg.Stats()
	assert.Equal(t, 1, classes)
}
