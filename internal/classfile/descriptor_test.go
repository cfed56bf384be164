package classfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethodDescriptor(t *testing.T) {
	tests := []struct {
		name   string
		desc   string
		params []string
		ret    string
	}{
		{"no args", "()V", nil, "V"},
		{"primitives", "(IJD)Z", []string{"I", "J", "D"}, "Z"},
		{"objects", "(Ljava/lang/String;[I)Ljava/lang/Object;", []string{"Ljava/lang/String;", "[I"}, "Ljava/lang/Object;"},
		{"nested arrays", "([[Ljava/util/List;)[[B", []string{"[[Ljava/util/List;"}, "[[B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, ret, err := ParseMethodDescriptor(tt.desc)
			require.NoError(t, err)
			assert.Equal(t, tt.params, params)
			assert.Equal(t, tt.ret, ret)
			assert.Equal(t, tt.desc, MethodDescriptor(params, ret))
		})
	}

	for _, bad := range []string{"", "V", "(I", "(Q)V", "(L;)V", "()", "()II"} {
		_, _, err := ParseMethodDescriptor(bad)
		assert.Error(t, err, "descriptor %q", bad)
	}
}

func TestArgSlots(t *testing.T) {
	n, err := ArgSlots("(IJLjava/lang/Object;D[J)V")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestTypeNames(t *testing.T) {
	assert.Equal(t, "java/lang/String", InternalName("Ljava/lang/String;"))
	assert.Equal(t, "[I", InternalName("[I"))
	assert.Equal(t, "Ljava/lang/String;", TypeOf("java/lang/String"))
	assert.Equal(t, "[Ljava/lang/String;", TypeOf("[Ljava/lang/String;"))
	assert.Equal(t, "a.b.C$D", DottedName("a/b/C$D"))
	assert.True(t, IsReference("[I"))
	assert.True(t, IsArray("[I"))
	assert.False(t, IsReference("I"))
}

func TestModifiedUTF8(t *testing.T) {
	units := []uint16{'a', 0x0000, 0x00e9, 0x20ac, 0xd800, 0xdfff, 0xffff}
	raw := EncodeModifiedUTF8(units)
	assert.Equal(t, "\xc0\x80", raw[1:3], "NUL is encoded in two bytes")
	assert.Equal(t, units, DecodeModifiedUTF8(raw))

	assert.Equal(t, "hello", JavaString("hello"))
	assert.Equal(t, "café", GoString(JavaString("café")))
	// supplementary characters travel as a surrogate pair of 3-byte units
	assert.Len(t, JavaString("\U0001F600"), 6)
	assert.Equal(t, "\U0001F600", GoString(JavaString("\U0001F600")))
}
