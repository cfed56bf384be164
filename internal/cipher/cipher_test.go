package cipher

import (
	"math/rand"
	"testing"
	"unicode/utf16"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func units(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

func TestHashCodeMatchesJava(t *testing.T) {
	tests := []struct {
		in   string
		want int32
	}{
		{"", 0},
		{"a", 97},
		{"hello", 99162322},
		{"Aa", 2112},
		{"BB", 2112},
		{"polygenelubricants", -2147483648},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HashCode(units(tt.in)), "hash of %q", tt.in)
	}
}

func TestScheduleSlots(t *testing.T) {
	k := Keys{ClassHash: 1000, MethodHash: -7}
	assert.Equal(t, int32(2), k.Key(0, 10))
	assert.Equal(t, int32(1000), k.Key(1, 11))
	assert.Equal(t, int32(-7), k.Key(2, 12))
	assert.Equal(t, int32(993), k.Key(3, 13))
	assert.Equal(t, int32(14), k.Key(4, 14))

	wrap := Keys{ClassHash: 2147483647, MethodHash: 1}
	assert.Equal(t, int32(-2147483648), wrap.Key(3, 0), "sum wraps like Java int arithmetic")
}

func TestScheduleIndexPanics(t *testing.T) {
	k := Keys{}
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, ErrKeyIndex))
	}()
	k.Key(ScheduleLen, 0)
}

func TestApplyKnownValue(t *testing.T) {
	k := Keys{}
	// slot 0 flips bit 1, slot 1 (classHash 0) leaves the unit alone
	assert.Equal(t, units("cb"), k.Apply(units("ab")))
}

func TestApplyIsSelfInverse(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		n := rng.Intn(64)
		in := make([]uint16, n)
		for j := range in {
			in[j] = uint16(rng.Intn(0x10000))
		}
		k := Keys{ClassHash: rng.Int31() - rng.Int31(), MethodHash: rng.Int31() - rng.Int31()}
		enc := k.Apply(in)
		assert.Equal(t, in, k.Apply(enc))
	}
}

func TestNewKeysUsesDottedClassName(t *testing.T) {
	internal := NewKeys(units("com/acme/Main"), units("run"))
	dotted := NewKeys(units("com.acme.Main"), units("run"))
	assert.Equal(t, dotted, internal)
	assert.Equal(t, HashCode(units("com.acme.Main")), internal.ClassHash)
	assert.Equal(t, HashCode(units("run")), internal.MethodHash)
}

func TestRoundTripIdentifiers(t *testing.T) {
	k := NewKeys(units("com.acme.Main"), units("main"))
	for _, id := range []string{"java.io.PrintStream", "println", "(Ljava/lang/String;)V", "<init>", "ünïcödé"} {
		enc := k.Apply(units(id))
		assert.NotEqual(t, units(id), enc)
		assert.Equal(t, id, string(utf16.Decode(k.Apply(enc))))
	}
}
