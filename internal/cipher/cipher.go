// Package cipher implements the reversible identifier transform applied to
// the owner, name and descriptor of every rewritten call site.
//
// Each UTF-16 code unit at index i is XORed with a key chosen by i mod 5:
//
//	0: 2
//	1: classHash
//	2: methodHash
//	3: classHash + methodHash
//	4: i
//
// where classHash and methodHash are String.hashCode of the calling class
// (dotted binary name) and the calling method name. The result is truncated
// to 16 bits, so applying the transform twice with the same keys returns the
// input. The generated decryptor class performs the same computation at run
// time.
package cipher

import (
	"fmt"

	"github.com/pkg/errors"
)

// ScheduleLen is the period of the key schedule.
const ScheduleLen = 5

// ErrKeyIndex is the panic value for a schedule lookup outside 0..4.
var ErrKeyIndex = errors.New("cipher: key schedule index out of range")

// Keys is the per call site key schedule.
type Keys struct {
	ClassHash  int32
	MethodHash int32
}

// NewKeys derives the schedule for a call site in className.methodName.
// className may be given in internal or dotted form.
func NewKeys(className, methodName []uint16) Keys {
	dotted := make([]uint16, len(className))
	for i, u := range className {
		if u == '/' {
			u = '.'
		}
		dotted[i] = u
	}
	return Keys{ClassHash: HashCode(dotted), MethodHash: HashCode(methodName)}
}

// Key returns the XOR key for schedule slot i mod 5 of position pos.
func (k Keys) Key(slot, pos int) int32 {
	switch slot {
	case 0:
		return 2
	case 1:
		return k.ClassHash
	case 2:
		return k.MethodHash
	case 3:
		return k.ClassHash + k.MethodHash
	case 4:
		return int32(pos)
	}
	panic(errors.Wrap(ErrKeyIndex, fmt.Sprintf("slot %d", slot)))
}

// Apply transforms units with the schedule. It is its own inverse.
func (k Keys) Apply(units []uint16) []uint16 {
	out := make([]uint16, len(units))
	for i, u := range units {
		out[i] = uint16(int32(u) ^ k.Key(i%ScheduleLen, i))
	}
	return out
}

// HashCode computes java.lang.String#hashCode over UTF-16 code units.
func HashCode(units []uint16) int32 {
	var h int32
	for _, u := range units {
		h = 31*h + int32(u)
	}
	return h
}
