package classfile

import "unicode/utf16"

// DecodeModifiedUTF8 converts the raw bytes of a Utf8 constant into the
// UTF-16 code units of the Java string it denotes. Malformed sequences are
// decoded byte by byte rather than rejected.
func DecodeModifiedUTF8(s string) []uint16 {
	units := make([]uint16, 0, len(s))
	for i := 0; i < len(s); {
		b := s[i]
		switch {
		case b&0x80 == 0:
			units = append(units, uint16(b))
			i++
		case b&0xe0 == 0xc0 && i+1 < len(s):
			units = append(units, uint16(b&0x1f)<<6|uint16(s[i+1]&0x3f))
			i += 2
		case b&0xf0 == 0xe0 && i+2 < len(s):
			units = append(units, uint16(b&0x0f)<<12|uint16(s[i+1]&0x3f)<<6|uint16(s[i+2]&0x3f))
			i += 3
		default:
			units = append(units, uint16(b))
			i++
		}
	}
	return units
}

// EncodeModifiedUTF8 is the inverse of DecodeModifiedUTF8: NUL becomes two
// bytes and every unit, surrogates included, is encoded on its own.
func EncodeModifiedUTF8(units []uint16) string {
	out := make([]byte, 0, len(units))
	for _, u := range units {
		switch {
		case u != 0 && u < 0x80:
			out = append(out, byte(u))
		case u < 0x800:
			out = append(out, 0xc0|byte(u>>6), 0x80|byte(u&0x3f))
		default:
			out = append(out, 0xe0|byte(u>>12), 0x80|byte(u>>6&0x3f), 0x80|byte(u&0x3f))
		}
	}
	return string(out)
}

// JavaString converts a Go string to a raw Utf8 constant value.
func JavaString(s string) string {
	return EncodeModifiedUTF8(utf16.Encode([]rune(s)))
}

// GoString converts a raw Utf8 constant value to a Go string. Unpaired
// surrogates become U+FFFD.
func GoString(s string) string {
	return string(utf16.Decode(DecodeModifiedUTF8(s)))
}
