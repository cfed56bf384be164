package classfile

import (
	"strings"

	"github.com/pkg/errors"
)

// ObjectType is the descriptor of java.lang.Object.
const ObjectType = "Ljava/lang/Object;"

// ErrBadDescriptor is returned for malformed field or method descriptors.
var ErrBadDescriptor = errors.New("classfile: malformed descriptor")

// ParseMethodDescriptor splits "(params)ret" into its parameter type
// descriptors and return type descriptor.
func ParseMethodDescriptor(desc string) (params []string, ret string, err error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, "", errors.Wrap(ErrBadDescriptor, desc)
	}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		n, err := fieldTypeLen(desc[i:])
		if err != nil {
			return nil, "", errors.Wrap(err, desc)
		}
		params = append(params, desc[i:i+n])
		i += n
	}
	if i >= len(desc) {
		return nil, "", errors.Wrap(ErrBadDescriptor, desc)
	}
	ret = desc[i+1:]
	if ret != "V" {
		n, err := fieldTypeLen(ret)
		if err != nil || n != len(ret) {
			return nil, "", errors.Wrap(ErrBadDescriptor, desc)
		}
	}
	return params, ret, nil
}

func fieldTypeLen(s string) (int, error) {
	dims := 0
	for dims < len(s) && s[dims] == '[' {
		dims++
	}
	if dims >= len(s) {
		return 0, ErrBadDescriptor
	}
	switch s[dims] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return dims + 1, nil
	case 'L':
		end := strings.IndexByte(s[dims:], ';')
		if end < 2 {
			return 0, ErrBadDescriptor
		}
		return dims + end + 1, nil
	}
	return 0, ErrBadDescriptor
}

// MethodDescriptor joins parameter and return descriptors.
func MethodDescriptor(params []string, ret string) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range params {
		sb.WriteString(p)
	}
	sb.WriteByte(')')
	sb.WriteString(ret)
	return sb.String()
}

// IsReference reports whether a field descriptor denotes an object or array
// type.
func IsReference(t string) bool {
	return strings.HasPrefix(t, "L") || strings.HasPrefix(t, "[")
}

// IsArray reports whether a field descriptor denotes an array type.
func IsArray(t string) bool {
	return strings.HasPrefix(t, "[")
}

// InternalName returns the name used by Class constants for a reference type
// descriptor: "Ljava/lang/String;" becomes "java/lang/String" and array
// descriptors are returned unchanged.
func InternalName(t string) string {
	if strings.HasPrefix(t, "L") && strings.HasSuffix(t, ";") {
		return t[1 : len(t)-1]
	}
	return t
}

// TypeOf returns the field descriptor for an internal name, the inverse of
// InternalName.
func TypeOf(internal string) string {
	if strings.HasPrefix(internal, "[") {
		return internal
	}
	return "L" + internal + ";"
}

// DottedName converts an internal name to the binary name used by
// Class.forName and Class.getName.
func DottedName(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}
