// Package classfile reads and writes JVM class files.
//
// A parsed Class keeps the constant pool it was read with and only appends
// to it, so attributes that are not modelled (annotations, signatures,
// nest members, ...) are carried through as raw bytes and stay valid. Method
// bodies are decoded into an Instruction list whose branch targets, exception
// ranges, debug tables and stack map frames are expressed through *Label
// values; Encode lays the list out again and recomputes every offset.
package classfile

import (
	"math"

	"github.com/pkg/errors"
)

// Magic is the first word of every class file.
const Magic = 0xCAFEBABE

// Access flags.
const (
	AccPublic       = 0x0001
	AccPrivate      = 0x0002
	AccProtected    = 0x0004
	AccStatic       = 0x0008
	AccFinal        = 0x0010
	AccSuper        = 0x0020
	AccSynchronized = 0x0020
	AccBridge       = 0x0040
	AccVarargs      = 0x0080
	AccNative       = 0x0100
	AccInterface    = 0x0200
	AccAbstract     = 0x0400
	AccStrict       = 0x0800
	AccSynthetic    = 0x1000
	AccAnnotation   = 0x2000
	AccEnum         = 0x4000
)

// Class file major versions.
const (
	Java5 = 49
	Java6 = 50
	Java7 = 51
)

// ErrBadMagic is returned when data does not start with 0xCAFEBABE.
var ErrBadMagic = errors.New("classfile: bad magic")

// Fidelity selects how much derived metadata Encode writes.
type Fidelity int

const (
	// Full relocates and writes stack map frames.
	Full Fidelity = iota
	// Reduced drops StackMapTable attributes. Classes at version 50 and
	// above then rely on the JVM's fallback or -noverify.
	Reduced
)

// Attribute is an attribute kept as raw bytes.
type Attribute struct {
	Name string
	Data []byte
}

// Field is a field_info structure.
type Field struct {
	Access     uint16
	Name       string
	Desc       string
	Attributes []Attribute
}

// Method is a method_info structure. Code is nil for abstract and native
// methods.
type Method struct {
	Owner      *Class
	Access     uint16
	Name       string
	Desc       string
	Code       *Code
	Attributes []Attribute
}

// IsStatic reports whether the method has ACC_STATIC.
func (m *Method) IsStatic() bool {
	return m.Access&AccStatic != 0
}

// InnerClass is one record of the InnerClasses attribute. Fields are raw
// pool indices.
type InnerClass struct {
	Inner     uint16
	Outer     uint16
	InnerName uint16
	Access    uint16
}

// BootstrapMethod is one entry of the BootstrapMethods attribute.
type BootstrapMethod struct {
	Ref  uint16
	Args []uint16
}

// Class is a parsed class file.
type Class struct {
	Minor        uint16
	Major        uint16
	Access       uint16
	Name         string // internal form, a/b/C
	Super        string // empty for java/lang/Object
	Interfaces   []string
	Fields       []*Field
	Methods      []*Method
	InnerClasses []InnerClass
	Bootstraps   []BootstrapMethod
	Attributes   []Attribute
	Pool         *Pool
}

// NewClass returns an empty class with a fresh pool.
func NewClass(name, super string, major, access uint16) *Class {
	return &Class{Major: major, Access: access, Name: name, Super: super, Pool: NewPool()}
}

// AddMethod appends a method to c and returns it.
func (c *Class) AddMethod(access uint16, name, desc string, code *Code) *Method {
	m := &Method{Owner: c, Access: access, Name: name, Desc: desc, Code: code}
	c.Methods = append(c.Methods, m)
	return m
}

// Method returns the first method with the given name and descriptor.
func (c *Class) Method(name, desc string) *Method {
	for _, m := range c.Methods {
		if m.Name == name && m.Desc == desc {
			return m
		}
	}
	return nil
}

// Parse decodes a class file.
func Parse(data []byte) (*Class, error) {
	r := newReader(data)
	magic, err := r.u32()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, ErrBadMagic
	}
	c := &Class{}
	if c.Minor, err = r.u16(); err != nil {
		return nil, err
	}
	if c.Major, err = r.u16(); err != nil {
		return nil, err
	}
	if c.Pool, err = parsePool(r); err != nil {
		return nil, errors.Wrap(err, "constant pool")
	}
	if c.Access, err = r.u16(); err != nil {
		return nil, err
	}
	this, err := r.u16()
	if err != nil {
		return nil, err
	}
	if c.Name, err = c.Pool.ClassName(this); err != nil {
		return nil, errors.Wrap(err, "this_class")
	}
	super, err := r.u16()
	if err != nil {
		return nil, err
	}
	if super != 0 {
		if c.Super, err = c.Pool.ClassName(super); err != nil {
			return nil, errors.Wrap(err, "super_class")
		}
	}
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		idx, err := r.u16()
		if err != nil {
			return nil, err
		}
		name, err := c.Pool.ClassName(idx)
		if err != nil {
			return nil, errors.Wrap(err, "interfaces")
		}
		c.Interfaces = append(c.Interfaces, name)
	}

	if n, err = r.u16(); err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		f := &Field{}
		if f.Access, f.Name, f.Desc, err = c.memberHeader(r); err != nil {
			return nil, errors.Wrap(err, "field")
		}
		if f.Attributes, err = c.parseAttributes(r); err != nil {
			return nil, errors.Wrapf(err, "field %s", f.Name)
		}
		c.Fields = append(c.Fields, f)
	}

	if n, err = r.u16(); err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		m := &Method{Owner: c}
		if m.Access, m.Name, m.Desc, err = c.memberHeader(r); err != nil {
			return nil, errors.Wrap(err, "method")
		}
		attrs, err := c.parseAttributes(r)
		if err != nil {
			return nil, errors.Wrapf(err, "method %s%s", m.Name, m.Desc)
		}
		for _, a := range attrs {
			if a.Name == "Code" && m.Code == nil {
				if m.Code, err = decodeCode(c.Pool, a.Data); err != nil {
					return nil, errors.Wrapf(err, "method %s%s", m.Name, m.Desc)
				}
				continue
			}
			m.Attributes = append(m.Attributes, a)
		}
		c.Methods = append(c.Methods, m)
	}

	attrs, err := c.parseAttributes(r)
	if err != nil {
		return nil, errors.Wrap(err, "class attributes")
	}
	for _, a := range attrs {
		switch a.Name {
		case "InnerClasses":
			if c.InnerClasses, err = parseInnerClasses(a.Data); err != nil {
				return nil, errors.Wrap(err, "InnerClasses")
			}
		case "BootstrapMethods":
			if c.Bootstraps, err = parseBootstrapMethods(a.Data); err != nil {
				return nil, errors.Wrap(err, "BootstrapMethods")
			}
		default:
			c.Attributes = append(c.Attributes, a)
		}
	}
	return c, nil
}

func (c *Class) memberHeader(r *reader) (access uint16, name, desc string, err error) {
	if access, err = r.u16(); err != nil {
		return
	}
	idx, err := r.u16()
	if err != nil {
		return
	}
	if name, err = c.Pool.Utf8(idx); err != nil {
		return
	}
	if idx, err = r.u16(); err != nil {
		return
	}
	desc, err = c.Pool.Utf8(idx)
	return
}

func (c *Class) parseAttributes(r *reader) ([]Attribute, error) {
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	attrs := make([]Attribute, 0, n)
	for i := 0; i < int(n); i++ {
		idx, err := r.u16()
		if err != nil {
			return nil, err
		}
		name, err := c.Pool.Utf8(idx)
		if err != nil {
			return nil, err
		}
		size, err := r.u32()
		if err != nil {
			return nil, err
		}
		data, err := r.bytes(int(size))
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, Attribute{Name: name, Data: data})
	}
	return attrs, nil
}

func parseInnerClasses(data []byte) ([]InnerClass, error) {
	r := newReader(data)
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	out := make([]InnerClass, 0, n)
	for i := 0; i < int(n); i++ {
		var ic InnerClass
		for _, dst := range []*uint16{&ic.Inner, &ic.Outer, &ic.InnerName, &ic.Access} {
			if *dst, err = r.u16(); err != nil {
				return nil, err
			}
		}
		out = append(out, ic)
	}
	return out, nil
}

func parseBootstrapMethods(data []byte) ([]BootstrapMethod, error) {
	r := newReader(data)
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	out := make([]BootstrapMethod, 0, n)
	for i := 0; i < int(n); i++ {
		var bm BootstrapMethod
		if bm.Ref, err = r.u16(); err != nil {
			return nil, err
		}
		argc, err := r.u16()
		if err != nil {
			return nil, err
		}
		for j := 0; j < int(argc); j++ {
			a, err := r.u16()
			if err != nil {
				return nil, err
			}
			bm.Args = append(bm.Args, a)
		}
		out = append(out, bm)
	}
	return out, nil
}

// addBootstrap returns the index of a BootstrapMethods entry, appending one
// if no identical entry exists.
func (c *Class) addBootstrap(h Handle, args []BootstrapArg) uint16 {
	bm := BootstrapMethod{Ref: c.Pool.AddMethodHandle(h)}
	for _, a := range args {
		bm.Args = append(bm.Args, a.poolIndex(c.Pool))
	}
	for i, existing := range c.Bootstraps {
		if existing.Ref == bm.Ref && equalIndices(existing.Args, bm.Args) {
			return uint16(i)
		}
	}
	c.Bootstraps = append(c.Bootstraps, bm)
	return uint16(len(c.Bootstraps) - 1)
}

func equalIndices(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Encode serializes c. New constants needed by rewritten code are appended to
// c.Pool as a side effect; encoding the same class twice yields the same
// bytes.
func (c *Class) Encode(fid Fidelity) ([]byte, error) {
	body := &writer{}
	body.u16(c.Access)
	body.u16(c.Pool.AddClass(c.Name))
	if c.Super == "" {
		body.u16(0)
	} else {
		body.u16(c.Pool.AddClass(c.Super))
	}
	body.u16(uint16(len(c.Interfaces)))
	for _, itf := range c.Interfaces {
		body.u16(c.Pool.AddClass(itf))
	}

	body.u16(uint16(len(c.Fields)))
	for _, f := range c.Fields {
		body.u16(f.Access)
		body.u16(c.Pool.AddUtf8(f.Name))
		body.u16(c.Pool.AddUtf8(f.Desc))
		if err := c.writeAttributes(body, f.Attributes); err != nil {
			return nil, errors.Wrapf(err, "field %s", f.Name)
		}
	}

	body.u16(uint16(len(c.Methods)))
	for _, m := range c.Methods {
		body.u16(m.Access)
		body.u16(c.Pool.AddUtf8(m.Name))
		body.u16(c.Pool.AddUtf8(m.Desc))
		attrs := m.Attributes
		if m.Code != nil {
			code, err := c.encodeCode(m.Code, fid)
			if err != nil {
				return nil, errors.Wrapf(err, "method %s%s", m.Name, m.Desc)
			}
			attrs = append([]Attribute{{Name: "Code", Data: code}}, attrs...)
		}
		if err := c.writeAttributes(body, attrs); err != nil {
			return nil, errors.Wrapf(err, "method %s%s", m.Name, m.Desc)
		}
	}

	attrs := append([]Attribute(nil), c.Attributes...)
	if len(c.InnerClasses) > 0 {
		w := &writer{}
		w.u16(uint16(len(c.InnerClasses)))
		for _, ic := range c.InnerClasses {
			w.u16(ic.Inner)
			w.u16(ic.Outer)
			w.u16(ic.InnerName)
			w.u16(ic.Access)
		}
		attrs = append(attrs, Attribute{Name: "InnerClasses", Data: w.buf})
	}
	if len(c.Bootstraps) > 0 {
		w := &writer{}
		w.u16(uint16(len(c.Bootstraps)))
		for _, bm := range c.Bootstraps {
			w.u16(bm.Ref)
			w.u16(uint16(len(bm.Args)))
			for _, a := range bm.Args {
				w.u16(a)
			}
		}
		attrs = append(attrs, Attribute{Name: "BootstrapMethods", Data: w.buf})
	}
	if err := c.writeAttributes(body, attrs); err != nil {
		return nil, err
	}

	out := &writer{}
	out.u32(Magic)
	out.u16(c.Minor)
	out.u16(c.Major)
	if err := c.Pool.encode(out); err != nil {
		return nil, err
	}
	out.write(body.buf)
	return out.buf, nil
}

func (c *Class) writeAttributes(w *writer, attrs []Attribute) error {
	w.u16(uint16(len(attrs)))
	for _, a := range attrs {
		if int64(len(a.Data)) > math.MaxUint32 {
			return errors.Errorf("classfile: attribute %s too large", a.Name)
		}
		w.u16(c.Pool.AddUtf8(a.Name))
		w.u32(uint32(len(a.Data)))
		w.write(a.Data)
	}
	return nil
}
