package classfile

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// ConstantTag identifies the kind of a constant pool entry.
type ConstantTag uint8

const (
	TagUtf8               ConstantTag = 1
	TagInteger            ConstantTag = 3
	TagFloat              ConstantTag = 4
	TagLong               ConstantTag = 5
	TagDouble             ConstantTag = 6
	TagClass              ConstantTag = 7
	TagString             ConstantTag = 8
	TagFieldref           ConstantTag = 9
	TagMethodref          ConstantTag = 10
	TagInterfaceMethodref ConstantTag = 11
	TagNameAndType        ConstantTag = 12
	TagMethodHandle       ConstantTag = 15
	TagMethodType         ConstantTag = 16
	TagDynamic            ConstantTag = 17
	TagInvokeDynamic      ConstantTag = 18
	TagModule             ConstantTag = 19
	TagPackage            ConstantTag = 20
)

// MethodHandle reference kinds.
const (
	RefGetField         = 1
	RefGetStatic        = 2
	RefPutField         = 3
	RefPutStatic        = 4
	RefInvokeVirtual    = 5
	RefInvokeStatic     = 6
	RefInvokeSpecial    = 7
	RefNewInvokeSpecial = 8
	RefInvokeInterface  = 9
)

// ErrBadPool is returned when an index does not reference a constant of the
// expected kind.
var ErrBadPool = errors.New("classfile: bad constant pool reference")

// ErrPoolOverflow is returned when appending would push the pool past the
// 65535 entry limit of the class file format.
var ErrPoolOverflow = errors.New("classfile: constant pool overflow")

// Constant is one constant pool entry. Utf8 values hold the raw modified
// UTF-8 bytes; references hold pool indices in A and B.
type Constant struct {
	Tag  ConstantTag
	Utf8 string
	Num  uint64 // Integer/Float (low 32 bits), Long/Double
	A    uint16 // class/string/nat name, ref class, handle ref, bsm index
	B    uint16 // nat descriptor, ref nat
	Kind uint8  // MethodHandle reference kind
}

func (c *Constant) key() string {
	switch c.Tag {
	case TagUtf8:
		return "u" + c.Utf8
	default:
		return fmt.Sprintf("%d:%d:%d:%d:%d", c.Tag, c.Num, c.A, c.B, c.Kind)
	}
}

// Pool is a constant pool. Entries are only ever appended, so indices taken
// from the original class stay valid for the lifetime of the pool.
type Pool struct {
	entries []*Constant // index 0 and the slot after a Long/Double are nil
	index   map[string]uint16
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{entries: []*Constant{nil}, index: map[string]uint16{}}
}

func parsePool(r *reader) (*Pool, error) {
	count, err := r.u16()
	if err != nil {
		return nil, err
	}
	p := &Pool{entries: make([]*Constant, 1, count), index: map[string]uint16{}}
	for i := 1; i < int(count); i++ {
		tag, err := r.u8()
		if err != nil {
			return nil, err
		}
		c := &Constant{Tag: ConstantTag(tag)}
		switch c.Tag {
		case TagUtf8:
			n, err := r.u16()
			if err != nil {
				return nil, err
			}
			b, err := r.bytes(int(n))
			if err != nil {
				return nil, err
			}
			c.Utf8 = string(b)
		case TagInteger, TagFloat:
			v, err := r.u32()
			if err != nil {
				return nil, err
			}
			c.Num = uint64(v)
		case TagLong, TagDouble:
			hi, err := r.u32()
			if err != nil {
				return nil, err
			}
			lo, err := r.u32()
			if err != nil {
				return nil, err
			}
			c.Num = uint64(hi)<<32 | uint64(lo)
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			if c.A, err = r.u16(); err != nil {
				return nil, err
			}
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
			if c.A, err = r.u16(); err != nil {
				return nil, err
			}
			if c.B, err = r.u16(); err != nil {
				return nil, err
			}
		case TagMethodHandle:
			if c.Kind, err = r.u8(); err != nil {
				return nil, err
			}
			if c.A, err = r.u16(); err != nil {
				return nil, err
			}
		default:
			return nil, errors.Wrapf(ErrBadPool, "unknown constant tag %d at index %d", tag, i)
		}
		p.entries = append(p.entries, c)
		if _, dup := p.index[c.key()]; !dup {
			p.index[c.key()] = uint16(i)
		}
		if c.Tag == TagLong || c.Tag == TagDouble {
			p.entries = append(p.entries, nil)
			i++
		}
	}
	return p, nil
}

func (p *Pool) encode(w *writer) error {
	if len(p.entries) > math.MaxUint16 {
		return errors.Wrapf(ErrPoolOverflow, "%d entries", len(p.entries)-1)
	}
	w.u16(uint16(len(p.entries)))
	for _, c := range p.entries {
		if c == nil {
			continue
		}
		w.u8(uint8(c.Tag))
		switch c.Tag {
		case TagUtf8:
			if len(c.Utf8) > math.MaxUint16 {
				return errors.Errorf("classfile: utf8 constant too long (%d bytes)", len(c.Utf8))
			}
			w.u16(uint16(len(c.Utf8)))
			w.write([]byte(c.Utf8))
		case TagInteger, TagFloat:
			w.u32(uint32(c.Num))
		case TagLong, TagDouble:
			w.u32(uint32(c.Num >> 32))
			w.u32(uint32(c.Num))
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			w.u16(c.A)
		case TagMethodHandle:
			w.u8(c.Kind)
			w.u16(c.A)
		default:
			w.u16(c.A)
			w.u16(c.B)
		}
	}
	return nil
}

// Len returns the pool count as written in the class file.
func (p *Pool) Len() int {
	return len(p.entries)
}

// Get returns the constant at index i, or nil when i is out of range or
// names an unusable slot.
func (p *Pool) Get(i uint16) *Constant {
	if int(i) >= len(p.entries) {
		return nil
	}
	return p.entries[i]
}

func (p *Pool) expect(i uint16, tag ConstantTag) (*Constant, error) {
	c := p.Get(i)
	if c == nil || c.Tag != tag {
		return nil, errors.Wrapf(ErrBadPool, "index %d is not a constant of tag %d", i, tag)
	}
	return c, nil
}

// Utf8 returns the raw string stored at index i.
func (p *Pool) Utf8(i uint16) (string, error) {
	c, err := p.expect(i, TagUtf8)
	if err != nil {
		return "", err
	}
	return c.Utf8, nil
}

// ClassName returns the internal name referenced by the Class constant at i.
func (p *Pool) ClassName(i uint16) (string, error) {
	c, err := p.expect(i, TagClass)
	if err != nil {
		return "", err
	}
	return p.Utf8(c.A)
}

// NameAndType resolves the NameAndType constant at i.
func (p *Pool) NameAndType(i uint16) (name, desc string, err error) {
	c, err := p.expect(i, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = p.Utf8(c.A); err != nil {
		return "", "", err
	}
	desc, err = p.Utf8(c.B)
	return name, desc, err
}

// MemberRef resolves a Fieldref, Methodref or InterfaceMethodref.
func (p *Pool) MemberRef(i uint16) (owner, name, desc string, itf bool, err error) {
	c := p.Get(i)
	if c == nil || (c.Tag != TagFieldref && c.Tag != TagMethodref && c.Tag != TagInterfaceMethodref) {
		return "", "", "", false, errors.Wrapf(ErrBadPool, "index %d is not a member reference", i)
	}
	if owner, err = p.ClassName(c.A); err != nil {
		return "", "", "", false, err
	}
	if name, desc, err = p.NameAndType(c.B); err != nil {
		return "", "", "", false, err
	}
	return owner, name, desc, c.Tag == TagInterfaceMethodref, nil
}

func (p *Pool) add(c *Constant) uint16 {
	if i, ok := p.index[c.key()]; ok {
		return i
	}
	i := uint16(len(p.entries))
	p.entries = append(p.entries, c)
	p.index[c.key()] = i
	if c.Tag == TagLong || c.Tag == TagDouble {
		p.entries = append(p.entries, nil)
	}
	return i
}

// AddUtf8 returns the index of a Utf8 constant holding s, appending one if
// needed. s is taken as raw modified UTF-8.
func (p *Pool) AddUtf8(s string) uint16 {
	return p.add(&Constant{Tag: TagUtf8, Utf8: s})
}

// AddClass returns the index of a Class constant for an internal name.
func (p *Pool) AddClass(name string) uint16 {
	return p.add(&Constant{Tag: TagClass, A: p.AddUtf8(name)})
}

// AddString returns the index of a String constant.
func (p *Pool) AddString(s string) uint16 {
	return p.add(&Constant{Tag: TagString, A: p.AddUtf8(s)})
}

// AddInteger returns the index of an Integer constant.
func (p *Pool) AddInteger(v int32) uint16 {
	return p.add(&Constant{Tag: TagInteger, Num: uint64(uint32(v))})
}

// AddNameAndType returns the index of a NameAndType constant.
func (p *Pool) AddNameAndType(name, desc string) uint16 {
	return p.add(&Constant{Tag: TagNameAndType, A: p.AddUtf8(name), B: p.AddUtf8(desc)})
}

// AddMethodRef returns the index of a Methodref, or an InterfaceMethodref
// when itf is set.
func (p *Pool) AddMethodRef(owner, name, desc string, itf bool) uint16 {
	tag := TagMethodref
	if itf {
		tag = TagInterfaceMethodref
	}
	return p.add(&Constant{Tag: tag, A: p.AddClass(owner), B: p.AddNameAndType(name, desc)})
}

// AddMethodHandle returns the index of a MethodHandle constant.
func (p *Pool) AddMethodHandle(h Handle) uint16 {
	return p.add(&Constant{Tag: TagMethodHandle, Kind: h.Kind, A: p.AddMethodRef(h.Owner, h.Name, h.Desc, h.Itf)})
}

// AddInvokeDynamic returns the index of an InvokeDynamic constant pointing
// at bootstrap method bsm.
func (p *Pool) AddInvokeDynamic(bsm uint16, name, desc string) uint16 {
	return p.add(&Constant{Tag: TagInvokeDynamic, A: bsm, B: p.AddNameAndType(name, desc)})
}
