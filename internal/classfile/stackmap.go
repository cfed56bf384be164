package classfile

import (
	"github.com/pkg/errors"
)

// Verification type tags.
const (
	ItemTop               = 0
	ItemInteger           = 1
	ItemFloat             = 2
	ItemDouble            = 3
	ItemLong              = 4
	ItemNull              = 5
	ItemUninitializedThis = 6
	ItemObject            = 7
	ItemUninitialized     = 8
)

// FrameKind is the compressed form a stack map frame was read in. Encoding
// keeps the kind and switches to the extended variant when the relocated
// offset delta no longer fits.
type FrameKind uint8

const (
	FrameSame FrameKind = iota
	FrameSameLocals1
	FrameChop
	FrameAppend
	FrameFull
)

// VerificationType is one verification_type_info. Class is a raw pool index
// for ItemObject; New labels the `new` instruction for ItemUninitialized.
type VerificationType struct {
	Tag   uint8
	Class uint16
	New   *Label
}

// Frame is a stack map frame positioned at a label.
type Frame struct {
	Kind   FrameKind
	At     *Label
	Chop   int
	Locals []VerificationType
	Stack  []VerificationType
}

func (d *codeDecoder) frames(data []byte) ([]Frame, error) {
	r := newReader(data)
	n, err := r.u16()
	if err != nil {
		return nil, err
	}
	out := make([]Frame, 0, n)
	prev := -1
	for i := 0; i < int(n); i++ {
		tag, err := r.u8()
		if err != nil {
			return nil, err
		}
		var (
			f     Frame
			delta int
		)
		switch {
		case tag <= 63:
			f.Kind, delta = FrameSame, int(tag)
		case tag <= 127:
			f.Kind, delta = FrameSameLocals1, int(tag-64)
			vt, err := d.verificationType(r)
			if err != nil {
				return nil, err
			}
			f.Stack = []VerificationType{vt}
		case tag < 247:
			return nil, errors.Wrapf(ErrBadCode, "reserved frame type %d", tag)
		case tag == 247:
			f.Kind = FrameSameLocals1
			if delta, err = d.delta(r); err != nil {
				return nil, err
			}
			vt, err := d.verificationType(r)
			if err != nil {
				return nil, err
			}
			f.Stack = []VerificationType{vt}
		case tag <= 250:
			f.Kind, f.Chop = FrameChop, int(251-tag)
			if delta, err = d.delta(r); err != nil {
				return nil, err
			}
		case tag == 251:
			f.Kind = FrameSame
			if delta, err = d.delta(r); err != nil {
				return nil, err
			}
		case tag <= 254:
			f.Kind = FrameAppend
			if delta, err = d.delta(r); err != nil {
				return nil, err
			}
			if f.Locals, err = d.verificationTypes(r, int(tag-251)); err != nil {
				return nil, err
			}
		default:
			f.Kind = FrameFull
			if delta, err = d.delta(r); err != nil {
				return nil, err
			}
			nl, err := r.u16()
			if err != nil {
				return nil, err
			}
			if f.Locals, err = d.verificationTypes(r, int(nl)); err != nil {
				return nil, err
			}
			ns, err := r.u16()
			if err != nil {
				return nil, err
			}
			if f.Stack, err = d.verificationTypes(r, int(ns)); err != nil {
				return nil, err
			}
		}
		off := prev + delta + 1
		if f.At, err = d.label(off); err != nil {
			return nil, err
		}
		prev = off
		out = append(out, f)
	}
	return out, nil
}

func (d *codeDecoder) delta(r *reader) (int, error) {
	v, err := r.u16()
	return int(v), err
}

func (d *codeDecoder) verificationTypes(r *reader, n int) ([]VerificationType, error) {
	out := make([]VerificationType, 0, n)
	for i := 0; i < n; i++ {
		vt, err := d.verificationType(r)
		if err != nil {
			return nil, err
		}
		out = append(out, vt)
	}
	return out, nil
}

func (d *codeDecoder) verificationType(r *reader) (VerificationType, error) {
	tag, err := r.u8()
	if err != nil {
		return VerificationType{}, err
	}
	vt := VerificationType{Tag: tag}
	switch tag {
	case ItemObject:
		vt.Class, err = r.u16()
	case ItemUninitialized:
		var off uint16
		if off, err = r.u16(); err == nil {
			vt.New, err = d.label(int(off))
		}
	default:
		if tag > ItemUninitialized {
			err = errors.Wrapf(ErrBadCode, "verification type %d", tag)
		}
	}
	return vt, err
}

func encodeFrames(frames []Frame) ([]byte, error) {
	w := &writer{}
	w.u16(uint16(len(frames)))
	prev := -1
	for _, f := range frames {
		delta := f.At.offset - prev - 1
		if delta < 0 || delta > 0xffff {
			return nil, errors.Wrapf(ErrBadCode, "stack map frame at %d out of order", f.At.offset)
		}
		prev = f.At.offset
		switch f.Kind {
		case FrameSame:
			if delta <= 63 {
				w.u8(uint8(delta))
			} else {
				w.u8(251)
				w.u16(uint16(delta))
			}
		case FrameSameLocals1:
			if delta <= 63 {
				w.u8(uint8(64 + delta))
			} else {
				w.u8(247)
				w.u16(uint16(delta))
			}
			encodeVerificationTypes(w, f.Stack)
		case FrameChop:
			w.u8(uint8(251 - f.Chop))
			w.u16(uint16(delta))
		case FrameAppend:
			w.u8(uint8(251 + len(f.Locals)))
			w.u16(uint16(delta))
			encodeVerificationTypes(w, f.Locals)
		default:
			w.u8(255)
			w.u16(uint16(delta))
			w.u16(uint16(len(f.Locals)))
			encodeVerificationTypes(w, f.Locals)
			w.u16(uint16(len(f.Stack)))
			encodeVerificationTypes(w, f.Stack)
		}
	}
	return w.buf, nil
}

func encodeVerificationTypes(w *writer, types []VerificationType) {
	for _, vt := range types {
		w.u8(vt.Tag)
		switch vt.Tag {
		case ItemObject:
			w.u16(vt.Class)
		case ItemUninitialized:
			w.u16(uint16(vt.New.offset))
		}
	}
}
