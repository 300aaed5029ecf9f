package openstruct

import (
	"encoding/binary"
	"math"

	"github.com/wippyai/stable-abi/errors"
	"github.com/wippyai/stable-abi/layout"
)

// Builder writes the fields a producer knows about into fresh storage laid
// out by the producer's own description.
type Builder struct {
	desc    *layout.Description
	buf     []byte
	present []bool
	sizes   []uint32
	built   bool
}

// NewBuilder allocates zeroed storage for desc. Every field starts
// present; conditional fields can be marked absent.
func NewBuilder(desc *layout.Description, img layout.Image) (*Builder, error) {
	if desc == nil || desc.Kind != layout.KindPrefix || desc.Prefix == nil {
		return nil, errors.New(errors.PhaseAccess, errors.KindTypeMismatch).
			Detail("description is not an open struct").
			Build()
	}
	sizes, err := fieldSizes(desc, img)
	if err != nil {
		return nil, err
	}
	present := make([]bool, len(desc.Fields))
	for i := range present {
		present[i] = true
	}
	return &Builder{
		desc:    desc,
		buf:     make([]byte, desc.Prefix.Extent),
		present: present,
		sizes:   sizes,
	}, nil
}

func (b *Builder) finished(op string) error {
	if b.built {
		return errors.Unsupported(errors.PhaseAccess, op+" on a built "+b.desc.Key.Name)
	}
	return nil
}

// Set copies data into a field. data must have the field's size.
func (b *Builder) Set(name string, data []byte) error {
	if err := b.finished("set"); err != nil {
		return err
	}
	_, idx, ok := b.desc.Field(name)
	if !ok {
		return errors.NotFound(errors.PhaseAccess, "field", name)
	}
	if uint32(len(data)) != b.sizes[idx] {
		return errors.New(errors.PhaseAccess, errors.KindTypeMismatch).
			Path(b.desc.Key.Name, name).
			Detail("field is %d bytes, write of %d", b.sizes[idx], len(data)).
			Build()
	}
	off := b.desc.Fields[idx].Offset
	copy(b.buf[off:], data)
	return nil
}

// Absent marks a conditional field as not provided.
func (b *Builder) Absent(name string) error {
	if err := b.finished("absent"); err != nil {
		return err
	}
	f, idx, ok := b.desc.Field(name)
	if !ok {
		return errors.NotFound(errors.PhaseAccess, "field", name)
	}
	if f.Access != layout.Conditional {
		return errors.New(errors.PhaseAccess, errors.KindUnsupported).
			Path(b.desc.Key.Name, name).
			Detail("only conditional fields can be absent").
			Build()
	}
	b.present[idx] = false
	return nil
}

// SetU8 writes an 8-bit field.
func (b *Builder) SetU8(name string, v uint8) error {
	return b.Set(name, []byte{v})
}

// SetBool writes a bool field.
func (b *Builder) SetBool(name string, v bool) error {
	if v {
		return b.SetU8(name, 1)
	}
	return b.SetU8(name, 0)
}

// SetU16 writes a 16-bit field.
func (b *Builder) SetU16(name string, v uint16) error {
	return b.Set(name, binary.NativeEndian.AppendUint16(nil, v))
}

// SetU32 writes a 32-bit field.
func (b *Builder) SetU32(name string, v uint32) error {
	return b.Set(name, binary.NativeEndian.AppendUint32(nil, v))
}

// SetU64 writes a 64-bit field.
func (b *Builder) SetU64(name string, v uint64) error {
	return b.Set(name, binary.NativeEndian.AppendUint64(nil, v))
}

// SetF32 writes an f32 field.
func (b *Builder) SetF32(name string, v float32) error {
	return b.SetU32(name, math.Float32bits(v))
}

// SetF64 writes an f64 field.
func (b *Builder) SetF64(name string, v float64) error {
	return b.SetU64(name, math.Float64bits(v))
}

// Build finishes the value. Later writes fail and a second Build returns
// nil.
func (b *Builder) Build(ops *Ops) *Value {
	if b.built {
		return nil
	}
	b.built = true
	v := &Value{desc: b.desc, buf: b.buf, present: b.present, ops: ops}
	b.buf, b.present = nil, nil
	return v
}
