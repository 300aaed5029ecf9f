package openstruct

import (
	"encoding/binary"
	"math"

	"github.com/wippyai/stable-abi/errors"
	"github.com/wippyai/stable-abi/layout"
)

// Accessor reads fields of open struct values using the field set a
// consumer was compiled against. Offsets always come from the provider's
// description carried by the value.
type Accessor struct {
	desc  *layout.Description
	sizes []uint32
}

// NewAccessor creates an accessor for the consumer's description. img
// resolves the field types of desc.
func NewAccessor(desc *layout.Description, img layout.Image) (*Accessor, error) {
	if desc == nil || desc.Kind != layout.KindPrefix || desc.Prefix == nil {
		return nil, errors.New(errors.PhaseAccess, errors.KindTypeMismatch).
			Detail("description is not an open struct").
			Build()
	}
	sizes, err := fieldSizes(desc, img)
	if err != nil {
		return nil, err
	}
	return &Accessor{desc: desc, sizes: sizes}, nil
}

func fieldSizes(desc *layout.Description, img layout.Image) ([]uint32, error) {
	sizes := make([]uint32, len(desc.Fields))
	for i, f := range desc.Fields {
		t, ok := img.Lookup(f.Type)
		if !ok {
			return nil, errors.NotFound(errors.PhaseAccess, "field type", f.Type.String())
		}
		sizes[i] = t.Size
	}
	return sizes, nil
}

// Has reports whether the value's provider supplies the field.
func (a *Accessor) Has(v *Value, name string) bool {
	_, idx, ok := a.desc.Field(name)
	return ok && a.present(v, idx)
}

func (a *Accessor) present(v *Value, idx int) bool {
	if idx >= len(v.desc.Fields) {
		return false
	}
	pf := &v.desc.Fields[idx]
	if pf.Name != a.desc.Fields[idx].Name {
		return false
	}
	return pf.Access != layout.Conditional || v.present[idx]
}

// Field returns the bytes of a field. A field the provider lacks yields a
// FieldAbsent error, or zeroed bytes when the consumer's description asks
// for zero on missing fields. Fields unknown to the consumer are absent.
func (a *Accessor) Field(v *Value, name string) ([]byte, error) {
	path := []string{a.desc.Key.Name, name}
	if v.dropped {
		return nil, errors.Unsupported(errors.PhaseAccess, "access to a dropped value")
	}
	_, idx, ok := a.desc.Field(name)
	if !ok {
		return nil, errors.FieldAbsent(path, name)
	}
	size := a.sizes[idx]

	if !a.present(v, idx) {
		if a.desc.Prefix.Missing == layout.MissingZero {
			return make([]byte, size), nil
		}
		return nil, errors.FieldAbsent(path, name)
	}

	off := uint64(v.desc.Fields[idx].Offset)
	end := off + uint64(size)
	if end > uint64(len(v.buf)) {
		return nil, errors.OutOfBounds(errors.PhaseAccess, path, int(off), int(size), len(v.buf))
	}
	return v.buf[off:end:end], nil
}

func (a *Accessor) sized(v *Value, name string, want int) ([]byte, error) {
	b, err := a.Field(v, name)
	if err != nil {
		return nil, err
	}
	if len(b) != want {
		return nil, errors.New(errors.PhaseAccess, errors.KindTypeMismatch).
			Path(a.desc.Key.Name, name).
			Detail("field is %d bytes, read of %d", len(b), want).
			Build()
	}
	return b, nil
}

// ReadU8 reads an 8-bit field.
func (a *Accessor) ReadU8(v *Value, name string) (uint8, error) {
	b, err := a.sized(v, name, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadBool reads a bool field.
func (a *Accessor) ReadBool(v *Value, name string) (bool, error) {
	n, err := a.ReadU8(v, name)
	return n != 0, err
}

// ReadU16 reads a 16-bit field.
func (a *Accessor) ReadU16(v *Value, name string) (uint16, error) {
	b, err := a.sized(v, name, 2)
	if err != nil {
		return 0, err
	}
	return binary.NativeEndian.Uint16(b), nil
}

// ReadU32 reads a 32-bit field.
func (a *Accessor) ReadU32(v *Value, name string) (uint32, error) {
	b, err := a.sized(v, name, 4)
	if err != nil {
		return 0, err
	}
	return binary.NativeEndian.Uint32(b), nil
}

// ReadU64 reads a 64-bit field.
func (a *Accessor) ReadU64(v *Value, name string) (uint64, error) {
	b, err := a.sized(v, name, 8)
	if err != nil {
		return 0, err
	}
	return binary.NativeEndian.Uint64(b), nil
}

// ReadF32 reads a 32-bit float field.
func (a *Accessor) ReadF32(v *Value, name string) (float32, error) {
	n, err := a.ReadU32(v, name)
	return math.Float32frombits(n), err
}

// ReadF64 reads a 64-bit float field.
func (a *Accessor) ReadF64(v *Value, name string) (float64, error) {
	n, err := a.ReadU64(v, name)
	return math.Float64frombits(n), err
}
