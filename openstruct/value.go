package openstruct

import (
	"github.com/wippyai/stable-abi/errors"
	"github.com/wippyai/stable-abi/layout"
)

// Ops are the copy and destroy operations supplied by the binary that
// produced a value. Consumers never copy or free open struct storage
// themselves.
type Ops struct {
	Clone func(buf []byte) []byte
	Drop  func(buf []byte)
}

// Value is open struct storage together with the description of the
// binary that produced it.
type Value struct {
	desc    *layout.Description
	ops     *Ops
	buf     []byte
	present []bool
	dropped bool
}

// New wraps storage produced by a binary. present flags the provider's
// conditional fields; nil means every field is present.
func New(desc *layout.Description, buf []byte, present []bool, ops *Ops) (*Value, error) {
	if desc == nil || desc.Kind != layout.KindPrefix || desc.Prefix == nil {
		return nil, errors.New(errors.PhaseAccess, errors.KindTypeMismatch).
			Detail("description is not an open struct").
			Build()
	}
	path := []string{desc.Key.Name}
	if uint64(len(buf)) < uint64(desc.Prefix.Extent) {
		return nil, errors.OutOfBounds(errors.PhaseAccess, path, 0, int(desc.Prefix.Extent), len(buf))
	}
	if present == nil {
		present = make([]bool, len(desc.Fields))
		for i := range present {
			present[i] = true
		}
	}
	if len(present) != len(desc.Fields) {
		return nil, errors.New(errors.PhaseAccess, errors.KindInvalidData).
			Path(path...).
			Detail("%d presence flags for %d fields", len(present), len(desc.Fields)).
			Build()
	}
	return &Value{desc: desc, buf: buf, present: present, ops: ops}, nil
}

// Description returns the provider's description.
func (v *Value) Description() *layout.Description {
	return v.desc
}

// Clone copies the value through the provider's operations.
func (v *Value) Clone() (*Value, error) {
	if v.dropped {
		return nil, errors.Unsupported(errors.PhaseAccess, "clone of a dropped value")
	}
	if v.ops == nil || v.ops.Clone == nil {
		return nil, errors.Unsupported(errors.PhaseAccess, "provider does not supply clone")
	}
	return &Value{
		desc:    v.desc,
		buf:     v.ops.Clone(v.buf),
		present: append([]bool(nil), v.present...),
		ops:     v.ops,
	}, nil
}

// Drop releases the value through the provider's operations. Dropping
// twice is a no-op.
func (v *Value) Drop() {
	if v.dropped {
		return
	}
	v.dropped = true
	if v.ops != nil && v.ops.Drop != nil {
		v.ops.Drop(v.buf)
	}
	v.buf = nil
}
