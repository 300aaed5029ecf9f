package openenum

import (
	"fmt"

	"github.com/wippyai/stable-abi/errors"
	"github.com/wippyai/stable-abi/layout"
)

// Ordering is the result of Compare.
type Ordering int8

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Greater:
		return "greater"
	default:
		return "equal"
	}
}

// Table is the fixed operations table of one open enum type, supplied by
// the binary that produces its values. A nil function is a capability the
// type does not provide.
type Table struct {
	// Desc is the producer's description of the enum.
	Desc *layout.Description

	Clone func(disc int64, payload any) any
	// Compare orders two payloads of the same variant.
	Compare func(disc int64, a, b any) Ordering
	Format  func(disc int64, payload any) string
	Drop    func(disc int64, payload any)
}

// Caps returns the capabilities the table provides.
func (t *Table) Caps() layout.Caps {
	var c layout.Caps
	if t.Clone != nil {
		c |= layout.CapClone
	}
	if t.Compare != nil {
		c |= layout.CapCompare
	}
	if t.Format != nil {
		c |= layout.CapFormat
	}
	if t.Drop != nil {
		c |= layout.CapDrop
	}
	return c
}

func (t *Table) name() string {
	if t.Desc == nil {
		return "<enum>"
	}
	return t.Desc.Key.Name
}

// Validate checks that the table's functions match the capabilities its
// description declares.
func (t *Table) Validate() error {
	if t.Desc == nil || !t.Desc.IsOpenEnum() {
		return errors.New(errors.PhaseAccess, errors.KindTypeMismatch).
			Detail("table description is not an open enum").
			Build()
	}
	if declared, have := t.Desc.Enum.Open.Caps, t.Caps(); declared != have {
		return errors.New(errors.PhaseAccess, errors.KindCapabilityMissing).
			Path(t.name()).
			Expected(declared.String()).
			Found(have.String()).
			Detail("table does not match declared capabilities").
			Build()
	}
	return nil
}

// Require reports a capability_missing incompatibility when the table
// lacks any capability in caps.
func Require(t *Table, caps layout.Caps) error {
	if have := t.Caps(); !have.Has(caps) {
		return errors.New(errors.PhaseCheck, errors.KindCapabilityMissing).
			Path(t.name()).
			Expected(caps.String()).
			Found(have.String()).
			Detail("missing %s", (caps &^ have).String()).
			Build()
	}
	return nil
}

// Value is an erased open enum value: a discriminant, a payload the
// consumer cannot interpret, and the producer's operations table.
type Value struct {
	table   *Table
	payload any
	disc    int64
	dropped bool
}

// New erases a value of a variant known to the producer.
func New(t *Table, disc int64, payload any) (*Value, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if _, ok := t.Desc.Enum.Variant(disc); !ok {
		return nil, errors.UnknownVariant([]string{t.name()}, disc, t.Desc.Key.String())
	}
	return &Value{table: t, disc: disc, payload: payload}, nil
}

// Discriminant returns the value's discriminant.
func (v *Value) Discriminant() int64 {
	return v.disc
}

// Table returns the producer's operations table.
func (v *Value) Table() *Table {
	return v.table
}

func (v *Value) live(op string) error {
	if v.dropped {
		return errors.Unsupported(errors.PhaseAccess, op+" of a dropped value")
	}
	return nil
}

// Clone copies the value through the table.
func (v *Value) Clone() (*Value, error) {
	if err := v.live("clone"); err != nil {
		return nil, err
	}
	if v.table.Clone == nil {
		return nil, errors.Unsupported(errors.PhaseAccess, v.table.name()+" does not support clone")
	}
	return &Value{table: v.table, disc: v.disc, payload: v.table.Clone(v.disc, v.payload)}, nil
}

// Compare orders v against o, first by discriminant and then by payload.
// Both values must share the same table.
func (v *Value) Compare(o *Value) (Ordering, error) {
	if err := v.live("compare"); err != nil {
		return Equal, err
	}
	if err := o.live("compare"); err != nil {
		return Equal, err
	}
	if v.table.Compare == nil {
		return Equal, errors.Unsupported(errors.PhaseAccess, v.table.name()+" does not support compare")
	}
	if v.table != o.table {
		return Equal, errors.New(errors.PhaseAccess, errors.KindTypeMismatch).
			Path(v.table.name()).
			Found(o.table.name()).
			Detail("values come from different tables").
			Build()
	}
	switch {
	case v.disc < o.disc:
		return Less, nil
	case v.disc > o.disc:
		return Greater, nil
	}
	return v.table.Compare(v.disc, v.payload, o.payload), nil
}

// Format renders the value through the table.
func (v *Value) Format() (string, error) {
	if err := v.live("format"); err != nil {
		return "", err
	}
	if v.table.Format == nil {
		return "", errors.Unsupported(errors.PhaseAccess, v.table.name()+" does not support format")
	}
	return v.table.Format(v.disc, v.payload), nil
}

// String implements fmt.Stringer, falling back to the discriminant.
func (v *Value) String() string {
	if s, err := v.Format(); err == nil {
		return s
	}
	return fmt.Sprintf("%s(#%d)", v.table.name(), v.disc)
}

// Drop releases the value through the table. A table without drop makes
// the value unusable but reports unsupported.
func (v *Value) Drop() error {
	if v.dropped {
		return nil
	}
	v.dropped = true
	payload := v.payload
	v.payload = nil
	if v.table.Drop == nil {
		return errors.Unsupported(errors.PhaseAccess, v.table.name()+" does not support drop")
	}
	v.table.Drop(v.disc, payload)
	return nil
}

// Variant returns the consumer's view of the value's variant. known is the
// description the consumer was compiled against; a discriminant it does
// not list yields an UnknownVariant error.
func (v *Value) Variant(known *layout.Description) (*layout.Variant, error) {
	if known == nil || known.Enum == nil {
		return nil, errors.New(errors.PhaseAccess, errors.KindTypeMismatch).
			Detail("description is not an enum").
			Build()
	}
	vr, ok := known.Enum.Variant(v.disc)
	if !ok {
		return nil, errors.UnknownVariant([]string{known.Key.Name}, v.disc, known.Key.String())
	}
	return vr, nil
}

// Unwrap recovers the payload of the variant disc. It fails with
// UnknownVariant when the consumer does not know the value's variant and
// with a type mismatch when the value holds another variant or the payload
// is not a T.
func Unwrap[T any](v *Value, known *layout.Description, disc int64) (T, error) {
	var zero T
	if err := v.live("unwrap"); err != nil {
		return zero, err
	}
	vr, err := v.Variant(known)
	if err != nil {
		return zero, err
	}
	if v.disc != disc {
		return zero, errors.New(errors.PhaseAccess, errors.KindTypeMismatch).
			Path(known.Key.Name).
			Found(vr.Name).
			Detail("value holds another variant").
			Build()
	}
	p, ok := v.payload.(T)
	if !ok {
		return zero, errors.New(errors.PhaseAccess, errors.KindTypeMismatch).
			Path(known.Key.Name, vr.Name).
			Expected(fmt.Sprintf("%T", zero)).
			Found(fmt.Sprintf("%T", v.payload)).
			Build()
	}
	return p, nil
}
