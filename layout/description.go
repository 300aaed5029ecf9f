package layout

import (
	"strconv"
	"strings"
)

// Key is the stable lookup key of a description: a qualified type name
// plus an opaque version marker.
type Key struct {
	Name    string
	Version string
}

// K is shorthand for an unversioned key.
func K(name string) Key {
	return Key{Name: name}
}

func (k Key) String() string {
	if k.Version == "" {
		return k.Name
	}
	return k.Name + "@" + k.Version
}

// IsZero reports whether the key is empty.
func (k Key) IsZero() bool {
	return k.Name == "" && k.Version == ""
}

// ParseKey splits "name@version".
func ParseKey(s string) Key {
	name, version, _ := strings.Cut(s, "@")
	return Key{Name: name, Version: version}
}

// LifetimeIndex is the positional encoding of a lifetime. The zero value is
// Static.
type LifetimeIndex struct {
	param int // 0 means static, otherwise index+1
}

// StaticLifetime returns the unbounded lifetime.
func StaticLifetime() LifetimeIndex {
	return LifetimeIndex{}
}

// ParamLifetime returns the lifetime at position i.
func ParamLifetime(i int) LifetimeIndex {
	return LifetimeIndex{param: i + 1}
}

// IsStatic reports whether the lifetime is the unbounded one.
func (l LifetimeIndex) IsStatic() bool {
	return l.param == 0
}

// Index returns the parameter position; ok is false for Static.
func (l LifetimeIndex) Index() (int, bool) {
	if l.param == 0 {
		return 0, false
	}
	return l.param - 1, true
}

func (l LifetimeIndex) String() string {
	if l.param == 0 {
		return "'static"
	}
	return "'" + strconv.Itoa(l.param-1)
}

// Param is one parameter or the return value of a function signature.
type Param struct {
	Name      string
	Type      Key
	Lifetimes []LifetimeIndex
}

// Signature describes a function or function pointer.
type Signature struct {
	Params []Param
	// Return is nil for unit-returning functions.
	Return *Param
}

// Accessibility of an open struct field.
type Accessibility uint8

const (
	// Accessible fields are always present once the field exists in the
	// provider's layout.
	Accessible Accessibility = iota
	// Conditional fields depend on a capability flag of the provider.
	Conditional
)

func (a Accessibility) String() string {
	if a == Conditional {
		return "conditional"
	}
	return "accessible"
}

// Field is one field of a struct, open struct, or enum variant.
type Field struct {
	Name      string
	Type      Key
	Offset    uint32
	Lifetimes []LifetimeIndex
	// Func is set when the field is a function pointer.
	Func   *Signature
	Access Accessibility
}

// Variant is one case of an enum.
type Variant struct {
	Name         string
	Discriminant int64
	Fields       []Field
}

// Caps is the capability set of an open enum's operations table.
type Caps uint8

const (
	CapClone Caps = 1 << iota
	CapCompare
	CapFormat
	CapDrop
)

// Has reports whether all capabilities in o are present.
func (c Caps) Has(o Caps) bool {
	return c&o == o
}

func (c Caps) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	names := []struct {
		c    Caps
		name string
	}{
		{CapClone, "clone"},
		{CapCompare, "compare"},
		{CapFormat, "format"},
		{CapDrop, "drop"},
	}
	for _, n := range names {
		if c&n.c != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// OpenEnum marks an enum that may gain variants after publication.
type OpenEnum struct {
	// Known lists the discriminants known when the description was generated.
	Known []int64
	// Caps lists the operations the type's table provides.
	Caps Caps
}

// Enum is the payload of KindEnum.
type Enum struct {
	Disc     DiscRepr
	Variants []Variant
	// PayloadOffset is the offset of variant fields relative to the start of
	// the value.
	PayloadOffset uint32
	// Open is nil for exhaustive enums.
	Open *OpenEnum
}

// Variant returns the variant with the given discriminant.
func (e *Enum) Variant(disc int64) (*Variant, bool) {
	for i := range e.Variants {
		if e.Variants[i].Discriminant == disc {
			return &e.Variants[i], true
		}
	}
	return nil, false
}

// MissingField is what an accessor does when a field is absent.
type MissingField uint8

const (
	MissingError MissingField = iota
	MissingZero
)

func (m MissingField) String() string {
	if m == MissingZero {
		return "zero"
	}
	return "error"
}

// Prefix is the payload of KindPrefix, a struct that may gain trailing
// fields. Fields live in the Description's Fields slice.
type Prefix struct {
	// FieldsAtPublish is the number of fields present in the earliest
	// published version.
	FieldsAtPublish int
	// Extent and ExtentAlign describe the referenced prefix storage, which
	// grows across versions. The description's own Size/Align are those of
	// the handle.
	Extent      uint32
	ExtentAlign uint32
	Missing     MissingField
}

// Strictness is how a tag mismatch is scored.
type Strictness uint8

const (
	StrictIgnore Strictness = iota
	StrictWarn
	StrictReject
)

var strictNames = [...]string{
	StrictIgnore: "ignore",
	StrictWarn:   "warn",
	StrictReject: "reject",
}

func (s Strictness) String() string {
	if int(s) < len(strictNames) {
		return strictNames[s]
	}
	return "unknown"
}

// ParseStrictness parses "ignore", "warn" or "reject".
func ParseStrictness(s string) (Strictness, bool) {
	for i, n := range strictNames {
		if strings.EqualFold(s, n) {
			return Strictness(i), true
		}
	}
	return StrictIgnore, false
}

// Tag is a free-form compatibility annotation attached by the type author.
type Tag struct {
	Key        string
	Value      string
	Strictness Strictness
}

// Description is the comparable layout of one type. It refers to other
// types only by Key; an Image resolves them. A Description is never
// mutated after generation.
type Description struct {
	Prefix    *Prefix
	Enum      *Enum
	Func      *Signature
	Key       Key
	Params    []Key
	Fields    []Field
	Tags      []Tag
	Size      uint32
	Align     uint32
	Lifetimes int
	Repr      Repr
	Kind      Kind
	Prim      Primitive
}

// Field returns the field with the given name and its index.
func (d *Description) Field(name string) (*Field, int, bool) {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i], i, true
		}
	}
	return nil, -1, false
}

// Tag returns the tag with the given key.
func (d *Description) Tag(key string) (Tag, bool) {
	for _, t := range d.Tags {
		if t.Key == key {
			return t, true
		}
	}
	return Tag{}, false
}

// IsOpenEnum reports whether the description is an enum that may gain variants.
func (d *Description) IsOpenEnum() bool {
	return d.Kind == KindEnum && d.Enum != nil && d.Enum.Open != nil
}

// Image resolves keys to descriptions within one compiled binary image.
type Image interface {
	Lookup(key Key) (*Description, bool)
}
