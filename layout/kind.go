package layout

import "strconv"

// Kind is the payload variant of a Description.
type Kind uint8

const (
	KindPrimitive Kind = iota
	KindStruct
	KindEnum
	KindPrefix
	KindOpaque
	KindFunction
)

var kindNames = [...]string{
	KindPrimitive: "primitive",
	KindStruct:    "struct",
	KindEnum:      "enum",
	KindPrefix:    "prefix",
	KindOpaque:    "opaque",
	KindFunction:  "function",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Primitive identifies a scalar or pointer-like type.
type Primitive uint8

const (
	PrimNone Primitive = iota
	PrimUnit
	PrimBool
	PrimU8
	PrimI8
	PrimU16
	PrimI16
	PrimU32
	PrimI32
	PrimU64
	PrimI64
	PrimUsize
	PrimIsize
	PrimF32
	PrimF64
	PrimChar
	PrimRef
	PrimMutRef
	PrimRawPtr
	PrimFnPtr
	PrimHandle
)

var primNames = [...]string{
	PrimNone:   "none",
	PrimUnit:   "unit",
	PrimBool:   "bool",
	PrimU8:     "u8",
	PrimI8:     "i8",
	PrimU16:    "u16",
	PrimI16:    "i16",
	PrimU32:    "u32",
	PrimI32:    "i32",
	PrimU64:    "u64",
	PrimI64:    "i64",
	PrimUsize:  "usize",
	PrimIsize:  "isize",
	PrimF32:    "f32",
	PrimF64:    "f64",
	PrimChar:   "char",
	PrimRef:    "ref",
	PrimMutRef: "mut_ref",
	PrimRawPtr: "raw_ptr",
	PrimFnPtr:  "fn_ptr",
	PrimHandle: "handle",
}

func (p Primitive) String() string {
	if int(p) < len(primNames) {
		return primNames[p]
	}
	return "unknown"
}

// IsPointer reports whether the primitive has pointer width.
func (p Primitive) IsPointer() bool {
	switch p {
	case PrimRef, PrimMutRef, PrimRawPtr, PrimFnPtr, PrimUsize, PrimIsize:
		return true
	default:
		return false
	}
}

// FixedSize returns the size of primitives whose size does not depend on
// the target. ok is false for pointer-width primitives.
func (p Primitive) FixedSize() (size uint32, ok bool) {
	switch p {
	case PrimUnit:
		return 0, true
	case PrimBool, PrimU8, PrimI8:
		return 1, true
	case PrimU16, PrimI16:
		return 2, true
	case PrimU32, PrimI32, PrimF32, PrimChar, PrimHandle:
		return 4, true
	case PrimU64, PrimI64, PrimF64:
		return 8, true
	default:
		return 0, false
	}
}

// DiscRepr is the integer representation of an enum discriminant.
type DiscRepr uint8

const (
	DiscDefault DiscRepr = iota
	DiscU8
	DiscI8
	DiscU16
	DiscI16
	DiscU32
	DiscI32
	DiscU64
	DiscI64
	DiscUsize
	DiscIsize
)

var discNames = [...]string{
	DiscDefault: "default",
	DiscU8:      "u8",
	DiscI8:      "i8",
	DiscU16:     "u16",
	DiscI16:     "i16",
	DiscU32:     "u32",
	DiscI32:     "i32",
	DiscU64:     "u64",
	DiscI64:     "i64",
	DiscUsize:   "usize",
	DiscIsize:   "isize",
}

func (d DiscRepr) String() string {
	if int(d) < len(discNames) {
		return discNames[d]
	}
	return "unknown"
}

// Width returns the byte width of the discriminant for the given pointer
// size. DiscDefault follows the C enum convention of 4 bytes.
func (d DiscRepr) Width(pointerSize uint32) uint32 {
	switch d {
	case DiscU8, DiscI8:
		return 1
	case DiscU16, DiscI16:
		return 2
	case DiscU64, DiscI64:
		return 8
	case DiscUsize, DiscIsize:
		return pointerSize
	default:
		return 4
	}
}

// Signed reports whether the discriminant is a signed integer.
func (d DiscRepr) Signed() bool {
	switch d {
	case DiscI8, DiscI16, DiscI32, DiscI64, DiscIsize, DiscDefault:
		return true
	default:
		return false
	}
}

// Fits reports whether v is representable by the discriminant.
func (d DiscRepr) Fits(v int64, pointerSize uint32) bool {
	bits := d.Width(pointerSize) * 8
	if bits >= 64 {
		return d.Signed() || v >= 0
	}
	if d.Signed() {
		lim := int64(1) << (bits - 1)
		return v >= -lim && v < lim
	}
	return v >= 0 && v < int64(1)<<bits
}

// ReprKind selects how fields are ordered and packed.
type ReprKind uint8

const (
	ReprC ReprKind = iota
	ReprTransparent
	ReprInt
	ReprPrimitive
)

var reprNames = [...]string{
	ReprC:           "C",
	ReprTransparent: "transparent",
	ReprInt:         "int",
	ReprPrimitive:   "primitive",
}

func (r ReprKind) String() string {
	if int(r) < len(reprNames) {
		return reprNames[r]
	}
	return "unknown"
}

// Repr is the representation attribute of a type.
type Repr struct {
	Kind ReprKind
	// Disc is the discriminant repr for ReprInt and for ReprC enums that
	// declare one.
	Disc DiscRepr
	// Packed caps field alignment when non-zero.
	Packed uint32
}

func (r Repr) String() string {
	s := r.Kind.String()
	if r.Kind == ReprInt || (r.Kind == ReprC && r.Disc != DiscDefault) {
		s += "(" + r.Disc.String() + ")"
	}
	if r.Packed != 0 {
		s += ",packed(" + strconv.FormatUint(uint64(r.Packed), 10) + ")"
	}
	return s
}

