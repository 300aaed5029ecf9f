package gen

import (
	"unsafe"

	"github.com/wippyai/stable-abi/layout"
	"github.com/wippyai/stable-abi/lifetime"
)

// Target describes the pointer width descriptions are generated for.
type Target struct {
	PointerSize  uint32
	PointerAlign uint32
}

// HostTarget returns the target of the running binary.
func HostTarget() Target {
	size := uint32(unsafe.Sizeof(uintptr(0)))
	return Target{PointerSize: size, PointerAlign: size}
}

// Wasm32 is the 32-bit target used by the canonical ABI.
var Wasm32 = Target{PointerSize: 4, PointerAlign: 4}

// TypeDecl is the declaration header shared by every generated type.
type TypeDecl struct {
	Key layout.Key
	// Lifetimes are the type's own lifetime parameters in declaration order.
	Lifetimes []lifetime.Lifetime
	// Params are generic type arguments the layout depends on.
	Params []layout.Key
	Repr   layout.Repr
	// Align raises the type's alignment when non-zero.
	Align uint32
	Tags  []layout.Tag
}

// Decl is shorthand for a declaration with default repr.
func Decl(name, version string) TypeDecl {
	return TypeDecl{Key: layout.Key{Name: name, Version: version}}
}

// FieldDecl declares one field.
type FieldDecl struct {
	Type   lifetime.Expr
	Name   string
	Access layout.Accessibility
}

// F declares an accessible field.
func F(name string, t lifetime.Expr) FieldDecl {
	return FieldDecl{Name: name, Type: t}
}

// Cond declares an open struct field whose presence depends on a
// capability flag of the provider.
func Cond(name string, t lifetime.Expr) FieldDecl {
	return FieldDecl{Name: name, Type: t, Access: layout.Conditional}
}

// VariantDecl declares one enum variant.
type VariantDecl struct {
	Name     string
	Fields   []FieldDecl
	Disc     int64
	Explicit bool
}

// V declares a variant whose discriminant follows the previous one.
func V(name string, fields ...FieldDecl) VariantDecl {
	return VariantDecl{Name: name, Fields: fields}
}

// VD declares a variant with an explicit discriminant.
func VD(name string, disc int64, fields ...FieldDecl) VariantDecl {
	return VariantDecl{Name: name, Disc: disc, Explicit: true, Fields: fields}
}

// Storage is the inline storage of an open enum's erased values.
type Storage struct {
	Size  uint32
	Align uint32
}

// Type expression helpers.

// T refers to a named type by key.
func T(name string) lifetime.Named {
	return lifetime.Named{Type: layout.K(name)}
}

// TV refers to a named type by name and version.
func TV(name, version string) lifetime.Named {
	return lifetime.Named{Type: layout.Key{Name: name, Version: version}}
}

// G applies a generic named type to type arguments.
func G(name string, args ...lifetime.Expr) lifetime.Named {
	return lifetime.Named{Type: layout.K(name), Args: args}
}

// Ref is a shared reference with the given lifetime.
func Ref(lt lifetime.Lifetime, elem lifetime.Expr) lifetime.Ref {
	return lifetime.Ref{Lifetime: lt, Elem: elem}
}

// MutRef is a mutable reference with the given lifetime.
func MutRef(lt lifetime.Lifetime, elem lifetime.Expr) lifetime.Ref {
	return lifetime.Ref{Lifetime: lt, Mut: true, Elem: elem}
}

// Ptr is a raw pointer.
func Ptr(elem lifetime.Expr) lifetime.RawPtr {
	return lifetime.RawPtr{Elem: elem}
}

// Fn is an extern "C" function pointer.
func Fn(ret lifetime.Expr, params ...lifetime.Expr) lifetime.FnPtr {
	return lifetime.FnPtr{ABI: "C", Params: params, Return: ret}
}

// Primitive keys registered in every builder.
var (
	Unit  = T("()")
	Bool  = T("bool")
	U8    = T("u8")
	I8    = T("i8")
	U16   = T("u16")
	I16   = T("i16")
	U32   = T("u32")
	I32   = T("i32")
	U64   = T("u64")
	I64   = T("i64")
	Usize = T("usize")
	Isize = T("isize")
	F32   = T("f32")
	F64   = T("f64")
	Char  = T("char")
)

var primitives = []struct {
	name string
	prim layout.Primitive
}{
	{"()", layout.PrimUnit},
	{"bool", layout.PrimBool},
	{"u8", layout.PrimU8},
	{"i8", layout.PrimI8},
	{"u16", layout.PrimU16},
	{"i16", layout.PrimI16},
	{"u32", layout.PrimU32},
	{"i32", layout.PrimI32},
	{"u64", layout.PrimU64},
	{"i64", layout.PrimI64},
	{"usize", layout.PrimUsize},
	{"isize", layout.PrimIsize},
	{"f32", layout.PrimF32},
	{"f64", layout.PrimF64},
	{"char", layout.PrimChar},
}
