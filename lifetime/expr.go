package lifetime

import (
	"strings"

	"github.com/wippyai/stable-abi/layout"
)

// Lifetime is a lifetime as written in a declaration: "static", a name, or
// empty for an elided lifetime. A leading apostrophe is accepted.
type Lifetime string

// Elided is the lifetime of a reference written without one.
const Elided Lifetime = ""

// Static is the unbounded lifetime.
const Static Lifetime = "static"

func (l Lifetime) name() string {
	return strings.TrimPrefix(string(l), "'")
}

// IsStatic reports whether l names the unbounded lifetime.
func (l Lifetime) IsStatic() bool {
	return l.name() == "static"
}

// IsElided reports whether l is elided ("" or "_").
func (l Lifetime) IsElided() bool {
	n := l.name()
	return n == "" || n == "_"
}

func (l Lifetime) String() string {
	if l.IsElided() {
		return "'_"
	}
	return "'" + l.name()
}

// Expr is a type expression as it appears in a field or a function pointer
// parameter.
type Expr interface {
	expr()
}

// Named is a nominal type applied to lifetime and type arguments.
type Named struct {
	Type      layout.Key
	Lifetimes []Lifetime
	Args      []Expr
}

// Ref is a reference with a lifetime.
type Ref struct {
	Elem     Expr
	Lifetime Lifetime
	Mut      bool
}

// RawPtr is a raw pointer; it carries no lifetime.
type RawPtr struct {
	Elem Expr
	Mut  bool
}

// FnPtr is a function pointer type.
type FnPtr struct {
	// Return is nil for functions returning unit.
	Return Expr
	ABI    string
	// Bound holds lifetimes declared by the function pointer's own binder.
	Bound  []Lifetime
	Params []Expr
}

// Unit is the empty tuple.
type Unit struct{}

func (Named) expr()  {}
func (Ref) expr()    {}
func (RawPtr) expr() {}
func (FnPtr) expr()  {}
func (Unit) expr()   {}

// IsUnit reports whether e is the empty tuple, written as nil, Unit or the
// named primitive "()".
func IsUnit(e Expr) bool {
	switch x := e.(type) {
	case nil, Unit:
		return true
	case Named:
		return x.Type == (layout.Key{Name: "()"}) && len(x.Lifetimes)+len(x.Args) == 0
	}
	return false
}

// String renders the expression in a Rust-like surface syntax.
func String(e Expr) string {
	var b strings.Builder
	writeExpr(&b, e)
	return b.String()
}

func writeExpr(b *strings.Builder, e Expr) {
	switch x := e.(type) {
	case nil, Unit:
		b.WriteString("()")
	case Named:
		b.WriteString(x.Type.Name)
		if len(x.Lifetimes)+len(x.Args) == 0 {
			return
		}
		b.WriteByte('<')
		n := 0
		for _, l := range x.Lifetimes {
			if n > 0 {
				b.WriteString(", ")
			}
			b.WriteString(l.String())
			n++
		}
		for _, a := range x.Args {
			if n > 0 {
				b.WriteString(", ")
			}
			writeExpr(b, a)
			n++
		}
		b.WriteByte('>')
	case Ref:
		b.WriteByte('&')
		if !x.Lifetime.IsElided() {
			b.WriteString(x.Lifetime.String())
			b.WriteByte(' ')
		}
		if x.Mut {
			b.WriteString("mut ")
		}
		writeExpr(b, x.Elem)
	case RawPtr:
		if x.Mut {
			b.WriteString("*mut ")
		} else {
			b.WriteString("*const ")
		}
		writeExpr(b, x.Elem)
	case FnPtr:
		if len(x.Bound) > 0 {
			b.WriteString("for<")
			for i, l := range x.Bound {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(l.String())
			}
			b.WriteString("> ")
		}
		b.WriteString(`extern "C" fn(`)
		for i, p := range x.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			writeExpr(b, p)
		}
		b.WriteByte(')')
		if !IsUnit(x.Return) {
			b.WriteString(" -> ")
			writeExpr(b, x.Return)
		}
	}
}
