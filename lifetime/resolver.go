package lifetime

import (
	"strconv"

	"github.com/wippyai/stable-abi/errors"
	"github.com/wippyai/stable-abi/layout"
)

const nestedFnHelp = `nested function pointers are not supported.
To use the function pointer as a parameter define a named wrapper type
with a transparent representation holding the function pointer as its only
field, and use that type as the parameter instead.`

// Param is a resolved function pointer parameter or return type.
type Param struct {
	// Expr is the parameter type with elided lifetimes made explicit.
	Expr      Expr
	Lifetimes []layout.LifetimeIndex
}

// Function is a resolved function pointer.
type Function struct {
	// Bound lists every lifetime local to the function pointer, explicit
	// ones first, followed by those introduced for elided lifetimes.
	Bound  []Lifetime
	Params []Param
	// Return is nil for functions returning unit.
	Return *Param
}

// Field is the result of resolving one field type.
type Field struct {
	// Expr is the field type with elided function pointer lifetimes made
	// explicit.
	Expr Expr
	// Lifetimes lists the enclosing type's lifetimes referenced by the
	// field, including Static, in order of use.
	Lifetimes []layout.LifetimeIndex
	// Functions lists every function pointer in the field in visit order.
	Functions []Function
}

// Resolver assigns lifetime indices relative to an enclosing type's
// lifetime parameters. It is used while generating descriptions.
type Resolver struct {
	env []string
}

// NewResolver creates a resolver for a type declaring the given lifetime
// parameters in order.
func NewResolver(env ...Lifetime) *Resolver {
	names := make([]string, len(env))
	for i, l := range env {
		names[i] = l.name()
	}
	return &Resolver{env: names}
}

// EnvCount returns the number of lifetimes declared by the enclosing type.
func (r *Resolver) EnvCount() int {
	return len(r.env)
}

func (r *Resolver) envIndex(name string) (int, bool) {
	for i, n := range r.env {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// Field resolves the lifetimes of a field type. path names the field for
// error reporting.
func (r *Resolver) Field(path []string, e Expr) (*Field, error) {
	v := &fieldVisitor{r: r, path: path}
	out, err := v.visit(e)
	if err != nil {
		return nil, err
	}
	return &Field{
		Expr:      out,
		Lifetimes: v.lifetimes,
		Functions: v.functions,
	}, nil
}

// Function resolves a function pointer used directly as an exported
// function signature.
func (r *Resolver) Function(path []string, fn FnPtr) (*Function, []layout.LifetimeIndex, error) {
	v := &fieldVisitor{r: r, path: path}
	if _, err := v.visit(fn); err != nil {
		return nil, nil, err
	}
	return &v.functions[0], v.lifetimes, nil
}

type fieldVisitor struct {
	r         *Resolver
	path      []string
	lifetimes []layout.LifetimeIndex
	functions []Function
}

func (v *fieldVisitor) addEnv(li layout.LifetimeIndex) {
	if idx, ok := li.Index(); ok && idx >= len(v.r.env) {
		return
	}
	v.lifetimes = append(v.lifetimes, li)
}

func (v *fieldVisitor) resolveNamed(l Lifetime) (layout.LifetimeIndex, error) {
	if l.IsStatic() {
		return layout.StaticLifetime(), nil
	}
	if l.IsElided() {
		return layout.LifetimeIndex{}, errors.Generation(errors.KindUnknownLifetime, v.path,
			"elided lifetime outside a function pointer")
	}
	if i, ok := v.r.envIndex(l.name()); ok {
		return layout.ParamLifetime(i), nil
	}
	return layout.LifetimeIndex{}, errors.Generation(errors.KindUnknownLifetime, v.path,
		"unknown lifetime %s", l)
}

func (v *fieldVisitor) visit(e Expr) (Expr, error) {
	switch x := e.(type) {
	case nil:
		return Unit{}, nil
	case Unit:
		return x, nil
	case Named:
		out := Named{Type: x.Type}
		for _, l := range x.Lifetimes {
			li, err := v.resolveNamed(l)
			if err != nil {
				return nil, err
			}
			v.addEnv(li)
			out.Lifetimes = append(out.Lifetimes, l)
		}
		for _, a := range x.Args {
			ra, err := v.visit(a)
			if err != nil {
				return nil, err
			}
			out.Args = append(out.Args, ra)
		}
		return out, nil
	case Ref:
		li, err := v.resolveNamed(x.Lifetime)
		if err != nil {
			return nil, err
		}
		v.addEnv(li)
		elem, err := v.visit(x.Elem)
		if err != nil {
			return nil, err
		}
		return Ref{Lifetime: x.Lifetime, Mut: x.Mut, Elem: elem}, nil
	case RawPtr:
		elem, err := v.visit(x.Elem)
		if err != nil {
			return nil, err
		}
		return RawPtr{Mut: x.Mut, Elem: elem}, nil
	case FnPtr:
		return v.visitFn(x)
	default:
		return nil, errors.Generation(errors.KindUnknownType, v.path, "unsupported type expression %T", e)
	}
}

func (v *fieldVisitor) visitFn(fn FnPtr) (Expr, error) {
	if fn.ABI != "" && fn.ABI != "C" {
		return nil, errors.Generation(errors.KindUnsupportedABI, v.path,
			"abi %q not supported for function pointers, use \"C\"", fn.ABI)
	}

	fv := &fnVisitor{
		field: v,
		bound: make([]string, 0, len(fn.Bound)),
	}
	for _, l := range fn.Bound {
		fv.bound = append(fv.bound, l.name())
	}
	fv.explicit = len(fv.bound)

	out := FnPtr{ABI: "C"}
	var info Function

	for i, p := range fn.Params {
		fv.path = append(append([]string{}, v.path...), "param"+strconv.Itoa(i))
		fv.ret = false
		fv.refs = nil
		rp, err := fv.visit(p)
		if err != nil {
			return nil, err
		}
		out.Params = append(out.Params, rp)
		info.Params = append(info.Params, Param{Expr: rp, Lifetimes: fv.refs})
	}

	if !IsUnit(fn.Return) {
		fv.path = append(append([]string{}, v.path...), "return")
		fv.ret = true
		fv.refs = nil
		fv.candidates = paramLifetimes(info.Params)
		rr, err := fv.visit(fn.Return)
		if err != nil {
			return nil, err
		}
		out.Return = rr
		info.Return = &Param{Expr: rr, Lifetimes: fv.refs}
	}

	for _, n := range fv.bound {
		out.Bound = append(out.Bound, Lifetime(n))
		info.Bound = append(info.Bound, Lifetime(n))
	}
	v.functions = append(v.functions, info)
	return out, nil
}

// paramLifetimes returns the distinct lifetimes used by the parameters in
// first-use order.
func paramLifetimes(params []Param) []layout.LifetimeIndex {
	var out []layout.LifetimeIndex
	seen := make(map[layout.LifetimeIndex]bool)
	for _, p := range params {
		for _, l := range p.Lifetimes {
			if !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
	}
	return out
}

type fnVisitor struct {
	field      *fieldVisitor
	path       []string
	bound      []string
	refs       []layout.LifetimeIndex
	candidates []layout.LifetimeIndex
	explicit   int
	ret        bool
}

func (f *fnVisitor) envCount() int {
	return len(f.field.r.env)
}

// nameOf returns the source name of a lifetime visible in this function.
func (f *fnVisitor) nameOf(li layout.LifetimeIndex) Lifetime {
	idx, ok := li.Index()
	if !ok {
		return Static
	}
	if idx < f.envCount() {
		return Lifetime(f.field.r.env[idx])
	}
	return Lifetime(f.bound[idx-f.envCount()])
}

func (f *fnVisitor) newBound() (layout.LifetimeIndex, Lifetime) {
	idx := f.envCount() + len(f.bound)
	name := "_" + strconv.Itoa(idx)
	f.bound = append(f.bound, name)
	return layout.ParamLifetime(idx), Lifetime(name)
}

// setup resolves one lifetime use inside the function pointer and returns
// the lifetime to write in the rewritten type.
func (f *fnVisitor) setup(l Lifetime) (Lifetime, error) {
	var li layout.LifetimeIndex
	out := l
	switch {
	case l.IsStatic():
		li = layout.StaticLifetime()
	case l.IsElided() && !f.ret:
		li, out = f.newBound()
	case l.IsElided():
		switch len(f.candidates) {
		case 0:
			return "", errors.Generation(errors.KindAmbiguousElision, f.path,
				"elided lifetime in the return type when no lifetime is used in any parameter")
		case 1:
			li = f.candidates[0]
			out = f.nameOf(li)
		default:
			return "", errors.Generation(errors.KindAmbiguousElision, f.path,
				"elided lifetime in the return type when %d lifetimes are used in parameters", len(f.candidates))
		}
	default:
		name := l.name()
		found := false
		if i, ok := f.field.r.envIndex(name); ok {
			li, found = layout.ParamLifetime(i), true
		} else {
			for i, b := range f.bound[:f.explicit] {
				if b == name {
					li, found = layout.ParamLifetime(f.envCount()+i), true
					break
				}
			}
		}
		if !found {
			return "", errors.Generation(errors.KindUnknownLifetime, f.path, "unknown lifetime %s", l)
		}
	}
	f.refs = append(f.refs, li)
	f.field.addEnv(li)
	return out, nil
}

func (f *fnVisitor) visit(e Expr) (Expr, error) {
	switch x := e.(type) {
	case nil:
		return Unit{}, nil
	case Unit:
		return x, nil
	case Named:
		out := Named{Type: x.Type}
		for _, l := range x.Lifetimes {
			rl, err := f.setup(l)
			if err != nil {
				return nil, err
			}
			out.Lifetimes = append(out.Lifetimes, rl)
		}
		for _, a := range x.Args {
			ra, err := f.visit(a)
			if err != nil {
				return nil, err
			}
			out.Args = append(out.Args, ra)
		}
		return out, nil
	case Ref:
		rl, err := f.setup(x.Lifetime)
		if err != nil {
			return nil, err
		}
		elem, err := f.visit(x.Elem)
		if err != nil {
			return nil, err
		}
		return Ref{Lifetime: rl, Mut: x.Mut, Elem: elem}, nil
	case RawPtr:
		elem, err := f.visit(x.Elem)
		if err != nil {
			return nil, err
		}
		return RawPtr{Mut: x.Mut, Elem: elem}, nil
	case FnPtr:
		return nil, errors.New(errors.PhaseGenerate, errors.KindNestedFnPointer).
			Path(f.path...).
			Found(String(x)).
			Detail(nestedFnHelp).
			Build()
	default:
		return nil, errors.Generation(errors.KindUnknownType, f.path, "unsupported type expression %T", e)
	}
}
