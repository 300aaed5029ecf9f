package witgen

import (
	"strconv"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/stable-abi/errors"
	"github.com/wippyai/stable-abi/gen"
	"github.com/wippyai/stable-abi/layout"
	"github.com/wippyai/stable-abi/lifetime"
)

// Generator declares descriptions for WIT types on a gen.Builder.
type Generator struct {
	b         *gen.Builder
	defs      map[*wit.TypeDef]lifetime.Named
	anonymous map[string]lifetime.Named
	namespace string
	version   string
}

// New creates a generator declaring named types as namespace.name at
// version. b should target Wasm32 to match the canonical ABI.
func New(b *gen.Builder, namespace, version string) *Generator {
	return &Generator{
		b:         b,
		defs:      make(map[*wit.TypeDef]lifetime.Named),
		anonymous: make(map[string]lifetime.Named),
		namespace: namespace,
		version:   version,
	}
}

// Define declares t under name and returns its key.
func (g *Generator) Define(name string, t *wit.TypeDef) (layout.Key, error) {
	if e, ok := g.defs[t]; ok {
		return e.Type, nil
	}
	e, err := g.def(name, t)
	if err != nil {
		return layout.Key{}, err
	}
	return e.Type, nil
}

// Type returns the type expression of t, declaring every type it needs.
func (g *Generator) Type(t wit.Type) (lifetime.Named, error) {
	switch typ := t.(type) {
	case wit.Bool:
		return gen.Bool, nil
	case wit.U8:
		return gen.U8, nil
	case wit.S8:
		return gen.I8, nil
	case wit.U16:
		return gen.U16, nil
	case wit.S16:
		return gen.I16, nil
	case wit.U32:
		return gen.U32, nil
	case wit.S32:
		return gen.I32, nil
	case wit.U64:
		return gen.U64, nil
	case wit.S64:
		return gen.I64, nil
	case wit.F32:
		return gen.F32, nil
	case wit.F64:
		return gen.F64, nil
	case wit.Char:
		return gen.Char, nil
	case wit.String:
		return g.slice("string", gen.U8), nil
	case *wit.TypeDef:
		if e, ok := g.defs[typ]; ok {
			return e, nil
		}
		name := ""
		if typ.Name != nil {
			name = *typ.Name
		}
		return g.def(name, typ)
	case nil:
		return gen.Unit, nil
	default:
		return lifetime.Named{}, unsupported(nil, "%T", t)
	}
}

func unsupported(path []string, format string, args ...any) error {
	return errors.New(errors.PhaseGenerate, errors.KindUnsupported).
		Path(path...).
		Detail("unsupported WIT type "+format, args...).
		Build()
}

func (g *Generator) qualify(name string) string {
	if g.namespace == "" {
		return name
	}
	return g.namespace + "." + name
}

func (g *Generator) def(name string, t *wit.TypeDef) (lifetime.Named, error) {
	var (
		e   lifetime.Named
		err error
	)
	switch kind := t.Kind.(type) {
	case *wit.Record:
		e, err = g.record(name, kind)
	case *wit.Variant:
		e, err = g.variant(name, kind)
	case *wit.Enum:
		e, err = g.enum(name, kind)
	case *wit.Flags:
		e, err = g.flags(name, kind)
	case *wit.Tuple:
		e, err = g.tuple(kind)
	case *wit.List:
		e, err = g.list(kind)
	case *wit.Option:
		e, err = g.option(kind)
	case *wit.Result:
		e, err = g.result(kind)
	case *wit.Own:
		e = g.handle("own", kind.Type)
	case *wit.Borrow:
		e = g.handle("borrow", kind.Type)
	case wit.Type:
		e, err = g.Type(kind)
	default:
		err = unsupported([]string{name}, "%T", t.Kind)
	}
	if err != nil {
		return lifetime.Named{}, err
	}
	g.defs[t] = e
	return e, nil
}

func (g *Generator) named(name, what string) (layout.Key, error) {
	if name == "" {
		return layout.Key{}, unsupported(nil, "anonymous %s", what)
	}
	return layout.Key{Name: g.qualify(name), Version: g.version}, nil
}

func (g *Generator) record(name string, r *wit.Record) (lifetime.Named, error) {
	key, err := g.named(name, "record")
	if err != nil {
		return lifetime.Named{}, err
	}
	fields := make([]gen.FieldDecl, len(r.Fields))
	for i, f := range r.Fields {
		e, err := g.Type(f.Type)
		if err != nil {
			return lifetime.Named{}, errors.WithPrefix(err, key.Name, f.Name)
		}
		fields[i] = gen.F(f.Name, e)
	}
	g.b.Struct(gen.TypeDecl{Key: key}, fields...)
	return lifetime.Named{Type: key}, nil
}

// discRepr sizes a discriminant by case count.
func discRepr(cases int) layout.Repr {
	disc := layout.DiscU8
	switch {
	case cases > 1<<16:
		disc = layout.DiscU32
	case cases > 1<<8:
		disc = layout.DiscU16
	}
	return layout.Repr{Kind: layout.ReprInt, Disc: disc}
}

func (g *Generator) variant(name string, v *wit.Variant) (lifetime.Named, error) {
	key, err := g.named(name, "variant")
	if err != nil {
		return lifetime.Named{}, err
	}
	cases := make([]gen.VariantDecl, len(v.Cases))
	for i, c := range v.Cases {
		if c.Name == "" {
			return lifetime.Named{}, unnamedCase(key, i)
		}
		if c.Type == nil {
			cases[i] = gen.V(c.Name)
			continue
		}
		e, err := g.Type(c.Type)
		if err != nil {
			return lifetime.Named{}, errors.WithPrefix(err, key.Name, c.Name)
		}
		cases[i] = gen.V(c.Name, gen.F("value", e))
	}
	g.b.Enum(gen.TypeDecl{Key: key, Repr: discRepr(len(cases))}, cases...)
	return lifetime.Named{Type: key}, nil
}

func unnamedCase(key layout.Key, i int) error {
	return errors.Generation(errors.KindMalformedRepr, []string{key.String(), "#" + strconv.Itoa(i)}, "case %d has no name", i)
}

func (g *Generator) enum(name string, en *wit.Enum) (lifetime.Named, error) {
	key, err := g.named(name, "enum")
	if err != nil {
		return lifetime.Named{}, err
	}
	cases := make([]gen.VariantDecl, len(en.Cases))
	for i, c := range en.Cases {
		if c.Name == "" {
			return lifetime.Named{}, unnamedCase(key, i)
		}
		cases[i] = gen.V(c.Name)
	}
	g.b.Enum(gen.TypeDecl{Key: key, Repr: discRepr(len(cases))}, cases...)
	return lifetime.Named{Type: key}, nil
}

func (g *Generator) flags(name string, f *wit.Flags) (lifetime.Named, error) {
	key, err := g.named(name, "flags")
	if err != nil {
		return lifetime.Named{}, err
	}
	decl := gen.TypeDecl{Key: key}
	n := len(f.Flags)
	switch {
	case n == 0:
		g.b.Struct(decl)
	case n <= 64:
		bits := gen.U64
		switch {
		case n <= 8:
			bits = gen.U8
		case n <= 16:
			bits = gen.U16
		case n <= 32:
			bits = gen.U32
		}
		decl.Repr = layout.Repr{Kind: layout.ReprTransparent}
		g.b.Struct(decl, gen.F("bits", bits))
	default:
		words := make([]gen.FieldDecl, (n+31)/32)
		for i := range words {
			words[i] = gen.F("bits"+strconv.Itoa(i), gen.U32)
		}
		g.b.Struct(decl, words...)
	}
	return lifetime.Named{Type: key}, nil
}

// structural declares an unnamed type once per structural name.
func (g *Generator) structural(name string, declare func(key layout.Key)) lifetime.Named {
	if e, ok := g.anonymous[name]; ok {
		return e
	}
	key := layout.K(name)
	declare(key)
	e := lifetime.Named{Type: key}
	g.anonymous[name] = e
	return e
}

// slice is the {ptr, len} pair strings and lists lower to.
func (g *Generator) slice(name string, elem lifetime.Expr) lifetime.Named {
	return g.structural(name, func(key layout.Key) {
		g.b.Struct(gen.TypeDecl{Key: key}, gen.F("ptr", gen.Ptr(elem)), gen.F("len", gen.U32))
	})
}

func (g *Generator) list(l *wit.List) (lifetime.Named, error) {
	elem, err := g.Type(l.Type)
	if err != nil {
		return lifetime.Named{}, err
	}
	return g.slice("list<"+elem.Type.Name+">", elem), nil
}

func (g *Generator) tuple(t *wit.Tuple) (lifetime.Named, error) {
	elems := make([]lifetime.Named, len(t.Types))
	names := make([]string, len(t.Types))
	for i, typ := range t.Types {
		e, err := g.Type(typ)
		if err != nil {
			return lifetime.Named{}, err
		}
		elems[i], names[i] = e, e.Type.Name
	}
	name := "tuple<" + strings.Join(names, ", ") + ">"
	return g.structural(name, func(key layout.Key) {
		fields := make([]gen.FieldDecl, len(elems))
		for i, e := range elems {
			fields[i] = gen.F(strconv.Itoa(i), e)
		}
		g.b.Struct(gen.TypeDecl{Key: key}, fields...)
	}), nil
}

func (g *Generator) option(o *wit.Option) (lifetime.Named, error) {
	e, err := g.Type(o.Type)
	if err != nil {
		return lifetime.Named{}, err
	}
	return g.structural("option<"+e.Type.Name+">", func(key layout.Key) {
		g.b.Enum(gen.TypeDecl{Key: key, Repr: discRepr(2)},
			gen.V("none"),
			gen.V("some", gen.F("value", e)),
		)
	}), nil
}

func (g *Generator) result(r *wit.Result) (lifetime.Named, error) {
	ok, err := g.payload(r.OK)
	if err != nil {
		return lifetime.Named{}, err
	}
	bad, err := g.payload(r.Err)
	if err != nil {
		return lifetime.Named{}, err
	}
	name := "result<" + payloadName(ok) + ", " + payloadName(bad) + ">"
	return g.structural(name, func(key layout.Key) {
		g.b.Enum(gen.TypeDecl{Key: key, Repr: discRepr(2)},
			gen.V("ok", ok...),
			gen.V("error", bad...),
		)
	}), nil
}

func (g *Generator) payload(t wit.Type) ([]gen.FieldDecl, error) {
	if t == nil {
		return nil, nil
	}
	e, err := g.Type(t)
	if err != nil {
		return nil, err
	}
	return []gen.FieldDecl{gen.F("value", e)}, nil
}

func payloadName(fields []gen.FieldDecl) string {
	if len(fields) == 0 {
		return "_"
	}
	return fields[0].Type.(lifetime.Named).Type.Name
}

// handle lowers own and borrow to a u32 table index.
func (g *Generator) handle(kind string, resource *wit.TypeDef) lifetime.Named {
	name := "resource"
	if resource != nil && resource.Name != nil {
		name = g.qualify(*resource.Name)
	}
	return g.structural(kind+"<"+name+">", func(key layout.Key) {
		g.b.Struct(gen.TypeDecl{Key: key, Repr: layout.Repr{Kind: layout.ReprTransparent}}, gen.F("handle", gen.U32))
	})
}
