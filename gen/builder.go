package gen

import (
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"github.com/wippyai/stable-abi/errors"
	"github.com/wippyai/stable-abi/layout"
	"github.com/wippyai/stable-abi/lifetime"
	"github.com/wippyai/stable-abi/registry"
)

// Builder generates layout descriptions for one binary image. Types are
// declared in dependency order; pointer targets may be declared later.
// Errors are collected and reported by Build, and a type whose declaration
// fails produces no description.
type Builder struct {
	byKey   map[layout.Key]*layout.Description
	descs   []*layout.Description
	exports []layout.Key
	errs    []error
	target  Target
}

// NewBuilder creates a builder with the primitive types registered.
func NewBuilder(target Target) *Builder {
	if target.PointerSize == 0 {
		target = HostTarget()
	}
	if target.PointerAlign == 0 {
		target.PointerAlign = target.PointerSize
	}
	b := &Builder{
		target: target,
		byKey:  make(map[layout.Key]*layout.Description),
	}
	for _, p := range primitives {
		size, ok := p.prim.FixedSize()
		align := size
		if !ok {
			size, align = target.PointerSize, target.PointerAlign
		}
		if align == 0 {
			align = 1
		}
		b.add(&layout.Description{
			Key:   layout.K(p.name),
			Kind:  layout.KindPrimitive,
			Prim:  p.prim,
			Size:  size,
			Align: align,
		})
	}
	return b
}

// Target returns the target descriptions are generated for.
func (b *Builder) Target() Target {
	return b.target
}

// Lookup returns a description declared so far.
func (b *Builder) Lookup(key layout.Key) (*layout.Description, bool) {
	d, ok := b.byKey[key]
	return d, ok
}

func (b *Builder) add(d *layout.Description) bool {
	if _, dup := b.byKey[d.Key]; dup {
		b.errs = append(b.errs, errors.Generation(errors.KindDuplicate, []string{d.Key.String()}, "type declared twice"))
		return false
	}
	b.byKey[d.Key] = d
	b.descs = append(b.descs, d)
	return true
}

func (b *Builder) record(d *layout.Description, err error) {
	if err != nil {
		b.errs = append(b.errs, err)
		return
	}
	b.add(d)
}

// Struct declares a struct with a fixed set of fields.
func (b *Builder) Struct(decl TypeDecl, fields ...FieldDecl) layout.Key {
	b.record(b.buildStruct(decl, fields))
	return decl.Key
}

// OpenStruct declares a struct that may gain trailing fields in later
// versions. The first atPublish fields were present when the type was
// first published; fields after that may be absent in older providers.
func (b *Builder) OpenStruct(decl TypeDecl, atPublish int, missing layout.MissingField, fields ...FieldDecl) layout.Key {
	b.record(b.buildOpenStruct(decl, atPublish, missing, fields))
	return decl.Key
}

// Enum declares an exhaustive enum.
func (b *Builder) Enum(decl TypeDecl, variants ...VariantDecl) layout.Key {
	b.record(b.buildEnum(decl, variants))
	return decl.Key
}

// OpenEnum declares an enum whose values are stored type-erased in
// storage and that may gain variants in later versions. caps lists the
// operations its table provides.
func (b *Builder) OpenEnum(decl TypeDecl, storage Storage, caps layout.Caps, variants ...VariantDecl) layout.Key {
	b.record(b.buildOpenEnum(decl, storage, caps, variants))
	return decl.Key
}

// Opaque declares a type whose contents are not described.
func (b *Builder) Opaque(decl TypeDecl, size, align uint32) layout.Key {
	path := []string{decl.Key.String()}
	if !isPow2(align) {
		b.errs = append(b.errs, errors.Generation(errors.KindMalformedRepr, path, "align(%d) is not a power of two", align))
		return decl.Key
	}
	b.add(&layout.Description{
		Key:       decl.Key,
		Kind:      layout.KindOpaque,
		Params:    decl.Params,
		Tags:      decl.Tags,
		Size:      size,
		Align:     align,
		Lifetimes: len(decl.Lifetimes),
		Repr:      decl.Repr,
	})
	return decl.Key
}

// Func declares an exported function with the given signature.
func (b *Builder) Func(decl TypeDecl, fn lifetime.FnPtr) layout.Key {
	b.record(b.buildFunc(decl, fn))
	return decl.Key
}

// Export marks keys as crossing the module boundary.
func (b *Builder) Export(keys ...layout.Key) {
	b.exports = append(b.exports, keys...)
}

// Build checks that every referenced type was declared and freezes the
// descriptions into a registry.
func (b *Builder) Build() (*registry.Registry, error) {
	errs := append([]error(nil), b.errs...)
	for _, d := range b.descs {
		for _, ref := range layout.References(d) {
			if _, ok := b.byKey[ref]; !ok {
				errs = append(errs, errors.Generation(errors.KindUnknownType, []string{d.Key.String()},
					"references undeclared type %s", ref))
			}
		}
	}
	if err := multierr.Combine(errs...); err != nil {
		return nil, err
	}
	return registry.New(b.descs, b.exports)
}

func (b *Builder) buildStruct(decl TypeDecl, decls []FieldDecl) (*layout.Description, error) {
	path := []string{decl.Key.String()}
	if err := checkRepr(path, decl.Repr, decl.Align, false); err != nil {
		return nil, err
	}
	if err := checkTags(path, decl.Tags); err != nil {
		return nil, err
	}

	res := lifetime.NewResolver(decl.Lifetimes...)
	fields, infos, err := b.fields(path, res, decls)
	if err != nil {
		return nil, err
	}

	var whole info
	if decl.Repr.Kind == layout.ReprTransparent {
		if whole, err = transparent(path, infos); err != nil {
			return nil, err
		}
	} else {
		var offsets []uint32
		offsets, whole, err = structLayout(path, 0, infos, decl.Repr.Packed)
		if err != nil {
			return nil, err
		}
		for i := range fields {
			fields[i].Offset = offsets[i]
		}
		if whole, err = applyAlign(path, whole, decl.Align); err != nil {
			return nil, err
		}
	}

	return &layout.Description{
		Key:       decl.Key,
		Kind:      layout.KindStruct,
		Params:    decl.Params,
		Fields:    fields,
		Tags:      decl.Tags,
		Size:      whole.Size,
		Align:     whole.Align,
		Lifetimes: res.EnvCount(),
		Repr:      decl.Repr,
	}, nil
}

// transparent requires exactly one field with a non-zero size.
func transparent(path []string, infos []info) (info, error) {
	var (
		out   info
		count int
	)
	for _, f := range infos {
		if f.Size != 0 {
			out = f
			count++
		}
	}
	if count != 1 {
		return info{}, errors.Generation(errors.KindMalformedRepr, path,
			"transparent repr needs exactly one non-zero-sized field, found %d", count)
	}
	return out, nil
}

func (b *Builder) buildOpenStruct(decl TypeDecl, atPublish int, missing layout.MissingField, decls []FieldDecl) (*layout.Description, error) {
	path := []string{decl.Key.String()}
	if decl.Repr.Kind != layout.ReprC {
		return nil, errors.Generation(errors.KindMalformedRepr, path, "open struct must use C repr, found %s", decl.Repr)
	}
	if atPublish < 0 || atPublish > len(decls) {
		return nil, errors.Generation(errors.KindMalformedRepr, path,
			"%d fields at publish, but %d fields declared", atPublish, len(decls))
	}
	for i, f := range decls[:atPublish] {
		if f.Access == layout.Conditional {
			return nil, errors.Generation(errors.KindMalformedRepr, append(path, f.Name),
				"field %d is part of the published prefix and cannot be conditional", i)
		}
	}

	d, err := b.buildStruct(decl, decls)
	if err != nil {
		return nil, err
	}
	d.Kind = layout.KindPrefix
	d.Prefix = &layout.Prefix{
		FieldsAtPublish: atPublish,
		Extent:          d.Size,
		ExtentAlign:     d.Align,
		Missing:         missing,
	}
	d.Size, d.Align = b.target.PointerSize, b.target.PointerAlign
	return d, nil
}

func (b *Builder) buildEnum(decl TypeDecl, decls []VariantDecl) (*layout.Description, error) {
	path := []string{decl.Key.String()}
	if err := checkRepr(path, decl.Repr, decl.Align, true); err != nil {
		return nil, err
	}
	if decl.Repr.Packed != 0 {
		return nil, errors.Generation(errors.KindMalformedRepr, path, "packed repr on an enum")
	}
	if err := checkTags(path, decl.Tags); err != nil {
		return nil, err
	}
	if len(decls) == 0 {
		return nil, errors.Generation(errors.KindMalformedRepr, path, "enum declares no variants")
	}

	disc := decl.Repr.Disc
	res := lifetime.NewResolver(decl.Lifetimes...)
	variants := make([]layout.Variant, len(decls))
	infos := make([][]info, len(decls))
	names := make(map[string]bool, len(decls))
	discs := make(map[int64]string, len(decls))
	next := int64(0)

	for i, vd := range decls {
		vpath := append(append([]string{}, path...), vd.Name)
		if names[vd.Name] {
			return nil, errors.Generation(errors.KindDuplicate, vpath, "variant declared twice")
		}
		names[vd.Name] = true

		value := next
		if vd.Explicit {
			value = vd.Disc
		}
		if !disc.Fits(value, b.target.PointerSize) {
			return nil, errors.Generation(errors.KindMalformedRepr, vpath,
				"discriminant %d does not fit %s", value, disc)
		}
		if other, dup := discs[value]; dup {
			return nil, errors.Generation(errors.KindDuplicate, vpath,
				"discriminant %d already used by %s", value, other)
		}
		discs[value] = vd.Name
		next = value + 1

		fields, fi, err := b.fields(vpath, res, vd.Fields)
		if err != nil {
			return nil, err
		}
		variants[i] = layout.Variant{Name: vd.Name, Discriminant: value, Fields: fields}
		infos[i] = fi
	}

	vl, err := enumLayout(path, disc.Width(b.target.PointerSize), infos)
	if err != nil {
		return nil, err
	}
	for i := range variants {
		for j := range variants[i].Fields {
			variants[i].Fields[j].Offset = vl.offsets[i][j]
		}
	}
	whole, err := applyAlign(path, vl.whole, decl.Align)
	if err != nil {
		return nil, err
	}

	return &layout.Description{
		Key:    decl.Key,
		Kind:   layout.KindEnum,
		Params: decl.Params,
		Tags:   decl.Tags,
		Enum: &layout.Enum{
			Disc:          disc,
			Variants:      variants,
			PayloadOffset: vl.payload,
		},
		Size:      whole.Size,
		Align:     whole.Align,
		Lifetimes: res.EnvCount(),
		Repr:      decl.Repr,
	}, nil
}

func (b *Builder) buildOpenEnum(decl TypeDecl, storage Storage, caps layout.Caps, decls []VariantDecl) (*layout.Description, error) {
	path := []string{decl.Key.String()}
	if !isPow2(storage.Align) {
		return nil, errors.Generation(errors.KindMalformedRepr, path, "storage align(%d) is not a power of two", storage.Align)
	}

	d, err := b.buildEnum(decl, decls)
	if err != nil {
		return nil, err
	}
	if d.Size > storage.Size || d.Align > storage.Align {
		return nil, errors.New(errors.PhaseGenerate, errors.KindMalformedRepr).
			Path(path...).
			Expected("size<=" + strconv.FormatUint(uint64(storage.Size), 10) + " align<=" + strconv.FormatUint(uint64(storage.Align), 10)).
			Found("size=" + strconv.FormatUint(uint64(d.Size), 10) + " align=" + strconv.FormatUint(uint64(d.Align), 10)).
			Detail("variants do not fit the open enum storage").
			Build()
	}

	known := make([]int64, len(d.Enum.Variants))
	for i, v := range d.Enum.Variants {
		known[i] = v.Discriminant
	}
	d.Enum.Open = &layout.OpenEnum{Known: known, Caps: caps}
	d.Size, d.Align = storage.Size, storage.Align
	return d, nil
}

func (b *Builder) buildFunc(decl TypeDecl, fn lifetime.FnPtr) (*layout.Description, error) {
	path := []string{decl.Key.String()}
	res := lifetime.NewResolver(decl.Lifetimes...)
	f, _, err := res.Function(path, fn)
	if err != nil {
		return nil, err
	}
	sig, err := b.signature(path, f)
	if err != nil {
		return nil, err
	}
	return &layout.Description{
		Key:       decl.Key,
		Kind:      layout.KindFunction,
		Func:      sig,
		Tags:      decl.Tags,
		Size:      b.target.PointerSize,
		Align:     b.target.PointerAlign,
		Lifetimes: res.EnvCount(),
	}, nil
}

func checkTags(path []string, tags []layout.Tag) error {
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		if seen[t.Key] {
			return errors.Generation(errors.KindDuplicate, path, "tag %q declared twice", t.Key)
		}
		seen[t.Key] = true
	}
	return nil
}

// fields resolves the lifetimes and types of declared fields. Offsets are
// left for the caller's layout pass.
func (b *Builder) fields(path []string, res *lifetime.Resolver, decls []FieldDecl) ([]layout.Field, []info, error) {
	fields := make([]layout.Field, len(decls))
	infos := make([]info, len(decls))
	seen := make(map[string]bool, len(decls))

	for i, fd := range decls {
		fpath := append(append([]string{}, path...), fd.Name)
		if seen[fd.Name] {
			return nil, nil, errors.Generation(errors.KindDuplicate, fpath, "field declared twice")
		}
		seen[fd.Name] = true

		rf, err := res.Field(fpath, fd.Type)
		if err != nil {
			return nil, nil, err
		}
		key, fi, err := b.typeKey(fpath, rf.Expr)
		if err != nil {
			return nil, nil, err
		}

		f := layout.Field{
			Name:      fd.Name,
			Type:      key,
			Lifetimes: rf.Lifetimes,
			Access:    fd.Access,
		}
		switch len(rf.Functions) {
		case 0:
		case 1:
			if f.Func, err = b.signature(fpath, &rf.Functions[0]); err != nil {
				return nil, nil, err
			}
		default:
			return nil, nil, errors.Generation(errors.KindNestedFnPointer, fpath,
				"%d function pointers in one field; wrap each in a named type", len(rf.Functions))
		}
		fields[i] = f
		infos[i] = fi
	}
	return fields, infos, nil
}

func (b *Builder) signature(path []string, fn *lifetime.Function) (*layout.Signature, error) {
	sig := &layout.Signature{Params: make([]layout.Param, len(fn.Params))}
	for i, p := range fn.Params {
		name := "param" + strconv.Itoa(i)
		key, _, err := b.typeKey(append(append([]string{}, path...), name), p.Expr)
		if err != nil {
			return nil, err
		}
		sig.Params[i] = layout.Param{Name: name, Type: key, Lifetimes: p.Lifetimes}
	}
	if fn.Return != nil {
		key, _, err := b.typeKey(append(append([]string{}, path...), "return"), fn.Return.Expr)
		if err != nil {
			return nil, err
		}
		sig.Return = &layout.Param{Name: "return", Type: key, Lifetimes: fn.Return.Lifetimes}
	}
	return sig, nil
}

// typeKey returns the key and by-value layout of a type expression,
// declaring pointer and function pointer types on first use. Named types
// must already be declared.
func (b *Builder) typeKey(path []string, e lifetime.Expr) (layout.Key, info, error) {
	switch x := e.(type) {
	case nil, lifetime.Unit:
		return b.named(path, layout.K("()"))
	case lifetime.Named:
		if len(x.Args) > 0 {
			return b.instance(path, x)
		}
		return b.named(path, x.Type)
	case lifetime.Ref:
		prim, prefix := layout.PrimRef, "&"
		if x.Mut {
			prim, prefix = layout.PrimMutRef, "&mut "
		}
		return b.pointer(path, prefix, prim, x.Elem)
	case lifetime.RawPtr:
		prefix := "*const "
		if x.Mut {
			prefix = "*mut "
		}
		return b.pointer(path, prefix, layout.PrimRawPtr, x.Elem)
	case lifetime.FnPtr:
		return b.fnPointer(path, x)
	default:
		return layout.Key{}, info{}, errors.Generation(errors.KindUnknownType, path, "unsupported type expression %T", e)
	}
}

func (b *Builder) named(path []string, key layout.Key) (layout.Key, info, error) {
	d, ok := b.byKey[key]
	if !ok {
		return layout.Key{}, info{}, errors.Generation(errors.KindUnknownType, path,
			"type %s used by value before it is declared", key)
	}
	return key, info{Size: d.Size, Align: d.Align}, nil
}

// instance returns the key of a generic type applied to type arguments.
// A declaration whose Params already list the arguments is used as is;
// otherwise the declaration is instantiated under a key naming the
// arguments, with the argument keys as its Params so that a change in an
// argument is a change in the instance.
func (b *Builder) instance(path []string, n lifetime.Named) (layout.Key, info, error) {
	d, ok := b.byKey[n.Type]
	if !ok {
		return layout.Key{}, info{}, errors.Generation(errors.KindUnknownType, path,
			"generic type %s used before it is declared", n.Type)
	}

	args := make([]layout.Key, len(n.Args))
	names := make([]string, len(n.Args))
	for i, a := range n.Args {
		k, err := b.pointeeKey(append(append([]string{}, path...), "<"+strconv.Itoa(i)+">"), a)
		if err != nil {
			return layout.Key{}, info{}, err
		}
		args[i], names[i] = k, k.Name
	}

	whole := info{Size: d.Size, Align: d.Align}
	if len(d.Params) > 0 {
		if !sameKeys(d.Params, args) {
			return layout.Key{}, info{}, errors.New(errors.PhaseGenerate, errors.KindParamMismatch).
				Path(path...).
				Expected(joinKeys(d.Params)).
				Found(joinKeys(args)).
				Detail("type arguments differ from the declaration of %s", n.Type).
				Build()
		}
		return d.Key, whole, nil
	}

	key := layout.Key{Name: n.Type.Name + "<" + strings.Join(names, ", ") + ">", Version: n.Type.Version}
	if _, ok := b.byKey[key]; !ok {
		inst := *d
		inst.Key = key
		inst.Params = args
		b.add(&inst)
	}
	return key, whole, nil
}

func sameKeys(a, b []layout.Key) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func joinKeys(keys []layout.Key) string {
	s := make([]string, len(keys))
	for i, k := range keys {
		s[i] = k.String()
	}
	return strings.Join(s, ", ")
}

func (b *Builder) pointerInfo() info {
	return info{Size: b.target.PointerSize, Align: b.target.PointerAlign}
}

// pointeeKey returns the key of a pointer target. Named targets need not
// be declared yet.
func (b *Builder) pointeeKey(path []string, e lifetime.Expr) (layout.Key, error) {
	if n, ok := e.(lifetime.Named); ok && len(n.Args) == 0 {
		return n.Type, nil
	}
	key, _, err := b.typeKey(path, e)
	return key, err
}

func (b *Builder) pointer(path []string, prefix string, prim layout.Primitive, elem lifetime.Expr) (layout.Key, info, error) {
	target, err := b.pointeeKey(path, elem)
	if err != nil {
		return layout.Key{}, info{}, err
	}
	key := layout.Key{Name: prefix + target.Name, Version: target.Version}
	if _, ok := b.byKey[key]; !ok {
		pi := b.pointerInfo()
		b.add(&layout.Description{
			Key:    key,
			Kind:   layout.KindPrimitive,
			Prim:   prim,
			Params: []layout.Key{target},
			Size:   pi.Size,
			Align:  pi.Align,
		})
	}
	return key, b.pointerInfo(), nil
}

// fnPointer declares the type of a function pointer. Its key is derived
// from the parameter and return types only, so the same signature gets the
// same key whatever lifetimes the enclosing type declares. Versions of the
// referenced types go to the key's version.
func (b *Builder) fnPointer(path []string, fn lifetime.FnPtr) (layout.Key, info, error) {
	params := make([]layout.Key, 0, len(fn.Params)+1)
	names := make([]string, 0, len(fn.Params))
	var versions []string
	for i, p := range fn.Params {
		k, _, err := b.typeKey(append(append([]string{}, path...), "param"+strconv.Itoa(i)), p)
		if err != nil {
			return layout.Key{}, info{}, err
		}
		params = append(params, k)
		names = append(names, k.Name)
		if k.Version != "" {
			versions = append(versions, k.Version)
		}
	}

	name := `extern "C" fn(` + strings.Join(names, ", ") + ")"
	if !lifetime.IsUnit(fn.Return) {
		k, _, err := b.typeKey(append(append([]string{}, path...), "return"), fn.Return)
		if err != nil {
			return layout.Key{}, info{}, err
		}
		params = append(params, k)
		name += " -> " + k.Name
		if k.Version != "" {
			versions = append(versions, k.Version)
		}
	}

	key := layout.Key{Name: name, Version: strings.Join(versions, ",")}
	if _, ok := b.byKey[key]; !ok {
		pi := b.pointerInfo()
		b.add(&layout.Description{
			Key:    key,
			Kind:   layout.KindPrimitive,
			Prim:   layout.PrimFnPtr,
			Params: params,
			Size:   pi.Size,
			Align:  pi.Align,
		})
	}
	return key, b.pointerInfo(), nil
}
