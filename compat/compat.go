package compat

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/stable-abi/errors"
	"github.com/wippyai/stable-abi/layout"
)

const absent = "<absent>"

// Options configures a Checker.
type Options struct {
	// Logger receives tag deviations accepted with warn strictness.
	// Defaults to the package logger.
	Logger *zap.Logger
	// Overrides replaces the declared strictness of tags by key.
	Overrides map[string]layout.Strictness
	// NoFastPath disables the fingerprint shortcut.
	NoFastPath bool
}

// Deviation is a tag mismatch accepted with warn strictness.
type Deviation struct {
	Tag      string
	Expected string
	Found    string
	Path     []string
}

func (d Deviation) String() string {
	return strings.Join(d.Path, ".") + ": tag " + d.Tag + " expected " + d.Expected + ", found " + d.Found
}

// Report is the outcome of a successful or failed check.
type Report struct {
	Deviations []Deviation
	// FastPath is set when equal fingerprints made the structural walk
	// unnecessary.
	FastPath bool
}

// Checker compares descriptions from an expected image against those of a
// found image. It holds no per-check state and is safe for concurrent use.
type Checker struct {
	expected layout.Image
	found    layout.Image
	log      *zap.Logger
	opts     Options
}

// New creates a checker resolving references of expected descriptions in
// expected and those of found descriptions in found.
func New(expected, found layout.Image, opts Options) *Checker {
	log := opts.Logger
	if log == nil {
		log = Logger()
	}
	return &Checker{expected: expected, found: found, log: log, opts: opts}
}

// Check reports whether the found image's description can be used where
// the expected one is assumed. The returned error is the first
// incompatibility, carrying the path from the root type.
func Check(expected layout.Image, exp *layout.Description, found layout.Image, fnd *layout.Description) error {
	_, err := New(expected, found, Options{}).Check(exp, fnd)
	return err
}

// CheckKey resolves key in both images and checks the pair.
func (c *Checker) CheckKey(expected, found layout.Key) (*Report, error) {
	exp, ok := c.expected.Lookup(expected)
	if !ok {
		return &Report{}, errors.Incompatible(errors.KindUnresolvedType, []string{expected.String()}, "not in the expected image")
	}
	fnd, ok := c.found.Lookup(found)
	if !ok {
		return &Report{}, errors.Incompatible(errors.KindUnresolvedType, []string{found.String()}, "not in the found image")
	}
	return c.Check(exp, fnd)
}

// Check compares two descriptions.
func (c *Checker) Check(exp, fnd *layout.Description) (*Report, error) {
	report := &Report{}
	if c.fastPath(exp, fnd) {
		report.FastPath = true
		return report, nil
	}

	r := &run{
		c:          c,
		report:     report,
		inProgress: map[pair]struct{}{{exp.Key, fnd.Key}: {}},
		done:       make(map[pair]struct{}),
	}
	err := r.node([]string{exp.Key.Name}, exp, fnd)
	return report, err
}

// fastPath reports whether both closures hash equal and fully resolve.
// It only applies to descriptions their images return for their own key.
func (c *Checker) fastPath(exp, fnd *layout.Description) bool {
	if c.opts.NoFastPath || len(c.opts.Overrides) > 0 || exp.Key != fnd.Key {
		return false
	}
	if d, ok := c.expected.Lookup(exp.Key); !ok || d != exp {
		return false
	}
	if d, ok := c.found.Lookup(fnd.Key); !ok || d != fnd {
		return false
	}
	a, err := layout.Fingerprint(c.expected, exp.Key)
	if err != nil {
		return false
	}
	b, err := layout.Fingerprint(c.found, fnd.Key)
	if err != nil || a != b {
		return false
	}
	return len(layout.Unresolved(c.expected, exp.Key)) == 0
}

type pair struct {
	expected layout.Key
	found    layout.Key
}

// run is the state of one Check call.
type run struct {
	c          *Checker
	report     *Report
	inProgress map[pair]struct{}
	// done holds pairs already proven compatible in this run.
	done map[pair]struct{}
}

func sub(path []string, name ...string) []string {
	return append(append(make([]string, 0, len(path)+len(name)), path...), name...)
}

// typeRef resolves and compares a pair of referenced types. A pair already
// being compared further up the stack is assumed compatible; a pair already
// proven compatible is not walked again.
func (r *run) typeRef(path []string, ek, fk layout.Key) error {
	p := pair{ek, fk}
	if _, ok := r.inProgress[p]; ok {
		return nil
	}
	if _, ok := r.done[p]; ok {
		return nil
	}
	exp, ok := r.c.expected.Lookup(ek)
	if !ok {
		return errors.New(errors.PhaseCheck, errors.KindUnresolvedType).
			Path(path...).
			Expected(ek.String()).
			Detail("type not in the expected image").
			Build()
	}
	fnd, ok := r.c.found.Lookup(fk)
	if !ok {
		return errors.New(errors.PhaseCheck, errors.KindUnresolvedType).
			Path(path...).
			Found(fk.String()).
			Detail("type not in the found image").
			Build()
	}

	r.inProgress[p] = struct{}{}
	err := r.node(path, exp, fnd)
	delete(r.inProgress, p)
	if err == nil {
		r.done[p] = struct{}{}
	}
	return err
}

func (r *run) node(path []string, exp, fnd *layout.Description) error {
	switch {
	case exp.Key.Name != fnd.Key.Name:
		return errors.Mismatch(errors.KindNameMismatch, path, exp.Key.Name, fnd.Key.Name)
	case exp.Size != fnd.Size:
		return errors.Mismatch(errors.KindSizeMismatch, path, exp.Size, fnd.Size)
	case exp.Align != fnd.Align:
		return errors.Mismatch(errors.KindAlignMismatch, path, exp.Align, fnd.Align)
	case exp.Repr != fnd.Repr:
		return errors.Mismatch(errors.KindReprMismatch, path, exp.Repr, fnd.Repr)
	case exp.Kind != fnd.Kind:
		return errors.Mismatch(errors.KindKindMismatch, path, exp.Kind, fnd.Kind)
	}

	if len(exp.Params) != len(fnd.Params) {
		return errors.Mismatch(errors.KindParamMismatch, path, len(exp.Params), len(fnd.Params))
	}
	for i := range exp.Params {
		if err := r.typeRef(sub(path, "<"+exp.Params[i].Name+">"), exp.Params[i], fnd.Params[i]); err != nil {
			return err
		}
	}

	var err error
	switch exp.Kind {
	case layout.KindPrimitive:
		if exp.Prim != fnd.Prim {
			err = errors.Mismatch(errors.KindPrimitiveMismatch, path, exp.Prim, fnd.Prim)
		}
	case layout.KindStruct:
		err = r.structFields(path, exp, fnd)
	case layout.KindPrefix:
		err = r.prefix(path, exp, fnd)
	case layout.KindEnum:
		err = r.enum(path, exp, fnd)
	case layout.KindFunction:
		err = r.signature(path, exp.Func, fnd.Func)
	case layout.KindOpaque:
	}
	if err != nil {
		return err
	}
	return r.tags(path, exp, fnd)
}

func (r *run) structFields(path []string, exp, fnd *layout.Description) error {
	if len(exp.Fields) != len(fnd.Fields) {
		for _, ef := range exp.Fields {
			if _, _, ok := fnd.Field(ef.Name); !ok {
				return errors.FieldMissing(sub(path, ef.Name), ef.Name)
			}
		}
		return errors.Mismatch(errors.KindFieldCount, path, len(exp.Fields), len(fnd.Fields))
	}
	for i := range exp.Fields {
		if err := r.field(path, &exp.Fields[i], &fnd.Fields[i]); err != nil {
			return err
		}
	}
	return nil
}

// prefix compares open structs. Fields are matched by position since
// later versions only append.
func (r *run) prefix(path []string, exp, fnd *layout.Description) error {
	ep, fp := exp.Prefix, fnd.Prefix
	if ep == nil || fp == nil {
		return errors.Incompatible(errors.KindPrefixMismatch, path, "open struct without prefix data")
	}
	if ep.FieldsAtPublish != fp.FieldsAtPublish {
		return errors.New(errors.PhaseCheck, errors.KindPrefixMismatch).
			Path(path...).
			Expected(strconv.Itoa(ep.FieldsAtPublish)).
			Found(strconv.Itoa(fp.FieldsAtPublish)).
			Detail("number of fields at first publication differs").
			Build()
	}

	for i := range exp.Fields {
		ef := &exp.Fields[i]
		if i >= len(fnd.Fields) {
			if i < ep.FieldsAtPublish {
				return errors.FieldMissing(sub(path, ef.Name), ef.Name)
			}
			continue
		}
		ff := &fnd.Fields[i]
		if ef.Access != ff.Access {
			return errors.New(errors.PhaseCheck, errors.KindPrefixMismatch).
				Path(sub(path, ef.Name)...).
				Expected(ef.Access.String()).
				Found(ff.Access.String()).
				Detail("field accessibility differs").
				Build()
		}
		if err := r.field(path, ef, ff); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) enum(path []string, exp, fnd *layout.Description) error {
	ee, fe := exp.Enum, fnd.Enum
	if ee == nil || fe == nil {
		return errors.Incompatible(errors.KindVariantMismatch, path, "enum without variant data")
	}
	if ee.Disc != fe.Disc {
		return errors.Mismatch(errors.KindDiscriminantRepr, path, ee.Disc, fe.Disc)
	}
	eOpen, fOpen := ee.Open != nil, fe.Open != nil
	if eOpen != fOpen {
		return errors.New(errors.PhaseCheck, errors.KindOpennessMismatch).
			Path(path...).
			Expected(openness(eOpen)).
			Found(openness(fOpen)).
			Build()
	}
	if ee.PayloadOffset != fe.PayloadOffset {
		return errors.Mismatch(errors.KindOffsetMismatch, sub(path, "<payload>"), ee.PayloadOffset, fe.PayloadOffset)
	}

	for i := range ee.Variants {
		ev := &ee.Variants[i]
		vpath := sub(path, ev.Name)
		fv, ok := fe.Variant(ev.Discriminant)
		if !ok {
			return errors.New(errors.PhaseCheck, errors.KindVariantMissing).
				Path(vpath...).
				Detail("discriminant %d not present", ev.Discriminant).
				Build()
		}
		if fv.Name != ev.Name {
			return errors.Mismatch(errors.KindVariantMismatch, vpath, ev.Name, fv.Name)
		}
		if len(ev.Fields) != len(fv.Fields) {
			return errors.Mismatch(errors.KindFieldCount, vpath, len(ev.Fields), len(fv.Fields))
		}
		for j := range ev.Fields {
			if err := r.field(vpath, &ev.Fields[j], &fv.Fields[j]); err != nil {
				return err
			}
		}
	}

	if !eOpen {
		if len(fe.Variants) != len(ee.Variants) {
			for _, fv := range fe.Variants {
				if _, ok := ee.Variant(fv.Discriminant); !ok {
					return errors.New(errors.PhaseCheck, errors.KindVariantExtra).
						Path(sub(path, fv.Name)...).
						Detail("discriminant %d unknown to a closed enum", fv.Discriminant).
						Build()
				}
			}
		}
		return nil
	}

	if !fe.Open.Caps.Has(ee.Open.Caps) {
		return errors.New(errors.PhaseCheck, errors.KindCapabilityMissing).
			Path(path...).
			Expected(ee.Open.Caps.String()).
			Found(fe.Open.Caps.String()).
			Detail("missing %s", (ee.Open.Caps &^ fe.Open.Caps).String()).
			Build()
	}
	return nil
}

func openness(open bool) string {
	if open {
		return "open"
	}
	return "closed"
}

func (r *run) field(path []string, ef, ff *layout.Field) error {
	fpath := sub(path, ef.Name)
	if ef.Name != ff.Name {
		return errors.Mismatch(errors.KindFieldMismatch, fpath, ef.Name, ff.Name)
	}
	if ef.Offset != ff.Offset {
		return errors.Mismatch(errors.KindOffsetMismatch, fpath, ef.Offset, ff.Offset)
	}
	if !sameShape(ef.Lifetimes, ff.Lifetimes) {
		return errors.Mismatch(errors.KindLifetimeMismatch, fpath, ef.Lifetimes, ff.Lifetimes)
	}
	if (ef.Func == nil) != (ff.Func == nil) {
		return errors.Incompatible(errors.KindSignatureMismatch, fpath, "function pointer on one side only")
	}
	if ef.Func != nil {
		if err := r.signature(fpath, ef.Func, ff.Func); err != nil {
			return err
		}
	}
	return r.typeRef(fpath, ef.Type, ff.Type)
}

func (r *run) signature(path []string, exp, fnd *layout.Signature) error {
	if exp == nil || fnd == nil {
		if exp != fnd {
			return errors.Incompatible(errors.KindSignatureMismatch, path, "signature on one side only")
		}
		return nil
	}
	if len(exp.Params) != len(fnd.Params) {
		return errors.Mismatch(errors.KindSignatureMismatch, path, len(exp.Params), len(fnd.Params))
	}
	if (exp.Return == nil) != (fnd.Return == nil) {
		return errors.Mismatch(errors.KindSignatureMismatch, sub(path, "return"), exp.Return != nil, fnd.Return != nil)
	}
	if !sameShape(signatureLifetimes(exp), signatureLifetimes(fnd)) || !sameSplit(exp, fnd) {
		return errors.New(errors.PhaseCheck, errors.KindLifetimeMismatch).
			Path(path...).
			Expected(exp.String()).
			Found(fnd.String()).
			Detail("lifetime structure differs").
			Build()
	}

	for i := range exp.Params {
		if err := r.typeRef(sub(path, exp.Params[i].Name), exp.Params[i].Type, fnd.Params[i].Type); err != nil {
			return err
		}
	}
	if exp.Return != nil {
		return r.typeRef(sub(path, "return"), exp.Return.Type, fnd.Return.Type)
	}
	return nil
}

// signatureLifetimes flattens every lifetime of a signature in order so
// that one normalisation covers the whole function.
func signatureLifetimes(s *layout.Signature) []layout.LifetimeIndex {
	var out []layout.LifetimeIndex
	for _, p := range s.Params {
		out = append(out, p.Lifetimes...)
	}
	if s.Return != nil {
		out = append(out, s.Return.Lifetimes...)
	}
	return out
}

// sameSplit reports whether each parameter carries as many lifetimes on
// both sides.
func sameSplit(a, b *layout.Signature) bool {
	for i := range a.Params {
		if len(a.Params[i].Lifetimes) != len(b.Params[i].Lifetimes) {
			return false
		}
	}
	if a.Return != nil {
		return len(a.Return.Lifetimes) == len(b.Return.Lifetimes)
	}
	return true
}

// sameShape compares lifetime lists after renumbering parameter lifetimes
// by first appearance. Static only matches Static.
func sameShape(a, b []layout.LifetimeIndex) bool {
	if len(a) != len(b) {
		return false
	}
	na, nb := normalize(a), normalize(b)
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}

func normalize(ls []layout.LifetimeIndex) []int {
	out := make([]int, len(ls))
	seen := make(map[int]int)
	for i, l := range ls {
		idx, ok := l.Index()
		if !ok {
			out[i] = -1
			continue
		}
		n, ok := seen[idx]
		if !ok {
			n = len(seen)
			seen[idx] = n
		}
		out[i] = n
	}
	return out
}

// tags compares compatibility annotations. Keys are visited in expected
// order followed by keys only the found side declares.
func (r *run) tags(path []string, exp, fnd *layout.Description) error {
	keys := make([]string, 0, len(exp.Tags)+len(fnd.Tags))
	for _, t := range exp.Tags {
		keys = append(keys, t.Key)
	}
	for _, t := range fnd.Tags {
		if _, ok := exp.Tag(t.Key); !ok {
			keys = append(keys, t.Key)
		}
	}

	for _, key := range keys {
		et, eok := exp.Tag(key)
		ft, fok := fnd.Tag(key)
		if eok && fok && et.Value == ft.Value {
			continue
		}

		var strict layout.Strictness
		switch {
		case eok && fok:
			strict = max(et.Strictness, ft.Strictness)
		case eok:
			strict = et.Strictness
		default:
			strict = ft.Strictness
		}
		if o, ok := r.c.opts.Overrides[key]; ok {
			strict = o
		}

		ev, fv := absent, absent
		if eok {
			ev = et.Value
		}
		if fok {
			fv = ft.Value
		}

		switch strict {
		case layout.StrictReject:
			return errors.New(errors.PhaseCheck, errors.KindTagMismatch).
				Path(path...).
				Expected(ev).
				Found(fv).
				Detail("tag %q", key).
				Build()
		case layout.StrictWarn:
			d := Deviation{Tag: key, Expected: ev, Found: fv, Path: path}
			r.report.Deviations = append(r.report.Deviations, d)
			r.c.log.Warn("tag mismatch accepted",
				zap.String("path", strings.Join(path, ".")),
				zap.String("tag", key),
				zap.String("expected", ev),
				zap.String("found", fv),
			)
		}
	}
	return nil
}
