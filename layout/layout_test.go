package layout

import (
	"strings"
	"testing"
)

type mapImage map[Key]*Description

func (m mapImage) Lookup(k Key) (*Description, bool) {
	d, ok := m[k]
	return d, ok
}

func TestKeyString(t *testing.T) {
	tests := []struct {
		key  Key
		want string
	}{
		{K("u32"), "u32"},
		{Key{Name: "demo.Pair", Version: "1.2.0"}, "demo.Pair@1.2.0"},
	}
	for _, tt := range tests {
		if got := tt.key.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
		if back := ParseKey(tt.want); back != tt.key {
			t.Errorf("ParseKey(%q) = %v, want %v", tt.want, back, tt.key)
		}
	}
}

func TestLifetimeIndex(t *testing.T) {
	s := StaticLifetime()
	if !s.IsStatic() {
		t.Error("zero lifetime should be static")
	}
	if _, ok := s.Index(); ok {
		t.Error("static has no index")
	}
	if s != (LifetimeIndex{}) {
		t.Error("static should be the zero value")
	}

	p := ParamLifetime(2)
	if p.IsStatic() {
		t.Error("param lifetime reported static")
	}
	if i, ok := p.Index(); !ok || i != 2 {
		t.Errorf("Index() = %d, %v", i, ok)
	}
	if p.String() != "'2" || s.String() != "'static" {
		t.Errorf("String() = %s, %s", p, s)
	}
	if ParamLifetime(0) == StaticLifetime() {
		t.Error("param 0 must differ from static")
	}
}

func TestDiscReprFits(t *testing.T) {
	tests := []struct {
		repr DiscRepr
		v    int64
		want bool
	}{
		{DiscU8, 255, true},
		{DiscU8, 256, false},
		{DiscU8, -1, false},
		{DiscI8, -128, true},
		{DiscI8, 128, false},
		{DiscU16, 65535, true},
		{DiscDefault, 1 << 31, false},
		{DiscDefault, -(1 << 31), true},
		{DiscU64, -1, false},
		{DiscI64, -1, true},
		{DiscUsize, 1 << 40, true},
	}
	for _, tt := range tests {
		if got := tt.repr.Fits(tt.v, 8); got != tt.want {
			t.Errorf("%s.Fits(%d) = %v, want %v", tt.repr, tt.v, got, tt.want)
		}
	}
	if DiscUsize.Width(4) != 4 || DiscUsize.Width(8) != 8 {
		t.Error("usize width should follow pointer size")
	}
}

func TestPrimitiveSizes(t *testing.T) {
	if _, ok := PrimRef.FixedSize(); ok {
		t.Error("ref has no fixed size")
	}
	if !PrimFnPtr.IsPointer() || PrimU64.IsPointer() {
		t.Error("IsPointer mismatch")
	}
	if s, ok := PrimChar.FixedSize(); !ok || s != 4 {
		t.Errorf("char size = %d", s)
	}
}

func TestReprString(t *testing.T) {
	tests := []struct {
		repr Repr
		want string
	}{
		{Repr{}, "C"},
		{Repr{Kind: ReprInt, Disc: DiscU8}, "int(u8)"},
		{Repr{Kind: ReprC, Disc: DiscU16}, "C(u16)"},
		{Repr{Kind: ReprC, Packed: 1}, "C,packed(1)"},
		{Repr{Kind: ReprInt, Disc: DiscU8, Packed: 16}, "int(u8),packed(16)"},
		{Repr{Kind: ReprTransparent}, "transparent"},
	}
	for _, tt := range tests {
		if got := tt.repr.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestCaps(t *testing.T) {
	c := CapClone | CapFormat
	if !c.Has(CapClone) || c.Has(CapCompare) || !c.Has(CapClone|CapFormat) {
		t.Error("Has mismatch")
	}
	if c.String() != "clone|format" {
		t.Errorf("String() = %q", c.String())
	}
	if Caps(0).String() != "none" {
		t.Error("empty caps")
	}
}

func TestParseStrictness(t *testing.T) {
	for _, s := range []Strictness{StrictIgnore, StrictWarn, StrictReject} {
		got, ok := ParseStrictness(strings.ToUpper(s.String()))
		if !ok || got != s {
			t.Errorf("ParseStrictness(%s) = %v, %v", s, got, ok)
		}
	}
	if _, ok := ParseStrictness("fatal"); ok {
		t.Error("unknown strictness accepted")
	}
}

func pairImage(offsetB uint32) mapImage {
	u32 := &Description{Key: K("u32"), Kind: KindPrimitive, Prim: PrimU32, Size: 4, Align: 4}
	node := &Description{
		Key:   Key{Name: "demo.Node", Version: "1.0.0"},
		Kind:  KindStruct,
		Size:  16,
		Align: 8,
		Fields: []Field{
			{Name: "value", Type: K("u32")},
			{Name: "next", Type: K("&demo.Node"), Offset: offsetB},
		},
	}
	ref := &Description{
		Key:    K("&demo.Node"),
		Kind:   KindPrimitive,
		Prim:   PrimRef,
		Size:   8,
		Align:  8,
		Params: []Key{node.Key},
	}
	return mapImage{u32.Key: u32, node.Key: node, ref.Key: ref}
}

func TestFingerprintDeterministic(t *testing.T) {
	key := Key{Name: "demo.Node", Version: "1.0.0"}

	a, err := Fingerprint(pairImage(8), key)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	b, err := Fingerprint(pairImage(8), key)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if a != b {
		t.Errorf("fingerprints differ for identical images: %x vs %x", a, b)
	}

	c, err := Fingerprint(pairImage(12), key)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if a == c {
		t.Error("fingerprint should change with field offset")
	}
}

func TestFingerprintUnresolved(t *testing.T) {
	img := pairImage(8)
	delete(img, K("u32"))
	if _, err := Fingerprint(img, Key{Name: "demo.Node", Version: "1.0.0"}); err != nil {
		t.Fatalf("unresolved references should still hash: %v", err)
	}
}

func TestUnresolved(t *testing.T) {
	img := pairImage(8)
	key := Key{Name: "demo.Node", Version: "1.0.0"}
	if got := Unresolved(img, key); len(got) != 0 {
		t.Errorf("complete image reported %v", got)
	}
	delete(img, K("u32"))
	if got := Unresolved(img, key); len(got) != 1 || got[0] != K("u32") {
		t.Errorf("Unresolved = %v", got)
	}
}

func TestReferences(t *testing.T) {
	d := &Description{
		Params: []Key{K("T")},
		Fields: []Field{{Name: "f", Type: K("fn"), Func: &Signature{
			Params: []Param{{Type: K("u8")}},
			Return: &Param{Type: K("u16")},
		}}},
		Enum: &Enum{Variants: []Variant{{Name: "A", Fields: []Field{{Type: K("u64")}}}}},
	}
	got := References(d)
	want := []string{"T", "fn", "u8", "u16", "u64"}
	if len(got) != len(want) {
		t.Fatalf("References = %v", got)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("ref[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestFormat(t *testing.T) {
	out := Format(pairImage(8), Key{Name: "demo.Node", Version: "1.0.0"})
	for _, s := range []string{"demo.Node@1.0.0 struct", "value @0: u32", "next @8: &demo.Node", "demo.Node@1.0.0 ..."} {
		if !strings.Contains(out, s) {
			t.Errorf("Format output missing %q:\n%s", s, out)
		}
	}
}
