package loader

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/stable-abi/errors"
	"github.com/wippyai/stable-abi/gen"
	"github.com/wippyai/stable-abi/layout"
	"github.com/wippyai/stable-abi/lifetime"
	"github.com/wippyai/stable-abi/registry"
)

var target = gen.Target{PointerSize: 8, PointerAlign: 8}

func build(t *testing.T, fn func(b *gen.Builder) []layout.Key) *registry.Registry {
	t.Helper()
	b := gen.NewBuilder(target)
	b.Export(fn(b)...)
	reg, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return reg
}

func tagged(name, version string, tags ...layout.Tag) gen.TypeDecl {
	d := gen.Decl(name, version)
	d.Tags = tags
	return d
}

func host(t *testing.T) *registry.Registry {
	return build(t, func(b *gen.Builder) []layout.Key {
		return []layout.Key{
			b.Struct(gen.Decl("demo.Point", "1.0.0"), gen.F("x", gen.U32), gen.F("y", gen.U32)),
			b.OpenStruct(gen.Decl("demo.Pair", "1.0.0"), 1, layout.MissingError, gen.F("a", gen.U32)),
			b.Struct(tagged("demo.Flag", "1.0.0", layout.Tag{Key: "feature", Value: "x", Strictness: layout.StrictWarn}),
				gen.F("on", gen.Bool)),
		}
	})
}

func module(t *testing.T, pointX lifetime.Expr, flag string) *Static {
	reg := build(t, func(b *gen.Builder) []layout.Key {
		return []layout.Key{
			b.Struct(gen.Decl("demo.Point", "1.0.0"), gen.F("x", pointX), gen.F("y", gen.U32)),
			b.OpenStruct(gen.Decl("demo.Pair", "1.1.0"), 1, layout.MissingError, gen.F("a", gen.U32), gen.F("b", gen.U64)),
			b.Struct(tagged("demo.Flag", "1.0.0", layout.Tag{Key: "feature", Value: flag, Strictness: layout.StrictWarn}),
				gen.F("on", gen.Bool)),
			b.Struct(gen.Decl("demo.Extra", "1.0.0"), gen.F("n", gen.U8)),
		}
	})
	return NewStatic("demo", reg)
}

func newLoader(t *testing.T, cfg Config) *Loader {
	t.Helper()
	l, err := New(host(t), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func kindOf(err error) errors.Kind {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func TestLoadAccepts(t *testing.T) {
	l := newLoader(t, Config{Jobs: 2})
	loaded, err := l.Load(context.Background(), module(t, gen.U32, "x"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Accepted) != 3 || len(loaded.Rejected) != 0 {
		t.Fatalf("accepted %d, rejected %d", len(loaded.Accepted), len(loaded.Rejected))
	}
	if len(loaded.Skipped) != 1 || loaded.Skipped[0].Name != "demo.Extra" {
		t.Errorf("skipped = %v", loaded.Skipped)
	}

	pair := loaded.Accepted[1]
	if pair.Key != (layout.Key{Name: "demo.Pair", Version: "1.1.0"}) || pair.Host != (layout.Key{Name: "demo.Pair", Version: "1.0.0"}) {
		t.Errorf("pair item = %+v", pair)
	}
	if _, ok := loaded.Lookup(pair.Key); !ok {
		t.Error("accepted export not visible")
	}
	if _, ok := loaded.Lookup(layout.Key{Name: "demo.Extra", Version: "1.0.0"}); ok {
		t.Error("skipped export visible")
	}
	if len(loaded.Deviations) != 0 {
		t.Errorf("deviations = %v", loaded.Deviations)
	}
}

func TestLoadPolicies(t *testing.T) {
	t.Run("abort", func(t *testing.T) {
		l := newLoader(t, Config{Policy: PolicyAbort})
		loaded, err := l.Load(context.Background(), module(t, gen.U64, "x"))
		if loaded != nil || err == nil {
			t.Fatalf("Load = %v, %v", loaded, err)
		}
		errs := Errors(err)
		if len(errs) != 1 {
			t.Fatalf("errors = %v", errs)
		}
		var item *errors.ItemError
		if !stderrors.As(errs[0], &item) || item.Item != "demo.Point@1.0.0" {
			t.Errorf("item error = %v", errs[0])
		}
		if !stderrors.Is(err, errors.ErrIncompatible) {
			t.Errorf("err = %v, want incompatible", err)
		}
	})

	t.Run("reject items", func(t *testing.T) {
		l := newLoader(t, Config{Policy: PolicyRejectItems})
		loaded, err := l.Load(context.Background(), module(t, gen.U64, "x"))
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(loaded.Rejected) != 1 || loaded.Rejected[0].Key.Name != "demo.Point" {
			t.Fatalf("rejected = %v", loaded.Rejected)
		}
		if len(loaded.Accepted) != 2 {
			t.Errorf("accepted = %v", loaded.Accepted)
		}
		if _, ok := loaded.Lookup(layout.Key{Name: "demo.Point", Version: "1.0.0"}); ok {
			t.Error("rejected export visible")
		}
	})
}

func TestDeviations(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	l := newLoader(t, Config{})
	loaded, err := l.Load(context.Background(), module(t, gen.U32, "y"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Deviations) != 1 || loaded.Deviations[0].Tag != "feature" {
		t.Fatalf("deviations = %v", loaded.Deviations)
	}
	if n := logs.FilterMessage("tag mismatch accepted").Len(); n != 1 {
		t.Errorf("tag warnings logged = %d", n)
	}
	skipped := logs.FilterMessage("export unknown to host, skipped").All()
	if len(skipped) != 1 || skipped[0].ContextMap()["module"] != "demo" {
		t.Errorf("skip log = %v", skipped)
	}

	strict := newLoader(t, Config{Policy: PolicyRejectItems, Tags: map[string]string{"feature": "reject"}})
	loaded, err = strict.Load(context.Background(), module(t, gen.U32, "y"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Rejected) != 1 || kindOf(loaded.Rejected[0].Err) != errors.KindTagMismatch {
		t.Errorf("rejected = %v", loaded.Rejected)
	}
}

type panicImage struct {
	layout.Image
	key layout.Key
}

func (p panicImage) Lookup(key layout.Key) (*layout.Description, bool) {
	if key == p.key {
		panic("corrupt image")
	}
	return p.Image.Lookup(key)
}

type customModule struct {
	*Static
	img layout.Image
}

func (m customModule) Image() layout.Image { return m.img }

func TestLoadRecoversPanics(t *testing.T) {
	mod := module(t, gen.U32, "x")
	broken := customModule{Static: mod, img: panicImage{Image: mod.Image(), key: layout.Key{Name: "demo.Point", Version: "1.0.0"}}}

	l := newLoader(t, Config{Policy: PolicyRejectItems})
	loaded, err := l.Load(context.Background(), broken)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Rejected) != 1 || kindOf(loaded.Rejected[0].Err) != errors.KindPanic {
		t.Fatalf("rejected = %v", loaded.Rejected)
	}
	if len(loaded.Accepted) != 2 {
		t.Errorf("accepted = %d", len(loaded.Accepted))
	}
}

type brokenExports struct {
	*Static
}

func (brokenExports) Exports() []layout.Key { panic("exports table corrupt") }

type brokenName struct {
	*Static
}

func (brokenName) Name() string { panic(stderrors.New("no name")) }

func TestLoadRecoversModulePanics(t *testing.T) {
	l := newLoader(t, Config{Policy: PolicyRejectItems})
	for _, tc := range []struct {
		name string
		mod  Module
	}{
		{"exports", brokenExports{Static: module(t, gen.U32, "x")}},
		{"name", brokenName{Static: module(t, gen.U32, "x")}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			loaded, err := l.Load(context.Background(), tc.mod)
			if loaded != nil || kindOf(err) != errors.KindPanic {
				t.Errorf("Load = %v, %v", loaded, err)
			}
		})
	}
}

func TestLoadCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := newLoader(t, Config{})
	if _, err := l.Load(ctx, module(t, gen.U32, "x")); kindOf(err) != errors.KindCanceled {
		t.Errorf("err = %v", err)
	}
}

func TestLoadNilImage(t *testing.T) {
	l := newLoader(t, Config{})
	mod := customModule{Static: module(t, gen.U32, "x")}
	if _, err := l.Load(context.Background(), mod); kindOf(err) != errors.KindInvalidData {
		t.Errorf("err = %v", err)
	}
}

func TestResolveSeries(t *testing.T) {
	h := build(t, func(b *gen.Builder) []layout.Key {
		return []layout.Key{
			b.Struct(gen.Decl("demo.Point", "1.2.0"), gen.F("x", gen.U32)),
			b.Struct(gen.Decl("demo.Point", "2.0.0"), gen.F("x", gen.U64)),
			b.Struct(gen.Decl("demo.Tiny", "0.3.1"), gen.F("x", gen.U8)),
		}
	})
	l, err := New(h, Config{})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		key  layout.Key
		want layout.Key
	}{
		{layout.Key{Name: "demo.Point", Version: "1.0.0"}, layout.Key{Name: "demo.Point", Version: "1.2.0"}},
		{layout.Key{Name: "demo.Point", Version: "1.5.0"}, layout.Key{Name: "demo.Point", Version: "1.2.0"}},
		{layout.Key{Name: "demo.Point", Version: "2.0.0"}, layout.Key{Name: "demo.Point", Version: "2.0.0"}},
		{layout.Key{Name: "demo.Tiny", Version: "0.3.0"}, layout.Key{Name: "demo.Tiny", Version: "0.3.1"}},
	}
	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			d, err := l.resolve(tt.key)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if d.Key != tt.want {
				t.Errorf("resolved %s, want %s", d.Key, tt.want)
			}
		})
	}

	if _, err := l.resolve(layout.Key{Name: "demo.Tiny", Version: "0.4.0"}); kindOf(err) != errors.KindIncompatibleVersion {
		t.Errorf("0.4.0 err = %v", err)
	}
}

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		policy Policy
		jobs   int
		kind   errors.Kind
	}{
		{name: "defaults", input: ``, policy: PolicyAbort},
		{name: "full", input: "policy = \"reject-items\"\njobs = 3\n[tags]\nfeature = \"warn\"\n", policy: PolicyRejectItems, jobs: 3},
		{name: "bad policy", input: `policy = "maybe"`, kind: errors.KindInvalidData},
		{name: "bad strictness", input: "[tags]\nfeature = \"loud\"\n", kind: errors.KindInvalidData},
		{name: "bad toml", input: `policy = `, kind: errors.KindInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(tt.input))
			if tt.kind != "" {
				if kindOf(err) != tt.kind {
					t.Errorf("err = %v, want %s", err, tt.kind)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseConfig: %v", err)
			}
			if cfg.Policy != tt.policy {
				t.Errorf("policy = %s", cfg.Policy)
			}
			if tt.jobs != 0 && cfg.Jobs != tt.jobs {
				t.Errorf("jobs = %d", cfg.Jobs)
			}
			if cfg.Jobs <= 0 {
				t.Errorf("jobs default = %d", cfg.Jobs)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abi.toml")
	if err := os.WriteFile(path, []byte("[tags]\nfeature = \"reject\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	o, err := cfg.Overrides()
	if err != nil || o["feature"] != layout.StrictReject {
		t.Errorf("overrides = %v, %v", o, err)
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.toml")); kindOf(err) != errors.KindNotFound {
		t.Errorf("missing file err = %v", err)
	}
}

func TestOpenPlugin(t *testing.T) {
	if _, err := OpenPlugin(filepath.Join(t.TempDir(), "none.so")); kindOf(err) != errors.KindPlugin {
		t.Errorf("err = %v", err)
	}
}

func TestConstruct(t *testing.T) {
	if _, err := construct("p.so", func() Module { return nil }); kindOf(err) != errors.KindPlugin {
		t.Errorf("nil module err = %v", err)
	}
	if _, err := construct("p.so", func() Module { panic("boom") }); kindOf(err) != errors.KindPanic {
		t.Errorf("panic err = %v", err)
	}
	mod, err := construct("p.so", func() Module { return NewStatic("x", nil) })
	if err != nil || mod.Name() != "x" {
		t.Errorf("construct = %v, %v", mod, err)
	}
}
