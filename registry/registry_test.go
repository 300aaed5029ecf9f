package registry

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/stable-abi/errors"
	"github.com/wippyai/stable-abi/layout"
	"github.com/wippyai/stable-abi/once"
)

func desc(name, version string) *layout.Description {
	return &layout.Description{
		Key:   layout.Key{Name: name, Version: version},
		Kind:  layout.KindPrimitive,
		Prim:  layout.PrimU32,
		Size:  4,
		Align: 4,
	}
}

func TestNew(t *testing.T) {
	t.Run("duplicate", func(t *testing.T) {
		_, err := New([]*layout.Description{desc("a", "1.0.0"), desc("a", "1.0.0")}, nil)
		var e *errors.Error
		if !stderrors.As(err, &e) || e.Kind != errors.KindDuplicate {
			t.Fatalf("expected duplicate error, got %v", err)
		}
	})

	t.Run("unknown export", func(t *testing.T) {
		_, err := New([]*layout.Description{desc("a", "1.0.0")}, []layout.Key{{Name: "b"}})
		var e *errors.Error
		if !stderrors.As(err, &e) || e.Kind != errors.KindNotFound {
			t.Fatalf("expected not_found, got %v", err)
		}
	})

	t.Run("keys and exports", func(t *testing.T) {
		a, b := desc("a", "1.0.0"), desc("b", "")
		r, err := New([]*layout.Description{a, b}, []layout.Key{b.Key, b.Key})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if r.Len() != 2 {
			t.Errorf("Len = %d", r.Len())
		}
		keys := r.Keys()
		if len(keys) != 2 || keys[0] != a.Key || keys[1] != b.Key {
			t.Errorf("Keys = %v", keys)
		}
		if ex := r.Exports(); len(ex) != 1 || ex[0] != b.Key {
			t.Errorf("Exports = %v", ex)
		}
		if d, ok := r.Lookup(a.Key); !ok || d != a {
			t.Error("Lookup failed")
		}
		keys[0] = layout.Key{}
		if r.Keys()[0] != a.Key {
			t.Error("Keys must return a copy")
		}
	})
}

func TestResolve(t *testing.T) {
	r, err := New([]*layout.Description{
		desc("demo.Pair", "1.0.0"),
		desc("demo.Pair", "1.4.1"),
		desc("demo.Pair", "1.2.0"),
		desc("demo.Pair", "2.0.0"),
		desc("demo.Old", "0.2.3"),
		desc("demo.Old", "0.3.0"),
		desc("demo.Plain", ""),
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		name    string
		version string
		want    string
		wantErr errors.Kind
	}{
		{"demo.Pair", "1.2.0", "1.2.0", ""},
		{"demo.Pair", "1.1.0", "1.4.1", ""},
		{"demo.Pair", "1.5.0", "", errors.KindIncompatibleVersion},
		{"demo.Pair", "2", "2.0.0", ""},
		{"demo.Pair", "", "2.0.0", ""},
		{"demo.Old", "0.2.0", "0.2.3", ""},
		{"demo.Plain", "", "", ""},
		{"demo.Missing", "1.0.0", "", errors.KindNotFound},
		{"demo.Pair", "not-a-version", "", errors.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name+"@"+tt.version, func(t *testing.T) {
			d, err := r.Resolve(tt.name, tt.version)
			if tt.wantErr != "" {
				var e *errors.Error
				if !stderrors.As(err, &e) || e.Kind != tt.wantErr {
					t.Fatalf("err = %v, want %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if d.Key.Version != tt.want {
				t.Errorf("version = %q, want %q", d.Key.Version, tt.want)
			}
		})
	}
}

func TestLazy(t *testing.T) {
	calls := 0
	l := NewLazy(func() (*Registry, error) {
		calls++
		return New([]*layout.Description{desc("a", "")}, nil)
	})

	for i := 0; i < 3; i++ {
		r, err := l.Get()
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if r.Len() != 1 {
			t.Errorf("Len = %d", r.Len())
		}
	}
	if calls != 1 {
		t.Errorf("constructor ran %d times", calls)
	}
	if l.State() != once.Done {
		t.Errorf("State = %s", l.State())
	}
}

func TestLazyPoisoning(t *testing.T) {
	fail := true
	cause := stderrors.New("descriptions unavailable")
	l := NewLazy(func() (*Registry, error) {
		if fail {
			return nil, cause
		}
		return New(nil, nil)
	})

	if _, err := l.Get(); !stderrors.Is(err, cause) {
		t.Fatalf("Get err = %v, want cause", err)
	}
	if !l.State().IsPoisoned() {
		t.Fatalf("State = %s, want poisoned", l.State())
	}

	fail = false
	if _, err := l.Get(); !stderrors.Is(err, cause) {
		t.Errorf("poisoned Get err = %v, want previous cause", err)
	}

	r, err := l.Force()
	if err != nil {
		t.Fatalf("Force: %v", err)
	}
	if r == nil || !l.State().IsDone() {
		t.Errorf("Force did not complete: %v %s", r, l.State())
	}
	if _, err := l.Get(); err != nil {
		t.Errorf("Get after Force: %v", err)
	}
}
