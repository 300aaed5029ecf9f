package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:    PhaseCheck,
				Kind:     KindOffsetMismatch,
				Path:     []string{"Pair", "inner", "b"},
				Expected: "8",
				Found:    "16",
				Detail:   "field moved",
			},
			contains: []string{"[check]", "offset_mismatch", "Pair.inner.b", "expected 8", "found 16", "field moved"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseAccess,
				Kind:  KindFieldAbsent,
			},
			contains: []string{"[access]", "field_absent"},
		},
		{
			name: "only found",
			err: &Error{
				Phase: PhaseCheck,
				Kind:  KindVariantExtra,
				Found: "7",
			},
			contains: []string{"variant_extra", "found 7"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseLoad,
				Kind:   KindInvalidData,
				Detail: "open plugin",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[load]", "invalid_data", "open plugin", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseLoad,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseCheck,
		Kind:  KindSizeMismatch,
		Path:  []string{"foo"},
	}

	if !err.Is(&Error{Phase: PhaseCheck, Kind: KindSizeMismatch}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseGenerate, Kind: KindSizeMismatch}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseCheck, Kind: KindAlignMismatch}) {
		t.Error("Is should not match different kind")
	}
	if err.Is(&Error{}) {
		t.Error("empty target should not match")
	}
}

func TestSentinels(t *testing.T) {
	tests := []struct {
		err    error
		target error
		want   bool
	}{
		{Generation(KindNestedFnPointer, nil, "nested"), ErrGeneration, true},
		{Generation(KindNestedFnPointer, nil, "nested"), ErrIncompatible, false},
		{Mismatch(KindSizeMismatch, nil, 1, 2), ErrIncompatible, true},
		{FieldAbsent([]string{"Pair"}, "b"), ErrFieldAbsent, true},
		{FieldAbsent([]string{"Pair"}, "b"), ErrUnknownVariant, false},
		{UnknownVariant(nil, 9, "Color"), ErrUnknownVariant, true},
		{Unsupported(PhaseAccess, "compare"), ErrUnsupported, true},
		{&ItemError{Item: "x", Err: FieldMissing(nil, "a")}, ErrIncompatible, true},
	}

	for _, tt := range tests {
		if got := errors.Is(tt.err, tt.target); got != tt.want {
			t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.want)
		}
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseCheck, KindFieldMismatch).
		Path("Pair", "a").
		Expected("u32").
		Found("u64").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "u32", "u64").
		Build()

	if err.Phase != PhaseCheck {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseCheck)
	}
	if err.Kind != KindFieldMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindFieldMismatch)
	}
	if len(err.Path) != 2 || err.Path[0] != "Pair" || err.Path[1] != "a" {
		t.Errorf("Path = %v, want [Pair a]", err.Path)
	}
	if err.Expected != "u32" || err.Found != "u64" {
		t.Errorf("Expected=%v Found=%v", err.Expected, err.Found)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected u32, got u64" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("Mismatch", func(t *testing.T) {
		err := Mismatch(KindAlignMismatch, []string{"T"}, 4, 8)
		if err.Expected != "4" || err.Found != "8" {
			t.Errorf("Expected=%v Found=%v", err.Expected, err.Found)
		}
	})

	t.Run("FieldMissing", func(t *testing.T) {
		err := FieldMissing([]string{"Pair", "b"}, "b")
		if err.Kind != KindFieldMissing || err.Phase != PhaseCheck {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
	})

	t.Run("UnknownVariant", func(t *testing.T) {
		err := UnknownVariant([]string{"Color"}, 3, "Color")
		if err.Value != int64(3) {
			t.Errorf("Value = %v, want 3", err.Value)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseAccess, []string{"buf"}, 10, 4, 12)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
		}
		if !strings.Contains(err.Detail, "[10, 14)") {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("Panic", func(t *testing.T) {
		err := Panic(PhaseLoad, []string{"item"}, "boom")
		if err.Kind != KindPanic || !strings.Contains(err.Detail, "boom") {
			t.Errorf("got %v", err)
		}
		cause := errors.New("bad")
		err = Panic(PhaseLoad, nil, cause)
		if !errors.Is(err, cause) {
			t.Error("panic error value should become the cause")
		}
	})
}

func TestWithPrefix(t *testing.T) {
	base := FieldMissing([]string{"b"}, "b")
	got := WithPrefix(base, "Outer", "inner")

	var e *Error
	if !errors.As(got, &e) {
		t.Fatal("expected *Error")
	}
	if strings.Join(e.Path, ".") != "Outer.inner.b" {
		t.Errorf("Path = %v", e.Path)
	}
	if strings.Join(base.Path, ".") != "b" {
		t.Errorf("original path modified: %v", base.Path)
	}

	plain := errors.New("plain")
	if WithPrefix(plain, "x") != plain {
		t.Error("plain errors should pass through")
	}
}
