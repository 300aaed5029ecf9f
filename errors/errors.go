package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseGenerate Phase = "generate" // description generation
	PhaseCheck    Phase = "check"    // layout comparison
	PhaseAccess   Phase = "access"   // open struct / open enum access
	PhaseLoad     Phase = "load"     // module loading
	PhaseRegistry Phase = "registry" // description lookup
	PhaseConfig   Phase = "config"   // loader configuration
)

// Kind categorizes the error
type Kind string

// Generation kinds
const (
	KindAmbiguousElision Kind = "ambiguous_elision"
	KindNestedFnPointer  Kind = "nested_fn_pointer"
	KindUnknownLifetime  Kind = "unknown_lifetime"
	KindUnsupportedABI   Kind = "unsupported_abi"
	KindMalformedRepr    Kind = "malformed_repr"
	KindDuplicate        Kind = "duplicate"
	KindUnknownType      Kind = "unknown_type"
	KindOverflow         Kind = "overflow"
)

// Incompatibility kinds
const (
	KindNameMismatch        Kind = "name_mismatch"
	KindSizeMismatch        Kind = "size_mismatch"
	KindAlignMismatch       Kind = "align_mismatch"
	KindReprMismatch        Kind = "repr_mismatch"
	KindKindMismatch        Kind = "kind_mismatch"
	KindPrimitiveMismatch   Kind = "primitive_mismatch"
	KindParamMismatch       Kind = "param_mismatch"
	KindFieldCount          Kind = "field_count"
	KindFieldMissing        Kind = "field_missing"
	KindFieldMismatch       Kind = "field_mismatch"
	KindOffsetMismatch      Kind = "offset_mismatch"
	KindPrefixMismatch      Kind = "prefix_mismatch"
	KindVariantMissing      Kind = "variant_missing"
	KindVariantExtra        Kind = "variant_extra"
	KindVariantMismatch     Kind = "variant_mismatch"
	KindDiscriminantRepr    Kind = "discriminant_repr"
	KindOpennessMismatch    Kind = "openness_mismatch"
	KindCapabilityMissing   Kind = "capability_missing"
	KindSignatureMismatch   Kind = "signature_mismatch"
	KindLifetimeMismatch    Kind = "lifetime_mismatch"
	KindTagMismatch         Kind = "tag_mismatch"
	KindUnresolvedType      Kind = "unresolved_type"
	KindIncompatibleVersion Kind = "incompatible_version"
)

// Access kinds
const (
	KindFieldAbsent    Kind = "field_absent"
	KindUnknownVariant Kind = "unknown_variant"
	KindUnsupported    Kind = "unsupported"
	KindTypeMismatch   Kind = "type_mismatch"
	KindOutOfBounds    Kind = "out_of_bounds"
)

// Load kinds
const (
	KindNotFound    Kind = "not_found"
	KindPanic       Kind = "panic"
	KindInvalidData Kind = "invalid_data"
	KindCanceled    Kind = "canceled"
	KindPlugin      Kind = "plugin"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Expected string
	Found    string
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Expected != "" || e.Found != "" {
		b.WriteString(": ")
		if e.Expected != "" && e.Found != "" {
			b.WriteString("expected ")
			b.WriteString(e.Expected)
			b.WriteString(", found ")
			b.WriteString(e.Found)
		} else if e.Expected != "" {
			b.WriteString("expected ")
			b.WriteString(e.Expected)
		} else {
			b.WriteString("found ")
			b.WriteString(e.Found)
		}
	}

	if e.Detail != "" {
		if e.Expected != "" || e.Found != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. An empty Phase or Kind in
// the target matches any value, so sentinels can select a whole class.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	return t.Phase != "" || t.Kind != ""
}

// Sentinels for the error taxonomy. Use with errors.Is.
var (
	ErrGeneration     = &Error{Phase: PhaseGenerate}
	ErrIncompatible   = &Error{Phase: PhaseCheck}
	ErrFieldAbsent    = &Error{Kind: KindFieldAbsent}
	ErrUnknownVariant = &Error{Kind: KindUnknownVariant}
	ErrUnsupported    = &Error{Kind: KindUnsupported}
)

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Expected sets the expected side of a mismatch
func (b *Builder) Expected(s string) *Builder {
	b.err.Expected = s
	return b
}

// Found sets the found side of a mismatch
func (b *Builder) Found(s string) *Builder {
	b.err.Found = s
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Generation creates a description generation error
func Generation(kind Kind, path []string, detail string, args ...any) *Error {
	return New(PhaseGenerate, kind).Path(path...).Detail(detail, args...).Build()
}

// Mismatch creates an incompatibility between an expected and a found value
func Mismatch(kind Kind, path []string, expected, found any) *Error {
	return &Error{
		Phase:    PhaseCheck,
		Kind:     kind,
		Path:     path,
		Expected: fmt.Sprint(expected),
		Found:    fmt.Sprint(found),
	}
}

// Incompatible creates an incompatibility described by a message
func Incompatible(kind Kind, path []string, detail string, args ...any) *Error {
	return New(PhaseCheck, kind).Path(path...).Detail(detail, args...).Build()
}

// FieldMissing creates an incompatibility for a field absent in the found layout
func FieldMissing(path []string, fieldName string) *Error {
	return &Error{
		Phase:  PhaseCheck,
		Kind:   KindFieldMissing,
		Path:   path,
		Detail: fmt.Sprintf("required field %q not found", fieldName),
	}
}

// FieldAbsent creates an access error for an open struct field the provider lacks
func FieldAbsent(path []string, fieldName string) *Error {
	return &Error{
		Phase:  PhaseAccess,
		Kind:   KindFieldAbsent,
		Path:   path,
		Detail: fmt.Sprintf("field %q is not present in the provided value", fieldName),
	}
}

// UnknownVariant creates an access error for an unrecognized discriminant
func UnknownVariant(path []string, disc int64, enumType string) *Error {
	return &Error{
		Phase:    PhaseAccess,
		Kind:     KindUnknownVariant,
		Path:     path,
		Expected: enumType,
		Detail:   fmt.Sprintf("discriminant %d is not a known variant", disc),
		Value:    disc,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, offset, size, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("range [%d, %d) out of bounds (length %d)", offset, offset+size, length),
		Value:  offset,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Panic converts a recovered panic value into an error
func Panic(phase Phase, path []string, r any) *Error {
	if err, ok := r.(error); ok {
		return &Error{
			Phase:  phase,
			Kind:   KindPanic,
			Path:   path,
			Detail: "recovered panic",
			Cause:  err,
		}
	}
	return &Error{
		Phase:  phase,
		Kind:   KindPanic,
		Path:   path,
		Detail: fmt.Sprintf("recovered panic: %v", r),
		Value:  r,
	}
}

// WithPrefix returns a copy of err with prefix prepended to its path.
// Non-structured errors are returned unchanged.
func WithPrefix(err error, prefix ...string) error {
	e, ok := err.(*Error)
	if !ok || len(prefix) == 0 {
		return err
	}
	cp := *e
	cp.Path = append(append(make([]string, 0, len(prefix)+len(e.Path)), prefix...), e.Path...)
	return &cp
}

// ItemError attaches the name of a module item to the error it produced
type ItemError struct {
	Err  error
	Item string
}

func (e *ItemError) Error() string {
	return e.Item + ": " + e.Err.Error()
}

// Unwrap returns the item's error
func (e *ItemError) Unwrap() error {
	return e.Err
}
