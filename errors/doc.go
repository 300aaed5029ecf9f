// Package errors provides structured error types for the stable-abi module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (reason code).
// The Error type includes rich context: the path from the root type down to the
// offending field or variant, the expected and found values, and a cause chain.
//
// Phases map onto the error taxonomy:
//
//	PhaseGenerate  generation errors: elision, nested function pointers, bad repr
//	PhaseCheck     incompatibilities between two layout descriptions
//	PhaseAccess    field_absent and unknown_variant results at runtime
//	PhaseLoad      module loading failures
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCheck, errors.KindOffsetMismatch).
//		Path("Pair", "b").
//		Expected("8").
//		Found("16").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Mismatch(errors.KindSizeMismatch, path, 16, 24)
//	err := errors.FieldAbsent(path, "b")
//
// All errors implement the standard error interface and support errors.Is/As.
// The package-level sentinels select whole classes:
//
//	errors.Is(err, errors.ErrIncompatible)
//	errors.Is(err, errors.ErrFieldAbsent)
package errors
