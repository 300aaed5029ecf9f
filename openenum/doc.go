// Package openenum carries values of enums that may gain variants in later
// versions.
//
// A producer erases a value together with its operations table. A consumer
// compiled against an older description can still clone, compare, format,
// and drop the value through that table, and recovers the payload only for
// variants it knows:
//
//	v, err := openenum.New(table, 2, payload)
//	...
//	p, err := openenum.Unwrap[Payload](v, known, 2)
//	if errors.Is(err, errors.ErrUnknownVariant) {
//		// a newer variant
//	}
//
// Store hands out integer handles for erased values so they can be passed
// through interfaces that only carry plain data.
package openenum
