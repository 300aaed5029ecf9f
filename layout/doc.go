// Package layout defines the layout description model.
//
// A Description is the comparable representation of one type's memory
// layout: its name and version, size, alignment, representation attribute
// and a payload that is one of
//
//   - primitive: scalars, references, raw and function pointers
//   - struct: ordered fields with byte offsets
//   - enum: variants with discriminants, optionally open to new variants
//   - prefix: an open struct that may gain trailing fields
//   - opaque: a type whose interior is not described
//   - function: a function signature with lifetime indices
//
// Descriptions refer to other types by Key and never embed them, so cyclic
// type graphs are expressed through an Image that resolves keys. This is
// the representation the compat package walks with cycle protection.
//
// Descriptions are produced once per type by the gen package and are
// immutable afterwards; they can be read concurrently without locking.
package layout
