// Package openstruct gives access to structs that gain trailing fields
// across versions.
//
// A Value carries the description of the binary that produced it, so every
// read uses the provider's offsets rather than offsets compiled into the
// consumer. Reading a field the provider does not have reports FieldAbsent
// instead of touching memory outside the provider's storage. Copying and
// destroying a value always goes through the provider's Ops.
package openstruct
