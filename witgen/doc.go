// Package witgen derives layout descriptions from WIT types.
//
// Layouts follow the component model canonical ABI on a 32-bit target:
// strings and lists lower to a {ptr, len} pair, variants, options and
// results carry a discriminant sized by their case count, flags pack into
// the smallest integer that holds them, and resource handles are u32
// table indices. Named WIT types become versioned descriptions; anonymous
// ones are shared by structural name.
package witgen
