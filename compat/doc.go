// Package compat decides whether a type description found in a loaded
// binary can be used where another description is expected.
//
// The comparison walks both descriptions together, resolving referenced
// types through each side's image. Names, sizes, alignment and repr must
// match exactly; open structs may gain trailing fields and open enums may
// gain variants. Tags are compared last and scored by their strictness:
// reject fails the check, warn is logged and recorded in the Report.
//
// Types that refer back to themselves are handled by tracking the pairs of
// keys currently being compared; a pair reached again is assumed
// compatible and left to the outer comparison.
package compat
