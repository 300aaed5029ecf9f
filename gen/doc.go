// Package gen generates layout descriptions from explicit declarations.
//
// A Builder computes offsets, sizes and alignment for a target, resolves the
// lifetimes of every field with the lifetime package, and freezes the result
// into a registry:
//
//	b := gen.NewBuilder(gen.HostTarget())
//	b.Struct(gen.Decl("demo.Pair", "1.0.0"),
//		gen.F("a", gen.U8),
//		gen.F("b", gen.U32),
//	)
//	reg, err := b.Build()
//
// Generation never panics on bad input; every problem is reported as a
// generation error by Build.
package gen
