// Package lifetime resolves lifetime uses in type declarations to stable
// positional indices.
//
// Two independently compiled descriptions of the same type must encode the
// same lifetime use with the same index, so indices are positions rather
// than names:
//
//   - the unbounded lifetime is Static
//   - a lifetime declared by the enclosing type is Param(i), i being its
//     declaration position
//   - lifetimes local to a function pointer (its binder, then one per
//     elided lifetime in its parameters) follow the enclosing type's
//
// An elided lifetime in a function pointer's return type reuses the single
// lifetime used by the parameters. Zero or several candidates, nested
// function pointers and unknown lifetimes are generation errors, reported
// before any description is produced.
//
//	r := lifetime.NewResolver("a")
//	f, err := r.Field([]string{"Reader", "read"}, lifetime.FnPtr{
//		Params: []lifetime.Expr{lifetime.Ref{Elem: buf}},
//		Return: lifetime.Ref{Elem: u8},
//	})
//	// f.Functions[0].Return.Lifetimes == [Param(1)]
package lifetime
