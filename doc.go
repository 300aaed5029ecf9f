// Package stableabi describes the memory layout of types so that binaries
// built separately can check, at load time, that they agree on every type
// they pass to each other.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	stableabi/          Root package (documentation only)
//	├── layout/         Description model, fingerprints, formatting
//	├── lifetime/       Lifetime resolution for fields and function pointers
//	├── gen/            Builder computing layouts and emitting descriptions
//	├── registry/       Frozen per-binary image with semver resolution
//	├── compat/         Structural compatibility checker
//	├── openstruct/     Open structs: prefix layout and field accessors
//	├── openenum/       Open enums: erased values and operation tables
//	├── once/           Wait-once barrier with poisoning
//	├── loader/         Boundary checks for dynamically loaded modules
//	├── witgen/         Descriptions from WIT types (canonical ABI)
//	├── errors/         Structured error types
//	└── cmd/abicheck/   Command line checker
//
// # Quick Start
//
// Describe the types a binary exports:
//
//	b := gen.NewBuilder(gen.HostTarget())
//	pair := b.OpenStruct(gen.Decl("demo.Pair", "1.1.0"), 1, layout.MissingError,
//	    gen.F("a", gen.U32),
//	    gen.F("b", gen.U64),
//	)
//	b.Export(pair)
//	img, err := b.Build()
//
// Check a loaded module against the host image:
//
//	l, err := loader.New(hostImage, loader.DefaultConfig())
//	loaded, err := l.Load(ctx, mod)
//	if err != nil {
//	    for _, e := range loader.Errors(err) {
//	        log.Println(e) // path, reason code and text
//	    }
//	}
//
// # Evolution
//
// Plain structs and closed enums must match exactly. Open structs may gain
// fields after their published prefix; consumers reading a field the
// provider lacks get a FieldAbsent error. Open enums may gain variants;
// consumers meeting an unknown discriminant get an UnknownVariant error and
// can still clone, compare, format and drop the value through its
// operations table.
//
// # Thread Safety
//
// Descriptions and registries are immutable after construction and safe for
// concurrent use. A compat.Checker holds no per-check state. Builders and
// open struct values are not safe for concurrent use.
package stableabi
