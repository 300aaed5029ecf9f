// Package registry holds the process-wide, immutable layout descriptions of
// a binary image.
//
// A Registry is created once from generated descriptions and never mutated
// afterwards. Lookups are by exact key or by name plus a semver-compatible
// version marker:
//
//	reg, err := registry.New(descs, exports)
//	d, err := reg.Resolve("demo.Pair", "1.2.0") // may return demo.Pair@1.4.1
//
// Images that should be built on first use are wrapped in a Lazy, which
// runs the constructor through a poisonable once barrier.
package registry
