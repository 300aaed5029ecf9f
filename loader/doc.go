// Package loader admits dynamically loaded modules at the binary boundary.
//
// Every item a module exports is resolved in the host image by name and a
// semver-compatible version, then checked with the compat package before
// the module is exposed. Checks run concurrently and a panic in one is
// converted into an error for that item.
//
// Configuration is read from TOML:
//
//	policy = "reject-items"   # or "abort"
//	jobs = 4
//
//	[tags]
//	feature = "warn"          # ignore | warn | reject
//
// Modules built as Go plugins export a constructor named StableABIModule
// with type func() loader.Module; OpenPlugin loads them.
package loader
