// Package tendril is a pattern-matching and structural-transformation DSL
// for JSON-like in-memory values: arrays, objects, strings, numbers,
// booleans, and null.
//
// A pattern is source text compiled once with Compile (or the Tendril
// fluent wrapper below) into a reusable *Pattern. Running a pattern
// against an input Value produces zero or more Solutions — variable
// bindings together with the site each binding was read from — via an
// anchored Match or a recursive Scan. Solutions' sites can be fed back
// into ApplyEdits to produce a new Value with the matched locations
// replaced.
//
// The compiler (lexer, parser, validator) lives in internal/ptok and
// internal/past; the backtracking evaluator lives in internal/eval; the
// edit applier lives in internal/edit. This package is the thin façade
// the rest of the module is built to keep out of the core's way (spec
// §1's "out of scope: external collaborators"): a pattern cache, fluent
// match/scan wrappers, and convenience reducers, following the teacher's
// own root-level main.go-as-thin-entrypoint layout.
package tendril
