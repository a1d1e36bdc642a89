// Package ir provides the intermediate representation of declared
// predicates and the value model their clauses operate on.
//
// This package contains type definitions, canonical serialization, and
// content-addressed identity only. All other internal packages may import
// ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - Canonical JSON (RFC 8785 ordering, NFC strings) is the only input to hashing
//   - Steps and values are sealed interfaces; exhaustive switches are expected
package ir
