// Package testutil holds deterministic stand-ins used by tests and the
// scenario harness: sequential resolution ids and a concurrency-safe
// output buffer.
package testutil
