// Package session houses the core.ThreadStore implementations that persist
// conversations keyed by thread id: a volatile in-memory store, an embedded
// Badger store and a shared Redis store. Open selects one from a URL so the
// wiring layer never depends on a concrete backend.
package session
