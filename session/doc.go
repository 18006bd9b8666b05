// Package session holds the durable session record: the model, the versioned
// binary codec, and the Redis-backed publish slot read by non-interactive
// server-rendered requests.
//
// A published record is a single mutable slot keyed by record name and browser
// context. Publication always overwrites in place; the encoded bytes for a
// given Session value are deterministic, so republishing an unchanged session
// leaves the slot byte-identical.
package session
