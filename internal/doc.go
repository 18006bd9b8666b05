// Package internal holds crypto-adjacent helpers shared by the enrollflow
// root package: claim key derivation and continuation secret generation.
// Nothing here is part of the public API.
package internal
