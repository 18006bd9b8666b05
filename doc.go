// Package enrollflow provides an identity verification and progressive-enrollment
// orchestrator in front of an external passwordless+password identity provider:
// ordered verification strategies (one-time code, magic link, password fallback),
// history-driven profile step planning, a durable server-readable session record,
// and deterministic post-login destination resolution over prioritized role sources.
//
// The package is designed for concurrent server workloads: Engine methods are safe
// to call from multiple goroutines after initialization through [Builder.Build].
// A [Wizard] drives exactly one user flow and is intentionally single-flow: each
// user action is one call that awaits its backend result before the next.
//
// # Architecture boundaries
//
// enrollflow is the public surface. It exposes [Engine], [Builder], [Config],
// [Wizard], and value types (WizardSnapshot, ProfileRecord, Destination, etc.).
// The identity provider, the profile store, and the role directory are caller
// supplied through the [IdentityProvider], [ProfileStore], and [RoleDirectory]
// interfaces; enrollflow never talks to them outside Engine and Wizard methods.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or record encoding details in its
//     public API.
//   - Issue or validate credentials itself; it orchestrates the provider that does.
//   - Render pages or own routing. Destination values are opaque route paths.
//
// # Durability contract
//
// The published session record is a single mutable slot per browser context:
// re-publication overwrites in place and never accumulates records. All other
// Redis state owned by this package (continuation secrets, limiter windows,
// in-flight attempt markers) is TTL-bounded and self-expiring.
package enrollflow
