// Package sec implements the request-scoped identity pipeline for the web
// application.
//
// # Pipeline
//
// On every request, in order: [Resolve] determines the caller's claimed
// credential from the Authorization header or the session cookie;
// [Authenticate] verifies it against the stored digest; [Binder.Bind]
// leases a database connection and stamps the resolved caller id onto its
// session state, so row-level security policies inside PostgreSQL see the
// correct actor for every subsequent query on that connection.
//
// # Credentials
//
// Exactly one credential scheme is supported: username/password, carried
// either as an HTTP Basic Authorization header or as a `sessionid` cookie
// holding the same base64 payload. The cookie is a cached copy of the
// original credential, not a server-issued token; signing out only removes
// the cookie. A Bearer slot is parsed but reserved and never authenticated.
//
// IMPORTANT: credentials travel base64-encoded, not encrypted. TLS must be
// used in production to protect them in transit.
//
// # Components
//
//   - [HashCredential]: username-salted BLAKE2b-256 credential digest
//   - [Resolve]: header/cookie precedence chain producing a [Credential]
//   - [Authenticate]: digest verification against the user store
//   - [Binder]: per-request connection lease and session stamping
//   - [WithIdentity], [IdentityFrom]: context accessors for the caller
package sec
