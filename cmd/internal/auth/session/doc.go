// Package session issues and verifies the bearer tokens used by the site.
//
// Visitors get a short-lived identity (random user id + display name) when they open the
// chat widget; the broker gets an admin token after the console password check. Both are
// PASETO v4.public tokens signed with an Ed25519 key, so any instance holding the public
// key can validate them without a database round-trip.
package session
