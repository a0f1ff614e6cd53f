// Package password hashes and verifies the broker console password with Argon2id.
//
// The server never stores the plaintext: operators run `supreme hash-password` once and
// put the encoded result in SUPREME_ADMIN_PASSWORD_HASH. Encoded hashes are treated as
// untrusted input during Verify and rejected when their cost parameters are out of bounds.
package password
