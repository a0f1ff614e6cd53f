// Package fingerprint derives stable, non-reversible keys from caller data (client IPs,
// phone numbers) so rate-limit buckets and logs never carry the raw value.
//
// With SUPREME_FINGERPRINT_KEY set, keys are HMAC-SHA256(value, key); without it they fall
// back to plain SHA-256, which is fine for development but linkable across deployments.
package fingerprint
