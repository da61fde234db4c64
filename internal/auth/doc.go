// Package auth provides authentication for PolyAutomate.
//
// This package manages:
//   - User accounts backed by SQLite
//   - Password hashing with Argon2id (PHC string format)
//   - Stateless JWT bearer tokens (HS256, signature-only validation)
//
// # Token Model
//
// A single long-lived bearer token (default 7 days) is issued at register
// and login. Requests present it as "Authorization: Bearer <token>" and the
// API middleware validates the signature and expiry without touching the
// database. There is no revocation list; deactivating a user stops new
// logins but outstanding tokens remain valid until expiry.
//
// # Security Considerations
//
//   - Password hashes use Argon2id with OWASP-recommended parameters
//   - Hash comparison is constant-time
//   - The signing secret comes from config and must be at least 32 chars
//   - Login failures return ErrInvalidCredentials regardless of whether
//     the username or the password was wrong
package auth
