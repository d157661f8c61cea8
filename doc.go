// Package auth provides session-based authentication, credential management
// and a manual identity verification workflow for a membership application.
//
// Credentials:
//   - Accounts hold a PBKDF2-SHA512 password hash. The per-account salt lives
//     in its own table and is rotated, together with the hash, inside a single
//     transaction every time the password changes. Accounts without a hash are
//     legacy records that must be migrated through the admin reset path.
//
// Verification:
//   - An account can sign in only once both flags are set: email_verified,
//     flipped by the signed link sent at signup, and verified, flipped when
//     an Admin approves the uploaded identity document.
//
// Side effects:
//   - Notifier and BlobStore abstract the mail transport and the object
//     store. Signup and recovery emails are awaited; approval and denial
//     notices are dispatched in the background and failures are only logged.
//
// Activity sinks:
//   - ActivitySink receives best-effort audit events (sign-in, rotation,
//     approval, removal). Sink errors are logged and never fail the caller.
package auth
