// Package auth issues and verifies operator tokens for the card controller.
//
// Tokens are HS256 JWTs carrying a subject (the operator name) and a role.
// They are minted from the command line and checked by the HTTP API on every
// mutating request. There is no user store: the signing secret is the trust
// anchor, and the role decides what a token may do.
//
// Roles form three tiers:
//   - viewer: read-only access to the command audit
//   - operator: may submit runtime commands (run mode, forces, masks)
//   - engineer: may also replace the card configuration
package auth
