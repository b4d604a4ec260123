// Package api implements the HTTP REST API and WebSocket server for the card
// controller.
//
// This package provides:
//   - read endpoints for the published snapshot, single cards, the active
//     configuration and the RTC schedule
//   - command submission (audited) and configuration apply
//   - a WebSocket hub that pushes a snapshot event whenever the sequence
//     number moves and a heartbeat event while it does not
//   - a Prometheus exposition of the engine counters
//   - the middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The server never touches engine state directly. Reads go through the
// immutable snapshot the engine publishes after every tick; writes go
// through the bounded command queue or the pause-and-swap config apply.
//
// # Security
//
// Mutating endpoints and the audit listing require a bearer JWT minted by
// the auth package. The token's role decides which of them it may call.
// Reads and the WebSocket stream are open.
package api
