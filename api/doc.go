// Package api assembles the HTTP surface of the ferris-say relay.
//
// The api package implements:
//   - WebSocket upgrade handling at /ws/{identity}
//   - A health check endpoint
//   - A read-only JSON view of the online user registry
//
// Endpoints:
//
//   - GET /ws/{identity} - Upgrade to a chat connection; 400 when the
//     identity is already registered
//   - GET /healthz - Plain-text liveness check
//   - GET /api/users - JSON list of currently online identities
package api
