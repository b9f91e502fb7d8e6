// Package client provides the client side of the ferris-say chat relay.
//
// The client package implements:
//   - Session: one live connection with a typed send API and a
//     last-value-wins view of inbound messages
//   - Supervisor: the long-lived reconnect loop that owns sessions and
//     multiplexes timers, commands, and inbound events
//
// Reconnection:
//
// The supervisor dials on a fixed interval, forever. There is no backoff
// growth and no retry limit; the loop only stops when its context is
// cancelled. A session that dies is discarded whole and a fresh one is
// constructed on the next attempt.
//
// Inbound messages are cached in a single overwrite-on-write slot rather
// than a queue. Applications reading slower than the network observe only
// the newest message; this is a deliberate low-overhead tradeoff inherited
// from the original desktop client.
package client
