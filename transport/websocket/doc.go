// Package websocket provides the server side of the ferris-say chat relay.
//
// The websocket package implements:
//   - The connection registry mapping identities to delivery channels
//   - Per-connection relay handlers routing prompts by recipient identity
//   - Admission control rejecting duplicate identities before upgrade
//   - Connection lifecycle management and keepalive
//
// Architecture:
//
// Each accepted connection runs two goroutines. The read pump decodes
// inbound frames and applies routing policy: prompts are forwarded to the
// recipient's delivery channel, user list requests are answered from a
// registry snapshot, and undeliverable prompts turn into UserNotOnline
// notices back to the sender. The write pump drains the connection's own
// delivery channel onto the wire.
//
// Concurrency:
//
// The Registry is the only state shared between handlers. It is guarded by a
// reader/writer lock that is never held across a blocking operation:
// delivery channels are bounded and sends are non-blocking, failing fast
// with ErrDeliveryBackpressure when a recipient is overloaded.
//
// Usage:
//
//	registry := websocket.NewRegistry()
//	router.HandleFunc("/ws/{identity}", func(w http.ResponseWriter, r *http.Request) {
//		websocket.ServeWS(registry, w, r, mux.Vars(r)["identity"])
//	})
//
// Connection Lifecycle:
//
// 1. Client connects to /ws/<identity>
// 2. Registry admits the identity or rejects with HTTP 400
// 3. Read and write pumps relay frames until the stream ends or errors
// 4. The identity is evicted exactly once; its channel close stops the write pump
package websocket
