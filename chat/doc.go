// Package chat defines the wire protocol for the ferris-say relay.
//
// The chat package implements:
//   - The ChatMessage envelope exchanged between clients and the relay
//   - The closed MessageContent variant set (Close, Prompt, GetUsersList,
//     ListUsers, Error)
//   - Encoding and decoding between ChatMessage values and WebSocket frames
//
// Wire Format:
//
// Every message except Close travels as a UTF-8 text frame carrying a JSON
// object:
//
//	{"from": "alice", "to": "bob", "content": {"Prompt": "hello"}}
//
// The content field uses an externally tagged encoding: one of
// {"Close":[]}, {"Prompt":"..."}, "GetUsersList", {"ListUsers":[...]}, or
// {"Error":"UserNotOnline"}. Close alternatively travels as the transport's
// native close frame; both encodings decode to the same value.
//
// Decode failures are recoverable by contract: a malformed frame yields an
// error wrapping ErrMalformedFrame and callers are expected to skip the frame
// rather than tear down the connection.
package chat
