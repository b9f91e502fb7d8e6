// Package mcp exposes the chat client over the Model Context Protocol.
//
// The original desktop application drove the chat core from a system tray
// menu and window commands. This package is the equivalent surface for
// automation: an MCP stdio server whose tools issue the same commands into
// the client supervisor (send a message, refresh the user list, reconnect,
// save settings) and read back the state the tray rendered (online users,
// recent messages, connection status).
//
// The Bridge implements client.EventHandler, so it doubles as the
// presentation layer: inbound user lists and prompts are cached and served
// from tool calls.
package mcp
