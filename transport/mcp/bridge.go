package mcp

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/smf8/ferris-say/client"
	"github.com/smf8/ferris-say/settings"
)

// promptHistory bounds how many incoming prompts the bridge remembers.
const promptHistory = 20

// ErrNotAttached reports that no supervisor is driving the bridge yet.
var ErrNotAttached = errors.New("no chat supervisor attached")

// Prompt is one received text message, as shown to tool callers.
type Prompt struct {
	From string
	Text string
	At   time.Time
}

// Bridge caches chat events and forwards tool calls into the client
// supervisor. It implements client.EventHandler.
type Bridge struct {
	mu         sync.Mutex
	supervisor *client.Supervisor
	users      []string
	prompts    []Prompt
	connected  bool

	mcpServer *server.MCPServer
}

// NewBridge creates the bridge and its MCP server with all tools
// registered. Attach a supervisor before serving.
func NewBridge() *Bridge {
	b := &Bridge{}
	b.initMCPServer()
	return b
}

// Attach connects the bridge to the supervisor that executes its commands.
func (b *Bridge) Attach(supervisor *client.Supervisor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.supervisor = supervisor
}

// GetMCPServer returns the underlying MCP server for serving.
func (b *Bridge) GetMCPServer() *server.MCPServer {
	return b.mcpServer
}

// ServeStdio serves the MCP protocol over stdin/stdout until EOF.
func (b *Bridge) ServeStdio() error {
	return server.ServeStdio(b.mcpServer)
}

// HandleUserList implements client.EventHandler.
func (b *Bridge) HandleUserList(users []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users = append([]string(nil), users...)
}

// HandlePrompt implements client.EventHandler.
func (b *Bridge) HandlePrompt(from, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prompts = append(b.prompts, Prompt{From: from, Text: text, At: time.Now()})
	if len(b.prompts) > promptHistory {
		b.prompts = b.prompts[len(b.prompts)-promptHistory:]
	}
}

// HandleConnected implements client.EventHandler.
func (b *Bridge) HandleConnected(connected bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = connected
}

// sendMessage queues a prompt through the supervisor.
func (b *Bridge) sendMessage(to, text string) (string, error) {
	if to == "" {
		return "", errors.New("recipient must not be empty")
	}

	b.mu.Lock()
	supervisor := b.supervisor
	b.mu.Unlock()

	if supervisor == nil {
		return "", ErrNotAttached
	}

	supervisor.Send(to, text)
	return fmt.Sprintf("Message queued for %s", to), nil
}

// onlineUsers returns the cached user list and asks for a fresh one.
func (b *Bridge) onlineUsers() (string, error) {
	b.mu.Lock()
	supervisor := b.supervisor
	users := append([]string(nil), b.users...)
	connected := b.connected
	b.mu.Unlock()

	if supervisor == nil {
		return "", ErrNotAttached
	}
	supervisor.RequestUserList()

	if !connected {
		return "Not connected to the relay; user list may be stale.", nil
	}
	if len(users) == 0 {
		return "No users online (list may still be loading).", nil
	}
	return fmt.Sprintf("Online users (%d):\n%s", len(users), strings.Join(users, "\n")), nil
}

// recentMessages formats the cached prompt history, newest last.
func (b *Bridge) recentMessages() string {
	b.mu.Lock()
	prompts := append([]Prompt(nil), b.prompts...)
	b.mu.Unlock()

	if len(prompts) == 0 {
		return "No messages received yet."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Recent messages (%d):\n", len(prompts))
	for _, p := range prompts {
		fmt.Fprintf(&sb, "[%s] %s: %s\n", p.At.Format("15:04:05"), p.From, p.Text)
	}
	return sb.String()
}

// reconnect asks the supervisor to discard the current session.
func (b *Bridge) reconnect() (string, error) {
	b.mu.Lock()
	supervisor := b.supervisor
	b.mu.Unlock()

	if supervisor == nil {
		return "", ErrNotAttached
	}

	supervisor.Reconnect()
	return "Reconnect requested", nil
}

// status reports the connection state seen by the event handler.
func (b *Bridge) status() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.connected {
		return "connected"
	}
	return "disconnected"
}

// saveSettings persists a new identity and server address to the default
// settings path. It takes effect on the next process start.
func (b *Bridge) saveSettings(username, serverAddr string) (string, error) {
	if username == "" || serverAddr == "" {
		return "", errors.New("username and server must not be empty")
	}

	path, err := settings.New(username, serverAddr).SaveDefault()
	if err != nil {
		return "", fmt.Errorf("save settings: %w", err)
	}
	return fmt.Sprintf("Settings saved to %s (restart to apply)", path), nil
}
