package mcp

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/smf8/ferris-say/client"
)

func TestNewBridge(t *testing.T) {
	bridge := NewBridge()

	if bridge == nil {
		t.Fatal("Expected bridge to be created")
	}

	if bridge.mcpServer == nil {
		t.Error("Expected MCP server to be initialized")
	}

	if bridge.GetMCPServer() != bridge.mcpServer {
		t.Error("Expected GetMCPServer to return the initialized server")
	}
}

func TestBridge_RequiresSupervisor(t *testing.T) {
	bridge := NewBridge()

	if _, err := bridge.sendMessage("bob", "hi"); !errors.Is(err, ErrNotAttached) {
		t.Errorf("sendMessage error = %v, want ErrNotAttached", err)
	}

	if _, err := bridge.onlineUsers(); !errors.Is(err, ErrNotAttached) {
		t.Errorf("onlineUsers error = %v, want ErrNotAttached", err)
	}

	if _, err := bridge.reconnect(); !errors.Is(err, ErrNotAttached) {
		t.Errorf("reconnect error = %v, want ErrNotAttached", err)
	}
}

func TestBridge_SendMessageValidation(t *testing.T) {
	bridge := NewBridge()
	bridge.Attach(client.NewSupervisor("alice", "localhost:9999", bridge))

	if _, err := bridge.sendMessage("", "hi"); err == nil {
		t.Error("Expected error for empty recipient")
	}

	result, err := bridge.sendMessage("bob", "hi")
	if err != nil {
		t.Fatalf("sendMessage returned error: %v", err)
	}
	if !strings.Contains(result, "bob") {
		t.Errorf("Result %q should name the recipient", result)
	}
}

func TestBridge_UserListCache(t *testing.T) {
	bridge := NewBridge()
	bridge.Attach(client.NewSupervisor("alice", "localhost:9999", bridge))

	bridge.HandleConnected(true)
	bridge.HandleUserList([]string{"bob", "carol"})

	result, err := bridge.onlineUsers()
	if err != nil {
		t.Fatalf("onlineUsers returned error: %v", err)
	}
	if !strings.Contains(result, "bob") || !strings.Contains(result, "carol") {
		t.Errorf("Result %q should list cached users", result)
	}

	// A fresh list replaces the cache outright.
	bridge.HandleUserList([]string{"dave"})
	result, _ = bridge.onlineUsers()
	if strings.Contains(result, "bob") {
		t.Errorf("Result %q should not contain evicted user", result)
	}
	if !strings.Contains(result, "dave") {
		t.Errorf("Result %q should contain new user", result)
	}
}

func TestBridge_OnlineUsersDisconnected(t *testing.T) {
	bridge := NewBridge()
	bridge.Attach(client.NewSupervisor("alice", "localhost:9999", bridge))

	bridge.HandleConnected(true)
	bridge.HandleConnected(false)

	result, err := bridge.onlineUsers()
	if err != nil {
		t.Fatalf("onlineUsers returned error: %v", err)
	}
	if !strings.Contains(result, "Not connected") {
		t.Errorf("Result %q should warn about a stale list", result)
	}
}

func TestBridge_RecentMessages(t *testing.T) {
	bridge := NewBridge()

	if result := bridge.recentMessages(); !strings.Contains(result, "No messages") {
		t.Errorf("Empty history result = %q", result)
	}

	bridge.HandlePrompt("bob", "first")
	bridge.HandlePrompt("carol", "second")

	result := bridge.recentMessages()
	if !strings.Contains(result, "bob: first") || !strings.Contains(result, "carol: second") {
		t.Errorf("Result %q should contain both messages", result)
	}
	if strings.Index(result, "first") > strings.Index(result, "second") {
		t.Errorf("Result %q should list oldest first", result)
	}
}

func TestBridge_PromptHistoryBounded(t *testing.T) {
	bridge := NewBridge()

	for i := 0; i < promptHistory+5; i++ {
		bridge.HandlePrompt("bob", fmt.Sprintf("message %d", i))
	}

	bridge.mu.Lock()
	kept := len(bridge.prompts)
	oldest := bridge.prompts[0].Text
	bridge.mu.Unlock()

	if kept != promptHistory {
		t.Errorf("History length = %d, want %d", kept, promptHistory)
	}
	if oldest != "message 5" {
		t.Errorf("Oldest kept message = %q, want %q", oldest, "message 5")
	}
}

func TestBridge_Status(t *testing.T) {
	bridge := NewBridge()

	if got := bridge.status(); got != "disconnected" {
		t.Errorf("status() = %q, want %q", got, "disconnected")
	}

	bridge.HandleConnected(true)
	if got := bridge.status(); got != "connected" {
		t.Errorf("status() = %q, want %q", got, "connected")
	}
}

func TestBridge_SaveSettingsValidation(t *testing.T) {
	bridge := NewBridge()

	if _, err := bridge.saveSettings("", "localhost:8080"); err == nil {
		t.Error("Expected error for empty username")
	}
	if _, err := bridge.saveSettings("alice", ""); err == nil {
		t.Error("Expected error for empty server")
	}
}
