package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smf8/ferris-say/chat"
	transport "github.com/smf8/ferris-say/transport/websocket"
)

type promptEvent struct {
	from, text string
}

// recorder is an EventHandler that exposes callbacks as channels.
type recorder struct {
	connected chan bool
	users     chan []string
	prompts   chan promptEvent
}

func newRecorder() *recorder {
	return &recorder{
		connected: make(chan bool, 16),
		users:     make(chan []string, 16),
		prompts:   make(chan promptEvent, 16),
	}
}

func (r *recorder) HandleUserList(users []string)  { r.users <- users }
func (r *recorder) HandlePrompt(from, text string) { r.prompts <- promptEvent{from, text} }
func (r *recorder) HandleConnected(connected bool) { r.connected <- connected }

func TestRunNotConfigured(t *testing.T) {
	tests := []struct {
		name     string
		identity string
		server   string
	}{
		{"no identity", "", "localhost:8080"},
		{"no server", "alice", ""},
		{"nothing", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sup := NewSupervisor(tt.identity, tt.server, newRecorder())
			if err := sup.Run(context.Background()); !errors.Is(err, ErrNotConfigured) {
				t.Errorf("Expected ErrNotConfigured, got %v", err)
			}
		})
	}
}

func TestSupervisorReconnectsAfterRefusals(t *testing.T) {
	const refusals = 3
	var attempts atomic.Int32

	registry := transport.NewRegistry()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= refusals {
			http.Error(w, "not yet", http.StatusServiceUnavailable)
			return
		}
		transport.ServeWS(registry, w, r, strings.TrimPrefix(r.URL.Path, "/ws/"))
	}))
	defer srv.Close()

	rec := newRecorder()
	sup := NewSupervisor("alice", relayAddr(srv), rec,
		WithRetryInterval(50*time.Millisecond),
		WithRefreshInterval(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	select {
	case connected := <-rec.connected:
		if !connected {
			t.Error("First connection event should report connected")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Supervisor never reached connected state")
	}

	if got := attempts.Load(); got != refusals+1 {
		t.Errorf("Expected %d connection attempts, got %d", refusals+1, got)
	}
}

func TestSupervisorDispatchesEvents(t *testing.T) {
	srv := newRelayServer(t)

	rec := newRecorder()
	sup := NewSupervisor("alice", relayAddr(srv), rec,
		WithRetryInterval(50*time.Millisecond),
		WithRefreshInterval(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	select {
	case <-rec.connected:
	case <-time.After(5 * time.Second):
		t.Fatal("Supervisor never connected")
	}

	// The periodic refresh surfaces the online user list.
	select {
	case users := <-rec.users:
		if len(users) == 0 {
			t.Errorf("Expected at least alice in the user list, got %v", users)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Never received a user list")
	}

	// An incoming prompt reaches the handler.
	bob := dialRaw(t, srv, "bob")
	msg := chat.NewMessage("bob", "alice", chat.PromptContent("hey alice"))
	mt, payload, _ := chat.Encode(msg)
	if err := bob.WriteMessage(mt, payload); err != nil {
		t.Fatalf("Bob write failed: %v", err)
	}

	select {
	case prompt := <-rec.prompts:
		if prompt.from != "bob" || prompt.text != "hey alice" {
			t.Errorf("Unexpected prompt event: %+v", prompt)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Never received the prompt event")
	}
}

func TestSupervisorSendCommand(t *testing.T) {
	srv := newRelayServer(t)

	rec := newRecorder()
	sup := NewSupervisor("alice", relayAddr(srv), rec,
		WithRetryInterval(50*time.Millisecond),
		WithRefreshInterval(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	select {
	case <-rec.connected:
	case <-time.After(5 * time.Second):
		t.Fatal("Supervisor never connected")
	}

	bob := dialRaw(t, srv, "bob")
	sup.Send("bob", "from the supervisor")

	bob.SetReadDeadline(time.Now().Add(5 * time.Second))
	messageType, data, err := bob.ReadMessage()
	if err != nil {
		t.Fatalf("Bob read failed: %v", err)
	}
	got, err := chat.Decode(messageType, data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.From != "alice" || got.Content.Text != "from the supervisor" {
		t.Errorf("Unexpected relayed prompt: %+v", got)
	}
}

func TestSupervisorRecoversFromDeadSession(t *testing.T) {
	srv := newRelayServer(t)

	rec := newRecorder()
	sup := NewSupervisor("alice", relayAddr(srv), rec,
		WithRetryInterval(50*time.Millisecond),
		WithRefreshInterval(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	select {
	case <-rec.connected:
	case <-time.After(5 * time.Second):
		t.Fatal("Supervisor never connected")
	}

	srv.CloseClientConnections()

	// Disconnect is observed, then a fresh session comes up.
	sawDisconnect := false
	deadline := time.After(5 * time.Second)
	for {
		select {
		case connected := <-rec.connected:
			if !connected {
				sawDisconnect = true
				continue
			}
			if !sawDisconnect {
				t.Fatal("Reconnected without observing a disconnect first")
			}
			return
		case <-deadline:
			t.Fatal("Supervisor never recovered from the dead session")
		}
	}
}
