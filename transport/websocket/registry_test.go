package websocket

import (
	"errors"
	"sync"
	"testing"

	"github.com/smf8/ferris-say/chat"
)

func TestTryAdmitRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()

	sink, admitted := registry.TryAdmit("alice")
	if !admitted {
		t.Fatal("First admission should succeed")
	}
	if sink == nil {
		t.Fatal("Admission should return a delivery channel")
	}

	if _, admitted := registry.TryAdmit("alice"); admitted {
		t.Error("Second admission of the same identity should fail")
	}

	if registry.Count() != 1 {
		t.Errorf("Expected 1 registered identity, got %d", registry.Count())
	}
}

func TestTryAdmitConcurrent(t *testing.T) {
	registry := NewRegistry()

	const attempts = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, admitted := registry.TryAdmit("alice"); admitted {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("Expected exactly 1 successful admission, got %d", successes)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	registry := NewRegistry()

	sink, _ := registry.TryAdmit("alice")

	registry.Remove("alice")
	registry.Remove("alice") // second removal must be a no-op

	if registry.Count() != 0 {
		t.Errorf("Expected empty registry, got %d entries", registry.Count())
	}

	select {
	case _, open := <-sink:
		if open {
			t.Error("Expected delivery channel to be closed after removal")
		}
	default:
		t.Error("Expected delivery channel to be closed, but receive would block")
	}

	// The identity is free again.
	if _, admitted := registry.TryAdmit("alice"); !admitted {
		t.Error("Identity should be admittable after removal")
	}
}

func TestLookup(t *testing.T) {
	registry := NewRegistry()

	if _, exists := registry.Lookup("alice"); exists {
		t.Error("Lookup of an unregistered identity should report absence")
	}

	sink, admitted := registry.TryAdmit("alice")
	if !admitted {
		t.Fatal("Admission should succeed")
	}

	found, exists := registry.Lookup("alice")
	if !exists {
		t.Fatal("Lookup should find the admitted identity")
	}
	if found != sink {
		t.Error("Lookup should return the admitted delivery channel")
	}

	registry.Remove("alice")
	if _, exists := registry.Lookup("alice"); exists {
		t.Error("Lookup should report absence after eviction")
	}
}

func TestSnapshot(t *testing.T) {
	registry := NewRegistry()
	registry.TryAdmit("alice")
	registry.TryAdmit("bob")

	users := registry.Snapshot()
	if len(users) != 2 {
		t.Fatalf("Expected 2 identities, got %d", len(users))
	}

	seen := make(map[string]bool, len(users))
	for _, user := range users {
		seen[user] = true
	}
	if !seen["alice"] || !seen["bob"] {
		t.Errorf("Snapshot %v should contain alice and bob", users)
	}
}

func TestDeliver(t *testing.T) {
	registry := NewRegistry()
	sink, _ := registry.TryAdmit("alice")

	msg := chat.NewMessage("bob", "alice", chat.PromptContent("hi"))
	if err := registry.Deliver("alice", msg); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	got := <-sink
	if got.From != "bob" || got.Content.Text != "hi" {
		t.Errorf("Delivered message mismatch: %+v", got)
	}

	if err := registry.Deliver("ghost", msg); !errors.Is(err, ErrUserNotOnline) {
		t.Errorf("Expected ErrUserNotOnline, got %v", err)
	}
}

func TestDeliverFailsFastWhenFull(t *testing.T) {
	registry := NewRegistry()
	registry.TryAdmit("alice")

	msg := chat.NewMessage("bob", "alice", chat.PromptContent("hi"))
	for i := 0; i < deliveryBuffer; i++ {
		if err := registry.Deliver("alice", msg); err != nil {
			t.Fatalf("Deliver %d failed before the channel was full: %v", i, err)
		}
	}

	if err := registry.Deliver("alice", msg); !errors.Is(err, ErrDeliveryBackpressure) {
		t.Errorf("Expected ErrDeliveryBackpressure, got %v", err)
	}
}
