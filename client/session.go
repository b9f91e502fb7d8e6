package client

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smf8/ferris-say/chat"
)

// writeWait bounds how long a single frame write may take.
const writeWait = 10 * time.Second

// Session owns one live connection to the relay. It exposes a typed send API
// and a last-value-wins view of inbound messages: Latest always returns the
// most recently received message, and a consumer reading slower than the
// network will miss intermediate messages. A Session is never reused after
// its transport dies; the supervisor constructs a fresh one per attempt.
type Session struct {
	identity string
	conn     *websocket.Conn

	// gorilla allows one concurrent writer per connection.
	writeMu sync.Mutex

	latest atomic.Pointer[chat.ChatMessage]
	events chan struct{}
	done   chan struct{}
}

// Dial performs the WebSocket handshake against ws://server/ws/identity and
// starts the background reader. Failures are reported, never retried here;
// retry policy belongs to the supervisor.
func Dial(ctx context.Context, identity, server string) (*Session, error) {
	url := fmt.Sprintf("ws://%s/ws/%s", server, identity)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake with %s rejected (%s): %w", server, resp.Status, err)
		}
		return nil, fmt.Errorf("handshake with %s failed: %w", server, err)
	}

	s := &Session{
		identity: identity,
		conn:     conn,
		events:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	go s.readLoop()
	return s, nil
}

// Identity returns the identity this session registered with.
func (s *Session) Identity() string {
	return s.identity
}

// readLoop decodes inbound frames into the latest-message slot until the
// transport ends. Decode failures are logged and skipped.
func (s *Session) readLoop() {
	defer close(s.done)

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				// The server's close frame is the native encoding of Close.
				s.store(chat.NewMessage("", "", chat.CloseContent()))
			} else {
				log.Printf("session read ended: %v", err)
			}
			return
		}

		msg, err := chat.Decode(messageType, data)
		if err != nil {
			log.Printf("skipping bad frame from server: %v", err)
			continue
		}

		s.store(msg)
	}
}

// store overwrites the latest-message slot and coalesces an event signal.
// The slot is swapped as a whole value, so readers never observe a torn
// message.
func (s *Session) store(msg chat.ChatMessage) {
	s.latest.Store(&msg)

	select {
	case s.events <- struct{}{}:
	default:
		// A signal is already pending; the consumer will read the newest
		// message when it gets there.
	}
}

// Latest returns the most recently received message. The second return is
// false until the first message arrives.
func (s *Session) Latest() (chat.ChatMessage, bool) {
	p := s.latest.Load()
	if p == nil {
		return chat.ChatMessage{}, false
	}
	return *p, true
}

// Events signals message arrivals. Signals are coalesced: one pending signal
// may stand for any number of arrivals, of which only the latest is visible.
func (s *Session) Events() <-chan struct{} {
	return s.events
}

// Done is closed when the transport ends, for any reason.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Send wraps text in a Prompt addressed to the given identity and writes it.
// A write failure is returned to the caller; it does not trigger a reconnect
// by itself.
func (s *Session) Send(to, text string) error {
	return s.write(chat.NewMessage(s.identity, to, chat.PromptContent(text)))
}

// RequestUserList asks the relay for the currently online identities. The
// response arrives asynchronously as a ListUsers message.
func (s *Session) RequestUserList() error {
	return s.write(chat.NewMessage("", "", chat.GetUsersListContent()))
}

// Close performs a best-effort orderly shutdown: a close frame followed by
// closing the transport. Errors are logged, not propagated.
func (s *Session) Close() {
	messageType, data, _ := chat.Encode(chat.NewMessage("", "", chat.CloseContent()))

	s.writeMu.Lock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(messageType, data); err != nil {
		log.Printf("failed to send close frame: %v", err)
	}
	s.writeMu.Unlock()

	if err := s.conn.Close(); err != nil {
		log.Printf("failed to close transport: %v", err)
	}
}

func (s *Session) write(msg chat.ChatMessage) error {
	messageType, data, err := chat.Encode(msg)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("write %v frame: %w", msg.Content.Kind, err)
	}
	return nil
}
