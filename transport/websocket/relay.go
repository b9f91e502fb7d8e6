package websocket

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smf8/ferris-say/chat"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The relay authenticates by identity uniqueness only.
		return true
	},
}

// relay handles one accepted connection: the read pump applies routing
// policy to inbound frames and the write pump drains the connection's
// delivery channel. Termination from either side funnels through the
// registry's idempotent Remove.
type relay struct {
	registry *Registry
	conn     *websocket.Conn
	identity string
	sink     <-chan chat.ChatMessage
}

// ServeWS admits the identity and upgrades the request to a WebSocket
// connection. Admission happens before the upgrade: a duplicate identity is
// rejected with a plain-text 400 and the connection is never upgraded.
func ServeWS(registry *Registry, w http.ResponseWriter, r *http.Request, identity string) {
	if identity == "" {
		http.Error(w, "identity must not be empty", http.StatusBadRequest)
		return
	}

	sink, admitted := registry.TryAdmit(identity)
	if !admitted {
		http.Error(w, "username already exists", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		registry.Remove(identity)
		log.Printf("WebSocket upgrade failed for %q: %v", identity, err)
		return
	}

	log.Printf("user %q connected from %s (%d online)", identity, r.RemoteAddr, registry.Count())

	rl := &relay{
		registry: registry,
		conn:     conn,
		identity: identity,
		sink:     sink,
	}

	go rl.writePump()
	go rl.readPump()
}

// readPump processes inbound frames until the stream ends or errors. Decode
// failures are logged and skipped; they never tear down the connection.
func (rl *relay) readPump() {
	defer func() {
		rl.registry.Remove(rl.identity)
		rl.conn.Close()
		log.Printf("user %q disconnected (%d online)", rl.identity, rl.registry.Count())
	}()

	rl.conn.SetReadLimit(maxMessageSize)
	rl.conn.SetReadDeadline(time.Now().Add(pongWait))
	rl.conn.SetPongHandler(func(string) error {
		return rl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := rl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("read error from %q: %v", rl.identity, err)
			}
			return
		}

		msg, err := chat.Decode(messageType, data)
		if err != nil {
			log.Printf("skipping bad frame from %q: %v", rl.identity, err)
			continue
		}

		switch msg.Content.Kind {
		case chat.KindPrompt:
			if !rl.routePrompt(msg) {
				return
			}

		case chat.KindGetUsersList:
			users := rl.registry.Snapshot()
			resp := chat.NewMessage(chat.ServerIdentity, rl.identity, chat.ListUsersContent(users))
			if !rl.deliverSelf(resp) {
				return
			}

		default:
			// Close and server-to-client variants are no-ops here;
			// termination is driven by stream end, not by Close frames.
		}
	}
}

// routePrompt forwards msg verbatim to its target. An offline target turns
// into a UserNotOnline notice back to the sender; an overloaded target drops
// the message. Returns false when the handler should terminate.
func (rl *relay) routePrompt(msg chat.ChatMessage) bool {
	err := rl.registry.Deliver(msg.To, msg)
	switch {
	case err == nil:
		return true

	case errors.Is(err, ErrUserNotOnline):
		notice := chat.NewMessage(chat.ServerIdentity, rl.identity, chat.ErrorContent(chat.UserNotOnline))
		return rl.deliverSelf(notice)

	default:
		// Recipient overloaded. The message is dropped, not retried; the
		// sender's relay stays up.
		log.Printf("dropping prompt from %q to %q: %v", rl.identity, msg.To, err)
		return true
	}
}

// deliverSelf queues a server-originated message on this connection's own
// delivery channel. Returns false when the identity has been evicted, which
// means the peer is gone and the handler should terminate.
func (rl *relay) deliverSelf(msg chat.ChatMessage) bool {
	err := rl.registry.Deliver(rl.identity, msg)
	switch {
	case err == nil:
		return true

	case errors.Is(err, ErrUserNotOnline):
		log.Printf("client %q disconnected", rl.identity)
		return false

	default:
		log.Printf("dropping %v for %q: %v", msg.Content.Kind, rl.identity, err)
		return true
	}
}

// writePump serializes messages from the delivery channel onto the
// connection and keeps it alive with pings. A closed channel means the
// identity was evicted; the pump sends a close frame and exits.
func (rl *relay) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		rl.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-rl.sink:
			rl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				rl.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			messageType, data, err := chat.Encode(msg)
			if err != nil {
				log.Printf("failed to encode message for %q: %v", rl.identity, err)
				continue
			}

			if err := rl.conn.WriteMessage(messageType, data); err != nil {
				log.Printf("write error to %q: %v", rl.identity, err)
				return
			}

		case <-ticker.C:
			rl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := rl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
