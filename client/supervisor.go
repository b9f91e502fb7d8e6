package client

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/smf8/ferris-say/chat"
)

// ErrNotConfigured reports that the supervisor has no identity or server
// address. No connection is ever attempted in that state; configuration must
// come from the settings provider first.
var ErrNotConfigured = errors.New("chat client not configured")

// Default intervals, matching the original desktop client.
const (
	DefaultRetryInterval   = 5 * time.Second
	DefaultRefreshInterval = 5 * time.Second
)

// EventHandler receives chat events on behalf of the presentation layer.
// Callbacks are invoked from the supervisor goroutine and should not block.
type EventHandler interface {
	// HandleUserList reports the latest set of online identities.
	HandleUserList(users []string)

	// HandlePrompt reports an incoming text message.
	HandlePrompt(from, text string)

	// HandleConnected reports connection state transitions.
	HandleConnected(connected bool)
}

type commandKind int

const (
	cmdSendPrompt commandKind = iota
	cmdListUsers
	cmdReconnect
)

type command struct {
	kind commandKind
	to   string
	text string
}

// Supervisor maintains one logical chat connection against an unreliable
// network. It dials on a fixed retry interval, forever, and multiplexes the
// periodic user list refresh, externally issued commands, and inbound
// messages into one control loop. A dead session is discarded whole; every
// attempt constructs a fresh one.
type Supervisor struct {
	identity string
	server   string
	handler  EventHandler

	commands        chan command
	retryInterval   time.Duration
	refreshInterval time.Duration
}

// Option customizes a Supervisor.
type Option func(*Supervisor)

// WithRetryInterval overrides the fixed reconnect interval.
func WithRetryInterval(d time.Duration) Option {
	return func(s *Supervisor) { s.retryInterval = d }
}

// WithRefreshInterval overrides the periodic user list refresh interval.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Supervisor) { s.refreshInterval = d }
}

// NewSupervisor creates a supervisor for the given identity and server
// address. Events are delivered to handler.
func NewSupervisor(identity, server string, handler EventHandler, opts ...Option) *Supervisor {
	s := &Supervisor{
		identity:        identity,
		server:          server,
		handler:         handler,
		commands:        make(chan command, 16),
		retryInterval:   DefaultRetryInterval,
		refreshInterval: DefaultRefreshInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send queues a prompt for delivery through the current session.
func (s *Supervisor) Send(to, text string) {
	s.enqueue(command{kind: cmdSendPrompt, to: to, text: text})
}

// RequestUserList queues an immediate user list refresh.
func (s *Supervisor) RequestUserList() {
	s.enqueue(command{kind: cmdListUsers})
}

// Reconnect discards the current session and dials again on the next retry
// tick.
func (s *Supervisor) Reconnect() {
	s.enqueue(command{kind: cmdReconnect})
}

func (s *Supervisor) enqueue(cmd command) {
	select {
	case s.commands <- cmd:
	default:
		log.Printf("command queue full, dropping command %d", cmd.kind)
	}
}

// Run drives the reconnect loop until ctx is cancelled. Connection attempts
// happen at most once per retry interval, indefinitely, with no backoff
// growth. Returns ErrNotConfigured without dialing when identity or server
// is empty.
func (s *Supervisor) Run(ctx context.Context) error {
	if s.identity == "" || s.server == "" {
		return ErrNotConfigured
	}

	retry := time.NewTicker(s.retryInterval)
	defer retry.Stop()

	for {
		session, err := Dial(ctx, s.identity, s.server)
		if err != nil {
			log.Printf("failed to connect to %s: %v", s.server, err)
		} else {
			s.handler.HandleConnected(true)
			err := s.runSession(ctx, session)
			s.handler.HandleConnected(false)
			if err != nil {
				return err
			}
		}

		// Wait one interval before the next attempt.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-retry.C:
		}
	}
}

// runSession is the inner loop for one live session. It returns nil when the
// session should be replaced and an error only on cancellation. The session
// is closed on the way out, best-effort.
func (s *Supervisor) runSession(ctx context.Context, session *Session) error {
	defer session.Close()

	refresh := time.NewTicker(s.refreshInterval)
	defer refresh.Stop()

	// Prime the online user list right away instead of waiting a full tick.
	if err := session.RequestUserList(); err != nil {
		log.Printf("failed to request user list: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-refresh.C:
			if err := session.RequestUserList(); err != nil {
				log.Printf("failed to request user list: %v", err)
			}

		case cmd := <-s.commands:
			switch cmd.kind {
			case cmdSendPrompt:
				if err := session.Send(cmd.to, cmd.text); err != nil {
					log.Printf("failed to send prompt to %q: %v", cmd.to, err)
				}
			case cmdListUsers:
				if err := session.RequestUserList(); err != nil {
					log.Printf("failed to request user list: %v", err)
				}
			case cmdReconnect:
				log.Printf("reconnect requested, discarding current session")
				return nil
			}

		case <-session.Events():
			if msg, ok := session.Latest(); ok {
				s.dispatch(msg)
			}

		case <-session.Done():
			log.Printf("session to %s ended", s.server)
			return nil
		}
	}
}

func (s *Supervisor) dispatch(msg chat.ChatMessage) {
	switch msg.Content.Kind {
	case chat.KindListUsers:
		s.handler.HandleUserList(msg.Content.Users)
	case chat.KindPrompt:
		s.handler.HandlePrompt(msg.From, msg.Content.Text)
	case chat.KindError:
		log.Printf("relay reported: %s", msg.Content.Err)
	}
}
