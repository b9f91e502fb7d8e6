package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/smf8/ferris-say/transport/websocket"
)

// Server routes HTTP requests to the relay. The WebSocket endpoint carries
// all chat traffic; the rest is observability.
type Server struct {
	registry *websocket.Registry
	router   *mux.Router
}

// NewServer creates the HTTP server around a connection registry.
func NewServer(registry *websocket.Registry) *Server {
	s := &Server{
		registry: registry,
		router:   mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/ws/{identity}", s.handleWebSocket).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/users", s.handleUsers).Methods("GET")
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleWebSocket admits the identity from the path and hands the request to
// the relay.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWS(s.registry, w, r, mux.Vars(r)["identity"])
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "ferris-say relay is running")
}

// handleUsers reports the online identities. Sorted for stable output; the
// protocol-level ListUsers response makes no such promise.
func (s *Server) handleUsers(w http.ResponseWriter, _ *http.Request) {
	users := s.registry.Snapshot()
	sort.Strings(users)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
