// Package transport runs the WebSocket accept loop and hands each accepted
// connection to a new session. Lifted directly from the teacher's
// GameServer.handleWebSocket in cmd/gameserver/main.go.
package transport

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/EaseCation/rank-matcher/internal/registry"
	"github.com/EaseCation/rank-matcher/internal/session"
)

// Server upgrades HTTP connections on its one endpoint and starts a
// session per accepted socket.
type Server struct {
	addr     string
	reg      *registry.Registry
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// New creates a transport server bound to addr (spec.md §6's
// websocket.addr). CORS is wide open: spec.md's Non-goals exclude
// authentication and transport encryption, and this protocol has no
// browser-origin concept to restrict.
func New(addr string, reg *registry.Registry, log zerolog.Logger) *Server {
	return &Server{
		addr: addr,
		reg:  reg,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ListenAndServe blocks, serving the WebSocket endpoint until it fails.
// Matches the teacher's Start(): http.ListenAndServe drives the shutdown.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.log.Info().Str("addr", s.addr).Msg("listening")
	return http.ListenAndServe(s.addr, mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sess := session.New(ws, s.reg, s.log)
	s.log.Info().Str("session", sess.ID().String()).Str("remote", ws.RemoteAddr().String()).Msg("session accepted")
	go sess.Run()
}
