// Package http implements the REST API server for agentdeck.
//
// The server hosts the read-side of the index (projects, session file
// lookup), the terminal registration surface used by external PTY
// spawners, and the WebSocket upgrade endpoint. It binds to localhost
// by default and carries no authentication.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/agentdeck/agentdeck/internal/domain"
)

// SessionIndex is the slice of the indexer the HTTP layer reads from.
type SessionIndex interface {
	GetProjects() []domain.Project
	GetFilePathForSession(key domain.SessionKey) (string, bool)
	Refresh()
	Initialized() bool
}

// TerminalRegistry registers and retires PTY-backed terminals.
type TerminalRegistry interface {
	Register(provider domain.Provider, cwd string) domain.TerminalInfo
	MarkExited(terminalID string) error
	List() []domain.TerminalInfo
}

// BindingSource exposes the current session-to-terminal bindings.
type BindingSource interface {
	Bindings() map[domain.SessionKey]string
}

// WebSocketHandler handles WebSocket upgrade requests at /ws.
type WebSocketHandler func(http.ResponseWriter, *http.Request)

// Server is the REST API server.
type Server struct {
	addr      string
	index     SessionIndex
	terminals TerminalRegistry
	bindings  BindingSource
	wsHandler WebSocketHandler

	router     *mux.Router
	httpServer *http.Server
}

// New creates the REST server. wsHandler may be nil, in which case /ws
// is not mounted.
func New(host string, port int, index SessionIndex, terminals TerminalRegistry, bindings BindingSource, wsHandler WebSocketHandler) *Server {
	s := &Server{
		addr:      fmt.Sprintf("%s:%d", host, port),
		index:     index,
		terminals: terminals,
		bindings:  bindings,
		wsHandler: wsHandler,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/projects", s.handleProjects).Methods("GET")
	api.HandleFunc("/sessions/{provider}/{id}/file", s.handleSessionFile).Methods("GET")
	api.HandleFunc("/terminals", s.handleListTerminals).Methods("GET")
	api.HandleFunc("/terminals", s.handleRegisterTerminal).Methods("POST")
	api.HandleFunc("/terminals/{id}", s.handleTerminalExited).Methods("DELETE")
	api.HandleFunc("/bindings", s.handleBindings).Methods("GET")
	api.HandleFunc("/refresh", s.handleRefresh).Methods("POST")

	if s.wsHandler != nil {
		router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			s.wsHandler(w, r)
		})
	}

	return router
}

// Handler returns the routed handler with middleware applied. Exposed
// for tests driving the server through httptest.
func (s *Server) Handler() http.Handler {
	return requestLoggingMiddleware(corsMiddleware(s.router))
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("HTTP server starting")

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	return nil
}

// Stop shuts the server down, waiting for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	log.Info().Msg("HTTP server stopping")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"initialized": s.index.Initialized(),
		"time":        time.Now().UTC().Format(time.RFC3339),
	})
}

// handleProjects handles GET /api/projects.
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	projects := s.index.GetProjects()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"projects": projects,
		"count":    len(projects),
	})
}

// handleSessionFile handles GET /api/sessions/{provider}/{id}/file and
// reports the transcript path backing a session.
func (s *Server) handleSessionFile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	provider := domain.Provider(vars["provider"])
	if !provider.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown provider %q", vars["provider"]))
		return
	}

	key := domain.NewSessionKey(provider, vars["id"])
	path, ok := s.index.GetFilePathForSession(key)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no session %s", key))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"provider": provider,
		"id":       key.ID,
		"path":     path,
	})
}

// handleListTerminals handles GET /api/terminals.
func (s *Server) handleListTerminals(w http.ResponseWriter, r *http.Request) {
	terminals := s.terminals.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"terminals": terminals,
		"count":     len(terminals),
	})
}

type registerTerminalRequest struct {
	Provider string `json:"provider"`
	CWD      string `json:"cwd"`
}

// handleRegisterTerminal handles POST /api/terminals. External PTY
// spawners call this right after forking the provider CLI so the
// coordinator can pair the terminal with the session file it produces.
func (s *Server) handleRegisterTerminal(w http.ResponseWriter, r *http.Request) {
	var req registerTerminalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	provider := domain.Provider(req.Provider)
	if !provider.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown provider %q", req.Provider))
		return
	}
	if strings.TrimSpace(req.CWD) == "" {
		writeError(w, http.StatusBadRequest, "cwd is required")
		return
	}

	info := s.terminals.Register(provider, req.CWD)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"terminal": info,
	})
}

// handleTerminalExited handles DELETE /api/terminals/{id}.
func (s *Server) handleTerminalExited(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.terminals.MarkExited(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     id,
		"exited": true,
	})
}

// handleBindings handles GET /api/bindings.
func (s *Server) handleBindings(w http.ResponseWriter, r *http.Request) {
	bindings := s.bindings.Bindings()
	out := make(map[string]string, len(bindings))
	for key, terminalID := range bindings {
		out[key.String()] = terminalID
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bindings": out,
		"count":    len(out),
	})
}

// handleRefresh handles POST /api/refresh and requests a full rescan.
// The scan runs asynchronously; the response only acknowledges it.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	go s.index.Refresh()
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"refreshing": true,
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// writeError writes an error payload.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
