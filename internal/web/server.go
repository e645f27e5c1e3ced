// Package web provides the HTTP status server and command endpoint for the
// water-filter daemon.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/sweeney/water-filter/internal/logic"
	"github.com/sweeney/water-filter/internal/status"
)

// commandTimeout bounds how long a POST waits for the control loop.
const commandTimeout = 3 * time.Second

// CommandRequest carries an operator command into the control loop.
// The loop must send exactly one result on Reply.
type CommandRequest struct {
	Command logic.Command
	Reply   chan logic.CommandResult
}

// NewCommandRequest creates a request with a buffered reply channel so the
// loop never blocks on a client that has gone away.
func NewCommandRequest(cmd logic.Command) CommandRequest {
	return CommandRequest{Command: cmd, Reply: make(chan logic.CommandResult, 1)}
}

// Server serves the status page, JSON, metrics and commands over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	commands   chan<- CommandRequest
}

// New creates a Server that reads state from the given tracker and forwards
// commands on the given channel. metrics may be nil.
func New(addr string, tracker *status.Tracker, commands chan<- CommandRequest, metrics http.Handler) *Server {
	s := &Server{tracker: tracker, commands: commands}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc("/index.html", s.handleIndex).Methods("GET")
	r.HandleFunc("/index.json", s.handleJSON).Methods("GET")
	r.HandleFunc("/api/status", s.handleJSON).Methods("GET")
	r.HandleFunc("/api/command/{name}", s.handleCommand).Methods("POST")
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods("GET")
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	cmd, err := logic.ParseCommand(name)
	if err != nil {
		writeCommandError(w, http.StatusBadRequest, name, err.Error())
		return
	}
	if s.commands == nil {
		writeCommandError(w, http.StatusServiceUnavailable, string(cmd), "commands disabled")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	req := NewCommandRequest(cmd)
	select {
	case s.commands <- req:
	case <-ctx.Done():
		writeCommandError(w, http.StatusServiceUnavailable, string(cmd), "control loop busy")
		return
	}

	select {
	case res := <-req.Reply:
		writeCommandResult(w, res)
	case <-ctx.Done():
		writeCommandError(w, http.StatusGatewayTimeout, string(cmd), "no reply from control loop")
	}
}
