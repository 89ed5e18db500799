// Package web provides an HTTP status server for the kaku-bridge daemon.
package web

import (
	"context"
	"io"
	"log"
	"net"
	"net/http"

	"github.com/sweeney/kaku-bridge/internal/kaku"
	"github.com/sweeney/kaku-bridge/internal/mqtt"
	"github.com/sweeney/kaku-bridge/internal/status"
)

// maxSendBody bounds the size of a POST /send request.
const maxSendBody = 4096

// SendFunc transmits a validated command.
type SendFunc func(kaku.Command) error

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	send       SendFunc
}

// New creates a Server that reads state from the given tracker. If send is
// nil, POST /send is not registered.
func New(addr string, tracker *status.Tracker, send SendFunc) *Server {
	s := &Server{tracker: tracker, send: send}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	if send != nil {
		mux.HandleFunc("/send", s.handleSend)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
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
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeResult(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSendBody))
	if err != nil {
		writeResult(w, http.StatusBadRequest, err.Error())
		return
	}
	cmd, err := mqtt.ParseSendRequest(body)
	if err != nil {
		writeResult(w, http.StatusBadRequest, err.Error())
		return
	}

	err = s.send(cmd)
	s.tracker.RecordSent(err)
	if err != nil {
		log.Printf("web: send %s failed: %v", cmd, err)
		writeResult(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeResult(w, http.StatusOK, "")
}
