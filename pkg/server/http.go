package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/parley-dev/parley/pkg/protocol"
	"github.com/parley-dev/parley/pkg/session"
)

// Headers carrying the polling transport's session state.
const (
	headerSessionID    = "X-Parley-Session"
	headerPullInterval = "X-Parley-Pull-Interval"
)

// HandleHTTP serves the polling transport for one application. GET
// without a session header opens a session, GET with one drains
// buffered commands, POST delivers a client event and DELETE ends the
// session.
func (s *Server) HandleHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.httpPull(w, r)
	case http.MethodPost:
		s.httpPush(w, r)
	case http.MethodDelete:
		s.httpClose(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) httpPull(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(headerSessionID)
	if id == "" {
		s.httpOpen(w, r)
		return
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	sess.Touch()
	s.writeCommands(w, sess)
}

func (s *Server) httpOpen(w http.ResponseWriter, r *http.Request) {
	app, err := s.app(chi.URLParam(r, "app"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	sess := s.wrap(app.newSession(s.sessionConfig(s.clientInfo(r, "http"))))
	if err := s.sessions.Track(sess); err != nil {
		s.logger.Warn("http session rejected", "app", app.name, "error", err)
		sess.Close()
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set(headerSessionID, sess.ID())
	s.writeCommands(w, sess)
}

func (s *Server) httpPush(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Header.Get(headerSessionID))
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxMessageSize))
	if err != nil {
		http.Error(w, "read failed", http.StatusBadRequest)
		return
	}
	ev, err := protocol.DecodeEvent(body)
	if err != nil {
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}

	switch err := sess.Deliver(ev); {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, session.ErrEventQueueFull):
		http.Error(w, "event queue full", http.StatusTooManyRequests)
	case session.IsGone(err):
		http.Error(w, "session closed", http.StatusGone)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) httpClose(w http.ResponseWriter, r *http.Request) {
	if id := r.Header.Get(headerSessionID); id != "" {
		s.sessions.Remove(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeCommands drains the session's buffered commands into a JSON
// array response and advertises the current pull interval.
func (s *Server) writeCommands(w http.ResponseWriter, sess session.Session) {
	data, err := protocol.EncodeCommands(sess.DrainCommands())
	if err != nil {
		s.logger.Error("command encode failed", "session_id", sess.ID(), "error", err)
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	interval := sess.PullInterval(s.config.PullInterval)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(headerPullInterval, strconv.FormatInt(int64(interval/time.Millisecond), 10))
	w.Write(data)
}
