package server

import (
	"fmt"
	"net"
	"net/http"

	"github.com/parley-dev/parley/pkg/session"
)

// Importing this package makes script mode work: a program that calls
// interactive operations without registering applications gets an
// ephemeral localhost server for its single conversation.
func init() {
	session.SetScriptBackend(serveScriptSession)
}

// serveScriptSession brings up a server on a random localhost port
// whose only job is serving sess. It returns once the listener accepts
// connections; the session stays open until the client leaves.
func serveScriptSession(sess *session.GoroutineSession) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("server: script listen: %w", err)
	}

	srv := New(nil, nil)
	srv.scriptSess = sess
	go http.Serve(ln, srv)

	srv.logger.Info("script session ready", "url", fmt.Sprintf("http://%s/", ln.Addr()))
	return nil
}

// handleScriptWebSocket attaches a client to the singleton script
// session. The conversation ends when that client disconnects; a
// reconnecting tab takes over the sink while the session lives.
func (s *Server) handleScriptWebSocket(w http.ResponseWriter, r *http.Request) {
	sess := s.scriptSess
	if sess.Closed() {
		http.Error(w, "session closed", http.StatusGone)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	wc := &wsConn{conn: conn, cfg: s.config}
	sess.AttachSink(wc.writeCommand)

	go s.heartbeatLoop(wc, sess)
	go s.closeOnDone(conn, sess)
	s.readLoop(wc, sess)

	sess.DetachSink()
	sess.Close()
	conn.Close()
}
