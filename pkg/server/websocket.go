package server

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parley-dev/parley/pkg/protocol"
	"github.com/parley-dev/parley/pkg/session"
)

// wsConn wraps a WebSocket connection with a write lock shared by the
// session sink and the heartbeat, since gorilla allows only one
// concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	cfg  *Config

	writeMu sync.Mutex
}

func (w *wsConn) writeCommand(cmd protocol.Command) error {
	data, err := protocol.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(w.cfg.WriteTimeout))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsConn) ping() error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(w.cfg.WriteTimeout))
	return w.conn.WriteMessage(websocket.PingMessage, nil)
}

// HandleWebSocket upgrades the request and runs one session over the
// connection. The session closes when the client disconnects.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.scriptSess != nil {
		s.handleScriptWebSocket(w, r)
		return
	}

	app, err := s.app(r.URL.Query().Get("app"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	sess := s.wrap(app.newSession(s.sessionConfig(s.clientInfo(r, "websocket"))))
	if err := s.sessions.Track(sess); err != nil {
		s.logger.Warn("websocket session rejected", "app", app.name, "error", err)
		sess.Close()
		deadline := time.Now().Add(s.config.WriteTimeout)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()), deadline)
		conn.Close()
		return
	}

	wc := &wsConn{conn: conn, cfg: s.config}
	sess.AttachSink(wc.writeCommand)

	go s.heartbeatLoop(wc, sess)
	go s.closeOnDone(conn, sess)
	s.readLoop(wc, sess)

	sess.DetachSink()
	s.sessions.Remove(sess.ID())
	conn.Close()
}

// readLoop decodes client events off the connection and delivers them
// until the connection drops or the session closes.
func (s *Server) readLoop(wc *wsConn, sess session.Session) {
	conn := wc.conn
	conn.SetReadLimit(s.config.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				s.logger.Error("websocket read failed", "session_id", sess.ID(), "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		ev, err := protocol.DecodeEvent(data)
		if err != nil {
			s.logger.Warn("malformed client event", "session_id", sess.ID(), "error", err)
			continue
		}
		if err := sess.Deliver(ev); err != nil {
			if session.IsGone(err) {
				return
			}
			s.logger.Warn("client event dropped", "session_id", sess.ID(), "error", err)
		}
	}
}

// heartbeatLoop pings the client so proxies keep the connection open.
func (s *Server) heartbeatLoop(wc *wsConn, sess session.Session) {
	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := wc.ping(); err != nil {
				return
			}
		case <-sess.Done():
			return
		}
	}
}

// closeOnDone tears the connection down once the session ends so the
// read loop unblocks. The close_session command has already gone out
// through the sink at that point.
func (s *Server) closeOnDone(conn *websocket.Conn, sess session.Session) {
	<-sess.Done()
	deadline := time.Now().Add(s.config.WriteTimeout)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"), deadline)
	conn.Close()
}

// sameOriginCheck accepts requests with no Origin header or an Origin
// whose host matches the request host.
func sameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
