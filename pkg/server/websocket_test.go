package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parley-dev/parley/pkg/protocol"
	"github.com/parley-dev/parley/pkg/session"
)

func dialWS(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	return conn
}

func readCommand(t *testing.T, conn *websocket.Conn) protocol.Command {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read command: %v", err)
	}
	var cmd protocol.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		t.Fatalf("decode command: %v", err)
	}
	return cmd
}

func TestWebSocketSessionRoundTrip(t *testing.T) {
	srv := New(testConfig(), Apps{"echo": echoTask})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn := dialWS(t, ts, "/ws?app=echo")
	defer conn.Close()

	cmd := readCommand(t, conn)
	if cmd.Kind != protocol.CommandOutput {
		t.Fatalf("first command = %q, want %q", cmd.Kind, protocol.CommandOutput)
	}
	if got := cmd.Spec["content"]; got != "hello" {
		t.Fatalf("greeting = %v, want hello", got)
	}
	if got := srv.Sessions().Count(); got != 1 {
		t.Fatalf("sessions = %d, want 1", got)
	}

	err := conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"input","data":"ping"}`))
	if err != nil {
		t.Fatalf("write event: %v", err)
	}
	cmd = readCommand(t, conn)
	if got := cmd.Spec["content"]; got != "ping" {
		t.Errorf("echo = %v, want ping", got)
	}

	conn.Close()
	waitFor(t, func() bool { return srv.Sessions().Count() == 0 },
		"session not removed after disconnect")
}

func TestWebSocketUnknownApp(t *testing.T) {
	srv := New(testConfig(), Apps{"echo": echoTask})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?app=nope"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial to unknown app succeeded")
	}
	if resp == nil || resp.StatusCode != 404 {
		t.Fatalf("handshake response = %+v, want 404", resp)
	}
}

func TestWebSocketClosesWhenTaskReturns(t *testing.T) {
	srv := New(testConfig(), Apps{"oneshot": func() {
		s, err := session.Current()
		if err != nil {
			return
		}
		s.Send(protocol.Output(map[string]any{"type": "text", "content": "bye"}))
	}})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn := dialWS(t, ts, "/ws?app=oneshot")
	defer conn.Close()

	sawClose := false
	for i := 0; i < 3; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var cmd protocol.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			t.Fatalf("decode command: %v", err)
		}
		if cmd.Kind == protocol.CommandCloseSession {
			sawClose = true
			break
		}
	}
	if !sawClose {
		t.Error("client never received a close_session command")
	}
	waitFor(t, func() bool { return srv.Sessions().Count() == 0 },
		"session not removed after task return")
}

func TestWebSocketRejectsCrossOrigin(t *testing.T) {
	srv := New(testConfig(), Apps{"echo": echoTask})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?app=echo"
	header := map[string][]string{"Origin": {"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("cross-origin dial succeeded")
	}
	if resp == nil || resp.StatusCode != 403 {
		t.Fatalf("handshake response = %+v, want 403", resp)
	}
}

func TestWebSocketSessionLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSessions = 1
	srv := New(cfg, Apps{"echo": echoTask})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	first := dialWS(t, ts, "/ws?app=echo")
	defer first.Close()
	readCommand(t, first)

	second := dialWS(t, ts, "/ws?app=echo")
	defer second.Close()
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := second.ReadMessage(); err == nil {
		t.Fatal("second connection was served despite the session limit")
	}
	if got := srv.Sessions().Count(); got != 1 {
		t.Errorf("sessions = %d, want 1", got)
	}
}
