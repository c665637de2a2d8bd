// ABOUTME: Tests for WebSocket client implementation
// ABOUTME: Tests construction, handshake against a stub server and unconnected use
package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/musique/mpiano-go/internal/protocol"
)

func TestNewClient(t *testing.T) {
	client := NewClient(Config{
		ServerAddr: "localhost:8930",
		ClientID:   "test-client",
		Name:       "Test Keyboard",
	})

	if client.config.ServerAddr != "localhost:8930" {
		t.Errorf("expected server addr localhost:8930, got %s", client.config.ServerAddr)
	}
}

func TestSendBeforeConnect(t *testing.T) {
	client := NewClient(Config{})

	if err := client.NoteOn("C4"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if _, err := client.Status(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("close before connect should be a no-op, got %v", err)
	}
}

// stubServer answers the handshake with reply and echoes nothing else
func stubServer(t *testing.T, reply protocol.Message) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/piano" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var hello protocol.Message
		json.Unmarshal(data, &hello)
		if hello.Type != protocol.TypeClientHello {
			return
		}

		out, _ := json.Marshal(reply)
		conn.WriteMessage(websocket.TextMessage, out)
		conn.ReadMessage()
	}))
	t.Cleanup(ts.Close)

	return strings.TrimPrefix(ts.URL, "http://")
}

func TestConnectHandshake(t *testing.T) {
	addr := stubServer(t, protocol.Message{
		Type:    protocol.TypeServerHello,
		Payload: protocol.ServerHello{ServerID: "srv-1", Name: "Stub", Version: 1},
	})

	client := NewClient(Config{ServerAddr: addr, ClientID: "c", Name: "n"})
	if err := client.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer client.Close()

	if got := client.Server(); got.ServerID != "srv-1" || got.Name != "Stub" {
		t.Errorf("unexpected server hello %+v", got)
	}
}

func TestConnectRejected(t *testing.T) {
	addr := stubServer(t, protocol.Message{
		Type:    protocol.TypeError,
		Payload: protocol.Error{Error: "duplicate_client_id"},
	})

	client := NewClient(Config{ServerAddr: addr, ClientID: "c", Name: "n"})
	if err := client.Connect(); err == nil {
		client.Close()
		t.Fatal("expected handshake failure")
	}
}

func TestConnectUnreachable(t *testing.T) {
	client := NewClient(Config{ServerAddr: "127.0.0.1:1", ClientID: "c", Name: "n"})
	if err := client.Connect(); err == nil {
		t.Fatal("expected dial failure")
	}
}

// statusServer answers the handshake, then replies to piano/status with the
// given frames in order
func statusServer(t *testing.T, path string, replies ...protocol.Message) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		write := func(msg protocol.Message) {
			out, _ := json.Marshal(msg)
			conn.WriteMessage(websocket.TextMessage, out)
		}

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		write(protocol.Message{Type: protocol.TypeServerHello, Payload: protocol.ServerHello{ServerID: "srv"}})

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg protocol.Message
			json.Unmarshal(data, &msg)
			if msg.Type == protocol.TypeStatus {
				for _, reply := range replies {
					write(reply)
				}
			}
		}
	}))
	t.Cleanup(ts.Close)

	return strings.TrimPrefix(ts.URL, "http://")
}

func TestStatusSkipsStaleErrors(t *testing.T) {
	addr := statusServer(t, "/piano",
		protocol.Message{Type: protocol.TypeError, Payload: protocol.Error{Error: "bad_payload", Message: "bad note"}},
		protocol.Message{Type: protocol.TypeStatus, Payload: protocol.PianoStatus{State: "sounding", Note: "A4", Frequency: 440}},
	)

	client := NewClient(Config{ServerAddr: addr, ClientID: "c", Name: "n"})
	if err := client.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		t.Fatalf("expected status despite earlier error frame, got %v", err)
	}
	if status.State != "sounding" || status.Note != "A4" {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestCustomPath(t *testing.T) {
	addr := statusServer(t, "/keys",
		protocol.Message{Type: protocol.TypeStatus, Payload: protocol.PianoStatus{State: "idle"}},
	)

	client := NewClient(Config{ServerAddr: addr, Path: "/keys", ClientID: "c", Name: "n"})
	if err := client.Connect(); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.State != "idle" {
		t.Errorf("expected idle, got %s", status.State)
	}
}
