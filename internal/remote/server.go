// ABOUTME: Websocket server that lets another device play the piano
// ABOUTME: Maps note/on and note/off messages onto the sound manager
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/musique/mpiano-go/internal/discovery"
	"github.com/musique/mpiano-go/internal/protocol"
	"github.com/musique/mpiano-go/pkg/piano"
)

const (
	// DefaultPort for the websocket listener
	DefaultPort = 8930

	// Path the websocket is served on
	Path = "/piano"

	helloTimeout  = 5 * time.Second
	writeDeadline = 10 * time.Second
)

// Player is the part of the sound manager a remote keyboard drives
type Player interface {
	PlaySound(note string)
	StopSound()
	Status() piano.Status
}

// Config holds server configuration
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool
	Debug      bool
}

// Server accepts remote keyboards
type Server struct {
	config   Config
	serverID string
	player   Player
	upgrader websocket.Upgrader

	httpServer *http.Server
	mux        *http.ServeMux

	announcer *discovery.Announcer

	// conns holds every upgraded connection, including ones still in the
	// handshake; closing is set once Stop begins
	conns     map[*websocket.Conn]struct{}
	clients   map[string]*Client
	closing   bool
	clientsMu sync.RWMutex

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Client is a connected remote keyboard
type Client struct {
	ID   string
	Name string
	Conn *websocket.Conn

	// holding is set between note/on and note/off so a dropped connection
	// does not leave a note sounding
	holding bool
}

// New creates a remote keyboard server
func New(config Config, player Player) *Server {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Name == "" {
		config.Name = "mpiano"
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		player:   player,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// intended for trusted local networks
				return true
			},
		},
		conns:   make(map[*websocket.Conn]struct{}),
		clients: make(map[string]*Client),
	}
	s.mux.HandleFunc(Path, s.handleWebSocket)

	return s
}

// Handler exposes the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ServerID returns the id announced in server/hello
func (s *Server) ServerID() string {
	return s.serverID
}

// Start listens for remote keyboards and advertises over mDNS if enabled
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// surface bind errors before advertising
	select {
	case err := <-errChan:
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	case <-time.After(100 * time.Millisecond):
	}

	log.Printf("Remote keyboard listening on %s%s", addr, Path)

	if s.config.EnableMDNS {
		announcer, err := discovery.Announce(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Path:        Path,
			Version:     protocol.Version,
		})
		if err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		}
		s.announcer = announcer
	}

	return nil
}

// Stop shuts the listener down and disconnects every client
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		if err := s.announcer.Shutdown(); err != nil {
			log.Printf("mDNS shutdown error: %v", err)
		}

		// refuse new connections and close the ones we have, handshaking or not;
		// Shutdown does not touch hijacked websocket connections
		s.clientsMu.Lock()
		s.closing = true
		for conn := range s.conns {
			conn.Close()
		}
		s.clientsMu.Unlock()

		if s.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.httpServer.Shutdown(ctx); err != nil {
				log.Printf("Remote server shutdown error: %v", err)
			}
		}

		s.wg.Wait()
	})
}

// ClientCount returns the number of connected keyboards
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	if !s.track(conn) {
		conn.Close()
		return
	}
	defer s.untrack(conn)

	if s.config.Debug {
		log.Printf("[DEBUG] New connection from %s", r.RemoteAddr)
	}

	s.handleConnection(conn)
}

// track registers conn so Stop can close and wait for it. It reports false
// once Stop has begun.
func (s *Server) track(conn *websocket.Conn) bool {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.clientsMu.Lock()
	delete(s.conns, conn)
	s.clientsMu.Unlock()
	s.wg.Done()
}

// handleConnection performs the handshake then relays notes until the
// client goes away
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	hello, err := s.readHello(conn)
	if err != nil {
		log.Printf("Handshake failed: %v", err)
		s.writeMessage(conn, protocol.TypeError, protocol.Error{
			Error:   "bad_hello",
			Message: err.Error(),
		})
		return
	}

	client := &Client{
		ID:   hello.ClientID,
		Name: hello.Name,
		Conn: conn,
	}

	s.clientsMu.Lock()
	if existing, exists := s.clients[client.ID]; exists {
		s.clientsMu.Unlock()
		log.Printf("Client ID %s already connected (name: %s), rejecting duplicate", client.ID, existing.Name)
		s.writeMessage(conn, protocol.TypeError, protocol.Error{
			Error:   "duplicate_client_id",
			Message: "Client ID already connected",
		})
		return
	}
	s.clients[client.ID] = client
	s.clientsMu.Unlock()

	log.Printf("Remote keyboard connected: %s (ID: %s)", client.Name, client.ID)

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		s.clientsMu.Unlock()

		if client.holding {
			s.player.StopSound()
		}
		log.Printf("Remote keyboard disconnected: %s", client.Name)
	}()

	if err := s.writeMessage(conn, protocol.TypeServerHello, protocol.ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  protocol.Version,
	}); err != nil {
		log.Printf("Error sending server hello: %v", err)
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		if err := s.handleClientMessage(client, data); err != nil {
			log.Printf("Error writing to %s: %v", client.Name, err)
			return
		}
	}
}

func (s *Server) readHello(conn *websocket.Conn) (protocol.ClientHello, error) {
	var hello protocol.ClientHello

	conn.SetReadDeadline(time.Now().Add(helloTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return hello, fmt.Errorf("failed to read hello: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return hello, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if msg.Type != protocol.TypeClientHello {
		return hello, fmt.Errorf("expected %s, got %s", protocol.TypeClientHello, msg.Type)
	}
	if err := protocol.DecodePayload(msg.Payload, &hello); err != nil {
		return hello, err
	}
	if hello.ClientID == "" {
		return hello, errors.New("client hello missing client_id")
	}
	if hello.Name == "" {
		return hello, errors.New("client hello missing name")
	}

	return hello, nil
}

// handleClientMessage applies one message. Only write failures are returned;
// bad messages are answered with server/error.
func (s *Server) handleClientMessage(client *Client, data []byte) error {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return s.writeMessage(client.Conn, protocol.TypeError, protocol.Error{
			Error:   "bad_message",
			Message: err.Error(),
		})
	}

	if s.config.Debug {
		log.Printf("[DEBUG] %s -> %s", client.Name, msg.Type)
	}

	switch msg.Type {
	case protocol.TypeNoteOn:
		var on protocol.NoteOn
		if err := protocol.DecodePayload(msg.Payload, &on); err != nil {
			return s.writeMessage(client.Conn, protocol.TypeError, protocol.Error{
				Error:   "bad_payload",
				Message: err.Error(),
			})
		}
		client.holding = true
		s.player.PlaySound(on.Note)

	case protocol.TypeNoteOff:
		client.holding = false
		s.player.StopSound()

	case protocol.TypeStatus:
		st := s.player.Status()
		return s.writeMessage(client.Conn, protocol.TypeStatus, protocol.PianoStatus{
			State:     st.State.String(),
			Note:      st.Note,
			Frequency: st.Frequency,
		})

	default:
		return s.writeMessage(client.Conn, protocol.TypeError, protocol.Error{
			Error:   "unknown_type",
			Message: "unknown message type: " + msg.Type,
		})
	}

	return nil
}

// writeMessage sends a JSON envelope. Only the connection's own goroutine
// writes, so no lock is needed.
func (s *Server) writeMessage(conn *websocket.Conn, msgType string, payload interface{}) error {
	data, err := json.Marshal(protocol.Message{Type: msgType, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", msgType, err)
	}

	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return conn.WriteMessage(websocket.TextMessage, data)
}
