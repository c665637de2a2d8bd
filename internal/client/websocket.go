// ABOUTME: WebSocket client for the remote keyboard protocol
// ABOUTME: Handles connection, handshake and note messages
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/musique/mpiano-go/internal/protocol"
)

const responseTimeout = 5 * time.Second

// ErrNotConnected is returned when sending before Connect
var ErrNotConnected = errors.New("not connected")

// Config holds client configuration
type Config struct {
	ServerAddr string
	Path       string // websocket path, default /piano
	ClientID   string
	Name       string
	DeviceInfo protocol.DeviceInfo
}

// Client is a remote keyboard connection to a piano
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.Mutex
	server protocol.ServerHello
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	if config.Path == "" {
		config.Path = "/piano"
	}
	return &Client{config: config}
}

// Connect dials the piano and performs the handshake
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: c.config.Path}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	return nil
}

// handshake sends client/hello and waits for server/hello
func (c *Client) handshake() error {
	hello := protocol.ClientHello{
		ClientID: c.config.ClientID,
		Name:     c.config.Name,
		Version:  protocol.Version,
		Device:   &c.config.DeviceInfo,
	}

	if err := c.send(protocol.TypeClientHello, hello); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	msg, err := c.receive()
	if err != nil {
		return err
	}
	if msg.Type != protocol.TypeServerHello {
		return fmt.Errorf("expected server/hello, got %s", msg.Type)
	}

	var serverHello protocol.ServerHello
	if err := protocol.DecodePayload(msg.Payload, &serverHello); err != nil {
		return err
	}

	c.mu.Lock()
	c.server = serverHello
	c.mu.Unlock()

	log.Printf("Connected to piano %s (ID: %s)", serverHello.Name, serverHello.ServerID)

	return nil
}

// Server returns the handshake reply
func (c *Client) Server() protocol.ServerHello {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server
}

// NoteOn presses a key. The piano answers a rejected note with
// server/error, which Status skips.
func (c *Client) NoteOn(note string) error {
	return c.send(protocol.TypeNoteOn, protocol.NoteOn{Note: note})
}

// NoteOff releases the key
func (c *Client) NoteOff() error {
	return c.send(protocol.TypeNoteOff, nil)
}

// Status asks the piano what it is playing. Error frames left over from
// earlier note messages are logged and skipped; the piano always answers
// piano/status with a status frame.
func (c *Client) Status() (protocol.PianoStatus, error) {
	var status protocol.PianoStatus

	if err := c.send(protocol.TypeStatus, nil); err != nil {
		return status, err
	}

	for {
		msg, err := c.receive()
		if err != nil {
			return status, err
		}

		switch msg.Type {
		case protocol.TypeStatus:
			err := protocol.DecodePayload(msg.Payload, &status)
			return status, err
		case protocol.TypeError:
			var e protocol.Error
			if err := protocol.DecodePayload(msg.Payload, &e); err != nil {
				return status, err
			}
			log.Printf("Piano rejected an earlier message: %s: %s", e.Error, e.Message)
		}
	}
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) send(msgType string, payload interface{}) error {
	data, err := json.Marshal(protocol.Message{Type: msgType, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", msgType, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) receive() (protocol.Message, error) {
	var msg protocol.Message

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return msg, ErrNotConnected
	}

	conn.SetReadDeadline(time.Now().Add(responseTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return msg, fmt.Errorf("read failed: %w", err)
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return msg, nil
}
