// ABOUTME: Remote keyboard protocol message type definitions
// ABOUTME: Defines the JSON envelope and payloads exchanged over the websocket
package protocol

import (
	"encoding/json"
	"fmt"
)

// Version of the remote keyboard protocol
const Version = 1

// Message types
const (
	TypeClientHello = "client/hello"
	TypeServerHello = "server/hello"
	TypeNoteOn      = "note/on"
	TypeNoteOff     = "note/off"
	TypeStatus      = "piano/status"
	TypeError       = "server/error"
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// ClientHello is sent by clients to initiate the handshake
type ClientHello struct {
	ClientID string      `json:"client_id"`
	Name     string      `json:"name"`
	Version  int         `json:"version"`
	Device   *DeviceInfo `json:"device_info,omitempty"`
}

// DeviceInfo contains device identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// ServerHello is the server's response to client/hello
type ServerHello struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
}

// NoteOn asks the piano to start a note
type NoteOn struct {
	Note string `json:"note"`
}

// PianoStatus reports what the piano is playing (reply to piano/status)
type PianoStatus struct {
	State     string  `json:"state"` // "idle", "sounding", "pending-stop" or "released"
	Note      string  `json:"note,omitempty"`
	Frequency float64 `json:"frequency,omitempty"`
}

// Error is sent when a client message cannot be handled
type Error struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// DecodePayload converts a generically decoded payload into v
func DecodePayload(payload interface{}, v interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}
