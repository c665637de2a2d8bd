// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program that acts as the piano keyboard
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/musique/mpiano-go/pkg/piano"
)

const (
	// DefaultOctave is the octave the home row starts on
	DefaultOctave = 4

	// DefaultHold is how long a key counts as held after its last press or
	// auto-repeat
	DefaultHold = 150 * time.Millisecond

	minOctave = 0
	maxOctave = 6
)

// Player is the part of the sound manager the keyboard drives
type Player interface {
	PlaySound(note string)
	StopSound()
	Status() piano.Status
	Stats() piano.Stats
}

// Config holds keyboard configuration
type Config struct {
	Octave int // 1-6, zero means DefaultOctave; octave 0 is reached with z
	Hold   time.Duration
	Title  string // shown in the header, e.g. the remote endpoint
}

// NewModel creates a new TUI model
func NewModel(player Player, config Config) Model {
	if config.Octave <= minOctave || config.Octave > maxOctave {
		config.Octave = DefaultOctave
	}
	if config.Hold <= 0 {
		config.Hold = DefaultHold
	}

	return Model{
		player: player,
		octave: config.Octave,
		hold:   config.Hold,
		title:  config.Title,
	}
}

// Run creates the TUI program; the caller runs it
func Run(player Player, config Config) *tea.Program {
	return tea.NewProgram(NewModel(player, config), tea.WithAltScreen())
}
