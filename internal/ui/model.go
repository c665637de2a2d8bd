// ABOUTME: Bubbletea model for the piano keyboard TUI
// ABOUTME: Turns key presses into note requests and renders playback state
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/musique/mpiano-go/internal/version"
	"github.com/musique/mpiano-go/pkg/notes"
	"github.com/musique/mpiano-go/pkg/piano"
)

// Model represents the TUI state
type Model struct {
	player Player
	title  string

	// Keyboard
	octave  int
	hold    time.Duration
	pressed string
	pressID int

	// Playback, refreshed by polling the player
	status piano.Status
	stats  piano.Stats

	// Dimensions
	width  int
	height int

	quitting bool
}

type tickMsg time.Time

// releaseMsg fires Hold after a press; only the latest press may release
type releaseMsg struct {
	pressID int
}

// statusMsg carries a polled snapshot of the player
type statusMsg struct {
	status piano.Status
	stats  piano.Stats
}

// Init starts the status polling loop
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.pollStatus(), tickEvery())
}

func tickEvery() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// pollStatus reads the player off the UI goroutine
func (m Model) pollStatus() tea.Cmd {
	player := m.player
	return func() tea.Msg {
		return statusMsg{status: player.Status(), stats: player.Stats()}
	}
}

func releaseAfter(d time.Duration, pressID int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return releaseMsg{pressID: pressID}
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		return m, tea.Batch(m.pollStatus(), tickEvery())
	case statusMsg:
		m.status = msg.status
		m.stats = msg.stats
	case releaseMsg:
		if msg.pressID == m.pressID && m.pressed != "" {
			m.player.StopSound()
			m.pressed = ""
		}
	}

	return m, nil
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case "q", "ctrl+c", "esc":
		if m.pressed != "" {
			m.player.StopSound()
			m.pressed = ""
		}
		m.quitting = true
		return m, tea.Quit
	case "z":
		if m.octave > minOctave {
			m.octave--
		}
		return m, nil
	case "x":
		if m.octave < maxOctave {
			m.octave++
		}
		return m, nil
	}

	semitone, ok := keyMap[key]
	if !ok {
		return m, nil
	}

	note := notes.Name(semitone, m.octave)

	// a different key counts as releasing the previous one first
	if m.pressed != "" && m.pressed != note {
		m.player.StopSound()
	}
	if m.pressed != note {
		m.player.PlaySound(note)
	}
	m.pressed = note
	m.pressID++

	return m, releaseAfter(m.hold, m.pressID)
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	header := fmt.Sprintf("%s %s", version.Product, version.Version)
	if m.title != "" {
		header += "  " + m.title
	}
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n\n")

	b.WriteString(renderKeyboard(m.octave, m.status.Note))
	b.WriteString("\n\n")

	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.renderStats())
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("A-K: play  W E T Y U: sharps  Z/X: octave  Q: quit"))
	b.WriteString("\n")

	return b.String()
}

// renderStatus renders the current note and engine state
func (m Model) renderStatus() string {
	s := fmt.Sprintf("Octave: %d   State: %-12s", m.octave, m.status.State)
	if m.status.Note != "" {
		s += fmt.Sprintf(" Note: %s (%.2f Hz)", m.status.Note, m.status.Frequency)
	}
	return s
}

// renderStats renders playback statistics
func (m Model) renderStats() string {
	return dimStyle.Render(fmt.Sprintf("Notes: %d  Dropped: %d  Unknown: %d  Buffers: %d  Sustained: %d",
		m.stats.Sessions, m.stats.Dropped, m.stats.Ignored, m.stats.Buffers, m.stats.DelayedStops))
}
