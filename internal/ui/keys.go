// ABOUTME: Computer keyboard to piano key mapping and key rendering
// ABOUTME: One octave on the home row, drawn with lipgloss
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/musique/mpiano-go/pkg/notes"
)

// keyMap maps computer keys to semitones above the current octave's C
var keyMap = map[string]int{
	"a": 0, "w": 1, "s": 2, "e": 3, "d": 4, "f": 5, "t": 6,
	"g": 7, "y": 8, "h": 9, "u": 10, "j": 11, "k": 12,
}

// whiteKeys are the semitones of the white keys drawn, C to the next C
var whiteKeys = []int{0, 2, 4, 5, 7, 9, 11, 12}

const (
	whiteWidth = 6
	blackWidth = 4
)

var (
	whiteStyle = lipgloss.NewStyle().
			Width(whiteWidth).
			Align(lipgloss.Center).
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("255"))

	blackStyle = lipgloss.NewStyle().
			Width(blackWidth).
			Align(lipgloss.Center).
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("236"))

	activeColor = lipgloss.Color("205")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(activeColor)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// keyLabel returns the computer key bound to semitone
func keyLabel(semitone int) string {
	for k, s := range keyMap {
		if s == semitone {
			return strings.ToUpper(k)
		}
	}
	return ""
}

// renderKeyboard draws one octave starting at octave, highlighting active
func renderKeyboard(octave int, active string) string {
	style := func(base lipgloss.Style, note string) lipgloss.Style {
		if note == active {
			return base.Foreground(lipgloss.Color("0")).Background(activeColor).Bold(true)
		}
		return base
	}

	// black keys sit over the boundary between two white keys
	var black strings.Builder
	x := 0
	for i, semi := range whiteKeys[:len(whiteKeys)-1] {
		if whiteKeys[i+1]-semi != 2 {
			continue
		}
		left := whiteWidth*(i+1) - blackWidth/2
		black.WriteString(strings.Repeat(" ", left-x))
		note := notes.Name(semi+1, octave)
		black.WriteString(style(blackStyle, note).Render(keyLabel(semi + 1)))
		x = left + blackWidth
	}

	var labels, names []string
	for _, semi := range whiteKeys {
		note := notes.Name(semi, octave)
		labels = append(labels, style(whiteStyle, note).Render(keyLabel(semi)))
		names = append(names, style(whiteStyle, note).Render(note))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		black.String(),
		lipgloss.JoinHorizontal(lipgloss.Top, labels...),
		lipgloss.JoinHorizontal(lipgloss.Top, names...),
	)
}
