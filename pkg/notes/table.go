// ABOUTME: Note name to frequency table
// ABOUTME: Immutable equal-temperament lookup from C0 to C7
package notes

import (
	"sort"
	"strconv"
	"strings"
)

// table maps note names to fundamental frequency in Hz. Values are single
// precision and widened on lookup, so tones match a float32 table exactly.
var table = map[string]float32{
	"C0":  16.35,
	"C#0": 17.32,
	"D0":  18.35,
	"D#0": 19.45,
	"E0":  20.60,
	"F0":  21.83,
	"F#0": 23.12,
	"G0":  24.50,
	"G#0": 25.96,
	"A0":  27.50,
	"A#0": 29.14,
	"B0":  30.87,
	"C1":  32.70,
	"C#1": 34.65,
	"D1":  36.71,
	"D#1": 38.89,
	"E1":  41.20,
	"F1":  43.65,
	"F#1": 46.25,
	"G1":  49.00,
	"G#1": 51.91,
	"A1":  55.00,
	"A#1": 58.27,
	"B1":  61.74,
	"C2":  65.41,
	"C#2": 69.30,
	"D2":  73.42,
	"D#2": 77.78,
	"E2":  82.41,
	"F2":  87.31,
	"F#2": 92.50,
	"G2":  98.00,
	"G#2": 103.83,
	"A2":  110.00,
	"A#2": 116.54,
	"B2":  123.47,
	"C3":  130.81,
	"C#3": 138.59,
	"D3":  146.83,
	"D#3": 155.56,
	"E3":  164.81,
	"F3":  174.61,
	"F#3": 185.00,
	"G3":  196.00,
	"G#3": 207.65,
	"A3":  220.00,
	"A#3": 233.08,
	"B3":  246.94,
	"C4":  261.63,
	"C#4": 277.18,
	"D4":  293.66,
	"D#4": 311.13,
	"E4":  329.63,
	"F4":  349.23,
	"F#4": 369.99,
	"G4":  392.00,
	"G#4": 415.30,
	"A4":  440.00,
	"A#4": 466.16,
	"B4":  493.88,
	"C5":  523.25,
	"C#5": 554.37,
	"D5":  587.33,
	"D#5": 622.25,
	"E5":  659.25,
	"F5":  698.46,
	"F#5": 739.99,
	"G5":  783.99,
	"G#5": 830.61,
	"A5":  880.00,
	"A#5": 932.33,
	"B5":  987.77,
	"C6":  1046.50,
	"C#6": 1108.73,
	"D6":  1174.66,
	"D#6": 1244.51,
	"E6":  1318.51,
	"F6":  1396.91,
	"F#6": 1479.98,
	"G6":  1567.98,
	"G#6": 1661.22,
	"A6":  1760.00,
	"A#6": 1864.66,
	"B6":  1975.53,
	"C7":  2093.00,
}

var pitchClasses = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Lookup returns the frequency for note. ok is false when the note is not in
// the table; callers treat that as "ignore the request".
func Lookup(note string) (hz float64, ok bool) {
	v, ok := table[note]
	return float64(v), ok
}

// Parse splits a note name such as "C#4" into its pitch class and octave.
// It does not consult the table.
func Parse(note string) (pitch string, octave int, ok bool) {
	i := strings.IndexFunc(note, func(r rune) bool { return r >= '0' && r <= '9' })
	if i <= 0 {
		return "", 0, false
	}
	pitch = note[:i]
	if PitchIndex(pitch) < 0 {
		return "", 0, false
	}
	octave, err := strconv.Atoi(note[i:])
	if err != nil {
		return "", 0, false
	}
	return pitch, octave, true
}

// PitchIndex returns the semitone offset of pitch from C, or -1
func PitchIndex(pitch string) int {
	for i, p := range pitchClasses {
		if p == pitch {
			return i
		}
	}
	return -1
}

// Name builds the note name for a semitone offset from C in the given octave.
// Offsets outside 0..11 roll into neighbouring octaves.
func Name(semitone, octave int) string {
	octave += semitone / 12
	semitone %= 12
	if semitone < 0 {
		semitone += 12
		octave--
	}
	return pitchClasses[semitone] + strconv.Itoa(octave)
}

// IsSharp reports whether note is a black key
func IsSharp(note string) bool {
	return strings.Contains(note, "#")
}

// Names returns every playable note in ascending pitch order
func Names() []string {
	names := make([]string, 0, len(table))
	for n := range table {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		return table[names[i]] < table[names[j]]
	})
	return names
}
