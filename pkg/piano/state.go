// ABOUTME: Sound manager states, status snapshots and counters
// ABOUTME: Read-only views handed to the keyboard and remote layers
package piano

import "time"

// State of the sound manager
type State int

const (
	// Idle means no note is sounding
	Idle State = iota
	// Sounding means a note is playing and no release was requested yet
	Sounding
	// PendingStop means the key was released before the minimum sustain
	// elapsed; the note keeps playing until the sustain timer fires
	PendingStop
	// Released means the manager was torn down
	Released
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sounding:
		return "sounding"
	case PendingStop:
		return "pending-stop"
	case Released:
		return "released"
	}
	return "unknown"
}

// Status is a snapshot of the current playback session
type Status struct {
	State     State
	Note      string
	Frequency float64
	SessionID string
	Since     time.Time
}

// Stats tracks manager metrics
type Stats struct {
	Sessions     int64 // notes started
	Dropped      int64 // presses ignored because a note was already sounding
	Ignored      int64 // presses for notes missing from the frequency table
	Buffers      int64 // sample buffers accepted by the output
	DelayedStops int64 // releases deferred to honour the minimum sustain
}
