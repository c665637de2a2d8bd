// ABOUTME: In-memory audio output for headless runs and tests
// ABOUTME: Records written PCM and can simulate a device draining in real time
package output

import (
	"sync"
	"time"

	"github.com/musique/mpiano-go/pkg/audio"
)

// DefaultRecordLimit is how many samples a Memory keeps, 10s at 44.1kHz
const DefaultRecordLimit = 10 * audio.DefaultSampleRate

// Memory is an Output that keeps the first samples written to it, up to its
// record limit. NewMemory accepts writes immediately, so a producer writing in
// a loop spins; use NewRealtimeMemory for anything that streams.
// NewRealtimeMemory runs a background pump that consumes the stream at the
// format's byte rate like a real device would.
type Memory struct {
	mu       sync.Mutex
	stream   *Stream
	format   audio.Format
	opened   bool
	started  bool
	released bool
	openErr  error
	realtime bool
	discard  bool
	scratch  []byte

	written  []int16
	limit    int
	writes   int
	starts   int
	stops    int
	lastStop time.Time
	done     chan struct{}
}

// NewMemory creates an output that accepts writes without blocking
func NewMemory() *Memory {
	return &Memory{limit: DefaultRecordLimit}
}

// NewRealtimeMemory creates an output whose writes block at playback speed
func NewRealtimeMemory() *Memory {
	return &Memory{realtime: true, limit: DefaultRecordLimit}
}

// NewNull creates a realtime output that keeps no samples, for running
// without a sound card
func NewNull() *Memory {
	return &Memory{realtime: true, discard: true}
}

// FailOpen makes the next Open return err
func (m *Memory) FailOpen(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
}

// Open records the format and allocates the stream
func (m *Memory) Open(format audio.Format, bufferSize int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.released {
		return ErrReleased
	}
	if m.openErr != nil {
		return m.openErr
	}

	m.format = format
	m.stream = NewStream(bufferSize)
	m.opened = true

	if m.realtime && m.done == nil {
		m.done = make(chan struct{})
		go m.pump(m.stream, format, m.done)
	}
	return nil
}

// pump drains the stream every 10ms at the device byte rate
func (m *Memory) pump(s *Stream, format audio.Format, done chan struct{}) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	chunk := make([]byte, format.SampleRate*format.Channels*format.BytesPerSample()/100)
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if _, err := s.Read(chunk); err != nil {
				return
			}
		}
	}
}

// Start begins accepting writes
func (m *Memory) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.released {
		return ErrReleased
	}
	if !m.opened {
		return ErrNotOpen
	}
	if !m.started {
		m.starts++
	}
	m.started = true
	m.stream.Start()
	return nil
}

// Write records samples. In realtime mode it blocks until the pump made room.
func (m *Memory) Write(samples []int16) (int, error) {
	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		return 0, ErrReleased
	}
	if !m.opened {
		m.mu.Unlock()
		return 0, ErrNotOpen
	}
	if !m.started {
		m.mu.Unlock()
		return 0, nil
	}
	if !m.discard {
		m.record(samples)
	}
	m.writes++
	stream := m.stream
	realtime := m.realtime
	m.mu.Unlock()

	if !realtime {
		return len(samples) * 2, nil
	}

	need := len(samples) * 2
	if cap(m.scratch) < need {
		m.scratch = make([]byte, need)
	}
	buf := m.scratch[:need]
	audio.PutInt16LE(buf, samples)
	return stream.Write(buf), nil
}

// record appends samples until the limit is reached (must hold m.mu)
func (m *Memory) record(samples []int16) {
	room := m.limit - len(m.written)
	if room <= 0 {
		return
	}
	if len(samples) > room {
		samples = samples[:room]
	}
	m.written = append(m.written, samples...)
}

// Stop halts writes and flushes the stream
func (m *Memory) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		m.stops++
		m.lastStop = time.Now()
	}
	m.started = false
	if m.stream != nil {
		m.stream.Stop()
	}
	return nil
}

// Release stops the pump and closes the stream
func (m *Memory) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.released {
		return nil
	}
	m.released = true
	m.started = false
	if m.stream != nil {
		m.stream.Close()
	}
	if m.done != nil {
		close(m.done)
	}
	return nil
}

// Samples returns a copy of everything written
func (m *Memory) Samples() []int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int16, len(m.written))
	copy(out, m.written)
	return out
}

// Writes returns how many Write calls were accepted
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Starts returns how many times the output went from stopped to started
func (m *Memory) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Stops returns how many times a started output was stopped
func (m *Memory) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// LastStop returns when the output was last stopped
func (m *Memory) LastStop() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastStop
}

// Started reports whether writes are accepted
func (m *Memory) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Released reports whether Release was called
func (m *Memory) Released() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

// Format returns the format passed to Open
func (m *Memory) Format() audio.Format {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.format
}

// BufferSize returns the stream capacity passed to Open
func (m *Memory) BufferSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream == nil {
		return 0
	}
	return len(m.stream.buffer)
}
