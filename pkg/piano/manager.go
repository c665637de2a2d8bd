// ABOUTME: Monophonic sound manager driving an audio output
// ABOUTME: Serializes note requests on one event loop and streams tones from a worker
package piano

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/musique/mpiano-go/pkg/audio"
	"github.com/musique/mpiano-go/pkg/audio/output"
	"github.com/musique/mpiano-go/pkg/notes"
	"github.com/musique/mpiano-go/pkg/synth"
)

// DefaultMinSustain is the shortest time a note sounds, however fast the
// key is released
const DefaultMinSustain = 100 * time.Millisecond

// ErrOutputUnavailable wraps any failure to open the audio output
var ErrOutputUnavailable = errors.New("audio output unavailable")

// Config holds sound manager configuration
type Config struct {
	SampleRate int           // Hz, default 44100
	BufferSize int           // samples per generation buffer and bytes of output stream, default 35280
	MinSustain time.Duration // default 100ms
	Clock      Clock         // default wall clock

	// ContinuousPhase carries the sine phase across buffers instead of
	// restarting it at every fill. Off by default, which reproduces the
	// click at each buffer boundary.
	ContinuousPhase bool

	Debug bool
}

type commandKind int

const (
	cmdPlay commandKind = iota
	cmdStop
	cmdSustainElapsed
	cmdStatus
)

type command struct {
	kind      commandKind
	note      string
	sessionID string
	reply     chan Status
}

// session is the single note currently sounding. Only the event loop
// touches it.
type session struct {
	id      string
	note    string
	hz      float64
	start   time.Time
	pending Timer
	done    chan struct{} // closed when the worker exits
}

// Manager plays one note at a time on an output
type Manager struct {
	config Config
	out    output.Output
	clock  Clock
	format audio.Format

	// written only by the worker
	buf []int16

	active   atomic.Bool
	released atomic.Bool

	cmds     chan command
	ctx      context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}

	releaseOnce sync.Once
	releaseErr  error

	// owned by the event loop
	session *session

	sessions     atomic.Int64
	dropped      atomic.Int64
	ignored      atomic.Int64
	buffers      atomic.Int64
	delayedStops atomic.Int64
}

// NewManager opens out and starts the event loop. An output that cannot be
// opened is reported as ErrOutputUnavailable.
func NewManager(config Config, out output.Output) (*Manager, error) {
	if out == nil {
		return nil, fmt.Errorf("%w: no output", ErrOutputUnavailable)
	}

	// Apply defaults
	if config.SampleRate <= 0 {
		config.SampleRate = audio.DefaultSampleRate
	}
	if config.BufferSize <= 0 {
		config.BufferSize = audio.BufferSize(audio.BufferMultiplier)
	}
	if config.MinSustain <= 0 {
		config.MinSustain = DefaultMinSustain
	}
	if config.Clock == nil {
		config.Clock = realClock{}
	}

	format := audio.DefaultFormat()
	format.SampleRate = config.SampleRate

	if err := out.Open(format, config.BufferSize); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutputUnavailable, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		config:   config,
		out:      out,
		clock:    config.Clock,
		format:   format,
		buf:      make([]int16, config.BufferSize),
		cmds:     make(chan command, 256),
		ctx:      ctx,
		cancel:   cancel,
		loopDone: make(chan struct{}),
	}

	go m.run()

	return m, nil
}

// PlaySound starts note unless a note is already sounding. Notes missing
// from the frequency table are ignored. It never blocks.
func (m *Manager) PlaySound(note string) {
	if m.released.Load() {
		return
	}
	m.post(command{kind: cmdPlay, note: note})
}

// StopSound releases the current note. If it has sounded for less than the
// minimum sustain the stop is deferred until it has. It never blocks.
func (m *Manager) StopSound() {
	if m.released.Load() {
		return
	}
	m.post(command{kind: cmdStop})
}

// Release stops any note and frees the output. Later calls to PlaySound and
// StopSound are no-ops. Safe to call more than once.
func (m *Manager) Release() error {
	m.releaseOnce.Do(func() {
		m.released.Store(true)
		m.cancel()
		<-m.loopDone
	})
	return m.releaseErr
}

// Status returns a snapshot of the playback session
func (m *Manager) Status() Status {
	if m.released.Load() {
		return Status{State: Released}
	}

	reply := make(chan Status, 1)
	select {
	case m.cmds <- command{kind: cmdStatus, reply: reply}:
	case <-m.loopDone:
		return Status{State: Released}
	}

	select {
	case st := <-reply:
		return st
	case <-m.loopDone:
		return Status{State: Released}
	}
}

// Stats returns manager statistics
func (m *Manager) Stats() Stats {
	return Stats{
		Sessions:     m.sessions.Load(),
		Dropped:      m.dropped.Load(),
		Ignored:      m.ignored.Load(),
		Buffers:      m.buffers.Load(),
		DelayedStops: m.delayedStops.Load(),
	}
}

// Config returns the effective configuration
func (m *Manager) Config() Config {
	return m.config
}

// post hands a request to the event loop without blocking the caller
func (m *Manager) post(c command) {
	select {
	case m.cmds <- c:
	default:
		log.Printf("Sound manager busy, dropping request %d", c.kind)
	}
}

// run is the event loop. Every state transition, output Start and output
// Stop happens here, so a flush can never race a new note's first write.
func (m *Manager) run() {
	defer close(m.loopDone)

	for {
		select {
		case <-m.ctx.Done():
			m.teardown()
			return
		case c := <-m.cmds:
			m.handle(c)
		}
	}
}

func (m *Manager) handle(c command) {
	switch c.kind {
	case cmdPlay:
		m.startSound(c.note)
	case cmdStop:
		m.requestStop()
	case cmdSustainElapsed:
		if m.session != nil && m.session.id == c.sessionID {
			m.stopImmediately()
		}
	case cmdStatus:
		c.reply <- m.status()
	}
}

func (m *Manager) status() Status {
	s := m.session
	if s == nil {
		return Status{State: Idle}
	}

	st := Status{
		State:     Sounding,
		Note:      s.note,
		Frequency: s.hz,
		SessionID: s.id,
		Since:     s.start,
	}
	if s.pending != nil {
		st.State = PendingStop
	}
	return st
}

func (m *Manager) startSound(note string) {
	if m.session != nil {
		m.dropped.Add(1)
		if m.config.Debug {
			log.Printf("[DEBUG] Dropping %s, %s still sounding", note, m.session.note)
		}
		return
	}

	hz, ok := notes.Lookup(note)
	if !ok {
		m.ignored.Add(1)
		if m.config.Debug {
			log.Printf("[DEBUG] Ignoring unknown note %q", note)
		}
		return
	}

	if err := m.out.Start(); err != nil {
		log.Printf("Failed to start audio output: %v", err)
		return
	}

	s := &session{
		id:    uuid.New().String(),
		note:  note,
		hz:    hz,
		start: m.clock.Now(),
		done:  make(chan struct{}),
	}
	m.session = s
	m.active.Store(true)
	m.sessions.Add(1)

	go m.generate(s)

	log.Printf("Playing %s (%.2f Hz)", note, hz)
}

// generate fills the shared buffer and writes it until the session is
// deactivated or the output stops taking data
func (m *Manager) generate(s *session) {
	defer close(s.done)

	phase := 0
	for m.active.Load() {
		synth.Fill(m.buf, s.hz, m.format.SampleRate, phase)

		n, err := m.out.Write(m.buf)
		if err != nil {
			if m.config.Debug {
				log.Printf("[DEBUG] Output write ended session %s: %v", s.id, err)
			}
			return
		}
		if n == 0 {
			return
		}
		m.buffers.Add(1)

		if m.config.ContinuousPhase {
			phase = synth.WrapPhase(phase+len(m.buf), s.hz, m.format.SampleRate)
		}
	}
}

func (m *Manager) requestStop() {
	s := m.session
	if s == nil || !m.active.Load() {
		return
	}
	if s.pending != nil {
		// already waiting out the sustain
		return
	}

	elapsed := m.clock.Now().Sub(s.start)
	if elapsed >= m.config.MinSustain {
		m.stopImmediately()
		return
	}

	delay := m.config.MinSustain - elapsed
	id := s.id
	s.pending = m.clock.AfterFunc(delay, func() {
		select {
		case m.cmds <- command{kind: cmdSustainElapsed, sessionID: id}:
		case <-m.ctx.Done():
		}
	})
	m.delayedStops.Add(1)

	if m.config.Debug {
		log.Printf("[DEBUG] Deferring stop of %s by %v", s.note, delay)
	}
}

// stopImmediately deactivates the session, flushes the output and waits for
// the worker so the sample buffer is free for the next note
func (m *Manager) stopImmediately() {
	s := m.session
	if s == nil {
		return
	}

	m.active.Store(false)
	if s.pending != nil {
		s.pending.Stop()
	}
	if err := m.out.Stop(); err != nil {
		log.Printf("Failed to stop audio output: %v", err)
	}
	<-s.done
	m.session = nil

	log.Printf("Stopped %s after %v", s.note, m.clock.Now().Sub(s.start))
}

func (m *Manager) teardown() {
	m.active.Store(false)

	s := m.session
	if s != nil && s.pending != nil {
		s.pending.Stop()
	}

	// Stop unblocks an in-flight write before the device goes away
	if err := m.out.Stop(); err != nil {
		log.Printf("Failed to stop audio output: %v", err)
	}
	if s != nil {
		<-s.done
	}
	m.session = nil

	if err := m.out.Release(); err != nil {
		m.releaseErr = fmt.Errorf("failed to release audio output: %w", err)
	}

	log.Printf("Sound manager released")
}
