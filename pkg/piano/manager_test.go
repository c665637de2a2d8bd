// ABOUTME: Tests for the monophonic sound manager
// ABOUTME: Tests state transitions, minimum sustain timing and teardown
package piano

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/musique/mpiano-go/pkg/audio/output"
	"github.com/musique/mpiano-go/pkg/synth"
)

// testBufferSize is 10ms of audio at 44.1kHz, so a realtime output accepts
// roughly one buffer every 20ms
const testBufferSize = 441

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs due callbacks on the calling goroutine
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func newTestManager(t *testing.T, config Config) (*Manager, *output.Memory) {
	t.Helper()

	out := output.NewRealtimeMemory()
	if config.BufferSize == 0 {
		config.BufferSize = testBufferSize
	}

	m, err := NewManager(config, out)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	t.Cleanup(func() { m.Release() })

	return m, out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func TestNewManagerDefaults(t *testing.T) {
	out := output.NewRealtimeMemory()
	m, err := NewManager(Config{}, out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer m.Release()

	cfg := m.Config()
	if cfg.SampleRate != 44100 {
		t.Errorf("expected sample rate 44100, got %d", cfg.SampleRate)
	}
	if cfg.BufferSize != 35280 {
		t.Errorf("expected buffer size 35280, got %d", cfg.BufferSize)
	}
	if cfg.MinSustain != 100*time.Millisecond {
		t.Errorf("expected min sustain 100ms, got %v", cfg.MinSustain)
	}

	if out.BufferSize() != 35280 {
		t.Errorf("expected output stream of 35280 bytes, got %d", out.BufferSize())
	}
	f := out.Format()
	if f.SampleRate != 44100 || f.Channels != 1 || f.BitDepth != 16 {
		t.Errorf("unexpected output format %+v", f)
	}

	if st := m.Status(); st.State != Idle {
		t.Errorf("expected idle, got %s", st.State)
	}
}

func TestNewManagerOpenFailure(t *testing.T) {
	out := output.NewMemory()
	cause := errors.New("no audio device")
	out.FailOpen(cause)

	m, err := NewManager(Config{}, out)
	if err == nil {
		m.Release()
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, ErrOutputUnavailable) {
		t.Errorf("expected ErrOutputUnavailable, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
}

func TestNewManagerNilOutput(t *testing.T) {
	if _, err := NewManager(Config{}, nil); !errors.Is(err, ErrOutputUnavailable) {
		t.Errorf("expected ErrOutputUnavailable, got %v", err)
	}
}

func TestPlayUnknownNote(t *testing.T) {
	m, out := newTestManager(t, Config{Clock: newFakeClock()})

	for _, note := range []string{"H4", "", "C#7", "c4"} {
		m.PlaySound(note)
	}

	if st := m.Status(); st.State != Idle {
		t.Errorf("expected idle, got %s", st.State)
	}
	if out.Starts() != 0 || out.Writes() != 0 {
		t.Errorf("expected no output activity, got %d starts %d writes", out.Starts(), out.Writes())
	}
	if got := m.Stats().Ignored; got != 4 {
		t.Errorf("expected 4 ignored, got %d", got)
	}
}

func TestPlayStartsWriting(t *testing.T) {
	m, out := newTestManager(t, Config{Clock: newFakeClock()})

	m.PlaySound("A4")

	st := m.Status()
	if st.State != Sounding {
		t.Fatalf("expected sounding, got %s", st.State)
	}
	if st.Note != "A4" || st.Frequency != 440 {
		t.Errorf("unexpected session %s %.2f", st.Note, st.Frequency)
	}
	if st.SessionID == "" {
		t.Error("expected a session id")
	}

	if !waitFor(t, 100*time.Millisecond, func() bool { return out.Writes() > 0 }) {
		t.Fatal("no writes after play")
	}
	if !out.Started() {
		t.Error("output should be started")
	}
}

func TestMonophonicDropsSecondPress(t *testing.T) {
	m, out := newTestManager(t, Config{Clock: newFakeClock()})

	m.PlaySound("A4")
	first := m.Status()

	m.PlaySound("C4")
	m.PlaySound("A4")
	second := m.Status()

	if second.Note != "A4" || second.SessionID != first.SessionID {
		t.Errorf("second press replaced the session: %+v", second)
	}

	stats := m.Stats()
	if stats.Sessions != 1 {
		t.Errorf("expected 1 session, got %d", stats.Sessions)
	}
	if stats.Dropped != 2 {
		t.Errorf("expected 2 dropped, got %d", stats.Dropped)
	}
	if out.Stops() != 0 {
		t.Errorf("current note was interrupted")
	}
}

func TestStopWhileIdle(t *testing.T) {
	m, out := newTestManager(t, Config{Clock: newFakeClock()})

	m.StopSound()

	if st := m.Status(); st.State != Idle {
		t.Errorf("expected idle, got %s", st.State)
	}
	if out.Stops() != 0 {
		t.Errorf("expected no output stop, got %d", out.Stops())
	}
}

func TestQuickReleaseIsDeferred(t *testing.T) {
	clock := newFakeClock()
	m, out := newTestManager(t, Config{Clock: clock})

	m.PlaySound("A4")
	m.Status()

	clock.Advance(30 * time.Millisecond)
	m.StopSound()

	if st := m.Status(); st.State != PendingStop {
		t.Fatalf("expected pending-stop, got %s", st.State)
	}

	// a second release while pending does not schedule another stop
	m.StopSound()
	m.Status()
	if got := m.Stats().DelayedStops; got != 1 {
		t.Errorf("expected 1 delayed stop, got %d", got)
	}

	clock.Advance(69 * time.Millisecond)
	if st := m.Status(); st.State != PendingStop {
		t.Fatalf("stopped early at 99ms, state %s", st.State)
	}
	if out.Stops() != 0 {
		t.Errorf("output stopped before sustain elapsed")
	}

	// presses while pending are still dropped
	m.PlaySound("C4")

	clock.Advance(1 * time.Millisecond)
	if st := m.Status(); st.State != Idle {
		t.Fatalf("expected idle at 100ms, got %s", st.State)
	}
	if out.Stops() != 1 {
		t.Errorf("expected 1 output stop, got %d", out.Stops())
	}
	if got := m.Stats().Dropped; got != 1 {
		t.Errorf("expected 1 dropped press, got %d", got)
	}
}

func TestLateReleaseStopsImmediately(t *testing.T) {
	clock := newFakeClock()
	m, out := newTestManager(t, Config{Clock: clock})

	m.PlaySound("C4")
	m.Status()

	clock.Advance(150 * time.Millisecond)
	m.StopSound()

	if st := m.Status(); st.State != Idle {
		t.Fatalf("expected idle, got %s", st.State)
	}
	if out.Stops() != 1 {
		t.Errorf("expected 1 output stop, got %d", out.Stops())
	}
	if got := m.Stats().DelayedStops; got != 0 {
		t.Errorf("expected no delayed stop, got %d", got)
	}

	writes := out.Writes()
	time.Sleep(40 * time.Millisecond)
	if out.Writes() != writes {
		t.Errorf("writes continued after stop: %d -> %d", writes, out.Writes())
	}
}

func TestReleaseExactlyAtSustainStopsImmediately(t *testing.T) {
	clock := newFakeClock()
	m, _ := newTestManager(t, Config{Clock: clock})

	m.PlaySound("E4")
	m.Status()

	clock.Advance(100 * time.Millisecond)
	m.StopSound()

	if st := m.Status(); st.State != Idle {
		t.Errorf("expected idle, got %s", st.State)
	}
}

func TestPlayAfterStop(t *testing.T) {
	clock := newFakeClock()
	m, out := newTestManager(t, Config{Clock: clock})

	m.PlaySound("A4")
	m.Status()
	clock.Advance(30 * time.Millisecond)
	m.StopSound()
	clock.Advance(70 * time.Millisecond)

	m.PlaySound("C4")
	st := m.Status()
	if st.State != Sounding || st.Note != "C4" {
		t.Fatalf("expected C4 sounding, got %s %s", st.State, st.Note)
	}
	if out.Starts() != 2 {
		t.Errorf("expected 2 output starts, got %d", out.Starts())
	}
	if got := m.Stats().Sessions; got != 2 {
		t.Errorf("expected 2 sessions, got %d", got)
	}
}

func TestStaleSustainTimerIgnored(t *testing.T) {
	clock := newFakeClock()
	m, _ := newTestManager(t, Config{Clock: clock})

	m.PlaySound("A4")
	m.Status()
	clock.Advance(30 * time.Millisecond)
	m.StopSound()
	m.Status()

	// fire the pending timer's callback by hand after a new session began
	clock.mu.Lock()
	stale := clock.timers[0].f
	clock.mu.Unlock()

	clock.Advance(70 * time.Millisecond)
	m.PlaySound("C4")
	m.Status()

	stale()
	if st := m.Status(); st.State != Sounding || st.Note != "C4" {
		t.Errorf("stale timer stopped the new note: %s %s", st.State, st.Note)
	}
}

func TestReleaseBlocksFurtherRequests(t *testing.T) {
	m, out := newTestManager(t, Config{Clock: newFakeClock()})

	m.PlaySound("A4")
	m.Status()

	if err := m.Release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if !out.Released() {
		t.Error("output should be released")
	}

	writes := out.Writes()
	m.PlaySound("C4")
	m.StopSound()
	time.Sleep(20 * time.Millisecond)

	if out.Writes() != writes {
		t.Errorf("writes after release: %d -> %d", writes, out.Writes())
	}
	if st := m.Status(); st.State != Released {
		t.Errorf("expected released, got %s", st.State)
	}
	if err := m.Release(); err != nil {
		t.Errorf("second release should be a no-op, got %v", err)
	}
}

func TestReleaseDuringBlockedWrite(t *testing.T) {
	// the default buffer is 800ms of audio, so the first write blocks
	out := output.NewRealtimeMemory()
	m, err := NewManager(Config{}, out)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	m.PlaySound("A4")
	waitFor(t, 100*time.Millisecond, func() bool { return out.Writes() > 0 })

	done := make(chan error)
	go func() { done <- m.Release() }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("release failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("release hung on an in-flight write")
	}
}

func TestReleaseWithPendingStop(t *testing.T) {
	clock := newFakeClock()
	m, out := newTestManager(t, Config{Clock: clock})

	m.PlaySound("A4")
	m.Status()
	clock.Advance(10 * time.Millisecond)
	m.StopSound()
	m.Status()

	if err := m.Release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	clock.mu.Lock()
	stopped := clock.timers[0].stopped
	clock.mu.Unlock()
	if !stopped {
		t.Error("pending sustain timer should be cancelled")
	}

	// the timer firing late is harmless
	clock.Advance(time.Second)
	if !out.Released() {
		t.Error("output should be released")
	}
}

func TestQuickTapSoundsForMinimumSustain(t *testing.T) {
	m, out := newTestManager(t, Config{})

	start := time.Now()
	m.PlaySound("A4")
	time.Sleep(30 * time.Millisecond)
	m.StopSound()

	if !waitFor(t, time.Second, func() bool { return out.Stops() == 1 }) {
		t.Fatal("note never stopped")
	}

	held := out.LastStop().Sub(start)
	if held < 100*time.Millisecond {
		t.Errorf("note stopped after %v, before the minimum sustain", held)
	}
	if held > 200*time.Millisecond {
		t.Errorf("note stopped after %v, well past the minimum sustain", held)
	}
}

func TestLongHoldStopsPromptly(t *testing.T) {
	m, out := newTestManager(t, Config{})

	m.PlaySound("C4")
	time.Sleep(150 * time.Millisecond)

	released := time.Now()
	m.StopSound()

	if !waitFor(t, time.Second, func() bool { return out.Stops() == 1 }) {
		t.Fatal("note never stopped")
	}
	if lag := out.LastStop().Sub(released); lag > 50*time.Millisecond {
		t.Errorf("stop lagged release by %v", lag)
	}
}

func TestWaveformRestartsEachBuffer(t *testing.T) {
	m, out := newTestManager(t, Config{})

	m.PlaySound("A4")
	if !waitFor(t, time.Second, func() bool { return out.Writes() >= 2 }) {
		t.Fatal("expected at least two buffers")
	}
	m.StopSound()

	want := make([]int16, testBufferSize)
	synth.Fill(want, 440, 44100, 0)

	got := out.Samples()
	for b := 0; b < 2; b++ {
		for i := range want {
			if got[b*testBufferSize+i] != want[i] {
				t.Fatalf("buffer %d sample %d: expected %d, got %d", b, i, want[i], got[b*testBufferSize+i])
			}
		}
	}
}

func TestContinuousPhase(t *testing.T) {
	m, out := newTestManager(t, Config{ContinuousPhase: true})

	m.PlaySound("A4")
	if !waitFor(t, time.Second, func() bool { return out.Writes() >= 2 }) {
		t.Fatal("expected at least two buffers")
	}
	m.StopSound()

	want := make([]int16, 2*testBufferSize)
	synth.Fill(want, 440, 44100, 0)

	got := out.Samples()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{Idle, "idle"},
		{Sounding, "sounding"},
		{PendingStop, "pending-stop"},
		{Released, "released"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("expected %q, got %q", tt.expected, got)
		}
	}
}
