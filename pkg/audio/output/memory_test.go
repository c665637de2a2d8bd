// ABOUTME: Tests for the in-memory output and backend selection
// ABOUTME: Verifies the Output contract without a sound card
package output

import (
	"errors"
	"testing"
	"time"

	"github.com/musique/mpiano-go/pkg/audio"
)

func TestBackendsImplementOutput(t *testing.T) {
	var _ Output = (*Oto)(nil)
	var _ Output = (*Malgo)(nil)
	var _ Output = (*PortAudio)(nil)
	var _ Output = (*Memory)(nil)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		expectErr bool
	}{
		{"", false},
		{"oto", false},
		{"malgo", false},
		{"portaudio", false},
		{"null", false},
		{"alsa", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := New(tt.name)
			if tt.expectErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out == nil {
				t.Fatal("expected output")
			}
		})
	}
}

func TestMemoryLifecycle(t *testing.T) {
	m := NewMemory()

	if _, err := m.Write([]int16{1}); !errors.Is(err, ErrNotOpen) {
		t.Errorf("expected ErrNotOpen, got %v", err)
	}
	if err := m.Start(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("expected ErrNotOpen, got %v", err)
	}

	if err := m.Open(audio.DefaultFormat(), 64); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if m.BufferSize() != 64 {
		t.Errorf("expected buffer size 64, got %d", m.BufferSize())
	}

	// opened but not started
	if n, err := m.Write([]int16{1, 2}); n != 0 || err != nil {
		t.Errorf("expected (0, nil) before start, got (%d, %v)", n, err)
	}

	m.Start()
	m.Start()
	if m.Starts() != 1 {
		t.Errorf("Start should be idempotent, got %d starts", m.Starts())
	}

	n, err := m.Write([]int16{1, 2, 3})
	if err != nil || n != 6 {
		t.Errorf("expected (6, nil), got (%d, %v)", n, err)
	}

	m.Stop()
	if n, _ := m.Write([]int16{4}); n != 0 {
		t.Errorf("expected 0 after stop, got %d", n)
	}
	if m.Stops() != 1 {
		t.Errorf("expected 1 stop, got %d", m.Stops())
	}

	if err := m.Release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if err := m.Release(); err != nil {
		t.Errorf("second release should be a no-op, got %v", err)
	}
	if _, err := m.Write([]int16{1}); !errors.Is(err, ErrReleased) {
		t.Errorf("expected ErrReleased, got %v", err)
	}

	got := m.Samples()
	if len(got) != 3 || got[2] != 3 {
		t.Errorf("unexpected samples %v", got)
	}
}

func TestMemoryFailOpen(t *testing.T) {
	m := NewMemory()
	want := errors.New("no device")
	m.FailOpen(want)

	if err := m.Open(audio.DefaultFormat(), 64); !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestRealtimeMemoryStopUnblocksWrite(t *testing.T) {
	m := NewRealtimeMemory()
	if err := m.Open(audio.DefaultFormat(), 882); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer m.Release()
	m.Start()

	// one second of audio into a 10ms stream blocks well past the stop below
	done := make(chan int)
	go func() {
		n, _ := m.Write(make([]int16, 44100))
		done <- n
	}()

	time.Sleep(30 * time.Millisecond)
	m.Stop()

	select {
	case n := <-done:
		if n >= 88200 {
			t.Errorf("write should have been cut short, wrote %d bytes", n)
		}
	case <-time.After(time.Second):
		t.Fatal("stop did not unblock the write")
	}
}

func TestNullDiscardsSamples(t *testing.T) {
	m := NewNull()
	if err := m.Open(audio.DefaultFormat(), 882); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer m.Release()
	m.Start()

	m.Write(make([]int16, 100))
	if len(m.Samples()) != 0 {
		t.Errorf("null output should not keep samples")
	}
	if m.Writes() != 1 {
		t.Errorf("expected 1 write, got %d", m.Writes())
	}
}

func TestMemoryRecordLimit(t *testing.T) {
	m := NewMemory()
	m.limit = 5
	m.Open(audio.DefaultFormat(), 64)
	m.Start()

	for i := 0; i < 100; i++ {
		if n, err := m.Write([]int16{1, 2, 3}); n != 6 || err != nil {
			t.Fatalf("write %d: expected (6, nil), got (%d, %v)", i, n, err)
		}
	}

	got := m.Samples()
	want := []int16{1, 2, 3, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("expected %d recorded samples, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], got[i])
		}
	}
	if m.Writes() != 100 {
		t.Errorf("expected 100 writes counted, got %d", m.Writes())
	}
}

func TestMemoryDefaultRecordLimit(t *testing.T) {
	for _, m := range []*Memory{NewMemory(), NewRealtimeMemory()} {
		if m.limit != DefaultRecordLimit {
			t.Errorf("expected limit %d, got %d", DefaultRecordLimit, m.limit)
		}
	}
}
