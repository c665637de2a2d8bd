//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Cross-platform audio output using a PortAudio callback stream
package output

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/musique/mpiano-go/pkg/audio"
)

// PortAudio output implementation
type PortAudio struct {
	mu       sync.Mutex
	stream   *portaudio.Stream
	ring     *Stream
	pull     []byte
	scratch  []byte
	active   bool
	released bool
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() Output {
	return &PortAudio{}
}

// Open initializes PortAudio
func (p *PortAudio) Open(format audio.Format, bufferSize int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return ErrReleased
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	ring := NewStream(bufferSize)
	p.pull = make([]byte, bufferSize)

	stream, err := portaudio.OpenDefaultStream(0, format.Channels, float64(format.SampleRate), 0, func(out []int16) {
		need := len(out) * 2
		if need > len(p.pull) {
			// portaudio picked a larger period than the ring; play silence for the excess
			need = len(p.pull) &^ 1
			clear(out[need/2:])
		}
		ring.Read(p.pull[:need])
		audio.Int16LE(out, p.pull[:need])
	})
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}

	p.stream = stream
	p.ring = ring
	return nil
}

// Start starts the callback stream
func (p *PortAudio) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return ErrReleased
	}
	if p.stream == nil {
		return ErrNotOpen
	}

	p.ring.Start()
	if !p.active {
		if err := p.stream.Start(); err != nil {
			return fmt.Errorf("failed to start stream: %w", err)
		}
		p.active = true
	}
	return nil
}

// Write outputs audio samples
func (p *PortAudio) Write(samples []int16) (int, error) {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return 0, ErrReleased
	}
	ring := p.ring
	p.mu.Unlock()

	if ring == nil {
		return 0, ErrNotOpen
	}

	need := len(samples) * 2
	if cap(p.scratch) < need {
		p.scratch = make([]byte, need)
	}
	buf := p.scratch[:need]
	audio.PutInt16LE(buf, samples)

	return ring.Write(buf), nil
}

// Stop flushes queued audio and stops the callback stream
func (p *PortAudio) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ring != nil {
		p.ring.Stop()
	}
	if p.active {
		p.active = false
		if err := p.stream.Stop(); err != nil {
			return fmt.Errorf("failed to stop stream: %w", err)
		}
	}
	return nil
}

// Release releases resources
func (p *PortAudio) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return nil
	}
	p.released = true

	if p.ring != nil {
		p.ring.Close()
	}
	if p.stream != nil {
		if p.active {
			if err := p.stream.Stop(); err != nil {
				return err
			}
			p.active = false
		}
		if err := p.stream.Close(); err != nil {
			return err
		}
	}
	return portaudio.Terminate()
}
