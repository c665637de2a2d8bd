// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams 16-bit PCM to the default device through a persistent player
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/musique/mpiano-go/pkg/audio"
)

// Oto output implementation using oto library
type Oto struct {
	mu       sync.Mutex
	otoCtx   *oto.Context
	player   *oto.Player
	stream   *Stream
	format   audio.Format
	scratch  []byte
	released bool
}

// NewOto creates a new Oto output
func NewOto() Output {
	return &Oto{}
}

// Open initializes the output device
func (o *Oto) Open(format audio.Format, bufferSize int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.released {
		return ErrReleased
	}

	// oto only supports 16-bit output
	if format.BitDepth != audio.BitDepth {
		return fmt.Errorf("unsupported bit depth: %d (oto output is 16-bit)", format.BitDepth)
	}

	// oto allows a single context per process, so a second Open only resizes the stream
	if o.otoCtx != nil {
		log.Printf("Audio output already initialized, reusing context")
		o.stream = NewStream(bufferSize)
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx
	o.format = format
	o.stream = NewStream(bufferSize)

	log.Printf("Audio output initialized: %dHz, %d channels, %d byte buffer (oto)",
		format.SampleRate, format.Channels, bufferSize)

	return nil
}

// Start creates a player over the stream if needed and resumes playback
func (o *Oto) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.released {
		return ErrReleased
	}
	if o.otoCtx == nil {
		return ErrNotOpen
	}

	o.stream.Start()
	if o.player == nil {
		o.player = o.otoCtx.NewPlayer(o.stream)
	}
	if !o.player.IsPlaying() {
		o.player.Play()
	}
	return nil
}

// Write outputs audio samples (blocks until queued or stopped)
func (o *Oto) Write(samples []int16) (int, error) {
	o.mu.Lock()
	if o.released {
		o.mu.Unlock()
		return 0, ErrReleased
	}
	stream := o.stream
	o.mu.Unlock()

	if stream == nil {
		return 0, ErrNotOpen
	}

	// scratch is only touched by the single writer
	need := len(samples) * 2
	if cap(o.scratch) < need {
		o.scratch = make([]byte, need)
	}
	buf := o.scratch[:need]
	audio.PutInt16LE(buf, samples)

	return stream.Write(buf), nil
}

// Stop pauses playback and drops everything queued, including oto's own buffer
func (o *Oto) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stream != nil {
		o.stream.Stop()
	}
	if o.player != nil {
		o.player.Pause()
		if err := o.player.Close(); err != nil {
			log.Printf("Warning: oto player close error: %v", err)
		}
		o.player = nil
	}
	return nil
}

// Release releases output resources
func (o *Oto) Release() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.released {
		return nil
	}
	o.released = true

	// closing the stream first unblocks an in-flight Write
	if o.stream != nil {
		o.stream.Close()
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.otoCtx != nil {
		if err := o.otoCtx.Suspend(); err != nil {
			return fmt.Errorf("failed to suspend oto context: %w", err)
		}
	}
	return nil
}
