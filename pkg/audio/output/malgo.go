//go:build malgo

// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Uses miniaudio via malgo with a pull callback over the shared stream
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/musique/mpiano-go/pkg/audio"
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	stream   *Stream
	format   audio.Format
	scratch  []byte
	released bool
}

// NewMalgo creates a new Malgo output
func NewMalgo() Output {
	return &Malgo{}
}

// Open initializes the output device with specified format
func (m *Malgo) Open(format audio.Format, bufferSize int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.released {
		return ErrReleased
	}
	if format.BitDepth != audio.BitDepth {
		return fmt.Errorf("unsupported bit depth: %d (supported: 16)", format.BitDepth)
	}

	if m.device != nil {
		log.Printf("Format change, reinitializing device")
		m.closeDevice()
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	stream := NewStream(bufferSize)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			n := int(frameCount) * format.Channels * format.BytesPerSample()
			if n > len(pOutputSample) {
				n = len(pOutputSample)
			}
			stream.Read(pOutputSample[:n])
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	m.device = device
	m.stream = stream
	m.format = format

	log.Printf("Audio output initialized: %dHz, %d channels, %d byte buffer (malgo)",
		format.SampleRate, format.Channels, bufferSize)

	return nil
}

// Start starts the device
func (m *Malgo) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.released {
		return ErrReleased
	}
	if m.device == nil {
		return ErrNotOpen
	}

	m.stream.Start()
	if !m.device.IsStarted() {
		if err := m.device.Start(); err != nil {
			return fmt.Errorf("failed to start device: %w", err)
		}
	}
	return nil
}

// Write queues audio samples for playback
func (m *Malgo) Write(samples []int16) (int, error) {
	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		return 0, ErrReleased
	}
	stream := m.stream
	m.mu.Unlock()

	if stream == nil {
		return 0, ErrNotOpen
	}

	need := len(samples) * 2
	if cap(m.scratch) < need {
		m.scratch = make([]byte, need)
	}
	buf := m.scratch[:need]
	audio.PutInt16LE(buf, samples)

	return stream.Write(buf), nil
}

// Stop flushes queued audio and stops the device
func (m *Malgo) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		m.stream.Stop()
	}
	if m.device != nil && m.device.IsStarted() {
		if err := m.device.Stop(); err != nil {
			return fmt.Errorf("failed to stop device: %w", err)
		}
	}
	return nil
}

// Release releases output resources
func (m *Malgo) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.released {
		return nil
	}
	m.released = true

	if m.stream != nil {
		m.stream.Close()
	}
	m.closeDevice()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.device != nil {
		if m.device.IsStarted() {
			if err := m.device.Stop(); err != nil {
				log.Printf("Warning: device stop error: %v", err)
			}
		}
		m.device.Uninit()
		m.device = nil
	}
}
