// ABOUTME: Blocking PCM ring buffer shared by the output backends
// ABOUTME: Writers block while full; Stop flushes and releases blocked writers
package output

import (
	"io"
	"sync"
)

// Stream is a fixed-capacity byte ring that sits between the generation loop
// and a device pull callback. Reads never block: an underrun is padded with
// silence so the device keeps running.
type Stream struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buffer   []byte
	readPos  int
	count    int
	running  bool
	closed   bool
	consumed int64
}

// NewStream creates a stream holding up to capacity bytes
func NewStream(capacity int) *Stream {
	if capacity < 2 {
		capacity = 2
	}
	s := &Stream{buffer: make([]byte, capacity)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start lets writes through again after Stop
func (s *Stream) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.running = true
	}
}

// Write queues p, waiting for free space as needed. It returns early with the
// bytes queued so far if the stream is stopped or closed meanwhile.
func (s *Stream) Write(p []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	for written < len(p) {
		for s.running && s.count == len(s.buffer) {
			s.cond.Wait()
		}
		if !s.running {
			return written
		}

		size := len(s.buffer)
		writePos := (s.readPos + s.count) % size
		free := size - s.count
		chunk := len(p) - written
		if chunk > free {
			chunk = free
		}
		// at most two copies around the wrap
		n := copy(s.buffer[writePos:], p[written:written+chunk])
		if n < chunk {
			copy(s.buffer, p[written+n:written+chunk])
		}
		s.count += chunk
		written += chunk
	}
	return written
}

// Read drains queued bytes into p and pads the rest with silence
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, io.EOF
	}

	n := 0
	size := len(s.buffer)
	for n < len(p) && s.count > 0 {
		end := s.readPos + s.count
		if end > size {
			end = size
		}
		c := copy(p[n:], s.buffer[s.readPos:end])
		s.readPos = (s.readPos + c) % size
		s.count -= c
		n += c
	}
	s.consumed += int64(n)
	clear(p[n:])

	if n > 0 {
		s.cond.Broadcast()
	}
	return len(p), nil
}

// Stop rejects further writes, discards queued bytes and wakes blocked writers
func (s *Stream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.readPos = 0
	s.count = 0
	s.cond.Broadcast()
}

// Close stops the stream for good; reads return io.EOF afterwards
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.closed = true
	s.count = 0
	s.cond.Broadcast()
	return nil
}

// Buffered returns the number of queued bytes
func (s *Stream) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Consumed returns the total bytes handed to the device
func (s *Stream) Consumed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consumed
}

// Running reports whether writes are accepted
func (s *Stream) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
