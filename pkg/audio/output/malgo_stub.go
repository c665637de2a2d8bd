//go:build !malgo

// ABOUTME: Malgo stub when the miniaudio backend is not compiled in
// ABOUTME: Provides compile-time placeholder when built without the malgo tag
package output

import (
	"errors"

	"github.com/musique/mpiano-go/pkg/audio"
)

var errMalgoDisabled = errors.New("malgo support not enabled (build with -tags malgo)")

// Malgo output implementation (stub)
type Malgo struct{}

// NewMalgo creates a new Malgo output
func NewMalgo() Output {
	return &Malgo{}
}

// Open always fails
func (m *Malgo) Open(format audio.Format, bufferSize int) error {
	return errMalgoDisabled
}

// Start always fails
func (m *Malgo) Start() error {
	return errMalgoDisabled
}

// Write always fails
func (m *Malgo) Write(samples []int16) (int, error) {
	return 0, errMalgoDisabled
}

// Stop is a no-op
func (m *Malgo) Stop() error {
	return nil
}

// Release is a no-op
func (m *Malgo) Release() error {
	return nil
}
