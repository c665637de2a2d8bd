// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines the device Format, buffer sizing and PCM16 conversions
// Package audio provides the audio types shared by the synthesizer and the
// outputs.
//
// The piano plays 44.1 kHz mono signed 16-bit little-endian PCM:
//   - Format: describes the stream (sample rate, channels, bit depth)
//   - BufferSize: the device minimum times a multiplier
//
// It also provides conversions between int16 samples and packed bytes.
//
// Example:
//
//	format := audio.DefaultFormat()
//	size := audio.BufferSize(audio.BufferMultiplier) // 35280
//
//	buf := make([]byte, len(samples)*format.BytesPerSample())
//	audio.PutInt16LE(buf, samples)
package audio
