// ABOUTME: Audio type definitions
// ABOUTME: Defines the PCM stream format and 16-bit sample helpers
package audio

import "encoding/binary"

const (
	// DefaultSampleRate is the rate every note is synthesized at
	DefaultSampleRate = 44100

	// DefaultChannels is mono
	DefaultChannels = 1

	// BitDepth of every sample handed to an output
	BitDepth = 16

	// MinBufferBytes is the minimum stream buffer the platform reports for
	// 44.1kHz mono PCM16
	MinBufferBytes = 3528

	// BufferMultiplier scales MinBufferBytes into the working buffer size
	BufferMultiplier = 10

	// MaxAmplitude is the largest positive 16-bit sample
	MaxAmplitude = 32767
)

// Format describes the PCM stream an output is opened with
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultFormat returns 44.1kHz mono signed 16-bit
func DefaultFormat() Format {
	return Format{
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
		BitDepth:   BitDepth,
	}
}

// BytesPerSample returns the width of one sample in bytes
func (f Format) BytesPerSample() int {
	return f.BitDepth / 8
}

// FramesToMillis returns how long n frames last, in milliseconds
func (f Format) FramesToMillis(n int) float64 {
	if f.SampleRate == 0 {
		return 0
	}
	return float64(n) * 1000 / float64(f.SampleRate)
}

// BufferSize returns MinBufferBytes scaled by multiplier. The result is used
// both as the sample count of the generation buffer and as the byte capacity
// of the output stream.
func BufferSize(multiplier int) int {
	if multiplier <= 0 {
		multiplier = BufferMultiplier
	}
	return MinBufferBytes * multiplier
}

// PutInt16LE encodes samples as little-endian bytes into dst and returns the
// number of bytes written. dst must hold at least 2*len(samples) bytes.
func PutInt16LE(dst []byte, samples []int16) int {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(s))
	}
	return len(samples) * 2
}

// Int16LE decodes little-endian bytes into samples and returns the number of
// samples decoded
func Int16LE(dst []int16, src []byte) int {
	n := len(src) / 2
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(src[i*2:]))
	}
	return n
}
