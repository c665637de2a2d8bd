// ABOUTME: Sine waveform generator for 16-bit PCM
// ABOUTME: Fills reusable sample buffers without allocating
package synth

import (
	"math"

	"github.com/musique/mpiano-go/pkg/audio"
)

// Fill writes one sine sample per slot of buf at frequency hz, sampled at
// sampleRate, scaled to the full positive int16 range. Slot i carries phase
// index phaseStart+i. Passing phaseStart 0 on every call restarts the wave at
// each buffer, which clicks at the wrap unless the buffer holds a whole number
// of periods.
func Fill(buf []int16, hz float64, sampleRate int, phaseStart int) {
	if sampleRate <= 0 {
		clear(buf)
		return
	}
	w := 2 * math.Pi * hz / float64(sampleRate)
	for i := range buf {
		buf[i] = int16(math.Sin(float64(phaseStart+i)*w) * audio.MaxAmplitude)
	}
}

// WrapPhase folds a running phase index back into one period so long notes do
// not lose precision. The returned index produces the same samples as idx.
func WrapPhase(idx int, hz float64, sampleRate int) int {
	if hz <= 0 || sampleRate <= 0 {
		return idx
	}
	// only exact when the period is a whole number of samples
	period := float64(sampleRate) / hz
	if period != math.Trunc(period) {
		return idx
	}
	return idx % int(period)
}
