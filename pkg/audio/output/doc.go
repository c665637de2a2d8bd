// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the Output interface and its device backends
// Package output provides streaming audio playback backends.
//
// Oto is the default backend. Malgo and PortAudio are compiled in with the
// malgo and portaudio build tags. Null and Memory need no sound card.
//
// Every backend queues PCM in a Stream sized at Open, so Write blocks once
// the device falls behind and Stop discards whatever has not played yet.
//
// Example:
//
//	out := output.NewOto()
//	err := out.Open(audio.DefaultFormat(), audio.BufferSize(audio.BufferMultiplier))
//	err = out.Start()
//	n, err := out.Write(samples)
package output
