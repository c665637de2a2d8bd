// ABOUTME: Package documentation for the piano sound manager
// ABOUTME: Describes the monophonic note engine and its entry points
// Package piano turns note-on/note-off requests from a keyboard into a
// continuous sine tone on an audio output.
//
// A Manager is monophonic. While a note is sounding, or waiting out its
// minimum sustain, further PlaySound calls are dropped rather than retriggering
// or layering. Real keyboards retrigger, so this is a known limitation;
// Stats().Dropped counts the presses lost to it.
//
// Example:
//
//	m, err := piano.NewManager(piano.Config{}, output.NewOto())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer m.Release()
//
//	m.PlaySound("A4")
//	time.Sleep(300 * time.Millisecond)
//	m.StopSound()
package piano
