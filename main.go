// ABOUTME: Entry point for the mpiano keyboard
// ABOUTME: Parses CLI flags, opens the audio output and starts the keyboard TUI
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/musique/mpiano-go/internal/remote"
	"github.com/musique/mpiano-go/internal/ui"
	"github.com/musique/mpiano-go/internal/version"
	"github.com/musique/mpiano-go/pkg/audio"
	"github.com/musique/mpiano-go/pkg/audio/output"
	"github.com/musique/mpiano-go/pkg/piano"
)

var (
	backend         = flag.String("backend", "oto", "Audio output: oto, malgo, portaudio or null")
	bufferMult      = flag.Int("buffer-multiplier", audio.BufferMultiplier, "Output buffer size as a multiple of the device minimum")
	octave          = flag.Int("octave", ui.DefaultOctave, "Starting octave of the home row (1-6)")
	hold            = flag.Duration("hold", ui.DefaultHold, "How long a key counts as held after its last press")
	enableRemote    = flag.Bool("remote", false, "Accept remote keyboards over websocket")
	port            = flag.Int("port", remote.DefaultPort, "Port for remote keyboards")
	name            = flag.String("name", "", "Piano friendly name (default: hostname-mpiano)")
	enableMDNS      = flag.Bool("mdns", true, "Advertise the remote endpoint over mDNS")
	continuousPhase = flag.Bool("continuous-phase", false, "Carry the waveform phase across buffers")
	logFile         = flag.String("log-file", "mpiano.log", "Log file path")
	noTUI           = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	debug           = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Streaming logs mode: log to both stdout and file
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	pianoName := *name
	if pianoName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		pianoName = fmt.Sprintf("%s-mpiano", hostname)
	}

	log.Printf("Starting %s %s: %s (backend %s)", version.Product, version.Version, pianoName, *backend)

	out, err := output.New(*backend)
	if err != nil {
		log.Fatalf("Failed to create audio output: %v", err)
	}

	manager, err := piano.NewManager(piano.Config{
		BufferSize:      audio.BufferSize(*bufferMult),
		ContinuousPhase: *continuousPhase,
		Debug:           *debug,
	}, out)
	if err != nil {
		log.Fatalf("Failed to create sound manager: %v", err)
	}

	var server *remote.Server
	title := ""
	if *enableRemote {
		server = remote.New(remote.Config{
			Port:       *port,
			Name:       pianoName,
			EnableMDNS: *enableMDNS,
			Debug:      *debug,
		}, manager)
		if err := server.Start(); err != nil {
			log.Printf("Remote keyboard disabled: %v", err)
			server = nil
		} else {
			title = fmt.Sprintf("remote :%d%s", *port, remote.Path)
		}
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if useTUI {
		prog := ui.Run(manager, ui.Config{
			Octave: *octave,
			Hold:   *hold,
			Title:  title,
		})

		done := make(chan error, 1)
		go func() {
			_, err := prog.Run()
			done <- err
		}()

		select {
		case err := <-done:
			if err != nil {
				log.Printf("TUI error: %v", err)
			}
			log.Printf("Received quit from TUI")
		case <-sigChan:
			log.Printf("Shutdown signal received")
			prog.Quit()
			<-done
		}
	} else {
		log.Printf("TUI disabled, waiting for remote keyboards")
		<-sigChan
		log.Printf("Shutdown signal received")
	}

	if server != nil {
		server.Stop()
	}

	if err := manager.Release(); err != nil {
		log.Printf("Error releasing sound manager: %v", err)
	}

	log.Printf("Piano stopped")
}
