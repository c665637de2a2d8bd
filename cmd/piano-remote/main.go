// ABOUTME: Remote keyboard that plays a sequence of notes on an mpiano
// ABOUTME: Finds the piano over mDNS or -server and sends note/on and note/off
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/musique/mpiano-go/internal/client"
	"github.com/musique/mpiano-go/internal/discovery"
	"github.com/musique/mpiano-go/internal/protocol"
	"github.com/musique/mpiano-go/internal/version"
)

var (
	serverAddr = flag.String("server", "", "Manual piano address host:port (skip mDNS)")
	noteList   = flag.String("notes", "C4,E4,G4", "Comma separated notes to play")
	hold       = flag.Duration("hold", 200*time.Millisecond, "How long each note is held")
	gap        = flag.Duration("gap", 50*time.Millisecond, "Pause between notes")
	name       = flag.String("name", "", "Keyboard friendly name (default: hostname-piano-remote)")
	wait       = flag.Duration("discover-timeout", 10*time.Second, "How long to browse for a piano")
)

func main() {
	flag.Parse()

	keyboardName := *name
	if keyboardName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		keyboardName = fmt.Sprintf("%s-piano-remote", hostname)
	}

	addr, path := *serverAddr, discovery.DefaultPath
	if addr == "" {
		log.Printf("Browsing for pianos...")
		ctx, cancel := context.WithTimeout(context.Background(), *wait)
		piano, err := discovery.Find(ctx, 3*time.Second)
		cancel()
		if err != nil {
			log.Fatalf("No piano found after %v: %v", *wait, err)
		}
		if piano.Version != 0 && piano.Version != protocol.Version {
			log.Printf("Warning: %s speaks protocol version %d, expected %d", piano.Instance, piano.Version, protocol.Version)
		}
		addr, path = piano.Addr(), piano.Path
		log.Printf("Discovered piano %s at %s", piano.Instance, piano.URL())
	}

	c := client.NewClient(client.Config{
		ServerAddr: addr,
		Path:       path,
		ClientID:   uuid.New().String(),
		Name:       keyboardName,
		DeviceInfo: protocol.DeviceInfo{
			ProductName:     version.Product + " remote",
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
	})

	if err := c.Connect(); err != nil {
		log.Fatalf("Connection failed: %v", err)
	}
	defer c.Close()

	for _, note := range strings.Split(*noteList, ",") {
		note = strings.TrimSpace(note)
		if note == "" {
			continue
		}

		log.Printf("Playing %s", note)
		if err := c.NoteOn(note); err != nil {
			log.Fatalf("note/on failed: %v", err)
		}
		time.Sleep(*hold)
		if err := c.NoteOff(); err != nil {
			log.Fatalf("note/off failed: %v", err)
		}
		time.Sleep(*gap)
	}

	status, err := c.Status()
	if err != nil {
		log.Fatalf("Status failed: %v", err)
	}
	log.Printf("Piano is %s", status.State)
}
