// ABOUTME: Version and product identification constants
// ABOUTME: Reported in the remote keyboard handshake and the TUI header
package version

const (
	// Version is the software version
	Version = "0.3.0"

	// Product is the product name
	Product = "mpiano"

	// Manufacturer is the manufacturer name
	Manufacturer = "Musique"
)
