// Package gpio reads the remote trigger button with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the button level.
type Reader interface {
	// Read returns true while the button is held down.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// DefaultPin is the button input (BCM numbering).
const DefaultPin = 17

// DefaultChip is the GPIO character device the button is wired to.
const DefaultChip = "gpiochip0"
