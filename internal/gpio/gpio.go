// Package gpio drives the "peer connected" indicator with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Indicator is a binary output line.
type Indicator interface {
	// Set drives the indicator on or off (logical level; active-low lines
	// are inverted by the implementation).
	Set(on bool) error

	// Close releases GPIO resources.
	Close() error
}

// Defaults (BCM numbering on gpiochip0).
const (
	DefaultChip = "gpiochip0"
	DefaultLine = 17
)
