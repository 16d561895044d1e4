//go:build !linux

package watchdog

import (
	"time"

	"github.com/rs/zerolog"
)

// Device is unavailable outside Linux.
type Device struct{}

func Open(path string, timeout time.Duration, logger zerolog.Logger) (*Device, error) {
	return nil, ErrUnsupported
}

func (d *Device) Feed() error  { return ErrUnsupported }
func (d *Device) Close() error { return nil }
