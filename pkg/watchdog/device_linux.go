//go:build linux

package watchdog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// Writing this byte before close disarms drivers without NOWAYOUT.
const magicClose = 'V'

// Device is the kernel watchdog character device, usually /dev/watchdog.
type Device struct {
	file   *os.File
	logger zerolog.Logger
	mu     sync.Mutex
}

// Open opens the device and sets its timeout. The watchdog is armed from the
// moment the device is opened.
func Open(path string, timeout time.Duration, logger zerolog.Logger) (*Device, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open watchdog %s: %w", path, err)
	}

	secs := int(timeout / time.Second)
	if secs > 0 {
		if err := unix.IoctlSetPointerInt(int(f.Fd()), unix.WDIOC_SETTIMEOUT, secs); err != nil {
			logger.Warn().Err(err).Int("seconds", secs).Msg("Failed to set watchdog timeout, using driver default")
		}
	}

	if actual, err := unix.IoctlGetInt(int(f.Fd()), unix.WDIOC_GETTIMEOUT); err == nil {
		logger.Info().Str("device", path).Int("timeout_seconds", actual).Msg("Hardware watchdog armed")
	}

	return &Device{file: f, logger: logger}, nil
}

// Feed sends a keep-alive.
func (d *Device) Feed() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return fmt.Errorf("watchdog closed")
	}
	if err := unix.IoctlWatchdogKeepalive(int(d.file.Fd())); err != nil {
		return fmt.Errorf("watchdog keepalive: %w", err)
	}
	return nil
}

// Close disarms the watchdog where the driver allows it and closes the device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}
	if _, err := d.file.Write([]byte{magicClose}); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to disarm watchdog")
	}
	err := d.file.Close()
	d.file = nil
	return err
}
