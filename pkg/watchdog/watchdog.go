package watchdog

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnsupported is returned by Open on platforms without a watchdog driver.
var ErrUnsupported = errors.New("hardware watchdog not supported on this platform")

// Watchdog restarts the device unless it is fed before its deadline.
type Watchdog interface {
	Feed() error
	Close() error
}

// Soft is a process-level watchdog. If Feed is not called within the timeout
// it runs onExpire, normally a restart.
type Soft struct {
	timeout  time.Duration
	onExpire func()
	logger   zerolog.Logger

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

// NewSoft arms the watchdog immediately.
func NewSoft(timeout time.Duration, onExpire func(), logger zerolog.Logger) *Soft {
	s := &Soft{
		timeout:  timeout,
		onExpire: onExpire,
		logger:   logger,
	}
	s.timer = time.AfterFunc(timeout, s.expire)
	logger.Info().Dur("timeout", timeout).Msg("Software watchdog armed")
	return s
}

func (s *Soft) expire() {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	s.logger.Error().Dur("timeout", s.timeout).Msg("Watchdog expired")
	s.onExpire()
}

// Feed pushes the deadline out by the full timeout.
func (s *Soft) Feed() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("watchdog closed")
	}
	s.timer.Reset(s.timeout)
	return nil
}

// Close disarms the watchdog.
func (s *Soft) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.timer.Stop()
	return nil
}

// Nop never expires. It stands in when no watchdog is configured.
type Nop struct{}

func (Nop) Feed() error  { return nil }
func (Nop) Close() error { return nil }
