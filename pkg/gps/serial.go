package gps

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	jserial "github.com/jacobsa/go-serial/serial"
	"github.com/rs/zerolog"
	"github.com/tarm/serial"
)

// Serial driver names accepted by OpenPort.
const (
	DriverTarm    = "tarm"
	DriverJacobsa = "jacobsa"
)

// Unread bytes beyond this are discarded; a stalled reader would otherwise
// grow the buffer without bound.
const maxBufferedBytes = 64 * 1024

// OpenPort opens a serial device at 8N1 with the named driver ("tarm" when empty).
func OpenPort(driver, name string, baud int) (io.ReadWriteCloser, error) {
	switch driver {
	case "", DriverTarm:
		return OpenTarm(name, baud)
	case DriverJacobsa:
		return OpenJacobsa(name, baud)
	default:
		return nil, fmt.Errorf("unknown serial driver %q", driver)
	}
}

// OpenTarm opens the port with github.com/tarm/serial. Reads block until at
// least one byte arrives.
func OpenTarm(name string, baud int) (io.ReadWriteCloser, error) {
	port, err := serial.OpenPort(&serial.Config{Name: name, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return port, nil
}

// OpenJacobsa opens the port with github.com/jacobsa/go-serial.
func OpenJacobsa(name string, baud int) (io.ReadWriteCloser, error) {
	port, err := jserial.Open(jserial.OpenOptions{
		PortName:        name,
		BaudRate:        uint(baud),
		DataBits:        8,
		StopBits:        1,
		ParityMode:      jserial.PARITY_NONE,
		MinimumReadSize: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return port, nil
}

// PortSource turns a blocking reader into a SerialSource. A background
// goroutine drains the port into a buffer that HasData and ReadAvailable poll.
type PortSource struct {
	port   io.ReadCloser
	logger zerolog.Logger

	mu      sync.Mutex
	buf     bytes.Buffer
	err     error
	closed  atomic.Bool
	dropped int
}

// NewPortSource starts draining port.
func NewPortSource(port io.ReadCloser, logger zerolog.Logger) *PortSource {
	s := &PortSource{
		port:   port,
		logger: logger,
	}
	go s.readLoop()
	return s
}

func (s *PortSource) readLoop() {
	chunk := make([]byte, 512)
	for {
		n, err := s.port.Read(chunk)

		s.mu.Lock()
		if n > 0 {
			if s.buf.Len()+n > maxBufferedBytes {
				s.dropped += s.buf.Len()
				s.buf.Reset()
			}
			s.buf.Write(chunk[:n])
		}
		if err != nil && !s.closed.Load() {
			s.err = err
		}
		s.mu.Unlock()

		if err != nil {
			return
		}
	}
}

// HasData reports whether unread bytes or a pending read error are waiting.
func (s *PortSource) HasData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len() > 0 || s.err != nil
}

// ReadAvailable returns every buffered byte. Once the buffer is empty a read
// error from the port is returned, and keeps being returned.
func (s *PortSource) ReadAvailable() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dropped > 0 {
		s.logger.Warn().Int("bytes", s.dropped).Msg("Serial buffer overflowed, discarded unread data")
		s.dropped = 0
	}

	if s.buf.Len() > 0 {
		out := make([]byte, s.buf.Len())
		copy(out, s.buf.Bytes())
		s.buf.Reset()
		return out, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, nil
}

// Discard drops every buffered byte and returns how many there were. A
// pending read error is kept.
func (s *PortSource) Discard() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.buf.Len() + s.dropped
	s.buf.Reset()
	s.dropped = 0
	return n
}

// Close closes the port. The read goroutine exits once the pending Read returns.
func (s *PortSource) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.port.Close(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}
