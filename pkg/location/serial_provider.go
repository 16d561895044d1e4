package location

import (
	"context"
	"fmt"

	"github.com/benmeehan/beacon-agent/pkg/gps"
	"github.com/rs/zerolog"
)

// SerialConfig describes a GPS receiver on a serial port.
type SerialConfig struct {
	Driver   string // "tarm" or "jacobsa"
	Port     string
	BaudRate int
	Options  []gps.ReaderOption
}

// SerialProvider is responsible for retrieving location data from a GPS
// device connected via serial port.
type SerialProvider struct {
	reader *gps.Reader
	source *gps.PortSource
}

// NewSerialProvider opens the port and starts buffering NMEA data.
func NewSerialProvider(cfg SerialConfig, logger zerolog.Logger) (*SerialProvider, error) {
	port, err := gps.OpenPort(cfg.Driver, cfg.Port, cfg.BaudRate)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("port", cfg.Port).
		Int("baud", cfg.BaudRate).
		Str("driver", cfg.Driver).
		Msg("GPS serial port opened")

	source := gps.NewPortSource(port, logger)
	return &SerialProvider{
		reader: gps.NewReader(source, logger, cfg.Options...),
		source: source,
	}, nil
}

// NewReaderProvider wraps an existing reader. The caller owns the source.
func NewReaderProvider(reader *gps.Reader) *SerialProvider {
	return &SerialProvider{reader: reader}
}

// Update blocks until the reader has a complete fix.
func (s *SerialProvider) Update(ctx context.Context) error {
	if err := s.reader.Update(ctx); err != nil {
		return fmt.Errorf("gps update: %w", err)
	}
	return nil
}

func (s *SerialProvider) Fix() gps.Fix {
	return s.reader.Fix()
}

// Close releases the serial port.
func (s *SerialProvider) Close() error {
	if s.source == nil {
		return nil
	}
	return s.source.Close()
}
