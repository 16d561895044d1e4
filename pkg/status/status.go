package status

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Status is the device state shown to someone standing next to it.
type Status int

const (
	Off Status = iota
	Warning
	OK
	Error
)

func (s Status) String() string {
	switch s {
	case Off:
		return "off"
	case Warning:
		return "warning"
	case OK:
		return "ok"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Indicator displays a Status.
type Indicator interface {
	Set(s Status)
}

// LogIndicator records status changes in the log only.
type LogIndicator struct {
	logger zerolog.Logger
	mu     sync.Mutex
	last   Status
}

func NewLogIndicator(logger zerolog.Logger) *LogIndicator {
	return &LogIndicator{logger: logger, last: Off}
}

func (l *LogIndicator) Set(s Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s == l.last {
		return
	}
	l.logger.Info().Stringer("from", l.last).Stringer("to", s).Msg("Status changed")
	l.last = s
}

// GPIOIndicator drives a red/green LED pair. Warning lights both (amber on a
// bicolour LED).
type GPIOIndicator struct {
	red    gpio.PinOut
	green  gpio.PinOut
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewGPIOIndicator looks up the pins by name, e.g. "GPIO17".
func NewGPIOIndicator(redPin, greenPin string, logger zerolog.Logger) (*GPIOIndicator, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	red := gpioreg.ByName(redPin)
	if red == nil {
		return nil, fmt.Errorf("gpio pin %q not found", redPin)
	}
	green := gpioreg.ByName(greenPin)
	if green == nil {
		return nil, fmt.Errorf("gpio pin %q not found", greenPin)
	}
	return NewGPIOIndicatorWithPins(red, green, logger), nil
}

func NewGPIOIndicatorWithPins(red, green gpio.PinOut, logger zerolog.Logger) *GPIOIndicator {
	return &GPIOIndicator{red: red, green: green, logger: logger}
}

func (g *GPIOIndicator) Set(s Status) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var red, green gpio.Level
	switch s {
	case Warning:
		red, green = gpio.High, gpio.High
	case OK:
		green = gpio.High
	case Error:
		red = gpio.High
	}

	if err := g.red.Out(red); err != nil {
		g.logger.Error().Err(err).Stringer("status", s).Msg("Failed to set red LED")
	}
	if err := g.green.Out(green); err != nil {
		g.logger.Error().Err(err).Stringer("status", s).Msg("Failed to set green LED")
	}
}
