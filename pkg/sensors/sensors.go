package sensors

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Sample is one environment reading. A nil field was not measured.
type Sample struct {
	Temperature *float64 // °C
	Humidity    *float64 // %RH
	Pressure    *float64 // hPa
	Lux         *float64
}

// Bus reads the attached environment sensors. Sensors that are not attached
// leave their fields nil; only a failing attached sensor returns an error.
type Bus interface {
	Read() (Sample, error)
}

// MultiBus merges the samples of several buses. The first bus reporting a
// field wins.
type MultiBus []Bus

func (m MultiBus) Read() (Sample, error) {
	var out Sample
	var errs []error
	for _, bus := range m {
		s, err := bus.Read()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = merge(out, s)
	}
	return out, errors.Join(errs...)
}

// NopBus has no sensors attached.
type NopBus struct{}

func (NopBus) Read() (Sample, error) { return Sample{}, nil }

func merge(dst, src Sample) Sample {
	if dst.Temperature == nil {
		dst.Temperature = src.Temperature
	}
	if dst.Humidity == nil {
		dst.Humidity = src.Humidity
	}
	if dst.Pressure == nil {
		dst.Pressure = src.Pressure
	}
	if dst.Lux == nil {
		dst.Lux = src.Lux
	}
	return dst
}

var (
	hostOnce sync.Once
	hostErr  error
)

// OpenI2C initializes the periph host drivers once and opens the named I2C
// bus ("" selects the first one available).
func OpenI2C(name string) (i2c.BusCloser, error) {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostErr = fmt.Errorf("periph host init: %w", err)
		}
	})
	if hostErr != nil {
		return nil, hostErr
	}

	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("i2c open %q: %w", name, err)
	}
	return bus, nil
}

func ptr(v float64) *float64 {
	return &v
}
