package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
)

// DefaultBME280Address is the address with SDO pulled low.
const DefaultBME280Address = 0x76

// Senser is satisfied by *bmxx80.Dev.
type Senser interface {
	Sense(e *physic.Env) error
	Halt() error
}

// BME280 reads temperature, pressure and, on the BME variant, humidity from a
// Bosch BMx280. The BMP280 has no humidity sensor and reports zero, so
// humidity is only trusted when hasHumidity is set.
type BME280 struct {
	dev         Senser
	hasHumidity bool
}

// NewBME280 probes the chip at addr on bus.
func NewBME280(bus i2c.Bus, addr uint16, hasHumidity bool) (*BME280, error) {
	if addr == 0 {
		addr = DefaultBME280Address
	}
	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("bme280 init at 0x%02x: %w", addr, err)
	}
	return NewBME280WithDevice(dev, hasHumidity), nil
}

// NewBME280WithDevice wraps an already initialized device.
func NewBME280WithDevice(dev Senser, hasHumidity bool) *BME280 {
	return &BME280{dev: dev, hasHumidity: hasHumidity}
}

func (b *BME280) Read() (Sample, error) {
	var e physic.Env
	if err := b.dev.Sense(&e); err != nil {
		return Sample{}, fmt.Errorf("bme280 sense: %w", err)
	}

	s := Sample{
		Temperature: ptr(e.Temperature.Celsius()),
		Pressure:    ptr(float64(e.Pressure) / float64(100*physic.Pascal)),
	}
	if b.hasHumidity {
		s.Humidity = ptr(float64(e.Humidity) / float64(physic.PercentRH))
	}
	return s, nil
}

// Close puts the chip to sleep.
func (b *BME280) Close() error {
	return b.dev.Halt()
}
