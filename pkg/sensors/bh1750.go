package sensors

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// DefaultBH1750Address is the address with ADDR pulled low.
const DefaultBH1750Address = 0x23

const (
	bh1750PowerOn          = 0x01
	bh1750OneTimeHighRes   = 0x20
	bh1750MeasurementDelay = 180 * time.Millisecond
	bh1750CountsPerLux     = 1.2
)

// BH1750 reads ambient light from a ROHM BH1750 in one-time high resolution
// mode; the chip powers down after each measurement.
type BH1750 struct {
	dev   *i2c.Dev
	sleep func(time.Duration)
}

// NewBH1750 binds the sensor at addr on bus. The chip is not probed until
// the first Read.
func NewBH1750(bus i2c.Bus, addr uint16) *BH1750 {
	if addr == 0 {
		addr = DefaultBH1750Address
	}
	return &BH1750{
		dev:   &i2c.Dev{Bus: bus, Addr: addr},
		sleep: time.Sleep,
	}
}

func (b *BH1750) Read() (Sample, error) {
	if err := b.dev.Tx([]byte{bh1750PowerOn}, nil); err != nil {
		return Sample{}, fmt.Errorf("bh1750 power on: %w", err)
	}
	if err := b.dev.Tx([]byte{bh1750OneTimeHighRes}, nil); err != nil {
		return Sample{}, fmt.Errorf("bh1750 start measurement: %w", err)
	}

	b.sleep(bh1750MeasurementDelay)

	var raw [2]byte
	if err := b.dev.Tx(nil, raw[:]); err != nil {
		return Sample{}, fmt.Errorf("bh1750 read: %w", err)
	}

	counts := uint16(raw[0])<<8 | uint16(raw[1])
	return Sample{Lux: ptr(float64(counts) / bh1750CountsPerLux)}, nil
}
