package status_test

import (
	"testing"

	"github.com/benmeehan/beacon-agent/pkg/status"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestGPIOIndicator_Set(t *testing.T) {
	red := &gpiotest.Pin{N: "red"}
	green := &gpiotest.Pin{N: "green"}
	ind := status.NewGPIOIndicatorWithPins(red, green, zerolog.Nop())

	tests := []struct {
		status     status.Status
		red, green gpio.Level
	}{
		{status.Warning, gpio.High, gpio.High},
		{status.OK, gpio.Low, gpio.High},
		{status.Error, gpio.High, gpio.Low},
		{status.Off, gpio.Low, gpio.Low},
	}

	for _, tt := range tests {
		ind.Set(tt.status)
		assert.Equal(t, tt.red, red.Read(), "red for %s", tt.status)
		assert.Equal(t, tt.green, green.Read(), "green for %s", tt.status)
	}
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "warning", status.Warning.String())
	assert.Equal(t, "error", status.Error.String())
	assert.Equal(t, "status(9)", status.Status(9).String())
}
