package service_registry

import (
	"errors"
	"fmt"

	"github.com/benmeehan/beacon-agent/internal/scanner"
	"github.com/benmeehan/beacon-agent/internal/services"
	"github.com/benmeehan/beacon-agent/internal/utils"
	"github.com/benmeehan/beacon-agent/pkg/ble"
	"github.com/benmeehan/beacon-agent/pkg/gps"
	"github.com/benmeehan/beacon-agent/pkg/location"
	"github.com/benmeehan/beacon-agent/pkg/restart"
	"github.com/benmeehan/beacon-agent/pkg/sensors"
	"github.com/benmeehan/beacon-agent/pkg/status"
	"github.com/benmeehan/beacon-agent/pkg/watchdog"
	"github.com/rs/zerolog"
)

// Hardware holds the acquisition drivers a cycle reads from. Location and
// Sensors are nil when disabled.
type Hardware struct {
	Scanner  services.Scanner
	Location location.Provider
	Sensors  sensors.Bus

	closers []func() error
}

// Close releases the serial port and I2C bus.
func (h *Hardware) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	return errors.Join(errs...)
}

// BuildHardware opens the radio, location source and sensors selected in config.
func BuildHardware(config *utils.Config, logger zerolog.Logger) (*Hardware, error) {
	h := &Hardware{}

	radio := ble.NewBluetoothRadio(config.Scanner.Adapter, config.Scanner.PollInterval, logger.With().Str("component", "radio").Logger())
	h.Scanner = scanner.NewBeaconScanner(radio, config.Scanner.TagName, config.Message.MaxListItems, logger.With().Str("component", "scanner").Logger())

	provider, err := buildLocation(config, logger.With().Str("component", "location").Logger())
	if err != nil {
		return nil, err
	}
	if provider != nil {
		h.Location = provider
		h.closers = append(h.closers, provider.Close)
	}

	bus, err := h.buildSensors(config, logger.With().Str("component", "sensors").Logger())
	if err != nil {
		_ = h.Close()
		return nil, err
	}
	h.Sensors = bus

	return h, nil
}

func buildLocation(config *utils.Config, logger zerolog.Logger) (location.Provider, error) {
	switch config.GPS.Source {
	case utils.GPSSourceNone, "":
		return nil, nil
	case utils.GPSSourceFixed:
		return location.NewFixedProvider(config.GPS.FixedLatitude, config.GPS.FixedLongitude), nil
	case utils.GPSSourceSerial:
		opts := []gps.ReaderOption{
			gps.WithRequiredSentences(config.GPS.RequiredSentences),
			gps.WithPollInterval(config.GPS.PollInterval),
		}
		if config.GPS.Timeout > 0 {
			opts = append(opts, gps.WithTimeout(config.GPS.Timeout))
		}
		provider, err := location.NewSerialProvider(location.SerialConfig{
			Driver:   config.GPS.Driver,
			Port:     config.GPS.Port,
			BaudRate: config.GPS.BaudRate,
			Options:  opts,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open GPS: %w", err)
		}
		return provider, nil
	case utils.GPSSourceGeolocation:
		provider, err := location.NewGoogleGeolocationProvider(config.GPS.MapsAPIKey, config.GPS.ModemIndex, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Google Geolocation provider: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown gps source %q", config.GPS.Source)
	}
}

func (h *Hardware) buildSensors(config *utils.Config, logger zerolog.Logger) (sensors.Bus, error) {
	env := config.Environment
	if !env.BME280.Enabled && !env.BH1750.Enabled {
		return nil, nil
	}

	bus, err := sensors.OpenI2C(env.I2CBus)
	if err != nil {
		return nil, err
	}
	h.closers = append(h.closers, bus.Close)

	var buses sensors.MultiBus
	if env.BME280.Enabled {
		bme, err := sensors.NewBME280(bus, env.BME280.Address, env.BME280.Humidity)
		if err != nil {
			return nil, err
		}
		h.closers = append(h.closers, bme.Close)
		buses = append(buses, bme)
		logger.Info().Uint16("address", env.BME280.Address).Bool("humidity", env.BME280.Humidity).Msg("BME280 ready")
	}
	if env.BH1750.Enabled {
		buses = append(buses, sensors.NewBH1750(bus, env.BH1750.Address))
		logger.Info().Uint16("address", env.BH1750.Address).Msg("BH1750 ready")
	}
	return buses, nil
}

// BuildDevice creates the restarter, watchdog and status indicator. The
// software watchdog restarts through the same restarter.
func BuildDevice(config *utils.Config, logger zerolog.Logger) (services.Device, error) {
	restarter, err := restart.New(config.Restart.Mode, logger.With().Str("component", "restart").Logger())
	if err != nil {
		return services.Device{}, err
	}

	var indicator status.Indicator
	switch config.Status.Backend {
	case utils.StatusBackendGPIO:
		indicator, err = status.NewGPIOIndicator(config.Status.RedPin, config.Status.GreenPin, logger)
		if err != nil {
			return services.Device{}, err
		}
	default:
		indicator = status.NewLogIndicator(logger)
	}

	wdLogger := logger.With().Str("component", "watchdog").Logger()
	var wd watchdog.Watchdog
	if config.Watchdog.Device != "" {
		wd, err = watchdog.Open(config.Watchdog.Device, config.Watchdog.Timeout, wdLogger)
		if err != nil {
			return services.Device{}, fmt.Errorf("failed to open watchdog: %w", err)
		}
	} else {
		wd = watchdog.NewSoft(config.Watchdog.Timeout, func() {
			restarter.Restart("watchdog expired")
		}, wdLogger)
	}

	return services.Device{Watchdog: wd, Indicator: indicator, Restarter: restarter}, nil
}
