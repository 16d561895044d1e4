package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/beacon-agent/internal/constants"
	"github.com/benmeehan/beacon-agent/internal/models"
	"github.com/benmeehan/beacon-agent/internal/observability"
	"github.com/benmeehan/beacon-agent/pkg/gps"
	"github.com/benmeehan/beacon-agent/pkg/identity"
	"github.com/benmeehan/beacon-agent/pkg/location"
	"github.com/benmeehan/beacon-agent/pkg/restart"
	"github.com/benmeehan/beacon-agent/pkg/sensors"
	"github.com/benmeehan/beacon-agent/pkg/status"
	"github.com/benmeehan/beacon-agent/pkg/watchdog"
	"github.com/rs/zerolog"
)

// Publisher sends messages to the backend.
type Publisher interface {
	Publish(ctx context.Context, msg models.Message) error
}

// Scanner collects BLE fingerprints for one cycle.
type Scanner interface {
	Start(ctx context.Context, timeout time.Duration) error
	Stop()
	Reset()
	Beacons() []string
	Tags() []string
	// MaxListItems caps the beacon and tag lists of a record, 0 for none.
	MaxListItems() int
}

// Device holds the runtime handles shared by the cycle and safety timers.
type Device struct {
	Watchdog  watchdog.Watchdog
	Indicator status.Indicator
	Restarter restart.Restarter
}

// CycleConfig tunes CycleService.
type CycleConfig struct {
	ScanTime     time.Duration
	SpeedUnit    gps.Unit
	FailureDelay time.Duration
	IdentityKeys models.IdentityKeys
}

// CycleService runs the acquisition loop: scan, GPS update, sensor read,
// compose, publish, reset. Any step error stops the loop and restarts the
// device after FailureDelay.
type CycleService struct {
	scanner    Scanner
	location   location.Provider // nil: no GPS block
	sensors    sensors.Bus       // nil: no environment block
	publisher  Publisher
	device     Device
	deviceInfo identity.DeviceInfoInterface
	metrics    *observability.AgentCollector
	cfg        CycleConfig
	logger     zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCycleService wires the cycle. location, sensorBus and metrics may be nil.
func NewCycleService(
	scanner Scanner,
	loc location.Provider,
	sensorBus sensors.Bus,
	publisher Publisher,
	device Device,
	deviceInfo identity.DeviceInfoInterface,
	metrics *observability.AgentCollector,
	cfg CycleConfig,
	logger zerolog.Logger,
) *CycleService {
	if cfg.ScanTime == 0 {
		cfg.ScanTime = constants.DefaultScanTime
	}
	if cfg.SpeedUnit == "" {
		cfg.SpeedUnit = gps.UnitKPH
	}
	if device.Watchdog == nil {
		device.Watchdog = watchdog.Nop{}
	}
	if device.Indicator == nil {
		device.Indicator = status.NewLogIndicator(logger)
	}

	return &CycleService{
		scanner:    scanner,
		location:   loc,
		sensors:    sensorBus,
		publisher:  publisher,
		device:     device,
		deviceInfo: deviceInfo,
		metrics:    metrics,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		sleep:      sleepContext,
	}
}

// Start launches the cycle loop in a separate goroutine.
func (c *CycleService) Start() error {
	if c.ctx != nil {
		c.logger.Warn().Msg("CycleService is already running")
		return errors.New("cycle service is already running")
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.device.Indicator.Set(status.Warning)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runCycleLoop(c.ctx)
	}()

	c.logger.Info().Dur("scan_time", c.cfg.ScanTime).Msg("CycleService started successfully")
	return nil
}

// Stop cancels the running cycle and waits for the loop to exit.
func (c *CycleService) Stop() error {
	if c.ctx == nil {
		c.logger.Warn().Msg("CycleService is not running")
		return errors.New("cycle service is not running")
	}

	c.cancel()
	c.scanner.Stop()
	c.wg.Wait()

	c.ctx = nil
	c.cancel = nil

	c.logger.Info().Msg("CycleService stopped successfully")
	return nil
}

func (c *CycleService) runCycleLoop(ctx context.Context) {
	for ctx.Err() == nil {
		err := c.RunCycle(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			c.logger.Info().Msg("CycleService stopping gracefully")
			return
		}
		c.fail(ctx, err)
		return
	}
}

// fail applies the failure policy: error status, log, pause, restart.
func (c *CycleService) fail(ctx context.Context, err error) {
	c.device.Indicator.Set(status.Error)
	c.logger.Error().Err(err).Dur("restart_in", c.cfg.FailureDelay).Msg("Cycle failed, restarting device")

	if c.cfg.FailureDelay > 0 {
		if sleepErr := c.sleep(ctx, c.cfg.FailureDelay); sleepErr != nil {
			c.logger.Info().Msg("Shutdown requested, skipping restart")
			return
		}
	}
	if c.device.Restarter != nil {
		c.device.Restarter.Restart(fmt.Sprintf("cycle failed: %v", err))
	}
}

// RunCycle performs one scan→GPS→sensors→compose→publish→reset pass.
func (c *CycleService) RunCycle(ctx context.Context) (err error) {
	start := time.Now()
	result := constants.CycleResultPublished
	beacons, tags := 0, 0

	defer func() {
		c.step(constants.StepReset, func() error {
			c.scanner.Stop()
			c.scanner.Reset()
			return nil
		})

		switch {
		case err != nil && ctx.Err() != nil:
			result = constants.CycleResultCancelled
		case err != nil:
			result = constants.CycleResultFailed
		}
		c.metrics.ObserveCycle(result, time.Since(start))
		c.logger.Info().
			Str("result", result).
			Int("beacons", beacons).
			Int("tags", tags).
			Dur("duration", time.Since(start)).
			Msg("Cycle finished")
	}()

	if err := c.step(constants.StepScan, func() error {
		return c.scanner.Start(ctx, c.cfg.ScanTime)
	}); err != nil {
		return err
	}
	beaconList, tagList := c.scanner.Beacons(), c.scanner.Tags()
	beacons, tags = len(beaconList), len(tagList)
	c.metrics.SetScanCounts(beacons, tags)

	var fix *gps.Fix
	if c.location != nil {
		if err := c.step(constants.StepGPSUpdate, func() error {
			err := c.location.Update(ctx)
			if errors.Is(err, gps.ErrFixIncomplete) && ctx.Err() == nil {
				c.logger.Warn().Err(err).Msg("Publishing partial GPS fix")
				c.metrics.IncGPSIncomplete()
				return nil
			}
			return err
		}); err != nil {
			return err
		}
		f := c.location.Fix()
		fix = &f
	}

	var sample *sensors.Sample
	if c.sensors != nil {
		if err := c.step(constants.StepSensorRead, func() error {
			s, err := c.sensors.Read()
			if err != nil {
				return err
			}
			sample = &s
			return nil
		}); err != nil {
			return err
		}
	}

	var record *models.Record
	_ = c.step(constants.StepCompose, func() error {
		record = c.compose(fix, sample, beaconList, tagList)
		return nil
	})

	if err := c.step(constants.StepPublish, func() error {
		return c.publisher.Publish(ctx, record)
	}); err != nil {
		return err
	}

	c.device.Indicator.Set(status.OK)
	return nil
}

func (c *CycleService) compose(fix *gps.Fix, sample *sensors.Sample, beacons, tags []string) *models.Record {
	var env *models.EnvironmentReading
	if sample != nil {
		env = models.BuildEnvironment(*sample)
	}
	var gpsBlock *models.GPSReading
	if fix != nil {
		gpsBlock = models.BuildGPS(*fix, c.cfg.SpeedUnit)
	}
	record := models.BuildRecord(c.deviceInfo.GetDeviceIdentity(), c.cfg.IdentityKeys, c.now(), env, gpsBlock, beacons, tags)

	limit := c.scanner.MaxListItems()
	if limit > 0 && (len(beacons) > limit || len(tags) > limit) {
		c.logger.Warn().
			Int("beacons", len(beacons)).
			Int("tags", len(tags)).
			Int("max", limit).
			Msg("Truncating fingerprint lists")
		record = record.Limit(limit)
	}
	return record
}

// step feeds the watchdog around fn and records its duration.
func (c *CycleService) step(name string, fn func() error) error {
	c.feed()
	start := time.Now()
	err := fn()
	c.metrics.ObserveStep(name, time.Since(start))
	c.feed()

	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	c.logger.Debug().Str("step", name).Dur("duration", time.Since(start)).Msg("Cycle step done")
	return nil
}

func (c *CycleService) feed() {
	if err := c.device.Watchdog.Feed(); err != nil {
		c.logger.Error().Err(err).Msg("Failed to feed watchdog")
		return
	}
	c.metrics.IncWatchdogFeeds()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
