package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/beacon-agent/internal/models"
	"github.com/benmeehan/beacon-agent/pkg/identity"
	"github.com/rs/zerolog"
)

// AliveService announces the agent on startup and, when Interval is set,
// periodically afterwards.
type AliveService struct {
	Interval     time.Duration
	DeviceInfo   identity.DeviceInfoInterface
	IdentityKeys models.IdentityKeys
	Publisher    Publisher
	Logger       zerolog.Logger

	now    func() time.Time
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAliveService initializes a new AliveService. A zero interval sends a
// single message on Start.
func NewAliveService(interval time.Duration, deviceInfo identity.DeviceInfoInterface, keys models.IdentityKeys,
	publisher Publisher, logger zerolog.Logger) *AliveService {

	return &AliveService{
		Interval:     interval,
		DeviceInfo:   deviceInfo,
		IdentityKeys: keys,
		Publisher:    publisher,
		Logger:       logger,
		now:          time.Now,
	}
}

// Start launches the alive loop in a separate goroutine.
func (a *AliveService) Start() error {
	if a.ctx != nil {
		a.Logger.Warn().Msg("AliveService is already running")
		return errors.New("alive service is already running")
	}

	a.ctx, a.cancel = context.WithCancel(context.Background())

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.runAliveLoop()
	}()

	a.Logger.Info().Dur("interval", a.Interval).Msg("AliveService started successfully")
	return nil
}

// Stop gracefully stops the alive service.
func (a *AliveService) Stop() error {
	if a.ctx == nil {
		a.Logger.Warn().Msg("AliveService is not running")
		return errors.New("alive service is not running")
	}

	a.cancel()
	a.wg.Wait()

	a.ctx = nil
	a.cancel = nil

	a.Logger.Info().Msg("AliveService stopped successfully")
	return nil
}

func (a *AliveService) runAliveLoop() {
	a.publish()
	if a.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(a.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.publish()
		case <-a.ctx.Done():
			a.Logger.Info().Msg("AliveService stopping gracefully")
			return
		}
	}
}

func (a *AliveService) publish() {
	msg := &models.Alive{Header: models.NewHeader(a.DeviceInfo.GetDeviceIdentity(), a.IdentityKeys, a.now())}

	if err := a.Publisher.Publish(a.ctx, msg); err != nil {
		a.Logger.Error().Err(err).Msg("Failed to publish alive message")
		return
	}
	a.Logger.Debug().Msg("Alive message published successfully")
}
