package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/beacon-agent/pkg/restart"
	"github.com/rs/zerolog"
)

// ResetService forces a restart once After has elapsed since Start,
// regardless of cycle health.
type ResetService struct {
	After     time.Duration
	Restarter restart.Restarter
	Logger    zerolog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// NewResetService initializes a new ResetService.
func NewResetService(after time.Duration, restarter restart.Restarter, logger zerolog.Logger) *ResetService {
	return &ResetService{
		After:     after,
		Restarter: restarter,
		Logger:    logger,
	}
}

// Start arms the restart timer.
func (r *ResetService) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil {
		r.Logger.Warn().Msg("ResetService is already running")
		return errors.New("reset service is already running")
	}
	if r.After <= 0 {
		return fmt.Errorf("invalid restart delay %s", r.After)
	}

	r.timer = time.AfterFunc(r.After, r.fire)

	r.Logger.Info().Dur("after", r.After).Msg("ResetService started successfully")
	return nil
}

// Stop disarms the restart timer.
func (r *ResetService) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer == nil {
		r.Logger.Warn().Msg("ResetService is not running")
		return errors.New("reset service is not running")
	}

	r.timer.Stop()
	r.timer = nil

	r.Logger.Info().Msg("ResetService stopped successfully")
	return nil
}

func (r *ResetService) fire() {
	r.Logger.Warn().Dur("after", r.After).Msg("Scheduled restart")
	r.Restarter.Restart(fmt.Sprintf("scheduled restart after %s", r.After))
}
