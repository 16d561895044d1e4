package restart

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Restart modes.
const (
	ModeReboot = "reboot"
	ModeExit   = "exit"
)

// Restarter performs a full restart. Restart does not return on success.
type Restarter interface {
	Restart(reason string)
}

// New returns the restarter for mode. "exit" relies on the service manager
// to start the agent again.
func New(mode string, logger zerolog.Logger) (Restarter, error) {
	switch mode {
	case "", ModeReboot:
		return NewReboot(logger), nil
	case ModeExit:
		return NewExit(1, logger), nil
	default:
		return nil, fmt.Errorf("unknown restart mode %q", mode)
	}
}

// Reboot restarts the whole machine.
type Reboot struct {
	logger zerolog.Logger
	once   sync.Once
	reboot func() error
	exit   func(int)
}

func NewReboot(logger zerolog.Logger) *Reboot {
	return &Reboot{logger: logger, reboot: reboot, exit: os.Exit}
}

// Restart syncs filesystems and reboots. If the reboot syscall fails the
// process exits instead. Concurrent callers after the first are ignored.
func (r *Reboot) Restart(reason string) {
	r.once.Do(func() {
		r.logger.Warn().Str("reason", reason).Msg("Rebooting device")
		if err := r.reboot(); err != nil {
			r.logger.Error().Err(err).Msg("Failed to reboot, exiting instead")
			r.exit(1)
		}
	})
}

// Exit terminates the process with a fixed code.
type Exit struct {
	code   int
	logger zerolog.Logger
	once   sync.Once
	exit   func(int)
}

func NewExit(code int, logger zerolog.Logger) *Exit {
	return &Exit{code: code, logger: logger, exit: os.Exit}
}

func (e *Exit) Restart(reason string) {
	e.once.Do(func() {
		e.logger.Warn().Str("reason", reason).Int("code", e.code).Msg("Exiting for restart")
		e.exit(e.code)
	})
}
