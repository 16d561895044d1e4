package service_registry

import (
	"errors"
	"fmt"

	"github.com/benmeehan/beacon-agent/internal/metrics_collectors"
	"github.com/benmeehan/beacon-agent/internal/models"
	"github.com/benmeehan/beacon-agent/internal/observability"
	"github.com/benmeehan/beacon-agent/internal/registry"
	"github.com/benmeehan/beacon-agent/internal/services"
	"github.com/benmeehan/beacon-agent/internal/utils"
	"github.com/benmeehan/beacon-agent/pkg/gps"
	"github.com/benmeehan/beacon-agent/pkg/identity"
	"github.com/rs/zerolog"
)

// Service is re-exported for callers that only import the registry.
type Service = registry.Service

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services    map[string]Service // Stores registered services
	serviceKeys []string           // Maintains order of service registration
	publisher   services.Publisher
	device      services.Device
	metrics     *observability.AgentCollector
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
// metrics may be nil.
func NewServiceRegistry(publisher services.Publisher, device services.Device, metrics *observability.AgentCollector,
	logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:  make(map[string]Service),
		publisher: publisher,
		device:    device,
		metrics:   metrics,
		Logger:    logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Names returns the registered services in start order.
func (sr *ServiceRegistry) Names() []string {
	return append([]string(nil), sr.serviceKeys...)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			// Stop already started services before returning
			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices initializes and registers enabled services based on configuration.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config, deviceInfo identity.DeviceInfoInterface, hw *Hardware) error {
	keys := models.IdentityKeys{Device: config.Message.DeviceKey, Application: config.Message.ApplicationKey}

	// Ordered service definitions with inline constructors. The cycle starts
	// last so its first publish follows the alive message.
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (Service, error)
	}{
		{
			name:    "health",
			enabled: config.Metrics.Enabled,
			constructor: func() (Service, error) {
				var publisher services.Publisher
				if config.Metrics.PublishHealth {
					publisher = sr.publisher
				}
				return services.NewHealthService(
					config.Metrics.HealthInterval,
					config.Metrics.HealthTimeout,
					metrics_collectors.NewDefaultRegistry(metrics_collectors.Selection{
						CPU:        config.Metrics.CPU,
						Memory:     config.Metrics.Memory,
						Disk:       config.Metrics.Disk,
						DiskPath:   config.Metrics.DiskPath,
						Goroutines: config.Metrics.Goroutines,
						Uptime:     config.Metrics.Uptime,
					}, sr.Logger.With().Str("component", "health").Logger()),
					sr.metrics,
					publisher,
					deviceInfo,
					keys,
					sr.Logger.With().Str("service", "health").Logger(),
				), nil
			},
		},
		{
			name:    "alive",
			enabled: config.Alive.Enabled,
			constructor: func() (Service, error) {
				return services.NewAliveService(
					config.Alive.Interval,
					deviceInfo,
					keys,
					sr.publisher,
					sr.Logger.With().Str("service", "alive").Logger(),
				), nil
			},
		},
		{
			name:    "reset",
			enabled: config.Restart.After > 0,
			constructor: func() (Service, error) {
				if sr.device.Restarter == nil {
					return nil, errors.New("reset service needs a restarter")
				}
				return services.NewResetService(
					config.Restart.After,
					sr.device.Restarter,
					sr.Logger.With().Str("service", "reset").Logger(),
				), nil
			},
		},
		{
			name:    "cycle",
			enabled: true,
			constructor: func() (Service, error) {
				if hw == nil || hw.Scanner == nil {
					return nil, errors.New("cycle service needs a scanner")
				}
				unit, err := gps.ParseUnit(config.GPS.SpeedUnit)
				if err != nil {
					return nil, err
				}
				return services.NewCycleService(
					hw.Scanner,
					hw.Location,
					hw.Sensors,
					sr.publisher,
					sr.device,
					deviceInfo,
					sr.metrics,
					services.CycleConfig{
						ScanTime:     config.Scanner.ScanTime,
						SpeedUnit:    unit,
						FailureDelay: config.Restart.FailureDelay,
						IdentityKeys: keys,
					},
					sr.Logger.With().Str("service", "cycle").Logger(),
				), nil
			},
		},
	}

	// Register services in the predefined order
	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if svc.enabled {
			serviceInstance, err := svc.constructor()
			if err != nil {
				sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
				return err
			}
			sr.RegisterService(svc.name, serviceInstance)
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}
