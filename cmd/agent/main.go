package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benmeehan/beacon-agent/internal/models"
	"github.com/benmeehan/beacon-agent/internal/observability"
	"github.com/benmeehan/beacon-agent/internal/publisher"
	"github.com/benmeehan/beacon-agent/internal/service_registry"
	"github.com/benmeehan/beacon-agent/internal/utils"
	"github.com/benmeehan/beacon-agent/pkg/file"
	"github.com/benmeehan/beacon-agent/pkg/identity"
	"github.com/benmeehan/beacon-agent/pkg/mqtt"
	"github.com/benmeehan/beacon-agent/pkg/status"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configFlag := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	bootLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Secrets may live in a .env next to the binary
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		bootLogger.Warn().Err(err).Msg("Failed to read .env")
	}

	configPath := *configFlag
	if configPath == "" {
		configPath = os.Getenv(utils.EnvConfigPath)
	}
	if configPath == "" {
		configPath = defaultConfigPath
	}

	// Load configuration from file
	fileClient := file.NewFileService()
	config, err := utils.LoadConfig(configPath, fileClient)
	if err != nil {
		bootLogger.Fatal().Err(err).Str("path", configPath).Msg("Failed to load configuration")
	}

	logger, err := utils.NewLogger(config.Logging.Level, config.Logging.Format, os.Stdout)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("Failed to set up logging")
	}

	if err := run(config, fileClient, logger); err != nil {
		logger.Fatal().Err(err).Msg("Agent stopped with error")
	}
}

func run(config *utils.Config, fileClient file.FileOperations, logger zerolog.Logger) error {
	// Generate a unique MQTT Client ID by appending a UUID
	config.MQTT.ClientID = config.MQTT.ClientID + "-" + uuid.New().String()
	logger.Info().Str("client_id", config.MQTT.ClientID).Msg("Using MQTT Client ID")

	// Initialize DeviceInfo
	deviceInfo := identity.NewDeviceInfo(config.Device.IdentityFile, identity.Identity{
		DeviceID:      config.Device.ID,
		ApplicationID: config.Device.ApplicationID,
	}, fileClient)
	if err := deviceInfo.LoadDeviceInfo(); err != nil {
		return err
	}
	logger = logger.With().Str("device_id", deviceInfo.GetDeviceID()).Logger()

	device, err := service_registry.BuildDevice(config, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := device.Watchdog.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close watchdog")
		}
	}()
	device.Indicator.Set(status.Warning)

	// Initialize the shared MQTT connection
	mqttService := mqtt.NewMqttService(fileClient, logger.With().Str("component", "mqtt").Logger())
	err = mqttService.Initialize(mqtt.Options{
		Broker:            config.MQTT.Broker,
		ClientID:          config.MQTT.ClientID,
		Username:          config.MQTT.Username,
		Password:          config.MQTT.Password,
		CACertificate:     config.MQTT.CACertificate,
		ClientCertificate: config.MQTT.ClientCertificate,
		PrivateKey:        config.MQTT.PrivateKey,
		ConnectTimeout:    config.MQTT.ConnectTimeout,
		KeepAlive:         config.MQTT.KeepAlive,
	})
	if err != nil {
		device.Indicator.Set(status.Error)
		return err
	}
	defer mqttService.Disconnect(250)

	var collector *observability.AgentCollector
	var metricsServer *http.Server
	if config.Metrics.Enabled {
		collector, err = observability.NewAgentCollector(nil)
		if err != nil {
			return err
		}
		metricsServer = serveMetrics(config.Metrics.Address, collector, logger)
	}

	pub := publisher.NewMQTTPublisher(mqttService, publisher.Options{
		Topics: map[models.Kind]string{
			models.KindTelemetry: config.MQTT.Topics.Telemetry,
			models.KindAlive:     config.MQTT.Topics.Alive,
			models.KindHealth:    config.MQTT.Topics.Health,
		},
		QOS:      byte(config.MQTT.QOS),
		Retained: config.MQTT.Retained,
		Timeout:  config.MQTT.PublishTimeout,
	}, logger.With().Str("component", "publisher").Logger())

	hw, err := service_registry.BuildHardware(config, logger)
	if err != nil {
		device.Indicator.Set(status.Error)
		return err
	}
	defer func() {
		if err := hw.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to release hardware")
		}
	}()

	// Create a new service registry to manage services
	serviceRegistry := service_registry.NewServiceRegistry(pub, device, collector, logger)
	if err := serviceRegistry.RegisterServices(config, deviceInfo, hw); err != nil {
		return err
	}
	if err := serviceRegistry.StartServices(); err != nil {
		device.Indicator.Set(status.Error)
		return err
	}
	logger.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stopCh

	logger.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")
	stopErr := serviceRegistry.StopServices()

	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Failed to stop metrics server")
		}
	}
	device.Indicator.Set(status.Off)
	return stopErr
}

func serveMetrics(addr string, collector *observability.AgentCollector, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("address", addr).Msg("Serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return server
}
