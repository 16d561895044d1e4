package utils_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benmeehan/beacon-agent/internal/utils"
	"github.com/benmeehan/beacon-agent/pkg/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// TestLoadConfig_DefaultsAndOverrides tests that file values overlay the defaults.
func TestLoadConfig_DefaultsAndOverrides(t *testing.T) {
	// Setup
	path := writeConfig(t, `
device:
  id: node-7
  application_id: fleet-a
message:
  device_key: device_id
  application_key: customer
mqtt:
  broker: ssl://broker.example.com:8883
  topics:
    telemetry: fleet/telemetry
gps:
  source: serial
  port: /dev/ttyAMA0
  required_sentences: [GNGGA, GNRMC]
scanner:
  scan_time: 30s
`)
	t.Setenv(utils.EnvMQTTUsername, "agent")
	t.Setenv(utils.EnvMQTTPassword, "s3cret")

	// Execute
	cfg, err := utils.LoadConfig(path, file.NewFileService())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "node-7", cfg.Device.ID)
	assert.Equal(t, "customer", cfg.Message.ApplicationKey)
	assert.Equal(t, "fleet/telemetry", cfg.MQTT.Topics.Telemetry)
	assert.Equal(t, "beacon-agent/alive", cfg.MQTT.Topics.Alive)
	assert.Equal(t, []string{"GNGGA", "GNRMC"}, cfg.GPS.RequiredSentences)
	assert.Equal(t, 30*time.Second, cfg.Scanner.ScanTime)
	assert.Equal(t, 7200*time.Second, cfg.Restart.After)
	assert.Equal(t, 25, cfg.Message.MaxListItems)
	assert.Equal(t, "ITAG", cfg.Scanner.TagName)
	assert.Equal(t, "agent", cfg.MQTT.Username)
	assert.Equal(t, "s3cret", cfg.MQTT.Password)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := utils.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), file.NewFileService())

	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *utils.Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *utils.Config) {},
		},
		{
			name:    "missing broker",
			mutate:  func(c *utils.Config) { c.MQTT.Broker = "" },
			wantErr: "mqtt.broker is required",
		},
		{
			name:    "unknown gps source",
			mutate:  func(c *utils.Config) { c.GPS.Source = "glonass" },
			wantErr: `unknown gps.source "glonass"`,
		},
		{
			name: "duplicate sentences",
			mutate: func(c *utils.Config) {
				c.GPS.Source = utils.GPSSourceSerial
				c.GPS.RequiredSentences = []string{"GPGGA", "GPGGA"}
			},
			wantErr: "gps.required_sentences has duplicates",
		},
		{
			name:    "geolocation without key",
			mutate:  func(c *utils.Config) { c.GPS.Source = utils.GPSSourceGeolocation },
			wantErr: "MAPS_API_KEY",
		},
		{
			name:    "watchdog shorter than scan",
			mutate:  func(c *utils.Config) { c.Watchdog.Timeout = time.Minute },
			wantErr: "watchdog.timeout",
		},
		{
			name:    "bad speed unit",
			mutate:  func(c *utils.Config) { c.GPS.SpeedUnit = "furlongs" },
			wantErr: "furlongs",
		},
		{
			name:    "gpio without pins",
			mutate:  func(c *utils.Config) { c.Status.Backend = utils.StatusBackendGPIO },
			wantErr: "status.red_pin",
		},
		{
			name:    "half mutual tls",
			mutate:  func(c *utils.Config) { c.MQTT.ClientCertificate = "/etc/agent/cert.pem" },
			wantErr: "mqtt.client_certificate and mqtt.private_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := utils.DefaultConfig()
			cfg.MQTT.Broker = "tcp://localhost:1883"
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ApplyEnv_UnsetKeepsFile(t *testing.T) {
	cfg := utils.DefaultConfig()
	cfg.GPS.MapsAPIKey = "from-file"

	cfg.ApplyEnv(func(key string) (string, bool) {
		if key == utils.EnvMQTTPassword {
			return "from-env", true
		}
		return "", false
	})

	assert.Equal(t, "from-file", cfg.GPS.MapsAPIKey)
	assert.Equal(t, "from-env", cfg.MQTT.Password)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := utils.NewLogger("warn", "json", &buf)
	require.NoError(t, err)
	logger.Info().Msg("hidden")
	logger.Warn().Str("step", "scan").Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"step":"scan"`)

	_, err = utils.NewLogger("loud", "json", &buf)
	assert.Error(t, err)
	_, err = utils.NewLogger("info", "xml", &buf)
	assert.Error(t, err)
}
