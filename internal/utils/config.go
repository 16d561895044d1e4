package utils

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/benmeehan/beacon-agent/internal/constants"
	"github.com/benmeehan/beacon-agent/pkg/file"
	"github.com/benmeehan/beacon-agent/pkg/gps"
	"github.com/benmeehan/beacon-agent/pkg/restart"
)

// GPS sources.
const (
	GPSSourceNone        = "none"
	GPSSourceFixed       = "fixed"
	GPSSourceSerial      = "serial"
	GPSSourceGeolocation = "geolocation"
)

// Status indicator backends.
const (
	StatusBackendLog  = "log"
	StatusBackendGPIO = "gpio"
)

// Environment variables that override secrets from the config file.
const (
	EnvConfigPath   = "AGENT_CONFIG"
	EnvMQTTUsername = "MQTT_USERNAME"
	EnvMQTTPassword = "MQTT_PASSWORD"
	EnvMapsAPIKey   = "MAPS_API_KEY"
)

// Config represents the structure of the configuration file.
type Config struct {
	Device struct {
		ID            string `yaml:"id"`             // Device ID stamped on every message
		ApplicationID string `yaml:"application_id"` // Application (customer) ID
		IdentityFile  string `yaml:"identity_file"`  // Optional JSON file overriding the IDs
	} `yaml:"device"`

	Message struct {
		DeviceKey      string `yaml:"device_key"`      // Wire key for the device ID
		ApplicationKey string `yaml:"application_key"` // Wire key for the application ID
		MaxListItems   int    `yaml:"max_list_items"`  // Cap on beacons and tags per record, 0 for none
	} `yaml:"message"`

	MQTT struct {
		Broker            string        `yaml:"broker"`             // MQTT broker address
		ClientID          string        `yaml:"client_id"`          // MQTT client ID prefix
		Username          string        `yaml:"username"`           // Overridden by MQTT_USERNAME
		Password          string        `yaml:"password"`           // Overridden by MQTT_PASSWORD
		CACertificate     string        `yaml:"ca_certificate"`     // Path to the CA certificate
		ClientCertificate string        `yaml:"client_certificate"` // Path to the client certificate
		PrivateKey        string        `yaml:"private_key"`        // Path to the client private key
		QOS               int           `yaml:"qos"`                // QoS level for all messages
		Retained          bool          `yaml:"retained"`
		ConnectTimeout    time.Duration `yaml:"connect_timeout"`
		KeepAlive         time.Duration `yaml:"keep_alive"`
		PublishTimeout    time.Duration `yaml:"publish_timeout"`
		Topics            struct {
			Telemetry string `yaml:"telemetry"`
			Alive     string `yaml:"alive"`
			Health    string `yaml:"health"`
		} `yaml:"topics"`
	} `yaml:"mqtt"`

	Scanner struct {
		Adapter      string        `yaml:"adapter"`       // BlueZ adapter, e.g. hci0
		TagName      string        `yaml:"tag_name"`      // Local name identifying tags
		ScanTime     time.Duration `yaml:"scan_time"`     // Listening time per cycle
		PollInterval time.Duration `yaml:"poll_interval"` // Wait for the next advertisement
	} `yaml:"scanner"`

	GPS struct {
		Source            string        `yaml:"source"`             // none, fixed, serial or geolocation
		Driver            string        `yaml:"driver"`             // tarm or jacobsa
		Port              string        `yaml:"port"`               // Serial device, e.g. /dev/ttyS0
		BaudRate          int           `yaml:"baud_rate"`
		PollInterval      time.Duration `yaml:"poll_interval"`      // Sleep when the port has no data
		Timeout           time.Duration `yaml:"timeout"`            // Bound on one update, 0 for none
		RequiredSentences []string      `yaml:"required_sentences"` // Sentence codes that complete a fix
		SpeedUnit         string        `yaml:"speed_unit"`         // kph, mph or knots
		FixedLatitude     float64       `yaml:"fixed_latitude"`
		FixedLongitude    float64       `yaml:"fixed_longitude"`
		MapsAPIKey        string        `yaml:"maps_api_key"` // Overridden by MAPS_API_KEY
		ModemIndex        int           `yaml:"modem_index"`  // ModemManager index for cell towers
	} `yaml:"gps"`

	Environment struct {
		I2CBus string `yaml:"i2c_bus"` // periph bus name, empty for the first bus
		BME280 struct {
			Enabled  bool   `yaml:"enabled"`
			Address  uint16 `yaml:"address"`
			Humidity bool   `yaml:"humidity"` // false for BMP280 parts
		} `yaml:"bme280"`
		BH1750 struct {
			Enabled bool   `yaml:"enabled"`
			Address uint16 `yaml:"address"`
		} `yaml:"bh1750"`
	} `yaml:"environment"`

	Watchdog struct {
		Device  string        `yaml:"device"` // e.g. /dev/watchdog, empty for the software watchdog
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"watchdog"`

	Restart struct {
		Mode         string        `yaml:"mode"`          // reboot or exit
		After        time.Duration `yaml:"after"`         // Forced restart period, 0 disables
		FailureDelay time.Duration `yaml:"failure_delay"` // Pause between a failed cycle and the restart
	} `yaml:"restart"`

	Status struct {
		Backend  string `yaml:"backend"` // log or gpio
		RedPin   string `yaml:"red_pin"`
		GreenPin string `yaml:"green_pin"`
	} `yaml:"status"`

	Alive struct {
		Enabled  bool          `yaml:"enabled"`
		Interval time.Duration `yaml:"interval"` // 0 sends once at startup
	} `yaml:"alive"`

	Metrics struct {
		Enabled        bool          `yaml:"enabled"`
		Address        string        `yaml:"address"` // Listen address for /metrics
		HealthInterval time.Duration `yaml:"health_interval"`
		HealthTimeout  time.Duration `yaml:"health_timeout"`
		PublishHealth  bool          `yaml:"publish_health"` // Also send health messages over MQTT
		CPU            bool          `yaml:"cpu"`
		Memory         bool          `yaml:"memory"`
		Disk           bool          `yaml:"disk"`
		DiskPath       string        `yaml:"disk_path"`
		Goroutines     bool          `yaml:"goroutines"`
		Uptime         bool          `yaml:"uptime"`
	} `yaml:"metrics"`

	Logging struct {
		Level  string `yaml:"level"`  // zerolog level name
		Format string `yaml:"format"` // json or console
	} `yaml:"logging"`
}

// DefaultConfig returns the settings used for anything the file leaves out.
func DefaultConfig() *Config {
	var c Config

	c.Message.DeviceKey = "dev_id"
	c.Message.ApplicationKey = "app_id"
	c.Message.MaxListItems = constants.DefaultMaxListItems

	c.MQTT.ClientID = "beacon-agent"
	c.MQTT.QOS = 1
	c.MQTT.ConnectTimeout = 30 * time.Second
	c.MQTT.KeepAlive = 60 * time.Second
	c.MQTT.PublishTimeout = constants.DefaultPublishTimeout
	c.MQTT.Topics.Telemetry = "beacon-agent/telemetry"
	c.MQTT.Topics.Alive = "beacon-agent/alive"
	c.MQTT.Topics.Health = "beacon-agent/health"

	c.Scanner.Adapter = "hci0"
	c.Scanner.TagName = constants.DefaultTagName
	c.Scanner.ScanTime = constants.DefaultScanTime
	c.Scanner.PollInterval = 100 * time.Millisecond

	c.GPS.Source = GPSSourceNone
	c.GPS.Driver = gps.DriverTarm
	c.GPS.Port = "/dev/ttyS0"
	c.GPS.BaudRate = constants.DefaultGPSBaudRate
	c.GPS.PollInterval = constants.DefaultGPSPollInterval
	c.GPS.RequiredSentences = append([]string(nil), gps.DefaultRequiredSentences...)
	c.GPS.SpeedUnit = string(gps.UnitKPH)

	c.Environment.BME280.Address = 0x76
	c.Environment.BME280.Humidity = true
	c.Environment.BH1750.Address = 0x23

	c.Watchdog.Timeout = constants.DefaultWatchdogTimeout

	c.Restart.Mode = restart.ModeReboot
	c.Restart.After = constants.DefaultRestartAfter
	c.Restart.FailureDelay = constants.DefaultFailureDelay

	c.Status.Backend = StatusBackendLog

	c.Alive.Enabled = true

	c.Metrics.Address = ":9100"
	c.Metrics.HealthInterval = constants.DefaultHealthInterval
	c.Metrics.CPU = true
	c.Metrics.Memory = true
	c.Metrics.Disk = true
	c.Metrics.DiskPath = "/"
	c.Metrics.Uptime = true

	c.Logging.Level = "info"
	c.Logging.Format = "json"

	return &c
}

// LoadConfig loads the YAML configuration from the specified file on top of
// DefaultConfig, applies environment overrides and validates the result.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	config := DefaultConfig()
	if err := fileClient.ReadYamlFile(filename, config); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", filename, err)
	}

	config.ApplyEnv(os.LookupEnv)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filename, err)
	}
	return config, nil
}

// ApplyEnv overrides secrets with the environment variables that are set.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvMQTTUsername); ok {
		c.MQTT.Username = v
	}
	if v, ok := lookup(EnvMQTTPassword); ok {
		c.MQTT.Password = v
	}
	if v, ok := lookup(EnvMapsAPIKey); ok {
		c.GPS.MapsAPIKey = v
	}
}

// Validate rejects settings the agent cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required"))
	}
	if c.MQTT.QOS < 0 || c.MQTT.QOS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QOS))
	}
	if c.MQTT.Topics.Telemetry == "" {
		errs = append(errs, errors.New("mqtt.topics.telemetry is required"))
	}
	if (c.MQTT.ClientCertificate == "") != (c.MQTT.PrivateKey == "") {
		errs = append(errs, errors.New("mqtt.client_certificate and mqtt.private_key must be set together"))
	}
	if c.Message.DeviceKey == "" || c.Message.ApplicationKey == "" {
		errs = append(errs, errors.New("message.device_key and message.application_key must not be empty"))
	}
	if c.Message.MaxListItems < 0 {
		errs = append(errs, errors.New("message.max_list_items must not be negative"))
	}
	if c.Scanner.ScanTime <= 0 {
		errs = append(errs, errors.New("scanner.scan_time must be positive"))
	}

	switch c.GPS.Source {
	case GPSSourceNone, GPSSourceFixed:
	case GPSSourceSerial:
		if c.GPS.Port == "" {
			errs = append(errs, errors.New("gps.port is required for the serial source"))
		}
		if c.GPS.BaudRate <= 0 {
			errs = append(errs, errors.New("gps.baud_rate must be positive"))
		}
		if c.GPS.Driver != gps.DriverTarm && c.GPS.Driver != gps.DriverJacobsa {
			errs = append(errs, fmt.Errorf("unknown gps.driver %q", c.GPS.Driver))
		}
		if len(c.GPS.RequiredSentences) == 0 {
			errs = append(errs, errors.New("gps.required_sentences must not be empty"))
		}
		if len(SliceToSet(c.GPS.RequiredSentences)) != len(c.GPS.RequiredSentences) {
			errs = append(errs, errors.New("gps.required_sentences has duplicates"))
		}
	case GPSSourceGeolocation:
		if c.GPS.MapsAPIKey == "" {
			errs = append(errs, fmt.Errorf("gps.maps_api_key or %s is required for the geolocation source", EnvMapsAPIKey))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown gps.source %q", c.GPS.Source))
	}
	if _, err := gps.ParseUnit(c.GPS.SpeedUnit); err != nil {
		errs = append(errs, err)
	}

	if c.Watchdog.Timeout <= c.Scanner.ScanTime {
		errs = append(errs, fmt.Errorf("watchdog.timeout (%s) must exceed scanner.scan_time (%s)", c.Watchdog.Timeout, c.Scanner.ScanTime))
	}
	if c.Restart.Mode != restart.ModeReboot && c.Restart.Mode != restart.ModeExit {
		errs = append(errs, fmt.Errorf("unknown restart.mode %q", c.Restart.Mode))
	}
	if c.Restart.After < 0 || c.Restart.FailureDelay < 0 {
		errs = append(errs, errors.New("restart durations must not be negative"))
	}

	switch c.Status.Backend {
	case StatusBackendLog:
	case StatusBackendGPIO:
		if c.Status.RedPin == "" || c.Status.GreenPin == "" {
			errs = append(errs, errors.New("status.red_pin and status.green_pin are required for the gpio backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown status.backend %q", c.Status.Backend))
	}

	if c.Metrics.PublishHealth && c.MQTT.Topics.Health == "" {
		errs = append(errs, errors.New("mqtt.topics.health is required to publish health"))
	}
	if c.Alive.Enabled && c.MQTT.Topics.Alive == "" {
		errs = append(errs, errors.New("mqtt.topics.alive is required when alive is enabled"))
	}

	return errors.Join(errs...)
}
