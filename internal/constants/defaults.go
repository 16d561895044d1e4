package constants

import "time"

const (
	// DefaultTagName is the complete local name advertised by iTAG key finders.
	DefaultTagName = "ITAG"

	// DefaultScanTime is how long each cycle listens for advertisements.
	DefaultScanTime = 240 * time.Second

	// DefaultMaxListItems caps the beacon and tag lists in one record.
	DefaultMaxListItems = 25

	// DefaultGPSPollInterval is the sleep between empty serial polls.
	DefaultGPSPollInterval = 2 * time.Second

	// DefaultGPSBaudRate matches u-blox NEO-6M factory settings.
	DefaultGPSBaudRate = 9600

	// DefaultWatchdogTimeout is the hardware keep-alive deadline.
	DefaultWatchdogTimeout = 5 * time.Minute

	// DefaultRestartAfter forces a full restart for hygiene.
	DefaultRestartAfter = 7200 * time.Second

	// DefaultFailureDelay is the pause between a failed cycle and the restart.
	DefaultFailureDelay = 10 * time.Second

	// DefaultPublishTimeout bounds a single MQTT publish.
	DefaultPublishTimeout = 10 * time.Second

	// DefaultHealthInterval is the device health sampling period.
	DefaultHealthInterval = 60 * time.Second
)
