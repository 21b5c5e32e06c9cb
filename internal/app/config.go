package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"gpsnmea/internal/frame"
	"gpsnmea/internal/publish"
)

// Default configuration constants
const (
	DefaultSerialPort      = "/dev/ttyAMA0"
	DefaultBaudRate        = 9600
	DefaultBufferSize      = frame.DefaultBufferSize
	DefaultTimezoneOffset  = 1 // hours added to UTC
	DefaultTrackInterval   = 1 * time.Second
	DefaultReportInterval  = 30 * time.Second
	DefaultPublishInterval = publish.DefaultInterval
	DefaultMQTTTopic       = publish.DefaultTopic
	DefaultMQTTClientID    = "gpsnmea"

	MinBufferSize = 8
	MaxBufferSize = 4096
	MaxTimezone   = 23
)

// Config holds application configuration
type Config struct {
	SerialPort  string        `yaml:"serial_port"`
	BaudRate    int           `yaml:"baud_rate"`
	ReplayFile  string        `yaml:"replay_file"`
	ReplayDelay time.Duration `yaml:"replay_delay"`

	BufferSize     int `yaml:"buffer_size"`
	TimezoneOffset int `yaml:"timezone_offset"`

	LogDir           string        `yaml:"log_dir"`
	LogRotateUTC     bool          `yaml:"log_rotate_utc"`
	LogRetentionDays int           `yaml:"log_retention_days"`
	TrackInterval    time.Duration `yaml:"track_interval"`
	ReportInterval   time.Duration `yaml:"report_interval"`

	MetricsAddr     string        `yaml:"metrics_addr"`
	MQTTBroker      string        `yaml:"mqtt_broker"`
	MQTTTopic       string        `yaml:"mqtt_topic"`
	MQTTClientID    string        `yaml:"mqtt_client_id"`
	PublishInterval time.Duration `yaml:"publish_interval"`

	Verbose     bool `yaml:"verbose"`
	ShowVersion bool `yaml:"-"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		SerialPort:      DefaultSerialPort,
		BaudRate:        DefaultBaudRate,
		BufferSize:      DefaultBufferSize,
		TimezoneOffset:  DefaultTimezoneOffset,
		LogDir:          "./logs",
		LogRotateUTC:    true,
		TrackInterval:   DefaultTrackInterval,
		ReportInterval:  DefaultReportInterval,
		MQTTTopic:       DefaultMQTTTopic,
		MQTTClientID:    DefaultMQTTClientID,
		PublishInterval: DefaultPublishInterval,
	}
}

// LoadConfigFile reads a YAML file on top of base. Keys missing from the
// file keep the value they have in base.
func LoadConfigFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.ShowVersion = base.ShowVersion
	return cfg, nil
}

// Validate rejects values the decoder cannot run with.
func (c Config) Validate() error {
	var errs []error

	if c.SerialPort == "" && c.ReplayFile == "" {
		errs = append(errs, errors.New("a serial port or a replay file is required"))
	}
	if c.BaudRate <= 0 {
		errs = append(errs, fmt.Errorf("baud rate must be positive, got %d", c.BaudRate))
	}
	if c.BufferSize < MinBufferSize || c.BufferSize > MaxBufferSize {
		errs = append(errs, fmt.Errorf("buffer size must be between %d and %d, got %d", MinBufferSize, MaxBufferSize, c.BufferSize))
	}
	if c.TimezoneOffset < -MaxTimezone || c.TimezoneOffset > MaxTimezone {
		errs = append(errs, fmt.Errorf("timezone offset must be between %d and %d hours, got %d", -MaxTimezone, MaxTimezone, c.TimezoneOffset))
	}
	if c.ReplayDelay < 0 {
		errs = append(errs, fmt.Errorf("replay delay must not be negative, got %s", c.ReplayDelay))
	}
	if c.LogRetentionDays < 0 {
		errs = append(errs, fmt.Errorf("log retention must not be negative, got %d days", c.LogRetentionDays))
	}
	intervals := []struct {
		name  string
		value time.Duration
	}{
		{"track interval", c.TrackInterval},
		{"report interval", c.ReportInterval},
		{"publish interval", c.PublishInterval},
	}
	for _, iv := range intervals {
		if iv.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", iv.name, iv.value))
		}
	}

	return errors.Join(errs...)
}
