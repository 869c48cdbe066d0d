// Package config loads the gesturecast YAML configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete gesturecast configuration
type Config struct {
	ServerURL   string            `yaml:"server_url"` // origin of the classification service
	Listen      string            `yaml:"listen"`     // local viewer/API address, empty disables
	StaticDir   string            `yaml:"static_dir"`
	DataDir     string            `yaml:"data_dir"`
	Autostart   bool              `yaml:"autostart"` // start the camera on launch
	Tray        bool              `yaml:"tray"`
	Camera      CameraConfig      `yaml:"camera"`
	Detector    DetectorConfig    `yaml:"detector"`
	Stream      StreamConfig      `yaml:"stream"`
	ErrorLabels map[string]string `yaml:"error_labels"` // service error kind -> label text
	RawLog      RawLogConfig      `yaml:"raw_log"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
}

// CameraConfig selects the capture device
type CameraConfig struct {
	DeviceID int `yaml:"device_id"`
	Width    int `yaml:"width"`
	Height   int `yaml:"height"`
}

// DetectorConfig contains hand landmark detector settings
type DetectorConfig struct {
	MaxHands        int           `yaml:"max_hands"`
	MinConfidence   float64       `yaml:"min_confidence"`
	MinTrackingConf float64       `yaml:"min_tracking_conf"`
	Script          string        `yaml:"script"` // empty searches the default locations
	Python          string        `yaml:"python"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
}

// StreamConfig contains service connection settings
type StreamConfig struct {
	ReconnectDelay   time.Duration `yaml:"reconnect_delay"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
}

// RawLogConfig controls the traffic recorder
type RawLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"` // defaults to <data_dir>/traffic
}

// MQTTConfig contains the optional prediction fan-out broker
type MQTTConfig struct {
	Broker   string `yaml:"broker"` // empty disables publishing
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
	ClientID string `yaml:"client_id"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		ServerURL: "http://localhost:8000",
		Listen:    "127.0.0.1:8080",
		DataDir:   defaultDataDir(),
		Camera: CameraConfig{
			DeviceID: 0,
			Width:    1280,
			Height:   720,
		},
		Detector: DetectorConfig{
			MaxHands:        1,
			MinConfidence:   0.5,
			MinTrackingConf: 0.5,
			IdleTimeout:     30 * time.Second,
		},
		Stream: StreamConfig{
			ReconnectDelay:   3 * time.Second,
			HandshakeTimeout: 10 * time.Second,
			WriteTimeout:     5 * time.Second,
		},
		ErrorLabels: map[string]string{
			"Model not loaded": "Model missing!",
		},
		MQTT: MQTTConfig{
			Topic: "gesturecast/predictions",
			QoS:   0,
		},
	}
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.DataDir = expandHome(cfg.DataDir)
	cfg.StaticDir = expandHome(cfg.StaticDir)
	cfg.RawLog.Dir = expandHome(cfg.RawLog.Dir)
	cfg.Detector.Script = expandHome(cfg.Detector.Script)

	// An empty label hides a default error kind.
	for kind, text := range cfg.ErrorLabels {
		if text == "" {
			delete(cfg.ErrorLabels, kind)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks a configuration for values the application cannot run with.
func Validate(cfg *Config) error {
	var errs []error

	u, err := url.Parse(cfg.ServerURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("server_url: %w", err))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("server_url %q has no host", cfg.ServerURL))
	case u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ws" && u.Scheme != "wss":
		errs = append(errs, fmt.Errorf("server_url scheme %q not supported", u.Scheme))
	}

	if cfg.Camera.DeviceID < 0 {
		errs = append(errs, errors.New("camera.device_id must not be negative"))
	}
	if cfg.Camera.Width < 0 || cfg.Camera.Height < 0 {
		errs = append(errs, errors.New("camera resolution must not be negative"))
	}

	if cfg.Detector.MaxHands < 1 {
		errs = append(errs, errors.New("detector.max_hands must be at least 1"))
	}
	if cfg.Detector.MinConfidence < 0 || cfg.Detector.MinConfidence > 1 {
		errs = append(errs, errors.New("detector.min_confidence must be within [0, 1]"))
	}
	if cfg.Detector.MinTrackingConf < 0 || cfg.Detector.MinTrackingConf > 1 {
		errs = append(errs, errors.New("detector.min_tracking_conf must be within [0, 1]"))
	}

	if cfg.Stream.ReconnectDelay <= 0 {
		errs = append(errs, errors.New("stream.reconnect_delay must be positive"))
	}

	if cfg.MQTT.Broker != "" && cfg.MQTT.Topic == "" {
		errs = append(errs, errors.New("mqtt.topic is required when mqtt.broker is set"))
	}
	if cfg.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos %d must be 0, 1 or 2", cfg.MQTT.QoS))
	}

	return errors.Join(errs...)
}

// RawLogDir returns the directory traffic logs are written to.
func (c *Config) RawLogDir() string {
	if c.RawLog.Dir != "" {
		return c.RawLog.Dir
	}
	return filepath.Join(c.DataDir, "traffic")
}

// DatabasePath returns the path of the sample database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "gesturecast.db")
}

// DefaultPath returns the configuration file looked up when none is given.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gesturecast"
	}
	return filepath.Join(home, ".gesturecast")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
