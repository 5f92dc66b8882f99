package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Engine  EngineConfig  `yaml:"engine"`
	Session SessionConfig `yaml:"session"`
	Logging LoggingConfig `yaml:"logging"`
	Mock    MockConfig    `yaml:"mock"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	Path           string   `yaml:"path"`
	MaxConnections int      `yaml:"max_connections"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type EngineConfig struct {
	Workers          int  `yaml:"workers"`
	QueueSize        int  `yaml:"queue_size"`
	CompletionBuffer int  `yaml:"completion_buffer"`
	BackendByDefault bool `yaml:"backend_by_default"`
}

type SessionConfig struct {
	MaxLogLines int `yaml:"max_log_lines"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File receives logs while the terminal UI is shown. Headless mode
	// always logs to stderr.
	File string `yaml:"file"`
}

// MockConfig drives the built-in instrument simulator.
type MockConfig struct {
	Devices    int           `yaml:"devices"`
	Interval   time.Duration `yaml:"interval"`
	DeviceType string        `yaml:"device_type"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8765,
			Path: "/ws",
		},
		Engine: EngineConfig{
			Workers:          4,
			QueueSize:        64,
			CompletionBuffer: 64,
		},
		Session: SessionConfig{
			MaxLogLines: 500,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "station.log",
		},
		Mock: MockConfig{
			Devices:    2,
			Interval:   time.Second,
			DeviceType: "Test",
		},
	}
}

// Load reads path and overlays it on Default. A missing file is not an
// error; the defaults are returned as is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MaxConnections < 0 {
		errs = append(errs, fmt.Errorf("server.max_connections must not be negative"))
	}
	if c.Engine.Workers <= 0 {
		errs = append(errs, fmt.Errorf("engine.workers must be positive"))
	}
	if c.Engine.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("engine.queue_size must be positive"))
	}
	if c.Engine.CompletionBuffer < 0 {
		errs = append(errs, fmt.Errorf("engine.completion_buffer must not be negative"))
	}
	if c.Session.MaxLogLines <= 0 {
		errs = append(errs, fmt.Errorf("session.max_log_lines must be positive"))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q: want text or json", c.Logging.Format))
	}
	if c.Mock.Devices < 0 {
		errs = append(errs, fmt.Errorf("mock.devices must not be negative"))
	}
	if c.Mock.Interval <= 0 {
		errs = append(errs, fmt.Errorf("mock.interval must be positive"))
	}
	return errors.Join(errs...)
}
