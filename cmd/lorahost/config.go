package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v2"

	"lorabridge/host/serial"
)

// Config is the lorahost configuration file.
type Config struct {
	Serial  serial.Config `yaml:"serial"`
	Capture CaptureConfig `yaml:"capture"`
	// Raw prints bridge lines as received instead of formatting them.
	Raw bool `yaml:"raw"`
}

// CaptureConfig controls the rotating log of every line exchanged with the
// bridge. An empty File disables it.
type CaptureConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

func defaultConfig() *Config {
	return &Config{
		Serial: serial.DefaultConfig("/dev/ttyACM0"),
		Capture: CaptureConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// loadConfig applies the YAML file at path, if any, over the defaults.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %v", path, err)
		}
	}
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %v", err)
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Serial.Baud < 0 {
		return fmt.Errorf("invalid baud %d", cfg.Serial.Baud)
	}
	if cfg.Serial.ReadTimeout < 0 {
		return fmt.Errorf("invalid read timeout %d ms", cfg.Serial.ReadTimeout)
	}
	c := cfg.Capture
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("capture limits must not be negative")
	}
	return nil
}

// captureWriter returns the capture log, or io.Discard when disabled.
func (c CaptureConfig) captureWriter() io.WriteCloser {
	if c.File == "" {
		return nopCloser{io.Discard}
	}
	return &lumberjack.Logger{
		Filename:   c.File,
		MaxSize:    c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
