package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ebaauw/homebridge-lib-go/pkg/statepub"
)

// Config is the demo bridge configuration file.
type Config struct {
	Name      string          `yaml:"name"`
	LogLevel  int             `yaml:"log_level"`
	Heartbeat time.Duration   `yaml:"heartbeat"`
	UIPort    int             `yaml:"ui_port"`
	MQTT      statepub.Config `yaml:"mqtt"`
	Devices   []DeviceConfig  `yaml:"devices"`
}

// DeviceConfig describes one simulated lightbulb.
type DeviceConfig struct {
	ID               string `yaml:"id"`
	Name             string `yaml:"name"`
	Manufacturer     string `yaml:"manufacturer"`
	Model            string `yaml:"model"`
	Firmware         string `yaml:"firmware"`
	AdaptiveLighting bool   `yaml:"adaptive_lighting"`

	// Latency delays the simulated device's answers.
	Latency time.Duration `yaml:"latency"`
}

func defaultConfig() Config {
	return Config{
		Name:      "hblib-demo",
		Heartbeat: time.Second,
		Devices: []DeviceConfig{
			{ID: "lamp-1", Name: "Lamp", AdaptiveLighting: true},
		},
	}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Name == "" {
		return errors.New("config: name is required")
	}
	if c.LogLevel < 0 || c.LogLevel > 3 {
		return fmt.Errorf("config: log_level must be 0-3, got %d", c.LogLevel)
	}
	seen := make(map[string]bool)
	for i, d := range c.Devices {
		if d.ID == "" || d.Name == "" {
			return fmt.Errorf("config: device %d needs an id and a name", i)
		}
		if seen[d.ID] {
			return fmt.Errorf("config: duplicate device id %q", d.ID)
		}
		seen[d.ID] = true
	}
	return nil
}
