// Package config loads the daemon configuration from YAML.
//
// Load reads a file over Default(), so a partial file only overrides what it
// names. Validate is declarative and never mutates; Normalize runs after it.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	I2C     I2CConfig     `yaml:"i2c"`
	Touch   TouchConfig   `yaml:"touch"`
	PMU     PMUConfig     `yaml:"pmu"`
	Bus     BusConfig     `yaml:"bus"`
	Advert  AdvertConfig  `yaml:"advert"`
	Display DisplayConfig `yaml:"display"`
	Retry   RetryConfig   `yaml:"retry"`
	HTTP    HTTPConfig    `yaml:"http"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Redis   RedisConfig   `yaml:"redis"`
}

// ---- HARDWARE ----

type I2CConfig struct {
	// Bus is the periph bus name, e.g. "1" or "/dev/i2c-1".
	Bus string `yaml:"bus"`
}

type TouchConfig struct {
	Chip   string `yaml:"chip"`
	Line   int    `yaml:"line"`
	PollMs int    `yaml:"poll_ms"`
}

type PMUConfig struct {
	Chip    string `yaml:"chip"`
	Line    int    `yaml:"line"`
	GuardMs int    `yaml:"guard_ms"`
}

// ---- EVENT BUS ----

type BusConfig struct {
	Capacity int `yaml:"capacity"`
}

// ---- ADVERTISING ----

type AdvertConfig struct {
	// Backend is "hci", "bluez" or "off".
	Backend      string      `yaml:"backend"`
	HCIDevice    int         `yaml:"hci_device"`
	HoldMs       int         `yaml:"hold_ms"`
	SettleMs     int         `yaml:"settle_ms"`
	IdleMs       int         `yaml:"idle_ms"`
	DefaultPower int         `yaml:"default_power"`
	AutoStart    bool        `yaml:"auto_start"`
	Pools        PoolsConfig `yaml:"pools"`
}

// PoolsConfig holds raw advertising data as hex strings.
type PoolsConfig struct {
	Long  []string `yaml:"long"`
	Short []string `yaml:"short"`
}

type DisplayConfig struct {
	DefaultBrightness int `yaml:"default_brightness"`
}

type RetryConfig struct {
	Attempts int `yaml:"attempts"`
	BaseMs   int `yaml:"base_ms"`
}

// ---- SURFACES ----

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	HeartbeatS  int    `yaml:"heartbeat_s"`
}

type RedisConfig struct {
	Addr          string `yaml:"addr"`
	Hash          string `yaml:"hash"`
	CommandPrefix string `yaml:"command_prefix"`
}

// Load reads the YAML file at path over Default(). An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
