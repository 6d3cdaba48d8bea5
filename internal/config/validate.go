package config

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// MaxAdvData is the legacy advertising data limit.
const MaxAdvData = 31

// BrightnessSteps is the number of discrete backlight steps.
const BrightnessSteps = 5

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if cfg.I2C.Bus == "" {
		return fmt.Errorf("i2c.bus must be set")
	}

	// ---- interrupt lines ----

	if cfg.Touch.Chip == "" || cfg.PMU.Chip == "" {
		return fmt.Errorf("touch.chip and pmu.chip must be set")
	}
	if cfg.Touch.Line < 0 || cfg.PMU.Line < 0 {
		return fmt.Errorf("interrupt line offsets must be >= 0")
	}
	if cfg.Touch.Chip == cfg.PMU.Chip && cfg.Touch.Line == cfg.PMU.Line {
		return fmt.Errorf("touch and pmu share interrupt line %s:%d", cfg.Touch.Chip, cfg.Touch.Line)
	}
	if cfg.Touch.PollMs <= 0 {
		return fmt.Errorf("touch.poll_ms must be > 0, got %d", cfg.Touch.PollMs)
	}
	if cfg.PMU.GuardMs < 0 {
		return fmt.Errorf("pmu.guard_ms must be >= 0, got %d", cfg.PMU.GuardMs)
	}

	if cfg.Bus.Capacity < 1 {
		return fmt.Errorf("bus.capacity must be >= 1, got %d", cfg.Bus.Capacity)
	}

	// ---- advertising ----

	switch strings.ToLower(cfg.Advert.Backend) {
	case "hci", "bluez", "off":
	default:
		return fmt.Errorf("advert.backend %q: want hci, bluez or off", cfg.Advert.Backend)
	}
	if cfg.Advert.HoldMs <= 0 || cfg.Advert.IdleMs <= 0 {
		return fmt.Errorf("advert.hold_ms and advert.idle_ms must be > 0")
	}
	if cfg.Advert.SettleMs < 0 {
		return fmt.Errorf("advert.settle_ms must be >= 0")
	}
	if cfg.Advert.DefaultPower < 0 || cfg.Advert.DefaultPower > 7 {
		return fmt.Errorf("advert.default_power must be 0..7, got %d", cfg.Advert.DefaultPower)
	}
	if err := validatePool("long", cfg.Advert.Pools.Long); err != nil {
		return err
	}
	if err := validatePool("short", cfg.Advert.Pools.Short); err != nil {
		return err
	}

	if cfg.Display.DefaultBrightness < 0 || cfg.Display.DefaultBrightness >= BrightnessSteps {
		return fmt.Errorf("display.default_brightness must be 0..%d, got %d",
			BrightnessSteps-1, cfg.Display.DefaultBrightness)
	}

	if cfg.Retry.Attempts < 0 {
		return fmt.Errorf("retry.attempts must be >= 0")
	}
	if cfg.Retry.BaseMs <= 0 {
		return fmt.Errorf("retry.base_ms must be > 0")
	}

	if cfg.MQTT.Broker != "" && cfg.MQTT.TopicPrefix == "" {
		return fmt.Errorf("mqtt.topic_prefix must be set when a broker is configured")
	}
	if cfg.Redis.Addr != "" && (cfg.Redis.Hash == "" || cfg.Redis.CommandPrefix == "") {
		return fmt.Errorf("redis.hash and redis.command_prefix must be set when redis.addr is configured")
	}

	return nil
}

func validatePool(name string, pool []string) error {
	if len(pool) == 0 {
		return fmt.Errorf("advert.pools.%s must not be empty", name)
	}
	for i, entry := range pool {
		b, err := hex.DecodeString(cleanHex(entry))
		if err != nil {
			return fmt.Errorf("advert.pools.%s[%d]: %w", name, i, err)
		}
		if len(b) == 0 || len(b) > MaxAdvData {
			return fmt.Errorf("advert.pools.%s[%d]: %d bytes, want 1..%d", name, i, len(b), MaxAdvData)
		}
	}
	return nil
}

// cleanHex drops separators and an optional 0x prefix.
func cleanHex(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', ':', '-', '_':
			return -1
		}
		return r
	}, s)
}
