package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gadgetd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestDefaultPoolsFitPDU(t *testing.T) {
	long, short := Default().DecodePools()
	if len(long) != len(DefaultLongPool) || len(short) != len(DefaultShortPool) {
		t.Fatalf("decoded %d/%d entries", len(long), len(short))
	}
	for i, b := range long {
		if len(b) != MaxAdvData {
			t.Errorf("long[%d]: %d bytes, want %d", i, len(b), MaxAdvData)
		}
		// AD length byte covers everything after itself.
		if int(b[0]) != len(b)-1 {
			t.Errorf("long[%d]: AD length %d, want %d", i, b[0], len(b)-1)
		}
	}
	for i, b := range short {
		if int(b[0]) != len(b)-1 {
			t.Errorf("short[%d]: AD length %d, want %d", i, b[0], len(b)-1)
		}
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bus.Capacity != 32 {
		t.Errorf("Bus.Capacity: got %d, want 32", cfg.Bus.Capacity)
	}
}

func TestLoadPartialOverride(t *testing.T) {
	path := writeFile(t, `
touch:
  line: 5
advert:
  backend: BlueZ
  default_power: 3
  pools:
    short:
      - "0x03 ff ff ff"
mqtt:
  broker: tcp://10.0.0.2:1883
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Touch.Line != 5 {
		t.Errorf("Touch.Line: got %d, want 5", cfg.Touch.Line)
	}
	if cfg.Touch.PollMs != 20 {
		t.Errorf("Touch.PollMs kept default: got %d, want 20", cfg.Touch.PollMs)
	}
	if cfg.Advert.DefaultPower != 3 {
		t.Errorf("DefaultPower: got %d, want 3", cfg.Advert.DefaultPower)
	}
	if len(cfg.Advert.Pools.Long) != len(DefaultLongPool) {
		t.Errorf("long pool should keep defaults, got %d entries", len(cfg.Advert.Pools.Long))
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	Normalize(cfg)
	if cfg.Advert.Backend != "bluez" {
		t.Errorf("Backend: got %q, want bluez", cfg.Advert.Backend)
	}
	if cfg.Advert.Pools.Short[0] != "03ffffff" {
		t.Errorf("Short[0]: got %q, want 03ffffff", cfg.Advert.Pools.Short[0])
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	path := writeFile(t, "touch: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero poll", func(c *Config) { c.Touch.PollMs = 0 }, "touch.poll_ms"},
		{"shared line", func(c *Config) { c.PMU.Line = c.Touch.Line }, "share interrupt line"},
		{"bus capacity", func(c *Config) { c.Bus.Capacity = 0 }, "bus.capacity"},
		{"backend", func(c *Config) { c.Advert.Backend = "nimble" }, "advert.backend"},
		{"power high", func(c *Config) { c.Advert.DefaultPower = 8 }, "default_power"},
		{"power negative", func(c *Config) { c.Advert.DefaultPower = -1 }, "default_power"},
		{"empty pool", func(c *Config) { c.Advert.Pools.Long = nil }, "pools.long"},
		{"bad hex", func(c *Config) { c.Advert.Pools.Short = []string{"zz"} }, "pools.short[0]"},
		{"oversize", func(c *Config) { c.Advert.Pools.Short = []string{strings.Repeat("ab", 32)} }, "32 bytes"},
		{"brightness", func(c *Config) { c.Display.DefaultBrightness = 5 }, "default_brightness"},
		{"retry base", func(c *Config) { c.Retry.BaseMs = 0 }, "retry.base_ms"},
		{"mqtt prefix", func(c *Config) { c.MQTT.Broker = "tcp://x:1883"; c.MQTT.TopicPrefix = "" }, "topic_prefix"},
		{"redis hash", func(c *Config) { c.Redis.Addr = "localhost:6379"; c.Redis.Hash = "" }, "redis.hash"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDoesNotMutate(t *testing.T) {
	cfg := Default()
	cfg.Advert.Backend = "HCI"
	cfg.Advert.Pools.Short = []string{"0x02 ff 00"}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Advert.Backend != "HCI" || cfg.Advert.Pools.Short[0] != "0x02 ff 00" {
		t.Error("Validate mutated config")
	}
}
