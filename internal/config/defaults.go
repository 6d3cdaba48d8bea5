package config

// Inert manufacturer-specific advertising data under the Bluetooth SIG test
// company identifier 0xFFFF. Long entries fill a legacy 31-byte PDU.
var (
	DefaultLongPool = []string{
		"1effffff0719010220752aaa30310000451212120000000000000000000000",
		"1effffff0719010e20752aaa30310000451212120000000000000000000000",
		"1effffff0719010a20752aaa30310000451212120000000000000000000000",
		"1effffff0719010f20752aaa30310000451212120000000000000000000000",
	}
	DefaultShortPool = []string{
		"10ffffff040400c10105060f0000000000",
		"10ffffff040400c10109060f0000000000",
		"10ffffff040400c10106060f0000000000",
	}
)

// Default returns the configuration the daemon runs with when no file is given.
func Default() *Config {
	return &Config{
		I2C: I2CConfig{Bus: "1"},
		Touch: TouchConfig{
			Chip:   "gpiochip0",
			Line:   23,
			PollMs: 20,
		},
		PMU: PMUConfig{
			Chip:    "gpiochip0",
			Line:    24,
			GuardMs: 50,
		},
		Bus: BusConfig{Capacity: 32},
		Advert: AdvertConfig{
			Backend:      "hci",
			HCIDevice:    0,
			HoldMs:       1000,
			SettleMs:     50,
			IdleMs:       500,
			DefaultPower: 7,
			Pools: PoolsConfig{
				Long:  append([]string(nil), DefaultLongPool...),
				Short: append([]string(nil), DefaultShortPool...),
			},
		},
		Display: DisplayConfig{DefaultBrightness: 2},
		Retry: RetryConfig{
			Attempts: 3,
			BaseMs:   10,
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		MQTT: MQTTConfig{
			ClientID:    "gadgetd",
			TopicPrefix: "gadget",
			HeartbeatS:  60,
		},
		Redis: RedisConfig{
			Hash:          "gadget",
			CommandPrefix: "gadget",
		},
	}
}
