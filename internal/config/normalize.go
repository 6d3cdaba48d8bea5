package config

import (
	"encoding/hex"
	"strings"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Advert.Backend = strings.ToLower(cfg.Advert.Backend)
	for i, s := range cfg.Advert.Pools.Long {
		cfg.Advert.Pools.Long[i] = strings.ToLower(cleanHex(s))
	}
	for i, s := range cfg.Advert.Pools.Short {
		cfg.Advert.Pools.Short[i] = strings.ToLower(cleanHex(s))
	}
}

// DecodePools returns the advertising pools as raw bytes.
// Entries are assumed valid.
func (c *Config) DecodePools() (long, short [][]byte) {
	decode := func(in []string) [][]byte {
		out := make([][]byte, 0, len(in))
		for _, s := range in {
			b, err := hex.DecodeString(cleanHex(s))
			if err != nil {
				continue
			}
			out = append(out, b)
		}
		return out
	}
	return decode(c.Advert.Pools.Long), decode(c.Advert.Pools.Short)
}
