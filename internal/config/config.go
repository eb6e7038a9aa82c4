// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

// Package config loads and validates the keywarden configuration from a
// YAML file with command-line flag overrides.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the full service configuration.
type Config struct {
	Listen      string `koanf:"listen"`
	MetricsAddr string `koanf:"metrics_addr"`
	DataDir     string `koanf:"data_dir"`
	ServerName  string `koanf:"server_name"`

	Log Log `koanf:"log"`

	// ReauthWindowMinutes bounds the reconnect fast path: within this
	// many minutes of the last disconnect, a matching source address
	// skips credential verification. This is a trust-boundary knob, not
	// a security guarantee; widen it knowingly.
	ReauthWindowMinutes int `koanf:"reauth_window_minutes"`

	TOTP TOTP `koanf:"totp"`

	// Methods gates individual credential methods; absent entries are
	// enabled.
	Methods map[string]bool `koanf:"methods"`

	// Admins hold the delegated register/unregister permissions.
	Admins []string `koanf:"admins"`

	Shortener Shortener `koanf:"shortener"`
}

// Log configures the slog handler.
type Log struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// TOTP configures the one-time-code method.
type TOTP struct {
	// HashWidth selects the HMAC hash: 1, 256 or 512. The default stays
	// 1 for compatibility with deployed authenticator enrollments.
	HashWidth int `koanf:"hash_width"`
	Digits    int `koanf:"digits"`
}

// Shortener configures the outbound URL-shortener collaborator.
type Shortener struct {
	Endpoint       string `koanf:"endpoint"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:              "localhost:7170",
		MetricsAddr:         "127.0.0.1:9100",
		ServerName:          "Unknown server",
		Log:                 Log{Format: "json", Level: "info"},
		ReauthWindowMinutes: 10,
		TOTP:                TOTP{HashWidth: 1, Digits: 6},
		Methods:             map[string]bool{"totp": true, "key": true, "onetimekey": true},
		Shortener:           Shortener{TimeoutSeconds: 10},
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (if any), then explicit flag overrides.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, oops.In("config").Code("CONFIG_FILE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		// Flag names use dashes; config keys use underscores.
		provider := posflag.ProviderWithValue(flags, ".", k,
			func(key, value string) (string, any) {
				return strings.ReplaceAll(key, "-", "_"), value
			})
		if err := k.Load(provider, nil); err != nil {
			return cfg, oops.In("config").Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, oops.In("config").Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return oops.In("config").Errorf("listen address is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.In("config").Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return oops.In("config").Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.TOTP.HashWidth {
	case 1, 256, 512:
	default:
		return oops.In("config").Errorf("totp.hash_width must be 1, 256 or 512, got %d", c.TOTP.HashWidth)
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 8 {
		return oops.In("config").Errorf("totp.digits must be between 6 and 8, got %d", c.TOTP.Digits)
	}
	if c.ReauthWindowMinutes < 0 {
		return oops.In("config").Errorf("reauth_window_minutes must not be negative")
	}
	return nil
}

// ReauthWindow returns the fast-path window as a duration.
func (c *Config) ReauthWindow() time.Duration {
	return time.Duration(c.ReauthWindowMinutes) * time.Minute
}

// ShortenerTimeout returns the per-attempt HTTP timeout.
func (c *Config) ShortenerTimeout() time.Duration {
	return time.Duration(c.Shortener.TimeoutSeconds) * time.Second
}
