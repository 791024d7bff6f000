// Package config loads the server configuration file. The recognized
// surface mirrors the options the auth core consumes: whether
// authorization is enabled, the session TTL, the origin allow-list and
// the database connection target.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration surface.
type Config struct {
	// UseAuthorization gates the whole session protocol. When false,
	// every request uses the fixed connection target below.
	UseAuthorization bool `yaml:"use_authorization"`
	// DeleteOtpInDays is the server-side session TTL in days. The
	// client cookie lifetime is a separate knob and may diverge.
	DeleteOtpInDays int `yaml:"delete_otp_in_days"`
	// AllowedIP is "*" or a single address every request origin must
	// match.
	AllowedIP string `yaml:"allowed_ip"`

	DBHost string `yaml:"db_host"`
	DBPort string `yaml:"db_port"`
	// DBRule is appended to credentialed connection strings
	// (authSource and friends).
	DBRule string `yaml:"db_rule"`
	// CustomString overrides connection-string assembly entirely.
	CustomString string `yaml:"custom_string"`

	BatchCount int  `yaml:"batch_count"`
	FirstStart bool `yaml:"first_start"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		UseAuthorization: true,
		DeleteOtpInDays:  1,
		AllowedIP:        "*",
		DBHost:           "localhost",
		DBPort:           "27017",
		BatchCount:       100,
	}
}

// Load reads a YAML config file, applying defaults for absent keys.
// A missing file is not an error; defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.DeleteOtpInDays <= 0 {
		cfg.DeleteOtpInDays = 1
	}
	if cfg.AllowedIP == "" {
		cfg.AllowedIP = "*"
	}
	return cfg, nil
}

// OriginAllowed reports whether a request origin passes the allow-list.
func (c Config) OriginAllowed(ip string) bool {
	return c.AllowedIP == "*" || c.AllowedIP == ip
}
