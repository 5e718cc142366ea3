/**
 * Configuration Definitions.
 *
 * Defines the configuration schema the capture pipeline is handed at
 * startup. Loading itself (the collaborator that reads a file or flags
 * into this struct) lives in Load below; the core only ever consumes
 * a *Config.
 *
 * Author: raventrace
 */

package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Holds the effective configuration for one pipeline run.
type Config struct {
	Device      string                    `mapstructure:"device"`
	SnapLen     int32                     `mapstructure:"snaplen"`
	Promisc     bool                      `mapstructure:"promisc"`
	Timeout     time.Duration             `mapstructure:"timeout"`
	Filter      string                    `mapstructure:"filter"`
	GeoIPCityDB string                    `mapstructure:"geoip_city_db"`
	GeoIPASNDB  string                    `mapstructure:"geoip_asn_db"`
	DBPath      string                    `mapstructure:"db_path"`
	Plugins     map[string]PluginConfig   `mapstructure:"plugins"`
}

// Per-plugin configuration block. Plugin-specific keys live in Options.
type PluginConfig struct {
	Enable  int            `mapstructure:"enable"`
	Options map[string]any `mapstructure:",remain"`
}

// Returns the default configuration, matching spec.md §6.
func Default() *Config {
	return &Config{
		Device:  "any",
		SnapLen: 1518,
		Promisc: false,
		Timeout: 100 * time.Millisecond,
		Filter:  "(tcp or udp) and port 53",
		DBPath:  "pdnsd.db",
		Plugins: map[string]PluginConfig{
			"packet::logger":     {Enable: 1, Options: map[string]any{"keep_for": "30 days"}},
			"server::authorized": {Enable: 1},
			"server::stats":      {Enable: 1, Options: map[string]any{"rrd": 1}},
			"client::stats":      {Enable: 1, Options: map[string]any{"rrd": 1}},
		},
	}
}

// Loads configuration from path (if non-empty) layered over defaults,
// then environment variables prefixed PDNSD_.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("pdnsd")
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("device", def.Device)
	v.SetDefault("snaplen", def.SnapLen)
	v.SetDefault("promisc", def.Promisc)
	v.SetDefault("timeout", def.Timeout)
	v.SetDefault("filter", def.Filter)
	v.SetDefault("db_path", def.DBPath)
	v.SetDefault("plugins", def.Plugins)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Plugins == nil {
		cfg.Plugins = def.Plugins
	}
	return cfg, nil
}
