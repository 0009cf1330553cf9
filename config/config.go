// Package config loads the matchmaking server's static configuration.
//
// The teacher (vector-racer-v2) keeps its ServerConfig at the module root
// and reads it from environment variables with hardcoded defaults. This
// server keeps the same root-level placement and "defaults struct +
// optional override" shape, but reads a static file per spec, via viper,
// since the spec calls out a configuration file rather than environment
// variables.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Defaults per spec.md §6.
const (
	DefaultWebsocketAddr = "[::]:12310"
	DefaultAPIURL        = "http://localhost:8081/customAddStage"
)

// Config holds the two values spec.md §6 requires at startup.
type Config struct {
	WebsocketAddr string `mapstructure:"websocket.addr"`
	APIURL        string `mapstructure:"api.url"`
}

// Default returns the documented defaults, mirroring the teacher's
// DefaultServerConfig().
func Default() Config {
	return Config{
		WebsocketAddr: DefaultWebsocketAddr,
		APIURL:        DefaultAPIURL,
	}
}

// Load reads configuration from path (YAML, TOML, or JSON -- viper sniffs
// the extension). A missing file is not an error: the documented defaults
// apply, matching the teacher's "fall back to defaults" habit in
// loadConfig. A present-but-malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("websocket.addr", DefaultWebsocketAddr)
	v.SetDefault("api.url", DefaultAPIURL)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		// With SetConfigFile, a missing file surfaces as a plain not-exist
		// error rather than ConfigFileNotFoundError.
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg.WebsocketAddr = v.GetString("websocket.addr")
	cfg.APIURL = v.GetString("api.url")

	if cfg.WebsocketAddr == "" {
		cfg.WebsocketAddr = DefaultWebsocketAddr
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}

	return cfg, nil
}
