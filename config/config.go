// Package config loads farmctl's configuration from its config file,
// FARMCTL_* environment variables, and defaults, in that order of
// precedence ascending.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// AppDirName is the dot-directory under the user's home that holds the
// config file and the persisted session.
const AppDirName = ".farmctl"

// Config holds everything farmctl needs to talk to the platform.
type Config struct {
	APIBaseURL     string `mapstructure:"API_BASE_URL"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	LogPretty      bool   `mapstructure:"LOG_PRETTY"`
	SessionFile    string `mapstructure:"SESSION_FILE"`
	HTTPTimeoutSec int    `mapstructure:"HTTP_TIMEOUT_SEC"`
}

// Load reads configuration. A missing config file is fine; defaults and
// environment cover everything. cfgFile overrides the search path when
// non-empty (the --config flag).
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	appDir, err := appDir()
	if err != nil {
		return nil, err
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(appDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FARMCTL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("API_BASE_URL", "https://api.adoptafarmer.example.com/api/v1")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("SESSION_FILE", filepath.Join(appDir, "session.json"))
	v.SetDefault("HTTP_TIMEOUT_SEC", 30)

	// A missing config file means defaults and env; malformed yaml or a
	// permission problem is a real error.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// appDir resolves ~/.farmctl, creating it when absent.
func appDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, AppDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return dir, nil
}
