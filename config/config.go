package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all client configuration. Tags use mapstructure for viper
// unmarshalling; every key can also be supplied through the environment.
type Config struct {
	// Backend deployment identifiers. Which backend project the client talks
	// to is deployment configuration, not application logic.
	Endpoint   string `mapstructure:"ENDPOINT"`
	ProjectID  string `mapstructure:"PROJECT_ID"`
	DatabaseID string `mapstructure:"DATABASE_ID"`

	// OAuth2 client credentials for the generic-OAuth2 providers. Apple uses
	// the native credential path and needs none of these.
	GitHubClientID     string `mapstructure:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `mapstructure:"GITHUB_CLIENT_SECRET"`
	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	// CallbackListenAddr is the loopback address the CLI listens on to
	// capture the OAuth2 redirect.
	CallbackListenAddr string `mapstructure:"CALLBACK_LISTEN_ADDR"`

	// StorePath is the device-local key-value store location.
	StorePath string `mapstructure:"STORE_PATH"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`
}

// LoadConfig reads configuration from file, environment variables, and
// defaults, in that order of increasing precedence for env over file.
func LoadConfig(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.familysync")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FAMILYSYNC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("ENDPOINT", "https://fra.cloud.appwrite.io/v1")
	v.SetDefault("DATABASE_ID", "familysync")
	v.SetDefault("CALLBACK_LISTEN_ADDR", "127.0.0.1:53682")
	v.SetDefault("STORE_PATH", defaultStorePath())
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine: defaults and env cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "familysync.db"
	}
	return filepath.Join(home, ".familysync", "familysync.db")
}

// Validate checks the fields every backend call depends on.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("backend endpoint is required")
	}
	if c.ProjectID == "" {
		return fmt.Errorf("backend project ID is required")
	}
	return nil
}
