// Package config resolves the daemon's configuration from its config file,
// environment and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ShuqiCH3N/Elytro/internal/chain"
)

// Config is the resolved daemon configuration.
type Config struct {
	DataDir    string
	ListenAddr string
	LogLevel   string

	// MySQLDSN, when set, switches history persistence from the JSON file
	// store to MySQL.
	MySQLDSN string

	Chains []*chain.Config
}

// LoadEnv pulls a .env file into the environment when one is present.
func LoadEnv() {
	_ = godotenv.Load()
}

// Load resolves configuration. cfgFile overrides the default search path
// ($HOME/.elytro/config.yaml, then the working directory).
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	dataDir := filepath.Join(home, ".elytro")

	v.SetDefault("data_dir", dataDir)
	v.SetDefault("listen_addr", "127.0.0.1:7027")
	v.SetDefault("log_level", "info")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(dataDir)
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("elytro")
	v.AutomaticEnv()

	// A missing config file is fine, everything has a default.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		DataDir:    v.GetString("data_dir"),
		ListenAddr: v.GetString("listen_addr"),
		LogLevel:   v.GetString("log_level"),
		MySQLDSN:   v.GetString("mysql_dsn"),
	}

	if v.IsSet("chains") {
		var chains []*chain.Config
		if err := v.UnmarshalKey("chains", &chains); err != nil {
			return nil, fmt.Errorf("failed to parse chains: %w", err)
		}
		cfg.Chains = chains
	}
	if len(cfg.Chains) == 0 {
		cfg.Chains = chain.DefaultChains()
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return cfg, nil
}
