// Package config loads mewbot's runtime settings from mewbot.yaml, a .env
// file and MEWBOT_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"mewbot/internal/deps"
	"mewbot/internal/store"
)

// Load initializes the configuration from file and environment variables.
func Load(cfgFile string) {
	// A missing .env is fine.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("mewbot")
	}

	viper.SetEnvPrefix("MEWBOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	SetDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Warning: Failed to read config file %s: %v\n", cfgFile, err)
	}
}

// SetDefaults registers the default value of every known key.
func SetDefaults() {
	viper.SetDefault("verbose", false)
	viper.SetDefault("log_file", "")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("metrics_port", 2112)
	viper.SetDefault("bot.name", "mewbot")
	viper.SetDefault("bot.drain_timeout", 5*time.Second)
	viper.SetDefault("store.type", "sqlite")
	viper.SetDefault("store.dsn", store.DefaultSQLitePath)
	viper.SetDefault("deps.installer", deps.DefaultCommand)
}

// Store returns the configured store settings.
func Store() store.StoreConfig {
	return store.StoreConfig{
		Type:             viper.GetString("store.type"),
		ConnectionString: viper.GetString("store.dsn"),
	}
}

// Installer returns the configured dependency installer command.
func Installer() []string {
	return viper.GetStringSlice("deps.installer")
}

// DrainTimeout returns how long a stopping bot may spend on queued events.
func DrainTimeout() time.Duration {
	return viper.GetDuration("bot.drain_timeout")
}
