package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"mewbot/internal/telemetry"
)

var storeTypes = []string{"sqlite", "postgres"}

// ValidateConfig validates configuration values and returns an error if any are invalid.
// This function should be called after viper has loaded the configuration.
func ValidateConfig() error {
	var errors []string

	// 0 disables the metrics server
	if viper.IsSet("metrics_port") {
		port := viper.GetInt("metrics_port")
		if port < 0 || port > 65535 {
			errors = append(errors, fmt.Sprintf("metrics_port must be between 0 and 65535, got: %d", port))
		}
	}

	if viper.IsSet("store.type") {
		typ := viper.GetString("store.type")
		valid := false
		for _, t := range storeTypes {
			if typ == t {
				valid = true
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("store.type must be one of %s, got: %q", strings.Join(storeTypes, ", "), typ))
		}
	}

	if viper.IsSet("store.dsn") && viper.GetString("store.dsn") == "" {
		errors = append(errors, "store.dsn must not be empty")
	}

	if viper.IsSet("deps.installer") && len(viper.GetStringSlice("deps.installer")) == 0 {
		errors = append(errors, "deps.installer must name a command")
	}

	if viper.IsSet("bot.drain_timeout") {
		if d := viper.GetDuration("bot.drain_timeout"); d < 0 {
			errors = append(errors, fmt.Sprintf("bot.drain_timeout must not be negative, got: %v", d))
		}
	}

	if viper.IsSet("log_format") {
		if err := telemetry.ValidFormat(viper.GetString("log_format")); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if viper.IsSet("bot.name") && viper.GetString("bot.name") == "" {
		errors = append(errors, "bot.name must not be empty")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  %s", strings.Join(errors, "\n  "))
	}

	return nil
}
