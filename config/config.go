// Package config holds the nwc-cli configuration, loaded by viper and
// validated the way the teacher's zap-bot config is.
package config

import (
	"fmt"
)

// Config holds the CLI's connection settings for one NWC wallet.
type Config struct {
	NWCUrl                string    `mapstructure:"nwc_url"`
	LogPath               string    `mapstructure:"log_path"`
	RequestTimeoutSeconds int       `mapstructure:"request_timeout_seconds"`
	Zap                   ZapConfig `mapstructure:"zap"`
}

// ZapConfig holds defaults the invoice command falls back to when the
// caller doesn't pass an explicit --description.
type ZapConfig struct {
	DefaultComment string `mapstructure:"default_comment"`
}

// Validate checks if config is valid.
func (c *Config) Validate() error {
	if c.NWCUrl == "" {
		return fmt.Errorf("nwc_url is required")
	}

	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = 30
	}

	return nil
}

// Print displays the config with the connection secret masked.
func (c *Config) Print() {
	fmt.Println("=== nwc-cli Configuration ===")
	fmt.Println()
	fmt.Printf("Wallet URI: %s\n", maskNWCUrl(c.NWCUrl))
	fmt.Printf("Request Timeout: %ds\n", c.RequestTimeoutSeconds)
	if c.Zap.DefaultComment != "" {
		fmt.Printf("Default Comment: %s\n", c.Zap.DefaultComment)
	}
	if c.LogPath != "" {
		fmt.Printf("Log Path: %s\n", c.LogPath)
	}
	fmt.Println()
	fmt.Println("==============================")
}

// maskNWCUrl masks the NWC URL's client secret for display, keeping
// only enough of the prefix and suffix to recognize it.
func maskNWCUrl(url string) string {
	if len(url) <= 30 {
		return "***"
	}
	return url[:24] + "..." + url[len(url)-8:]
}
