package config

import (
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

const (
	KeyListenAddr  = "listen_addr"
	KeyMetricsAddr = "metrics_addr"
	KeyCapacity    = "capacity"
	KeyDataDir     = "data_dir"
	KeyLogLevel    = "log_level"
)

// Config is the server's runtime configuration, resolved from defaults,
// config file, environment (MATHLINE_ prefix) and bound flags, in that order
// of increasing precedence.
type Config struct {
	ListenAddr  string
	MetricsAddr string
	Capacity    int
	DataDir     string
	LogLevel    string
}

// SetDefaults installs the default values on the shared viper instance.
func SetDefaults() {
	viper.SetDefault(KeyListenAddr, ":5000")
	viper.SetDefault(KeyMetricsAddr, ":9090")
	viper.SetDefault(KeyCapacity, 128)
	viper.SetDefault(KeyDataDir, "data")
	viper.SetDefault(KeyLogLevel, "info")
}

// Load resolves the effective configuration.
func Load() *Config {
	return &Config{
		ListenAddr:  viper.GetString(KeyListenAddr),
		MetricsAddr: viper.GetString(KeyMetricsAddr),
		Capacity:    viper.GetInt(KeyCapacity),
		DataDir:     viper.GetString(KeyDataDir),
		LogLevel:    viper.GetString(KeyLogLevel),
	}
}

// Level maps the configured log level onto slog.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
