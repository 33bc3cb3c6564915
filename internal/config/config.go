package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Provider ProviderConfig
	Location LocationConfig
	Render   RenderConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// ProviderConfig holds the weather provider endpoint settings
type ProviderConfig struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	IconTimeout time.Duration // icon download budget before a callout update goes out without it
}

// LocationConfig holds location update settings
type LocationConfig struct {
	DistanceThreshold float64 // meters a new fix must move before a new pin is dropped
}

// RenderConfig holds settings for the render loop
type RenderConfig struct {
	QueueSize int
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	// Set config file name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.mapweather")

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("provider.baseURL", "https://api.wunderground.com")
	v.SetDefault("provider.apiKey", "")
	v.SetDefault("provider.timeout", 10*time.Second)
	v.SetDefault("provider.iconTimeout", 2*time.Second)
	v.SetDefault("location.distanceThreshold", 10.0)
	v.SetDefault("render.queueSize", 64)

	// Read from environment variables, e.g. MAPWEATHER_PROVIDER_APIKEY
	v.SetEnvPrefix("MAPWEATHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we have defaults
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// GetServerAddr returns the server address in the format ":port"
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// NewLogger creates a new slog.Logger based on the configuration
func (c *Config) NewLogger() *slog.Logger {
	// Parse log level
	var level slog.Level
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Choose handler based on format
	var handler slog.Handler
	switch strings.ToLower(c.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default: // "text" or anything else
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
