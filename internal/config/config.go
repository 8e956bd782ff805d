package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ironsheep/board-locator-mcp/internal/calibration"
	"github.com/ironsheep/board-locator-mcp/internal/locator"
)

// Transport names accepted in BOARD_LOCATOR_TRANSPORT.
const (
	TransportMCP  = "mcp"
	TransportHTTP = "http"
)

type Config struct {
	Transport          string
	Host               string
	Port               string
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	Magnification      int
	MaxMagnification   int
	RequiredMarkers    int
	LogLevel           string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// LocatorOptions returns the locator defaults adjusted by the configuration.
func (c *Config) LocatorOptions() locator.Options {
	opts := locator.DefaultOptions()
	opts.Calibration.RequiredMarkers = c.RequiredMarkers
	return opts
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Transport:          strings.ToLower(getEnvOrDefault("BOARD_LOCATOR_TRANSPORT", TransportMCP)),
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 20*1024*1024), // 20MB
		Magnification:      int(parseIntOrDefault("BOARD_LOCATOR_MAGNIFICATION", locator.DefaultMagnification)),
		MaxMagnification:   int(parseIntOrDefault("BOARD_LOCATOR_MAX_MAGNIFICATION", locator.MaxMagnification)),
		RequiredMarkers:    int(parseIntOrDefault("BOARD_LOCATOR_REQUIRED_MARKERS", 4)),
		LogLevel:           getEnvOrDefault("BOARD_LOCATOR_LOG_LEVEL", "info"),
	}

	if cfg.Transport != TransportMCP && cfg.Transport != TransportHTTP {
		return nil, fmt.Errorf("invalid BOARD_LOCATOR_TRANSPORT: %q (want %q or %q)", cfg.Transport, TransportMCP, TransportHTTP)
	}
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if cfg.MaxRequestBodySize <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", cfg.MaxRequestBodySize)
	}
	if cfg.MaxMagnification < 1 || cfg.MaxMagnification > locator.MaxMagnification {
		return nil, fmt.Errorf("BOARD_LOCATOR_MAX_MAGNIFICATION must be between 1 and %d (got %d)",
			locator.MaxMagnification, cfg.MaxMagnification)
	}
	if cfg.Magnification <= 0 || cfg.Magnification > cfg.MaxMagnification {
		return nil, fmt.Errorf("BOARD_LOCATOR_MAGNIFICATION must be between 1 and %d (got %d)",
			cfg.MaxMagnification, cfg.Magnification)
	}
	if cfg.RequiredMarkers < 4 || cfg.RequiredMarkers > calibration.StrictMarkerCount {
		return nil, fmt.Errorf("BOARD_LOCATOR_REQUIRED_MARKERS must be between 4 and %d (got %d)",
			calibration.StrictMarkerCount, cfg.RequiredMarkers)
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
