package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/wind-harvest/internal/common"
)

type AppConfig struct {
	Port           string   `validate:"required,numeric"`
	AllowedOrigins []string `validate:"required,min=1"`
	LogLevel       string   `validate:"oneof=debug info warn error"`
	LogFile        string

	// Artifact layout.
	DataDir      string `validate:"required"`
	RawExtension string `validate:"required"`

	// HarvestInterval controls how often the harvest and sweep cycle runs.
	HarvestInterval    time.Duration `validate:"gte=1s"`
	HarvestHorizonDays int           `validate:"gt=0"`
	ServingHorizonDays int           `validate:"gt=0"`
	RetentionMaxAge    time.Duration `validate:"gt=0"`

	// Upstream feed. An empty base URL selects the public NOMADS filter.
	NOMADSBaseURL      string        `validate:"omitempty,url"`
	HTTPTimeout        time.Duration `validate:"gt=0"`
	FetchRatePerSecond float64       `validate:"gt=0"`

	// Converter.
	Grib2JSONBin   string        `validate:"required"`
	ConvertTimeout time.Duration `validate:"gte=0"`

	PayloadCacheSize int `validate:"gt=0"`
}

var validate = validator.New()

// RawDir is where downloaded GRIB files are kept until converted.
func (c *AppConfig) RawDir() string { return filepath.Join(c.DataDir, "grib-data") }

// ServableDir is where converted JSON snapshots are served from.
func (c *AppConfig) ServableDir() string { return filepath.Join(c.DataDir, "json-data") }

// Load reads configuration from environment with sensible defaults. Callers
// load any .env file beforehand.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.Port = getenvDefault("PORT", "7000")
	cfg.AllowedOrigins = common.SplitList(getenvDefault("ALLOWED_ORIGINS", "*"))
	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", "info"))
	cfg.LogFile = os.Getenv("LOG_FILE")

	cfg.DataDir = getenvDefault("DATA_DIR", ".")
	cfg.RawExtension = getenvDefault("RAW_EXTENSION", "f000")

	// Poll every 15 minutes; the feed is published every 6 hours with unpredictable delay.
	if cfg.HarvestInterval, err = getenvDuration("HARVEST_INTERVAL", "15m"); err != nil {
		return nil, err
	}
	if cfg.HarvestHorizonDays, err = getenvInt("HARVEST_HORIZON_DAYS", 30); err != nil {
		return nil, err
	}
	if cfg.ServingHorizonDays, err = getenvInt("SERVING_HORIZON_DAYS", 30); err != nil {
		return nil, err
	}
	retentionDays, err := getenvInt("RETENTION_MAX_AGE_DAYS", 14)
	if err != nil {
		return nil, err
	}
	cfg.RetentionMaxAge = time.Duration(retentionDays) * 24 * time.Hour

	cfg.NOMADSBaseURL = os.Getenv("NOMADS_BASE_URL")
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	if cfg.FetchRatePerSecond, err = getenvFloat("FETCH_RATE_PER_SECOND", 1); err != nil {
		return nil, err
	}

	cfg.Grib2JSONBin = getenvDefault("GRIB2JSON_BIN", filepath.Join("converter", "bin", "grib2json"))
	if cfg.ConvertTimeout, err = getenvDuration("CONVERT_TIMEOUT", "2m"); err != nil {
		return nil, err
	}
	if cfg.PayloadCacheSize, err = getenvInt("PAYLOAD_CACHE_SIZE", 16); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
