/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/friendsincode/sonic_road/internal/energy"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// GPSSourceGateway selects the sensor gateway for position fixes. Any other
// value of GPSSource is a path to an NMEA device or capture file.
const GPSSourceGateway = "gateway"

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	LogLevel    string

	// Rules and preferences
	RulesPath       string
	PreferencesPath string

	// Orchestration
	PollInterval     time.Duration
	SpeedModel       string
	SigmoidMin       float64
	SigmoidMax       float64
	NeutralSpeed     float64
	TerrainThreshold float64
	Country          string
	Popularity       int
	DefaultGenres    []string
	DefaultMood      string
	DriverID         string // used when face recognition yields nothing
	SelectionBias    string
	SelectionSeed    int64 // 0 seeds from the clock

	// Sensor and classifier gateway
	GatewayURL     string
	GatewayTimeout time.Duration
	GPSSource      string

	// Recommendation catalog
	CatalogClientID     string
	CatalogClientSecret string
	CatalogURL          string
	CatalogTokenURL     string
	CatalogTimeout      time.Duration
	RecommendationLimit int

	// Ambient sounds
	SoundsDir         string
	S3Bucket          string
	S3Prefix          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UsePathStyle    bool // Required for MinIO

	GStreamerBin string

	// Persistence, cache and events
	DBBackend     DatabaseBackend
	DBDSN         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NATSURL       string
	NATSToken     string

	HTTPBind string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := Read()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read returns the configuration without validating it. Offline commands
// such as rule validation use it so they do not need catalog credentials.
func Read() *Config {
	cfg := &Config{
		Environment: getEnvAny([]string{"SONICROAD_ENV"}, "development"),
		LogLevel:    getEnvAny([]string{"SONICROAD_LOG_LEVEL"}, ""),

		RulesPath:       getEnvAny([]string{"SONICROAD_RULES_PATH"}, "./configs/rules.csv"),
		PreferencesPath: getEnvAny([]string{"SONICROAD_PREFERENCES_PATH"}, "./configs/preferences.yaml"),

		PollInterval:     getEnvDurationAny([]string{"SONICROAD_POLL_INTERVAL"}, 5*time.Second),
		SpeedModel:       getEnvAny([]string{"SONICROAD_SPEED_MODEL"}, energy.ModelLinear),
		SigmoidMin:       getEnvFloatAny([]string{"SONICROAD_SIGMOID_MIN"}, -0.2),
		SigmoidMax:       getEnvFloatAny([]string{"SONICROAD_SIGMOID_MAX"}, 0.3),
		NeutralSpeed:     getEnvFloatAny([]string{"SONICROAD_SIGMOID_NEUTRAL_SPEED"}, 50),
		TerrainThreshold: getEnvFloatAny([]string{"SONICROAD_TERRAIN_THRESHOLD"}, 0.3),
		Country:          getEnvAny([]string{"SONICROAD_COUNTRY"}, "FR"),
		Popularity:       getEnvIntAny([]string{"SONICROAD_POPULARITY"}, 60),
		DefaultGenres:    splitList(getEnvAny([]string{"SONICROAD_DEFAULT_GENRES"}, "french")),
		DefaultMood:      getEnvAny([]string{"SONICROAD_DEFAULT_MOOD"}, "neutral"),
		DriverID:         getEnvAny([]string{"SONICROAD_DRIVER_ID"}, ""),
		SelectionBias:    getEnvAny([]string{"SONICROAD_SELECTION_BIAS"}, "head"),
		SelectionSeed:    int64(getEnvIntAny([]string{"SONICROAD_SELECTION_SEED"}, 0)),

		GatewayURL:     getEnvAny([]string{"SONICROAD_GATEWAY_URL"}, "http://127.0.0.1:5000"),
		GatewayTimeout: getEnvDurationAny([]string{"SONICROAD_GATEWAY_TIMEOUT"}, 10*time.Second),
		GPSSource:      getEnvAny([]string{"SONICROAD_GPS_SOURCE"}, GPSSourceGateway),

		CatalogClientID:     getEnvAny([]string{"SPOTIFY_CLIENT_ID", "SPOTIPY_CLIENT_ID"}, ""),
		CatalogClientSecret: getEnvAny([]string{"SPOTIFY_CLIENT_SECRET", "SPOTIPY_CLIENT_SECRET"}, ""),
		CatalogURL:          getEnvAny([]string{"SONICROAD_CATALOG_URL"}, "https://api.spotify.com/v1"),
		CatalogTokenURL:     getEnvAny([]string{"SONICROAD_CATALOG_TOKEN_URL"}, "https://accounts.spotify.com/api/token"),
		CatalogTimeout:      getEnvDurationAny([]string{"SONICROAD_CATALOG_TIMEOUT"}, 10*time.Second),
		RecommendationLimit: getEnvIntAny([]string{"SONICROAD_RECOMMENDATION_LIMIT"}, 50),

		SoundsDir:         getEnvAny([]string{"SONICROAD_SOUNDS_DIR"}, "./references"),
		S3Bucket:          getEnvAny([]string{"SONICROAD_SOUNDS_S3_BUCKET"}, ""),
		S3Prefix:          getEnvAny([]string{"SONICROAD_SOUNDS_S3_PREFIX"}, ""),
		S3Endpoint:        getEnvAny([]string{"SONICROAD_SOUNDS_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3Region:          getEnvAny([]string{"SONICROAD_SOUNDS_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3AccessKeyID:     getEnvAny([]string{"SONICROAD_SOUNDS_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"SONICROAD_SOUNDS_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3UsePathStyle:    getEnvBoolAny([]string{"SONICROAD_SOUNDS_S3_USE_PATH_STYLE", "S3_USE_PATH_STYLE"}, false),

		GStreamerBin: getEnvAny([]string{"SONICROAD_GST_BIN"}, "gst-launch-1.0"),

		DBBackend:     DatabaseBackend(getEnvAny([]string{"SONICROAD_DB_BACKEND"}, string(DatabaseSQLite))),
		DBDSN:         getEnvAny([]string{"SONICROAD_DB_DSN"}, "sonicroad.db"),
		RedisAddr:     getEnvAny([]string{"SONICROAD_REDIS_ADDR"}, ""),
		RedisPassword: getEnvAny([]string{"SONICROAD_REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"SONICROAD_REDIS_DB"}, 0),
		NATSURL:       getEnvAny([]string{"SONICROAD_NATS_URL"}, ""),
		NATSToken:     getEnvAny([]string{"SONICROAD_NATS_TOKEN"}, ""),

		HTTPBind: getEnvAny([]string{"SONICROAD_HTTP_BIND"}, "127.0.0.1:8090"),

		TracingEnabled:    getEnvBoolAny([]string{"SONICROAD_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"SONICROAD_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"SONICROAD_TRACING_SAMPLE_RATE"}, 1.0),
	}
	if v, ok := os.LookupEnv("SONICROAD_HTTP_BIND"); ok && v == "" {
		cfg.HTTPBind = ""
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()
	return cfg
}

// Validate checks the settings the run loop depends on.
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("SONICROAD_POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}

	// Builds the model to run the sigmoid domain check before any tick.
	if _, err := c.EnergyModel(); err != nil {
		return fmt.Errorf("SONICROAD_SPEED_MODEL: %w", err)
	}

	if c.TerrainThreshold <= 0 || c.TerrainThreshold > 1 {
		return fmt.Errorf("SONICROAD_TERRAIN_THRESHOLD must be in (0,1], got %g", c.TerrainThreshold)
	}

	switch c.SelectionBias {
	case "head", "tail":
	default:
		return fmt.Errorf("SONICROAD_SELECTION_BIAS must be head or tail, got %q", c.SelectionBias)
	}

	if c.CatalogClientID == "" || c.CatalogClientSecret == "" {
		return fmt.Errorf("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET (or SPOTIPY_*) must be provided")
	}

	// Ticks run one after another, so an unbounded request would stall the loop.
	if c.GatewayTimeout <= 0 || c.CatalogTimeout <= 0 {
		return fmt.Errorf("SONICROAD_GATEWAY_TIMEOUT and SONICROAD_CATALOG_TIMEOUT must be positive")
	}

	if c.RecommendationLimit < 1 || c.RecommendationLimit > 100 {
		return fmt.Errorf("SONICROAD_RECOMMENDATION_LIMIT must be between 1 and 100, got %d", c.RecommendationLimit)
	}

	if c.DBBackend != DatabasePostgres && c.DBBackend != DatabaseMySQL && c.DBBackend != DatabaseSQLite {
		return fmt.Errorf("unsupported database backend %q", c.DBBackend)
	}

	if c.DBDSN == "" {
		return fmt.Errorf("SONICROAD_DB_DSN must be provided")
	}

	return nil
}

// EnergyModel builds the configured speed model.
func (c *Config) EnergyModel() (energy.Model, error) {
	return energy.NewModel(c.SpeedModel, c.SigmoidMin, c.SigmoidMax, c.NeutralSpeed)
}

// UseNMEA reports whether position comes from a local NMEA source.
func (c *Config) UseNMEA() bool {
	return c.GPSSource != "" && c.GPSSource != GPSSourceGateway
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"SPOTIPY_CLIENT_ID":     "use SPOTIFY_CLIENT_ID",
		"SPOTIPY_CLIENT_SECRET": "use SPOTIFY_CLIENT_SECRET",
		"SPOTIPY_REDIRECT_URI":  "not used; the catalog uses client credentials",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// splitList splits a slash-delimited list, dropping blanks.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, "/") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvDurationAny accepts Go durations ("5s") or bare seconds ("5").
func getEnvDurationAny(keys []string, def time.Duration) time.Duration {
	for _, k := range keys {
		v := strings.TrimSpace(os.Getenv(k))
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return def
}
