/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"testing"
	"time"
)

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("SPOTIFY_CLIENT_ID", "id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setCredentials(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %s", cfg.PollInterval)
	}
	if cfg.SpeedModel != "linear" || cfg.SelectionBias != "head" || cfg.DefaultMood != "neutral" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.GatewayTimeout != 10*time.Second || cfg.CatalogTimeout != 10*time.Second {
		t.Errorf("timeouts = %s, %s", cfg.GatewayTimeout, cfg.CatalogTimeout)
	}
	if cfg.Country != "FR" || cfg.Popularity != 60 || cfg.RecommendationLimit != 50 {
		t.Errorf("unexpected catalog defaults: %+v", cfg)
	}
	if len(cfg.DefaultGenres) != 1 || cfg.DefaultGenres[0] != "french" {
		t.Errorf("DefaultGenres = %v", cfg.DefaultGenres)
	}
	if cfg.DBBackend != DatabaseSQLite || cfg.HTTPBind != "127.0.0.1:8090" {
		t.Errorf("unexpected storage defaults: %+v", cfg)
	}
	if cfg.UseNMEA() {
		t.Error("default GPS source is the gateway")
	}
}

func TestLoadReadsEnvKeys(t *testing.T) {
	setCredentials(t)
	t.Setenv("SONICROAD_POLL_INTERVAL", "2")
	t.Setenv("SONICROAD_GATEWAY_TIMEOUT", "750ms")
	t.Setenv("SONICROAD_CATALOG_TIMEOUT", "3s")
	t.Setenv("SONICROAD_DEFAULT_GENRES", "french / jazz//")
	t.Setenv("SONICROAD_GPS_SOURCE", "/dev/ttyUSB0")
	t.Setenv("SONICROAD_SELECTION_BIAS", "tail")
	t.Setenv("SONICROAD_SOUNDS_S3_USE_PATH_STYLE", "yes")
	t.Setenv("SONICROAD_HTTP_BIND", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PollInterval != 2*time.Second || cfg.GatewayTimeout != 750*time.Millisecond || cfg.CatalogTimeout != 3*time.Second {
		t.Errorf("durations = %s, %s, %s", cfg.PollInterval, cfg.GatewayTimeout, cfg.CatalogTimeout)
	}
	if len(cfg.DefaultGenres) != 2 || cfg.DefaultGenres[1] != "jazz" {
		t.Errorf("DefaultGenres = %v", cfg.DefaultGenres)
	}
	if !cfg.UseNMEA() || cfg.SelectionBias != "tail" || !cfg.S3UsePathStyle {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.HTTPBind != "" {
		t.Errorf("empty SONICROAD_HTTP_BIND should disable the server, got %q", cfg.HTTPBind)
	}
}

func TestLoadAcceptsLegacyCredentialsWithWarning(t *testing.T) {
	t.Setenv("SPOTIFY_CLIENT_ID", "")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "")
	t.Setenv("SPOTIPY_CLIENT_ID", "legacy-id")
	t.Setenv("SPOTIPY_CLIENT_SECRET", "legacy-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.CatalogClientID != "legacy-id" {
		t.Errorf("CatalogClientID = %q", cfg.CatalogClientID)
	}
	if len(cfg.LegacyEnvWarnings) != 2 {
		t.Errorf("LegacyEnvWarnings = %v", cfg.LegacyEnvWarnings)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing credentials", map[string]string{"SPOTIFY_CLIENT_ID": ""}},
		{"zero interval", map[string]string{"SONICROAD_POLL_INTERVAL": "0s"}},
		{"unknown model", map[string]string{"SONICROAD_SPEED_MODEL": "quadratic"}},
		{"sigmoid domain", map[string]string{
			"SONICROAD_SPEED_MODEL": "sigmoid",
			"SONICROAD_SIGMOID_MIN": "0.1",
			"SONICROAD_SIGMOID_MAX": "0.4",
		}},
		{"threshold", map[string]string{"SONICROAD_TERRAIN_THRESHOLD": "1.5"}},
		{"bias", map[string]string{"SONICROAD_SELECTION_BIAS": "middle"}},
		{"limit", map[string]string{"SONICROAD_RECOMMENDATION_LIMIT": "500"}},
		{"catalog timeout", map[string]string{"SONICROAD_CATALOG_TIMEOUT": "0s"}},
		{"backend", map[string]string{"SONICROAD_DB_BACKEND": "oracle"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setCredentials(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected Load() to fail")
			}
		})
	}
}

func TestLoadSigmoidModel(t *testing.T) {
	setCredentials(t)
	t.Setenv("SONICROAD_SPEED_MODEL", "sigmoid")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	model, err := cfg.EnergyModel()
	if err != nil || model.Name() != "sigmoid" {
		t.Fatalf("EnergyModel() = %v, %v", model, err)
	}
}

func TestReadSkipsValidation(t *testing.T) {
	t.Setenv("SPOTIFY_CLIENT_ID", "")
	t.Setenv("SONICROAD_RULES_PATH", "/etc/sonicroad/rules.csv")
	cfg := Read()
	if cfg.RulesPath != "/etc/sonicroad/rules.csv" {
		t.Errorf("RulesPath = %q", cfg.RulesPath)
	}
}
