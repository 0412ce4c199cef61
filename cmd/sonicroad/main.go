/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/sonic_road/internal/config"
	"github.com/friendsincode/sonic_road/internal/logging"
	"github.com/friendsincode/sonic_road/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:     "sonicroad",
	Short:   "Sonic Road - context-driven music for the car",
	Long:    "Sonic Road reads the driving context (position, speed, time of day, landscape, mood) and keeps playing music and ambient sound that fit it.",
	Version: version.Version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads and validates the full configuration.
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = logging.Setup(cfg.Environment, cfg.LogLevel)
	return nil
}

// readConfig is loadConfig without validation, for offline commands.
func readConfig() {
	cfg = config.Read()
	logger = logging.Setup(cfg.Environment, cfg.LogLevel)
}
