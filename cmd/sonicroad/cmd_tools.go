/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/sonic_road/internal/cache"
	"github.com/friendsincode/sonic_road/internal/daypart"
	"github.com/friendsincode/sonic_road/internal/db"
	"github.com/friendsincode/sonic_road/internal/history"
	"github.com/friendsincode/sonic_road/internal/preferences"
	"github.com/friendsincode/sonic_road/internal/rules"
	"github.com/friendsincode/sonic_road/internal/version"
)

var (
	rulesPath   string
	prefsPath   string
	sunriseFlag string
	sunsetFlag  string
	atFlag      string
	pruneAge    time.Duration
	checkUpdate bool
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the rule table",
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse the rule table and preferences and report problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		readConfig()
		store, err := rules.LoadFile(pathOr(rulesPath, cfg.RulesPath))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "rules: %d entries in %d categories\n", store.Len(), len(store.Categories()))

		for _, bucket := range []string{"night", "sunrise", "morning", "afternoon", "sunset"} {
			if _, err := store.Lookup(rules.CategoryDayNight, bucket); err != nil {
				fmt.Fprintf(out, "warning: %v\n", err)
			}
		}
		if _, err := store.Lookup(rules.CategoryMood, cfg.DefaultMood); err != nil {
			fmt.Fprintf(out, "warning: default mood: %v\n", err)
		}

		prefs, err := preferences.LoadFile(pathOr(prefsPath, cfg.PreferencesPath))
		if err != nil {
			return err
		}
		for _, key := range prefs.Validate(store) {
			fmt.Fprintf(out, "warning: preference key %s matches no rule\n", key)
		}
		return nil
	},
}

var rulesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the rule table as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		readConfig()
		store, err := rules.LoadFile(pathOr(rulesPath, cfg.RulesPath))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), store.Map())
	},
}

var daypartCmd = &cobra.Command{
	Use:   "daypart",
	Short: "Classify a time against sunrise and sunset",
	Long:  "Print the day-phase bucket and the breakpoints for --at (default now) given --sunrise and --sunset in RFC 3339.",
	RunE: func(cmd *cobra.Command, args []string) error {
		sunrise, err := time.Parse(time.RFC3339, sunriseFlag)
		if err != nil {
			return fmt.Errorf("--sunrise: %w", err)
		}
		sunset, err := time.Parse(time.RFC3339, sunsetFlag)
		if err != nil {
			return fmt.Errorf("--sunset: %w", err)
		}
		at := time.Now().In(sunrise.Location())
		if atFlag != "" {
			if at, err = time.Parse(time.RFC3339, atFlag); err != nil {
				return fmt.Errorf("--at: %w", err)
			}
		}

		bucket, err := daypart.Classify(at, sunrise, sunset)
		if err != nil {
			return err
		}
		points := daypart.Breakpoints(at, sunrise, sunset)
		out := make([]string, len(points))
		for i, p := range points {
			out[i] = p.Format(time.RFC3339)
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"at":          at.Format(time.RFC3339),
			"bucket":      bucket.String(),
			"breakpoints": out,
		})
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the Redis cache",
}

var cacheFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Delete cached sun times and recommendation pages",
	RunE: func(cmd *cobra.Command, args []string) error {
		readConfig()
		if cfg.RedisAddr == "" {
			return fmt.Errorf("SONICROAD_REDIS_ADDR is not set")
		}
		c, err := cache.New(cache.Config{
			RedisAddr:     cfg.RedisAddr,
			RedisPassword: cfg.RedisPassword,
			RedisDB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			return err
		}
		defer c.Close()
		if !c.IsAvailable() {
			return fmt.Errorf("redis at %s is unreachable", cfg.RedisAddr)
		}

		n, err := c.FlushAll(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d keys\n", n)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage the tick history",
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete ticks older than --older-than",
	RunE: func(cmd *cobra.Command, args []string) error {
		readConfig()
		if pruneAge <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}
		database, err := db.Connect(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close(database) }()
		if err := db.Migrate(database); err != nil {
			return err
		}

		n, err := history.NewRecorder(database, logger).Prune(cmd.Context(), time.Now().Add(-pruneAge))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d ticks\n", n)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version, optionally checking for a newer release",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), version.Version)
		if !checkUpdate {
			return nil
		}
		readConfig()
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()
		info, err := version.NewChecker(logger).Check(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), info)
	},
}

func init() {
	rulesCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "rule table path (default SONICROAD_RULES_PATH)")
	rulesValidateCmd.Flags().StringVar(&prefsPath, "preferences", "", "preferences path (default SONICROAD_PREFERENCES_PATH)")
	rulesCmd.AddCommand(rulesValidateCmd, rulesShowCmd)

	daypartCmd.Flags().StringVar(&sunriseFlag, "sunrise", "", "sunrise, RFC 3339")
	daypartCmd.Flags().StringVar(&sunsetFlag, "sunset", "", "sunset, RFC 3339")
	daypartCmd.Flags().StringVar(&atFlag, "at", "", "time to classify, RFC 3339 (default now)")
	_ = daypartCmd.MarkFlagRequired("sunrise")
	_ = daypartCmd.MarkFlagRequired("sunset")

	cacheCmd.AddCommand(cacheFlushCmd)

	historyPruneCmd.Flags().DurationVar(&pruneAge, "older-than", 30*24*time.Hour, "age of the oldest tick to keep")
	historyCmd.AddCommand(historyPruneCmd)

	versionCmd.Flags().BoolVar(&checkUpdate, "check", false, "query the latest release")

	rootCmd.AddCommand(rulesCmd, daypartCmd, cacheCmd, historyCmd, versionCmd)
}

func pathOr(flag, def string) string {
	if flag != "" {
		return flag
	}
	return def
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
