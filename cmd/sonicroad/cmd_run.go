/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/friendsincode/sonic_road/internal/ambient"
	"github.com/friendsincode/sonic_road/internal/cache"
	"github.com/friendsincode/sonic_road/internal/catalog"
	"github.com/friendsincode/sonic_road/internal/db"
	"github.com/friendsincode/sonic_road/internal/eventbus"
	"github.com/friendsincode/sonic_road/internal/events"
	"github.com/friendsincode/sonic_road/internal/history"
	"github.com/friendsincode/sonic_road/internal/orchestrator"
	"github.com/friendsincode/sonic_road/internal/params"
	"github.com/friendsincode/sonic_road/internal/playback"
	"github.com/friendsincode/sonic_road/internal/preferences"
	"github.com/friendsincode/sonic_road/internal/rules"
	"github.com/friendsincode/sonic_road/internal/selector"
	"github.com/friendsincode/sonic_road/internal/server"
	"github.com/friendsincode/sonic_road/internal/signals"
	"github.com/friendsincode/sonic_road/internal/telemetry"
	"github.com/friendsincode/sonic_road/internal/version"
)

var runOnce bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the orchestration loop",
	Long:  "Poll the signal sources, build recommendation parameters and keep music and ambient sound playing until interrupted.",
	RunE:  runLoop,
}

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "run a single tick, print its record, play what it picked to the end and exit")
	rootCmd.AddCommand(runCmd)
}

func runLoop(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}
	logger.Info().Str("version", version.Version).Msg("Sonic Road starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceName:    "sonic-road",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	store, err := rules.LoadFile(cfg.RulesPath)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	prefs, err := preferences.LoadFile(cfg.PreferencesPath)
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}
	for _, key := range prefs.Validate(store) {
		logger.Warn().Str("key", key).Msg("preference overlay key matches no rule and is ignored")
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = db.Close(database) }()
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	recorder := history.NewRecorder(database, logger)

	var sunCache signals.SunCache
	var pageCache catalog.PageCache
	if cfg.RedisAddr != "" {
		c, err := cache.New(cache.Config{
			RedisAddr:      cfg.RedisAddr,
			RedisPassword:  cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DisableOnError: true,
		}, logger)
		if err != nil {
			return fmt.Errorf("initialize cache: %w", err)
		}
		defer c.Close()
		sunCache, pageCache = c, c
	}

	sources, closeSources, err := buildSources(ctx, sunCache)
	if err != nil {
		return err
	}
	defer closeSources()

	var recommender catalog.Recommender = catalog.New(catalog.Config{
		BaseURL:      cfg.CatalogURL,
		TokenURL:     cfg.CatalogTokenURL,
		ClientID:     cfg.CatalogClientID,
		ClientSecret: cfg.CatalogClientSecret,
		Limit:        cfg.RecommendationLimit,
		Timeout:      cfg.CatalogTimeout,
	}, logger)
	if pageCache != nil {
		recommender = catalog.NewCached(recommender, pageCache)
	}

	bank, err := buildSoundBank(ctx)
	if err != nil {
		return err
	}
	if err := bank.CheckAccess(ctx); err != nil {
		logger.Warn().Err(err).Msg("ambient sounds are not reachable; ticks will play music only")
	}

	model, err := cfg.EnergyModel()
	if err != nil {
		return err
	}
	bias, err := selector.ParseBias(cfg.SelectionBias)
	if err != nil {
		return err
	}
	seed := cfg.SelectionSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	deck := playback.NewDeck(playback.NewGstPlayer(cfg.GStreamerBin, logger), logger)
	bus := events.NewBus()

	orch, err := orchestrator.New(orchestrator.Config{
		Interval:      cfg.PollInterval,
		DefaultDriver: cfg.DriverID,
	}, orchestrator.Deps{
		Signals:     signals.NewCollector(sources, cfg.TerrainThreshold, logger),
		Rules:       store,
		Preferences: prefs,
		Assembler: params.NewAssembler(params.Config{
			Country:       cfg.Country,
			Popularity:    cfg.Popularity,
			DefaultGenres: cfg.DefaultGenres,
			DefaultMood:   cfg.DefaultMood,
		}, model),
		Catalog:  recommender,
		Selector: selector.New(seed, bias),
		Music:    deck.Music,
		Sounds:   bank,
		Ambient:  deck.Ambient,
		History:  recorder,
		Bus:      bus,
	}, logger)
	if err != nil {
		return err
	}

	if runOnce {
		rec := orch.Tick(ctx)
		if err := printJSON(cmd.OutOrStdout(), rec); err != nil {
			return err
		}
		return playOnce(ctx, deck)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return deck.Run(gctx) })
	g.Go(func() error { return orch.Run(gctx) })

	if cfg.NATSURL != "" {
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		natsCfg.Token = cfg.NATSToken
		nc, err := eventbus.Connect(natsCfg, logger)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer nc.Close()
		mirror := eventbus.NewMirror(bus, nc, logger)
		g.Go(func() error { return mirror.Run(gctx) })
	}

	if cfg.HTTPBind != "" {
		srv, err := server.New(server.Options{
			Bind:        cfg.HTTPBind,
			ServiceName: "sonic-road-api",
			Status:      orch,
			History:     recorder,
		}, logger)
		if err != nil {
			return fmt.Errorf("initialize server: %w", err)
		}
		g.Go(func() error { return srv.Run(gctx) })
	}

	g.Go(func() error {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				db.UpdateConnectionMetrics(database)
			}
		}
	})

	err = g.Wait()
	logger.Info().Msg("Sonic Road stopped")
	return err
}

// buildSources wires the gateway as every collaborator, swapping in a local
// NMEA feed for position when one is configured and the sun cache when Redis
// is available.
func buildSources(ctx context.Context, sunCache signals.SunCache) (signals.Sources, func(), error) {
	gwCfg := signals.DefaultGatewayConfig()
	gwCfg.BaseURL = cfg.GatewayURL
	gwCfg.Timeout = cfg.GatewayTimeout
	gw := signals.NewGateway(gwCfg, logger)

	src := signals.Sources{
		Position:   gw,
		Weather:    gw,
		Terrain:    gw,
		POI:        gw,
		Sun:        gw,
		Camera:     gw,
		Classifier: gw,
	}
	if sunCache != nil {
		src.Sun = signals.NewCachedSun(gw, sunCache)
	}

	closer := func() {}
	if cfg.UseNMEA() {
		reader, c, err := signals.OpenNMEA(ctx, cfg.GPSSource, logger)
		if err != nil {
			return signals.Sources{}, nil, err
		}
		src.Position = reader
		closer = func() { _ = c.Close() }
		logger.Info().Str("source", cfg.GPSSource).Msg("reading position from NMEA feed")
	}
	return src, closer, nil
}

type soundBank interface {
	ambient.SoundBank
	CheckAccess(ctx context.Context) error
}

// buildSoundBank prefers the S3 bucket when one is configured.
func buildSoundBank(ctx context.Context) (soundBank, error) {
	if cfg.S3Bucket != "" {
		bank, err := ambient.NewS3Bank(ctx, ambient.S3Config{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3UsePathStyle,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize sound bucket: %w", err)
		}
		return bank, nil
	}
	bank, err := ambient.NewDirBank(cfg.SoundsDir, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize sound directory: %w", err)
	}
	return bank, nil
}

// playOnce drives the deck until the sounds submitted by a single tick have
// finished, or ctx is cancelled.
func playOnce(ctx context.Context, deck *playback.Deck) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return deck.Run(gctx) })
	g.Go(func() error {
		defer cancel()
		if err := deck.Wait(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return g.Wait()
}
