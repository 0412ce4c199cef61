/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package orchestrator runs the polling loop that turns driving context into
// music: collect signals, cue ambient sound, assemble parameters, query the
// catalog, pick a track and hand it to the player.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/sonic_road/internal/ambient"
	"github.com/friendsincode/sonic_road/internal/catalog"
	"github.com/friendsincode/sonic_road/internal/daypart"
	"github.com/friendsincode/sonic_road/internal/energy"
	"github.com/friendsincode/sonic_road/internal/events"
	"github.com/friendsincode/sonic_road/internal/models"
	"github.com/friendsincode/sonic_road/internal/params"
	"github.com/friendsincode/sonic_road/internal/playback"
	"github.com/friendsincode/sonic_road/internal/preferences"
	"github.com/friendsincode/sonic_road/internal/rules"
	"github.com/friendsincode/sonic_road/internal/selector"
	"github.com/friendsincode/sonic_road/internal/signals"
	"github.com/friendsincode/sonic_road/internal/telemetry"
)

// SnapshotSource produces one signal snapshot per call.
type SnapshotSource interface {
	Collect(ctx context.Context) (signals.Snapshot, error)
}

// Channel accepts playback requests without blocking.
type Channel interface {
	Submit(r playback.Request)
}

// TickRecorder persists tick records.
type TickRecorder interface {
	Record(ctx context.Context, rec *models.TickRecord) error
}

// Config tunes the loop.
type Config struct {
	Interval      time.Duration
	DefaultDriver string // preference key used when no face is recognised
}

// Deps are the collaborators of the loop. Sounds, Ambient, History and Bus
// are optional.
type Deps struct {
	Signals     SnapshotSource
	Rules       *rules.Store
	Preferences *preferences.Set
	Assembler   *params.Assembler
	Catalog     catalog.Recommender
	Selector    *selector.Selector
	Music       Channel

	Sounds  ambient.SoundBank
	Ambient Channel
	History TickRecorder
	Bus     *events.Bus
}

// Orchestrator is the polling loop. Ticks run strictly one after another.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger
	now    func() time.Time

	mu   sync.RWMutex
	last *models.TickRecord
}

// New checks that the required collaborators are present.
func New(cfg Config, deps Deps, logger zerolog.Logger) (*Orchestrator, error) {
	switch {
	case deps.Signals == nil:
		return nil, errors.New("orchestrator: signal source is required")
	case deps.Rules == nil:
		return nil, errors.New("orchestrator: rule store is required")
	case deps.Assembler == nil:
		return nil, errors.New("orchestrator: assembler is required")
	case deps.Catalog == nil:
		return nil, errors.New("orchestrator: catalog is required")
	case deps.Selector == nil:
		return nil, errors.New("orchestrator: selector is required")
	case deps.Music == nil:
		return nil, errors.New("orchestrator: music channel is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	return &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With().Str("component", "orchestrator").Logger(),
		now:    time.Now,
	}, nil
}

// Rules returns the base rule store.
func (o *Orchestrator) Rules() *rules.Store { return o.deps.Rules }

// Interval returns the pause between ticks.
func (o *Orchestrator) Interval() time.Duration { return o.cfg.Interval }

// Last returns the most recent tick.
func (o *Orchestrator) Last() (models.TickRecord, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return models.TickRecord{}, false
	}
	return *o.last, true
}

// Run ticks immediately, then waits Interval after each tick finishes. A
// failed tick never stops the loop.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info().Dur("interval", o.cfg.Interval).Str("speed_model", o.deps.Assembler.Model().Name()).Msg("orchestrator started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info().Msg("orchestrator stopped")
			return nil
		case <-timer.C:
			o.Tick(ctx)
			timer.Reset(o.cfg.Interval)
		}
	}
}

// Tick runs one pass of the loop and returns its record.
func (o *Orchestrator) Tick(ctx context.Context) models.TickRecord {
	start := o.now()
	ctx, span := telemetry.StartSpan(ctx, "orchestrator", "tick")
	defer span.End()

	rec := &models.TickRecord{ID: uuid.NewString(), StartedAt: start.UTC()}
	err := o.tick(ctx, rec)
	rec.Outcome, rec.Reason = outcomeOf(rec, err)
	rec.DurationMS = o.now().Sub(start).Milliseconds()

	telemetry.TicksTotal.WithLabelValues(rec.Outcome).Inc()
	telemetry.TickDuration.Observe(o.now().Sub(start).Seconds())
	telemetry.AddSpanAttributes(span, map[string]any{
		"tick.id":      rec.ID,
		"tick.outcome": rec.Outcome,
		"tick.bucket":  rec.Bucket,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		var unavailable *signals.UnavailableError
		if errors.As(err, &unavailable) {
			telemetry.CollaboratorErrors.WithLabelValues(unavailable.Collaborator).Inc()
		}
	}

	if o.deps.History != nil {
		if herr := o.deps.History.Record(ctx, rec); herr != nil {
			o.logger.Warn().Err(herr).Str("tick", rec.ID).Msg("failed to record tick")
		}
	}
	o.publish(events.EventTick, tickPayload(rec))
	o.logTick(rec, err)

	o.mu.Lock()
	o.last = rec
	o.mu.Unlock()
	return *rec
}

func (o *Orchestrator) tick(ctx context.Context, rec *models.TickRecord) error {
	snap, err := o.deps.Signals.Collect(ctx)
	if err != nil {
		return err
	}
	rec.Latitude, rec.Longitude, rec.Speed = snap.Latitude, snap.Longitude, snap.Speed
	rec.Weather, rec.Terrain = snap.Weather, string(snap.Terrain)
	rec.Mood, rec.DriverID, rec.Landscape = snap.Mood, snap.DriverID, snap.Landscape

	o.cueAmbient(ctx, snap, rec)

	driverID := snap.DriverID
	if driverID == "" {
		driverID = o.cfg.DefaultDriver
	}
	vec, err := o.deps.Assembler.Assemble(snap, o.deps.Rules,
		o.deps.Preferences.Driver(driverID), o.deps.Preferences.Mood(snap.Mood))
	if err != nil {
		return err
	}
	rec.Bucket = vec.Bucket.String()
	rec.Params = vec.Map()
	observeVector(vec)

	cands, err := o.deps.Catalog.Recommend(ctx, vec.Values())
	if err != nil {
		return fmt.Errorf("recommendation: %w", err)
	}
	rec.Candidates = len(cands)

	track, ok := o.deps.Selector.Select(cands)
	if !ok {
		return nil
	}
	rec.TrackID, rec.TrackLabel, rec.PreviewURL = track.ID, track.Label(), track.PreviewURL
	o.deps.Music.Submit(playback.Request{URI: track.PreviewURL, Label: track.Label()})
	o.publish(events.EventTrackSelected, events.Payload{
		"tick_id":     rec.ID,
		"track_id":    track.ID,
		"track":       track.Label(),
		"preview_url": track.PreviewURL,
		"bucket":      rec.Bucket,
	})
	return nil
}

// cueAmbient plays the highest-priority cue. Sound bank failures only cost
// the ambient layer, never the tick.
func (o *Orchestrator) cueAmbient(ctx context.Context, snap signals.Snapshot, rec *models.TickRecord) {
	if o.deps.Sounds == nil || o.deps.Ambient == nil {
		return
	}
	cue, ok := ambient.Primary(ambient.CuesFor(snap.POIs, snap.Terrain))
	if !ok {
		return
	}
	uri, err := o.deps.Sounds.Locate(ctx, cue)
	if err != nil {
		o.logger.Warn().Err(err).Str("cue", string(cue)).Msg("ambient sound unavailable")
		return
	}
	rec.AmbientCue = string(cue)
	o.deps.Ambient.Submit(playback.Request{URI: uri, Label: string(cue)})
	o.publish(events.EventAmbientCue, events.Payload{"tick_id": rec.ID, "cue": string(cue)})
}

func (o *Orchestrator) publish(et events.EventType, payload events.Payload) {
	if o.deps.Bus != nil {
		o.deps.Bus.Publish(et, payload)
	}
}

// outcomeOf maps a tick error to its outcome. Configuration problems skip
// the tick; failing collaborators abort it.
func outcomeOf(rec *models.TickRecord, err error) (string, string) {
	if err == nil {
		if rec.TrackID == "" {
			return models.OutcomeSilent, "no candidate with a preview"
		}
		return models.OutcomePlayed, ""
	}

	var cfgErr *rules.ConfigError
	var domainErr *energy.DomainError
	if errors.As(err, &cfgErr) || errors.As(err, &domainErr) || errors.Is(err, daypart.ErrBreakpointOrder) {
		return models.OutcomeSkipped, err.Error()
	}
	return models.OutcomeAborted, err.Error()
}

func observeVector(v params.Vector) {
	for k, val := range v.Map() {
		if f, ok := val.(float64); ok {
			telemetry.TargetParameter.WithLabelValues(k).Set(f)
		}
	}
}

func tickPayload(rec *models.TickRecord) events.Payload {
	return events.Payload{
		"tick_id":     rec.ID,
		"outcome":     rec.Outcome,
		"reason":      rec.Reason,
		"bucket":      rec.Bucket,
		"speed":       rec.Speed,
		"terrain":     rec.Terrain,
		"track":       rec.TrackLabel,
		"ambient_cue": rec.AmbientCue,
		"duration_ms": rec.DurationMS,
	}
}

func (o *Orchestrator) logTick(rec *models.TickRecord, err error) {
	var ev *zerolog.Event
	switch rec.Outcome {
	case models.OutcomePlayed, models.OutcomeSilent:
		ev = o.logger.Info()
	default:
		ev = o.logger.Warn().Err(err)
	}
	ev.Str("tick", rec.ID).
		Str("outcome", rec.Outcome).
		Str("bucket", rec.Bucket).
		Float64("speed", rec.Speed).
		Str("terrain", rec.Terrain).
		Str("mood", rec.Mood).
		Str("track", rec.TrackLabel).
		Str("ambient", rec.AmbientCue).
		Int64("duration_ms", rec.DurationMS).
		Msg("tick")
}
