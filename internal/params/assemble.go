/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package params

import (
	"fmt"

	"github.com/friendsincode/sonic_road/internal/daypart"
	"github.com/friendsincode/sonic_road/internal/energy"
	"github.com/friendsincode/sonic_road/internal/preferences"
	"github.com/friendsincode/sonic_road/internal/rules"
	"github.com/friendsincode/sonic_road/internal/signals"
)

// Config holds the fixed parts of every vector.
type Config struct {
	Country       string
	Popularity    int
	DefaultGenres []string
	// DefaultMood is looked up when the snapshot carries no mood label.
	DefaultMood   string
	MaxSeedGenres int
}

// DefaultConfig returns the French-radio defaults.
func DefaultConfig() Config {
	return Config{
		Country:       "FR",
		Popularity:    60,
		DefaultGenres: []string{"french"},
		DefaultMood:   "neutral",
		MaxSeedGenres: 5,
	}
}

// terrainBaseline is the energy and valence a landscape sets before the
// speed adjustment. Rule entries do not move these two targets.
var terrainBaseline = map[signals.Terrain]float64{
	signals.TerrainForest: 0.5,
	signals.TerrainWater:  0.8,
}

const defaultBaseline = 0.7

// Assembler turns a snapshot into a Vector.
type Assembler struct {
	cfg   Config
	model energy.Model
}

// NewAssembler creates an assembler. A nil model means the linear speed rule.
func NewAssembler(cfg Config, model energy.Model) *Assembler {
	if model == nil {
		model = energy.DefaultLinear()
	}
	if cfg.MaxSeedGenres <= 0 {
		cfg.MaxSeedGenres = DefaultConfig().MaxSeedGenres
	}
	return &Assembler{cfg: cfg, model: model}
}

// Model returns the speed model in use.
func (a *Assembler) Model() energy.Model { return a.model }

// Assemble builds the vector for snap.
//
// The driver's and the mood's overlays are merged onto store first, so their
// deltas shift the looked-up values. Acousticness, danceability,
// instrumentalness, loudness and liveness are the mean of the day-phase entry
// and the mood entry. Energy and valence start from the terrain baseline; the
// speed model then sets tempo and shifts energy. Fractional targets are
// clamped to [0,1].
//
// Errors: daypart.ErrBreakpointOrder, *rules.ConfigError for a missing rule
// and *energy.DomainError from the speed model.
func (a *Assembler) Assemble(snap signals.Snapshot, store *rules.Store, driver, mood preferences.Preference) (Vector, error) {
	composed := rules.Merge(rules.Merge(store, driver.Overlay), mood.Overlay)

	bucket, err := daypart.Classify(snap.Timestamp, snap.Sunrise, snap.Sunset)
	if err != nil {
		return Vector{}, err
	}

	dayEntry, err := composed.Lookup(rules.CategoryDayNight, bucket.String())
	if err != nil {
		return Vector{}, err
	}
	moodLabel := snap.Mood
	if moodLabel == "" {
		moodLabel = a.cfg.DefaultMood
	}
	moodEntry, err := composed.Lookup(rules.CategoryMood, moodLabel)
	if err != nil {
		return Vector{}, err
	}

	pair := entryPair{
		day:       dayEntry,
		mood:      moodEntry,
		dayLabel:  bucket.String(),
		moodLabel: moodLabel,
	}

	baseline, ok := terrainBaseline[snap.Terrain]
	if !ok {
		baseline = defaultBaseline
	}

	v := Vector{
		Energy:     baseline,
		Valence:    baseline,
		Popularity: a.cfg.Popularity,
		Country:    a.cfg.Country,
		Bucket:     bucket,
	}
	fields := []struct {
		param string
		dst   *float64
	}{
		{rules.ParamAcousticness, &v.Acousticness},
		{rules.ParamDanceability, &v.Danceability},
		{rules.ParamInstrumentalness, &v.Instrumentalness},
		{rules.ParamLoudness, &v.Loudness},
		{rules.ParamLiveness, &v.Liveness},
	}
	for _, f := range fields {
		if *f.dst, err = pair.mean(f.param); err != nil {
			return Vector{}, err
		}
	}

	adj, err := a.model.Adjust(snap.Speed)
	if err != nil {
		return Vector{}, fmt.Errorf("speed model %s: %w", a.model.Name(), err)
	}
	v.Tempo = adj.Tempo
	v.Energy += adj.EnergyDelta
	v.MinTempo = adj.MinTempo

	v.SeedGenres = a.seedGenres(driver.Genres, moodEntry.SeedGenres, mood.Genres, dayEntry.SeedGenres)

	v.Acousticness = clamp01(v.Acousticness)
	v.Danceability = clamp01(v.Danceability)
	v.Energy = clamp01(v.Energy)
	v.Instrumentalness = clamp01(v.Instrumentalness)
	v.Valence = clamp01(v.Valence)
	v.Liveness = clamp01(v.Liveness)

	return v, nil
}

type entryPair struct {
	day, mood           rules.Entry
	dayLabel, moodLabel string
}

func (p entryPair) mean(param string) (float64, error) {
	d, ok := p.day.Value(param)
	if !ok {
		return 0, &rules.ConfigError{Kind: rules.KindNotFound, Category: rules.CategoryDayNight, Label: p.dayLabel, Param: param}
	}
	m, ok := p.mood.Value(param)
	if !ok {
		return 0, &rules.ConfigError{Kind: rules.KindNotFound, Category: rules.CategoryMood, Label: p.moodLabel, Param: param}
	}
	return (d + m) / 2, nil
}

// seedGenres concatenates the sources in priority order, drops duplicates and
// caps the list. An empty result falls back to the configured defaults.
func (a *Assembler) seedGenres(sources ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, src := range sources {
		for _, g := range src {
			if _, dup := seen[g]; dup || g == "" {
				continue
			}
			seen[g] = struct{}{}
			out = append(out, g)
			if len(out) == a.cfg.MaxSeedGenres {
				return out
			}
		}
	}
	if len(out) == 0 {
		return append([]string(nil), a.cfg.DefaultGenres...)
	}
	return out
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
