/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package signals

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Sources are the collaborators a Collector reads. Position and Sun are
// required; the rest may be nil, in which case their fields stay empty.
type Sources struct {
	Position   Positioner
	Weather    WeatherSource
	Terrain    TerrainSource
	POI        POISource
	Sun        SunSource
	Camera     Camera
	Classifier Classifier
}

// Collector builds one Snapshot per call by querying each source in turn.
// It is not safe for concurrent use; the orchestrator owns it.
type Collector struct {
	src       Sources
	threshold float64
	logger    zerolog.Logger
	now       func() time.Time

	prev    Fix
	hasPrev bool
}

// NewCollector creates a collector. threshold is the forest/water ratio above
// which terrain is detected.
func NewCollector(src Sources, threshold float64, logger zerolog.Logger) *Collector {
	return &Collector{
		src:       src,
		threshold: threshold,
		logger:    logger.With().Str("component", "signals").Logger(),
		now:       time.Now,
	}
}

// Collect queries every source sequentially. The first failure stops the
// collection and is returned as an *UnavailableError.
func (c *Collector) Collect(ctx context.Context) (Snapshot, error) {
	if c.src.Position == nil || c.src.Sun == nil {
		return Snapshot{}, &UnavailableError{Collaborator: CollabPosition, Err: errors.New("no position or sun source configured")}
	}

	fix, err := c.src.Position.Position(ctx)
	if err != nil {
		return Snapshot{}, unavailable(CollabPosition, err)
	}
	speed := c.speed(fix)

	snap := Snapshot{
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Speed:     speed,
		Terrain:   TerrainNone,
	}
	lat, lon := fix.Latitude, fix.Longitude

	if c.src.Weather != nil {
		if snap.Weather, err = c.src.Weather.Weather(ctx, lat, lon); err != nil {
			return Snapshot{}, unavailable(CollabWeather, err)
		}
	}

	if c.src.Terrain != nil {
		if snap.Ratios, err = c.src.Terrain.Ratios(ctx, lat, lon); err != nil {
			return Snapshot{}, unavailable(CollabTerrain, err)
		}
		snap.Terrain = DetectTerrain(snap.Ratios, c.threshold)
	}

	if c.src.POI != nil {
		if snap.POIs, err = c.src.POI.PointsOfInterest(ctx, lat, lon); err != nil {
			return Snapshot{}, unavailable(CollabPOI, err)
		}
	}

	sun, err := c.src.Sun.SunTimes(ctx, lat, lon)
	if err != nil {
		return Snapshot{}, unavailable(CollabSun, err)
	}
	snap.Sunrise, snap.Sunset = sun.Sunrise, sun.Sunset
	snap.Timestamp = sun.Time
	if snap.Timestamp.IsZero() {
		snap.Timestamp = c.now().In(sun.Sunrise.Location())
	}

	if err := c.classify(ctx, &snap); err != nil {
		return Snapshot{}, err
	}

	c.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Float64("speed", speed).
		Str("terrain", string(snap.Terrain)).
		Int("pois", len(snap.POIs)).
		Msg("signals collected")

	return snap, nil
}

// speed prefers the speed reported with the fix and falls back to the
// distance covered since the previous fix.
func (c *Collector) speed(fix Fix) float64 {
	defer func() {
		c.prev, c.hasPrev = fix, true
	}()
	if fix.HasSpeed {
		return fix.Speed
	}
	if !c.hasPrev {
		return 0
	}
	speed, err := SpeedFromFixes(c.prev, fix)
	if err != nil {
		c.logger.Debug().Err(err).Msg("cannot derive speed from fixes")
		return 0
	}
	return speed
}

func (c *Collector) classify(ctx context.Context, snap *Snapshot) error {
	if c.src.Camera == nil || c.src.Classifier == nil {
		return nil
	}

	face, err := c.src.Camera.Capture(ctx, ViewFace)
	if err != nil {
		return unavailable(CollabCamera, err)
	}
	if snap.Mood, err = c.src.Classifier.Mood(ctx, face); err != nil {
		return unavailable(CollabMood, err)
	}
	if snap.DriverID, err = c.src.Classifier.Face(ctx, face); err != nil {
		return unavailable(CollabFace, err)
	}

	front, err := c.src.Camera.Capture(ctx, ViewFront)
	if err != nil {
		return unavailable(CollabCamera, err)
	}
	if snap.Landscape, err = c.src.Classifier.Landscape(ctx, front); err != nil {
		return unavailable(CollabLandscape, err)
	}
	return nil
}

func unavailable(collaborator string, err error) error {
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return err
	}
	return &UnavailableError{Collaborator: collaborator, Err: err}
}
