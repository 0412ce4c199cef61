/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package signals captures the live context of the car once per tick: position,
// speed, weather, terrain, nearby points of interest, sun times and what the
// cabin cameras see.
package signals

import (
	"context"
	"fmt"
	"time"
)

// Terrain is the dominant landscape around the vehicle.
type Terrain string

const (
	TerrainNone   Terrain = "none"
	TerrainForest Terrain = "forest"
	TerrainWater  Terrain = "water"
)

// View selects a cabin camera.
type View string

const (
	ViewFace  View = "face"
	ViewFront View = "front"
)

// Collaborator names used in UnavailableError.
const (
	CollabPosition  = "position"
	CollabWeather   = "weather"
	CollabTerrain   = "terrain"
	CollabPOI       = "poi"
	CollabSun       = "sun"
	CollabCamera    = "camera"
	CollabMood      = "mood"
	CollabFace      = "face"
	CollabLandscape = "landscape"
)

// Fix is one GPS reading. Speed is in km/h and only meaningful when HasSpeed.
type Fix struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
	Speed     float64   `json:"speed,omitempty"`
	HasSpeed  bool      `json:"-"`
}

// Ratios is the share of forest and water pixels in the map tile around a position.
type Ratios struct {
	Forest float64 `json:"forest_ratio"`
	Water  float64 `json:"water_ratio"`
}

// POI is a named place with its categories, most specific first.
type POI struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

// SunTimes are the sunrise and sunset for a position, plus the collaborator's
// notion of the current time.
type SunTimes struct {
	Time    time.Time `json:"time"`
	Sunrise time.Time `json:"sunrise"`
	Sunset  time.Time `json:"sunset"`
}

// Snapshot is one tick's reading of every signal source. It is built by the
// Collector and never modified afterwards.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Speed     float64   `json:"speed"`
	Weather   string    `json:"weather"`
	Terrain   Terrain   `json:"terrain"`
	Ratios    Ratios    `json:"ratios"`
	POIs      []POI     `json:"pois"`
	Mood      string    `json:"mood"`
	DriverID  string    `json:"driver_id"`
	Landscape string    `json:"landscape"`
	Sunrise   time.Time `json:"sunrise"`
	Sunset    time.Time `json:"sunset"`
}

// POICategories flattens the categories of every POI, in order.
func (s Snapshot) POICategories() []string {
	var out []string
	for _, poi := range s.POIs {
		out = append(out, poi.Categories...)
	}
	return out
}

// UnavailableError reports a collaborator call that failed or returned
// something unusable. It aborts the current tick only.
type UnavailableError struct {
	Collaborator string
	Err          error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("signal %s unavailable: %v", e.Collaborator, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Positioner reports the latest GPS fix.
type Positioner interface {
	Position(ctx context.Context) (Fix, error)
}

// WeatherSource labels the weather at a position.
type WeatherSource interface {
	Weather(ctx context.Context, lat, lon float64) (string, error)
}

// TerrainSource measures forest and water around a position.
type TerrainSource interface {
	Ratios(ctx context.Context, lat, lon float64) (Ratios, error)
}

// POISource lists interesting places around a position.
type POISource interface {
	PointsOfInterest(ctx context.Context, lat, lon float64) ([]POI, error)
}

// SunSource returns sunrise and sunset for a position.
type SunSource interface {
	SunTimes(ctx context.Context, lat, lon float64) (SunTimes, error)
}

// Camera captures a still image from one of the cabin cameras.
type Camera interface {
	Capture(ctx context.Context, view View) ([]byte, error)
}

// Classifier runs the pretrained image models.
type Classifier interface {
	Mood(ctx context.Context, image []byte) (string, error)
	Face(ctx context.Context, image []byte) (string, error)
	Landscape(ctx context.Context, image []byte) (string, error)
}
