/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package params assembles the recommendation parameter vector from the rule
// table and a signal snapshot.
package params

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/friendsincode/sonic_road/internal/daypart"
)

// Vector is one tick's recommendation query.
type Vector struct {
	Acousticness     float64  `json:"acousticness"`
	Danceability     float64  `json:"danceability"`
	Energy           float64  `json:"energy"`
	Instrumentalness float64  `json:"instrumentalness"`
	Valence          float64  `json:"valence"`
	Loudness         float64  `json:"loudness"`
	Liveness         float64  `json:"liveness"`
	Tempo            float64  `json:"tempo"`
	MinTempo         float64  `json:"min_tempo,omitempty"`
	Popularity       int      `json:"popularity"`
	Country          string   `json:"country"`
	SeedGenres       []string `json:"seed_genres"`

	// Bucket is the day phase the vector was built for. It is not part of the query.
	Bucket daypart.Bucket `json:"-"`
}

// Map flattens the vector into the recommendation request structure: numeric
// targets as floats, seed_genres as a list, country and popularity as scalars.
func (v Vector) Map() map[string]any {
	m := map[string]any{
		"target_acousticness":     round(v.Acousticness),
		"target_danceability":     round(v.Danceability),
		"target_energy":           round(v.Energy),
		"target_instrumentalness": round(v.Instrumentalness),
		"target_valence":          round(v.Valence),
		"target_loudness":         round(v.Loudness),
		"target_liveness":         round(v.Liveness),
		"target_tempo":            round(v.Tempo),
		"seed_genres":             append([]string(nil), v.SeedGenres...),
		"country":                 v.Country,
		"popularity":              v.Popularity,
	}
	if v.MinTempo > 0 {
		m["min_tempo"] = round(v.MinTempo)
	}
	return m
}

// Values encodes the vector as catalog query parameters.
func (v Vector) Values() url.Values {
	q := url.Values{}
	q.Set("target_acousticness", formatFloat(v.Acousticness))
	q.Set("target_danceability", formatFloat(v.Danceability))
	q.Set("target_energy", formatFloat(v.Energy))
	q.Set("target_instrumentalness", formatFloat(v.Instrumentalness))
	q.Set("target_valence", formatFloat(v.Valence))
	q.Set("target_loudness", formatFloat(v.Loudness))
	q.Set("target_liveness", formatFloat(v.Liveness))
	q.Set("target_tempo", formatFloat(v.Tempo))
	q.Set("target_popularity", strconv.Itoa(v.Popularity))
	if v.MinTempo > 0 {
		q.Set("min_tempo", formatFloat(v.MinTempo))
	}
	if v.Country != "" {
		q.Set("market", v.Country)
	}
	if len(v.SeedGenres) > 0 {
		q.Set("seed_genres", strings.Join(v.SeedGenres, ","))
	}
	return q
}

func round(f float64) float64 {
	return math.Round(f*1e4) / 1e4
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(round(f), 'f', -1, 64)
}
