/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package ambient derives environmental sound cues from nearby places and
// terrain, and locates the matching sound files.
package ambient

import (
	"strings"

	"github.com/friendsincode/sonic_road/internal/signals"
)

// Cue is an ambient sound trigger.
type Cue string

const (
	CueStadium Cue = "stadium"
	CueMuseum  Cue = "museum"
	CuePark    Cue = "park"
	CueSchool  Cue = "school"
	CueChurch  Cue = "church"
	CueForest  Cue = "forest"
	CueWater   Cue = "water"
)

// poiCues are matched against the first category of each place, in this order.
var poiCues = []Cue{CueStadium, CueMuseum, CuePark, CueSchool, CueChurch}

// priority decides which cue is played when several fire in one tick.
var priority = []Cue{CueStadium, CueMuseum, CueChurch, CueSchool, CuePark, CueForest, CueWater}

var files = map[Cue]string{
	CueStadium: "psg.mp3",
	CueMuseum:  "museum.mp3",
	CueChurch:  "church.mp3",
	CueSchool:  "school.mp3",
	CuePark:    "forest.mp3",
	CueForest:  "forest.mp3",
	CueWater:   "water.mp3",
}

// File returns the sound file name of a cue.
func File(c Cue) (string, bool) {
	f, ok := files[c]
	return f, ok
}

// CuesFor lists the cues raised by places and terrain, without duplicates.
// Only the first (most specific) category of each place is considered, and a
// category matches a cue when it contains the cue name, so "stadium_arena"
// still raises the stadium cue.
func CuesFor(pois []signals.POI, terrain signals.Terrain) []Cue {
	seen := make(map[Cue]bool)
	var out []Cue
	add := func(c Cue) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}

	for _, poi := range pois {
		if len(poi.Categories) == 0 {
			continue
		}
		first := strings.ToLower(poi.Categories[0])
		for _, c := range poiCues {
			if strings.Contains(first, string(c)) {
				add(c)
			}
		}
	}

	switch terrain {
	case signals.TerrainForest:
		add(CueForest)
	case signals.TerrainWater:
		add(CueWater)
	}
	return out
}

// Primary returns the highest-priority cue, or false when cues is empty.
func Primary(cues []Cue) (Cue, bool) {
	for _, p := range priority {
		for _, c := range cues {
			if c == p {
				return c, true
			}
		}
	}
	return "", false
}
