/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package rules

import (
	"encoding/json"
	"sort"
)

// Parameter names as they appear in the rule table header.
const (
	ParamAcousticness     = "target_acousticness"
	ParamEnergy           = "target_energy"
	ParamLoudness         = "target_loudness"
	ParamLiveness         = "target_liveness"
	ParamDanceability     = "target_danceability"
	ParamInstrumentalness = "target_instrumentalness"
	ParamValence          = "target_valence"
)

// Categories consulted by the parameter assembler.
const (
	CategoryDayNight = "day/night"
	CategoryMood     = "mood"
)

// NumericParams lists every numeric column of the rule table in header order.
var NumericParams = []string{
	ParamAcousticness,
	ParamEnergy,
	ParamLoudness,
	ParamLiveness,
	ParamDanceability,
	ParamInstrumentalness,
	ParamValence,
}

// Entry is the parameter set attached to one (category, label) pair.
type Entry struct {
	Params map[string]float64
	// SeedGenres is nil when the table cell was blank. Order is significant.
	SeedGenres []string
}

// Value returns a numeric parameter.
func (e Entry) Value(param string) (float64, bool) {
	v, ok := e.Params[param]
	return v, ok
}

// MarshalJSON flattens the entry into a single object keyed by column name.
func (e Entry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Params)+1)
	for k, v := range e.Params {
		out[k] = v
	}
	if e.SeedGenres != nil {
		out["seed_genres"] = e.SeedGenres
	}
	return json.Marshal(out)
}

func (e Entry) clone() Entry {
	params := make(map[string]float64, len(e.Params))
	for k, v := range e.Params {
		params[k] = v
	}
	var genres []string
	if e.SeedGenres != nil {
		genres = append([]string{}, e.SeedGenres...)
	}
	return Entry{Params: params, SeedGenres: genres}
}

// Store maps category -> label -> Entry.
//
// A Store is never modified after construction; Merge and Lookup hand out copies,
// so a single instance can be shared across ticks and goroutines.
type Store struct {
	categories map[string]map[string]Entry
}

// NewStore builds a store from an explicit category map. The input is copied.
func NewStore(categories map[string]map[string]Entry) *Store {
	s := &Store{categories: make(map[string]map[string]Entry, len(categories))}
	for category, labels := range categories {
		inner := make(map[string]Entry, len(labels))
		for label, entry := range labels {
			inner[label] = entry.clone()
		}
		s.categories[category] = inner
	}
	return s
}

// Lookup returns the entry for (category, label).
func (s *Store) Lookup(category, label string) (Entry, error) {
	if s != nil {
		if labels, ok := s.categories[category]; ok {
			if entry, ok := labels[label]; ok {
				return entry.clone(), nil
			}
		}
	}
	return Entry{}, &ConfigError{Kind: KindNotFound, Category: category, Label: label}
}

// Categories returns category names in sorted order.
func (s *Store) Categories() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.categories))
	for category := range s.categories {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}

// Labels returns the labels of a category in sorted order.
func (s *Store) Labels(category string) []string {
	if s == nil {
		return nil
	}
	labels := s.categories[category]
	out := make([]string, 0, len(labels))
	for label := range labels {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Len reports the number of (category, label) entries.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, labels := range s.categories {
		n += len(labels)
	}
	return n
}

// Map returns a deep copy of the store contents.
func (s *Store) Map() map[string]map[string]Entry {
	if s == nil {
		return map[string]map[string]Entry{}
	}
	return NewStore(s.categories).categories
}

func (s *Store) clone() *Store {
	if s == nil {
		return &Store{categories: map[string]map[string]Entry{}}
	}
	return NewStore(s.categories)
}
