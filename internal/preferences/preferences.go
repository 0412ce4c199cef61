/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package preferences loads per-driver and per-mood rule overlays.
package preferences

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/friendsincode/sonic_road/internal/rules"
)

// Preference is what one driver or one mood contributes: seed genres and
// additive deltas onto the rule table.
type Preference struct {
	Genres  []string      `yaml:"genres" json:"genres,omitempty"`
	Overlay rules.Overlay `yaml:"overlay" json:"overlay,omitempty"`
}

// Set holds every known preference.
type Set struct {
	Drivers map[string]Preference `yaml:"drivers" json:"drivers"`
	Moods   map[string]Preference `yaml:"moods" json:"moods"`
}

// LoadFile reads a YAML preference file. A missing file yields an empty set.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Set{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read preferences: %w", err)
	}
	return Load(bytes.NewReader(data))
}

// Load decodes a preference document:
//
//	drivers:
//	  alice:
//	    genres: [french, jazz]
//	    overlay:
//	      mood:
//	        happy: {target_energy: 0.1}
//	moods:
//	  sad:
//	    genres: [acoustic]
func Load(r io.Reader) (*Set, error) {
	var set Set
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&set); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	for name, p := range set.Drivers {
		set.Drivers[name] = p.normalized()
	}
	for name, p := range set.Moods {
		set.Moods[name] = p.normalized()
	}
	return &set, nil
}

func (p Preference) normalized() Preference {
	genres := p.Genres[:0:0]
	for _, g := range p.Genres {
		if g = strings.TrimSpace(g); g != "" {
			genres = append(genres, g)
		}
	}
	if len(genres) == 0 {
		genres = nil
	}
	p.Genres = genres
	return p
}

// Driver returns the preference of a driver, or the zero Preference.
func (s *Set) Driver(id string) Preference {
	if s == nil {
		return Preference{}
	}
	return s.Drivers[id]
}

// Mood returns the preference attached to a mood label, or the zero Preference.
func (s *Set) Mood(label string) Preference {
	if s == nil {
		return Preference{}
	}
	return s.Moods[label]
}

// Validate lists overlay keys that would be ignored when merged onto store.
func (s *Set) Validate(store *rules.Store) []string {
	if s == nil {
		return nil
	}
	var unknown []string
	for name, p := range s.Drivers {
		for _, path := range store.Unknown(p.Overlay) {
			unknown = append(unknown, "drivers."+name+": "+path)
		}
	}
	for name, p := range s.Moods {
		for _, path := range store.Unknown(p.Overlay) {
			unknown = append(unknown, "moods."+name+": "+path)
		}
	}
	sort.Strings(unknown)
	return unknown
}
