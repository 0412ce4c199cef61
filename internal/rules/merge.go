/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package rules

import "sort"

// Overlay is a partial rule structure of numeric deltas:
// category -> label -> parameter -> delta.
type Overlay map[string]map[string]map[string]float64

// Merge composes overlay onto base and returns a new store; base is left untouched.
//
// A parameter present in both gets base + delta. Overlay triples whose
// (category, label, parameter) does not already exist in base are ignored:
// merging never creates keys.
func Merge(base *Store, overlay Overlay) *Store {
	out := base.clone()
	for category, labels := range overlay {
		entries, ok := out.categories[category]
		if !ok {
			continue
		}
		for label, params := range labels {
			entry, ok := entries[label]
			if !ok {
				continue
			}
			for param, delta := range params {
				current, ok := entry.Params[param]
				if !ok {
					continue
				}
				entry.Params[param] = current + delta
			}
		}
	}
	return out
}

// Unknown lists the overlay triples that Merge would ignore against s,
// formatted as "category/label/param" and sorted.
func (s *Store) Unknown(overlay Overlay) []string {
	var missing []string
	for category, labels := range overlay {
		for label, params := range labels {
			for param := range params {
				entry, err := s.Lookup(category, label)
				if err == nil {
					if _, ok := entry.Params[param]; ok {
						continue
					}
				}
				missing = append(missing, category+"/"+label+"/"+param)
			}
		}
	}
	sort.Strings(missing)
	return missing
}
