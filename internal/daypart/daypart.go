/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package daypart buckets a moment of the day relative to sunrise and sunset.
package daypart

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Bucket is a phase of the day.
type Bucket int

const (
	Night Bucket = iota
	Sunrise
	Morning
	Afternoon
	Sunset
)

// Window is the half-width of the sunrise and sunset buckets.
const Window = 15 * time.Minute

// ErrBreakpointOrder is returned when sunrise/sunset are too close to noon for
// the five breakpoints to be strictly ascending (e.g. polar latitudes).
var ErrBreakpointOrder = errors.New("daypart: breakpoints are not strictly ascending")

// byIndex maps an insertion index into the breakpoint sequence to a bucket.
var byIndex = [6]Bucket{Night, Sunrise, Morning, Afternoon, Sunset, Night}

var names = map[Bucket]string{
	Night:     "night",
	Sunrise:   "sunrise",
	Morning:   "morning",
	Afternoon: "afternoon",
	Sunset:    "sunset",
}

func (b Bucket) String() string {
	if name, ok := names[b]; ok {
		return name
	}
	return fmt.Sprintf("Bucket(%d)", int(b))
}

// Parse converts a bucket name back to a Bucket.
func Parse(name string) (Bucket, error) {
	for b, n := range names {
		if n == name {
			return b, nil
		}
	}
	return Night, fmt.Errorf("daypart: unknown bucket %q", name)
}

// Noon returns 12:00:00 on now's calendar date, in now's location.
func Noon(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, now.Location())
}

// Breakpoints returns sunrise-15m, sunrise+15m, noon, sunset-15m, sunset+15m.
func Breakpoints(now, sunrise, sunset time.Time) [5]time.Time {
	return [5]time.Time{
		sunrise.Add(-Window),
		sunrise.Add(Window),
		Noon(now),
		sunset.Add(-Window),
		sunset.Add(Window),
	}
}

// Classify returns the bucket of now. The index of the leftmost breakpoint
// not before now selects night, sunrise, morning, afternoon, sunset or night.
func Classify(now, sunrise, sunset time.Time) (Bucket, error) {
	points := Breakpoints(now, sunrise, sunset)
	for i := 1; i < len(points); i++ {
		if !points[i-1].Before(points[i]) {
			return Night, fmt.Errorf("%w: %s is not before %s", ErrBreakpointOrder,
				points[i-1].Format(time.RFC3339), points[i].Format(time.RFC3339))
		}
	}

	idx := sort.Search(len(points), func(i int) bool {
		return !points[i].Before(now)
	})
	return byIndex[idx], nil
}
