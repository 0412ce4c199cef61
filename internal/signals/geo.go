/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package signals

import (
	"errors"

	"github.com/tidwall/geodesic"
)

// ErrNoElapsed is returned when two fixes carry the same or reversed timestamps.
var ErrNoElapsed = errors.New("signals: fixes are not ordered in time")

// Distance returns the WGS84 geodesic distance between two fixes in metres.
func Distance(a, b Fix) float64 {
	var metres float64
	geodesic.WGS84.Inverse(a.Latitude, a.Longitude, b.Latitude, b.Longitude, &metres, nil, nil)
	return metres
}

// SpeedFromFixes derives km/h from the distance travelled between prev and cur.
func SpeedFromFixes(prev, cur Fix) (float64, error) {
	elapsed := cur.Timestamp.Sub(prev.Timestamp).Seconds()
	if elapsed <= 0 {
		return 0, ErrNoElapsed
	}
	return Distance(prev, cur) / elapsed * 3.6, nil
}

// DetectTerrain picks forest or water when its ratio is above threshold; the
// larger ratio wins when both are.
func DetectTerrain(r Ratios, threshold float64) Terrain {
	forest := r.Forest > threshold
	water := r.Water > threshold
	switch {
	case forest && (!water || r.Forest >= r.Water):
		return TerrainForest
	case water:
		return TerrainWater
	}
	return TerrainNone
}
