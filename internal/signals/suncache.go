/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package signals

import (
	"context"
	"fmt"
	"time"
)

// SunCache stores sun times by key.
type SunCache interface {
	GetSunTimes(ctx context.Context, key string) (SunTimes, bool)
	SetSunTimes(ctx context.Context, key string, st SunTimes)
}

// CachedSun memoizes a SunSource per rounded position and UTC calendar day.
type CachedSun struct {
	src   SunSource
	cache SunCache
	now   func() time.Time
}

// NewCachedSun wraps src with cache.
func NewCachedSun(src SunSource, cache SunCache) *CachedSun {
	return &CachedSun{src: src, cache: cache, now: time.Now}
}

// SunKey rounds the position to about a kilometre.
func SunKey(lat, lon float64, day time.Time) string {
	return fmt.Sprintf("%.2f:%.2f:%s", lat, lon, day.UTC().Format("2006-01-02"))
}

// SunTimes implements SunSource. A cached entry carries the current time,
// not the time it was first fetched, expressed in the sunrise's zone so noon
// falls on the same local day as on a fresh fetch.
func (c *CachedSun) SunTimes(ctx context.Context, lat, lon float64) (SunTimes, error) {
	now := c.now()
	key := SunKey(lat, lon, now)
	if st, ok := c.cache.GetSunTimes(ctx, key); ok {
		st.Time = now.In(st.Sunrise.Location())
		return st, nil
	}

	st, err := c.src.SunTimes(ctx, lat, lon)
	if err != nil {
		return SunTimes{}, err
	}
	c.cache.SetSunTimes(ctx, key, st)
	return st, nil
}
