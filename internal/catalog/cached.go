/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
)

// PageCache stores candidate lists by key.
type PageCache interface {
	GetRecommendations(ctx context.Context, key string) ([]Candidate, bool)
	SetRecommendations(ctx context.Context, key string, cands []Candidate)
}

// Cached serves repeated identical queries from a PageCache. Parameters only
// change when the context does, so consecutive ticks often ask the same thing.
type Cached struct {
	next  Recommender
	cache PageCache
}

// NewCached wraps next with cache.
func NewCached(next Recommender, cache PageCache) *Cached {
	return &Cached{next: next, cache: cache}
}

// QueryKey hashes the encoded query; url.Values.Encode sorts keys.
func QueryKey(query url.Values) string {
	sum := sha256.Sum256([]byte(query.Encode()))
	return hex.EncodeToString(sum[:])
}

// Recommend implements Recommender.
func (c *Cached) Recommend(ctx context.Context, query url.Values) ([]Candidate, error) {
	key := QueryKey(query)
	if cands, ok := c.cache.GetRecommendations(ctx, key); ok {
		return cands, nil
	}
	cands, err := c.next.Recommend(ctx, query)
	if err != nil {
		return nil, err
	}
	c.cache.SetRecommendations(ctx, key, cands)
	return cands, nil
}
