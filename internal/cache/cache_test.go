/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"github.com/friendsincode/sonic_road/internal/catalog"
	"github.com/friendsincode/sonic_road/internal/signals"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.RedisAddr = mr.Addr()
	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	if !c.IsAvailable() {
		t.Fatal("cache should be available against miniredis")
	}
	return c, mr
}

func TestSunTimesRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key := signals.SunKey(48.8566, 2.3522, time.Date(2019, 2, 6, 10, 0, 0, 0, time.UTC))

	if _, ok := c.GetSunTimes(ctx, key); ok {
		t.Fatal("empty cache should miss")
	}

	want := signals.SunTimes{
		Sunrise: time.Date(2019, 2, 6, 7, 0, 0, 0, time.UTC),
		Sunset:  time.Date(2019, 2, 6, 18, 0, 0, 0, time.UTC),
	}
	c.SetSunTimes(ctx, key, want)

	got, ok := c.GetSunTimes(ctx, key)
	if !ok {
		t.Fatal("expected a hit after SetSunTimes")
	}
	if !got.Sunrise.Equal(want.Sunrise) || !got.Sunset.Equal(want.Sunset) {
		t.Errorf("GetSunTimes() = %+v, want %+v", got, want)
	}

	if ttl := mr.TTL(KeySunTimes + key); ttl != DefaultSunTimesTTL {
		t.Errorf("TTL = %v, want %v", ttl, DefaultSunTimesTTL)
	}

	mr.FastForward(DefaultSunTimesTTL + time.Second)
	if _, ok := c.GetSunTimes(ctx, key); ok {
		t.Error("entry should expire")
	}
}

func TestRecommendationsRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	cands := []catalog.Candidate{
		{ID: "1", Name: "Alors on danse", Artists: []string{"Stromae"}, PreviewURL: "https://p/1"},
		{ID: "2", Name: "Formidable", Artists: []string{"Stromae"}},
	}
	c.SetRecommendations(ctx, "abc", cands)

	got, ok := c.GetRecommendations(ctx, "abc")
	if !ok || len(got) != 2 {
		t.Fatalf("GetRecommendations() = %v, %v", got, ok)
	}
	if got[0].PreviewURL != "https://p/1" || got[1].HasPreview() {
		t.Errorf("previews not preserved: %+v", got)
	}
	if ttl := mr.TTL(KeyRecommendations + "abc"); ttl != DefaultRecommendationsTTL {
		t.Errorf("TTL = %v, want %v", ttl, DefaultRecommendationsTTL)
	}

	c.SetRecommendations(ctx, "empty", nil)
	if mr.Exists(KeyRecommendations + "empty") {
		t.Error("empty pages should not be cached")
	}
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	c, mr := newTestCache(t)
	if err := mr.Set(KeyRecommendations+"bad", "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.GetRecommendations(context.Background(), "bad"); ok {
		t.Error("corrupt entry should be a miss")
	}
	if !c.IsAvailable() {
		t.Error("a decode failure must not disable the cache")
	}
}

func TestDisableOnError(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	c.SetSunTimes(ctx, "k", signals.SunTimes{})

	mr.Close()
	if _, ok := c.GetSunTimes(ctx, "k"); ok {
		t.Fatal("closed server should miss")
	}
	if c.IsAvailable() {
		t.Error("cache should disable itself after a Redis error")
	}
}

func TestUnreachableServerDisablesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := DefaultConfig()
	cfg.RedisAddr = addr
	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.IsAvailable() {
		t.Fatal("cache should be disabled")
	}

	ctx := context.Background()
	c.SetRecommendations(ctx, "k", []catalog.Candidate{{ID: "1"}})
	if _, ok := c.GetRecommendations(ctx, "k"); ok {
		t.Error("disabled cache should always miss")
	}
	if n, err := c.FlushAll(ctx); n != 0 || err != nil {
		t.Errorf("FlushAll() = %d, %v", n, err)
	}
}

func TestFlushAll(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	c.SetSunTimes(ctx, "a", signals.SunTimes{})
	c.SetRecommendations(ctx, "b", []catalog.Candidate{{ID: "1"}})
	if err := mr.Set("other:key", "x"); err != nil {
		t.Fatal(err)
	}

	n, err := c.FlushAll(ctx)
	if err != nil || n != 2 {
		t.Fatalf("FlushAll() = %d, %v; want 2", n, err)
	}
	if !mr.Exists("other:key") {
		t.Error("FlushAll must leave foreign keys alone")
	}
}

func TestCachedSunUsesRedis(t *testing.T) {
	c, _ := newTestCache(t)
	src := &countingSun{st: signals.SunTimes{
		Sunrise: time.Date(2019, 2, 6, 7, 0, 0, 0, time.UTC),
		Sunset:  time.Date(2019, 2, 6, 18, 0, 0, 0, time.UTC),
	}}
	sun := signals.NewCachedSun(src, c)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := sun.SunTimes(ctx, 48.85, 2.35); err != nil {
			t.Fatal(err)
		}
	}
	if src.calls != 1 {
		t.Errorf("source called %d times, want 1", src.calls)
	}
}

type countingSun struct {
	st    signals.SunTimes
	calls int
}

func (s *countingSun) SunTimes(ctx context.Context, lat, lon float64) (signals.SunTimes, error) {
	s.calls++
	return s.st, nil
}
