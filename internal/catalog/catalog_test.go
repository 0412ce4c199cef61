/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const recommendationsBody = `{
  "tracks": [
    {"id": "1", "name": "La Javanaise", "uri": "spotify:track:1", "preview_url": "https://p.example/1.mp3", "artists": [{"name": "Serge Gainsbourg"}]},
    {"id": "2", "name": "Sans preview", "uri": "spotify:track:2", "preview_url": null, "artists": []}
  ]
}`

func TestClientRecommend(t *testing.T) {
	var gotQuery url.Values
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/recommendations" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(recommendationsBody))
	}))
	defer srv.Close()

	c := NewWithHTTPClient(Config{BaseURL: srv.URL + "/v1/", Limit: 50}, srv.Client(), zerolog.Nop())
	query := url.Values{
		"target_energy":     {"0.8"},
		"target_popularity": {"60"},
		"min_tempo":         {"180"},
		"market":            {"FR"},
		"seed_genres":       {"french,jazz"},
		"unknown_key":       {"x"},
	}

	cands, err := c.Recommend(context.Background(), query)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	want := map[string]string{
		"limit":             "50",
		"seed_genres":       "french,jazz",
		"target_energy":     "0.8",
		"target_popularity": "60",
		"min_tempo":         "180",
		"market":            "FR",
		"unknown_key":       "",
	}
	for k, w := range want {
		if got := gotQuery.Get(k); got != w {
			t.Errorf("query %s = %q, want %q", k, got, w)
		}
	}
	if gotAuth != "" {
		t.Errorf("plain test client should not add auth, got %q", gotAuth)
	}
	if query.Get("limit") != "" {
		t.Error("Recommend must not modify the caller's query")
	}

	if len(cands) != 2 {
		t.Fatalf("got %d candidates, want 2", len(cands))
	}
	if !cands[0].HasPreview() || cands[1].HasPreview() {
		t.Errorf("preview flags wrong: %+v", cands)
	}
	if cands[0].Label() != "Serge Gainsbourg - La Javanaise" {
		t.Errorf("Label() = %q", cands[0].Label())
	}
}

func TestClientUsesClientCredentials(t *testing.T) {
	var mu sync.Mutex
	var tokenCalls int
	var gotAuth string

	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		tokenCalls++
		mu.Unlock()
		_ = r.ParseForm()
		if r.Form.Get("grant_type") != "client_credentials" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v1/recommendations", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		mu.Unlock()
		_, _ = w.Write([]byte(`{"tracks":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(Config{
		BaseURL:      srv.URL + "/v1",
		TokenURL:     srv.URL + "/api/token",
		ClientID:     "id",
		ClientSecret: "secret",
		Timeout:      5 * time.Second,
	}, zerolog.Nop())

	for i := 0; i < 2; i++ {
		if _, err := c.Recommend(context.Background(), url.Values{"seed_genres": {"french"}}); err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if tokenCalls != 1 {
		t.Errorf("token fetched %d times, want 1", tokenCalls)
	}
}

func TestClientRecommendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"status":400,"message":"invalid seed"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewWithHTTPClient(Config{BaseURL: srv.URL}, srv.Client(), zerolog.Nop())
	_, err := c.Recommend(context.Background(), url.Values{"seed_genres": {"zouk"}})
	if err == nil || !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "invalid seed") {
		t.Fatalf("Recommend() error = %v, want status 400", err)
	}
}

func TestClientRecommendRejectsBadQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected, got %s", r.URL)
	}))
	defer srv.Close()
	c := NewWithHTTPClient(Config{BaseURL: srv.URL}, srv.Client(), zerolog.Nop())

	tests := []struct {
		name  string
		query url.Values
	}{
		{"no seeds", url.Values{"target_energy": {"0.5"}}},
		{"blank seeds", url.Values{"seed_genres": {" , "}}},
		{"bad float", url.Values{"seed_genres": {"jazz"}, "target_tempo": {"fast"}}},
		{"bad popularity", url.Values{"seed_genres": {"jazz"}, "target_popularity": {"high"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Recommend(context.Background(), tt.query); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestClientRecommendTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewWithHTTPClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, &http.Client{}, zerolog.Nop())

	start := time.Now()
	_, err := c.Recommend(context.Background(), url.Values{"seed_genres": {"jazz"}})
	if err == nil {
		t.Fatal("Recommend() should fail on a stalled catalog")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Recommend() returned after %s, want the 50ms timeout", elapsed)
	}
}

type countingRecommender struct {
	calls int
}

func (r *countingRecommender) Recommend(ctx context.Context, query url.Values) ([]Candidate, error) {
	r.calls++
	return []Candidate{{ID: query.Get("target_tempo")}}, nil
}

type mapCache map[string][]Candidate

func (m mapCache) GetRecommendations(ctx context.Context, key string) ([]Candidate, bool) {
	c, ok := m[key]
	return c, ok
}

func (m mapCache) SetRecommendations(ctx context.Context, key string, cands []Candidate) {
	m[key] = cands
}

func TestCachedRecommend(t *testing.T) {
	next := &countingRecommender{}
	c := NewCached(next, mapCache{})
	ctx := context.Background()

	a := url.Values{"target_tempo": {"50"}, "market": {"FR"}}
	b := url.Values{"market": {"FR"}, "target_tempo": {"50"}}
	other := url.Values{"target_tempo": {"100"}, "market": {"FR"}}

	for _, q := range []url.Values{a, b, a} {
		if _, err := c.Recommend(ctx, q); err != nil {
			t.Fatal(err)
		}
	}
	if next.calls != 1 {
		t.Errorf("identical queries hit the catalog %d times, want 1", next.calls)
	}

	got, _ := c.Recommend(ctx, other)
	if next.calls != 2 || got[0].ID != "100" {
		t.Errorf("different query should miss the cache: calls=%d got=%v", next.calls, got)
	}
}
