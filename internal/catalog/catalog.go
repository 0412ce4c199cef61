/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog queries the music catalog for track recommendations.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/friendsincode/sonic_road/internal/telemetry"
)

// Candidate is one recommended track.
type Candidate struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	URI        string   `json:"uri"`
	PreviewURL string   `json:"preview_url,omitempty"`
}

// HasPreview reports whether the track can be played.
func (c Candidate) HasPreview() bool {
	return c.PreviewURL != ""
}

// Label is a short human form used in logs.
func (c Candidate) Label() string {
	if len(c.Artists) == 0 {
		return c.Name
	}
	return strings.Join(c.Artists, ", ") + " - " + c.Name
}

// Recommender returns ranked candidates for a set of query parameters.
type Recommender interface {
	Recommend(ctx context.Context, query url.Values) ([]Candidate, error)
}

// DefaultTimeout bounds one recommendations request when Config.Timeout is unset.
const DefaultTimeout = 10 * time.Second

// Config configures the catalog client.
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Limit        int
	Timeout      time.Duration
}

// Client is a Spotify Web API recommendations client authenticated with the
// client credentials flow.
type Client struct {
	api    *spotify.Client
	limit  int
	logger zerolog.Logger
}

// New creates a client whose HTTP transport fetches and refreshes tokens.
func New(cfg Config, logger zerolog.Logger) *Client {
	creds := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	return NewWithHTTPClient(cfg, creds.Client(context.Background()), logger)
}

// NewWithHTTPClient creates a client on top of an already authenticated HTTP
// client. A client without its own timeout gets cfg.Timeout, or DefaultTimeout.
func NewWithHTTPClient(cfg Config, httpClient *http.Client, logger zerolog.Logger) *Client {
	limit := cfg.Limit
	if limit <= 0 {
		limit = 50
	}
	if httpClient.Timeout == 0 {
		bounded := *httpClient
		bounded.Timeout = cfg.Timeout
		if bounded.Timeout <= 0 {
			bounded.Timeout = DefaultTimeout
		}
		httpClient = &bounded
	}

	var opts []spotify.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, spotify.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	return &Client{
		api:    spotify.New(httpClient, opts...),
		limit:  limit,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

var floatTargets = map[string]func(*spotify.TrackAttributes, float64) *spotify.TrackAttributes{
	"target_acousticness":     (*spotify.TrackAttributes).TargetAcousticness,
	"target_danceability":     (*spotify.TrackAttributes).TargetDanceability,
	"target_energy":           (*spotify.TrackAttributes).TargetEnergy,
	"target_instrumentalness": (*spotify.TrackAttributes).TargetInstrumentalness,
	"target_liveness":         (*spotify.TrackAttributes).TargetLiveness,
	"target_loudness":         (*spotify.TrackAttributes).TargetLoudness,
	"target_valence":          (*spotify.TrackAttributes).TargetValence,
	"target_tempo":            (*spotify.TrackAttributes).TargetTempo,
	"min_tempo":               (*spotify.TrackAttributes).MinTempo,
}

// request translates the flat query into seeds, track attributes and options.
// Keys the catalog does not know are ignored.
func (c *Client) request(query url.Values) (spotify.Seeds, *spotify.TrackAttributes, []spotify.RequestOption, error) {
	var seeds spotify.Seeds
	for _, g := range strings.Split(query.Get("seed_genres"), ",") {
		if g = strings.TrimSpace(g); g != "" {
			seeds.Genres = append(seeds.Genres, g)
		}
	}
	if len(seeds.Genres) == 0 {
		return seeds, nil, nil, errors.New("recommendations query has no seed genres")
	}

	attrs := spotify.NewTrackAttributes()
	for key, set := range floatTargets {
		raw := query.Get(key)
		if raw == "" {
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return seeds, nil, nil, fmt.Errorf("recommendations query %s: %w", key, err)
		}
		set(attrs, f)
	}
	if raw := query.Get("target_popularity"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			return seeds, nil, nil, fmt.Errorf("recommendations query target_popularity: %w", err)
		}
		attrs.TargetPopularity(p)
	}

	limit := c.limit
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return seeds, nil, nil, fmt.Errorf("recommendations query limit: %w", err)
		}
		limit = n
	}
	opts := []spotify.RequestOption{spotify.Limit(limit)}
	if market := query.Get("market"); market != "" {
		opts = append(opts, spotify.Market(market))
	}
	return seeds, attrs, opts, nil
}

// Recommend fetches recommendations for query. The limit is added when the
// query does not carry one.
func (c *Client) Recommend(ctx context.Context, query url.Values) ([]Candidate, error) {
	seeds, attrs, opts, err := c.request(query)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	recs, err := c.api.GetRecommendations(ctx, seeds, attrs, opts...)
	if err != nil {
		var apiErr spotify.Error
		if errors.As(err, &apiErr) {
			telemetry.CatalogRequestDuration.WithLabelValues(strconv.Itoa(apiErr.Status)).Observe(time.Since(start).Seconds())
			return nil, fmt.Errorf("recommendations returned %d: %w", apiErr.Status, err)
		}
		telemetry.CatalogRequestDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("recommendations request: %w", err)
	}
	telemetry.CatalogRequestDuration.WithLabelValues("200").Observe(time.Since(start).Seconds())

	out := make([]Candidate, 0, len(recs.Tracks))
	for _, t := range recs.Tracks {
		cand := Candidate{
			ID:         string(t.ID),
			Name:       t.Name,
			URI:        string(t.URI),
			PreviewURL: t.PreviewURL,
		}
		for _, a := range t.Artists {
			cand.Artists = append(cand.Artists, a.Name)
		}
		out = append(out, cand)
	}

	c.logger.Debug().Int("candidates", len(out)).Strs("seed_genres", seeds.Genres).Msg("recommendations fetched")
	return out, nil
}
