/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package signals

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/friendsincode/sonic_road/internal/telemetry"
)

// Gateway routes, relative to GatewayConfig.BaseURL.
const (
	routeLatLon    = "/api/gps/get_latlon"
	routeSpeed     = "/api/gps/get_speed"
	routeWeather   = "/api/features/get_weather_from_latlon"
	routeRatios    = "/api/features/get_ratio_mask_from_latlon"
	routeSun       = "/api/features/get_sun_position_from_latlon"
	routePOI       = "/api/features/get_interesting_poi_information_from_latlon"
	routeFace      = "/api/frame/get_camera_face"
	routeFront     = "/api/frame/get_camera_front"
	routeMood      = "/api/mood/get_mood_from_image"
	routeFaceID    = "/api/face/get_face_from_image"
	routeLandscape = "/api/landscape/get_landscape_from_image"
)

// GatewayConfig configures the sensor and classifier gateway client.
type GatewayConfig struct {
	BaseURL string
	Timeout time.Duration

	// Breaker settings, applied per collaborator.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// DefaultGatewayConfig returns the gateway defaults.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		BaseURL:          "http://127.0.0.1:5000",
		Timeout:          10 * time.Second,
		FailureThreshold: 3,
		OpenTimeout:      30 * time.Second,
	}
}

// Gateway talks to the local HTTP service that fronts the GPS receiver, the
// cameras, the map/weather lookups and the image models. Every response
// except camera frames is wrapped in a {"success","result","error"} envelope.
//
// Each collaborator has its own circuit breaker, so a dead camera does not
// stop position reads from being attempted.
type Gateway struct {
	base     string
	client   *http.Client
	logger   zerolog.Logger
	breakers map[string]*gobreaker.CircuitBreaker[[]byte]
}

// NewGateway creates a gateway client.
func NewGateway(cfg GatewayConfig, logger zerolog.Logger) *Gateway {
	return NewGatewayWithHTTPClient(cfg, &http.Client{Timeout: cfg.Timeout}, logger)
}

// NewGatewayWithHTTPClient creates a gateway client using the given HTTP client.
func NewGatewayWithHTTPClient(cfg GatewayConfig, client *http.Client, logger zerolog.Logger) *Gateway {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultGatewayConfig().FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultGatewayConfig().OpenTimeout
	}

	g := &Gateway{
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		client:   client,
		logger:   logger.With().Str("component", "gateway").Logger(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[[]byte]),
	}
	for _, name := range []string{
		CollabPosition, CollabWeather, CollabTerrain, CollabPOI, CollabSun,
		CollabCamera, CollabMood, CollabFace, CollabLandscape,
	} {
		g.breakers[name] = g.newBreaker(name, cfg)
	}
	return g
}

func (g *Gateway) newBreaker(name string, cfg GatewayConfig) *gobreaker.CircuitBreaker[[]byte] {
	telemetry.CircuitBreakerState.WithLabelValues(name).Set(0)
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn().Str("collaborator", name).Str("from", from.String()).Str("to", to.String()).Msg("gateway breaker state change")
			telemetry.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}

// BreakerState reports the breaker state of a collaborator.
func (g *Gateway) BreakerState(collaborator string) string {
	cb, ok := g.breakers[collaborator]
	if !ok {
		return "unknown"
	}
	return cb.State().String()
}

type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   string          `json:"error"`
}

type latLon struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// post sends a request through the collaborator's breaker and returns the raw body.
func (g *Gateway) post(ctx context.Context, collaborator, route, contentType string, body []byte) ([]byte, error) {
	cb := g.breakers[collaborator]
	return cb.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.base+route, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := g.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", route, err)
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("%s returned status %d", route, resp.StatusCode)
		}
		return data, nil
	})
}

// call posts a JSON body and unwraps the envelope into dest.
func (g *Gateway) call(ctx context.Context, collaborator, route, contentType string, body []byte, dest any) error {
	data, err := g.post(ctx, collaborator, route, contentType, body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode %s envelope: %w", route, err)
	}
	if !env.Success {
		if env.Error == "" {
			env.Error = "unsuccessful response"
		}
		return fmt.Errorf("%s: %s", route, env.Error)
	}
	if raw, ok := dest.(*json.RawMessage); ok {
		*raw = env.Result
		return nil
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return fmt.Errorf("%s: empty result", route)
	}
	if err := json.Unmarshal(env.Result, dest); err != nil {
		return fmt.Errorf("decode %s result: %w", route, err)
	}

	g.logger.Debug().Str("route", route).Msg("gateway call ok")
	return nil
}

func (g *Gateway) callAt(ctx context.Context, collaborator, route string, lat, lon float64, dest any) error {
	body, err := json.Marshal(latLon{Latitude: lat, Longitude: lon})
	if err != nil {
		return err
	}
	return g.call(ctx, collaborator, route, "application/json", body, dest)
}

// Position reads the latest fix and the receiver's speed.
func (g *Gateway) Position(ctx context.Context) (Fix, error) {
	var raw struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Timestamp string  `json:"timestamp"`
	}
	if err := g.call(ctx, CollabPosition, routeLatLon, "", nil, &raw); err != nil {
		return Fix{}, err
	}

	fix := Fix{Latitude: raw.Latitude, Longitude: raw.Longitude}
	fix.Timestamp = parseFixTime(raw.Timestamp, time.Now().UTC())

	var speed json.RawMessage
	if err := g.call(ctx, CollabPosition, routeSpeed, "", nil, &speed); err != nil {
		return Fix{}, err
	}
	if v, ok := parseSpeed(speed); ok {
		fix.Speed, fix.HasSpeed = v, true
	}
	return fix, nil
}

// Weather returns the weather label at a position.
func (g *Gateway) Weather(ctx context.Context, lat, lon float64) (string, error) {
	var label string
	err := g.callAt(ctx, CollabWeather, routeWeather, lat, lon, &label)
	return label, err
}

// Ratios returns the forest and water ratios at a position.
func (g *Gateway) Ratios(ctx context.Context, lat, lon float64) (Ratios, error) {
	var r Ratios
	err := g.callAt(ctx, CollabTerrain, routeRatios, lat, lon, &r)
	return r, err
}

// PointsOfInterest returns the places around a position, sorted by name.
func (g *Gateway) PointsOfInterest(ctx context.Context, lat, lon float64) ([]POI, error) {
	var byName map[string][]string
	if err := g.callAt(ctx, CollabPOI, routePOI, lat, lon, &byName); err != nil {
		return nil, err
	}

	pois := make([]POI, 0, len(byName))
	for name, categories := range byName {
		pois = append(pois, POI{Name: name, Categories: categories})
	}
	sort.Slice(pois, func(i, j int) bool { return pois[i].Name < pois[j].Name })
	return pois, nil
}

// SunTimes returns sunrise and sunset at a position.
func (g *Gateway) SunTimes(ctx context.Context, lat, lon float64) (SunTimes, error) {
	var raw struct {
		Time    string `json:"time"`
		Sunrise string `json:"sunrise"`
		Sunset  string `json:"sunset"`
	}
	if err := g.callAt(ctx, CollabSun, routeSun, lat, lon, &raw); err != nil {
		return SunTimes{}, err
	}

	var st SunTimes
	var err error
	if st.Sunrise, err = time.Parse(time.RFC3339, raw.Sunrise); err != nil {
		return SunTimes{}, fmt.Errorf("parse sunrise: %w", err)
	}
	if st.Sunset, err = time.Parse(time.RFC3339, raw.Sunset); err != nil {
		return SunTimes{}, fmt.Errorf("parse sunset: %w", err)
	}
	if raw.Time != "" {
		if st.Time, err = time.Parse(time.RFC3339, raw.Time); err != nil {
			return SunTimes{}, fmt.Errorf("parse time: %w", err)
		}
	}
	return st, nil
}

// Capture returns a JPEG frame from a cabin camera.
func (g *Gateway) Capture(ctx context.Context, view View) ([]byte, error) {
	route := routeFace
	if view == ViewFront {
		route = routeFront
	}
	img, err := g.post(ctx, CollabCamera, route, "", nil)
	if err != nil {
		return nil, err
	}
	if len(img) == 0 {
		return nil, errors.New("empty camera frame")
	}
	return img, nil
}

// Mood classifies the driver's mood from a face frame.
func (g *Gateway) Mood(ctx context.Context, image []byte) (string, error) {
	var label string
	err := g.call(ctx, CollabMood, routeMood, "image/jpeg", image, &label)
	return label, err
}

// Face identifies the driver. The model answers with nested lists of
// candidate names; the first name wins and no match yields "".
func (g *Gateway) Face(ctx context.Context, image []byte) (string, error) {
	var result any
	if err := g.call(ctx, CollabFace, routeFaceID, "image/jpeg", image, &result); err != nil {
		return "", err
	}
	for {
		switch v := result.(type) {
		case string:
			return v, nil
		case []any:
			if len(v) == 0 {
				return "", nil
			}
			result = v[0]
		default:
			return "", fmt.Errorf("unexpected face result %T", result)
		}
	}
}

// Landscape classifies the road ahead from a front frame.
func (g *Gateway) Landscape(ctx context.Context, image []byte) (string, error) {
	var label string
	err := g.call(ctx, CollabLandscape, routeLandscape, "image/jpeg", image, &label)
	return label, err
}

// parseSpeed accepts a number or a numeric string; "" and null mean no reading.
func parseSpeed(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseFixTime accepts RFC 3339 or a bare hh:mm:ss UTC time of day, which is
// placed on today's date.
func parseFixTime(value string, now time.Time) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return now
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	if tod, err := time.Parse("15:04:05", value); err == nil {
		y, m, d := now.Date()
		return time.Date(y, m, d, tod.Hour(), tod.Minute(), tod.Second(), 0, time.UTC)
	}
	return now
}
