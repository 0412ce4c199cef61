/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/sonic_road/internal/ambient"
	"github.com/friendsincode/sonic_road/internal/catalog"
	"github.com/friendsincode/sonic_road/internal/energy"
	"github.com/friendsincode/sonic_road/internal/events"
	"github.com/friendsincode/sonic_road/internal/models"
	"github.com/friendsincode/sonic_road/internal/params"
	"github.com/friendsincode/sonic_road/internal/playback"
	"github.com/friendsincode/sonic_road/internal/preferences"
	"github.com/friendsincode/sonic_road/internal/rules"
	"github.com/friendsincode/sonic_road/internal/selector"
	"github.com/friendsincode/sonic_road/internal/signals"
)

const table = `variable;value;target_acousticness;target_energy;target_loudness;target_liveness;target_danceability;target_instrumentalness;target_valence;seed_genres
day/night;sunrise;0.6;0.4;-8;0.2;0.4;0.3;0.6;
day/night;night;0.8;0.2;-12;0.1;0.2;0.6;0.3;ambient
mood;happy;0.2;0.8;-5;0.3;0.8;0.1;0.9;pop
mood;neutral;0.5;0.5;-7;0.2;0.5;0.5;0.5;
`

type fakeSignals struct {
	snap signals.Snapshot
	err  error
}

func (f *fakeSignals) Collect(ctx context.Context) (signals.Snapshot, error) {
	return f.snap, f.err
}

type fakeCatalog struct {
	mu      sync.Mutex
	queries []url.Values
	cands   []catalog.Candidate
	err     error
}

func (f *fakeCatalog) Recommend(ctx context.Context, q url.Values) ([]catalog.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.cands, f.err
}

func (f *fakeCatalog) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type fakeChannel struct {
	mu   sync.Mutex
	reqs []playback.Request
}

func (f *fakeChannel) Submit(r playback.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, r)
}

type fakeBank struct{ err error }

func (f fakeBank) Locate(ctx context.Context, cue ambient.Cue) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	name, _ := ambient.File(cue)
	return "file:///sounds/" + name, nil
}

type memoryHistory struct {
	mu   sync.Mutex
	recs []models.TickRecord
}

func (m *memoryHistory) Record(ctx context.Context, rec *models.TickRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, *rec)
	return nil
}

type harness struct {
	orch    *Orchestrator
	signals *fakeSignals
	catalog *fakeCatalog
	music   *fakeChannel
	ambient *fakeChannel
	history *memoryHistory
	bus     *events.Bus
}

func snapshot() signals.Snapshot {
	return signals.Snapshot{
		Timestamp: time.Date(2019, 2, 6, 7, 13, 15, 0, time.UTC),
		Sunrise:   time.Date(2019, 2, 6, 7, 0, 0, 0, time.UTC),
		Sunset:    time.Date(2019, 2, 6, 18, 0, 0, 0, time.UTC),
		Latitude:  48.85,
		Longitude: 2.35,
		Speed:     50,
		Terrain:   signals.TerrainForest,
		Mood:      "happy",
		POIs:      []signals.POI{{Name: "Parc des Princes", Categories: []string{"stadium"}}},
	}
}

func newHarness(t *testing.T, model energy.Model) *harness {
	t.Helper()
	store, err := rules.Load(strings.NewReader(table))
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	prefs := &preferences.Set{Drivers: map[string]preferences.Preference{
		"alice": {Genres: []string{"jazz"}},
	}}

	h := &harness{
		signals: &fakeSignals{snap: snapshot()},
		catalog: &fakeCatalog{cands: []catalog.Candidate{
			{ID: "1", Name: "Alors on danse", Artists: []string{"Stromae"}, PreviewURL: "https://p/1"},
			{ID: "2", Name: "Papaoutai", Artists: []string{"Stromae"}},
		}},
		music:   &fakeChannel{},
		ambient: &fakeChannel{},
		history: &memoryHistory{},
		bus:     events.NewBus(),
	}
	h.orch, err = New(Config{Interval: 10 * time.Millisecond, DefaultDriver: "alice"}, Deps{
		Signals:     h.signals,
		Rules:       store,
		Preferences: prefs,
		Assembler:   params.NewAssembler(params.DefaultConfig(), model),
		Catalog:     h.catalog,
		Selector:    selector.New(1, selector.BiasHead),
		Music:       h.music,
		Sounds:      fakeBank{},
		Ambient:     h.ambient,
		History:     h.history,
		Bus:         h.bus,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return h
}

func TestTickPlaysTrack(t *testing.T) {
	h := newHarness(t, nil)
	ticks := h.bus.Subscribe(events.EventTick)
	selected := h.bus.Subscribe(events.EventTrackSelected)

	rec := h.orch.Tick(context.Background())

	if rec.Outcome != models.OutcomePlayed {
		t.Fatalf("outcome = %s (%s)", rec.Outcome, rec.Reason)
	}
	if rec.Bucket != "sunrise" || rec.TrackID != "1" || rec.AmbientCue != "stadium" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Candidates != 2 {
		t.Errorf("Candidates = %d", rec.Candidates)
	}

	if len(h.music.reqs) != 1 || h.music.reqs[0].URI != "https://p/1" {
		t.Errorf("music requests = %+v", h.music.reqs)
	}
	if len(h.ambient.reqs) != 1 || h.ambient.reqs[0].URI != "file:///sounds/psg.mp3" {
		t.Errorf("ambient requests = %+v", h.ambient.reqs)
	}

	q := h.catalog.queries[0]
	if q.Get("target_tempo") != "100" {
		t.Errorf("target_tempo = %q, want 100 at 50 km/h", q.Get("target_tempo"))
	}
	if q.Get("seed_genres") != "jazz,pop" {
		t.Errorf("seed_genres = %q", q.Get("seed_genres"))
	}
	if q.Get("market") != "FR" {
		t.Errorf("market = %q", q.Get("market"))
	}

	if len(h.history.recs) != 1 || h.history.recs[0].ID != rec.ID {
		t.Errorf("history = %+v", h.history.recs)
	}
	if p := <-ticks; p["outcome"] != models.OutcomePlayed {
		t.Errorf("tick event = %v", p)
	}
	if p := <-selected; p["track"] != "Stromae - Alors on danse" {
		t.Errorf("track event = %v", p)
	}

	last, ok := h.orch.Last()
	if !ok || last.ID != rec.ID {
		t.Errorf("Last() = %+v, %v", last, ok)
	}
}

func TestTickOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(h *harness)
		want   string
	}{
		{
			name:   "collaborator down aborts",
			mutate: func(h *harness) { h.signals.err = &signals.UnavailableError{Collaborator: "weather", Err: errors.New("timeout")} },
			want:   models.OutcomeAborted,
		},
		{
			name:   "catalog failure aborts",
			mutate: func(h *harness) { h.catalog.err = errors.New("503") },
			want:   models.OutcomeAborted,
		},
		{
			name:   "unknown mood skips",
			mutate: func(h *harness) { h.signals.snap.Mood = "furious" },
			want:   models.OutcomeSkipped,
		},
		{
			name:   "missing bucket row skips",
			mutate: func(h *harness) { h.signals.snap.Timestamp = time.Date(2019, 2, 6, 15, 0, 0, 0, time.UTC) },
			want:   models.OutcomeSkipped,
		},
		{
			name: "breakpoints out of order skip",
			mutate: func(h *harness) {
				h.signals.snap.Sunrise = time.Date(2019, 2, 6, 11, 50, 0, 0, time.UTC)
			},
			want: models.OutcomeSkipped,
		},
		{
			name:   "no previews is silent",
			mutate: func(h *harness) { h.catalog.cands = []catalog.Candidate{{ID: "2"}} },
			want:   models.OutcomeSilent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			tt.mutate(h)

			rec := h.orch.Tick(context.Background())
			if rec.Outcome != tt.want {
				t.Fatalf("outcome = %s (%s), want %s", rec.Outcome, rec.Reason, tt.want)
			}
			if len(h.music.reqs) != 0 {
				t.Errorf("nothing should play, got %+v", h.music.reqs)
			}
			if tt.want != models.OutcomeSilent && rec.Reason == "" {
				t.Error("failed ticks should carry a reason")
			}
			if len(h.history.recs) != 1 {
				t.Errorf("every tick is recorded, got %d", len(h.history.recs))
			}
		})
	}
}

func TestTickAmbientFailureKeepsMusic(t *testing.T) {
	h := newHarness(t, nil)
	h.orch.deps.Sounds = fakeBank{err: errors.New("no such file")}

	rec := h.orch.Tick(context.Background())
	if rec.Outcome != models.OutcomePlayed || rec.AmbientCue != "" {
		t.Errorf("record = %+v", rec)
	}
	if len(h.ambient.reqs) != 0 {
		t.Errorf("ambient requests = %+v", h.ambient.reqs)
	}
}

func TestTickAbortsOnStalledCatalog(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	h := newHarness(t, nil)
	h.orch.deps.Catalog = catalog.NewWithHTTPClient(catalog.Config{
		BaseURL: srv.URL,
		Timeout: 50 * time.Millisecond,
	}, &http.Client{}, zerolog.Nop())

	start := time.Now()
	rec := h.orch.Tick(context.Background())
	if rec.Outcome != models.OutcomeAborted || rec.Reason == "" {
		t.Fatalf("outcome = %s (%s), want aborted", rec.Outcome, rec.Reason)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("tick took %s on a stalled catalog", elapsed)
	}
	if len(h.music.reqs) != 0 {
		t.Errorf("nothing should play, got %+v", h.music.reqs)
	}
}

func TestTickUsesSigmoidModel(t *testing.T) {
	model, err := energy.NewModel(energy.ModelSigmoid, -0.2, 0.3, 50)
	if err != nil {
		t.Fatal(err)
	}
	h := newHarness(t, model)
	h.signals.snap.Speed = 130

	rec := h.orch.Tick(context.Background())
	if rec.Outcome != models.OutcomePlayed {
		t.Fatalf("outcome = %s (%s)", rec.Outcome, rec.Reason)
	}
	if got := h.catalog.queries[0].Get("min_tempo"); got != "180" {
		t.Errorf("min_tempo = %q, want 180", got)
	}
}

func TestRunTicksUntilCancelled(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.orch.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for h.catalog.calls() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d ticks ran", h.catalog.calls())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop")
	}
}

func TestRunContinuesAfterFailedTicks(t *testing.T) {
	h := newHarness(t, nil)
	h.catalog.err = errors.New("503")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.orch.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for h.catalog.calls() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("loop stopped after a failed tick")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}, Deps{}, zerolog.Nop()); err == nil {
		t.Error("New() should reject missing collaborators")
	}
}
