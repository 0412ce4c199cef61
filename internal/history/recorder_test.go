/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package history

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/sonic_road/internal/models"
)

func newRecorder(t *testing.T) *Recorder {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&models.TickRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewRecorder(db, zerolog.Nop())
}

func TestRecordAssignsID(t *testing.T) {
	r := newRecorder(t)
	rec := &models.TickRecord{StartedAt: time.Now().UTC(), Outcome: models.OutcomeSilent}
	if err := r.Record(context.Background(), rec); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if rec.ID == "" {
		t.Error("Record() should assign an ID")
	}
	if err := r.Record(context.Background(), rec); err == nil {
		t.Error("recording the same ID twice should fail")
	}
}

func TestRecentNewestFirst(t *testing.T) {
	r := newRecorder(t)
	ctx := context.Background()
	base := time.Date(2019, 2, 6, 7, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		rec := &models.TickRecord{
			StartedAt:  base.Add(time.Duration(i) * 5 * time.Second),
			Outcome:    models.OutcomePlayed,
			TrackLabel: string(rune('A' + i)),
			Params:     map[string]any{"target_tempo": float64(50 + i)},
		}
		if err := r.Record(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := r.Recent(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("Recent(3) returned %d records", len(recs))
	}
	if recs[0].TrackLabel != "E" || recs[2].TrackLabel != "C" {
		t.Errorf("order = %s %s %s", recs[0].TrackLabel, recs[1].TrackLabel, recs[2].TrackLabel)
	}
	if recs[0].Params["target_tempo"] != 54.0 {
		t.Errorf("params = %v", recs[0].Params)
	}
}

func TestCountByOutcome(t *testing.T) {
	r := newRecorder(t)
	ctx := context.Background()
	now := time.Now().UTC()

	outcomes := []string{
		models.OutcomePlayed, models.OutcomePlayed, models.OutcomeAborted, models.OutcomeSkipped,
	}
	for _, o := range outcomes {
		if err := r.Record(ctx, &models.TickRecord{StartedAt: now, Outcome: o}); err != nil {
			t.Fatal(err)
		}
	}
	old := &models.TickRecord{StartedAt: now.Add(-2 * time.Hour), Outcome: models.OutcomeSilent}
	if err := r.Record(ctx, old); err != nil {
		t.Fatal(err)
	}

	counts, err := r.CountByOutcome(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if counts[models.OutcomePlayed] != 2 || counts[models.OutcomeAborted] != 1 || counts[models.OutcomeSkipped] != 1 {
		t.Errorf("counts = %v", counts)
	}
	if _, ok := counts[models.OutcomeSilent]; ok {
		t.Errorf("old tick counted: %v", counts)
	}
}

func TestPrune(t *testing.T) {
	r := newRecorder(t)
	ctx := context.Background()
	now := time.Now().UTC()
	for _, age := range []time.Duration{0, 48 * time.Hour, 72 * time.Hour} {
		if err := r.Record(ctx, &models.TickRecord{StartedAt: now.Add(-age), Outcome: models.OutcomePlayed}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := r.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil || n != 2 {
		t.Fatalf("Prune() = %d, %v; want 2", n, err)
	}
	recs, _ := r.Recent(ctx, 0)
	if len(recs) != 1 {
		t.Errorf("%d records left, want 1", len(recs))
	}
}

func TestClampLimit(t *testing.T) {
	tests := map[int]int{-1: DefaultLimit, 0: DefaultLimit, 7: 7, MaxLimit + 1: MaxLimit}
	for in, want := range tests {
		if got := ClampLimit(in); got != want {
			t.Errorf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
