/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package history keeps a ledger of orchestration ticks.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/sonic_road/internal/models"
)

const (
	DefaultLimit = 20
	MaxLimit     = 500
)

// Recorder persists tick records.
type Recorder struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewRecorder creates a recorder on a migrated database.
func NewRecorder(db *gorm.DB, logger zerolog.Logger) *Recorder {
	return &Recorder{db: db, logger: logger.With().Str("component", "history").Logger()}
}

// Record stores rec, assigning an ID when it has none.
func (r *Recorder) Record(ctx context.Context, rec *models.TickRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("record tick %s: %w", rec.ID, err)
	}
	return nil
}

// ClampLimit maps a requested page size onto [1, MaxLimit], 0 meaning DefaultLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// Recent returns the newest ticks first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]models.TickRecord, error) {
	var recs []models.TickRecord
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(ClampLimit(limit)).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("recent ticks: %w", err)
	}
	return recs, nil
}

// CountByOutcome counts ticks started at or after since.
func (r *Recorder) CountByOutcome(ctx context.Context, since time.Time) (map[string]int64, error) {
	var rows []struct {
		Outcome string
		N       int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.TickRecord{}).
		Select("outcome, COUNT(*) AS n").
		Where("started_at >= ?", since).
		Group("outcome").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count ticks: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Outcome] = row.N
	}
	return counts, nil
}

// Prune deletes ticks started before cutoff.
func (r *Recorder) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("started_at < ?", cutoff).Delete(&models.TickRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune ticks: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		r.logger.Info().Int64("deleted", res.RowsAffected).Time("cutoff", cutoff).Msg("pruned tick history")
	}
	return res.RowsAffected, nil
}
