/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/friendsincode/sonic_road/internal/models"
)

const outcomeTimeIndex = "idx_tick_records_outcome_started"

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(&models.TickRecord{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return ensureOutcomeIndex(database)
}

// ensureOutcomeIndex backs the per-outcome counts the status API serves.
func ensureOutcomeIndex(database *gorm.DB) error {
	migrator := database.Migrator()
	if migrator.HasIndex(&models.TickRecord{}, outcomeTimeIndex) {
		return nil
	}
	sql := fmt.Sprintf("CREATE INDEX %s ON tick_records (outcome, started_at)", outcomeTimeIndex)
	if err := database.Exec(sql).Error; err != nil {
		return fmt.Errorf("create %s: %w", outcomeTimeIndex, err)
	}
	return nil
}
