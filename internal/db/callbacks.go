/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/friendsincode/sonic_road/internal/telemetry"
)

const (
	_startTime = "gorm:start_time"
)

// RegisterCallbacks times every create, query, update and delete.
func RegisterCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	steps := []struct {
		op     string
		before func(string) error
		after  func(string) error
	}{
		{
			op:     "query",
			before: func(n string) error { return cb.Query().Before("gorm:query").Register(n, beforeCallback) },
			after:  func(n string) error { return cb.Query().After("gorm:query").Register(n, afterCallback("query")) },
		},
		{
			op:     "create",
			before: func(n string) error { return cb.Create().Before("gorm:create").Register(n, beforeCallback) },
			after:  func(n string) error { return cb.Create().After("gorm:create").Register(n, afterCallback("create")) },
		},
		{
			op:     "update",
			before: func(n string) error { return cb.Update().Before("gorm:update").Register(n, beforeCallback) },
			after:  func(n string) error { return cb.Update().After("gorm:update").Register(n, afterCallback("update")) },
		},
		{
			op:     "delete",
			before: func(n string) error { return cb.Delete().Before("gorm:delete").Register(n, beforeCallback) },
			after:  func(n string) error { return cb.Delete().After("gorm:delete").Register(n, afterCallback("delete")) },
		},
	}

	for _, s := range steps {
		if err := s.before("telemetry:before_" + s.op); err != nil {
			return err
		}
		if err := s.after("telemetry:after_" + s.op); err != nil {
			return err
		}
	}
	return nil
}

func beforeCallback(db *gorm.DB) {
	db.InstanceSet(_startTime, time.Now())
}

func afterCallback(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		startTimeValue, exists := db.InstanceGet(_startTime)
		if !exists {
			return
		}
		startTime, ok := startTimeValue.(time.Time)
		if !ok {
			return
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}
		telemetry.DatabaseQueryDuration.WithLabelValues(operation, tableName).Observe(time.Since(startTime).Seconds())

		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			telemetry.DatabaseErrorsTotal.WithLabelValues(operation).Inc()
		}
	}
}

// UpdateConnectionMetrics updates connection pool metrics.
func UpdateConnectionMetrics(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	telemetry.DatabaseConnectionsActive.Set(float64(sqlDB.Stats().OpenConnections))
}
