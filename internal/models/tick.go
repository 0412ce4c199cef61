/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package models holds the persisted records of the engine.
package models

import "time"

// Tick outcomes.
const (
	OutcomePlayed  = "played"
	OutcomeSilent  = "silent"
	OutcomeSkipped = "skipped"
	OutcomeAborted = "aborted"
)

// TickRecord is one orchestration tick: the context it read, the parameters
// it asked for and what it ended up playing.
type TickRecord struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	StartedAt  time.Time `gorm:"index" json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Outcome    string    `gorm:"type:varchar(16);index" json:"outcome"`
	Reason     string    `json:"reason,omitempty"`

	Bucket    string  `gorm:"type:varchar(16)" json:"bucket,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Speed     float64 `json:"speed"`
	Weather   string  `json:"weather,omitempty"`
	Terrain   string  `gorm:"type:varchar(16)" json:"terrain,omitempty"`
	Mood      string  `json:"mood,omitempty"`
	DriverID  string  `json:"driver_id,omitempty"`
	Landscape string  `json:"landscape,omitempty"`

	Params     map[string]any `gorm:"serializer:json" json:"params,omitempty"`
	Candidates int            `json:"candidates"`

	TrackID    string `json:"track_id,omitempty"`
	TrackLabel string `json:"track_label,omitempty"`
	PreviewURL string `json:"preview_url,omitempty"`
	AmbientCue string `gorm:"type:varchar(16)" json:"ambient_cue,omitempty"`
}

// TableName pins the table name across backends.
func (TickRecord) TableName() string { return "tick_records" }

// Duration returns the tick wall time.
func (t TickRecord) Duration() time.Duration {
	return time.Duration(t.DurationMS) * time.Millisecond
}
