package models

import (
	"time"
)

// ExerciseRecord is one tracked movement session. Rows are written by the
// recording service; this service only reads them for stats and rankings.
type ExerciseRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	Distance     int       `json:"distance"`      // meters
	ExerciseTime int       `json:"exercise_time"` // seconds
	StepCount    int       `json:"step_count"`
	Started      time.Time `gorm:"not null;index" json:"started"`
	Ended        time.Time `gorm:"not null" json:"ended"`

	Claims []MatrixClaim `json:"claims,omitempty" gorm:"foreignKey:ExerciseRecordID"`
}

// MatrixClaim is one territory cell claim event inside a record. The cell
// identifier comes from the external territory index; the same cell can be
// claimed again on a later record.
type MatrixClaim struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ExerciseRecordID uint      `gorm:"not null;index" json:"exercise_record_id"`
	UserID           uint      `gorm:"not null;index" json:"user_id"`
	CellID           string    `gorm:"size:64;not null;index" json:"cell_id"`
	ClaimedAt        time.Time `gorm:"autoCreateTime" json:"claimed_at"`
}
