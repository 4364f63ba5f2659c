package services

import (
	"time"

	"territory-challenge-system/models"

	"gorm.io/gorm"
)

// TerritoryStore exposes the read-only movement/territory queries the
// ranking engine and detail views consume. Window semantics are
// [start, end) on the record start time.
type TerritoryStore interface {
	// DistinctCells returns the distinct cell identifiers the user claimed
	// in the window.
	DistinctCells(userID uint, start, end time.Time) ([]string, error)
	// ClaimEventCount returns the total claim events in the window, the
	// same cell counted once per claim.
	ClaimEventCount(userID uint, start, end time.Time) (int64, error)
	// MovementRecords returns the raw records in the window with their
	// claims preloaded.
	MovementRecords(userID uint, start, end time.Time) ([]models.ExerciseRecord, error)
}

type gormTerritoryStore struct {
	db *gorm.DB
}

func NewTerritoryStore(db *gorm.DB) TerritoryStore {
	return &gormTerritoryStore{db: db}
}

func (s *gormTerritoryStore) DistinctCells(userID uint, start, end time.Time) ([]string, error) {
	var cells []string
	err := s.db.Model(&models.MatrixClaim{}).
		Distinct("matrix_claims.cell_id").
		Joins("JOIN exercise_records ON exercise_records.id = matrix_claims.exercise_record_id").
		Where("matrix_claims.user_id = ?", userID).
		Where("exercise_records.started >= ? AND exercise_records.started < ?", start, end).
		Pluck("matrix_claims.cell_id", &cells).Error
	return cells, err
}

func (s *gormTerritoryStore) ClaimEventCount(userID uint, start, end time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&models.MatrixClaim{}).
		Joins("JOIN exercise_records ON exercise_records.id = matrix_claims.exercise_record_id").
		Where("matrix_claims.user_id = ?", userID).
		Where("exercise_records.started >= ? AND exercise_records.started < ?", start, end).
		Count(&count).Error
	return count, err
}

func (s *gormTerritoryStore) MovementRecords(userID uint, start, end time.Time) ([]models.ExerciseRecord, error) {
	var records []models.ExerciseRecord
	err := s.db.Preload("Claims").
		Where("user_id = ?", userID).
		Where("started >= ? AND started < ?", start, end).
		Order("started ASC").
		Find(&records).Error
	return records, err
}
