package services

import (
	"time"

	"territory-challenge-system/models"

	"gorm.io/gorm"
)

// LifecycleService drives challenge-level status through
// Wait -> Progress -> Done. Both bulk transitions are plain status
// writes over date predicates, so re-running them is a no-op and a
// missed run self-corrects on the next one.
type LifecycleService struct {
	DB *gorm.DB
}

func NewLifecycleService(db *gorm.DB) *LifecycleService {
	return &LifecycleService{DB: db}
}

// CanTransition is the explicit challenge-level state machine. Done is
// terminal.
func CanTransition(from, to models.ChallengeStatus) bool {
	switch from {
	case models.ChallengeWait:
		return to == models.ChallengeProgress
	case models.ChallengeProgress:
		return to == models.ChallengeDone
	default:
		return false
	}
}

// StartPeriodChallenges moves every challenge whose start date is today
// into Progress, and flips its pending member invitations to Progress as
// well: the week starts for everyone who accepted or never answered.
func (s *LifecycleService) StartPeriodChallenges(now time.Time) (int64, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var started int64
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var ids []uint
		err := tx.Model(&models.Challenge{}).
			Where("status <> ?", models.ChallengeProgress).
			Where("started >= ? AND started < ?", dayStart, dayEnd).
			Pluck("id", &ids).Error
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		res := tx.Model(&models.Challenge{}).
			Where("id IN ?", ids).
			Update("status", models.ChallengeProgress)
		if res.Error != nil {
			return res.Error
		}
		started = res.RowsAffected

		return tx.Model(&models.UserChallenge{}).
			Where("challenge_id IN ? AND status = ?", ids, models.ChallengeWait).
			Update("status", models.ChallengeProgress).Error
	})
	return started, err
}

// EndPeriodChallenges moves every running challenge whose end has passed
// into Done, together with its active member rows.
func (s *LifecycleService) EndPeriodChallenges(now time.Time) (int64, error) {
	var ended int64
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var ids []uint
		err := tx.Model(&models.Challenge{}).
			Where("status = ? AND ended < ?", models.ChallengeProgress, now).
			Pluck("id", &ids).Error
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		res := tx.Model(&models.Challenge{}).
			Where("id IN ?", ids).
			Update("status", models.ChallengeDone)
		if res.Error != nil {
			return res.Error
		}
		ended = res.RowsAffected

		return tx.Model(&models.UserChallenge{}).
			Where("challenge_id IN ? AND status = ?", ids, models.ChallengeProgress).
			Update("status", models.ChallengeDone).Error
	})
	return ended, err
}
