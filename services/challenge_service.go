package services

import (
	"errors"
	"strings"
	"sync"
	"time"

	"territory-challenge-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// ChallengeService owns challenges and their memberships: creation under
// capacity constraints, invitation responses and deletion, plus the
// list/detail views assembled from the ranking engine.
type ChallengeService struct {
	DB      *gorm.DB
	Ranking *RankingService
	Store   TerritoryStore

	// Serializes capacity counting + membership creation per organizer so
	// two concurrent creations cannot jointly exceed the capacity limit.
	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

func NewChallengeService(db *gorm.DB, store TerritoryStore) *ChallengeService {
	return &ChallengeService{
		DB:        db,
		Ranking:   NewRankingService(store),
		Store:     store,
		userLocks: make(map[string]*sync.Mutex),
	}
}

func (s *ChallengeService) lockUser(nickname string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.userLocks[nickname]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[nickname] = lock
	}
	return lock
}

// CreateChallengeRequest is the transport-agnostic creation input.
type CreateChallengeRequest struct {
	Nickname string               `json:"nickname"`
	Name     string               `json:"name"`
	Message  string               `json:"message,omitempty"`
	Started  time.Time            `json:"started"`
	Type     models.ChallengeType `json:"type"`
	Friends  []string             `json:"friends"`
}

// MemberInfo is the admitted-member summary returned after creation.
type MemberInfo struct {
	Nickname    string `json:"nickname"`
	PicturePath string `json:"picture_path,omitempty"`
}

// CreateChallengeResponse reports the admitted members, the members
// silently excluded at capacity, and the derived end date.
type CreateChallengeResponse struct {
	UUID              string       `json:"uuid"`
	Members           []MemberInfo `json:"members"`
	Message           string       `json:"message,omitempty"`
	Started           time.Time    `json:"started"`
	Ended             time.Time    `json:"ended"`
	ExceptMembers     []string     `json:"except_members"`
	ExceptMemberCount int          `json:"except_member_count"`
}

// EndOfWeek derives a challenge's end: the Sunday 23:59:59 of the start
// date's week.
func EndOfWeek(started time.Time) time.Time {
	daysUntilSunday := (7 - int(started.Weekday())) % 7
	sunday := started.AddDate(0, 0, daysUntilSunday)
	return time.Date(sunday.Year(), sunday.Month(), sunday.Day(), 23, 59, 59, 0, started.Location())
}

// activeChallengeCount counts memberships held against the user's
// capacity: member-level status Progress or Master. Master rows never
// change, so finished challenges are filtered out on the challenge side.
func activeChallengeCount(tx *gorm.DB, userID uint) (int64, error) {
	var count int64
	err := tx.Model(&models.UserChallenge{}).
		Joins("JOIN challenges ON challenges.id = user_challenges.challenge_id").
		Where("user_challenges.user_id = ? AND user_challenges.status IN ?", userID,
			[]models.ChallengeStatus{models.ChallengeProgress, models.ChallengeMaster}).
		Where("challenges.status <> ?", models.ChallengeDone).
		Count(&count).Error
	return count, err
}

func findUserByNickname(tx *gorm.DB, nickname string) (*models.User, error) {
	var user models.User
	if err := tx.First(&user, "nickname = ?", nickname).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newChallengeError(CodeUnknownMember, nickname)
		}
		return nil, err
	}
	return &user, nil
}

func (s *ChallengeService) challengeByUUID(tx *gorm.DB, challengeUUID string) (*models.Challenge, error) {
	var challenge models.Challenge
	if err := tx.First(&challenge, "uuid = ?", challengeUUID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}
	return &challenge, nil
}

// CreateChallenge creates one challenge plus memberships for the organizer
// and every admitted member, all inside one transaction. Candidates over
// capacity are excluded, not errors; an over-capacity organizer refuses
// the whole creation before any row is written.
func (s *ChallengeService) CreateChallenge(req CreateChallengeRequest) (*CreateChallengeResponse, error) {
	lock := s.lockUser(req.Nickname)
	lock.Lock()
	defer lock.Unlock()

	if req.Started.Before(time.Now()) {
		return nil, ErrInvalidSchedule
	}

	var resp *CreateChallengeResponse
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		organizer, err := findUserByNickname(tx, req.Nickname)
		if err != nil {
			return err
		}

		// Resolve every invited nickname; any miss fails the creation with
		// the full missing list.
		friendNames := uniqueNicknames(req.Friends, organizer.Nickname)
		var members []models.User
		if len(friendNames) > 0 {
			if err := tx.Where("nickname IN ?", friendNames).Find(&members).Error; err != nil {
				return err
			}
		}
		if len(members) != len(friendNames) {
			found := make(map[string]bool, len(members))
			for _, m := range members {
				found[m.Nickname] = true
			}
			var missing []string
			for _, nickname := range friendNames {
				if !found[nickname] {
					missing = append(missing, nickname)
				}
			}
			return newChallengeError(CodeUnknownMember, missing...)
		}

		organizerCount, err := activeChallengeCount(tx, organizer.ID)
		if err != nil {
			return err
		}
		if organizerCount > models.MaxChallengeCount {
			return ErrCreationRefused
		}

		challenge := models.Challenge{
			UUID:    strings.ReplaceAll(uuid.NewString(), "-", ""),
			Slug:    slug.Make(req.Name),
			Name:    req.Name,
			Message: req.Message,
			Type:    req.Type,
			Status:  models.ChallengeWait,
			Started: req.Started,
			Ended:   EndOfWeek(req.Started),
		}
		if err := tx.Create(&challenge).Error; err != nil {
			return err
		}

		masterUC := models.UserChallenge{
			UserID:      organizer.ID,
			ChallengeID: challenge.ID,
			Status:      models.ChallengeMaster,
			Color:       models.ColorForActiveCount(organizerCount),
		}
		if err := tx.Create(&masterUC).Error; err != nil {
			return err
		}

		var admitted []MemberInfo
		var exceptMembers []string
		for _, member := range members {
			count, err := activeChallengeCount(tx, member.ID)
			if err != nil {
				return err
			}
			if count > models.MaxChallengeCount {
				exceptMembers = append(exceptMembers, member.Nickname)
				continue
			}
			uc := models.UserChallenge{
				UserID:      member.ID,
				ChallengeID: challenge.ID,
				Status:      models.ChallengeWait,
				Color:       models.ColorForActiveCount(count),
			}
			if err := tx.Create(&uc).Error; err != nil {
				return err
			}
			admitted = append(admitted, MemberInfo{Nickname: member.Nickname, PicturePath: member.PicturePath})
		}

		// A challenge cannot run with the organizer alone; rolling back
		// here leaves no partial state.
		if len(admitted) == 0 {
			return ErrSoloChallenge
		}

		resp = &CreateChallengeResponse{
			UUID:              challenge.UUID,
			Members:           admitted,
			Message:           challenge.Message,
			Started:           challenge.Started,
			Ended:             challenge.Ended,
			ExceptMembers:     exceptMembers,
			ExceptMemberCount: len(exceptMembers),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func uniqueNicknames(nicknames []string, exclude string) []string {
	seen := make(map[string]bool, len(nicknames))
	var out []string
	for _, n := range nicknames {
		if n == exclude || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// ChangeMembershipStatus records a member's answer to an invitation:
// Progress accepts, Reject declines. The organizer's Master row never
// changes. The write is an unconditional overwrite, so reapplying the
// same decision is a harmless no-op.
func (s *ChallengeService) ChangeMembershipStatus(nickname, challengeUUID string, status models.ChallengeStatus) (models.ChallengeStatus, error) {
	var uc models.UserChallenge
	err := s.DB.Model(&models.UserChallenge{}).
		Select("user_challenges.*").
		Joins("JOIN users ON users.id = user_challenges.user_id").
		Joins("JOIN challenges ON challenges.id = user_challenges.challenge_id").
		Where("users.nickname = ? AND challenges.uuid = ?", nickname, challengeUUID).
		First(&uc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", newChallengeError(CodeMembershipNotFound, nickname)
		}
		return "", err
	}

	if uc.Status == models.ChallengeMaster {
		return "", newChallengeError(CodeImmutableMasterStatus, nickname)
	}

	if err := s.DB.Model(&uc).Update("status", status).Error; err != nil {
		return "", err
	}
	return status, nil
}

// DeleteChallenge removes a challenge and every membership row for it.
// Only the organizer may delete; anyone else gets false back with all
// rows intact. The cascade is irreversible.
func (s *ChallengeService) DeleteChallenge(nickname, challengeUUID string) (bool, error) {
	user, err := findUserByNickname(s.DB, nickname)
	if err != nil {
		return false, err
	}

	challenge, err := s.challengeByUUID(s.DB, challengeUUID)
	if err != nil {
		return false, err
	}

	var uc models.UserChallenge
	if err := s.DB.First(&uc, "user_id = ? AND challenge_id = ?", user.ID, challenge.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, newChallengeError(CodeMembershipNotFound, nickname)
		}
		return false, err
	}

	if uc.Status != models.ChallengeMaster {
		return false, nil
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("challenge_id = ?", challenge.ID).Delete(&models.UserChallenge{}).Error; err != nil {
			return err
		}
		return tx.Delete(challenge).Error
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// challengeMembers returns every non-rejected participant of a challenge,
// the organizer included.
func (s *ChallengeService) challengeMembers(challengeID uint) ([]models.User, error) {
	var users []models.User
	err := s.DB.Model(&models.User{}).
		Select("users.*").
		Joins("JOIN user_challenges ON user_challenges.user_id = users.id").
		Where("user_challenges.challenge_id = ? AND user_challenges.status <> ?", challengeID, models.ChallengeReject).
		Order("users.nickname ASC").
		Find(&users).Error
	return users, err
}

// userColor returns the caller's assigned color inside one challenge.
func (s *ChallengeService) userColor(userID, challengeID uint) (models.ChallengeColor, error) {
	var uc models.UserChallenge
	if err := s.DB.First(&uc, "user_id = ? AND challenge_id = ?", userID, challengeID).Error; err != nil {
		return "", err
	}
	return uc.Color, nil
}
