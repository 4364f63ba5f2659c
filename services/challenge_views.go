package services

import (
	"sort"
	"time"

	"territory-challenge-system/models"
)

// InviteInfo is one pending invitation in the caller's inbox.
type InviteInfo struct {
	Name            string    `json:"name"`
	UUID            string    `json:"uuid"`
	InviterNickname string    `json:"inviter_nickname"`
	InviterPicture  string    `json:"inviter_picture,omitempty"`
	Message         string    `json:"message,omitempty"`
	Created         time.Time `json:"created"`
}

// WaitInfo summarizes a challenge that has not started yet.
type WaitInfo struct {
	Name         string                `json:"name"`
	UUID         string                `json:"uuid"`
	Started      time.Time             `json:"started"`
	Ended        time.Time             `json:"ended"`
	TotalCount   int                   `json:"total_count"`
	ReadyCount   int                   `json:"ready_count"`
	Color        models.ChallengeColor `json:"color"`
	PicturePaths []string              `json:"picture_paths"`
}

// ProgressInfo summarizes a running or finished challenge with the
// caller's own dense rank in it.
type ProgressInfo struct {
	Name         string                `json:"name"`
	UUID         string                `json:"uuid"`
	Started      time.Time             `json:"started"`
	Ended        time.Time             `json:"ended"`
	Rank         int                   `json:"rank"`
	Color        models.ChallengeColor `json:"color"`
	PicturePaths []string              `json:"picture_paths"`
}

// ParticipantInfo is one member inside a wait detail view.
type ParticipantInfo struct {
	Nickname    string                 `json:"nickname"`
	PicturePath string                 `json:"picture_path,omitempty"`
	Status      models.ChallengeStatus `json:"status"`
}

// WaitDetail is the pre-start detail view: participants ordered organizer
// first, then the caller, then everyone else.
type WaitDetail struct {
	Name         string                `json:"name"`
	Type         models.ChallengeType  `json:"type"`
	Color        models.ChallengeColor `json:"color"`
	Started      time.Time             `json:"started"`
	Ended        time.Time             `json:"ended"`
	Participants []ParticipantInfo     `json:"participants"`
}

// ProgressDetail is the running detail view: the caller's aggregate stats
// for the challenge window plus the full ranking.
type ProgressDetail struct {
	Name         string                `json:"name"`
	UUID         string                `json:"uuid"`
	Type         models.ChallengeType  `json:"type"`
	Started      time.Time             `json:"started"`
	Ended        time.Time             `json:"ended"`
	Color        models.ChallengeColor `json:"color"`
	Distance     int                   `json:"distance"`
	ExerciseTime int                   `json:"exercise_time"`
	StepCount    int                   `json:"step_count"`
	Cells        []string              `json:"cells"`
	Rankings     []RankedUser          `json:"rankings"`
}

// MemberMapInfo is one member's layer on the challenge map.
type MemberMapInfo struct {
	Nickname    string                `json:"nickname"`
	Color       models.ChallengeColor `json:"color"`
	Latitude    *float64              `json:"latitude,omitempty"`
	Longitude   *float64              `json:"longitude,omitempty"`
	PicturePath string                `json:"picture_path,omitempty"`
	Cells       []string              `json:"cells"`
}

// MapDetail is the shared map view of a challenge: every member's claimed
// cells plus the ranking under the challenge's scoring type.
type MapDetail struct {
	Members  []MemberMapInfo `json:"members"`
	Rankings []RankedUser    `json:"rankings"`
}

// InvitedChallenges lists challenges the caller was invited to and has
// not answered yet.
func (s *ChallengeService) InvitedChallenges(nickname string) ([]InviteInfo, error) {
	user, err := findUserByNickname(s.DB, nickname)
	if err != nil {
		return nil, err
	}

	var challenges []models.Challenge
	err = s.DB.Model(&models.Challenge{}).
		Select("challenges.*").
		Joins("JOIN user_challenges ON user_challenges.challenge_id = challenges.id").
		Where("user_challenges.user_id = ? AND user_challenges.status = ?", user.ID, models.ChallengeWait).
		Order("challenges.created ASC").
		Find(&challenges).Error
	if err != nil {
		return nil, err
	}

	invites := make([]InviteInfo, 0, len(challenges))
	for _, challenge := range challenges {
		master, err := s.challengeMaster(challenge.ID)
		if err != nil {
			return nil, err
		}
		invites = append(invites, InviteInfo{
			Name:            challenge.Name,
			UUID:            challenge.UUID,
			InviterNickname: master.Nickname,
			InviterPicture:  master.PicturePath,
			Message:         challenge.Message,
			Created:         challenge.Created,
		})
	}
	return invites, nil
}

// WaitChallenges lists the caller's not-yet-started challenges with how
// many members already accepted.
func (s *ChallengeService) WaitChallenges(nickname string) ([]WaitInfo, error) {
	user, err := findUserByNickname(s.DB, nickname)
	if err != nil {
		return nil, err
	}

	challenges, err := s.userChallengesByStatus(user.ID, models.ChallengeWait)
	if err != nil {
		return nil, err
	}

	infos := make([]WaitInfo, 0, len(challenges))
	for _, challenge := range challenges {
		var memberships []models.UserChallenge
		err := s.DB.Preload("User").
			Where("challenge_id = ? AND status <> ?", challenge.ID, models.ChallengeReject).
			Find(&memberships).Error
		if err != nil {
			return nil, err
		}

		info := WaitInfo{
			Name:    challenge.Name,
			UUID:    challenge.UUID,
			Started: challenge.Started,
			Ended:   challenge.Ended,
		}
		for _, uc := range memberships {
			info.TotalCount++
			if uc.Status == models.ChallengeProgress || uc.Status == models.ChallengeMaster {
				info.ReadyCount++
			}
			info.PicturePaths = append(info.PicturePaths, uc.User.PicturePath)
			if uc.UserID == user.ID {
				info.Color = uc.Color
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// ProgressChallenges lists the caller's running challenges with their own
// rank in each, recomputed from current territory data.
func (s *ChallengeService) ProgressChallenges(nickname string) ([]ProgressInfo, error) {
	return s.rankedChallengeList(nickname, models.ChallengeProgress)
}

// DoneChallenges lists finished challenges with the caller's final rank.
func (s *ChallengeService) DoneChallenges(nickname string) ([]ProgressInfo, error) {
	return s.rankedChallengeList(nickname, models.ChallengeDone)
}

func (s *ChallengeService) rankedChallengeList(nickname string, status models.ChallengeStatus) ([]ProgressInfo, error) {
	user, err := findUserByNickname(s.DB, nickname)
	if err != nil {
		return nil, err
	}

	challenges, err := s.userChallengesByStatus(user.ID, status)
	if err != nil {
		return nil, err
	}

	infos := make([]ProgressInfo, 0, len(challenges))
	for _, challenge := range challenges {
		members, err := s.challengeMembers(challenge.ID)
		if err != nil {
			return nil, err
		}

		rankings, err := s.Ranking.ChallengeRanking(members, challenge.Started, challenge.Ended, challenge.Type)
		if err != nil {
			return nil, err
		}
		own, err := s.Ranking.UserRank(rankings, nickname)
		if err != nil {
			return nil, err
		}

		color, err := s.userColor(user.ID, challenge.ID)
		if err != nil {
			return nil, err
		}

		pictures := make([]string, 0, len(members))
		for _, member := range members {
			pictures = append(pictures, member.PicturePath)
		}

		infos = append(infos, ProgressInfo{
			Name:         challenge.Name,
			UUID:         challenge.UUID,
			Started:      challenge.Started,
			Ended:        challenge.Ended,
			Rank:         own.Rank,
			Color:        color,
			PicturePaths: pictures,
		})
	}
	return infos, nil
}

// GetWaitDetail returns the pre-start detail for one challenge.
func (s *ChallengeService) GetWaitDetail(nickname, challengeUUID string) (*WaitDetail, error) {
	user, err := findUserByNickname(s.DB, nickname)
	if err != nil {
		return nil, err
	}

	challenge, err := s.challengeByUUID(s.DB, challengeUUID)
	if err != nil {
		return nil, err
	}

	var memberships []models.UserChallenge
	err = s.DB.Preload("User").
		Where("challenge_id = ?", challenge.ID).
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}

	detail := &WaitDetail{
		Name:    challenge.Name,
		Type:    challenge.Type,
		Started: challenge.Started,
		Ended:   challenge.Ended,
	}

	participants := make([]ParticipantInfo, 0, len(memberships))
	for _, uc := range memberships {
		if uc.UserID == user.ID {
			detail.Color = uc.Color
		}
		participants = append(participants, ParticipantInfo{
			Nickname:    uc.User.Nickname,
			PicturePath: uc.User.PicturePath,
			Status:      uc.Status,
		})
	}

	// Organizer first, caller second, everyone else by nickname.
	sort.SliceStable(participants, func(i, j int) bool {
		return participantOrder(participants[i], nickname) < participantOrder(participants[j], nickname)
	})
	detail.Participants = participants
	return detail, nil
}

func participantOrder(p ParticipantInfo, caller string) int {
	switch {
	case p.Status == models.ChallengeMaster:
		return 0
	case p.Nickname == caller:
		return 1
	default:
		return 2
	}
}

// GetProgressDetail returns the running detail view: the caller's own
// movement stats over the challenge window plus the full ranking.
func (s *ChallengeService) GetProgressDetail(nickname, challengeUUID string) (*ProgressDetail, error) {
	user, err := findUserByNickname(s.DB, nickname)
	if err != nil {
		return nil, err
	}

	challenge, err := s.challengeByUUID(s.DB, challengeUUID)
	if err != nil {
		return nil, err
	}

	members, err := s.challengeMembers(challenge.ID)
	if err != nil {
		return nil, err
	}
	if !containsUser(members, user.ID) {
		return nil, newChallengeError(CodeMembershipNotFound, nickname)
	}

	records, err := s.Store.MovementRecords(user.ID, challenge.Started, challenge.Ended)
	if err != nil {
		return nil, err
	}

	detail := &ProgressDetail{
		Name:    challenge.Name,
		UUID:    challenge.UUID,
		Type:    challenge.Type,
		Started: challenge.Started,
		Ended:   challenge.Ended,
	}
	for _, record := range records {
		detail.Distance += record.Distance
		detail.ExerciseTime += record.ExerciseTime
		detail.StepCount += record.StepCount
		for _, claim := range record.Claims {
			detail.Cells = append(detail.Cells, claim.CellID)
		}
	}

	detail.Color, err = s.userColor(user.ID, challenge.ID)
	if err != nil {
		return nil, err
	}

	detail.Rankings, err = s.Ranking.ChallengeRanking(members, challenge.Started, challenge.Ended, challenge.Type)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// GetMapDetail returns every member's claimed cells and the ranking for
// the challenge's scoring type.
func (s *ChallengeService) GetMapDetail(challengeUUID string) (*MapDetail, error) {
	challenge, err := s.challengeByUUID(s.DB, challengeUUID)
	if err != nil {
		return nil, err
	}

	members, err := s.challengeMembers(challenge.ID)
	if err != nil {
		return nil, err
	}

	detail := &MapDetail{}
	for _, member := range members {
		color, err := s.userColor(member.ID, challenge.ID)
		if err != nil {
			return nil, err
		}
		cells, err := s.Store.DistinctCells(member.ID, challenge.Started, challenge.Ended)
		if err != nil {
			return nil, err
		}
		detail.Members = append(detail.Members, MemberMapInfo{
			Nickname:    member.Nickname,
			Color:       color,
			Latitude:    member.Latitude,
			Longitude:   member.Longitude,
			PicturePath: member.PicturePath,
			Cells:       cells,
		})
	}

	detail.Rankings, err = s.Ranking.ChallengeRanking(members, challenge.Started, challenge.Ended, challenge.Type)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// userChallengesByStatus lists challenges of one challenge-level status
// the user participates in (rejected invitations excluded).
func (s *ChallengeService) userChallengesByStatus(userID uint, status models.ChallengeStatus) ([]models.Challenge, error) {
	var challenges []models.Challenge
	err := s.DB.Model(&models.Challenge{}).
		Select("challenges.*").
		Joins("JOIN user_challenges ON user_challenges.challenge_id = challenges.id").
		Where("user_challenges.user_id = ? AND user_challenges.status <> ?", userID, models.ChallengeReject).
		Where("challenges.status = ?", status).
		Order("challenges.started ASC").
		Find(&challenges).Error
	return challenges, err
}

func (s *ChallengeService) challengeMaster(challengeID uint) (*models.User, error) {
	var user models.User
	err := s.DB.Model(&models.User{}).
		Select("users.*").
		Joins("JOIN user_challenges ON user_challenges.user_id = users.id").
		Where("user_challenges.challenge_id = ? AND user_challenges.status = ?", challengeID, models.ChallengeMaster).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func containsUser(users []models.User, id uint) bool {
	for _, u := range users {
		if u.ID == id {
			return true
		}
	}
	return false
}
