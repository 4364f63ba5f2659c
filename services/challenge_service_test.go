package services

import (
	"fmt"
	"testing"
	"time"

	"territory-challenge-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Challenge{},
		&models.UserChallenge{},
		&models.ExerciseRecord{},
		&models.MatrixClaim{},
	))
	return db
}

func newTestChallengeService(t *testing.T) (*ChallengeService, *gorm.DB) {
	db := newTestDB(t)
	return NewChallengeService(db, NewTerritoryStore(db)), db
}

func seedUser(t *testing.T, db *gorm.DB, nickname string) models.User {
	t.Helper()
	user := models.User{Nickname: nickname}
	require.NoError(t, db.Create(&user).Error)
	return user
}

// seedActiveChallenges gives a user n memberships counted against
// capacity (Master rows on running challenges).
func seedActiveChallenges(t *testing.T, db *gorm.DB, user models.User, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		challenge := models.Challenge{
			UUID:    uuid.NewString()[:32],
			Name:    fmt.Sprintf("seed-%s-%d", user.Nickname, i),
			Type:    models.TypeWiden,
			Status:  models.ChallengeProgress,
			Started: time.Now().Add(-time.Hour),
			Ended:   EndOfWeek(time.Now()),
		}
		require.NoError(t, db.Create(&challenge).Error)
		require.NoError(t, db.Create(&models.UserChallenge{
			UserID:      user.ID,
			ChallengeID: challenge.ID,
			Status:      models.ChallengeMaster,
			Color:       models.ColorRed,
		}).Error)
	}
}

// nextMonday keeps test challenges strictly in the future with a near
// full week before the derived Sunday end.
func nextMonday(now time.Time) time.Time {
	days := (int(time.Monday) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	monday := now.AddDate(0, 0, days)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 9, 0, 0, 0, now.Location())
}

func createRequest(organizer string, friends ...string) CreateChallengeRequest {
	return CreateChallengeRequest{
		Nickname: organizer,
		Name:     "weekend run",
		Message:  "let's go",
		Started:  nextMonday(time.Now()),
		Type:     models.TypeWiden,
		Friends:  friends,
	}
}

func TestCreateChallengePersistsChallengeAndMemberships(t *testing.T) {
	svc, db := newTestChallengeService(t)
	organizer := seedUser(t, db, "host")
	seedUser(t, db, "friend1")
	seedUser(t, db, "friend2")

	preCount, err := activeChallengeCount(db, organizer.ID)
	require.NoError(t, err)

	resp, err := svc.CreateChallenge(createRequest("host", "friend1", "friend2"))
	require.NoError(t, err)

	assert.Len(t, resp.Members, 2)
	assert.Zero(t, resp.ExceptMemberCount)
	assert.NotEmpty(t, resp.UUID)
	assert.Equal(t, EndOfWeek(resp.Started), resp.Ended)

	var challenge models.Challenge
	require.NoError(t, db.First(&challenge, "uuid = ?", resp.UUID).Error)
	assert.Equal(t, models.ChallengeWait, challenge.Status)
	assert.Equal(t, "weekend-run", challenge.Slug)

	var memberships []models.UserChallenge
	require.NoError(t, db.Where("challenge_id = ?", challenge.ID).Find(&memberships).Error)
	assert.Len(t, memberships, 3)

	masters := 0
	for _, uc := range memberships {
		if uc.Status == models.ChallengeMaster {
			masters++
			assert.Equal(t, organizer.ID, uc.UserID)
		} else {
			assert.Equal(t, models.ChallengeWait, uc.Status)
		}
	}
	assert.Equal(t, 1, masters)

	// The organizer's active count grows by exactly one.
	postCount, err := activeChallengeCount(db, organizer.ID)
	require.NoError(t, err)
	assert.Equal(t, preCount+1, postCount)
}

func TestCreateChallengeRefusesOverCapacityOrganizer(t *testing.T) {
	svc, db := newTestChallengeService(t)
	organizer := seedUser(t, db, "host")
	seedUser(t, db, "friend1")
	seedActiveChallenges(t, db, organizer, models.MaxChallengeCount+1)

	var before int64
	require.NoError(t, db.Model(&models.Challenge{}).Count(&before).Error)

	_, err := svc.CreateChallenge(createRequest("host", "friend1"))
	assert.ErrorIs(t, err, ErrCreationRefused)

	// No partial state.
	var after int64
	require.NoError(t, db.Model(&models.Challenge{}).Count(&after).Error)
	assert.Equal(t, before, after)
}

func TestCreateChallengeExcludesOverCapacityMember(t *testing.T) {
	svc, db := newTestChallengeService(t)
	seedUser(t, db, "host")
	seedUser(t, db, "free")
	busy := seedUser(t, db, "busy")
	seedActiveChallenges(t, db, busy, models.MaxChallengeCount+1)

	resp, err := svc.CreateChallenge(createRequest("host", "free", "busy"))
	require.NoError(t, err)

	// Exclusion is reported, never an error.
	assert.Len(t, resp.Members, 1)
	assert.Equal(t, "free", resp.Members[0].Nickname)
	assert.Equal(t, 1, resp.ExceptMemberCount)
	assert.Equal(t, []string{"busy"}, resp.ExceptMembers)

	var busyRows int64
	require.NoError(t, db.Model(&models.UserChallenge{}).
		Joins("JOIN challenges ON challenges.id = user_challenges.challenge_id").
		Where("user_challenges.user_id = ? AND challenges.uuid = ?", busy.ID, resp.UUID).
		Count(&busyRows).Error)
	assert.Zero(t, busyRows)
}

func TestCreateChallengeRejectsSoloChallenge(t *testing.T) {
	svc, db := newTestChallengeService(t)
	seedUser(t, db, "host")
	busy := seedUser(t, db, "busy")
	seedActiveChallenges(t, db, busy, models.MaxChallengeCount+1)

	// Every candidate excluded leaves the organizer alone.
	_, err := svc.CreateChallenge(createRequest("host", "busy"))
	assert.ErrorIs(t, err, ErrSoloChallenge)

	// Nothing persisted for the rejected creation.
	var count int64
	require.NoError(t, db.Model(&models.Challenge{}).Where("name = ?", "weekend run").Count(&count).Error)
	assert.Zero(t, count)

	// No invitees at all is the same failure.
	_, err = svc.CreateChallenge(createRequest("host"))
	assert.ErrorIs(t, err, ErrSoloChallenge)
}

func TestCreateChallengeUnknownMember(t *testing.T) {
	svc, db := newTestChallengeService(t)
	seedUser(t, db, "host")
	seedUser(t, db, "friend1")

	_, err := svc.CreateChallenge(createRequest("host", "friend1", "ghost"))
	require.Error(t, err)

	var ce *ChallengeError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CodeUnknownMember, ce.Code)
	assert.Equal(t, []string{"ghost"}, ce.Nicknames)
}

func TestCreateChallengeRejectsPastStart(t *testing.T) {
	svc, db := newTestChallengeService(t)
	seedUser(t, db, "host")
	seedUser(t, db, "friend1")

	req := createRequest("host", "friend1")
	req.Started = time.Now().Add(-time.Minute)
	_, err := svc.CreateChallenge(req)
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestCreateChallengeColorSpreadsByActiveCount(t *testing.T) {
	svc, db := newTestChallengeService(t)
	organizer := seedUser(t, db, "host")
	seedUser(t, db, "friend1")
	seedActiveChallenges(t, db, organizer, 2)

	resp, err := svc.CreateChallenge(createRequest("host", "friend1"))
	require.NoError(t, err)

	var masterUC models.UserChallenge
	require.NoError(t, db.Model(&models.UserChallenge{}).
		Select("user_challenges.*").
		Joins("JOIN challenges ON challenges.id = user_challenges.challenge_id").
		Where("challenges.uuid = ? AND user_challenges.status = ?", resp.UUID, models.ChallengeMaster).
		First(&masterUC).Error)

	// Two running challenges already: the third takes palette slot 2.
	assert.Equal(t, models.ColorPalette[2], masterUC.Color)
}

func TestCreateChallengeSerializesPerOrganizer(t *testing.T) {
	svc, db := newTestChallengeService(t)
	organizer := seedUser(t, db, "host")
	seedUser(t, db, "friend1")

	// At capacity exactly: one more creation is allowed, two are not.
	seedActiveChallenges(t, db, organizer, models.MaxChallengeCount)

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.CreateChallenge(createRequest("host", "friend1"))
			results <- err
		}()
	}

	var succeeded, refused int
	for i := 0; i < 2; i++ {
		err := <-results
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, ErrCreationRefused):
			refused++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, refused)
}

func TestChangeMembershipStatusAcceptAndReject(t *testing.T) {
	svc, db := newTestChallengeService(t)
	seedUser(t, db, "host")
	member := seedUser(t, db, "friend1")

	resp, err := svc.CreateChallenge(createRequest("host", "friend1"))
	require.NoError(t, err)

	status, err := svc.ChangeMembershipStatus("friend1", resp.UUID, models.ChallengeProgress)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeProgress, status)

	// Overwrite is unconditional: the same member can still decline.
	status, err = svc.ChangeMembershipStatus("friend1", resp.UUID, models.ChallengeReject)
	require.NoError(t, err)
	assert.Equal(t, models.ChallengeReject, status)

	var uc models.UserChallenge
	require.NoError(t, db.Model(&models.UserChallenge{}).
		Select("user_challenges.*").
		Joins("JOIN challenges ON challenges.id = user_challenges.challenge_id").
		Where("challenges.uuid = ? AND user_challenges.user_id = ?", resp.UUID, member.ID).
		First(&uc).Error)
	assert.Equal(t, models.ChallengeReject, uc.Status)
}

func TestChangeMembershipStatusMasterIsImmutable(t *testing.T) {
	svc, db := newTestChallengeService(t)
	seedUser(t, db, "host")
	seedUser(t, db, "friend1")

	resp, err := svc.CreateChallenge(createRequest("host", "friend1"))
	require.NoError(t, err)

	for _, target := range []models.ChallengeStatus{models.ChallengeProgress, models.ChallengeReject} {
		_, err = svc.ChangeMembershipStatus("host", resp.UUID, target)
		assert.ErrorIs(t, err, ErrImmutableMasterStatus)
	}
}

func TestChangeMembershipStatusNotFound(t *testing.T) {
	svc, db := newTestChallengeService(t)
	seedUser(t, db, "host")
	seedUser(t, db, "friend1")
	seedUser(t, db, "outsider")

	resp, err := svc.CreateChallenge(createRequest("host", "friend1"))
	require.NoError(t, err)

	_, err = svc.ChangeMembershipStatus("outsider", resp.UUID, models.ChallengeProgress)
	assert.ErrorIs(t, err, ErrMembershipNotFound)
}

func TestDeleteChallengeByNonMasterLeavesRowsIntact(t *testing.T) {
	svc, db := newTestChallengeService(t)
	seedUser(t, db, "host")
	seedUser(t, db, "friend1")

	resp, err := svc.CreateChallenge(createRequest("host", "friend1"))
	require.NoError(t, err)

	deleted, err := svc.DeleteChallenge("friend1", resp.UUID)
	require.NoError(t, err)
	assert.False(t, deleted)

	var challenges, memberships int64
	require.NoError(t, db.Model(&models.Challenge{}).Where("uuid = ?", resp.UUID).Count(&challenges).Error)
	require.NoError(t, db.Model(&models.UserChallenge{}).Count(&memberships).Error)
	assert.Equal(t, int64(1), challenges)
	assert.Equal(t, int64(2), memberships)
}

func TestDeleteChallengeByMasterCascades(t *testing.T) {
	svc, db := newTestChallengeService(t)
	seedUser(t, db, "host")
	seedUser(t, db, "friend1")

	resp, err := svc.CreateChallenge(createRequest("host", "friend1"))
	require.NoError(t, err)

	deleted, err := svc.DeleteChallenge("host", resp.UUID)
	require.NoError(t, err)
	assert.True(t, deleted)

	var challenges, memberships int64
	require.NoError(t, db.Model(&models.Challenge{}).Where("uuid = ?", resp.UUID).Count(&challenges).Error)
	require.NoError(t, db.Model(&models.UserChallenge{}).Count(&memberships).Error)
	assert.Zero(t, challenges)
	assert.Zero(t, memberships)
}

func TestDeleteChallengeUnknownChallenge(t *testing.T) {
	svc, db := newTestChallengeService(t)
	seedUser(t, db, "host")

	_, err := svc.DeleteChallenge("host", "deadbeefdeadbeefdeadbeefdeadbeef")
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestEndOfWeekDerivesSunday(t *testing.T) {
	// Wednesday 2026-08-26 -> Sunday 2026-08-30 23:59:59.
	wednesday := time.Date(2026, 8, 26, 10, 30, 0, 0, time.UTC)
	ended := EndOfWeek(wednesday)
	assert.Equal(t, time.Date(2026, 8, 30, 23, 59, 59, 0, time.UTC), ended)
	assert.Equal(t, time.Sunday, ended.Weekday())

	// A Sunday start ends the same day.
	sunday := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 30, 23, 59, 59, 0, time.UTC), EndOfWeek(sunday))
}
