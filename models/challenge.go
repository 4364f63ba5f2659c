package models

import (
	"time"
)

// ChallengeStatus is shared by the challenge row and the membership row.
// Challenge-level only uses Wait/Progress/Done; Reject and Master are
// member-level states.
type ChallengeStatus string

const (
	ChallengeWait     ChallengeStatus = "Wait"
	ChallengeProgress ChallengeStatus = "Progress"
	ChallengeDone     ChallengeStatus = "Done"
	ChallengeReject   ChallengeStatus = "Reject"
	ChallengeMaster   ChallengeStatus = "Master"
)

// ChallengeType selects the scoring rule for a challenge.
// WIDEN ranks by distinct cells claimed; ACCUMULATE ranks by total claim
// events, duplicates counted.
type ChallengeType string

const (
	TypeWiden      ChallengeType = "WIDEN"
	TypeAccumulate ChallengeType = "ACCUMULATE"
)

// ChallengeColor is the palette a member's simultaneously running
// challenges are spread across. Palette size equals the concurrent
// challenge capacity limit.
type ChallengeColor string

const (
	ColorRed    ChallengeColor = "Red"
	ColorPink   ChallengeColor = "Pink"
	ColorYellow ChallengeColor = "Yellow"
)

// ColorPalette indexed by active-challenge count % len(ColorPalette).
var ColorPalette = []ChallengeColor{ColorRed, ColorPink, ColorYellow}

// MaxChallengeCount is the per-user concurrent challenge capacity.
const MaxChallengeCount = 3

// Challenge is a time-boxed territory competition between invited members.
// Ended is always derived (Sunday 23:59:59 of the start week) and never
// settable by callers.
type Challenge struct {
	ID      uint            `gorm:"primaryKey" json:"id"`
	UUID    string          `gorm:"uniqueIndex;size:32;not null" json:"uuid"`
	Slug    string          `gorm:"index" json:"slug"`
	Name    string          `gorm:"not null" json:"name"`
	Message string          `json:"message,omitempty"`
	Type    ChallengeType   `gorm:"type:varchar(16);not null" json:"type"`
	Status  ChallengeStatus `gorm:"type:varchar(16);not null;default:'Wait';index" json:"status"`
	Started time.Time       `gorm:"not null;index" json:"started"`
	Ended   time.Time       `gorm:"not null;index" json:"ended"`
	Created time.Time       `gorm:"autoCreateTime" json:"created"`

	Memberships []UserChallenge `json:"memberships,omitempty" gorm:"foreignKey:ChallengeID"`
}

// UserChallenge is the join row between a user and a challenge.
// Exactly one membership per challenge holds Master; a Master row's
// status never changes for the lifetime of the challenge.
type UserChallenge struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"not null;index;uniqueIndex:idx_user_challenge" json:"user_id"`
	ChallengeID uint            `gorm:"not null;index;uniqueIndex:idx_user_challenge" json:"challenge_id"`
	Status      ChallengeStatus `gorm:"type:varchar(16);not null" json:"status"`
	Color       ChallengeColor  `gorm:"type:varchar(16);not null" json:"color"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`

	User      User      `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Challenge Challenge `json:"-" gorm:"foreignKey:ChallengeID"`
}

// ColorForActiveCount spreads a user's running challenges across the
// palette: the nth concurrent challenge wraps around modulo palette size.
func ColorForActiveCount(activeCount int64) ChallengeColor {
	return ColorPalette[activeCount%int64(len(ColorPalette))]
}
