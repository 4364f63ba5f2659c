package models

import (
	"time"
)

// User is a local snapshot of account data needed for challenges.
// Owned and managed solely by the challenge service.
// Populated via sync worker from the account service's profile endpoint.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Nickname    string    `gorm:"uniqueIndex;not null" json:"nickname"`
	Email       string    `json:"email,omitempty"`
	PicturePath string    `json:"picture_path,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// RemoteProfile mirrors the JSON shape of the account service's public
// profile feed (read-only). Used by the sync worker only.
type RemoteProfile struct {
	Nickname    string    `json:"nickname"`
	Email       string    `json:"email"`
	PicturePath string    `json:"picture_path,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}
