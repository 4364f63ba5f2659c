package services

import (
	"strconv"
	"strings"

	"territory-challenge-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// UserService reads the local user snapshot the sync worker maintains.
type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// SearchUsers searches the local user table by nickname or email.
func (s *UserService) SearchUsers(c *fiber.Ctx) error {
	query := c.Query("q", "")
	limitStr := c.Query("limit", "50")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	var users []models.User
	db := s.DB.Model(&models.User{}).Limit(limit)

	if query != "" {
		searchTerm := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
		db = db.Where(
			"LOWER(nickname) LIKE ? OR LOWER(email) LIKE ?",
			searchTerm, searchTerm,
		)
	}

	if err := db.Order("nickname ASC").Find(&users).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "search failed"})
	}

	type UserSummary struct {
		Nickname    string `json:"nickname"`
		Email       string `json:"email,omitempty"`
		PicturePath string `json:"picture_path,omitempty"`
	}

	res := make([]UserSummary, len(users))
	for i, u := range users {
		res[i] = UserSummary{
			Nickname:    u.Nickname,
			Email:       u.Email,
			PicturePath: u.PicturePath,
		}
	}

	return c.JSON(res)
}
