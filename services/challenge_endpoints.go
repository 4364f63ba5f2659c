package services

import (
	"log"
	"time"

	"territory-challenge-system/models"

	"github.com/gofiber/fiber/v2"
)

// Fiber endpoints for the challenge service. The gateway injects the
// caller's nickname as X-User-Nickname; domain failures map to statuses
// via HTTPStatus, everything else is a 500.

func callerNickname(c *fiber.Ctx) string {
	if nickname, ok := c.Locals("user_nickname").(string); ok && nickname != "" {
		return nickname
	}
	return c.Get("X-User-Nickname")
}

func respondError(c *fiber.Ctx, err error) error {
	status := HTTPStatus(err)
	if status == 500 {
		log.Printf("[Challenge] internal error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal error"})
	}
	ce := err.(*ChallengeError)
	return c.Status(status).JSON(fiber.Map{
		"error":     ce.Code,
		"nicknames": ce.Nicknames,
	})
}

// CreateChallengeEndpoint handles POST /challenges.
func (s *ChallengeService) CreateChallengeEndpoint(c *fiber.Ctx) error {
	var body struct {
		Name    string   `json:"name"`
		Message string   `json:"message"`
		Started string   `json:"started"` // RFC3339
		Type    string   `json:"type"`
		Friends []string `json:"friends"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}
	if body.Name == "" || body.Started == "" {
		return c.Status(400).JSON(fiber.Map{"error": "name and started are required"})
	}

	started, err := time.Parse(time.RFC3339, body.Started)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid started (use RFC3339)"})
	}

	challengeType := models.ChallengeType(body.Type)
	if challengeType != models.TypeWiden && challengeType != models.TypeAccumulate {
		return c.Status(400).JSON(fiber.Map{"error": "type must be WIDEN or ACCUMULATE"})
	}

	resp, err := s.CreateChallenge(CreateChallengeRequest{
		Nickname: callerNickname(c),
		Name:     body.Name,
		Message:  body.Message,
		Started:  started,
		Type:     challengeType,
		Friends:  body.Friends,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(resp)
}

// RespondToInvitationEndpoint handles POST /challenges/:uuid/respond.
func (s *ChallengeService) RespondToInvitationEndpoint(c *fiber.Ctx) error {
	var body struct {
		Decision string `json:"decision"` // accept | reject
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}

	var status models.ChallengeStatus
	switch body.Decision {
	case "accept":
		status = models.ChallengeProgress
	case "reject":
		status = models.ChallengeReject
	default:
		return c.Status(400).JSON(fiber.Map{"error": "decision must be accept or reject"})
	}

	updated, err := s.ChangeMembershipStatus(callerNickname(c), c.Params("uuid"), status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": updated})
}

// DeleteChallengeEndpoint handles DELETE /challenges/:uuid.
func (s *ChallengeService) DeleteChallengeEndpoint(c *fiber.Ctx) error {
	deleted, err := s.DeleteChallenge(callerNickname(c), c.Params("uuid"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": deleted})
}

// InvitedChallengesEndpoint handles GET /challenges/invited.
func (s *ChallengeService) InvitedChallengesEndpoint(c *fiber.Ctx) error {
	invites, err := s.InvitedChallenges(callerNickname(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(invites)
}

// WaitChallengesEndpoint handles GET /challenges/wait.
func (s *ChallengeService) WaitChallengesEndpoint(c *fiber.Ctx) error {
	infos, err := s.WaitChallenges(callerNickname(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(infos)
}

// ProgressChallengesEndpoint handles GET /challenges/progress.
func (s *ChallengeService) ProgressChallengesEndpoint(c *fiber.Ctx) error {
	infos, err := s.ProgressChallenges(callerNickname(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(infos)
}

// DoneChallengesEndpoint handles GET /challenges/done.
func (s *ChallengeService) DoneChallengesEndpoint(c *fiber.Ctx) error {
	infos, err := s.DoneChallenges(callerNickname(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(infos)
}

// WaitDetailEndpoint handles GET /challenges/:uuid/wait.
func (s *ChallengeService) WaitDetailEndpoint(c *fiber.Ctx) error {
	detail, err := s.GetWaitDetail(callerNickname(c), c.Params("uuid"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detail)
}

// ProgressDetailEndpoint handles GET /challenges/:uuid/progress.
func (s *ChallengeService) ProgressDetailEndpoint(c *fiber.Ctx) error {
	detail, err := s.GetProgressDetail(callerNickname(c), c.Params("uuid"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detail)
}

// MapDetailEndpoint handles GET /challenges/:uuid/map.
func (s *ChallengeService) MapDetailEndpoint(c *fiber.Ctx) error {
	detail, err := s.GetMapDetail(c.Params("uuid"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detail)
}
