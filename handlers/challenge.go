package handlers

import (
	"territory-challenge-system/middleware"
	"territory-challenge-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupChallengeRoutes(app *fiber.App, challengeService *services.ChallengeService, userService *services.UserService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Challenge lifecycle (member actions)
	secured.Post("/challenges", challengeService.CreateChallengeEndpoint)
	secured.Post("/challenges/:uuid/respond", challengeService.RespondToInvitationEndpoint)
	secured.Delete("/challenges/:uuid", challengeService.DeleteChallengeEndpoint)

	// Challenge lists by state
	secured.Get("/challenges/invited", challengeService.InvitedChallengesEndpoint)
	secured.Get("/challenges/wait", challengeService.WaitChallengesEndpoint)
	secured.Get("/challenges/progress", challengeService.ProgressChallengesEndpoint)
	secured.Get("/challenges/done", challengeService.DoneChallengesEndpoint)

	// Detail views
	secured.Get("/challenges/:uuid/wait", challengeService.WaitDetailEndpoint)
	secured.Get("/challenges/:uuid/progress", challengeService.ProgressDetailEndpoint)
	secured.Get("/challenges/:uuid/map", challengeService.MapDetailEndpoint)

	// Users
	secured.Get("/users/search", userService.SearchUsers)
}
