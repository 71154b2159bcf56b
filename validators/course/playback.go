package courseValidator

import (
	"strings"

	"lms/middleware"

	"github.com/gofiber/fiber/v2"
)

// StartPlayback validates a playback session open request.
func StartPlayback() fiber.Handler {
	return func(c *fiber.Ctx) error {
		courseID, lessonID, ok := courseAndLessonParams(c)
		if !ok {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid course or lesson ID!", nil)
		}
		c.Locals("courseID", courseID)
		c.Locals("lessonID", lessonID)
		return c.Next()
	}
}

// PlaybackTick validates a position tick.
func PlaybackTick() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if strings.TrimSpace(c.Params("session_id")) == "" {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Session ID is required!", nil)
		}

		reqData := new(struct {
			Position float64 `json:"position"`
			Elapsed  int64   `json:"elapsed"`
			Playing  bool    `json:"playing"`
		})
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)
		if reqData.Position < 0 {
			errors["position"] = "Position cannot be negative!"
		}
		if reqData.Elapsed < 0 {
			errors["elapsed"] = "Elapsed time cannot be negative!"
		}
		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedPlaybackTick", reqData)
		return c.Next()
	}
}

// PlaybackSeek validates a seek request.
func PlaybackSeek() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if strings.TrimSpace(c.Params("session_id")) == "" {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Session ID is required!", nil)
		}

		reqData := new(struct {
			Position float64 `json:"position"`
		})
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		if reqData.Position < 0 {
			return middleware.ValidationErrorResponse(c, map[string]string{
				"position": "Position cannot be negative!",
			})
		}

		c.Locals("validatedPlaybackSeek", reqData)
		return c.Next()
	}
}
