package courseValidator

import (
	"lms/middleware"

	"github.com/gofiber/fiber/v2"
)

// courseAndLessonParams validates the :course_id and :lesson_id route
// parameters shared by all progress endpoints.
func courseAndLessonParams(c *fiber.Ctx) (int, int, bool) {
	courseID, ok := parseIDParam(c, "course_id")
	if !ok {
		return 0, 0, false
	}
	lessonID, ok := parseIDParam(c, "lesson_id")
	if !ok {
		return 0, 0, false
	}
	return courseID, lessonID, true
}

// GetCourseProgress validates the progress snapshot request.
func GetCourseProgress() fiber.Handler {
	return func(c *fiber.Ctx) error {
		courseID, ok := parseIDParam(c, "course_id")
		if !ok {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid course ID!", nil)
		}
		c.Locals("courseID", courseID)
		return c.Next()
	}
}

// UpdateProgressPing validates a fire-and-forget progress ping.
func UpdateProgressPing() fiber.Handler {
	return func(c *fiber.Ctx) error {
		courseID, lessonID, ok := courseAndLessonParams(c)
		if !ok {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid course or lesson ID!", nil)
		}

		reqData := new(struct {
			ProgressPercentage float64 `json:"progress_percentage"`
			TimeSpent          int64   `json:"time_spent"`
		})
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)
		if reqData.ProgressPercentage < 0 || reqData.ProgressPercentage > 100 {
			errors["progress_percentage"] = "Progress must be between 0 and 100!"
		}
		if reqData.TimeSpent < 0 {
			errors["time_spent"] = "Time spent cannot be negative!"
		}
		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("courseID", courseID)
		c.Locals("lessonID", lessonID)
		c.Locals("validatedProgressPing", reqData)
		return c.Next()
	}
}

// CompleteLesson validates a lesson completion request.
func CompleteLesson() fiber.Handler {
	return func(c *fiber.Ctx) error {
		courseID, lessonID, ok := courseAndLessonParams(c)
		if !ok {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid course or lesson ID!", nil)
		}

		reqData := new(struct {
			FinalProgress float64 `json:"final_progress"`
		})
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)
		if reqData.FinalProgress < 0 || reqData.FinalProgress > 100 {
			errors["final_progress"] = "Final progress must be between 0 and 100!"
		}
		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("courseID", courseID)
		c.Locals("lessonID", lessonID)
		c.Locals("validatedCompletion", reqData)
		return c.Next()
	}
}

// SubmitQuiz validates a quiz submission.
func SubmitQuiz() fiber.Handler {
	return func(c *fiber.Ctx) error {
		courseID, lessonID, ok := courseAndLessonParams(c)
		if !ok {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid course or lesson ID!", nil)
		}

		reqData := new(struct {
			Answers []struct {
				QuestionID     uint `json:"question_id"`
				SelectedOption int  `json:"selected_option"`
			} `json:"answers"`
		})
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		// An empty answer set is legal: a quiz with no questions has
		// nothing to answer and grades as an automatic pass.
		errors := make(map[string]string)
		for _, a := range reqData.Answers {
			if a.QuestionID == 0 {
				errors["answers"] = "Answers must reference a question!"
				break
			}
			if a.SelectedOption < 0 {
				errors["answers"] = "Selected option cannot be negative!"
				break
			}
		}
		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("courseID", courseID)
		c.Locals("lessonID", lessonID)
		c.Locals("validatedQuizSubmission", reqData)
		return c.Next()
	}
}

// GetQuiz validates a quiz questions request.
func GetQuiz() fiber.Handler {
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
