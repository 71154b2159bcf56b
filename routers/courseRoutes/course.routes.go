package courseRoutes

import (
	controllers "lms/controllers/course"
	"lms/middleware"
	validators "lms/validators/course"

	"github.com/gofiber/fiber/v2"
)

// SetupCourseRoutes sets up all learner-facing course and progression routes
func SetupCourseRoutes(app *fiber.App) {
	courseGroup := app.Group("/course")

	// Catalog (published courses)
	courseGroup.Get("/list", middleware.JWTMiddleware, validators.CourseList(), controllers.GetAllCourses)
	courseGroup.Get("/:id", middleware.JWTMiddleware, validators.GetCourseDetail(), controllers.GetCourseDetails)

	// Enrollment
	courseGroup.Post("/:id/enroll", middleware.JWTMiddleware, validators.EnrollCourse(), controllers.EnrollInCourse)

	// Progress tracking
	courseGroup.Get("/:course_id/progress", middleware.JWTMiddleware, validators.GetCourseProgress(), controllers.GetProgressSnapshot)
	courseGroup.Post("/:course_id/lesson/:lesson_id/progress", middleware.JWTMiddleware, validators.UpdateProgressPing(), controllers.UpdateProgress)
	courseGroup.Post("/:course_id/lesson/:lesson_id/complete", middleware.JWTMiddleware, validators.CompleteLesson(), controllers.CompleteLesson)

	// Quiz
	courseGroup.Get("/:course_id/lesson/:lesson_id/quiz", middleware.JWTMiddleware, validators.GetQuiz(), controllers.GetQuizQuestions)
	courseGroup.Post("/:course_id/lesson/:lesson_id/quiz/submit", middleware.JWTMiddleware, validators.SubmitQuiz(), controllers.SubmitQuiz)

	// Video playback (watch-guard sessions)
	courseGroup.Post("/:course_id/lesson/:lesson_id/play", middleware.JWTMiddleware, validators.StartPlayback(), controllers.StartPlayback)

	playbackGroup := app.Group("/playback")
	playbackGroup.Post("/:session_id/tick", middleware.JWTMiddleware, validators.PlaybackTick(), controllers.PlaybackTick)
	playbackGroup.Post("/:session_id/seek", middleware.JWTMiddleware, validators.PlaybackSeek(), controllers.PlaybackSeek)
	playbackGroup.Post("/:session_id/stop", middleware.JWTMiddleware, controllers.StopPlayback)

	// User enrollments
	userGroup := app.Group("/user")
	userGroup.Get("/enrollments", middleware.JWTMiddleware, validators.EnrollmentList(), controllers.GetEnrollments)
}
