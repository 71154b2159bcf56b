package controllers

import (
	"encoding/json"
	"errors"

	"lms/database"
	"lms/middleware"
	"lms/models"
	courseModels "lms/models/course"
	"lms/progression"

	"github.com/gofiber/fiber/v2"
)

// SubmitQuiz grades a submitted answer set and, iff the attempt passes,
// completes the lesson through the aggregator. Retakes are unlimited
// while the lesson is not passed; once passed it is locked into completed
// and further submissions are rejected.
func SubmitQuiz(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "User not found!", nil)
	}

	courseID := uint(c.Locals("courseID").(int))
	lessonID := uint(c.Locals("lessonID").(int))

	reqData, ok := c.Locals("validatedQuizSubmission").(*struct {
		Answers []struct {
			QuestionID     uint `json:"question_id"`
			SelectedOption int  `json:"selected_option"`
		} `json:"answers"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	crs, order, err := loadCourseOrder(database.Database.Db, courseID)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Course not found or not published!", nil)
	}

	var enrollment courseModels.Enrollment
	if err := database.Database.Db.Where("user_id = ? AND course_id = ? AND is_deleted = ?", userID, courseID, false).First(&enrollment).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "User not enrolled in this course!", nil)
	}

	var lesson courseModels.Lesson
	if err := database.Database.Db.Where("id = ? AND course_id = ? AND is_deleted = ? AND is_published = ?", lessonID, courseID, false, true).First(&lesson).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Lesson not found!", nil)
	}

	if lesson.ContentType != courseModels.ContentTypeQuiz {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Lesson is not a quiz!", nil)
	}

	// A passed quiz is locked; the stored score must never be downgraded.
	var existing courseModels.LessonProgress
	if err := database.Database.Db.Where("user_id = ? AND lesson_id = ? AND is_deleted = ?", userID, lessonID, false).First(&existing).Error; err == nil {
		if existing.Status == courseModels.StatusCompleted {
			return middleware.JsonResponse(c, fiber.StatusConflict, false, "Quiz already passed!", nil)
		}
	}

	var questions []courseModels.QuizQuestion
	if err := database.Database.Db.Where("lesson_id = ? AND is_deleted = ?", lessonID, false).Order("order_index asc").Find(&questions).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to load quiz questions!", nil)
	}

	answers := make(map[uint]int, len(reqData.Answers))
	for _, a := range reqData.Answers {
		answers[a.QuestionID] = a.SelectedOption
	}

	passingScore := crs.EffectivePassingScore(&lesson)
	result := progression.ScoreQuiz(questions, answers, passingScore)

	// Record the attempt regardless of outcome.
	var attemptCount int64
	database.Database.Db.Model(&courseModels.QuizAttempt{}).Where("user_id = ? AND lesson_id = ? AND is_deleted = ?", userID, lessonID, false).Count(&attemptCount)

	answersJSON, _ := json.Marshal(answers)
	attempt := courseModels.QuizAttempt{
		UserID:        userID,
		LessonID:      lessonID,
		Answers:       answersJSON,
		Percentage:    result.Percentage,
		Passed:        result.Passed,
		AttemptNumber: int(attemptCount) + 1,
	}
	if err := database.Database.Db.Create(&attempt).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to record attempt!", nil)
	}

	response := fiber.Map{
		"percentage":     result.Percentage,
		"passed":         result.Passed,
		"passing_score":  passingScore,
		"attempt_number": attempt.AttemptNumber,
		"retake_allowed": !result.Passed,
		"earned_points":  result.EarnedPoints,
		"total_points":   result.TotalPoints,
		"is_final_quiz":  lesson.IsFinalQuiz,
	}

	if !result.Passed {
		// Failed attempts record the best score so far without touching
		// the enrollment aggregate.
		score := result.Percentage
		now := attempt.CreatedAt
		var progress courseModels.LessonProgress
		err := database.Database.Db.Where("user_id = ? AND lesson_id = ? AND is_deleted = ?", userID, lessonID, false).First(&progress).Error
		if err != nil {
			progress = courseModels.LessonProgress{
				UserID:   userID,
				LessonID: lessonID,
				CourseID: courseID,
				Status:   courseModels.StatusInProgress,
			}
		}
		if progress.Status != courseModels.StatusCompleted {
			progress.Status = courseModels.StatusInProgress
			if progress.QuizScore == nil || score > *progress.QuizScore {
				progress.QuizScore = &score
				progress.ProgressPercentage = score
			}
			progress.LastAccessedAt = &now
			database.Database.Db.Save(&progress)
		}
		return middleware.JsonResponse(c, fiber.StatusOK, true, "Quiz graded. Threshold not reached, retake permitted.", response)
	}

	score := result.Percentage
	verdict := progression.Evaluate(courseModels.ContentTypeQuiz, score, passingScore)
	snapshot, err := completeLessonTx(database.Database.Db, userID, crs, lesson, order, verdict, &score)
	if errors.Is(err, ErrNotEnrolled) {
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "User not enrolled in this course!", nil)
	}
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to record quiz completion!", nil)
	}
	response["snapshot"] = snapshot

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Quiz passed!", response)
}

// GetQuizQuestions returns the quiz questions for a lesson with the
// correct answers stripped.
func GetQuizQuestions(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	courseID := uint(c.Locals("courseID").(int))
	lessonID := uint(c.Locals("lessonID").(int))

	var enrollment courseModels.Enrollment
	if err := database.Database.Db.Where("user_id = ? AND course_id = ? AND is_deleted = ?", userID, courseID, false).First(&enrollment).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "User not enrolled in this course!", nil)
	}

	var lesson courseModels.Lesson
	if err := database.Database.Db.Where("id = ? AND course_id = ? AND is_deleted = ? AND is_published = ?", lessonID, courseID, false, true).First(&lesson).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Lesson not found!", nil)
	}
	if lesson.ContentType != courseModels.ContentTypeQuiz {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Lesson is not a quiz!", nil)
	}

	var questions []courseModels.QuizQuestion
	database.Database.Db.Where("lesson_id = ? AND is_deleted = ?", lessonID, false).Order("order_index asc").Find(&questions)

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Quiz questions fetched successfully!", fiber.Map{
		"lesson_id": lessonID,
		"questions": questions,
	})
}
