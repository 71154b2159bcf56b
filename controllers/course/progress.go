package controllers

import (
	"errors"
	"math"
	"time"

	"lms/database"
	"lms/middleware"
	"lms/models"
	courseModels "lms/models/course"
	"lms/progression"
	"lms/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ErrNotEnrolled is returned when the acting user holds no enrollment for
// the course. Enrollment is a precondition of every progress write.
var ErrNotEnrolled = errors.New("user not enrolled in this course")

// EnrollmentSnapshot is returned after every completion event and drives
// the player's auto-advance.
type EnrollmentSnapshot struct {
	Enrollment         courseModels.Enrollment `json:"enrollment"`
	CompletedLessonIDs []uint                  `json:"completed_lesson_ids"`
	NextLessonID       *uint                   `json:"next_lesson_id"`
	CourseComplete     bool                    `json:"course_complete"`
}

// loadCourseOrder fetches the course structure and builds the flat lesson
// order the resolver walks.
func loadCourseOrder(db *gorm.DB, courseID uint) (courseModels.Course, *progression.CourseOrder, error) {
	var crs courseModels.Course
	if err := db.Where("id = ? AND is_deleted = ? AND is_published = ?", courseID, false, true).First(&crs).Error; err != nil {
		return crs, nil, err
	}

	var modules []courseModels.Module
	if err := db.Where("course_id = ? AND is_deleted = ?", courseID, false).Order("order_index asc").Find(&modules).Error; err != nil {
		return crs, nil, err
	}

	var lessons []courseModels.Lesson
	if err := db.Where("course_id = ? AND is_deleted = ? AND is_published = ?", courseID, false, true).Find(&lessons).Error; err != nil {
		return crs, nil, err
	}

	return crs, progression.NewCourseOrder(crs, modules, lessons), nil
}

// completedLessonSet returns the ids of this user's completed lessons in
// the course.
func completedLessonSet(db *gorm.DB, userID, courseID uint) (map[uint]bool, error) {
	var rows []courseModels.LessonProgress
	if err := db.Where("user_id = ? AND course_id = ? AND status = ? AND is_deleted = ?",
		userID, courseID, courseModels.StatusCompleted, false).Find(&rows).Error; err != nil {
		return nil, err
	}
	completed := make(map[uint]bool, len(rows))
	for _, r := range rows {
		completed[r.LessonID] = true
	}
	return completed, nil
}

// completeLessonTx applies a completion verdict and recomputes the
// enrollment aggregate in one transaction, so an interrupted call never
// leaves a completed lesson next to a stale aggregate. Safe to re-run:
// the recompute is a pure function of the current completed set.
func completeLessonTx(db *gorm.DB, userID uint, crs courseModels.Course, lesson courseModels.Lesson,
	order *progression.CourseOrder, verdict progression.Verdict, quizScore *float64) (*EnrollmentSnapshot, error) {

	now := time.Now()
	var enrollment courseModels.Enrollment
	var courseJustCompleted bool

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND course_id = ? AND is_deleted = ?", userID, crs.ID, false).First(&enrollment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotEnrolled
			}
			return err
		}

		// Lazy upsert of the per-(user, lesson) progress row.
		var progress courseModels.LessonProgress
		err := tx.Where("user_id = ? AND lesson_id = ? AND is_deleted = ?", userID, lesson.ID, false).First(&progress).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			progress = courseModels.LessonProgress{
				UserID:   userID,
				LessonID: lesson.ID,
				CourseID: crs.ID,
				Status:   courseModels.StatusNotStarted,
			}
		} else if err != nil {
			return err
		}

		progression.ApplyVerdict(&progress, verdict, now)
		if quizScore != nil && (progress.QuizScore == nil || *quizScore > *progress.QuizScore) {
			progress.QuizScore = quizScore
		}
		if err := tx.Save(&progress).Error; err != nil {
			return err
		}

		// Recompute the aggregate over the current lesson set, so lessons
		// added after enrollment count from the next completion event on.
		var completedRows []courseModels.LessonProgress
		if err := tx.Where("user_id = ? AND course_id = ? AND status = ? AND is_deleted = ?",
			userID, crs.ID, courseModels.StatusCompleted, false).Find(&completedRows).Error; err != nil {
			return err
		}
		completedCount := 0
		for _, r := range completedRows {
			if _, ok := order.Position(r.LessonID); ok {
				completedCount++
			}
		}

		total := order.Len()
		enrollment.CompletedLessons = completedCount
		enrollment.TotalLessons = total
		if total > 0 {
			enrollment.ProgressPercentage = math.Round(100 * float64(completedCount) / float64(total))
		}
		lessonID := lesson.ID
		enrollment.CurrentLessonID = &lessonID

		if enrollment.ProgressPercentage >= 100 {
			enrollment.Status = "COMPLETED"
			// CompletedAt is set exactly once and never cleared.
			if enrollment.CompletedAt == nil {
				enrollment.CompletedAt = &now
				courseJustCompleted = true
			}
		} else if enrollment.ProgressPercentage > 0 {
			enrollment.Status = "IN_PROGRESS"
		}

		// A passed final quiz overwrites the headline score; a failed one
		// never touches it.
		if lesson.IsFinalQuiz && verdict.Status == courseModels.StatusCompleted && quizScore != nil {
			enrollment.FinalScore = quizScore
		}

		return tx.Save(&enrollment).Error
	})
	if err != nil {
		return nil, err
	}

	if courseJustCompleted {
		go utils.SendCourseCompletionEmail(userID, crs.Title)
	}

	completed, err := completedLessonSet(db, userID, crs.ID)
	if err != nil {
		return nil, err
	}
	return buildSnapshot(enrollment, order, completed), nil
}

func buildSnapshot(enrollment courseModels.Enrollment, order *progression.CourseOrder, completed map[uint]bool) *EnrollmentSnapshot {
	snapshot := &EnrollmentSnapshot{
		Enrollment:         enrollment,
		CompletedLessonIDs: make([]uint, 0, len(completed)),
		CourseComplete:     order.IsFullyComplete(completed),
	}
	for _, l := range order.Lessons {
		if completed[l.ID] {
			snapshot.CompletedLessonIDs = append(snapshot.CompletedLessonIDs, l.ID)
		}
	}
	if next, ok := order.NextIncompleteLesson(completed); ok {
		snapshot.NextLessonID = &next
	}
	return snapshot
}

// GetProgressSnapshot returns the enrollment, the completed lesson set and
// per-lesson unlock state. This is the read path the player renders from.
func GetProgressSnapshot(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "User not found!", nil)
	}

	courseID := uint(c.Locals("courseID").(int))

	_, order, err := loadCourseOrder(database.Database.Db, courseID)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Course not found or not published!", nil)
	}

	var enrollment courseModels.Enrollment
	if err := database.Database.Db.Where("user_id = ? AND course_id = ? AND is_deleted = ?", userID, courseID, false).First(&enrollment).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "User not enrolled in this course!", nil)
	}

	completed, err := completedLessonSet(database.Database.Db, userID, courseID)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch progress!", nil)
	}

	type lessonState struct {
		LessonID    uint   `json:"lesson_id"`
		ModuleID    uint   `json:"module_id"`
		Title       string `json:"title"`
		ContentType string `json:"content_type"`
		Unlocked    bool   `json:"unlocked"`
		Completed   bool   `json:"completed"`
	}
	states := make([]lessonState, order.Len())
	for i, l := range order.Lessons {
		states[i] = lessonState{
			LessonID:    l.ID,
			ModuleID:    l.ModuleID,
			Title:       l.Title,
			ContentType: l.ContentType,
			Unlocked:    order.IsUnlocked(completed, l.ID),
			Completed:   completed[l.ID],
		}
	}

	// Per-module rollup for the course outline view.
	type moduleProgress struct {
		ModuleID         uint    `json:"module_id"`
		TotalLessons     int     `json:"total_lessons"`
		CompletedLessons int     `json:"completed_lessons"`
		Progress         float64 `json:"progress"`
	}
	byModule := map[uint]*moduleProgress{}
	moduleOrder := []uint{}
	for _, l := range order.Lessons {
		mp, ok := byModule[l.ModuleID]
		if !ok {
			mp = &moduleProgress{ModuleID: l.ModuleID}
			byModule[l.ModuleID] = mp
			moduleOrder = append(moduleOrder, l.ModuleID)
		}
		mp.TotalLessons++
		if completed[l.ID] {
			mp.CompletedLessons++
		}
	}
	modules := make([]moduleProgress, 0, len(moduleOrder))
	for _, id := range moduleOrder {
		mp := byModule[id]
		if mp.TotalLessons > 0 {
			mp.Progress = math.Round(100 * float64(mp.CompletedLessons) / float64(mp.TotalLessons))
		}
		modules = append(modules, *mp)
	}

	snapshot := buildSnapshot(enrollment, order, completed)

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Progress fetched successfully!", fiber.Map{
		"snapshot":        snapshot,
		"lessons":         states,
		"module_progress": modules,
	})
}

// UpdateProgress is the light fire-and-forget ping path: it upserts the
// lesson progress row only and never touches the enrollment aggregate.
func UpdateProgress(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	courseID := uint(c.Locals("courseID").(int))
	lessonID := uint(c.Locals("lessonID").(int))

	reqData, ok := c.Locals("validatedProgressPing").(*struct {
		ProgressPercentage float64 `json:"progress_percentage"`
		TimeSpent          int64   `json:"time_spent"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	var enrollment courseModels.Enrollment
	if err := database.Database.Db.Where("user_id = ? AND course_id = ? AND is_deleted = ?", userID, courseID, false).First(&enrollment).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "User not enrolled in this course!", nil)
	}

	var lesson courseModels.Lesson
	if err := database.Database.Db.Where("id = ? AND course_id = ? AND is_deleted = ? AND is_published = ?", lessonID, courseID, false, true).First(&lesson).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Lesson not found!", nil)
	}

	now := time.Now()
	err := database.Database.Db.Transaction(func(tx *gorm.DB) error {
		var progress courseModels.LessonProgress
		err := tx.Where("user_id = ? AND lesson_id = ? AND is_deleted = ?", userID, lessonID, false).First(&progress).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			progress = courseModels.LessonProgress{
				UserID:   userID,
				LessonID: lessonID,
				CourseID: courseID,
				Status:   courseModels.StatusNotStarted,
			}
		} else if err != nil {
			return err
		}

		// Bookkeeping only. A completed row keeps its status: a replay of
		// finished content must never regress it.
		if progress.Status == courseModels.StatusNotStarted {
			progress.Status = courseModels.StatusInProgress
		}
		if progress.Status != courseModels.StatusCompleted && reqData.ProgressPercentage > progress.ProgressPercentage {
			progress.ProgressPercentage = reqData.ProgressPercentage
		}
		progress.TimeSpent += reqData.TimeSpent
		progress.LastAccessedAt = &now

		return tx.Save(&progress).Error
	})
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to update progress!", nil)
	}

	// Track last-viewed lesson for resume. UI convenience, not unlock state.
	database.Database.Db.Model(&courseModels.Enrollment{}).Where("id = ?", enrollment.ID).Update("current_lesson_id", lessonID)

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Progress updated successfully!", nil)
}

// CompleteLesson is the only call that can advance the aggregate. It
// handles text mark-complete, asset download acknowledgments and video
// finalization; quiz completion goes through SubmitQuiz.
func CompleteLesson(c *fiber.Ctx) error {
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

	reqData, ok := c.Locals("validatedCompletion").(*struct {
		FinalProgress float64 `json:"final_progress"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	crs, order, err := loadCourseOrder(database.Database.Db, courseID)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Course not found or not published!", nil)
	}

	var lesson courseModels.Lesson
	if err := database.Database.Db.Where("id = ? AND course_id = ? AND is_deleted = ? AND is_published = ?", lessonID, courseID, false, true).First(&lesson).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Lesson not found!", nil)
	}

	if lesson.ContentType == courseModels.ContentTypeQuiz {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Quiz lessons are completed by submitting the quiz!", nil)
	}

	// For videos the signal is the watched ratio; anything below the
	// threshold only records partial progress.
	signal := 1.0
	if lesson.ContentType == courseModels.ContentTypeVideo {
		signal = reqData.FinalProgress / 100
	}
	verdict := progression.Evaluate(lesson.ContentType, signal, crs.EffectivePassingScore(&lesson))

	snapshot, err := completeLessonTx(database.Database.Db, userID, crs, lesson, order, verdict, nil)
	if errors.Is(err, ErrNotEnrolled) {
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "User not enrolled in this course!", nil)
	}
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to complete lesson!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Lesson completion recorded!", snapshot)
}
