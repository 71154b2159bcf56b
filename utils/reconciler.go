package utils

import (
	"log"
	"math"
	"time"

	"lms/config"
	"lms/database"
	courseModels "lms/models/course"

	"github.com/robfig/cron/v3"
)

// logReconciler logs reconciliation events with timestamp
func logReconciler(message string) {
	log.Printf("[PROGRESS-RECONCILER %s] %s", time.Now().Format(time.RFC3339), message)
}

// StartProgressReconciler schedules the periodic reconciliation pass. The
// aggregate recompute is idempotent, so re-running it here repairs any
// enrollment left stale by a crash between a lesson completion write and
// the aggregate update. pruneSessions is invoked on the same schedule to
// drop abandoned playback sessions.
func StartProgressReconciler(pruneSessions func() int) *cron.Cron {
	c := cron.New()
	spec := config.AppConfig.ReconcileSpec

	if _, err := c.AddFunc(spec, func() {
		ReconcileEnrollments()
		if pruneSessions != nil {
			if n := pruneSessions(); n > 0 {
				logReconciler("Pruned stale playback sessions")
			}
		}
	}); err != nil {
		log.Fatalf("Failed to schedule progress reconciler: %v", err)
	}

	c.Start()
	logReconciler("Scheduled with spec " + spec)
	return c
}

// ReconcileEnrollments re-derives every recently touched enrollment's
// aggregate from its lesson progress rows and repairs disagreements.
func ReconcileEnrollments() {
	db := database.Database.Db
	cutoff := time.Now().Add(-24 * time.Hour)

	var enrollments []courseModels.Enrollment
	if err := db.Where("updated_at >= ? AND is_deleted = ?", cutoff, false).Find(&enrollments).Error; err != nil {
		logReconciler("Error fetching enrollments: " + err.Error())
		return
	}

	repaired := 0
	for _, enrollment := range enrollments {
		var total int64
		db.Model(&courseModels.Lesson{}).
			Where("course_id = ? AND is_deleted = ? AND is_published = ?", enrollment.CourseID, false, true).
			Count(&total)
		if total == 0 {
			continue
		}

		var completed int64
		db.Model(&courseModels.LessonProgress{}).
			Joins("JOIN lessons ON lessons.id = lesson_progresses.lesson_id AND lessons.is_deleted = false AND lessons.is_published = true").
			Where("lesson_progresses.user_id = ? AND lesson_progresses.course_id = ? AND lesson_progresses.status = ? AND lesson_progresses.is_deleted = ?",
				enrollment.UserID, enrollment.CourseID, courseModels.StatusCompleted, false).
			Count(&completed)

		pct := math.Round(100 * float64(completed) / float64(total))
		if pct == enrollment.ProgressPercentage && int(completed) == enrollment.CompletedLessons && int(total) == enrollment.TotalLessons {
			continue
		}

		enrollment.CompletedLessons = int(completed)
		enrollment.TotalLessons = int(total)
		enrollment.ProgressPercentage = pct

		if pct >= 100 {
			enrollment.Status = "COMPLETED"
			if enrollment.CompletedAt == nil {
				now := time.Now()
				enrollment.CompletedAt = &now
			}
		} else if pct > 0 {
			enrollment.Status = "IN_PROGRESS"
		}
		// CompletedAt stays put even if the percentage dropped below 100
		// because lessons were added later. Set once, never cleared.

		if err := db.Save(&enrollment).Error; err != nil {
			logReconciler("Error repairing enrollment: " + err.Error())
			continue
		}
		repaired++
	}

	if repaired > 0 {
		logReconciler("Repaired stale enrollment aggregates")
	}
}
