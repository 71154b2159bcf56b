package course

import (
	"time"

	"gorm.io/gorm"
)

// LessonProgress statuses. Status is monotonic: once COMPLETED it never
// goes back.
const (
	StatusNotStarted = "NOT_STARTED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
)

// LessonProgress is the per-(user, lesson) progress record, created lazily
// on first interaction and never deleted while the enrollment exists.
type LessonProgress struct {
	gorm.Model
	UserID   uint   `json:"user_id" gorm:"index:idx_progress_user_lesson,unique;not null"`
	LessonID uint   `json:"lesson_id" gorm:"index:idx_progress_user_lesson,unique;not null"`
	CourseID uint   `json:"course_id" gorm:"index;not null"`
	Status   string `json:"status" gorm:"default:'NOT_STARTED'"`
	// ProgressPercentage meaning depends on content type: watched ratio for
	// video, best score for quizzes, 0 or 100 for text and assets.
	ProgressPercentage float64  `json:"progress_percentage" gorm:"default:0"`
	QuizScore          *float64 `json:"quiz_score"` // best quiz score, quiz lessons only
	// TimeSpent accumulates in seconds; it only grows.
	TimeSpent      int64      `json:"time_spent" gorm:"default:0"`
	CompletedAt    *time.Time `json:"completed_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at"`
	IsDeleted      bool       `gorm:"default:false"`
}
