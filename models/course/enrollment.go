package course

import (
	"time"

	"gorm.io/gorm"
)

// Enrollment tracks a user's enrollment in a course with aggregate progress.
// Only the progress aggregator writes the aggregate fields.
type Enrollment struct {
	gorm.Model
	UserID   uint   `json:"user_id" gorm:"index:idx_enrollment_user_course,unique;not null"`
	CourseID uint   `json:"course_id" gorm:"index:idx_enrollment_user_course,unique;not null"`
	Status   string `json:"status" gorm:"default:'ENROLLED'"` // ENROLLED, IN_PROGRESS, COMPLETED
	// ProgressPercentage is round(100 * completed lessons / total lessons),
	// recomputed over the current lesson set on every completion event.
	ProgressPercentage float64 `json:"progress_percentage" gorm:"default:0"`
	CompletedLessons   int     `json:"completed_lessons" gorm:"default:0"`
	TotalLessons       int     `json:"total_lessons" gorm:"default:0"`
	// CompletedAt is set exactly once when progress first reaches 100 and
	// is never cleared, even if lessons are added to the course later.
	CompletedAt *time.Time `json:"completed_at"`
	// FinalScore is set only by a passed final quiz.
	FinalScore *float64 `json:"final_score"`
	// CurrentLessonID is the last lesson the user viewed. UI convenience
	// only; the unlock resolver never reads it.
	CurrentLessonID *uint `json:"current_lesson_id"`
	IsDeleted       bool  `gorm:"default:false"`
}
