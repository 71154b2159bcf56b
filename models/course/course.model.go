package course

import "gorm.io/gorm"

// DefaultPassingScore is the quiz pass threshold applied when neither the
// lesson nor the course carries its own.
const DefaultPassingScore = 80

// Course represents a learning course
type Course struct {
	gorm.Model
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author"`
	// SequentialCompletion forces lessons to be completed in course order;
	// when false every lesson is always unlocked.
	SequentialCompletion bool   `json:"sequential_completion" gorm:"default:true"`
	PassingScore         int    `json:"passing_score" gorm:"default:80"` // course-wide quiz pass threshold (0-100)
	ThumbnailURL         string `json:"thumbnail_url"`
	Status               string `json:"status" gorm:"default:'DRAFT'"` // DRAFT, ACTIVE, INACTIVE
	IsPublished          bool   `json:"is_published" gorm:"default:false"`
	IsDeleted            bool   `gorm:"default:false"`
}

// EffectivePassingScore resolves the pass threshold for a quiz lesson,
// preferring the lesson override over the course default.
func (c *Course) EffectivePassingScore(lesson *Lesson) int {
	if lesson != nil && lesson.PassingScore > 0 {
		return lesson.PassingScore
	}
	if c.PassingScore > 0 {
		return c.PassingScore
	}
	return DefaultPassingScore
}
