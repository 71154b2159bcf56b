package course

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QuizQuestion represents a single-answer question inside a quiz lesson
type QuizQuestion struct {
	gorm.Model
	LessonID uint   `json:"lesson_id" gorm:"index;not null"`
	Prompt   string `json:"prompt" gorm:"type:text"`
	// Options is a JSON array of option texts; CorrectOption indexes into it.
	Options       datatypes.JSON `json:"options"`
	CorrectOption int            `json:"-"`
	Points        int            `json:"points" gorm:"default:1"` // question weight
	OrderIndex    int            `json:"order_index" gorm:"default:0"`
	IsDeleted     bool           `gorm:"default:false"`
}

// QuizAttempt represents one graded submission of a quiz lesson
type QuizAttempt struct {
	gorm.Model
	UserID   uint `json:"user_id" gorm:"index;not null"`
	LessonID uint `json:"lesson_id" gorm:"index;not null"`
	// Answers is a JSON object mapping question id to selected option index.
	Answers       datatypes.JSON `json:"answers"`
	Percentage    float64        `json:"percentage"`
	Passed        bool           `json:"passed" gorm:"default:false"`
	AttemptNumber int            `json:"attempt_number" gorm:"default:1"`
	IsDeleted     bool           `gorm:"default:false"`
}
