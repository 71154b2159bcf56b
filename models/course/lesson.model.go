package course

import "gorm.io/gorm"

// Lesson content types
const (
	ContentTypeVideo = "VIDEO"
	ContentTypeText  = "TEXT"
	ContentTypeQuiz  = "QUIZ"
	ContentTypeAsset = "ASSET"
)

// Lesson represents a single unit of content within a module
type Lesson struct {
	gorm.Model
	CourseID    uint   `json:"course_id" gorm:"index;not null"`
	ModuleID    uint   `json:"module_id" gorm:"index;not null"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ContentType string `json:"content_type" gorm:"default:'TEXT'"` // VIDEO, TEXT, QUIZ, ASSET
	OrderIndex  int    `json:"order_index" gorm:"default:0"`       // Lesson order within module, unique within module
	TextContent string `json:"text_content" gorm:"type:text"`      // For TEXT type
	VideoURL    string `json:"video_url"`                          // For VIDEO type (bucket object key)
	// VideoDuration is the media duration in seconds, taken from upload
	// metadata. Zero means the duration is not known yet.
	VideoDuration float64 `json:"video_duration" gorm:"default:0"`
	AssetURL      string  `json:"asset_url"` // For ASSET type (bucket object key)
	// IsFinalQuiz marks the quiz whose passed score becomes the course's
	// headline score. Quiz lessons only.
	IsFinalQuiz bool `json:"is_final_quiz" gorm:"default:false"`
	// PassingScore overrides the course default for this quiz when > 0.
	PassingScore int  `json:"passing_score" gorm:"default:0"`
	IsPublished  bool `json:"is_published" gorm:"default:false"`
	IsDeleted    bool `gorm:"default:false"`
}
