package progression

import (
	"math"
	"time"

	course "lms/models/course"
)

// VideoCompletionRatio is the watched-ratio threshold past which a video
// lesson counts as done.
const VideoCompletionRatio = 0.95

// Verdict is the completion policy's output for one raw signal.
type Verdict struct {
	Status             string
	ProgressPercentage float64
}

// Evaluate maps a raw per-content-type signal onto a completion verdict.
// Signal meaning depends on content type: watched ratio in [0,1] for
// video, score in [0,100] for quizzes; text and assets complete on the
// explicit event itself and ignore the signal value. Evaluate is total:
// it never fails, and an unknown content type stays in progress.
func Evaluate(contentType string, signal float64, passingScore int) Verdict {
	switch contentType {
	case course.ContentTypeVideo:
		ratio := clamp01(signal)
		pct := math.Round(ratio * 100)
		if ratio >= VideoCompletionRatio {
			return Verdict{Status: course.StatusCompleted, ProgressPercentage: pct}
		}
		return Verdict{Status: course.StatusInProgress, ProgressPercentage: pct}
	case course.ContentTypeQuiz:
		score := math.Min(math.Max(signal, 0), 100)
		if score >= float64(passingScore) {
			return Verdict{Status: course.StatusCompleted, ProgressPercentage: score}
		}
		return Verdict{Status: course.StatusInProgress, ProgressPercentage: score}
	case course.ContentTypeText, course.ContentTypeAsset:
		// Explicit mark-complete / download-acknowledged event.
		return Verdict{Status: course.StatusCompleted, ProgressPercentage: 100}
	default:
		return Verdict{Status: course.StatusInProgress, ProgressPercentage: 0}
	}
}

// ApplyVerdict folds a verdict into a LessonProgress record and reports
// whether the record transitioned into COMPLETED. Status is monotonic: a
// completed record accepts later signals for bookkeeping only and never
// regresses, so replaying finished content cannot re-lock downstream
// lessons.
func ApplyVerdict(p *course.LessonProgress, v Verdict, now time.Time) bool {
	p.LastAccessedAt = &now

	if p.Status == course.StatusCompleted {
		if v.ProgressPercentage > p.ProgressPercentage {
			p.ProgressPercentage = v.ProgressPercentage
		}
		return false
	}

	if v.ProgressPercentage > p.ProgressPercentage {
		p.ProgressPercentage = v.ProgressPercentage
	}
	if v.Status == course.StatusCompleted {
		p.Status = course.StatusCompleted
		if p.CompletedAt == nil {
			p.CompletedAt = &now
		}
		return true
	}
	if p.Status == course.StatusNotStarted {
		p.Status = course.StatusInProgress
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
