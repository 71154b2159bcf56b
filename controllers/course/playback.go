package controllers

import (
	"errors"
	"sync"
	"time"

	"lms/database"
	"lms/middleware"
	"lms/models"
	courseModels "lms/models/course"
	"lms/progression"
	"lms/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// playbackSession binds a watch-guard session to the user and lesson it
// tracks. Sessions are ephemeral per-player state; losing one on restart
// costs nothing but a rewatch of unverified footage. mu guards the
// watch-guard state: the same session id can tick from several tabs at
// once, and playbackMu only covers the map itself.
type playbackSession struct {
	mu       sync.Mutex
	UserID   uint
	CourseID uint
	LessonID uint
	Guard    *progression.WatchSession
	LastSeen time.Time
}

var (
	playbackMu       sync.Mutex
	playbackSessions = map[string]*playbackSession{}
)

const playbackSessionTTL = 6 * time.Hour

func getPlaybackSession(id string, userID uint) *playbackSession {
	playbackMu.Lock()
	defer playbackMu.Unlock()
	s, ok := playbackSessions[id]
	if !ok || s.UserID != userID {
		return nil
	}
	s.LastSeen = time.Now()
	return s
}

// PrunePlaybackSessions drops sessions idle past the TTL. Called by the
// reconciliation scheduler.
func PrunePlaybackSessions() int {
	playbackMu.Lock()
	defer playbackMu.Unlock()
	pruned := 0
	cutoff := time.Now().Add(-playbackSessionTTL)
	for id, s := range playbackSessions {
		if s.LastSeen.Before(cutoff) {
			delete(playbackSessions, id)
			pruned++
		}
	}
	return pruned
}

// StartPlayback opens a watch-guard session for a video lesson and hands
// the player a signed, time-limited media URL.
func StartPlayback(c *fiber.Ctx) error {
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

	var enrollment courseModels.Enrollment
	if err := database.Database.Db.Where("user_id = ? AND course_id = ? AND is_deleted = ?", userID, courseID, false).First(&enrollment).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "User not enrolled in this course!", nil)
	}

	var lesson courseModels.Lesson
	if err := database.Database.Db.Where("id = ? AND course_id = ? AND is_deleted = ? AND is_published = ?", lessonID, courseID, false, true).First(&lesson).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Lesson not found!", nil)
	}
	if lesson.ContentType != courseModels.ContentTypeVideo {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Lesson is not a video!", nil)
	}

	mediaURL, err := utils.SignedMediaURL(lesson.VideoURL)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to sign media URL!", nil)
	}

	sessionID := uuid.NewString()
	playbackMu.Lock()
	playbackSessions[sessionID] = &playbackSession{
		UserID:   userID,
		CourseID: courseID,
		LessonID: lessonID,
		Guard:    progression.NewWatchSession(lesson.VideoDuration),
		LastSeen: time.Now(),
	}
	playbackMu.Unlock()

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Playback session started!", fiber.Map{
		"session_id": sessionID,
		"media_url":  mediaURL,
		"duration":   lesson.VideoDuration,
	})
}

// PlaybackTick ingests a periodic position report. Ticks advance the
// monotone watched time; when the watched ratio first crosses the
// completion threshold the lesson is completed through the aggregator.
func PlaybackTick(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	sessionID := c.Params("session_id")
	session := getPlaybackSession(sessionID, userID)
	if session == nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Playback session not found!", nil)
	}

	reqData, ok := c.Locals("validatedPlaybackTick").(*struct {
		Position float64 `json:"position"`
		Elapsed  int64   `json:"elapsed"`
		Playing  bool    `json:"playing"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	guard := session.Guard
	session.mu.Lock()
	if reqData.Playing {
		guard.Apply(progression.PlaybackEvent{Type: progression.EventPlay})
	} else {
		guard.Apply(progression.PlaybackEvent{Type: progression.EventPause})
	}
	guard.Apply(progression.PlaybackEvent{Type: progression.EventTick, Position: reqData.Position})

	ratio := guard.WatchedRatio()
	maxWatched := guard.MaxWatchedTime
	completionReady := guard.CompletionReady()
	session.mu.Unlock()

	// Light bookkeeping write; ping loss is tolerated, the next tick
	// resends a fresher value.
	recordPlaybackProgress(session, ratio, reqData.Elapsed)

	if completionReady {
		crs, order, err := loadCourseOrder(database.Database.Db, session.CourseID)
		if err == nil {
			var lesson courseModels.Lesson
			if err := database.Database.Db.Where("id = ? AND is_deleted = ?", session.LessonID, false).First(&lesson).Error; err == nil {
				verdict := progression.Evaluate(courseModels.ContentTypeVideo, ratio, crs.EffectivePassingScore(&lesson))
				if snapshot, err := completeLessonTx(database.Database.Db, userID, crs, lesson, order, verdict, nil); err == nil {
					return middleware.JsonResponse(c, fiber.StatusOK, true, "Video completed!", fiber.Map{
						"watched_ratio": ratio,
						"completed":     true,
						"snapshot":      snapshot,
					})
				}
			}
		}
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Tick recorded!", fiber.Map{
		"watched_ratio":    ratio,
		"max_watched_time": maxWatched,
		"completed":        false,
	})
}

// PlaybackSeek validates a seek request against the watch guard and
// returns the effective position the player must use. Forward seeks past
// watched material are clamped; rewatching is always allowed.
func PlaybackSeek(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	sessionID := c.Params("session_id")
	session := getPlaybackSession(sessionID, userID)
	if session == nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Playback session not found!", nil)
	}

	reqData, ok := c.Locals("validatedPlaybackSeek").(*struct {
		Position float64 `json:"position"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	session.mu.Lock()
	effective := session.Guard.Apply(progression.PlaybackEvent{Type: progression.EventSeek, Position: reqData.Position})
	session.mu.Unlock()

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Seek processed!", fiber.Map{
		"requested_position": reqData.Position,
		"effective_position": effective,
		"clamped":            effective < reqData.Position,
	})
}

// StopPlayback closes a playback session.
func StopPlayback(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	sessionID := c.Params("session_id")
	session := getPlaybackSession(sessionID, userID)
	if session == nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Playback session not found!", nil)
	}

	session.mu.Lock()
	session.Guard.Apply(progression.PlaybackEvent{Type: progression.EventPause})
	ratio := session.Guard.WatchedRatio()
	session.mu.Unlock()

	playbackMu.Lock()
	delete(playbackSessions, sessionID)
	playbackMu.Unlock()

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Playback session closed!", fiber.Map{
		"watched_ratio": ratio,
	})
}

// recordPlaybackProgress upserts the lesson progress row from a tick.
// Never touches the enrollment aggregate.
func recordPlaybackProgress(session *playbackSession, ratio float64, elapsed int64) {
	now := time.Now()
	db := database.Database.Db

	var progress courseModels.LessonProgress
	err := db.Where("user_id = ? AND lesson_id = ? AND is_deleted = ?", session.UserID, session.LessonID, false).First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		progress = courseModels.LessonProgress{
			UserID:   session.UserID,
			LessonID: session.LessonID,
			CourseID: session.CourseID,
			Status:   courseModels.StatusInProgress,
		}
	} else if err != nil {
		return
	}

	if progress.Status == courseModels.StatusNotStarted {
		progress.Status = courseModels.StatusInProgress
	}
	pct := ratio * 100
	if progress.Status != courseModels.StatusCompleted && pct > progress.ProgressPercentage {
		progress.ProgressPercentage = pct
	}
	if elapsed > 0 {
		progress.TimeSpent += elapsed
	}
	progress.LastAccessedAt = &now

	db.Save(&progress)
}
