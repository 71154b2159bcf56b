package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"

	"lms/config"
	"lms/database"
	"lms/middleware"
	"lms/models"
	courseModels "lms/models/course"
	courseRoutes "lms/routers/courseRoutes"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testFixture struct {
	app      *fiber.App
	db       *gorm.DB
	token    string
	userID   uint
	courseID uint
	videoID  uint
	quizID   uint
	assetID  uint
}

// setupFixture builds an sqlite-backed app with one published course:
// a video lesson (100s), a final quiz (5 questions, threshold 80) and an
// asset download, in that order, with sequential completion on.
func setupFixture(t *testing.T) *testFixture {
	t.Helper()

	config.LoadConfig()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	database.RunMigrations(db)
	database.Database = database.DbInstance{Db: db}

	user := models.User{Name: "Learner", Email: t.Name() + "@example.com", Password: "x"}
	require.NoError(t, db.Create(&user).Error)

	crs := courseModels.Course{
		Title:                "Intro Course",
		SequentialCompletion: true,
		PassingScore:         80,
		Status:               "ACTIVE",
		IsPublished:          true,
	}
	require.NoError(t, db.Create(&crs).Error)

	mod := courseModels.Module{CourseID: crs.ID, Title: "Module 1", OrderIndex: 0}
	require.NoError(t, db.Create(&mod).Error)

	video := courseModels.Lesson{
		CourseID: crs.ID, ModuleID: mod.ID, Title: "Welcome",
		ContentType: courseModels.ContentTypeVideo, OrderIndex: 0,
		VideoURL: "videos/welcome.mp4", VideoDuration: 100, IsPublished: true,
	}
	quiz := courseModels.Lesson{
		CourseID: crs.ID, ModuleID: mod.ID, Title: "Checkpoint",
		ContentType: courseModels.ContentTypeQuiz, OrderIndex: 1,
		IsFinalQuiz: true, IsPublished: true,
	}
	asset := courseModels.Lesson{
		CourseID: crs.ID, ModuleID: mod.ID, Title: "Workbook",
		ContentType: courseModels.ContentTypeAsset, OrderIndex: 2,
		AssetURL: "assets/workbook.pdf", IsPublished: true,
	}
	require.NoError(t, db.Create(&video).Error)
	require.NoError(t, db.Create(&quiz).Error)
	require.NoError(t, db.Create(&asset).Error)

	for i := 0; i < 5; i++ {
		q := courseModels.QuizQuestion{
			LessonID:      quiz.ID,
			Prompt:        fmt.Sprintf("Question %d", i+1),
			Options:       []byte(`["a","b","c"]`),
			CorrectOption: 1,
			Points:        1,
			OrderIndex:    i,
		}
		require.NoError(t, db.Create(&q).Error)
	}

	token, err := middleware.GenerateJWT(user.ID, user.Name, user.Role, user.Email)
	require.NoError(t, err)

	app := fiber.New()
	courseRoutes.SetupCourseRoutes(app)

	return &testFixture{
		app:      app,
		db:       db,
		token:    "Bearer " + token,
		userID:   user.ID,
		courseID: crs.ID,
		videoID:  video.ID,
		quizID:   quiz.ID,
		assetID:  asset.ID,
	}
}

func (f *testFixture) request(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", f.token)

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)

	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return resp.StatusCode, result
}

func payload(result map[string]interface{}) map[string]interface{} {
	data, _ := result["data"].(map[string]interface{})
	return data
}

func (f *testFixture) enrollment(t *testing.T) courseModels.Enrollment {
	t.Helper()
	var e courseModels.Enrollment
	require.NoError(t, f.db.Where("user_id = ? AND course_id = ?", f.userID, f.courseID).First(&e).Error)
	return e
}

func (f *testFixture) lessonProgress(t *testing.T, lessonID uint) courseModels.LessonProgress {
	t.Helper()
	var p courseModels.LessonProgress
	require.NoError(t, f.db.Where("user_id = ? AND lesson_id = ?", f.userID, lessonID).First(&p).Error)
	return p
}

func lessonStates(data map[string]interface{}) map[uint]map[string]interface{} {
	states := map[uint]map[string]interface{}{}
	lessons, _ := data["lessons"].([]interface{})
	for _, raw := range lessons {
		l := raw.(map[string]interface{})
		states[uint(l["lesson_id"].(float64))] = l
	}
	return states
}

func TestCourseProgressionFlow(t *testing.T) {
	f := setupFixture(t)

	// Fresh enrollment: first lesson unlocked, rest locked, zero progress.
	code, _ := f.request(t, "POST", fmt.Sprintf("/course/%d/enroll", f.courseID), nil)
	require.Equal(t, fiber.StatusOK, code)

	code, result := f.request(t, "GET", fmt.Sprintf("/course/%d/progress", f.courseID), nil)
	require.Equal(t, fiber.StatusOK, code)
	states := lessonStates(payload(result))
	assert.True(t, states[f.videoID]["unlocked"].(bool))
	assert.False(t, states[f.quizID]["unlocked"].(bool))
	assert.False(t, states[f.assetID]["unlocked"].(bool))
	assert.Equal(t, float64(0), f.enrollment(t).ProgressPercentage)

	// Open a playback session for the video.
	code, result = f.request(t, "POST", fmt.Sprintf("/course/%d/lesson/%d/play", f.courseID, f.videoID), nil)
	require.Equal(t, fiber.StatusOK, code)
	sessionID := payload(result)["session_id"].(string)
	assert.NotEmpty(t, payload(result)["media_url"])

	// Seeking ahead of watched material is clamped back.
	code, result = f.request(t, "POST", "/playback/"+sessionID+"/seek", fiber.Map{"position": 50.0})
	require.Equal(t, fiber.StatusOK, code)
	assert.True(t, payload(result)["clamped"].(bool))
	assert.Equal(t, float64(0), payload(result)["effective_position"].(float64))

	// Watching to 96% of the duration completes the lesson and unlocks
	// the quiz; the aggregate reflects 1/3 lessons done.
	code, result = f.request(t, "POST", "/playback/"+sessionID+"/tick",
		fiber.Map{"position": 96.0, "elapsed": 96, "playing": true})
	require.Equal(t, fiber.StatusOK, code)
	assert.True(t, payload(result)["completed"].(bool))

	assert.Equal(t, float64(33), f.enrollment(t).ProgressPercentage)
	assert.Equal(t, courseModels.StatusCompleted, f.lessonProgress(t, f.videoID).Status)

	code, result = f.request(t, "GET", fmt.Sprintf("/course/%d/progress", f.courseID), nil)
	require.Equal(t, fiber.StatusOK, code)
	states = lessonStates(payload(result))
	assert.True(t, states[f.quizID]["unlocked"].(bool))
	assert.False(t, states[f.assetID]["unlocked"].(bool))

	// Failing the quiz (3/5 = 60 < 80) permits a retake and leaves the
	// aggregate untouched.
	var questions []courseModels.QuizQuestion
	require.NoError(t, f.db.Where("lesson_id = ?", f.quizID).Order("order_index asc").Find(&questions).Error)

	failing := make([]fiber.Map, len(questions))
	for i, q := range questions {
		selected := 1
		if i >= 3 {
			selected = 0 // wrong
		}
		failing[i] = fiber.Map{"question_id": q.ID, "selected_option": selected}
	}
	code, result = f.request(t, "POST", fmt.Sprintf("/course/%d/lesson/%d/quiz/submit", f.courseID, f.quizID),
		fiber.Map{"answers": failing})
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, float64(60), payload(result)["percentage"].(float64))
	assert.False(t, payload(result)["passed"].(bool))
	assert.True(t, payload(result)["retake_allowed"].(bool))

	assert.Equal(t, float64(33), f.enrollment(t).ProgressPercentage)
	assert.Equal(t, courseModels.StatusInProgress, f.lessonProgress(t, f.quizID).Status)
	assert.Nil(t, f.enrollment(t).FinalScore)

	// Passing on the retake completes the quiz, unlocks the asset and
	// propagates the final-quiz score.
	passing := make([]fiber.Map, len(questions))
	for i, q := range questions {
		passing[i] = fiber.Map{"question_id": q.ID, "selected_option": 1}
	}
	code, result = f.request(t, "POST", fmt.Sprintf("/course/%d/lesson/%d/quiz/submit", f.courseID, f.quizID),
		fiber.Map{"answers": passing})
	require.Equal(t, fiber.StatusOK, code)
	assert.True(t, payload(result)["passed"].(bool))
	assert.Equal(t, float64(100), payload(result)["percentage"].(float64))

	enrollment := f.enrollment(t)
	assert.Equal(t, float64(67), enrollment.ProgressPercentage)
	require.NotNil(t, enrollment.FinalScore)
	assert.Equal(t, float64(100), *enrollment.FinalScore)
	assert.Nil(t, enrollment.CompletedAt)

	code, result = f.request(t, "GET", fmt.Sprintf("/course/%d/progress", f.courseID), nil)
	require.Equal(t, fiber.StatusOK, code)
	states = lessonStates(payload(result))
	assert.True(t, states[f.assetID]["unlocked"].(bool))

	// A passed quiz is locked against resubmission.
	code, _ = f.request(t, "POST", fmt.Sprintf("/course/%d/lesson/%d/quiz/submit", f.courseID, f.quizID),
		fiber.Map{"answers": passing})
	assert.Equal(t, fiber.StatusConflict, code)

	// Acknowledging the asset download finishes the course; the
	// completion timestamp is set exactly once.
	code, _ = f.request(t, "POST", fmt.Sprintf("/course/%d/lesson/%d/complete", f.courseID, f.assetID),
		fiber.Map{"final_progress": 100.0})
	require.Equal(t, fiber.StatusOK, code)

	enrollment = f.enrollment(t)
	assert.Equal(t, float64(100), enrollment.ProgressPercentage)
	assert.Equal(t, "COMPLETED", enrollment.Status)
	require.NotNil(t, enrollment.CompletedAt)
	firstCompletedAt := *enrollment.CompletedAt

	// Replaying the completion is an accepted no-op.
	code, _ = f.request(t, "POST", fmt.Sprintf("/course/%d/lesson/%d/complete", f.courseID, f.assetID),
		fiber.Map{"final_progress": 100.0})
	require.Equal(t, fiber.StatusOK, code)

	enrollment = f.enrollment(t)
	assert.Equal(t, float64(100), enrollment.ProgressPercentage)
	assert.Equal(t, firstCompletedAt.Unix(), enrollment.CompletedAt.Unix())
}

func TestProgressPingNeverRegressesCompletion(t *testing.T) {
	f := setupFixture(t)

	code, _ := f.request(t, "POST", fmt.Sprintf("/course/%d/enroll", f.courseID), nil)
	require.Equal(t, fiber.StatusOK, code)

	// Complete the video directly.
	code, _ = f.request(t, "POST", fmt.Sprintf("/course/%d/lesson/%d/complete", f.courseID, f.videoID),
		fiber.Map{"final_progress": 97.0})
	require.Equal(t, fiber.StatusOK, code)
	require.Equal(t, courseModels.StatusCompleted, f.lessonProgress(t, f.videoID).Status)

	// A later, lower ping (a replay from another tab) keeps the status
	// and recorded progress; only the time accumulator grows.
	before := f.lessonProgress(t, f.videoID)
	code, _ = f.request(t, "POST", fmt.Sprintf("/course/%d/lesson/%d/progress", f.courseID, f.videoID),
		fiber.Map{"progress_percentage": 10.0, "time_spent": 30})
	require.Equal(t, fiber.StatusOK, code)

	after := f.lessonProgress(t, f.videoID)
	assert.Equal(t, courseModels.StatusCompleted, after.Status)
	assert.Equal(t, before.ProgressPercentage, after.ProgressPercentage)
	assert.Equal(t, before.TimeSpent+30, after.TimeSpent)

	// The ping path never touches the aggregate.
	assert.Equal(t, float64(33), f.enrollment(t).ProgressPercentage)
}

func TestProgressRequiresEnrollment(t *testing.T) {
	f := setupFixture(t)

	code, _ := f.request(t, "GET", fmt.Sprintf("/course/%d/progress", f.courseID), nil)
	assert.Equal(t, fiber.StatusForbidden, code)

	code, _ = f.request(t, "POST", fmt.Sprintf("/course/%d/lesson/%d/complete", f.courseID, f.videoID),
		fiber.Map{"final_progress": 100.0})
	assert.Equal(t, fiber.StatusForbidden, code)

	code, _ = f.request(t, "POST", fmt.Sprintf("/course/%d/lesson/%d/play", f.courseID, f.videoID), nil)
	assert.Equal(t, fiber.StatusForbidden, code)
}

func TestProgressPingValidation(t *testing.T) {
	f := setupFixture(t)

	code, _ := f.request(t, "POST", fmt.Sprintf("/course/%d/enroll", f.courseID), nil)
	require.Equal(t, fiber.StatusOK, code)

	code, _ = f.request(t, "POST", fmt.Sprintf("/course/%d/lesson/%d/progress", f.courseID, f.videoID),
		fiber.Map{"progress_percentage": 150.0, "time_spent": 10})
	assert.Equal(t, fiber.StatusUnprocessableEntity, code)

	code, _ = f.request(t, "POST", fmt.Sprintf("/course/%d/lesson/%d/progress", f.courseID, f.videoID),
		fiber.Map{"progress_percentage": 50.0, "time_spent": -5})
	assert.Equal(t, fiber.StatusUnprocessableEntity, code)
}

func TestNonSequentialCourseKeepsEverythingUnlocked(t *testing.T) {
	f := setupFixture(t)

	require.NoError(t, f.db.Model(&courseModels.Course{}).Where("id = ?", f.courseID).
		Update("sequential_completion", false).Error)

	code, _ := f.request(t, "POST", fmt.Sprintf("/course/%d/enroll", f.courseID), nil)
	require.Equal(t, fiber.StatusOK, code)

	code, result := f.request(t, "GET", fmt.Sprintf("/course/%d/progress", f.courseID), nil)
	require.Equal(t, fiber.StatusOK, code)
	for _, state := range lessonStates(payload(result)) {
		assert.True(t, state["unlocked"].(bool))
	}
}

func TestEmptyQuizAutoPasses(t *testing.T) {
	f := setupFixture(t)

	// Authoring left the quiz without questions. There is nothing to
	// answer, so an empty submission grades as an automatic pass and the
	// learner is never blocked.
	require.NoError(t, f.db.Model(&courseModels.QuizQuestion{}).Where("lesson_id = ?", f.quizID).
		Update("is_deleted", true).Error)

	code, _ := f.request(t, "POST", fmt.Sprintf("/course/%d/enroll", f.courseID), nil)
	require.Equal(t, fiber.StatusOK, code)

	code, _ = f.request(t, "POST", fmt.Sprintf("/course/%d/lesson/%d/complete", f.courseID, f.videoID),
		fiber.Map{"final_progress": 100.0})
	require.Equal(t, fiber.StatusOK, code)

	code, result := f.request(t, "POST", fmt.Sprintf("/course/%d/lesson/%d/quiz/submit", f.courseID, f.quizID),
		fiber.Map{"answers": []fiber.Map{}})
	require.Equal(t, fiber.StatusOK, code)
	assert.True(t, payload(result)["passed"].(bool))
	assert.Equal(t, float64(100), payload(result)["percentage"].(float64))

	assert.Equal(t, courseModels.StatusCompleted, f.lessonProgress(t, f.quizID).Status)
	assert.Equal(t, float64(67), f.enrollment(t).ProgressPercentage)
}

func TestPlaybackConcurrentTicksAndSeeks(t *testing.T) {
	f := setupFixture(t)

	code, _ := f.request(t, "POST", fmt.Sprintf("/course/%d/enroll", f.courseID), nil)
	require.Equal(t, fiber.StatusOK, code)

	code, result := f.request(t, "POST", fmt.Sprintf("/course/%d/lesson/%d/play", f.courseID, f.videoID), nil)
	require.Equal(t, fiber.StatusOK, code)
	sessionID := payload(result)["session_id"].(string)

	// Several tabs hammer the same session. Positions stay below half the
	// duration, so whatever the interleaving, the guard must end up with a
	// bounded watched time and no completion.
	fire := func(path string, body fiber.Map) {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", f.token)
		resp, err := f.app.Test(req, -1)
		if err == nil {
			resp.Body.Close()
		}
	}

	var wg sync.WaitGroup
	for worker := 0; worker < 4; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				pos := float64((worker*7 + i) % 50)
				if i%5 == 4 {
					fire("/playback/"+sessionID+"/seek", fiber.Map{"position": pos})
					continue
				}
				fire("/playback/"+sessionID+"/tick", fiber.Map{"position": pos, "elapsed": 1, "playing": true})
			}
		}(worker)
	}
	wg.Wait()

	code, result = f.request(t, "POST", "/playback/"+sessionID+"/tick",
		fiber.Map{"position": 49.0, "elapsed": 1, "playing": true})
	require.Equal(t, fiber.StatusOK, code)
	assert.False(t, payload(result)["completed"].(bool))
	assert.LessOrEqual(t, payload(result)["watched_ratio"].(float64), 0.5)
	assert.LessOrEqual(t, payload(result)["max_watched_time"].(float64), 50.0)

	assert.Equal(t, courseModels.StatusInProgress, f.lessonProgress(t, f.videoID).Status)
}

func TestLessonAddedAfterCompletionReopensAggregate(t *testing.T) {
	f := setupFixture(t)

	code, _ := f.request(t, "POST", fmt.Sprintf("/course/%d/enroll", f.courseID), nil)
	require.Equal(t, fiber.StatusOK, code)

	// Complete all three lessons through the direct path.
	var questions []courseModels.QuizQuestion
	require.NoError(t, f.db.Where("lesson_id = ?", f.quizID).Find(&questions).Error)
	answers := make([]fiber.Map, len(questions))
	for i, q := range questions {
		answers[i] = fiber.Map{"question_id": q.ID, "selected_option": 1}
	}

	f.request(t, "POST", fmt.Sprintf("/course/%d/lesson/%d/complete", f.courseID, f.videoID), fiber.Map{"final_progress": 100.0})
	f.request(t, "POST", fmt.Sprintf("/course/%d/lesson/%d/quiz/submit", f.courseID, f.quizID), fiber.Map{"answers": answers})
	f.request(t, "POST", fmt.Sprintf("/course/%d/lesson/%d/complete", f.courseID, f.assetID), fiber.Map{"final_progress": 100.0})

	enrollment := f.enrollment(t)
	require.Equal(t, float64(100), enrollment.ProgressPercentage)
	require.NotNil(t, enrollment.CompletedAt)
	completedAt := *enrollment.CompletedAt

	// Authoring adds a lesson after completion. The aggregate reflects it
	// on the next completion event; CompletedAt stays put.
	var mod courseModels.Module
	require.NoError(t, f.db.Where("course_id = ?", f.courseID).First(&mod).Error)
	extra := courseModels.Lesson{
		CourseID: f.courseID, ModuleID: mod.ID, Title: "Bonus",
		ContentType: courseModels.ContentTypeText, OrderIndex: 3, IsPublished: true,
	}
	require.NoError(t, f.db.Create(&extra).Error)

	code, _ = f.request(t, "POST", fmt.Sprintf("/course/%d/lesson/%d/complete", f.courseID, extra.ID),
		fiber.Map{"final_progress": 100.0})
	require.Equal(t, fiber.StatusOK, code)

	enrollment = f.enrollment(t)
	assert.Equal(t, float64(100), enrollment.ProgressPercentage)
	assert.Equal(t, 4, enrollment.TotalLessons)
	require.NotNil(t, enrollment.CompletedAt)
	assert.Equal(t, completedAt.Unix(), enrollment.CompletedAt.Unix())
}
