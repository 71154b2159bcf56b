package courseValidator

import (
	"strconv"
	"strings"

	"lms/middleware"

	"github.com/gofiber/fiber/v2"
)

// parseIDParam validates a positive integer route parameter.
func parseIDParam(c *fiber.Ctx, name string) (int, bool) {
	raw := strings.TrimSpace(c.Params(name))
	if raw == "" {
		return 0, false
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// CourseList validates pagination for the course catalog.
func CourseList() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			Page  *int `json:"page"`
			Limit *int `json:"limit"`
		})

		// Pagination comes from query params; both optional.
		if page, err := strconv.Atoi(c.Query("page", "1")); err == nil && page > 0 {
			reqData.Page = &page
		}
		if limit, err := strconv.Atoi(c.Query("limit", "10")); err == nil && limit > 0 && limit <= 100 {
			reqData.Limit = &limit
		}

		c.Locals("validatedCourseList", reqData)
		return c.Next()
	}
}

// GetCourseDetail validates the course ID route parameter.
func GetCourseDetail() fiber.Handler {
	return func(c *fiber.Ctx) error {
		courseID, ok := parseIDParam(c, "id")
		if !ok {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid course ID!", nil)
		}
		c.Locals("courseID", courseID)
		return c.Next()
	}
}

// EnrollCourse validates an enrollment request.
func EnrollCourse() fiber.Handler {
	return func(c *fiber.Ctx) error {
		courseID, ok := parseIDParam(c, "id")
		if !ok {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid course ID!", nil)
		}
		c.Locals("courseID", courseID)
		return c.Next()
	}
}

// EnrollmentList validates pagination for the enrollments listing.
func EnrollmentList() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			Page  *int `json:"page"`
			Limit *int `json:"limit"`
		})

		page, err1 := strconv.Atoi(c.Query("page", ""))
		limit, err2 := strconv.Atoi(c.Query("limit", ""))
		if err1 == nil && err2 == nil && page > 0 && limit > 0 && limit <= 100 {
			reqData.Page = &page
			reqData.Limit = &limit
			c.Locals("validatedEnrollmentList", reqData)
		}

		return c.Next()
	}
}
