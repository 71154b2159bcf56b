package progression

import (
	"sort"

	course "lms/models/course"
)

// CourseOrder is the precomputed, course-wide total order over lessons:
// (module order index, lesson order index) ascending. Build it once per
// structural load; resolver calls are O(n) walks over the flat list.
type CourseOrder struct {
	Sequential bool
	Lessons    []course.Lesson
	position   map[uint]int // lesson id -> index in Lessons
}

// NewCourseOrder flattens the module/lesson tree into a single ordered list.
// Only published, non-deleted lessons participate in the order.
func NewCourseOrder(c course.Course, modules []course.Module, lessons []course.Lesson) *CourseOrder {
	moduleOrder := make(map[uint]int, len(modules))
	for _, m := range modules {
		if m.IsDeleted {
			continue
		}
		moduleOrder[m.ID] = m.OrderIndex
	}

	flat := make([]course.Lesson, 0, len(lessons))
	for _, l := range lessons {
		if l.IsDeleted || !l.IsPublished {
			continue
		}
		if _, ok := moduleOrder[l.ModuleID]; !ok {
			continue
		}
		flat = append(flat, l)
	}

	sort.SliceStable(flat, func(i, j int) bool {
		mi, mj := moduleOrder[flat[i].ModuleID], moduleOrder[flat[j].ModuleID]
		if mi != mj {
			return mi < mj
		}
		return flat[i].OrderIndex < flat[j].OrderIndex
	})

	pos := make(map[uint]int, len(flat))
	for i, l := range flat {
		pos[l.ID] = i
	}

	return &CourseOrder{
		Sequential: c.SequentialCompletion,
		Lessons:    flat,
		position:   pos,
	}
}

// Len returns the number of lessons in the course order.
func (o *CourseOrder) Len() int {
	return len(o.Lessons)
}

// Position returns the index of a lesson in the course order.
func (o *CourseOrder) Position(lessonID uint) (int, bool) {
	i, ok := o.position[lessonID]
	return i, ok
}

// LessonAt returns the lesson at the given course-order position.
func (o *CourseOrder) LessonAt(i int) course.Lesson {
	return o.Lessons[i]
}
