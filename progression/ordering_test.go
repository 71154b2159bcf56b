package progression

import (
	"testing"

	course "lms/models/course"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func lessonWithID(id uint, moduleID uint, order int) course.Lesson {
	return course.Lesson{
		Model:       gorm.Model{ID: id},
		ModuleID:    moduleID,
		OrderIndex:  order,
		IsPublished: true,
	}
}

func moduleWithID(id uint, order int) course.Module {
	return course.Module{Model: gorm.Model{ID: id}, OrderIndex: order}
}

func TestCourseOrderFlattening(t *testing.T) {
	crs := course.Course{SequentialCompletion: true}
	modules := []course.Module{
		moduleWithID(2, 1), // second module
		moduleWithID(1, 0), // first module
	}
	lessons := []course.Lesson{
		lessonWithID(30, 2, 0),
		lessonWithID(10, 1, 0),
		lessonWithID(20, 1, 1),
		lessonWithID(40, 2, 1),
	}

	order := NewCourseOrder(crs, modules, lessons)

	assert.Equal(t, 4, order.Len())
	ids := make([]uint, 0, order.Len())
	for _, l := range order.Lessons {
		ids = append(ids, l.ID)
	}
	// Module order first, lesson order within module second.
	assert.Equal(t, []uint{10, 20, 30, 40}, ids)

	pos, ok := order.Position(30)
	assert.True(t, ok)
	assert.Equal(t, 2, pos)

	_, ok = order.Position(999)
	assert.False(t, ok)
}

func TestCourseOrderSkipsUnpublishedAndDeleted(t *testing.T) {
	crs := course.Course{SequentialCompletion: true}
	modules := []course.Module{moduleWithID(1, 0)}

	hidden := lessonWithID(11, 1, 1)
	hidden.IsPublished = false
	deleted := lessonWithID(12, 1, 2)
	deleted.IsDeleted = true

	order := NewCourseOrder(crs, modules, []course.Lesson{
		lessonWithID(10, 1, 0),
		hidden,
		deleted,
	})

	assert.Equal(t, 1, order.Len())
	assert.Equal(t, uint(10), order.LessonAt(0).ID)
}

func TestCourseOrderIgnoresOrphanLessons(t *testing.T) {
	crs := course.Course{SequentialCompletion: true}
	modules := []course.Module{moduleWithID(1, 0)}

	order := NewCourseOrder(crs, modules, []course.Lesson{
		lessonWithID(10, 1, 0),
		lessonWithID(99, 42, 0), // module 42 does not exist
	})

	assert.Equal(t, 1, order.Len())
}
