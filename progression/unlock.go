package progression

// IsUnlocked reports whether the target lesson may be opened given the set
// of completed lesson ids. Non-sequential courses keep everything
// unlocked. A lesson that is not part of the course order is unlocked by
// convention: failing open on stale or inconsistent authoring data beats
// dead-locking the player.
func (o *CourseOrder) IsUnlocked(completed map[uint]bool, targetID uint) bool {
	if !o.Sequential {
		return true
	}
	target, ok := o.position[targetID]
	if !ok {
		return true
	}
	for i := 0; i < target; i++ {
		if !completed[o.Lessons[i].ID] {
			return false
		}
	}
	return true
}

// NextIncompleteLesson returns the first lesson in course order that is
// both unlocked and not completed. Used for auto-resume and auto-advance.
// The first incomplete lesson is always unlocked: every lesson before it
// is in the completed set.
func (o *CourseOrder) NextIncompleteLesson(completed map[uint]bool) (uint, bool) {
	for _, l := range o.Lessons {
		if !completed[l.ID] {
			return l.ID, true
		}
	}
	return 0, false
}

// IsFullyComplete reports whether every lesson in the course order is in
// the completed set.
func (o *CourseOrder) IsFullyComplete(completed map[uint]bool) bool {
	for _, l := range o.Lessons {
		if !completed[l.ID] {
			return false
		}
	}
	return true
}
