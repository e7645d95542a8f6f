package task

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// NotFoundError names the missing task, or the missing reminder when Index >= 0.
type NotFoundError struct {
	TaskID uint32
	Index  int
}

func (e *NotFoundError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("reminder %d of task %d not found", e.Index, e.TaskID)
	}
	return fmt.Sprintf("task %d not found", e.TaskID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func taskNotFound(id uint32) error { return &NotFoundError{TaskID: id, Index: -1} }

func reminderNotFound(id uint32, index int) error { return &NotFoundError{TaskID: id, Index: index} }
