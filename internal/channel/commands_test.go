package channel

import (
	"strings"
	"testing"
	"time"

	"github.com/riverfjs/taskdeck/internal/task"
)

type fakeTasks struct {
	tasks map[uint32]*task.Task
}

func newFakeTasks() *fakeTasks {
	now := time.Now()
	return &fakeTasks{tasks: map[uint32]*task.Task{
		1: {ID: 1, Title: "water plants", Priority: task.PriorityLow, Status: task.StatusPending, DueDate: now.Add(time.Hour).Unix()},
		2: {ID: 2, Title: "pay rent", Priority: task.PriorityUrgent, Status: task.StatusPending, DueDate: now.Add(-time.Hour).Unix()},
		3: {ID: 3, Title: "old", Priority: task.PriorityMedium, Status: task.StatusCompleted, DueDate: now.Add(-48 * time.Hour).Unix()},
	}}
}

func (f *fakeTasks) AllTasks() []task.Task {
	var out []task.Task
	for id := uint32(1); id <= 3; id++ {
		if t, ok := f.tasks[id]; ok {
			out = append(out, *t)
		}
	}
	return out
}

func (f *fakeTasks) OverdueTasks() []task.Task {
	var out []task.Task
	for _, t := range f.AllTasks() {
		if t.Overdue(time.Now()) {
			out = append(out, t)
		}
	}
	return out
}

func (f *fakeTasks) SetStatus(id uint32, st task.Status) error {
	t, ok := f.tasks[id]
	if !ok {
		return &task.NotFoundError{TaskID: id, Index: -1}
	}
	t.Status = st
	return nil
}

func TestCommandHandler_NotACommand(t *testing.T) {
	h := NewCommandHandler(newFakeTasks())
	for _, in := range []string{"", "   ", "hello /tasks"} {
		if res := h.HandleCommand(in); res.Handled {
			t.Errorf("HandleCommand(%q) handled", in)
		}
	}
}

func TestCommandHandler_Help(t *testing.T) {
	h := NewCommandHandler(newFakeTasks())
	for _, in := range []string{"/start", "/help", "  /HELP  "} {
		res := h.HandleCommand(in)
		if !res.Handled || !strings.Contains(res.Response, "/overdue") {
			t.Errorf("HandleCommand(%q) = %+v", in, res)
		}
	}
}

func TestCommandHandler_Tasks(t *testing.T) {
	h := NewCommandHandler(newFakeTasks())
	res := h.HandleCommand("/tasks@taskdeck_bot")
	if !res.Handled {
		t.Fatal("not handled")
	}
	if strings.Contains(res.Response, "old") {
		t.Error("completed task listed")
	}
	rent := strings.Index(res.Response, "pay rent")
	plants := strings.Index(res.Response, "water plants")
	if rent < 0 || plants < 0 || rent > plants {
		t.Errorf("tasks not listed by due date:\n%s", res.Response)
	}
	if !strings.Contains(res.Response, "⚠️") {
		t.Error("overdue marker missing")
	}
}

func TestCommandHandler_Overdue(t *testing.T) {
	src := newFakeTasks()
	h := NewCommandHandler(src)
	res := h.HandleCommand("/overdue")
	if !strings.Contains(res.Response, "pay rent") || strings.Contains(res.Response, "water plants") {
		t.Errorf("overdue = %s", res.Response)
	}

	_ = src.SetStatus(2, task.StatusCompleted)
	if res := h.HandleCommand("/overdue"); !strings.Contains(res.Response, "Nothing overdue") {
		t.Errorf("overdue = %s", res.Response)
	}
}

func TestCommandHandler_DoneAndCancel(t *testing.T) {
	src := newFakeTasks()
	h := NewCommandHandler(src)

	if res := h.HandleCommand("/done #1"); !strings.Contains(res.Response, "completed") {
		t.Errorf("done = %s", res.Response)
	}
	if src.tasks[1].Status != task.StatusCompleted {
		t.Error("status not changed")
	}
	if res := h.HandleCommand("/cancel 2"); !strings.Contains(res.Response, "cancelled") {
		t.Errorf("cancel = %s", res.Response)
	}
	if res := h.HandleCommand("/done"); !strings.Contains(res.Response, "Usage") {
		t.Errorf("missing id = %s", res.Response)
	}
	if res := h.HandleCommand("/done abc"); !strings.Contains(res.Response, "Invalid task id") {
		t.Errorf("bad id = %s", res.Response)
	}
	if res := h.HandleCommand("/done 42"); !strings.Contains(res.Response, "not found") {
		t.Errorf("missing task = %s", res.Response)
	}
	if res := h.HandleCommand("/tasks"); !strings.Contains(res.Response, "No open tasks") {
		t.Errorf("tasks = %s", res.Response)
	}
}

func TestCommandHandler_Unknown(t *testing.T) {
	res := NewCommandHandler(newFakeTasks()).HandleCommand("/reset")
	if !res.Handled || !strings.Contains(res.Response, "Unknown command: /reset") {
		t.Errorf("res = %+v", res)
	}
}
