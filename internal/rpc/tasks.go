package rpc

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/riverfjs/taskdeck/internal/scheduler"
	"github.com/riverfjs/taskdeck/internal/task"
	"github.com/riverfjs/taskdeck/internal/when"
)

// TaskStore is the part of task.Store exposed over RPC.
type TaskStore interface {
	AddTask(title, description string, due time.Time, priority task.Priority, tags []string) uint32
	UpdateTask(id uint32, t task.Task) error
	DeleteTask(id uint32) error
	GetTask(id uint32) (task.Task, bool)
	AllTasks() []task.Task
	AddReminderToTask(id uint32, at time.Time, typ task.ReminderType) error
	SetStatus(id uint32, status task.Status) error
	Search(query string) []task.Task
	OverdueTasks() []task.Task
	TasksWithPendingReminders() []task.Task
	Policy() task.RetryPolicy
}

// CycleRunner runs one reminder cycle on demand.
type CycleRunner interface {
	RunOnce(ctx context.Context) scheduler.CycleResult
}

// TaskView is a task as returned to clients, with derived fields filled in.
type TaskView struct {
	task.Task
	Overdue        bool                 `json:"overdue"`
	ReminderStates []task.ReminderState `json:"reminder_states,omitempty"`
}

// TaskHandlers implements the task.*, reminder.* and scheduler.* methods.
type TaskHandlers struct {
	Store     TaskStore
	Scheduler CycleRunner
	// Advance is the default lead time for reminders added without a time.
	Advance time.Duration
	now     func() time.Time
}

func (h *TaskHandlers) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

func (h *TaskHandlers) view(t task.Task) TaskView {
	v := TaskView{Task: t, Overdue: t.Overdue(h.clock())}
	maxRetries := h.Store.Policy().MaxRetries
	for _, r := range t.Reminders {
		v.ReminderStates = append(v.ReminderStates, r.State(maxRetries))
	}
	return v
}

func (h *TaskHandlers) views(tasks []task.Task) []TaskView {
	out := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, h.view(t))
	}
	return out
}

type idParams struct {
	ID uint32 `json:"id"`
}

func (p idParams) check() error {
	if p.ID == 0 {
		return invalidParams("missing id")
	}
	return nil
}

// RegisterTaskHandlers registers the task store and scheduler methods on s.
func RegisterTaskHandlers(s *Server, h *TaskHandlers) {
	// params: { title, description?, due, priority?, tags? }
	s.Register("task.add", func(_ context.Context, params json.RawMessage, respond RespondFn) {
		var p struct {
			Title       string   `json:"title"`
			Description string   `json:"description"`
			Due         string   `json:"due"`
			Priority    string   `json:"priority"`
			Tags        []string `json:"tags"`
		}
		if err := decode(params, &p); err != nil {
			respond(nil, err)
			return
		}
		if strings.TrimSpace(p.Title) == "" {
			respond(nil, invalidParams("missing title"))
			return
		}
		if p.Due == "" {
			respond(nil, invalidParams("missing due"))
			return
		}
		due, err := when.Parse(p.Due, h.clock())
		if err != nil {
			respond(nil, invalidParams("%v", err))
			return
		}
		prio, err := task.ParsePriority(p.Priority)
		if err != nil {
			respond(nil, invalidParams("%v", err))
			return
		}
		id := h.Store.AddTask(p.Title, p.Description, due, prio, p.Tags)
		t, _ := h.Store.GetTask(id)
		respond(h.view(t), nil)
	})

	// params: { status?, priority?, search?, overdue?, open? }
	// open keeps only pending and in-progress tasks.
	s.Register("task.list", func(_ context.Context, params json.RawMessage, respond RespondFn) {
		var p struct {
			Status   string `json:"status"`
			Priority string `json:"priority"`
			Search   string `json:"search"`
			Overdue  bool   `json:"overdue"`
			Open     bool   `json:"open"`
		}
		if err := decode(params, &p); err != nil {
			respond(nil, err)
			return
		}
		var tasks []task.Task
		switch {
		case p.Overdue:
			tasks = h.Store.OverdueTasks()
		case p.Search != "":
			tasks = h.Store.Search(p.Search)
		default:
			tasks = h.Store.AllTasks()
		}
		tasks, err := filterTasks(tasks, p.Status, p.Priority)
		if err != nil {
			respond(nil, err)
			return
		}
		if p.Open {
			open := tasks[:0]
			for _, t := range tasks {
				if t.Status.Open() {
					open = append(open, t)
				}
			}
			tasks = open
		}
		respond(map[string]any{"tasks": h.views(tasks)}, nil)
	})

	s.Register("task.get", func(_ context.Context, params json.RawMessage, respond RespondFn) {
		var p idParams
		if err := decode(params, &p); err != nil {
			respond(nil, err)
			return
		}
		if err := p.check(); err != nil {
			respond(nil, err)
			return
		}
		t, ok := h.Store.GetTask(p.ID)
		if !ok {
			respond(nil, &task.NotFoundError{TaskID: p.ID, Index: -1})
			return
		}
		respond(h.view(t), nil)
	})

	// Fields left out keep their current value.
	// params: { id, title?, description?, due?, priority?, status?, tags? }
	s.Register("task.update", func(_ context.Context, params json.RawMessage, respond RespondFn) {
		var p struct {
			ID          uint32    `json:"id"`
			Title       *string   `json:"title"`
			Description *string   `json:"description"`
			Due         *string   `json:"due"`
			Priority    *string   `json:"priority"`
			Status      *string   `json:"status"`
			Tags        *[]string `json:"tags"`
		}
		if err := decode(params, &p); err != nil {
			respond(nil, err)
			return
		}
		if p.ID == 0 {
			respond(nil, invalidParams("missing id"))
			return
		}
		t, ok := h.Store.GetTask(p.ID)
		if !ok {
			respond(nil, &task.NotFoundError{TaskID: p.ID, Index: -1})
			return
		}
		if p.Title != nil {
			t.Title = *p.Title
		}
		if p.Description != nil {
			t.Description = *p.Description
		}
		if p.Due != nil {
			due, err := when.Parse(*p.Due, h.clock())
			if err != nil {
				respond(nil, invalidParams("%v", err))
				return
			}
			t.DueDate = due.Unix()
		}
		if p.Priority != nil {
			prio, err := task.ParsePriority(*p.Priority)
			if err != nil {
				respond(nil, invalidParams("%v", err))
				return
			}
			t.Priority = prio
		}
		if p.Status != nil {
			st, err := task.ParseStatus(*p.Status)
			if err != nil {
				respond(nil, invalidParams("%v", err))
				return
			}
			t.Status = st
		}
		if p.Tags != nil {
			t.Tags = *p.Tags
		}
		if err := h.Store.UpdateTask(p.ID, t); err != nil {
			respond(nil, err)
			return
		}
		t, _ = h.Store.GetTask(p.ID)
		respond(h.view(t), nil)
	})

	s.Register("task.delete", func(_ context.Context, params json.RawMessage, respond RespondFn) {
		var p idParams
		if err := decode(params, &p); err != nil {
			respond(nil, err)
			return
		}
		if err := p.check(); err != nil {
			respond(nil, err)
			return
		}
		if err := h.Store.DeleteTask(p.ID); err != nil {
			respond(nil, err)
			return
		}
		respond(map[string]any{"ok": true, "id": p.ID}, nil)
	})

	// params: { id, status }
	s.Register("task.status", func(_ context.Context, params json.RawMessage, respond RespondFn) {
		var p struct {
			ID     uint32 `json:"id"`
			Status string `json:"status"`
		}
		if err := decode(params, &p); err != nil {
			respond(nil, err)
			return
		}
		if p.ID == 0 {
			respond(nil, invalidParams("missing id"))
			return
		}
		st, err := task.ParseStatus(p.Status)
		if err != nil {
			respond(nil, invalidParams("%v", err))
			return
		}
		if err := h.Store.SetStatus(p.ID, st); err != nil {
			respond(nil, err)
			return
		}
		respond(map[string]any{"ok": true, "id": p.ID, "status": st}, nil)
	})

	// params: { id, at?, before?, type? }
	s.Register("reminder.add", func(_ context.Context, params json.RawMessage, respond RespondFn) {
		var p struct {
			ID     uint32 `json:"id"`
			At     string `json:"at"`
			Before string `json:"before"`
			Type   string `json:"type"`
		}
		if err := decode(params, &p); err != nil {
			respond(nil, err)
			return
		}
		if p.ID == 0 {
			respond(nil, invalidParams("missing id"))
			return
		}
		typ, err := task.ParseReminderType(p.Type)
		if err != nil {
			respond(nil, invalidParams("%v", err))
			return
		}
		t, ok := h.Store.GetTask(p.ID)
		if !ok {
			respond(nil, &task.NotFoundError{TaskID: p.ID, Index: -1})
			return
		}
		at, err := when.ReminderTime(p.At, p.Before, t.Due(), h.clock(), h.Advance)
		if err != nil {
			respond(nil, invalidParams("%v", err))
			return
		}
		if err := h.Store.AddReminderToTask(p.ID, at, typ); err != nil {
			respond(nil, err)
			return
		}
		respond(map[string]any{
			"id":            p.ID,
			"index":         len(t.Reminders),
			"reminder_time": at.Unix(),
			"reminder_type": typ,
		}, nil)
	})

	s.Register("reminder.pending", func(_ context.Context, _ json.RawMessage, respond RespondFn) {
		respond(map[string]any{"tasks": h.views(h.Store.TasksWithPendingReminders())}, nil)
	})

	s.Register("scheduler.run", func(ctx context.Context, _ json.RawMessage, respond RespondFn) {
		if h.Scheduler == nil {
			respond(nil, &ErrorShape{Code: CodeInternal, Message: "scheduler not available"})
			return
		}
		respond(h.Scheduler.RunOnce(ctx), nil)
	})
}

func filterTasks(tasks []task.Task, status, priority string) ([]task.Task, error) {
	var (
		st   task.Status
		prio task.Priority
		err  error
	)
	if status != "" {
		if st, err = task.ParseStatus(status); err != nil {
			return nil, invalidParams("%v", err)
		}
	}
	if priority != "" {
		if prio, err = task.ParsePriority(priority); err != nil {
			return nil, invalidParams("%v", err)
		}
	}
	out := tasks[:0:0]
	for _, t := range tasks {
		if st != "" && t.Status != st {
			continue
		}
		if prio != "" && t.Priority != prio {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
