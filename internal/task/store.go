package task

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	sdklogger "github.com/riverfjs/agentsdk-go/pkg/logger"
	"github.com/riverfjs/taskdeck/internal/delivery"
)

// Notifier shows a desktop-style notice. It must not block.
type Notifier interface {
	Notify(title, body string) error
}

// Store owns every task and the delivery settings. All methods are safe
// for concurrent use; none holds the lock across network I/O.
type Store struct {
	path   string
	mu     sync.Mutex
	tasks  map[uint32]*Task
	nextID uint32
	email  *delivery.EmailConfig
	sms    *delivery.SmsConfig
	policy RetryPolicy
	logger sdklogger.Logger
	now    func() time.Time

	Notifier Notifier
	Mailer   delivery.Mailer
}

type fileFormat struct {
	Tasks  map[uint32]*Task `json:"tasks"`
	NextID uint32           `json:"next_id"`
}

// NewStore loads the tasks file at path and the e-mail/SMS settings next
// to it. A missing or unreadable file yields an empty store.
func NewStore(path string, policy RetryPolicy, logger sdklogger.Logger) *Store {
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = DefaultRetryPolicy().MaxRetries
	}
	s := &Store{
		path:   path,
		tasks:  make(map[uint32]*Task),
		nextID: 1,
		policy: policy,
		logger: logger,
		now:    time.Now,
		Mailer: delivery.NewSMTPMailer(delivery.DefaultTimeout),
	}
	if err := s.load(); err != nil {
		s.logger.Errorf("[store] failed to load %s: %v", path, err)
	}
	s.loadDeliveryConfig()
	return s
}

func (s *Store) Path() string { return s.path }

func (s *Store) Policy() RetryPolicy { return s.policy }

func (s *Store) AddTask(title, description string, due time.Time, priority Priority, tags []string) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().Unix()
	if priority == "" {
		priority = PriorityMedium
	}
	id := s.nextID
	s.nextID++
	s.tasks[id] = &Task{
		ID:          id,
		Title:       title,
		Description: description,
		DueDate:     due.Unix(),
		Priority:    priority,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		Tags:        dedupTags(tags),
	}
	s.persist()
	s.logger.Infof("[store] added task %d %q", id, title)
	return id
}

// UpdateTask replaces the task's editable fields, keeping its id, creation
// time and reminders. Reminders only change through AddReminderToTask and
// the trigger cycle, so a stale snapshot cannot roll back delivery state.
func (s *Store) UpdateTask(id uint32, t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.tasks[id]
	if !ok {
		return taskNotFound(id)
	}
	nt := t.clone()
	nt.ID = id
	nt.CreatedAt = old.CreatedAt
	nt.Reminders = old.clone().Reminders
	nt.UpdatedAt = s.now().Unix()
	nt.Tags = dedupTags(nt.Tags)
	if nt.Priority == "" {
		nt.Priority = old.Priority
	}
	if nt.Status == "" {
		nt.Status = old.Status
	}
	s.tasks[id] = &nt
	s.persist()
	return nil
}

func (s *Store) DeleteTask(id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return taskNotFound(id)
	}
	delete(s.tasks, id)
	s.persist()
	s.logger.Infof("[store] deleted task %d", id)
	return nil
}

func (s *Store) GetTask(id uint32) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return t.clone(), true
}

// AllTasks returns copies ordered by id.
func (s *Store) AllTasks() []Task {
	return s.filter(func(*Task) bool { return true })
}

func (s *Store) AddReminderToTask(id uint32, at time.Time, typ ReminderType) error {
	if len(typ.Channels()) == 0 {
		return fmt.Errorf("invalid reminder type %q", typ)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return taskNotFound(id)
	}
	t.Reminders = append(t.Reminders, Reminder{Time: at.Unix(), Type: typ})
	t.UpdatedAt = s.now().Unix()
	s.persist()
	return nil
}

func (s *Store) SetStatus(id uint32, status Status) error {
	return s.mutate(id, func(t *Task) { t.Status = status })
}

func (s *Store) AddTag(id uint32, tag string) error {
	return s.mutate(id, func(t *Task) { t.Tags = dedupTags(append(t.Tags, tag)) })
}

func (s *Store) mutate(id uint32, fn func(*Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return taskNotFound(id)
	}
	fn(t)
	t.UpdatedAt = s.now().Unix()
	s.persist()
	return nil
}

// PendingTasks returns tasks with status pending.
func (s *Store) PendingTasks() []Task {
	return s.filter(func(t *Task) bool { return t.Status == StatusPending })
}

// DueTasks returns every task whose due date has been reached.
func (s *Store) DueTasks() []Task {
	now := s.now().Unix()
	return s.filter(func(t *Task) bool { return t.DueDate <= now })
}

func (s *Store) OverdueTasks() []Task {
	now := s.now()
	return s.filter(func(t *Task) bool { return t.Overdue(now) })
}

func (s *Store) TasksWithPendingReminders() []Task {
	return s.filter(func(t *Task) bool {
		return slices.ContainsFunc(t.Reminders, func(r Reminder) bool { return !r.Sent })
	})
}

func (s *Store) TasksByPriority(p Priority) []Task {
	return s.filter(func(t *Task) bool { return t.Priority == p })
}

func (s *Store) TasksByStatus(st Status) []Task {
	return s.filter(func(t *Task) bool { return t.Status == st })
}

// Search matches query case-insensitively against title, description and tags.
func (s *Store) Search(query string) []Task {
	q := strings.ToLower(strings.TrimSpace(query))
	return s.filter(func(t *Task) bool {
		if q == "" {
			return true
		}
		if strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Description), q) {
			return true
		}
		return slices.ContainsFunc(t.Tags, func(tag string) bool {
			return strings.Contains(strings.ToLower(tag), q)
		})
	})
}

func (s *Store) filter(keep func(*Task) bool) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if keep(t) {
			out = append(out, t.clone())
		}
	}
	slices.SortFunc(out, func(a, b Task) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// SortByDue orders tasks by due date, then id.
func SortByDue(tasks []Task) {
	slices.SortFunc(tasks, func(a, b Task) int {
		if c := cmp.Compare(a.DueDate, b.DueDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// sortedIDs returns task ids in ascending order. Caller holds s.mu.
func (s *Store) sortedIDs() []uint32 {
	ids := make([]uint32, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// persist writes the tasks file and logs failures. Caller holds s.mu.
func (s *Store) persist() {
	if err := s.save(); err != nil {
		s.logger.Errorf("[store] failed to save %s: %v", s.path, err)
	}
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return err
	}
	var maxID uint32
	for id, t := range ff.Tasks {
		if t == nil {
			continue
		}
		t.ID = id
		s.tasks[id] = t
		maxID = max(maxID, id)
	}
	s.nextID = max(ff.NextID, maxID+1, 1)
	s.logger.Infof("[store] loaded %d tasks from %s", len(s.tasks), s.path)
	return nil
}

func (s *Store) save() error {
	return writeJSON(s.path, fileFormat{Tasks: s.tasks, NextID: s.nextID})
}

// writeJSON replaces path atomically with the indented encoding of v.
func writeJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
