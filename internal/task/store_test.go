package task

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	sdklogger "github.com/riverfjs/agentsdk-go/pkg/logger"
	"go.uber.org/zap"
)

func newTestLogger() sdklogger.Logger {
	return sdklogger.NewZapLogger(zap.NewNop())
}

// testClock is advanced explicitly by tests.
type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T) (*Store, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)}
	s := NewStore(filepath.Join(t.TempDir(), "tasks.json"), DefaultRetryPolicy(), newTestLogger())
	s.now = clock.now
	s.Mailer = nil
	return s, clock
}

func TestStore_AddAndGet(t *testing.T) {
	s, clock := newTestStore(t)
	due := clock.t.Add(time.Hour)
	id := s.AddTask("write report", "quarterly numbers", due, PriorityHigh, []string{"work", "work", " ", "q2"})

	got, ok := s.GetTask(id)
	if !ok {
		t.Fatalf("task %d not found", id)
	}
	if got.Title != "write report" || got.Status != StatusPending || got.Priority != PriorityHigh {
		t.Errorf("task = %+v", got)
	}
	if got.DueDate != due.Unix() || got.CreatedAt != clock.t.Unix() || got.UpdatedAt != clock.t.Unix() {
		t.Errorf("timestamps = due %d created %d updated %d", got.DueDate, got.CreatedAt, got.UpdatedAt)
	}
	if !reflect.DeepEqual(got.Tags, []string{"work", "q2"}) {
		t.Errorf("tags = %v, want [work q2]", got.Tags)
	}

	// GetTask returns a copy.
	got.Tags[0] = "changed"
	again, _ := s.GetTask(id)
	if again.Tags[0] != "work" {
		t.Error("GetTask leaked internal state")
	}
}

func TestStore_IDsNeverReused(t *testing.T) {
	s, clock := newTestStore(t)
	var last uint32
	for i := 0; i < 20; i++ {
		id := s.AddTask("t", "", clock.t, PriorityLow, nil)
		if id <= last {
			t.Fatalf("id %d not greater than previous %d", id, last)
		}
		last = id
		if i%3 == 0 {
			if err := s.DeleteTask(id); err != nil {
				t.Fatalf("DeleteTask: %v", err)
			}
		}
	}

	// Deleting the highest id and reloading must not hand it out again.
	if err := s.DeleteTask(last); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	s2 := NewStore(s.Path(), DefaultRetryPolicy(), newTestLogger())
	if id := s2.AddTask("after reload", "", clock.t, PriorityLow, nil); id <= last {
		t.Errorf("id after reload = %d, want > %d", id, last)
	}
}

func TestStore_UpdateKeepsIdentity(t *testing.T) {
	s, clock := newTestStore(t)
	id := s.AddTask("old", "", clock.t, PriorityLow, nil)
	created, _ := s.GetTask(id)

	clock.advance(time.Minute)
	err := s.UpdateTask(id, Task{ID: 999, Title: "new", CreatedAt: 1, Priority: PriorityUrgent, Tags: []string{"a", "a"}})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	got, _ := s.GetTask(id)
	if got.ID != id || got.CreatedAt != created.CreatedAt {
		t.Errorf("identity changed: id %d created %d", got.ID, got.CreatedAt)
	}
	if got.Title != "new" || got.Priority != PriorityUrgent || got.Status != StatusPending {
		t.Errorf("task = %+v", got)
	}
	if got.UpdatedAt != clock.t.Unix() {
		t.Errorf("updated_at = %d, want %d", got.UpdatedAt, clock.t.Unix())
	}
	if len(got.Tags) != 1 {
		t.Errorf("tags = %v", got.Tags)
	}
	if _, ok := s.GetTask(999); ok {
		t.Error("update created a task under the supplied id")
	}
}

func TestStore_UpdateKeepsReminderState(t *testing.T) {
	s, clock := newTestStore(t)
	n := &recordingNotifier{}
	s.Notifier = n
	id := s.AddTask("stretch", "", clock.t, PriorityLow, nil)
	if err := s.AddReminderToTask(id, clock.t, ReminderNotification); err != nil {
		t.Fatal(err)
	}
	snap, _ := s.GetTask(id)

	if got := s.CheckReminders(); len(got) != 1 {
		t.Fatalf("triggered %d legs, want 1", len(got))
	}

	// Writing back a snapshot taken before delivery must not undo it.
	snap.Title = "stretch more"
	snap.Reminders = nil
	if err := s.UpdateTask(id, snap); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	r := reminderAt(t, s, id, 0)
	if !r.Sent || r.RetryCount != 1 || !reflect.DeepEqual(r.Delivered, []Channel{ChannelNotification}) {
		t.Errorf("reminder after update = %+v", r)
	}

	clock.advance(time.Minute)
	if got := s.CheckReminders(); len(got) != 0 {
		t.Errorf("re-triggered %+v after update", got)
	}
	if len(n.notices) != 1 {
		t.Errorf("notices = %v, want one", n.notices)
	}
	if got, _ := s.GetTask(id); got.Title != "stretch more" {
		t.Errorf("title = %q", got.Title)
	}
}

func TestStore_NotFound(t *testing.T) {
	s, clock := newTestStore(t)

	checks := map[string]error{
		"update":   s.UpdateTask(42, Task{}),
		"delete":   s.DeleteTask(42),
		"reminder": s.AddReminderToTask(42, clock.t, ReminderEmail),
		"status":   s.SetStatus(42, StatusCompleted),
		"tag":      s.AddTag(42, "x"),
		"mark":     s.MarkReminderSent(42, 0),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: err = %v, want ErrNotFound", name, err)
		}
	}

	id := s.AddTask("t", "", clock.t, PriorityLow, nil)
	err := s.MarkReminderSent(id, 3)
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.TaskID != id || nf.Index != 3 {
		t.Errorf("err = %v, want reminder NotFoundError", err)
	}
}

func TestStore_AddReminderRejectsUnknownType(t *testing.T) {
	s, clock := newTestStore(t)
	id := s.AddTask("t", "", clock.t, PriorityLow, nil)
	if err := s.AddReminderToTask(id, clock.t, ReminderType("pager")); err == nil {
		t.Error("expected error for unknown reminder type")
	}
}

func TestStore_Queries(t *testing.T) {
	s, clock := newTestStore(t)
	past := s.AddTask("Pay rent", "landlord", clock.t.Add(-time.Hour), PriorityUrgent, []string{"home"})
	future := s.AddTask("Dentist", "checkup", clock.t.Add(48*time.Hour), PriorityMedium, []string{"health"})
	done := s.AddTask("Old chore", "", clock.t.Add(-2*time.Hour), PriorityLow, nil)
	if err := s.SetStatus(done, StatusCompleted); err != nil {
		t.Fatal(err)
	}
	if err := s.AddReminderToTask(future, clock.t.Add(24*time.Hour), ReminderEmail); err != nil {
		t.Fatal(err)
	}

	ids := func(ts []Task) []uint32 {
		var out []uint32
		for _, t := range ts {
			out = append(out, t.ID)
		}
		return out
	}

	tests := []struct {
		name string
		got  []Task
		want []uint32
	}{
		{"all", s.AllTasks(), []uint32{past, future, done}},
		{"pending", s.PendingTasks(), []uint32{past, future}},
		{"due", s.DueTasks(), []uint32{past, done}},
		{"overdue", s.OverdueTasks(), []uint32{past}},
		{"with reminders", s.TasksWithPendingReminders(), []uint32{future}},
		{"urgent", s.TasksByPriority(PriorityUrgent), []uint32{past}},
		{"completed", s.TasksByStatus(StatusCompleted), []uint32{done}},
		{"search title", s.Search("RENT"), []uint32{past}},
		{"search description", s.Search("checkup"), []uint32{future}},
		{"search tag", s.Search("heal"), []uint32{future}},
		{"search empty", s.Search(""), []uint32{past, future, done}},
	}
	for _, tt := range tests {
		if got := ids(tt.got); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}

	all := s.AllTasks()
	SortByDue(all)
	if got := ids(all); !reflect.DeepEqual(got, []uint32{done, past, future}) {
		t.Errorf("SortByDue = %v", got)
	}
}

func TestStore_AddTag(t *testing.T) {
	s, clock := newTestStore(t)
	id := s.AddTask("t", "", clock.t, PriorityLow, []string{"a"})
	_ = s.AddTag(id, "b")
	_ = s.AddTag(id, "a")
	got, _ := s.GetTask(id)
	if !reflect.DeepEqual(got.Tags, []string{"a", "b"}) {
		t.Errorf("tags = %v", got.Tags)
	}
}

func TestStore_RoundTrip(t *testing.T) {
	s, clock := newTestStore(t)
	a := s.AddTask("a", "first", clock.t.Add(time.Hour), PriorityHigh, []string{"x"})
	b := s.AddTask("b", "", clock.t, PriorityLow, nil)
	_ = s.AddReminderToTask(a, clock.t, ReminderAll)
	_ = s.AddReminderToTask(b, clock.t.Add(time.Hour), ReminderSms)
	s.CheckReminders()
	_ = s.RecordFailure(a, 0, "smtp down")
	c := s.AddTask("c", "", clock.t, PriorityMedium, nil)
	_ = s.DeleteTask(c)

	s2 := NewStore(s.Path(), DefaultRetryPolicy(), newTestLogger())

	s.mu.Lock()
	defer s.mu.Unlock()
	if !reflect.DeepEqual(s.tasks, s2.tasks) {
		t.Errorf("task maps differ after reload:\n%+v\n%+v", s.tasks, s2.tasks)
	}
	if s.nextID != s2.nextID {
		t.Errorf("next_id = %d, want %d", s2.nextID, s.nextID)
	}
}

func TestStore_FileFormat(t *testing.T) {
	s, clock := newTestStore(t)
	s.AddTask("a", "", clock.t, PriorityLow, nil)

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	var raw struct {
		Tasks  map[string]json.RawMessage `json:"tasks"`
		NextID uint32                     `json:"next_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw.Tasks["1"]; !ok || raw.NextID != 2 {
		t.Errorf("file = %s", data)
	}
}

func TestStore_LoadRepairsNextID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	content := `{"tasks":{"7":{"id":7,"title":"seven","priority":"low","status":"pending"}},"next_id":3}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	s := NewStore(path, DefaultRetryPolicy(), newTestLogger())
	if id := s.AddTask("next", "", time.Now(), PriorityLow, nil); id != 8 {
		t.Errorf("id = %d, want 8", id)
	}
}

func TestStore_LoadMissingOrEmpty(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "missing.json"), DefaultRetryPolicy(), newTestLogger())
	if len(s.AllTasks()) != 0 {
		t.Error("missing file should give an empty store")
	}

	empty := filepath.Join(dir, "empty.json")
	_ = os.WriteFile(empty, nil, 0644)
	s = NewStore(empty, DefaultRetryPolicy(), newTestLogger())
	if id := s.AddTask("x", "", time.Now(), PriorityLow, nil); id != 1 {
		t.Errorf("first id = %d, want 1", id)
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	_ = os.WriteFile(corrupt, []byte("{not json"), 0644)
	s = NewStore(corrupt, DefaultRetryPolicy(), newTestLogger())
	if len(s.AllTasks()) != 0 {
		t.Error("corrupt file should give an empty store")
	}
}

func TestStore_PersistFailureKeepsMemoryState(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	// The parent of the tasks file is a regular file, so every save fails.
	s := NewStore(filepath.Join(blocker, "tasks.json"), DefaultRetryPolicy(), newTestLogger())
	id := s.AddTask("kept", "", time.Now(), PriorityLow, nil)
	if _, ok := s.GetTask(id); !ok {
		t.Error("in-memory task lost after failed save")
	}
}

func TestParseEnums(t *testing.T) {
	if p, err := ParsePriority("Critical"); err != nil || p != PriorityUrgent {
		t.Errorf("ParsePriority(Critical) = %q, %v", p, err)
	}
	if _, err := ParsePriority("whenever"); err == nil {
		t.Error("ParsePriority accepted garbage")
	}
	if st, err := ParseStatus("in-progress"); err != nil || st != StatusInProgress {
		t.Errorf("ParseStatus(in-progress) = %q, %v", st, err)
	}
	if _, err := ParseStatus("blocked"); err == nil {
		t.Error("ParseStatus accepted garbage")
	}
	if rt, err := ParseReminderType("ALL"); err != nil || rt != ReminderAll {
		t.Errorf("ParseReminderType(ALL) = %q, %v", rt, err)
	}
	if _, err := ParseReminderType("pager"); err == nil {
		t.Error("ParseReminderType accepted garbage")
	}
	if PriorityUrgent.Rank() <= PriorityHigh.Rank() || PriorityLow.Rank() >= PriorityMedium.Rank() {
		t.Error("priority ranks out of order")
	}
}
