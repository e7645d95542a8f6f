package digest

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	sdklogger "github.com/riverfjs/agentsdk-go/pkg/logger"
	"go.uber.org/zap"

	"github.com/riverfjs/taskdeck/internal/task"
)

func newTestLogger() sdklogger.Logger {
	return sdklogger.NewZapLogger(zap.NewNop())
}

type staticSource []task.Task

func (s staticSource) OverdueTasks() []task.Task { return s }

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func overdue(id uint32, title string, ago time.Duration) task.Task {
	return task.Task{ID: id, Title: title, Priority: task.PriorityHigh, Status: task.StatusPending, DueDate: now.Add(-ago).Unix()}
}

func TestNew_DefaultInterval(t *testing.T) {
	s := New(staticSource(nil), nil, 0, newTestLogger())
	if s.interval != time.Hour {
		t.Errorf("default interval = %v, want 1h", s.interval)
	}
}

func TestSummarize(t *testing.T) {
	if _, _, ok := Summarize(nil, now); ok {
		t.Error("empty digest reported")
	}

	title, body, ok := Summarize([]task.Task{
		overdue(2, "pay rent", 3*time.Hour),
		overdue(1, "taxes", 72*time.Hour),
	}, now)
	if !ok || title != "2 tasks overdue" {
		t.Fatalf("title = %q ok = %v", title, ok)
	}
	lines := strings.Split(body, "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "#1 taxes") || !strings.Contains(lines[0], "3d late") {
		t.Errorf("body = %q", body)
	}
	if !strings.Contains(lines[1], "3h late") {
		t.Errorf("line = %q", lines[1])
	}

	title, _, _ = Summarize([]task.Task{overdue(1, "x", 10*time.Minute)}, now)
	if title != "1 task overdue" {
		t.Errorf("title = %q", title)
	}
}

func TestSummarize_Truncates(t *testing.T) {
	var tasks []task.Task
	for i := 1; i <= 8; i++ {
		tasks = append(tasks, overdue(uint32(i), "t", time.Duration(i)*time.Hour))
	}
	_, body, _ := Summarize(tasks, now)
	lines := strings.Split(body, "\n")
	if len(lines) != maxListed+1 || lines[maxListed] != "... and 3 more" {
		t.Errorf("body = %q", body)
	}
}

func TestTick(t *testing.T) {
	var calls atomic.Int32
	var gotTitle string
	s := New(staticSource{overdue(1, "x", time.Hour)}, func(title, body string) error {
		calls.Add(1)
		gotTitle = title
		return nil
	}, time.Minute, newTestLogger())
	s.now = func() time.Time { return now }

	s.tick()
	if calls.Load() != 1 || gotTitle != "1 task overdue" {
		t.Errorf("calls = %d title = %q", calls.Load(), gotTitle)
	}

	empty := New(staticSource(nil), func(string, string) error {
		calls.Add(1)
		return nil
	}, time.Minute, newTestLogger())
	empty.tick()
	if calls.Load() != 1 {
		t.Error("handler called with nothing overdue")
	}

	failing := New(staticSource{overdue(1, "x", time.Hour)}, func(string, string) error {
		return errors.New("bus full")
	}, time.Minute, newTestLogger())
	failing.tick()

	New(staticSource{overdue(1, "x", time.Hour)}, nil, time.Minute, newTestLogger()).tick()
}

func TestStart_Ticks(t *testing.T) {
	var calls atomic.Int32
	s := New(staticSource{overdue(1, "x", time.Hour)}, func(string, string) error {
		calls.Add(1)
		return nil
	}, 20*time.Millisecond, newTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if calls.Load() == 0 {
		t.Error("no digest published while running")
	}
}
