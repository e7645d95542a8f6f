package digest

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdklogger "github.com/riverfjs/agentsdk-go/pkg/logger"

	"github.com/riverfjs/taskdeck/internal/task"
)

const maxListed = 5

// Source lists the tasks a digest reports on.
type Source interface {
	OverdueTasks() []task.Task
}

// Service periodically summarises overdue tasks into one notice.
type Service struct {
	source   Source
	onDigest func(title, body string) error
	interval time.Duration
	logger   sdklogger.Logger
	now      func() time.Time
}

func New(source Source, onDigest func(title, body string) error, interval time.Duration, logger sdklogger.Logger) *Service {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Service{
		source:   source,
		onDigest: onDigest,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Start blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Infof("[digest] started, interval=%s", s.interval)

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-ctx.Done():
			s.logger.Infof("[digest] stopped")
			return nil
		}
	}
}

func (s *Service) tick() {
	title, body, ok := Summarize(s.source.OverdueTasks(), s.now())
	if !ok {
		s.logger.Debugf("[digest] nothing overdue")
		return
	}
	if s.onDigest == nil {
		s.logger.Warnf("[digest] no handler set")
		return
	}
	if err := s.onDigest(title, body); err != nil {
		s.logger.Errorf("[digest] publish failed: %v", err)
		return
	}
	s.logger.Infof("[digest] %s", title)
}

// Summarize renders the overdue digest. ok is false when there is nothing
// to report.
func Summarize(overdue []task.Task, now time.Time) (title, body string, ok bool) {
	if len(overdue) == 0 {
		return "", "", false
	}
	sorted := append([]task.Task(nil), overdue...)
	task.SortByDue(sorted)

	if len(sorted) == 1 {
		title = "1 task overdue"
	} else {
		title = fmt.Sprintf("%d tasks overdue", len(sorted))
	}

	lines := make([]string, 0, maxListed+1)
	for i, t := range sorted {
		if i == maxListed {
			lines = append(lines, fmt.Sprintf("... and %d more", len(sorted)-maxListed))
			break
		}
		lines = append(lines, fmt.Sprintf("#%d %s (%s, %s late)", t.ID, t.Title, t.Priority, late(now.Sub(t.Due()))))
	}
	return title, strings.Join(lines, "\n"), true
}

func late(d time.Duration) string {
	switch {
	case d >= 48*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	case d >= time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
}
