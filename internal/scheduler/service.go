package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sdklogger "github.com/riverfjs/agentsdk-go/pkg/logger"
	rcron "github.com/robfig/cron/v3"

	"github.com/riverfjs/taskdeck/internal/task"
)

const DefaultInterval = 30 * time.Second

// Store is the part of *task.Store the loop drives.
type Store interface {
	CheckReminders() []task.Triggered
	SendReminderEmail(ctx context.Context, id uint32) error
	SendSmsReminder(ctx context.Context, id uint32, message string) error
	MarkChannelDelivered(id uint32, index int, ch task.Channel) error
	RecordFailure(id uint32, index int, msg string) error
}

// CycleResult counts what one cycle did.
type CycleResult struct {
	Triggered int `json:"triggered"`
	Notified  int `json:"notified"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Service periodically scans the store for due reminders and delivers
// the e-mail and SMS legs with the store lock released.
type Service struct {
	store    Store
	interval time.Duration
	logger   sdklogger.Logger

	cycleMu sync.Mutex // one cycle at a time
	wg      sync.WaitGroup // Trigger cycles

	mu     sync.Mutex
	cron   *rcron.Cron
	cancel context.CancelFunc
	runCtx context.Context
}

func New(store Store, interval time.Duration, logger sdklogger.Logger) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Service{store: store, interval: interval, logger: logger}
}

func (s *Service) Interval() time.Duration { return s.interval }

// Start registers the cycle with the cron runner. Cancelling ctx stops the
// loop and aborts in-flight deliveries.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("scheduler already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	cl := cronLogger{s.logger}
	c := rcron.New(
		rcron.WithLogger(cl),
		rcron.WithChain(rcron.Recover(cl), rcron.SkipIfStillRunning(cl)),
	)
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := c.AddFunc(spec, func() { s.RunOnce(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("register %q: %w", spec, err)
	}
	s.cron, s.cancel, s.runCtx = c, cancel, runCtx
	c.Start()
	s.logger.Infof("[scheduler] started, checking every %s", s.interval)

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()
	return nil
}

// Stop cancels in-flight deliveries and waits for the running cycle,
// including cycles started by Trigger.
func (s *Service) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	s.wg.Wait()
	s.logger.Infof("[scheduler] stopped")
}

// Trigger runs a cycle now in the background. It is a no-op when the
// loop is not running.
func (s *Service) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return
	}
	ctx := s.runCtx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunOnce(ctx)
	}()
}

// RunOnce performs one trigger cycle: scan, deliver each deferred leg in
// order, then record the outcome.
func (s *Service) RunOnce(ctx context.Context) CycleResult {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	var res CycleResult
	if ctx.Err() != nil {
		return res
	}
	triggered := s.store.CheckReminders()
	res.Triggered = len(triggered)
	if len(triggered) == 0 {
		return res
	}
	s.logger.Debugf("[scheduler] %d legs triggered", len(triggered))

	for _, tr := range triggered {
		var err error
		switch tr.Channel {
		case task.ChannelNotification:
			res.Notified++
			continue
		case task.ChannelEmail:
			err = s.store.SendReminderEmail(ctx, tr.TaskID)
		case task.ChannelSms:
			err = s.store.SendSmsReminder(ctx, tr.TaskID, "Task Reminder: "+tr.Title)
		default:
			s.logger.Warnf("[scheduler] unsupported channel %q for task %d", tr.Channel, tr.TaskID)
			continue
		}
		s.commit(tr, err, &res)
	}

	s.logger.Infof("[scheduler] cycle done: %d delivered, %d failed, %d skipped", res.Delivered, res.Failed, res.Skipped)
	return res
}

func (s *Service) commit(tr task.Triggered, sendErr error, res *CycleResult) {
	if errors.Is(sendErr, task.ErrNotFound) {
		s.logger.Debugf("[scheduler] task %d gone before %s delivery", tr.TaskID, tr.Channel)
		res.Skipped++
		return
	}

	var err error
	if sendErr != nil {
		res.Failed++
		s.logger.Errorf("[scheduler] %s reminder for task %d failed: %v", tr.Channel, tr.TaskID, sendErr)
		err = s.store.RecordFailure(tr.TaskID, tr.Index, fmt.Sprintf("%s: %v", tr.Channel, sendErr))
	} else {
		res.Delivered++
		s.logger.Infof("[scheduler] %s reminder for task %d delivered", tr.Channel, tr.TaskID)
		err = s.store.MarkChannelDelivered(tr.TaskID, tr.Index, tr.Channel)
	}
	if errors.Is(err, task.ErrNotFound) {
		s.logger.Debugf("[scheduler] task %d deleted during delivery", tr.TaskID)
	} else if err != nil {
		s.logger.Errorf("[scheduler] commit task %d: %v", tr.TaskID, err)
	}
}

// cronLogger routes robfig/cron's internal logging into the app logger.
type cronLogger struct {
	l sdklogger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debugf("[scheduler] cron %s %v", msg, keysAndValues)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Errorf("[scheduler] cron %s: %v %v", msg, err, keysAndValues)
}
