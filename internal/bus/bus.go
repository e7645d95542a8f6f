package bus

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	sdklogger "github.com/riverfjs/agentsdk-go/pkg/logger"
)

// ErrFull is returned by Notify when the queue is saturated and the notice
// was dropped.
var ErrFull = errors.New("notice queue full")

// Notice is one user-facing notification fanned out to every sink.
type Notice struct {
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	Source string    `json:"source"`
	Time   time.Time `json:"time"`
}

const (
	SourceReminder = "reminder"
	SourceDigest   = "digest"
	SourceRPC      = "rpc"
)

// NoticeBus queues notices and delivers them to subscribed sinks from a
// single dispatch goroutine, so publishers never block on slow sinks.
type NoticeBus struct {
	queue  chan Notice
	logger sdklogger.Logger

	mu   sync.RWMutex
	subs map[string]func(Notice) error
}

func NewNoticeBus(bufSize int, logger sdklogger.Logger) *NoticeBus {
	if bufSize <= 0 {
		bufSize = 100
	}
	return &NoticeBus{
		queue:  make(chan Notice, bufSize),
		logger: logger,
		subs:   make(map[string]func(Notice) error),
	}
}

// Subscribe registers a sink under name, replacing any previous one.
func (b *NoticeBus) Subscribe(name string, fn func(Notice) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[name] = fn
}

func (b *NoticeBus) Sinks() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.subs))
	for name := range b.subs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Publish enqueues n without blocking. It reports false when the notice
// was dropped.
func (b *NoticeBus) Publish(n Notice) bool {
	if n.Time.IsZero() {
		n.Time = time.Now()
	}
	select {
	case b.queue <- n:
		return true
	default:
		b.logger.Warnf("[bus] queue full, dropping notice %q", n.Title)
		return false
	}
}

// Notify publishes a reminder notice.
func (b *NoticeBus) Notify(title, body string) error {
	if !b.Publish(Notice{Title: title, Body: body, Source: SourceReminder}) {
		return ErrFull
	}
	return nil
}

func (b *NoticeBus) Pending() int { return len(b.queue) }

// Dispatch delivers queued notices until ctx is cancelled.
func (b *NoticeBus) Dispatch(ctx context.Context) {
	for {
		select {
		case n := <-b.queue:
			b.deliver(n)
		case <-ctx.Done():
			return
		}
	}
}

// Drain delivers every queued notice on the calling goroutine and returns
// how many were delivered. One-shot commands use it instead of Dispatch.
func (b *NoticeBus) Drain() int {
	n := 0
	for {
		select {
		case notice := <-b.queue:
			b.deliver(notice)
			n++
		default:
			return n
		}
	}
}

func (b *NoticeBus) deliver(n Notice) {
	b.mu.RLock()
	subs := make(map[string]func(Notice) error, len(b.subs))
	for name, fn := range b.subs {
		subs[name] = fn
	}
	b.mu.RUnlock()

	if len(subs) == 0 {
		b.logger.Warnf("[bus] no sink subscribed, dropping notice %q", n.Title)
		return
	}
	for name, fn := range subs {
		if err := fn(n); err != nil {
			b.logger.Errorf("[bus] sink %s failed: %v", name, err)
		}
	}
}
