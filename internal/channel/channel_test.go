package channel

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	sdklogger "github.com/riverfjs/agentsdk-go/pkg/logger"
	"go.uber.org/zap"

	"github.com/riverfjs/taskdeck/internal/bus"
	"github.com/riverfjs/taskdeck/internal/config"
)

func newTestLogger() sdklogger.Logger {
	return sdklogger.NewZapLogger(zap.NewNop())
}

func TestBaseChannel_IsAllowed(t *testing.T) {
	open := NewBaseChannel("x", nil, newTestLogger())
	if !open.IsAllowed("anyone") {
		t.Error("empty allow list should allow everyone")
	}
	restricted := NewBaseChannel("x", []string{"42"}, newTestLogger())
	if !restricted.IsAllowed("42") || restricted.IsAllowed("43") {
		t.Error("allow list not enforced")
	}
	if restricted.Name() != "x" {
		t.Errorf("Name = %q", restricted.Name())
	}
}

func TestDesktopChannel_Send(t *testing.T) {
	var got []string
	orig := desktopNotify
	desktopNotify = func(title, message, icon string) error {
		got = append(got, title, message, icon)
		return nil
	}
	defer func() { desktopNotify = orig }()

	ch := NewDesktopChannel(config.DesktopConfig{Enabled: true, AppIcon: "calendar"}, newTestLogger())
	if err := ch.Send(bus.Notice{Title: "Task Reminder: x", Body: "y"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"Task Reminder: x", "y", "calendar"}) {
		t.Errorf("notify args = %v", got)
	}

	desktopNotify = func(string, string, string) error { return errors.New("no dbus") }
	if err := ch.Send(bus.Notice{Title: "t"}); err == nil || !strings.Contains(err.Error(), "no dbus") {
		t.Errorf("err = %v", err)
	}
}

type mockChannel struct {
	name     string
	mu       sync.Mutex
	started  bool
	stopped  bool
	sent     []bus.Notice
	startErr error
}

func (m *mockChannel) Name() string { return m.name }

func (m *mockChannel) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	return m.startErr
}

func (m *mockChannel) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *mockChannel) Send(n bus.Notice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return nil
}

func (m *mockChannel) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func TestChannelManager_Empty(t *testing.T) {
	b := bus.NewNoticeBus(10, newTestLogger())
	m, err := NewChannelManager(config.NotifyConfig{}, b, nil, newTestLogger())
	if err != nil {
		t.Fatalf("NewChannelManager: %v", err)
	}
	if len(m.EnabledChannels()) != 0 {
		t.Errorf("channels = %v", m.EnabledChannels())
	}
	if err := m.StartAll(context.Background()); err != nil {
		t.Errorf("StartAll: %v", err)
	}
	if err := m.StopAll(); err != nil {
		t.Errorf("StopAll: %v", err)
	}
}

func TestChannelManager_BuildsFromConfig(t *testing.T) {
	b := bus.NewNoticeBus(10, newTestLogger())
	cfg := config.NotifyConfig{
		Desktop:  config.DesktopConfig{Enabled: true},
		Telegram: config.TelegramConfig{Enabled: true, Token: "fake-token", ChatID: 1},
	}
	m, err := NewChannelManager(cfg, b, nil, newTestLogger())
	if err != nil {
		t.Fatalf("NewChannelManager: %v", err)
	}
	if got := m.EnabledChannels(); !reflect.DeepEqual(got, []string{"desktop", "telegram"}) {
		t.Errorf("channels = %v", got)
	}
	if got := b.Sinks(); !reflect.DeepEqual(got, []string{"desktop", "telegram"}) {
		t.Errorf("bus sinks = %v", got)
	}

	_, err = NewChannelManager(config.NotifyConfig{Telegram: config.TelegramConfig{Enabled: true}}, b, nil, newTestLogger())
	if err == nil {
		t.Error("telegram without token should fail")
	}
}

func TestChannelManager_RoutesNotices(t *testing.T) {
	b := bus.NewNoticeBus(10, newTestLogger())
	m, _ := NewChannelManager(config.NotifyConfig{}, b, nil, newTestLogger())
	mc := &mockChannel{name: "mock"}
	m.Register(mc)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.StartAll(ctx); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	go b.Dispatch(ctx)

	_ = b.Notify("Task Reminder: water plants", "")
	for mc.count() == 0 && ctx.Err() == nil {
		time.Sleep(10 * time.Millisecond)
	}
	if mc.count() != 1 || !mc.started {
		t.Errorf("sent %d, started %v", mc.count(), mc.started)
	}

	_ = m.StopAll()
	if !mc.stopped {
		t.Error("channel not stopped")
	}
}

func TestChannelManager_StartAll_Error(t *testing.T) {
	b := bus.NewNoticeBus(10, newTestLogger())
	m, _ := NewChannelManager(config.NotifyConfig{}, b, nil, newTestLogger())
	m.Register(&mockChannel{name: "bad", startErr: errors.New("start failed")})

	err := m.StartAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Errorf("err = %v", err)
	}
}
