package channel

import (
	"context"
	"fmt"
	"sort"
	"sync"

	sdklogger "github.com/riverfjs/agentsdk-go/pkg/logger"

	"github.com/riverfjs/taskdeck/internal/bus"
	"github.com/riverfjs/taskdeck/internal/config"
)

// ChannelManager builds the enabled sinks and subscribes them to the bus.
type ChannelManager struct {
	channels map[string]Channel
	bus      *bus.NoticeBus
	logger   sdklogger.Logger
}

func NewChannelManager(cfg config.NotifyConfig, b *bus.NoticeBus, tasks TaskSource, logger sdklogger.Logger) (*ChannelManager, error) {
	m := &ChannelManager{
		channels: make(map[string]Channel),
		bus:      b,
		logger:   logger,
	}

	if cfg.Desktop.Enabled {
		m.Register(NewDesktopChannel(cfg.Desktop, logger))
	}

	if cfg.Telegram.Enabled {
		var commands *CommandHandler
		if tasks != nil {
			commands = NewCommandHandler(tasks)
		}
		ch, err := NewTelegramChannel(cfg.Telegram, commands, logger)
		if err != nil {
			return nil, fmt.Errorf("init telegram channel: %w", err)
		}
		m.Register(ch)
	}

	return m, nil
}

// Register adds ch and subscribes it to the bus.
func (m *ChannelManager) Register(ch Channel) {
	m.channels[ch.Name()] = ch
	m.bus.Subscribe(ch.Name(), ch.Send)
}

func (m *ChannelManager) StartAll(ctx context.Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(m.channels))

	for name, ch := range m.channels {
		wg.Add(1)
		go func(name string, ch Channel) {
			defer wg.Done()
			m.logger.Infof("[channel-mgr] starting %s", name)
			if err := ch.Start(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}(name, ch)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		return err
	}
	return nil
}

func (m *ChannelManager) StopAll() error {
	for name, ch := range m.channels {
		m.logger.Infof("[channel-mgr] stopping %s", name)
		if err := ch.Stop(); err != nil {
			m.logger.Errorf("[channel-mgr] error stopping %s: %v", name, err)
		}
	}
	return nil
}

func (m *ChannelManager) EnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
