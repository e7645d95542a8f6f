package channel

import (
	"context"
	"fmt"

	"github.com/gen2brain/beeep"
	sdklogger "github.com/riverfjs/agentsdk-go/pkg/logger"

	"github.com/riverfjs/taskdeck/internal/bus"
	"github.com/riverfjs/taskdeck/internal/config"
)

const desktopChannelName = "desktop"

// desktopNotify is swapped out in tests.
var desktopNotify = beeep.Notify

// DesktopChannel shows notices as OS notifications.
type DesktopChannel struct {
	BaseChannel
	icon string
}

func NewDesktopChannel(cfg config.DesktopConfig, logger sdklogger.Logger) *DesktopChannel {
	return &DesktopChannel{
		BaseChannel: NewBaseChannel(desktopChannelName, nil, logger),
		icon:        cfg.AppIcon,
	}
}

func (d *DesktopChannel) Start(ctx context.Context) error { return nil }

func (d *DesktopChannel) Stop() error { return nil }

func (d *DesktopChannel) Send(n bus.Notice) error {
	if err := desktopNotify(n.Title, n.Body, d.icon); err != nil {
		return fmt.Errorf("desktop notification: %w", err)
	}
	d.logger.Debugf("[desktop] shown %q", n.Title)
	return nil
}
