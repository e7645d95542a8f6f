package gateway

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	sdklogger "github.com/riverfjs/agentsdk-go/pkg/logger"

	"github.com/riverfjs/taskdeck/internal/bus"
	"github.com/riverfjs/taskdeck/internal/channel"
	"github.com/riverfjs/taskdeck/internal/config"
	"github.com/riverfjs/taskdeck/internal/delivery"
	"github.com/riverfjs/taskdeck/internal/digest"
	"github.com/riverfjs/taskdeck/internal/logger"
	"github.com/riverfjs/taskdeck/internal/rpc"
	"github.com/riverfjs/taskdeck/internal/scheduler"
	"github.com/riverfjs/taskdeck/internal/task"
)

// Options for creating a Gateway.
type Options struct {
	// Logger overrides the file logger built from the config.
	Logger sdklogger.Logger
	// Mailer overrides the SMTP mailer.
	Mailer delivery.Mailer
	// Channels are registered in addition to the ones enabled in the config.
	Channels   []channel.Channel
	SignalChan chan os.Signal // for testing signal handling
}

type Gateway struct {
	cfg        *config.Config
	store      *task.Store
	bus        *bus.NoticeBus
	channels   *channel.ChannelManager
	sched      *scheduler.Service
	digest     *digest.Service
	rpc        *rpc.Server
	signalChan chan os.Signal
	logger     sdklogger.Logger

	ready    chan struct{}
	mu       sync.Mutex
	rpcAddr  string
	shutdown sync.Once
}

// NewLogger builds the application logger from cfg. console overrides
// cfg.Logging.Console so one-shot commands keep stdout clean.
func NewLogger(cfg *config.Config, console bool) (sdklogger.Logger, error) {
	zl, err := logger.InitLogger(logger.Options{
		Dir:           cfg.LogDir(),
		Level:         cfg.Logging.Level,
		Console:       console,
		MaxFiles:      cfg.Logging.MaxFiles,
		RotationHours: cfg.Logging.RotationHours,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return sdklogger.NewZapLogger(zl), nil
}

// OpenStore loads the task store described by cfg.
func OpenStore(cfg *config.Config, log sdklogger.Logger) *task.Store {
	policy := task.RetryPolicy{
		MaxRetries: cfg.Reminder.MaxRetryAttempts,
		RetryDelay: cfg.RetryDelay(),
	}
	s := task.NewStore(cfg.TasksPath(), policy, log)
	s.Mailer = delivery.NewSMTPMailer(cfg.EmailTimeout())
	return s
}

// LocalServer serves the store methods in-process. One-shot commands use it
// when no daemon answers on the RPC address, so the daemon stays the only
// writer of the tasks file while it runs.
func LocalServer(cfg *config.Config, store *task.Store, log sdklogger.Logger) *rpc.Server {
	srv := rpc.NewServer(log)
	registerStoreHandlers(srv, cfg, store, nil)
	return srv
}

func registerStoreHandlers(srv *rpc.Server, cfg *config.Config, store *task.Store, sched rpc.CycleRunner) {
	rpc.RegisterTaskHandlers(srv, &rpc.TaskHandlers{
		Store:     store,
		Scheduler: sched,
		Advance:   cfg.ReminderAdvance(),
	})
	rpc.RegisterConfigHandlers(srv, &rpc.ConfigHandlers{
		Store:   store,
		Timeout: cfg.EmailTimeout(),
	})
}

// New creates a Gateway with default options.
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing.
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Gateway{
		cfg:        cfg,
		logger:     opts.Logger,
		signalChan: opts.SignalChan,
		ready:      make(chan struct{}),
	}
	if g.logger == nil {
		l, err := NewLogger(cfg, cfg.Logging.Console)
		if err != nil {
			return nil, err
		}
		g.logger = l
	}

	g.bus = bus.NewNoticeBus(config.DefaultBufSize, g.logger)

	g.store = OpenStore(cfg, g.logger)
	if opts.Mailer != nil {
		g.store.Mailer = opts.Mailer
	}
	g.store.Notifier = g.bus

	g.sched = scheduler.New(g.store, cfg.CheckInterval(), g.logger)

	if cfg.Digest.Enabled {
		g.digest = digest.New(g.store, func(title, body string) error {
			if !g.bus.Publish(bus.Notice{Title: title, Body: body, Source: bus.SourceDigest}) {
				return bus.ErrFull
			}
			return nil
		}, cfg.DigestInterval(), g.logger)
	}

	chMgr, err := channel.NewChannelManager(cfg.Notify, g.bus, g.store, g.logger)
	if err != nil {
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	for _, ch := range opts.Channels {
		chMgr.Register(ch)
	}
	g.channels = chMgr

	g.rpc = rpc.NewServer(g.logger)
	registerStoreHandlers(g.rpc, cfg, g.store, g.sched)
	rpc.RegisterNotifyHandlers(g.rpc, g.bus)
	g.bus.Subscribe("rpc", func(n bus.Notice) error {
		g.rpc.Broadcast("notice", n)
		return nil
	})

	return g, nil
}

func (g *Gateway) Store() *task.Store { return g.store }

// Ready is closed once Run has started every service.
func (g *Gateway) Ready() <-chan struct{} { return g.ready }

// RPCAddr is the bound RPC listener address, empty before Ready.
func (g *Gateway) RPCAddr() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rpcAddr
}

// start initializes and starts all gateway services
func (g *Gateway) start(ctx context.Context) error {
	go g.bus.Dispatch(ctx)

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	g.logger.Infof("[gateway] channels started: %v", g.channels.EnabledChannels())

	if err := g.sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	if g.digest != nil {
		go func() {
			if err := g.digest.Start(ctx); err != nil {
				g.logger.Errorf("[gateway] digest error: %v", err)
			}
		}()
	}

	bound, err := g.rpc.Start(ctx, g.cfg.RPCAddr())
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.rpcAddr = bound
	g.mu.Unlock()

	// Reminders that came due while the daemon was down go out right away.
	g.sched.Trigger()

	g.logger.Infof("[gateway] running, tasks=%s rpc=%s", g.store.Path(), bound)
	return nil
}

// Run starts every service and blocks until a shutdown signal arrives or
// ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := g.start(ctx); err != nil {
		_ = g.Shutdown()
		return err
	}
	close(g.ready)

	// Use injected signal channel for testing, or create default
	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
	}
	select {
	case sig := <-sigCh:
		g.logger.Infof("[gateway] shutdown signal received: %v", sig)
	case <-ctx.Done():
		g.logger.Infof("[gateway] context done")
	}
	cancel()
	g.logger.Infof("[gateway] shutting down...")
	return g.Shutdown()
}

// Once runs a single reminder cycle with the configured notification
// channels and delivers the resulting notices before returning.
func (g *Gateway) Once(ctx context.Context) (scheduler.CycleResult, error) {
	if err := g.channels.StartAll(ctx); err != nil {
		return scheduler.CycleResult{}, fmt.Errorf("start channels: %w", err)
	}
	defer func() { _ = g.channels.StopAll() }()

	res := g.sched.RunOnce(ctx)
	if n := g.bus.Drain(); n > 0 {
		g.logger.Debugf("[gateway] delivered %d notice(s)", n)
	}
	return res, nil
}

// Shutdown stops the scheduler and channels. It is safe to call twice.
func (g *Gateway) Shutdown() error {
	var err error
	g.shutdown.Do(func() {
		g.sched.Stop()
		// Notices queued by the last cycle still reach the sinks.
		done := make(chan struct{})
		go func() {
			g.bus.Drain()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			g.logger.Warnf("[gateway] timed out delivering queued notices")
		}
		err = g.channels.StopAll()
		g.logger.Infof("[gateway] shutdown complete")
	})
	return err
}
