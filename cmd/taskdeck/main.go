package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/riverfjs/taskdeck/internal/config"
	"github.com/riverfjs/taskdeck/internal/gateway"
	"github.com/riverfjs/taskdeck/internal/rpc"
	"github.com/riverfjs/taskdeck/internal/task"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "taskdeck",
		Short:         "taskdeck - tasks with reminders by desktop notification, e-mail and SMS",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newAddCmd(),
		newListCmd(),
		newShowCmd(),
		newUpdateCmd(),
		newStatusCmd(),
		newDeleteCmd(),
		newRemindCmd(),
		newCheckCmd(),
		newDaemonCmd(),
		newConfigCmd(),
		newTestEmailCmd(),
		newInitCmd(),
	)
	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is what one-shot commands need: config and a method caller. The
// caller is the running daemon when one answers on the RPC address;
// otherwise it serves the tasks file in-process.
type app struct {
	cfg    *config.Config
	calls  rpc.Caller
	client *rpc.Client
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", config.ConfigPath(), err)
	}
	return cfg, nil
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := gateway.NewLogger(cfg, false)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}
	if c, err := dialDaemon(ctx, cfg); err == nil {
		log.Debugf("[cli] using daemon at %s", c.Addr())
		a.calls, a.client = c, c
		return a, nil
	}
	a.calls = gateway.LocalServer(cfg, gateway.OpenStore(cfg, log), log)
	return a, nil
}

// dialDaemon connects to a running daemon, failing fast when none listens.
func dialDaemon(ctx context.Context, cfg *config.Config) (*rpc.Client, error) {
	if cfg.Gateway.Port == 0 {
		return nil, errors.New("rpc listener disabled")
	}
	ctx, cancel := context.WithTimeout(ctx, rpc.DialTimeout)
	defer cancel()
	return rpc.Dial(ctx, cfg.RPCAddr())
}

func (a *app) close() {
	if a.client != nil {
		_ = a.client.Close()
	}
}

func (a *app) call(ctx context.Context, method string, params, out any) error {
	return a.calls.Call(ctx, method, params, out)
}

func (a *app) getTask(ctx context.Context, id uint32) (task.Task, error) {
	var v rpc.TaskView
	if err := a.call(ctx, "task.get", map[string]any{"id": id}, &v); err != nil {
		return task.Task{}, err
	}
	return v.Task, nil
}

// parseID accepts "7" and "#7".
func parseID(s string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return uint32(n), nil
}
