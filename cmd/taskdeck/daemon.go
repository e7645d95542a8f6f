package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/riverfjs/taskdeck/internal/gateway"
	"github.com/riverfjs/taskdeck/internal/scheduler"
)

func newDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the reminder scheduler, notification channels, digest and RPC server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			gw, err := gateway.New(cfg)
			if err != nil {
				return fmt.Errorf("create gateway: %w", err)
			}
			return gw.Run(cmd.Context())
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run one reminder cycle now and deliver whatever is due",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			log, err := gateway.NewLogger(cfg, false)
			if err != nil {
				return err
			}

			// A running daemon owns the tasks file: let it run the cycle.
			if c, err := dialDaemon(ctx, cfg); err == nil {
				defer c.Close()
				log.Debugf("[cli] running cycle on daemon at %s", c.Addr())
				var res scheduler.CycleResult
				if err := c.Call(ctx, "scheduler.run", nil, &res); err != nil {
					return err
				}
				renderCycle(out, res)
				return nil
			}

			gw, err := gateway.NewWithOptions(cfg, gateway.Options{Logger: log})
			if err != nil {
				return fmt.Errorf("create gateway: %w", err)
			}
			res, err := gw.Once(ctx)
			if err != nil {
				return err
			}
			renderCycle(out, res)
			return nil
		},
	}
}
