package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/riverfjs/taskdeck/internal/config"
	"github.com/riverfjs/taskdeck/internal/delivery"
	"github.com/riverfjs/taskdeck/internal/rpc"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change e-mail and SMS delivery settings",
	}
	cmd.AddCommand(newConfigEmailCmd(), newConfigSmsCmd(), newConfigShowCmd())
	return cmd
}

func newConfigEmailCmd() *cobra.Command {
	var cfg delivery.EmailConfig
	cmd := &cobra.Command{
		Use:   "email",
		Short: "Set the SMTP account used for e-mail and SMS reminders",
		Long: "Set the SMTP account used for e-mail and SMS reminders.\n" +
			"The password may also be passed in TASKDECK_SMTP_PASSWORD.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var upd rpc.EmailUpdate
			flags := cmd.Flags()
			if flags.Changed("email") {
				upd.Email = &cfg.Email
			}
			if flags.Changed("server") {
				upd.SMTPServer = &cfg.SMTPServer
			}
			if flags.Changed("port") {
				upd.SMTPPort = &cfg.SMTPPort
			}
			if flags.Changed("username") {
				upd.Username = &cfg.Username
			}
			if flags.Changed("password") {
				upd.Password = &cfg.Password
			} else if pw := os.Getenv("TASKDECK_SMTP_PASSWORD"); pw != "" {
				upd.Password = &pw
			}

			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			var saved delivery.EmailConfig
			if err := a.call(ctx, "config.email.set", upd, &saved); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s e-mail settings: %s\n", successStyle.Render("Saved"), saved)
			if hint := delivery.TransportFor(saved.SMTPServer).Hint; hint != "" {
				fmt.Fprintln(out, mutedStyle.Render(hint))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.Email, "email", "", "sender and recipient address")
	cmd.Flags().StringVar(&cfg.SMTPServer, "server", "", "SMTP host, e.g. smtp.gmail.com")
	cmd.Flags().IntVar(&cfg.SMTPPort, "port", delivery.DefaultSMTPPort, "SMTP port")
	cmd.Flags().StringVar(&cfg.Username, "username", "", "SMTP username (defaults to --email)")
	cmd.Flags().StringVar(&cfg.Password, "password", "", "SMTP password or app password")
	return cmd
}

func newConfigSmsCmd() *cobra.Command {
	var cfg delivery.SmsConfig
	var disable bool
	cmd := &cobra.Command{
		Use:   "sms",
		Short: "Set the phone number and carrier for SMS reminders",
		Long: "Set the phone number and carrier for SMS reminders. Texts are sent through\n" +
			"the carrier's e-mail gateway, so e-mail settings are required too.\n" +
			"Carriers: " + strings.Join(delivery.Carriers(), ", "),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			upd := rpc.SmsUpdate{Enabled: !disable}
			flags := cmd.Flags()
			if flags.Changed("phone") {
				upd.PhoneNumber = &cfg.PhoneNumber
			}
			if flags.Changed("carrier") {
				upd.Carrier = &cfg.Carrier
			}

			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			var saved rpc.SmsSaved
			if err := a.call(ctx, "config.sms.set", upd, &saved); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			state := "enabled"
			if !saved.Sms.Enabled {
				state = "disabled"
			}
			fmt.Fprintf(out, "%s SMS settings: %s via %s (%s)\n", successStyle.Render("Saved"), saved.Sms.PhoneNumber, saved.Address, state)
			if !saved.EmailConfigured {
				fmt.Fprintln(out, warnStyle.Render("SMS needs e-mail settings: run 'taskdeck config email'"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.PhoneNumber, "phone", "", "phone number, digits only or formatted")
	cmd.Flags().StringVar(&cfg.Carrier, "carrier", "", "mobile carrier")
	cmd.Flags().BoolVar(&disable, "disable", false, "keep the settings but stop sending SMS")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			var dc rpc.DeliveryConfig
			if err := a.call(ctx, "config.get", nil, &dc); err != nil {
				return err
			}
			var v configView
			if dc.Email != nil {
				v.Email, v.HasEmail = *dc.Email, true
			}
			if dc.Sms != nil {
				v.Sms, v.HasSms = *dc.Sms, true
			}
			renderConfig(cmd.OutOrStdout(), a.cfg, v)
			return nil
		},
	}
}

func newTestEmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-email",
		Short: "Send a test message with the configured SMTP account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.EmailTimeout()+rpc.DialTimeout)
			defer cancel()

			var res struct {
				To string `json:"to"`
			}
			if err := a.call(ctx, "email.test", nil, &res); err != nil {
				if errors.Is(err, delivery.ErrConfig) {
					return fmt.Errorf("%w; run 'taskdeck config email' first", err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s test e-mail sent to %s\n", successStyle.Render("OK"), res.To)
			return nil
		},
	}
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the config file and data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := config.ConfigPath()
			if _, err := os.Stat(path); os.IsNotExist(err) {
				if err := config.SaveConfigTo(path, config.DefaultConfig()); err != nil {
					return fmt.Errorf("write config: %w", err)
				}
				fmt.Fprintf(out, "Created config: %s\n", path)
			} else {
				fmt.Fprintf(out, "Config already exists: %s\n", path)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.Data.Dir, 0755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
			fmt.Fprintf(out, "Data directory: %s\n", cfg.Data.Dir)
			fmt.Fprintln(out, "\nNext steps:")
			fmt.Fprintln(out, "  1. taskdeck add \"Pay rent\" --due 1/5/2026 --remind-before \"1 day\"")
			fmt.Fprintln(out, "  2. taskdeck config email --email you@gmail.com --server smtp.gmail.com")
			fmt.Fprintln(out, "  3. taskdeck daemon")
			return nil
		},
	}
}
