package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/riverfjs/taskdeck/internal/rpc"
	"github.com/riverfjs/taskdeck/internal/task"
	"github.com/riverfjs/taskdeck/internal/when"
)

func newAddCmd() *cobra.Command {
	var (
		desc, due, priority   string
		tags                  []string
		remindBefore, remType string
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := task.ParsePriority(priority); err != nil {
				return err
			}
			if remindBefore != "" {
				if _, err := task.ParseReminderType(remType); err != nil {
					return err
				}
			}
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			var t rpc.TaskView
			err = a.call(ctx, "task.add", map[string]any{
				"title":       strings.Join(args, " "),
				"description": desc,
				"due":         due,
				"priority":    priority,
				"tags":        tags,
			}, &t)
			if err != nil {
				return err
			}

			if remindBefore != "" {
				err := a.call(ctx, "reminder.add", map[string]any{
					"id":     t.ID,
					"before": remindBefore,
					"type":   remType,
				}, nil)
				if err != nil {
					return fmt.Errorf("task #%d added, reminder failed: %w", t.ID, err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s task #%d: %s (%s)\n",
				successStyle.Render("Added"), t.ID, t.Title, when.FormatDue(t.Due(), time.Now()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&desc, "desc", "d", "", "description")
	cmd.Flags().StringVar(&due, "due", "tomorrow", "due date (dd/mm/yyyy, yyyy-mm-dd HH:MM, \"3 days\", 2h, today, tomorrow)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "medium", "low, medium, high or urgent")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag (repeatable)")
	cmd.Flags().StringVar(&remindBefore, "remind-before", "", "also add a reminder this long before the due date (e.g. 15m, \"1 day\")")
	cmd.Flags().StringVar(&remType, "remind-type", "notification", "reminder type: notification, email, sms, both or all")
	return cmd
}

func newListCmd() *cobra.Command {
	var (
		status, priority, search string
		overdue, all             bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks ordered by due date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			var res struct {
				Tasks []rpc.TaskView `json:"tasks"`
			}
			err = a.call(ctx, "task.list", map[string]any{
				"status":   status,
				"priority": priority,
				"search":   search,
				"overdue":  overdue,
				"open":     !all && status == "" && search == "" && !overdue,
			}, &res)
			if err != nil {
				return err
			}

			tasks := make([]task.Task, 0, len(res.Tasks))
			for _, v := range res.Tasks {
				tasks = append(tasks, v.Task)
			}
			task.SortByDue(tasks)
			renderTaskList(cmd.OutOrStdout(), tasks, time.Now())
			return nil
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "only tasks with this status")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "only tasks with this priority")
	cmd.Flags().StringVarP(&search, "search", "q", "", "search title, description and tags")
	cmd.Flags().BoolVar(&overdue, "overdue", false, "only open tasks past their due date")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include completed and cancelled tasks")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task with its reminders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			t, err := a.getTask(ctx, id)
			if err != nil {
				return err
			}
			renderTask(cmd.OutOrStdout(), t, a.cfg.Reminder.MaxRetryAttempts, time.Now())
			return nil
		},
	}
}

func newUpdateCmd() *cobra.Command {
	var title, desc, due, priority string
	var tags []string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the fields given as flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			params := map[string]any{"id": id}
			flags := cmd.Flags()
			if flags.Changed("title") {
				params["title"] = title
			}
			if flags.Changed("desc") {
				params["description"] = desc
			}
			if flags.Changed("due") {
				params["due"] = due
			}
			if flags.Changed("priority") {
				if _, err := task.ParsePriority(priority); err != nil {
					return err
				}
				params["priority"] = priority
			}
			if flags.Changed("tag") {
				if tags == nil {
					tags = []string{}
				}
				params["tags"] = tags
			}

			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.call(ctx, "task.update", params, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s task #%d\n", successStyle.Render("Updated"), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVarP(&desc, "desc", "d", "", "new description")
	cmd.Flags().StringVar(&due, "due", "", "new due date")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "new priority")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "replace tags (repeatable)")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <pending|in_progress|completed|cancelled>",
		Short: "Set a task's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			st, err := task.ParseStatus(args[1])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.call(ctx, "task.status", map[string]any{"id": id, "status": st}, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task #%d is now %s\n", id, statusLabel(st))
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a task and its reminders",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.call(ctx, "task.delete", map[string]any{"id": id}, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s task #%d\n", successStyle.Render("Deleted"), id)
			return nil
		},
	}
}

func newRemindCmd() *cobra.Command {
	var at, before, typ string
	cmd := &cobra.Command{
		Use:   "remind <id>",
		Short: "Add a reminder to a task",
		Long: "Add a reminder to a task. Without --at or --before the reminder fires\n" +
			"reminder.default_reminder_advance_minutes before the due date.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			rt, err := task.ParseReminderType(typ)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			var res struct {
				ReminderTime int64 `json:"reminder_time"`
			}
			err = a.call(ctx, "reminder.add", map[string]any{
				"id":     id,
				"at":     at,
				"before": before,
				"type":   rt,
			}, &res)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s reminder for task #%d at %s\n",
				successStyle.Render("Added"), rt, id, task.FormatTime(res.ReminderTime))
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "when to remind (same formats as --due)")
	cmd.Flags().StringVar(&before, "before", "", "how long before the due date (e.g. 30m, \"2 hours\")")
	cmd.Flags().StringVar(&typ, "type", "notification", "notification, email, sms, both or all")
	return cmd
}
