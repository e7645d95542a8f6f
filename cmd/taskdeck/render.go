package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/riverfjs/taskdeck/internal/config"
	"github.com/riverfjs/taskdeck/internal/delivery"
	"github.com/riverfjs/taskdeck/internal/scheduler"
	"github.com/riverfjs/taskdeck/internal/task"
	"github.com/riverfjs/taskdeck/internal/when"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

	priorityStyles = map[task.Priority]lipgloss.Style{
		task.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		task.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		task.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		task.PriorityUrgent: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}

	idCol       = lipgloss.NewStyle().Width(6)
	statusCol   = lipgloss.NewStyle().Width(3)
	titleCol    = lipgloss.NewStyle().Width(34)
	priorityCol = lipgloss.NewStyle().Width(8)
)

func statusIcon(s task.Status) string {
	switch s {
	case task.StatusInProgress:
		return "◐"
	case task.StatusCompleted:
		return "●"
	case task.StatusCancelled:
		return "✗"
	default:
		return "○"
	}
}

func statusLabel(s task.Status) string {
	return statusIcon(s) + " " + strings.ReplaceAll(string(s), "_", " ")
}

func priorityLabel(p task.Priority) string {
	st, ok := priorityStyles[p]
	if !ok {
		return string(p)
	}
	return st.Render(string(p))
}

func stateLabel(s task.ReminderState) string {
	switch s {
	case task.StateSent:
		return successStyle.Render(string(s))
	case task.StateFailed:
		return errorStyle.Render(string(s))
	case task.StateRetrying:
		return warnStyle.Render(string(s))
	default:
		return mutedStyle.Render(string(s))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func renderTaskList(w io.Writer, tasks []task.Task, now time.Time) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No tasks."))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d task(s)", len(tasks))))
	for _, t := range tasks {
		due := when.FormatDue(t.Due(), now)
		if !t.Status.Open() {
			due = mutedStyle.Render(due)
		} else if t.Overdue(now) {
			due = errorStyle.Render(due)
		}
		line := lipgloss.JoinHorizontal(lipgloss.Top,
			idCol.Render(fmt.Sprintf("#%d", t.ID)),
			statusCol.Render(statusIcon(t.Status)),
			titleCol.Render(truncate(t.Title, 32)),
			priorityCol.Render(priorityLabel(t.Priority)),
			due,
		)
		if len(t.Tags) > 0 {
			line += " " + mutedStyle.Render("["+strings.Join(t.Tags, ", ")+"]")
		}
		fmt.Fprintln(w, line)
	}
}

func renderTask(w io.Writer, t task.Task, maxRetries int, now time.Time) {
	row := func(label, value string) {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-12s", label+":")), value)
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("#%d %s", t.ID, t.Title)))
	if t.Description != "" {
		row("Description", t.Description)
	}
	row("Due", fmt.Sprintf("%s  %s", task.FormatTime(t.DueDate), when.FormatDue(t.Due(), now)))
	row("Priority", priorityLabel(t.Priority))
	row("Status", statusLabel(t.Status))
	if len(t.Tags) > 0 {
		row("Tags", strings.Join(t.Tags, ", "))
	}
	row("Created", task.FormatTime(t.CreatedAt))
	row("Updated", task.FormatTime(t.UpdatedAt))

	if len(t.Reminders) == 0 {
		row("Reminders", mutedStyle.Render("none"))
		return
	}
	row("Reminders", "")
	for i, r := range t.Reminders {
		line := fmt.Sprintf("  [%d] %s  %-12s %s", i, task.FormatTime(r.Time), r.Type, stateLabel(r.State(maxRetries)))
		if r.RetryCount > 0 {
			line += mutedStyle.Render(fmt.Sprintf("  attempts %d/%d", r.RetryCount, maxRetries))
		}
		if r.ErrorMessage != "" {
			line += "\n      " + errorStyle.Render(r.ErrorMessage)
		}
		fmt.Fprintln(w, line)
	}
}

func renderCycle(w io.Writer, res scheduler.CycleResult) {
	if res.Triggered == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No reminders due."))
		return
	}
	fmt.Fprintf(w, "%s %d triggered: %d notified, %d delivered, %s, %d skipped\n",
		headerStyle.Render("Reminders:"), res.Triggered, res.Notified, res.Delivered,
		failedCount(res.Failed), res.Skipped)
}

func failedCount(n int) string {
	s := fmt.Sprintf("%d failed", n)
	if n > 0 {
		return errorStyle.Render(s)
	}
	return s
}

type configView struct {
	Email    delivery.EmailConfig
	HasEmail bool
	Sms      delivery.SmsConfig
	HasSms   bool
}

func renderConfig(w io.Writer, cfg *config.Config, v configView) {
	row := func(label, value string) {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-16s", label+":")), value)
	}
	onOff := func(b bool) string {
		if b {
			return successStyle.Render("enabled")
		}
		return mutedStyle.Render("disabled")
	}

	fmt.Fprintln(w, headerStyle.Render("taskdeck configuration"))
	row("Config file", config.ConfigPath())
	row("Tasks file", cfg.TasksPath())
	row("Check interval", cfg.CheckInterval().String())
	row("Retries", fmt.Sprintf("%d every %s", cfg.Reminder.MaxRetryAttempts, cfg.RetryDelay()))
	row("Default advance", cfg.ReminderAdvance().String())
	row("Log level", cfg.Logging.Level)

	if v.HasEmail {
		row("E-mail", v.Email.String())
	} else {
		row("E-mail", mutedStyle.Render("not configured"))
	}
	if v.HasSms {
		addr, _ := delivery.GatewayAddress(v.Sms.PhoneNumber, v.Sms.Carrier)
		row("SMS", fmt.Sprintf("%s (%s) %s", v.Sms.PhoneNumber, addr, onOff(v.Sms.Enabled)))
	} else {
		row("SMS", mutedStyle.Render("not configured"))
	}

	row("Desktop", onOff(cfg.Notify.Desktop.Enabled))
	row("Telegram", onOff(cfg.Notify.Telegram.Enabled))
	digest := onOff(cfg.Digest.Enabled)
	if cfg.Digest.Enabled {
		digest += " every " + cfg.DigestInterval().String()
	}
	row("Digest", digest)
	row("RPC", fmt.Sprintf("ws://%s:%d", cfg.Gateway.Host, cfg.Gateway.Port))
}
