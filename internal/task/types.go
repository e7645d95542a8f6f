package task

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority accepts the canonical names plus "critical" for urgent.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "", "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	case "urgent", "critical":
		return PriorityUrgent, nil
	}
	return "", fmt.Errorf("invalid priority %q (want low, medium, high or urgent)", s)
}

// Rank orders priorities from low (0) to urgent (3).
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	default:
		return 1
	}
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case "pending":
		return StatusPending, nil
	case "in_progress", "inprogress", "started":
		return StatusInProgress, nil
	case "completed", "done":
		return StatusCompleted, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("invalid status %q (want pending, in_progress, completed or cancelled)", s)
}

// Open reports whether work on the task is still expected.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusInProgress
}

// Channel is a single delivery leg of a reminder.
type Channel string

const (
	ChannelEmail        Channel = "email"
	ChannelNotification Channel = "notification"
	ChannelSms          Channel = "sms"
)

type ReminderType string

const (
	ReminderEmail        ReminderType = "email"
	ReminderNotification ReminderType = "notification"
	ReminderSms          ReminderType = "sms"
	ReminderBoth         ReminderType = "both"
	ReminderAll          ReminderType = "all"
)

func ParseReminderType(s string) (ReminderType, error) {
	switch t := ReminderType(strings.ToLower(strings.TrimSpace(s))); t {
	case ReminderEmail, ReminderNotification, ReminderSms, ReminderBoth, ReminderAll:
		return t, nil
	case "":
		return ReminderNotification, nil
	}
	return "", fmt.Errorf("invalid reminder type %q (want email, notification, sms, both or all)", s)
}

// Channels expands the type into its delivery legs. The notification leg
// comes first so it is dispatched before any network delivery.
func (t ReminderType) Channels() []Channel {
	switch t {
	case ReminderEmail:
		return []Channel{ChannelEmail}
	case ReminderNotification:
		return []Channel{ChannelNotification}
	case ReminderSms:
		return []Channel{ChannelSms}
	case ReminderBoth:
		return []Channel{ChannelNotification, ChannelEmail}
	case ReminderAll:
		return []Channel{ChannelNotification, ChannelEmail, ChannelSms}
	}
	return nil
}

type ReminderState string

const (
	StatePending  ReminderState = "pending"
	StateRetrying ReminderState = "retrying"
	StateSent     ReminderState = "sent"
	StateFailed   ReminderState = "failed"
)

type Reminder struct {
	Time         int64        `json:"reminder_time"`
	Type         ReminderType `json:"reminder_type"`
	Sent         bool         `json:"sent"`
	RetryCount   int          `json:"retry_count"`
	LastAttempt  *int64       `json:"last_attempt,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Delivered    []Channel    `json:"delivered,omitempty"`
}

// State derives the lifecycle state from the stored counters.
func (r Reminder) State(maxRetries int) ReminderState {
	switch {
	case r.Sent:
		return StateSent
	case r.RetryCount >= maxRetries:
		return StateFailed
	case r.RetryCount > 0:
		return StateRetrying
	default:
		return StatePending
	}
}

func (r Reminder) delivered(ch Channel) bool {
	return slices.Contains(r.Delivered, ch)
}

// pendingChannels lists the legs not yet delivered, in dispatch order.
func (r Reminder) pendingChannels() []Channel {
	var out []Channel
	for _, ch := range r.Type.Channels() {
		if !r.delivered(ch) {
			out = append(out, ch)
		}
	}
	return out
}

type Task struct {
	ID          uint32     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     int64      `json:"due_date"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	CreatedAt   int64      `json:"created_at"`
	UpdatedAt   int64      `json:"updated_at"`
	Tags        []string   `json:"tags"`
	Reminders   []Reminder `json:"reminders"`
}

func (t Task) Due() time.Time { return time.Unix(t.DueDate, 0) }

// Overdue reports an open task whose due date has passed.
func (t Task) Overdue(now time.Time) bool {
	return t.Status.Open() && t.DueDate < now.Unix()
}

func (t Task) clone() Task {
	c := t
	c.Tags = slices.Clone(t.Tags)
	if t.Reminders != nil {
		c.Reminders = make([]Reminder, len(t.Reminders))
		for i, r := range t.Reminders {
			if r.LastAttempt != nil {
				v := *r.LastAttempt
				r.LastAttempt = &v
			}
			r.Delivered = slices.Clone(r.Delivered)
			c.Reminders[i] = r
		}
	}
	return c
}

// RetryPolicy bounds delivery attempts per reminder.
type RetryPolicy struct {
	MaxRetries int
	RetryDelay time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, RetryDelay: 300 * time.Second}
}

// FormatTime renders a unix timestamp in local time for messages.
func FormatTime(ts int64) string {
	return time.Unix(ts, 0).Local().Format("2006-01-02 15:04:05")
}

func dedupTags(tags []string) []string {
	var out []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || slices.Contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}
