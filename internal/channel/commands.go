package channel

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/riverfjs/taskdeck/internal/task"
)

// TaskSource is what chat commands may read and change.
type TaskSource interface {
	AllTasks() []task.Task
	OverdueTasks() []task.Task
	SetStatus(id uint32, status task.Status) error
}

// CommandHandler answers slash commands sent to the bot.
type CommandHandler struct {
	tasks TaskSource
	now   func() time.Time
}

func NewCommandHandler(tasks TaskSource) *CommandHandler {
	return &CommandHandler{tasks: tasks, now: time.Now}
}

// CommandResult represents the result of command processing
type CommandResult struct {
	Handled  bool
	Response string
}

// HandleCommand processes one chat message. Plain text is not handled.
func (h *CommandHandler) HandleCommand(content string) CommandResult {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "/") {
		return CommandResult{Handled: false}
	}
	parts := strings.Fields(content)
	// Group chats address commands as /cmd@botname.
	command, _, _ := strings.Cut(strings.ToLower(parts[0]), "@")

	var resp string
	switch command {
	case "/start", "/help":
		resp = helpText
	case "/tasks":
		resp = h.listTasks()
	case "/overdue":
		resp = h.listOverdue()
	case "/done":
		resp = h.setStatus(parts[1:], task.StatusCompleted)
	case "/cancel":
		resp = h.setStatus(parts[1:], task.StatusCancelled)
	default:
		resp = fmt.Sprintf("❓ Unknown command: %s\n\nUse /help to see available commands.", command)
	}
	return CommandResult{Handled: true, Response: resp}
}

const helpText = `📚 **Task commands**

• /tasks - Open tasks by due date
• /overdue - Open tasks past their due date
• /done <id> - Mark a task completed
• /cancel <id> - Cancel a task
• /help - Show this help`

func (h *CommandHandler) listTasks() string {
	var open []task.Task
	for _, t := range h.tasks.AllTasks() {
		if t.Status.Open() {
			open = append(open, t)
		}
	}
	if len(open) == 0 {
		return "✅ No open tasks."
	}
	task.SortByDue(open)
	return formatTaskList("📋 **Open tasks**", open, h.now())
}

func (h *CommandHandler) listOverdue() string {
	overdue := h.tasks.OverdueTasks()
	if len(overdue) == 0 {
		return "✅ Nothing overdue."
	}
	task.SortByDue(overdue)
	return formatTaskList("⏰ **Overdue tasks**", overdue, h.now())
}

func (h *CommandHandler) setStatus(args []string, status task.Status) string {
	if len(args) != 1 {
		return "Usage: /done <id> or /cancel <id>"
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(args[0], "#"), 10, 32)
	if err != nil {
		return fmt.Sprintf("❌ Invalid task id %q", args[0])
	}
	if err := h.tasks.SetStatus(uint32(id), status); err != nil {
		return fmt.Sprintf("❌ %v", err)
	}
	return fmt.Sprintf("✅ Task #%d marked %s", id, status)
}

func formatTaskList(header string, tasks []task.Task, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n\n")
	for _, t := range tasks {
		marker := ""
		if t.Overdue(now) {
			marker = " ⚠️"
		}
		fmt.Fprintf(&sb, "• #%d **%s** (%s) due %s%s\n", t.ID, t.Title, t.Priority, t.Due().Local().Format("2006-01-02 15:04"), marker)
	}
	return sb.String()
}
