package views

import (
	"fmt"
	"io"
	"strings"
	"time"

	"myday/backend"
)

// Renderer writes tasks and lists as plain text, steps drawn as a tree
// under their task.
type Renderer struct {
	writer io.Writer
	now    time.Time
}

// NewRenderer creates a renderer; now decides which tasks are overdue.
func NewRenderer(writer io.Writer, now time.Time) *Renderer {
	return &Renderer{writer: writer, now: now}
}

// RenderTasks writes one line per task followed by its steps.
func (r *Renderer) RenderTasks(tasks []backend.Task) {
	for i := range tasks {
		_, _ = fmt.Fprintf(r.writer, "  %s\n", r.taskLine(&tasks[i]))
		for j, s := range tasks[i].Steps {
			treeChar := "├─ "
			if j == len(tasks[i].Steps)-1 {
				treeChar = "└─ "
			}
			_, _ = fmt.Fprintf(r.writer, "    %s%s %s\n", treeChar, formatCheck(s.Completed), s.Title)
		}
	}
}

func (r *Renderer) taskLine(t *backend.Task) string {
	parts := []string{formatStatus(t.Status), formatPriority(t.Priority), t.Title}
	if t.Deadline != nil {
		due := "due " + t.Deadline.Format("2006-01-02")
		if t.IsOverdue(r.now) {
			due += " (overdue)"
		}
		parts = append(parts, due)
	}
	if len(t.Steps) > 0 {
		parts = append(parts, fmt.Sprintf("%.0f%%", t.Progress()))
	}
	parts = append(parts, "#"+shortID(t.ID))
	return strings.Join(parts, " ")
}

// RenderLists writes one line per list with its counters.
func (r *Renderer) RenderLists(lists []backend.List) {
	for _, l := range lists {
		_, _ = fmt.Fprintf(r.writer, "  %-28s %-9s %d/%d done (%.0f%%) #%s\n",
			l.Title, l.Category, l.CompletedTasksCount, l.TotalTasksCount, l.ProgressPercentage, shortID(l.ID))
	}
}

// RenderPageFooter writes the page position when there is more than one page.
func (r *Renderer) RenderPageFooter(page, totalPages int) {
	if totalPages > 1 {
		_, _ = fmt.Fprintf(r.writer, "\nPage %d of %d\n", page, totalPages)
	}
}

// RenderTaskStats writes task counters on one line.
func (r *Renderer) RenderTaskStats(s TaskStats) {
	_, _ = fmt.Fprintf(r.writer, "Total %d | Todo %d | In progress %d | Completed %d | Overdue %d\n",
		s.Total, s.Todo, s.InProgress, s.Completed, s.Overdue)
}

// formatStatus formats a task status for display
func formatStatus(status backend.TaskStatus) string {
	switch status {
	case backend.StatusCompleted:
		return "[DONE]"
	case backend.StatusInProgress:
		return "[IN-PROGRESS]"
	default:
		return "[TODO]"
	}
}

// formatPriority formats a task priority for display
func formatPriority(p backend.Priority) string {
	switch p {
	case backend.PriorityHigh:
		return "(!!!)"
	case backend.PriorityLow:
		return "(!)"
	default:
		return "(!!)"
	}
}

func formatCheck(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

// shortID keeps IDs readable; UUIDs are cut to their first group.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i == 8 {
		return id[:i]
	}
	return id
}
