// Package views derives what the list screens show from fetched pages:
// client-side search, status counters, expression filters and text rendering.
package views

import (
	"strings"
	"time"

	"myday/backend"
)

// SearchTasks keeps the tasks whose title or description contains term,
// ignoring case. An empty term keeps everything.
func SearchTasks(tasks []backend.Task, term string) []backend.Task {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return tasks
	}
	result := []backend.Task{}
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Title), term) ||
			strings.Contains(strings.ToLower(t.Description), term) {
			result = append(result, t)
		}
	}
	return result
}

// SearchLists keeps the lists whose title or description contains term.
func SearchLists(lists []backend.List, term string) []backend.List {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return lists
	}
	result := []backend.List{}
	for _, l := range lists {
		if strings.Contains(strings.ToLower(l.Title), term) ||
			strings.Contains(strings.ToLower(l.Description), term) {
			result = append(result, l)
		}
	}
	return result
}

// TaskStats counts tasks by status.
type TaskStats struct {
	Total      int `json:"total"`
	Todo       int `json:"todo"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
	Overdue    int `json:"overdue"`
}

// ComputeTaskStats counts the tasks of one page. Overdue tasks are
// unfinished tasks whose deadline is before now.
func ComputeTaskStats(tasks []backend.Task, now time.Time) TaskStats {
	var s TaskStats
	for i := range tasks {
		s.Total++
		switch tasks[i].Status {
		case backend.StatusTodo:
			s.Todo++
		case backend.StatusInProgress:
			s.InProgress++
		case backend.StatusCompleted:
			s.Completed++
		}
		if tasks[i].IsOverdue(now) {
			s.Overdue++
		}
	}
	return s
}

// ListStats summarizes a page of lists.
type ListStats struct {
	Lists          int `json:"lists"`
	TotalTasks     int `json:"totalTasks"`
	CompletedTasks int `json:"completedTasks"`
}

// ComputeListStats sums the task counters of a page of lists.
func ComputeListStats(lists []backend.List) ListStats {
	s := ListStats{Lists: len(lists)}
	for _, l := range lists {
		s.TotalTasks += len(l.Tasks)
		for _, t := range l.Tasks {
			if t.Status == backend.StatusCompleted {
				s.CompletedTasks++
			}
		}
	}
	return s
}

// Upcoming splits tasks into unfinished and completed, keeping order.
func Upcoming(tasks []backend.Task) (open, done []backend.Task) {
	open, done = []backend.Task{}, []backend.Task{}
	for _, t := range tasks {
		if t.Status == backend.StatusCompleted {
			done = append(done, t)
		} else {
			open = append(open, t)
		}
	}
	return open, done
}
