package views

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myday/backend"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func day(offset int) *time.Time {
	t := now.AddDate(0, 0, offset)
	return &t
}

func sampleTasks() []backend.Task {
	return []backend.Task{
		{ID: "t1", Title: "Write report", Description: "Quarterly numbers", Status: backend.StatusTodo,
			Priority: backend.PriorityHigh, Deadline: day(-1), ListID: "work"},
		{ID: "t2", Title: "Buy milk", Status: backend.StatusCompleted, Priority: backend.PriorityLow,
			Deadline: day(-3), Username: "alice"},
		{ID: "t3", Title: "Plan REPORT layout", Status: backend.StatusInProgress, Priority: backend.PriorityMedium,
			Deadline: day(5), ListID: "work", Steps: []backend.Step{{Title: "Sketch", Completed: true}, {Title: "Review"}}},
		{ID: "t4", Title: "Call mom", Status: backend.StatusTodo, Priority: backend.PriorityMedium, Username: "alice"},
	}
}

// TestSearchTasks verifies case-insensitive search over title and description
func TestSearchTasks(t *testing.T) {
	tasks := sampleTasks()

	got := SearchTasks(tasks, "report")
	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].ID)
	assert.Equal(t, "t3", got[1].ID)

	assert.Len(t, SearchTasks(tasks, "quarterly"), 1)
	assert.Len(t, SearchTasks(tasks, "  "), 4)
	assert.Empty(t, SearchTasks(tasks, "dentist"))
}

// TestSearchLists verifies list search
func TestSearchLists(t *testing.T) {
	lists := []backend.List{{Title: "Work"}, {Title: "Home", Description: "chores around the house"}}
	assert.Len(t, SearchLists(lists, "HOUSE"), 1)
	assert.Len(t, SearchLists(lists, ""), 2)
}

// TestComputeTaskStats verifies status and overdue counters
func TestComputeTaskStats(t *testing.T) {
	s := ComputeTaskStats(sampleTasks(), now)
	assert.Equal(t, TaskStats{Total: 4, Todo: 2, InProgress: 1, Completed: 1, Overdue: 1}, s)
}

// TestComputeListStats verifies task totals across lists
func TestComputeListStats(t *testing.T) {
	lists := []backend.List{
		{Tasks: []backend.Task{{Status: backend.StatusCompleted}, {Status: backend.StatusTodo}}},
		{Tasks: []backend.Task{{Status: backend.StatusCompleted}}},
		{},
	}
	assert.Equal(t, ListStats{Lists: 3, TotalTasks: 3, CompletedTasks: 2}, ComputeListStats(lists))
}

// TestUpcoming verifies the open/done split
func TestUpcoming(t *testing.T) {
	open, done := Upcoming(sampleTasks())
	assert.Len(t, open, 3)
	require.Len(t, done, 1)
	assert.Equal(t, "t2", done[0].ID)
}

// TestWhereTasks verifies expression filtering of tasks
func TestWhereTasks(t *testing.T) {
	tests := []struct {
		expr string
		want []string
	}{
		{`priority == "HIGH"`, []string{"t1"}},
		{`overdue`, []string{"t1"}},
		{`status != "COMPLETED" and list == ""`, []string{"t4"}},
		{`has_deadline && due_in_days > 0`, []string{"t3"}},
		{`steps_done >= 1 && progress == 50`, []string{"t3"}},
		{`title contains "m"`, []string{"t2", "t4"}},
		{`owner == "alice" || list == "work"`, []string{"t1", "t2", "t3", "t4"}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			w, err := CompileWhere("task", tt.expr)
			require.NoError(t, err)
			got, err := w.Tasks(sampleTasks(), now)
			require.NoError(t, err)
			var ids []string
			for _, task := range got {
				ids = append(ids, task.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

// TestWhereLists verifies expression filtering of lists
func TestWhereLists(t *testing.T) {
	lists := []backend.List{
		{Title: "Work", Category: backend.CategoryWork, ProgressPercentage: 25, TotalTasksCount: 4},
		{Title: "Home", Category: backend.CategoryPersonal, ProgressPercentage: 100, TotalTasksCount: 1},
	}
	w, err := CompileWhere("list", `category == "WORK" and progress < 50`)
	require.NoError(t, err)
	got, err := w.Lists(lists)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Work", got[0].Title)

	_, err = w.Tasks(nil, now)
	assert.Error(t, err)
}

// TestCompileWhereErrors verifies bad expressions are rejected up front
func TestCompileWhereErrors(t *testing.T) {
	for _, bad := range []struct{ entity, expr string }{
		{"task", ""},
		{"task", `priority ==`},
		{"task", `color == "red"`},
		{"task", `title`},
		{"step", `true`},
	} {
		_, err := CompileWhere(bad.entity, bad.expr)
		assert.ErrorIs(t, err, backend.ErrInvalidRequest, bad.expr)
	}
}

// TestRenderTasks verifies task lines and the step tree
func TestRenderTasks(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, now)
	tasks := sampleTasks()
	r.RenderTasks(tasks[:1])
	r.RenderTasks(tasks[2:3])

	out := buf.String()
	assert.Contains(t, out, "[TODO] (!!!) Write report due 2026-04-30 (overdue) #t1")
	assert.Contains(t, out, "[IN-PROGRESS] (!!) Plan REPORT layout due 2026-05-06 50% #t3")
	assert.Contains(t, out, "├─ [x] Sketch")
	assert.Contains(t, out, "└─ [ ] Review")
}

// TestRenderListsAndFooter verifies list lines, stats and paging footer
func TestRenderListsAndFooter(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, now)
	r.RenderLists([]backend.List{{
		ID: "3f2a9c1e-0000-4000-8000-000000000000", Title: "Work", Category: backend.CategoryWork,
		CompletedTasksCount: 1, TotalTasksCount: 4, ProgressPercentage: 25,
	}})
	r.RenderPageFooter(1, 1)
	r.RenderPageFooter(2, 3)
	r.RenderTaskStats(TaskStats{Total: 2, Todo: 1, Completed: 1})

	out := buf.String()
	assert.Contains(t, out, "1/4 done (25%) #3f2a9c1e")
	assert.Contains(t, out, "Page 2 of 3")
	assert.NotContains(t, out, "Page 1 of 1")
	assert.Contains(t, out, "Total 2 | Todo 1 | In progress 0 | Completed 1 | Overdue 0")
}
