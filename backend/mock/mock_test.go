package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myday/backend"
)

// TestSeededLists verifies the demo lists, counters and default ordering
func TestSeededLists(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	page, err := s.FetchLists(ctx, backend.ListFilter{Username: DemoUsername})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalElements)
	assert.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Content, 3)

	// Newest first
	assert.Equal(t, "Learning Goals", page.Content[0].Title)
	web := page.Content[2]
	assert.Equal(t, "Web Development Project", web.Title)
	assert.Equal(t, 3, web.TotalTasksCount)
	assert.Equal(t, 1, web.CompletedTasksCount)
	assert.Len(t, web.Tasks, 3)
}

// TestSeededTasks verifies unlisted and per-list task queries
func TestSeededTasks(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	page, err := s.FetchTasks(ctx, backend.TaskFilter{Unlisted: true, Username: DemoUsername})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalElements)

	page, err = s.FetchTasks(ctx, backend.TaskFilter{ListID: "list1", PageSize: 2, SortBy: "taskTitle", SortDirection: "ASC"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Content, 2)
	assert.Equal(t, "Create responsive navigation", page.Content[0].Title)
	assert.InDelta(t, 50.0, page.Content[0].Progress(), 0.001)
}

// TestFetchHooks verifies the injected failure, latency and call counter
func TestFetchHooks(t *testing.T) {
	s := NewSeeded()
	boom := errors.New("backend down")

	s.SetFetchError(boom)
	_, err := s.FetchLists(context.Background(), backend.ListFilter{})
	assert.ErrorIs(t, err, boom)
	s.SetFetchError(nil)

	s.SetFetchLatency(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = s.FetchTasks(ctx, backend.TaskFilter{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, 2, s.FetchCalls())
}

// TestReturnedTasksAreCopies verifies callers cannot mutate stored steps
func TestReturnedTasksAreCopies(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	page, err := s.FetchTasks(ctx, backend.TaskFilter{ListID: "list1", SortBy: "createdAt", SortDirection: "ASC"})
	require.NoError(t, err)
	page.Content[0].Steps[0].Title = "changed"

	again, err := s.FetchTasks(ctx, backend.TaskFilter{ListID: "list1", SortBy: "createdAt", SortDirection: "ASC"})
	require.NoError(t, err)
	assert.Equal(t, "Design mockup", again.Content[0].Steps[0].Title)
}

// TestMutations verifies list, task, step and user operations
func TestMutations(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.CreateUser(ctx, backend.User{Username: "alice"})
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, backend.User{Username: "alice"})
	assert.ErrorIs(t, err, backend.ErrInvalidRequest)

	list, err := s.CreateList(ctx, backend.CreateListRequest{Title: "Chores", Category: backend.CategoryOther, Color: "teal", Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "#14B8A6", list.Color)

	task, err := s.CreateTask(ctx, backend.CreateTaskRequest{Title: "Vacuum", ListID: list.ID})
	require.NoError(t, err)
	assert.Equal(t, backend.PriorityMedium, task.Priority)

	step, err := s.CreateStep(ctx, backend.CreateStepRequest{TaskID: task.ID, Title: "Living room"})
	require.NoError(t, err)
	done := true
	_, err = s.UpdateStep(ctx, step.ID, backend.UpdateStepRequest{Completed: &done})
	require.NoError(t, err)

	updated, err := s.UpdateTaskStatus(ctx, task.ID, backend.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, backend.StatusCompleted, updated.Status)
	assert.InDelta(t, 100.0, updated.Progress(), 0.001)

	require.NoError(t, s.DeleteStep(ctx, step.ID))
	require.NoError(t, s.DeleteList(ctx, list.ID))
	assert.ErrorIs(t, s.DeleteList(ctx, list.ID), backend.ErrNotFound)

	page, err := s.FetchTasks(ctx, backend.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, page.Content)

	_, err = s.CreateTask(ctx, backend.CreateTaskRequest{Title: "Orphan", ListID: list.ID})
	assert.ErrorIs(t, err, backend.ErrNotFound)
	_, err = s.GetUser(ctx, "bob")
	assert.ErrorIs(t, err, backend.ErrNotFound)
}
