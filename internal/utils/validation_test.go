package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myday/backend"
)

var refNow = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

// TestValidateCreateList verifies list request validation
func TestValidateCreateList(t *testing.T) {
	valid := backend.CreateListRequest{
		Title:    "Groceries",
		Category: backend.CategoryPersonal,
		Color:    "green",
		Username: "alice",
	}
	require.NoError(t, ValidateCreateList(valid))

	tests := []struct {
		name   string
		modify func(r *backend.CreateListRequest)
	}{
		{"EmptyTitle", func(r *backend.CreateListRequest) { r.Title = "  " }},
		{"ShortTitle", func(r *backend.CreateListRequest) { r.Title = "ab" }},
		{"BadCategory", func(r *backend.CreateListRequest) { r.Category = "HOBBY" }},
		{"BadColor", func(r *backend.CreateListRequest) { r.Color = "#123456" }},
		{"NoUsername", func(r *backend.CreateListRequest) { r.Username = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.modify(&req)
			err := ValidateCreateList(req)
			require.Error(t, err)

			var withSuggestion *ErrorWithSuggestion
			assert.True(t, errors.As(err, &withSuggestion), "want *ErrorWithSuggestion, got %T", err)
		})
	}
}

// TestValidateCreateTask verifies task request validation
func TestValidateCreateTask(t *testing.T) {
	future := refNow.Add(48 * time.Hour)
	past := refNow.Add(-time.Hour)

	valid := backend.CreateTaskRequest{
		Title:         "Write report",
		Priority:      backend.PriorityHigh,
		EstimatedTime: 90,
		Deadline:      &future,
		ListID:        "list1",
	}
	require.NoError(t, ValidateCreateTask(valid, refNow))

	tests := []struct {
		name    string
		modify  func(r *backend.CreateTaskRequest)
		invalid bool
	}{
		{"ShortTitle", func(r *backend.CreateTaskRequest) { r.Title = "ok" }, true},
		{"BadPriority", func(r *backend.CreateTaskRequest) { r.Priority = "URGENT" }, true},
		{"EstimateTooLarge", func(r *backend.CreateTaskRequest) { r.EstimatedTime = 1441 }, true},
		{"EstimateNegative", func(r *backend.CreateTaskRequest) { r.EstimatedTime = -5 }, true},
		{"PastDeadline", func(r *backend.CreateTaskRequest) { r.Deadline = &past }, true},
		{"UnlistedWithoutOwner", func(r *backend.CreateTaskRequest) { r.ListID = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.modify(&req)
			err := ValidateCreateTask(req, refNow)
			require.Error(t, err)
			assert.Equal(t, tt.invalid, errors.Is(err, backend.ErrInvalidRequest))
		})
	}

	t.Run("UnlistedWithOwner", func(t *testing.T) {
		req := valid
		req.ListID = ""
		req.Username = "alice"
		assert.NoError(t, ValidateCreateTask(req, refNow))
	})

	t.Run("DefaultsAllowed", func(t *testing.T) {
		req := backend.CreateTaskRequest{Title: "Water plants", ListID: "list1"}
		assert.NoError(t, ValidateCreateTask(req, refNow))
	})
}

// TestValidateEnums verifies status, priority and category checks
func TestValidateEnums(t *testing.T) {
	for _, s := range []backend.TaskStatus{backend.StatusTodo, backend.StatusInProgress, backend.StatusCompleted} {
		assert.NoError(t, ValidateStatus(s), s)
	}
	assert.ErrorIs(t, ValidateStatus("DONE"), backend.ErrInvalidRequest)
	assert.Contains(t, ValidateStatus("DONE").Error(), "IN_PROGRESS")

	for _, p := range []backend.Priority{backend.PriorityLow, backend.PriorityMedium, backend.PriorityHigh} {
		assert.NoError(t, ValidatePriority(p), p)
	}
	assert.Error(t, ValidatePriority(""))

	assert.NoError(t, ValidateCategory(backend.CategoryStudy))
	assert.Error(t, ValidateCategory("work"))
}

// TestValidateUsername verifies username checks
func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("mockUser"))
	assert.Error(t, ValidateUsername(""))
	assert.Error(t, ValidateUsername("mock user"))
}

// TestValidateCreateStep verifies step request checks
func TestValidateCreateStep(t *testing.T) {
	assert.NoError(t, ValidateCreateStep(backend.CreateStepRequest{TaskID: "t1", Title: "x"}))
	assert.Error(t, ValidateCreateStep(backend.CreateStepRequest{Title: "x"}))
	assert.Error(t, ValidateCreateStep(backend.CreateStepRequest{TaskID: "t1", Title: " "}))
}

// TestColorHex verifies palette lookups by name and hex
func TestColorHex(t *testing.T) {
	hex, ok := ColorHex("Blue")
	require.True(t, ok)
	assert.Equal(t, "#3B82F6", hex)

	hex, ok = ColorHex("#10b981")
	require.True(t, ok)
	assert.Equal(t, "#10B981", hex)

	_, ok = ColorHex("orange")
	assert.False(t, ok)

	assert.Equal(t, "purple", ColorName("#8B5CF6"))
	assert.Equal(t, "gray", ColorName("#000000"))
	assert.Len(t, ColorNames(), 9)
}

// TestParseDateFlag verifies absolute and relative deadline parsing
func TestParseDateFlag(t *testing.T) {
	endOf := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
	}

	tests := []struct {
		input    string
		expected time.Time
	}{
		{"2026-04-01", endOf(2026, 4, 1)},
		{"today", endOf(2026, 3, 10)},
		{"tomorrow", endOf(2026, 3, 11)},
		{"+7d", endOf(2026, 3, 17)},
		{"-1d", endOf(2026, 3, 9)},
		{"+2w", endOf(2026, 3, 24)},
		{"+1m", endOf(2026, 4, 10)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDateFlag(tt.input, refNow)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, tt.expected.Equal(*got), "got %s, want %s", got, tt.expected)
		})
	}

	got, err := ParseDateFlag("", refNow)
	assert.NoError(t, err)
	assert.Nil(t, got)

	for _, bad := range []string{"2026-13-01", "next week", "+3y"} {
		_, err := ParseDateFlag(bad, refNow)
		assert.Error(t, err, bad)
	}
}
