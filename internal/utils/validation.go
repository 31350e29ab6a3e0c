package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"myday/backend"
)

// Field limits shared by the stores and the CLI.
const (
	MinTitleLength   = 3
	MaxEstimatedTime = 1440 // minutes
)

// colorPalette lists the list colors by name, in display order.
var colorPalette = []struct{ name, hex string }{
	{"blue", "#3B82F6"},
	{"green", "#10B981"},
	{"purple", "#8B5CF6"},
	{"red", "#EF4444"},
	{"yellow", "#F59E0B"},
	{"indigo", "#6366F1"},
	{"pink", "#EC4899"},
	{"teal", "#14B8A6"},
	{"gray", "#6B7280"},
}

// DefaultColor is used for lists created without a color.
const DefaultColor = "#6B7280"

// ColorNames returns the palette color names in display order.
func ColorNames() []string {
	names := make([]string, len(colorPalette))
	for i, c := range colorPalette {
		names[i] = c.name
	}
	return names
}

// ColorHex resolves a color name or palette hex value to its hex value.
func ColorHex(color string) (string, bool) {
	for _, c := range colorPalette {
		if strings.EqualFold(c.name, color) || strings.EqualFold(c.hex, color) {
			return c.hex, true
		}
	}
	return "", false
}

// ColorName returns the palette name for a hex value, or "gray" when unknown.
func ColorName(hex string) string {
	for _, c := range colorPalette {
		if strings.EqualFold(c.hex, hex) {
			return c.name
		}
	}
	return "gray"
}

func validateTitle(kind, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return invalid(fmt.Sprintf("Give the %s a title", kind), "%s title is required", kind)
	}
	if len([]rune(title)) < MinTitleLength {
		return invalid(fmt.Sprintf("Use at least %d characters", MinTitleLength),
			"%s title must be at least %d characters", kind, MinTitleLength)
	}
	return nil
}

// ValidatePriority validates a task priority.
func ValidatePriority(priority backend.Priority) error {
	switch priority {
	case backend.PriorityLow, backend.PriorityMedium, backend.PriorityHigh:
		return nil
	}
	return ErrInvalidPriority(string(priority))
}

// ValidateStatus validates a task status.
func ValidateStatus(status backend.TaskStatus) error {
	switch status {
	case backend.StatusTodo, backend.StatusInProgress, backend.StatusCompleted:
		return nil
	}
	return ErrInvalidStatus(string(status), []string{
		string(backend.StatusTodo), string(backend.StatusInProgress), string(backend.StatusCompleted),
	})
}

// ValidateCategory validates a list category.
func ValidateCategory(category backend.Category) error {
	switch category {
	case backend.CategoryPersonal, backend.CategoryWork, backend.CategoryStudy, backend.CategoryOther:
		return nil
	}
	return ErrInvalidCategory(string(category))
}

// ValidateUsername checks that a username is present and has no whitespace.
func ValidateUsername(username string) error {
	if username == "" {
		return invalid("Pass a username", "username is required")
	}
	if strings.ContainsAny(username, " \t\n") {
		return invalid("Usernames cannot contain spaces", "invalid username: %q", username)
	}
	return nil
}

// ValidateCreateList validates a new list.
func ValidateCreateList(req backend.CreateListRequest) error {
	if err := validateTitle("list", req.Title); err != nil {
		return err
	}
	if err := ValidateCategory(req.Category); err != nil {
		return err
	}
	if req.Color != "" {
		if _, ok := ColorHex(req.Color); !ok {
			return ErrInvalidColor(req.Color)
		}
	}
	if req.Username == "" {
		return ErrNotSignedIn()
	}
	return nil
}

// ValidateCreateTask validates a new task. The deadline must lie after now.
func ValidateCreateTask(req backend.CreateTaskRequest, now time.Time) error {
	if err := validateTitle("task", req.Title); err != nil {
		return err
	}
	if req.Priority != "" {
		if err := ValidatePriority(req.Priority); err != nil {
			return err
		}
	}
	if req.EstimatedTime != 0 && (req.EstimatedTime < 1 || req.EstimatedTime > MaxEstimatedTime) {
		return invalid("Estimated time is given in minutes (1-1440)",
			"estimated time out of range: %d", req.EstimatedTime)
	}
	if req.ActualTime < 0 {
		return invalid("Actual time is given in minutes", "actual time cannot be negative")
	}
	if req.Deadline != nil && !req.Deadline.After(now) {
		return invalid("Pick a deadline in the future", "deadline %s is in the past",
			req.Deadline.Format("2006-01-02"))
	}
	if req.ListID == "" && req.Username == "" {
		return ErrNotSignedIn()
	}
	return nil
}

// ValidateCreateStep validates a new step.
func ValidateCreateStep(req backend.CreateStepRequest) error {
	if req.TaskID == "" {
		return invalid("Pass the task ID", "task ID is required")
	}
	if strings.TrimSpace(req.Title) == "" {
		return invalid("Give the step a title", "step title is required")
	}
	return nil
}

// relativePattern matches relative date formats like +7d, -3d, +2w, +1m
var relativePattern = regexp.MustCompile(`^([+-])(\d+)([dwm])$`)

// parseRelativeDate parses "today", "tomorrow", "+7d", "-3d", "+2w" or "+1m"
// relative to now. It returns nil, nil when dateStr is not relative.
func parseRelativeDate(dateStr string, now time.Time) (*time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	lower := strings.ToLower(dateStr)
	switch lower {
	case "today":
		return &today, nil
	case "tomorrow":
		t := today.AddDate(0, 0, 1)
		return &t, nil
	}

	matches := relativePattern.FindStringSubmatch(lower)
	if matches == nil {
		return nil, nil
	}
	num, err := strconv.Atoi(matches[2])
	if err != nil {
		return nil, ErrInvalidDate(dateStr)
	}
	if matches[1] == "-" {
		num = -num
	}

	var result time.Time
	switch matches[3] {
	case "d":
		result = today.AddDate(0, 0, num)
	case "w":
		result = today.AddDate(0, 0, num*7)
	case "m":
		result = today.AddDate(0, num, 0)
	}
	return &result, nil
}

// ParseDateFlag parses a deadline flag. Relative formats (today, tomorrow,
// +Nd, +Nw, +Nm) and YYYY-MM-DD are accepted. Dates resolve to the end of
// that day so a deadline of "today" is still in the future.
// An empty string returns nil, nil.
func ParseDateFlag(dateStr string, now time.Time) (*time.Time, error) {
	if dateStr == "" {
		return nil, nil
	}

	t, err := parseRelativeDate(dateStr, now)
	if err != nil {
		return nil, err
	}
	if t == nil {
		parsed, err := time.ParseInLocation("2006-01-02", dateStr, now.Location())
		if err != nil {
			return nil, ErrInvalidDate(dateStr)
		}
		t = &parsed
	}

	end := t.Add(24*time.Hour - time.Second)
	return &end, nil
}
