package utils

import (
	"errors"
	"fmt"
	"strings"

	"myday/backend"
)

// ErrorWithSuggestion wraps an error with a user-friendly suggestion.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%s\n\nSuggestion: %s", e.Err.Error(), e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

// Unwrap returns the underlying error for error chain support.
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion wraps an existing error with a suggestion.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// invalid builds a validation error that matches backend.ErrInvalidRequest.
func invalid(suggestion, format string, args ...any) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("%w: %s", backend.ErrInvalidRequest, fmt.Sprintf(format, args...)),
		Suggestion: suggestion,
	}
}

// ErrListNotFound returns an error for when a list is not found.
func ErrListNotFound(title string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("list not found: %s: %w", title, backend.ErrNotFound),
		Suggestion: "Use 'myday lists' to see your lists",
	}
}

// ErrNotSignedIn returns an error for commands that need an identity.
func ErrNotSignedIn() error {
	return &ErrorWithSuggestion{
		Err:        errors.New("not signed in"),
		Suggestion: "Sign in with 'myday login <username>'",
	}
}

// ErrUserNotFound returns an error for an unknown username at sign in.
func ErrUserNotFound(username string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("user not found: %s: %w", username, backend.ErrNotFound),
		Suggestion: fmt.Sprintf("Create the account with 'myday signup %s'", username),
	}
}

// ErrStoreFallback returns a warning error when the configured store could not open.
func ErrStoreFallback(name string, cause error) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("store %s unavailable, using demo data: %w", name, cause),
		Suggestion: getSmartSuggestion(cause.Error()),
	}
}

// getSmartSuggestion returns a context-aware suggestion based on the error reason.
func getSmartSuggestion(reason string) string {
	lowerReason := strings.ToLower(reason)

	if strings.Contains(lowerReason, "permission denied") {
		return "Check the permissions of the sqlite.path directory"
	}
	if strings.Contains(lowerReason, "locked") || strings.Contains(lowerReason, "busy") {
		return "Another myday process holds the database. Try again later"
	}
	if strings.Contains(lowerReason, "no such file") {
		return "Check that the directory of sqlite.path exists"
	}
	return "Check sqlite.path in your config file"
}

// ErrInvalidPriority returns an error for an invalid priority value.
func ErrInvalidPriority(priority string) error {
	return invalid("Priority must be LOW, MEDIUM or HIGH", "invalid priority: %s", priority)
}

// ErrInvalidStatus returns an error for an invalid status with valid options.
func ErrInvalidStatus(status string, valid []string) error {
	return invalid(fmt.Sprintf("Valid options: %s", strings.Join(valid, ", ")), "invalid status: %s", status)
}

// ErrInvalidCategory returns an error for an invalid list category.
func ErrInvalidCategory(category string) error {
	return invalid("Category must be PERSONAL, WORK, STUDY or OTHER", "invalid category: %s", category)
}

// ErrInvalidDate returns an error for an invalid date string.
func ErrInvalidDate(dateStr string) error {
	return invalid("Use date format YYYY-MM-DD (e.g., 2026-01-15) or +Nd", "invalid date: %s", dateStr)
}

// ErrInvalidColor returns an error for a color outside the palette.
func ErrInvalidColor(color string) error {
	return invalid(fmt.Sprintf("Valid colors: %s", strings.Join(ColorNames(), ", ")), "invalid color: %s", color)
}
