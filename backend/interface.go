package backend

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task represents a todo item
type Task struct {
	ID            string     `json:"taskId"`
	Title         string     `json:"taskTitle"`
	Description   string     `json:"taskDescription,omitempty"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	Status        TaskStatus `json:"taskStatus"`
	Priority      Priority   `json:"taskPriority"`
	ListID        string     `json:"listId,omitempty"` // empty for an unlisted task
	Username      string     `json:"username,omitempty"`
	EstimatedTime int        `json:"estimatedTime,omitempty"` // minutes
	ActualTime    int        `json:"actualTime,omitempty"`    // minutes
	Steps         []Step     `json:"steps"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Progress returns the share of completed steps in percent.
func (t *Task) Progress() float64 {
	if len(t.Steps) == 0 {
		return 0
	}
	done := 0
	for _, s := range t.Steps {
		if s.Completed {
			done++
		}
	}
	return float64(done) * 100 / float64(len(t.Steps))
}

// IsOverdue reports whether the deadline has passed on an unfinished task.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Deadline != nil && t.Deadline.Before(now) && t.Status != StatusCompleted
}

// TaskStatus represents the completion state of a task
type TaskStatus string

const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
)

// Priority is the urgency of a task
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Category groups lists by area of life
type Category string

const (
	CategoryPersonal Category = "PERSONAL"
	CategoryWork     Category = "WORK"
	CategoryStudy    Category = "STUDY"
	CategoryOther    Category = "OTHER"
)

// Step is a checklist entry inside a task
type Step struct {
	ID        string    `json:"stepId"`
	TaskID    string    `json:"taskId,omitempty"`
	Title     string    `json:"stepTitle"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}

// List represents a task list
type List struct {
	ID                  string    `json:"listId"`
	Title               string    `json:"listTitle"`
	Description         string    `json:"listDescription,omitempty"`
	Category            Category  `json:"listCategory"`
	Color               string    `json:"color,omitempty"`
	Username            string    `json:"username"`
	CompletedTasksCount int       `json:"completedTasksCount"`
	TotalTasksCount     int       `json:"totalTasksCount"`
	ProgressPercentage  float64   `json:"progressPercentage"`
	Tasks               []Task    `json:"tasks"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// User is an account that owns lists and unlisted tasks
type User struct {
	Username string `json:"username"`
	Email    string `json:"userEmail,omitempty"`
	FullName string `json:"userFullName,omitempty"`
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Content       []T `json:"content"`
	TotalPages    int `json:"totalPages"`
	TotalElements int `json:"totalElements"`
	CurrentPage   int `json:"currentPage"`
	PageSize      int `json:"pageSize"`
}

// CreateListRequest carries the fields of a new list
type CreateListRequest struct {
	Title       string   `json:"listTitle"`
	Description string   `json:"listDescription,omitempty"`
	Category    Category `json:"listCategory"`
	Color       string   `json:"color,omitempty"`
	Username    string   `json:"username"`
}

// CreateTaskRequest carries the fields of a new task
type CreateTaskRequest struct {
	Title         string     `json:"taskTitle"`
	Description   string     `json:"taskDescription,omitempty"`
	Priority      Priority   `json:"taskPriority"`
	EstimatedTime int        `json:"estimatedTime,omitempty"`
	ActualTime    int        `json:"actualTime,omitempty"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	ListID        string     `json:"listId,omitempty"`
	Username      string     `json:"username,omitempty"`
}

// CreateStepRequest carries the fields of a new step
type CreateStepRequest struct {
	TaskID string `json:"taskId"`
	Title  string `json:"stepTitle"`
}

// UpdateStepRequest changes a step; nil fields are left alone
type UpdateStepRequest struct {
	Title     *string `json:"stepTitle,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// Store errors
var (
	ErrNotFound       = errors.New("entity not found")
	ErrInvalidRequest = errors.New("invalid request")
)

// Store defines the data source behind the list views
type Store interface {
	// Paged listings
	FetchLists(ctx context.Context, filter ListFilter) (Page[List], error)
	FetchTasks(ctx context.Context, filter TaskFilter) (Page[Task], error)

	// List operations
	CreateList(ctx context.Context, req CreateListRequest) (*List, error)
	DeleteList(ctx context.Context, listID string) error

	// Task operations
	CreateTask(ctx context.Context, req CreateTaskRequest) (*Task, error)
	UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus) (*Task, error)

	// Step operations
	CreateStep(ctx context.Context, req CreateStepRequest) (*Step, error)
	UpdateStep(ctx context.Context, stepID string, req UpdateStepRequest) (*Step, error)
	DeleteStep(ctx context.Context, stepID string) error

	// Users
	CreateUser(ctx context.Context, user User) (*User, error)
	GetUser(ctx context.Context, username string) (*User, error)

	// Connection management
	Close() error
}

// FindListByTitle searches for a list by title (case-insensitive) in a slice of lists.
// Returns nil if no match is found.
func FindListByTitle(lists []List, title string) *List {
	for _, l := range lists {
		if strings.EqualFold(l.Title, title) {
			return &l
		}
	}
	return nil
}

// GenerateID generates a unique identifier using UUID v4.
func GenerateID() string {
	return uuid.New().String()
}

// ListCounters fills the task counters and progress of a list from its tasks.
func ListCounters(l *List) {
	l.TotalTasksCount = len(l.Tasks)
	l.CompletedTasksCount = 0
	for _, t := range l.Tasks {
		if t.Status == StatusCompleted {
			l.CompletedTasksCount++
		}
	}
	l.ProgressPercentage = 0
	if l.TotalTasksCount > 0 {
		l.ProgressPercentage = float64(l.CompletedTasksCount) * 100 / float64(l.TotalTasksCount)
	}
}
