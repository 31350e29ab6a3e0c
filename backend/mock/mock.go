// Package mock provides an in-memory backend.Store seeded with demo data.
// It is the fallback data source when no persistent store is available.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"myday/backend"
	"myday/internal/utils"
)

// DemoUsername owns the seeded lists and tasks.
const DemoUsername = "mockUser"

func init() {
	backend.RegisterWithPriority("mock", func(backend.Options) (backend.Store, error) {
		return NewSeeded(), nil
	}, 100)
}

// Store implements backend.Store in memory
type Store struct {
	mu    sync.RWMutex
	users map[string]backend.User
	lists []backend.List // without Tasks; tasks are joined on read
	tasks []backend.Task

	fetchErr     error
	fetchLatency time.Duration
	fetchCalls   int
	now          func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		users: make(map[string]backend.User),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// NewSeeded creates a store holding the demo user, lists and tasks
func NewSeeded() *Store {
	s := New()
	seed(s)
	return s
}

// SetFetchError makes every subsequent fetch fail with err (nil clears it)
func (s *Store) SetFetchError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchErr = err
}

// SetFetchLatency delays every subsequent fetch by d
func (s *Store) SetFetchLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchLatency = d
}

// FetchCalls returns how many page fetches were served
func (s *Store) FetchCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchCalls
}

// beginFetch applies the configured latency and failure for one fetch
func (s *Store) beginFetch(ctx context.Context) error {
	s.mu.Lock()
	s.fetchCalls++
	latency, err := s.fetchLatency, s.fetchErr
	s.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// FetchLists returns one page of lists with their tasks and counters
func (s *Store) FetchLists(ctx context.Context, filter backend.ListFilter) (backend.Page[backend.List], error) {
	paging, err := filter.Paging()
	if err != nil {
		return backend.Page[backend.List]{}, err
	}
	if err := s.beginFetch(ctx); err != nil {
		return backend.Page[backend.List]{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []backend.List
	for _, l := range s.lists {
		if !filter.MatchList(l) {
			continue
		}
		matched = append(matched, s.withTasks(l))
	}
	return backend.Paginate(matched, paging, backend.LessLists(paging.SortKey)), nil
}

// withTasks returns a copy of l with its tasks and counters filled in
func (s *Store) withTasks(l backend.List) backend.List {
	l.Tasks = []backend.Task{}
	for _, t := range s.tasks {
		if t.ListID == l.ID {
			l.Tasks = append(l.Tasks, copyTask(t))
		}
	}
	backend.ListCounters(&l)
	return l
}

// FetchTasks returns one page of tasks
func (s *Store) FetchTasks(ctx context.Context, filter backend.TaskFilter) (backend.Page[backend.Task], error) {
	paging, err := filter.Paging()
	if err != nil {
		return backend.Page[backend.Task]{}, err
	}
	if err := s.beginFetch(ctx); err != nil {
		return backend.Page[backend.Task]{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []backend.Task
	for _, t := range s.tasks {
		if filter.MatchTask(t) {
			matched = append(matched, copyTask(t))
		}
	}
	return backend.Paginate(matched, paging, backend.LessTasks(paging.SortKey)), nil
}

// copyTask detaches the steps slice from the stored task
func copyTask(t backend.Task) backend.Task {
	steps := make([]backend.Step, len(t.Steps))
	copy(steps, t.Steps)
	t.Steps = steps
	return t
}

// CreateList adds a new list
func (s *Store) CreateList(ctx context.Context, req backend.CreateListRequest) (*backend.List, error) {
	if err := utils.ValidateCreateList(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	l := backend.List{
		ID:          backend.GenerateID(),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Category:    req.Category,
		Color:       req.Color,
		Username:    req.Username,
		Tasks:       []backend.Task{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if hex, ok := utils.ColorHex(req.Color); ok {
		l.Color = hex
	}
	s.lists = append(s.lists, l)
	return &l, nil
}

// DeleteList removes a list and its tasks
func (s *Store) DeleteList(ctx context.Context, listID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, l := range s.lists {
		if l.ID == listID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("list %s: %w", listID, backend.ErrNotFound)
	}
	s.lists = append(s.lists[:idx], s.lists[idx+1:]...)

	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if t.ListID != listID {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
	return nil
}

// CreateTask adds a new task
func (s *Store) CreateTask(ctx context.Context, req backend.CreateTaskRequest) (*backend.Task, error) {
	if err := utils.ValidateCreateTask(req, s.now()); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ListID != "" && s.listIndex(req.ListID) < 0 {
		return nil, fmt.Errorf("list %s: %w", req.ListID, backend.ErrNotFound)
	}

	priority := req.Priority
	if priority == "" {
		priority = backend.PriorityMedium
	}
	now := s.now()
	t := backend.Task{
		ID:            backend.GenerateID(),
		Title:         strings.TrimSpace(req.Title),
		Description:   req.Description,
		Deadline:      req.Deadline,
		Status:        backend.StatusTodo,
		Priority:      priority,
		ListID:        req.ListID,
		Username:      req.Username,
		EstimatedTime: req.EstimatedTime,
		ActualTime:    req.ActualTime,
		Steps:         []backend.Step{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.tasks = append(s.tasks, t)
	return &t, nil
}

// UpdateTaskStatus changes the status of a task
func (s *Store) UpdateTaskStatus(ctx context.Context, taskID string, status backend.TaskStatus) (*backend.Task, error) {
	if err := utils.ValidateStatus(status); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.taskIndex(taskID)
	if i < 0 {
		return nil, fmt.Errorf("task %s: %w", taskID, backend.ErrNotFound)
	}
	s.tasks[i].Status = status
	s.tasks[i].UpdatedAt = s.now()
	t := copyTask(s.tasks[i])
	return &t, nil
}

// CreateStep adds a step to a task
func (s *Store) CreateStep(ctx context.Context, req backend.CreateStepRequest) (*backend.Step, error) {
	if err := utils.ValidateCreateStep(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.taskIndex(req.TaskID)
	if i < 0 {
		return nil, fmt.Errorf("task %s: %w", req.TaskID, backend.ErrNotFound)
	}
	step := backend.Step{
		ID:        backend.GenerateID(),
		TaskID:    req.TaskID,
		Title:     strings.TrimSpace(req.Title),
		CreatedAt: s.now(),
	}
	s.tasks[i].Steps = append(s.tasks[i].Steps, step)
	s.tasks[i].UpdatedAt = step.CreatedAt
	return &step, nil
}

// UpdateStep changes the title or completion of a step
func (s *Store) UpdateStep(ctx context.Context, stepID string, req backend.UpdateStepRequest) (*backend.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ti, si := s.stepIndex(stepID)
	if ti < 0 {
		return nil, fmt.Errorf("step %s: %w", stepID, backend.ErrNotFound)
	}
	step := &s.tasks[ti].Steps[si]
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return nil, fmt.Errorf("%w: step title is required", backend.ErrInvalidRequest)
		}
		step.Title = strings.TrimSpace(*req.Title)
	}
	if req.Completed != nil {
		step.Completed = *req.Completed
	}
	s.tasks[ti].UpdatedAt = s.now()
	out := *step
	return &out, nil
}

// DeleteStep removes a step
func (s *Store) DeleteStep(ctx context.Context, stepID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ti, si := s.stepIndex(stepID)
	if ti < 0 {
		return fmt.Errorf("step %s: %w", stepID, backend.ErrNotFound)
	}
	steps := s.tasks[ti].Steps
	s.tasks[ti].Steps = append(steps[:si:si], steps[si+1:]...)
	s.tasks[ti].UpdatedAt = s.now()
	return nil
}

// CreateUser registers a new user
func (s *Store) CreateUser(ctx context.Context, user backend.User) (*backend.User, error) {
	if err := utils.ValidateUsername(user.Username); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Username]; exists {
		return nil, fmt.Errorf("%w: user %s already exists", backend.ErrInvalidRequest, user.Username)
	}
	s.users[user.Username] = user
	return &user, nil
}

// GetUser returns a user by username
func (s *Store) GetUser(ctx context.Context, username string) (*backend.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", username, backend.ErrNotFound)
	}
	return &u, nil
}

// Close is a no-op for the in-memory store
func (s *Store) Close() error {
	return nil
}

func (s *Store) listIndex(id string) int {
	for i, l := range s.lists {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) taskIndex(id string) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) stepIndex(id string) (int, int) {
	for ti, t := range s.tasks {
		for si, st := range t.Steps {
			if st.ID == id {
				return ti, si
			}
		}
	}
	return -1, -1
}

// Verify interface compliance at compile time
var _ backend.Store = (*Store)(nil)
