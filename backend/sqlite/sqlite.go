package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"myday/backend"
	"myday/internal/utils"
)

func init() {
	backend.RegisterWithPriority("sqlite", func(opts backend.Options) (backend.Store, error) {
		return New(opts.SQLitePath)
	}, 10)
}

// timeLayout is fixed-width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Backend implements backend.Store using SQLite
type Backend struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new SQLite backend and initializes the database schema
func New(path string) (*Backend, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	b := &Backend{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := b.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return b, nil
}

// initSchema creates the database tables if they don't exist
func (b *Backend) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			email TEXT DEFAULT '',
			full_name TEXT DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS lists (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT DEFAULT '',
			category TEXT NOT NULL,
			color TEXT DEFAULT '',
			username TEXT NOT NULL,
			created TEXT NOT NULL,
			modified TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			list_id TEXT,
			username TEXT DEFAULT '',
			title TEXT NOT NULL,
			description TEXT DEFAULT '',
			deadline TEXT,
			status TEXT NOT NULL DEFAULT 'TODO',
			priority TEXT NOT NULL DEFAULT 'MEDIUM',
			estimated_time INTEGER DEFAULT 0,
			actual_time INTEGER DEFAULT 0,
			created TEXT NOT NULL,
			modified TEXT NOT NULL,
			FOREIGN KEY (list_id) REFERENCES lists(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS steps (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			title TEXT NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			created TEXT NOT NULL,
			FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_lists_username ON lists(username);
		CREATE INDEX IF NOT EXISTS idx_tasks_list_id ON tasks(list_id);
		CREATE INDEX IF NOT EXISTS idx_tasks_username ON tasks(username);
		CREATE INDEX IF NOT EXISTS idx_steps_task_id ON steps(task_id);
	`

	// Enable foreign keys
	if _, err := b.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	_, err := b.db.Exec(schema)
	return err
}

// Close closes the database connection
func (b *Backend) Close() error {
	return b.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// orderClause maps a canonical sort key to an ORDER BY clause.
// Rows without a deadline sort first ascending, matching backend.LessTasks.
func orderClause(p backend.Paging, forTasks bool) string {
	dir := "ASC"
	if p.Desc {
		dir = "DESC"
	}
	var cols []string
	switch p.SortKey {
	case "updatedAt":
		cols = []string{"modified"}
	case "title":
		cols = []string{"LOWER(title)"}
	case "deadline":
		if forTasks {
			cols = []string{"(deadline IS NOT NULL)", "deadline"}
		}
	case "priority":
		if forTasks {
			cols = []string{"CASE priority WHEN 'HIGH' THEN 3 WHEN 'MEDIUM' THEN 2 WHEN 'LOW' THEN 1 ELSE 0 END"}
		}
	}
	if cols == nil {
		cols = []string{"created"}
	}
	for i, c := range cols {
		cols[i] = c + " " + dir
	}
	return " ORDER BY " + strings.Join(cols, ", ") + ", rowid ASC"
}

// whereBuilder accumulates AND-ed conditions and their arguments
type whereBuilder struct {
	conds []string
	args  []any
}

func (w *whereBuilder) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *whereBuilder) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// FetchLists returns one page of lists with their tasks and counters
func (b *Backend) FetchLists(ctx context.Context, filter backend.ListFilter) (backend.Page[backend.List], error) {
	paging, err := filter.Paging()
	if err != nil {
		return backend.Page[backend.List]{}, err
	}

	var w whereBuilder
	if filter.Username != "" {
		w.add("username = ?", filter.Username)
	}
	if filter.Category != "" {
		w.add("category = ?", string(filter.Category))
	}

	var total int
	if err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM lists"+w.String(), w.args...).Scan(&total); err != nil {
		return backend.Page[backend.List]{}, fmt.Errorf("count lists: %w", err)
	}

	query := "SELECT id, title, description, category, color, username, created, modified FROM lists" +
		w.String() + orderClause(paging, false) + " LIMIT ? OFFSET ?"
	args := append(append([]any{}, w.args...), paging.Size, paging.Offset)

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return backend.Page[backend.List]{}, fmt.Errorf("query lists: %w", err)
	}
	lists := []backend.List{}
	for rows.Next() {
		var l backend.List
		var category, created, modified string
		if err := rows.Scan(&l.ID, &l.Title, &l.Description, &category, &l.Color, &l.Username, &created, &modified); err != nil {
			_ = rows.Close()
			return backend.Page[backend.List]{}, err
		}
		l.Category = backend.Category(category)
		l.CreatedAt = parseTime(created)
		l.UpdatedAt = parseTime(modified)
		lists = append(lists, l)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return backend.Page[backend.List]{}, err
	}

	// Tasks are loaded after the list rows are closed; the pool has one connection.
	ids := make([]any, len(lists))
	for i, l := range lists {
		ids[i] = l.ID
	}
	tasks, err := b.queryTasks(ctx, "WHERE list_id IN ("+placeholders(len(ids))+") ORDER BY created ASC, rowid ASC", ids...)
	if err != nil {
		return backend.Page[backend.List]{}, err
	}
	for i := range lists {
		lists[i].Tasks = []backend.Task{}
		for _, t := range tasks {
			if t.ListID == lists[i].ID {
				lists[i].Tasks = append(lists[i].Tasks, t)
			}
		}
		backend.ListCounters(&lists[i])
	}

	return backend.Page[backend.List]{
		Content:       lists,
		TotalPages:    backend.TotalPages(total, paging.Size),
		TotalElements: total,
		CurrentPage:   paging.Page,
		PageSize:      paging.Size,
	}, nil
}

// FetchTasks returns one page of tasks
func (b *Backend) FetchTasks(ctx context.Context, filter backend.TaskFilter) (backend.Page[backend.Task], error) {
	paging, err := filter.Paging()
	if err != nil {
		return backend.Page[backend.Task]{}, err
	}

	var w whereBuilder
	if filter.ListID != "" {
		w.add("list_id = ?", filter.ListID)
	}
	if filter.Unlisted {
		w.add("list_id IS NULL")
	}
	if filter.Username != "" {
		w.add("username = ?", filter.Username)
	}
	if filter.Status != "" {
		w.add("status = ?", string(filter.Status))
	}
	if filter.Priority != "" {
		w.add("priority = ?", string(filter.Priority))
	}

	var total int
	if err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks"+w.String(), w.args...).Scan(&total); err != nil {
		return backend.Page[backend.Task]{}, fmt.Errorf("count tasks: %w", err)
	}

	args := append(append([]any{}, w.args...), paging.Size, paging.Offset)
	tasks, err := b.queryTasks(ctx, strings.TrimPrefix(w.String(), " ")+orderClause(paging, true)+" LIMIT ? OFFSET ?", args...)
	if err != nil {
		return backend.Page[backend.Task]{}, err
	}

	return backend.Page[backend.Task]{
		Content:       tasks,
		TotalPages:    backend.TotalPages(total, paging.Size),
		TotalElements: total,
		CurrentPage:   paging.Page,
		PageSize:      paging.Size,
	}, nil
}

func placeholders(n int) string {
	if n == 0 {
		return "NULL"
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

const taskColumns = `id, list_id, username, title, description, deadline, status, priority,
	estimated_time, actual_time, created, modified`

// queryTasks runs a task query with the given tail and attaches the steps
func (b *Backend) queryTasks(ctx context.Context, tail string, args ...any) ([]backend.Task, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT "+taskColumns+" FROM tasks "+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	tasks := []backend.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := b.attachSteps(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// scanner is implemented by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

// scanTask scans a task from a row
func scanTask(row scanner) (*backend.Task, error) {
	var t backend.Task
	var listID, deadline sql.NullString
	var status, priority, created, modified string

	err := row.Scan(&t.ID, &listID, &t.Username, &t.Title, &t.Description, &deadline, &status, &priority,
		&t.EstimatedTime, &t.ActualTime, &created, &modified)
	if err != nil {
		return nil, err
	}

	t.ListID = listID.String
	t.Status = backend.TaskStatus(status)
	t.Priority = backend.Priority(priority)
	if deadline.Valid {
		d := parseTime(deadline.String)
		t.Deadline = &d
	}
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(modified)
	t.Steps = []backend.Step{}
	return &t, nil
}

// attachSteps loads the steps of tasks in one query
func (b *Backend) attachSteps(ctx context.Context, tasks []backend.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	index := make(map[string]int, len(tasks))
	ids := make([]any, len(tasks))
	for i, t := range tasks {
		index[t.ID] = i
		ids[i] = t.ID
	}

	rows, err := b.db.QueryContext(ctx,
		"SELECT id, task_id, title, completed, created FROM steps WHERE task_id IN ("+placeholders(len(ids))+") ORDER BY created ASC, rowid ASC",
		ids...,
	)
	if err != nil {
		return fmt.Errorf("query steps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var s backend.Step
		var created string
		if err := rows.Scan(&s.ID, &s.TaskID, &s.Title, &s.Completed, &created); err != nil {
			return err
		}
		s.CreatedAt = parseTime(created)
		i := index[s.TaskID]
		tasks[i].Steps = append(tasks[i].Steps, s)
	}
	return rows.Err()
}

// CreateList creates a new list
func (b *Backend) CreateList(ctx context.Context, req backend.CreateListRequest) (*backend.List, error) {
	if err := utils.ValidateCreateList(req); err != nil {
		return nil, err
	}

	now := b.now()
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

	_, err := b.db.ExecContext(ctx,
		"INSERT INTO lists (id, title, description, category, color, username, created, modified) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		l.ID, l.Title, l.Description, string(l.Category), l.Color, l.Username, formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// DeleteList removes a list with its tasks and their steps
func (b *Backend) DeleteList(ctx context.Context, listID string) error {
	_, err := b.db.ExecContext(ctx,
		"DELETE FROM steps WHERE task_id IN (SELECT id FROM tasks WHERE list_id = ?)", listID)
	if err != nil {
		return err
	}
	if _, err := b.db.ExecContext(ctx, "DELETE FROM tasks WHERE list_id = ?", listID); err != nil {
		return err
	}
	res, err := b.db.ExecContext(ctx, "DELETE FROM lists WHERE id = ?", listID)
	if err != nil {
		return err
	}
	return requireAffected(res, "list", listID)
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, backend.ErrNotFound)
	}
	return nil
}

// CreateTask creates a new task
func (b *Backend) CreateTask(ctx context.Context, req backend.CreateTaskRequest) (*backend.Task, error) {
	now := b.now()
	if err := utils.ValidateCreateTask(req, now); err != nil {
		return nil, err
	}

	if req.ListID != "" {
		var exists int
		err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM lists WHERE id = ?", req.ListID).Scan(&exists)
		if err != nil {
			return nil, err
		}
		if exists == 0 {
			return nil, fmt.Errorf("list %s: %w", req.ListID, backend.ErrNotFound)
		}
	}

	priority := req.Priority
	if priority == "" {
		priority = backend.PriorityMedium
	}
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

	var listID, deadline sql.NullString
	if t.ListID != "" {
		listID = sql.NullString{String: t.ListID, Valid: true}
	}
	if t.Deadline != nil {
		deadline = sql.NullString{String: formatTime(*t.Deadline), Valid: true}
	}

	_, err := b.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, listID, t.Username, t.Title, t.Description, deadline, string(t.Status), string(t.Priority),
		t.EstimatedTime, t.ActualTime, formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// getTask returns a task with its steps
func (b *Backend) getTask(ctx context.Context, taskID string) (*backend.Task, error) {
	tasks, err := b.queryTasks(ctx, "WHERE id = ?", taskID)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("task %s: %w", taskID, backend.ErrNotFound)
	}
	return &tasks[0], nil
}

// UpdateTaskStatus changes the status of a task
func (b *Backend) UpdateTaskStatus(ctx context.Context, taskID string, status backend.TaskStatus) (*backend.Task, error) {
	if err := utils.ValidateStatus(status); err != nil {
		return nil, err
	}

	res, err := b.db.ExecContext(ctx,
		"UPDATE tasks SET status = ?, modified = ? WHERE id = ?",
		string(status), formatTime(b.now()), taskID,
	)
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res, "task", taskID); err != nil {
		return nil, err
	}
	return b.getTask(ctx, taskID)
}

// touchTask bumps the modified time of a task
func (b *Backend) touchTask(ctx context.Context, taskID string, at time.Time) error {
	_, err := b.db.ExecContext(ctx, "UPDATE tasks SET modified = ? WHERE id = ?", formatTime(at), taskID)
	return err
}

// CreateStep adds a step to a task
func (b *Backend) CreateStep(ctx context.Context, req backend.CreateStepRequest) (*backend.Step, error) {
	if err := utils.ValidateCreateStep(req); err != nil {
		return nil, err
	}
	if _, err := b.getTask(ctx, req.TaskID); err != nil {
		return nil, err
	}

	now := b.now()
	s := backend.Step{
		ID:        backend.GenerateID(),
		TaskID:    req.TaskID,
		Title:     strings.TrimSpace(req.Title),
		CreatedAt: now,
	}
	_, err := b.db.ExecContext(ctx,
		"INSERT INTO steps (id, task_id, title, completed, created) VALUES (?, ?, ?, 0, ?)",
		s.ID, s.TaskID, s.Title, formatTime(now),
	)
	if err != nil {
		return nil, err
	}
	if err := b.touchTask(ctx, s.TaskID, now); err != nil {
		return nil, err
	}
	return &s, nil
}

// getStep returns a step by ID
func (b *Backend) getStep(ctx context.Context, stepID string) (*backend.Step, error) {
	var s backend.Step
	var created string
	err := b.db.QueryRowContext(ctx,
		"SELECT id, task_id, title, completed, created FROM steps WHERE id = ?", stepID,
	).Scan(&s.ID, &s.TaskID, &s.Title, &s.Completed, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("step %s: %w", stepID, backend.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	s.CreatedAt = parseTime(created)
	return &s, nil
}

// UpdateStep changes the title or completion of a step
func (b *Backend) UpdateStep(ctx context.Context, stepID string, req backend.UpdateStepRequest) (*backend.Step, error) {
	s, err := b.getStep(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return nil, fmt.Errorf("%w: step title is required", backend.ErrInvalidRequest)
		}
		s.Title = strings.TrimSpace(*req.Title)
	}
	if req.Completed != nil {
		s.Completed = *req.Completed
	}

	_, err = b.db.ExecContext(ctx, "UPDATE steps SET title = ?, completed = ? WHERE id = ?", s.Title, s.Completed, stepID)
	if err != nil {
		return nil, err
	}
	if err := b.touchTask(ctx, s.TaskID, b.now()); err != nil {
		return nil, err
	}
	return s, nil
}

// DeleteStep removes a step
func (b *Backend) DeleteStep(ctx context.Context, stepID string) error {
	s, err := b.getStep(ctx, stepID)
	if err != nil {
		return err
	}
	if _, err := b.db.ExecContext(ctx, "DELETE FROM steps WHERE id = ?", stepID); err != nil {
		return err
	}
	return b.touchTask(ctx, s.TaskID, b.now())
}

// CreateUser registers a new user
func (b *Backend) CreateUser(ctx context.Context, user backend.User) (*backend.User, error) {
	if err := utils.ValidateUsername(user.Username); err != nil {
		return nil, err
	}

	var exists int
	if err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE username = ?", user.Username).Scan(&exists); err != nil {
		return nil, err
	}
	if exists > 0 {
		return nil, fmt.Errorf("%w: user %s already exists", backend.ErrInvalidRequest, user.Username)
	}

	_, err := b.db.ExecContext(ctx,
		"INSERT INTO users (username, email, full_name) VALUES (?, ?, ?)",
		user.Username, user.Email, user.FullName,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser returns a user by username
func (b *Backend) GetUser(ctx context.Context, username string) (*backend.User, error) {
	var u backend.User
	err := b.db.QueryRowContext(ctx,
		"SELECT username, email, full_name FROM users WHERE username = ?", username,
	).Scan(&u.Username, &u.Email, &u.FullName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", username, backend.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Verify interface compliance at compile time
var _ backend.Store = (*Backend)(nil)
