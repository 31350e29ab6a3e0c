package views

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"myday/backend"
)

// taskEnv is what a task filter expression can see.
type taskEnv struct {
	Title       string  `expr:"title"`
	Description string  `expr:"description"`
	Status      string  `expr:"status"`
	Priority    string  `expr:"priority"`
	List        string  `expr:"list"`
	Owner       string  `expr:"owner"`
	Steps       int     `expr:"steps"`
	StepsDone   int     `expr:"steps_done"`
	Progress    float64 `expr:"progress"`
	Estimated   int     `expr:"estimated"`
	Actual      int     `expr:"actual"`
	HasDeadline bool    `expr:"has_deadline"`
	DueInDays   int     `expr:"due_in_days"`
	Overdue     bool    `expr:"overdue"`
}

// listEnv is what a list filter expression can see.
type listEnv struct {
	Title       string  `expr:"title"`
	Description string  `expr:"description"`
	Category    string  `expr:"category"`
	Color       string  `expr:"color"`
	Owner       string  `expr:"owner"`
	Tasks       int     `expr:"tasks"`
	Completed   int     `expr:"completed"`
	Progress    float64 `expr:"progress"`
}

// Where is a compiled boolean filter expression, for example
//
//	priority == "HIGH" && !overdue
//	category == "WORK" and progress < 50
type Where struct {
	source  string
	program *vm.Program
	entity  string
}

// CompileWhere compiles expression for entity ("task" or "list").
func CompileWhere(entity, expression string) (*Where, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, fmt.Errorf("%w: empty filter expression", backend.ErrInvalidRequest)
	}

	var env any
	switch entity {
	case "task":
		env = taskEnv{}
	case "list":
		env = listEnv{}
	default:
		return nil, fmt.Errorf("%w: cannot filter %q", backend.ErrInvalidRequest, entity)
	}

	program, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: filter %q: %v", backend.ErrInvalidRequest, expression, err)
	}
	return &Where{source: expression, program: program, entity: entity}, nil
}

// String returns the source expression.
func (w *Where) String() string {
	return w.source
}

func newTaskEnv(t *backend.Task, now time.Time) taskEnv {
	env := taskEnv{
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		List:        t.ListID,
		Owner:       t.Username,
		Steps:       len(t.Steps),
		Progress:    t.Progress(),
		Estimated:   t.EstimatedTime,
		Actual:      t.ActualTime,
		Overdue:     t.IsOverdue(now),
	}
	for _, s := range t.Steps {
		if s.Completed {
			env.StepsDone++
		}
	}
	if t.Deadline != nil {
		env.HasDeadline = true
		env.DueInDays = int(math.Floor(t.Deadline.Sub(now).Hours() / 24))
	}
	return env
}

func newListEnv(l *backend.List) listEnv {
	return listEnv{
		Title:       l.Title,
		Description: l.Description,
		Category:    string(l.Category),
		Color:       l.Color,
		Owner:       l.Username,
		Tasks:       l.TotalTasksCount,
		Completed:   l.CompletedTasksCount,
		Progress:    l.ProgressPercentage,
	}
}

func (w *Where) match(env any) (bool, error) {
	out, err := expr.Run(w.program, env)
	if err != nil {
		return false, fmt.Errorf("filter %q: %w", w.source, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// Tasks keeps the tasks the expression accepts.
func (w *Where) Tasks(tasks []backend.Task, now time.Time) ([]backend.Task, error) {
	if w.entity != "task" {
		return nil, fmt.Errorf("filter %q was compiled for %ss", w.source, w.entity)
	}
	result := []backend.Task{}
	for i := range tasks {
		ok, err := w.match(newTaskEnv(&tasks[i], now))
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, tasks[i])
		}
	}
	return result, nil
}

// Lists keeps the lists the expression accepts.
func (w *Where) Lists(lists []backend.List) ([]backend.List, error) {
	if w.entity != "list" {
		return nil, fmt.Errorf("filter %q was compiled for %ss", w.source, w.entity)
	}
	result := []backend.List{}
	for i := range lists {
		ok, err := w.match(newListEnv(&lists[i]))
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, lists[i])
		}
	}
	return result, nil
}
