package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"myday/backend"
	"myday/internal/listsync"
	"myday/internal/query"
	"myday/internal/utils"
	"myday/internal/views"
)

type tasksResponse struct {
	Tasks       []backend.Task   `json:"tasks"`
	List        string           `json:"list,omitempty"`
	CurrentPage int              `json:"currentPage"`
	TotalPages  int              `json:"totalPages"`
	Stats       *views.TaskStats `json:"stats,omitempty"`
	Result      string           `json:"result"`
}

type taskActionResponse struct {
	Action string        `json:"action"`
	Task   *backend.Task `json:"task"`
	Result string        `json:"result"`
}

type stepActionResponse struct {
	Action string        `json:"action"`
	Step   *backend.Step `json:"step"`
	Result string        `json:"result"`
}

var validStatuses = []string{string(backend.StatusTodo), string(backend.StatusInProgress), string(backend.StatusCompleted)}

// parseStatus accepts TODO, IN_PROGRESS (or IN-PROGRESS) and COMPLETED (or DONE)
func parseStatus(s string) (backend.TaskStatus, error) {
	normalized := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_")
	if normalized == "DONE" {
		normalized = string(backend.StatusCompleted)
	}
	status := backend.TaskStatus(normalized)
	if utils.ValidateStatus(status) != nil {
		return "", utils.ErrInvalidStatus(s, validStatuses)
	}
	return status, nil
}

func parsePriority(s string) (backend.Priority, error) {
	p := backend.Priority(strings.ToUpper(strings.TrimSpace(s)))
	if err := utils.ValidatePriority(p); err != nil {
		return "", err
	}
	return p, nil
}

// newTasksCmd creates the 'tasks' command showing one page of tasks
func newTasksCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Show tasks",
		Long: `Show one page of tasks.

Without flags it shows your unlisted tasks. --list shows the tasks of one
list and --unlisted the unlisted tasks of every user.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			return doTasks(cmd.Context(), cmd, a)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addPagingFlags(cmd, "createdAt, updatedAt, title, deadline or priority")
	cmd.Flags().StringP("list", "l", "", "Show the tasks of this list (title or ID)")
	cmd.Flags().Bool("mine", false, "Show your unlisted tasks (default)")
	cmd.Flags().Bool("unlisted", false, "Show the unlisted tasks of every user")
	cmd.Flags().StringP("status", "s", "", "Only tasks with this status (TODO, IN_PROGRESS, COMPLETED)")
	cmd.Flags().StringP("priority", "p", "", "Only tasks with this priority (LOW, MEDIUM, HIGH)")
	cmd.MarkFlagsMutuallyExclusive("list", "mine", "unlisted")
	return cmd
}

func doTasks(ctx context.Context, cmd *cobra.Command, a *app) error {
	if ctx == nil {
		ctx = context.Background()
	}

	initial := backend.TaskFilter{
		CurrentPage:   1,
		PageSize:      a.conf.PageSize,
		SortBy:        "createdAt",
		SortDirection: backend.SortDesc,
	}
	var opts []query.Option
	heading := "My tasks"

	listRef, _ := cmd.Flags().GetString("list")
	unlisted, _ := cmd.Flags().GetBool("unlisted")
	switch {
	case listRef != "":
		list, err := findList(ctx, a, listRef)
		if err != nil {
			return err
		}
		initial.ListID = list.ID
		heading = "Tasks in " + list.Title
	case unlisted:
		initial.Unlisted = true
		heading = "Unlisted tasks"
	default:
		opt, err := a.identityOption()
		if err != nil {
			return err
		}
		opts = append(opts, opt)
		initial.Unlisted = true
	}

	state, err := query.New(initial, opts...)
	if err != nil {
		return err
	}
	defer state.Close()

	patch := pagingPatch(cmd)
	if s, _ := cmd.Flags().GetString("status"); s != "" {
		status, err := parseStatus(s)
		if err != nil {
			return err
		}
		patch["taskStatus"] = status
	}
	if p, _ := cmd.Flags().GetString("priority"); p != "" {
		priority, err := parsePriority(p)
		if err != nil {
			return err
		}
		patch["taskPriority"] = priority
	}
	if err := state.Update(patch); err != nil {
		return err
	}

	snap, err := fetchPage[backend.TaskFilter, backend.Task](ctx, a, listsync.EntityTask, state)
	if err != nil {
		return err
	}

	now := a.now()
	search, _ := cmd.Flags().GetString("search")
	tasks := views.SearchTasks(snap.Items, search)
	if expr, _ := cmd.Flags().GetString("where"); expr != "" {
		where, err := views.CompileWhere(listsync.EntityTask, expr)
		if err != nil {
			return err
		}
		if tasks, err = where.Tasks(tasks, now); err != nil {
			return err
		}
	}

	page := state.Current().CurrentPage
	withStats, _ := cmd.Flags().GetBool("stats")
	if a.jsonOutput() {
		resp := tasksResponse{Tasks: tasks, CurrentPage: page, TotalPages: snap.TotalPages, Result: ResultInfoOnly}
		if listRef != "" {
			resp.List = state.Current().ListID
		}
		if withStats {
			stats := views.ComputeTaskStats(tasks, now)
			resp.Stats = &stats
		}
		return writeJSON(a.stdout, resp)
	}

	r := views.NewRenderer(a.stdout, now)
	if len(tasks) == 0 {
		_, _ = fmt.Fprintf(a.stdout, "%s: no tasks\n", heading)
	} else {
		open, done := views.Upcoming(tasks)
		_, _ = fmt.Fprintf(a.stdout, "%s (%d):\n", heading, len(open))
		r.RenderTasks(open)
		if len(done) > 0 {
			_, _ = fmt.Fprintf(a.stdout, "\nCompleted (%d):\n", len(done))
			r.RenderTasks(done)
		}
		r.RenderPageFooter(page, snap.TotalPages)
	}
	if withStats {
		r.RenderTaskStats(views.ComputeTaskStats(tasks, now))
	}
	a.printResult(ResultInfoOnly)
	return nil
}

// newTaskCmd creates the 'task' command for changing one task
func newTaskCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Add tasks and change their status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	taskCmd.AddCommand(newTaskAddCmd(stdout, stderr, cfg))
	taskCmd.AddCommand(newTaskStatusCmd(stdout, stderr, cfg))
	return taskCmd
}

// newTaskAddCmd creates the 'task add' subcommand
func newTaskAddCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Long:  "Add a task to a list, or an unlisted task of your own when --list is not given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			return doTaskAdd(context.Background(), cmd, a, args[0])
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringP("list", "l", "", "List to add the task to (title or ID)")
	cmd.Flags().StringP("priority", "p", string(backend.PriorityMedium), "Priority: LOW, MEDIUM or HIGH")
	cmd.Flags().String("deadline", "", "Deadline: YYYY-MM-DD, today, tomorrow or +Nd/+Nw/+Nm")
	cmd.Flags().Int("estimate", 0, "Estimated time in minutes (1-1440)")
	cmd.Flags().Int("actual", 0, "Time already spent in minutes")
	cmd.Flags().StringP("description", "d", "", "Task description")
	return cmd
}

func doTaskAdd(ctx context.Context, cmd *cobra.Command, a *app, title string) error {
	p, _ := cmd.Flags().GetString("priority")
	priority, err := parsePriority(p)
	if err != nil {
		return err
	}
	deadlineFlag, _ := cmd.Flags().GetString("deadline")
	deadline, err := utils.ParseDateFlag(deadlineFlag, a.now())
	if err != nil {
		return err
	}
	estimate, _ := cmd.Flags().GetInt("estimate")
	actual, _ := cmd.Flags().GetInt("actual")
	description, _ := cmd.Flags().GetString("description")

	req := backend.CreateTaskRequest{
		Title:         title,
		Description:   description,
		Priority:      priority,
		EstimatedTime: estimate,
		ActualTime:    actual,
		Deadline:      deadline,
	}

	if listRef, _ := cmd.Flags().GetString("list"); listRef != "" {
		list, err := findList(ctx, a, listRef)
		if err != nil {
			return err
		}
		req.ListID = list.ID
	} else {
		user, err := a.session.User(ctx)
		if err != nil {
			return err
		}
		req.Username = user.Username
	}

	task, err := a.store.CreateTask(ctx, req)
	if err != nil {
		return err
	}

	if a.jsonOutput() {
		return writeJSON(a.stdout, taskActionResponse{Action: "add", Task: task, Result: ResultActionCompleted})
	}
	_, _ = fmt.Fprintf(a.stdout, "Created task: %s (id: %s)\n", task.Title, task.ID)
	a.printResult(ResultActionCompleted)
	return nil
}

// newTaskStatusCmd creates the 'task status' subcommand
func newTaskStatusCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id> <status>",
		Short: "Change the status of a task (TODO, IN_PROGRESS, COMPLETED)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := parseStatus(args[1])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx := context.Background()
			task, err := resolveTask(ctx, a.store, args[0])
			if err != nil {
				return err
			}
			updated, err := a.store.UpdateTaskStatus(ctx, task.ID, status)
			if err != nil {
				return err
			}

			if a.jsonOutput() {
				return writeJSON(a.stdout, taskActionResponse{Action: "status", Task: updated, Result: ResultActionCompleted})
			}
			_, _ = fmt.Fprintf(a.stdout, "Task %s is now %s\n", updated.Title, updated.Status)
			a.printResult(ResultActionCompleted)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newStepCmd creates the 'step' command for the checklist of a task
func newStepCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	stepCmd := &cobra.Command{
		Use:   "step",
		Short: "Manage the steps of a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	run := func(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			return fn(context.Background(), a, args)
		}
	}

	stepCmd.AddCommand(&cobra.Command{
		Use:   "add <task-id> <title>",
		Short: "Add a step to a task",
		Args:  cobra.ExactArgs(2),
		RunE:  run(doStepAdd),
	})
	stepCmd.AddCommand(&cobra.Command{
		Use:   "toggle <step-id>",
		Short: "Mark a step done, or open again",
		Args:  cobra.ExactArgs(1),
		RunE:  run(doStepToggle),
	})
	stepCmd.AddCommand(&cobra.Command{
		Use:   "delete <step-id>",
		Short: "Delete a step",
		Args:  cobra.ExactArgs(1),
		RunE:  run(doStepDelete),
	})
	return stepCmd
}

func doStepAdd(ctx context.Context, a *app, args []string) error {
	task, err := resolveTask(ctx, a.store, args[0])
	if err != nil {
		return err
	}
	step, err := a.store.CreateStep(ctx, backend.CreateStepRequest{TaskID: task.ID, Title: args[1]})
	if err != nil {
		return err
	}
	return a.stepDone("add", step, fmt.Sprintf("Added step: %s (id: %s)", step.Title, step.ID))
}

func doStepToggle(ctx context.Context, a *app, args []string) error {
	step, err := resolveStep(ctx, a.store, args[0])
	if err != nil {
		return err
	}
	completed := !step.Completed
	updated, err := a.store.UpdateStep(ctx, step.ID, backend.UpdateStepRequest{Completed: &completed})
	if err != nil {
		return err
	}
	state := "open"
	if updated.Completed {
		state = "done"
	}
	return a.stepDone("toggle", updated, fmt.Sprintf("Step %s is now %s", updated.Title, state))
}

func doStepDelete(ctx context.Context, a *app, args []string) error {
	step, err := resolveStep(ctx, a.store, args[0])
	if err != nil {
		return err
	}
	if err := a.store.DeleteStep(ctx, step.ID); err != nil {
		return err
	}
	return a.stepDone("delete", step, "Deleted step: "+step.Title)
}

func (a *app) stepDone(action string, step *backend.Step, message string) error {
	if a.jsonOutput() {
		return writeJSON(a.stdout, stepActionResponse{Action: action, Step: step, Result: ResultActionCompleted})
	}
	_, _ = fmt.Fprintln(a.stdout, message)
	a.printResult(ResultActionCompleted)
	return nil
}
