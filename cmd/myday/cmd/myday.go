package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"myday/backend"
	_ "myday/backend/mock"
	_ "myday/backend/sqlite"
	"myday/internal/breaker"
	"myday/internal/config"
	"myday/internal/listsync"
	"myday/internal/query"
	"myday/internal/session"
	"myday/internal/utils"
)

// Version is set at build time
var Version = "dev"

// Result codes for CLI output (used in no-prompt mode)
const (
	ResultActionCompleted = "ACTION_COMPLETED"
	ResultInfoOnly        = "INFO_ONLY"
	ResultError           = "ERROR"
)

// Config holds command line settings. The path fields override the
// config file and exist mostly for tests.
type Config struct {
	NoPrompt     bool
	Verbose      bool
	OutputFormat string
	ConfigPath   string // config file, default $XDG_CONFIG_HOME/myday/config.yaml
	DBPath       string // overrides sqlite.path
	SessionPath  string // overrides the session file next to the config
	Backend      string // overrides backend
	Now          func() time.Time
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	rootCmd := NewMyDay(stdout, stderr, cfg)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		if containsFlag(args, "--json") {
			outputErrorJSON(err, stdout)
		} else {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
			if (cfg != nil && cfg.NoPrompt) || containsFlag(args, "-y", "--no-prompt") {
				_, _ = fmt.Fprintln(stdout, ResultError)
			}
		}
		return 1
	}
	return 0
}

// containsFlag checks if args contain one of the given flags
func containsFlag(args []string, flags ...string) bool {
	for _, arg := range args {
		for _, f := range flags {
			if arg == f {
				return true
			}
		}
	}
	return false
}

// NewMyDay creates the root command with injectable IO
func NewMyDay(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	if cfg == nil {
		cfg = &Config{}
	}

	cmd := &cobra.Command{
		Use:     "myday",
		Short:   "Lists, tasks and steps for your day",
		Long:    "myday keeps task lists, unlisted tasks and their steps, paged and sorted from a local store.",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("no-prompt", "y", false, "Disable interactive prompts")
	cmd.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose/debug output")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().String("config", "", "Config file (default $XDG_CONFIG_HOME/myday/config.yaml)")
	cmd.PersistentFlags().String("backend", "", "Data source: sqlite or mock")

	cmd.AddCommand(newListsCmd(stdout, stderr, cfg))
	cmd.AddCommand(newListCmd(stdout, stderr, cfg))
	cmd.AddCommand(newTasksCmd(stdout, stderr, cfg))
	cmd.AddCommand(newTaskCmd(stdout, stderr, cfg))
	cmd.AddCommand(newStepCmd(stdout, stderr, cfg))
	cmd.AddCommand(newSignupCmd(stdout, stderr, cfg))
	cmd.AddCommand(newLoginCmd(stdout, stderr, cfg))
	cmd.AddCommand(newLogoutCmd(stdout, stderr, cfg))
	cmd.AddCommand(newWhoamiCmd(stdout, stderr, cfg))
	cmd.AddCommand(newTUICmd(stdout, stderr, cfg))
	cmd.AddCommand(newConfigCmd(stdout, stderr, cfg))
	cmd.AddCommand(newVersionCmd(stdout))

	return cmd
}

// applyGlobalFlags copies persistent flags into cfg
func applyGlobalFlags(cmd *cobra.Command, cfg *Config) {
	if noPrompt, _ := cmd.Flags().GetBool("no-prompt"); noPrompt {
		cfg.NoPrompt = true
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Verbose = true
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		cfg.OutputFormat = "json"
	}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg.ConfigPath = path
	}
	if name, _ := cmd.Flags().GetString("backend"); name != "" {
		cfg.Backend = name
	}
}

// app holds what a command needs: config, store and session
type app struct {
	conf      *config.Config
	cli       *Config
	store     backend.Store
	storeName string
	session   *session.Session
	logger    *utils.Logger
	stdout    io.Writer
	stderr    io.Writer
	now       func() time.Time
	closeOnce sync.Once
}

// openApp loads the config, opens the store (falling back to demo data)
// and restores the session.
func openApp(cmd *cobra.Command, base *Config, stdout, stderr io.Writer) (*app, error) {
	cfg := *base
	applyGlobalFlags(cmd, &cfg)

	conf, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	conf.ApplyFlags(cfg.Verbose, cfg.OutputFormat, cfg.Backend)
	if cfg.DBPath != "" {
		conf.SQLite.Path = cfg.DBPath
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	logger := utils.NewLogger(stderr)
	logger.SetVerbose(conf.Logging.Verbose)

	if conf.Backend == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(conf.SQLite.Path), 0755); err != nil {
			logger.Debug("create data directory: %v", err)
		}
	}
	res, err := backend.Open(conf.Backend, "mock", backend.Options{SQLitePath: conf.SQLite.Path})
	if err != nil {
		return nil, err
	}
	if res.FallbackErr != nil {
		logger.Warn("%v", utils.ErrStoreFallback(conf.Backend, res.FallbackErr))
	}
	logger.Debug("using %s store", res.Name)

	sessionPath := cfg.SessionPath
	if sessionPath == "" {
		sessionPath = session.DefaultPath(filepath.Dir(conf.Path()))
	}
	sess := session.New(sessionPath, res.Store, logger)
	if err := sess.Restore(); err != nil {
		logger.Warn("could not restore session: %v", err)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &app{
		conf:      conf,
		cli:       &cfg,
		store:     res.Store,
		storeName: res.Name,
		session:   sess,
		logger:    logger,
		stdout:    stdout,
		stderr:    stderr,
		now:       now,
	}, nil
}

// Close closes the store. Safe to call more than once.
func (a *app) Close() error {
	var err error
	a.closeOnce.Do(func() {
		err = a.store.Close()
	})
	return err
}

func (a *app) jsonOutput() bool {
	return a.conf.OutputFormat == "json"
}

// cacheOptions configures the list caches of one command
func (a *app) cacheOptions() []listsync.Option {
	opts := []listsync.Option{
		listsync.WithLogger(a.logger),
		listsync.WithTimeout(a.conf.GetFetchTimeout()),
	}
	if a.conf.Breaker.Threshold > 0 {
		opts = append(opts, listsync.WithBreaker(breaker.New(a.conf.Breaker.Threshold, a.conf.GetBreakerCooldown())))
	}
	return opts
}

// identityOption binds a query to the session, or fails when nobody is signed in
func (a *app) identityOption() (query.Option, error) {
	if _, ok := a.session.Identity(); !ok {
		return nil, utils.ErrNotSignedIn()
	}
	return query.WithIdentity(a.session), nil
}

// fetchPage syncs a cache to state and returns the settled page
func fetchPage[Q comparable, T any](ctx context.Context, a *app, kind string, state *query.State[Q]) (listsync.Snapshot[T], error) {
	cache, err := listsync.New[Q, T](a.store, kind, state.Current(), a.cacheOptions()...)
	if err != nil {
		return listsync.Snapshot[T]{}, err
	}
	defer cache.Close()
	unbind := listsync.Bind(cache, state)
	defer unbind()

	a.logger.Debug("fetching %s", cache)
	if err := cache.Wait(ctx); err != nil {
		return listsync.Snapshot[T]{}, err
	}
	return cache.Snapshot(), nil
}

// addPagingFlags adds the flags that edit the paging part of a query
func addPagingFlags(cmd *cobra.Command, sortHelp string) {
	cmd.Flags().Int("page", 1, "Page to show")
	cmd.Flags().Int("page-size", 0, "Items per page (default page_size from config)")
	cmd.Flags().String("sort", "", "Sort by "+sortHelp)
	cmd.Flags().String("order", "", "Sort order: asc or desc")
	cmd.Flags().String("search", "", "Only show items whose title or description contains this text")
	cmd.Flags().String("where", "", "Only show items matching an expression, e.g. 'progress < 50'")
	cmd.Flags().Bool("stats", false, "Print counters for the page")
}

// pagingPatch turns the changed paging flags into a query patch
func pagingPatch(cmd *cobra.Command) query.Patch {
	patch := query.Patch{}
	if cmd.Flags().Changed("page") {
		page, _ := cmd.Flags().GetInt("page")
		patch["currentPage"] = page
	}
	if cmd.Flags().Changed("page-size") {
		size, _ := cmd.Flags().GetInt("page-size")
		patch["pageSize"] = size
	}
	if sortBy, _ := cmd.Flags().GetString("sort"); sortBy != "" {
		patch["sortBy"] = sortBy
	}
	if order, _ := cmd.Flags().GetString("order"); order != "" {
		patch["sortDirection"] = strings.ToUpper(order)
	}
	return patch
}

// eachTask walks every task in the store until fn returns false
func eachTask(ctx context.Context, store backend.Store, fn func(t backend.Task) bool) error {
	for page := 1; ; page++ {
		result, err := store.FetchTasks(ctx, backend.TaskFilter{
			CurrentPage:   page,
			PageSize:      config.MaxPageSize,
			SortBy:        "createdAt",
			SortDirection: backend.SortAsc,
		})
		if err != nil {
			return err
		}
		for _, t := range result.Content {
			if !fn(t) {
				return nil
			}
		}
		if page >= result.TotalPages {
			return nil
		}
	}
}

// matchID reports whether ref names id, either fully or as a prefix of at
// least four characters.
func matchID(id, ref string) bool {
	return id == ref || (len(ref) >= 4 && strings.HasPrefix(id, ref))
}

// resolveTask finds a task by ID or ID prefix
func resolveTask(ctx context.Context, store backend.Store, ref string) (*backend.Task, error) {
	var found []backend.Task
	err := eachTask(ctx, store, func(t backend.Task) bool {
		if t.ID == ref {
			found = []backend.Task{t}
			return false
		}
		if matchID(t.ID, ref) {
			found = append(found, t)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, utils.WrapWithSuggestion(fmt.Errorf("task %s: %w", ref, backend.ErrNotFound),
			"Use 'myday tasks' to see task IDs")
	case 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("%w: task ID %s is ambiguous (%d matches)", backend.ErrInvalidRequest, ref, len(found))
	}
}

// resolveStep finds a step by ID or ID prefix
func resolveStep(ctx context.Context, store backend.Store, ref string) (*backend.Step, error) {
	var found []backend.Step
	err := eachTask(ctx, store, func(t backend.Task) bool {
		for _, s := range t.Steps {
			if s.ID == ref {
				found = []backend.Step{s}
				return false
			}
			if matchID(s.ID, ref) {
				found = append(found, s)
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, utils.WrapWithSuggestion(fmt.Errorf("step %s: %w", ref, backend.ErrNotFound),
			"Use 'myday tasks --json' to see step IDs")
	case 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("%w: step ID %s is ambiguous (%d matches)", backend.ErrInvalidRequest, ref, len(found))
	}
}

// findList finds one of the visible lists by ID, ID prefix or title
func findList(ctx context.Context, a *app, ref string) (*backend.List, error) {
	username, _ := a.session.Identity()
	for page := 1; ; page++ {
		result, err := a.store.FetchLists(ctx, backend.ListFilter{
			CurrentPage:   page,
			PageSize:      config.MaxPageSize,
			SortBy:        "createdAt",
			SortDirection: backend.SortAsc,
			Username:      username,
		})
		if err != nil {
			return nil, err
		}
		for _, l := range result.Content {
			if matchID(l.ID, ref) {
				return &l, nil
			}
		}
		if l := backend.FindListByTitle(result.Content, ref); l != nil {
			return l, nil
		}
		if page >= result.TotalPages {
			return nil, utils.ErrListNotFound(ref)
		}
	}
}

// printResult prints a no-prompt result code
func (a *app) printResult(code string) {
	if a.cli.NoPrompt && !a.jsonOutput() {
		_, _ = fmt.Fprintln(a.stdout, code)
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, string(data))
	return nil
}

type errorResponse struct {
	Error      string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
	Code       int    `json:"code"`
	Result     string `json:"result"`
}

// outputErrorJSON outputs error in JSON format
func outputErrorJSON(err error, stdout io.Writer) {
	response := errorResponse{
		Error:  err.Error(),
		Code:   1,
		Result: ResultError,
	}
	var ews *utils.ErrorWithSuggestion
	if errors.As(err, &ews) {
		response.Error = ews.Err.Error()
		response.Suggestion = ews.GetSuggestion()
	}
	_ = writeJSON(stdout, response)
}

// newVersionCmd creates the 'version' subcommand
func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(stdout, "myday version %s\n", Version)
		},
	}
}

// newConfigCmd creates the 'config' subcommand
func newConfigCmd(stdout, stderr io.Writer, base *Config) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *base
			applyGlobalFlags(cmd, &cfg)
			conf, err := config.Load(cfg.ConfigPath)
			if err != nil {
				return err
			}
			conf.ApplyFlags(cfg.Verbose, cfg.OutputFormat, cfg.Backend)
			if cfg.DBPath != "" {
				conf.SQLite.Path = cfg.DBPath
			}
			out, err := conf.YAML()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "# %s\n%s", conf.Path(), out)
			return nil
		},
	})
	return configCmd
}
