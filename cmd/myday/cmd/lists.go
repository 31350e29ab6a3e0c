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

type listsResponse struct {
	Lists       []backend.List   `json:"lists"`
	CurrentPage int              `json:"currentPage"`
	TotalPages  int              `json:"totalPages"`
	Stats       *views.ListStats `json:"stats,omitempty"`
	Result      string           `json:"result"`
}

type listActionResponse struct {
	Action string        `json:"action"`
	List   *backend.List `json:"list"`
	Result string        `json:"result"`
}

// newListsCmd creates the 'lists' command showing one page of lists
func newListsCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lists",
		Short: "Show your task lists",
		Long:  "Show one page of your task lists with their task counters.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			return doLists(cmd.Context(), cmd, a)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addPagingFlags(cmd, "createdAt, updatedAt or title")
	cmd.Flags().String("category", "", "Only lists of this category (PERSONAL, WORK, STUDY, OTHER)")
	cmd.Flags().Bool("all", false, "Show the lists of every user")
	return cmd
}

func doLists(ctx context.Context, cmd *cobra.Command, a *app) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var opts []query.Option
	if all, _ := cmd.Flags().GetBool("all"); !all {
		opt, err := a.identityOption()
		if err != nil {
			return err
		}
		opts = append(opts, opt)
	}

	state, err := query.New(backend.ListFilter{
		CurrentPage:   1,
		PageSize:      a.conf.PageSize,
		SortBy:        "createdAt",
		SortDirection: backend.SortDesc,
	}, opts...)
	if err != nil {
		return err
	}
	defer state.Close()

	patch := pagingPatch(cmd)
	if category, _ := cmd.Flags().GetString("category"); category != "" {
		c := backend.Category(strings.ToUpper(category))
		if err := utils.ValidateCategory(c); err != nil {
			return err
		}
		patch["listCategory"] = c
	}
	if err := state.Update(patch); err != nil {
		return err
	}

	snap, err := fetchPage[backend.ListFilter, backend.List](ctx, a, listsync.EntityList, state)
	if err != nil {
		return err
	}

	search, _ := cmd.Flags().GetString("search")
	lists := views.SearchLists(snap.Items, search)
	if expr, _ := cmd.Flags().GetString("where"); expr != "" {
		where, err := views.CompileWhere(listsync.EntityList, expr)
		if err != nil {
			return err
		}
		if lists, err = where.Lists(lists); err != nil {
			return err
		}
	}

	page := state.Current().CurrentPage
	withStats, _ := cmd.Flags().GetBool("stats")
	if a.jsonOutput() {
		resp := listsResponse{Lists: lists, CurrentPage: page, TotalPages: snap.TotalPages, Result: ResultInfoOnly}
		if withStats {
			stats := views.ComputeListStats(lists)
			resp.Stats = &stats
		}
		return writeJSON(a.stdout, resp)
	}

	if len(lists) == 0 {
		_, _ = fmt.Fprintln(a.stdout, "No lists found")
	} else {
		_, _ = fmt.Fprintf(a.stdout, "Lists (%d):\n", len(lists))
		r := views.NewRenderer(a.stdout, a.now())
		r.RenderLists(lists)
		r.RenderPageFooter(page, snap.TotalPages)
	}
	if withStats {
		s := views.ComputeListStats(lists)
		_, _ = fmt.Fprintf(a.stdout, "Lists %d | Tasks %d | Completed %d\n", s.Lists, s.TotalTasks, s.CompletedTasks)
	}
	a.printResult(ResultInfoOnly)
	return nil
}

// newListCmd creates the 'list' command for managing one list
func newListCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Manage task lists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	listCmd.AddCommand(newListCreateCmd(stdout, stderr, cfg))
	listCmd.AddCommand(newListDeleteCmd(stdout, stderr, cfg))
	return listCmd
}

// newListCreateCmd creates the 'list create' subcommand
func newListCreateCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a new list",
		Long:  "Create a new task list owned by the signed-in user.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			category, _ := cmd.Flags().GetString("category")
			color, _ := cmd.Flags().GetString("color")
			description, _ := cmd.Flags().GetString("description")
			return doListCreate(context.Background(), a, backend.CreateListRequest{
				Title:       args[0],
				Description: description,
				Category:    backend.Category(strings.ToUpper(category)),
				Color:       color,
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringP("category", "c", string(backend.CategoryPersonal), "Category: PERSONAL, WORK, STUDY or OTHER")
	cmd.Flags().String("color", utils.DefaultColor, "Color name ("+strings.Join(utils.ColorNames(), ", ")+") or hex value")
	cmd.Flags().StringP("description", "d", "", "List description")
	return cmd
}

func doListCreate(ctx context.Context, a *app, req backend.CreateListRequest) error {
	user, err := a.session.User(ctx)
	if err != nil {
		return err
	}
	req.Username = user.Username

	list, err := a.store.CreateList(ctx, req)
	if err != nil {
		return err
	}

	if a.jsonOutput() {
		return writeJSON(a.stdout, listActionResponse{Action: "create", List: list, Result: ResultActionCompleted})
	}
	_, _ = fmt.Fprintf(a.stdout, "Created list: %s (id: %s)\n", list.Title, list.ID)
	a.printResult(ResultActionCompleted)
	return nil
}

// newListDeleteCmd creates the 'list delete' subcommand
func newListDeleteCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <title-or-id>",
		Short: "Delete a list and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			return doListDelete(context.Background(), cmd, a, args[0])
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func doListDelete(ctx context.Context, cmd *cobra.Command, a *app, ref string) error {
	list, err := findList(ctx, a, ref)
	if err != nil {
		return err
	}

	if !a.cli.NoPrompt {
		prompt := fmt.Sprintf("Delete list '%s' and its %d tasks?", list.Title, list.TotalTasksCount)
		if !utils.PromptYesNoWithReader(prompt, cmd.InOrStdin(), a.stdout) {
			_, _ = fmt.Fprintln(a.stdout, "Cancelled")
			return nil
		}
	}

	if err := a.store.DeleteList(ctx, list.ID); err != nil {
		return err
	}

	if a.jsonOutput() {
		return writeJSON(a.stdout, listActionResponse{Action: "delete", List: list, Result: ResultActionCompleted})
	}
	_, _ = fmt.Fprintf(a.stdout, "Deleted list: %s\n", list.Title)
	a.printResult(ResultActionCompleted)
	return nil
}
