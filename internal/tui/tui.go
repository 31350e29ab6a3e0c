// Package tui provides a terminal user interface over the list views.
//
// Each pane is a query.State bound to a listsync.Cache. Keys edit the query;
// the cache fetches on every change and signals the model through a
// one-slot channel, so fetch goroutines never block on the program.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"myday/backend"
	"myday/internal/listsync"
	"myday/internal/query"
	"myday/internal/session"
	"myday/internal/views"
)

// Store is the part of backend.Store the TUI uses
type Store interface {
	listsync.Fetcher
	CreateTask(ctx context.Context, req backend.CreateTaskRequest) (*backend.Task, error)
	UpdateTaskStatus(ctx context.Context, taskID string, status backend.TaskStatus) (*backend.Task, error)
}

// Focus indicates which pane has focus
type Focus int

const (
	FocusLists Focus = iota
	FocusTasks
)

// Mode indicates the current input mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeAdd
	ModeSearch
	ModeHelp
)

// Sort keys cycled by "s"
var (
	listSortKeys = []string{"createdAt", "title", "updatedAt"}
	taskSortKeys = []string{"createdAt", "deadline", "priority", "title"}
)

// Options configures a Model
type Options struct {
	PageSize     int
	CacheOptions []listsync.Option
	Now          func() time.Time
}

// Model represents the TUI state
type Model struct {
	store    Store
	identity session.Provider
	ctx      context.Context
	now      func() time.Time

	listQuery *query.State[backend.ListFilter]
	listCache *listsync.Cache[backend.ListFilter, backend.List]

	// The tasks pane shows either the tasks of one list or the signed-in
	// user's unlisted tasks; taskCache is bound to one of the two queries.
	listTasks   *query.State[backend.TaskFilter]
	myTasks     *query.State[backend.TaskFilter]
	taskQuery   *query.State[backend.TaskFilter]
	taskCache   *listsync.Cache[backend.TaskFilter, backend.Task]
	unbindTasks func()
	unbindLists func()
	stopNotify  []func()
	changed     chan struct{}

	// Last snapshots read from the caches
	lists     listsync.Snapshot[backend.List]
	tasks     listsync.Snapshot[backend.Task]
	shown     []backend.Task // tasks after the search filter
	openList  *backend.List
	search    string
	statusMsg string

	listCursor int
	taskCursor int
	focus      Focus

	mode      Mode
	textInput textinput.Model

	width  int
	height int

	listPaneStyle  lipgloss.Style
	taskPaneStyle  lipgloss.Style
	focusedBorder  lipgloss.Color
	selectedStyle  lipgloss.Style
	completedStyle lipgloss.Style
	mutedStyle     lipgloss.Style
	errorStyle     lipgloss.Style
	helpStyle      lipgloss.Style
	dialogStyle    lipgloss.Style
	statusBarStyle lipgloss.Style
}

// Message types
type cacheChangedMsg struct{}

// taskCreatedMsg carries the view the task was added from
type taskCreatedMsg struct {
	task  *backend.Task
	from  *query.State[backend.TaskFilter]
	query backend.TaskFilter
}

type taskUpdatedMsg struct {
	task *backend.Task
}

type errMsg struct {
	err error
}

// New creates the model and starts the initial fetches of both panes.
// The lists pane and the "my tasks" view follow the identity of provider.
func New(store Store, provider session.Provider, opts Options) (*Model, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = backend.DefaultPageSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	listQuery, err := query.New(backend.ListFilter{
		CurrentPage:   1,
		PageSize:      opts.PageSize,
		SortBy:        "createdAt",
		SortDirection: backend.SortDesc,
	}, query.WithIdentity(provider))
	if err != nil {
		return nil, err
	}
	myTasks, err := query.New(backend.TaskFilter{
		CurrentPage:   1,
		PageSize:      opts.PageSize,
		SortBy:        "createdAt",
		SortDirection: backend.SortDesc,
		Unlisted:      true,
	}, query.WithIdentity(provider))
	if err != nil {
		return nil, err
	}
	listTasks, err := query.New(backend.TaskFilter{
		CurrentPage:   1,
		PageSize:      opts.PageSize,
		SortBy:        "createdAt",
		SortDirection: backend.SortDesc,
	})
	if err != nil {
		return nil, err
	}

	listCache, err := listsync.New[backend.ListFilter, backend.List](store, listsync.EntityList, listQuery.Current(), opts.CacheOptions...)
	if err != nil {
		return nil, err
	}
	taskCache, err := listsync.New[backend.TaskFilter, backend.Task](store, listsync.EntityTask, myTasks.Current(), opts.CacheOptions...)
	if err != nil {
		listCache.Close()
		return nil, err
	}

	ti := textinput.New()
	ti.CharLimit = 256

	m := &Model{
		store:     store,
		identity:  provider,
		ctx:       context.Background(),
		now:       opts.Now,
		listQuery: listQuery,
		listCache: listCache,
		listTasks: listTasks,
		myTasks:   myTasks,
		taskCache: taskCache,
		changed:   make(chan struct{}, 1),
		textInput: ti,
		focus:     FocusLists,
		mode:      ModeNormal,
		listPaneStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		taskPaneStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		focusedBorder: lipgloss.Color("62"),
		selectedStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		completedStyle: lipgloss.NewStyle().
			Strikethrough(true).
			Foreground(lipgloss.Color("240")),
		mutedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
		helpStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		dialogStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2),
		statusBarStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
	}

	signal := func() {
		select {
		case m.changed <- struct{}{}:
		default:
		}
	}
	m.stopNotify = append(m.stopNotify, listCache.OnChange(signal), taskCache.OnChange(signal))
	m.unbindLists = listsync.Bind(listCache, listQuery)
	m.bindTasks(myTasks)
	m.readCaches()
	return m, nil
}

// Close stops both caches and their query bindings
func (m *Model) Close() {
	for _, stop := range m.stopNotify {
		stop()
	}
	if m.unbindTasks != nil {
		m.unbindTasks()
	}
	if m.unbindLists != nil {
		m.unbindLists()
	}
	m.listCache.Close()
	m.taskCache.Close()
	m.listQuery.Close()
	m.myTasks.Close()
	m.listTasks.Close()
}

// Refresh refetches both panes. Safe to call from any goroutine.
func (m *Model) Refresh() {
	m.listCache.Refresh()
	m.taskCache.Refresh()
}

func (m *Model) bindTasks(state *query.State[backend.TaskFilter]) {
	if m.taskQuery == state {
		return
	}
	if m.unbindTasks != nil {
		m.unbindTasks()
	}
	m.taskQuery = state
	m.unbindTasks = listsync.Bind(m.taskCache, state)
	m.taskCursor = 0
}

// Init initializes the TUI
func (m *Model) Init() tea.Cmd {
	return m.waitForChange()
}

func (m *Model) waitForChange() tea.Cmd {
	ch := m.changed
	return func() tea.Msg {
		<-ch
		return cacheChangedMsg{}
	}
}

// readCaches copies the cache snapshots into the model
func (m *Model) readCaches() {
	m.lists = m.listCache.Snapshot()
	m.tasks = m.taskCache.Snapshot()
	m.applySearch()
	if m.listCursor >= len(m.lists.Items) {
		m.listCursor = max(len(m.lists.Items)-1, 0)
	}
}

func (m *Model) applySearch() {
	m.shown = views.SearchTasks(m.tasks.Items, m.search)
	if m.taskCursor >= len(m.shown) {
		m.taskCursor = max(len(m.shown)-1, 0)
	}
}

func (m *Model) createTask(title string) tea.Cmd {
	req := backend.CreateTaskRequest{Title: title, Priority: backend.PriorityMedium}
	from, q := m.taskQuery, m.taskQuery.Current()
	if from == m.myTasks {
		username, ok := m.identity.Identity()
		if !ok {
			m.statusMsg = "Sign in to add your own tasks (myday login <username>)"
			return nil
		}
		req.Username = username
	} else {
		req.ListID = q.ListID
	}
	return func() tea.Msg {
		created, err := m.store.CreateTask(m.ctx, req)
		if err != nil {
			return errMsg{err}
		}
		return taskCreatedMsg{task: created, from: from, query: q}
	}
}

func (m *Model) toggleTask(task backend.Task) tea.Cmd {
	next := backend.StatusCompleted
	if task.Status == backend.StatusCompleted {
		next = backend.StatusTodo
	}
	return func() tea.Msg {
		updated, err := m.store.UpdateTaskStatus(m.ctx, task.ID, next)
		if err != nil {
			return errMsg{err}
		}
		return taskUpdatedMsg{updated}
	}
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case cacheChangedMsg:
		m.readCaches()
		return m, m.waitForChange()

	case taskCreatedMsg:
		// Only the view the task was added from may show it before a refetch
		if msg.from == m.taskQuery && msg.query == m.taskQuery.Current() {
			m.taskCache.Append(*msg.task)
		} else {
			m.taskCache.Refresh()
		}
		m.readCaches()
		if msg.task.ListID != "" {
			m.listCache.Refresh()
		}
		m.statusMsg = "Added " + msg.task.Title
		return m, nil

	case taskUpdatedMsg:
		m.taskCache.Refresh()
		m.listCache.Refresh()
		return m, nil

	case errMsg:
		m.statusMsg = "Error: " + msg.err.Error()
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeAdd:
			return m.handleAddMode(msg)
		case ModeSearch:
			return m.handleSearchMode(msg)
		case ModeHelp:
			m.mode = ModeNormal
			return m, nil
		}
		return m.handleNormalMode(msg)
	}

	if m.mode == ModeAdd || m.mode == ModeSearch {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab":
		if m.focus == FocusLists {
			m.focus = FocusTasks
		} else {
			m.focus = FocusLists
		}

	case "up", "k":
		if m.focus == FocusLists {
			if m.listCursor > 0 {
				m.listCursor--
			}
		} else if m.taskCursor > 0 {
			m.taskCursor--
		}

	case "down", "j":
		if m.focus == FocusLists {
			if m.listCursor < len(m.lists.Items)-1 {
				m.listCursor++
			}
		} else if m.taskCursor < len(m.shown)-1 {
			m.taskCursor++
		}

	case "enter":
		if m.focus == FocusLists && m.listCursor < len(m.lists.Items) {
			l := m.lists.Items[m.listCursor]
			m.openList = &l
			if err := m.listTasks.Update(query.Patch{"listId": l.ID, "currentPage": 1}); err != nil {
				m.statusMsg = "Error: " + err.Error()
				return m, nil
			}
			m.bindTasks(m.listTasks)
			m.focus = FocusTasks
			m.statusMsg = ""
		}

	case "u":
		if m.taskQuery == m.myTasks {
			if m.openList == nil {
				m.statusMsg = "Open a list with enter first"
				return m, nil
			}
			m.bindTasks(m.listTasks)
		} else {
			m.bindTasks(m.myTasks)
		}
		m.statusMsg = ""

	case "n":
		m.turnPage(1)

	case "p":
		m.turnPage(-1)

	case "s":
		m.cycleSort()

	case "o":
		flip := func(dir string) string {
			if dir == backend.SortAsc {
				return backend.SortDesc
			}
			return backend.SortAsc
		}
		if m.focus == FocusLists {
			m.listQuery.Modify(func(q *backend.ListFilter) { q.SortDirection = flip(q.SortDirection) })
		} else {
			m.taskQuery.Modify(func(q *backend.TaskFilter) { q.SortDirection = flip(q.SortDirection) })
		}

	case "R":
		if m.focus == FocusLists {
			m.listQuery.Reset()
			m.listCursor = 0
		} else {
			m.taskQuery.Reset()
			if m.taskQuery == m.listTasks && m.openList != nil {
				_ = m.listTasks.Update(query.Patch{"listId": m.openList.ID})
			}
			m.taskCursor = 0
		}
		m.statusMsg = "Query reset"

	case "r":
		m.Refresh()
		m.statusMsg = ""

	case "a":
		m.mode = ModeAdd
		m.textInput.Reset()
		m.textInput.Placeholder = "New task title..."
		m.textInput.Focus()
		return m, textinput.Blink

	case "c", " ":
		if m.focus == FocusTasks && m.taskCursor < len(m.shown) {
			return m, m.toggleTask(m.shown[m.taskCursor])
		}

	case "/":
		m.mode = ModeSearch
		m.textInput.Reset()
		m.textInput.SetValue(m.search)
		m.textInput.Placeholder = "Search tasks..."
		m.textInput.Focus()
		return m, textinput.Blink

	case "?":
		m.mode = ModeHelp
	}
	return m, nil
}

// turnPage moves the focused pane by delta pages within 1..TotalPages
func (m *Model) turnPage(delta int) {
	if m.focus == FocusLists {
		page := max(m.listQuery.Current().CurrentPage, 1) + delta
		if page < 1 || page > m.lists.TotalPages {
			return
		}
		m.listQuery.Modify(func(q *backend.ListFilter) { q.CurrentPage = page })
		m.listCursor = 0
		return
	}
	page := max(m.taskQuery.Current().CurrentPage, 1) + delta
	if page < 1 || page > m.tasks.TotalPages {
		return
	}
	m.taskQuery.Modify(func(q *backend.TaskFilter) { q.CurrentPage = page })
	m.taskCursor = 0
}

func nextKey(keys []string, current string) string {
	for i, k := range keys {
		if k == current {
			return keys[(i+1)%len(keys)]
		}
	}
	return keys[0]
}

func (m *Model) cycleSort() {
	if m.focus == FocusLists {
		key := nextKey(listSortKeys, m.listQuery.Current().SortBy)
		_ = m.listQuery.Update(query.Patch{"sortBy": key, "currentPage": 1})
		m.statusMsg = "Lists sorted by " + key
		return
	}
	key := nextKey(taskSortKeys, m.taskQuery.Current().SortBy)
	_ = m.taskQuery.Update(query.Patch{"sortBy": key, "currentPage": 1})
	m.statusMsg = "Tasks sorted by " + key
}

func (m *Model) handleAddMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		value := strings.TrimSpace(m.textInput.Value())
		m.mode = ModeNormal
		if value == "" {
			return m, nil
		}
		return m, m.createTask(value)

	case tea.KeyEsc:
		m.mode = ModeNormal
		return m, nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m *Model) handleSearchMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.search = m.textInput.Value()
		m.applySearch()
		m.mode = ModeNormal
		return m, nil

	case tea.KeyEsc:
		m.search = ""
		m.applySearch()
		m.mode = ModeNormal
		return m, nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// View renders the TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		m.width = 80
		m.height = 24
	}

	switch m.mode {
	case ModeAdd:
		return m.renderInputDialog("Add Task", "Enter: add  Esc: cancel")
	case ModeSearch:
		return m.renderInputDialog("Search Tasks", "Enter: search  Esc: clear")
	case ModeHelp:
		return m.centerDialog(m.dialogStyle.Render(helpText))
	}

	listWidth := m.width / 3
	taskWidth := m.width - listWidth - 4

	listStyle, taskStyle := m.listPaneStyle, m.taskPaneStyle
	if m.focus == FocusLists {
		listStyle = listStyle.BorderForeground(m.focusedBorder)
	} else {
		taskStyle = taskStyle.BorderForeground(m.focusedBorder)
	}

	listPane := listStyle.Width(listWidth).Height(m.height - 4).Render(m.renderListPane(listWidth - 4))
	taskPane := taskStyle.Width(taskWidth).Height(m.height - 4).Render(m.renderTaskPane(taskWidth - 4))

	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, listPane, taskPane))
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m *Model) renderListPane(width int) string {
	var b strings.Builder
	b.WriteString("Lists\n")
	b.WriteString(strings.Repeat("─", max(width, 1)))
	b.WriteString("\n")

	if len(m.lists.Items) == 0 && m.lists.Status != listsync.StatusLoading {
		b.WriteString(m.mutedStyle.Render("No lists") + "\n")
	}
	for i, l := range m.lists.Items {
		cursor := " "
		title := l.Title
		if i == m.listCursor && m.focus == FocusLists {
			cursor = ">"
			title = m.selectedStyle.Render(title)
		}
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(l.Color)).Render("●")
		counts := m.mutedStyle.Render(fmt.Sprintf("%d/%d", l.CompletedTasksCount, l.TotalTasksCount))
		b.WriteString(fmt.Sprintf("%s %s %s %s\n", cursor, dot, title, counts))
	}

	b.WriteString(m.renderFooter(m.listQuery.Current().CurrentPage, m.lists.TotalPages,
		m.listQuery.Current().SortBy, m.listQuery.Current().SortDirection, m.lists.Status, m.lists.Err))
	return b.String()
}

func (m *Model) renderTaskPane(width int) string {
	var b strings.Builder
	title := "My tasks"
	if m.taskQuery == m.listTasks && m.openList != nil {
		title = "Tasks: " + m.openList.Title
	}
	if m.search != "" {
		title += m.mutedStyle.Render(fmt.Sprintf("  (search: %s)", m.search))
	}
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("─", max(width, 1)))
	b.WriteString("\n")

	if len(m.shown) == 0 && m.tasks.Status != listsync.StatusLoading {
		b.WriteString(m.mutedStyle.Render("No tasks") + "\n")
	}
	now := m.now()
	for i, t := range m.shown {
		b.WriteString(m.renderTask(t, i, now))
	}

	q := m.taskQuery.Current()
	b.WriteString(m.renderFooter(q.CurrentPage, m.tasks.TotalPages, q.SortBy, q.SortDirection, m.tasks.Status, m.tasks.Err))
	return b.String()
}

func (m *Model) renderTask(t backend.Task, idx int, now time.Time) string {
	cursor := " "
	selected := idx == m.taskCursor && m.focus == FocusTasks
	if selected {
		cursor = ">"
	}

	var status string
	switch t.Status {
	case backend.StatusCompleted:
		status = "[✓]"
	case backend.StatusInProgress:
		status = "[~]"
	default:
		status = "[ ]"
	}

	title := t.Title
	switch {
	case t.Status == backend.StatusCompleted:
		title = m.completedStyle.Render(title)
	case selected:
		title = m.selectedStyle.Render(title)
	}

	var extra []string
	if t.Priority == backend.PriorityHigh {
		extra = append(extra, "!!")
	}
	if len(t.Steps) > 0 {
		done := 0
		for _, s := range t.Steps {
			if s.Completed {
				done++
			}
		}
		extra = append(extra, fmt.Sprintf("%d/%d steps", done, len(t.Steps)))
	}
	if t.Deadline != nil {
		due := "due " + t.Deadline.Format("Jan 2")
		if t.IsOverdue(now) {
			due = m.errorStyle.Render("overdue")
		}
		extra = append(extra, due)
	}

	line := cursor + " " + status + " " + title
	if len(extra) > 0 {
		line += " " + m.mutedStyle.Render(strings.Join(extra, "  "))
	}
	return line + "\n"
}

func (m *Model) renderFooter(page, totalPages int, sortBy, direction string, status listsync.Status, err error) string {
	page = max(page, 1)
	footer := fmt.Sprintf("\npage %d/%d  sort %s %s", page, max(totalPages, 1), sortBy, strings.ToLower(direction))
	switch status {
	case listsync.StatusLoading:
		footer += "  loading..."
	case listsync.StatusError:
		footer += "\n" + m.errorStyle.Render("load failed: "+err.Error())
	}
	return m.mutedStyle.Render(footer) + "\n"
}

func (m *Model) renderStatusBar() string {
	left := "not signed in"
	if m.identity.Resolving() {
		left = "restoring session..."
	} else if username, ok := m.identity.Identity(); ok {
		left = "signed in as " + username
	}
	if m.statusMsg != "" {
		left += "  " + m.statusMsg
	}

	right := "q:quit  ?:help"
	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}
	return m.statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", padding) + right)
}

func (m *Model) renderInputDialog(title, hint string) string {
	dialog := m.dialogStyle.Render(
		title + "\n\n" +
			m.textInput.View() + "\n\n" +
			m.helpStyle.Render(hint),
	)
	return m.centerDialog(dialog)
}

const helpText = `Help - Key Bindings

Navigation:
  j/↓ k/↑  Move down / up
  Tab      Switch focus between lists/tasks
  Enter    Open the selected list
  u        Switch between the open list and my tasks

Query:
  n / p    Next / previous page
  s        Cycle sort field
  o        Flip sort order
  R        Reset the focused pane's query
  r        Refresh both panes

Actions:
  a        Add a task
  c        Toggle task completion
  /        Search tasks

General:
  ?        Show this help
  q        Quit

Press any key to close`

func (m *Model) centerDialog(dialog string) string {
	lines := strings.Split(dialog, "\n")
	dialogHeight := len(lines)
	dialogWidth := 0
	for _, line := range lines {
		if w := lipgloss.Width(line); w > dialogWidth {
			dialogWidth = w
		}
	}

	topPad := max((m.height-dialogHeight)/2, 0)
	leftPad := max((m.width-dialogWidth)/2, 0)

	var b strings.Builder
	for i := 0; i < topPad; i++ {
		b.WriteString("\n")
	}
	for _, line := range lines {
		b.WriteString(strings.Repeat(" ", leftPad))
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
