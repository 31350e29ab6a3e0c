package sqlite_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myday/internal/testutil"
)

// =============================================================================
// CLI Tests for lists, tasks, steps and accounts on the SQLite store
// =============================================================================

type listJSON struct {
	ID              string `json:"listId"`
	Title           string `json:"listTitle"`
	Category        string `json:"listCategory"`
	Username        string `json:"username"`
	TotalTasksCount int    `json:"totalTasksCount"`
}

type stepJSON struct {
	ID        string `json:"stepId"`
	Title     string `json:"stepTitle"`
	Completed bool   `json:"completed"`
}

type taskJSON struct {
	ID       string     `json:"taskId"`
	Title    string     `json:"taskTitle"`
	Status   string     `json:"taskStatus"`
	Priority string     `json:"taskPriority"`
	ListID   string     `json:"listId"`
	Username string     `json:"username"`
	Steps    []stepJSON `json:"steps"`
}

type listsJSON struct {
	Lists       []listJSON `json:"lists"`
	CurrentPage int        `json:"currentPage"`
	TotalPages  int        `json:"totalPages"`
	Stats       *struct {
		Lists int `json:"lists"`
	} `json:"stats"`
}

type tasksJSON struct {
	Tasks       []taskJSON `json:"tasks"`
	CurrentPage int        `json:"currentPage"`
	TotalPages  int        `json:"totalPages"`
}

func createList(t *testing.T, c *testutil.CLITest, title string, args ...string) listJSON {
	t.Helper()
	var resp struct {
		List listJSON `json:"list"`
	}
	c.MustExecuteJSON(&resp, append([]string{"list", "create", title}, args...)...)
	return resp.List
}

func addTask(t *testing.T, c *testutil.CLITest, title string, args ...string) taskJSON {
	t.Helper()
	var resp struct {
		Task taskJSON `json:"task"`
	}
	c.MustExecuteJSON(&resp, append([]string{"task", "add", title}, args...)...)
	return resp.Task
}

func taskTitles(tasks []taskJSON) []string {
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.Title)
	}
	return out
}

// --- Account Tests ---

func TestSignupLoginLogoutCLI(t *testing.T) {
	c := testutil.NewCLITest(t)

	out := c.MustExecute("signup", "alice", "--email", "alice@example.com", "--name", "Alice Smith")
	testutil.AssertContains(t, out, "Signed up and signed in as alice")
	testutil.AssertResultCode(t, out, "ACTION_COMPLETED")

	out = c.MustExecute("whoami")
	testutil.AssertContains(t, out, "alice (Alice Smith) <alice@example.com>")

	out = c.MustExecute("logout")
	testutil.AssertContains(t, out, "Signed out")

	out = c.MustExecute("whoami")
	testutil.AssertContains(t, out, "Not signed in")

	out = c.MustExecute("login", "alice")
	testutil.AssertContains(t, out, "Signed in as alice")
	assert.Equal(t, 1, c.CountRows("users"))
}

func TestLoginUnknownUserCLI(t *testing.T) {
	c := testutil.NewCLITest(t)

	_, stderr := c.ExecuteAndFail("login", "ghost")
	testutil.AssertContains(t, stderr, "user not found: ghost")
	testutil.AssertContains(t, stderr, "myday signup ghost")
}

func TestSignupDuplicateCLI(t *testing.T) {
	c := testutil.NewCLITest(t)
	c.SignUp("alice")

	c.ExecuteAndFail("signup", "alice")
}

// --- List Tests ---

func TestListCreateAndShowCLI(t *testing.T) {
	c := testutil.NewCLITest(t)
	c.SignUp("alice")

	out := c.MustExecute("list", "create", "Groceries", "-c", "work")
	testutil.AssertContains(t, out, "Created list: Groceries")
	testutil.AssertResultCode(t, out, "ACTION_COMPLETED")

	out = c.MustExecute("lists")
	testutil.AssertContains(t, out, "Lists (1):")
	testutil.AssertContains(t, out, "Groceries")
	testutil.AssertContains(t, out, "WORK")
	testutil.AssertResultCode(t, out, "INFO_ONLY")
}

func TestListsFollowSignedInUserCLI(t *testing.T) {
	c := testutil.NewCLITest(t)
	c.SignUp("alice")
	createList(t, c, "Alice Chores")
	c.SignUp("bob")
	createList(t, c, "Bob Hobbies")

	var resp listsJSON
	c.MustExecuteJSON(&resp, "lists")
	require.Len(t, resp.Lists, 1)
	assert.Equal(t, "Bob Hobbies", resp.Lists[0].Title)
	assert.Equal(t, "bob", resp.Lists[0].Username)

	c.MustExecute("login", "alice")
	c.MustExecuteJSON(&resp, "lists")
	require.Len(t, resp.Lists, 1)
	assert.Equal(t, "Alice Chores", resp.Lists[0].Title)

	c.MustExecuteJSON(&resp, "lists", "--all")
	assert.Len(t, resp.Lists, 2)
}

func TestListsPagingCLI(t *testing.T) {
	c := testutil.NewCLITest(t)
	c.SignUp("alice")
	for i := 1; i <= 5; i++ {
		createList(t, c, fmt.Sprintf("List %02d", i))
	}

	var resp listsJSON
	c.MustExecuteJSON(&resp, "lists", "--page-size", "2", "--page", "3", "--sort", "title", "--order", "asc")
	assert.Equal(t, 3, resp.CurrentPage)
	assert.Equal(t, 3, resp.TotalPages)
	require.Len(t, resp.Lists, 1)
	assert.Equal(t, "List 05", resp.Lists[0].Title)

	out := c.MustExecute("lists", "--page-size", "2", "--sort", "title", "--order", "desc")
	testutil.AssertContains(t, out, "Page 1 of 3")
	assert.Less(t, strings.Index(out, "List 05"), strings.Index(out, "List 04"))
	testutil.AssertNotContains(t, out, "List 01")
}

func TestListsCategoryAndSearchCLI(t *testing.T) {
	c := testutil.NewCLITest(t)
	c.SignUp("alice")
	createList(t, c, "Quarterly report", "-c", "WORK")
	createList(t, c, "Garden", "-c", "PERSONAL", "-d", "tomatoes and basil")

	var resp listsJSON
	c.MustExecuteJSON(&resp, "lists", "--category", "work")
	require.Len(t, resp.Lists, 1)
	assert.Equal(t, "Quarterly report", resp.Lists[0].Title)

	c.MustExecuteJSON(&resp, "lists", "--search", "basil", "--stats")
	require.Len(t, resp.Lists, 1)
	assert.Equal(t, "Garden", resp.Lists[0].Title)
	require.NotNil(t, resp.Stats)
	assert.Equal(t, 1, resp.Stats.Lists)

	_, stderr := c.ExecuteAndFail("lists", "--category", "chores")
	testutil.AssertContains(t, stderr, "invalid category")
}

func TestListsWhereCLI(t *testing.T) {
	c := testutil.NewCLITest(t)
	c.SignUp("alice")
	createList(t, c, "Empty list")
	busy := createList(t, c, "Busy list")
	addTask(t, c, "First task", "--list", busy.ID)

	var resp listsJSON
	c.MustExecuteJSON(&resp, "lists", "--where", "tasks > 0")
	require.Len(t, resp.Lists, 1)
	assert.Equal(t, "Busy list", resp.Lists[0].Title)
	assert.Equal(t, 1, resp.Lists[0].TotalTasksCount)

	c.ExecuteAndFail("lists", "--where", "tasks >")
}

func TestListCreateRequiresSignInCLI(t *testing.T) {
	c := testutil.NewCLITest(t)

	_, stderr := c.ExecuteAndFail("list", "create", "Groceries")
	testutil.AssertContains(t, stderr, "not signed in")
	assert.Equal(t, 0, c.CountRows("lists"))
}

func TestListCreateValidationCLI(t *testing.T) {
	c := testutil.NewCLITest(t)
	c.SignUp("alice")

	_, stderr := c.ExecuteAndFail("list", "create", "ab")
	testutil.AssertContains(t, stderr, "at least 3 characters")

	_, stderr = c.ExecuteAndFail("list", "create", "Groceries", "--color", "chartreuse")
	testutil.AssertContains(t, stderr, "invalid color")
}

func TestListDeleteCLI(t *testing.T) {
	c := testutil.NewCLITest(t)
	c.SignUp("alice")
	list := createList(t, c, "Old stuff")
	addTask(t, c, "Throw away", "--list", list.ID)

	out := c.MustExecute("list", "delete", "Old stuff")
	testutil.AssertContains(t, out, "Deleted list: Old stuff")
	assert.Equal(t, 0, c.CountRows("lists"))
	assert.Equal(t, 0, c.CountRows("tasks"))

	_, stderr := c.ExecuteAndFail("list", "delete", "Old stuff")
	testutil.AssertContains(t, stderr, "list not found")
}

// --- Task Tests ---

func TestTaskAddUnlistedCLI(t *testing.T) {
	c := testutil.NewCLITest(t)
	c.SignUp("alice")

	out := c.MustExecute("task", "add", "Call the dentist", "-p", "high")
	testutil.AssertContains(t, out, "Created task: Call the dentist")

	out = c.MustExecute("tasks")
	testutil.AssertContains(t, out, "My tasks (1):")
	testutil.AssertContains(t, out, "[TODO] (!!!) Call the dentist")
}

func TestTaskAddToListCLI(t *testing.T) {
	c := testutil.NewCLITest(t)
	c.SignUp("alice")
	createList(t, c, "Work")

	task := addTask(t, c, "Write report", "--list", "Work", "--deadline", "+7d", "--estimate", "90")
	assert.Empty(t, task.Username)
	assert.NotEmpty(t, task.ListID)

	out := c.MustExecute("tasks", "--list", "Work")
	testutil.AssertContains(t, out, "Tasks in Work (1):")
	testutil.AssertContains(t, out, "Write report")
	testutil.AssertContains(t, out, "due ")

	out = c.MustExecute("tasks")
	testutil.AssertContains(t, out, "My tasks: no tasks")
}

func TestTaskAddValidationCLI(t *testing.T) {
	c := testutil.NewCLITest(t)

	_, stderr := c.ExecuteAndFail("task", "add", "Unowned task")
	testutil.AssertContains(t, stderr, "not signed in")

	c.SignUp("alice")
	_, stderr = c.ExecuteAndFail("task", "add", "Bad priority", "-p", "urgent")
	testutil.AssertContains(t, stderr, "invalid priority")

	_, stderr = c.ExecuteAndFail("task", "add", "Bad date", "--deadline", "someday")
	testutil.AssertContains(t, stderr, "invalid date")

	_, stderr = c.ExecuteAndFail("task", "add", "Too long", "--estimate", "5000")
	testutil.AssertContains(t, stderr, "estimated time")

	_, stderr = c.ExecuteAndFail("task", "add", "Nowhere", "--list", "missing")
	testutil.AssertContains(t, stderr, "list not found")
	assert.Equal(t, 0, c.CountRows("tasks"))
}

func TestTasksUnlistedShowsEveryUserCLI(t *testing.T) {
	c := testutil.NewCLITest(t)
	c.SignUp("alice")
	addTask(t, c, "Alice errand")
	c.SignUp("bob")
	addTask(t, c, "Bob errand")

	var resp tasksJSON
	c.MustExecuteJSON(&resp, "tasks")
	assert.Equal(t, []string{"Bob errand"}, taskTitles(resp.Tasks))

	c.MustExecuteJSON(&resp, "tasks", "--unlisted", "--sort", "title", "--order", "asc")
	assert.Equal(t, []string{"Alice errand", "Bob errand"}, taskTitles(resp.Tasks))

	c.ExecuteAndFail("tasks", "--unlisted", "--mine")
}

func TestTaskStatusCLI(t *testing.T) {
	c := testutil.NewCLITest(t)
	c.SignUp("alice")
	task := addTask(t, c, "Pay rent")
	addTask(t, c, "Buy milk")

	out := c.MustExecute("task", "status", task.ID[:8], "done")
	testutil.AssertContains(t, out, "Task Pay rent is now COMPLETED")

	var resp tasksJSON
	c.MustExecuteJSON(&resp, "tasks", "--status", "completed")
	assert.Equal(t, []string{"Pay rent"}, taskTitles(resp.Tasks))

	out = c.MustExecute("tasks", "--stats")
	testutil.AssertContains(t, out, "My tasks (1):")
	testutil.AssertContains(t, out, "Completed (1):")
	testutil.AssertContains(t, out, "Total 2 | Todo 1 | In progress 0 | Completed 1 | Overdue 0")

	_, stderr := c.ExecuteAndFail("task", "status", "zzzzzzzz", "todo")
	testutil.AssertContains(t, stderr, "entity not found")
}

func TestTasksPriorityFilterCLI(t *testing.T) {
	c := testutil.NewCLITest(t)
	c.SignUp("alice")
	addTask(t, c, "Low thing", "-p", "LOW")
	addTask(t, c, "High thing", "-p", "HIGH")

	var resp tasksJSON
	c.MustExecuteJSON(&resp, "tasks", "--priority", "high")
	assert.Equal(t, []string{"High thing"}, taskTitles(resp.Tasks))

	c.MustExecuteJSON(&resp, "tasks", "--where", "priority == 'LOW'")
	assert.Equal(t, []string{"Low thing"}, taskTitles(resp.Tasks))
}

// --- Step Tests ---

func TestStepsCLI(t *testing.T) {
	c := testutil.NewCLITest(t)
	c.SignUp("alice")
	task := addTask(t, c, "Plan trip")

	var added struct {
		Step stepJSON `json:"step"`
	}
	c.MustExecuteJSON(&added, "step", "add", task.ID, "Book flights")
	c.MustExecute("step", "add", task.ID[:8], "Book hotel")

	out := c.MustExecute("tasks")
	testutil.AssertContains(t, out, "0%")
	testutil.AssertContains(t, out, "[ ] Book flights")

	out = c.MustExecute("step", "toggle", added.Step.ID)
	testutil.AssertContains(t, out, "Step Book flights is now done")

	out = c.MustExecute("tasks")
	testutil.AssertContains(t, out, "[x] Book flights")
	testutil.AssertContains(t, out, "50%")

	out = c.MustExecute("step", "toggle", added.Step.ID[:8])
	testutil.AssertContains(t, out, "is now open")

	out = c.MustExecute("step", "delete", added.Step.ID)
	testutil.AssertContains(t, out, "Deleted step: Book flights")
	assert.Equal(t, 1, c.CountRows("steps"))

	_, stderr := c.ExecuteAndFail("step", "delete", added.Step.ID)
	testutil.AssertContains(t, stderr, "entity not found")
}

// --- Config Tests ---

func TestPageSizeFromConfigCLI(t *testing.T) {
	c := testutil.NewCLITest(t)
	c.SetConfigValue("page_size", "2")
	c.SignUp("alice")
	for _, title := range []string{"One task", "Two task", "Three task"} {
		addTask(t, c, title)
	}

	var resp tasksJSON
	c.MustExecuteJSON(&resp, "tasks")
	assert.Len(t, resp.Tasks, 2)
	assert.Equal(t, 2, resp.TotalPages)
}
