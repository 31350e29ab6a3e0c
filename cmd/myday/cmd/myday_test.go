package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myday/backend/mock"
)

// =============================================================================
// Core CLI Tests
// These tests verify basic CLI functionality: help, version, flags, errors.
// Command tests against a real database live in backend/sqlite/cli_test.go.
// =============================================================================

// testConfig isolates a command from the user's config, database and session
func testConfig(t *testing.T, yaml string) *Config {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0644))
	return &Config{
		ConfigPath:  configPath,
		DBPath:      filepath.Join(dir, "test.db"),
		SessionPath: filepath.Join(dir, "session.json"),
	}
}

func run(cfg *Config, args ...string) (stdout, stderr string, code int) {
	var out, errOut bytes.Buffer
	code = Execute(args, &out, &errOut, cfg)
	return out.String(), errOut.String(), code
}

// --- Help and Version Tests ---

func TestHelpFlagCoreCLI(t *testing.T) {
	stdout, stderr, code := run(nil, "--help")

	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "myday")
	assert.Contains(t, stdout, "Usage:")
	for _, sub := range []string{"lists", "tasks", "task", "step", "signup", "login", "logout", "whoami", "tui"} {
		assert.Contains(t, stdout, sub)
	}
}

func TestVersionFlagCoreCLI(t *testing.T) {
	stdout, _, code := run(nil, "--version")

	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "myday")
}

func TestVersionCommand(t *testing.T) {
	stdout, _, code := run(nil, "version")

	require.Equal(t, 0, code)
	assert.Equal(t, "myday version "+Version+"\n", stdout)
}

func TestUnknownCommandFails(t *testing.T) {
	_, stderr, code := run(nil, "frobnicate")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error:")
}

// --- Error Output Tests ---

func TestNotSignedInError(t *testing.T) {
	cfg := testConfig(t, "backend: sqlite\n")

	stdout, stderr, code := run(cfg, "-y", "lists")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "not signed in")
	assert.Equal(t, ResultError, strings.TrimSpace(stdout))
}

func TestErrorJSONCarriesSuggestion(t *testing.T) {
	cfg := testConfig(t, "backend: sqlite\n")

	stdout, _, code := run(cfg, "--json", "lists")
	require.Equal(t, 1, code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, ResultError, resp.Result)
	assert.Equal(t, 1, resp.Code)
	assert.Contains(t, resp.Error, "not signed in")
	assert.NotEmpty(t, resp.Suggestion)
}

func TestInvalidConfigFails(t *testing.T) {
	cfg := testConfig(t, "backend: sqlite\npage_size: 1000\n")

	_, stderr, code := run(cfg, "lists")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "page_size")
}

func TestInvalidStatusIsRejectedEarly(t *testing.T) {
	cfg := testConfig(t, "backend: sqlite\n")

	_, stderr, code := run(cfg, "task", "status", "abcd", "finished")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "finished")
}

// --- Mock Backend Tests ---

func TestMockBackendShowsDemoData(t *testing.T) {
	cfg := testConfig(t, "backend: mock\n")

	run(cfg, "login", mock.DemoUsername)
	stdout, stderr, code := run(cfg, "-y", "lists", "--sort", "title", "--order", "asc")

	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Lists (3):")
	assert.Less(t, strings.Index(stdout, "Learning Goals"), strings.Index(stdout, "Web Development Project"))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(stdout), ResultInfoOnly))
}

func TestBackendFlagOverridesConfig(t *testing.T) {
	cfg := testConfig(t, "backend: sqlite\n")

	_, stderr, code := run(cfg, "--backend", "mock", "login", mock.DemoUsername)
	require.Equal(t, 0, code, stderr)

	stdout, stderr, code := run(cfg, "--backend", "mock", "--json", "lists")
	require.Equal(t, 0, code, stderr)

	var resp listsResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Len(t, resp.Lists, 3)
	assert.Equal(t, 1, resp.CurrentPage)
	assert.Equal(t, 1, resp.TotalPages)
}

func TestConfigShow(t *testing.T) {
	cfg := testConfig(t, "backend: mock\npage_size: 25\n")

	stdout, stderr, code := run(cfg, "config", "show")

	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "# "+cfg.ConfigPath)
	assert.Contains(t, stdout, "backend: mock")
	assert.Contains(t, stdout, "page_size: 25")
}

func TestSharedConfigIsNotMutated(t *testing.T) {
	cfg := testConfig(t, "backend: sqlite\n")

	run(cfg, "--json", "-y", "--backend", "mock", "whoami")

	assert.False(t, cfg.NoPrompt)
	assert.Empty(t, cfg.OutputFormat)
	assert.Empty(t, cfg.Backend)
}

// --- Helper Tests ---

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"todo", "TODO", false},
		{"in-progress", "IN_PROGRESS", false},
		{"IN_PROGRESS", "IN_PROGRESS", false},
		{"done", "COMPLETED", false},
		{" Completed ", "COMPLETED", false},
		{"finished", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseStatus(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMatchID(t *testing.T) {
	id := "3f2a9c1e-0000-4000-8000-000000000000"

	assert.True(t, matchID(id, id))
	assert.True(t, matchID(id, "3f2a"))
	assert.True(t, matchID(id, "3f2a9c1e"))
	assert.False(t, matchID(id, "3f2"), "prefixes shorter than four characters are ignored")
	assert.False(t, matchID(id, "9c1e"))
	assert.True(t, matchID("abc", "abc"))
}

func TestContainsFlag(t *testing.T) {
	assert.True(t, containsFlag([]string{"lists", "--json"}, "--json"))
	assert.True(t, containsFlag([]string{"-y", "lists"}, "-y", "--no-prompt"))
	assert.False(t, containsFlag([]string{"lists"}, "--json"))
}
