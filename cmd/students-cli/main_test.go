package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/students-sync/internal/client"
	"github.com/aanand-mishra/students-sync/internal/coordinator"
	"github.com/aanand-mishra/students-sync/internal/http/router"
	"github.com/aanand-mishra/students-sync/internal/storage/sqlite"
	"github.com/aanand-mishra/students-sync/internal/summary"
)

func startService(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "students.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ts := httptest.NewServer(router.New(slog.New(slog.NewTextHandler(io.Discard, nil)), db, summary.Template{}))
	t.Cleanup(ts.Close)
	return ts
}

func clientConfig(t *testing.T, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.yaml")
	body := fmt.Sprintf("env: dev\nremote:\n  base_url: %q\n  max_retries: 1\n", baseURL)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

type cliRun struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, cfgPath string, args ...string) cliRun {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), append([]string{"--config", cfgPath}, args...), &stdout, &stderr)
	return cliRun{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestRun_CRUD(t *testing.T) {
	t.Parallel()

	cfg := clientConfig(t, startService(t).URL)

	res := runCLI(t, cfg, "list")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Students retrieved successfully!")
	assert.Contains(t, res.stdout, "(no students)")

	res = runCLI(t, cfg, "create", "Alice", "21", "a@x.com")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Student created successfully!")
	assert.Regexp(t, `1\s+Alice\s+21\s+a@x.com`, res.stdout)

	res = runCLI(t, cfg, "update", "1", "Alicia", "22", "a@x.com")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Student with ID 1 updated successfully!")
	assert.Regexp(t, `1\s+Alicia\s+22`, res.stdout)

	res = runCLI(t, cfg, "get", "1")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Student with ID 1 retrieved successfully!")

	res = runCLI(t, cfg, "delete", "1")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Student with ID 1 deleted successfully!")
	assert.Contains(t, res.stdout, "(no students)")

	res = runCLI(t, cfg, "get", "1")
	assert.Equal(t, exitFail, res.code)
	assert.Contains(t, res.stderr, "Error retrieving student with ID 1.")
}

func TestRun_NoRefresh(t *testing.T) {
	t.Parallel()

	cfg := clientConfig(t, startService(t).URL)

	res := runCLI(t, cfg, "--no-refresh", "create", "Bob", "30", "b@x.com")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Student created successfully!")
	assert.NotContains(t, res.stdout, "NAME")
}

func TestRun_InvalidAgeRejectedByService(t *testing.T) {
	t.Parallel()

	cfg := clientConfig(t, startService(t).URL)

	res := runCLI(t, cfg, "create", "Carol", "abc", "c@x.com")
	assert.Equal(t, exitFail, res.code)
	assert.Contains(t, res.stderr, "Error creating student.")
	assert.Contains(t, res.stderr, "400")
}

func TestRun_Usage(t *testing.T) {
	t.Parallel()

	cfg := clientConfig(t, "http://127.0.0.1:1")

	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: nil},
		{name: "unknown command", args: []string{"frobnicate"}},
		{name: "get without id", args: []string{"get"}},
		{name: "bad id", args: []string{"delete", "x"}},
		{name: "create arity", args: []string{"create", "Alice"}},
		{name: "unknown flag", args: []string{"--bogus", "list"}},
		{name: "summarize without ids", args: []string{"summarize"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := runCLI(t, cfg, tt.args...)
			assert.Equal(t, exitUsage, res.code)
			assert.NotEmpty(t, res.stderr)
		})
	}
}

func TestRun_ListFailure(t *testing.T) {
	t.Parallel()

	ts := startService(t)
	cfg := clientConfig(t, ts.URL)
	ts.Close()

	res := runCLI(t, cfg, "list")
	assert.Equal(t, exitFail, res.code)
	assert.Contains(t, res.stderr, "Error retrieving students.")
}

// holdFirst delays the summary for id 1 until id 2 has been answered, so
// the earlier request lands after the later one.
type holdFirst struct {
	coordinator.Transport
	release chan struct{}
}

func (h holdFirst) Summarize(ctx context.Context, id int64) (string, error) {
	if id == 1 {
		<-h.release
		return h.Transport.Summarize(ctx, id)
	}
	defer close(h.release)
	return h.Transport.Summarize(ctx, id)
}

func TestSummarize_LastIDWins(t *testing.T) {
	t.Parallel()

	ts := startService(t)
	cfg := clientConfig(t, ts.URL)
	require.Equal(t, exitOK, runCLI(t, cfg, "--no-refresh", "create", "Alice", "21", "a@x.com").code)
	require.Equal(t, exitOK, runCLI(t, cfg, "--no-refresh", "create", "Bob", "30", "b@x.com").code)

	cl, err := client.New(client.Config{BaseURL: ts.URL})
	require.NoError(t, err)

	var stdout, stderr bytes.Buffer
	app := &cli{
		transport: holdFirst{Transport: cl, release: make(chan struct{})},
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		out:       &stdout,
		errOut:    &stderr,
	}

	require.NoError(t, app.summarize(context.Background(), []string{"1", "2", "1"}), stderr.String())
	assert.Contains(t, stdout.String(), "ID 1: superseded by a newer request")
	assert.Contains(t, stdout.String(), "ID 2: Bob is a 30-year-old student who can be reached at b@x.com.")
	assert.Contains(t, stdout.String(), "Summary generated for student with ID 2.")
}
