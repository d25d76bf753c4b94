package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"git-cody-reviewer-go/internal/adapters"
	"git-cody-reviewer-go/internal/config"
	"git-cody-reviewer-go/internal/github"
	"git-cody-reviewer-go/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command with args and returns its stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prFlags = reviewFlags{}
	flags.engine = config.EngineCody

	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(io.Discard)
	RootCmd.SetArgs(args)
	t.Cleanup(func() { RootCmd.SetArgs(nil) })

	err := RootCmd.Execute()
	return out.String(), err
}

// clearCIEnv blanks every variable the commands read so the host environment does not leak in.
func clearCIEnv(t *testing.T) {
	for _, k := range []string{
		"GITHUB_EVENT_NAME", "GITHUB_TOKEN", "GH_TOKEN", "GITHUB_API_URL", "GITHUB_REPOSITORY", "GITHUB_REF",
		"SRC_ENDPOINT", "SRC_ACCESS_TOKEN", "GEMINI_API_KEY", "GOOGLE_API_KEY", "SLACK_WEBHOOK_URL",
	} {
		t.Setenv(k, "")
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, exitCode(errors.New("boom")))
	assert.Equal(t, 4, exitCode(fmt.Errorf("wrapped: %w", &adapters.CodyExitError{Code: 4})))
	assert.Equal(t, 2, exitCode(&workflow.ScriptError{Code: 2}))
	assert.Equal(t, 1, exitCode(&workflow.ScriptError{Code: -1}))
}

func TestPrintReview_PlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printReview(&buf, "**Summary**: ok"))
	assert.Equal(t, "**Summary**: ok\n", buf.String())
}

func TestReview_RejectsNonPullRequestEvent(t *testing.T) {
	clearCIEnv(t)
	t.Setenv("GITHUB_EVENT_NAME", "push")

	_, err := executeCommand(t, "review")
	assert.ErrorIs(t, err, config.ErrNotPullRequest)
}

func TestReview_RequiresToken(t *testing.T) {
	clearCIEnv(t)
	t.Setenv("GITHUB_EVENT_NAME", "pull_request")
	t.Setenv("GITHUB_REPOSITORY", "Test-Org/Test")
	t.Setenv("GITHUB_REF", "refs/pull/2/merge")

	_, err := executeCommand(t, "review")
	assert.ErrorIs(t, err, config.ErrMissingGitHubToken)
}

// installCodyStub puts a fake cody CLI on PATH that prints a fixed review.
func installCodyStub(t *testing.T, script string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cody"), []byte("#!/bin/sh\n"+script), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestReview_PostsComment(t *testing.T) {
	clearCIEnv(t)
	installCodyStub(t, `[ "$3" = "127.0.0.1/Test-Org/Test" ] || exit 7
echo "**Summary**: adds retry"
`)

	var posted string
	srv := httptest.NewServer(http.StripPrefix("/api/v3", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ghs_test", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/repos/Test-Org/Test/pulls/2":
			fmt.Fprint(w, `{"number":2,"title":"Add retry","body":"Retries GETs."}`)
		case r.Method == http.MethodGet && r.URL.Path == "/repos/Test-Org/Test/pulls/2/files":
			fmt.Fprint(w, `[{"filename":"client.go","patch":"@@ -1 +1 @@\n-a\n+b"}]`)
		case r.Method == http.MethodPost && r.URL.Path == "/repos/Test-Org/Test/issues/2/comments":
			var payload map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			posted = payload["body"]
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id":1,"html_url":"https://github.com/Test-Org/Test/pull/2#issuecomment-1"}`)
		default:
			http.NotFound(w, r)
		}
	})))
	defer srv.Close()

	t.Setenv("GITHUB_EVENT_NAME", "pull_request")
	t.Setenv("GITHUB_TOKEN", "ghs_test")
	t.Setenv("GITHUB_API_URL", srv.URL+"/api/v3")
	t.Setenv("GITHUB_REPOSITORY", "Test-Org/Test")
	t.Setenv("GITHUB_REF", "refs/pull/2/merge")
	t.Setenv("SRC_ENDPOINT", "https://sg.example.com")
	t.Setenv("SRC_ACCESS_TOKEN", "sgp_test")

	out, err := executeCommand(t, "review")
	require.NoError(t, err)
	assert.Contains(t, out, "Comment added successfully!")
	assert.Contains(t, posted, "**Summary**: adds retry")
	assert.True(t, strings.HasPrefix(posted, "<!-- git-cody-reviewer:review -->"))
}

func TestReview_CodyExitCodeIsPropagated(t *testing.T) {
	clearCIEnv(t)
	installCodyStub(t, "echo 'not authenticated' >&2\nexit 3\n")

	srv := httptest.NewServer(http.StripPrefix("/api/v3", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/files") {
			fmt.Fprint(w, `[]`)
			return
		}
		fmt.Fprint(w, `{"number":5,"title":"t","body":""}`)
	})))
	defer srv.Close()

	t.Setenv("GITHUB_TOKEN", "ghs_test")
	t.Setenv("GITHUB_API_URL", srv.URL+"/api/v3")
	t.Setenv("SRC_ENDPOINT", "https://sg.example.com")
	t.Setenv("SRC_ACCESS_TOKEN", "sgp_test")

	_, err := executeCommand(t, "review", "--repo", "o/r", "--pr", "5", "--no-post")
	require.Error(t, err)
	assert.Equal(t, 3, exitCode(err))
}

func TestReview_PostFailurePrintsReviewAndExitsOne(t *testing.T) {
	clearCIEnv(t)
	installCodyStub(t, "echo '**Summary**: renames a field'\n")

	srv := httptest.NewServer(http.StripPrefix("/api/v3", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message":"Resource not accessible by integration"}`)
		case strings.HasSuffix(r.URL.Path, "/files"):
			fmt.Fprint(w, `[{"filename":"a.go","patch":"@@ -1 +1 @@\n-a\n+b"}]`)
		default:
			fmt.Fprint(w, `{"number":8,"title":"Rename","body":""}`)
		}
	})))
	defer srv.Close()

	t.Setenv("GITHUB_TOKEN", "ghs_test")
	t.Setenv("GITHUB_API_URL", srv.URL+"/api/v3")
	t.Setenv("SRC_ENDPOINT", "https://sg.example.com")
	t.Setenv("SRC_ACCESS_TOKEN", "sgp_test")

	out, err := executeCommand(t, "review", "--repo", "o/r", "--pr", "8")
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, out, "**Summary**: renames a field")
	assert.NotContains(t, out, "Comment added successfully!")

	var apiErr *github.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestWorkflowValidate_ShippedFile(t *testing.T) {
	clearCIEnv(t)
	out, err := executeCommand(t, "workflow", "validate", filepath.Join("..", workflow.DefaultWorkflowPath))
	require.NoError(t, err)
	assert.Contains(t, out, "契約を満たしています")
}

func TestWorkflowGenerate_Stdout(t *testing.T) {
	clearCIEnv(t)
	out, err := executeCommand(t, "workflow", "generate", "--output", "-")
	require.NoError(t, err)

	want, err := workflow.Generate(workflow.DefaultContract())
	require.NoError(t, err)
	assert.Equal(t, want, out)
}

func TestWorkflowRun_MissingSecretFailsBeforeCheckout(t *testing.T) {
	clearCIEnv(t)
	t.Setenv("GH_TOKEN", "ghs_test")
	t.Setenv("SRC_ENDPOINT", "https://sg.example.com")

	workspace := t.TempDir()
	_, err := executeCommand(t, "workflow", "run", "--workspace", workspace, "--clone-base-url", "http://127.0.0.1:1")
	require.ErrorIs(t, err, workflow.ErrMissingSecret)
	assert.NoDirExists(t, filepath.Join(workspace, workflow.DefaultScriptPath))
}

func TestWorkflowSecrets(t *testing.T) {
	appEnv = config.Env{GitHubToken: "t", SrcAccessToken: "a"}
	got := workflowSecrets(workflow.DefaultContract())
	assert.Equal(t, map[string]string{workflow.SecretPlatformToken: "t", workflow.SecretAccessToken: "a"}, got)
}
