package adapters

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeStub writes an executable shell script standing in for the cody CLI.
func writeStub(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "cody")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestCodyAdapter_PassesArgumentsAndCredentials(t *testing.T) {
	stub := writeStub(t, `
[ "$1" = "chat" ] || exit 9
[ "$2" = "--context-repo" ] || exit 9
echo "repo=$3"
echo "prompt=$5"
echo "endpoint=$SRC_ENDPOINT token=$SRC_ACCESS_TOKEN"
echo
`)
	cody := NewCodyAdapter("github.com/Test-Org/Test", "https://sg.example.com", "sgp_123")
	cody.Binary = stub

	out, err := cody.ReviewCodeDiff(context.Background(), "review this; $(not executed)")
	require.NoError(t, err)
	assert.Equal(t, "repo=github.com/Test-Org/Test\nprompt=review this; $(not executed)\nendpoint=https://sg.example.com token=sgp_123", out)
}

func TestCodyAdapter_NonZeroExit(t *testing.T) {
	stub := writeStub(t, "echo 'authentication failed' >&2\nexit 4\n")
	cody := NewCodyAdapter("h/o/r", "e", "t")
	cody.Binary = stub

	_, err := cody.ReviewCodeDiff(context.Background(), "p")
	var exitErr *CodyExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 4, exitErr.ExitCode())
	assert.Equal(t, "authentication failed", exitErr.Stderr)
}

func TestCodyAdapter_BinaryMissing(t *testing.T) {
	cody := NewCodyAdapter("h/o/r", "e", "t")
	cody.Binary = filepath.Join(t.TempDir(), "no-such-cody")

	_, err := cody.ReviewCodeDiff(context.Background(), "p")
	assert.True(t, errors.Is(err, ErrCodyNotFound))
}

func TestCodyAdapter_PromptSizeLimit(t *testing.T) {
	stub := writeStub(t, `printf '%s' "$5" | wc -c | tr -d ' '`)
	cody := NewCodyAdapter("h/o/r", "e", "t")
	cody.Binary = stub

	out, err := cody.ReviewCodeDiff(context.Background(), strings.Repeat("a", MaxPromptBytes))
	require.NoError(t, err)
	assert.Equal(t, "131071", out)

	_, err = cody.ReviewCodeDiff(context.Background(), strings.Repeat("a", MaxPromptBytes+1))
	require.ErrorIs(t, err, ErrPromptTooLarge)
	assert.Contains(t, err.Error(), "131072")
}
