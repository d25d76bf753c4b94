package adapters

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRepoPath(t *testing.T) {
	tests := map[string]string{
		"git@github.com:owner/repo.git":         "owner/repo",
		"git@github.com:owner/repo":             "owner/repo",
		"https://github.com/owner/repo.git":     "owner/repo",
		"https://gitlab.com/group/sub/repo":     "sub/repo",
		"https://example.com/repo":              "repo",
		"not a url":                             "リポジトリ",
	}
	for in, want := range tests {
		assert.Equal(t, want, ExtractRepoPath(in), in)
	}
}

func TestBuildMessage_SplitsLongReviews(t *testing.T) {
	review := strings.Repeat("あ", slackSectionLimit+10)
	msg := BuildMessage(review, "feature/x", "https://github.com/o/r.git")

	assert.Contains(t, msg.Text, "`feature/x`")
	assert.Contains(t, msg.Text, "o/r")
	require.Len(t, msg.Blocks.BlockSet, 3)

	second, ok := msg.Blocks.BlockSet[2].(*slack.SectionBlock)
	require.True(t, ok)
	assert.Equal(t, 10, len([]rune(second.Text.Text)))
}

func TestSlackNotifier_PostMessage(t *testing.T) {
	var gotURL string
	n := NewSlackNotifier("https://hooks.slack.com/services/T/B/X")
	n.post = func(_ context.Context, url string, msg *slack.WebhookMessage) error {
		gotURL = url
		return nil
	}
	require.NoError(t, n.PostMessage(context.Background(), "ok", "b", "u"))
	assert.Equal(t, "https://hooks.slack.com/services/T/B/X", gotURL)

	n.post = func(context.Context, string, *slack.WebhookMessage) error { return errors.New("boom") }
	assert.Error(t, n.PostMessage(context.Background(), "ok", "b", "u"))

	assert.Error(t, (&SlackNotifier{}).PostMessage(context.Background(), "ok", "b", "u"))
}
