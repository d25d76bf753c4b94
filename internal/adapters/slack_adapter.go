package adapters

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/slack-go/slack"
)

// slackSectionLimit は Block Kit の section テキストの最大文字数です。
const slackSectionLimit = 3000

var sshRepoRE = regexp.MustCompile(`:([A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+?)(\.git)?$`)

// SlackNotifier は Incoming Webhook にレビュー結果を投稿します。
type SlackNotifier struct {
	WebhookURL string
	post       func(ctx context.Context, url string, msg *slack.WebhookMessage) error
}

// NewSlackNotifier は SlackNotifier を初期化します。
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{WebhookURL: webhookURL, post: slack.PostWebhookContext}
}

// ExtractRepoPath は HTTP(S) または SSH 形式のGit URLから 'owner/repo' を取り出します。
func ExtractRepoPath(gitCloneURL string) string {
	if strings.HasPrefix(gitCloneURL, "git@") {
		if m := sshRepoRE.FindStringSubmatch(gitCloneURL); len(m) >= 2 {
			return m[1]
		}
	}

	if u, err := url.Parse(gitCloneURL); err == nil && u.Host != "" {
		var parts []string
		for _, p := range strings.Split(strings.TrimSuffix(u.Path, ".git"), "/") {
			if p != "" {
				parts = append(parts, p)
			}
		}
		switch {
		case len(parts) >= 2:
			return parts[len(parts)-2] + "/" + parts[len(parts)-1]
		case len(parts) == 1:
			return parts[0]
		}
	}
	return "リポジトリ"
}

// BuildMessage はレビュー結果から Webhook メッセージを組み立てます。
// 長いレビューは section ブロックの上限ごとに分割されます。
func BuildMessage(markdownText, featureBranch, gitCloneURL string) *slack.WebhookMessage {
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, "🤖 AI Code Review Result", true, false)),
	}
	for _, chunk := range splitRunes(markdownText, slackSectionLimit) {
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, chunk, false, false), nil, nil))
	}

	return &slack.WebhookMessage{
		Text:   fmt.Sprintf("✅ AI レビュー完了: `%s` ブランチ (%s)", featureBranch, ExtractRepoPath(gitCloneURL)),
		Blocks: &slack.Blocks{BlockSet: blocks},
	}
}

// PostMessage はレビュー結果を Slack に投稿します。
func (n *SlackNotifier) PostMessage(ctx context.Context, markdownText, featureBranch, gitCloneURL string) error {
	if n.WebhookURL == "" {
		return fmt.Errorf("Slack Webhook URL が設定されていません")
	}
	if err := n.post(ctx, n.WebhookURL, BuildMessage(markdownText, featureBranch, gitCloneURL)); err != nil {
		return fmt.Errorf("Slack への投稿に失敗しました: %w", err)
	}
	return nil
}

func splitRunes(s string, size int) []string {
	r := []rune(s)
	if len(r) == 0 {
		return []string{" "}
	}
	var out []string
	for len(r) > size {
		out = append(out, string(r[:size]))
		r = r[size:]
	}
	return append(out, string(r))
}
