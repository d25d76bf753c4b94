package cmd

import (
	"fmt"
	"log/slog"

	"git-cody-reviewer-go/internal/adapters"

	"github.com/spf13/cobra"
)

var (
	slackFlags      *gitReviewFlags
	slackWebhookURL string
	noPostSlack     bool
)

// slackCmd は、レビュー結果を Slack にメッセージとして投稿するコマンドです。
var slackCmd = &cobra.Command{
	Use:   "slack",
	Short: "コードレビューを実行し、その結果をSlackの指定されたチャンネルに投稿します。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		webhookURL := slackWebhookURL
		if webhookURL == "" {
			webhookURL = appEnv.SlackWebhookURL
		}
		if webhookURL == "" && !noPostSlack {
			return fmt.Errorf("--slack-webhook-url フラグまたは SLACK_WEBHOOK_URL 環境変数の設定が必須です")
		}

		cfg, err := slackFlags.reviewConfig()
		if err != nil {
			return err
		}

		reviewResult, err := executeReviewPipeline(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if reviewResult == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "ℹ️ Diffが見つからなかったため、レビューをスキップしました。")
			return nil
		}

		if noPostSlack {
			return printReview(cmd.OutOrStdout(), reviewResult)
		}

		slog.Info("Slack Webhook URL にレビュー結果を投稿します。", "feature_branch", cfg.FeatureBranch)
		notifier := adapters.NewSlackNotifier(webhookURL)
		if err := notifier.PostMessage(cmd.Context(), reviewResult, cfg.FeatureBranch, cfg.RepoURL); err != nil {
			_ = printReview(cmd.OutOrStdout(), reviewResult)
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "✅ レビュー結果を Slack に投稿しました。")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(slackCmd)
	slackFlags = addGitReviewFlags(slackCmd)

	slackCmd.Flags().StringVar(&slackWebhookURL, "slack-webhook-url", "", "レビュー結果を投稿する Slack Webhook URL (既定: SLACK_WEBHOOK_URL)")
	slackCmd.Flags().BoolVar(&noPostSlack, "no-post", false, "投稿をスキップし、結果を標準出力する")
}
