package cmd

import (
	"fmt"
	"log/slog"

	"git-cody-reviewer-go/internal/builder"
	"git-cody-reviewer-go/internal/config"
	"git-cody-reviewer-go/prompts"

	"github.com/spf13/cobra"
)

// reviewFlags は review コマンド固有のフラグです。
type reviewFlags struct {
	repository string
	number     int
	noPost     bool
	update     bool
}

var prFlags reviewFlags

// reviewCmd はCIのプルリクエストイベントから起動され、PRをレビューしてコメントを投稿します。
var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "プルリクエストの変更をレビューし、その結果をPRコメントとして投稿します。",
	Long: `GITHUB_EVENT_NAME=pull_request の環境で実行されることを想定しています。
GITHUB_REPOSITORY と GITHUB_REF からPRを特定し、タイトル・本文と変更ファイルのパッチをレビューエンジンに渡します。
--pr を指定した場合はイベント種別の確認を行わず、指定されたPRをレビューします。`,
	Args: cobra.NoArgs,
	RunE: runReview,
}

func init() {
	RootCmd.AddCommand(reviewCmd)

	reviewCmd.Flags().StringVarP(&prFlags.repository, "repo", "r", "", "レビュー対象のリポジトリ 'owner/name' (既定: GITHUB_REPOSITORY)")
	reviewCmd.Flags().IntVarP(&prFlags.number, "pr", "p", 0, "レビュー対象のPR番号 (既定: GITHUB_REF から取得)")
	reviewCmd.Flags().BoolVar(&prFlags.noPost, "no-post", false, "コメントを投稿せず、レビュー結果を標準出力に表示します")
	reviewCmd.Flags().BoolVar(&prFlags.update, "update", false, "以前にこのツールが投稿したコメントがあれば、新規投稿せずに書き換えます")
}

func runReview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	pr, err := appEnv.PullRequest(prFlags.repository, prFlags.number)
	if err != nil {
		return err
	}

	cfg := config.ReviewConfig{
		ReviewMode:  prompts.ModePullRequest,
		Engine:      flags.engine,
		GeminiModel: flags.geminiModel,
	}
	prRunner, err := builder.BuildPullRequestRunner(ctx, cfg, appEnv, pr)
	if err != nil {
		return err
	}

	res, err := prRunner.Review(ctx, pr)
	if err != nil {
		return err
	}

	if prFlags.noPost {
		return printReview(cmd.OutOrStdout(), res.Review)
	}

	comment, err := prRunner.Publish(ctx, pr, res, prFlags.update)
	if err != nil {
		slog.Error("Failed to add comment.", "error", err, "run_id", res.RunID)
		_ = printReview(cmd.OutOrStdout(), res.Review)
		return fmt.Errorf("レビューコメントの投稿に失敗しました: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Comment added successfully!", comment.HTMLURL)
	return nil
}
