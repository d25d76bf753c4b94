package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var genericFlags *gitReviewFlags

// genericCmd は、リモートリポジトリのブランチ比較をAIに依頼し、結果を標準出力に出力するコマンドです。
var genericCmd = &cobra.Command{
	Use:   "generic",
	Short: "ブランチ差分のコードレビューを実行し、その結果を標準出力に出力します。",
	Long:  `このコマンドは、指定されたGitリポジトリのブランチ間の差分をAIでレビューし、その結果を標準出力に直接表示します。外部サービスとの連携は行いません。`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := genericFlags.reviewConfig()
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

		if err := printReview(cmd.OutOrStdout(), reviewResult); err != nil {
			return err
		}
		slog.Info("レビュー結果を標準出力に出力しました。")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(genericCmd)
	genericFlags = addGitReviewFlags(genericCmd)
}
