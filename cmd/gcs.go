package cmd

import (
	"fmt"
	"log/slog"

	"git-cody-reviewer-go/internal/adapters"

	"github.com/spf13/cobra"
)

// GcsFlags は gcs コマンド固有のフラグを保持します。
type GcsFlags struct {
	GcsURI      string // 宛先URI (例: gs://bucket/path/to/result.html)
	ContentType string
	Markdown    bool
}

var (
	gcsReviewFlags *gitReviewFlags
	gcsFlags       GcsFlags
)

// gcsCmd はレビュー結果をスタイル付きHTMLに変換し、GCS に保存するコマンドです。
var gcsCmd = &cobra.Command{
	Use:   "gcs",
	Short: "AIレビュー結果をスタイル付きHTMLに変換し、その結果を指定されたGCS URIに保存します。",
	Long: `このコマンドは、指定されたGitリポジトリのブランチ間の差分をAIでレビューし、その結果をHTMLに変換した後、go-remote-io を利用してGCSにアップロードします。
宛先 URI は '--gcs-uri' フラグで指定し、'gs://bucket-name/object-path' の形式である必要があります。`,
	Args: cobra.NoArgs,
	RunE: runGcsCommand,
}

func init() {
	RootCmd.AddCommand(gcsCmd)
	gcsReviewFlags = addGitReviewFlags(gcsCmd)

	gcsCmd.Flags().StringVarP(&gcsFlags.ContentType, "content-type", "t", "text/html; charset=utf-8", "GCSに保存する際のMIMEタイプ")
	gcsCmd.Flags().StringVarP(&gcsFlags.GcsURI, "gcs-uri", "s", "gs://git-cody-reviewer-go/review/result.html", "GCSの保存先")
	gcsCmd.Flags().BoolVar(&gcsFlags.Markdown, "markdown", false, "HTMLに変換せず Markdown のまま保存します")
}

func runGcsCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// レビューを実行する前に宛先を検証する
	if _, _, err := adapters.ParseGCSURI(gcsFlags.GcsURI); err != nil {
		return err
	}

	cfg, err := gcsReviewFlags.reviewConfig()
	if err != nil {
		return err
	}

	reviewResult, err := executeReviewPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	if reviewResult == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "ℹ️ Diffが見つからなかったため、レビューをスキップしました。")
		return nil
	}

	writer, closeWriter, err := adapters.NewGCSWriter(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeWriter(); cerr != nil {
			slog.Warn("GCSクライアントのクローズに失敗しました", "error", cerr)
		}
	}()
	publisher := &adapters.GCSPublisher{Writer: writer}
	contentType := gcsFlags.ContentType
	if gcsFlags.Markdown {
		if !cmd.Flags().Changed("content-type") {
			contentType = "text/markdown; charset=utf-8"
		}
	} else {
		publisher.Converter = adapters.MarkdownHTMLConverter{}
	}

	title := fmt.Sprintf("AIコードレビュー結果 (ブランチ: `%s` ← `%s`)", cfg.BaseBranch, cfg.FeatureBranch)
	slog.Info("レビュー結果をGCSへアップロード中", "uri", gcsFlags.GcsURI, "content_type", contentType)
	if err := publisher.Publish(ctx, gcsFlags.GcsURI, title, reviewResult, contentType); err != nil {
		return err
	}
	slog.Info("GCSへのアップロードが完了しました。")
	fmt.Fprintf(cmd.OutOrStdout(), "✅ レビュー結果を %s に保存しました。\n", gcsFlags.GcsURI)
	return nil
}
