package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"git-cody-reviewer-go/internal/builder"
	"git-cody-reviewer-go/internal/config"
	"git-cody-reviewer-go/prompts"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

const renderWordWrap = 100

// gitReviewFlags はブランチ差分をレビューするサブコマンド (generic / slack / gcs) のフラグです。
type gitReviewFlags struct {
	mode             string
	gitCloneURL      string
	baseBranch       string
	featureBranch    string
	sshKeyPath       string
	localPath        string
	skipHostKeyCheck bool
}

// addGitReviewFlags はサブコマンドにブランチ差分レビュー用のフラグを登録します。
func addGitReviewFlags(cmd *cobra.Command) *gitReviewFlags {
	f := &gitReviewFlags{}
	fs := cmd.Flags()
	fs.StringVarP(&f.mode, "mode", "m", prompts.ModeDetail, "レビューモード ('detail' または 'release')")
	fs.StringVarP(&f.gitCloneURL, "git-clone-url", "u", "", "レビュー対象のGitリポジトリURL")
	fs.StringVarP(&f.baseBranch, "base-branch", "b", "main", "差分比較の基準ブランチ")
	fs.StringVarP(&f.featureBranch, "feature-branch", "f", "", "レビュー対象のフィーチャーブランチ")
	fs.StringVarP(&f.sshKeyPath, "ssh-key-path", "k", "~/.ssh/id_rsa", "SSH のクローンURLで使用する秘密鍵のパス")
	fs.StringVarP(&f.localPath, "local-path", "l",
		filepath.Join(os.TempDir(), "git-reviewer-repos", "tmp-"+cmd.Name()),
		"リポジトリをクローンするローカルパス")
	fs.BoolVar(&f.skipHostKeyCheck, "skip-host-key-check", false, "SSH ホストキーの検証をスキップします (非推奨)")

	_ = cmd.MarkFlagRequired("git-clone-url")
	_ = cmd.MarkFlagRequired("feature-branch")
	return f
}

// reviewConfig はフラグとルートの永続フラグから config.ReviewConfig を構築します。
func (f *gitReviewFlags) reviewConfig() (config.ReviewConfig, error) {
	if f.mode != prompts.ModeDetail && f.mode != prompts.ModeRelease {
		return config.ReviewConfig{}, fmt.Errorf("無効なレビューモードが指定されました: '%s'。'release' または 'detail' を選択してください", f.mode)
	}
	return config.ReviewConfig{
		ReviewMode:       f.mode,
		Engine:           flags.engine,
		GeminiModel:      flags.geminiModel,
		RepoURL:          f.gitCloneURL,
		BaseBranch:       f.baseBranch,
		FeatureBranch:    f.featureBranch,
		SSHKeyPath:       f.sshKeyPath,
		LocalPath:        f.localPath,
		SkipHostKeyCheck: f.skipHostKeyCheck,
	}, nil
}

// executeReviewPipeline は、すべての依存関係を構築し、ブランチ差分のレビューを実行します。
// 差分がない場合は空文字列を返します。
func executeReviewPipeline(ctx context.Context, cfg config.ReviewConfig) (string, error) {
	reviewRunner, err := builder.BuildReviewRunner(ctx, cfg, appEnv)
	if err != nil {
		return "", err
	}

	slog.Info("レビューパイプラインを開始します。", "mode", cfg.ReviewMode, "engine", cfg.Engine)
	reviewResult, err := reviewRunner.Run(ctx, cfg)
	if err != nil {
		return "", err
	}
	if reviewResult == "" {
		slog.Info("Diff がないためレビューをスキップしました。")
	}
	return reviewResult, nil
}

// printReview はレビュー結果を出力します。出力先が端末の場合は glamour で整形します。
func printReview(w io.Writer, markdown string) error {
	if isTerminal(w) {
		renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(renderWordWrap))
		if err == nil {
			rendered, renderErr := renderer.Render(markdown)
			if renderErr == nil {
				_, err = io.WriteString(w, rendered)
				return err
			}
			err = renderErr
		}
		slog.Debug("Markdown の整形に失敗したため、そのまま出力します。", "error", err)
	}
	_, err := fmt.Fprintln(w, markdown)
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
