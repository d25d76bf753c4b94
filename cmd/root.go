package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"git-cody-reviewer-go/internal/config"

	"github.com/spf13/cobra"
)

const defaultGeminiModel = "gemini-2.5-flash"

// rootFlags は全サブコマンドで共有される永続フラグです。
type rootFlags struct {
	configFile  string
	verbose     bool
	engine      string
	geminiModel string
}

var (
	flags  rootFlags
	appEnv config.Env
)

// RootCmd はアプリケーションのベースコマンド（"git-cody-reviewer-go" 本体）です。
var RootCmd = &cobra.Command{
	Use:   "git-cody-reviewer-go",
	Short: "Cody (または Gemini) を使ってプルリクエストやGitの差分をレビューするCLIツール",
	Long: `このツールは、プルリクエストの変更内容をAIでレビューし、その結果をPRコメントとして投稿します。
再利用可能ワークフローの生成・検証・ローカル実行も提供します。

利用可能なサブコマンド:
  review    (プルリクエストをレビューしてコメントを投稿)
  workflow  (再利用可能ワークフローの generate / validate / run)
  generic   (ブランチ差分をレビューして標準出力に表示)
  slack     (ブランチ差分をレビューして Slack に投稿)
  gcs       (ブランチ差分をレビューして HTML を GCS に保存)`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initApp,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	pf := RootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "環境変数の代わりに値を読み込む YAML 設定ファイル")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "デバッグログを出力します")
	pf.StringVarP(&flags.engine, "engine", "e", config.EngineCody, "レビューエンジン ('cody' または 'gemini')")
	pf.StringVar(&flags.geminiModel, "gemini-model", defaultGeminiModel, "gemini エンジンで使用するモデル名")
}

// initApp はロガーを設定し、環境変数と設定ファイルを読み込みます。
func initApp(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if flags.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := config.ValidateEngine(flags.engine); err != nil {
		return err
	}

	env, err := config.LoadEnv(flags.configFile)
	if err != nil {
		return err
	}
	appEnv = env
	slog.Debug("設定を読み込みました。", "config", flags.configFile, "engine", flags.engine, "api_url", env.GitHubAPIURL)
	return nil
}

// Execute はルートコマンドを実行し、アプリケーションを起動します。
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "エラー:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode は Cody やレビュースクリプトの終了コードを引き継ぎ、それ以外は 1 を返します。
func exitCode(err error) int {
	var coded interface{ ExitCode() int }
	if errors.As(err, &coded) && coded.ExitCode() > 0 {
		return coded.ExitCode()
	}
	return 1
}
