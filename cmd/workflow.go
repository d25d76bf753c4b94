package cmd

import (
	"fmt"
	"log/slog"

	"git-cody-reviewer-go/internal/workflow"

	"github.com/spf13/cobra"
)

var (
	workflowOutput  string
	workflowForce   bool
	runEnvironment  string
	runWorkspace    string
	runCloneBaseURL string
)

// workflowCmd は再利用可能ワークフローを扱うコマンドのグループです。
var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "AIコードレビューの再利用可能ワークフローを生成・検証・ローカル実行します。",
}

var workflowGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "再利用可能ワークフローの YAML を生成します。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := workflow.DefaultContract()
		if workflowOutput == "-" {
			out, err := workflow.Generate(c)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		}
		if err := workflow.WriteWorkflow(c, workflowOutput, workflowForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ ワークフローを %s に書き出しました。\n", workflowOutput)
		return nil
	},
}

var workflowValidateCmd = &cobra.Command{
	Use:   "validate [PATH]",
	Short: "ワークフローファイルが呼び出し契約を満たしているか検証します。",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := workflow.DefaultWorkflowPath
		if len(args) == 1 {
			path = args[0]
		}
		f, err := workflow.Load(path)
		if err != nil {
			return err
		}
		if err := workflow.CheckContract(f, workflow.DefaultContract()); err != nil {
			return fmt.Errorf("%s は契約を満たしていません:\n%w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ %s は契約を満たしています。\n", path)
		return nil
	},
}

var workflowRunCmd = &cobra.Command{
	Use:   "run",
	Short: "ジョブをローカルで実行します (スクリプトのチェックアウト後に実行)。",
	Long: `環境変数 GH_TOKEN (または GITHUB_TOKEN)、SRC_ACCESS_TOKEN、SRC_ENDPOINT をシークレットとして読み込み、
呼び出しを検証してからスクリプトリポジトリをチェックアウトし、レビュースクリプトを実行します。
シークレットが不足している場合は、ネットワークに触れる前に失敗します。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := workflow.DefaultContract()

		inv := workflow.Invocation{Secrets: workflowSecrets(c)}
		if cmd.Flags().Changed("environment") {
			inv.Inputs = map[string]string{c.Runner.Name: runEnvironment}
		}

		plan, err := c.Resolve(inv)
		if err != nil {
			return err
		}
		slog.Info("実行計画を作成しました。", "runs_on", plan.RunsOn)

		checkouter := workflow.NewGitCheckouter(appEnv.GitHubToken)
		if runCloneBaseURL != "" {
			checkouter.BaseURL = runCloneBaseURL
		}
		executor := &workflow.Executor{
			Workspace:  runWorkspace,
			Checkouter: checkouter,
			Stdout:     cmd.OutOrStdout(),
			Stderr:     cmd.ErrOrStderr(),
		}
		return executor.Run(cmd.Context(), plan)
	},
}

// workflowSecrets は契約のシークレットを読み込み済みの環境変数から集めます。
func workflowSecrets(c workflow.Contract) map[string]string {
	values := map[string]string{
		workflow.SecretPlatformToken: appEnv.GitHubToken,
		workflow.SecretAccessToken:   appEnv.SrcAccessToken,
		workflow.SecretEndpoint:      appEnv.SrcEndpoint,
	}
	secrets := make(map[string]string, len(c.Secrets))
	for _, s := range c.Secrets {
		if v := values[s.Name]; v != "" {
			secrets[s.Name] = v
		}
	}
	return secrets
}

func init() {
	RootCmd.AddCommand(workflowCmd)
	workflowCmd.AddCommand(workflowGenerateCmd, workflowValidateCmd, workflowRunCmd)

	workflowGenerateCmd.Flags().StringVarP(&workflowOutput, "output", "o", workflow.DefaultWorkflowPath, "出力先のパス ('-' で標準出力)")
	workflowGenerateCmd.Flags().BoolVar(&workflowForce, "force", false, "既存のファイルを上書きします")

	workflowRunCmd.Flags().StringVar(&runEnvironment, "environment", workflow.DefaultRunnerLabel, "ジョブを実行するランナーラベル")
	workflowRunCmd.Flags().StringVarP(&runWorkspace, "workspace", "w", ".", "スクリプトをチェックアウトする作業ディレクトリ")
	workflowRunCmd.Flags().StringVar(&runCloneBaseURL, "clone-base-url", workflow.DefaultCloneBaseURL, "スクリプトリポジトリのクローン元")
}
