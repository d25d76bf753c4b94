package builder

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"git-cody-reviewer-go/internal/adapters"
	"git-cody-reviewer-go/internal/config"
	"git-cody-reviewer-go/internal/github"
	"git-cody-reviewer-go/internal/pipeline"
	"git-cody-reviewer-go/internal/runner"
	"git-cody-reviewer-go/prompts"
)

// BuildReviewService は選択されたエンジンに応じた CodeReviewAI を構築します。
// contextRepo は Cody が参照するリポジトリ ("host/owner/repo") です。
func BuildReviewService(ctx context.Context, cfg config.ReviewConfig, env config.Env, contextRepo string) (adapters.CodeReviewAI, error) {
	if err := env.RequireEngineCredentials(cfg.Engine); err != nil {
		return nil, err
	}

	switch cfg.Engine {
	case config.EngineCody:
		slog.Debug("Cody CLI アダプターを構築しました。", "context_repo", contextRepo, "endpoint", env.SrcEndpoint)
		return adapters.NewCodyAdapter(contextRepo, env.SrcEndpoint, env.SrcAccessToken), nil
	case config.EngineGemini:
		geminiService, err := adapters.NewGeminiAdapter(ctx, env.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("Gemini Service の構築に失敗しました: %w", err)
		}
		slog.Debug("GeminiService (Adapter) を構築しました。", "model", cfg.GeminiModel)
		return geminiService, nil
	default:
		return nil, config.ValidateEngine(cfg.Engine)
	}
}

// BuildReviewRunner は、ブランチ差分レビューに必要な依存関係をすべて構築し、
// 実行可能な ReviewRunner のインスタンスを返します。
func BuildReviewRunner(ctx context.Context, cfg config.ReviewConfig, env config.Env) (*runner.ReviewRunner, error) {
	gitService := adapters.NewGitAdapter(
		cfg.LocalPath,
		cfg.SSHKeyPath,
		adapters.WithInsecureSkipHostKeyCheck(cfg.SkipHostKeyCheck),
		adapters.WithBaseBranch(cfg.BaseBranch),
	)
	slog.Debug("GitService (Adapter) を構築しました。",
		slog.String("local_path", cfg.LocalPath),
		slog.String("base_branch", cfg.BaseBranch),
	)

	reviewService, err := BuildReviewService(ctx, cfg, env, ContextRepoFromCloneURL(cfg.RepoURL))
	if err != nil {
		return nil, err
	}

	promptBuilder, err := prompts.NewReviewPromptBuilderForMode(cfg.ReviewMode)
	if err != nil {
		return nil, fmt.Errorf("Prompt Builder の構築に失敗しました: %w", err)
	}
	slog.Debug("PromptBuilderを構築しました。", "template", promptBuilder.Name())

	return runner.NewReviewRunner(gitService, reviewService, promptBuilder), nil
}

// BuildPullRequestRunner はプルリクエストレビューのパイプラインを構築します。
func BuildPullRequestRunner(ctx context.Context, cfg config.ReviewConfig, env config.Env, pr config.PullRequestContext) (*pipeline.PullRequestRunner, error) {
	if err := env.RequireGitHubToken(); err != nil {
		return nil, err
	}

	reviewService, err := BuildReviewService(ctx, cfg, env, pr.ContextRepo())
	if err != nil {
		return nil, err
	}

	promptBuilder, err := prompts.NewReviewPromptBuilderForMode(prompts.ModePullRequest)
	if err != nil {
		return nil, fmt.Errorf("Prompt Builder の構築に失敗しました: %w", err)
	}

	client, err := github.NewClient(pr.APIURL, env.GitHubToken)
	if err != nil {
		return nil, err
	}
	slog.Debug("GitHub クライアントを構築しました。", "api_url", pr.APIURL)

	return pipeline.NewPullRequestRunner(client, reviewService, promptBuilder, cfg.Engine), nil
}

// ContextRepoFromCloneURL はクローンURLから Cody の --context-repo に渡す "host/owner/repo" を作ります。
// 解釈できない場合は空文字列を返します。
func ContextRepoFromCloneURL(cloneURL string) string {
	var host, path string
	switch {
	case strings.HasPrefix(cloneURL, "git@"):
		rest := strings.TrimPrefix(cloneURL, "git@")
		h, p, ok := strings.Cut(rest, ":")
		if !ok {
			return ""
		}
		host, path = h, p
	default:
		u, err := url.Parse(cloneURL)
		if err != nil || u.Hostname() == "" {
			return ""
		}
		host, path = u.Hostname(), u.Path
	}

	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	if path == "" {
		return ""
	}
	return host + "/" + path
}
