package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"git-cody-reviewer-go/internal/adapters"
	"git-cody-reviewer-go/internal/config"
	"git-cody-reviewer-go/internal/diffstat"
	"git-cody-reviewer-go/prompts"
)

// ReviewRunner はブランチ間の差分をレビューするビジネスロジックを実行します。
// 必要な依存関係（アダプタ）をフィールドとして保持します。
type ReviewRunner struct {
	gitService    adapters.GitService
	reviewService adapters.CodeReviewAI
	promptBuilder *prompts.ReviewPromptBuilder
}

// NewReviewRunner は ReviewRunner の新しいインスタンスを生成します。
func NewReviewRunner(
	git adapters.GitService,
	ai adapters.CodeReviewAI,
	pb *prompts.ReviewPromptBuilder,
) *ReviewRunner {
	return &ReviewRunner{
		gitService:    git,
		reviewService: ai,
		promptBuilder: pb,
	}
}

// Run はGit Diffを取得し、レビューエンジンでレビューを実行します。
// 差分が空の場合は空文字列を返します。
func (r *ReviewRunner) Run(ctx context.Context, cfg config.ReviewConfig) (string, error) {
	slog.Info("Gitリポジトリのセットアップと差分取得を開始します。", "url", cfg.RepoURL)
	if err := r.gitService.CloneOrUpdate(ctx, cfg.RepoURL); err != nil {
		return "", fmt.Errorf("リポジトリのセットアップに失敗しました: %w", err)
	}

	defer func() {
		if cleanupErr := r.gitService.Cleanup(ctx); cleanupErr != nil {
			slog.Error("Gitリポジトリのクリーンアップに失敗しました。", "error", cleanupErr)
		}
	}()

	if err := r.gitService.Fetch(ctx); err != nil {
		return "", fmt.Errorf("最新の変更のフェッチに失敗しました: %w", err)
	}

	codeDiff, err := r.gitService.GetCodeDiff(ctx, cfg.BaseBranch, cfg.FeatureBranch)
	if err != nil {
		return "", fmt.Errorf("コード差分の取得に失敗しました: %w", err)
	}
	if strings.TrimSpace(codeDiff) == "" {
		return "", nil
	}

	stats, err := diffstat.FromGitDiff(codeDiff)
	if err != nil {
		// 統計はプロンプトの補足情報なので、解析できなくてもレビューは続行する
		slog.Warn("差分の統計を取得できませんでした。", "error", err)
	}
	added, deleted := stats.Totals()
	slog.Info("Git差分の取得に成功しました。",
		"size_bytes", len(codeDiff),
		"files", len(stats.Files),
		"added", added,
		"deleted", deleted,
	)

	slog.InfoContext(ctx, "AIプロンプトを生成中...", "mode", cfg.ReviewMode)
	finalPrompt, err := r.promptBuilder.Build(prompts.ReviewTemplateData{
		DiffContent: codeDiff,
		Stats:       stats.String(),
	})
	if err != nil {
		return "", fmt.Errorf("プロンプトの組み立てに失敗しました: %w", err)
	}

	slog.Info("AIによるコードレビューを開始します。", "engine", cfg.Engine)
	reviewResult, err := r.reviewService.ReviewCodeDiff(ctx, finalPrompt)
	if err != nil {
		return "", fmt.Errorf("AIレビューの実行に失敗しました: %w", err)
	}
	return reviewResult, nil
}
