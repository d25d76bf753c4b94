// Package pipeline はプルリクエストのレビュー処理（詳細の取得、プロンプトの組み立て、
// レビューエンジンの呼び出し、コメントの投稿）を組み立てます。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"git-cody-reviewer-go/internal/adapters"
	"git-cody-reviewer-go/internal/config"
	"git-cody-reviewer-go/internal/diffstat"
	"git-cody-reviewer-go/internal/github"
	"git-cody-reviewer-go/prompts"

	"github.com/google/uuid"
)

// ErrEmptyReview はレビューエンジンが空の結果を返した場合のエラーです。
var ErrEmptyReview = errors.New("レビューエンジンが空のレビューを返しました")

// PullRequestAPI はパイプラインが必要とするホスティングプラットフォームの操作です。
type PullRequestAPI interface {
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)
	ListPullRequestFiles(ctx context.Context, owner, repo string, number int) ([]github.File, error)
	CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) (*github.Comment, error)
	UpdateIssueComment(ctx context.Context, owner, repo string, commentID int64, body string) (*github.Comment, error)
	FindIssueComment(ctx context.Context, owner, repo string, number int, marker string) (*github.Comment, error)
}

// Result は1回のレビュー実行の結果です。
type Result struct {
	RunID  string
	Engine string
	Review string
	Files  []diffstat.FileStat
}

// PullRequestRunner はプルリクエストをレビューしてコメントを投稿します。
type PullRequestRunner struct {
	api           PullRequestAPI
	reviewService adapters.CodeReviewAI
	promptBuilder *prompts.ReviewPromptBuilder
	engine        string
	newRunID      func() string
}

// NewPullRequestRunner は PullRequestRunner を初期化します。
func NewPullRequestRunner(
	api PullRequestAPI,
	ai adapters.CodeReviewAI,
	pb *prompts.ReviewPromptBuilder,
	engine string,
) *PullRequestRunner {
	return &PullRequestRunner{
		api:           api,
		reviewService: ai,
		promptBuilder: pb,
		engine:        engine,
		newRunID:      uuid.NewString,
	}
}

// Review はプルリクエストの詳細と変更ファイルを取得し、レビューエンジンにレビューを依頼します。
func (r *PullRequestRunner) Review(ctx context.Context, pr config.PullRequestContext) (*Result, error) {
	runID := r.newRunID()
	logger := slog.With("run_id", runID, "repo", pr.Owner+"/"+pr.Repo, "pr", pr.Number)

	logger.Info("プルリクエストの詳細を取得しています。")
	details, err := r.api.GetPullRequest(ctx, pr.Owner, pr.Repo, pr.Number)
	if err != nil {
		return nil, fmt.Errorf("プルリクエストの取得に失敗しました: %w", err)
	}
	files, err := r.api.ListPullRequestFiles(ctx, pr.Owner, pr.Repo, pr.Number)
	if err != nil {
		return nil, fmt.Errorf("変更ファイルの取得に失敗しました: %w", err)
	}

	stats := make([]diffstat.FileStat, 0, len(files))
	for _, f := range files {
		stat, err := diffstat.FromPatch(f.Filename, f.Patch)
		if err != nil {
			logger.Debug("パッチを解析できませんでした。", "file", f.Filename, "error", err)
			stat = diffstat.FileStat{Name: f.Filename, Added: f.Additions, Deleted: f.Deletions}
		}
		stats = append(stats, stat)
	}
	summary := diffstat.Summary{Files: stats}
	added, deleted := summary.Totals()
	logger.Info("変更ファイルを取得しました。", "files", len(files), "added", added, "deleted", deleted)

	finalPrompt, err := r.promptBuilder.Build(prompts.ReviewTemplateData{
		Details: github.FormatDetails(details, files),
		Stats:   summary.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("プロンプトの組み立てに失敗しました: %w", err)
	}

	logger.Info("AIによるコードレビューを開始します。", "engine", r.engine, "prompt_bytes", len(finalPrompt))
	review, err := r.reviewService.ReviewCodeDiff(ctx, finalPrompt)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(review) == "" {
		return nil, ErrEmptyReview
	}
	logger.Info("AIレビューの取得に成功しました。", "review_bytes", len(review))

	return &Result{RunID: runID, Engine: r.engine, Review: review, Files: stats}, nil
}

// Publish はレビュー結果をプルリクエストのコメントとして投稿します。
// update が true の場合、マーカー付きの既存コメントがあればそれを書き換えます。
func (r *PullRequestRunner) Publish(ctx context.Context, pr config.PullRequestContext, res *Result, update bool) (*github.Comment, error) {
	body := FormatComment(res)

	if update {
		existing, err := r.api.FindIssueComment(ctx, pr.Owner, pr.Repo, pr.Number, CommentMarker)
		if err != nil {
			return nil, fmt.Errorf("既存のレビューコメントの検索に失敗しました: %w", err)
		}
		if existing != nil {
			slog.Info("既存のレビューコメントを更新します。", "comment_id", existing.ID, "run_id", res.RunID)
			return r.api.UpdateIssueComment(ctx, pr.Owner, pr.Repo, existing.ID, body)
		}
	}

	comment, err := r.api.CreateIssueComment(ctx, pr.Owner, pr.Repo, pr.Number, body)
	if err != nil {
		return nil, err
	}
	slog.Info("Comment added successfully!", "url", comment.HTMLURL, "run_id", res.RunID)
	return comment, nil
}
