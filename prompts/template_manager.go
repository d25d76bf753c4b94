package prompts

import (
	_ "embed"
	"fmt"
)

// レビューモード
const (
	ModePullRequest = "pr"
	ModeDetail      = "detail"
	ModeRelease     = "release"
)

// --- テンプレートのリソース定義 (go:embed) ---

//go:embed prompt_pr.md
var PullRequestPromptTemplate string

//go:embed prompt_release.md
var ReleasePromptTemplate string

//go:embed prompt_detail.md
var DetailPromptTemplate string

// GetReviewTemplate は、レビューモードに基づいて、テンプレート名とその内容を返します。
// 無効なモードが指定された場合はエラーを返します。
func GetReviewTemplate(reviewMode string) (name string, content string, err error) {
	switch reviewMode {
	case ModePullRequest:
		name = "pr_review"
		content = PullRequestPromptTemplate
	case ModeRelease:
		name = "release_review"
		content = ReleasePromptTemplate
	case ModeDetail:
		name = "detail_review"
		content = DetailPromptTemplate
	default:
		return "", "", fmt.Errorf("無効なレビューモードが指定されました: '%s'。'pr'、'release' または 'detail' を選択してください", reviewMode)
	}

	if content == "" {
		return "", "", fmt.Errorf("レビューモード '%s' に対応するプロンプトテンプレートの内容が空です", reviewMode)
	}
	return name, content, nil
}
