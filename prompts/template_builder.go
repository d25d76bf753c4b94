package prompts

import (
	"fmt"
	"strings"
	"text/template"
)

// ReviewTemplateData はレビュープロンプトのテンプレートに渡すデータ構造です。
type ReviewTemplateData struct {
	// DiffContent は git diff の出力です。detail / release モードで使います。
	DiffContent string
	// Stats は差分の統計（ファイルごとの追加・削除行数）です。空の場合は省略されます。
	Stats string
	// Details はプルリクエストのタイトル・本文・パッチを整形したテキストです。pr モードで使います。
	Details string
}

// ReviewPromptBuilder はレビュープロンプトの構成を管理します。
type ReviewPromptBuilder struct {
	name string
	tmpl *template.Template
}

// NewReviewPromptBuilder は ReviewPromptBuilder を初期化します。
// name はテンプレートの名前であり、主にエラーメッセージの識別に利用されます。
func NewReviewPromptBuilder(name string, templateContent string) (*ReviewPromptBuilder, error) {
	if templateContent == "" {
		return nil, fmt.Errorf("プロンプトテンプレートの内容が空です")
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(templateContent)
	if err != nil {
		return nil, fmt.Errorf("プロンプトテンプレートの解析に失敗しました: %w", err)
	}
	return &ReviewPromptBuilder{name: name, tmpl: tmpl}, nil
}

// NewReviewPromptBuilderForMode はレビューモードに対応する埋め込みテンプレートからビルダーを作ります。
func NewReviewPromptBuilderForMode(reviewMode string) (*ReviewPromptBuilder, error) {
	name, content, err := GetReviewTemplate(reviewMode)
	if err != nil {
		return nil, err
	}
	return NewReviewPromptBuilder(name, content)
}

// Name はテンプレート名を返します。
func (b *ReviewPromptBuilder) Name() string { return b.name }

// Build は ReviewTemplateData を埋め込み、レビューエンジンへ送る最終的なプロンプト文字列を完成させます。
func (b *ReviewPromptBuilder) Build(data ReviewTemplateData) (string, error) {
	if b == nil || b.tmpl == nil {
		return "", fmt.Errorf("レビュープロンプトテンプレートが初期化されていません")
	}

	var sb strings.Builder
	if err := b.tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("レビュープロンプトの実行に失敗しました (%s): %w", b.name, err)
	}
	return sb.String(), nil
}
