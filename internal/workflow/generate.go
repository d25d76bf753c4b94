package workflow

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// DefaultWorkflowPath はリポジトリ内で再利用可能ワークフローを配置するパスです。
const DefaultWorkflowPath = ".github/workflows/code-review.yml"

// checkoutAction は外部スクリプトの取得に使用するアクションです。
const checkoutAction = "actions/checkout@v4"

// Generate は契約から再利用可能ワークフローのYAMLを生成します。
func Generate(c Contract) (string, error) {
	if err := c.Validate(); err != nil {
		return "", fmt.Errorf("不正な契約です: %w", err)
	}

	tmpl, err := template.New("workflow").Parse(workflowTemplate)
	if err != nil {
		return "", fmt.Errorf("ワークフローテンプレートの解析に失敗しました: %w", err)
	}

	data := templateData{Contract: c, CheckoutAction: checkoutAction}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("ワークフローテンプレートの実行に失敗しました: %w", err)
	}
	return buf.String(), nil
}

// WriteWorkflow はワークフローを生成して outputPath に書き込みます。
// force が false の場合、既存ファイルは上書きしません。
func WriteWorkflow(c Contract, outputPath string, force bool) error {
	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("ワークフローファイルが既に存在します: %s (--force で上書きできます)", outputPath)
		}
	}

	content, err := Generate(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ディレクトリ %s の作成に失敗しました: %w", dir, err)
	}
	if err := os.WriteFile(outputPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("ワークフローの書き込みに失敗しました: %w", err)
	}
	return nil
}

type templateData struct {
	Contract
	CheckoutAction string
}

var workflowTemplate = `# {{ .Name }}
# Generated by: git-cody-reviewer-go workflow generate
#
# Reusable workflow. Callers supply:
#   inputs:  {{ .Runner.Name }} (optional, default "{{ .Runner.Default }}")
#   secrets:{{ range .Secrets }} {{ .Name }}{{ end }} (required)
#
# The review script is checked out from {{ .Script.Repository }}@{{ .Script.Ref }}.

name: {{ printf "%q" .Name }}

on:
  workflow_call:
    inputs:
      {{ .Runner.Name }}:
        description: {{ printf "%q" .Runner.Description }}
        required: false
        type: string
        default: {{ printf "%q" .Runner.Default }}
    secrets:
      {{- range .Secrets }}
      {{ .Name }}:
        description: {{ printf "%q" .Description }}
        required: true
      {{- end }}

jobs:
  code-review:
    runs-on: ${{"{{"}} inputs.{{ .Runner.Name }} {{"}}"}}
    steps:
      - name: Checkout review script
        uses: {{ .CheckoutAction }}
        with:
          repository: {{ .Script.Repository }}
          ref: {{ .Script.Ref }}
          path: {{ .Script.Path }}

      - name: Run code review
        env:
          {{- range .Secrets }}
          {{ .EnvVar }}: ${{"{{"}} secrets.{{ .Name }} {{"}}"}}
          {{- end }}
        run: {{ printf "%q" .Script.Run }}
`
