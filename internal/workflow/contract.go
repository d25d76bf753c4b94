// Package workflow は、AIコードレビューを外部スクリプトに委譲する再利用可能ワークフローの
// 呼び出し契約（入力とシークレット）をモデル化し、その生成・検証・ローカル実行を提供します。
package workflow

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
)

// 既定の契約値
const (
	DefaultWorkflowName     = "AI Code Review"
	DefaultRunnerInput      = "environment"
	DefaultRunnerLabel      = "ubuntu-latest"
	DefaultScriptRepository = "cody-reviewer/git-cody-reviewer-go"
	DefaultScriptRef        = "main"
	DefaultScriptPath       = "code-review"
	DefaultScriptRun        = "cd code-review && go run . review"

	SecretPlatformToken = "GH_TOKEN"
	SecretAccessToken   = "SRC_ACCESS_TOKEN"
	SecretEndpoint      = "SRC_ENDPOINT"
)

var (
	// ErrMissingSecret は必須シークレットが呼び出し時に与えられなかったことを示します。
	ErrMissingSecret = errors.New("必須シークレットが指定されていません")
	// ErrUnknownInput は契約に宣言されていない入力が渡されたことを示します。
	ErrUnknownInput = errors.New("宣言されていない入力が指定されました")

	safeNameRE   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
	envVarRE     = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)
	repositoryRE = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)
	refRE        = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)
	labelRE      = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// Input は呼び出し側が任意に指定できる文字列入力です。
type Input struct {
	Name        string
	Description string
	Default     string
}

// Secret は呼び出し側が必ず渡す必要のある秘密値です。
// EnvVar はスクリプト実行時に値を公開する環境変数名です。
type Secret struct {
	Name        string
	Description string
	EnvVar      string
}

// ScriptSource はチェックアウトされる外部スクリプトリポジトリと、その実行コマンドです。
// 入力値によってパラメータ化されることはありません。
type ScriptSource struct {
	Repository string
	Ref        string
	Path       string
	Run        string
}

// Contract は再利用可能ワークフローの呼び出し契約です。
type Contract struct {
	Name    string
	Runner  Input
	Secrets []Secret
	Script  ScriptSource
}

// DefaultContract はリポジトリに同梱されるワークフローが実装する契約を返します。
func DefaultContract() Contract {
	return Contract{
		Name: DefaultWorkflowName,
		Runner: Input{
			Name:        DefaultRunnerInput,
			Description: "Runner label the review job runs on",
			Default:     DefaultRunnerLabel,
		},
		Secrets: []Secret{
			{Name: SecretPlatformToken, Description: "Token used to read the pull request and post the review comment", EnvVar: SecretPlatformToken},
			{Name: SecretAccessToken, Description: "Access token for the Sourcegraph instance running Cody", EnvVar: SecretAccessToken},
			{Name: SecretEndpoint, Description: "URL of the Sourcegraph instance running Cody", EnvVar: SecretEndpoint},
		},
		Script: ScriptSource{
			Repository: DefaultScriptRepository,
			Ref:        DefaultScriptRef,
			Path:       DefaultScriptPath,
			Run:        DefaultScriptRun,
		},
	}
}

// Validate は契約の各フィールドを安全なパターンと照合します。
// 生成されるYAMLへの注入を防ぐため、最初に見つかった不正なフィールドをエラーとして返します。
func (c Contract) Validate() error {
	if strings.TrimSpace(c.Name) == "" || strings.ContainsAny(c.Name, "\n\"") {
		return fmt.Errorf("不正なワークフロー名です: %q", c.Name)
	}
	if !safeNameRE.MatchString(c.Runner.Name) {
		return fmt.Errorf("不正な入力名です: %q", c.Runner.Name)
	}
	if !labelRE.MatchString(c.Runner.Default) {
		return fmt.Errorf("不正な既定ランナーラベルです: %q", c.Runner.Default)
	}
	if len(c.Secrets) == 0 {
		return fmt.Errorf("少なくとも1つのシークレットが必要です")
	}
	seen := make(map[string]bool)
	for _, s := range c.Secrets {
		if !safeNameRE.MatchString(s.Name) || strings.EqualFold(s.Name, "GITHUB_TOKEN") {
			return fmt.Errorf("不正なシークレット名です: %q", s.Name)
		}
		if !envVarRE.MatchString(s.EnvVar) {
			return fmt.Errorf("シークレット %s の環境変数名が不正です: %q", s.Name, s.EnvVar)
		}
		if seen[s.Name] {
			return fmt.Errorf("シークレット %s が重複しています", s.Name)
		}
		seen[s.Name] = true
	}
	if !repositoryRE.MatchString(c.Script.Repository) {
		return fmt.Errorf("不正なスクリプトリポジトリです: %q (owner/name 形式)", c.Script.Repository)
	}
	if !refRE.MatchString(c.Script.Ref) {
		return fmt.Errorf("不正なブランチ参照です: %q", c.Script.Ref)
	}
	clean := path.Clean(c.Script.Path)
	if c.Script.Path == "" || path.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, "..") || !labelRE.MatchString(strings.ReplaceAll(clean, "/", "_")) {
		return fmt.Errorf("不正なチェックアウト先パスです: %q", c.Script.Path)
	}
	if strings.TrimSpace(c.Script.Run) == "" {
		return fmt.Errorf("スクリプトの実行コマンドが空です")
	}
	return nil
}

// Invocation は呼び出し側が渡す入力とシークレットです。
type Invocation struct {
	Inputs  map[string]string
	Secrets map[string]string
}

// MissingSecretError は未指定の必須シークレット名を保持します。
type MissingSecretError struct {
	Names []string
}

func (e *MissingSecretError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingSecret, strings.Join(e.Names, ", "))
}

// Unwrap により errors.Is(err, ErrMissingSecret) が成立します。
func (e *MissingSecretError) Unwrap() error { return ErrMissingSecret }

// Plan は1回の呼び出しに束縛されたジョブの実行計画です。
type Plan struct {
	RunsOn   string
	Checkout ScriptSource
	Env      map[string]string
}

// Environ は Env を "KEY=VALUE" 形式で、キー順に並べて返します。
func (p *Plan) Environ() []string {
	keys := make([]string, 0, len(p.Env))
	for k := range p.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+p.Env[k])
	}
	return out
}

// Resolve は呼び出しを契約に照らして検証し、実行計画を返します。
// ネットワークに触れる前に、未宣言の入力と未指定の必須シークレットを拒否します。
// 入力 environment が省略（または空文字）の場合は既定のランナーラベルが選ばれます。
func (c Contract) Resolve(inv Invocation) (*Plan, error) {
	for name := range inv.Inputs {
		if name != c.Runner.Name {
			return nil, fmt.Errorf("%w: %s", ErrUnknownInput, name)
		}
	}

	runsOn := inv.Inputs[c.Runner.Name]
	if runsOn == "" {
		runsOn = c.Runner.Default
	}

	var missing []string
	env := make(map[string]string, len(c.Secrets))
	for _, s := range c.Secrets {
		v := inv.Secrets[s.Name]
		if v == "" {
			missing = append(missing, s.Name)
			continue
		}
		env[s.EnvVar] = v
	}
	if len(missing) > 0 {
		return nil, &MissingSecretError{Names: missing}
	}

	return &Plan{
		RunsOn:   runsOn,
		Checkout: c.Script,
		Env:      env,
	}, nil
}
