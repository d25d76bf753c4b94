package workflow

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// File は検証に必要な範囲のワークフローYAMLの構造です。
type File struct {
	Name string         `yaml:"name"`
	On   Triggers       `yaml:"on"`
	Jobs map[string]Job `yaml:"jobs"`
}

// Triggers はワークフローの起動条件です。
type Triggers struct {
	WorkflowCall *WorkflowCall `yaml:"workflow_call"`
}

// WorkflowCall は再利用可能ワークフローとして公開される入力とシークレットです。
type WorkflowCall struct {
	Inputs  map[string]InputSpec  `yaml:"inputs"`
	Secrets map[string]SecretSpec `yaml:"secrets"`
}

// InputSpec は workflow_call の入力宣言です。
type InputSpec struct {
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	Type        string `yaml:"type"`
	Default     string `yaml:"default"`
}

// SecretSpec は workflow_call のシークレット宣言です。
type SecretSpec struct {
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
}

// Job はワークフローのジョブです。
type Job struct {
	RunsOn string `yaml:"runs-on"`
	Steps  []Step `yaml:"steps"`
}

// Step はジョブのステップです。
type Step struct {
	Name string            `yaml:"name"`
	Uses string            `yaml:"uses"`
	With map[string]string `yaml:"with"`
	Env  map[string]string `yaml:"env"`
	Run  string            `yaml:"run"`
}

// Parse はワークフローYAMLを解析します。
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ワークフローYAMLの解析に失敗しました: %w", err)
	}
	return &f, nil
}

// Load はファイルからワークフローを読み込みます。
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ワークフローファイル '%s' の読み込みに失敗しました: %w", path, err)
	}
	return Parse(data)
}

// CheckContract はワークフローが契約どおりの呼び出しインターフェースと
// ジョブ構成（固定チェックアウト → スクリプト実行）を持つか検証します。
// 見つかったすべての不一致を結合したエラーを返します。
func CheckContract(f *File, c Contract) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	call := f.On.WorkflowCall
	if call == nil {
		return errors.New("on.workflow_call が宣言されていません")
	}

	in, ok := call.Inputs[c.Runner.Name]
	switch {
	case !ok:
		fail("入力 %s が宣言されていません", c.Runner.Name)
	default:
		if in.Required {
			fail("入力 %s は任意である必要があります", c.Runner.Name)
		}
		if in.Type != "string" {
			fail("入力 %s の型は string である必要があります (実際: %q)", c.Runner.Name, in.Type)
		}
		if in.Default != c.Runner.Default {
			fail("入力 %s の既定値は %q である必要があります (実際: %q)", c.Runner.Name, c.Runner.Default, in.Default)
		}
	}
	for name := range call.Inputs {
		if name != c.Runner.Name {
			fail("契約にない入力 %s が宣言されています", name)
		}
	}

	for _, s := range c.Secrets {
		spec, ok := call.Secrets[s.Name]
		if !ok {
			fail("シークレット %s が宣言されていません", s.Name)
			continue
		}
		if !spec.Required {
			fail("シークレット %s は必須である必要があります", s.Name)
		}
	}
	declared := make(map[string]bool, len(c.Secrets))
	for _, s := range c.Secrets {
		declared[s.Name] = true
	}
	for name := range call.Secrets {
		if !declared[name] {
			fail("契約にないシークレット %s が宣言されています", name)
		}
	}

	if len(f.Jobs) != 1 {
		fail("ジョブはちょうど1つである必要があります (実際: %d)", len(f.Jobs))
	}
	for id, job := range f.Jobs {
		checkJob(id, job, c, fail)
	}

	return errors.Join(errs...)
}

func checkJob(id string, job Job, c Contract, fail func(string, ...any)) {
	wantRunsOn := "${{ inputs." + c.Runner.Name + " }}"
	if normalizeExpr(job.RunsOn) != wantRunsOn {
		fail("ジョブ %s の runs-on は %s である必要があります (実際: %q)", id, wantRunsOn, job.RunsOn)
	}

	checkoutIdx, runIdx := -1, -1
	for i, step := range job.Steps {
		if checkoutIdx < 0 && strings.HasPrefix(step.Uses, "actions/checkout@") {
			checkoutIdx = i
		}
		if runIdx < 0 && strings.TrimSpace(step.Run) != "" {
			runIdx = i
		}
	}

	if checkoutIdx < 0 {
		fail("ジョブ %s にチェックアウトステップがありません", id)
	} else {
		with := job.Steps[checkoutIdx].With
		if with["repository"] != c.Script.Repository {
			fail("チェックアウト先リポジトリは %s である必要があります (実際: %q)", c.Script.Repository, with["repository"])
		}
		if with["ref"] != c.Script.Ref {
			fail("チェックアウトする参照は %s である必要があります (実際: %q)", c.Script.Ref, with["ref"])
		}
		if with["path"] != c.Script.Path {
			fail("チェックアウト先パスは %s である必要があります (実際: %q)", c.Script.Path, with["path"])
		}
		for k, v := range with {
			if strings.Contains(v, "${{") {
				fail("チェックアウトの %s は式でパラメータ化できません: %q", k, v)
			}
		}
	}

	if runIdx < 0 {
		fail("ジョブ %s にスクリプト実行ステップがありません", id)
		return
	}
	if checkoutIdx >= 0 && runIdx < checkoutIdx {
		fail("スクリプト実行はチェックアウトの後に行う必要があります")
	}
	env := job.Steps[runIdx].Env
	for _, s := range c.Secrets {
		want := "${{ secrets." + s.Name + " }}"
		if normalizeExpr(env[s.EnvVar]) != want {
			fail("環境変数 %s は %s である必要があります (実際: %q)", s.EnvVar, want, env[s.EnvVar])
		}
	}
}

// normalizeExpr は "${{inputs.x}}" のような式の空白を "${{ inputs.x }}" に揃えます。
func normalizeExpr(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "${{") || !strings.HasSuffix(s, "}}") {
		return s
	}
	inner := strings.TrimSpace(s[3 : len(s)-2])
	return "${{ " + inner + " }}"
}
