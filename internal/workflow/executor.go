package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// DefaultCloneBaseURL はスクリプトリポジトリの取得元です。
const DefaultCloneBaseURL = "https://github.com"

// Checkouter は外部スクリプトリポジトリを指定パスに取得します。
type Checkouter interface {
	Checkout(ctx context.Context, src ScriptSource, dest string) error
}

// CheckoutError はチェックアウトの失敗（リポジトリやブランチに到達できない等）です。
type CheckoutError struct {
	Source ScriptSource
	Err    error
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("%s@%s のチェックアウトに失敗しました: %v", e.Source.Repository, e.Source.Ref, e.Err)
}

func (e *CheckoutError) Unwrap() error { return e.Err }

// ScriptError は外部スクリプトの異常終了です。Code はスクリプトの終了コードです。
type ScriptError struct {
	Code int
	Err  error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("レビュースクリプトが終了コード %d で失敗しました: %v", e.Code, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// ExitCode はプロセスの終了コードとして使う値を返します。
func (e *ScriptError) ExitCode() int { return e.Code }

// GitCheckouter は go-git でスクリプトリポジトリをクローンする Checkouter です。
type GitCheckouter struct {
	// BaseURL は "owner/name" の前に付与されるクローン元です。ローカルディレクトリも指定できます。
	BaseURL string
	// Token が設定され、かつ BaseURL が HTTP(S) の場合に認証に使用します。
	Token string
	// Depth は浅いクローンの深さです。0 は全履歴を取得します。
	Depth int
}

// NewGitCheckouter は GitHub から深さ1でクローンする GitCheckouter を返します。
func NewGitCheckouter(token string) *GitCheckouter {
	return &GitCheckouter{BaseURL: DefaultCloneBaseURL, Token: token, Depth: 1}
}

// Checkout は dest を削除してから、固定されたブランチを単一ブランチでクローンします。
func (g *GitCheckouter) Checkout(ctx context.Context, src ScriptSource, dest string) error {
	base := g.BaseURL
	if base == "" {
		base = DefaultCloneBaseURL
	}
	url := strings.TrimRight(base, "/") + "/" + src.Repository

	var auth transport.AuthMethod
	if g.Token != "" && (strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "http://")) {
		auth = &githttp.BasicAuth{Username: "x-access-token", Password: g.Token}
	}

	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("既存のチェックアウト先 '%s' の削除に失敗しました: %w", dest, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("親ディレクトリの作成に失敗しました: %w", err)
	}

	slog.Info("スクリプトリポジトリをクローンします。", "url", url, "ref", src.Ref, "path", dest)
	_, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
		URL:           url,
		ReferenceName: plumbing.NewBranchReferenceName(src.Ref),
		SingleBranch:  true,
		Depth:         g.Depth,
		Auth:          auth,
		Progress:      io.Discard,
	})
	if err != nil {
		return fmt.Errorf("go-git クローンに失敗しました (URL: %s): %w", url, err)
	}
	return nil
}

// Executor はジョブ定義をローカルで実行します。
// チェックアウトが完了してからスクリプトを実行し、リトライは行いません。
type Executor struct {
	Workspace  string
	Checkouter Checkouter
	// Shell はスクリプト実行に使うコマンドです。既定は sh -c です。
	Shell  []string
	Stdout io.Writer
	Stderr io.Writer
	// BaseEnv はスクリプトに引き継ぐ環境変数です。nil の場合は os.Environ() を使います。
	BaseEnv []string
}

// Run は実行計画を実行します。
func (e *Executor) Run(ctx context.Context, plan *Plan) error {
	if plan == nil {
		return errors.New("実行計画が nil です")
	}
	if e.Checkouter == nil {
		return errors.New("Checkouter が設定されていません")
	}

	slog.Info("レビュージョブを開始します。", "runs_on", plan.RunsOn, "repository", plan.Checkout.Repository, "ref", plan.Checkout.Ref)

	dest := filepath.Join(e.Workspace, filepath.FromSlash(plan.Checkout.Path))
	if err := e.Checkouter.Checkout(ctx, plan.Checkout, dest); err != nil {
		return &CheckoutError{Source: plan.Checkout, Err: err}
	}

	shell := e.Shell
	if len(shell) == 0 {
		shell = []string{"sh", "-c"}
	}
	args := append(append([]string{}, shell[1:]...), plan.Checkout.Run)
	cmd := exec.CommandContext(ctx, shell[0], args...)
	cmd.Dir = e.Workspace

	base := e.BaseEnv
	if base == nil {
		base = os.Environ()
	}
	cmd.Env = append(append([]string{}, base...), plan.Environ()...)
	cmd.Stdout = writerOr(e.Stdout, os.Stdout)
	cmd.Stderr = writerOr(e.Stderr, os.Stderr)

	slog.Info("レビュースクリプトを実行します。", "run", plan.Checkout.Run)
	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &ScriptError{Code: code, Err: err}
	}

	slog.Info("レビュージョブが完了しました。")
	return nil
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return fallback
}
