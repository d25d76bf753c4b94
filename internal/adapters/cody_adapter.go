package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// DefaultCodyBinary は Cody CLI の実行ファイル名です。
const DefaultCodyBinary = "cody"

// MaxPromptBytes は `-m` に渡せるプロンプトの上限です。
// Linux は引数1つあたり 128KiB（終端の NUL を含む）を超える exec を E2BIG で拒否します。
const MaxPromptBytes = 128*1024 - 1

// ErrPromptTooLarge はプロンプトが MaxPromptBytes を超えた場合に返されます。
var ErrPromptTooLarge = errors.New("プロンプトが cody chat の引数として渡せるサイズを超えています")

// ErrCodyNotFound は Cody CLI が PATH 上に見つからない場合に返されます。
var ErrCodyNotFound = errors.New("コマンド 'cody' が見つかりません。cody をインストールし、PATH に含めてください")

// CodyExitError は Cody CLI が非ゼロで終了した場合のエラーです。
type CodyExitError struct {
	Code   int
	Stderr string
}

func (e *CodyExitError) Error() string {
	return fmt.Sprintf("cody chat が終了コード %d で失敗しました: %s", e.Code, e.Stderr)
}

// ExitCode はプロセスの終了コードとして引き継ぐ値を返します。
func (e *CodyExitError) ExitCode() int { return e.Code }

// CodyAdapter は Sourcegraph Cody CLI の `cody chat` を実行する CodeReviewAI です。
type CodyAdapter struct {
	Binary      string
	ContextRepo string
	Endpoint    string
	AccessToken string
}

// NewCodyAdapter は CodyAdapter を初期化します。contextRepo は "host/owner/repo" 形式です。
func NewCodyAdapter(contextRepo, endpoint, accessToken string) *CodyAdapter {
	return &CodyAdapter{
		Binary:      DefaultCodyBinary,
		ContextRepo: contextRepo,
		Endpoint:    endpoint,
		AccessToken: accessToken,
	}
}

// ReviewCodeDiff はプロンプトを `cody chat --context-repo <repo> -m <prompt>` に渡し、標準出力を返します。
// シェルは経由せず、引数として直接渡します。
func (c *CodyAdapter) ReviewCodeDiff(ctx context.Context, finalPrompt string) (string, error) {
	if len(finalPrompt) > MaxPromptBytes {
		return "", fmt.Errorf("%w (%d バイト、上限 %d バイト)。差分を小さくしてください", ErrPromptTooLarge, len(finalPrompt), MaxPromptBytes)
	}

	binary := c.Binary
	if binary == "" {
		binary = DefaultCodyBinary
	}

	args := []string{"chat"}
	if c.ContextRepo != "" {
		args = append(args, "--context-repo", c.ContextRepo)
	}
	args = append(args, "-m", finalPrompt)

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Env = append(os.Environ(),
		"SRC_ENDPOINT="+c.Endpoint,
		"SRC_ACCESS_TOKEN="+c.AccessToken,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Info("Cody によるコードレビューを開始します。", "context_repo", c.ContextRepo, "prompt_bytes", len(finalPrompt))
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return "", ErrCodyNotFound
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &CodyExitError{Code: exitErr.ExitCode(), Stderr: strings.TrimSpace(stderr.String())}
		}
		return "", fmt.Errorf("cody の実行中に予期しないエラーが発生しました: %w", err)
	}

	return strings.TrimSpace(stdout.String()), nil
}
