package adapters

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	cryptossh "golang.org/x/crypto/ssh"
)

// expandTilde は "~/" で始まるパスをホームディレクトリに展開します。
func expandTilde(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("ホームディレクトリの取得に失敗しました: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}

// isSSHURL は git@host:owner/repo 形式または ssh:// 形式のURLかどうかを判定します。
func isSSHURL(repoURL string) bool {
	return strings.HasPrefix(repoURL, "git@") || strings.HasPrefix(repoURL, "ssh://")
}

// getAuthMethod は go-git が使用する認証方法を返します。
// SSH のURLでは SSHKeyPath の鍵を使い、それ以外（https:// やローカルパス）では nil を返します。
func (ga *GitAdapter) getAuthMethod(repoURL string) (transport.AuthMethod, error) {
	if !isSSHURL(repoURL) {
		return nil, nil
	}

	username := "git"
	if strings.HasPrefix(repoURL, "ssh://") {
		u, err := url.Parse(repoURL)
		if err != nil {
			return nil, fmt.Errorf("リポジトリURLのパースに失敗しました: %w", err)
		}
		if u.User != nil && u.User.Username() != "" {
			username = u.User.Username()
		}
	}

	if ga.SSHKeyPath == "" {
		return nil, fmt.Errorf("SSH のリポジトリURLには --ssh-key-path の指定が必要です: %s", repoURL)
	}
	keyPath, err := expandTilde(ga.SSHKeyPath)
	if err != nil {
		return nil, fmt.Errorf("SSHキーパスの展開に失敗しました: %w", err)
	}
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("SSHキーファイルの読み込みに失敗しました (%s): %w", keyPath, err)
	}

	// パスフレーズなしの鍵を想定
	auth, err := ssh.NewPublicKeys(username, key, "")
	if err != nil {
		return nil, fmt.Errorf("SSH認証キーのロードに失敗しました: %w", err)
	}
	if ga.InsecureSkipHostKeyCheck {
		auth.HostKeyCallback = cryptossh.InsecureIgnoreHostKey()
	}
	return auth, nil
}
