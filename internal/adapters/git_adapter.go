package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// GitService はGitリポジトリ操作の抽象化を提供します。
type GitService interface {
	// CloneOrUpdate はリポジトリをクローンするか、既存のクローンを開きます。
	CloneOrUpdate(ctx context.Context, repositoryURL string) error
	// Fetch はリモートから最新の変更を取得します。
	Fetch(ctx context.Context) error
	// CheckRemoteBranchExists は指定されたブランチがリモートに存在するか確認します。
	CheckRemoteBranchExists(ctx context.Context, branch string) (bool, error)
	// GetCodeDiff は指定された2つのブランチ間の純粋な差分（3-dot diff）を文字列として取得します。
	GetCodeDiff(ctx context.Context, baseBranch, featureBranch string) (string, error)
	// Cleanup は処理後にローカルリポジトリを削除します。
	Cleanup(ctx context.Context) error
}

// GitAdapter は go-git で GitService を実装します。
type GitAdapter struct {
	LocalPath                string
	SSHKeyPath               string
	BaseBranch               string
	InsecureSkipHostKeyCheck bool
	auth                     transport.AuthMethod
	repo                     *git.Repository
}

// Option はGitAdapterの初期化オプションを設定するための関数です。
type Option func(*GitAdapter)

// WithInsecureSkipHostKeyCheck はSSHホストキーチェックをスキップするオプションを設定します。
func WithInsecureSkipHostKeyCheck(skip bool) Option {
	return func(ga *GitAdapter) {
		ga.InsecureSkipHostKeyCheck = skip
	}
}

// WithBaseBranch はクローン時にチェックアウトするベースブランチを設定します。
func WithBaseBranch(branch string) Option {
	return func(ga *GitAdapter) {
		ga.BaseBranch = branch
	}
}

// NewGitAdapter は GitAdapter を初期化します。
func NewGitAdapter(localPath string, sshKeyPath string, opts ...Option) *GitAdapter {
	adapter := &GitAdapter{
		LocalPath:  localPath,
		SSHKeyPath: sshKeyPath,
	}
	for _, opt := range opts {
		opt(adapter)
	}
	return adapter
}

func (ga *GitAdapter) getRepository() (*git.Repository, error) {
	if ga.repo == nil {
		repo, err := git.PlainOpen(ga.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("内部リポジトリのオープンに失敗: %w", err)
		}
		ga.repo = repo
	}
	return ga.repo, nil
}

// CloneOrUpdate はリポジトリをクローンするか、既に存在する場合はオープンします。
// 更新は後続の Fetch に委ねます。
func (ga *GitAdapter) CloneOrUpdate(ctx context.Context, repositoryURL string) error {
	auth, err := ga.getAuthMethod(repositoryURL)
	if err != nil {
		return fmt.Errorf("go-git用の認証情報取得に失敗しました: %w", err)
	}
	ga.auth = auth

	if ga.needsReclone(repositoryURL) {
		if err := os.RemoveAll(ga.LocalPath); err != nil {
			return fmt.Errorf("既存リポジトリディレクトリ (%s) の削除に失敗しました: %w", ga.LocalPath, err)
		}
		repo, err := ga.cloneRepository(ctx, repositoryURL)
		if err != nil {
			return err
		}
		ga.repo = repo
		return nil
	}

	repo, err := git.PlainOpen(ga.LocalPath)
	if err != nil {
		return fmt.Errorf("既存リポジトリのオープンに失敗しました: %w", err)
	}
	slog.Info("既存リポジトリをオープンしました。更新は Fetch に委ねます。", "path", ga.LocalPath)
	ga.repo = repo
	return nil
}

// Fetch はリモートの全ブランチを refs/remotes/origin/* に取得します。
func (ga *GitAdapter) Fetch(ctx context.Context) error {
	repo, err := ga.getRepository()
	if err != nil {
		return err
	}

	slog.Info("リモートから最新の変更をフェッチしています...", "path", ga.LocalPath)
	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		Auth:       ga.auth,
		RefSpecs:   []config.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
		Progress:   io.Discard,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("リモートからのフェッチに失敗しました: %w", err)
	}
	return nil
}

// CheckRemoteBranchExists は指定されたブランチがリモート 'origin' に存在するか確認します。
func (ga *GitAdapter) CheckRemoteBranchExists(ctx context.Context, branch string) (bool, error) {
	repo, err := ga.getRepository()
	if err != nil {
		return false, err
	}
	if branch == "" {
		return false, fmt.Errorf("リモートブランチの存在確認に失敗しました: ブランチ名が空です")
	}

	_, err = repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), false)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("リモートブランチ '%s' の確認に失敗しました: %w", branch, err)
	}
	return true, nil
}

// GetCodeDiff はマージベースからフィーチャーブランチまでの差分を go-git のみで計算します。
func (ga *GitAdapter) GetCodeDiff(ctx context.Context, baseBranch, featureBranch string) (string, error) {
	repo, err := ga.getRepository()
	if err != nil {
		return "", err
	}

	for _, b := range []string{baseBranch, featureBranch} {
		ok, err := ga.CheckRemoteBranchExists(ctx, b)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("ブランチ '%s' がリモートに存在しません", b)
		}
	}

	slog.Info("go-gitを使用して差分を計算しています。", "base_branch", baseBranch, "feature_branch", featureBranch)

	baseCommit, err := ga.remoteCommit(repo, baseBranch)
	if err != nil {
		return "", err
	}
	featureCommit, err := ga.remoteCommit(repo, featureBranch)
	if err != nil {
		return "", err
	}

	mergeBases, err := baseCommit.MergeBase(featureCommit)
	if err != nil {
		return "", fmt.Errorf("マージベースの検索に失敗しました: %w", err)
	}
	if len(mergeBases) == 0 {
		return "", fmt.Errorf("ブランチ '%s' と '%s' の間に共通の祖先が見つかりませんでした。3-dot diffは計算できません。", baseBranch, featureBranch)
	}

	baseTree, err := mergeBases[0].Tree()
	if err != nil {
		return "", fmt.Errorf("マージベースのツリー取得に失敗しました: %w", err)
	}
	featureTree, err := featureCommit.Tree()
	if err != nil {
		return "", fmt.Errorf("フィーチャーブランチのツリー取得に失敗しました: %w", err)
	}

	changes, err := baseTree.DiffContext(ctx, featureTree)
	if err != nil {
		return "", fmt.Errorf("ツリーの差分取得に失敗しました: %w", err)
	}
	patch, err := changes.PatchContext(ctx)
	if err != nil {
		return "", fmt.Errorf("パッチの生成に失敗しました: %w", err)
	}
	return patch.String(), nil
}

func (ga *GitAdapter) remoteCommit(repo *git.Repository, branch string) (*object.Commit, error) {
	ref, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return nil, fmt.Errorf("ブランチ '%s' の参照解決に失敗しました: %w", branch, err)
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("コミット '%s' の取得に失敗しました: %w", ref.Hash(), err)
	}
	return commit, nil
}

// Cleanup は処理後にローカルリポジトリディレクトリを完全に削除します。
func (ga *GitAdapter) Cleanup(ctx context.Context) error {
	slog.Info("クリーンアップ: ローカルリポジトリディレクトリを削除します。", "path", ga.LocalPath)
	if err := os.RemoveAll(ga.LocalPath); err != nil {
		return fmt.Errorf("ローカルリポジトリディレクトリ '%s' の削除に失敗しました: %w", ga.LocalPath, err)
	}
	ga.repo = nil
	return nil
}

// needsReclone は LocalPath を作り直す必要があるか判定します。
// .git がない、開けない、または origin のURLが要求されたURLと一致しない場合に true を返します。
func (ga *GitAdapter) needsReclone(repositoryURL string) bool {
	if _, err := os.Stat(filepath.Join(ga.LocalPath, ".git")); err != nil {
		return true
	}
	repo, err := git.PlainOpen(ga.LocalPath)
	if err != nil {
		slog.Warn("既存のリポジトリを開けませんでした。再クローンします。", "path", ga.LocalPath, "error", err)
		return true
	}
	remote, err := repo.Remote("origin")
	if err != nil {
		slog.Warn("既存のリポジトリにリモート 'origin' が見つかりません。再クローンします。", "path", ga.LocalPath, "error", err)
		return true
	}
	urls := remote.Config().URLs
	if len(urls) == 0 || urls[0] != repositoryURL {
		slog.Warn("既存リポジトリのリモートURLが要求されたURLと一致しません。再クローンします。", "existing_urls", urls, "requested_url", repositoryURL)
		return true
	}
	return false
}

func (ga *GitAdapter) cloneRepository(ctx context.Context, repositoryURL string) (*git.Repository, error) {
	if err := os.MkdirAll(filepath.Dir(ga.LocalPath), 0o755); err != nil {
		return nil, fmt.Errorf("親ディレクトリの作成に失敗しました: %w", err)
	}

	opts := &git.CloneOptions{
		URL:      repositoryURL,
		Auth:     ga.auth,
		Progress: io.Discard,
	}
	if ga.BaseBranch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(ga.BaseBranch)
	}

	slog.Info("リポジトリが存在しないため、クローンします。", "url", repositoryURL, "path", ga.LocalPath, "branch", ga.BaseBranch)
	repo, err := git.PlainCloneContext(ctx, ga.LocalPath, false, opts)
	if err != nil {
		return nil, fmt.Errorf("リポジトリのクローンに失敗しました (URL: %s): %w", repositoryURL, err)
	}
	return repo, nil
}
