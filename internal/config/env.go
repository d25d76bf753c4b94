package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// DefaultGitHubAPIURL は GITHUB_API_URL が未設定の場合に使用される API のベースURLです。
const DefaultGitHubAPIURL = "https://api.github.com"

// PullRequestEvent はレビューを許可する GITHUB_EVENT_NAME の値です。
const PullRequestEvent = "pull_request"

const (
	keyEventName       = "github_event_name"
	keyGitHubToken     = "github_token"
	keyAPIURL          = "github_api_url"
	keyRepository      = "github_repository"
	keyRef             = "github_ref"
	keySrcEndpoint     = "src_endpoint"
	keySrcAccessToken  = "src_access_token"
	keyGeminiAPIKey    = "gemini_api_key"
	keySlackWebhookURL = "slack_webhook_url"
)

var (
	// ErrNotPullRequest はプルリクエスト以外のイベントで実行された場合に返されます。
	ErrNotPullRequest = errors.New("このコマンドはプルリクエストのコンテキストでのみ実行できます")
	// ErrMissingGitHubToken はプラットフォームトークンが見つからない場合に返されます。
	ErrMissingGitHubToken = errors.New("GitHub 認証トークンがありません。GITHUB_TOKEN または GH_TOKEN を設定してください")
	// ErrMissingCodyCredentials は Cody の接続情報が不足している場合に返されます。
	ErrMissingCodyCredentials = errors.New("Cody の環境変数 SRC_ENDPOINT および SRC_ACCESS_TOKEN が必須です")
	// ErrMissingGeminiAPIKey は Gemini の APIキーが見つからない場合に返されます。
	ErrMissingGeminiAPIKey = errors.New("GEMINI_API_KEY または GOOGLE_API_KEY 環境変数が設定されていません")
)

// Env はCIランナーの環境変数（および任意の設定ファイル）から読み込んだ値を保持します。
type Env struct {
	EventName       string
	GitHubToken     string
	GitHubAPIURL    string
	Repository      string
	Ref             string
	SrcEndpoint     string
	SrcAccessToken  string
	GeminiAPIKey    string
	SlackWebhookURL string
}

// newViper は環境変数名をキーに束縛した viper インスタンスを返します。
// 環境変数は設定ファイルの値より優先されます。
func newViper() *viper.Viper {
	v := viper.New()
	_ = v.BindEnv(keyEventName, "GITHUB_EVENT_NAME")
	_ = v.BindEnv(keyGitHubToken, "GITHUB_TOKEN", "GH_TOKEN")
	_ = v.BindEnv(keyAPIURL, "GITHUB_API_URL")
	_ = v.BindEnv(keyRepository, "GITHUB_REPOSITORY")
	_ = v.BindEnv(keyRef, "GITHUB_REF")
	_ = v.BindEnv(keySrcEndpoint, "SRC_ENDPOINT")
	_ = v.BindEnv(keySrcAccessToken, "SRC_ACCESS_TOKEN")
	_ = v.BindEnv(keyGeminiAPIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv(keySlackWebhookURL, "SLACK_WEBHOOK_URL")
	v.SetDefault(keyAPIURL, DefaultGitHubAPIURL)
	return v
}

// LoadEnv は環境変数と、指定されていれば YAML 設定ファイルから Env を構築します。
func LoadEnv(configFile string) (Env, error) {
	v := newViper()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Env{}, fmt.Errorf("設定ファイル '%s' の読み込みに失敗しました: %w", configFile, err)
		}
	}

	return Env{
		EventName:       v.GetString(keyEventName),
		GitHubToken:     v.GetString(keyGitHubToken),
		GitHubAPIURL:    strings.TrimRight(v.GetString(keyAPIURL), "/"),
		Repository:      v.GetString(keyRepository),
		Ref:             v.GetString(keyRef),
		SrcEndpoint:     v.GetString(keySrcEndpoint),
		SrcAccessToken:  v.GetString(keySrcAccessToken),
		GeminiAPIKey:    v.GetString(keyGeminiAPIKey),
		SlackWebhookURL: v.GetString(keySlackWebhookURL),
	}, nil
}

// RequireGitHubToken はプラットフォームトークンが設定されているか確認します。
func (e Env) RequireGitHubToken() error {
	if e.GitHubToken == "" {
		return ErrMissingGitHubToken
	}
	return nil
}

// RequireEngineCredentials は選択されたエンジンの認証情報が揃っているか確認します。
func (e Env) RequireEngineCredentials(engine string) error {
	switch engine {
	case EngineCody:
		if e.SrcEndpoint == "" || e.SrcAccessToken == "" {
			return ErrMissingCodyCredentials
		}
	case EngineGemini:
		if e.GeminiAPIKey == "" {
			return ErrMissingGeminiAPIKey
		}
	default:
		return ValidateEngine(engine)
	}
	return nil
}

// PullRequestContext はレビュー対象のプルリクエストを特定する情報です。
type PullRequestContext struct {
	APIURL string
	Host   string
	Owner  string
	Repo   string
	Number int
}

// ContextRepo は Cody の --context-repo に渡す "host/owner/repo" 形式の文字列を返します。
func (p PullRequestContext) ContextRepo() string {
	return fmt.Sprintf("%s/%s/%s", p.Host, p.Owner, p.Repo)
}

// PullRequest は環境変数からレビュー対象のプルリクエストを解決します。
// repoOverride と prOverride はフラグで明示された場合に環境変数より優先されます。
// prOverride が指定されていない場合、GITHUB_EVENT_NAME は pull_request でなければなりません。
func (e Env) PullRequest(repoOverride string, prOverride int) (PullRequestContext, error) {
	if prOverride <= 0 && e.EventName != PullRequestEvent {
		return PullRequestContext{}, ErrNotPullRequest
	}

	apiURL := e.GitHubAPIURL
	if apiURL == "" {
		apiURL = DefaultGitHubAPIURL
	}
	u, err := url.Parse(apiURL)
	if err != nil || u.Hostname() == "" {
		return PullRequestContext{}, fmt.Errorf("GITHUB_API_URL '%s' からホスト名を取得できません", apiURL)
	}

	repository := e.Repository
	if repoOverride != "" {
		repository = repoOverride
	}
	owner, repo, err := SplitRepository(repository)
	if err != nil {
		return PullRequestContext{}, err
	}

	number := prOverride
	if number <= 0 {
		number, err = PullRequestNumberFromRef(e.Ref)
		if err != nil {
			return PullRequestContext{}, err
		}
	}

	return PullRequestContext{
		APIURL: apiURL,
		Host:   u.Hostname(),
		Owner:  owner,
		Repo:   repo,
		Number: number,
	}, nil
}

// SplitRepository は "owner/name" 形式の文字列を分割します。
func SplitRepository(repository string) (owner, repo string, err error) {
	parts := strings.Split(repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("GITHUB_REPOSITORY は 'owner/name' 形式である必要があります: '%s'", repository)
	}
	return parts[0], parts[1], nil
}

// PullRequestNumberFromRef は "refs/pull/<番号>/merge" 形式の参照からPR番号を取り出します。
func PullRequestNumberFromRef(ref string) (int, error) {
	parts := strings.Split(ref, "/")
	if len(parts) < 3 || parts[0] != "refs" || parts[1] != "pull" {
		return 0, fmt.Errorf("GITHUB_REF はプルリクエストの参照ではありません: '%s'", ref)
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("GITHUB_REF のPR番号が不正です: '%s'", ref)
	}
	return n, nil
}
