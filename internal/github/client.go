// Package github は、プルリクエストの情報取得とコメント投稿に必要な
// GitHub REST API の操作を go-github の上に提供します。
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	gh "github.com/google/go-github/v74/github"
)

const (
	// DefaultAPIURL は github.com の API ベースURLです。
	DefaultAPIURL  = "https://api.github.com"
	perPage        = 100
	defaultTimeout = 30 * time.Second
	defaultRetries = uint64(3)
)

// PullRequest はレビューに必要なプルリクエストの属性です。
type PullRequest struct {
	Number  int
	Title   string
	Body    string
	HTMLURL string
	HeadRef string
	HeadSHA string
	BaseRef string
}

// File はプルリクエストで変更されたファイルとそのパッチです。
// バイナリや巨大なファイルでは Patch が空になります。
type File struct {
	Filename  string
	Status    string
	Additions int
	Deletions int
	Patch     string
}

// Comment は Issue コメントです。
type Comment struct {
	ID      int64
	Body    string
	HTMLURL string
}

// APIError は GitHub API がエラーステータスを返した場合のエラーです。
type APIError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("GitHub API %s %s が %d を返しました: %s", e.Method, e.Endpoint, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// Client は go-github をラップした GitHub クライアントです。
type Client struct {
	gh         *gh.Client
	maxRetries uint64
}

type clientOptions struct {
	httpClient *http.Client
	maxRetries uint64
}

// Option は Client の初期化オプションを設定するための関数です。
type Option func(*clientOptions)

// WithHTTPClient は使用する http.Client を差し替えます。
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = hc
	}
}

// WithMaxRetries は GET リクエストの最大リトライ回数を設定します。
func WithMaxRetries(n uint64) Option {
	return func(o *clientOptions) {
		o.maxRetries = n
	}
}

// NewClient は Client を初期化します。baseURL は GITHUB_API_URL の値で、
// github.com 以外（GitHub Enterprise Server）の場合はそのURLを API の基点にします。
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	o := &clientOptions{
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxRetries: defaultRetries,
	}
	for _, opt := range opts {
		opt(o)
	}

	client := gh.NewClient(o.httpClient).WithAuthToken(token)

	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL != "" && baseURL != DefaultAPIURL {
		uploadURL := strings.TrimSuffix(baseURL, "/api/v3") + "/api/uploads"
		var err error
		client, err = client.WithEnterpriseURLs(baseURL, uploadURL)
		if err != nil {
			return nil, fmt.Errorf("GITHUB_API_URL '%s' を解釈できません: %w", baseURL, err)
		}
	}

	return &Client{gh: client, maxRetries: o.maxRetries}, nil
}

// GetPullRequest はプルリクエストのタイトルと本文を取得します。
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	endpoint := fmt.Sprintf("repos/%s/%s/pulls/%d", owner, repo, number)

	var pr *gh.PullRequest
	err := c.retryGet(ctx, endpoint, func() (*gh.Response, error) {
		var resp *gh.Response
		var err error
		pr, resp, err = c.gh.PullRequests.Get(ctx, owner, repo, number)
		return resp, err
	})
	if err != nil {
		return nil, fmt.Errorf("PR #%d の取得に失敗しました: %w", number, err)
	}

	return &PullRequest{
		Number:  pr.GetNumber(),
		Title:   pr.GetTitle(),
		Body:    pr.GetBody(),
		HTMLURL: pr.GetHTMLURL(),
		HeadRef: pr.GetHead().GetRef(),
		HeadSHA: pr.GetHead().GetSHA(),
		BaseRef: pr.GetBase().GetRef(),
	}, nil
}

// ListPullRequestFiles は変更ファイルの一覧をページングしながらすべて取得します。
func (c *Client) ListPullRequestFiles(ctx context.Context, owner, repo string, number int) ([]File, error) {
	endpoint := fmt.Sprintf("repos/%s/%s/pulls/%d/files", owner, repo, number)
	opts := &gh.ListOptions{PerPage: perPage}

	var all []File
	for {
		var files []*gh.CommitFile
		var resp *gh.Response
		err := c.retryGet(ctx, endpoint, func() (*gh.Response, error) {
			var err error
			files, resp, err = c.gh.PullRequests.ListFiles(ctx, owner, repo, number, opts)
			return resp, err
		})
		if err != nil {
			return nil, fmt.Errorf("PR #%d の変更ファイル一覧の取得に失敗しました: %w", number, err)
		}

		for _, f := range files {
			all = append(all, File{
				Filename:  f.GetFilename(),
				Status:    f.GetStatus(),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
				Patch:     f.GetPatch(),
			})
		}
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// CreateIssueComment はプルリクエストに一般コメントを投稿します。
func (c *Client) CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) (*Comment, error) {
	comment, resp, err := c.gh.Issues.CreateComment(ctx, owner, repo, number, &gh.IssueComment{Body: gh.Ptr(body)})
	if err != nil {
		endpoint := fmt.Sprintf("repos/%s/%s/issues/%d/comments", owner, repo, number)
		return nil, fmt.Errorf("PR #%d へのコメント投稿に失敗しました: %w", number, apiError(http.MethodPost, endpoint, resp, err))
	}
	return toComment(comment), nil
}

// UpdateIssueComment は既存のコメント本文を置き換えます。
func (c *Client) UpdateIssueComment(ctx context.Context, owner, repo string, commentID int64, body string) (*Comment, error) {
	comment, resp, err := c.gh.Issues.EditComment(ctx, owner, repo, commentID, &gh.IssueComment{Body: gh.Ptr(body)})
	if err != nil {
		endpoint := fmt.Sprintf("repos/%s/%s/issues/comments/%d", owner, repo, commentID)
		return nil, fmt.Errorf("コメント %d の更新に失敗しました: %w", commentID, apiError(http.MethodPatch, endpoint, resp, err))
	}
	return toComment(comment), nil
}

// FindIssueComment は本文が marker で始まる最初のコメントを返します。見つからない場合は nil を返します。
// 本文の途中でマーカーに言及しているだけのコメントは対象外です。
func (c *Client) FindIssueComment(ctx context.Context, owner, repo string, number int, marker string) (*Comment, error) {
	endpoint := fmt.Sprintf("repos/%s/%s/issues/%d/comments", owner, repo, number)
	opts := &gh.IssueListCommentsOptions{ListOptions: gh.ListOptions{PerPage: perPage}}

	for {
		var comments []*gh.IssueComment
		var resp *gh.Response
		err := c.retryGet(ctx, endpoint, func() (*gh.Response, error) {
			var err error
			comments, resp, err = c.gh.Issues.ListComments(ctx, owner, repo, number, opts)
			return resp, err
		})
		if err != nil {
			return nil, fmt.Errorf("PR #%d のコメント一覧の取得に失敗しました: %w", number, err)
		}

		for _, comment := range comments {
			if strings.HasPrefix(comment.GetBody(), marker) {
				return toComment(comment), nil
			}
		}
		if resp.NextPage == 0 {
			return nil, nil
		}
		opts.Page = resp.NextPage
	}
}

// retryGet は GET を実行します。5xx と通信エラーは指数バックオフでリトライし、4xx は即座に失敗します。
func (c *Client) retryGet(ctx context.Context, endpoint string, call func() (*gh.Response, error)) error {
	operation := func() error {
		resp, err := call()
		if err == nil {
			return nil
		}
		err = apiError(http.MethodGet, endpoint, resp, err)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("GitHub API 呼び出しに失敗しました。リトライします。", "endpoint", endpoint, "wait", wait, "error", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	return backoff.RetryNotify(operation, policy, notify)
}

// apiError はステータスコードを伴う go-github のエラーを *APIError に変換します。
// 通信エラーなどレスポンスがない場合はそのまま返します。
func apiError(method, endpoint string, resp *gh.Response, err error) error {
	if resp == nil || resp.Response == nil || resp.StatusCode < http.StatusBadRequest {
		return err
	}
	message := err.Error()
	var errResp *gh.ErrorResponse
	if errors.As(err, &errResp) && errResp.Message != "" {
		message = errResp.Message
	}
	return &APIError{
		Method:     method,
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Message:    message,
		Err:        err,
	}
}

func toComment(c *gh.IssueComment) *Comment {
	return &Comment{ID: c.GetID(), Body: c.GetBody(), HTMLURL: c.GetHTMLURL()}
}
