package pipeline

import (
	"context"
	"errors"
	"testing"

	"git-cody-reviewer-go/internal/config"
	"git-cody-reviewer-go/internal/github"
	"git-cody-reviewer-go/prompts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	pr       *github.PullRequest
	files    []github.File
	existing *github.Comment
	created  []string
	updated  map[int64]string
	postErr  error
}

func (f *fakeAPI) GetPullRequest(context.Context, string, string, int) (*github.PullRequest, error) {
	return f.pr, nil
}

func (f *fakeAPI) ListPullRequestFiles(context.Context, string, string, int) ([]github.File, error) {
	return f.files, nil
}

func (f *fakeAPI) CreateIssueComment(_ context.Context, _, _ string, _ int, body string) (*github.Comment, error) {
	if f.postErr != nil {
		return nil, f.postErr
	}
	f.created = append(f.created, body)
	return &github.Comment{ID: 99, Body: body, HTMLURL: "https://github.com/o/r/pull/7#issuecomment-99"}, nil
}

func (f *fakeAPI) UpdateIssueComment(_ context.Context, _, _ string, id int64, body string) (*github.Comment, error) {
	if f.updated == nil {
		f.updated = map[int64]string{}
	}
	f.updated[id] = body
	return &github.Comment{ID: id, Body: body}, nil
}

func (f *fakeAPI) FindIssueComment(context.Context, string, string, int, string) (*github.Comment, error) {
	return f.existing, nil
}

type fakeAI struct {
	prompt string
	review string
	err    error
}

func (f *fakeAI) ReviewCodeDiff(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.review, f.err
}

var prContext = config.PullRequestContext{Host: "github.com", Owner: "o", Repo: "r", Number: 7}

func newRunner(t *testing.T, api *fakeAPI, ai *fakeAI) *PullRequestRunner {
	t.Helper()
	pb, err := prompts.NewReviewPromptBuilderForMode(prompts.ModePullRequest)
	require.NoError(t, err)
	r := NewPullRequestRunner(api, ai, pb, config.EngineCody)
	r.newRunID = func() string { return "run-1" }
	return r
}

func sampleAPI() *fakeAPI {
	return &fakeAPI{
		pr: &github.PullRequest{Number: 7, Title: "Add retry", Body: "Retries GETs."},
		files: []github.File{
			{Filename: "client.go", Additions: 2, Deletions: 1, Patch: "@@ -1,1 +1,2 @@\n-a\n+b\n+c"},
			{Filename: "logo.png"},
		},
	}
}

func TestPullRequestRunner_Review(t *testing.T) {
	ai := &fakeAI{review: "**Summary**: fine"}
	res, err := newRunner(t, sampleAPI(), ai).Review(context.Background(), prContext)
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, "**Summary**: fine", res.Review)
	require.Len(t, res.Files, 2)
	assert.Equal(t, 2, res.Files[0].Added)
	assert.Equal(t, 1, res.Files[0].Deleted)

	assert.Contains(t, ai.prompt, "Title: Add retry")
	assert.Contains(t, ai.prompt, "File Name: client.go")
	assert.Contains(t, ai.prompt, "No patch data available.")
}

func TestPullRequestRunner_ReviewErrors(t *testing.T) {
	boom := errors.New("cody failed")
	_, err := newRunner(t, sampleAPI(), &fakeAI{err: boom}).Review(context.Background(), prContext)
	assert.ErrorIs(t, err, boom)

	_, err = newRunner(t, sampleAPI(), &fakeAI{review: "  \n"}).Review(context.Background(), prContext)
	assert.ErrorIs(t, err, ErrEmptyReview)
}

func TestPullRequestRunner_Publish(t *testing.T) {
	res := &Result{RunID: "run-1", Engine: config.EngineCody, Review: "LGTM\n"}

	t.Run("creates a comment", func(t *testing.T) {
		api := sampleAPI()
		c, err := newRunner(t, api, &fakeAI{}).Publish(context.Background(), prContext, res, false)
		require.NoError(t, err)
		assert.Equal(t, int64(99), c.ID)
		require.Len(t, api.created, 1)
		assert.Equal(t, FormatComment(res), api.created[0])
	})

	t.Run("updates the previous comment", func(t *testing.T) {
		api := sampleAPI()
		api.existing = &github.Comment{ID: 5, Body: CommentMarker}
		_, err := newRunner(t, api, &fakeAI{}).Publish(context.Background(), prContext, res, true)
		require.NoError(t, err)
		assert.Empty(t, api.created)
		assert.Equal(t, FormatComment(res), api.updated[5])
	})

	t.Run("update without previous comment creates one", func(t *testing.T) {
		api := sampleAPI()
		_, err := newRunner(t, api, &fakeAI{}).Publish(context.Background(), prContext, res, true)
		require.NoError(t, err)
		assert.Len(t, api.created, 1)
	})

	t.Run("post failure is returned", func(t *testing.T) {
		api := sampleAPI()
		api.postErr = &github.APIError{Method: "POST", StatusCode: 403, Message: "forbidden"}
		_, err := newRunner(t, api, &fakeAI{}).Publish(context.Background(), prContext, res, false)
		var apiErr *github.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 403, apiErr.StatusCode)
	})
}

func TestFormatComment(t *testing.T) {
	body := FormatComment(&Result{RunID: "abc", Engine: "cody", Review: "\nLooks good.\n"})
	assert.Equal(t, CommentMarker+"\n## AI Code Review (cody)\n\nLooks good.\n\n---\n<sub>run: `abc`</sub>\n", body)
}
