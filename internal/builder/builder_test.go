package builder

import (
	"context"
	"testing"

	"git-cody-reviewer-go/internal/adapters"
	"git-cody-reviewer-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRepoFromCloneURL(t *testing.T) {
	cases := map[string]string{
		"https://github.com/acme/api.git":   "github.com/acme/api",
		"https://ghe.example.com/acme/api":  "ghe.example.com/acme/api",
		"git@github.com:acme/api.git":       "github.com/acme/api",
		"ssh://git@github.com/acme/api.git": "github.com/acme/api",
		"not a url":                         "",
		"git@github.com":                    "",
	}
	for in, want := range cases {
		assert.Equal(t, want, ContextRepoFromCloneURL(in), in)
	}
}

func TestBuildReviewService_Cody(t *testing.T) {
	env := config.Env{SrcEndpoint: "https://sg.example.com", SrcAccessToken: "sgp_x"}
	svc, err := BuildReviewService(context.Background(), config.ReviewConfig{Engine: config.EngineCody}, env, "github.com/o/r")
	require.NoError(t, err)

	cody, ok := svc.(*adapters.CodyAdapter)
	require.True(t, ok)
	assert.Equal(t, "github.com/o/r", cody.ContextRepo)
	assert.Equal(t, "https://sg.example.com", cody.Endpoint)
}

func TestBuildReviewService_MissingCredentials(t *testing.T) {
	_, err := BuildReviewService(context.Background(), config.ReviewConfig{Engine: config.EngineCody}, config.Env{SrcEndpoint: "x"}, "")
	assert.ErrorIs(t, err, config.ErrMissingCodyCredentials)

	_, err = BuildReviewService(context.Background(), config.ReviewConfig{Engine: config.EngineGemini}, config.Env{}, "")
	assert.ErrorIs(t, err, config.ErrMissingGeminiAPIKey)

	_, err = BuildReviewService(context.Background(), config.ReviewConfig{Engine: "copilot"}, config.Env{}, "")
	assert.Error(t, err)
}

func TestBuildPullRequestRunner_RequiresToken(t *testing.T) {
	env := config.Env{SrcEndpoint: "https://sg.example.com", SrcAccessToken: "sgp_x"}
	pr := config.PullRequestContext{APIURL: config.DefaultGitHubAPIURL, Host: "api.github.com", Owner: "o", Repo: "r", Number: 1}

	_, err := BuildPullRequestRunner(context.Background(), config.ReviewConfig{Engine: config.EngineCody}, env, pr)
	assert.ErrorIs(t, err, config.ErrMissingGitHubToken)

	env.GitHubToken = "ghp_x"
	r, err := BuildPullRequestRunner(context.Background(), config.ReviewConfig{Engine: config.EngineCody}, env, pr)
	require.NoError(t, err)
	assert.NotNil(t, r)
}
