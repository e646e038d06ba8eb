package github_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfaulkner/mailharvest/internal/fetch"
	"github.com/jfaulkner/mailharvest/internal/github"
)

type fakeFetcher struct {
	responses map[string]*fetch.Response
	headers   []http.Header
	calls     []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url, _ string, headers http.Header) (*fetch.Response, error) {
	f.calls = append(f.calls, url)
	f.headers = append(f.headers, headers)
	if resp, ok := f.responses[url]; ok {
		return resp, nil
	}
	return nil, errors.New("connection refused")
}

func ok(body string) *fetch.Response {
	return &fetch.Response{StatusCode: http.StatusOK, Body: []byte(body)}
}

func TestUsername(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"octocat", "octocat"},
		{"https://github.com/octocat", "octocat"},
		{"https://github.com/octocat/", "octocat"},
		{"https://GitHub.com/Octocat", "Octocat"},
		{"", ""},
		{"  ", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, github.Username(tc.input), "input %q", tc.input)
	}
}

func TestCommitEmailsHarvestsAndFilters(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{responses: map[string]*fetch.Response{
		"https://api.test/users/octocat/repos": ok(`[{"name":"alpha"},{"name":"beta"}]`),
		"https://api.test/repos/octocat/alpha/commits?per_page=100": ok(`[
			{"commit":{"author":{"email":"dev@example.com"},"committer":{"email":"dev@example.com"}}},
			{"commit":{"author":{"email":"123+bot@users.noreply.github.com"},"committer":{"email":"ci@example.org"}}}
		]`),
		"https://api.test/repos/octocat/beta/commits?per_page=100": ok(`[
			{"commit":{"author":{"email":"other@shop.com"},"committer":{"email":""}}}
		]`),
	}}

	client := github.New(fetcher, github.Config{
		APIBase: "https://api.test",
		Token:   "tok123",
	}, nil)

	emails := client.CommitEmails(context.Background(), "https://github.com/octocat")
	// noreply dropped, .org dropped by the commercial-TLD filter, dedup applied.
	require.Equal(t, []string{"dev@example.com", "other@shop.com"}, emails)

	require.NotEmpty(t, fetcher.headers)
	assert.Equal(t, "token tok123", fetcher.headers[0].Get("Authorization"))
}

func TestCommitEmailsBoundsRepos(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{responses: map[string]*fetch.Response{
		"https://api.test/users/u/repos": ok(`[{"name":"r1"},{"name":"r2"},{"name":"r3"}]`),
		"https://api.test/repos/u/r1/commits?per_page=100": ok(`[]`),
		"https://api.test/repos/u/r2/commits?per_page=100": ok(`[]`),
		"https://api.test/repos/u/r3/commits?per_page=100": ok(`[]`),
	}}

	client := github.New(fetcher, github.Config{APIBase: "https://api.test", MaxRepos: 2}, nil)
	client.CommitEmails(context.Background(), "u")

	// One repo-list call plus at most MaxRepos commit calls.
	assert.Len(t, fetcher.calls, 3)
}

func TestCommitEmailsDegradesToEmpty(t *testing.T) {
	t.Parallel()

	t.Run("repo list fetch failure", func(t *testing.T) {
		client := github.New(&fakeFetcher{}, github.Config{APIBase: "https://api.test"}, nil)
		assert.Nil(t, client.CommitEmails(context.Background(), "ghost"))
	})

	t.Run("repo list not a list", func(t *testing.T) {
		fetcher := &fakeFetcher{responses: map[string]*fetch.Response{
			"https://api.test/users/ghost/repos": ok(`{"message":"rate limited"}`),
		}}
		client := github.New(fetcher, github.Config{APIBase: "https://api.test"}, nil)
		assert.Nil(t, client.CommitEmails(context.Background(), "ghost"))
	})

	t.Run("commit fetch failure for one repo", func(t *testing.T) {
		fetcher := &fakeFetcher{responses: map[string]*fetch.Response{
			"https://api.test/users/u/repos": ok(`[{"name":"dead"},{"name":"live"}]`),
			"https://api.test/repos/u/live/commits?per_page=100": ok(
				`[{"commit":{"author":{"email":"dev@example.com"},"committer":{"email":"dev@example.com"}}}]`),
		}}
		client := github.New(fetcher, github.Config{APIBase: "https://api.test"}, nil)
		assert.Equal(t, []string{"dev@example.com"},
			client.CommitEmails(context.Background(), "u"))
	})

	t.Run("empty input", func(t *testing.T) {
		client := github.New(&fakeFetcher{}, github.Config{}, nil)
		assert.Nil(t, client.CommitEmails(context.Background(), "  "))
	})
}
