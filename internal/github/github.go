// Package github resolves a GitHub account's public commit history into
// candidate email addresses.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jfaulkner/mailharvest/internal/extract"
	"github.com/jfaulkner/mailharvest/internal/fetch"
)

// Fetcher is the HTTP GET capability the client consumes.
type Fetcher interface {
	Fetch(ctx context.Context, url, target string, headers http.Header) (*fetch.Response, error)
}

// Config controls API access and traversal bounds.
type Config struct {
	APIBase        string
	Token          string
	UserAgent      string
	MaxRepos       int
	CommitsPerPage int
	PoliteDelay    time.Duration
}

// Client lists a bounded number of an account's repositories and harvests
// author/committer emails from recent commits. Every failure degrades to
// "no data"; the client never returns an error.
type Client struct {
	fetcher Fetcher
	cfg     Config
	logger  *zap.Logger
}

// New builds a Client. Zero bounds get the service defaults.
func New(fetcher Fetcher, cfg Config, logger *zap.Logger) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.github.com"
	}
	if cfg.MaxRepos <= 0 {
		cfg.MaxRepos = 4
	}
	if cfg.CommitsPerPage <= 0 {
		cfg.CommitsPerPage = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{fetcher: fetcher, cfg: cfg, logger: logger}
}

type repo struct {
	Name string `json:"name"`
}

type commit struct {
	Commit struct {
		Author struct {
			Email string `json:"email"`
		} `json:"author"`
		Committer struct {
			Email string `json:"email"`
		} `json:"committer"`
	} `json:"commit"`
}

// CommitEmails resolves the account behind userOrURL and returns the commit
// author/committer addresses that survive the extraction filter, deduplicated
// in first-seen order.
func (c *Client) CommitEmails(ctx context.Context, userOrURL string) []string {
	username := Username(userOrURL)
	if username == "" {
		return nil
	}

	reposURL := fmt.Sprintf("%s/users/%s/repos", c.cfg.APIBase, username)
	resp, err := c.fetcher.Fetch(ctx, reposURL, "github_repos", c.headers())
	if err != nil || !resp.OK() {
		return nil
	}

	var repos []repo
	if err := json.Unmarshal(resp.Body, &repos); err != nil {
		c.logger.Debug("repo list parse failed", zap.String("user", username), zap.Error(err))
		return nil
	}
	if len(repos) > c.cfg.MaxRepos {
		repos = repos[:c.cfg.MaxRepos]
	}

	var emails []string
	for _, r := range repos {
		if r.Name == "" {
			continue
		}
		emails = append(emails, c.commitEmails(ctx, username, r.Name)...)
		c.pause(ctx)
	}

	return extract.FilterCandidates(emails)
}

func (c *Client) commitEmails(ctx context.Context, username, repoName string) []string {
	url := fmt.Sprintf("%s/repos/%s/%s/commits?per_page=%d",
		c.cfg.APIBase, username, repoName, c.cfg.CommitsPerPage)
	resp, err := c.fetcher.Fetch(ctx, url, "github_commits", c.headers())
	if err != nil || !resp.OK() {
		return nil
	}

	var commits []commit
	if err := json.Unmarshal(resp.Body, &commits); err != nil {
		c.logger.Debug("commit list parse failed",
			zap.String("repo", username+"/"+repoName), zap.Error(err))
		return nil
	}

	var emails []string
	for _, cm := range commits {
		if e := cm.Commit.Author.Email; e != "" {
			emails = append(emails, e)
		}
		if e := cm.Commit.Committer.Email; e != "" {
			emails = append(emails, e)
		}
	}
	return emails
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	if c.cfg.UserAgent != "" {
		h.Set("User-Agent", c.cfg.UserAgent)
	}
	if c.cfg.Token != "" {
		h.Set("Authorization", "token "+c.cfg.Token)
	}
	return h
}

func (c *Client) pause(ctx context.Context) {
	if c.cfg.PoliteDelay <= 0 {
		return
	}
	timer := time.NewTimer(c.cfg.PoliteDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Username extracts the account name from a bare username or a github.com
// profile/repository link.
func Username(userOrURL string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(userOrURL), "/")
	if trimmed == "" {
		return ""
	}
	if !strings.Contains(strings.ToLower(trimmed), "github.com") {
		return trimmed
	}
	parts := strings.Split(trimmed, "/")
	return parts[len(parts)-1]
}
