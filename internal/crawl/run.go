package crawl

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/jfaulkner/mailharvest/internal/extract"
	"github.com/jfaulkner/mailharvest/internal/metrics"
	"github.com/jfaulkner/mailharvest/internal/store"
)

func shuffleStrings(s []string) {
	rand.Shuffle(len(s), func(i, j int) {
		s[i], s[j] = s[j], s[i]
	})
}

func (c *Coordinator) run(ctx context.Context, params Params) (*store.Summary, error) {
	start := time.Now()
	c.logger.Info("crawl run started",
		zap.Int("email_limit", params.EmailLimit),
		zap.Int("listing_pages", params.ListingPages),
		zap.Int("model_pages_per_user", params.ModelPagesPerUser),
	)

	users := c.discoverUsers(ctx, params.ListingPages)

	seen, err := c.emails.LoadExistingEmails()
	if err != nil {
		return nil, fmt.Errorf("seed dedup set: %w", err)
	}
	st := newRunState(params.EmailLimit, seen)

	for _, user := range users {
		if st.quotaReached() {
			break
		}
		c.visitUser(ctx, st, user, params)
	}

	elapsed := time.Since(start)
	metrics.ObserveRunDuration(elapsed)

	summary := st.summary(elapsed, len(users), c.emails.Path())
	c.setLastSummary(summary)
	if c.cfg.SnapshotPath != "" {
		if err := store.SaveSummary(c.cfg.SnapshotPath, summary); err != nil {
			c.logger.Warn("snapshot write failed", zap.Error(err))
		}
	}

	c.logger.Info("crawl run finished",
		zap.Int("users_discovered", summary.UsersDiscovered),
		zap.Int("users_with_hits", summary.UsersWithHits),
		zap.Int("new_emails_written", summary.NewEmailsWritten),
		zap.Float64("run_seconds", summary.RunSeconds),
	)
	return &summary, nil
}

// discoverUsers paginates the directory listing, harvests candidate
// usernames, and shuffles them so repeated runs do not always hammer the
// same head of the list.
func (c *Coordinator) discoverUsers(ctx context.Context, pages int) []string {
	frontier := NewLinkSet()
	for page := 1; page <= pages; page++ {
		listURL := fmt.Sprintf("%s/models?p=%d&sort=downloads", c.cfg.HubBaseURL, page)
		resp, err := c.fetcher.Fetch(ctx, listURL, "hub_directory", c.headers())
		if err != nil || !resp.OK() {
			c.pause(ctx)
			continue
		}
		parseUsernames(resp.Text(), c.cfg.MaxUsernameLen, frontier)
		c.pause(ctx)
	}

	users := frontier.Items()
	metrics.ObserveUsersDiscovered(len(users))
	c.shuffle(users)
	return users
}

// visitUser traverses one user: profile, model pages, linked websites, then
// linked source-hosting accounts. Each stage re-checks the quota so a user
// who alone would exceed it is cut off mid-traversal.
func (c *Coordinator) visitUser(ctx context.Context, st *runState, user string, params Params) {
	metrics.ObserveUserVisited()
	before := st.written

	ghLinks := NewLinkSet()
	var webLinks []string

	profileURL := c.cfg.HubBaseURL + "/" + user
	if resp, err := c.fetcher.Fetch(ctx, profileURL, "hub_profile", c.headers()); err == nil && resp.OK() {
		text := resp.Text()
		c.write(st, user, store.SourceProfile, extract.Emails(text))
		gh, web := parseProfileLinks(text, c.hubHost)
		ghLinks.AddAll(gh)
		webLinks = web
	}

	if !st.quotaReached() {
		c.visitModelPages(ctx, st, user, params.ModelPagesPerUser, ghLinks)
	}

	for _, link := range webLinks {
		if st.quotaReached() {
			break
		}
		resp, err := c.fetcher.Fetch(ctx, link, "website", c.headers())
		if err != nil || !resp.OK() {
			continue
		}
		c.write(st, user, store.SourceWebsite, extract.Emails(resp.Text()))
	}

	for _, link := range ghLinks.Items() {
		if st.quotaReached() {
			break
		}
		// Commit-harvested addresses pass through the same reject rules as
		// page extraction, whatever the source implementation returned.
		c.write(st, user, store.SourceSourceHost,
			extract.FilterCandidates(c.commits.CommitEmails(ctx, link)))
		c.pause(ctx)
	}

	if wrote := st.written - before; wrote > 0 {
		st.usersWithHits++
		metrics.ObserveUserWithHits(wrote)
	}
}

// visitModelPages lists a bounded number of the user's item pages, then
// extracts addresses from each and merges GitHub links into the shared
// per-user accumulator.
func (c *Coordinator) visitModelPages(ctx context.Context, st *runState, user string, pages int, ghLinks *LinkSet) {
	slugs := NewLinkSet()
	for page := 1; page <= pages; page++ {
		listURL := fmt.Sprintf("%s/%s?p=%d&sort=models", c.cfg.HubBaseURL, user, page)
		resp, err := c.fetcher.Fetch(ctx, listURL, "hub_user_models", c.headers())
		if err != nil || !resp.OK() {
			c.pause(ctx)
			continue
		}
		parseModelSlugs(resp.Text(), user, slugs)
		c.pause(ctx)
	}

	for _, slug := range slugs.Items() {
		if st.quotaReached() {
			return
		}
		resp, err := c.fetcher.Fetch(ctx, c.cfg.HubBaseURL+slug, "hub_model_page", c.headers())
		if err != nil || !resp.OK() {
			continue
		}
		text := resp.Text()
		c.write(st, user, store.SourceModelPage, extract.Emails(text))
		ghLinks.AddAll(parseGitHubLinks(text))
	}
}

// write appends each novel candidate to the store, re-checking the quota
// before every single address so the run stops within the same step where
// the total reaches the limit.
func (c *Coordinator) write(st *runState, user string, source store.Source, emails []string) {
	for _, email := range emails {
		if st.quotaReached() {
			return
		}
		if st.alreadySeen(email) {
			metrics.ObserveDedupSkip()
			continue
		}
		rec := store.Record{Username: user, Email: email, Source: source}
		if err := c.emails.Append(rec); err != nil {
			c.logger.Warn("record append failed",
				zap.String("username", user), zap.Error(err))
			continue
		}
		st.recordWrite(email, source)
		metrics.ObserveEmailWritten(string(source))
	}
}
