package crawl

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfaulkner/mailharvest/internal/fetch"
	"github.com/jfaulkner/mailharvest/internal/metrics"
	"github.com/jfaulkner/mailharvest/internal/store"
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	gate  chan struct{}
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url, _ string, _ http.Header) (*fetch.Response, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.calls = append(f.calls, url)
	body, ok := f.pages[url]
	f.mu.Unlock()
	if !ok {
		return nil, errors.New("connection refused")
	}
	return &fetch.Response{URL: url, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

// ctxRecordingFetcher captures the context state seen by every fetch so
// tests can tell whether background runs execute on a live context.
type ctxRecordingFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	errs  []error
}

func (f *ctxRecordingFetcher) Fetch(ctx context.Context, url, _ string, _ http.Header) (*fetch.Response, error) {
	f.mu.Lock()
	f.errs = append(f.errs, ctx.Err())
	body, ok := f.pages[url]
	f.mu.Unlock()
	if !ok {
		return nil, errors.New("connection refused")
	}
	return &fetch.Response{URL: url, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

func (f *ctxRecordingFetcher) contextErrs() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.errs...)
}

type fakeCommits struct {
	emails map[string][]string
}

func (f *fakeCommits) CommitEmails(_ context.Context, link string) []string {
	return f.emails[link]
}

func newTestCoordinator(t *testing.T, fetcher Fetcher, commits CommitSource) (*Coordinator, *store.EmailStore, string) {
	t.Helper()
	metrics.Init()

	dir := t.TempDir()
	emails, err := store.Open(filepath.Join(dir, "emails.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = emails.Close() })

	snapshotPath := filepath.Join(dir, "kpi_latest.json")
	if commits == nil {
		commits = &fakeCommits{}
	}
	c := New(Config{
		HubBaseURL:   "https://hub.test",
		UserAgent:    "mailharvest-test/0.1",
		SnapshotPath: snapshotPath,
	}, fetcher, commits, emails, nil)
	c.shuffle = func([]string) {} // deterministic traversal order for assertions
	return c, emails, snapshotPath
}

func hubPages() map[string]string {
	return map[string]string{
		"https://hub.test/models?p=1&sort=downloads": `
			<a href="/alice">alice</a>
			<a href="/bob">bob</a>
			<a href="/models?p=2">reserved</a>`,
		"https://hub.test/alice": `
			<p>contact: alice [at] example [dot] com</p>
			<a href="https://github.com/alice-dev?tab=repos">gh</a>
			<a href="https://blog.alice.test/">blog</a>`,
		"https://hub.test/alice?p=1&sort=models": `
			<a href="/alice/model-one">m1</a>`,
		"https://hub.test/alice/model-one": `
			<p>maintainer: maint@example.com</p>
			<a href="https://github.com/alice-lab">lab</a>`,
		"https://blog.alice.test": `<p>write to blogger@shop.com today</p>`,
		"https://hub.test/bob": `<p>no contact details here</p>`,
		"https://hub.test/bob?p=1&sort=models": ``,
	}
}

func TestRunHappyPath(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: hubPages()}
	commits := &fakeCommits{emails: map[string][]string{
		"https://github.com/alice-dev": {"dev@corp.com", "123+a@users.noreply.github.com"},
		"https://github.com/alice-lab": {"dev@corp.com", "lab@corp.com"},
	}}
	c, emails, snapshotPath := newTestCoordinator(t, fetcher, commits)

	summary, err := c.Run(context.Background(), Params{
		EmailLimit:        100,
		ListingPages:      1,
		ModelPagesPerUser: 1,
	})
	require.NoError(t, err)

	records, err := emails.All()
	require.NoError(t, err)

	byEmail := map[string]store.Record{}
	for _, rec := range records {
		byEmail[rec.Email] = rec
	}
	require.Len(t, byEmail, 5)
	assert.Equal(t, store.SourceProfile, byEmail["alice@example.com"].Source)
	assert.Equal(t, store.SourceModelPage, byEmail["maint@example.com"].Source)
	assert.Equal(t, store.SourceWebsite, byEmail["blogger@shop.com"].Source)
	assert.Equal(t, store.SourceSourceHost, byEmail["dev@corp.com"].Source)
	assert.Equal(t, store.SourceSourceHost, byEmail["lab@corp.com"].Source)
	assert.Equal(t, "alice", byEmail["alice@example.com"].Username)

	assert.Equal(t, 2, summary.UsersDiscovered)
	assert.Equal(t, 1, summary.UsersWithHits)
	assert.Equal(t, 50.0, summary.HitRatePercent)
	assert.Equal(t, 5, summary.NewEmailsWritten)
	assert.Equal(t, 1, summary.EmailsBySource[string(store.SourceProfile)])
	assert.Equal(t, 2, summary.EmailsBySource[string(store.SourceSourceHost)])
	assert.Equal(t, 3, summary.UniqueDomains)

	domains := make([]string, 0, len(summary.TopDomains))
	for _, dc := range summary.TopDomains {
		domains = append(domains, dc.Domain)
	}
	sort.Strings(domains)
	assert.Equal(t, []string{"corp.com", "example.com", "shop.com"}, domains)
	assert.Equal(t, 2, summary.TopDomains[0].Count, "corp.com has two hits")

	// Snapshot side file mirrors the in-memory slot.
	loaded, err := store.LoadSummary(snapshotPath)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, *summary, *loaded)

	last := c.LastSummary()
	require.NotNil(t, last)
	assert.Equal(t, *summary, *last)
	assert.False(t, c.IsActive())
}

func TestRunDedupsAgainstExistingStore(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: hubPages()}
	c, emails, _ := newTestCoordinator(t, fetcher, nil)

	// Pre-seed the store with an address the profile will re-surface.
	require.NoError(t, emails.Append(store.Record{
		Username: "old-run", Email: "alice@example.com", Source: store.SourceProfile,
	}))

	summary, err := c.Run(context.Background(), Params{
		EmailLimit: 100, ListingPages: 1, ModelPagesPerUser: 1,
	})
	require.NoError(t, err)

	records, err := emails.All()
	require.NoError(t, err)
	count := 0
	for _, rec := range records {
		if rec.Email == "alice@example.com" {
			count++
		}
	}
	assert.Equal(t, 1, count, "seeded address must not be re-appended")
	// Seed row plus the two genuinely new addresses.
	assert.Len(t, records, 3)
	assert.Equal(t, 2, summary.NewEmailsWritten)
}

func TestRunQuotaCutsOffMidUser(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://hub.test/models?p=1&sort=downloads": `<a href="/carol">carol</a>`,
		"https://hub.test/carol": `
			<p>one@corp.com two@corp.com three@corp.com four@corp.com</p>`,
		"https://hub.test/carol?p=1&sort=models": ``,
	}}
	c, emails, _ := newTestCoordinator(t, fetcher, nil)

	summary, err := c.Run(context.Background(), Params{
		EmailLimit: 2, ListingPages: 1, ModelPagesPerUser: 1,
	})
	require.NoError(t, err)

	records, err := emails.All()
	require.NoError(t, err)
	require.Len(t, records, 2, "quota must stop within the same per-address step")
	assert.Equal(t, "one@corp.com", records[0].Email)
	assert.Equal(t, "two@corp.com", records[1].Email)
	assert.Equal(t, 2, summary.NewEmailsWritten)
	assert.Equal(t, 1, summary.UsersWithHits)
}

func TestRunRejectsConcurrentStart(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	fetcher := &fakeFetcher{pages: hubPages(), gate: gate}
	c, emails, _ := newTestCoordinator(t, fetcher, nil)

	require.NoError(t, c.StartRun(context.Background(), Params{
		EmailLimit: 10, ListingPages: 1, ModelPagesPerUser: 1,
	}))
	assert.True(t, c.IsActive())

	// Second start while the first is blocked inside its initial fetch.
	_, err := c.Run(context.Background(), Params{EmailLimit: 10, ListingPages: 1})
	assert.ErrorIs(t, err, ErrRunActive)
	err = c.StartRun(context.Background(), Params{EmailLimit: 10, ListingPages: 1})
	assert.ErrorIs(t, err, ErrRunActive)

	// The rejected attempts must not have touched the store.
	records, readErr := emails.All()
	require.NoError(t, readErr)
	assert.Empty(t, records)

	close(gate)
	require.Eventually(t, func() bool { return !c.IsActive() },
		5*time.Second, 10*time.Millisecond)
}

func TestRunSurvivesFetchFailures(t *testing.T) {
	t.Parallel()

	// Only the directory and one profile resolve; everything else errors.
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://hub.test/models?p=1&sort=downloads": `
			<a href="/dana">dana</a>
			<a href="/erin">erin</a>`,
		"https://hub.test/dana": `<p>reach dana@corp.com</p>`,
	}}
	c, emails, _ := newTestCoordinator(t, fetcher, nil)

	summary, err := c.Run(context.Background(), Params{
		EmailLimit: 10, ListingPages: 2, ModelPagesPerUser: 1,
	})
	require.NoError(t, err)

	records, readErr := emails.All()
	require.NoError(t, readErr)
	require.Len(t, records, 1)
	assert.Equal(t, "dana@corp.com", records[0].Email)
	assert.Equal(t, 2, summary.UsersDiscovered)
	assert.Equal(t, 1, summary.UsersWithHits)
}

func TestRunZeroUsers(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{}}
	c, _, _ := newTestCoordinator(t, fetcher, nil)

	summary, err := c.Run(context.Background(), Params{
		EmailLimit: 10, ListingPages: 1, ModelPagesPerUser: 1,
	})
	require.NoError(t, err)
	assert.Zero(t, summary.UsersDiscovered)
	assert.Zero(t, summary.HitRatePercent)
	assert.Zero(t, summary.NewEmailsWritten)
}

func TestStartRunOutlivesCallerContext(t *testing.T) {
	t.Parallel()

	fetcher := &ctxRecordingFetcher{pages: hubPages()}
	c, emails, _ := newTestCoordinator(t, fetcher, nil)

	callerCtx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.StartRun(callerCtx, Params{
		EmailLimit: 100, ListingPages: 1, ModelPagesPerUser: 1,
	}))
	// The caller goes away immediately, as an HTTP handler does after
	// writing its response. The run must keep going regardless.
	cancel()

	require.Eventually(t, func() bool { return !c.IsActive() },
		2*time.Second, 10*time.Millisecond)

	errs := fetcher.contextErrs()
	require.NotEmpty(t, errs)
	for _, err := range errs {
		assert.NoError(t, err, "background fetch saw a dead context")
	}

	records, err := emails.All()
	require.NoError(t, err)
	assert.Len(t, records, 3)
	require.NotNil(t, c.LastSummary())
	assert.Equal(t, 3, c.LastSummary().NewEmailsWritten)
}
