// Package crawl drives the multi-stage discovery run: directory listing,
// per-user profile/model/website/source-host traversal, extraction, dedup,
// quota enforcement, and the run summary.
package crawl

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jfaulkner/mailharvest/internal/fetch"
	"github.com/jfaulkner/mailharvest/internal/store"
)

// ErrRunActive is the policy outcome returned when a run is requested while
// one is already in flight. It is control flow, not a failure.
var ErrRunActive = errors.New("crawl run already active")

// Fetcher is the HTTP GET capability the orchestrator consumes.
type Fetcher interface {
	Fetch(ctx context.Context, url, target string, headers http.Header) (*fetch.Response, error)
}

// CommitSource resolves a source-hosting account link into candidate emails.
type CommitSource interface {
	CommitEmails(ctx context.Context, link string) []string
}

// Params are the per-run knobs.
type Params struct {
	EmailLimit        int `json:"email_limit"`
	ListingPages      int `json:"listing_pages"`
	ModelPagesPerUser int `json:"model_pages_per_user"`
}

// Config is the orchestrator's fixed configuration.
type Config struct {
	HubBaseURL     string
	UserAgent      string
	MaxUsernameLen int
	PoliteDelay    time.Duration
	SnapshotPath   string
}

// Coordinator owns the run-active flag and the last-summary slot. Exactly
// one run may be active at a time; the flag transitions through
// compare-and-swap on start and is always released in the run's cleanup
// path. The summary slot is single-slot, last-write-wins.
type Coordinator struct {
	cfg     Config
	hubHost string
	fetcher Fetcher
	commits CommitSource
	emails  *store.EmailStore
	logger  *zap.Logger

	active  atomic.Bool
	mu      sync.RWMutex
	last    *store.Summary
	shuffle func([]string)
}

// New builds a Coordinator.
func New(cfg Config, fetcher Fetcher, commits CommitSource, emails *store.EmailStore, logger *zap.Logger) *Coordinator {
	if cfg.MaxUsernameLen <= 0 {
		cfg.MaxUsernameLen = 40
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	hubHost := cfg.HubBaseURL
	if u, err := url.Parse(cfg.HubBaseURL); err == nil && u.Hostname() != "" {
		hubHost = u.Hostname()
	}
	return &Coordinator{
		cfg:     cfg,
		hubHost: hubHost,
		fetcher: fetcher,
		commits: commits,
		emails:  emails,
		logger:  logger,
		shuffle: shuffleStrings,
	}
}

// IsActive reports whether a run is in flight.
func (c *Coordinator) IsActive() bool {
	return c.active.Load()
}

// LastSummary returns the most recent run snapshot, or nil before the first
// completed run. Readers get best-effort, eventually-consistent data.
func (c *Coordinator) LastSummary() *store.Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return nil
	}
	cp := *c.last
	return &cp
}

// Run executes one crawl synchronously. It fails immediately with
// ErrRunActive when a run is already in flight, without queuing.
func (c *Coordinator) Run(ctx context.Context, params Params) (*store.Summary, error) {
	if !c.active.CompareAndSwap(false, true) {
		return nil, ErrRunActive
	}
	defer c.active.Store(false)
	return c.run(ctx, params)
}

// StartRun begins a crawl in the background. The active-flag transition
// happens synchronously so a rejected caller learns immediately. The run
// itself is detached from the caller's context: an accepted run outlives
// the request that started it and proceeds to completion or quota
// exhaustion.
func (c *Coordinator) StartRun(ctx context.Context, params Params) error {
	if !c.active.CompareAndSwap(false, true) {
		return ErrRunActive
	}
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer c.active.Store(false)
		if _, err := c.run(runCtx, params); err != nil {
			c.logger.Error("crawl run failed", zap.Error(err))
		}
	}()
	return nil
}

func (c *Coordinator) setLastSummary(summary store.Summary) {
	c.mu.Lock()
	c.last = &summary
	c.mu.Unlock()
}

func (c *Coordinator) pause(ctx context.Context) {
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

func (c *Coordinator) headers() http.Header {
	h := http.Header{}
	if c.cfg.UserAgent != "" {
		h.Set("User-Agent", c.cfg.UserAgent)
	}
	return h
}
