// Package fetch implements the rate-observed HTTP client using gocolly.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/jfaulkner/mailharvest/internal/metrics"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Response is the uniform success result of one GET.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// OK reports whether the response carries a usable 200 body.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode == http.StatusOK
}

// Client issues single bounded GET requests and records latency and outcome
// per target label. It never retries; callers decide whether to skip or
// re-attempt, and must treat an error as "no data, proceed".
type Client struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Client with a pooled transport.
func New(cfg Config) *Client {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	c.SetRequestTimeout(cfg.Timeout)

	return &Client{cfg: cfg, baseCollector: c}
}

// Fetch executes a single HTTP GET. The target label keys the observability
// counters; it is not part of the request. A non-2xx status is a success at
// this layer: the caller receives the status code and decides.
func (c *Client) Fetch(ctx context.Context, url, target string, headers http.Header) (*Response, error) {
	var (
		result   *Response
		fetchErr error
	)
	start := time.Now()

	collector := c.baseCollector.Clone()
	collector.UserAgent = c.baseCollector.UserAgent
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(c.cfg.Timeout)

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		result = &Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			// HTTP-level error status: still a response, not a transport failure.
			result = &Response{
				URL:        url,
				StatusCode: r.StatusCode,
				Body:       append([]byte(nil), r.Body...),
				Duration:   time.Since(start),
			}
			return
		}
		fetchErr = err
	})

	err := c.visit(ctx, collector, url)

	// A captured response wins even when Visit surfaced a status error:
	// non-2xx is data for the caller, not a transport failure.
	if result != nil {
		metrics.ObserveRequest(target, result.StatusCode, result.Duration)
		return result, nil
	}
	if err == nil {
		err = fetchErr
	}
	if err == nil {
		err = fmt.Errorf("no response received")
	}
	metrics.ObserveRequestError(target, time.Since(start))
	return nil, fmt.Errorf("fetch %s: %w", target, err)
}

func (c *Client) visit(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		return err
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
