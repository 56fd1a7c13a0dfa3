// Package fetch retrieves pages over HTTP with a persistent cache in
// front. Cached pages are reused until they exceed the configured
// lifetime; transient upstream failures are retried with exponential
// backoff.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/html/charset"

	"github.com/larsks/qthrss/data"
)

// Cache stores fetched pages between requests. Get reports whether a
// page for the URL exists at all; deciding if it is still fresh is the
// fetcher's job.
type Cache interface {
	Get(url string) (data.Page, bool, error)
	Put(p data.Page) error
}

// Recorder receives one stat for every Get call.
type Recorder interface {
	Record(s data.FetchStat)
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Params configure a Fetcher. Cache and Recorder may be nil, in which
// case every Get goes to the network and stats are discarded.
type Params struct {
	Cache     Cache
	Recorder  Recorder
	Lifetime  time.Duration
	UserAgent string
	Client    *http.Client
}

// Fetcher is a caching HTTP page fetcher.
type Fetcher struct {
	cache     Cache
	recorder  Recorder
	lifetime  time.Duration
	userAgent string
	client    *http.Client
}

// NewFetcher creates a fetcher. A zero Lifetime defaults to one hour.
func NewFetcher(p Params) *Fetcher {
	if p.Client == nil {
		p.Client = httpClient
	}

	if p.Lifetime <= 0 {
		p.Lifetime = time.Hour
	}

	return &Fetcher{
		cache:     p.Cache,
		recorder:  p.Recorder,
		lifetime:  p.Lifetime,
		userAgent: p.UserAgent,
		client:    p.Client,
	}
}

// Get returns the page at url. A cached copy younger than the fetcher
// lifetime is returned as is; otherwise the page is fetched, stored,
// and returned. Bodies are always decoded to UTF-8.
func (f *Fetcher) Get(ctx context.Context, url string) (data.Page, error) {
	start := time.Now()

	if f.cache != nil {
		p, ok, err := f.cache.Get(url)
		if err != nil {
			slog.Warn("cache read failed", "url", url, "error", err)
		} else if ok && p.Age(start) < f.lifetime {
			f.record(data.FetchStat{URL: url, Hit: true, Status: p.Status,
				Bytes: len(p.Body), Duration: time.Since(start), Time: start})
			return p, nil
		}
	}

	p, err := f.fetch(ctx, url)
	if err != nil {
		f.record(data.FetchStat{URL: url, Hit: false, Status: p.Status,
			Duration: time.Since(start), Time: start})
		return data.Page{}, err
	}

	if f.cache != nil {
		if err := f.cache.Put(p); err != nil {
			slog.Warn("cache write failed", "url", url, "error", err)
		}
	}

	f.record(data.FetchStat{URL: url, Hit: false, Status: p.Status,
		Bytes: len(p.Body), Duration: time.Since(start), Time: start})

	return p, nil
}

// fetch does the network round trip. Network errors and 5xx responses
// are retried until the backoff gives up; other non-2xx responses fail
// immediately and are never cached.
func (f *Fetcher) fetch(ctx context.Context, url string) (data.Page, error) {
	var page data.Page

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = 2 * time.Minute

	err := backoff.Retry(func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		p, err := f.fetchOnce(ctx, url)
		if err != nil {
			slog.Debug("fetch attempt failed", "url", url, "error", err)
			return err
		}

		if p.Status >= 500 {
			page.Status = p.Status
			return fmt.Errorf("Error fetching %v: server returned %v", url, p.Status)
		}

		if p.Status < 200 || p.Status > 299 {
			page.Status = p.Status
			return backoff.Permanent(fmt.Errorf("Error fetching %v: status %v",
				url, p.Status))
		}

		page = p
		return nil
	}, backoff.WithContext(bo, ctx))

	return page, err
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (data.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return data.Page{}, backoff.Permanent(err)
	}

	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return data.Page{}, err
	}

	defer resp.Body.Close()

	// decode to UTF-8 up front so parsing never has to care about the
	// page charset
	r, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return data.Page{}, fmt.Errorf("Error decoding %v: %v", url, err)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return data.Page{}, fmt.Errorf("Error reading %v: %v", url, err)
	}

	return data.Page{
		URL:         url,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		FetchedAt:   time.Now(),
	}, nil
}

func (f *Fetcher) record(s data.FetchStat) {
	if f.recorder != nil {
		f.recorder.Record(s)
	}
}
