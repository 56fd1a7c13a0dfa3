package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/larsks/qthrss/data"
)

type prefetchScraper interface {
	Categories(ctx context.Context) ([]data.Category, error)
	Listings(ctx context.Context, cat data.Category) ([]data.Listing, error)
}

// prefetchClient periodically walks every category so the page cache
// stays warm and feed requests are served from disk.
type prefetchClient struct {
	scraper prefetchScraper
	period  time.Duration
	stop    chan struct{}
}

func newPrefetchClient(scraper prefetchScraper, period time.Duration) *prefetchClient {
	return &prefetchClient{
		scraper: scraper,
		period:  period,
		stop:    make(chan struct{}),
	}
}

// Run starts the prefetch loop. The first pass runs immediately, then
// once every period. Does not return until Stop is called.
func (pf *prefetchClient) Run() error {
	ticker := time.NewTicker(pf.period)
	defer ticker.Stop()

	pf.prefetch()

done:
	for {
		select {
		case <-pf.stop:
			break done
		case <-ticker.C:
			pf.prefetch()
		}
	}

	return nil
}

// Stop stops the prefetch loop
func (pf *prefetchClient) Stop(_ error) {
	close(pf.stop)
}

func (pf *prefetchClient) prefetch() {
	// a pass that cannot finish inside one period is not going to
	// finish at all, so use the period as the deadline
	ctx, cancel := context.WithTimeout(context.Background(), pf.period)
	defer cancel()

	cats, err := pf.scraper.Categories(ctx)
	if err != nil {
		slog.Warn("prefetch: error fetching categories", "err", err)
		return
	}

	for _, cat := range cats {
		select {
		case <-pf.stop:
			return
		default:
		}

		if _, err := pf.scraper.Listings(ctx, cat); err != nil {
			slog.Warn("prefetch: error fetching listings",
				"category", cat.Title, "err", err)
		}
	}

	slog.Info("prefetch complete", "categories", len(cats))
}
