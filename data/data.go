// Package data specifies the data structures shared between the scraper,
// the cache, and the HTTP API.
package data

import "time"

// Category is one classifieds category as scraped from the swap.qth.com
// index page.
type Category struct {
	// URL is the absolute URL of the category listing page.
	URL string `json:"url"`
	// Title is the trimmed link text, e.g. "Antennas, Towers & Accessories".
	// Titles are the keys used in feed URLs.
	Title string `json:"title"`
}

func (c Category) String() string {
	return c.Title
}

// Listing is one classified ad parsed from a category page.
type Listing struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	// ContactURL is the absolute URL of the "Click to Contact" page.
	ContactURL string `json:"contactUrl"`
	// ViewURL is derived from ContactURL and points at the full ad.
	ViewURL string `json:"viewUrl"`
	// PhotoURL is empty when the ad has no picture.
	PhotoURL string `json:"photoUrl,omitempty"`
}

// Page is one fetched page as stored in the cache. Body is always UTF-8,
// whatever encoding the upstream server declared.
type Page struct {
	URL         string    `json:"url"`
	Status      int       `json:"status"`
	ContentType string    `json:"contentType"`
	Body        []byte    `json:"body"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

// Age returns how long ago the page was fetched.
func (p Page) Age(now time.Time) time.Duration {
	return now.Sub(p.FetchedAt)
}

// FetchSummary is a running tally of fetch activity since the process
// started. It is part of the /status endpoint response.
type FetchSummary struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Bytes  int64 `json:"bytes"`
	// LastFetch is the time of the most recent upstream fetch. Cache
	// hits do not advance it.
	LastFetch time.Time `json:"lastFetch,omitempty"`
}

// CacheInfo describes the state of the page cache. It is the response
// body of the /cache endpoint.
type CacheInfo struct {
	Count int      `json:"count"`
	URLs  []string `json:"urls"`
}

// FetchStat is one outbound fetch observation. Stats are reported to the
// optional metrics sink and summarized by the /status endpoint.
type FetchStat struct {
	URL      string        `json:"url"`
	Hit      bool          `json:"hit"`
	Status   int           `json:"status"`
	Bytes    int           `json:"bytes"`
	Duration time.Duration `json:"duration"`
	Time     time.Time     `json:"time"`
}
