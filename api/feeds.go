package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/larsks/qthrss/feed"
)

// feedLink is the template data for one entry on the index page.
type feedLink struct {
	Title string
	Path  string
}

// escapeFeedName escapes a category title for use in a feed URL.
// Slashes stay as they are; the feed handler matches them in the
// decoded path.
func escapeFeedName(name string) string {
	u := url.URL{Path: name}
	return u.EscapedPath()
}

// index renders the feed directory page.
func (h *App) index(res http.ResponseWriter, req *http.Request) {
	cats, err := h.scraper.Categories(req.Context())
	if err != nil {
		slog.Error("fetching categories", "error", err)
		http.Error(res, "Error fetching categories", http.StatusBadGateway)
		return
	}

	tmpl, err := h.templates()
	if err != nil {
		slog.Error("loading templates", "error", err)
		http.Error(res, "Error loading templates", http.StatusInternalServerError)
		return
	}

	links := make([]feedLink, 0, len(cats))
	for _, cat := range cats {
		links = append(links, feedLink{
			Title: cat.Title,
			Path:  escapeFeedName(cat.Title) + ".xml",
		})
	}

	res.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := tmpl.ExecuteTemplate(res, "feeds.html", links); err != nil {
		slog.Error("rendering index", "error", err)
	}
}

// feedsTxt lists one absolute feed URL per line, built from the Host
// header of the request.
func (h *App) feedsTxt(res http.ResponseWriter, req *http.Request) {
	cats, err := h.scraper.Categories(req.Context())
	if err != nil {
		slog.Error("fetching categories", "error", err)
		http.Error(res, "Error fetching categories", http.StatusBadGateway)
		return
	}

	urls := make([]string, 0, len(cats))
	for _, cat := range cats {
		urls = append(urls, fmt.Sprintf("http://%s/feed/%s.xml",
			req.Host, escapeFeedName(cat.Title)))
	}

	res.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if _, err := res.Write([]byte(strings.Join(urls, "\n"))); err != nil {
		slog.Error("writing feed list", "error", err)
	}
}

// feed serves the Atom feed for one category. The category name is
// whatever remains of the path, minus the .xml suffix.
func (h *App) feed(res http.ResponseWriter, req *http.Request) {
	name := strings.TrimPrefix(req.URL.Path, "/")

	if !strings.HasSuffix(name, ".xml") {
		http.Error(res, "Not Found", http.StatusNotFound)
		return
	}

	name = strings.TrimSuffix(name, ".xml")
	if name == "" {
		http.Error(res, "Not Found", http.StatusNotFound)
		return
	}

	// refresh the category set first so new categories show up
	// without a restart
	if _, err := h.scraper.Categories(req.Context()); err != nil {
		slog.Error("fetching categories", "error", err)
		http.Error(res, "Error fetching categories", http.StatusBadGateway)
		return
	}

	cat, ok := h.scraper.Category(name)
	if !ok {
		http.Error(res, "Unknown category", http.StatusNotFound)
		return
	}

	listings, err := h.scraper.Listings(req.Context(), cat)
	if err != nil {
		slog.Error("fetching listings", "category", cat.Title, "error", err)
		http.Error(res, "Error fetching listings", http.StatusBadGateway)
		return
	}

	f := feed.Build(cat, listings, time.Now())

	res.Header().Set("Content-Type", feed.ContentType)

	if err := feed.Write(f, res); err != nil {
		slog.Error("writing feed", "category", cat.Title, "error", err)
	}
}
