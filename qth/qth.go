// Package qth scrapes the swap.qth.com classifieds site. It extracts
// the category list from the index page and individual listings from
// the per-category pages.
package qth

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/larsks/qthrss/data"
)

const (
	// BaseURL is the production site. Tests point a client elsewhere.
	BaseURL = "https://swap.qth.com"

	indexPage = "index.php"

	// DefaultEntriesPerCategory bounds how many listings are collected
	// for a single feed.
	DefaultEntriesPerCategory = 20
)

// markers that delimit the category table on the index page
const (
	categoriesStart = "VIEW BY CATEGORY"
	categoriesEnd   = "QUICK SEARCH"
)

// anchor labels that identify the links inside a listing
const (
	contactLabel = "Click to Contact"
	photoLabel   = "Click Here to View Picture"
)

// ErrNoCategories indicates the index page had no recognizable
// category table, usually a sign the site layout changed.
var ErrNoCategories = errors.New("no categories found on index page")

// Getter fetches one page. *fetch.Fetcher satisfies this.
type Getter interface {
	Get(ctx context.Context, url string) (data.Page, error)
}

// Params configure a Client.
type Params struct {
	Fetcher            Getter
	BaseURL            string
	EntriesPerCategory int
}

// Client scrapes categories and listings. It remembers the most
// recently fetched category set for lookup by title.
type Client struct {
	fetcher     Getter
	base        *url.URL
	perCategory int

	mu      sync.RWMutex
	byTitle map[string]data.Category
}

// NewClient creates a scraper client. An empty BaseURL defaults to the
// production site.
func NewClient(p Params) (*Client, error) {
	if p.BaseURL == "" {
		p.BaseURL = BaseURL
	}

	if p.EntriesPerCategory <= 0 {
		p.EntriesPerCategory = DefaultEntriesPerCategory
	}

	base, err := url.Parse(p.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse base URL")
	}

	return &Client{
		fetcher:     p.Fetcher,
		base:        base,
		perCategory: p.EntriesPerCategory,
		byTitle:     make(map[string]data.Category),
	}, nil
}

// Categories fetches the index page and returns the categories in page
// order. Each call replaces the remembered set used by Category.
func (c *Client) Categories(ctx context.Context) ([]data.Category, error) {
	u := c.base.ResolveReference(&url.URL{Path: indexPage})

	page, err := c.fetcher.Get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	cats, err := parseCategories(page.Body, c.base)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse %v", u)
	}

	byTitle := make(map[string]data.Category, len(cats))
	for _, cat := range cats {
		byTitle[cat.Title] = cat
	}

	c.mu.Lock()
	c.byTitle = byTitle
	c.mu.Unlock()

	return cats, nil
}

// Category looks up a category from the most recent Categories call.
func (c *Client) Category(title string) (data.Category, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cat, ok := c.byTitle[title]
	return cat, ok
}

// Listings collects listings for a category, fetching further pages
// until the per-category limit is reached or a page comes back empty.
// Pages are kept whole, so the result may run past the limit.
func (c *Client) Listings(ctx context.Context, cat data.Category) ([]data.Listing, error) {
	var listings []data.Listing

	for page := 1; len(listings) < c.perCategory; page++ {
		batch, err := c.listingsPage(ctx, cat, page)
		if err != nil {
			return nil, err
		}

		if len(batch) == 0 {
			break
		}

		listings = append(listings, batch...)
	}

	return listings, nil
}

func (c *Client) listingsPage(ctx context.Context, cat data.Category, page int) ([]data.Listing, error) {
	u, err := url.Parse(cat.URL)
	if err != nil {
		return nil, errors.Wrapf(err, "bad category URL %q", cat.URL)
	}

	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()

	target := c.base.ResolveReference(u)

	p, err := c.fetcher.Get(ctx, target.String())
	if err != nil {
		return nil, err
	}

	listings, err := parseListings(p.Body, c.base)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse %v", target)
	}

	return listings, nil
}

// parseCategories walks the table rows between the "VIEW BY CATEGORY"
// heading and the "QUICK SEARCH" box, collecting every link. A title
// that repeats replaces the earlier entry in place.
func parseCategories(body []byte, base *url.URL) ([]data.Category, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	// the innermost cell holding the heading; document order puts
	// enclosing cells first
	marker := doc.Find("td").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.Text(), categoriesStart)
	}).Last()

	if marker.Length() == 0 {
		return nil, ErrNoCategories
	}

	var cats []data.Category
	index := make(map[string]int)

	marker.Closest("tr").NextAll().EachWithBreak(func(_ int, row *goquery.Selection) bool {
		end := row.Find("td").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.Contains(s.Text(), categoriesEnd)
		})

		if end.Length() > 0 {
			return false
		}

		row.Find("a").Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok {
				return
			}

			title := strings.TrimSpace(a.Text())
			if title == "" {
				return
			}

			dest, err := resolve(base, href)
			if err != nil {
				slog.Warn("skipping category with bad link",
					"title", title, "href", href)
				return
			}

			cat := data.Category{URL: dest, Title: title}

			if i, ok := index[title]; ok {
				cats[i] = cat
			} else {
				index[title] = len(cats)
				cats = append(cats, cat)
			}
		})

		return true
	})

	if len(cats) == 0 {
		return nil, ErrNoCategories
	}

	return cats, nil
}

// parseListings reads the first definition list on a category page.
// Each dt is a listing title and the dd that follows carries the
// description and links.
func parseListings(body []byte, base *url.URL) ([]data.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	dl := doc.Find(".qth-content-wrap dl").First()
	if dl.Length() == 0 {
		return nil, nil
	}

	var listings []data.Listing
	var title string
	var haveTitle bool

	dl.Children().Each(func(_ int, child *goquery.Selection) {
		switch goquery.NodeName(child) {
		case "dt":
			title = strings.TrimSpace(child.Text())
			haveTitle = true
		case "dd":
			if !haveTitle {
				slog.Warn("skipping listing with no title")
				return
			}

			if l, ok := parseListing(child, title, base); ok {
				listings = append(listings, l)
			}
		}
	})

	return listings, nil
}

func parseListing(dd *goquery.Selection, title string, base *url.URL) (data.Listing, bool) {
	contactHref, ok := anchorHref(dd, contactLabel)
	if !ok {
		slog.Warn("skipping listing with no contact link", "title", title)
		return data.Listing{}, false
	}

	contactURL, err := resolve(base, contactHref)
	if err != nil {
		slog.Warn("skipping listing with bad contact link",
			"title", title, "href", contactHref)
		return data.Listing{}, false
	}

	// the view page takes the same query string as the contact page
	viewURL, err := resolve(base, strings.ReplaceAll(contactHref, "contact", "view_ad"))
	if err != nil {
		slog.Warn("skipping listing with bad view link",
			"title", title, "href", contactHref)
		return data.Listing{}, false
	}

	l := data.Listing{
		Title:       title,
		Description: firstLines(dd.Text(), 2),
		ContactURL:  contactURL,
		ViewURL:     viewURL,
	}

	if photoHref, ok := anchorHref(dd, photoLabel); ok {
		if photoURL, err := resolve(base, photoHref); err == nil {
			l.PhotoURL = photoURL
		}
	}

	return l, true
}

// anchorHref returns the href of the first anchor under s whose text is
// exactly label.
func anchorHref(s *goquery.Selection, label string) (string, bool) {
	a := s.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
		return a.Text() == label
	}).First()

	if a.Length() == 0 {
		return "", false
	}

	return a.Attr("href")
}

func resolve(base *url.URL, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}

	return base.ResolveReference(u).String(), nil
}

// firstLines returns the first n lines of s. A trailing newline does
// not count as an extra line.
func firstLines(s string, n int) string {
	lines := strings.Split(s, "\n")

	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	if len(lines) > n {
		lines = lines[:n]
	}

	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}

	return strings.Join(lines, "\n")
}
