// Package feed turns scraped listings into Atom feeds.
package feed

import (
	"io"
	"time"

	"github.com/gorilla/feeds"

	"github.com/larsks/qthrss/data"
)

// ContentType is the media type feeds are served with.
const ContentType = "application/atom+xml"

const titlePrefix = "QTH Classifieds - "

// Build assembles the Atom feed for one category. The category page is
// the feed id and self link; each entry links to the listing's view
// page and contact form, with the photo attached as an enclosure when
// present. updated stamps the feed and every entry.
func Build(cat data.Category, listings []data.Listing, updated time.Time) *feeds.AtomFeed {
	ts := updated.Format(time.RFC3339)

	f := &feeds.AtomFeed{
		Xmlns:    "http://www.w3.org/2005/Atom",
		Title:    titlePrefix + cat.Title,
		Id:       cat.URL,
		Updated:  ts,
		Subtitle: cat.Title,
		Link:     &feeds.AtomLink{Href: cat.URL, Rel: "self"},
	}

	for _, l := range listings {
		entry := &feeds.AtomEntry{
			Title:   l.Title,
			Id:      l.ViewURL,
			Updated: ts,
			Links: []feeds.AtomLink{
				{Href: l.ViewURL, Rel: "alternate"},
				{Href: l.ContactURL, Rel: "related"},
			},
			Summary: &feeds.AtomSummary{Content: l.Description, Type: "text"},
		}

		if l.PhotoURL != "" {
			entry.Links = append(entry.Links,
				feeds.AtomLink{Href: l.PhotoURL, Rel: "enclosure"})
		}

		f.Entries = append(f.Entries, entry)
	}

	return f
}

// Write serializes the feed as XML.
func Write(f *feeds.AtomFeed, w io.Writer) error {
	return feeds.WriteXML(f, w)
}
