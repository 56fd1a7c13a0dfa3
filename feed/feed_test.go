package feed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/larsks/qthrss/data"
)

var testCategory = data.Category{
	URL:   "https://swap.qth.com/c_radios.php",
	Title: "Radios",
}

var testListings = []data.Listing{
	{
		Title:       "Yaesu FT-1000MP",
		Description: "Excellent condition transceiver.\nIncludes the 500Hz filter.",
		ContactURL:  "https://swap.qth.com/contact.php?counter=100",
		ViewURL:     "https://swap.qth.com/view_ad.php?counter=100",
		PhotoURL:    "https://swap.qth.com/photos/100.jpg",
	},
	{
		Title:       "Heathkit SB-200",
		Description: "Working amplifier, recent recap.",
		ContactURL:  "https://swap.qth.com/contact.php?counter=101",
		ViewURL:     "https://swap.qth.com/view_ad.php?counter=101",
	},
}

func TestBuild(t *testing.T) {
	updated := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	f := Build(testCategory, testListings, updated)

	if f.Title != "QTH Classifieds - Radios" {
		t.Error("Unexpected feed title: ", f.Title)
	}

	if f.Id != testCategory.URL {
		t.Error("Unexpected feed id: ", f.Id)
	}

	if f.Subtitle != "Radios" {
		t.Error("Unexpected feed subtitle: ", f.Subtitle)
	}

	if f.Link == nil || f.Link.Href != testCategory.URL || f.Link.Rel != "self" {
		t.Error("Unexpected feed link: ", f.Link)
	}

	if f.Updated != "2024-05-01T12:00:00Z" {
		t.Error("Unexpected feed updated: ", f.Updated)
	}

	if len(f.Entries) != 2 {
		t.Fatal("Expected 2 entries, got ", len(f.Entries))
	}

	first := f.Entries[0]

	if first.Id != testListings[0].ViewURL {
		t.Error("Unexpected entry id: ", first.Id)
	}

	if first.Summary == nil || first.Summary.Content != testListings[0].Description {
		t.Error("Unexpected entry summary: ", first.Summary)
	}

	// view, contact, and photo links
	if len(first.Links) != 3 {
		t.Fatal("Expected 3 links on first entry, got ", len(first.Links))
	}

	rels := map[string]string{}
	for _, l := range first.Links {
		rels[l.Rel] = l.Href
	}

	if rels["alternate"] != testListings[0].ViewURL {
		t.Error("Unexpected alternate link: ", rels["alternate"])
	}

	if rels["related"] != testListings[0].ContactURL {
		t.Error("Unexpected related link: ", rels["related"])
	}

	if rels["enclosure"] != testListings[0].PhotoURL {
		t.Error("Unexpected enclosure link: ", rels["enclosure"])
	}

	// no photo on the second listing, no enclosure link
	if len(f.Entries[1].Links) != 2 {
		t.Error("Expected 2 links on second entry, got ", len(f.Entries[1].Links))
	}
}

func TestWrite(t *testing.T) {
	f := Build(testCategory, testListings, time.Now())

	var buf bytes.Buffer
	if err := Write(f, &buf); err != nil {
		t.Fatal("Error writing feed: ", err)
	}

	out := buf.String()

	if !strings.HasPrefix(out, "<?xml") {
		t.Error("Expected XML declaration, got ", out[:40])
	}

	for _, want := range []string{
		`xmlns="http://www.w3.org/2005/Atom"`,
		"<title>QTH Classifieds - Radios</title>",
		"<id>https://swap.qth.com/view_ad.php?counter=100</id>",
		`rel="enclosure"`,
	} {
		if !strings.Contains(out, want) {
			t.Error("Expected feed to contain ", want)
		}
	}
}
