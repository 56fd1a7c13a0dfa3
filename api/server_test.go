package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/larsks/qthrss/data"
	"github.com/larsks/qthrss/frontend"
)

type fakeScraper struct {
	cats     []data.Category
	listings map[string][]data.Listing
	catErr   error
}

func (f *fakeScraper) Categories(_ context.Context) ([]data.Category, error) {
	if f.catErr != nil {
		return nil, f.catErr
	}

	return f.cats, nil
}

func (f *fakeScraper) Category(title string) (data.Category, bool) {
	for _, c := range f.cats {
		if c.Title == title {
			return c, true
		}
	}

	return data.Category{}, false
}

func (f *fakeScraper) Listings(_ context.Context, cat data.Category) ([]data.Listing, error) {
	return f.listings[cat.Title], nil
}

type fakeCache struct {
	info    data.CacheInfo
	summary data.FetchSummary
}

func (f *fakeCache) Info() (data.CacheInfo, error) {
	return f.info, nil
}

func (f *fakeCache) Summary() data.FetchSummary {
	return f.summary
}

func testScraper() *fakeScraper {
	return &fakeScraper{
		cats: []data.Category{
			{URL: "https://swap.qth.com/c_antennas.php", Title: "Antennas"},
			{URL: "https://swap.qth.com/c_keys.php", Title: "CW Keys & Keyers"},
		},
		listings: map[string][]data.Listing{
			"Antennas": {
				{
					Title:       "Hexbeam",
					Description: "Six band hexbeam, disassembled.",
					ContactURL:  "https://swap.qth.com/contact.php?counter=300",
					ViewURL:     "https://swap.qth.com/view_ad.php?counter=300",
				},
			},
		},
	}
}

func testApp(t *testing.T, scraper Scraper) http.Handler {
	t.Helper()

	return NewAppHandler(ServerArgs{
		Scraper:   scraper,
		Cache:     &fakeCache{info: data.CacheInfo{Count: 2, URLs: []string{"a", "b"}}},
		Templates: frontend.Templates,
		Version:   "1.2.3",
		ID:        "test-id",
	})
}

func doRequest(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	return w
}

func TestIndex(t *testing.T) {
	h := testApp(t, testScraper())

	w := doRequest(t, h, http.MethodGet, "http://rss.example.com/")

	if w.Code != http.StatusOK {
		t.Fatal("Unexpected status: ", w.Code)
	}

	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Error("Unexpected content type: ", ct)
	}

	body := w.Body.String()

	if !strings.Contains(body, `href="feed/Antennas.xml"`) {
		t.Error("Expected Antennas feed link in index:\n", body)
	}

	if !strings.Contains(body, "CW%20Keys%20&amp;%20Keyers.xml") {
		t.Error("Expected escaped feed link in index:\n", body)
	}
}

func TestFeedsTxt(t *testing.T) {
	h := testApp(t, testScraper())

	w := doRequest(t, h, http.MethodGet, "http://rss.example.com/feeds.txt")

	if w.Code != http.StatusOK {
		t.Fatal("Unexpected status: ", w.Code)
	}

	want := "http://rss.example.com/feed/Antennas.xml\n" +
		"http://rss.example.com/feed/CW%20Keys%20&%20Keyers.xml"

	if got := w.Body.String(); got != want {
		t.Errorf("Unexpected body %q, want %q", got, want)
	}
}

func TestFeed(t *testing.T) {
	h := testApp(t, testScraper())

	w := doRequest(t, h, http.MethodGet, "http://rss.example.com/feed/Antennas.xml")

	if w.Code != http.StatusOK {
		t.Fatal("Unexpected status: ", w.Code)
	}

	if ct := w.Header().Get("Content-Type"); ct != "application/atom+xml" {
		t.Error("Unexpected content type: ", ct)
	}

	body := w.Body.String()

	if !strings.Contains(body, "<title>QTH Classifieds - Antennas</title>") {
		t.Error("Expected feed title in body:\n", body)
	}

	if !strings.Contains(body, "<id>https://swap.qth.com/view_ad.php?counter=300</id>") {
		t.Error("Expected entry id in body:\n", body)
	}
}

func TestFeedEscapedName(t *testing.T) {
	h := testApp(t, testScraper())

	w := doRequest(t, h, http.MethodGet,
		"http://rss.example.com/feed/CW%20Keys%20&%20Keyers.xml")

	if w.Code != http.StatusOK {
		t.Fatal("Unexpected status: ", w.Code)
	}
}

func TestFeedSlashName(t *testing.T) {
	scraper := testScraper()
	scraper.cats = append(scraper.cats,
		data.Category{URL: "https://swap.qth.com/c_tr.php", Title: "Towers/Rotators"})

	h := testApp(t, scraper)

	w := doRequest(t, h, http.MethodGet,
		"http://rss.example.com/feed/Towers/Rotators.xml")

	if w.Code != http.StatusOK {
		t.Fatal("Unexpected status: ", w.Code)
	}

	if !strings.Contains(w.Body.String(), "QTH Classifieds - Towers/Rotators") {
		t.Error("Expected slashed category feed:\n", w.Body.String())
	}
}

func TestFeedUnknownCategory(t *testing.T) {
	h := testApp(t, testScraper())

	w := doRequest(t, h, http.MethodGet, "http://rss.example.com/feed/Nope.xml")

	if w.Code != http.StatusNotFound {
		t.Fatal("Expected 404, got ", w.Code)
	}
}

func TestFeedUpstreamError(t *testing.T) {
	scraper := testScraper()
	scraper.catErr = errors.New("connection refused")

	h := testApp(t, scraper)

	w := doRequest(t, h, http.MethodGet, "http://rss.example.com/feed/Antennas.xml")

	if w.Code != http.StatusBadGateway {
		t.Fatal("Expected 502, got ", w.Code)
	}
}

func TestCacheInfo(t *testing.T) {
	h := testApp(t, testScraper())

	w := doRequest(t, h, http.MethodGet, "http://rss.example.com/cache")

	if w.Code != http.StatusOK {
		t.Fatal("Unexpected status: ", w.Code)
	}

	var info data.CacheInfo
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatal("Error decoding cache info: ", err)
	}

	if info.Count != 2 || len(info.URLs) != 2 {
		t.Error("Unexpected cache info: ", info)
	}
}

func TestStatus(t *testing.T) {
	h := testApp(t, testScraper())

	w := doRequest(t, h, http.MethodGet, "http://rss.example.com/status")

	if w.Code != http.StatusOK {
		t.Fatal("Unexpected status: ", w.Code)
	}

	var status StatusResponse
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatal("Error decoding status: ", err)
	}

	if status.Version != "1.2.3" {
		t.Error("Unexpected version: ", status.Version)
	}

	if status.ID != "test-id" {
		t.Error("Unexpected id: ", status.ID)
	}

	if status.CacheCount != 2 {
		t.Error("Unexpected cache count: ", status.CacheCount)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := testApp(t, testScraper())

	w := doRequest(t, h, http.MethodPost, "http://rss.example.com/cache")

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatal("Expected 405, got ", w.Code)
	}
}

func TestNotFound(t *testing.T) {
	h := testApp(t, testScraper())

	for _, target := range []string{
		"http://rss.example.com/nope",
		"http://rss.example.com/feed/Antennas",
		"http://rss.example.com/cache/extra",
	} {
		w := doRequest(t, h, http.MethodGet, target)
		if w.Code != http.StatusNotFound {
			t.Error("Expected 404 for ", target, ", got ", w.Code)
		}
	}
}

func TestShiftPath(t *testing.T) {
	tests := []struct {
		in   string
		head string
		tail string
	}{
		{"/", "", "/"},
		{"/feed", "feed", "/"},
		{"/feed/Antennas.xml", "feed", "/Antennas.xml"},
		{"/feed/Towers/Rotators.xml", "feed", "/Towers/Rotators.xml"},
	}

	for _, test := range tests {
		head, tail := ShiftPath(test.in)
		if head != test.head || tail != test.tail {
			t.Errorf("ShiftPath(%q) = %q, %q; want %q, %q",
				test.in, head, tail, test.head, test.tail)
		}
	}
}
