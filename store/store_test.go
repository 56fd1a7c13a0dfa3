package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/larsks/qthrss/data"
	"github.com/larsks/qthrss/store"
)

func TestStoreLifecycle(t *testing.T) {
	st, err := store.NewStore(store.Params{
		File: filepath.Join(t.TempDir(), "pages.db"),
		ID:   "test-instance",
	})

	if err != nil {
		t.Fatal("Error creating store: ", err)
	}

	chRunDone := make(chan error)

	go func() {
		chRunDone <- st.Run()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	err = st.WaitStart(ctx)
	if err != nil {
		t.Fatal("Error waiting for store to start: ", err)
	}

	now := time.Now()

	st.Record(data.FetchStat{URL: "http://example.com/a", Hit: false,
		Status: 200, Bytes: 100, Time: now})
	st.Record(data.FetchStat{URL: "http://example.com/b", Hit: false,
		Status: 200, Bytes: 50, Time: now.Add(time.Second)})
	st.Record(data.FetchStat{URL: "http://example.com/a", Hit: true,
		Status: 200, Bytes: 100, Time: now.Add(2 * time.Second)})

	st.Stop(nil)

	select {
	case err := <-chRunDone:
		if err != nil {
			t.Fatal("Store Run returned error: ", err)
		}
	case <-time.After(time.Second * 5):
		t.Fatal("Timeout waiting for store to stop")
	}

	summary := st.Summary()

	if summary.Hits != 1 {
		t.Error("Expected 1 hit, got ", summary.Hits)
	}

	if summary.Misses != 2 {
		t.Error("Expected 2 misses, got ", summary.Misses)
	}

	if summary.Bytes != 150 {
		t.Error("Expected 150 bytes fetched, got ", summary.Bytes)
	}

	// the trailing hit never reached upstream, so the last fetch time
	// stays at the last miss
	if !summary.LastFetch.Equal(now.Add(time.Second)) {
		t.Error("Unexpected last fetch time: ", summary.LastFetch)
	}
}

func TestStoreCachePassthrough(t *testing.T) {
	st, err := store.NewStore(store.Params{
		File: filepath.Join(t.TempDir(), "pages.db"),
	})

	if err != nil {
		t.Fatal("Error creating store: ", err)
	}

	defer func() {
		if err := st.Close(); err != nil {
			t.Fatal("Error closing store: ", err)
		}
	}()

	p := data.Page{
		URL:         "http://example.com/c.php",
		Status:      200,
		ContentType: "text/html",
		Body:        []byte("<html></html>"),
		FetchedAt:   time.Now().Truncate(time.Second),
	}

	err = st.Put(p)
	if err != nil {
		t.Fatal("Error storing page: ", err)
	}

	got, ok, err := st.Get(p.URL)
	if err != nil {
		t.Fatal("Error fetching page: ", err)
	}

	if !ok {
		t.Fatal("Expected cached page, got miss")
	}

	if string(got.Body) != string(p.Body) {
		t.Error("Cached body mismatch: ", string(got.Body))
	}

	info, err := st.Info()
	if err != nil {
		t.Fatal("Error fetching cache info: ", err)
	}

	if info.Count != 1 {
		t.Error("Expected 1 cached page, got ", info.Count)
	}
}
