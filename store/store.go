package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/larsks/qthrss/data"
)

// Params are used to configure a store
type Params struct {
	// File is the path of the SQLite cache database.
	File string
	// Influx optionally configures the fetch-stats sink.
	Influx *InfluxConfig
	// ID identifies this instance in exported stats.
	ID string
}

// Store wraps the SQLite page cache and accounts for fetch activity.
// Fetchers report a FetchStat per page request; the store keeps a running
// summary for the /status endpoint and forwards each stat to InfluxDB when
// a sink is configured.
type Store struct {
	params Params
	db     *DbSqlite
	influx *Influx

	mu      sync.Mutex
	summary data.FetchSummary

	chStats     chan data.FetchStat
	chStop      chan struct{}
	chWaitStart chan struct{}
}

// NewStore opens the cache database and, when configured, the influx sink.
func NewStore(p Params) (*Store, error) {
	db, err := NewSqliteDb(p.File)
	if err != nil {
		return nil, fmt.Errorf("Error opening cache db: %v", err)
	}

	st := &Store{
		params:      p,
		db:          db,
		chStats:     make(chan data.FetchStat, 32),
		chStop:      make(chan struct{}),
		chWaitStart: make(chan struct{}),
	}

	if p.Influx != nil {
		st.influx = NewInflux(p.Influx)
	}

	return st, nil
}

// Run processes fetch stats until stopped. The cache database is usable as
// soon as NewStore returns; Run only drives the accounting.
func (st *Store) Run() error {
done:
	for {
		select {
		case s := <-st.chStats:
			st.record(s)
		case <-st.chWaitStart:
			// don't need to do anything as simply reading this
			// channel will unblock the caller
		case <-st.chStop:
			break done
		}
	}

	// drain anything a fetcher managed to queue before we stopped
	for {
		select {
		case s := <-st.chStats:
			st.record(s)
		default:
			if st.influx != nil {
				st.influx.Close()
			}
			return st.db.Close()
		}
	}
}

// Stop the store
func (st *Store) Stop(_ error) {
	close(st.chStop)
}

// Close releases the store without going through the Run loop. Use it when
// the store is only needed for direct cache access, as the CLI does.
func (st *Store) Close() error {
	if st.influx != nil {
		st.influx.Close()
	}
	return st.db.Close()
}

// WaitStart waits for the store accounting loop to start.
func (st *Store) WaitStart(ctx context.Context) error {
	waitDone := make(chan struct{})

	go func() {
		st.chWaitStart <- struct{}{}
		close(waitDone)
	}()

	select {
	case <-ctx.Done():
		return errors.New("Store wait timeout or canceled")
	case <-waitDone:
		return nil
	}
}

// Record reports one fetch observation. It never blocks; when the store is
// busy the stat is folded into the summary synchronously and only the sink
// write is skipped.
func (st *Store) Record(s data.FetchStat) {
	select {
	case st.chStats <- s:
	default:
		slog.Debug("fetch stat dropped", "url", s.URL)
		st.tally(s)
	}
}

func (st *Store) record(s data.FetchStat) {
	st.tally(s)

	if st.influx != nil {
		st.influx.WriteFetchStat(st.params.ID, s)
	}
}

func (st *Store) tally(s data.FetchStat) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s.Hit {
		st.summary.Hits++
	} else {
		st.summary.Misses++
		st.summary.Bytes += int64(s.Bytes)
		st.summary.LastFetch = s.Time
	}
}

// Summary returns the fetch tallies since process start.
func (st *Store) Summary() data.FetchSummary {
	st.mu.Lock()
	defer st.mu.Unlock()

	return st.summary
}

// Get returns the cached page for a URL, if any.
func (st *Store) Get(url string) (data.Page, bool, error) {
	return st.db.Get(url)
}

// Put stores a page.
func (st *Store) Put(p data.Page) error {
	return st.db.Put(p)
}

// Info reports cache statistics.
func (st *Store) Info() (data.CacheInfo, error) {
	return st.db.Info()
}

// Purge removes entries older than maxAge.
func (st *Store) Purge(maxAge time.Duration) (int64, error) {
	return st.db.Purge(maxAge, time.Now())
}

// Reset permanently wipes the cache.
func (st *Store) Reset() error {
	return st.db.Reset()
}
