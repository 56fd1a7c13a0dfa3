package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/run"

	"github.com/larsks/qthrss/api"
	"github.com/larsks/qthrss/fetch"
	"github.com/larsks/qthrss/qth"
	"github.com/larsks/qthrss/store"
)

// ErrServerStopped is returned when the server is stopped
var ErrServerStopped = errors.New("Server stopped")

// Options used for starting qthrss
type Options struct {
	StoreFile          string
	ResetStore         bool
	Addr               string
	DebugHTTP          bool
	DebugLifecycle     bool
	SiteURL            string
	CacheLifetime      time.Duration
	EntriesPerCategory int
	Prefetch           bool
	PrefetchPeriod     time.Duration
	Influx             *store.InfluxConfig
	Dev                bool
	AppVersion         string
	// optional ID (must be unique) for this instance, otherwise, a UUID will be used
	ID string
}

// Server represents a qthrss server process
type Server struct {
	options     Options
	chStop      chan struct{}
	chWaitStart chan struct{}
}

// NewServer creates a new server
func NewServer(o Options) *Server {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}

	if o.PrefetchPeriod <= 0 {
		if o.CacheLifetime > 0 {
			o.PrefetchPeriod = o.CacheLifetime / 2
		} else {
			o.PrefetchPeriod = 5 * time.Minute
		}
	}

	return &Server{
		options:     o,
		chStop:      make(chan struct{}),
		chWaitStart: make(chan struct{}),
	}
}

// Run the server -- only returns if there is an error
func (s *Server) Run() error {
	var g run.Group

	logLS := func(m ...any) {}

	if s.options.DebugLifecycle {
		logLS = func(m ...any) {
			log.Println(m...)
		}
	}

	o := s.options

	// anything that reads or writes the page cache should add to this
	// wait group. The store will wait on this before shutting down.
	var storeWg sync.WaitGroup

	// ====================================
	// Page cache store
	// ====================================

	st, err := store.NewStore(store.Params{
		File:   o.StoreFile,
		Influx: o.Influx,
		ID:     o.ID,
	})

	if err != nil {
		return fmt.Errorf("Error creating store: %v", err)
	}

	if o.ResetStore {
		if err := st.Reset(); err != nil {
			_ = st.Close()
			return fmt.Errorf("Error resetting store: %v", err)
		}
	}

	storeWaitCtx, storeWaitCancel := context.WithTimeout(context.Background(),
		time.Second*10)
	defer storeWaitCancel()

	g.Add(func() error {
		err := st.Run()
		logLS("LS: Exited: store")
		return err
	}, func(err error) {
		// run in a goroutine else this Stop blocking would block
		// everything else
		go func() {
			storeWg.Wait()
			storeWaitCancel()
			st.Stop(err)
			logLS("LS: Shutdown: store")
		}()
	})

	// ====================================
	// Scraper
	// ====================================

	fetcher := fetch.NewFetcher(fetch.Params{
		Cache:     st,
		Recorder:  st,
		Lifetime:  o.CacheLifetime,
		UserAgent: "qthrss/" + o.AppVersion,
	})

	scraper, err := qth.NewClient(qth.Params{
		Fetcher:            fetcher,
		BaseURL:            o.SiteURL,
		EntriesPerCategory: o.EntriesPerCategory,
	})

	if err != nil {
		_ = st.Close()
		return fmt.Errorf("Error creating scraper: %v", err)
	}

	// ====================================
	// Prefetch
	// ====================================

	if o.Prefetch {
		pf := newPrefetchClient(scraper, o.PrefetchPeriod)

		storeWg.Add(1)
		g.Add(func() error {
			defer storeWg.Done()
			if err := st.WaitStart(storeWaitCtx); err != nil {
				logLS("LS: Exited: prefetch timeout waiting for store")
				return err
			}

			err := pf.Run()
			logLS("LS: Exited: prefetch")
			return err
		}, func(err error) {
			pf.Stop(err)
			logLS("LS: Shutdown: prefetch")
		})
	}

	// ====================================
	// Templates
	// ====================================

	templates, err := templateLoader(o.Dev, devTemplateGlob)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("Error loading templates: %v", err)
	}

	// ====================================
	// HTTP API
	// ====================================

	httpAPI := api.NewServer(api.ServerArgs{
		Addr:      o.Addr,
		Scraper:   scraper,
		Cache:     st,
		Templates: templates,
		Debug:     o.DebugHTTP,
		Version:   o.AppVersion,
		ID:        o.ID,
	})

	storeWg.Add(1)
	g.Add(func() error {
		defer storeWg.Done()
		err := httpAPI.Start()
		logLS("LS: Exited: http api")
		return err
	}, func(err error) {
		httpAPI.Stop(err)
		logLS("LS: Shutdown: http api")
	})

	// Give us a way to stop the server
	// and signal to waiters we have started
	chShutdown := make(chan struct{})
	g.Add(func() error {
		err := st.WaitStart(storeWaitCtx)
		if err != nil {
			logLS("LS: Exited: server stopper, timeout waiting for store")
			return err
		}

		select {
		case <-s.chStop:
			logLS("LS: Exited: stop handler")
			return ErrServerStopped
		case <-chShutdown:
			logLS("LS: Exited: stop handler")
			return nil
		}
	}, func(_ error) {
		close(chShutdown)
		logLS("LS: Shutdown: stop handler")
	})

	chRunError := make(chan error)

	go func() {
		chRunError <- g.Run()
	}()

	var retErr error

done:
	for {
		select {
		// unblock any waits
		case <-s.chWaitStart:
			// No-op, reading channel is enough to unblock wait
		case retErr = <-chRunError:
			break done
		}
	}

	return retErr
}

// Stop server
func (s *Server) Stop(_ error) {
	close(s.chStop)
}

// WaitStart waits for server to start. Clients should wait for this
// to complete before trying to fetch feeds.
func (s *Server) WaitStart(ctx context.Context) error {
	waitDone := make(chan struct{})

	go func() {
		// the following will block until the main server select
		// loop starts
		s.chWaitStart <- struct{}{}
		close(waitDone)
	}()

	select {
	case <-ctx.Done():
		return errors.New("Server wait timeout or canceled")
	case <-waitDone:
		// all is well
		return nil
	}
}
