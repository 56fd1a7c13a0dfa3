package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var testServerOptions = Options{
	StoreFile:          "test-cache.db",
	Addr:               "127.0.0.1:8993",
	CacheLifetime:      time.Hour,
	EntriesPerCategory: 5,
}

// TestServer starts a test server scraping site and returns the server
// base URL and a function to stop it
func TestServer(site string) (string, func(), error) {
	_ = os.Remove(testServerOptions.StoreFile)

	o := testServerOptions
	o.SiteURL = site

	s := NewServer(o)

	stopped := make(chan struct{})

	go func() {
		err := s.Run()
		if err != nil && err != ErrServerStopped {
			log.Println("Test server run returned: ", err)
		}
		close(stopped)
	}()

	stop := func() {
		s.Stop(nil)
		<-stopped
		_ = os.Remove(testServerOptions.StoreFile)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	err := s.WaitStart(ctx)
	cancel()
	if err != nil {
		return "", stop, fmt.Errorf("Error waiting for test server to start: %v", err)
	}

	base := "http://" + o.Addr

	// WaitStart only means the members have launched. The listener may
	// still be coming up, so poll the status endpoint until it answers.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = 5 * time.Second

	err = backoff.Retry(func() error {
		resp, err := http.Get(base + "/status")
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		return nil
	}, bo)

	if err != nil {
		return "", stop, fmt.Errorf("Error waiting for test server http: %v", err)
	}

	return base, stop, nil
}
