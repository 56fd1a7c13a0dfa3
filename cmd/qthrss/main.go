package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/oklog/run"

	"github.com/larsks/qthrss/feed"
	"github.com/larsks/qthrss/fetch"
	"github.com/larsks/qthrss/qth"
	"github.com/larsks/qthrss/server"
	"github.com/larsks/qthrss/store"
)

// goreleaser will replace version with Git version. You can also pass version
// into the go build:
//   go build -ldflags="-X main.version=1.2.3"
var version = "Development"

func main() {
	// global options
	flags := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	flagVersion := flags.Bool("version", false, "Print app version")
	flags.Usage = func() {
		fmt.Println("usage: qthrss [OPTION]... COMMAND [OPTION]...")
		fmt.Println("Global options:")
		flags.PrintDefaults()
		fmt.Println()
		fmt.Println("Available commands:")
		fmt.Println("  - serve (start the feed server)")
		fmt.Println("  - fetch (scrape once and print to stdout)")
		fmt.Println("  - cache (page cache maintenance)")
	}

	flags.Parse(os.Args[1:])

	if *flagVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// the access log owns stdout, so everything else goes to stderr
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		TimeFormat: time.Kitchen,
	})))

	log.Printf("qthrss %v\n", version)

	// extract sub command and its arguments
	args := flags.Args()

	if len(args) < 1 {
		// run serve command by default
		args = []string{"serve"}
	}

	switch args[0] {
	case "serve":
		if err := runServer(args[1:], version); err != nil {
			log.Println("qthrss stopped, reason: ", err)
		}
	case "fetch":
		runFetch(args[1:])
	case "cache":
		runCache(args[1:])
	default:
		log.Fatal("Unknown command; options: serve, fetch, cache")
	}
}

func runServer(args []string, version string) error {
	options, err := server.Args(args, nil)
	if err != nil {
		return err
	}

	options.AppVersion = version

	var g run.Group

	srv := server.NewServer(options)

	g.Add(srv.Run, srv.Stop)

	g.Add(run.SignalHandler(context.Background(),
		syscall.SIGINT, syscall.SIGTERM))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*9)

	// add check to make sure server started
	chStartCheck := make(chan struct{})
	g.Add(func() error {
		err := srv.WaitStart(ctx)
		if err != nil {
			return errors.New("Timeout waiting for server to start")
		}
		log.Println("qthrss started")
		<-chStartCheck
		return nil
	}, func(_ error) {
		cancel()
		close(chStartCheck)
	})

	return g.Run()
}

func runFetch(args []string) {
	flags := flag.NewFlagSet("fetch", flag.ExitOnError)
	flagStore := flags.String("store", ".cache", "page cache file")
	flagSiteURL := flags.String("siteUrl", qth.BaseURL, "classifieds site to scrape")
	flagEntries := flags.Int("entries", qth.DefaultEntriesPerCategory,
		"minimum number of entries per feed")
	flagCacheLifetime := flags.Int("cacheLifetime", 3600,
		"page cache lifetime in seconds")
	flagCategory := flags.String("category", "",
		"print an Atom feed for this category instead of the category list")

	if err := flags.Parse(args); err != nil {
		log.Fatal("error: ", err)
	}

	st, err := store.NewStore(store.Params{File: *flagStore})
	if err != nil {
		log.Fatal("Error opening store: ", err)
	}
	defer func() { _ = st.Close() }()

	fetcher := fetch.NewFetcher(fetch.Params{
		Cache:     st,
		Recorder:  st,
		Lifetime:  time.Duration(*flagCacheLifetime) * time.Second,
		UserAgent: "qthrss/" + version,
	})

	scraper, err := qth.NewClient(qth.Params{
		Fetcher:            fetcher,
		BaseURL:            *flagSiteURL,
		EntriesPerCategory: *flagEntries,
	})
	if err != nil {
		log.Fatal("Error creating scraper: ", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute*5)
	defer cancel()

	cats, err := scraper.Categories(ctx)
	if err != nil {
		log.Fatal("Error fetching categories: ", err)
	}

	if *flagCategory == "" {
		for _, cat := range cats {
			fmt.Printf("%v\t%v\n", cat.Title, cat.URL)
		}
		return
	}

	cat, ok := scraper.Category(*flagCategory)
	if !ok {
		log.Fatal("Unknown category: ", *flagCategory)
	}

	listings, err := scraper.Listings(ctx, cat)
	if err != nil {
		log.Fatal("Error fetching listings: ", err)
	}

	f := feed.Build(cat, listings, time.Now())
	if err := feed.Write(f, os.Stdout); err != nil {
		log.Fatal("Error writing feed: ", err)
	}
}

func runCache(args []string) {
	flags := flag.NewFlagSet("cache", flag.ExitOnError)
	flagStore := flags.String("store", ".cache", "page cache file")
	flagPurge := flags.Duration("purge", 0,
		"drop pages older than this (e.g. 24h)")
	flagReset := flags.Bool("reset", false, "permanently wipe all cached pages")

	if err := flags.Parse(args); err != nil {
		log.Fatal("error: ", err)
	}

	st, err := store.NewStore(store.Params{File: *flagStore})
	if err != nil {
		log.Fatal("Error opening store: ", err)
	}
	defer func() { _ = st.Close() }()

	switch {
	case *flagReset:
		if err := st.Reset(); err != nil {
			log.Fatal("Error resetting cache: ", err)
		}
		log.Println("Cache reset")

	case *flagPurge > 0:
		n, err := st.Purge(*flagPurge)
		if err != nil {
			log.Fatal("Error purging cache: ", err)
		}
		log.Println("Purged pages: ", n)

	default:
		info, err := st.Info()
		if err != nil {
			log.Fatal("Error reading cache: ", err)
		}
		fmt.Printf("pages: %v\n", info.Count)
		for _, u := range info.URLs {
			fmt.Println(u)
		}
	}
}
