package server

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/larsks/qthrss/qth"
	"github.com/larsks/qthrss/store"
)

const (
	defaultAddr           = ":8000"
	defaultStore          = ".cache"
	defaultCacheLifetime  = 3600
	defaultEntries        = qth.DefaultEntriesPerCategory
	defaultPrefetchPeriod = 300
)

// Config holds the settings that can be given in a YAML config file.
// QTHRSS_* environment variables override the file, and command line
// flags override both.
type Config struct {
	Addr               string             `yaml:"addr"`
	Store              string             `yaml:"store"`
	CacheLifetime      int                `yaml:"cacheLifetime"`
	EntriesPerCategory int                `yaml:"entriesPerCategory"`
	SiteURL            string             `yaml:"siteUrl"`
	Prefetch           bool               `yaml:"prefetch"`
	PrefetchPeriod     int                `yaml:"prefetchPeriod"`
	Influx             store.InfluxConfig `yaml:"influx"`
}

// Args parses the qthrss server command line options
func Args(args []string, flags *flag.FlagSet) (Options, error) {
	// =============================================
	// Command line options
	// =============================================
	if flags == nil {
		flags = flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	}

	flagConfig := flags.String("config", "", "YAML config file")
	flagAddr := flags.String("addr", defaultAddr, "HTTP listen address")
	flagStore := flags.String("store", defaultStore, "page cache file, default .cache")
	flagCacheLifetime := flags.Int("cacheLifetime", defaultCacheLifetime,
		"page cache lifetime in seconds")
	flagEntries := flags.Int("entries", defaultEntries,
		"minimum number of entries per feed")
	flagSiteURL := flags.String("siteUrl", qth.BaseURL, "classifieds site to scrape")
	flagPrefetch := flags.Bool("prefetch", false, "periodically warm the page cache")
	flagPrefetchPeriod := flags.Int("prefetchPeriod", defaultPrefetchPeriod,
		"seconds between prefetch runs")
	flagResetStore := flags.Bool("resetStore", false,
		"permanently wipe cached pages at start-up")
	flagDebugHTTP := flags.Bool("debugHttp", false, "dump http requests")
	flagDebugLifecycle := flags.Bool("debugLifecycle", false, "debug program lifecycle")
	flagDev := flags.Bool("dev", false, "run server in development mode")
	flagID := flags.String("id", "", "instance id, defaults to a random UUID")

	if err := flags.Parse(args); err != nil {
		return Options{}, err
	}

	config := Config{
		Addr:               defaultAddr,
		Store:              defaultStore,
		CacheLifetime:      defaultCacheLifetime,
		EntriesPerCategory: defaultEntries,
		SiteURL:            qth.BaseURL,
		PrefetchPeriod:     defaultPrefetchPeriod,
	}

	// =============================================
	// Config file
	// =============================================

	if *flagConfig != "" {
		buf, err := os.ReadFile(*flagConfig)
		if err != nil {
			return Options{}, fmt.Errorf("Error reading config file: %v", err)
		}

		if err := yaml.Unmarshal(buf, &config); err != nil {
			return Options{}, fmt.Errorf("Error parsing config file: %v", err)
		}
	}

	// =============================================
	// Environment
	// =============================================

	if v := os.Getenv("QTHRSS_ADDR"); v != "" {
		config.Addr = v
	}

	if v := os.Getenv("QTHRSS_CACHE_PATH"); v != "" {
		config.Store = v
	}

	if v := os.Getenv("QTHRSS_CACHE_LIFETIME"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Options{}, fmt.Errorf("Error parsing QTHRSS_CACHE_LIFETIME: %v", err)
		}
		config.CacheLifetime = n
	}

	if v := os.Getenv("QTHRSS_ENTRIES_PER_CATEGORY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Options{}, fmt.Errorf("Error parsing QTHRSS_ENTRIES_PER_CATEGORY: %v", err)
		}
		config.EntriesPerCategory = n
	}

	if v := os.Getenv("QTHRSS_SITE_URL"); v != "" {
		config.SiteURL = v
	}

	if v := os.Getenv("QTHRSS_PREFETCH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Options{}, fmt.Errorf("Error parsing QTHRSS_PREFETCH: %v", err)
		}
		config.Prefetch = b
	}

	if v := os.Getenv("QTHRSS_PREFETCH_PERIOD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Options{}, fmt.Errorf("Error parsing QTHRSS_PREFETCH_PERIOD: %v", err)
		}
		config.PrefetchPeriod = n
	}

	if v := os.Getenv("QTHRSS_INFLUX_URL"); v != "" {
		config.Influx.URL = v
	}

	if v := os.Getenv("QTHRSS_INFLUX_TOKEN"); v != "" {
		config.Influx.Token = v
	}

	if v := os.Getenv("QTHRSS_INFLUX_ORG"); v != "" {
		config.Influx.Org = v
	}

	if v := os.Getenv("QTHRSS_INFLUX_BUCKET"); v != "" {
		config.Influx.Bucket = v
	}

	// =============================================
	// Flags override everything, but only when
	// given explicitly
	// =============================================

	set := map[string]bool{}
	flags.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	if set["addr"] {
		config.Addr = *flagAddr
	}

	if set["store"] {
		config.Store = *flagStore
	}

	if set["cacheLifetime"] {
		config.CacheLifetime = *flagCacheLifetime
	}

	if set["entries"] {
		config.EntriesPerCategory = *flagEntries
	}

	if set["siteUrl"] {
		config.SiteURL = *flagSiteURL
	}

	if set["prefetch"] {
		config.Prefetch = *flagPrefetch
	}

	if set["prefetchPeriod"] {
		config.PrefetchPeriod = *flagPrefetchPeriod
	}

	o := Options{
		StoreFile:          config.Store,
		ResetStore:         *flagResetStore,
		Addr:               config.Addr,
		DebugHTTP:          *flagDebugHTTP,
		DebugLifecycle:     *flagDebugLifecycle,
		SiteURL:            config.SiteURL,
		CacheLifetime:      time.Duration(config.CacheLifetime) * time.Second,
		EntriesPerCategory: config.EntriesPerCategory,
		Prefetch:           config.Prefetch,
		PrefetchPeriod:     time.Duration(config.PrefetchPeriod) * time.Second,
		Dev:                *flagDev,
		ID:                 *flagID,
	}

	if config.Influx.URL != "" {
		influx := config.Influx
		o.Influx = &influx
	}

	return o, nil
}
