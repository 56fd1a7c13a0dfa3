package api

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/larsks/qthrss/data"
)

// Scraper provides categories and listings. *qth.Client satisfies this.
type Scraper interface {
	Categories(ctx context.Context) ([]data.Category, error)
	Category(title string) (data.Category, bool)
	Listings(ctx context.Context, cat data.Category) ([]data.Listing, error)
}

// CacheStore reports on the page cache. *store.Store satisfies this.
type CacheStore interface {
	Info() (data.CacheInfo, error)
	Summary() data.FetchSummary
}

// ServerArgs can be used to pass arguments to the api server
type ServerArgs struct {
	Addr    string
	Scraper Scraper
	Cache   CacheStore
	// Templates is called on every page render, which lets a dev
	// loader pick up template edits without a restart.
	Templates func() (*template.Template, error)
	Debug     bool
	Version   string
	ID        string
}

// Server is the qthrss http server
type Server struct {
	args   ServerArgs
	server *http.Server
}

// NewServer creates a new api server. Requests are logged to stdout;
// the Debug arg adds request and response bodies to the log.
func NewServer(args ServerArgs) *Server {
	logger := NewHTTPLogger("HTTP: ", args.Debug)

	return &Server{
		args: args,
		server: &http.Server{
			Addr:    args.Addr,
			Handler: logger.Handler(NewAppHandler(args)),
		},
	}
}

// Start the api server. Blocks until the server is stopped.
func (s *Server) Start() error {
	slog.Info("starting http server", "addr", s.args.Addr)

	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// Stop the api server, giving in-flight requests a moment to drain.
func (s *Server) Stop(_ error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown", "error", err)
	}
}

// App is the top level handler for http requests
type App struct {
	scraper   Scraper
	cache     CacheStore
	templates func() (*template.Template, error)
	version   string
	id        string
	started   time.Time
}

// NewAppHandler returns a new application (root) http handler
func NewAppHandler(args ServerArgs) http.Handler {
	return &App{
		scraper:   args.Scraper,
		cache:     args.Cache,
		templates: args.Templates,
		version:   args.Version,
		id:        args.ID,
		started:   time.Now(),
	}
}

func (h *App) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		http.Error(res, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if req.URL.Path == "/" {
		h.index(res, req)
		return
	}

	var head string
	head, req.URL.Path = ShiftPath(req.URL.Path)

	switch head {
	case "feed":
		// the rest of the path is the category name, which may
		// itself contain slashes
		h.feed(res, req)
	case "feeds.txt":
		h.exact(res, req, h.feedsTxt)
	case "cache":
		h.exact(res, req, h.cacheInfo)
	case "status":
		h.exact(res, req, h.status)
	default:
		http.Error(res, "Not Found", http.StatusNotFound)
	}
}

// exact dispatches to handler only when no path components remain.
func (h *App) exact(res http.ResponseWriter, req *http.Request,
	handler func(http.ResponseWriter, *http.Request)) {
	if req.URL.Path != "/" {
		http.Error(res, "Not Found", http.StatusNotFound)
		return
	}

	handler(res, req)
}
