package api

// this code based on https://github.com/unrolled/logger, but expanded
// to optionally dump the req/resp body

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"os"
)

// HTTPLogger logs http requests to stdout, one line per request.
type HTTPLogger struct {
	prefix string
	debug  bool
	*log.Logger
}

// NewHTTPLogger returns a http logger. With debug set, the request and
// response bodies are included in the log.
func NewHTTPLogger(prefix string, debug bool) *HTTPLogger {
	return &HTTPLogger{
		prefix: prefix,
		debug:  debug,
		Logger: log.New(os.Stdout, prefix, 0),
	}
}

// Handler wraps an HTTP handler and logs the request as necessary.
func (l *HTTPLogger) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		crw := newCustomResponseWriter(w, l.debug)

		if !l.debug {
			next.ServeHTTP(crw, r)
			l.Printf("(%s) \"%s %s\" %d %d", r.RemoteAddr, r.Method,
				r.RequestURI, crw.status, crw.size)
			return
		}

		var rdr io.Reader
		buf, err := io.ReadAll(r.Body)
		if err == nil {
			rdr = bytes.NewBuffer(buf)
			r.Body = io.NopCloser(bytes.NewBuffer(buf))
		}

		next.ServeHTTP(crw, r)

		if err == nil {
			rBuf := bytes.Buffer{}
			_, _ = rBuf.ReadFrom(rdr)
			l.Printf("(%s) \"%s %s\" %d -> %v -> %v", r.RemoteAddr, r.Method,
				r.RequestURI, crw.status, rBuf.String(), crw.buf.String())
		} else {
			l.Printf("(%s) \"%s %s\" %d", r.RemoteAddr, r.Method,
				r.RequestURI, crw.status)
		}
	})
}

type customResponseWriter struct {
	http.ResponseWriter
	status  int
	size    int
	keepBuf bool
	buf     bytes.Buffer
}

func (c *customResponseWriter) WriteHeader(status int) {
	c.status = status
	c.ResponseWriter.WriteHeader(status)
}

func (c *customResponseWriter) Write(b []byte) (int, error) {
	size, err := c.ResponseWriter.Write(b)
	if c.keepBuf {
		c.buf.Write(b)
	}
	c.size += size
	return size, err
}

func (c *customResponseWriter) Flush() {
	if f, ok := c.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func newCustomResponseWriter(w http.ResponseWriter, keepBuf bool) *customResponseWriter {
	// When WriteHeader is not called, it's safe to assume the status will be 200.
	return &customResponseWriter{
		ResponseWriter: w,
		status:         200,
		keepBuf:        keepBuf,
	}
}
