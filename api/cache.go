package api

import (
	"log/slog"
	"net/http"
)

// cacheInfo reports the number of cached pages and their URLs.
func (h *App) cacheInfo(res http.ResponseWriter, req *http.Request) {
	info, err := h.cache.Info()
	if err != nil {
		slog.Error("reading cache info", "error", err)
		http.Error(res, "Error reading cache", http.StatusInternalServerError)
		return
	}

	res.Header().Set("Content-Type", "application/json")

	if err := encode(res, info); err != nil {
		slog.Error("encoding cache info", "error", err)
	}
}
