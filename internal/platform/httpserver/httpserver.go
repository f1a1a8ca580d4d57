package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. Request bodies here are small JSON documents,
// so the write and idle timeouts can stay tight without risking uploads.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
