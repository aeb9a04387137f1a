package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with sane defaults for the audit API. Read and
// write timeouts stay generous because trail queries can page through large
// event ranges.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
