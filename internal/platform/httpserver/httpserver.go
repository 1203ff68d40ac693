// Package httpserver builds the process HTTP server with the timeouts the
// trail service needs.
package httpserver

import (
	"net/http"
	"time"
)

// New builds the server. The write timeout stays generous because trail
// exports stream an envelope's entire chain in one response; per-request
// deadlines are enforced by the handlers' timeout middleware instead.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}
