// Package httpserver builds the http.Server shared by vigil's binaries.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server for addr with conservative header timeouts.
// Read and write timeouts stay unset because the presence socket holds
// connections open indefinitely.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
