// Package httpserver builds the dashboard's *http.Server.
package httpserver

import (
	"net/http"
	"time"
)

const (
	// ReadHeaderTimeout bounds how long a client may take to send headers.
	ReadHeaderTimeout = 5 * time.Second
	// WriteTimeout covers rendering the page, the largest response.
	WriteTimeout = 30 * time.Second
	// IdleTimeout keeps browser connections open between control changes.
	IdleTimeout = 2 * time.Minute
)

// New returns a server for handler on addr.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: ReadHeaderTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}
}
