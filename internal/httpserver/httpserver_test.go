package httpserver

import (
	"net/http"
	"testing"
)

func TestNewAppliesTimeouts(t *testing.T) {
	srv := New(":0", http.NotFoundHandler())
	if srv.Addr != ":0" || srv.Handler == nil {
		t.Fatalf("unexpected server: %+v", srv)
	}
	if srv.ReadHeaderTimeout != ReadHeaderTimeout || srv.WriteTimeout != WriteTimeout || srv.IdleTimeout != IdleTimeout {
		t.Fatalf("timeouts not applied: %v %v %v", srv.ReadHeaderTimeout, srv.WriteTimeout, srv.IdleTimeout)
	}
}
