package main

import (
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/reelx/internal/devserver"
)

func newTestServer(t *testing.T, srv *devserver.Server) string {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}
