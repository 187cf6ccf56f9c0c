// Package testutil provides shared test helpers for the head tracking
// packages.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/banshee-data/headtrack/internal/monitoring"
)

// LoopbackAddr is the client address given to requests built by
// NewLocalRequest. Debug routes only answer loopback clients.
const LoopbackAddr = "127.0.0.1:12345"

// QuietLogs mutes the diagnostic logger and clears the last reported error
// for the duration of the test.
func QuietLogs(t testing.TB) {
	t.Helper()
	prev := monitoring.Logf
	monitoring.SetLogger(nil)
	monitoring.ClearLastError()
	t.Cleanup(func() {
		monitoring.SetLogger(prev)
		monitoring.ClearLastError()
	})
}

// NewLocalRequest builds a server-side request that appears to come from the
// local machine. An empty body sends no body.
func NewLocalRequest(method, target, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.RemoteAddr = LoopbackAddr
	return req
}

// Serve runs req through h and returns the recorded response.
func Serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
