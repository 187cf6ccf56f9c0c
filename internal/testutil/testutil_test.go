package testutil

import (
	"net/http"
	"testing"

	"github.com/banshee-data/headtrack/internal/monitoring"
)

func TestQuietLogs(t *testing.T) {
	var calls int
	monitoring.SetLogger(func(string, ...interface{}) { calls++ })
	defer monitoring.SetLogger(nil)

	t.Run("muted", func(t *testing.T) {
		QuietLogs(t)
		monitoring.Reportf("boom")
		if calls != 0 {
			t.Errorf("logger called %d times while muted", calls)
		}
		if monitoring.LastError() != "boom" {
			t.Errorf("LastError() = %q", monitoring.LastError())
		}
	})

	monitoring.Logf("restored")
	if calls != 1 {
		t.Errorf("logger not restored after test, calls = %d", calls)
	}
	if monitoring.LastError() != "" {
		t.Errorf("last error not cleared: %q", monitoring.LastError())
	}
}

func TestNewLocalRequest(t *testing.T) {
	req := NewLocalRequest(http.MethodPut, "/api/settings", `{"a":1}`)
	if req.RemoteAddr != LoopbackAddr {
		t.Errorf("RemoteAddr = %q", req.RemoteAddr)
	}
	if req.ContentLength != 7 {
		t.Errorf("ContentLength = %d, want 7", req.ContentLength)
	}

	rec := Serve(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), NewLocalRequest(http.MethodGet, "/", ""))
	if rec.Code != http.StatusTeapot {
		t.Errorf("Code = %d", rec.Code)
	}
}
