package monitoring

import (
	"fmt"
	"testing"
)

func capture(t *testing.T) *[]string {
	t.Helper()
	prev := Logf
	t.Cleanup(func() { Logf = prev })
	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := capture(t)
	Logf("listening on %s", "0.0.0.0:4242")
	if len(*lines) != 1 || (*lines)[0] != "listening on 0.0.0.0:4242" {
		t.Errorf("lines = %q", *lines)
	}

	SetLogger(nil)
	Logf("dropped")
	if len(*lines) != 1 {
		t.Errorf("muted logger still wrote: %q", *lines)
	}
}

func TestReportf(t *testing.T) {
	lines := capture(t)
	ClearLastError()
	defer ClearLastError()

	if got := LastError(); got != "" {
		t.Fatalf("LastError() = %q before any report", got)
	}
	Reportf("missing dataref %s", "sim/graphics/view/view_type")
	Reportf("configuration parsing error: %v", "bad json")

	if got, want := LastError(), "configuration parsing error: bad json"; got != want {
		t.Errorf("LastError() = %q, want %q", got, want)
	}
	if len(*lines) != 2 {
		t.Errorf("reports were not logged: %q", *lines)
	}

	ClearLastError()
	if got := LastError(); got != "" {
		t.Errorf("LastError() = %q after clear", got)
	}
}

func TestClearLastErrorIf(t *testing.T) {
	capture(t)
	ClearLastError()
	defer ClearLastError()

	Reportf("required datarefs unavailable")
	Reportf("unable to start server: address already in use")

	if ClearLastErrorIf("required datarefs unavailable") {
		t.Error("cleared a message that was no longer the last error")
	}
	if got, want := LastError(), "unable to start server: address already in use"; got != want {
		t.Errorf("LastError() = %q, want %q", got, want)
	}
	if ClearLastErrorIf("") {
		t.Error("empty message should never match")
	}
	if !ClearLastErrorIf("unable to start server: address already in use") {
		t.Error("matching message was not cleared")
	}
	if got := LastError(); got != "" {
		t.Errorf("LastError() = %q after clear", got)
	}
}
