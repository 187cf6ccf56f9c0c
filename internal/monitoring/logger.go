// Package monitoring holds the diagnostic logger shared by the head tracking
// packages and the operator-visible "last error" slot.
package monitoring

import (
	"fmt"
	"log"
	"sync"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

var (
	lastErrMu sync.Mutex
	lastErr   string
)

// Reportf logs a problem the operator needs to see and keeps it as the last
// error so the monitor can surface it.
func Reportf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	lastErrMu.Lock()
	lastErr = msg
	lastErrMu.Unlock()
	Logf("%s", msg)
}

// LastError returns the most recent message passed to Reportf, or "".
func LastError() string {
	lastErrMu.Lock()
	defer lastErrMu.Unlock()
	return lastErr
}

// ClearLastError forgets the last reported error.
func ClearLastError() {
	lastErrMu.Lock()
	lastErr = ""
	lastErrMu.Unlock()
}

// ClearLastErrorIf forgets the last error only if it is still msg, so a
// recovered condition does not hide a newer report.
func ClearLastErrorIf(msg string) bool {
	lastErrMu.Lock()
	defer lastErrMu.Unlock()
	if msg == "" || lastErr != msg {
		return false
	}
	lastErr = ""
	return true
}
