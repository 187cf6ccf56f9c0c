package version

import "testing"

func TestBanner(t *testing.T) {
	old := [3]string{Version, GitSHA, BuildTime}
	defer func() { Version, GitSHA, BuildTime = old[0], old[1], old[2] }()

	Version, GitSHA, BuildTime = "1.2.0", "abc123", "2026-01-01T00:00:00Z"
	want := "headtrack 1.2.0 (commit abc123, built 2026-01-01T00:00:00Z)"
	if got := Banner("headtrack"); got != want {
		t.Errorf("Banner() = %q, want %q", got, want)
	}
}
