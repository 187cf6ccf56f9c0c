package db

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/headtrack/internal/pose"
	"github.com/banshee-data/headtrack/internal/recorder"
	"github.com/banshee-data/headtrack/internal/testutil"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	testutil.QuietLogs(t)
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB_AppliesPragmas(t *testing.T) {
	db := newTestDB(t)

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var timeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", timeout)
	}

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestMigrations(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Running again is a no-op.
	require.NoError(t, db.MigrateUp(MigrationsFS()))

	require.NoError(t, db.MigrateDown(MigrationsFS()))
	version, _, err = db.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = 'calibration_events'`).Scan(&n)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMigrateUp_DirtySchema(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Exec(`UPDATE schema_migrations SET dirty = 1`)
	require.NoError(t, err)

	err = db.MigrateUp(MigrationsFS())
	assert.True(t, errors.Is(err, ErrDirtySchema), "got %v", err)
}

func TestSessions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s, err := db.StartSession(ctx, "Cessna_172SP")
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)

	sessions, err := db.Sessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Cessna_172SP", sessions[0].Aircraft)
	assert.Nil(t, sessions[0].EndedAt)

	require.NoError(t, db.EndSession(ctx, s.ID))
	sessions, err = db.Sessions(ctx, 10)
	require.NoError(t, err)
	assert.NotNil(t, sessions[0].EndedAt)

	err = db.EndSession(ctx, "no-such-session")
	assert.True(t, errors.Is(err, ErrUnknownSession), "got %v", err)
}

func TestRecordSamples(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s, err := db.StartSession(ctx, "")
	require.NoError(t, err)

	base := time.Unix(1700000000, 0).UTC()
	var samples []recorder.Sample
	for i := 0; i < 5; i++ {
		samples = append(samples, recorder.Sample{
			Time:    base.Add(time.Duration(i) * time.Second),
			Input:   pose.Pose{float64(i), 0, 0, 10, 0, 0},
			Output:  pose.Pose{0, 0, 0, float64(i * 2), 0, 0},
			Applied: i%2 == 0,
		})
	}
	w := SessionWriter{DB: db, SessionID: s.ID}
	require.NoError(t, w.WriteSamples(ctx, samples))
	require.NoError(t, w.WriteSamples(ctx, nil))

	got, err := db.RecentSamples(ctx, s.ID, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Latest three, oldest first.
	for i, g := range got {
		want := samples[i+2]
		assert.True(t, g.Time.Equal(want.Time), "sample %d time %v, want %v", i, g.Time, want.Time)
		assert.Equal(t, want.Input, g.Input)
		assert.Equal(t, want.Output, g.Output)
		assert.Equal(t, want.Applied, g.Applied)
	}
}

func TestRecordSamples_UnknownSession(t *testing.T) {
	db := newTestDB(t)
	err := db.RecordSamples(context.Background(), "missing", []recorder.Sample{{Time: time.Now()}})
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
}

func TestRecordCalibration(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s, err := db.StartSession(ctx, "")
	require.NoError(t, err)

	w := SessionWriter{DB: db, SessionID: s.ID}
	require.NoError(t, w.RecordCalibration(ctx, "center_head", []float64{1, 2, 3, 4, 5, 6}))
	require.NoError(t, w.RecordCalibration(ctx, "viewport", []float64{0.1, 0.6, -0.2}))

	events, err := db.CalibrationEvents(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "center_head", events[0].Kind)
	assert.Equal(t, pose.Pose{1, 2, 3, 4, 5, 6}, events[0].Values)
	assert.Equal(t, pose.Pose{0.1, 0.6, -0.2, 0, 0, 0}, events[1].Values)
	assert.NotEqual(t, events[0].ID, events[1].ID)
}

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	// tsweb only serves debug pages to local callers.
	rec := testutil.Serve(mux, testutil.NewLocalRequest(http.MethodGet, "/debug/backup", ""))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	require.Greater(t, len(body), 16)
	assert.Equal(t, "SQLite format 3\x00", string(body[:16]))
}
