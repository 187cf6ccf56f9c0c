package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/headtrack/internal/pose"
	"github.com/banshee-data/headtrack/internal/recorder"
)

// ErrUnknownSession is returned for session IDs that were never started.
var ErrUnknownSession = errors.New("unknown session")

// Session is one run of the tracker.
type Session struct {
	ID        string     `json:"session_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Aircraft  string     `json:"aircraft"`
}

// CalibrationEvent is a recorded centering or reference capture.
type CalibrationEvent struct {
	ID        string    `json:"event_id"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Values    pose.Pose `json:"values"`
	Time      time.Time `json:"time"`
}

// StartSession creates a new session and returns it.
func (db *DB) StartSession(ctx context.Context, aircraft string) (Session, error) {
	s := Session{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Aircraft:  aircraft,
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, started_at, aircraft) VALUES (?, ?, ?)`,
		s.ID, s.StartedAt.UnixNano(), s.Aircraft)
	if err != nil {
		return Session{}, fmt.Errorf("failed to start session: %w", err)
	}
	return s, nil
}

// EndSession stamps the end time of a session.
func (db *DB) EndSession(ctx context.Context, sessionID string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE session_id = ?`,
		time.Now().UTC().UnixNano(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	return nil
}

// Sessions lists the most recent sessions, newest first.
func (db *DB) Sessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx,
		`SELECT session_id, started_at, ended_at, aircraft FROM sessions
		 ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			s       Session
			started int64
			ended   sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &started, &ended, &s.Aircraft); err != nil {
			return nil, err
		}
		s.StartedAt = time.Unix(0, started).UTC()
		if ended.Valid {
			t := time.Unix(0, ended.Int64).UTC()
			s.EndedAt = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RecordSamples stores samples in one transaction.
func (db *DB) RecordSamples(ctx context.Context, sessionID string, samples []recorder.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO pose_samples (
			session_id, ts_unix_nanos,
			in_x, in_y, in_z, in_yaw, in_pitch, in_roll,
			out_x, out_y, out_z, out_yaw, out_pitch, out_roll,
			applied
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range samples {
		in, out := s.Input, s.Output
		if _, err := stmt.ExecContext(ctx,
			sessionID, s.Time.UnixNano(),
			in[0], in[1], in[2], in[3], in[4], in[5],
			out[0], out[1], out[2], out[3], out[4], out[5],
			s.Applied,
		); err != nil {
			return fmt.Errorf("failed to insert pose sample: %w", err)
		}
	}
	return tx.Commit()
}

// RecentSamples returns up to limit of the latest samples of a session,
// oldest first.
func (db *DB) RecentSamples(ctx context.Context, sessionID string, limit int) ([]recorder.Sample, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := db.QueryContext(ctx, `SELECT * FROM (
			SELECT ts_unix_nanos,
				in_x, in_y, in_z, in_yaw, in_pitch, in_roll,
				out_x, out_y, out_z, out_yaw, out_pitch, out_roll,
				applied
			FROM pose_samples WHERE session_id = ?
			ORDER BY ts_unix_nanos DESC LIMIT ?
		) ORDER BY ts_unix_nanos ASC`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []recorder.Sample
	for rows.Next() {
		var (
			s  recorder.Sample
			ts int64
		)
		in, o := &s.Input, &s.Output
		if err := rows.Scan(&ts,
			&in[0], &in[1], &in[2], &in[3], &in[4], &in[5],
			&o[0], &o[1], &o[2], &o[3], &o[4], &o[5],
			&s.Applied,
		); err != nil {
			return nil, err
		}
		s.Time = time.Unix(0, ts).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// RecordCalibration stores a calibration event. values holds up to six
// components in axis order; missing components are stored as zero.
func (db *DB) RecordCalibration(ctx context.Context, sessionID, kind string, values []float64) (string, error) {
	var v pose.Pose
	copy(v[:], values)
	id := uuid.NewString()
	_, err := db.ExecContext(ctx, `INSERT INTO calibration_events (
			event_id, session_id, kind, x, y, z, yaw, pitch, roll, ts_unix_nanos
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, sessionID, kind, v[0], v[1], v[2], v[3], v[4], v[5], time.Now().UTC().UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to record calibration: %w", err)
	}
	return id, nil
}

// CalibrationEvents lists the calibration events of a session in order.
func (db *DB) CalibrationEvents(ctx context.Context, sessionID string) ([]CalibrationEvent, error) {
	rows, err := db.QueryContext(ctx, `SELECT event_id, session_id, kind,
			x, y, z, yaw, pitch, roll, ts_unix_nanos
		FROM calibration_events WHERE session_id = ?
		ORDER BY ts_unix_nanos ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CalibrationEvent
	for rows.Next() {
		var (
			e  CalibrationEvent
			ts int64
		)
		v := &e.Values
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind,
			&v[0], &v[1], &v[2], &v[3], &v[4], &v[5], &ts); err != nil {
			return nil, err
		}
		e.Time = time.Unix(0, ts).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// SessionWriter binds a session so the recorder and the tracker can write to
// it without knowing its ID.
type SessionWriter struct {
	DB        *DB
	SessionID string
}

// WriteSamples implements recorder.SampleWriter.
func (w SessionWriter) WriteSamples(ctx context.Context, samples []recorder.Sample) error {
	return w.DB.RecordSamples(ctx, w.SessionID, samples)
}

// RecordCalibration stores a calibration event for the bound session.
func (w SessionWriter) RecordCalibration(ctx context.Context, kind string, values []float64) error {
	_, err := w.DB.RecordCalibration(ctx, w.SessionID, kind, values)
	return err
}
