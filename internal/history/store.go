// Package history keeps a sqlite journal of recording sessions.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/audiolibrelab/robocapture/internal/sensor"
	"github.com/audiolibrelab/robocapture/internal/session"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when no session matches.
var ErrNotFound = errors.New("session not found")

// Store is a session.Journal backed by sqlite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// One writer; sqlite serializes anyway and an in-memory database exists
	// per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Started inserts the row for a new recording.
func (s *Store) Started(ctx context.Context, r session.Record) error {
	query := `
		INSERT INTO sessions (
			session_id, stem, label, camera, audio_format,
			video_directory, audio_path, sonar_log, touch_log, started_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.Stem,
		nullString(r.Label),
		r.Camera,
		string(r.AudioFormat),
		r.VideoDirectory,
		r.AudioPath,
		nullString(r.SonarLog),
		nullString(r.TouchLog),
		r.StartedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Stopped completes the row of a finished recording, inserting it when the
// start was never journaled.
func (s *Store) Stopped(ctx context.Context, r session.Record) error {
	query := `
		INSERT INTO sessions (
			session_id, stem, label, camera, audio_format,
			video_directory, video_file, video_frames, audio_path, sonar_log, touch_log,
			started_at_ns, stopped_at_ns, sonar_samples, touch_samples,
			skipped_ticks, read_failures, stop_error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			video_file = excluded.video_file,
			video_frames = excluded.video_frames,
			stopped_at_ns = excluded.stopped_at_ns,
			sonar_samples = excluded.sonar_samples,
			touch_samples = excluded.touch_samples,
			skipped_ticks = excluded.skipped_ticks,
			read_failures = excluded.read_failures,
			stop_error = excluded.stop_error
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.Stem,
		nullString(r.Label),
		r.Camera,
		string(r.AudioFormat),
		r.VideoDirectory,
		nullString(r.VideoFile),
		r.VideoFrames,
		r.AudioPath,
		nullString(r.SonarLog),
		nullString(r.TouchLog),
		r.StartedAt.UnixNano(),
		r.StoppedAt.UnixNano(),
		r.Sensors.SonarSamples,
		r.Sensors.TouchSamples,
		r.Sensors.SkippedTicks,
		r.Sensors.ReadFailures,
		nullString(r.StopError),
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT session_id, stem, label, camera, audio_format,
	       video_directory, video_file, video_frames, audio_path, sonar_log, touch_log,
	       started_at_ns, stopped_at_ns, sonar_samples, touch_samples,
	       skipped_ticks, read_failures, stop_error
	FROM sessions
`

// List returns the most recent sessions first. A non-positive limit
// returns all of them.
func (s *Store) List(ctx context.Context, limit int) ([]session.Record, error) {
	query := selectColumns + ` ORDER BY started_at_ns DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []session.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return records, nil
}

// Get finds a session by ID or stem. When several sessions share a stem
// the latest wins.
func (s *Store) Get(ctx context.Context, idOrStem string) (session.Record, error) {
	query := selectColumns + ` WHERE session_id = ? OR stem = ? ORDER BY started_at_ns DESC LIMIT 1`
	r, err := scanRecord(s.db.QueryRowContext(ctx, query, idOrStem, idOrStem))
	if errors.Is(err, sql.ErrNoRows) {
		return session.Record{}, fmt.Errorf("%w: %s", ErrNotFound, idOrStem)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (session.Record, error) {
	var r session.Record
	var audioFormat string
	var label, videoFile, sonarLog, touchLog, stopError sql.NullString
	var startedAt int64
	var stoppedAt sql.NullInt64
	var stats sensor.Stats

	err := row.Scan(
		&r.ID,
		&r.Stem,
		&label,
		&r.Camera,
		&audioFormat,
		&r.VideoDirectory,
		&videoFile,
		&r.VideoFrames,
		&r.AudioPath,
		&sonarLog,
		&touchLog,
		&startedAt,
		&stoppedAt,
		&stats.SonarSamples,
		&stats.TouchSamples,
		&stats.SkippedTicks,
		&stats.ReadFailures,
		&stopError,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan session: %w", err)
	}

	r.AudioFormat = session.AudioFormat(audioFormat)
	r.Label = label.String
	r.VideoFile = videoFile.String
	r.SonarLog = sonarLog.String
	r.TouchLog = touchLog.String
	r.StopError = stopError.String
	r.StartedAt = time.Unix(0, startedAt)
	if stoppedAt.Valid {
		r.StoppedAt = time.Unix(0, stoppedAt.Int64)
	}
	r.Sensors = stats
	return r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
