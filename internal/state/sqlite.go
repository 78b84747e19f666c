package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"hakubun/internal/srs"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			deck_ids TEXT NOT NULL DEFAULT '',
			review_order TEXT NOT NULL DEFAULT 'shuffled',
			start_ts TEXT NOT NULL,
			finish_ts TEXT NOT NULL DEFAULT '',
			reviewed INTEGER NOT NULL DEFAULT 0,
			correct INTEGER NOT NULL DEFAULT 0,
			incorrect INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS review_answers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			subject_id TEXT NOT NULL,
			review_type TEXT NOT NULL,
			answer TEXT NOT NULL,
			correct INTEGER NOT NULL,
			answered_ts TEXT NOT NULL,
			FOREIGN KEY(session_id) REFERENCES sessions(id)
		);`,
		`CREATE TABLE IF NOT EXISTS assignments (
			subject_id TEXT PRIMARY KEY,
			srs_stage INTEGER NOT NULL DEFAULT 0,
			available_at TEXT NOT NULL DEFAULT '',
			passed_at TEXT NOT NULL DEFAULT '',
			updated_ts TEXT NOT NULL DEFAULT (datetime('now'))
		);`,
		`CREATE INDEX IF NOT EXISTS assignments_available_at ON assignments(available_at);`,
		`CREATE TABLE IF NOT EXISTS app_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) StartSession(ctx context.Context, session Session) error {
	id := strings.TrimSpace(session.ID)
	if id == "" {
		return fmt.Errorf("start session: empty id")
	}
	start := session.StartTS
	if start.IsZero() {
		start = time.Now()
	}
	order := strings.TrimSpace(session.Order)
	if order == "" {
		order = "shuffled"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(id, deck_ids, review_order, start_ts) VALUES(?,?,?,?)`,
		id,
		strings.Join(session.DeckIDs, ","),
		order,
		formatTime(start),
	)
	return err
}

func (s *SQLiteStore) FinishSession(ctx context.Context, result SessionResult) error {
	finish := result.FinishTS
	if finish.IsZero() {
		finish = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET finish_ts = ?, reviewed = ?, correct = ?, incorrect = ?
		WHERE id = ?
	`, formatTime(finish), max(0, result.Reviewed), max(0, result.Correct), max(0, result.Incorrect), result.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("finish session %q: not found", result.ID)
	}
	return nil
}

func (s *SQLiteStore) RecordAnswer(ctx context.Context, answer Answer) (int64, error) {
	at := answer.AnsweredTS
	if at.IsZero() {
		at = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO review_answers(session_id, subject_id, review_type, answer, correct, answered_ts)
		VALUES(?, ?, ?, ?, ?, ?)
	`,
		answer.SessionID,
		answer.SubjectID,
		answer.ReviewType,
		answer.Text,
		ifThen(answer.Correct, 1, 0),
		formatTime(at),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) DeleteAnswer(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM review_answers WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) UpsertAssignment(ctx context.Context, a Assignment) error {
	subjectID := strings.TrimSpace(a.SubjectID)
	if subjectID == "" {
		return nil
	}
	updated := a.UpdatedTS
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assignments(subject_id, srs_stage, available_at, passed_at, updated_ts)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(subject_id) DO UPDATE SET
			srs_stage = excluded.srs_stage,
			available_at = excluded.available_at,
			passed_at = CASE
				WHEN assignments.passed_at = '' THEN excluded.passed_at
				ELSE assignments.passed_at
			END,
			updated_ts = excluded.updated_ts
	`,
		subjectID,
		int(a.Stage),
		formatTime(a.AvailableAt),
		formatTime(a.PassedAt),
		formatTime(updated),
	)
	return err
}

func (s *SQLiteStore) GetAssignments(ctx context.Context) (map[string]Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subject_id, srs_stage, available_at, passed_at, updated_ts
		FROM assignments
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]Assignment{}
	for rows.Next() {
		var (
			a                         Assignment
			stage                     int
			available, passed, update string
		)
		if err := rows.Scan(&a.SubjectID, &stage, &available, &passed, &update); err != nil {
			return nil, err
		}
		a.Stage = srs.Stage(stage)
		a.AvailableAt = parseTime(available)
		a.PassedAt = parseTime(passed)
		a.UpdatedTS = parseTime(update)
		out[a.SubjectID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) CountAvailable(ctx context.Context, at time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM assignments
		WHERE available_at <> '' AND available_at <= ?
	`, formatTime(at)).Scan(&n)
	return n, err
}

// ForecastCounts returns the review forecast for the week starting at now.
func (s *SQLiteStore) ForecastCounts(ctx context.Context, now time.Time) ([]srs.ForecastDay, error) {
	available, err := s.CountAvailable(ctx, now)
	if err != nil {
		return nil, err
	}
	windows := srs.Windows(now, srs.ForecastDays)
	rows, err := s.db.QueryContext(ctx, `
		SELECT available_at FROM assignments
		WHERE available_at > ? AND available_at <= ?
		ORDER BY available_at
	`, formatTime(now), formatTime(windows[len(windows)-1].End))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var upcoming []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		if t := parseTime(raw); !t.IsZero() {
			upcoming = append(upcoming, t.In(now.Location()))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return srs.Forecast(now, available, upcoming), nil
}

func (s *SQLiteStore) SaveSettings(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for key, value := range values {
		k := strings.TrimSpace(key)
		if k == "" {
			continue
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO app_settings(key, value) VALUES(?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, k, value); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) LoadSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM app_settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) GetSummary(ctx context.Context) (Summary, error) {
	var out Summary
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&out.Sessions); err != nil {
		return Summary{}, err
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(correct), 0) FROM review_answers
	`).Scan(&out.Answers, &out.Correct); err != nil {
		return Summary{}, err
	}
	out.Incorrect = out.Answers - out.Correct
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM assignments WHERE srs_stage >= ?
	`, int(srs.Burned)).Scan(&out.Burned); err != nil {
		return Summary{}, err
	}
	return out, nil
}

func (s *SQLiteStore) GetLastSession(ctx context.Context) (*LastSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, start_ts, finish_ts, reviewed, correct, incorrect
		FROM sessions
		ORDER BY start_ts DESC
		LIMIT 1
	`)
	var (
		out         LastSession
		start, fini string
	)
	if err := row.Scan(&out.ID, &start, &fini, &out.Reviewed, &out.Correct, &out.Incorrect); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	out.StartTS = parseTime(start)
	out.FinishTS = parseTime(fini)
	return &out, nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Times are stored as UTC text so that string order matches time order.
const timeLayout = "2006-01-02T15:04:05Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func ifThen(cond bool, yes, no int) int {
	if cond {
		return yes
	}
	return no
}
