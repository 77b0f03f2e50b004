package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rfarias/atendebot/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		user_id TEXT PRIMARY KEY,
		step TEXT NOT NULL,
		last_activity_at INTEGER NOT NULL,
		invalid_count INTEGER NOT NULL DEFAULT 0,
		non_numeric_streak INTEGER NOT NULL DEFAULT 0,
		selected_plan TEXT,
		payment_method TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_activity ON sessions(last_activity_at);

	CREATE TABLE IF NOT EXISTS trials (
		user_id TEXT PRIMARY KEY,
		times_issued INTEGER NOT NULL DEFAULT 0,
		last_issued_at INTEGER NOT NULL,
		cooldown_until INTEGER NOT NULL,
		device_kind TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS referrals (
		user_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS event_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		origin TEXT,
		user_id TEXT,
		at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_event_log_at ON event_log(at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetSession retrieves the session record for a user.
func (s *SQLiteStore) GetSession(ctx context.Context, userID string) (*domain.SessionRecord, error) {
	query := `
		SELECT user_id, step, last_activity_at, invalid_count, non_numeric_streak,
		       selected_plan, payment_method, created_at, updated_at
		FROM sessions WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)
	record, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	return record, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.SessionRecord, error) {
	var record domain.SessionRecord
	var step string
	var plan, method sql.NullString
	var lastActivity, createdAt, updatedAt int64

	err := row.Scan(
		&record.UserID, &step, &lastActivity, &record.InvalidCount,
		&record.NonNumericStreak, &plan, &method, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Step = domain.ParseStep(step)
	if plan.Valid {
		if p, ok := domain.ParsePlan(plan.String); ok {
			record.SelectedPlan = p
		}
	}
	if method.Valid {
		if m, ok := domain.ParsePaymentMethod(method.String); ok {
			record.PaymentMethod = m
		}
	}
	record.LastActivityAt = time.Unix(lastActivity, 0)
	record.CreatedAt = time.Unix(createdAt, 0)
	record.UpdatedAt = time.Unix(updatedAt, 0)
	return &record, nil
}

// UpsertSession creates or updates a session record.
func (s *SQLiteStore) UpsertSession(ctx context.Context, session *domain.SessionRecord) error {
	query := `
	INSERT INTO sessions (user_id, step, last_activity_at, invalid_count, non_numeric_streak,
	                      selected_plan, payment_method, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		step = excluded.step,
		last_activity_at = excluded.last_activity_at,
		invalid_count = excluded.invalid_count,
		non_numeric_streak = excluded.non_numeric_streak,
		selected_plan = excluded.selected_plan,
		payment_method = excluded.payment_method,
		updated_at = excluded.updated_at`

	var plan, method interface{}
	if session.SelectedPlan != 0 {
		plan = session.SelectedPlan.String()
	}
	if session.PaymentMethod != 0 {
		method = session.PaymentMethod.String()
	}

	_, err := s.db.ExecContext(ctx, query,
		session.UserID, session.Step.String(), session.LastActivityAt.Unix(),
		session.InvalidCount, session.NonNumericStreak, plan, method,
		session.CreatedAt.Unix(), session.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// ListSessions returns every stored session record.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]*domain.SessionRecord, error) {
	query := `
		SELECT user_id, step, last_activity_at, invalid_count, non_numeric_streak,
		       selected_plan, payment_method, created_at, updated_at
		FROM sessions`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.SessionRecord
	for rows.Next() {
		record, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ClearSessions deletes all session records.
func (s *SQLiteStore) ClearSessions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions`)
	if err != nil {
		return 0, fmt.Errorf("clear sessions: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear sessions rows affected: %w", err)
	}
	return deleted, nil
}

// GetTrial retrieves the trial record for a user.
func (s *SQLiteStore) GetTrial(ctx context.Context, userID string) (*domain.TrialRecord, error) {
	query := `
		SELECT user_id, times_issued, last_issued_at, cooldown_until, device_kind, created_at, updated_at
		FROM trials WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)
	trial, err := scanTrial(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan trial row: %w", err)
	}
	return trial, nil
}

func scanTrial(row rowScanner) (*domain.TrialRecord, error) {
	var trial domain.TrialRecord
	var device sql.NullString
	var lastIssued, cooldownUntil, createdAt, updatedAt int64

	err := row.Scan(
		&trial.UserID, &trial.TimesIssued, &lastIssued, &cooldownUntil,
		&device, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	trial.DeviceKind = domain.DeviceKind(device.String)
	trial.LastIssuedAt = time.Unix(lastIssued, 0)
	trial.CooldownUntil = time.Unix(cooldownUntil, 0)
	trial.CreatedAt = time.Unix(createdAt, 0)
	trial.UpdatedAt = time.Unix(updatedAt, 0)
	return &trial, nil
}

// UpsertTrial creates or updates a trial record.
func (s *SQLiteStore) UpsertTrial(ctx context.Context, trial *domain.TrialRecord) error {
	query := `
	INSERT INTO trials (user_id, times_issued, last_issued_at, cooldown_until, device_kind, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		times_issued = excluded.times_issued,
		last_issued_at = excluded.last_issued_at,
		cooldown_until = excluded.cooldown_until,
		device_kind = excluded.device_kind,
		updated_at = excluded.updated_at`

	var device interface{}
	if trial.DeviceKind != "" {
		device = string(trial.DeviceKind)
	}

	_, err := s.db.ExecContext(ctx, query,
		trial.UserID, trial.TimesIssued, trial.LastIssuedAt.Unix(),
		trial.CooldownUntil.Unix(), device,
		trial.CreatedAt.Unix(), trial.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert trial: %w", err)
	}
	return nil
}

// ListTrials returns every trial record, most recently issued first.
func (s *SQLiteStore) ListTrials(ctx context.Context) ([]*domain.TrialRecord, error) {
	query := `
		SELECT user_id, times_issued, last_issued_at, cooldown_until, device_kind, created_at, updated_at
		FROM trials ORDER BY last_issued_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list trials: %w", err)
	}
	defer rows.Close()

	var trials []*domain.TrialRecord
	for rows.Next() {
		trial, err := scanTrial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trial row: %w", err)
		}
		trials = append(trials, trial)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trials: %w", err)
	}
	return trials, nil
}

// GetReferral retrieves the referral record for a user.
func (s *SQLiteStore) GetReferral(ctx context.Context, userID string) (*domain.ReferralRecord, error) {
	query := `SELECT user_id, name, count, created_at, updated_at FROM referrals WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var ref domain.ReferralRecord
	var createdAt, updatedAt int64
	err := row.Scan(&ref.UserID, &ref.Name, &ref.Count, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan referral row: %w", err)
	}

	ref.CreatedAt = time.Unix(createdAt, 0)
	ref.UpdatedAt = time.Unix(updatedAt, 0)
	return &ref, nil
}

// UpsertReferral creates or updates a referral record.
func (s *SQLiteStore) UpsertReferral(ctx context.Context, ref *domain.ReferralRecord) error {
	query := `
	INSERT INTO referrals (user_id, name, count, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		name = excluded.name,
		count = excluded.count,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		ref.UserID, ref.Name, ref.Count, ref.CreatedAt.Unix(), ref.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert referral: %w", err)
	}
	return nil
}

// ListReferrals returns every referral record, highest count first.
func (s *SQLiteStore) ListReferrals(ctx context.Context) ([]*domain.ReferralRecord, error) {
	query := `SELECT user_id, name, count, created_at, updated_at FROM referrals ORDER BY count DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	defer rows.Close()

	var refs []*domain.ReferralRecord
	for rows.Next() {
		var ref domain.ReferralRecord
		var createdAt, updatedAt int64
		if err := rows.Scan(&ref.UserID, &ref.Name, &ref.Count, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan referral row: %w", err)
		}
		ref.CreatedAt = time.Unix(createdAt, 0)
		ref.UpdatedAt = time.Unix(updatedAt, 0)
		refs = append(refs, &ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate referrals: %w", err)
	}
	return refs, nil
}

// AppendLog inserts one operational log row.
func (s *SQLiteStore) AppendLog(ctx context.Context, entry *domain.LogEntry) error {
	query := `INSERT INTO event_log (level, message, origin, user_id, at) VALUES (?, ?, ?, ?, ?)`

	at := entry.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, query, entry.Level, entry.Message, entry.Origin, entry.UserID, at.Unix())
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}
