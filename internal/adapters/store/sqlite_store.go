package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/email-triage/internal/core"
	"go.uber.org/zap"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sender_models (
	user_id TEXT NOT NULL,
	sender_email TEXT NOT NULL,
	sender_id TEXT NOT NULL,
	sender_domain TEXT,
	total_emails INTEGER NOT NULL DEFAULT 0,
	responded_emails INTEGER NOT NULL DEFAULT 0,
	archived_emails INTEGER NOT NULL DEFAULT 0,
	deleted_emails INTEGER NOT NULL DEFAULT 0,
	starred_emails INTEGER NOT NULL DEFAULT 0,
	ignored_emails INTEGER NOT NULL DEFAULT 0,
	response_rate REAL NOT NULL,
	archive_rate REAL NOT NULL,
	delete_rate REAL NOT NULL,
	importance_score REAL NOT NULL,
	urgency_score REAL NOT NULL,
	first_seen TEXT NOT NULL,
	last_interaction TEXT NOT NULL,
	last_updated TEXT NOT NULL,
	decayed_weight REAL NOT NULL,
	is_vip BOOLEAN NOT NULL DEFAULT 0,
	PRIMARY KEY (user_id, sender_email)
);
CREATE TABLE IF NOT EXISTS trust_profiles (
	user_id TEXT PRIMARY KEY,
	total_interactions INTEGER NOT NULL DEFAULT 0,
	approved_actions INTEGER NOT NULL DEFAULT 0,
	rejected_actions INTEGER NOT NULL DEFAULT 0,
	modified_actions INTEGER NOT NULL DEFAULT 0,
	stage TEXT NOT NULL,
	trust_score REAL NOT NULL,
	auto_approve_threshold REAL NOT NULL,
	suggestion_threshold REAL NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS queue_items (
	item_id TEXT PRIMARY KEY,
	account_id TEXT,
	user_id TEXT NOT NULL,
	email_id TEXT NOT NULL,
	prediction TEXT NOT NULL,
	from_address TEXT,
	subject TEXT,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	expires_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_queue_user_status ON queue_items(user_id, status);
CREATE TABLE IF NOT EXISTS behavior_events (
	event_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	email_id TEXT,
	sender_id TEXT,
	event_type TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	duration_ms INTEGER,
	features TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_user_time ON behavior_events(user_id, timestamp);
CREATE TABLE IF NOT EXISTS undo_snapshots (
	snapshot_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	email_id TEXT NOT NULL,
	action TEXT NOT NULL,
	prior_state TEXT,
	taken_at TEXT NOT NULL
);
`

// SQLiteStore is a SQLite implementation of core.TriageStore.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the database at dbPath and ensures the
// schema exists.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) GetSender(ctx context.Context, userID, senderEmail string) (*core.SenderModel, error) {
	m := &core.SenderModel{}
	var firstSeen, lastInteraction, lastUpdated string
	err := s.db.QueryRowContext(ctx, `
		SELECT sender_id, sender_email, sender_domain, user_id,
			total_emails, responded_emails, archived_emails, deleted_emails, starred_emails, ignored_emails,
			response_rate, archive_rate, delete_rate, importance_score, urgency_score,
			first_seen, last_interaction, last_updated, decayed_weight, is_vip
		FROM sender_models WHERE user_id = ? AND sender_email = ?
	`, userID, strings.ToLower(senderEmail)).Scan(
		&m.SenderID, &m.SenderEmail, &m.SenderDomain, &m.UserID,
		&m.TotalEmails, &m.RespondedEmails, &m.ArchivedEmails, &m.DeletedEmails, &m.StarredEmails, &m.IgnoredEmails,
		&m.ResponseRate, &m.ArchiveRate, &m.DeleteRate, &m.ImportanceScore, &m.UrgencyScore,
		&firstSeen, &lastInteraction, &lastUpdated, &m.DecayedWeight, &m.IsVIP,
	)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sender model: %w", err)
	}
	m.FirstSeen = parseTime(firstSeen)
	m.LastInteraction = parseTime(lastInteraction)
	m.LastUpdated = parseTime(lastUpdated)
	return m, nil
}

func (s *SQLiteStore) SaveSender(ctx context.Context, m *core.SenderModel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sender_models (
			user_id, sender_email, sender_id, sender_domain,
			total_emails, responded_emails, archived_emails, deleted_emails, starred_emails, ignored_emails,
			response_rate, archive_rate, delete_rate, importance_score, urgency_score,
			first_seen, last_interaction, last_updated, decayed_weight, is_vip
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.UserID, strings.ToLower(m.SenderEmail), m.SenderID, m.SenderDomain,
		m.TotalEmails, m.RespondedEmails, m.ArchivedEmails, m.DeletedEmails, m.StarredEmails, m.IgnoredEmails,
		m.ResponseRate, m.ArchiveRate, m.DeleteRate, m.ImportanceScore, m.UrgencyScore,
		formatTime(m.FirstSeen), formatTime(m.LastInteraction), formatTime(m.LastUpdated), m.DecayedWeight, m.IsVIP)
	if err != nil {
		return fmt.Errorf("failed to save sender model: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListSenders(ctx context.Context, userID string) ([]*core.SenderModel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sender_id, sender_email, sender_domain, user_id,
			total_emails, responded_emails, archived_emails, deleted_emails, starred_emails, ignored_emails,
			response_rate, archive_rate, delete_rate, importance_score, urgency_score,
			first_seen, last_interaction, last_updated, decayed_weight, is_vip
		FROM sender_models WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sender models: %w", err)
	}
	defer rows.Close()

	var out []*core.SenderModel
	for rows.Next() {
		m := &core.SenderModel{}
		var firstSeen, lastInteraction, lastUpdated string
		if err := rows.Scan(
			&m.SenderID, &m.SenderEmail, &m.SenderDomain, &m.UserID,
			&m.TotalEmails, &m.RespondedEmails, &m.ArchivedEmails, &m.DeletedEmails, &m.StarredEmails, &m.IgnoredEmails,
			&m.ResponseRate, &m.ArchiveRate, &m.DeleteRate, &m.ImportanceScore, &m.UrgencyScore,
			&firstSeen, &lastInteraction, &lastUpdated, &m.DecayedWeight, &m.IsVIP,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sender model: %w", err)
		}
		m.FirstSeen = parseTime(firstSeen)
		m.LastInteraction = parseTime(lastInteraction)
		m.LastUpdated = parseTime(lastUpdated)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetTrustProfile(ctx context.Context, userID string) (*core.TrustProfile, error) {
	p := &core.TrustProfile{}
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, total_interactions, approved_actions, rejected_actions, modified_actions,
			stage, trust_score, auto_approve_threshold, suggestion_threshold, created_at, updated_at
		FROM trust_profiles WHERE user_id = ?
	`, userID).Scan(
		&p.UserID, &p.TotalInteractions, &p.ApprovedActions, &p.RejectedActions, &p.ModifiedActions,
		&p.Stage, &p.TrustScore, &p.AutoApproveThreshold, &p.SuggestionThreshold, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query trust profile: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

func (s *SQLiteStore) SaveTrustProfile(ctx context.Context, p *core.TrustProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO trust_profiles (
			user_id, total_interactions, approved_actions, rejected_actions, modified_actions,
			stage, trust_score, auto_approve_threshold, suggestion_threshold, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.UserID, p.TotalInteractions, p.ApprovedActions, p.RejectedActions, p.ModifiedActions,
		p.Stage, p.TrustScore, p.AutoApproveThreshold, p.SuggestionThreshold,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save trust profile: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveQueueItem(ctx context.Context, item *core.ActionQueueItem) error {
	prediction, err := json.Marshal(item.Prediction)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO queue_items (
			item_id, account_id, user_id, email_id, prediction,
			from_address, subject, status, error_message, created_at, updated_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ItemID, item.AccountID, item.UserID, item.EmailID, string(prediction),
		item.From, item.Subject, item.Status, item.ErrorMessage,
		formatTime(item.CreatedAt), formatTime(item.UpdatedAt), formatTime(item.ExpiresAt))
	if err != nil {
		return fmt.Errorf("failed to save queue item: %w", err)
	}
	return nil
}

func scanQueueItem(scan func(dest ...any) error) (*core.ActionQueueItem, error) {
	item := &core.ActionQueueItem{}
	var prediction, createdAt, updatedAt, expiresAt string
	if err := scan(
		&item.ItemID, &item.AccountID, &item.UserID, &item.EmailID, &prediction,
		&item.From, &item.Subject, &item.Status, &item.ErrorMessage,
		&createdAt, &updatedAt, &expiresAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(prediction), &item.Prediction); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prediction: %w", err)
	}
	item.CreatedAt = parseTime(createdAt)
	item.UpdatedAt = parseTime(updatedAt)
	item.ExpiresAt = parseTime(expiresAt)
	return item, nil
}

const queueItemColumns = `item_id, account_id, user_id, email_id, prediction,
	from_address, subject, status, error_message, created_at, updated_at, expires_at`

func (s *SQLiteStore) GetQueueItem(ctx context.Context, itemID string) (*core.ActionQueueItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+queueItemColumns+` FROM queue_items WHERE item_id = ?`, itemID)
	item, err := scanQueueItem(row.Scan)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query queue item: %w", err)
	}
	return item, nil
}

func (s *SQLiteStore) ListQueueItems(ctx context.Context, userID string, status core.QueueStatus) ([]*core.ActionQueueItem, error) {
	query := `SELECT ` + queueItemColumns + ` FROM queue_items WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue items: %w", err)
	}
	defer rows.Close()

	var out []*core.ActionQueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PendingUsers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM queue_items WHERE status = ?`, core.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan pending user: %w", err)
		}
		users = append(users, userID)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, event *core.BehaviorEvent) error {
	var features []byte
	if event.Features != nil {
		var err error
		features, err = json.Marshal(event.Features)
		if err != nil {
			return fmt.Errorf("failed to marshal event features: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO behavior_events (event_id, user_id, email_id, sender_id, event_type, timestamp, duration_ms, features)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, event.EventID, event.UserID, event.EmailID, event.SenderID, event.EventType,
		formatTime(event.Timestamp), event.DurationMs, string(features))
	if err != nil {
		return fmt.Errorf("failed to append behavior event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecentEvents(ctx context.Context, userID string, limit int) ([]*core.BehaviorEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, user_id, email_id, sender_id, event_type, timestamp, duration_ms, features
		FROM behavior_events WHERE user_id = ? ORDER BY timestamp DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query behavior events: %w", err)
	}
	defer rows.Close()

	var out []*core.BehaviorEvent
	for rows.Next() {
		event := &core.BehaviorEvent{}
		var timestamp, features string
		if err := rows.Scan(&event.EventID, &event.UserID, &event.EmailID, &event.SenderID,
			&event.EventType, &timestamp, &event.DurationMs, &features); err != nil {
			return nil, fmt.Errorf("failed to scan behavior event: %w", err)
		}
		event.Timestamp = parseTime(timestamp)
		if features != "" {
			if err := json.Unmarshal([]byte(features), &event.Features); err != nil {
				s.logger.Warn("Failed to unmarshal event features", zap.Error(err),
					zap.String("event_id", event.EventID))
			}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snapshot *core.UndoSnapshot) error {
	state, err := json.Marshal(snapshot.PriorState)
	if err != nil {
		return fmt.Errorf("failed to marshal prior state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO undo_snapshots (snapshot_id, user_id, email_id, action, prior_state, taken_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, snapshot.SnapshotID, snapshot.UserID, snapshot.EmailID, snapshot.Action,
		string(state), formatTime(snapshot.TakenAt))
	if err != nil {
		return fmt.Errorf("failed to save undo snapshot: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
