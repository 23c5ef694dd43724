package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/email-triage/internal/core"
	"go.uber.org/zap"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS sender_models (
		user_id VARCHAR(64) NOT NULL,
		sender_email VARCHAR(255) NOT NULL,
		sender_id VARCHAR(64) NOT NULL,
		sender_domain VARCHAR(255),
		total_emails INT NOT NULL DEFAULT 0,
		responded_emails INT NOT NULL DEFAULT 0,
		archived_emails INT NOT NULL DEFAULT 0,
		deleted_emails INT NOT NULL DEFAULT 0,
		starred_emails INT NOT NULL DEFAULT 0,
		ignored_emails INT NOT NULL DEFAULT 0,
		response_rate DOUBLE NOT NULL,
		archive_rate DOUBLE NOT NULL,
		delete_rate DOUBLE NOT NULL,
		importance_score DOUBLE NOT NULL,
		urgency_score DOUBLE NOT NULL,
		first_seen VARCHAR(40) NOT NULL,
		last_interaction VARCHAR(40) NOT NULL,
		last_updated VARCHAR(40) NOT NULL,
		decayed_weight DOUBLE NOT NULL,
		is_vip BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (user_id, sender_email)
	)`,
	`CREATE TABLE IF NOT EXISTS trust_profiles (
		user_id VARCHAR(64) PRIMARY KEY,
		total_interactions INT NOT NULL DEFAULT 0,
		approved_actions INT NOT NULL DEFAULT 0,
		rejected_actions INT NOT NULL DEFAULT 0,
		modified_actions INT NOT NULL DEFAULT 0,
		stage VARCHAR(32) NOT NULL,
		trust_score DOUBLE NOT NULL,
		auto_approve_threshold DOUBLE NOT NULL,
		suggestion_threshold DOUBLE NOT NULL,
		created_at VARCHAR(40) NOT NULL,
		updated_at VARCHAR(40) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS queue_items (
		item_id VARCHAR(64) PRIMARY KEY,
		account_id VARCHAR(64),
		user_id VARCHAR(64) NOT NULL,
		email_id VARCHAR(128) NOT NULL,
		prediction TEXT NOT NULL,
		from_address VARCHAR(255),
		subject VARCHAR(512),
		status VARCHAR(16) NOT NULL,
		error_message TEXT,
		created_at VARCHAR(40) NOT NULL,
		updated_at VARCHAR(40) NOT NULL,
		expires_at VARCHAR(40),
		INDEX idx_queue_user_status (user_id, status)
	)`,
	`CREATE TABLE IF NOT EXISTS behavior_events (
		event_id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		email_id VARCHAR(128),
		sender_id VARCHAR(64),
		event_type VARCHAR(16) NOT NULL,
		timestamp VARCHAR(40) NOT NULL,
		duration_ms BIGINT,
		features TEXT,
		INDEX idx_events_user_time (user_id, timestamp)
	)`,
	`CREATE TABLE IF NOT EXISTS undo_snapshots (
		snapshot_id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		email_id VARCHAR(128) NOT NULL,
		action VARCHAR(16) NOT NULL,
		prior_state TEXT,
		taken_at VARCHAR(40) NOT NULL
	)`,
}

// MySQLStore is a MySQL implementation of core.TriageStore for
// multi-instance deployments where the sender models and queue must live
// in a shared, concurrency-safe backing store.
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLStore connects to MySQL and ensures the schema exists.
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}
	for _, stmt := range mysqlSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return &MySQLStore{db: db, logger: logger}, nil
}

const senderColumns = `sender_id, sender_email, sender_domain, user_id,
	total_emails, responded_emails, archived_emails, deleted_emails, starred_emails, ignored_emails,
	response_rate, archive_rate, delete_rate, importance_score, urgency_score,
	first_seen, last_interaction, last_updated, decayed_weight, is_vip`

func scanSender(scan func(dest ...any) error) (*core.SenderModel, error) {
	m := &core.SenderModel{}
	var firstSeen, lastInteraction, lastUpdated string
	if err := scan(
		&m.SenderID, &m.SenderEmail, &m.SenderDomain, &m.UserID,
		&m.TotalEmails, &m.RespondedEmails, &m.ArchivedEmails, &m.DeletedEmails, &m.StarredEmails, &m.IgnoredEmails,
		&m.ResponseRate, &m.ArchiveRate, &m.DeleteRate, &m.ImportanceScore, &m.UrgencyScore,
		&firstSeen, &lastInteraction, &lastUpdated, &m.DecayedWeight, &m.IsVIP,
	); err != nil {
		return nil, err
	}
	m.FirstSeen = parseTime(firstSeen)
	m.LastInteraction = parseTime(lastInteraction)
	m.LastUpdated = parseTime(lastUpdated)
	return m, nil
}

func (s *MySQLStore) GetSender(ctx context.Context, userID, senderEmail string) (*core.SenderModel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+senderColumns+` FROM sender_models WHERE user_id = ? AND sender_email = ?`,
		userID, strings.ToLower(senderEmail))
	m, err := scanSender(row.Scan)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sender model: %w", err)
	}
	return m, nil
}

func (s *MySQLStore) SaveSender(ctx context.Context, m *core.SenderModel) error {
	_, err := s.db.ExecContext(ctx, `
		REPLACE INTO sender_models (
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

func (s *MySQLStore) ListSenders(ctx context.Context, userID string) ([]*core.SenderModel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+senderColumns+` FROM sender_models WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sender models: %w", err)
	}
	defer rows.Close()

	var out []*core.SenderModel
	for rows.Next() {
		m, err := scanSender(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sender model: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *MySQLStore) GetTrustProfile(ctx context.Context, userID string) (*core.TrustProfile, error) {
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

func (s *MySQLStore) SaveTrustProfile(ctx context.Context, p *core.TrustProfile) error {
	_, err := s.db.ExecContext(ctx, `
		REPLACE INTO trust_profiles (
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

func (s *MySQLStore) SaveQueueItem(ctx context.Context, item *core.ActionQueueItem) error {
	prediction, err := json.Marshal(item.Prediction)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		REPLACE INTO queue_items (
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

func (s *MySQLStore) GetQueueItem(ctx context.Context, itemID string) (*core.ActionQueueItem, error) {
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

func (s *MySQLStore) ListQueueItems(ctx context.Context, userID string, status core.QueueStatus) ([]*core.ActionQueueItem, error) {
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

func (s *MySQLStore) PendingUsers(ctx context.Context) ([]string, error) {
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

func (s *MySQLStore) AppendEvent(ctx context.Context, event *core.BehaviorEvent) error {
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

func (s *MySQLStore) RecentEvents(ctx context.Context, userID string, limit int) ([]*core.BehaviorEvent, error) {
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

func (s *MySQLStore) SaveSnapshot(ctx context.Context, snapshot *core.UndoSnapshot) error {
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
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
