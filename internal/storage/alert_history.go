package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/m365ops/watchtower/internal/model"
)

// AlertRecord is one journaled alert with its delivery outcome
type AlertRecord struct {
	CorrelationID string          `json:"correlation_id"`
	Service       string          `json:"service"`
	Severity      model.Severity  `json:"severity"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Context       json.RawMessage `json:"context,omitempty"`
	AcceptedAt    time.Time       `json:"accepted_at"`
	Delivered     *bool           `json:"delivered,omitempty"`
	DeliveryError string          `json:"delivery_error,omitempty"`
}

// Summary aggregates journaled alerts over a time range
type Summary struct {
	Since      time.Time      `json:"since"`
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
	ByService  map[string]int `json:"by_service"`
}

// AlertHistory is the advisory journal of accepted alerts. The dedup window
// never reads it; a restart drops suppression state regardless of what is
// journaled here.
type AlertHistory interface {
	// Store journals a newly accepted alert
	Store(ctx context.Context, alert *model.Alert) error

	// MarkDelivery records the delivery outcome of a journaled alert
	MarkDelivery(ctx context.Context, correlationID string, delivered bool, reason string) error

	// Get retrieves one record by correlation id, nil if absent
	Get(ctx context.Context, correlationID string) (*AlertRecord, error)

	// List retrieves records accepted in [from, to), newest first
	List(ctx context.Context, from, to time.Time, limit int) ([]*AlertRecord, error)

	// CountSince returns the number of alerts accepted since the given time
	CountSince(ctx context.Context, since time.Time) (int, error)

	// Summarize aggregates alerts accepted since the given time
	Summarize(ctx context.Context, since time.Time) (*Summary, error)

	// DeleteBefore removes records accepted before the given time
	DeleteBefore(ctx context.Context, before time.Time) error

	// Close releases the underlying store
	Close() error
}

// SQLiteAlertHistory implements AlertHistory using SQLite
type SQLiteAlertHistory struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewSQLiteAlertHistory opens (or creates) the journal at dbPath. Existing
// records are kept; the journal is the one piece of state that survives a
// restart.
func NewSQLiteAlertHistory(logger *zap.Logger, dbPath string) (*SQLiteAlertHistory, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	history := &SQLiteAlertHistory{
		logger: logger.Named("alert-history"),
		db:     db,
	}

	if err := history.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return history, nil
}

// initialize creates the schema if it does not exist
func (s *SQLiteAlertHistory) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS alert_history (
			correlation_id TEXT PRIMARY KEY,
			service TEXT NOT NULL,
			severity TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			context TEXT,
			accepted_at DATETIME NOT NULL,
			delivered INTEGER,
			delivery_error TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_alert_history_service ON alert_history(service);
		CREATE INDEX IF NOT EXISTS idx_alert_history_severity ON alert_history(severity);
		CREATE INDEX IF NOT EXISTS idx_alert_history_accepted_at ON alert_history(accepted_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// Store implements AlertHistory.Store
func (s *SQLiteAlertHistory) Store(ctx context.Context, alert *model.Alert) error {
	var contextStr string
	if len(alert.Context) > 0 {
		data, err := json.Marshal(alert.Context)
		if err != nil {
			return fmt.Errorf("failed to marshal alert context: %w", err)
		}
		contextStr = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_history (
			correlation_id, service, severity, title, description, context, accepted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		alert.CorrelationID,
		alert.Service,
		string(alert.Severity),
		alert.Title,
		alert.Description,
		sql.NullString{String: contextStr, Valid: contextStr != ""},
		alert.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to store alert: %w", err)
	}
	return nil
}

// MarkDelivery implements AlertHistory.MarkDelivery
func (s *SQLiteAlertHistory) MarkDelivery(ctx context.Context, correlationID string, delivered bool, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE alert_history SET
			delivered = ?,
			delivery_error = ?
		WHERE correlation_id = ?`,
		delivered,
		sql.NullString{String: reason, Valid: reason != ""},
		correlationID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark delivery: %w", err)
	}
	return nil
}

// Get implements AlertHistory.Get
func (s *SQLiteAlertHistory) Get(ctx context.Context, correlationID string) (*AlertRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT correlation_id, service, severity, title, description, context,
			accepted_at, delivered, delivery_error
		FROM alert_history
		WHERE correlation_id = ?`, correlationID)

	record, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan alert record: %w", err)
	}
	return record, nil
}

// List implements AlertHistory.List
func (s *SQLiteAlertHistory) List(ctx context.Context, from, to time.Time, limit int) ([]*AlertRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT correlation_id, service, severity, title, description, context,
			accepted_at, delivered, delivery_error
		FROM alert_history
		WHERE accepted_at >= ? AND accepted_at < ?
		ORDER BY accepted_at DESC
		LIMIT ?`, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert history: %w", err)
	}
	defer rows.Close()

	var records []*AlertRecord
	for rows.Next() {
		record, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}

// CountSince implements AlertHistory.CountSince
func (s *SQLiteAlertHistory) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM alert_history WHERE accepted_at >= ?", since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count alert history: %w", err)
	}
	return count, nil
}

// Summarize implements AlertHistory.Summarize
func (s *SQLiteAlertHistory) Summarize(ctx context.Context, since time.Time) (*Summary, error) {
	summary := &Summary{
		Since:      since,
		BySeverity: make(map[string]int),
		ByService:  make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT severity, COUNT(*) FROM alert_history
		WHERE accepted_at >= ? GROUP BY severity`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize by severity: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, fmt.Errorf("failed to scan severity summary: %w", err)
		}
		summary.BySeverity[severity] = count
		summary.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	serviceRows, err := s.db.QueryContext(ctx, `
		SELECT service, COUNT(*) FROM alert_history
		WHERE accepted_at >= ? GROUP BY service`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize by service: %w", err)
	}
	defer serviceRows.Close()
	for serviceRows.Next() {
		var service string
		var count int
		if err := serviceRows.Scan(&service, &count); err != nil {
			return nil, fmt.Errorf("failed to scan service summary: %w", err)
		}
		summary.ByService[service] = count
	}
	if err := serviceRows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return summary, nil
}

// DeleteBefore implements AlertHistory.DeleteBefore
func (s *SQLiteAlertHistory) DeleteBefore(ctx context.Context, before time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM alert_history WHERE accepted_at < ?", before)
	if err != nil {
		return fmt.Errorf("failed to delete alert history: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	s.logger.Info("Deleted old alert history records",
		zap.Time("before", before),
		zap.Int64("deleted", affected))
	return nil
}

// Close closes the database connection
func (s *SQLiteAlertHistory) Close() error {
	return s.db.Close()
}

// scanRecord reads one row's columns into an AlertRecord
func scanRecord(scan func(dest ...interface{}) error) (*AlertRecord, error) {
	record := &AlertRecord{}
	var severity string
	var description, contextStr, deliveryError sql.NullString
	var delivered sql.NullBool

	err := scan(
		&record.CorrelationID,
		&record.Service,
		&severity,
		&record.Title,
		&description,
		&contextStr,
		&record.AcceptedAt,
		&delivered,
		&deliveryError,
	)
	if err != nil {
		return nil, err
	}

	record.Severity = model.Severity(severity)
	if description.Valid {
		record.Description = description.String
	}
	if contextStr.Valid && contextStr.String != "" {
		record.Context = json.RawMessage(contextStr.String)
	}
	if delivered.Valid {
		record.Delivered = &delivered.Bool
	}
	if deliveryError.Valid {
		record.DeliveryError = deliveryError.String
	}
	return record, nil
}
