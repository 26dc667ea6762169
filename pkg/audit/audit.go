// Package audit records who changed what: every mutating operation on skills
// and collections appends an event, and the per-entity log endpoints read the
// history back.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Operation classifies an audit event.
type Operation string

const (
	OperationCreate        Operation = "Created"
	OperationUpdate        Operation = "Updated"
	OperationPublishChange Operation = "PublishStatusChange"
	OperationSkillsChange  Operation = "SkillsUpdated"
)

// EntityType identifies the audited entity kind.
type EntityType string

const (
	EntitySkill      EntityType = "skill"
	EntityCollection EntityType = "collection"
)

// Event is one recorded change.
type Event struct {
	ID         int64             `json:"id"`
	EntityType EntityType        `json:"entityType"`
	EntityUUID string            `json:"entityUuid"`
	Operation  Operation         `json:"operationType"`
	User       string            `json:"user"`
	Changes    map[string]string `json:"changedFields,omitempty"`
	Timestamp  time.Time         `json:"creationDate"`
}

// Logger persists audit events to PostgreSQL.
type Logger struct {
	db *sql.DB
}

// NewLogger creates a database-backed audit logger and ensures its table.
func NewLogger(db *sql.DB) (*Logger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	l := &Logger{db: db}
	if err := l.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_log table: %w", err)
	}
	return l, nil
}

func (l *Logger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_log (
		id BIGSERIAL PRIMARY KEY,
		entity_type VARCHAR(20) NOT NULL,
		entity_uuid UUID NOT NULL,
		operation VARCHAR(50) NOT NULL,
		username VARCHAR(255) NOT NULL,
		changes JSONB,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_entity ON audit_log(entity_type, entity_uuid);
	CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log(created_at DESC);
	`
	_, err := l.db.Exec(query)
	return err
}

// Record appends one event. Audit failures are the caller's decision to
// tolerate; Record itself never swallows the error.
func (l *Logger) Record(ctx context.Context, event *Event) error {
	var changesJSON []byte
	if event.Changes != nil {
		var err error
		changesJSON, err = json.Marshal(event.Changes)
		if err != nil {
			return fmt.Errorf("failed to marshal changes: %w", err)
		}
	}

	query := `
		INSERT INTO audit_log (entity_type, entity_uuid, operation, username, changes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := l.db.QueryRowContext(ctx, query,
		event.EntityType, event.EntityUUID, event.Operation, event.User, changesJSON,
	).Scan(&event.ID, &event.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// History returns an entity's events, newest first.
func (l *Logger) History(ctx context.Context, entityType EntityType, entityUUID string, limit int) ([]*Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, entity_type, entity_uuid, operation, username, changes, created_at
		FROM audit_log
		WHERE entity_type = $1 AND entity_uuid = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`
	rows, err := l.db.QueryContext(ctx, query, entityType, entityUUID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit history: %w", err)
	}
	defer rows.Close()

	events := make([]*Event, 0)
	for rows.Next() {
		var e Event
		var changesJSON []byte
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityUUID, &e.Operation, &e.User, &changesJSON, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if len(changesJSON) > 0 {
			if err := json.Unmarshal(changesJSON, &e.Changes); err != nil {
				return nil, fmt.Errorf("failed to unmarshal changes: %w", err)
			}
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}

	return events, nil
}
