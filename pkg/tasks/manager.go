// Package tasks runs deferred work (exports, batch operations) and serves
// the polled results. A submitted task gets a UUID immediately; the caller
// polls the matching results endpoint until the task is ready.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/openskills/skillhub/pkg/observability"
)

// ErrNotFound is returned when no task exists for the given UUID.
var ErrNotFound = errors.New("task not found")

// Status is a task's lifecycle state.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Kind groups tasks by their result shape, matching the results route
// families.
type Kind string

const (
	KindText   Kind = "text"
	KindMedia  Kind = "media"
	KindSkills Kind = "skills"
	KindBatch  Kind = "batch"
)

// Task is one unit of deferred work and its eventual result.
type Task struct {
	UUID        string     `json:"uuid"`
	Kind        Kind       `json:"kind"`
	Status      Status     `json:"status"`
	ContentType string     `json:"contentType,omitempty"`
	Result      []byte     `json:"-"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Work computes a task's result.
type Work func(ctx context.Context) ([]byte, error)

// Manager persists tasks and runs their work in the background. Completed
// results are kept for the retention window and then swept by a cron job.
type Manager struct {
	db        *sql.DB
	logger    *observability.Logger
	cron      *cron.Cron
	retention time.Duration
	timeout   time.Duration
}

// NewManager creates a task manager and ensures its table.
func NewManager(db *sql.DB, logger *observability.Logger) (*Manager, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	m := &Manager{
		db:        db,
		logger:    logger,
		cron:      cron.New(),
		retention: 24 * time.Hour,
		timeout:   10 * time.Minute,
	}
	if err := m.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure tasks table: %w", err)
	}
	if _, err := m.cron.AddFunc("@hourly", m.sweep); err != nil {
		return nil, fmt.Errorf("failed to schedule task sweep: %w", err)
	}
	return m, nil
}

func (m *Manager) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS tasks (
		uuid UUID PRIMARY KEY,
		kind VARCHAR(20) NOT NULL,
		status VARCHAR(20) NOT NULL,
		content_type VARCHAR(100) NOT NULL DEFAULT '',
		result BYTEA,
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at);
	`
	_, err := m.db.Exec(query)
	return err
}

// Start begins the background sweep schedule.
func (m *Manager) Start() {
	m.cron.Start()
}

// Stop halts the sweep schedule and waits for a running sweep to finish.
func (m *Manager) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

// Submit records a new processing task and runs its work asynchronously.
// The returned task carries the UUID the caller polls with.
func (m *Manager) Submit(ctx context.Context, kind Kind, contentType string, work Work) (*Task, error) {
	task := &Task{
		UUID:        uuid.NewString(),
		Kind:        kind,
		Status:      StatusProcessing,
		ContentType: contentType,
	}

	err := m.db.QueryRowContext(ctx, `
		INSERT INTO tasks (uuid, kind, status, content_type)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, task.UUID, task.Kind, task.Status, task.ContentType).Scan(&task.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	go m.run(task.UUID, work)

	return task, nil
}

// run executes the work detached from the submitting request's context.
func (m *Manager) run(taskUUID string, work Work) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	result, err := work(ctx)

	status := StatusReady
	errMsg := ""
	if err != nil {
		status = StatusFailed
		errMsg = err.Error()
		result = nil
		if m.logger != nil {
			m.logger.WithField("task", taskUUID).WithError(err).Warn("task failed")
		}
	}

	// The work context may already be past its deadline; the result update
	// gets its own so a timed-out task still lands as failed.
	storeCtx, storeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer storeCancel()

	_, updateErr := m.db.ExecContext(storeCtx, `
		UPDATE tasks SET status = $2, result = $3, error = $4, completed_at = NOW()
		WHERE uuid = $1
	`, taskUUID, status, result, errMsg)
	if updateErr != nil && m.logger != nil {
		m.logger.WithField("task", taskUUID).WithError(updateErr).Error("failed to store task result")
	}
}

// Get fetches a task by UUID.
func (m *Manager) Get(ctx context.Context, taskUUID string) (*Task, error) {
	var t Task
	err := m.db.QueryRowContext(ctx, `
		SELECT uuid, kind, status, content_type, result, error, created_at, completed_at
		FROM tasks WHERE uuid = $1
	`, taskUUID).Scan(
		&t.UUID, &t.Kind, &t.Status, &t.ContentType, &t.Result, &t.Error,
		&t.CreatedAt, &t.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &t, nil
}

// sweep deletes tasks past the retention window.
func (m *Manager) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := m.db.ExecContext(ctx,
		"DELETE FROM tasks WHERE created_at < NOW() - $1::interval",
		fmt.Sprintf("%d seconds", int(m.retention.Seconds())))
	if err != nil {
		if m.logger != nil {
			m.logger.WithError(err).Warn("task sweep failed")
		}
		return
	}
	if m.logger != nil {
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			m.logger.WithField("removed", n).Info("swept expired tasks")
		}
	}
}
