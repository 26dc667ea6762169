package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS tasks").
		WillReturnResult(sqlmock.NewResult(0, 0))
	m, err := NewManager(db, nil)
	require.NoError(t, err)
	return m, mock
}

func TestNewManagerRequiresDB(t *testing.T) {
	_, err := NewManager(nil, nil)
	assert.Error(t, err)
}

func TestSubmitAndComplete(t *testing.T) {
	m, mock := newTestManager(t)

	mock.ExpectQuery("INSERT INTO tasks").
		WithArgs(sqlmock.AnyArg(), KindText, StatusProcessing, "text/csv").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	done := make(chan struct{})
	mock.ExpectExec("UPDATE tasks SET status").
		WithArgs(sqlmock.AnyArg(), StatusReady, []byte("a,b,c"), "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	task, err := m.Submit(context.Background(), KindText, "text/csv", func(ctx context.Context) ([]byte, error) {
		defer close(done)
		return []byte("a,b,c"), nil
	})
	require.NoError(t, err)
	assert.NotEmpty(t, task.UUID)
	assert.Equal(t, StatusProcessing, task.Status)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task work did not run")
	}
	// Give the result update a moment to land before checking expectations.
	require.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubmitFailedWork(t *testing.T) {
	m, mock := newTestManager(t)

	mock.ExpectQuery("INSERT INTO tasks").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec("UPDATE tasks SET status").
		WithArgs(sqlmock.AnyArg(), StatusFailed, []byte(nil), "export blew up").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := m.Submit(context.Background(), KindBatch, "", func(ctx context.Context) ([]byte, error) {
		return nil, errors.New("export blew up")
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTimedOutWorkMarkedFailed(t *testing.T) {
	m, mock := newTestManager(t)
	m.timeout = 30 * time.Millisecond

	mock.ExpectQuery("INSERT INTO tasks").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec("UPDATE tasks SET status").
		WithArgs(sqlmock.AnyArg(), StatusFailed, []byte(nil), context.DeadlineExceeded.Error()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := m.Submit(context.Background(), KindText, "text/csv", func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGet(t *testing.T) {
	m, mock := newTestManager(t)
	now := time.Now()

	mock.ExpectQuery("SELECT uuid, kind, status").
		WithArgs("task-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"uuid", "kind", "status", "content_type", "result", "error", "created_at", "completed_at",
		}).AddRow("task-1", "text", "ready", "text/csv", []byte("x"), "", now, now))

	task, err := m.Get(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, KindText, task.Kind)
	assert.Equal(t, StatusReady, task.Status)
	assert.Equal(t, []byte("x"), task.Result)
}

func TestGetNotFound(t *testing.T) {
	m, mock := newTestManager(t)

	mock.ExpectQuery("SELECT uuid, kind, status").
		WillReturnRows(sqlmock.NewRows([]string{"uuid"}))

	_, err := m.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
