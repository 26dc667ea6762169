package postgres

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openskills/skillhub/pkg/storage"
)

func collectionRows(withCount bool) *sqlmock.Rows {
	now := time.Now()
	columns := []string{
		"uuid", "name", "description", "author", "status",
		"created_at", "updated_at", "published_at", "archived_at",
	}
	values := []driver.Value{
		"col-1", "Data Skills", "Core data competencies", "Author", "draft",
		now, now, nil, nil,
	}
	if withCount {
		columns = append(columns, "count")
		values = append(values, 3)
	}
	return sqlmock.NewRows(columns).AddRow(values...)
}

func TestCreateCollection(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery("INSERT INTO collections").
		WithArgs(sqlmock.AnyArg(), "Data Skills", "Core data competencies", "Author", storage.StatusDraft).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	collection := &storage.Collection{
		Name:        "Data Skills",
		Description: "Core data competencies",
		Author:      "Author",
	}
	require.NoError(t, store.CreateCollection(context.Background(), collection))
	assert.NotEmpty(t, collection.UUID)
	assert.Equal(t, storage.StatusDraft, collection.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCollection(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM collections c").
		WithArgs("col-1", storage.StatusDeleted).
		WillReturnRows(collectionRows(true))

	collection, err := store.GetCollection(context.Background(), "col-1")
	require.NoError(t, err)
	assert.Equal(t, "Data Skills", collection.Name)
	assert.Equal(t, 3, collection.SkillCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCollectionNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM collections c").
		WillReturnRows(sqlmock.NewRows([]string{"uuid"}))

	_, err := store.GetCollection(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFindCollectionByName(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM collections c").
		WithArgs("Author", "Data Skills", storage.StatusDeleted).
		WillReturnRows(collectionRows(true))

	collection, err := store.FindCollectionByName(context.Background(), "Author", "Data Skills")
	require.NoError(t, err)
	assert.Equal(t, "col-1", collection.UUID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindCollectionByNameNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM collections c").
		WillReturnRows(sqlmock.NewRows([]string{"uuid"}))

	_, err := store.FindCollectionByName(context.Background(), "Author", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListCollections(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(storage.StatusDeleted).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery("SELECT (.+) FROM collections c").
		WithArgs(storage.StatusDeleted, 50, 0).
		WillReturnRows(collectionRows(true))

	collections, total, err := store.ListCollections(context.Background(), storage.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
	require.Len(t, collections, 1)
	assert.Equal(t, "col-1", collections[0].UUID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetCollectionStatus(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE collections c").
		WithArgs("col-1", storage.StatusPublished, storage.StatusDeleted).
		WillReturnRows(collectionRows(false))

	collection, err := store.SetCollectionStatus(context.Background(), "col-1", storage.StatusPublished)
	require.NoError(t, err)
	assert.Equal(t, "col-1", collection.UUID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCollectionSkills(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM collections").
		WithArgs("col-1", storage.StatusDeleted).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectExec("INSERT INTO collection_skills").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM collection_skills").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE collections SET updated_at").
		WithArgs(int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.UpdateCollectionSkills(context.Background(), "col-1",
		[]string{"skill-1", "skill-2"}, []string{"skill-3"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCollectionSkillsUnknownCollection(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM collections").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := store.UpdateCollectionSkills(context.Background(), "missing", []string{"skill-1"}, nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListCollectionSkills(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id FROM collections").
		WithArgs("col-1", storage.StatusDeleted).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(int64(11), storage.StatusDeleted).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT (.+) FROM collection_skills cs").
		WithArgs(int64(11), storage.StatusDeleted, 50, 0).
		WillReturnRows(skillRows())

	skills, total, err := store.ListCollectionSkills(context.Background(), "col-1", storage.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, skills, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrefixColumns(t *testing.T) {
	assert.Equal(t, "sk.a, sk.b, sk.c", prefixColumns("a, b,\n\tc", "sk."))
}
