//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/openskills/skillhub/pkg/storage"
)

func setupIntegrationDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("skillhub_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	require.NoError(t, Migrate(ctx, db))

	t.Cleanup(func() {
		db.Close()
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return db
}

func TestSkillLifecycleIntegration(t *testing.T) {
	db := setupIntegrationDB(t)
	store := NewWithDB(db, nil, nil)
	ctx := context.Background()

	skill := &storage.Skill{
		Name:      "Data Modeling",
		Statement: "Design normalized relational schemas",
		Keywords:  []string{"data", "sql"},
		JobCodes:  []string{"15-1243"},
	}
	require.NoError(t, store.CreateSkill(ctx, skill))
	require.NotEmpty(t, skill.UUID)

	got, err := store.GetSkill(ctx, skill.UUID)
	require.NoError(t, err)
	assert.Equal(t, skill.Name, got.Name)
	assert.Equal(t, storage.StatusDraft, got.Status)

	published, err := store.SetSkillStatus(ctx, skill.UUID, storage.StatusPublished)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusPublished, published.Status)
	assert.NotNil(t, published.PublishedAt)

	skills, total, err := store.ListSkills(ctx, storage.ListOptions{
		Statuses: []storage.PublishStatus{storage.StatusPublished},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, skills, 1)
}

func TestCollectionMembershipIntegration(t *testing.T) {
	db := setupIntegrationDB(t)
	store := NewWithDB(db, nil, nil)
	ctx := context.Background()

	var skillUUIDs []string
	for _, name := range []string{"Skill A", "Skill B", "Skill C"} {
		skill := &storage.Skill{Name: name, Statement: name + " statement"}
		require.NoError(t, store.CreateSkill(ctx, skill))
		skillUUIDs = append(skillUUIDs, skill.UUID)
	}

	collection := &storage.Collection{Name: "Core", Description: "Core skills"}
	require.NoError(t, store.CreateCollection(ctx, collection))

	require.NoError(t, store.UpdateCollectionSkills(ctx, collection.UUID, skillUUIDs, nil))

	got, err := store.GetCollection(ctx, collection.UUID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.SkillCount)

	require.NoError(t, store.UpdateCollectionSkills(ctx, collection.UUID, nil, skillUUIDs[:1]))

	members, total, err := store.ListCollectionSkills(ctx, collection.UUID, storage.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, members, 2)

	// Removing the collection leaves its skills intact.
	_, err = store.SetCollectionStatus(ctx, collection.UUID, storage.StatusDeleted)
	require.NoError(t, err)
	_, err = store.GetCollection(ctx, collection.UUID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	for _, id := range skillUUIDs {
		_, err := store.GetSkill(ctx, id)
		assert.NoError(t, err)
	}
}
