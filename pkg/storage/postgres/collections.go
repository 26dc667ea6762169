package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/openskills/skillhub/pkg/storage"
)

var collectionSortColumns = map[string]string{
	"name.asc":  "c.name ASC",
	"name.desc": "c.name DESC",
}

const defaultCollectionOrder = "c.updated_at DESC"

const collectionColumns = `c.uuid, c.name, c.description, c.author, c.status,
	c.created_at, c.updated_at, c.published_at, c.archived_at`

func scanCollection(row interface{ Scan(...interface{}) error }, withCount bool) (*storage.Collection, error) {
	var c storage.Collection
	dest := []interface{}{
		&c.UUID, &c.Name, &c.Description, &c.Author, &c.Status,
		&c.CreatedAt, &c.UpdatedAt, &c.PublishedAt, &c.ArchivedAt,
	}
	if withCount {
		dest = append(dest, &c.SkillCount)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCollection inserts a new draft collection.
func (s *Store) CreateCollection(ctx context.Context, collection *storage.Collection) (err error) {
	defer func(start time.Time) { s.observe("collection_create", start, err) }(time.Now())

	if collection.UUID == "" {
		collection.UUID = uuid.NewString()
	}
	if collection.Status == "" {
		collection.Status = storage.StatusDraft
	}

	query := `
		INSERT INTO collections (uuid, name, description, author, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query,
		collection.UUID, collection.Name, collection.Description, collection.Author, collection.Status,
	).Scan(&collection.CreatedAt, &collection.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

// GetCollection fetches a collection by UUID including its skill count.
func (s *Store) GetCollection(ctx context.Context, id string) (collection *storage.Collection, err error) {
	defer func(start time.Time) { s.observe("collection_get", start, err) }(time.Now())

	query := fmt.Sprintf(`
		SELECT %s, COUNT(cs.skill_id)
		FROM collections c
		LEFT JOIN collection_skills cs ON cs.collection_id = c.id
		WHERE c.uuid = $1 AND c.status != $2
		GROUP BY c.id
	`, collectionColumns)

	collection, err = scanCollection(s.db.QueryRowContext(ctx, query, id, storage.StatusDeleted), true)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return collection, nil
}

// FindCollectionByName fetches an author's collection by exact name. The
// oldest match wins when duplicates exist.
func (s *Store) FindCollectionByName(ctx context.Context, author, name string) (collection *storage.Collection, err error) {
	defer func(start time.Time) { s.observe("collection_find", start, err) }(time.Now())

	query := fmt.Sprintf(`
		SELECT %s, COUNT(cs.skill_id)
		FROM collections c
		LEFT JOIN collection_skills cs ON cs.collection_id = c.id
		WHERE c.author = $1 AND c.name = $2 AND c.status != $3
		GROUP BY c.id
		ORDER BY c.created_at
		LIMIT 1
	`, collectionColumns)

	collection, err = scanCollection(s.db.QueryRowContext(ctx, query, author, name, storage.StatusDeleted), true)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find collection: %w", err)
	}
	return collection, nil
}

// UpdateCollection overwrites the mutable fields of an existing collection.
func (s *Store) UpdateCollection(ctx context.Context, collection *storage.Collection) (err error) {
	defer func(start time.Time) { s.observe("collection_update", start, err) }(time.Now())

	query := `
		UPDATE collections
		SET name = $2, description = $3, author = $4, updated_at = NOW()
		WHERE uuid = $1 AND status != $5
		RETURNING created_at, updated_at, status
	`
	err = s.db.QueryRowContext(ctx, query,
		collection.UUID, collection.Name, collection.Description, collection.Author,
		storage.StatusDeleted,
	).Scan(&collection.CreatedAt, &collection.UpdatedAt, &collection.Status)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}
	return nil
}

// ListCollections returns one page of collections plus the unpaginated total.
func (s *Store) ListCollections(ctx context.Context, opts storage.ListOptions) (collections []*storage.Collection, total int64, err error) {
	defer func(start time.Time) { s.observe("collection_list", start, err) }(time.Now())

	where, args := skillFilter(opts) // same status filter shape
	where = "c." + where

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM collections c WHERE "+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count collections: %w", err)
	}

	order := defaultCollectionOrder
	if o, ok := collectionSortColumns[opts.Sort]; ok {
		order = o
	}
	query := fmt.Sprintf(`
		SELECT %s, COUNT(cs.skill_id)
		FROM collections c
		LEFT JOIN collection_skills cs ON cs.collection_id = c.id
		WHERE %s
		GROUP BY c.id
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, collectionColumns, where, order, len(args)+1, len(args)+2)
	args = append(args, pageLimit(opts.Limit), opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	collections = make([]*storage.Collection, 0)
	for rows.Next() {
		collection, scanErr := scanCollection(rows, true)
		if scanErr != nil {
			return nil, 0, fmt.Errorf("failed to scan collection: %w", scanErr)
		}
		collections = append(collections, collection)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate collections: %w", err)
	}

	return collections, total, nil
}

// SetCollectionStatus transitions a collection's lifecycle state. Deleting a
// collection never deletes its skills; membership rows cascade away while the
// skills themselves survive.
func (s *Store) SetCollectionStatus(ctx context.Context, id string, status storage.PublishStatus) (collection *storage.Collection, err error) {
	defer func(start time.Time) { s.observe("collection_set_status", start, err) }(time.Now())

	if !status.Valid() {
		return nil, fmt.Errorf("invalid status: %q", status)
	}

	query := fmt.Sprintf(`
		UPDATE collections c
		SET status = $2,
			published_at = CASE WHEN $2 = 'published' THEN NOW() ELSE published_at END,
			archived_at = CASE WHEN $2 = 'archived' THEN NOW() ELSE archived_at END,
			updated_at = NOW()
		WHERE c.uuid = $1 AND c.status != $3
		RETURNING %s
	`, collectionColumns)

	collection, err = scanCollection(s.db.QueryRowContext(ctx, query, id, status, storage.StatusDeleted), false)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set collection status: %w", err)
	}
	return collection, nil
}

// ListCollectionSkills returns one page of a collection's member skills.
func (s *Store) ListCollectionSkills(ctx context.Context, id string, opts storage.ListOptions) (skills []*storage.Skill, total int64, err error) {
	defer func(start time.Time) { s.observe("collection_skills_list", start, err) }(time.Now())

	var collectionID int64
	err = s.db.QueryRowContext(ctx,
		"SELECT id FROM collections WHERE uuid = $1 AND status != $2", id, storage.StatusDeleted,
	).Scan(&collectionID)
	if err == sql.ErrNoRows {
		return nil, 0, storage.ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to resolve collection: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM collection_skills cs
		JOIN skills sk ON sk.id = cs.skill_id
		WHERE cs.collection_id = $1 AND sk.status != $2
	`, collectionID, storage.StatusDeleted).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count collection skills: %w", err)
	}

	order := defaultSkillOrder
	if o, ok := skillSortColumns[opts.Sort]; ok {
		order = o
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM collection_skills cs
		JOIN skills sk ON sk.id = cs.skill_id
		WHERE cs.collection_id = $1 AND sk.status != $2
		ORDER BY sk.%s
		LIMIT $3 OFFSET $4
	`, prefixColumns(skillColumns, "sk."), order)

	rows, err := s.db.QueryContext(ctx, query,
		collectionID, storage.StatusDeleted, pageLimit(opts.Limit), opts.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list collection skills: %w", err)
	}
	defer rows.Close()

	skills = make([]*storage.Skill, 0)
	for rows.Next() {
		skill, scanErr := scanSkill(rows)
		if scanErr != nil {
			return nil, 0, fmt.Errorf("failed to scan skill: %w", scanErr)
		}
		skills = append(skills, skill)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate collection skills: %w", err)
	}

	return skills, total, nil
}

// UpdateCollectionSkills adds and removes member skills in one transaction.
// Unknown skill UUIDs in either list are ignored rather than failing the
// whole batch.
func (s *Store) UpdateCollectionSkills(ctx context.Context, id string, add, remove []string) (err error) {
	defer func(start time.Time) { s.observe("collection_skills_update", start, err) }(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var collectionID int64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM collections WHERE uuid = $1 AND status != $2", id, storage.StatusDeleted,
	).Scan(&collectionID)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to resolve collection: %w", err)
	}

	if len(add) > 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO collection_skills (collection_id, skill_id)
			SELECT $1, id FROM skills WHERE uuid = ANY($2) AND status != $3
			ON CONFLICT DO NOTHING
		`, collectionID, pq.Array(add), storage.StatusDeleted)
		if err != nil {
			return fmt.Errorf("failed to add collection skills: %w", err)
		}
	}

	if len(remove) > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM collection_skills
			WHERE collection_id = $1
			  AND skill_id IN (SELECT id FROM skills WHERE uuid = ANY($2))
		`, collectionID, pq.Array(remove))
		if err != nil {
			return fmt.Errorf("failed to remove collection skills: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, "UPDATE collections SET updated_at = NOW() WHERE id = $1", collectionID)
	if err != nil {
		return fmt.Errorf("failed to touch collection: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// prefixColumns qualifies a comma-separated column list with a table alias.
func prefixColumns(columns, prefix string) string {
	cols := strings.Split(columns, ",")
	for i, col := range cols {
		cols[i] = prefix + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}
