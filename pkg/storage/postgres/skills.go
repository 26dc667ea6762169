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

// skillSortColumns maps exposed sort keys to ORDER BY clauses. Anything not
// in this map falls back to the default ordering; caller input never reaches
// the SQL text directly.
var skillSortColumns = map[string]string{
	"name.asc":   "name ASC",
	"name.desc":  "name DESC",
	"skill.asc":  "name ASC",
	"skill.desc": "name DESC",
}

const defaultSkillOrder = "updated_at DESC"

const skillColumns = `uuid, name, statement, author, category, keywords, job_codes, standards, status,
	created_at, updated_at, published_at, archived_at`

func scanSkill(row interface{ Scan(...interface{}) error }) (*storage.Skill, error) {
	var s storage.Skill
	err := row.Scan(
		&s.UUID, &s.Name, &s.Statement, &s.Author, &s.Category,
		pq.Array(&s.Keywords), pq.Array(&s.JobCodes), pq.Array(&s.Standards),
		&s.Status, &s.CreatedAt, &s.UpdatedAt, &s.PublishedAt, &s.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSkill inserts a new draft skill. A missing UUID is generated.
func (s *Store) CreateSkill(ctx context.Context, skill *storage.Skill) (err error) {
	defer func(start time.Time) { s.observe("skill_create", start, err) }(time.Now())

	if skill.UUID == "" {
		skill.UUID = uuid.NewString()
	}
	if skill.Status == "" {
		skill.Status = storage.StatusDraft
	}

	query := `
		INSERT INTO skills (uuid, name, statement, author, category, keywords, job_codes, standards, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query,
		skill.UUID, skill.Name, skill.Statement, skill.Author, skill.Category,
		pq.Array(skill.Keywords), pq.Array(skill.JobCodes), pq.Array(skill.Standards),
		skill.Status,
	).Scan(&skill.CreatedAt, &skill.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create skill: %w", err)
	}

	return nil
}

// GetSkill fetches a skill by UUID, consulting the cache first.
func (s *Store) GetSkill(ctx context.Context, id string) (skill *storage.Skill, err error) {
	defer func(start time.Time) { s.observe("skill_get", start, err) }(time.Now())

	if s.cache != nil {
		if cached, cacheErr := s.cache.GetSkill(ctx, id); cacheErr == nil && cached != nil {
			return cached, nil
		}
	}

	query := fmt.Sprintf("SELECT %s FROM skills WHERE uuid = $1 AND status != $2", skillColumns)
	skill, err = scanSkill(s.db.QueryRowContext(ctx, query, id, storage.StatusDeleted))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get skill: %w", err)
	}

	if s.cache != nil {
		s.cache.SetSkill(ctx, skill)
	}
	return skill, nil
}

// UpdateSkill overwrites the mutable fields of an existing skill.
func (s *Store) UpdateSkill(ctx context.Context, skill *storage.Skill) (err error) {
	defer func(start time.Time) { s.observe("skill_update", start, err) }(time.Now())

	query := `
		UPDATE skills
		SET name = $2, statement = $3, author = $4, category = $5,
			keywords = $6, job_codes = $7, standards = $8, updated_at = NOW()
		WHERE uuid = $1 AND status != $9
		RETURNING created_at, updated_at, status
	`
	err = s.db.QueryRowContext(ctx, query,
		skill.UUID, skill.Name, skill.Statement, skill.Author, skill.Category,
		pq.Array(skill.Keywords), pq.Array(skill.JobCodes), pq.Array(skill.Standards),
		storage.StatusDeleted,
	).Scan(&skill.CreatedAt, &skill.UpdatedAt, &skill.Status)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update skill: %w", err)
	}

	if s.cache != nil {
		s.cache.InvalidateSkill(ctx, skill.UUID)
	}
	return nil
}

// ListSkills returns one page of skills plus the unpaginated total.
func (s *Store) ListSkills(ctx context.Context, opts storage.ListOptions) (skills []*storage.Skill, total int64, err error) {
	defer func(start time.Time) { s.observe("skill_list", start, err) }(time.Now())

	where, args := skillFilter(opts)

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM skills WHERE "+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count skills: %w", err)
	}

	order := defaultSkillOrder
	if o, ok := skillSortColumns[opts.Sort]; ok {
		order = o
	}
	query := fmt.Sprintf("SELECT %s FROM skills WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d",
		skillColumns, where, order, len(args)+1, len(args)+2)
	args = append(args, pageLimit(opts.Limit), opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list skills: %w", err)
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
		return nil, 0, fmt.Errorf("failed to iterate skills: %w", err)
	}

	return skills, total, nil
}

// SetSkillStatus transitions a skill's lifecycle state, stamping the
// corresponding timestamp.
func (s *Store) SetSkillStatus(ctx context.Context, id string, status storage.PublishStatus) (skill *storage.Skill, err error) {
	defer func(start time.Time) { s.observe("skill_set_status", start, err) }(time.Now())

	if !status.Valid() {
		return nil, fmt.Errorf("invalid status: %q", status)
	}

	query := fmt.Sprintf(`
		UPDATE skills
		SET status = $2,
			published_at = CASE WHEN $2 = 'published' THEN NOW() ELSE published_at END,
			archived_at = CASE WHEN $2 = 'archived' THEN NOW() ELSE archived_at END,
			updated_at = NOW()
		WHERE uuid = $1 AND status != $3
		RETURNING %s
	`, skillColumns)

	skill, err = scanSkill(s.db.QueryRowContext(ctx, query, id, status, storage.StatusDeleted))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set skill status: %w", err)
	}

	if s.cache != nil {
		s.cache.InvalidateSkill(ctx, id)
	}
	return skill, nil
}

// skillFilter builds the WHERE clause for list queries.
func skillFilter(opts storage.ListOptions) (string, []interface{}) {
	if len(opts.Statuses) == 0 {
		return "status != $1", []interface{}{storage.StatusDeleted}
	}

	placeholders := make([]string, len(opts.Statuses))
	args := make([]interface{}, len(opts.Statuses))
	for i, st := range opts.Statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = st
	}
	return "status IN (" + strings.Join(placeholders, ", ") + ")", args
}

func pageLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
