// Package search provides full-text search over skills and collections using
// PostgreSQL tsvector queries, plus type-ahead lookups for job codes and
// keywords.
package search

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openskills/skillhub/pkg/storage"
)

var searchTracer = otel.Tracer("skillhub/search/service")

// Service executes search queries against the relational store.
type Service struct {
	db *sql.DB
}

// NewService creates a search service over the given database handle.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Request is a structured search request. Advanced filters narrow the
// full-text query; empty fields are ignored.
type Request struct {
	Query      string   `json:"query,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	JobCodes   []string `json:"occupations,omitempty"`
	Authors    []string `json:"authors,omitempty"`

	Limit  int `json:"-"`
	Offset int `json:"-"`
	// PublishedOnly restricts results to published entities; anonymous
	// callers always search published content only.
	PublishedOnly bool `json:"-"`
}

func (r *Request) normalize() {
	if r.Limit <= 0 {
		r.Limit = 50
	}
	if r.Limit > 1000 {
		r.Limit = 1000
	}
}

// SearchSkills runs full-text search over skill names and statements.
func (s *Service) SearchSkills(ctx context.Context, req Request) (skills []*storage.Skill, total int64, err error) {
	ctx, span := searchTracer.Start(ctx, "SearchSkills",
		trace.WithAttributes(
			attribute.String("query", req.Query),
			attribute.Int("limit", req.Limit),
			attribute.Int("offset", req.Offset),
		),
	)
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "skill search failed")
		}
	}()

	req.normalize()
	where, args := skillSearchFilter(req)

	countQuery := "SELECT COUNT(*) FROM skills WHERE " + where
	if err = s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count search results: %w", err)
	}
	span.SetAttributes(attribute.Int64("total", total))

	query := fmt.Sprintf(`
		SELECT uuid, name, statement, author, category, keywords, job_codes, standards, status,
			created_at, updated_at, published_at, archived_at
		FROM skills
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, where, skillSearchOrder(req), len(args)+1, len(args)+2)
	args = append(args, req.Limit, req.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search skills: %w", err)
	}
	defer rows.Close()

	skills = make([]*storage.Skill, 0)
	for rows.Next() {
		var sk storage.Skill
		if err = rows.Scan(
			&sk.UUID, &sk.Name, &sk.Statement, &sk.Author, &sk.Category,
			pq.Array(&sk.Keywords), pq.Array(&sk.JobCodes), pq.Array(&sk.Standards),
			&sk.Status, &sk.CreatedAt, &sk.UpdatedAt, &sk.PublishedAt, &sk.ArchivedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan search result: %w", err)
		}
		skills = append(skills, &sk)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate search results: %w", err)
	}

	return skills, total, nil
}

// SearchCollections runs full-text search over collection names and
// descriptions.
func (s *Service) SearchCollections(ctx context.Context, req Request) (collections []*storage.Collection, total int64, err error) {
	ctx, span := searchTracer.Start(ctx, "SearchCollections",
		trace.WithAttributes(attribute.String("query", req.Query)),
	)
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "collection search failed")
		}
	}()

	req.normalize()
	where, args := collectionSearchFilter(req)

	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM collections c WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count search results: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT c.uuid, c.name, c.description, c.author, c.status,
			c.created_at, c.updated_at, c.published_at, c.archived_at,
			COUNT(cs.skill_id)
		FROM collections c
		LEFT JOIN collection_skills cs ON cs.collection_id = c.id
		WHERE %s
		GROUP BY c.id
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, where, collectionSearchOrder(req), len(args)+1, len(args)+2)
	args = append(args, req.Limit, req.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search collections: %w", err)
	}
	defer rows.Close()

	collections = make([]*storage.Collection, 0)
	for rows.Next() {
		var c storage.Collection
		if err = rows.Scan(
			&c.UUID, &c.Name, &c.Description, &c.Author, &c.Status,
			&c.CreatedAt, &c.UpdatedAt, &c.PublishedAt, &c.ArchivedAt,
			&c.SkillCount,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan search result: %w", err)
		}
		collections = append(collections, &c)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate search results: %w", err)
	}

	return collections, total, nil
}

// JobCodes returns distinct job codes matching a prefix, for type-ahead.
func (s *Service) JobCodes(ctx context.Context, prefix string, limit int) ([]string, error) {
	ctx, span := searchTracer.Start(ctx, "JobCodes")
	defer span.End()

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT code FROM (
			SELECT unnest(job_codes) AS code FROM skills WHERE status != $1
		) codes
		WHERE code LIKE $2 || '%'
		ORDER BY code
		LIMIT $3
	`, storage.StatusDeleted, prefix, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query job codes: %w", err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

// Keywords returns distinct keywords matching a prefix, for type-ahead.
func (s *Service) Keywords(ctx context.Context, prefix string, limit int) ([]string, error) {
	ctx, span := searchTracer.Start(ctx, "Keywords")
	defer span.End()

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT keyword FROM (
			SELECT unnest(keywords) AS keyword FROM skills WHERE status != $1
		) keywords
		WHERE keyword ILIKE $2 || '%'
		ORDER BY keyword
		LIMIT $3
	`, storage.StatusDeleted, prefix, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query keywords: %w", err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	out := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate values: %w", err)
	}
	return out, nil
}
