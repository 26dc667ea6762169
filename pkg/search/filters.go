package search

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/openskills/skillhub/pkg/storage"
)

// skillSearchFilter builds the WHERE clause and ordered args for a skill
// search. The full-text match uses plainto_tsquery so raw user input cannot
// break the query syntax.
func skillSearchFilter(req Request) (string, []interface{}) {
	conditions := []string{"status != $1"}
	args := []interface{}{storage.StatusDeleted}

	if req.PublishedOnly {
		args = append(args, storage.StatusPublished)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if req.Query != "" {
		args = append(args, req.Query)
		conditions = append(conditions,
			fmt.Sprintf("to_tsvector('english', name || ' ' || statement) @@ plainto_tsquery('english', $%d)", len(args)))
	}
	if len(req.Categories) > 0 {
		args = append(args, pq.Array(req.Categories))
		conditions = append(conditions, fmt.Sprintf("category = ANY($%d)", len(args)))
	}
	if len(req.Keywords) > 0 {
		args = append(args, pq.Array(req.Keywords))
		conditions = append(conditions, fmt.Sprintf("keywords && $%d", len(args)))
	}
	if len(req.JobCodes) > 0 {
		args = append(args, pq.Array(req.JobCodes))
		conditions = append(conditions, fmt.Sprintf("job_codes && $%d", len(args)))
	}
	if len(req.Authors) > 0 {
		args = append(args, pq.Array(req.Authors))
		conditions = append(conditions, fmt.Sprintf("author = ANY($%d)", len(args)))
	}

	return strings.Join(conditions, " AND "), args
}

// skillSearchOrder ranks full-text matches by relevance; without a query the
// most recently updated skills come first.
func skillSearchOrder(req Request) string {
	if req.Query != "" {
		// The query parameter is always $2 or $3 depending on the published
		// filter; recompute its position the same way the filter does.
		pos := 2
		if req.PublishedOnly {
			pos = 3
		}
		return fmt.Sprintf(
			"ts_rank(to_tsvector('english', name || ' ' || statement), plainto_tsquery('english', $%d)) DESC, updated_at DESC",
			pos)
	}
	return "updated_at DESC"
}

func collectionSearchFilter(req Request) (string, []interface{}) {
	conditions := []string{"c.status != $1"}
	args := []interface{}{storage.StatusDeleted}

	if req.PublishedOnly {
		args = append(args, storage.StatusPublished)
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", len(args)))
	}
	if req.Query != "" {
		args = append(args, req.Query)
		conditions = append(conditions,
			fmt.Sprintf("to_tsvector('english', c.name || ' ' || c.description) @@ plainto_tsquery('english', $%d)", len(args)))
	}
	if len(req.Authors) > 0 {
		args = append(args, pq.Array(req.Authors))
		conditions = append(conditions, fmt.Sprintf("c.author = ANY($%d)", len(args)))
	}

	return strings.Join(conditions, " AND "), args
}

func collectionSearchOrder(req Request) string {
	if req.Query != "" {
		pos := 2
		if req.PublishedOnly {
			pos = 3
		}
		return fmt.Sprintf(
			"ts_rank(to_tsvector('english', c.name || ' ' || c.description), plainto_tsquery('english', $%d)) DESC, c.updated_at DESC",
			pos)
	}
	return "c.updated_at DESC"
}
