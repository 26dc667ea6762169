// Package storage defines the persistence model and store interfaces for
// skills and collections. Implementations live in subpackages.
package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when the requested entity does not exist or has
// been soft-deleted.
var ErrNotFound = errors.New("not found")

// PublishStatus is the lifecycle state of a skill or collection.
type PublishStatus string

const (
	StatusDraft     PublishStatus = "draft"
	StatusPublished PublishStatus = "published"
	StatusArchived  PublishStatus = "archived"
	StatusDeleted   PublishStatus = "deleted"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s PublishStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived, StatusDeleted:
		return true
	default:
		return false
	}
}

// Skill is a rich skill descriptor: a competency statement plus its
// categorization and alignment metadata.
type Skill struct {
	UUID      string        `json:"uuid"`
	Name      string        `json:"skillName"`
	Statement string        `json:"skillStatement"`
	Author    string        `json:"author,omitempty"`
	Category  string        `json:"category,omitempty"`
	Keywords  []string      `json:"keywords,omitempty"`
	JobCodes  []string      `json:"occupations,omitempty"`
	Standards []string      `json:"standards,omitempty"`
	Status    PublishStatus `json:"status"`

	CreatedAt   time.Time  `json:"creationDate"`
	UpdatedAt   time.Time  `json:"updateDate"`
	PublishedAt *time.Time `json:"publishDate,omitempty"`
	ArchivedAt  *time.Time `json:"archiveDate,omitempty"`
}

// Collection is a curated, shareable group of skills.
type Collection struct {
	UUID        string        `json:"uuid"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Author      string        `json:"author,omitempty"`
	Status      PublishStatus `json:"status"`
	SkillCount  int           `json:"skillCount"`

	CreatedAt   time.Time  `json:"creationDate"`
	UpdatedAt   time.Time  `json:"updateDate"`
	PublishedAt *time.Time `json:"publishDate,omitempty"`
	ArchivedAt  *time.Time `json:"archiveDate,omitempty"`
}

// ListOptions controls pagination and filtering for list queries.
type ListOptions struct {
	Limit  int
	Offset int
	// Sort is a known sort key such as "name.asc" or "skill.desc"; stores
	// translate it to an ORDER BY clause from a fixed map, never by
	// interpolating caller input.
	Sort string
	// Statuses filters by lifecycle state; empty means all non-deleted.
	Statuses []PublishStatus
}
