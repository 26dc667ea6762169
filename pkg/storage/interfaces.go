package storage

import "context"

// SkillStore is the persistence interface for skills.
type SkillStore interface {
	CreateSkill(ctx context.Context, skill *Skill) error
	GetSkill(ctx context.Context, uuid string) (*Skill, error)
	UpdateSkill(ctx context.Context, skill *Skill) error
	ListSkills(ctx context.Context, opts ListOptions) ([]*Skill, int64, error)
	// SetSkillStatus performs a lifecycle transition (publish, archive).
	SetSkillStatus(ctx context.Context, uuid string, status PublishStatus) (*Skill, error)
}

// CollectionStore is the persistence interface for collections and their
// skill membership.
type CollectionStore interface {
	CreateCollection(ctx context.Context, collection *Collection) error
	GetCollection(ctx context.Context, uuid string) (*Collection, error)
	UpdateCollection(ctx context.Context, collection *Collection) error
	ListCollections(ctx context.Context, opts ListOptions) ([]*Collection, int64, error)
	// FindCollectionByName looks up an author's collection by exact name.
	FindCollectionByName(ctx context.Context, author, name string) (*Collection, error)
	SetCollectionStatus(ctx context.Context, uuid string, status PublishStatus) (*Collection, error)

	ListCollectionSkills(ctx context.Context, uuid string, opts ListOptions) ([]*Skill, int64, error)
	// UpdateCollectionSkills adds and removes skills in one transaction.
	UpdateCollectionSkills(ctx context.Context, uuid string, add, remove []string) error
}

// Store aggregates the per-entity interfaces implemented by a backend.
type Store interface {
	SkillStore
	CollectionStore

	Ping(ctx context.Context) error
	Close() error
}
