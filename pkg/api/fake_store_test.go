package api

import (
	"context"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/openskills/skillhub/pkg/audit"
	"github.com/openskills/skillhub/pkg/observability"
	"github.com/openskills/skillhub/pkg/storage"
)

// fakeStore is an in-memory storage.Store for handler tests.
type fakeStore struct {
	mu          sync.Mutex
	skills      map[string]*storage.Skill
	collections map[string]*storage.Collection
	members     map[string]map[string]bool
	err         error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		skills:      map[string]*storage.Skill{},
		collections: map[string]*storage.Collection{},
		members:     map[string]map[string]bool{},
	}
}

func (f *fakeStore) addSkill(s *storage.Skill) *storage.Skill {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.UUID == "" {
		s.UUID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = storage.StatusDraft
	}
	f.skills[s.UUID] = s
	return s
}

func (f *fakeStore) addCollection(c *storage.Collection) *storage.Collection {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.UUID == "" {
		c.UUID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = storage.StatusDraft
	}
	f.collections[c.UUID] = c
	f.members[c.UUID] = map[string]bool{}
	return c
}

func (f *fakeStore) CreateSkill(ctx context.Context, skill *storage.Skill) error {
	if f.err != nil {
		return f.err
	}
	now := time.Now()
	skill.CreatedAt = now
	skill.UpdatedAt = now
	if skill.Status == "" {
		skill.Status = storage.StatusDraft
	}
	f.addSkill(skill)
	return nil
}

func (f *fakeStore) GetSkill(ctx context.Context, id string) (*storage.Skill, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.skills[id]
	if !ok || s.Status == storage.StatusDeleted {
		return nil, storage.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) UpdateSkill(ctx context.Context, skill *storage.Skill) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.skills[skill.UUID]
	if !ok || existing.Status == storage.StatusDeleted {
		return storage.ErrNotFound
	}
	skill.Status = existing.Status
	skill.CreatedAt = existing.CreatedAt
	skill.UpdatedAt = time.Now()
	f.skills[skill.UUID] = skill
	return nil
}

func (f *fakeStore) ListSkills(ctx context.Context, opts storage.ListOptions) ([]*storage.Skill, int64, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	matched := make([]*storage.Skill, 0)
	for _, s := range f.skills {
		if statusMatches(s.Status, opts.Statuses) {
			matched = append(matched, s)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return pageSkills(matched, opts), int64(len(matched)), nil
}

func (f *fakeStore) SetSkillStatus(ctx context.Context, id string, status storage.PublishStatus) (*storage.Skill, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.skills[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	s.Status = status
	return s, nil
}

func (f *fakeStore) CreateCollection(ctx context.Context, collection *storage.Collection) error {
	if f.err != nil {
		return f.err
	}
	now := time.Now()
	collection.CreatedAt = now
	collection.UpdatedAt = now
	if collection.Status == "" {
		collection.Status = storage.StatusDraft
	}
	f.addCollection(collection)
	return nil
}

func (f *fakeStore) GetCollection(ctx context.Context, id string) (*storage.Collection, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.collections[id]
	if !ok || c.Status == storage.StatusDeleted {
		return nil, storage.ErrNotFound
	}
	c.SkillCount = len(f.members[id])
	return c, nil
}

func (f *fakeStore) UpdateCollection(ctx context.Context, collection *storage.Collection) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.collections[collection.UUID]
	if !ok || existing.Status == storage.StatusDeleted {
		return storage.ErrNotFound
	}
	collection.Status = existing.Status
	collection.CreatedAt = existing.CreatedAt
	collection.UpdatedAt = time.Now()
	f.collections[collection.UUID] = collection
	return nil
}

func (f *fakeStore) ListCollections(ctx context.Context, opts storage.ListOptions) ([]*storage.Collection, int64, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	matched := make([]*storage.Collection, 0)
	for _, c := range f.collections {
		if statusMatches(c.Status, opts.Statuses) {
			matched = append(matched, c)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return matched, int64(len(matched)), nil
}

func (f *fakeStore) FindCollectionByName(ctx context.Context, author, name string) (*storage.Collection, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.collections {
		if c.Author == author && c.Name == name && c.Status != storage.StatusDeleted {
			return c, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) SetCollectionStatus(ctx context.Context, id string, status storage.PublishStatus) (*storage.Collection, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.collections[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c.Status = status
	return c, nil
}

func (f *fakeStore) ListCollectionSkills(ctx context.Context, id string, opts storage.ListOptions) ([]*storage.Skill, int64, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collections[id]; !ok {
		return nil, 0, storage.ErrNotFound
	}
	matched := make([]*storage.Skill, 0)
	for skillID := range f.members[id] {
		if s, ok := f.skills[skillID]; ok && s.Status != storage.StatusDeleted {
			matched = append(matched, s)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return pageSkills(matched, opts), int64(len(matched)), nil
}

func (f *fakeStore) UpdateCollectionSkills(ctx context.Context, id string, add, remove []string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collections[id]; !ok {
		return storage.ErrNotFound
	}
	for _, skillID := range add {
		if _, ok := f.skills[skillID]; ok {
			f.members[id][skillID] = true
		}
	}
	for _, skillID := range remove {
		delete(f.members[id], skillID)
	}
	return nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.err }
func (f *fakeStore) Close() error                   { return nil }

func statusMatches(status storage.PublishStatus, filter []storage.PublishStatus) bool {
	if len(filter) == 0 {
		return status != storage.StatusDeleted
	}
	for _, s := range filter {
		if s == status {
			return true
		}
	}
	return false
}

func pageSkills(skills []*storage.Skill, opts storage.ListOptions) []*storage.Skill {
	if opts.Offset >= len(skills) {
		return []*storage.Skill{}
	}
	skills = skills[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(skills) {
		skills = skills[:opts.Limit]
	}
	return skills
}

func newTestLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

// newTestAudit builds an audit logger over sqlmock with the table bootstrap
// already expected.
func newTestAudit(t *testing.T) (*audit.Logger, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_log").
		WillReturnResult(sqlmock.NewResult(0, 0))

	logger, err := audit.NewLogger(db)
	require.NoError(t, err)
	return logger, mock
}

func expectAuditRecord(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("INSERT INTO audit_log").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, time.Now()))
}
