package store

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneirolabs/oneiro/internal/domain"
)

// memDreamStore is an in-memory DreamStore for exercising the migrating
// wrapper without a database.
type memDreamStore struct {
	dreams map[uuid.UUID]domain.Dream
	lists  int
}

func newMemDreamStore() *memDreamStore {
	return &memDreamStore{dreams: make(map[uuid.UUID]domain.Dream)}
}

func (m *memDreamStore) Create(ctx context.Context, params domain.CreateDreamParams) (*domain.Dream, error) {
	d := domain.Dream{
		ID:          uuid.New(),
		UserID:      params.UserID,
		Title:       params.Title,
		Description: params.Description,
		Tags:        params.Tags,
		CreatedAt:   time.Now(),
	}
	m.dreams[d.ID] = d
	return &d, nil
}

func (m *memDreamStore) GetByID(ctx context.Context, userID string, id uuid.UUID) (*domain.Dream, error) {
	d, ok := m.dreams[id]
	if !ok || d.UserID != userID {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (m *memDreamStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Dream, int, error) {
	m.lists++
	var out []domain.Dream
	for _, d := range m.dreams {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if offset < len(out) {
		out = out[offset:]
	} else {
		out = nil
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *memDreamStore) Update(ctx context.Context, userID string, id uuid.UUID, params domain.UpdateDreamParams) (*domain.Dream, error) {
	d, ok := m.dreams[id]
	if !ok || d.UserID != userID {
		return nil, ErrNotFound
	}
	if params.Title != nil {
		d.Title = *params.Title
	}
	if params.Description != nil {
		d.Description = *params.Description
	}
	if params.Tags != nil {
		d.Tags = params.Tags
	}
	m.dreams[id] = d
	return &d, nil
}

func (m *memDreamStore) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	d, ok := m.dreams[id]
	if !ok || d.UserID != userID {
		return ErrNotFound
	}
	delete(m.dreams, id)
	return nil
}

func (m *memDreamStore) AttachAssets(ctx context.Context, userID string, id uuid.UUID, assets AssetUpdate) error {
	d, ok := m.dreams[id]
	if !ok || d.UserID != userID {
		return ErrNotFound
	}
	if assets.ImageURL != nil {
		d.ImageURL = *assets.ImageURL
	}
	if assets.VideoURL != nil {
		d.VideoURL = *assets.VideoURL
	}
	if assets.Interpretation != nil {
		d.Interpretation = *assets.Interpretation
	}
	m.dreams[id] = d
	return nil
}

func (m *memDreamStore) Upsert(ctx context.Context, dream *domain.Dream) error {
	m.dreams[dream.ID] = *dream
	return nil
}

// fakeLegacy is a canned LegacySource with call counting.
type fakeLegacy struct {
	dreams    map[string][]domain.Dream
	profiles  map[string]*domain.UserProfile
	err       error
	dreamGets int
}

func (f *fakeLegacy) DreamsByUser(ctx context.Context, userID string) ([]domain.Dream, error) {
	f.dreamGets++
	if f.err != nil {
		return nil, f.err
	}
	return f.dreams[userID], nil
}

func (f *fakeLegacy) Profile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func legacyDreamsFor(userID string, n int) []domain.Dream {
	dreams := make([]domain.Dream, n)
	for i := range dreams {
		dreams[i] = domain.Dream{
			ID:        uuid.New(),
			UserID:    userID,
			Title:     "legacy dream",
			CreatedAt: time.Now().Add(-time.Duration(i) * time.Hour),
		}
	}
	return dreams
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestMigratingDreamStore_BackfillsFromLegacy(t *testing.T) {
	primary := newMemDreamStore()
	legacy := &fakeLegacy{dreams: map[string][]domain.Dream{
		"user-1": legacyDreamsFor("user-1", 3),
	}}
	s := NewMigratingDreamStore(primary, legacy, testLogger())

	dreams, total, err := s.ListByUser(context.Background(), "user-1", 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, dreams, 3)
	assert.Equal(t, 1, legacy.dreamGets)

	// The backfilled dreams are now in the primary store.
	assert.Len(t, primary.dreams, 3)
}

func TestMigratingDreamStore_SecondReadSkipsLegacy(t *testing.T) {
	primary := newMemDreamStore()
	legacy := &fakeLegacy{dreams: map[string][]domain.Dream{
		"user-1": legacyDreamsFor("user-1", 2),
	}}
	s := NewMigratingDreamStore(primary, legacy, testLogger())

	_, _, err := s.ListByUser(context.Background(), "user-1", 50, 0)
	require.NoError(t, err)
	_, total, err := s.ListByUser(context.Background(), "user-1", 50, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, total)
	assert.Equal(t, 1, legacy.dreamGets, "legacy store consulted once")
}

func TestMigratingDreamStore_PrimaryDataSkipsLegacy(t *testing.T) {
	primary := newMemDreamStore()
	_, err := primary.Create(context.Background(), domain.CreateDreamParams{
		UserID: "user-1", Title: "already migrated",
	})
	require.NoError(t, err)

	legacy := &fakeLegacy{dreams: map[string][]domain.Dream{
		"user-1": legacyDreamsFor("user-1", 5),
	}}
	s := NewMigratingDreamStore(primary, legacy, testLogger())

	_, total, err := s.ListByUser(context.Background(), "user-1", 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Zero(t, legacy.dreamGets)
}

func TestMigratingDreamStore_LegacyFailureDoesNotFailRead(t *testing.T) {
	primary := newMemDreamStore()
	legacy := &fakeLegacy{err: errors.New("firestore unavailable")}
	s := NewMigratingDreamStore(primary, legacy, testLogger())

	dreams, total, err := s.ListByUser(context.Background(), "user-1", 50, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, dreams)

	// A failed migration is retried on the next access.
	legacy.err = nil
	legacy.dreams = map[string][]domain.Dream{"user-1": legacyDreamsFor("user-1", 1)}
	_, total, err = s.ListByUser(context.Background(), "user-1", 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestMigratingDreamStore_EmptyLegacyCheckedOnce(t *testing.T) {
	primary := newMemDreamStore()
	legacy := &fakeLegacy{}
	s := NewMigratingDreamStore(primary, legacy, testLogger())

	for i := 0; i < 3; i++ {
		_, _, err := s.ListByUser(context.Background(), "new-user", 50, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, legacy.dreamGets)
}

// memProfileStore implements just enough of ProfileStore for the migrating
// wrapper tests. The embedded interface is never invoked.
type memProfileStore struct {
	ProfileStore
	profiles map[string]*domain.UserProfile
}

func (m *memProfileStore) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProfileStore) Upsert(ctx context.Context, p *domain.UserProfile) error {
	cp := *p
	m.profiles[p.UserID] = &cp
	return nil
}

func TestMigratingProfileStore_BackfillsMissingProfile(t *testing.T) {
	primary := &memProfileStore{profiles: map[string]*domain.UserProfile{}}
	legacy := &fakeLegacy{profiles: map[string]*domain.UserProfile{
		"user-1": {UserID: "user-1", Tier: domain.TierPro, DreamsAnalyzedTotal: 7},
	}}
	s := NewMigratingProfileStore(primary, legacy, testLogger())

	p, err := s.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TierPro, p.Tier)
	assert.Equal(t, 7, p.DreamsAnalyzedTotal)

	// And it is now persisted in the primary.
	_, err = primary.Get(context.Background(), "user-1")
	require.NoError(t, err)
}

func TestMigratingProfileStore_MissingEverywhere(t *testing.T) {
	primary := &memProfileStore{profiles: map[string]*domain.UserProfile{}}
	legacy := &fakeLegacy{profiles: map[string]*domain.UserProfile{}}
	s := NewMigratingProfileStore(primary, legacy, testLogger())

	_, err := s.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMigratingProfileStore_LegacyErrorReturnsNotFound(t *testing.T) {
	primary := &memProfileStore{profiles: map[string]*domain.UserProfile{}}
	legacy := &fakeLegacy{err: errors.New("firestore unavailable")}
	s := NewMigratingProfileStore(primary, legacy, testLogger())

	_, err := s.Get(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
