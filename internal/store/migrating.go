package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/oneirolabs/oneiro/internal/metrics"
)

// MigratingDreamStore wraps a DreamStore and lazily backfills it from the
// legacy document store on first access.
//
// When a user's primary list comes back empty, the legacy store is consulted
// once; any legacy dreams found are upserted into the primary store and the
// read is retried against the primary. Legacy failures never fail the read:
// the user sees their primary data (possibly empty) and migration is retried
// on a later access.
type MigratingDreamStore struct {
	DreamStore
	legacy LegacySource
	logger *slog.Logger

	// checked remembers users whose legacy data was already consulted this
	// process, so empty accounts do not query the legacy store on every list.
	checked sync.Map
}

func NewMigratingDreamStore(primary DreamStore, legacy LegacySource, logger *slog.Logger) *MigratingDreamStore {
	return &MigratingDreamStore{
		DreamStore: primary,
		legacy:     legacy,
		logger:     logger.With("component", "legacy_migration"),
	}
}

func (s *MigratingDreamStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Dream, int, error) {
	dreams, total, err := s.DreamStore.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if total > 0 {
		return dreams, total, nil
	}
	if _, done := s.checked.Load(userID); done {
		return dreams, total, nil
	}
	s.checked.Store(userID, struct{}{})

	migrated := s.migrate(ctx, userID)
	if migrated == 0 {
		return dreams, total, nil
	}
	return s.DreamStore.ListByUser(ctx, userID, limit, offset)
}

// migrate copies the user's legacy dreams into the primary store and returns
// how many were written.
func (s *MigratingDreamStore) migrate(ctx context.Context, userID string) int {
	legacyDreams, err := s.legacy.DreamsByUser(ctx, userID)
	if err != nil {
		s.logger.Warn("legacy dream fetch failed", "user_id", userID, "error", err)
		metrics.LegacyMigrations.WithLabelValues("dream", "error").Inc()
		// Allow a retry on the next access.
		s.checked.Delete(userID)
		return 0
	}
	if len(legacyDreams) == 0 {
		metrics.LegacyMigrations.WithLabelValues("dream", "empty").Inc()
		return 0
	}

	migrated := 0
	for i := range legacyDreams {
		if err := s.DreamStore.Upsert(ctx, &legacyDreams[i]); err != nil {
			s.logger.Warn("legacy dream upsert failed",
				"user_id", userID, "dream_id", legacyDreams[i].ID, "error", err)
			metrics.LegacyMigrations.WithLabelValues("dream", "error").Inc()
			continue
		}
		migrated++
	}
	if migrated > 0 {
		s.logger.Info("migrated legacy dreams", "user_id", userID, "count", migrated)
		metrics.LegacyMigrations.WithLabelValues("dream", "ok").Inc()
	}
	return migrated
}

// MigratingProfileStore wraps a ProfileStore and lazily backfills missing
// profiles from the legacy document store.
type MigratingProfileStore struct {
	ProfileStore
	legacy LegacySource
	logger *slog.Logger
}

func NewMigratingProfileStore(primary ProfileStore, legacy LegacySource, logger *slog.Logger) *MigratingProfileStore {
	return &MigratingProfileStore{
		ProfileStore: primary,
		legacy:       legacy,
		logger:       logger.With("component", "legacy_migration"),
	}
}

func (s *MigratingProfileStore) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	profile, err := s.ProfileStore.Get(ctx, userID)
	if !errors.Is(err, ErrNotFound) {
		return profile, err
	}

	legacyProfile, lerr := s.legacy.Profile(ctx, userID)
	if lerr != nil {
		if !errors.Is(lerr, ErrNotFound) {
			s.logger.Warn("legacy profile fetch failed", "user_id", userID, "error", lerr)
			metrics.LegacyMigrations.WithLabelValues("profile", "error").Inc()
		}
		return nil, err
	}

	if uerr := s.ProfileStore.Upsert(ctx, legacyProfile); uerr != nil {
		s.logger.Warn("legacy profile upsert failed", "user_id", userID, "error", uerr)
		metrics.LegacyMigrations.WithLabelValues("profile", "error").Inc()
		return nil, err
	}

	s.logger.Info("migrated legacy profile", "user_id", userID, "tier", legacyProfile.Tier)
	metrics.LegacyMigrations.WithLabelValues("profile", "ok").Inc()
	return s.ProfileStore.Get(ctx, userID)
}
