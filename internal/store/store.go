// Package store provides persistence for dreams, profiles, credits,
// reflection sessions and video jobs.
//
// The primary implementations are backed by Postgres. A read-only legacy
// source backed by Firestore remains available for accounts that have not
// yet been migrated; see MigratingDreamStore.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/oneirolabs/oneiro/internal/domain"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInsufficientCredits indicates a credit consume would go negative.
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// DreamStore persists dream entries.
type DreamStore interface {
	Create(ctx context.Context, params domain.CreateDreamParams) (*domain.Dream, error)
	GetByID(ctx context.Context, userID string, id uuid.UUID) (*domain.Dream, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Dream, int, error)
	Update(ctx context.Context, userID string, id uuid.UUID, params domain.UpdateDreamParams) (*domain.Dream, error)
	Delete(ctx context.Context, userID string, id uuid.UUID) error

	// AttachAssets sets generated asset fields. Nil pointers leave the
	// stored value untouched.
	AttachAssets(ctx context.Context, userID string, id uuid.UUID, assets AssetUpdate) error

	// Upsert writes a complete dream record preserving its ID and
	// timestamps. Used when migrating legacy data.
	Upsert(ctx context.Context, dream *domain.Dream) error
}

// AssetUpdate carries generated asset fields to attach to a dream.
type AssetUpdate struct {
	ImageURL       *string
	ThumbnailURL   *string
	VideoURL       *string
	AudioURL       *string
	Interpretation *string
}

// ProfileStore persists user profiles and usage counters.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*domain.UserProfile, error)
	Upsert(ctx context.Context, profile *domain.UserProfile) error
	SetTier(ctx context.Context, userID string, tier domain.Tier) error

	// GetByStripeCustomer looks a profile up by its Stripe customer ID,
	// used when resolving webhook events.
	GetByStripeCustomer(ctx context.Context, customerID string) (*domain.UserProfile, error)
	SetStripeCustomer(ctx context.Context, userID, customerID string) error

	// IncrementDreamAnalyses bumps both the monthly and lifetime analysis
	// counters in a single statement.
	IncrementDreamAnalyses(ctx context.Context, userID string) error
	IncrementVideoCount(ctx context.Context, userID string) error
	IncrementTranscriptions(ctx context.Context, userID string) error
	AddTTSUsage(ctx context.Context, userID string, chars, costCents int) error

	// ResetMonthlyUsage zeroes the monthly counters and stamps the reset time.
	ResetMonthlyUsage(ctx context.Context, userID string, now time.Time) error
}

// CreditsStore persists ReflectAI credit balances.
type CreditsStore interface {
	Get(ctx context.Context, userID string) (*domain.ReflectCredits, error)
	Upsert(ctx context.Context, credits *domain.ReflectCredits) error

	// Consume atomically spends n credits. Returns ErrInsufficientCredits
	// if the remaining balance cannot cover the spend.
	Consume(ctx context.Context, userID string, n int) error
}

// ReflectionStore persists reflection sessions and their messages.
type ReflectionStore interface {
	CreateSession(ctx context.Context, session *domain.ReflectionSession) error
	GetSession(ctx context.Context, userID string, id uuid.UUID) (*domain.ReflectionSession, error)
	ListSessions(ctx context.Context, userID string, limit, offset int) ([]domain.ReflectionSession, error)
	AppendMessage(ctx context.Context, msg *domain.ReflectionMessage) error
	ListMessages(ctx context.Context, sessionID uuid.UUID) ([]domain.ReflectionMessage, error)

	// SessionDates returns the start times of the user's sessions, most
	// recent first, for streak computation.
	SessionDates(ctx context.Context, userID string) ([]time.Time, error)
}

// VideoJobStore persists video generation jobs.
type VideoJobStore interface {
	Create(ctx context.Context, job *domain.VideoJob) error
	Get(ctx context.Context, id uuid.UUID) (*domain.VideoJob, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.VideoJob, error)

	// ListActive returns jobs not yet in a terminal state, oldest first.
	ListActive(ctx context.Context, limit int) ([]domain.VideoJob, error)
	Update(ctx context.Context, job *domain.VideoJob) error
}

// LegacySource reads records from the pre-migration document store.
// Implementations are read-only; migrated data is written to the
// primary store by the migrating wrappers.
type LegacySource interface {
	DreamsByUser(ctx context.Context, userID string) ([]domain.Dream, error)
	Profile(ctx context.Context, userID string) (*domain.UserProfile, error)
}
