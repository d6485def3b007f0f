// This file defines the UserProfile domain type and its usage counters.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserProfile represents a registered user's profile and metered usage.
//
// Monthly counters reset when UsageResetAt's calendar month differs from the
// current month; lifetime counters never reset. Rows are owned exclusively by
// the user; writes are last-write-wins.
type UserProfile struct {
	ID     uuid.UUID
	UserID string // identity provider subject
	Email  string
	Name   string
	Tier   Tier

	StripeCustomerID string

	// Monthly usage
	DreamsAnalyzedThisMonth int
	TTSCharactersThisMonth  int
	TTSCostCentsThisMonth   int
	TranscriptionsThisMonth int

	// Lifetime usage
	DreamsAnalyzedTotal int
	VideosGeneratedTotal int

	UsageResetAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AnalysesUsed returns the counter the tier's analysis quota is checked
// against: lifetime for free, monthly for paid tiers.
func (p *UserProfile) AnalysesUsed() int {
	if GetCapabilities(p.Tier).LifetimeAnalyses {
		return p.DreamsAnalyzedTotal
	}
	return p.DreamsAnalyzedThisMonth
}

// ShouldResetMonthlyUsage reports whether monthly counters stored at `stored`
// are stale at `now`. The comparison is calendar-month granular: any access
// in a new (year, month) triggers exactly one reset, regardless of how many
// days elapsed.
func ShouldResetMonthlyUsage(stored, now time.Time) bool {
	sy, sm, _ := stored.UTC().Date()
	ny, nm, _ := now.UTC().Date()
	return sy != ny || sm != nm
}
