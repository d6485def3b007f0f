// This file defines the ReflectAI credit allowance record.
package domain

import (
	"time"
)

// ReflectCredits tracks a user's monthly ReflectAI message allowance.
//
// Invariant: Remaining == Total - Used. The store enforces it by deriving
// Remaining rather than persisting it, and mutates Used with atomic SQL
// increments so concurrent sessions cannot lose updates.
//
// VIP users bypass the record entirely (always unlimited).
type ReflectCredits struct {
	UserID  string
	Total   int
	Used    int
	ResetAt time.Time
}

// Remaining returns the unused portion of the allowance, never negative.
func (c *ReflectCredits) Remaining() int {
	r := c.Total - c.Used
	if r < 0 {
		return 0
	}
	return r
}

// Stale reports whether the record belongs to a previous calendar month and
// must be reset to the full quota before use.
func (c *ReflectCredits) Stale(now time.Time) bool {
	return ShouldResetMonthlyUsage(c.ResetAt, now)
}

// NewReflectCredits returns a fresh allowance for the tier, stamped at now.
func NewReflectCredits(userID string, tier Tier, now time.Time) *ReflectCredits {
	return &ReflectCredits{
		UserID:  userID,
		Total:   GetCapabilities(tier).ReflectCredits,
		Used:    0,
		ResetAt: now.UTC(),
	}
}
