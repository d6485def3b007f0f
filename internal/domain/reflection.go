// This file defines ReflectAI conversation types and the streak computation.
package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// ReflectionSession is one ReflectAI conversation tied to a dream.
// Sessions and their messages are append-only; there are no edit or delete
// semantics.
type ReflectionSession struct {
	ID        uuid.UUID
	UserID    string
	DreamID   uuid.UUID
	CreatedAt time.Time
}

// MessageRole identifies the author of a conversation turn.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ReflectionMessage is a single conversation turn.
type ReflectionMessage struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Role      MessageRole
	Content   string
	CreatedAt time.Time
}

// ComputeStreak returns the user's current daily-engagement streak given the
// days on which reflection sessions happened.
//
// The walk starts from the most recent session day and counts consecutive
// calendar days, tolerating at most one missed day between sessions before
// the streak is considered broken. Duplicate same-day sessions count once.
// The missed day itself does not add to the count.
func ComputeStreak(sessionDates []time.Time, now time.Time) int {
	if len(sessionDates) == 0 {
		return 0
	}

	// Collapse to unique calendar days, sorted descending.
	seen := make(map[time.Time]struct{}, len(sessionDates))
	days := make([]time.Time, 0, len(sessionDates))
	for _, d := range sessionDates {
		day := truncateToDay(d)
		if _, ok := seen[day]; !ok {
			seen[day] = struct{}{}
			days = append(days, day)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	// A one-day gap is tolerated, so the streak is still current if the
	// latest session was at most two calendar days ago.
	today := truncateToDay(now)
	if daysBetween(days[0], today) > 2 {
		return 0
	}

	streak := 1
	for i := 1; i < len(days); i++ {
		gap := daysBetween(days[i], days[i-1])
		if gap > 2 {
			break
		}
		streak++
	}
	return streak
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(earlier, later time.Time) int {
	return int(later.Sub(earlier).Hours() / 24)
}
