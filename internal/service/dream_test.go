package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneirolabs/oneiro/internal/domain"
)

func seedProfile(tier domain.Tier) *domain.UserProfile {
	return &domain.UserProfile{
		UserID:       "user-1",
		Tier:         tier,
		UsageResetAt: time.Now(),
	}
}

func newDreamFixture(t *testing.T, profile *domain.UserProfile) (DreamService, *fakeDreams, *fakeProfiles, *fakeInterpreter) {
	t.Helper()
	profiles := newFakeProfiles(profile)
	profileSvc := NewProfileService(profiles, testLogger())
	dreams := newFakeDreams()
	interp := &fakeInterpreter{}
	svc := NewDreamService(dreams, profileSvc, interp, testLogger())
	return svc, dreams, profiles, interp
}

func TestDreamCreate_Validation(t *testing.T) {
	svc, _, _, _ := newDreamFixture(t, seedProfile(domain.TierFree))

	_, err := svc.Create(context.Background(), domain.CreateDreamParams{
		UserID: "user-1", Description: "   ",
	})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	dream, err := svc.Create(context.Background(), domain.CreateDreamParams{
		UserID: "user-1", Title: "Falling", Description: "I was falling through clouds.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Falling", dream.Title)
}

func TestInterpret_FreeTierLifetimeBoundary(t *testing.T) {
	profile := seedProfile(domain.TierFree)
	svc, dreams, profiles, interp := newDreamFixture(t, profile)

	dream, err := svc.Create(context.Background(), domain.CreateDreamParams{
		UserID: "user-1", Description: "A long hallway with many doors.",
	})
	require.NoError(t, err)

	// The free tier allows 2 lifetime analyses.
	for i := 0; i < 2; i++ {
		_, err := svc.Interpret(context.Background(), "user-1", dream.ID)
		require.NoError(t, err)
	}
	_, err = svc.Interpret(context.Background(), "user-1", dream.ID)
	assert.Equal(t, domain.ELIMIT, domain.ErrorCode(err))
	assert.Equal(t, 2, interp.interpretations(), "no model call past the limit")

	// Lifetime limits do not reset with the month.
	p := profiles.profiles["user-1"]
	p.DreamsAnalyzedThisMonth = 0
	p.UsageResetAt = time.Now().AddDate(0, -1, 0)
	_, err = svc.Interpret(context.Background(), "user-1", dream.ID)
	assert.Equal(t, domain.ELIMIT, domain.ErrorCode(err))

	stored, err := dreams.GetByID(context.Background(), "user-1", dream.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.Interpretation)
}

func TestInterpret_ProTierMonthlyBoundary(t *testing.T) {
	profile := seedProfile(domain.TierPro)
	profile.DreamsAnalyzedThisMonth = 9
	profile.DreamsAnalyzedTotal = 40
	svc, _, _, _ := newDreamFixture(t, profile)

	dream, err := svc.Create(context.Background(), domain.CreateDreamParams{
		UserID: "user-1", Description: "An ocean under two moons.",
	})
	require.NoError(t, err)

	// 9 of 10 used: exactly one more is allowed.
	_, err = svc.Interpret(context.Background(), "user-1", dream.ID)
	require.NoError(t, err)
	_, err = svc.Interpret(context.Background(), "user-1", dream.ID)
	assert.Equal(t, domain.ELIMIT, domain.ErrorCode(err))
}

func TestInterpret_MonthResetRestoresPaidQuota(t *testing.T) {
	profile := seedProfile(domain.TierPro)
	profile.DreamsAnalyzedThisMonth = 10
	profile.UsageResetAt = time.Now().AddDate(0, -1, 0)
	svc, _, profiles, _ := newDreamFixture(t, profile)

	dream, err := svc.Create(context.Background(), domain.CreateDreamParams{
		UserID: "user-1", Description: "A garden growing backward.",
	})
	require.NoError(t, err)

	_, err = svc.Interpret(context.Background(), "user-1", dream.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, profiles.resets)
	assert.Equal(t, 1, profiles.profiles["user-1"].DreamsAnalyzedThisMonth)
}

func TestInterpret_IncrementsBothCounters(t *testing.T) {
	profile := seedProfile(domain.TierPremium)
	svc, _, profiles, _ := newDreamFixture(t, profile)

	dream, err := svc.Create(context.Background(), domain.CreateDreamParams{
		UserID: "user-1", Description: "A library with no exits.",
	})
	require.NoError(t, err)

	_, err = svc.Interpret(context.Background(), "user-1", dream.ID)
	require.NoError(t, err)

	p := profiles.profiles["user-1"]
	assert.Equal(t, 1, p.DreamsAnalyzedThisMonth)
	assert.Equal(t, 1, p.DreamsAnalyzedTotal)
}

func TestInterpret_UnknownDream(t *testing.T) {
	svc, _, _, _ := newDreamFixture(t, seedProfile(domain.TierPro))

	dream, err := svc.Create(context.Background(), domain.CreateDreamParams{
		UserID: "user-1", Description: "Misty bridge.",
	})
	require.NoError(t, err)

	// Another user cannot interpret it.
	profiles2 := newFakeProfiles(&domain.UserProfile{UserID: "user-2", Tier: domain.TierPro, UsageResetAt: time.Now()})
	svc2 := NewDreamService(newFakeDreams(), NewProfileService(profiles2, testLogger()), &fakeInterpreter{}, testLogger())
	_, err = svc2.Interpret(context.Background(), "user-2", dream.ID)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}
