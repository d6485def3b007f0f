package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneirolabs/oneiro/internal/domain"
)

func newCreditsFixture(t *testing.T, tier domain.Tier) (CreditsService, *fakeCredits, *creditsService) {
	t.Helper()
	profiles := newFakeProfiles(&domain.UserProfile{
		UserID: "user-1", Tier: tier, UsageResetAt: time.Now(),
	})
	records := newFakeCredits()
	svc := NewCreditsService(records, NewProfileService(profiles, testLogger()), testLogger())
	return svc, records, svc.(*creditsService)
}

func TestCredits_FirstUseCreatesTierAllowance(t *testing.T) {
	svc, _, _ := newCreditsFixture(t, domain.TierPro)

	balance, err := svc.Balance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 50, balance.Total)
	assert.Equal(t, 50, balance.Remaining)
	assert.False(t, balance.Unlimited)
}

func TestCredits_ConsumeDecrements(t *testing.T) {
	svc, _, _ := newCreditsFixture(t, domain.TierPremium)

	require.NoError(t, svc.Consume(context.Background(), "user-1", 3))

	balance, err := svc.Balance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 150, balance.Total)
	assert.Equal(t, 147, balance.Remaining)
}

func TestCredits_InsufficientBalanceDenied(t *testing.T) {
	svc, records, _ := newCreditsFixture(t, domain.TierPro)

	_, err := svc.Balance(context.Background(), "user-1")
	require.NoError(t, err)
	records.records["user-1"].Used = 50

	err = svc.Consume(context.Background(), "user-1", 1)
	assert.Equal(t, domain.ELIMIT, domain.ErrorCode(err))
}

func TestCredits_VIPBypassesLedger(t *testing.T) {
	svc, records, _ := newCreditsFixture(t, domain.TierVIP)

	balance, err := svc.Balance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, balance.Unlimited)

	// Many consumes never touch a credit record.
	for i := 0; i < 500; i++ {
		require.NoError(t, svc.Consume(context.Background(), "user-1", 1))
	}
	assert.Empty(t, records.records)
}

func TestCredits_FreeTierForbidden(t *testing.T) {
	svc, _, _ := newCreditsFixture(t, domain.TierFree)

	err := svc.Consume(context.Background(), "user-1", 1)
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))
}

func TestCredits_MonthRolloverRestoresQuota(t *testing.T) {
	svc, records, impl := newCreditsFixture(t, domain.TierPro)

	_, err := svc.Balance(context.Background(), "user-1")
	require.NoError(t, err)
	require.NoError(t, svc.Consume(context.Background(), "user-1", 45))

	// Jump to the next calendar month.
	lastMonth := records.records["user-1"].ResetAt
	impl.now = func() time.Time { return lastMonth.AddDate(0, 1, 0) }

	balance, err := svc.Balance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 50, balance.Remaining, "quota restored for the new month")
	assert.Zero(t, balance.Used)
}
