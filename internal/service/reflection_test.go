package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneirolabs/oneiro/internal/ai"
	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/oneirolabs/oneiro/internal/store"
)

// fakeReflections is an in-memory store.ReflectionStore.
type fakeReflections struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]domain.ReflectionSession
	messages map[uuid.UUID][]domain.ReflectionMessage
}

func newFakeReflections() *fakeReflections {
	return &fakeReflections{
		sessions: make(map[uuid.UUID]domain.ReflectionSession),
		messages: make(map[uuid.UUID][]domain.ReflectionMessage),
	}
}

func (f *fakeReflections) CreateSession(ctx context.Context, s *domain.ReflectionSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	f.sessions[s.ID] = *s
	return nil
}

func (f *fakeReflections) GetSession(ctx context.Context, userID string, id uuid.UUID) (*domain.ReflectionSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (f *fakeReflections) ListSessions(ctx context.Context, userID string, limit, offset int) ([]domain.ReflectionSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ReflectionSession
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeReflections) AppendMessage(ctx context.Context, m *domain.ReflectionMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()
	f.messages[m.SessionID] = append(f.messages[m.SessionID], *m)
	return nil
}

func (f *fakeReflections) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]domain.ReflectionMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ReflectionMessage(nil), f.messages[sessionID]...), nil
}

func (f *fakeReflections) SessionDates(ctx context.Context, userID string) ([]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []time.Time
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, s.CreatedAt)
		}
	}
	return out, nil
}

// fakeReflector echoes a canned reply.
type fakeReflector struct {
	replies int
}

func (f *fakeReflector) Reply(ctx context.Context, params ai.ReplyParams) (*ai.ReplyResult, error) {
	f.replies++
	return &ai.ReplyResult{Content: "What stood out most to you about that moment?"}, nil
}

func newReflectionFixture(t *testing.T, tier domain.Tier) (ReflectionService, *fakeReflections, *fakeCredits, *fakeReflector, domain.Dream) {
	t.Helper()
	dream := testDream(false)
	profiles := newFakeProfiles(&domain.UserProfile{
		UserID: dream.UserID, Tier: tier, UsageResetAt: time.Now(),
	})
	profileSvc := NewProfileService(profiles, testLogger())
	credits := newFakeCredits()
	creditsSvc := NewCreditsService(credits, profileSvc, testLogger())
	reflections := newFakeReflections()
	reflector := &fakeReflector{}
	svc := NewReflectionService(reflections, newFakeDreams(dream), profileSvc, creditsSvc, reflector, testLogger())
	return svc, reflections, credits, reflector, dream
}

func TestStartSession_FreeTierForbidden(t *testing.T) {
	svc, _, _, _, dream := newReflectionFixture(t, domain.TierFree)

	_, err := svc.StartSession(context.Background(), dream.UserID, dream.ID)
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))
}

func TestSendMessage_SpendsOneCreditPerTurn(t *testing.T) {
	svc, _, credits, reflector, dream := newReflectionFixture(t, domain.TierPro)

	session, err := svc.StartSession(context.Background(), dream.UserID, dream.ID)
	require.NoError(t, err)

	reply, err := svc.SendMessage(context.Background(), dream.UserID, session.ID, "I keep dreaming about water.")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAssistant, reply.Role)
	assert.NotEmpty(t, reply.Content)
	assert.Equal(t, 1, reflector.replies)
	assert.Equal(t, 1, credits.records[dream.UserID].Used)

	msgs, err := svc.Messages(context.Background(), dream.UserID, session.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
}

func TestSendMessage_ExhaustedCreditsDenied(t *testing.T) {
	svc, _, credits, reflector, dream := newReflectionFixture(t, domain.TierPro)

	session, err := svc.StartSession(context.Background(), dream.UserID, dream.ID)
	require.NoError(t, err)

	_, err = svc.SendMessage(context.Background(), dream.UserID, session.ID, "hello")
	require.NoError(t, err)
	credits.records[dream.UserID].Used = credits.records[dream.UserID].Total

	_, err = svc.SendMessage(context.Background(), dream.UserID, session.ID, "one more")
	assert.Equal(t, domain.ELIMIT, domain.ErrorCode(err))
	assert.Equal(t, 1, reflector.replies, "no model call without a credit")
}

func TestSendMessage_VIPUnlimited(t *testing.T) {
	svc, _, credits, _, dream := newReflectionFixture(t, domain.TierVIP)

	session, err := svc.StartSession(context.Background(), dream.UserID, dream.ID)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.SendMessage(context.Background(), dream.UserID, session.ID, "again")
		require.NoError(t, err)
	}
	assert.Empty(t, credits.records)
}

func TestStreak_CountsDistinctSessionDays(t *testing.T) {
	svc, reflections, _, _, dream := newReflectionFixture(t, domain.TierPro)
	now := time.Now().UTC()

	for _, daysAgo := range []int{0, 0, 1, 2} {
		reflections.sessions[uuid.New()] = domain.ReflectionSession{
			ID:        uuid.New(),
			UserID:    dream.UserID,
			DreamID:   dream.ID,
			CreatedAt: now.AddDate(0, 0, -daysAgo),
		}
	}

	streak, err := svc.Streak(context.Background(), dream.UserID)
	require.NoError(t, err)
	assert.Equal(t, 3, streak)
}
