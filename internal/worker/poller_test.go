package worker

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/oneirolabs/oneiro/internal/store"
	"github.com/oneirolabs/oneiro/internal/video"
)

type stubJobs struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]domain.VideoJob
}

func newStubJobs(seed ...domain.VideoJob) *stubJobs {
	s := &stubJobs{jobs: make(map[uuid.UUID]domain.VideoJob)}
	for _, j := range seed {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *stubJobs) Create(ctx context.Context, job *domain.VideoJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *stubJobs) Get(ctx context.Context, id uuid.UUID) (*domain.VideoJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &j, nil
}

func (s *stubJobs) ListByUser(ctx context.Context, userID string, limit int) ([]domain.VideoJob, error) {
	return nil, nil
}

func (s *stubJobs) ListActive(ctx context.Context, limit int) ([]domain.VideoJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.VideoJob
	for _, j := range s.jobs {
		if !j.Status.Terminal() {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *stubJobs) Update(ctx context.Context, job *domain.VideoJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return store.ErrNotFound
	}
	s.jobs[job.ID] = *job
	return nil
}

type stubDreams struct {
	store.DreamStore
	mu       sync.Mutex
	attached map[uuid.UUID]string
}

func (s *stubDreams) AttachAssets(ctx context.Context, userID string, id uuid.UUID, assets store.AssetUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached == nil {
		s.attached = make(map[uuid.UUID]string)
	}
	if assets.VideoURL != nil {
		s.attached[id] = *assets.VideoURL
	}
	return nil
}

type stubProfiles struct {
	store.ProfileStore
	mu     sync.Mutex
	videos int
}

func (s *stubProfiles) IncrementVideoCount(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos++
	return nil
}

type queueStub struct {
	mu    sync.Mutex
	jobs  map[string][]domain.VideoJob
	lists int
}

func (q *queueStub) GenerateVideo(ctx context.Context, params video.GenerateParams) (*video.GenerateResult, error) {
	return nil, nil
}

func (q *queueStub) GenerateImage(ctx context.Context, params video.ImageParams) (*video.ImageResult, error) {
	return nil, nil
}

func (q *queueStub) ListJobs(ctx context.Context, userID string) ([]domain.VideoJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lists++
	return q.jobs[userID], nil
}

func newPollerFixture(t *testing.T, jobs *stubJobs, queue *queueStub) (*Poller, *stubDreams, *stubProfiles) {
	t.Helper()
	dreams := &stubDreams{}
	profiles := &stubProfiles{}
	p, err := New(queue, jobs, dreams, profiles, nil, DefaultConfig(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return p, dreams, profiles
}

func activeJob(userID string) domain.VideoJob {
	return domain.VideoJob{
		ID:        uuid.New(),
		DreamID:   uuid.New(),
		UserID:    userID,
		Status:    domain.VideoJobPending,
		CreatedAt: time.Now().Add(-time.Minute),
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.PollInterval = 100 * time.Millisecond
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.MaxActiveJobs = 0
	assert.Error(t, bad.Validate())
}

func TestPoll_MirrorsProgress(t *testing.T) {
	job := activeJob("user-1")
	jobs := newStubJobs(job)

	remote := job
	remote.Status = domain.VideoJobProcessing
	remote.FramesGenerated = 48
	queue := &queueStub{jobs: map[string][]domain.VideoJob{"user-1": {remote}}}

	p, dreams, profiles := newPollerFixture(t, jobs, queue)
	require.NoError(t, p.poll(context.Background()))

	got, err := jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VideoJobProcessing, got.Status)
	assert.Equal(t, 48, got.FramesGenerated)
	assert.Empty(t, dreams.attached)
	assert.Zero(t, profiles.videos)
}

func TestPoll_CompletionAttachesVideo(t *testing.T) {
	job := activeJob("user-1")
	jobs := newStubJobs(job)

	remote := job
	remote.Status = domain.VideoJobCompleted
	remote.VideoURL = "https://cdn.example.com/final.mp4"
	remote.FramesGenerated = 120
	queue := &queueStub{jobs: map[string][]domain.VideoJob{"user-1": {remote}}}

	p, dreams, profiles := newPollerFixture(t, jobs, queue)
	require.NoError(t, p.poll(context.Background()))

	got, err := jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VideoJobCompleted, got.Status)
	assert.Equal(t, "https://cdn.example.com/final.mp4", dreams.attached[job.DreamID])
	assert.Equal(t, 1, profiles.videos)
}

func TestPoll_FailureRecordsMessage(t *testing.T) {
	job := activeJob("user-1")
	jobs := newStubJobs(job)

	remote := job
	remote.Status = domain.VideoJobFailed
	remote.ErrorMessage = "render crashed"
	queue := &queueStub{jobs: map[string][]domain.VideoJob{"user-1": {remote}}}

	p, dreams, _ := newPollerFixture(t, jobs, queue)
	require.NoError(t, p.poll(context.Background()))

	got, err := jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VideoJobFailed, got.Status)
	assert.Equal(t, "render crashed", got.ErrorMessage)
	assert.Empty(t, dreams.attached, "no video attached on failure")
}

func TestPoll_NoActiveJobsSkipsQueue(t *testing.T) {
	queue := &queueStub{}
	p, _, _ := newPollerFixture(t, newStubJobs(), queue)

	require.NoError(t, p.poll(context.Background()))
	assert.Zero(t, queue.lists)
}

func TestPoll_OneListingPerUser(t *testing.T) {
	j1 := activeJob("user-1")
	j2 := activeJob("user-1")
	j3 := activeJob("user-2")
	jobs := newStubJobs(j1, j2, j3)
	queue := &queueStub{jobs: map[string][]domain.VideoJob{}}

	p, _, _ := newPollerFixture(t, jobs, queue)
	require.NoError(t, p.poll(context.Background()))
	assert.Equal(t, 2, queue.lists)
}

func TestStop_Graceful(t *testing.T) {
	queue := &queueStub{}
	cfg := DefaultConfig()
	cfg.PollInterval = time.Second
	p, err := New(queue, newStubJobs(), &stubDreams{}, &stubProfiles{}, nil, cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	p.Start(context.Background())

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}
