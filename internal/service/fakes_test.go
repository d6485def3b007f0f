package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oneirolabs/oneiro/internal/ai"
	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/oneirolabs/oneiro/internal/store"
	"github.com/oneirolabs/oneiro/internal/video"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeProfiles is an in-memory store.ProfileStore.
type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*domain.UserProfile
	resets   int
}

func newFakeProfiles(seed ...*domain.UserProfile) *fakeProfiles {
	f := &fakeProfiles{profiles: make(map[string]*domain.UserProfile)}
	for _, p := range seed {
		cp := *p
		f.profiles[p.UserID] = &cp
	}
	return f
}

func (f *fakeProfiles) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) Upsert(ctx context.Context, p *domain.UserProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.profiles[p.UserID] = &cp
	return nil
}

func (f *fakeProfiles) GetByStripeCustomer(ctx context.Context, customerID string) (*domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.StripeCustomerID == customerID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeProfiles) SetStripeCustomer(ctx context.Context, userID, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return store.ErrNotFound
	}
	p.StripeCustomerID = customerID
	return nil
}

func (f *fakeProfiles) SetTier(ctx context.Context, userID string, tier domain.Tier) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return store.ErrNotFound
	}
	p.Tier = tier
	return nil
}

func (f *fakeProfiles) IncrementDreamAnalyses(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return store.ErrNotFound
	}
	p.DreamsAnalyzedThisMonth++
	p.DreamsAnalyzedTotal++
	return nil
}

func (f *fakeProfiles) IncrementVideoCount(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return store.ErrNotFound
	}
	p.VideosGeneratedTotal++
	return nil
}

func (f *fakeProfiles) IncrementTranscriptions(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return store.ErrNotFound
	}
	p.TranscriptionsThisMonth++
	return nil
}

func (f *fakeProfiles) AddTTSUsage(ctx context.Context, userID string, chars, costCents int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return store.ErrNotFound
	}
	p.TTSCharactersThisMonth += chars
	p.TTSCostCentsThisMonth += costCents
	return nil
}

func (f *fakeProfiles) ResetMonthlyUsage(ctx context.Context, userID string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return store.ErrNotFound
	}
	p.DreamsAnalyzedThisMonth = 0
	p.TTSCharactersThisMonth = 0
	p.TTSCostCentsThisMonth = 0
	p.TranscriptionsThisMonth = 0
	p.UsageResetAt = now
	f.resets++
	return nil
}

// fakeDreams is an in-memory store.DreamStore.
type fakeDreams struct {
	mu     sync.Mutex
	dreams map[uuid.UUID]domain.Dream
}

func newFakeDreams(seed ...domain.Dream) *fakeDreams {
	f := &fakeDreams{dreams: make(map[uuid.UUID]domain.Dream)}
	for _, d := range seed {
		f.dreams[d.ID] = d
	}
	return f
}

func (f *fakeDreams) Create(ctx context.Context, params domain.CreateDreamParams) (*domain.Dream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := domain.Dream{
		ID:          uuid.New(),
		UserID:      params.UserID,
		Title:       params.Title,
		Description: params.Description,
		Tags:        params.Tags,
		CreatedAt:   time.Now(),
	}
	f.dreams[d.ID] = d
	return &d, nil
}

func (f *fakeDreams) GetByID(ctx context.Context, userID string, id uuid.UUID) (*domain.Dream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.dreams[id]
	if !ok || d.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &d, nil
}

func (f *fakeDreams) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Dream, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Dream
	for _, d := range f.dreams {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out), nil
}

func (f *fakeDreams) Update(ctx context.Context, userID string, id uuid.UUID, params domain.UpdateDreamParams) (*domain.Dream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.dreams[id]
	if !ok || d.UserID != userID {
		return nil, store.ErrNotFound
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
	f.dreams[id] = d
	return &d, nil
}

func (f *fakeDreams) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.dreams[id]
	if !ok || d.UserID != userID {
		return store.ErrNotFound
	}
	delete(f.dreams, id)
	return nil
}

func (f *fakeDreams) AttachAssets(ctx context.Context, userID string, id uuid.UUID, assets store.AssetUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.dreams[id]
	if !ok || d.UserID != userID {
		return store.ErrNotFound
	}
	if assets.ImageURL != nil {
		d.ImageURL = *assets.ImageURL
	}
	if assets.ThumbnailURL != nil {
		d.ThumbnailURL = *assets.ThumbnailURL
	}
	if assets.VideoURL != nil {
		d.VideoURL = *assets.VideoURL
	}
	if assets.AudioURL != nil {
		d.AudioURL = *assets.AudioURL
	}
	if assets.Interpretation != nil {
		d.Interpretation = *assets.Interpretation
	}
	f.dreams[id] = d
	return nil
}

func (f *fakeDreams) Upsert(ctx context.Context, dream *domain.Dream) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dreams[dream.ID] = *dream
	return nil
}

// fakeCredits is an in-memory store.CreditsStore.
type fakeCredits struct {
	mu      sync.Mutex
	records map[string]*domain.ReflectCredits
}

func newFakeCredits() *fakeCredits {
	return &fakeCredits{records: make(map[string]*domain.ReflectCredits)}
}

func (f *fakeCredits) Get(ctx context.Context, userID string) (*domain.ReflectCredits, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.records[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCredits) Upsert(ctx context.Context, c *domain.ReflectCredits) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.records[c.UserID] = &cp
	return nil
}

func (f *fakeCredits) Consume(ctx context.Context, userID string, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.records[userID]
	if !ok {
		return store.ErrNotFound
	}
	if c.Used+n > c.Total {
		return store.ErrInsufficientCredits
	}
	c.Used += n
	return nil
}

// fakeJobs is an in-memory store.VideoJobStore.
type fakeJobs struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]domain.VideoJob
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: make(map[uuid.UUID]domain.VideoJob)}
}

func (f *fakeJobs) Create(ctx context.Context, job *domain.VideoJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = domain.VideoJobPending
	}
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	f.jobs[job.ID] = *job
	return nil
}

func (f *fakeJobs) Get(ctx context.Context, id uuid.UUID) (*domain.VideoJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &j, nil
}

func (f *fakeJobs) ListByUser(ctx context.Context, userID string, limit int) ([]domain.VideoJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.VideoJob
	for _, j := range f.jobs {
		if j.UserID == userID {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeJobs) ListActive(ctx context.Context, limit int) ([]domain.VideoJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.VideoJob
	for _, j := range f.jobs {
		if !j.Status.Terminal() {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeJobs) Update(ctx context.Context, job *domain.VideoJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.jobs[job.ID]; !ok {
		return store.ErrNotFound
	}
	job.UpdatedAt = time.Now()
	f.jobs[job.ID] = *job
	return nil
}

// fakeInterpreter is a counting ai.Interpreter.
type fakeInterpreter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeInterpreter) InterpretDream(ctx context.Context, params ai.InterpretParams) (*ai.InterpretResult, error) {
	f.mu.Lock()
	f.calls++
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &ai.InterpretResult{
		Interpretation: domain.Interpretation{
			Summary:  "A dream about change.",
			Emotions: []string{"wonder"},
			Guidance: "Sit with the feeling for a moment today.",
		},
		Usage: ai.UsageInfo{InputTokens: 100, OutputTokens: 200, CostCents: 1},
	}, nil
}

func (f *fakeInterpreter) interpretations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeRenderer is a configurable video.Renderer.
type fakeRenderer struct {
	mu         sync.Mutex
	videoErr   error
	imageErr   error
	videoURL   string
	imageCalls int
	videoCalls int
}

func (f *fakeRenderer) GenerateVideo(ctx context.Context, params video.GenerateParams) (*video.GenerateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videoCalls++
	if f.videoErr != nil {
		return nil, f.videoErr
	}
	return &video.GenerateResult{VideoURL: f.videoURL, FramesGenerated: 120}, nil
}

func (f *fakeRenderer) GenerateImage(ctx context.Context, params video.ImageParams) (*video.ImageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imageCalls++
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	return &video.ImageResult{ImageURL: "https://cdn.example.com/img.png"}, nil
}

func (f *fakeRenderer) ListJobs(ctx context.Context, userID string) ([]domain.VideoJob, error) {
	return nil, nil
}
