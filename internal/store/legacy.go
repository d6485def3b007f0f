package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/oneirolabs/oneiro/internal/domain"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	legacyDreamsCollection   = "dreams"
	legacyProfilesCollection = "userProfiles"
)

// FirestoreLegacySource reads data written by the original mobile backend.
// Documents use the legacy camelCase field names; this source is the only
// place those names appear.
type FirestoreLegacySource struct {
	client *firestore.Client
}

func NewFirestoreLegacySource(client *firestore.Client) *FirestoreLegacySource {
	return &FirestoreLegacySource{client: client}
}

// legacyDream mirrors the document shape of the original backend.
type legacyDream struct {
	ID             string    `firestore:"-"`
	UserID         string    `firestore:"userId"`
	Title          string    `firestore:"title"`
	Description    string    `firestore:"description"`
	ImageURL       string    `firestore:"imageUrl"`
	ThumbnailURL   string    `firestore:"thumbnailUrl"`
	VideoURL       string    `firestore:"videoUrl"`
	AudioURL       string    `firestore:"audioUrl"`
	Interpretation string    `firestore:"interpretation"`
	Tags           []string  `firestore:"tags"`
	CreatedAt      time.Time `firestore:"createdAt"`
	UpdatedAt      time.Time `firestore:"updatedAt"`
}

type legacyProfile struct {
	UserID                  string    `firestore:"userId"`
	Email                   string    `firestore:"email"`
	Name                    string    `firestore:"displayName"`
	Tier                    string    `firestore:"subscriptionTier"`
	DreamsAnalyzedThisMonth int       `firestore:"dreamsAnalyzedThisMonth"`
	TTSCharactersThisMonth  int       `firestore:"ttsCharactersThisMonth"`
	TTSCostCentsThisMonth   int       `firestore:"ttsCostCentsThisMonth"`
	TranscriptionsThisMonth int       `firestore:"transcriptionsThisMonth"`
	DreamsAnalyzedTotal     int       `firestore:"dreamsAnalyzedTotal"`
	VideosGeneratedTotal    int       `firestore:"videosGeneratedTotal"`
	UsageResetAt            time.Time `firestore:"usageResetAt"`
	CreatedAt               time.Time `firestore:"createdAt"`
}

// DreamsByUser returns every legacy dream for the user, newest first.
func (s *FirestoreLegacySource) DreamsByUser(ctx context.Context, userID string) ([]domain.Dream, error) {
	iter := s.client.Collection(legacyDreamsCollection).
		Where("userId", "==", userID).
		OrderBy("createdAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	var dreams []domain.Dream
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate legacy dreams: %w", err)
		}

		var ld legacyDream
		if err := doc.DataTo(&ld); err != nil {
			return nil, fmt.Errorf("decode legacy dream %s: %w", doc.Ref.ID, err)
		}
		ld.ID = doc.Ref.ID
		dreams = append(dreams, ld.toDomain())
	}
	return dreams, nil
}

// Profile returns the legacy profile for the user, or ErrNotFound.
func (s *FirestoreLegacySource) Profile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	doc, err := s.client.Collection(legacyProfilesCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get legacy profile: %w", err)
	}

	var lp legacyProfile
	if err := doc.DataTo(&lp); err != nil {
		return nil, fmt.Errorf("decode legacy profile: %w", err)
	}
	if lp.UserID == "" {
		lp.UserID = doc.Ref.ID
	}

	tier, _ := domain.ParseTier(lp.Tier)
	return &domain.UserProfile{
		ID:                      uuid.New(),
		UserID:                  lp.UserID,
		Email:                   lp.Email,
		Name:                    lp.Name,
		Tier:                    tier,
		DreamsAnalyzedThisMonth: lp.DreamsAnalyzedThisMonth,
		TTSCharactersThisMonth:  lp.TTSCharactersThisMonth,
		TTSCostCentsThisMonth:   lp.TTSCostCentsThisMonth,
		TranscriptionsThisMonth: lp.TranscriptionsThisMonth,
		DreamsAnalyzedTotal:     lp.DreamsAnalyzedTotal,
		VideosGeneratedTotal:    lp.VideosGeneratedTotal,
		UsageResetAt:            lp.UsageResetAt,
		CreatedAt:               lp.CreatedAt,
	}, nil
}

func (ld *legacyDream) toDomain() domain.Dream {
	// Legacy IDs are Firestore document IDs, not UUIDs. Derive a stable
	// UUID from the document ID so repeated migrations are idempotent.
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(ld.ID))
	return domain.Dream{
		ID:             id,
		UserID:         ld.UserID,
		Title:          ld.Title,
		Description:    ld.Description,
		ImageURL:       ld.ImageURL,
		ThumbnailURL:   ld.ThumbnailURL,
		VideoURL:       ld.VideoURL,
		AudioURL:       ld.AudioURL,
		Interpretation: ld.Interpretation,
		Tags:           ld.Tags,
		CreatedAt:      ld.CreatedAt,
		UpdatedAt:      ld.UpdatedAt,
	}
}
