// This file implements the media service, which mirrors generated assets
// from the rendering services into our own object storage.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/oneirolabs/oneiro/internal/store"
	"github.com/oneirolabs/oneiro/internal/storage"
)

const (
	maxMediaBytes    = 64 << 20 // generous cap for rendered video
	thumbnailWidth   = 400
	thumbnailHeight  = 400
	thumbnailQuality = 80
	mirrorTimeout    = 2 * time.Minute
)

// MediaService mirrors remotely generated assets into object storage so
// dream media survives the rendering service's retention window.
type MediaService interface {
	// MirrorImage downloads the image at remoteURL, stores it and a JPEG
	// thumbnail, and attaches both URLs to the dream.
	MirrorImage(ctx context.Context, userID string, dreamID uuid.UUID, remoteURL string) error

	// MirrorVideo downloads the clip at remoteURL, stores it, and attaches
	// the stored URL to the dream.
	MirrorVideo(ctx context.Context, userID string, dreamID uuid.UUID, remoteURL string) error
}

type mediaService struct {
	storage storage.Storage
	dreams  store.DreamStore
	client  *http.Client
	logger  *slog.Logger
}

// NewMediaService creates a MediaService.
func NewMediaService(st storage.Storage, dreams store.DreamStore, logger *slog.Logger) MediaService {
	return &mediaService{
		storage: st,
		dreams:  dreams,
		client:  &http.Client{Timeout: mirrorTimeout},
		logger:  logger,
	}
}

func (s *mediaService) MirrorImage(ctx context.Context, userID string, dreamID uuid.UUID, remoteURL string) error {
	const op = "media.mirror_image"

	data, contentType, err := s.download(ctx, remoteURL)
	if err != nil {
		return domain.Internal(err, op, "failed to download image")
	}

	key := storage.ImageKey(dreamID, remoteFilename(remoteURL))
	err = s.storage.Put(ctx, key, bytes.NewReader(data), storage.PutOptions{
		ContentType: contentType,
		MaxSize:     maxMediaBytes,
	})
	if err != nil {
		return domain.Internal(err, op, "failed to store image")
	}
	imageURL, err := s.storage.URL(ctx, key, 0)
	if err != nil {
		return domain.Internal(err, op, "failed to resolve image URL")
	}

	update := store.AssetUpdate{ImageURL: &imageURL}

	// A failed thumbnail keeps the full image usable.
	if thumbURL, terr := s.storeThumbnail(ctx, dreamID, data); terr != nil {
		s.logger.Warn("thumbnail generation failed", "dream_id", dreamID, "error", terr)
	} else {
		update.ThumbnailURL = &thumbURL
	}

	if err := s.dreams.AttachAssets(ctx, userID, dreamID, update); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.NotFound(op, "dream", dreamID.String())
		}
		return domain.Internal(err, op, "failed to attach image")
	}

	s.logger.Info("image mirrored", "dream_id", dreamID, "key", key, "bytes", len(data))
	return nil
}

func (s *mediaService) MirrorVideo(ctx context.Context, userID string, dreamID uuid.UUID, remoteURL string) error {
	const op = "media.mirror_video"

	data, contentType, err := s.download(ctx, remoteURL)
	if err != nil {
		return domain.Internal(err, op, "failed to download video")
	}

	key := storage.VideoKey(dreamID, remoteFilename(remoteURL))
	err = s.storage.Put(ctx, key, bytes.NewReader(data), storage.PutOptions{
		ContentType: contentType,
		MaxSize:     maxMediaBytes,
	})
	if err != nil {
		return domain.Internal(err, op, "failed to store video")
	}
	videoURL, err := s.storage.URL(ctx, key, 0)
	if err != nil {
		return domain.Internal(err, op, "failed to resolve video URL")
	}

	if err := s.dreams.AttachAssets(ctx, userID, dreamID, store.AssetUpdate{VideoURL: &videoURL}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.NotFound(op, "dream", dreamID.String())
		}
		return domain.Internal(err, op, "failed to attach video")
	}

	s.logger.Info("video mirrored", "dream_id", dreamID, "key", key, "bytes", len(data))
	return nil
}

// storeThumbnail decodes the image, fits it into the thumbnail box
// preserving aspect ratio, and stores it as JPEG.
func (s *mediaService) storeThumbnail(ctx context.Context, dreamID uuid.UUID, data []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	thumb := imaging.Fit(img, thumbnailWidth, thumbnailHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}

	key := storage.ThumbnailKey(dreamID)
	err = s.storage.Put(ctx, key, &buf, storage.PutOptions{ContentType: "image/jpeg"})
	if err != nil {
		return "", err
	}
	return s.storage.URL(ctx, key, 0)
}

func (s *mediaService) download(ctx context.Context, remoteURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d fetching media", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxMediaBytes {
		return nil, "", fmt.Errorf("media exceeds %d bytes", maxMediaBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if !storage.IsMediaContentType(storage.DetectContentType(contentType, remoteURL, bytes.NewReader(data))) {
		return nil, "", fmt.Errorf("unsupported media type %q", contentType)
	}
	return data, contentType, nil
}

func remoteFilename(remoteURL string) string {
	u, err := url.Parse(remoteURL)
	if err != nil {
		return ""
	}
	return path.Base(u.Path)
}
