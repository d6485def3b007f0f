// Package storage provides object storage for dream media.
//
// A Storage interface abstracts over a local filesystem implementation for
// development and a Cloudflare R2 (S3-compatible) implementation for
// production. Stored objects are generated dream images, thumbnails, video
// clips, and narration audio mirrored from the rendering services.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
)

// Storage defines the interface for media storage operations.
type Storage interface {
	// Put stores data at the specified key. Existing objects at the key are
	// replaced; media keys embed a UUID so collisions only happen on
	// deliberate re-mirrors.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get retrieves the object at the key. The caller must close the reader.
	// Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at the key. Deleting a missing key is not
	// an error.
	Delete(ctx context.Context, key string) error

	// URL returns a URL for the object: permanent when the backend has a
	// public base URL, otherwise presigned for the given duration.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists reports whether an object exists at the key.
	Exists(ctx context.Context, key string) (bool, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType is the MIME type. If empty it is detected from the key's
	// extension, then by sniffing the first bytes.
	ContentType string

	// MaxSize bounds the object size in bytes; 0 means no limit.
	MaxSize int64
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// LocalConfig configures filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory where objects are stored.
	BasePath string

	// BaseURL is the public URL prefix for serving objects.
	BaseURL string
}

// R2Config configures Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// PublicURL is the bucket's public base URL (custom domain). When empty,
	// all URLs are presigned.
	PublicURL string
}

// Provider identifiers for configuration.
const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)

// ImageKey generates the storage key for a dream's base image.
// Format: dreams/{dreamID}/image/{uuid}.{ext}
func ImageKey(dreamID uuid.UUID, filename string) string {
	return mediaKey(dreamID, "image", filename)
}

// ThumbnailKey generates the storage key for a dream image thumbnail.
func ThumbnailKey(dreamID uuid.UUID) string {
	return fmt.Sprintf("dreams/%s/thumb/%s.jpg", dreamID, uuid.New())
}

// VideoKey generates the storage key for a rendered dream video.
func VideoKey(dreamID uuid.UUID, filename string) string {
	return mediaKey(dreamID, "video", filename)
}

// AudioKey generates the storage key for dream narration audio.
func AudioKey(dreamID uuid.UUID, filename string) string {
	return mediaKey(dreamID, "audio", filename)
}

func mediaKey(dreamID uuid.UUID, kind, filename string) string {
	ext := path.Ext(filename)
	return fmt.Sprintf("dreams/%s/%s/%s%s", dreamID, kind, uuid.New(), ext)
}
