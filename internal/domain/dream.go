// This file defines the Dream record and its attached assets.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Dream represents a single journaled dream.
//
// Image, video, audio, and interpretation assets are attached after creation
// as their generation completes. There is no versioning; last write wins.
type Dream struct {
	ID          uuid.UUID
	UserID      string
	Title       string
	Description string

	ImageURL       string
	ThumbnailURL   string
	VideoURL       string
	AudioURL       string
	Interpretation string

	Tags []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasImage reports whether a base image has been attached, which video
// generation requires.
func (d *Dream) HasImage() bool {
	return d.ImageURL != ""
}

// HasVideo reports whether a rendered video is attached.
func (d *Dream) HasVideo() bool {
	return d.VideoURL != ""
}

// CreateDreamParams contains the validated parameters for journaling a dream.
type CreateDreamParams struct {
	UserID      string
	Title       string
	Description string
	Tags        []string
}

// UpdateDreamParams contains the fields a user may edit after creation.
// Nil pointers leave the stored value untouched.
type UpdateDreamParams struct {
	Title       *string
	Description *string
	Tags        []string
}

// Interpretation is the structured output of an AI dream interpretation.
type Interpretation struct {
	Summary  string   `json:"summary"`
	Symbols  []Symbol `json:"symbols"`
	Emotions []string `json:"emotions"`
	Guidance string   `json:"guidance"`
}

// Symbol is a notable dream symbol and its suggested meaning.
type Symbol struct {
	Name    string `json:"name"`
	Meaning string `json:"meaning"`
}
