// This file defines the video queue job types.
//
// Job status transitions are driven entirely by the remote rendering service;
// this side only reads (polls) the state and mirrors it locally.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// VideoJobStatus is the queue status reported by the rendering service.
type VideoJobStatus string

const (
	VideoJobPending    VideoJobStatus = "pending"
	VideoJobProcessing VideoJobStatus = "processing"
	VideoJobCompleted  VideoJobStatus = "completed"
	VideoJobFailed     VideoJobStatus = "failed"
)

// Valid reports whether s is a known job status.
func (s VideoJobStatus) Valid() bool {
	switch s {
	case VideoJobPending, VideoJobProcessing, VideoJobCompleted, VideoJobFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status is final. Polling stops once a job
// reaches a terminal status.
func (s VideoJobStatus) Terminal() bool {
	return s == VideoJobCompleted || s == VideoJobFailed
}

// VideoJob mirrors one rendering job tracked by the remote queue.
type VideoJob struct {
	ID              uuid.UUID
	DreamID         uuid.UUID
	UserID          string
	Status          VideoJobStatus
	FramesGenerated int
	VideoURL        string
	ErrorMessage    string
	RetryCount      int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
