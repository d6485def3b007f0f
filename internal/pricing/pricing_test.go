package pricing

import (
	"testing"

	"github.com/oneirolabs/oneiro/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestTTSCost(t *testing.T) {
	assert.Equal(t, 0, TTSCost(0))
	assert.Equal(t, 0, TTSCost(-5))

	// Linear with slope equal to the configured per-character rate.
	assert.Equal(t, TTSCentsPerMillionChars, TTSCost(1_000_000))
	assert.Equal(t, 2*TTSCentsPerMillionChars, TTSCost(2_000_000))
	assert.Equal(t, TTSCentsPerMillionChars/2, TTSCost(500_000))
}

func TestInterpretationCost(t *testing.T) {
	assert.Equal(t, 0, InterpretationCost(0, 0))
	assert.Equal(t, InterpretationInputCentsPerMillion, InterpretationCost(1_000_000, 0))
	assert.Equal(t, InterpretationOutputCentsPerMillion, InterpretationCost(0, 1_000_000))
	assert.Equal(t,
		InterpretationInputCentsPerMillion+InterpretationOutputCentsPerMillion,
		InterpretationCost(1_000_000, 1_000_000))
}

func TestVideoCost(t *testing.T) {
	assert.Equal(t, 25, VideoCost(domain.VideoTypeStandard))
	assert.Equal(t, 40, VideoCost(domain.VideoTypeCinematic))
	// Unknown types fall back to the standard rate.
	assert.Equal(t, 25, VideoCost(domain.VideoType("imax")))
}

func TestTranscriptionCost(t *testing.T) {
	assert.Equal(t, 0, TranscriptionCost(0))

	// Short clips are floored at the minimum charge.
	assert.Equal(t, TranscriptionMinimumCents, TranscriptionCost(5))

	// Long clips scale per minute.
	assert.Equal(t, 10*TranscriptionCentsPerMinute, TranscriptionCost(600))
}

func TestReflectCost(t *testing.T) {
	assert.Equal(t, 0, ReflectCost(0))
	assert.Equal(t, 7*ReflectMessageCents, ReflectCost(7))
}
