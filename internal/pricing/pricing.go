// Package pricing is the single source of truth for per-unit AI costs.
//
// All amounts are integer cents. Rates for small units (characters, tokens)
// are expressed per million units so the arithmetic stays in integers.
package pricing

import "github.com/oneirolabs/oneiro/internal/domain"

const (
	// TTS synthesis, cents per 1M characters ($16 / 1M chars).
	TTSCentsPerMillionChars = 1600

	// Dream interpretation, cents per 1M tokens.
	InterpretationInputCentsPerMillion  = 300  // $3 / 1M input tokens
	InterpretationOutputCentsPerMillion = 1500 // $15 / 1M output tokens

	// Voice-note transcription, cents per minute of audio, with a minimum
	// charge applied to very short clips.
	TranscriptionCentsPerMinute = 1
	TranscriptionMinimumCents   = 1

	// ReflectAI chat, flat cents per message.
	ReflectMessageCents = 1
)

// videoCents maps a video type to its flat rendering cost.
var videoCents = map[domain.VideoType]int{
	domain.VideoTypeStandard:  25,
	domain.VideoTypeCinematic: 40,
}

// TTSCost returns the cost of synthesizing n characters of speech.
func TTSCost(chars int) int {
	if chars <= 0 {
		return 0
	}
	return chars * TTSCentsPerMillionChars / 1_000_000
}

// InterpretationCost returns the cost of one interpretation call.
func InterpretationCost(inputTokens, outputTokens int) int {
	in := inputTokens * InterpretationInputCentsPerMillion / 1_000_000
	out := outputTokens * InterpretationOutputCentsPerMillion / 1_000_000
	return in + out
}

// VideoCost returns the flat rendering cost for a video type. Unknown types
// are charged at the standard rate.
func VideoCost(vt domain.VideoType) int {
	if c, ok := videoCents[vt]; ok {
		return c
	}
	return videoCents[domain.VideoTypeStandard]
}

// TranscriptionCost returns the cost of transcribing the given audio length,
// floored at the minimum charge.
func TranscriptionCost(seconds int) int {
	if seconds <= 0 {
		return 0
	}
	c := seconds * TranscriptionCentsPerMinute / 60
	if c < TranscriptionMinimumCents {
		return TranscriptionMinimumCents
	}
	return c
}

// ReflectCost returns the cost of n ReflectAI messages.
func ReflectCost(messages int) int {
	if messages <= 0 {
		return 0
	}
	return messages * ReflectMessageCents
}
