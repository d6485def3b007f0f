// Package domain contains core business types for the Oneiro platform.
//
// This file defines the subscription tier enum and the capability table that
// maps each tier to its entitlements. Entitlements are expressed per
// (tier, feature) rather than per-user, so a tier upgrade takes effect
// immediately without touching existing rows.
package domain

// Tier represents a subscription plan.
type Tier string

const (
	TierFree    Tier = "free"
	TierPro     Tier = "pro"
	TierPremium Tier = "premium"
	TierVIP     Tier = "vip"
)

// Tiers lists all tiers in ascending order of entitlement.
var Tiers = []Tier{TierFree, TierPro, TierPremium, TierVIP}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierPremium, TierVIP:
		return true
	default:
		return false
	}
}

// ParseTier maps a raw tier string to a Tier. Unknown values map to TierFree;
// the second return lets call sites log the fallback instead of silently
// treating garbage as a valid plan.
func ParseTier(s string) (Tier, bool) {
	t := Tier(s)
	if t.Valid() {
		return t, true
	}
	return TierFree, false
}

// VideoType identifies the kind of dream video being rendered.
type VideoType string

const (
	VideoTypeStandard  VideoType = "standard"
	VideoTypeCinematic VideoType = "cinematic"
)

// VideoQuality is the rendering quality ladder. Values are ordered: use
// Rank for comparisons.
type VideoQuality string

const (
	VideoQualityLow    VideoQuality = "low"
	VideoQualityMedium VideoQuality = "medium"
	VideoQualityHigh   VideoQuality = "high"
	VideoQualityUltra  VideoQuality = "ultra"
)

// Rank returns the ordinal position of the quality level, with low = 0.
// Unknown values rank below low.
func (q VideoQuality) Rank() int {
	switch q {
	case VideoQualityLow:
		return 0
	case VideoQualityMedium:
		return 1
	case VideoQualityHigh:
		return 2
	case VideoQualityUltra:
		return 3
	default:
		return -1
	}
}

// Capabilities defines the entitlements of a subscription tier.
type Capabilities struct {
	// DreamAnalyses is the number of AI dream analyses allowed. For the free
	// tier this is a lifetime total; for paid tiers it resets monthly.
	DreamAnalyses    int
	LifetimeAnalyses bool

	// VideoDurationSeconds caps the rendered clip length per video type.
	VideoDurationSeconds map[VideoType]int

	// VideoQuality is the rendering quality the tier is served.
	VideoQuality VideoQuality

	// Watermark marks rendered videos. No tier is watermarked under current
	// pricing; the flag stays so a future cheap tier can flip it.
	Watermark bool

	// ReflectCredits is the monthly ReflectAI message allowance.
	// UnlimitedReflect bypasses the credit record entirely.
	ReflectCredits   int
	UnlimitedReflect bool

	// Transcription enables voice-note transcription.
	Transcription bool
}

// tierCapabilities is the single source of truth for tier entitlements.
var tierCapabilities = map[Tier]Capabilities{
	TierFree: {
		DreamAnalyses:    2,
		LifetimeAnalyses: true,
		VideoDurationSeconds: map[VideoType]int{
			VideoTypeStandard:  3,
			VideoTypeCinematic: 3,
		},
		VideoQuality:  VideoQualityLow,
		ReflectCredits: 0,
	},
	TierPro: {
		DreamAnalyses: 10,
		VideoDurationSeconds: map[VideoType]int{
			VideoTypeStandard:  5,
			VideoTypeCinematic: 5,
		},
		VideoQuality:   VideoQualityMedium,
		ReflectCredits: 50,
		Transcription:  true,
	},
	TierPremium: {
		DreamAnalyses: 20,
		VideoDurationSeconds: map[VideoType]int{
			VideoTypeStandard:  5,
			VideoTypeCinematic: 8,
		},
		VideoQuality:   VideoQualityHigh,
		ReflectCredits: 150,
		Transcription:  true,
	},
	TierVIP: {
		DreamAnalyses: 25,
		VideoDurationSeconds: map[VideoType]int{
			VideoTypeStandard:  8,
			VideoTypeCinematic: 10,
		},
		VideoQuality:     VideoQualityUltra,
		UnlimitedReflect: true,
		Transcription:    true,
	},
}

// GetCapabilities returns the capability set for a tier, defaulting to the
// free tier for unknown tiers.
func GetCapabilities(tier Tier) Capabilities {
	if caps, ok := tierCapabilities[tier]; ok {
		return caps
	}
	return tierCapabilities[TierFree]
}

// CanCreateDreamAnalysis reports whether a user with the given usage count may
// start another dream analysis. The boundary is exact: used == limit denies.
func CanCreateDreamAnalysis(tier Tier, used int) bool {
	caps := GetCapabilities(tier)
	return used < caps.DreamAnalyses
}

// ShouldApplyWatermark reports whether rendered videos for the tier carry a
// watermark.
func ShouldApplyWatermark(tier Tier) bool {
	return GetCapabilities(tier).Watermark
}

// VideoDuration returns the clip duration cap in seconds for the tier and
// video type. Unknown video types fall back to the standard cap.
func VideoDuration(tier Tier, vt VideoType) int {
	caps := GetCapabilities(tier)
	if d, ok := caps.VideoDurationSeconds[vt]; ok {
		return d
	}
	return caps.VideoDurationSeconds[VideoTypeStandard]
}

// CanUseReflect reports whether the tier has any ReflectAI access at all.
func CanUseReflect(tier Tier) bool {
	caps := GetCapabilities(tier)
	return caps.UnlimitedReflect || caps.ReflectCredits > 0
}
