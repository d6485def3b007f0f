package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTier(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   Tier
		wantOK bool
	}{
		{name: "free", input: "free", want: TierFree, wantOK: true},
		{name: "pro", input: "pro", want: TierPro, wantOK: true},
		{name: "premium", input: "premium", want: TierPremium, wantOK: true},
		{name: "vip", input: "vip", want: TierVIP, wantOK: true},
		{name: "unknown falls back to free", input: "platinum", want: TierFree, wantOK: false},
		{name: "empty falls back to free", input: "", want: TierFree, wantOK: false},
		{name: "case sensitive", input: "Pro", want: TierFree, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTier(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestCanCreateDreamAnalysis_Boundaries(t *testing.T) {
	limits := map[Tier]int{
		TierFree:    2,
		TierPro:     10,
		TierPremium: 20,
		TierVIP:     25,
	}

	for tier, limit := range limits {
		t.Run(string(tier), func(t *testing.T) {
			assert.True(t, CanCreateDreamAnalysis(tier, 0), "zero usage must be allowed")
			assert.True(t, CanCreateDreamAnalysis(tier, limit-1), "one under the limit must be allowed")
			assert.False(t, CanCreateDreamAnalysis(tier, limit), "exactly at the limit must be denied")
			assert.False(t, CanCreateDreamAnalysis(tier, limit+1), "over the limit must be denied")
		})
	}
}

func TestCanCreateDreamAnalysis_UnknownTierUsesFreeLimit(t *testing.T) {
	assert.True(t, CanCreateDreamAnalysis(Tier("mystery"), 1))
	assert.False(t, CanCreateDreamAnalysis(Tier("mystery"), 2))
}

func TestShouldApplyWatermark_FalseForEveryTier(t *testing.T) {
	for _, tier := range Tiers {
		assert.False(t, ShouldApplyWatermark(tier), "tier %s must not be watermarked", tier)
	}
}

func TestVideoQuality_StrictlyIncreasesAcrossTiers(t *testing.T) {
	prev := -1
	for _, tier := range Tiers {
		rank := GetCapabilities(tier).VideoQuality.Rank()
		assert.Greater(t, rank, prev, "quality must strictly increase at tier %s", tier)
		prev = rank
	}
}

func TestVideoDuration(t *testing.T) {
	tests := []struct {
		tier Tier
		vt   VideoType
		want int
	}{
		{TierFree, VideoTypeStandard, 3},
		{TierFree, VideoTypeCinematic, 3},
		{TierPro, VideoTypeCinematic, 5},
		{TierPremium, VideoTypeCinematic, 8},
		{TierVIP, VideoTypeCinematic, 10},
		{TierVIP, VideoType("bogus"), 8}, // unknown type falls back to standard
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, VideoDuration(tt.tier, tt.vt), "%s/%s", tt.tier, tt.vt)
	}
}

func TestCanUseReflect(t *testing.T) {
	assert.False(t, CanUseReflect(TierFree))
	assert.True(t, CanUseReflect(TierPro))
	assert.True(t, CanUseReflect(TierPremium))
	assert.True(t, CanUseReflect(TierVIP))
}
