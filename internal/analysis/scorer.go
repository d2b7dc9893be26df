package analysis

import (
	"math"
	"strconv"
)

// Score ranges. The clamps below are load-bearing: the age factor can push
// raw products outside the draw ranges in both directions.
const (
	credibilityMin = 40
	credibilityMax = 100

	realFollowersMin = 60
	realFollowersMax = 100

	suspiciousMin = 5
	suspiciousMax = 40
)

// engagementTier maps an adjusted engagement rate band to the range the
// engagement score is drawn from. Bands are (previous ceiling, ceiling].
type engagementTier struct {
	ceiling  float64
	min, max int
}

var engagementTiers = []engagementTier{
	{ceiling: 0.5, min: 30, max: 45},
	{ceiling: 2, min: 46, max: 70},
	{ceiling: 5, min: 71, max: 85},
	{ceiling: math.Inf(1), min: 86, max: 100},
}

// ComposeScores turns seeds and the age factor into the score bundle.
// The engagement and followers seeds each feed two draws with different
// ranges.
func ComposeScores(gen Generator, seeds SeedSet, ageFactor float64) Composition {
	// Products are wrapped in float64 conversions so no GOARCH fuses them
	// into a multiply-add with different rounding.
	credibilityWeight := 0.8 + float64(ageFactor*0.2)
	engagementWeight := 0.7 + float64(ageFactor*0.3)
	followersWeight := 0.9 + float64(ageFactor*0.1)
	suspiciousWeight := 1.2 - ageFactor

	credibilityBase := gen.Between(float64(seeds.Credibility), 40, 95)
	credibility := clip(int(math.Floor(float64(credibilityBase)*credibilityWeight)), credibilityMin, credibilityMax)

	baseRate := float64(gen.Between(float64(seeds.Engagement), 5, 80)) / 10
	adjustedRate := baseRate * engagementWeight

	tier := tierFor(adjustedRate)
	engagement := gen.Between(float64(seeds.Engagement), tier.min, tier.max)

	realFollowersBase := gen.Between(float64(seeds.Followers), 60, 95)
	realFollowers := clip(int(math.Floor(float64(realFollowersBase)*followersWeight)), realFollowersMin, realFollowersMax)

	suspiciousBase := gen.Between(float64(seeds.Followers), 5, 35)
	suspicious := clip(int(math.Floor(float64(suspiciousBase)*suspiciousWeight)), suspiciousMin, suspiciousMax)

	return Composition{
		ScoreBundle: ScoreBundle{
			CredibilityScore:      credibility,
			EngagementScore:       engagement,
			RealFollowersPct:      realFollowers,
			SuspiciousAccountsPct: suspicious,
			EngagementRatePct:     formatOneDecimal(adjustedRate),
		},
		AdjustedEngagementRate: adjustedRate,
	}
}

func tierFor(rate float64) engagementTier {
	for _, t := range engagementTiers {
		if rate <= t.ceiling {
			return t
		}
	}
	// NaN compares false against every ceiling
	return engagementTiers[len(engagementTiers)-1]
}

func clip(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// formatOneDecimal renders x with one fractional digit. strconv rounds
// exact binary ties to even; they are rounded upward here instead, so 0.25
// renders as "0.3". Only odd multiples of 0.25 can be exact ties.
func formatOneDecimal(x float64) string {
	q := x * 4
	if x >= 0 && q == math.Trunc(q) && math.Mod(q, 2) == 1 {
		return strconv.FormatFloat((math.Floor(x*10)+1)/10, 'f', 1, 64)
	}
	return strconv.FormatFloat(x, 'f', 1, 64)
}
