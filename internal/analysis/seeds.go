package analysis

const seedModulus = 1000

// DeriveSeeds expands a hash value into the four metric seeds.
func DeriveSeeds(hash int64) SeedSet {
	return SeedSet{
		Credibility: hash % seedModulus,
		Engagement:  (hash * 13) % seedModulus,
		Followers:   (hash * 17) % seedModulus,
		Growth:      (hash * 23) % seedModulus,
	}
}

// EstimateAgeFactor derives the profile maturity weight from the token's
// length and shape. Terms are summed in a fixed order so the float result
// is reproducible.
func EstimateAgeFactor(token string) float64 {
	n := tokenLength(token)

	factor := float64(float64(n) * 0.1)
	if hasASCIIDigit(token) {
		factor += 0.2
	} else {
		factor += 0.5
	}
	if n > 10 {
		factor += 0.3
	}
	if n > 0 && isLowerASCII(token) {
		factor += 0.4
	}
	return factor
}

func hasASCIIDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

func isLowerASCII(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
