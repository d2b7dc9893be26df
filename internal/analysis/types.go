package analysis

// Kind classifies a finding for presentation.
type Kind string

const (
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
)

// SeedSet holds the four independent seeds derived from a token hash.
type SeedSet struct {
	Credibility int64 `json:"credibility"`
	Engagement  int64 `json:"engagement"`
	Followers   int64 `json:"followers"`
	Growth      int64 `json:"growth"`
}

// ScoreBundle is the numeric half of a report.
type ScoreBundle struct {
	CredibilityScore      int
	EngagementScore       int
	RealFollowersPct      int
	SuspiciousAccountsPct int
	// EngagementRatePct carries exactly one fractional digit and no percent sign.
	EngagementRatePct string
}

// Composition is a ScoreBundle plus the unrounded engagement rate the
// finding rules need.
type Composition struct {
	ScoreBundle
	AdjustedEngagementRate float64
}

type Finding struct {
	Kind        Kind   `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Report is the complete output of an analysis.
type Report struct {
	CredibilityScore   int       `json:"credibility_score"`
	EngagementScore    int       `json:"engagement_score"`
	RealFollowers      string    `json:"real_followers"`
	SuspiciousAccounts string    `json:"suspicious_accounts"`
	EngagementRate     string    `json:"engagement_rate"`
	Findings           []Finding `json:"findings"`
}
