package analysis

import "fmt"

// RuleInput is everything a finding rule may look at.
type RuleInput struct {
	Composition
	Seeds     SeedSet
	Generator Generator
}

// Tier is one branch of a rule group. The first matching tier of a group
// produces that group's finding.
type Tier struct {
	Match   func(in RuleInput) bool
	Finding func(in RuleInput) Finding
}

// RuleGroup yields at most one finding.
type RuleGroup struct {
	Name  string
	Tiers []Tier
}

const growthAnomalyThreshold = 70

// FindingRules is evaluated top to bottom. The order is part of the output
// contract; the context note must stay last.
var FindingRules = []RuleGroup{
	{
		Name: "credibility",
		Tiers: []Tier{
			{
				Match: func(in RuleInput) bool { return in.CredibilityScore > 85 },
				Finding: fixed(KindSuccess, "Exceptional Profile Strength",
					"Profile demonstrates high authenticity with strong professional network"),
			},
			{
				Match: func(in RuleInput) bool { return in.CredibilityScore > 75 },
				Finding: fixed(KindSuccess, "Strong Profile Authenticity",
					"Most followers have complete profiles with verified work history"),
			},
			{
				Match: func(in RuleInput) bool { return in.CredibilityScore < 60 },
				Finding: fixed(KindWarning, "Profile Credibility Concerns",
					"Multiple indicators suggest potential profile authenticity issues"),
			},
		},
	},
	{
		Name: "engagement",
		Tiers: []Tier{
			{
				Match: func(in RuleInput) bool { return in.AdjustedEngagementRate > 5 },
				Finding: rated(KindSuccess, "Exceptional Engagement",
					"Outstanding engagement rate of %s%% indicates highly valuable content and authentic audience"),
			},
			{
				Match: func(in RuleInput) bool { return in.AdjustedEngagementRate > 2 },
				Finding: rated(KindSuccess, "Strong Engagement",
					"Healthy engagement rate of %s%% shows good audience interaction"),
			},
			{
				Match: func(in RuleInput) bool { return in.AdjustedEngagementRate < 0.5 },
				Finding: rated(KindWarning, "Low Engagement",
					"Engagement rate of %s%% is below industry average"),
			},
		},
	},
	{
		Name: "suspicious_accounts",
		Tiers: []Tier{
			{
				Match: func(in RuleInput) bool { return in.SuspiciousAccountsPct > 25 },
				Finding: fixed(KindWarning, "High Suspicious Activity",
					"Significant percentage of potentially suspicious accounts detected"),
			},
			{
				Match: func(in RuleInput) bool { return in.SuspiciousAccountsPct > 15 },
				Finding: fixed(KindWarning, "Elevated Suspicious Activity",
					"Higher than average percentage of potentially suspicious accounts"),
			},
		},
	},
	{
		Name: "growth",
		Tiers: []Tier{
			{
				Match: func(in RuleInput) bool {
					return in.Generator.Between(float64(in.Seeds.Growth), 0, 100) > growthAnomalyThreshold
				},
				Finding: fixed(KindWarning, "Unusual Growth Pattern",
					"Detected sudden increase in followers during last month"),
			},
		},
	},
	{
		Name: "context",
		Tiers: []Tier{
			{
				Match: func(RuleInput) bool { return true },
				Finding: fixed(KindInfo, "LinkedIn Engagement Context",
					"Industry average engagement rate is 0.5-2%. Rates above 5% are exceptional."),
			},
		},
	},
}

// EvaluateFindings runs FindingRules in order.
func EvaluateFindings(in RuleInput) []Finding {
	return evaluate(FindingRules, in)
}

func evaluate(groups []RuleGroup, in RuleInput) []Finding {
	findings := make([]Finding, 0, len(groups))
	for _, group := range groups {
		for _, tier := range group.Tiers {
			if tier.Match(in) {
				findings = append(findings, tier.Finding(in))
				break
			}
		}
	}
	return findings
}

func fixed(kind Kind, title, description string) func(RuleInput) Finding {
	return func(RuleInput) Finding {
		return Finding{Kind: kind, Title: title, Description: description}
	}
}

func rated(kind Kind, title, format string) func(RuleInput) Finding {
	return func(in RuleInput) Finding {
		return Finding{Kind: kind, Title: title, Description: fmt.Sprintf(format, in.EngagementRatePct)}
	}
}
