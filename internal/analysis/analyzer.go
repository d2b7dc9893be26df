package analysis

import "strconv"

// Analyzer orchestrates the report pipeline. It holds no mutable state and
// is safe for concurrent use.
type Analyzer struct {
	generator Generator
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithGenerator replaces the sine-based generator, typically with a lookup
// table in tests.
func WithGenerator(gen Generator) Option {
	return func(a *Analyzer) {
		if gen != nil {
			a.generator = gen
		}
	}
}

// NewAnalyzer creates an analyzer backed by SineGenerator unless overridden.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{generator: SineGenerator{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze produces the report for identifier. It is total: every string,
// including the empty one, yields a valid report.
func (a *Analyzer) Analyze(identifier string) Report {
	return a.AnalyzeToken(ExtractToken(identifier))
}

// AnalyzeToken runs the pipeline on an already extracted token.
func (a *Analyzer) AnalyzeToken(token string) Report {
	seeds := DeriveSeeds(HashToken(token))
	composition := ComposeScores(a.generator, seeds, EstimateAgeFactor(token))
	findings := EvaluateFindings(RuleInput{
		Composition: composition,
		Seeds:       seeds,
		Generator:   a.generator,
	})
	return AssembleReport(composition.ScoreBundle, findings)
}

// AssembleReport packages scores and findings without further computation.
func AssembleReport(scores ScoreBundle, findings []Finding) Report {
	return Report{
		CredibilityScore:   scores.CredibilityScore,
		EngagementScore:    scores.EngagementScore,
		RealFollowers:      strconv.Itoa(scores.RealFollowersPct) + "%",
		SuspiciousAccounts: strconv.Itoa(scores.SuspiciousAccountsPct) + "%",
		EngagementRate:     scores.EngagementRatePct + "%",
		Findings:           findings,
	}
}

// AnalyzeInput is a convenience wrapper using the default generator.
func AnalyzeInput(identifier string) Report {
	return NewAnalyzer().Analyze(identifier)
}
