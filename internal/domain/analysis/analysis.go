// Package analysis defines the fixed result shapes of the qualitative
// analyzer and the neutral fallback used when it is disabled or fails.
package analysis

// CodeQuality scores a set of diff samples. Scores range 0 to 10.
type CodeQuality struct {
	QualityScore         float64  `json:"quality_score"`
	MaintainabilityScore float64  `json:"maintainability_score"`
	PatternsObserved     []string `json:"patterns_observed"`
	BestPractices        []string `json:"best_practices_followed"`
	Improvements         []string `json:"areas_for_improvement"`
	Summary              string   `json:"summary"`
}

// ReviewQuality scores a set of review samples. Scores range 0 to 10.
type ReviewQuality struct {
	ThoroughnessScore float64  `json:"thoroughness_score"`
	HelpfulnessScore  float64  `json:"helpfulness_score"`
	ReviewPatterns    []string `json:"review_patterns"`
	Strengths         []string `json:"strengths"`
	Improvements      []string `json:"areas_for_improvement"`
	Summary           string   `json:"summary"`
}

// Insights is the free-text performance narrative built from the two score
// sets plus the quantitative metrics.
type Insights struct {
	Strengths      []string `json:"strengths"`
	Improvements   []string `json:"improvements"`
	OverallSummary string   `json:"overall_summary"`
}

// Result bundles one identity's qualitative analysis. Available is false for
// the fallback result, which distinguishes "analyzer produced zeros" from
// "analyzer never ran".
type Result struct {
	Code      CodeQuality
	Review    ReviewQuality
	Insights  Insights
	Available bool
}

// ReviewAvg is the mean of the two review sub-scores.
func (r Result) ReviewAvg() float64 {
	return (r.Review.ThoroughnessScore + r.Review.HelpfulnessScore) / 2
}

// Fallback returns the all-zero result substituted when analysis is
// unavailable.
func Fallback() Result {
	return Result{
		Code:   CodeQuality{Summary: "Analysis unavailable"},
		Review: ReviewQuality{Summary: "Analysis unavailable"},
		Insights: Insights{
			OverallSummary: "Qualitative analysis unavailable for this run.",
		},
	}
}
