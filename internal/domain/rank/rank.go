// Package rank orders combined records by a weighted composite score.
package rank

import (
	"context"
	"math"
	"sort"

	"github.com/teamlens/teamlens/internal/domain/analysis"
	"github.com/teamlens/teamlens/internal/domain/merge"
	"github.com/teamlens/teamlens/pkg/logger"
)

// Tier labels, coarsest to finest performer bucket.
const (
	TierTop          = "top"
	TierHigh         = "high"
	TierAboveAverage = "above_average"
	TierDeveloping   = "developing"
)

// Composite score weights. 50/50 is a fixed policy split.
const (
	complexityWeight = 0.5
	otherWeight      = 0.5
)

// RankedRecord is a CombinedRecord enriched with component scores, a rank
// and a tier label.
type RankedRecord struct {
	merge.CombinedRecord

	Analysis analysis.Result

	ComplexityComponent float64
	OtherComponent      float64
	CompositeScore      float64
	Rank                int
	Percentile          float64
	Tier                string
}

// Summary describes one ranking run.
type Summary struct {
	Total             int
	AvgCompositeScore float64
	MinCompositeScore float64
	MaxCompositeScore float64
	TopPerformer      string
	TopPerformerScore float64
	Top10Percent      int
	Top50Percent      int
	Bottom50Percent   int
}

// Ranker computes component scores, composite scores and the final ordering.
type Ranker struct{}

// NewRanker constructs a Ranker.
func NewRanker() *Ranker {
	return &Ranker{}
}

// Rank scores every record against the cohort and returns them ordered by
// composite score descending. Ties keep input order. An empty input yields
// an empty ranking.
func (rk *Ranker) Rank(ctx context.Context, records []merge.CombinedRecord, results map[string]analysis.Result) []RankedRecord {
	if len(records) == 0 {
		return nil
	}

	ranked := make([]RankedRecord, len(records))
	for i, r := range records {
		ranked[i] = RankedRecord{CombinedRecord: r, Analysis: results[r.Key]}
	}

	complexityComponents(ranked)
	otherComponents(ranked)
	for i := range ranked {
		ranked[i].CompositeScore = round2(ranked[i].ComplexityComponent*complexityWeight + ranked[i].OtherComponent*otherWeight)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CompositeScore > ranked[j].CompositeScore
	})

	n := len(ranked)
	for i := range ranked {
		rank := i + 1
		ranked[i].Rank = rank
		ranked[i].Percentile = round1((1 - float64(rank-1)/float64(n)) * 100)
		ranked[i].Tier = tier(rank, n)
	}

	logger.Named("rank").Info(ctx, "ranking complete",
		logger.Int("records", n),
		logger.String("top", ranked[0].Key),
		logger.Float64("top_score", ranked[0].CompositeScore))

	return ranked
}

// Summarize computes cohort statistics over a ranked list.
func (rk *Ranker) Summarize(ranked []RankedRecord) Summary {
	if len(ranked) == 0 {
		return Summary{}
	}

	s := Summary{
		Total:             len(ranked),
		MinCompositeScore: ranked[0].CompositeScore,
		MaxCompositeScore: ranked[0].CompositeScore,
		TopPerformer:      ranked[0].Key,
		TopPerformerScore: ranked[0].CompositeScore,
	}
	var sum float64
	for _, r := range ranked {
		sum += r.CompositeScore
		s.MinCompositeScore = math.Min(s.MinCompositeScore, r.CompositeScore)
		s.MaxCompositeScore = math.Max(s.MaxCompositeScore, r.CompositeScore)
		if r.Percentile >= 90 {
			s.Top10Percent++
		}
		if r.Percentile >= 50 {
			s.Top50Percent++
		} else {
			s.Bottom50Percent++
		}
	}
	s.AvgCompositeScore = round2(sum / float64(len(ranked)))

	return s
}

// normalize maps value onto [0,100] within the cohort's range. A flat cohort
// normalizes to 50.0 for everyone.
func normalize(value, min, max float64) float64 {
	if max == min {
		return 50.0
	}
	return round2((value - min) / (max - min) * 100)
}

func complexityComponents(ranked []RankedRecord) {
	min, max := cohortRange(ranked, func(r *RankedRecord) float64 { return r.Source.TotalComplexity })
	for i := range ranked {
		ranked[i].ComplexityComponent = normalize(ranked[i].Source.TotalComplexity, min, max)
	}
}

// otherComponents averages the qualitative scores with the normalized
// quantitative ones. A zero component means "no data in that area" and is
// left out of the mean.
func otherComponents(ranked []RankedRecord) {
	minFreq, maxFreq := cohortRange(ranked, func(r *RankedRecord) float64 { return r.Source.CommitFrequency })
	minPart, maxPart := cohortRange(ranked, func(r *RankedRecord) float64 { return r.Source.ReviewParticipation })

	for i := range ranked {
		r := &ranked[i]
		components := []float64{
			r.Analysis.Code.QualityScore * 10,
			r.Analysis.ReviewAvg() * 10,
			normalize(r.Source.CommitFrequency, minFreq, maxFreq),
			r.Source.PRMergeRate,
			normalize(r.Source.ReviewParticipation, minPart, maxPart),
		}

		var sum float64
		var n int
		for _, c := range components {
			if c > 0 {
				sum += c
				n++
			}
		}
		if n > 0 {
			r.OtherComponent = round2(sum / float64(n))
		}
	}
}

func cohortRange(ranked []RankedRecord, field func(*RankedRecord) float64) (min, max float64) {
	min, max = field(&ranked[0]), field(&ranked[0])
	for i := range ranked {
		v := field(&ranked[i])
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	return min, max
}

func tier(rank, total int) string {
	frac := float64(rank) / float64(total)
	switch {
	case rank == 1:
		return TierTop
	case frac <= 0.10:
		return TierHigh
	case frac <= 0.50:
		return TierAboveAverage
	default:
		return TierDeveloping
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
