// Package rank computes the aggregated peer-review ranking spec §4.5
// describes: for each candidate model, the mean rank across reviewers that
// ranked it, ties broken lexicographically by model id.
//
// Grounded on the teacher's assignment-scoring shape
// (_examples/greenforestpath-ntm/internal/coordinator/assign.go:
// ScoreConfig/ScoredAssignment/AssignmentScoreBreakdown), generalized from
// "score a work item so it can be assigned to the best agent" to "score a
// model so it can be summarized for the chairman" — the deterministic,
// struct-of-floats scoring style carries over even though the domain does
// not.
package rank

import (
	"sort"

	"github.com/councilhq/orchestrator/internal/council"
)

// AggregateRanking is one model's summarized standing across all reviewers
// that ranked it.
type AggregateRanking struct {
	ModelID       string  `json:"model_id"`
	MeanRank      float64 `json:"mean_rank"`
	ReviewerCount int     `json:"reviewer_count"`
}

// Aggregate computes the mean-rank table from a set of valid ReviewResults
// (spec §4.5, "Aggregated ranking"). Reviews with ParseOK == false are
// excluded, matching §4.4 rule 3 ("excluded from aggregation"). The result
// is sorted by mean rank ascending, ties broken by model id ascending.
func Aggregate(reviews []council.ReviewResult) []AggregateRanking {
	sum := make(map[string]int)
	count := make(map[string]int)

	for _, r := range reviews {
		if !r.ParseOK {
			continue
		}
		for _, rk := range r.Rankings {
			sum[rk.ModelID] += rk.Rank
			count[rk.ModelID]++
		}
	}

	out := make([]AggregateRanking, 0, len(sum))
	for modelID, c := range count {
		out = append(out, AggregateRanking{
			ModelID:       modelID,
			MeanRank:      float64(sum[modelID]) / float64(c),
			ReviewerCount: c,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanRank != out[j].MeanRank {
			return out[i].MeanRank < out[j].MeanRank
		}
		return out[i].ModelID < out[j].ModelID
	})

	return out
}
