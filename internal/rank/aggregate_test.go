package rank

import (
	"testing"

	"github.com/councilhq/orchestrator/internal/council"
)

func newReview(reviewer string, ok bool, rankings ...council.Ranking) council.ReviewResult {
	return council.ReviewResult{ReviewerModelID: reviewer, ParseOK: ok, Rankings: rankings}
}

func TestAggregateMatchesSpecScenarioS1(t *testing.T) {
	reviews := []council.ReviewResult{
		newReview("m1", true, council.Ranking{ModelID: "m2", Rank: 1}, council.Ranking{ModelID: "m3", Rank: 2}),
		newReview("m2", true, council.Ranking{ModelID: "m1", Rank: 1}, council.Ranking{ModelID: "m3", Rank: 2}),
		newReview("m3", true, council.Ranking{ModelID: "m1", Rank: 1}, council.Ranking{ModelID: "m2", Rank: 2}),
	}

	got := Aggregate(reviews)
	want := map[string]float64{"m1": 1.0, "m2": 1.5, "m3": 2.0}

	if len(got) != 3 {
		t.Fatalf("expected 3 aggregate rankings, got %d", len(got))
	}
	if got[0].ModelID != "m1" {
		t.Fatalf("expected m1 first (best mean rank), got %s", got[0].ModelID)
	}
	for _, ar := range got {
		if ar.MeanRank != want[ar.ModelID] {
			t.Fatalf("model %s: got mean rank %v, want %v", ar.ModelID, ar.MeanRank, want[ar.ModelID])
		}
	}
}

func TestAggregateExcludesInvalidReviews(t *testing.T) {
	reviews := []council.ReviewResult{
		newReview("m1", true, council.Ranking{ModelID: "m2", Rank: 1}),
		newReview("m2", false), // parse_ok=false, must not count
	}
	got := Aggregate(reviews)
	if len(got) != 1 || got[0].ModelID != "m2" || got[0].ReviewerCount != 1 {
		t.Fatalf("unexpected aggregate: %+v", got)
	}
}

func TestAggregateTiesBrokenByModelID(t *testing.T) {
	reviews := []council.ReviewResult{
		newReview("m1", true, council.Ranking{ModelID: "mb", Rank: 1}, council.Ranking{ModelID: "ma", Rank: 1}),
	}
	got := Aggregate(reviews)
	if len(got) != 2 || got[0].ModelID != "ma" || got[1].ModelID != "mb" {
		t.Fatalf("expected lexicographic tie-break ma before mb, got %+v", got)
	}
}
