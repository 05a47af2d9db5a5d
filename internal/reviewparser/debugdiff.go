package reviewparser

import (
	"fmt"
	"strings"

	"github.com/councilhq/orchestrator/internal/council"
	diffmatchpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// DiffRawVsRankings renders a human-readable diff between a reviewer's raw
// reply and the rank lines reconstructed from the parsed Rankings, for use
// by the `--debug-reviews` CLI flag when a parse looks suspicious. It is not
// on the hot path of any orchestration stage.
func DiffRawVsRankings(reviewerModelID string, result council.ReviewResult) string {
	reconstructed := reconstructRankLines(result.Rankings)

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(result.RawText, reconstructed, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var sb strings.Builder
	fmt.Fprintf(&sb, "review diff for %s (parse_ok=%t):\n", reviewerModelID, result.ParseOK)
	sb.WriteString(dmp.DiffPrettyText(diffs))
	return sb.String()
}

func reconstructRankLines(rankings []council.Ranking) string {
	var sb strings.Builder
	for _, r := range rankings {
		fmt.Fprintf(&sb, "Rank %d: %s — %s\n", r.Rank, r.ModelID, r.Reasoning)
	}
	return sb.String()
}
