// Package reviewparser implements C4: extracting a ranking structure from a
// stage-2 model reply that is tolerant to format drift (spec §4.4). Reviewer
// output is free text from a third-party model; the parser is deliberately
// permissive about numbering and separator style rather than requiring an
// exact match.
package reviewparser

import (
	"regexp"
	"strings"

	"github.com/councilhq/orchestrator/internal/council"
)

// rankLine matches "Rank N: <label> — <reasoning>" and its tolerated
// variants: "#N:", "N.", any of "—", ":", "-" as the label/reasoning
// separator, case-insensitive on the "Rank" keyword.
var rankLine = regexp.MustCompile(`(?i)^\s*(?:rank\s*)?#?\s*(\d+)\s*[:.\)]\s*([A-Za-z]+)\s*(?:[—:-]\s*(.*))?$`)

// Parse implements the algorithm in spec §4.4: scan rawText line by line,
// map matched labels back to model ids via labelToModel, drop self-rankings,
// and renumber to a contiguous 1..k. If fewer than half of the expected
// labels are matched, the result has ParseOK=false and an empty Rankings
// slice, but RawText is still recorded.
func Parse(reviewerModelID string, labelToModel map[string]string, rawText string) council.ReviewResult {
	result := council.ReviewResult{
		ReviewerModelID: reviewerModelID,
		RawText:         rawText,
	}

	type match struct {
		modelID   string
		reasoning string
	}

	seen := make(map[string]bool, len(labelToModel))
	var matches []match

	for _, line := range strings.Split(rawText, "\n") {
		m := rankLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		label := normalizeLabel(m[2])
		modelID, ok := labelToModel[label]
		if !ok {
			continue
		}
		if modelID == reviewerModelID {
			continue // spec §4.4 rule 2: drop self-rankings
		}
		if seen[modelID] {
			continue // spec §4.4 rule 4: discard later duplicates
		}
		seen[modelID] = true
		matches = append(matches, match{modelID: modelID, reasoning: strings.TrimSpace(m[3])})
	}

	expected := len(labelToModel)
	if reviewerModelID != "" {
		if _, isLabeled := findLabelFor(labelToModel, reviewerModelID); isLabeled {
			expected-- // the reviewer's own label is never expected to appear
		}
	}
	if expected <= 0 {
		expected = len(labelToModel)
	}

	if len(matches) < (expected+1)/2 {
		result.ParseOK = false
		result.Rankings = nil
		return result
	}

	result.ParseOK = true
	result.Rankings = make([]council.Ranking, 0, len(matches))
	for i, m := range matches {
		result.Rankings = append(result.Rankings, council.Ranking{
			ModelID:   m.modelID,
			Rank:      i + 1,
			Reasoning: m.reasoning,
		})
	}
	return result
}

// normalizeLabel upper-cases a matched label so lowercase labels ("b", "c")
// still resolve against the A/B/C anonymization map.
func normalizeLabel(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func findLabelFor(labelToModel map[string]string, modelID string) (string, bool) {
	for label, id := range labelToModel {
		if id == modelID {
			return label, true
		}
	}
	return "", false
}
