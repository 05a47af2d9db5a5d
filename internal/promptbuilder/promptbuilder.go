// Package promptbuilder implements the three pure, deterministic prompt
// functions described in spec §4.3 (C3). None of these functions perform
// I/O; each returns the exact message slice a ModelClient call should send.
package promptbuilder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/councilhq/orchestrator/internal/council"
	"github.com/councilhq/orchestrator/internal/rank"
)

const stage1System = "You are a member of a council of independent AI models. " +
	"Answer the user's question directly and concisely, drawing on your own " +
	"reasoning. Do not mention that you are part of a council."

// Stage1Messages builds the fan-out prompt for a councilor: a system
// directive, prior history, then the new user message (spec §4.3).
func Stage1Messages(history []council.ChatMessage, userMessage string) []council.ChatMessage {
	msgs := make([]council.ChatMessage, 0, len(history)+2)
	msgs = append(msgs, council.ChatMessage{Role: "system", Content: stage1System})
	msgs = append(msgs, history...)
	msgs = append(msgs, council.ChatMessage{Role: council.RoleUser, Content: userMessage})
	return msgs
}

// labelFor returns the anonymous label (A, B, C, ...) for a zero-based
// index, extending past Z as AA, AB, ... should the council ever grow that
// large.
func labelFor(index int) string {
	if index < 26 {
		return string(rune('A' + index))
	}
	return labelFor(index/26-1) + labelFor(index%26)
}

// AnonymizationMap fixes the canonical order used to assign labels: stable,
// by model id ascending (spec §4.5, "Anonymization"). It returns the
// ordered opinions alongside a label->modelID map.
func AnonymizationMap(opinions []council.ModelOpinion) (ordered []council.ModelOpinion, labelToModel map[string]string) {
	ordered = make([]council.ModelOpinion, len(opinions))
	copy(ordered, opinions)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ModelID < ordered[j].ModelID })

	labelToModel = make(map[string]string, len(ordered))
	for i, o := range ordered {
		labelToModel[labelFor(i)] = o.ModelID
	}
	return ordered, labelToModel
}

// Stage2Messages builds the single user-role peer-review prompt (spec
// §4.3): the original question followed by every opinion labeled
// Response A, Response B, ... in canonical (anonymized) order, with
// instructions to output one ranking line per label, best first, omitting
// the reviewer's own response.
func Stage2Messages(userMessage string, orderedOpinions []council.ModelOpinion, labelToModel map[string]string) []council.ChatMessage {
	var sb strings.Builder
	sb.WriteString("You are reviewing anonymous responses to the following question:\n\n")
	sb.WriteString(userMessage)
	sb.WriteString("\n\n")

	labels := make([]string, 0, len(orderedOpinions))
	for i, o := range orderedOpinions {
		label := labelFor(i)
		labels = append(labels, label)
		sb.WriteString(fmt.Sprintf("Response %s:\n%s\n\n", label, o.Text))
	}

	sb.WriteString(fmt.Sprintf(
		"Rank all %d responses from best to worst. Output exactly one line per "+
			"response, in the form:\n\nRank N: <label> — <reasoning>\n\n"+
			"where N starts at 1 for the best response. If one of the responses "+
			"above is your own, omit its line entirely — do not rank yourself. "+
			"Output nothing else.",
		len(labels)))

	return []council.ChatMessage{{Role: council.RoleUser, Content: sb.String()}}
}

const stage3SystemFmt = "You are %s, the chairman of a council of independent AI " +
	"models. Your role is to synthesize the council's opinions and peer " +
	"reviews into a single, authoritative answer that integrates the " +
	"strongest points and resolves any contradictions between councilors."

// Stage3Messages builds the synthesis prompt for the chairman (spec §4.3):
// a system directive identifying the chairman, then a user-role message
// containing the original question, each opinion attributed by model id,
// and the aggregated ranking summary.
func Stage3Messages(
	chairmanID string,
	history []council.ChatMessage,
	userMessage string,
	opinions []council.ModelOpinion,
	aggregated []rank.AggregateRanking,
) []council.ChatMessage {
	msgs := make([]council.ChatMessage, 0, len(history)+2)
	msgs = append(msgs, council.ChatMessage{Role: "system", Content: fmt.Sprintf(stage3SystemFmt, chairmanID)})
	msgs = append(msgs, history...)

	var sb strings.Builder
	sb.WriteString("Original question:\n")
	sb.WriteString(userMessage)
	sb.WriteString("\n\n")

	sb.WriteString("Council opinions:\n")
	for _, o := range opinions {
		if o.IsError() {
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s: %s\n", o.ModelID, o.Text))
	}
	sb.WriteString("\n")

	if len(aggregated) > 0 {
		sb.WriteString("Aggregated peer-review ranking (lower mean rank is better):\n")
		for _, a := range aggregated {
			sb.WriteString(fmt.Sprintf("- %s: mean rank %.2f across %d reviewer(s)\n", a.ModelID, a.MeanRank, a.ReviewerCount))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Synthesize a single answer that integrates the strongest points above and resolves any contradictions.")

	msgs = append(msgs, council.ChatMessage{Role: council.RoleUser, Content: sb.String()})
	return msgs
}
