package reviewparser

import "testing"

func labelMap() map[string]string {
	return map[string]string{"A": "m1", "B": "m2", "C": "m3"}
}

func TestParseScenarioS1M1RanksBAndC(t *testing.T) {
	raw := "Rank 1: B — concise and correct\nRank 2: C — also correct but verbose\n"
	got := Parse("m1", labelMap(), raw)

	if !got.ParseOK {
		t.Fatalf("expected parse_ok, got false for raw %q", raw)
	}
	if len(got.Rankings) != 2 {
		t.Fatalf("expected 2 rankings, got %d: %+v", len(got.Rankings), got.Rankings)
	}
	if got.Rankings[0].ModelID != "m2" || got.Rankings[0].Rank != 1 {
		t.Fatalf("expected m2 rank 1 first, got %+v", got.Rankings[0])
	}
	if got.Rankings[1].ModelID != "m3" || got.Rankings[1].Rank != 2 {
		t.Fatalf("expected m3 rank 2 second, got %+v", got.Rankings[1])
	}
}

func TestParseDropsSelfRanking(t *testing.T) {
	raw := "Rank 1: A — mine\nRank 2: B — theirs\nRank 3: C — theirs too\n"
	got := Parse("m1", labelMap(), raw)

	for _, r := range got.Rankings {
		if r.ModelID == "m1" {
			t.Fatalf("self-ranking must be dropped, got %+v", got.Rankings)
		}
	}
	if len(got.Rankings) != 2 {
		t.Fatalf("expected 2 rankings after self-drop, got %d", len(got.Rankings))
	}
	if got.Rankings[0].Rank != 1 || got.Rankings[1].Rank != 2 {
		t.Fatalf("expected renumbered contiguous ranks, got %+v", got.Rankings)
	}
}

func TestParseToleratesFormatVariants(t *testing.T) {
	raw := "#1: b - great answer\n2. c: fine\n"
	got := Parse("m1", labelMap(), raw)

	if !got.ParseOK {
		t.Fatalf("expected tolerant parse to succeed, got raw_text=%q", got.RawText)
	}
	if got.Rankings[0].ModelID != "m2" || got.Rankings[1].ModelID != "m3" {
		t.Fatalf("expected lowercase labels resolved, got %+v", got.Rankings)
	}
}

func TestParseMalformedReplyYieldsParseNotOK(t *testing.T) {
	got := Parse("m2", labelMap(), "I don't know.")
	if got.ParseOK {
		t.Fatalf("expected parse_ok=false for unparseable reply")
	}
	if len(got.Rankings) != 0 {
		t.Fatalf("expected empty rankings, got %+v", got.Rankings)
	}
	if got.RawText != "I don't know." {
		t.Fatalf("raw_text must still be recorded, got %q", got.RawText)
	}
}

func TestParseDiscardsDuplicateLabelMatches(t *testing.T) {
	raw := "Rank 1: B — first\nRank 2: B — duplicate\nRank 3: C — third\n"
	got := Parse("m1", labelMap(), raw)

	count := 0
	for _, r := range got.Rankings {
		if r.ModelID == "m2" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected duplicate model id discarded, got %d occurrences", count)
	}
}
