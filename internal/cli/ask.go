package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/councilhq/orchestrator/internal/config"
	"github.com/councilhq/orchestrator/internal/orchestrator"
	"github.com/councilhq/orchestrator/internal/reviewparser"
	"github.com/councilhq/orchestrator/internal/store"
	"github.com/councilhq/orchestrator/internal/store/memstore"
)

var (
	askModels       string
	askConversation string
	askDebugReviews bool
)

func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Run one council turn and stream the NDJSON events to stdout",
		Long: `ask sends a single question through the three-stage council
deliberation and prints each event as one NDJSON line to stdout. Every
invocation uses a fresh in-memory conversation store, so nothing is
persisted once the command exits; a --conversation id is looked up in that
empty store and a new conversation is started in its place.

Examples:
  councild ask "What's the fastest sorting algorithm for nearly-sorted data?"
  councild ask "Explain CAP theorem" --models=gpt-4o,claude-sonnet
  councild ask "Review this diff" --debug-reviews`,
		Args: cobra.ExactArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().StringVar(&askModels, "models", "", "comma-separated model ids to use instead of default_models")
	cmd.Flags().StringVar(&askConversation, "conversation", "", "conversation id to look up in ask's in-memory store (which starts empty, so a new conversation is started)")
	cmd.Flags().BoolVar(&askDebugReviews, "debug-reviews", false, "print a diff between each reviewer's raw text and its parsed rankings")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("ask: loading config: %w", err)
	}
	catalog, err := cfg.BuildCatalog()
	if err != nil {
		return fmt.Errorf("ask: building catalog: %w", err)
	}
	router, err := cfg.BuildRouter()
	if err != nil {
		return fmt.Errorf("ask: building model router: %w", err)
	}

	var st store.ConversationStore = memstore.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	orch := orchestrator.New(catalog, router, st, orchestratorConfig(cfg), logger)

	selected := cfg.DefaultModels
	if askModels != "" {
		selected = strings.Split(askModels, ",")
		for i := range selected {
			selected[i] = strings.TrimSpace(selected[i])
		}
	}

	_, ch := orch.Run(cmd.Context(), orchestrator.Request{
		UserMessage:    question,
		ConversationID: askConversation,
		SelectedModels: selected,
	})

	enc := json.NewEncoder(cmd.OutOrStdout())
	for ev := range ch {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("ask: encoding event: %w", err)
		}
	}

	if askDebugReviews {
		printReviewDiffs(cmd, st)
	}
	return nil
}

// printReviewDiffs re-reads the just-persisted turn from the store to reach
// each ReviewResult's RawText (the wire Event's review payload,
// events.ReviewData, carries no raw text) and prints a diff against the
// re-serialized rankings, for spotting parses that look plausible but
// dropped or misattributed a ranking.
func printReviewDiffs(cmd *cobra.Command, st store.ConversationStore) {
	convs, err := st.List(context.Background())
	if err != nil || len(convs) == 0 {
		return
	}
	conv := convs[0]
	if len(conv.Turns) == 0 {
		return
	}
	turn := conv.Turns[len(conv.Turns)-1]
	for _, review := range turn.Reviews {
		fmt.Fprintln(cmd.ErrOrStderr(), reviewparser.DiffRawVsRankings(review.ReviewerModelID, review))
	}
}
