package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/councilhq/orchestrator/internal/config"
	"github.com/councilhq/orchestrator/internal/council"
	"github.com/councilhq/orchestrator/internal/store"
	"github.com/councilhq/orchestrator/internal/store/memstore"
	"github.com/councilhq/orchestrator/internal/store/sqlitestore"
)

func newConversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "List, show, or delete persisted conversations",
	}
	cmd.AddCommand(newConversationsListCmd())
	cmd.AddCommand(newConversationsShowCmd())
	cmd.AddCommand(newConversationsDeleteCmd())
	return cmd
}

func newConversationsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored conversations, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closer, err := openConfiguredStore()
			if err != nil {
				return err
			}
			defer closer()

			convs, err := st.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("conversations list: %w", err)
			}

			if IsJSONOutput() {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(convs)
			}
			for _, c := range convs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d turns\tupdated %s\n", c.ID, len(c.Turns), c.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func newConversationsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show one conversation's full message and turn history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closer, err := openConfiguredStore()
			if err != nil {
				return err
			}
			defer closer()

			conv, err := st.Load(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("conversations show: %w", err)
			}

			if IsJSONOutput() {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(conv)
			}
			printConversation(cmd, conv)
			return nil
		},
	}
}

func newConversationsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closer, err := openConfiguredStore()
			if err != nil {
				return err
			}
			defer closer()

			if err := st.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("conversations delete: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func printConversation(cmd *cobra.Command, conv council.Conversation) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "conversation %s (created %s)\n", conv.ID, conv.CreatedAt.Format("2006-01-02 15:04:05"))
	for _, m := range conv.Messages {
		fmt.Fprintf(out, "  [%s] %s\n", m.Role, m.Content)
	}
	for i, t := range conv.Turns {
		fmt.Fprintf(out, "turn %d: %d opinions, %d reviews\n", i+1, len(t.Opinions), len(t.Reviews))
	}
}

// openConfiguredStore opens the store named by the loaded config, for
// subcommands that only read/delete persisted state rather than starting a
// deliberation (which additionally needs a model router and catalog).
func openConfiguredStore() (store.ConversationStore, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	switch cfg.Store.Driver {
	case "memory":
		return memstore.New(), func() {}, nil
	case "sqlite", "":
		st, err := sqlitestore.Open(cfg.Store.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return st, func() { _ = st.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
