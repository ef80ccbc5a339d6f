package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/icymirror/larkgpt/internal/history"
	"github.com/icymirror/larkgpt/internal/store"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear conversation history",
	}

	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryClearCmd())

	return cmd
}

// openLocalHistory opens the sqlite history store. The history subcommands
// operate on the local database only; the mongo backend is managed with
// regular mongo tooling.
func openLocalHistory() (*history.SQLiteStore, func(), error) {
	db, err := store.Open(paths.HistoryDB(), log)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return history.NewSQLiteStore(db), func() { db.Close() }, nil
}

func newHistoryShowCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "show <chat-id>",
		Short: "Print recent turns for a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeStore, err := openLocalHistory()
			if err != nil {
				return err
			}
			defer closeStore()

			turns, err := s.RecentTurns(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			if len(turns) == 0 {
				fmt.Println("no history")
				return nil
			}
			for _, t := range turns {
				fmt.Printf("[%s] Q: %s\n", t.CreatedAt.Format("2006-01-02 15:04:05"), t.Sent)
				if t.FunctionCall != nil {
					fmt.Printf("  -> %s(%s)\n", t.FunctionCall.Name, t.FunctionCall.Arguments)
				}
				if t.Answer != "" {
					fmt.Printf("  A: %s\n", t.Answer)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum turns to print")
	return cmd
}

func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <chat-id>",
		Short: "Delete all turns for a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeStore, err := openLocalHistory()
			if err != nil {
				return err
			}
			defer closeStore()

			if err := s.Clear(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Cleared history for %s\n", args[0])
			return nil
		},
	}
}
