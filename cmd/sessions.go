package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/ivrmap/internal/model"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored discovery sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initInspectStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		sessions, err := st.ListSessions(cmd.Context())
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions yet.")
			return nil
		}

		fmt.Printf("%-15s %-18s %6s %9s  %s\n", "KEY", "IDENTITY", "CALLS", "COST", "UPDATED")
		for _, s := range sessions {
			fmt.Printf("%-15s %-18s %6d %9s  %s\n",
				s.Key, s.Identity, s.CallCount, fmt.Sprintf("$%.2f", s.TotalCost),
				s.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <phone>",
	Short: "Delete a stored session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initInspectStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.DeleteSession(cmd.Context(), model.SessionKey(args[0])); err != nil {
			return err
		}
		fmt.Println("Session deleted.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(deleteCmd)
}
