package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/ivrmap/internal/model"
)

var callsVerbose bool

var callsCmd = &cobra.Command{
	Use:   "calls <phone>",
	Short: "Show the call history for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initInspectStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		session, err := st.LoadSession(cmd.Context(), model.SessionKey(args[0]))
		if err != nil {
			return err
		}
		if session == nil {
			return eris.Errorf("no session for %s", args[0])
		}

		for i, rec := range session.Calls {
			price := fmt.Sprintf("$%.3f", rec.Price)
			if rec.PriceEstimated {
				price += " (est)"
			}
			target := rec.TargetPath.Key()
			if target == "" {
				target = "(listen)"
			}
			fmt.Printf("#%d  %s  %-10s  path=%s  %s\n", i+1, rec.CallID, rec.Status, target, price)
			if rec.PlanSummary != "" {
				fmt.Printf("    %s\n", rec.PlanSummary)
			}
			if callsVerbose {
				for _, u := range rec.Transcript {
					fmt.Printf("    %-5s| %s\n", u.Role, u.Text)
				}
			}
		}
		fmt.Printf("Total: %d call(s), $%.2f\n", len(session.Calls), session.TotalCost)
		return nil
	},
}

func init() {
	callsCmd.Flags().BoolVarP(&callsVerbose, "verbose", "v", false, "print full transcripts")
	rootCmd.AddCommand(callsCmd)
}
