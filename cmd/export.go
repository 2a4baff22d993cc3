package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/ivrmap/internal/model"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <phone>",
	Short: "Export a session's call history and menu tree to xlsx",
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

		file, err := buildWorkbook(session)
		if err != nil {
			return err
		}

		out := exportOut
		if out == "" {
			out = session.Key() + ".xlsx"
		}
		if err := file.Save(out); err != nil {
			return eris.Wrap(err, "save workbook")
		}
		fmt.Printf("Wrote %s\n", out)
		return nil
	},
}

// buildWorkbook renders a session as a two-sheet workbook: the call
// ledger and the flattened menu tree.
func buildWorkbook(session *model.Session) (*xlsx.File, error) {
	file := xlsx.NewFile()

	calls, err := file.AddSheet("Calls")
	if err != nil {
		return nil, eris.Wrap(err, "add calls sheet")
	}
	header := calls.AddRow()
	for _, h := range []string{"#", "Call ID", "Status", "Target Path", "Price (USD)", "Estimated", "Started", "Summary"} {
		header.AddCell().SetString(h)
	}
	for i, rec := range session.Calls {
		row := calls.AddRow()
		row.AddCell().SetInt(i + 1)
		row.AddCell().SetString(rec.CallID)
		row.AddCell().SetString(string(rec.Status))
		row.AddCell().SetString(rec.TargetPath.Key())
		row.AddCell().SetFloat(rec.Price)
		row.AddCell().SetBool(rec.PriceEstimated)
		if !rec.StartedAt.IsZero() {
			row.AddCell().SetString(rec.StartedAt.Format("2006-01-02 15:04:05"))
		} else {
			row.AddCell().SetString("")
		}
		row.AddCell().SetString(rec.PlanSummary)
	}
	total := calls.AddRow()
	total.AddCell().SetString("Total")
	for i := 0; i < 3; i++ {
		total.AddCell()
	}
	total.AddCell().SetFloat(session.TotalCost)

	tree, err := file.AddSheet("Menu Tree")
	if err != nil {
		return nil, eris.Wrap(err, "add tree sheet")
	}
	treeHeader := tree.AddRow()
	for _, h := range []string{"Node ID", "Path", "Prompt", "Confidence", "Digit", "Label", "Explored"} {
		treeHeader.AddCell().SetString(h)
	}
	addTreeRows(tree, session.LastRoot)

	return file, nil
}

// addTreeRows flattens the tree depth-first, one row per option plus a
// row for any node without options (a terminal).
func addTreeRows(sheet *xlsx.Sheet, n *model.Node) {
	if n == nil {
		return
	}
	if len(n.Options) == 0 {
		row := sheet.AddRow()
		row.AddCell().SetString(n.ID)
		row.AddCell().SetString(n.Path.Key())
		row.AddCell().SetString(n.PromptText)
		row.AddCell().SetFloat(n.Confidence)
	}
	for _, opt := range n.SortedOptions() {
		row := sheet.AddRow()
		row.AddCell().SetString(n.ID)
		row.AddCell().SetString(n.Path.Key())
		row.AddCell().SetString(n.PromptText)
		row.AddCell().SetFloat(n.Confidence)
		row.AddCell().SetString(opt.Digit)
		row.AddCell().SetString(opt.Label)
		row.AddCell().SetBool(opt.TargetNodeID != "")
	}
	for _, child := range n.Children {
		addTreeRows(sheet, child)
	}
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default <key>.xlsx)")
	rootCmd.AddCommand(exportCmd)
}
