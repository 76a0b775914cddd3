package ui

import (
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"songdwh/internal/warehouse"
	"songdwh/pkg/errors"
)

// RenderResults prints one row per executed statement. When runErr is set
// a final row names the statement that failed.
func RenderResults(w io.Writer, results []warehouse.Result, runErr error) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Phase", "Table", "Rows", "Duration", "Status"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for i, r := range results {
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			string(r.Statement.Phase),
			r.Statement.Table,
			formatRows(r.RowsAffected),
			r.Duration.Round(time.Millisecond).String(),
			color.GreenString("OK"),
		})
	}

	if runErr != nil {
		phase, tbl := "-", "-"
		var appErr *errors.AppError
		if stderrors.As(runErr, &appErr) {
			if v, ok := appErr.Context["phase"]; ok {
				phase = fmt.Sprint(v)
			}
			if v, ok := appErr.Context["table"]; ok {
				tbl = fmt.Sprint(v)
			}
		}
		table.Append([]string{
			fmt.Sprintf("%d", len(results)+1),
			phase,
			tbl,
			"-",
			"-",
			color.RedString("FAILED"),
		})
	}

	table.Render()
}

func formatRows(n int64) string {
	if n < 0 {
		return "-"
	}
	return fmt.Sprintf("%d", n)
}

// RenderStatus prints the existence and row count of each table
func RenderStatus(w io.Writer, statuses []warehouse.TableStatus) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Table", "Kind", "Rows", "Status"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, s := range statuses {
		rows, status := "-", color.YellowString("MISSING")
		if s.Exists {
			rows, status = formatRows(s.Rows), color.GreenString("OK")
			if s.Rows == 0 {
				status = color.YellowString("EMPTY")
			}
		}
		table.Append([]string{s.Table, string(s.Kind), rows, status})
	}

	table.Render()
}
