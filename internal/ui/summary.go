package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// SummaryRow is one line of the end-of-run step table.
type SummaryRow struct {
	Step    string
	Status  string
	Detail  string
	Elapsed time.Duration
}

// RenderSummary renders the step table for a finished run.
func RenderSummary(title string, rows []SummaryRow) string {
	var buf strings.Builder
	buf.WriteString(ColorBold(title) + "\n")

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"#", "Step", "Status", "Detail", "Elapsed"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for i, row := range rows {
		status := row.Status
		if supportsColor {
			switch {
			case strings.HasPrefix(row.Status, "succe"), row.Status == "success":
				status = color.GreenString(row.Status)
			case strings.Contains(row.Status, "partial"):
				status = color.YellowString(row.Status)
			case strings.Contains(row.Status, "fail"):
				status = color.RedString(row.Status)
			case row.Status == "skipped":
				status = color.HiBlackString(row.Status)
			}
		}
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			row.Step,
			status,
			row.Detail,
			row.Elapsed.Round(time.Millisecond).String(),
		})
	}

	table.Render()
	return buf.String()
}
