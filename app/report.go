package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/lysyi3m/podcast-sync/app/ingest"
)

// writeReport prints one-shot sync results: a table for terminals, JSON
// for pipes and CI logs.
func writeReport(w io.Writer, results []*ingest.Result) error {
	if isTerminal(w) {
		_, err := fmt.Fprintln(w, renderResults(results))
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

func renderResults(results []*ingest.Result) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Feed", "Status", "Inserted", "Skipped", "Errors", "Total", "Duration", "Message"})

	for _, result := range results {
		status := "ok"
		message := result.Message
		if !result.Success {
			status = "failed"
			message = result.Error
		}
		tw.AppendRow(table.Row{
			result.Feed,
			status,
			strconv.Itoa(result.Inserted),
			strconv.Itoa(result.Skipped),
			strconv.Itoa(result.Errors),
			strconv.Itoa(result.Total),
			fmt.Sprintf("%dms", result.DurationMs),
			message,
		})
	}

	columnConfigs := make([]table.ColumnConfig, 0, 8)
	for i := 1; i <= 8; i++ {
		align := text.AlignLeft
		if i >= 3 && i <= 7 {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func allSucceeded(results []*ingest.Result) bool {
	for _, result := range results {
		if !result.Success {
			return false
		}
	}
	return true
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
