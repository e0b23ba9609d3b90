// Copyright (c) 2023 The KBase Project and its Contributors
// Copyright (c) 2023 Cohere Consulting, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/OpenSpending-Clone/os-cli/config"
	"github.com/OpenSpending-Clone/os-cli/journal"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var since string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled uploads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var start time.Time
			if since != "" {
				var err error
				if start, err = journal.ParseTime(since); err != nil {
					return err
				}
			}
			conf, err := config.Read()
			if err != nil {
				return err
			}
			if err := journal.Init(conf.Journal); err != nil {
				return err
			}
			defer journal.Finalize()

			records, err := journal.Records(start, time.Now())
			if err != nil {
				return err
			}
			renderHistory(cmd, records)
			return nil
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "only uploads begun on or after this date (YYYY-MM-DD or RFC 3339)")
	return cmd
}

func renderHistory(cmd *cobra.Command, records []journal.Record) {
	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No uploads found.")
		return
	}
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Started", "Id", "Package", "Status", "Files", "Size"})
	for _, record := range records {
		t.AppendRow(table.Row{
			record.StartTime.Local().Format(time.DateTime),
			record.Id.String(),
			record.Package,
			record.Status,
			record.NumFiles,
			humanize.Bytes(uint64(record.PayloadSize)),
		})
	}
	fmt.Fprintln(out, t.Render())
}
