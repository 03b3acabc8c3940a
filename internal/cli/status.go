package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewStatusCmd создаёт команду сводки по всей системе.
func NewStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show system-wide summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			summary, err := client.Summary()
			if err != nil {
				return err
			}

			headers := []string{"PIPELINE", "STATE", "PROGRESS", "PROCESSED", "DISCARDED"}
			var rows [][]string
			for _, kind := range []string{"capture", "treatment"} {
				run, ok := summary.Runs[kind]
				if !ok {
					continue
				}
				rows = append(rows, []string{
					kind,
					run.State,
					strconv.Itoa(run.Progress) + "%",
					strconv.Itoa(run.Processed),
					strconv.Itoa(run.Discarded),
				})
			}

			out.Print(headers, rows, summary)

			if !out.jsonMode {
				for status, n := range summary.Plans {
					out.Success("plans " + status + ": " + strconv.Itoa(n))
				}
				out.Success("queue length: " + strconv.Itoa(summary.Queue.Length))
			}
			return nil
		},
	}
}
