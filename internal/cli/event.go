package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewEventCmd создаёт группу команд для просмотра событий аудита.
func NewEventCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Inspect audit events",
	}

	cmd.AddCommand(newEventListCmd(clientFn, outputFn))

	return cmd
}

func newEventListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var pipeline string
	var planID int64
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit events (most recent first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			events, err := client.ListEvents(ListEventsOpts{
				Context: pipeline,
				PlanID:  planID,
				Limit:   limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "CONTEXT", "PLAN", "STEP", "STATUS", "MESSAGE", "AT"}
			rows := make([][]string, len(events))
			for i, e := range events {
				rows[i] = []string{
					strconv.FormatInt(e.ID, 10),
					e.Context,
					e.PlanNumber,
					e.Step,
					e.Status,
					e.Message,
					e.CreatedAt,
				}
			}

			out.Print(headers, rows, events)
			return nil
		},
	}

	cmd.Flags().StringVar(&pipeline, "pipeline", "", "Filter by pipeline (capture, treatment)")
	cmd.Flags().Int64Var(&planID, "plan-id", 0, "Filter by plan ID")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}
