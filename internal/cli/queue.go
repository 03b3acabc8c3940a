package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewQueueCmd создаёт группу команд для управления очередью тратамента.
func NewQueueCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage the treatment queue",
	}

	cmd.AddCommand(
		newQueueShowCmd(clientFn, outputFn),
		newQueueMigrateCmd(clientFn, outputFn),
	)

	return cmd
}

func newQueueShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the treatment queue snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			queue, err := client.GetQueue()
			if err != nil {
				return err
			}

			out.Queue(queue)
			return nil
		},
	}
}

func newQueueMigrateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Move eligible plans into the treatment queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			result, err := client.MigrateQueue()
			if err != nil {
				return err
			}

			out.Print([]string{"ENQUEUED"}, [][]string{{strconv.Itoa(result.Enqueued)}}, result)
			return nil
		},
	}
}
