package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewPipelineCmd создаёт группу команд для управления конвейерами.
func NewPipelineCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Manage pipelines",
	}

	cmd.AddCommand(
		newPipelineStartCmd(clientFn, outputFn),
		newPipelinePauseCmd(clientFn, outputFn),
		newPipelineResumeCmd(clientFn, outputFn),
		newPipelineStatusCmd(clientFn, outputFn),
		newPipelineStepsCmd(clientFn, outputFn),
	)

	return cmd
}

func newPipelineStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var steps []string

	cmd := &cobra.Command{
		Use:   "start KIND",
		Short: "Start a pipeline run (capture or treatment)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.StartPipeline(args[0], steps); err != nil {
				return err
			}

			out.Success("Pipeline " + args[0] + " started")
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&steps, "steps", nil, "Step names to run (default: full catalog)")

	return cmd
}

func newPipelinePauseCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "pause KIND",
		Short: "Pause a running pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			status, err := client.PausePipeline(args[0])
			if err != nil {
				return err
			}

			out.Success("Pipeline " + args[0] + " paused")
			out.RunStatus(status)
			return nil
		},
	}
}

func newPipelineResumeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "resume KIND",
		Short: "Resume a paused pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			status, err := client.ResumePipeline(args[0])
			if err != nil {
				return err
			}

			out.Success("Pipeline " + args[0] + " resumed")
			out.RunStatus(status)
			return nil
		},
	}
}

func newPipelineStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status KIND",
		Short: "Show pipeline run status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			status, err := client.PipelineStatus(args[0])
			if err != nil {
				return err
			}

			out.RunStatus(status)
			return nil
		},
	}
}

func newPipelineStepsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "steps KIND",
		Short: "List the step catalog of a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			steps, err := client.ListSteps(args[0])
			if err != nil {
				return err
			}

			headers := []string{"STAGE", "NAME", "LABEL"}
			rows := make([][]string, len(steps))
			for i, s := range steps {
				rows[i] = []string{strconv.Itoa(s.Stage), s.Name, s.Label}
			}

			out.Print(headers, rows, steps)
			return nil
		},
	}
}
