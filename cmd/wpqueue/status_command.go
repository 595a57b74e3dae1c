package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"wpqueue/internal/api"
	"wpqueue/internal/daemonctl"
	"wpqueue/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, configuration and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			status, snapErr := daemonctl.BuildStatusSnapshot(cmd.Context(), cfg)
			if status == nil {
				return snapErr
			}
			if jsonOut {
				return writeJSON(cmd, status)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("System Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range daemonctl.BuildSystemChecks(cfg, status) {
				fmt.Fprintln(stdout, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
			}
			if snapErr != nil {
				fmt.Fprintln(stdout, renderStatusLine("Queue", statusError, snapErr.Error(), colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Queue Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := statsRows(status.Workflow)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "Queue is empty")
				return nil
			}
			fmt.Fprintln(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			if status.Workflow.LastError != "" {
				fmt.Fprintln(stdout, renderStatusLine("Last error", statusError, status.Workflow.LastError, colorize))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func statsRows(workflow api.WorkflowStatus) [][]string {
	var rows [][]string
	for _, status := range queue.AllStatuses() {
		count := workflow.QueueStats[string(status)]
		if count == 0 {
			continue
		}
		rows = append(rows, []string{api.StatusLabel(string(status)), strconv.Itoa(count)})
	}
	return rows
}
