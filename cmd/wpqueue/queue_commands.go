package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"wpqueue/internal/api"
	"wpqueue/internal/daemonctl"
	"wpqueue/internal/ipc"
	"wpqueue/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the publish queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueResumeCommand(ctx))
	queueCmd.AddCommand(newQueueDrainCommand(ctx))
	queueCmd.AddCommand(newQueueImportCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := listQueueItems(cmd, ctx, nil)
			if err != nil {
				return err
			}
			rows := buildQueueStatusRows(items)
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}
			table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(listStatuses)
			if err != nil {
				return err
			}
			items, err := listQueueItems(cmd, ctx, statuses)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, api.QueueListResponse{Items: items})
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}
			table := renderTable(
				[]string{"ID", "Post", "Status", "Format", "Progress", "Remote", "Detail"},
				buildQueueListRows(items),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by status (queued, uploading, completed, failed)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Resume one queued or failed entry from its saved progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.QueueRetry(strings.TrimSpace(args[0])); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retrying %s\n", args[0])
				return nil
			})
		},
	}
}

func newQueueResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Ask the daemon to re-check connectivity and resume every unfinished entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueResume()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !resp.Online {
					fmt.Fprintln(out, "Still offline; entries stay queued")
					return nil
				}
				fmt.Fprintf(out, "Resumed %d entries\n", resp.Started)
				return nil
			})
		},
	}
}

func newQueueImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a browser publishQueue export (localStorage JSON)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			payloads, err := queue.DecodeLegacyQueue(data)
			if err != nil {
				return err
			}

			client, err := ctx.optionalClient()
			if err != nil {
				return err
			}
			if client != nil {
				defer client.Close()
			}
			out := cmd.OutOrStdout()
			for _, payload := range payloads {
				req := ipc.RequestFromPayload(payload)
				var resp *ipc.SubmitResponse
				if client != nil {
					resp, err = client.Submit(req)
				} else {
					resp, err = submitWithoutDaemon(cmd.Context(), cfg, req)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Imported %s\n", resp.ID)
			}
			fmt.Fprintf(out, "Imported %d posts\n", len(payloads))
			return nil
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry from the queue (daemon must be stopped)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			held, err := daemonctl.LockHeld(cfg)
			if err != nil {
				return err
			}
			if held {
				return errors.New("daemon is running; stop it with `wpqueue daemon stop` before clearing the queue")
			}
			store, err := queue.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			entries, err := store.All(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", len(entries))
			return nil
		},
	}
}

// listQueueItems reads the queue through the daemon when it is running and
// straight from storage otherwise.
func listQueueItems(cmd *cobra.Command, ctx *commandContext, statuses []queue.Status) ([]api.QueueItem, error) {
	client, err := ctx.optionalClient()
	if err != nil {
		return nil, err
	}
	if client != nil {
		defer client.Close()
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = string(s)
		}
		resp, err := client.QueueList(names)
		if err != nil {
			return nil, err
		}
		return resp.Items, nil
	}

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := queue.Open(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	entries, err := store.All(cmd.Context())
	if err != nil {
		return nil, err
	}
	views := make([]queue.View, 0, len(entries))
	for _, entry := range entries {
		views = append(views, queue.ComputeProgress(entry, 0))
	}
	return api.FromViews(views, statuses...), nil
}

func parseStatuses(values []string) ([]queue.Status, error) {
	var statuses []queue.Status
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
