package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"wpqueue/internal/config"
	"wpqueue/internal/connectivity"
	"wpqueue/internal/logging"
	"wpqueue/internal/notifications"
	"wpqueue/internal/publish"
	"wpqueue/internal/queue"
	"wpqueue/internal/wordpress"
	"wpqueue/internal/workflow"
)

func newQueueDrainCommand(ctx *commandContext) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Publish every unfinished entry in the foreground (daemon must be stopped)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			level := "error"
			if verbose {
				level = "info"
			}
			logger, err := logging.New(logging.Options{
				Level:       level,
				Format:      "console",
				OutputPaths: []string{"stderr"},
			})
			if err != nil {
				return err
			}
			return drainQueue(cmd.Context(), cfg, cmd.OutOrStdout(), logger)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log each remote step to stderr")
	return cmd
}

var errDaemonHoldsQueue = errors.New("daemon is running; use `wpqueue queue resume` instead")

func drainQueue(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errDaemonHoldsQueue
	}
	defer lock.Unlock()

	checker, monitor := connectivity.NewChecker(cfg, logger)
	if monitor != nil {
		monitor.Check(ctx)
	}
	if !checker.Online() {
		fmt.Fprintln(out, "Offline; entries stay queued")
		return nil
	}

	store, err := queue.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	runCfg := *cfg
	runCfg.Workflow.CompletedDisplayDelayMS = 0
	recorder := &notifications.Recorder{}
	processor := publish.NewProcessor(wordpress.NewFromConfig(&runCfg, logger), logger)
	mgr := workflow.NewManager(&runCfg, store, processor, connectivity.Static(true), logger,
		workflow.WithNotifier(recorder),
	)
	defer mgr.Stop()

	if err := mgr.Initialize(ctx); err != nil {
		return err
	}
	mgr.Wait()

	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := mgr.Save(saveCtx); err != nil {
		return err
	}

	messages := recorder.Messages()
	failed := 0
	for _, msg := range messages {
		kind := statusOK
		if msg.Severity == notifications.SeverityError {
			kind = statusError
			failed++
		}
		fmt.Fprintf(out, "[%s] %s\n", statusKindLabel(kind), msg.Text)
	}
	if len(messages) == 0 {
		fmt.Fprintln(out, "Nothing to publish")
		return nil
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d posts failed; see `wpqueue queue list --status failed`", failed, len(messages))
	}
	return nil
}
