package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"wpqueue/internal/config"
	"wpqueue/internal/daemonctl"
	"wpqueue/internal/ipc"
	"wpqueue/internal/queue"
)

type postOptions struct {
	text     string
	images   []string
	draft    bool
	format   string
	siteURL  string
	username string
	password string
	jsonOut  bool
}

func newPostCommand(ctx *commandContext) *cobra.Command {
	var opts postOptions

	cmd := &cobra.Command{
		Use:   "post [text]",
		Short: "Publish a post, or queue it when offline",
		Long: "Compose a post from text and images. Paragraphs are separated by blank lines and the first line\n" +
			"becomes the title. Use '-' as the text argument to read from stdin. When the daemon is not running\n" +
			"the post is written to the queue and published once the daemon starts online.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				opts.text = args[0]
			}
			if opts.text == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				opts.text = string(data)
			}
			req, err := buildSubmitRequest(cfg, opts)
			if err != nil {
				return err
			}

			client, err := ctx.optionalClient()
			if err != nil {
				return err
			}
			if client != nil {
				defer client.Close()
				resp, err := client.Submit(req)
				if err != nil {
					return err
				}
				return printSubmitResult(cmd, opts.jsonOut, resp)
			}

			resp, err := submitWithoutDaemon(cmd.Context(), cfg, req)
			if err != nil {
				return err
			}
			return printSubmitResult(cmd, opts.jsonOut, resp)
		},
	}

	cmd.Flags().StringVarP(&opts.text, "text", "t", "", "Post text (alternative to the positional argument)")
	cmd.Flags().StringArrayVarP(&opts.images, "image", "i", nil, "Image file to attach; repeat for a gallery")
	cmd.Flags().BoolVar(&opts.draft, "draft", false, "Save as draft instead of publishing")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "Post format: standard, status, image, gallery or link (default chosen from image count)")
	cmd.Flags().StringVar(&opts.siteURL, "site", "", "WordPress site URL (overrides wordpress.site_url)")
	cmd.Flags().StringVar(&opts.username, "user", "", "WordPress username (overrides wordpress.username)")
	cmd.Flags().StringVar(&opts.password, "password", "", "Application password (overrides wordpress.app_password)")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Output as JSON")
	return cmd
}

func buildSubmitRequest(cfg *config.Config, opts postOptions) (ipc.SubmitRequest, error) {
	req := ipc.SubmitRequest{
		Text:     opts.text,
		Format:   strings.TrimSpace(opts.format),
		SiteURL:  firstNonEmpty(opts.siteURL, cfg.WordPress.SiteURL),
		Username: firstNonEmpty(opts.username, cfg.WordPress.Username),
		Password: firstNonEmpty(opts.password, cfg.WordPress.AppPassword),
	}
	if opts.draft {
		req.Status = string(queue.ModeDraft)
	}
	if req.Format != "" {
		if _, err := queue.ParseFormat(req.Format); err != nil {
			return ipc.SubmitRequest{}, err
		}
	}
	for _, path := range opts.images {
		data, err := os.ReadFile(path)
		if err != nil {
			return ipc.SubmitRequest{}, fmt.Errorf("read image %s: %w", path, err)
		}
		req.Images = append(req.Images, ipc.Image{Filename: filepath.Base(path), Data: data})
	}
	if strings.TrimSpace(req.Text) == "" && len(req.Images) == 0 {
		return ipc.SubmitRequest{}, fmt.Errorf("nothing to post: provide text or at least one image")
	}
	return req, nil
}

// lockedSubmitWait bounds how long a submission waits for a daemon socket
// when the instance lock is held but nothing answers yet.
var lockedSubmitWait = 3 * time.Second

var errQueueLocked = errors.New("queue is locked by another wpqueue process (a drain or a starting daemon); try again when it finishes")

// submitWithoutDaemon is used when no daemon answered the first dial. If
// another process holds the instance lock the post goes over IPC once the
// socket appears; writing the store behind a running drain would race its
// own persistence.
func submitWithoutDaemon(ctx context.Context, cfg *config.Config, req ipc.SubmitRequest) (*ipc.SubmitResponse, error) {
	held, err := daemonctl.LockHeld(cfg)
	if err != nil {
		return nil, err
	}
	if !held {
		return enqueueDirect(ctx, cfg, req)
	}
	client, err := daemonctl.WaitForClient(cfg.Paths.Socket, lockedSubmitWait)
	if err != nil {
		return nil, errQueueLocked
	}
	defer client.Close()
	return client.Submit(req)
}

// enqueueDirect writes a queued entry into the store when no daemon is
// running. The daemon picks it up at its next online start.
func enqueueDirect(ctx context.Context, cfg *config.Config, req ipc.SubmitRequest) (*ipc.SubmitResponse, error) {
	payload, err := ipc.PayloadFromRequest(req)
	if err != nil {
		return nil, err
	}
	store, err := queue.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	now := time.Now()
	entry := queue.NewEntry(queue.NewID(now), payload, now)
	if err := store.Put(ctx, entry); err != nil {
		return nil, err
	}
	return &ipc.SubmitResponse{
		ID:      entry.ID,
		Message: "Daemon not running. Post will be published when the daemon starts online.",
	}, nil
}

func printSubmitResult(cmd *cobra.Command, jsonOut bool, resp *ipc.SubmitResponse) error {
	if jsonOut {
		return writeJSON(cmd, resp)
	}
	out := cmd.OutOrStdout()
	if resp.Online {
		fmt.Fprintf(out, "Publishing post %s\n", resp.ID)
		return nil
	}
	fmt.Fprintf(out, "Queued post %s\n", resp.ID)
	if resp.Message != "" {
		fmt.Fprintln(out, resp.Message)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
