package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"wpqueue/internal/logging"
	"wpqueue/internal/metrics"
	"wpqueue/internal/queue"
	"wpqueue/internal/services"
	"wpqueue/internal/wordpress"
)

// Step names used for logging context.
const (
	StepValidate = "validate"
	StepCreate   = "create"
	StepUpload   = "upload"
	StepFinalize = "finalize"
)

// Remote is the subset of the WordPress client used by a run.
type Remote interface {
	CreatePost(ctx context.Context, creds wordpress.Credentials, req wordpress.CreatePostRequest) (int64, error)
	UploadMedia(ctx context.Context, creds wordpress.Credentials, postID int64, data []byte, filename string, progress func(float64)) (wordpress.Media, error)
	FinalizePost(ctx context.Context, creds wordpress.Credentials, postID int64, req wordpress.FinalizeRequest) (wordpress.Post, error)
}

// Recorder persists entry state on behalf of the processor.
type Recorder interface {
	// Save makes the entry's current state durable and visible.
	Save(ctx context.Context, entry *queue.Entry) error
	// Progress reports the in-flight fraction of the image being uploaded.
	Progress(id string, fraction float64)
}

// Processor runs entries against a Remote.
type Processor struct {
	remote Remote
	logger *slog.Logger
	now    func() time.Time
}

// NewProcessor constructs a Processor.
func NewProcessor(remote Remote, logger *slog.Logger) *Processor {
	return &Processor{
		remote: remote,
		logger: logging.NewComponentLogger(logger, "processor"),
		now:    time.Now,
	}
}

// Run publishes entry, mutating it in place and handing every step to rec.
// A nil return means the entry is completed. On failure the entry is left in
// the failed state with its recovery fields intact and the error is returned.
func (p *Processor) Run(ctx context.Context, entry *queue.Entry, rec Recorder) error {
	if entry == nil {
		return errors.New("publish: nil entry")
	}
	ctx = services.WithEntryID(ctx, entry.ID)
	logger := logging.WithContext(ctx, p.logger)

	creds := wordpress.Credentials{
		SiteURL:  entry.Payload.Credentials.SiteURL,
		Username: entry.Payload.Credentials.Username,
		Password: entry.Payload.Credentials.Password,
	}

	entry.SetUploading(p.now())
	if err := p.validate(creds); err != nil {
		return p.fail(ctx, logger, entry, rec, StepValidate, err)
	}
	if err := rec.Save(ctx, entry); err != nil {
		return p.fail(ctx, logger, entry, rec, StepValidate, err)
	}
	logger.Info("publish run started",
		logging.Int("attempt", entry.Attempts),
		logging.Int64("remote_post_id", entry.RemotePostID),
		logging.Int("uploaded", entry.Media.Count()),
		logging.Int("images", len(entry.Payload.Images)),
	)

	if entry.RemotePostID == 0 {
		stepCtx := services.WithStage(ctx, StepCreate)
		postID, err := p.remote.CreatePost(stepCtx, creds, wordpress.CreatePostRequest{
			Format: string(entry.Payload.Format),
		})
		if err != nil {
			return p.fail(stepCtx, logger, entry, rec, StepCreate, err)
		}
		if err := entry.SetRemotePostID(postID, p.now()); err != nil {
			return p.fail(stepCtx, logger, entry, rec, StepCreate, err)
		}
		if err := rec.Save(stepCtx, entry); err != nil {
			return p.fail(stepCtx, logger, entry, rec, StepCreate, err)
		}
		logging.WithContext(stepCtx, p.logger).Info("remote draft created", logging.Int64("remote_post_id", postID))
	}

	uploadCtx := services.WithStage(ctx, StepUpload)
	for _, image := range entry.PendingImages() {
		index := entry.Media.Count()
		rec.Progress(entry.ID, 0)
		media, err := p.remote.UploadMedia(uploadCtx, creds, entry.RemotePostID, image.Data, image.Filename, func(f float64) {
			rec.Progress(entry.ID, f)
		})
		if err != nil {
			return p.fail(uploadCtx, logger, entry, rec, StepUpload, err)
		}
		entry.RecordUpload(media.ID, media.SourceURL, p.now())
		if err := rec.Save(uploadCtx, entry); err != nil {
			return p.fail(uploadCtx, logger, entry, rec, StepUpload, err)
		}
		logging.WithContext(uploadCtx, p.logger).Info("media uploaded",
			logging.Int("index", index+1),
			logging.Int("total", len(entry.Payload.Images)),
			logging.Int64("media_id", media.ID),
		)
	}
	rec.Progress(entry.ID, 0)

	finalizeCtx := services.WithStage(ctx, StepFinalize)
	post, err := p.remote.FinalizePost(finalizeCtx, creds, entry.RemotePostID, wordpress.FinalizeRequest{
		Text:      entry.Payload.Text,
		MediaIDs:  entry.Media.UploadedIDs,
		MediaURLs: entry.Media.UploadedURLs,
		Status:    string(entry.Payload.Status),
		Format:    string(entry.Payload.Format),
	})
	if err != nil {
		return p.fail(finalizeCtx, logger, entry, rec, StepFinalize, err)
	}
	entry.SetCompleted(queue.RemotePost{ID: post.ID, Link: post.Link, Status: post.Status}, p.now())
	if err := rec.Save(finalizeCtx, entry); err != nil {
		// The remote post is final; a later resume only repeats the finalize.
		logging.ErrorWithContext(logger, "persist completed entry failed", "entry_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the queue store; the post is already live"),
		)
	}
	metrics.IncOutcome("completed")
	logger.Info("publish run completed",
		logging.String(logging.FieldEventType, "post_synced"),
		logging.Int64("remote_post_id", post.ID),
		logging.String("link", post.Link),
	)
	return nil
}

func (p *Processor) validate(creds wordpress.Credentials) error {
	if creds.SiteURL == "" || creds.Username == "" || creds.Password == "" {
		return &wordpress.ValidationError{Reason: "Please configure WordPress settings first"}
	}
	_, err := wordpress.NormalizeSiteURL(creds.SiteURL)
	return err
}

func (p *Processor) fail(ctx context.Context, logger *slog.Logger, entry *queue.Entry, rec Recorder, step string, cause error) error {
	entry.SetFailed(FailureMessage(entry.Payload, cause.Error()), p.now())
	rec.Progress(entry.ID, 0)
	if err := rec.Save(ctx, entry); err != nil {
		logging.ErrorWithContext(logger, "persist failed entry failed", "entry_persist_failed", logging.Error(err))
	}
	metrics.IncOutcome("failed")
	logging.ErrorWithContext(logger, "publish run failed", "post_sync_failed",
		logging.String(logging.FieldStage, step),
		logging.Error(cause),
		logging.ErrorKind(cause),
		logging.String(logging.FieldErrorHint, hintFor(cause)),
	)
	return fmt.Errorf("publish %s: %s: %w", entry.ID, step, cause)
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, services.ErrValidation):
		return "fix the site URL or credentials, then retry the entry"
	case errors.Is(err, services.ErrNetwork):
		return "check connectivity; the entry resumes when the site is reachable"
	case errors.Is(err, services.ErrRemote):
		return "inspect the WordPress response; retry with 'wpqueue queue retry'"
	case errors.Is(err, services.ErrStorage):
		return "check the queue store"
	default:
		return "check logs for details"
	}
}
