package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"wpqueue/internal/logging"
	"wpqueue/internal/notifications"
	"wpqueue/internal/queue"
)

func (m *Manager) notify(ctx context.Context, severity notifications.Severity, message string) {
	if m.notifier == nil || message == "" {
		return
	}
	if err := m.notifier.Notify(ctx, severity, message); err != nil {
		logger := logging.WithContext(ctx, m.logger)
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not send notification")
			return
		}
		logger.Debug("notification failed",
			logging.String("severity", string(severity)),
			logging.Error(err),
		)
	}
}

// LogRenderer writes queue changes to a logger. The daemon uses it when no
// interactive renderer is attached.
type LogRenderer struct {
	logger *slog.Logger
	last   map[string]string
}

// NewLogRenderer builds a LogRenderer.
func NewLogRenderer(logger *slog.Logger) *LogRenderer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogRenderer{
		logger: logging.NewComponentLogger(logger, "queue-panel"),
		last:   make(map[string]string),
	}
}

// RenderQueue logs status and whole-image progress changes at debug level.
// Byte-level fraction updates are not logged.
func (r *LogRenderer) RenderQueue(views []queue.View) {
	seen := make(map[string]string, len(views))
	for _, view := range views {
		key := string(view.Status) + "/" + strconv.Itoa(view.Uploaded)
		seen[view.ID] = key
		if r.last[view.ID] == key {
			continue
		}
		r.logger.Debug("queue entry updated",
			logging.String(logging.FieldEntryID, view.ID),
			logging.String("status", string(view.Status)),
			logging.Int("uploaded", view.Uploaded),
			logging.Int("total", view.Total),
			logging.Int("percent", view.Percent),
		)
	}
	for id := range r.last {
		if _, ok := seen[id]; !ok {
			r.logger.Debug("queue entry removed", logging.String(logging.FieldEntryID, id))
		}
	}
	r.last = seen
}
