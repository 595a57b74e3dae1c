package api

import (
	"slices"

	"wpqueue/internal/queue"
	"wpqueue/internal/workflow"
)

// FromView converts a queue view to its API representation.
func FromView(view queue.View) QueueItem {
	dto := QueueItem{
		ID:      view.ID,
		Summary: view.Summary,
		Status:  string(view.Status),
		Format:  string(view.Format),
		Mode:    string(view.Mode),
		Progress: QueueProgress{
			Uploaded: view.Uploaded,
			Total:    view.Total,
			Percent:  view.Percent,
		},
		RemotePostID: view.RemotePostID,
		Link:         view.Link,
		ErrorMessage: view.Error,
		Attempts:     view.Attempts,
	}
	if !view.CreatedAt.IsZero() {
		dto.CreatedAt = view.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !view.UpdatedAt.IsZero() {
		dto.UpdatedAt = view.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromViews converts views, keeping only the requested statuses when any are
// given.
func FromViews(views []queue.View, statuses ...queue.Status) []QueueItem {
	items := make([]QueueItem, 0, len(views))
	for _, view := range views {
		if len(statuses) > 0 && !slices.Contains(statuses, view.Status) {
			continue
		}
		items = append(items, FromView(view))
	}
	return items
}

// FromStatusSummary converts a workflow summary to its API representation.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	stats := make(map[string]int, len(summary.Counts))
	for _, status := range queue.AllStatuses() {
		stats[string(status)] = summary.Counts[status]
	}
	return WorkflowStatus{
		Initialized: summary.Initialized,
		Online:      summary.Online,
		Deferred:    summary.Deferred,
		InFlight:    summary.InFlight,
		Total:       summary.Total,
		QueueStats:  stats,
		LastError:   summary.LastError,
	}
}
