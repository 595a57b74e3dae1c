package publish

import "wpqueue/internal/queue"

const (
	MessagePublished   = "Post published successfully!"
	MessageDraftSaved  = "Draft saved successfully!"
	MessageOffline     = "You are offline. Post will be published when connection is restored."
	MessageResumed     = "Queued post has been published!"
	failedPublishLabel = "Failed to publish post: "
	failedDraftLabel   = "Failed to save draft: "
)

// SuccessMessage returns the user-facing confirmation for a completed entry.
func SuccessMessage(payload queue.Payload) string {
	if payload.IsDraft() {
		return MessageDraftSaved
	}
	return MessagePublished
}

// FailureMessage prefixes detail with the mode-specific failure label.
func FailureMessage(payload queue.Payload, detail string) string {
	if payload.IsDraft() {
		return failedDraftLabel + detail
	}
	return failedPublishLabel + detail
}
