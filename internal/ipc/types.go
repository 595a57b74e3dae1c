package ipc

import "wpqueue/internal/api"

// ServiceName is the RPC receiver name registered by the server.
const ServiceName = "WPQueue"

// Image is one attachment carried over the socket. Data is base64 encoded by
// the JSON codec.
type Image struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

// SubmitRequest enqueues a post.
type SubmitRequest struct {
	Text     string  `json:"text"`
	Images   []Image `json:"images"`
	Status   string  `json:"status"`
	Format   string  `json:"format"`
	SiteURL  string  `json:"site_url"`
	Username string  `json:"username"`
	Password string  `json:"password"`
}

// SubmitResponse reports the new entry id and whether it started right away.
type SubmitResponse struct {
	ID      string `json:"id"`
	Online  bool   `json:"online"`
	Message string `json:"message"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/workflow status information.
type StatusResponse = api.DaemonStatus

// QueueItem mirrors the HTTP API queue DTO for internal IPC callers.
type QueueItem = api.QueueItem

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueRetryRequest resumes one entry.
type QueueRetryRequest struct {
	ID string `json:"id"`
}

// QueueRetryResponse reports the retry outcome.
type QueueRetryResponse struct {
	Started bool `json:"started"`
}

// QueueResumeRequest resumes every unfinished entry.
type QueueResumeRequest struct{}

// QueueResumeResponse reports how many runs started.
type QueueResumeResponse struct {
	Started int  `json:"started"`
	Online  bool `json:"online"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse indicates whether the notification was sent.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
