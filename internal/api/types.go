package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a queue entry in a transport-friendly format.
type QueueItem struct {
	ID           string        `json:"id"`
	Summary      string        `json:"summary"`
	Status       string        `json:"status"`
	Format       string        `json:"format"`
	Mode         string        `json:"mode"`
	Progress     QueueProgress `json:"progress"`
	RemotePostID int64         `json:"remotePostId,omitempty"`
	Link         string        `json:"link,omitempty"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	Attempts     int           `json:"attempts"`
	CreatedAt    string        `json:"createdAt,omitempty"`
	UpdatedAt    string        `json:"updatedAt,omitempty"`
}

// QueueProgress captures upload progress for a queue entry.
type QueueProgress struct {
	Uploaded int `json:"uploaded"`
	Total    int `json:"total"`
	Percent  int `json:"percent"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Initialized bool           `json:"initialized"`
	Online      bool           `json:"online"`
	Deferred    bool           `json:"deferred"`
	InFlight    int            `json:"inFlight"`
	Total       int            `json:"total"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	Backend      string         `json:"backend"`
	QueueDBPath  string         `json:"queueDbPath,omitempty"`
	LockFilePath string         `json:"lockFilePath"`
	Socket       string         `json:"socket,omitempty"`
	Workflow     WorkflowStatus `json:"workflow"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// ErrorResponse is the JSON body returned for failed HTTP requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusLine is one labelled row of the CLI status report.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}
