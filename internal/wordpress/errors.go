package wordpress

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"wpqueue/internal/services"
)

// Operation names used in errors, logs, and metrics.
const (
	OpCreatePost   = "create_post"
	OpUploadMedia  = "upload_media"
	OpFinalizePost = "finalize_post"
	OpPing         = "ping"
)

var opLabels = map[string]string{
	OpCreatePost:   "Failed to create post",
	OpUploadMedia:  "Failed to upload image",
	OpFinalizePost: "Failed to update post",
	OpPing:         "Failed to verify credentials",
}

func opLabel(op string) string {
	if label, ok := opLabels[op]; ok {
		return label
	}
	return op + " failed"
}

// ValidationError reports input rejected before any request was sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + " " + e.Reason
}

func (e *ValidationError) Is(target error) bool { return target == services.ErrValidation }

// RemoteError reports a non-2xx response.
type RemoteError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
}

func (e *RemoteError) Error() string {
	detail := fmt.Sprintf("HTTP %d", e.StatusCode)
	if e.Message != "" {
		detail += ": " + e.Message
	}
	return fmt.Sprintf("%s (%s)", opLabel(e.Op), detail)
}

func (e *RemoteError) Is(target error) bool { return target == services.ErrRemote }

// NetworkError reports a transport failure; the remote state is unknown.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s (network error: %v)", opLabel(e.Op), e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == services.ErrNetwork }

// maxErrorBodyRunes caps how much of a non-JSON error body is kept.
const maxErrorBodyRunes = 200

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newRemoteError(op string, status int, body []byte) *RemoteError {
	remote := &RemoteError{Op: op, StatusCode: status}
	var payload apiError
	if err := json.Unmarshal(body, &payload); err == nil && (payload.Code != "" || payload.Message != "") {
		remote.Code = payload.Code
		remote.Message = payload.Message
		return remote
	}
	text := strings.ToValidUTF8(strings.TrimSpace(string(body)), "\uFFFD")
	if utf8.RuneCountInString(text) > maxErrorBodyRunes {
		text = string([]rune(text)[:maxErrorBodyRunes]) + "…"
	}
	remote.Message = text
	return remote
}
