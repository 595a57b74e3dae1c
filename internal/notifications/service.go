package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"wpqueue/internal/config"
)

const userAgent = "wpqueue/0.1.0"

// Severity classifies a message the same way the queue panel colours toasts.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityError   Severity = "error"
)

// Service defines the notification surface exposed to the queue.
type Service interface {
	Notify(ctx context.Context, severity Severity, message string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Severity]bool{
			SeveritySuccess: cfg.Notifications.Success,
			SeverityError:   cfg.Notifications.Failure,
			SeverityInfo:    cfg.Notifications.Offline,
		},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Severity]bool
}

func (n *ntfyService) Notify(ctx context.Context, severity Severity, message string) error {
	if !n.enabled[severity] {
		return nil
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil
	}
	data := payload{message: message}
	switch severity {
	case SeveritySuccess:
		data.title = "wpqueue - Published"
		data.tags = []string{"wpqueue", "post", "published"}
	case SeverityError:
		data.title = "wpqueue - Error"
		data.tags = []string{"wpqueue", "error", "alert"}
		data.priority = "high"
	default:
		data.title = "wpqueue - Queued"
		data.tags = []string{"wpqueue", "queue", "offline"}
		data.priority = "low"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "wpqueue - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"wpqueue", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Notify(context.Context, Severity, string) error { return nil }
func (noopService) TestNotification(context.Context) error         { return nil }

// Recorder captures notifications in memory. Tests and the one-shot CLI path
// use it to inspect what the queue would have shown.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Message is one captured notification.
type Message struct {
	Severity Severity
	Text     string
}

func (r *Recorder) Notify(_ context.Context, severity Severity, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Severity: severity, Text: message})
	return nil
}

func (r *Recorder) TestNotification(ctx context.Context) error {
	return r.Notify(ctx, SeverityInfo, "Notification system test")
}

// Messages returns a copy of everything recorded so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}
