package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"wpqueue/internal/config"
	"wpqueue/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Notify(context.Background(), notifications.SeverityError, "Failed to publish post: boom"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		severity       notifications.Severity
		message        string
		expectTitle    string
		expectTags     string
		expectPriority string
	}{
		{
			name:        "published",
			severity:    notifications.SeveritySuccess,
			message:     "Post published successfully!",
			expectTitle: "wpqueue - Published",
			expectTags:  "wpqueue,post,published",
		},
		{
			name:           "failure",
			severity:       notifications.SeverityError,
			message:        "Failed to save draft: Failed to upload image (HTTP 500)",
			expectTitle:    "wpqueue - Error",
			expectTags:     "wpqueue,error,alert",
			expectPriority: "high",
		},
		{
			name:           "offline",
			severity:       notifications.SeverityInfo,
			message:        "You are offline. Post will be published when connection is restored.",
			expectTitle:    "wpqueue - Queued",
			expectTags:     "wpqueue,queue,offline",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Notify(context.Background(), tc.severity, tc.message); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonoursSeverityToggles(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Success = false
	cfg.Notifications.Offline = false

	svc := notifications.NewService(&cfg)
	ctx := context.Background()
	_ = svc.Notify(ctx, notifications.SeveritySuccess, "Post published successfully!")
	_ = svc.Notify(ctx, notifications.SeverityInfo, "You are offline.")
	if got := calls.Load(); got != 0 {
		t.Fatalf("expected suppressed severities to skip ntfy, got %d calls", got)
	}
	if err := svc.Notify(ctx, notifications.SeverityError, "Failed to publish post: x"); err != nil {
		t.Fatalf("notify error: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected failure notification to be sent, got %d calls", got)
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic locked", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestRecorderCapturesMessages(t *testing.T) {
	rec := &notifications.Recorder{}
	_ = rec.Notify(context.Background(), notifications.SeverityInfo, "one")
	_ = rec.Notify(context.Background(), notifications.SeverityError, "two")
	msgs := rec.Messages()
	if len(msgs) != 2 || msgs[1].Severity != notifications.SeverityError || msgs[1].Text != "two" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}
