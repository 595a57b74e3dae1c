package queue_test

import (
	"regexp"
	"testing"
	"time"

	"wpqueue/internal/queue"
	"wpqueue/internal/testsupport"
)

func TestNewIDShape(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	id := queue.NewID(now)
	if !regexp.MustCompile(`^[0-9a-z]+-[0-9a-f]{12}$`).MatchString(id) {
		t.Fatalf("unexpected id shape: %q", id)
	}
	if other := queue.NewID(now); other == id {
		t.Fatalf("expected random suffix to differ, got %q twice", id)
	}
}

func TestSetRemotePostIDIsSetOnce(t *testing.T) {
	entry := testsupport.NewEntry("e1", "https://blog.example.com", "x", 0)
	now := time.Now()
	if err := entry.SetRemotePostID(77, now); err != nil {
		t.Fatalf("first set: %v", err)
	}
	if err := entry.SetRemotePostID(77, now); err != nil {
		t.Fatalf("same id should be accepted: %v", err)
	}
	if err := entry.SetRemotePostID(78, now); err == nil {
		t.Fatal("expected rebind to a different post to fail")
	}
	if entry.RemotePostID != 77 {
		t.Fatalf("remote post id changed: %d", entry.RemotePostID)
	}
}

func TestPendingImagesAndClone(t *testing.T) {
	entry := testsupport.NewEntry("e2", "https://blog.example.com", "x", 3)
	entry.RecordUpload(101, "u1", time.Now())
	pending := entry.PendingImages()
	if len(pending) != 2 || pending[0].Filename != "image-2.jpg" {
		t.Fatalf("unexpected pending images: %+v", pending)
	}

	clone := entry.Clone()
	clone.RecordUpload(102, "u2", time.Now())
	if entry.Media.Count() != 1 {
		t.Fatalf("clone mutation leaked into original: %v", entry.Media.UploadedIDs)
	}
}

func TestDefaultFormat(t *testing.T) {
	cases := map[int]queue.PostFormat{0: queue.FormatStandard, 1: queue.FormatImage, 4: queue.FormatGallery}
	for count, want := range cases {
		if got := queue.DefaultFormat(count); got != want {
			t.Fatalf("DefaultFormat(%d) = %s, want %s", count, got, want)
		}
	}
	if _, err := queue.ParseFormat("video"); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestParseMode(t *testing.T) {
	if mode, err := queue.ParseMode(""); err != nil || mode != queue.ModePublish {
		t.Fatalf("expected empty mode to default to publish, got %q %v", mode, err)
	}
	if mode, err := queue.ParseMode(" Draft "); err != nil || mode != queue.ModeDraft {
		t.Fatalf("expected draft, got %q %v", mode, err)
	}
	if _, err := queue.ParseMode("private"); err == nil {
		t.Fatal("expected unsupported mode error")
	}
}

func TestSummary(t *testing.T) {
	entry := testsupport.NewEntry("e3", "https://blog.example.com", "  First line here\nsecond", 0)
	if got := entry.Summary(10); got != "First lin…" {
		t.Fatalf("unexpected summary: %q", got)
	}
}
