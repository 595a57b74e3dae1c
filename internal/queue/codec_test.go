package queue_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"wpqueue/internal/queue"
)

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	_, err := queue.DecodeEntry([]byte(`{"version":7,"entry":{"id":"x"}}`))
	if !errors.Is(err, queue.ErrUnsupportedRecord) {
		t.Fatalf("expected ErrUnsupportedRecord, got %v", err)
	}
}

func TestDecodeRejectsBrokenInvariants(t *testing.T) {
	raw := `{"version":1,"entry":{"id":"x","status":"failed","payload":{"text":"t"},"uploaded_media_ids":[1],"uploaded_media_urls":["u"]}}`
	if _, err := queue.DecodeEntry([]byte(raw)); err == nil {
		t.Fatal("expected error when uploads exceed images")
	}
}

func TestEncodeWritesCurrentVersion(t *testing.T) {
	entry := queue.NewEntry("id-1", queue.Payload{Text: "hi", Status: queue.ModeDraft, Format: queue.FormatStatus}, time.Now())
	data, err := queue.EncodeEntry(entry)
	if err != nil {
		t.Fatalf("EncodeEntry: %v", err)
	}
	if !strings.HasPrefix(string(data), `{"version":1,`) {
		t.Fatalf("unexpected envelope: %s", data)
	}
	decoded, err := queue.DecodeEntry(data)
	if err != nil {
		t.Fatalf("DecodeEntry: %v", err)
	}
	if decoded.Payload.Status != queue.ModeDraft || decoded.Payload.Format != queue.FormatStatus {
		t.Fatalf("unexpected payload: %+v", decoded.Payload)
	}
}
