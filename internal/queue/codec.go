package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RecordVersion is the current on-disk entry format.
const RecordVersion = 1

// ErrUnsupportedRecord indicates a record written in an unknown format.
var ErrUnsupportedRecord = errors.New("unsupported entry record version")

type envelope struct {
	Version int             `json:"version"`
	Entry   json.RawMessage `json:"entry"`
}

type recordV1 struct {
	ID           string        `json:"id"`
	Payload      payloadV1     `json:"payload"`
	Status       string        `json:"status"`
	RemotePostID int64         `json:"remote_post_id,omitempty"`
	MediaIDs     []int64       `json:"uploaded_media_ids,omitempty"`
	MediaURLs    []string      `json:"uploaded_media_urls,omitempty"`
	Error        string        `json:"error,omitempty"`
	RemotePost   *remotePostV1 `json:"remote_post,omitempty"`
	Attempts     int           `json:"attempts,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

type payloadV1 struct {
	Text        string        `json:"text"`
	Images      []imageV1     `json:"images,omitempty"`
	Status      string        `json:"status"`
	Format      string        `json:"format"`
	Credentials credentialsV1 `json:"credentials"`
}

type imageV1 struct {
	Data     []byte `json:"data"`
	Filename string `json:"filename"`
}

type credentialsV1 struct {
	SiteURL  string `json:"site_url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type remotePostV1 struct {
	ID     int64  `json:"id"`
	Link   string `json:"link,omitempty"`
	Status string `json:"status,omitempty"`
}

// EncodeEntry serializes an entry in the current record format.
func EncodeEntry(e *Entry) ([]byte, error) {
	if e == nil {
		return nil, errors.New("encode entry: nil entry")
	}
	body, err := json.Marshal(toRecordV1(e))
	if err != nil {
		return nil, fmt.Errorf("encode entry %s: %w", e.ID, err)
	}
	data, err := json.Marshal(envelope{Version: RecordVersion, Entry: body})
	if err != nil {
		return nil, fmt.Errorf("encode entry %s envelope: %w", e.ID, err)
	}
	return data, nil
}

// DecodeEntry parses a record produced by EncodeEntry. Records from a newer
// format version are rejected with ErrUnsupportedRecord.
func DecodeEntry(data []byte) (*Entry, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode entry envelope: %w", err)
	}
	switch env.Version {
	case 1:
		var rec recordV1
		if err := json.Unmarshal(env.Entry, &rec); err != nil {
			return nil, fmt.Errorf("decode entry v1: %w", err)
		}
		entry := fromRecordV1(rec)
		if err := entry.CheckInvariants(); err != nil {
			return nil, fmt.Errorf("decode entry v1: %w", err)
		}
		return entry, nil
	default:
		return nil, fmt.Errorf("%w: %d (this build reads up to %d)", ErrUnsupportedRecord, env.Version, RecordVersion)
	}
}

func toRecordV1(e *Entry) recordV1 {
	rec := recordV1{
		ID:           e.ID,
		Status:       string(e.Status),
		RemotePostID: e.RemotePostID,
		MediaIDs:     e.Media.UploadedIDs,
		MediaURLs:    e.Media.UploadedURLs,
		Error:        e.Error,
		Attempts:     e.Attempts,
		CreatedAt:    e.CreatedAt.UTC(),
		UpdatedAt:    e.UpdatedAt.UTC(),
		Payload: payloadV1{
			Text:   e.Payload.Text,
			Status: string(e.Payload.Status),
			Format: string(e.Payload.Format),
			Credentials: credentialsV1{
				SiteURL:  e.Payload.Credentials.SiteURL,
				Username: e.Payload.Credentials.Username,
				Password: e.Payload.Credentials.Password,
			},
		},
	}
	for _, img := range e.Payload.Images {
		rec.Payload.Images = append(rec.Payload.Images, imageV1{Data: img.Data, Filename: img.Filename})
	}
	if e.RemotePost != nil {
		rec.RemotePost = &remotePostV1{ID: e.RemotePost.ID, Link: e.RemotePost.Link, Status: e.RemotePost.Status}
	}
	return rec
}

func fromRecordV1(rec recordV1) *Entry {
	e := &Entry{
		ID:           rec.ID,
		Status:       Status(rec.Status),
		RemotePostID: rec.RemotePostID,
		Media: MediaProgress{
			UploadedIDs:  rec.MediaIDs,
			UploadedURLs: rec.MediaURLs,
		},
		Error:     rec.Error,
		Attempts:  rec.Attempts,
		CreatedAt: rec.CreatedAt.UTC(),
		UpdatedAt: rec.UpdatedAt.UTC(),
		Payload: Payload{
			Text:   rec.Payload.Text,
			Status: PublishMode(rec.Payload.Status),
			Format: PostFormat(rec.Payload.Format),
			Credentials: Credentials{
				SiteURL:  rec.Payload.Credentials.SiteURL,
				Username: rec.Payload.Credentials.Username,
				Password: rec.Payload.Credentials.Password,
			},
		},
	}
	for _, img := range rec.Payload.Images {
		e.Payload.Images = append(e.Payload.Images, Image{Data: img.Data, Filename: img.Filename})
	}
	if rec.RemotePost != nil {
		e.RemotePost = &RemotePost{ID: rec.RemotePost.ID, Link: rec.RemotePost.Link, Status: rec.RemotePost.Status}
	}
	return e
}
