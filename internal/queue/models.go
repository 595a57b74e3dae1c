package queue

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a queue entry.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusUploading Status = "uploading"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var statusOrder = []Status{StatusQueued, StatusUploading, StatusCompleted, StatusFailed}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(statusOrder))
	copy(out, statusOrder)
	return out
}

// ParseStatus converts a string into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range statusOrder {
		if s == normalized {
			return s, true
		}
	}
	return "", false
}

// PublishMode is the remote post status requested by the author.
type PublishMode string

const (
	ModeDraft   PublishMode = "draft"
	ModePublish PublishMode = "publish"
)

// ParseMode validates a publish mode name. An empty value means publish.
func ParseMode(value string) (PublishMode, error) {
	switch m := PublishMode(strings.ToLower(strings.TrimSpace(value))); m {
	case ModeDraft, ModePublish:
		return m, nil
	case "":
		return ModePublish, nil
	default:
		return "", fmt.Errorf("unsupported publish mode %q", value)
	}
}

// PostFormat is the WordPress post format.
type PostFormat string

const (
	FormatStandard PostFormat = "standard"
	FormatStatus   PostFormat = "status"
	FormatImage    PostFormat = "image"
	FormatGallery  PostFormat = "gallery"
	FormatLink     PostFormat = "link"
)

// ParseFormat validates a post format name.
func ParseFormat(value string) (PostFormat, error) {
	switch f := PostFormat(strings.ToLower(strings.TrimSpace(value))); f {
	case FormatStandard, FormatStatus, FormatImage, FormatGallery, FormatLink:
		return f, nil
	case "":
		return FormatStandard, nil
	default:
		return "", fmt.Errorf("unsupported post format %q", value)
	}
}

// DefaultFormat picks image for one image, gallery for several, standard otherwise.
func DefaultFormat(imageCount int) PostFormat {
	switch {
	case imageCount == 1:
		return FormatImage
	case imageCount > 1:
		return FormatGallery
	default:
		return FormatStandard
	}
}

// Credentials identify the remote site and account for one post.
type Credentials struct {
	SiteURL  string
	Username string
	Password string
}

// Complete reports whether every credential field is present.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.SiteURL) != "" && strings.TrimSpace(c.Username) != "" && c.Password != ""
}

// Image is one attachment in submission order.
type Image struct {
	Data     []byte
	Filename string
}

// Payload is the immutable snapshot captured at submit time.
type Payload struct {
	Text        string
	Images      []Image
	Status      PublishMode
	Format      PostFormat
	Credentials Credentials
}

// IsDraft reports whether the author asked for a draft.
func (p Payload) IsDraft() bool {
	return p.Status == ModeDraft
}

// MediaProgress records the ordered prefix of images already uploaded.
type MediaProgress struct {
	UploadedIDs  []int64
	UploadedURLs []string
}

// Count returns the number of uploaded images.
func (m MediaProgress) Count() int {
	return len(m.UploadedIDs)
}

// RemotePost is the finalized post as reported by the remote site.
type RemotePost struct {
	ID     int64
	Link   string
	Status string
}

// Entry is a post awaiting, undergoing, or finished with publication.
type Entry struct {
	ID           string
	Payload      Payload
	Status       Status
	RemotePostID int64
	Media        MediaProgress
	Error        string
	RemotePost   *RemotePost
	Attempts     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewEntry builds a queued entry for payload.
func NewEntry(id string, payload Payload, now time.Time) *Entry {
	now = now.UTC()
	return &Entry{
		ID:        id,
		Payload:   payload,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a copy that can be mutated without affecting e. Image bytes
// are shared because payloads are immutable.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	out := *e
	if e.Payload.Images != nil {
		out.Payload.Images = append([]Image(nil), e.Payload.Images...)
	}
	if e.Media.UploadedIDs != nil {
		out.Media.UploadedIDs = append([]int64(nil), e.Media.UploadedIDs...)
	}
	if e.Media.UploadedURLs != nil {
		out.Media.UploadedURLs = append([]string(nil), e.Media.UploadedURLs...)
	}
	if e.RemotePost != nil {
		post := *e.RemotePost
		out.RemotePost = &post
	}
	return &out
}

// NeedsProcessing reports whether the entry still has remote work to do.
func (e *Entry) NeedsProcessing() bool {
	return e != nil && e.Status != StatusCompleted
}

// PendingImages returns the images not yet uploaded.
func (e *Entry) PendingImages() []Image {
	done := e.Media.Count()
	if done >= len(e.Payload.Images) {
		return nil
	}
	return e.Payload.Images[done:]
}

// RecordUpload appends one uploaded media item.
func (e *Entry) RecordUpload(id int64, url string, now time.Time) {
	e.Media.UploadedIDs = append(e.Media.UploadedIDs, id)
	e.Media.UploadedURLs = append(e.Media.UploadedURLs, url)
	e.UpdatedAt = now.UTC()
}

// SetRemotePostID records the remote draft id. The id is set once; later
// calls with a different id are rejected.
func (e *Entry) SetRemotePostID(id int64, now time.Time) error {
	if id <= 0 {
		return fmt.Errorf("remote post id must be positive, got %d", id)
	}
	if e.RemotePostID != 0 && e.RemotePostID != id {
		return fmt.Errorf("entry %s already bound to remote post %d", e.ID, e.RemotePostID)
	}
	e.RemotePostID = id
	e.UpdatedAt = now.UTC()
	return nil
}

// SetUploading moves the entry into the uploading state and clears prior errors.
func (e *Entry) SetUploading(now time.Time) {
	e.Status = StatusUploading
	e.Error = ""
	e.Attempts++
	e.UpdatedAt = now.UTC()
}

// SetFailed records a failure message.
func (e *Entry) SetFailed(message string, now time.Time) {
	e.Status = StatusFailed
	e.Error = strings.TrimSpace(message)
	e.UpdatedAt = now.UTC()
}

// SetCompleted records the finalized remote post.
func (e *Entry) SetCompleted(post RemotePost, now time.Time) {
	e.Status = StatusCompleted
	e.Error = ""
	e.RemotePost = &post
	e.UpdatedAt = now.UTC()
}

// CheckInvariants verifies the media prefix and status fields agree.
func (e *Entry) CheckInvariants() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("entry id is empty")
	}
	if _, ok := ParseStatus(string(e.Status)); !ok {
		return fmt.Errorf("entry %s: unknown status %q", e.ID, e.Status)
	}
	if len(e.Media.UploadedIDs) != len(e.Media.UploadedURLs) {
		return fmt.Errorf("entry %s: %d media ids but %d media urls", e.ID, len(e.Media.UploadedIDs), len(e.Media.UploadedURLs))
	}
	if len(e.Media.UploadedIDs) > len(e.Payload.Images) {
		return fmt.Errorf("entry %s: %d uploads exceed %d images", e.ID, len(e.Media.UploadedIDs), len(e.Payload.Images))
	}
	if e.RemotePostID < 0 {
		return fmt.Errorf("entry %s: negative remote post id", e.ID)
	}
	return nil
}

// Summary returns the first line of text trimmed to limit runes.
func (e *Entry) Summary(limit int) string {
	text := strings.TrimSpace(e.Payload.Text)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = strings.TrimSpace(text[:idx])
	}
	runes := []rune(text)
	if limit > 0 && len(runes) > limit {
		return string(runes[:limit-1]) + "…"
	}
	return text
}
