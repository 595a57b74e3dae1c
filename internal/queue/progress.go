package queue

import (
	"math"
	"time"
)

// View is the display projection of one entry.
type View struct {
	ID              string
	Status          Status
	Summary         string
	Format          PostFormat
	Mode            PublishMode
	Uploaded        int
	Total           int
	CurrentFraction float64
	Percent         int
	RemotePostID    int64
	Link            string
	Error           string
	Attempts        int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ComputeProgress projects an entry plus the in-flight upload fraction of its
// current image into a View. The result depends only on its inputs.
func ComputeProgress(e *Entry, currentFraction float64) View {
	view := View{
		ID:           e.ID,
		Status:       e.Status,
		Summary:      e.Summary(60),
		Format:       e.Payload.Format,
		Mode:         e.Payload.Status,
		Uploaded:     e.Media.Count(),
		Total:        len(e.Payload.Images),
		RemotePostID: e.RemotePostID,
		Error:        e.Error,
		Attempts:     e.Attempts,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
	if e.RemotePost != nil {
		view.Link = e.RemotePost.Link
	}
	if view.Uploaded > view.Total {
		view.Uploaded = view.Total
	}

	if e.Status == StatusUploading && view.Uploaded < view.Total {
		view.CurrentFraction = clampFraction(currentFraction)
	}

	switch {
	case e.Status == StatusCompleted:
		view.Percent = 100
	case view.Total == 0:
		view.Percent = 0
	default:
		done := float64(view.Uploaded) + view.CurrentFraction
		view.Percent = int(math.Floor(done / float64(view.Total) * 100))
		// The final point is reserved for finalize.
		if view.Percent >= 100 {
			view.Percent = 99
		}
	}
	return view
}

func clampFraction(f float64) float64 {
	switch {
	case math.IsNaN(f) || f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
