package testsupport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Call is one request observed by FakeWordPress.
type Call struct {
	Method string
	Path   string
}

// MediaUpload records one multipart media upload.
type MediaUpload struct {
	Filename string
	Parent   string
	Size     int
}

// FakeWordPress is an httptest server speaking the subset of the WordPress
// REST API the publisher uses.
type FakeWordPress struct {
	Server *httptest.Server

	mu            sync.Mutex
	calls         []Call
	uploads       []MediaUpload
	finalizeBody  map[string]any
	createBody    map[string]any
	nextPostID    int64
	nextMediaID   int64
	failMediaAt   map[int]int
	failFinalize  int
	failCreate    int
	mediaAttempts int
	offline       bool
}

// NewFakeWordPress starts a fake site; it is closed on test cleanup.
func NewFakeWordPress(t testing.TB) *FakeWordPress {
	t.Helper()
	fake := &FakeWordPress{
		nextPostID:  77,
		nextMediaID: 101,
		failMediaAt: map[int]int{},
	}
	fake.Server = httptest.NewServer(http.HandlerFunc(fake.handle))
	t.Cleanup(fake.Server.Close)
	return fake
}

// URL returns the site root.
func (f *FakeWordPress) URL() string { return f.Server.URL }

// SetNextIDs overrides the ids handed out for the next created post and media.
func (f *FakeWordPress) SetNextIDs(postID, mediaID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextPostID = postID
	f.nextMediaID = mediaID
}

// FailMediaAttempt makes the n-th media upload attempt (1-based, counted
// across the server lifetime) return status.
func (f *FakeWordPress) FailMediaAttempt(n, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failMediaAt[n] = status
}

// FailFinalize makes the next finalize calls return status until cleared with 0.
func (f *FakeWordPress) FailFinalize(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFinalize = status
}

// FailCreate makes post creation return status until cleared with 0.
func (f *FakeWordPress) FailCreate(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCreate = status
}

// SetOffline makes every request fail by hijacking and closing the connection.
func (f *FakeWordPress) SetOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

// Calls returns every observed request.
func (f *FakeWordPress) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CountCalls returns how many requests matched method and path prefix.
func (f *FakeWordPress) CountCalls(method, pathPrefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, c := range f.calls {
		if c.Method == method && strings.HasPrefix(c.Path, pathPrefix) {
			count++
		}
	}
	return count
}

// Uploads returns successful media uploads in order.
func (f *FakeWordPress) Uploads() []MediaUpload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]MediaUpload(nil), f.uploads...)
}

// FinalizeBody returns the JSON body of the last successful finalize call.
func (f *FakeWordPress) FinalizeBody() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finalizeBody
}

// CreateBody returns the JSON body of the last create call.
func (f *FakeWordPress) CreateBody() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createBody
}

const apiPrefix = "/wp-json/wp/v2"

func (f *FakeWordPress) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: r.Method, Path: r.URL.Path})
	offline := f.offline
	f.mu.Unlock()

	if offline {
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				_ = conn.Close()
				return
			}
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	if user, pass, ok := r.BasicAuth(); !ok || user == "" || pass == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": "rest_not_logged_in", "message": "You are not currently logged in."})
		return
	}

	path := strings.TrimPrefix(r.URL.Path, apiPrefix)
	switch {
	case r.Method == http.MethodGet && path == "/users/me":
		writeJSON(w, http.StatusOK, map[string]any{"id": 1, "name": "editor"})
	case r.Method == http.MethodPost && path == "/posts":
		f.handleCreate(w, r)
	case r.Method == http.MethodPost && path == "/media":
		f.handleMedia(w, r)
	case r.Method == http.MethodPost && strings.HasPrefix(path, "/posts/"):
		f.handleFinalize(w, r, strings.TrimPrefix(path, "/posts/"))
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"code": "rest_no_route"})
	}
}

func (f *FakeWordPress) handleCreate(w http.ResponseWriter, r *http.Request) {
	body := decodeBody(r)
	f.mu.Lock()
	f.createBody = body
	if f.failCreate != 0 {
		status := f.failCreate
		f.mu.Unlock()
		writeJSON(w, status, map[string]any{"code": "rest_cannot_create"})
		return
	}
	id := f.nextPostID
	f.nextPostID++
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "status": body["status"]})
}

func (f *FakeWordPress) handleMedia(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": "rest_upload_no_data", "message": err.Error()})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": "rest_upload_no_data", "message": err.Error()})
		return
	}
	data, _ := io.ReadAll(file)
	_ = file.Close()

	f.mu.Lock()
	f.mediaAttempts++
	if status, ok := f.failMediaAt[f.mediaAttempts]; ok {
		f.mu.Unlock()
		writeJSON(w, status, map[string]any{"code": "rest_upload_unknown_error"})
		return
	}
	id := f.nextMediaID
	f.nextMediaID++
	f.uploads = append(f.uploads, MediaUpload{Filename: header.Filename, Parent: r.FormValue("post"), Size: len(data)})
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         id,
		"source_url": fmt.Sprintf("%s/wp-content/uploads/%d-%s", f.Server.URL, id, header.Filename),
	})
}

func (f *FakeWordPress) handleFinalize(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"code": "rest_post_invalid_id"})
		return
	}
	body := decodeBody(r)
	f.mu.Lock()
	if f.failFinalize != 0 {
		status := f.failFinalize
		f.mu.Unlock()
		writeJSON(w, status, map[string]any{"code": "rest_cannot_edit"})
		return
	}
	f.finalizeBody = body
	f.mu.Unlock()
	status, _ := body["status"].(string)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     id,
		"link":   fmt.Sprintf("%s/?p=%d", f.Server.URL, id),
		"status": status,
	})
}

func decodeBody(r *http.Request) map[string]any {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	return body
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
