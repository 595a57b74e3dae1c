package workflow_test

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wpqueue/internal/config"
	"wpqueue/internal/logging"
	"wpqueue/internal/notifications"
	"wpqueue/internal/publish"
	"wpqueue/internal/queue"
	"wpqueue/internal/testsupport"
	"wpqueue/internal/wordpress"
	"wpqueue/internal/workflow"
)

type switchableLink struct {
	online atomic.Bool
}

func newLink(online bool) *switchableLink {
	l := &switchableLink{}
	l.online.Store(online)
	return l
}

func (l *switchableLink) Online() bool { return l.online.Load() }

type recordingRenderer struct {
	mu      sync.Mutex
	renders [][]queue.View
}

func (r *recordingRenderer) RenderQueue(views []queue.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renders = append(r.renders, views)
}

func (r *recordingRenderer) all() [][]queue.View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]queue.View(nil), r.renders...)
}

type blockingRunner struct {
	release chan struct{}
	started chan string
	runs    atomic.Int32
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{release: make(chan struct{}), started: make(chan string, 8)}
}

func (b *blockingRunner) Run(ctx context.Context, entry *queue.Entry, rec publish.Recorder) error {
	b.runs.Add(1)
	b.started <- entry.ID
	<-b.release
	now := time.Now()
	entry.SetUploading(now)
	entry.SetCompleted(queue.RemotePost{ID: 1, Status: "publish"}, now)
	return rec.Save(ctx, entry)
}

type harness struct {
	cfg      *config.Config
	store    *queue.SQLiteStore
	fake     *testsupport.FakeWordPress
	link     *switchableLink
	notifier *notifications.Recorder
	renderer *recordingRenderer
	mgr      *workflow.Manager
}

func newHarness(t *testing.T, online bool, runner workflow.Runner) *harness {
	t.Helper()
	fake := testsupport.NewFakeWordPress(t)
	cfg := testsupport.NewConfig(t, testsupport.WithSite(fake.URL()))
	h := &harness{
		cfg:      cfg,
		store:    testsupport.MustOpenStore(t, cfg),
		fake:     fake,
		link:     newLink(online),
		notifier: &notifications.Recorder{},
		renderer: &recordingRenderer{},
	}
	if runner == nil {
		runner = publish.NewProcessor(wordpress.New(wordpress.Options{}), logging.NewNop())
	}
	h.mgr = workflow.NewManager(cfg, h.store, runner, h.link, logging.NewNop(),
		workflow.WithNotifier(h.notifier),
		workflow.WithRenderer(h.renderer),
	)
	t.Cleanup(h.mgr.Stop)
	return h
}

func (h *harness) payload(text string, images int) queue.Payload {
	return queue.Payload{
		Text:        text,
		Images:      testsupport.Images(images),
		Status:      queue.ModePublish,
		Format:      queue.DefaultFormat(images),
		Credentials: testsupport.Credentials(h.fake.URL()),
	}
}

func (h *harness) messages() []string {
	var out []string
	for _, msg := range h.notifier.Messages() {
		out = append(out, string(msg.Severity)+": "+msg.Text)
	}
	return out
}

func mustInitialize(t *testing.T, mgr *workflow.Manager) {
	t.Helper()
	if err := mgr.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
}

func TestAddOfflinePersistsQueuedEntryWithoutRemoteCalls(t *testing.T) {
	h := newHarness(t, false, nil)
	mustInitialize(t, h.mgr)

	id, err := h.mgr.Add(context.Background(), h.payload("Offline thoughts", 1))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	h.mgr.Wait()

	stored, err := h.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != queue.StatusQueued {
		t.Fatalf("expected queued entry, got %s", stored.Status)
	}
	if calls := h.fake.Calls(); len(calls) != 0 {
		t.Fatalf("expected no remote calls while offline, got %v", calls)
	}
	want := []string{"info: " + publish.MessageOffline}
	if got := h.messages(); !reflect.DeepEqual(got, want) {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
	if status := h.mgr.Status(); !status.Deferred || status.Counts[queue.StatusQueued] != 1 {
		t.Fatalf("unexpected status summary: %+v", status)
	}
}

func TestAddOnlinePublishesAndPurgesEntry(t *testing.T) {
	h := newHarness(t, true, nil)
	mustInitialize(t, h.mgr)

	if _, err := h.mgr.Add(context.Background(), h.payload("Hello\n\nWorld", 2)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	h.mgr.Wait()

	if n := len(h.fake.Uploads()); n != 2 {
		t.Fatalf("expected 2 uploads, got %d", n)
	}
	if body := h.fake.FinalizeBody(); body == nil || body["status"] != "publish" {
		t.Fatalf("expected finalize with publish status, got %v", body)
	}
	if entries := h.mgr.Entries(); len(entries) != 0 {
		t.Fatalf("expected completed entry to be purged, got %d entries", len(entries))
	}
	remaining, err := h.store.All(context.Background())
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected store to be empty, got %d entries", len(remaining))
	}
	want := []string{"success: " + publish.MessagePublished}
	if got := h.messages(); !reflect.DeepEqual(got, want) {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
}

func TestAddRejectsEmptyPost(t *testing.T) {
	h := newHarness(t, true, nil)
	mustInitialize(t, h.mgr)

	_, err := h.mgr.Add(context.Background(), h.payload("   ", 0))
	if !errors.Is(err, workflow.ErrEmptyPost) {
		t.Fatalf("expected ErrEmptyPost, got %v", err)
	}
}

func TestInvalidSiteFailsWithoutRemoteCalls(t *testing.T) {
	h := newHarness(t, true, nil)
	mustInitialize(t, h.mgr)

	payload := h.payload("Broken", 1)
	payload.Credentials.SiteURL = "not-a-url"
	id, err := h.mgr.Add(context.Background(), payload)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	h.mgr.Wait()

	entry, ok := h.mgr.Get(id)
	if !ok {
		t.Fatal("expected failed entry to remain visible")
	}
	if entry.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", entry.Status)
	}
	if !strings.HasPrefix(entry.Error, "Failed to publish post: ") {
		t.Fatalf("unexpected error text %q", entry.Error)
	}
	if calls := h.fake.Calls(); len(calls) != 0 {
		t.Fatalf("expected zero remote calls, got %v", calls)
	}
}

func TestConnectivityRestoredDrainsQueue(t *testing.T) {
	h := newHarness(t, false, nil)
	mustInitialize(t, h.mgr)
	ctx := context.Background()

	for _, text := range []string{"first", "second"} {
		if _, err := h.mgr.Add(ctx, h.payload(text, 1)); err != nil {
			t.Fatalf("Add(%s): %v", text, err)
		}
	}

	h.link.online.Store(true)
	started, err := h.mgr.OnConnectivityRestored(ctx)
	if err != nil {
		t.Fatalf("OnConnectivityRestored: %v", err)
	}
	if started != 2 {
		t.Fatalf("expected 2 runs, got %d", started)
	}
	h.mgr.Wait()

	if n := h.fake.CountCalls(http.MethodPost, "/wp-json/wp/v2/media"); n != 2 {
		t.Fatalf("expected 2 media uploads, got %d", n)
	}
	if entries := h.mgr.Entries(); len(entries) != 0 {
		t.Fatalf("expected queue to drain, got %d entries", len(entries))
	}
	resumed := 0
	for _, msg := range h.notifier.Messages() {
		if msg.Text == publish.MessageResumed {
			resumed++
		}
	}
	if resumed != 2 {
		t.Fatalf("expected 2 resumed notifications, got %v", h.messages())
	}
	if h.mgr.Status().Deferred {
		t.Fatal("expected deferred flag to clear after reconnect")
	}
}

func TestInitializeResumesUnfinishedEntries(t *testing.T) {
	h := newHarness(t, true, nil)
	h.fake.SetNextIDs(900, 102)

	crashed := testsupport.NewEntry("crashed", h.fake.URL(), "Trip", 3)
	crashed.Status = queue.StatusFailed
	crashed.Error = "Failed to publish post: Failed to upload image"
	crashed.RemotePostID = 77
	crashed.Media = queue.MediaProgress{
		UploadedIDs:  []int64{101},
		UploadedURLs: []string{h.fake.URL() + "/wp-content/uploads/101-image-1.jpg"},
	}
	queued := testsupport.NewEntry("queued", h.fake.URL(), "Just text", 0)
	done := testsupport.NewEntry("done", h.fake.URL(), "Old", 0)
	done.SetCompleted(queue.RemotePost{ID: 5}, done.CreatedAt)
	testsupport.MustPut(t, h.store, crashed, queued, done)

	mustInitialize(t, h.mgr)
	h.mgr.Wait()

	var filenames []string
	for _, upload := range h.fake.Uploads() {
		filenames = append(filenames, upload.Filename)
		if upload.Parent != "77" {
			t.Fatalf("expected uploads attached to post 77, got %q", upload.Parent)
		}
	}
	if want := []string{"image-2.jpg", "image-3.jpg"}; !reflect.DeepEqual(filenames, want) {
		t.Fatalf("uploaded %v, want %v", filenames, want)
	}
	if n := h.fake.CountCalls(http.MethodPost, "/wp-json/wp/v2/posts/77"); n != 1 {
		t.Fatalf("expected one finalize of post 77, got %d", n)
	}
	// Only the text entry needed a new draft.
	creates := 0
	for _, call := range h.fake.Calls() {
		if call.Method == http.MethodPost && call.Path == "/wp-json/wp/v2/posts" {
			creates++
		}
	}
	if creates != 1 {
		t.Fatalf("expected exactly one create, got %d", creates)
	}
	remaining, err := h.store.All(context.Background())
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected every entry purged, got %d", len(remaining))
	}
}

func TestInitializeOfflineLeavesEntriesAlone(t *testing.T) {
	h := newHarness(t, false, nil)
	testsupport.MustPut(t, h.store, testsupport.NewEntry("waiting", h.fake.URL(), "Later", 1))

	mustInitialize(t, h.mgr)
	h.mgr.Wait()

	if calls := h.fake.Calls(); len(calls) != 0 {
		t.Fatalf("expected no remote calls, got %v", calls)
	}
	if entry, ok := h.mgr.Get("waiting"); !ok || entry.Status != queue.StatusQueued {
		t.Fatalf("expected queued entry to be loaded, got %+v", entry)
	}
	if err := h.mgr.Initialize(context.Background()); err == nil {
		t.Fatal("expected second Initialize to fail")
	}
}

func TestAddWaitsForInitialize(t *testing.T) {
	h := newHarness(t, false, nil)

	done := make(chan error, 1)
	go func() {
		_, err := h.mgr.Add(context.Background(), h.payload("early", 0))
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("Add returned before Initialize: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	mustInitialize(t, h.mgr)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Add did not return after Initialize")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	other := newHarness(t, false, nil)
	if _, err := other.mgr.Add(ctx, other.payload("never", 0)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled before initialize, got %v", err)
	}
}

func TestAtMostOneRunPerEntry(t *testing.T) {
	runner := newBlockingRunner()
	h := newHarness(t, true, runner)
	mustInitialize(t, h.mgr)
	ctx := context.Background()

	id, err := h.mgr.Add(ctx, h.payload("busy", 0))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	<-runner.started

	if err := h.mgr.Retry(ctx, id); !errors.Is(err, workflow.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if started, _ := h.mgr.OnConnectivityRestored(ctx); started != 0 {
		t.Fatalf("expected reconnect to skip in-flight entry, started %d", started)
	}
	if started, _ := h.mgr.ResumeAll(ctx); started != 0 {
		t.Fatalf("expected resume to skip in-flight entry, started %d", started)
	}
	if status := h.mgr.Status(); status.InFlight != 1 {
		t.Fatalf("expected one in-flight run, got %d", status.InFlight)
	}

	close(runner.release)
	h.mgr.Wait()

	if runs := runner.runs.Load(); runs != 1 {
		t.Fatalf("expected exactly one run, got %d", runs)
	}
	if err := h.mgr.Retry(ctx, id); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected purged entry to be unknown, got %v", err)
	}
}

func TestFailedEntryRetriesFromSavedProgress(t *testing.T) {
	h := newHarness(t, true, nil)
	mustInitialize(t, h.mgr)
	ctx := context.Background()

	h.fake.FailFinalize(http.StatusInternalServerError)
	id, err := h.mgr.Add(ctx, h.payload("Draft-ish", 2))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	h.mgr.Wait()

	entry, ok := h.mgr.Get(id)
	if !ok || entry.Status != queue.StatusFailed {
		t.Fatalf("expected failed entry, got %+v", entry)
	}
	if entry.Media.Count() != 2 || entry.RemotePostID != 77 {
		t.Fatalf("expected progress to survive failure, got post %d media %d", entry.RemotePostID, entry.Media.Count())
	}
	stored, err := h.store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != queue.StatusFailed || stored.Error != entry.Error {
		t.Fatalf("expected failure persisted, got %s %q", stored.Status, stored.Error)
	}

	h.fake.FailFinalize(0)
	if err := h.mgr.Retry(ctx, id); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	h.mgr.Wait()

	if n := len(h.fake.Uploads()); n != 2 {
		t.Fatalf("expected no re-uploads, got %d uploads", n)
	}
	if _, ok := h.mgr.Get(id); ok {
		t.Fatal("expected completed entry to be purged")
	}
	msgs := h.notifier.Messages()
	if len(msgs) != 2 || msgs[0].Severity != notifications.SeverityError || msgs[1].Text != publish.MessageResumed {
		t.Fatalf("unexpected notifications: %v", h.messages())
	}
}

func TestCompletedEntryLingersForDisplayDelay(t *testing.T) {
	runner := newBlockingRunner()
	close(runner.release)
	fake := testsupport.NewFakeWordPress(t)
	cfg := testsupport.NewConfig(t, testsupport.WithSite(fake.URL()))
	cfg.Workflow.CompletedDisplayDelayMS = 100
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, runner, newLink(true), logging.NewNop(), workflow.WithNotifier(&notifications.Recorder{}))
	t.Cleanup(mgr.Stop)
	mustInitialize(t, mgr)

	id, err := mgr.Add(context.Background(), queue.Payload{Text: "linger", Credentials: testsupport.Credentials(fake.URL())})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	mgr.Wait()

	entry, ok := mgr.Get(id)
	if !ok || entry.Status != queue.StatusCompleted {
		t.Fatalf("expected completed entry during display delay, got %+v", entry)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := mgr.Get(id); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("completed entry was never purged")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, err := store.Get(context.Background(), id); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected purged entry removed from store, got %v", err)
	}
}

func TestRendererSeesUploadProgress(t *testing.T) {
	h := newHarness(t, true, nil)
	mustInitialize(t, h.mgr)

	if _, err := h.mgr.Add(context.Background(), h.payload("Gallery", 3)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	h.mgr.Wait()

	renders := h.renderer.all()
	if len(renders) == 0 {
		t.Fatal("expected renders")
	}
	sawPartial := false
	lastUploaded := -1
	for _, views := range renders {
		for _, view := range views {
			if view.Status != queue.StatusUploading {
				continue
			}
			if view.Total != 3 {
				t.Fatalf("expected total 3, got %d", view.Total)
			}
			if view.Uploaded < lastUploaded {
				t.Fatalf("uploaded count went backwards: %d after %d", view.Uploaded, lastUploaded)
			}
			lastUploaded = view.Uploaded
			if view.Uploaded > 0 && view.Uploaded < 3 {
				sawPartial = true
			}
		}
	}
	if !sawPartial {
		t.Fatal("expected a render with partial upload progress")
	}
	if last := renders[len(renders)-1]; len(last) != 0 {
		t.Fatalf("expected final render to be empty, got %d views", len(last))
	}
}

func TestSavePersistsInMemorySet(t *testing.T) {
	h := newHarness(t, false, nil)
	testsupport.MustPut(t, h.store, testsupport.NewEntry("kept", h.fake.URL(), "Kept", 0))
	mustInitialize(t, h.mgr)
	ctx := context.Background()

	if _, err := h.mgr.Add(ctx, h.payload("added", 0)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := h.mgr.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	stored, err := h.store.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	entries := h.mgr.Entries()
	if len(stored) != len(entries) || len(stored) != 2 {
		t.Fatalf("expected 2 stored entries, got %d (memory %d)", len(stored), len(entries))
	}
	for i := range stored {
		if stored[i].ID != entries[i].ID || stored[i].Status != entries[i].Status {
			t.Fatalf("stored[%d] = %s/%s, memory = %s/%s", i, stored[i].ID, stored[i].Status, entries[i].ID, entries[i].Status)
		}
	}
}

func TestSaveKeepsEntriesWrittenAfterInitialize(t *testing.T) {
	h := newHarness(t, false, nil)
	mustInitialize(t, h.mgr)
	ctx := context.Background()

	if _, err := h.mgr.Add(ctx, h.payload("owned", 0)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	// Another process enqueues straight into the store.
	testsupport.MustPut(t, h.store, testsupport.NewEntry("written-elsewhere", h.fake.URL(), "Late arrival", 0))

	if err := h.mgr.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entry, err := h.store.Get(ctx, "written-elsewhere")
	if err != nil {
		t.Fatalf("entry written after Initialize was lost: %v", err)
	}
	if entry.Status != queue.StatusQueued {
		t.Fatalf("expected queued entry, got %s", entry.Status)
	}
	stored, err := h.store.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored entries, got %d", len(stored))
	}
}
