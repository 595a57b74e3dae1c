package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wpqueue/internal/logging"
	"wpqueue/internal/notifications"
	"wpqueue/internal/publish"
	"wpqueue/internal/queue"
	"wpqueue/internal/services"
)

var (
	// ErrAlreadyRunning is returned by Retry when the entry has an active run.
	ErrAlreadyRunning = errors.New("entry is already being processed")
	// ErrAlreadyCompleted is returned by Retry for completed entries.
	ErrAlreadyCompleted = errors.New("entry is already completed")
	// ErrStopped is returned once Stop has been called.
	ErrStopped = errors.New("workflow manager stopped")
	// ErrEmptyPost rejects submissions with neither text nor images.
	ErrEmptyPost = services.Wrap(services.ErrValidation, "", "add", "post needs text or at least one image", nil)
)

// Initialize loads persisted entries and, when online, resumes every entry
// that has not completed. Add blocks until Initialize returns.
func (m *Manager) Initialize(ctx context.Context) error {
	ran := false
	var err error
	m.initOnce.Do(func() {
		ran = true
		err = m.initialize(ctx)
	})
	if !ran {
		return errors.New("workflow manager already initialized")
	}
	return err
}

func (m *Manager) initialize(ctx context.Context) error {
	defer close(m.ready)

	entries, err := m.store.All(ctx)
	if err != nil {
		m.setLastError(err)
		return fmt.Errorf("load queue: %w", err)
	}

	var completed []string
	m.mu.Lock()
	for _, entry := range entries {
		m.entries[entry.ID] = entry
		if entry.Status == queue.StatusCompleted {
			completed = append(completed, entry.ID)
		}
	}
	pending := len(entries) - len(completed)
	m.mu.Unlock()

	m.logger.Info("queue loaded",
		logging.Int("entries", len(entries)),
		logging.Int("pending", pending),
		logging.String(logging.FieldEventType, "queue_loaded"),
	)
	for _, id := range completed {
		m.scheduleRemoval(id)
	}
	m.publishChanges()

	if pending == 0 {
		return nil
	}
	if !m.online() {
		m.mu.Lock()
		m.deferred = true
		m.mu.Unlock()
		m.logger.Info("offline at startup; pending entries wait for connectivity", logging.Int("pending", pending))
		return nil
	}
	m.resume("startup")
	return nil
}

// Add enqueues payload, persists it and starts processing when online. The
// returned id is the entry's storage and display key.
func (m *Manager) Add(ctx context.Context, payload queue.Payload) (string, error) {
	if err := m.waitReady(ctx); err != nil {
		return "", err
	}
	if strings.TrimSpace(payload.Text) == "" && len(payload.Images) == 0 {
		return "", ErrEmptyPost
	}

	now := m.now()
	entry := queue.NewEntry(queue.NewID(now), payload, now)

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return "", ErrStopped
	}
	m.entries[entry.ID] = entry
	m.mu.Unlock()

	ctx = services.WithEntryID(ctx, entry.ID)
	logger := logging.WithContext(ctx, m.logger)
	if err := m.store.Put(ctx, entry); err != nil {
		m.setLastError(err)
		logging.ErrorWithContext(logger, "persist new entry failed", "entry_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the queue store"),
			logging.String(logging.FieldImpact, "entry is lost if the daemon exits before it completes"),
		)
	}
	m.publishChanges()
	logger.Info("entry queued",
		logging.String(logging.FieldEventType, "entry_queued"),
		logging.Int("images", len(payload.Images)),
		logging.String("format", string(payload.Format)),
		logging.String("mode", string(payload.Status)),
	)

	if m.online() {
		m.start(entry.ID, false)
		return entry.ID, nil
	}

	m.mu.Lock()
	m.deferred = true
	m.mu.Unlock()
	logger.Info("offline; entry deferred until connectivity returns")
	m.notify(ctx, notifications.SeverityInfo, publish.MessageOffline)
	return entry.ID, nil
}

// OnConnectivityRestored resumes every entry that has not completed.
func (m *Manager) OnConnectivityRestored(ctx context.Context) (int, error) {
	if err := m.waitReady(ctx); err != nil {
		return 0, err
	}
	m.mu.Lock()
	m.deferred = false
	m.mu.Unlock()
	return m.resume("connectivity_restored"), nil
}

// ResumeAll resumes every entry that has not completed, regardless of how
// the resume was requested.
func (m *Manager) ResumeAll(ctx context.Context) (int, error) {
	if err := m.waitReady(ctx); err != nil {
		return 0, err
	}
	return m.resume("manual"), nil
}

// Retry resumes a single queued or failed entry.
func (m *Manager) Retry(ctx context.Context, id string) error {
	if err := m.waitReady(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	entry, ok := m.entries[id]
	busy := m.inFlight[id]
	m.mu.Unlock()

	switch {
	case !ok:
		return fmt.Errorf("retry %s: %w", id, queue.ErrNotFound)
	case entry.Status == queue.StatusCompleted:
		return fmt.Errorf("retry %s: %w", id, ErrAlreadyCompleted)
	case busy:
		return fmt.Errorf("retry %s: %w", id, ErrAlreadyRunning)
	}
	if !m.start(id, true) {
		return fmt.Errorf("retry %s: %w", id, ErrAlreadyRunning)
	}
	return nil
}

// Save upserts every in-memory entry. Entries written to the store by
// another process after Initialize are left untouched.
func (m *Manager) Save(ctx context.Context) error {
	var errs []error
	for _, entry := range m.Entries() {
		if err := m.store.Put(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		m.setLastError(err)
		return fmt.Errorf("save queue: %w", err)
	}
	return nil
}

// Wait blocks until every started run has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Stop prevents new runs, cancels in-flight ones and waits for them.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	for id, timer := range m.timers {
		timer.Stop()
		delete(m.timers, id)
	}
	m.mu.Unlock()

	m.cancelRun()
	m.wg.Wait()
}

func (m *Manager) resume(reason string) int {
	ids := m.pendingIDs()
	started := 0
	for _, id := range ids {
		if m.start(id, true) {
			started++
		}
	}
	m.logger.Info("resuming queue",
		logging.String("reason", reason),
		logging.Int("pending", len(ids)),
		logging.Int("started", started),
		logging.String(logging.FieldEventType, "queue_resumed"),
	)
	return started
}

func (m *Manager) pendingIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]*queue.Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		if entry.NeedsProcessing() {
			entries = append(entries, entry)
		}
	}
	sortByCreated(entries)
	ids := make([]string, len(entries))
	for i, entry := range entries {
		ids[i] = entry.ID
	}
	return ids
}

// start launches a run for id unless one is active. resumed marks runs that
// did not start directly from Add.
func (m *Manager) start(id string, resumed bool) bool {
	m.mu.Lock()
	if m.stopped || m.inFlight[id] {
		m.mu.Unlock()
		return false
	}
	entry, ok := m.entries[id]
	if !ok || !entry.NeedsProcessing() {
		m.mu.Unlock()
		return false
	}
	m.inFlight[id] = true
	work := entry.Clone()
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(work, resumed)
	return true
}

func (m *Manager) run(entry *queue.Entry, resumed bool) {
	defer m.wg.Done()
	ctx := services.WithEntryID(m.runCtx, entry.ID)
	logger := logging.WithContext(ctx, m.logger)

	err := m.runner.Run(ctx, entry, recorder{m: m})

	m.mu.Lock()
	delete(m.inFlight, entry.ID)
	delete(m.progress, entry.ID)
	if err != nil {
		m.lastErr = err
	}
	m.mu.Unlock()
	m.publishChanges()

	if err != nil {
		if m.runCtx.Err() != nil {
			logger.Info("run interrupted by shutdown; entry resumes on next start")
			return
		}
		message := entry.Error
		if message == "" {
			message = publish.FailureMessage(entry.Payload, err.Error())
		}
		m.notify(ctx, notifications.SeverityError, message)
		return
	}

	message := publish.SuccessMessage(entry.Payload)
	if resumed && !entry.Payload.IsDraft() {
		message = publish.MessageResumed
	}
	m.notify(ctx, notifications.SeveritySuccess, message)
	m.scheduleRemoval(entry.ID)
}

func (m *Manager) scheduleRemoval(id string) {
	if m.displayDelay <= 0 {
		m.remove(id)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	if existing := m.timers[id]; existing != nil {
		existing.Stop()
	}
	m.timers[id] = time.AfterFunc(m.displayDelay, func() { m.remove(id) })
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.timers, id)
	entry, ok := m.entries[id]
	if !ok || entry.Status != queue.StatusCompleted {
		m.mu.Unlock()
		return
	}
	delete(m.entries, id)
	m.mu.Unlock()

	if err := m.store.Delete(context.Background(), id); err != nil && !errors.Is(err, queue.ErrNotFound) {
		m.setLastError(err)
		m.logger.Warn("remove completed entry failed",
			logging.String(logging.FieldEntryID, id),
			logging.Error(err),
			logging.String(logging.FieldEventType, "entry_remove_failed"),
			logging.String(logging.FieldImpact, "entry reappears as completed on next start and is purged then"),
		)
	}
	m.publishChanges()
}

// recorder persists processor progress into the manager and the store.
type recorder struct {
	m *Manager
}

func (r recorder) Save(ctx context.Context, entry *queue.Entry) error {
	snapshot := entry.Clone()
	r.m.mu.Lock()
	r.m.entries[snapshot.ID] = snapshot
	r.m.mu.Unlock()

	err := r.m.store.Put(ctx, snapshot)
	r.m.publishChanges()
	if err != nil {
		r.m.setLastError(err)
		return err
	}
	return nil
}

func (r recorder) Progress(id string, fraction float64) {
	r.m.mu.Lock()
	if !r.m.inFlight[id] {
		r.m.mu.Unlock()
		return
	}
	r.m.progress[id] = fraction
	r.m.mu.Unlock()
	r.m.publishChanges()
}
