package workflow

import (
	"sort"

	"wpqueue/internal/metrics"
	"wpqueue/internal/queue"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Initialized bool
	Online      bool
	Deferred    bool
	InFlight    int
	Total       int
	Counts      map[queue.Status]int
	LastError   string
}

// Status returns the latest workflow information.
func (m *Manager) Status() StatusSummary {
	initialized := false
	select {
	case <-m.ready:
		initialized = true
	default:
	}
	online := m.online()

	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]*queue.Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		entries = append(entries, entry)
	}
	summary := StatusSummary{
		Initialized: initialized,
		Online:      online,
		Deferred:    m.deferred,
		InFlight:    len(m.inFlight),
		Total:       len(entries),
		Counts:      queue.Counts(entries),
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	return summary
}

// Entries returns copies of every entry, oldest first.
func (m *Manager) Entries() []*queue.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*queue.Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		out = append(out, entry.Clone())
	}
	sortByCreated(out)
	return out
}

// Get returns a copy of one entry.
func (m *Manager) Get(id string) (*queue.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	return entry.Clone(), true
}

// Views projects every entry for display, including the in-flight fraction
// of the image currently uploading.
func (m *Manager) Views() []queue.View {
	m.mu.Lock()
	entries := make([]*queue.Entry, 0, len(m.entries))
	fractions := make(map[string]float64, len(m.progress))
	for _, entry := range m.entries {
		entries = append(entries, entry)
	}
	for id, f := range m.progress {
		fractions[id] = f
	}
	m.mu.Unlock()

	sortByCreated(entries)
	views := make([]queue.View, len(entries))
	for i, entry := range entries {
		views[i] = queue.ComputeProgress(entry, fractions[entry.ID])
	}
	return views
}

func (m *Manager) publishChanges() {
	m.renderMu.Lock()
	defer m.renderMu.Unlock()
	views := m.Views()

	counts := make(map[string]int, len(views))
	for _, view := range views {
		counts[string(view.Status)]++
	}
	statuses := queue.AllStatuses()
	labels := make([]string, len(statuses))
	for i, status := range statuses {
		labels[i] = string(status)
	}
	metrics.SetEntries(counts, labels)

	if m.renderer != nil {
		m.renderer.RenderQueue(views)
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func sortByCreated(entries []*queue.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}
