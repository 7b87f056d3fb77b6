// Package connectivity tracks whether the remote store is reachable and
// notifies listeners of online/offline transitions.
package connectivity

import (
	"log/slog"
	"sync"
)

// Listener receives connectivity transitions.
type Listener func(online bool)

// Monitor holds the current connectivity state. Repeated reports of the same
// state are swallowed so listeners only see transitions.
type Monitor struct {
	mu        sync.Mutex
	online    bool
	known     bool
	listeners map[int]Listener
	nextID    int

	// notifyMu keeps listener calls in transition order
	notifyMu sync.Mutex

	logger *slog.Logger
}

// NewMonitor creates a monitor with no known state.
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{listeners: make(map[int]Listener), logger: logger}
}

// Online returns the last reported state. Before the first report it is true.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.known || m.online
}

// Listen registers l for future transitions.
func (m *Monitor) Listen(l Listener) (cancel func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// MarkOffline records that a consumer lost the remote on its own, without
// notifying listeners. The next online report is then a transition. It does
// not wait for an in-flight Report, so listeners may call it.
func (m *Monitor) MarkOffline() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.known && !m.online {
		return
	}
	m.known = true
	m.online = false
	m.logger.Debug("connectivity marked offline")
}

// Report records the observed state and notifies listeners on change.
func (m *Monitor) Report(online bool) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.known && m.online == online {
		m.mu.Unlock()
		return
	}
	first := !m.known
	m.known = true
	m.online = online
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	// the initial online report is not a transition
	if first && online {
		return
	}

	m.logger.Info("connectivity changed", "online", online)
	for _, l := range listeners {
		l(online)
	}
}
