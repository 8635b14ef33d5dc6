// Package connectivity holds the process-wide online/offline signal.
package connectivity

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

type Monitor struct {
	log       *slog.Logger
	mu        sync.RWMutex
	online    bool
	listeners map[string]func(bool)
}

func NewMonitor(log *slog.Logger, online bool) *Monitor {
	return &Monitor{
		log:       log,
		online:    online,
		listeners: make(map[string]func(bool)),
	}
}

func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Set records the current state. Listeners are only notified on a transition.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	listeners := make([]func(bool), 0, len(m.listeners))
	for _, listener := range m.listeners {
		listeners = append(listeners, listener)
	}
	m.mu.Unlock()

	m.log.Info("Connectivity changed", "online", online)
	for _, listener := range listeners {
		listener(online)
	}
}

// OnChange registers a listener and returns the function removing it.
func (m *Monitor) OnChange(callback func(online bool)) func() {
	id := uuid.NewString()
	m.mu.Lock()
	m.listeners[id] = callback
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}
