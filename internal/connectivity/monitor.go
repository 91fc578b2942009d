// Package connectivity tracks whether the API is reachable and tells
// subscribers about online/offline transitions.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultProbeInterval = 5 * time.Second
	// offlineAfter consecutive failed probes before declaring offline.
	offlineAfter = 2
)

// Signal is what the autosave controller consumes.
type Signal interface {
	Online() bool
	Subscribe(fn func(online bool)) (cancel func())
}

// Monitor is a Signal driven either by explicit Set calls or by Probe.
type Monitor struct {
	// delivery orders notifications so subscribers see transitions in the
	// order the state changed.
	delivery sync.Mutex
	mu       sync.Mutex
	online   bool
	forced   bool
	failures int
	next     int
	subs     map[int]func(bool)
	logger   *slog.Logger
}

func NewMonitor(online bool, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{online: online, subs: make(map[int]func(bool)), logger: logger}
}

// Online reports the effective state: reachable and not forced offline.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online && !m.forced
}

// Set records the current state and notifies subscribers when it changed.
// Subscribers run on the caller's goroutine and must not call Set or
// ForceOffline themselves.
func (m *Monitor) Set(online bool) {
	m.update(func() { m.online = online })
}

// ForceOffline holds the monitor offline regardless of Set and probe
// results until called with false.
func (m *Monitor) ForceOffline(on bool) {
	m.update(func() { m.forced = on })
}

func (m *Monitor) Forced() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.forced
}

func (m *Monitor) update(mutate func()) {
	m.delivery.Lock()
	defer m.delivery.Unlock()

	m.mu.Lock()
	before := m.online && !m.forced
	mutate()
	online := m.online && !m.forced
	if before == online {
		m.mu.Unlock()
		return
	}
	fns := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	if online {
		m.logger.Info("connectivity: online")
	} else {
		m.logger.Info("connectivity: offline")
	}
	for _, fn := range fns {
		fn(online)
	}
}

func (m *Monitor) Subscribe(fn func(bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	m.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
		})
	}
}

// Observe feeds one health-check result into the monitor.
func (m *Monitor) Observe(err error) {
	m.mu.Lock()
	if err == nil {
		m.failures = 0
	} else {
		m.failures++
	}
	failures := m.failures
	m.mu.Unlock()

	switch {
	case err == nil:
		m.Set(true)
	case failures >= offlineAfter:
		m.logger.Debug("connectivity: probe failed", "failures", failures, "error", err)
		m.Set(false)
	}
}

// Probe runs check every interval until ctx is done. It blocks; run it in
// its own goroutine.
func (m *Monitor) Probe(ctx context.Context, interval time.Duration, check func(context.Context) error) {
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		probeCtx, cancel := context.WithTimeout(ctx, interval)
		m.Observe(check(probeCtx))
		cancel()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
