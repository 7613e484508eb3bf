package monitor

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"cryptoagents-go/internal/state"
)

// Cycler is the engine surface the monitor drives.
type Cycler interface {
	RunCycle(ctx context.Context) error
	View(fn func(s *state.Snapshot))
}

// Manager runs the engine on a fixed interval and serves serialized snapshots.
type Manager struct {
	engine   Cycler
	interval time.Duration
	hub      *Hub
	log      zerolog.Logger
	now      func() time.Time

	mu          sync.RWMutex
	lastUpdated time.Time
}

// NewManager wires a Manager. hub may be nil when nothing streams.
func NewManager(engine Cycler, interval time.Duration, hub *Hub, log zerolog.Logger) *Manager {
	if interval <= 0 {
		interval = 120 * time.Second
	}
	return &Manager{engine: engine, interval: interval, hub: hub, log: log, now: time.Now}
}

// Interval returns the refresh period.
func (m *Manager) Interval() time.Duration { return m.interval }

// LastUpdated is the time of the last successful refresh, zero before the first one.
func (m *Manager) LastUpdated() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUpdated
}

// Refresh runs one cycle. Failures keep the previous snapshot and lastUpdated.
func (m *Manager) Refresh(ctx context.Context) error {
	if err := m.engine.RunCycle(ctx); err != nil {
		m.log.Error().Err(err).Msg("monitor refresh failed")
		return err
	}
	m.mu.Lock()
	m.lastUpdated = m.now().UTC()
	m.mu.Unlock()

	if m.hub != nil && m.hub.Len() > 0 {
		data, err := json.Marshal(m.State())
		if err != nil {
			m.log.Error().Err(err).Msg("encode stream payload")
			return nil
		}
		m.hub.Broadcast(data)
	}
	return nil
}

// State serializes the snapshot under the engine lock.
func (m *Manager) State() Payload {
	last := m.LastUpdated()
	var p Payload
	m.engine.View(func(s *state.Snapshot) { p = Serialize(s, last) })
	return p
}

// Start refreshes immediately and then every interval until ctx ends.
func (m *Manager) Start(ctx context.Context) {
	_ = m.Refresh(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("monitor refresh loop stopped")
			return
		case <-ticker.C:
			_ = m.Refresh(ctx)
		}
	}
}
