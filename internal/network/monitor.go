package network

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Prober answers whether the backend is currently reachable. The bridge
// normally pushes NetInfo transitions, but the prober covers missed events
// when the app returns to the foreground.
type Prober interface {
	Probe(ctx context.Context) bool
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context) bool

func (f ProberFunc) Probe(ctx context.Context) bool { return f(ctx) }

// Monitor tracks online/offline transitions. The Offline -> Online edge is
// the sole trigger for the registered reconnect hooks; the reverse edge
// only flips the flag. It replaces the original design's module-level
// connectivity boolean with an explicitly owned, mutex-guarded object.
type Monitor struct {
	mu       sync.Mutex
	online   bool
	prober   Prober
	onOnline []func()
}

// NewMonitor creates a Monitor that assumes connectivity until told
// otherwise, mirroring the optimistic default of the mobile client.
func NewMonitor(prober Prober) *Monitor {
	return &Monitor{online: true, prober: prober}
}

// SetProber installs the reachability probe after construction. The API
// client doubles as the prober but also depends on the monitor, so the
// probe is wired in once both exist.
func (m *Monitor) SetProber(p Prober) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prober = p
}

// IsOnline is the synchronous hot-path read used to decide whether a
// network call is worth attempting at all.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnReconnect registers a hook fired exactly once per Offline -> Online
// transition. Hooks run on the calling goroutine of SetOnline.
func (m *Monitor) OnReconnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOnline = append(m.onOnline, fn)
}

// SetOnline records a connectivity transition reported by the shell.
// A repeated report of the current state is a no-op.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	hooks := m.onOnline
	m.mu.Unlock()

	if online {
		log.Info().Msg("network: back online, firing reconnect hooks")
		for _, fn := range hooks {
			fn()
		}
	} else {
		log.Info().Msg("network: connection lost")
	}
}

// Recheck re-probes connectivity and feeds the result through the normal
// transition logic. Called when the application returns to the foreground,
// to recover from transition events missed while backgrounded.
func (m *Monitor) Recheck(ctx context.Context) {
	m.mu.Lock()
	p := m.prober
	m.mu.Unlock()
	if p == nil {
		return
	}
	m.SetOnline(p.Probe(ctx))
}
