// Package bubble manages the speech bubbles shown above characters: one
// bubble per character, fully opaque for most of its life, then fading out
// and disappearing.
package bubble

import (
	"maps"
	"sync"
	"time"

	"dollhouse/pkg/room"
)

const (
	DefaultDisplayDuration = 7 * time.Second
	FadeWindow             = 2 * time.Second
)

// Opacity is the decay curve shared by bubbles and popups: 1 until the last
// fade of lifetime, then linear down to 0.
func Opacity(age, lifetime, fade time.Duration) float64 {
	if age >= lifetime {
		return 0
	}
	fadeStart := lifetime - fade
	if age < fadeStart || fade <= 0 {
		return 1
	}
	return max(0, 1-float64(age-fadeStart)/float64(fade))
}

// Manager holds the live bubbles keyed by character id.
type Manager struct {
	mu       sync.RWMutex
	messages map[string]room.DisplayMessage
	duration time.Duration
	clock    func() time.Time
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock sets the clock used to stamp and age bubbles.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithDisplayDuration sets how long a bubble lives.
func WithDisplayDuration(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.duration = d
		}
	}
}

// NewManager returns a manager with no bubbles.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		messages: make(map[string]room.DisplayMessage),
		duration: DefaultDisplayDuration,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Post shows content above characterID, replacing whatever bubble it had.
func (m *Manager) Post(characterID, content string) map[string]room.DisplayMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := maps.Clone(m.messages)
	next[characterID] = room.DisplayMessage{
		Content:   content,
		Timestamp: m.clock(),
		Opacity:   1,
	}
	m.messages = next
	return maps.Clone(next)
}

// Tick recomputes every bubble's opacity and drops expired ones. The second
// result is false when nothing changed.
func (m *Manager) Tick() (map[string]room.DisplayMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	next := make(map[string]room.DisplayMessage, len(m.messages))
	changed := false
	for id, msg := range m.messages {
		age := now.Sub(msg.Timestamp)
		if age >= m.duration {
			changed = true
			continue
		}
		opacity := Opacity(age, m.duration, FadeWindow)
		if opacity != msg.Opacity {
			msg.Opacity = opacity
			changed = true
		}
		next[id] = msg
	}

	if changed {
		m.messages = next
	}
	return maps.Clone(m.messages), changed
}

// Messages returns a copy of the live bubbles.
func (m *Manager) Messages() map[string]room.DisplayMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.messages)
}

// SetDisplayDuration changes the lifetime used by later ticks.
func (m *Manager) SetDisplayDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duration = d
}

// DisplayDuration returns the current bubble lifetime.
func (m *Manager) DisplayDuration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.duration
}
