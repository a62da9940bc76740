// Package activity decides which characters are present in the room based
// on when they last spoke.
package activity

import (
	"sync"
	"time"

	"github.com/samber/lo"

	"dollhouse/pkg/room"
)

// DefaultInactivityThreshold is how long a character stays visible after
// its last message.
const DefaultInactivityThreshold = 5 * time.Minute

// Tracker keeps one last-active timestamp per character. A character with no
// record is treated as active.
type Tracker struct {
	mu        sync.RWMutex
	records   map[string]time.Time
	order     []string
	threshold time.Duration
	clock     func() time.Time
}

// Option customises a Tracker.
type Option func(*Tracker)

// WithClock sets the clock used by RecordActivity.
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// WithInactivityThreshold overrides DefaultInactivityThreshold.
func WithInactivityThreshold(threshold time.Duration) Option {
	return func(t *Tracker) {
		if threshold > 0 {
			t.threshold = threshold
		}
	}
}

// NewTracker returns an empty tracker using DefaultInactivityThreshold.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		records:   make(map[string]time.Time),
		threshold: DefaultInactivityThreshold,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// InitializeFromHistory replaces every record with the most recent message
// time per character.
func (t *Tracker) InitializeFromHistory(messages []room.Message) []room.ActivityRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records = make(map[string]time.Time, len(messages))
	t.order = t.order[:0]
	for _, msg := range messages {
		if msg.CharacterID == "" {
			continue
		}
		t.touchLocked(msg.CharacterID, msg.CreatedAt)
	}
	return t.snapshotLocked()
}

// LoadHistory rebuilds the records from messages while keeping any record
// that is already newer, such as activity seen on the feed during the load.
func (t *Tracker) LoadHistory(messages []room.Message) []room.ActivityRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	live := t.records
	liveOrder := t.order
	t.records = make(map[string]time.Time, len(messages)+len(live))
	t.order = make([]string, 0, len(messages)+len(live))
	for _, msg := range messages {
		if msg.CharacterID == "" {
			continue
		}
		t.touchLocked(msg.CharacterID, msg.CreatedAt)
	}
	for _, id := range liveOrder {
		t.touchLocked(id, live[id])
	}
	return t.snapshotLocked()
}

// RecordActivity marks characterID as active now and returns every record.
func (t *Tracker) RecordActivity(characterID string) []room.ActivityRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.touchLocked(characterID, t.clock())
	return t.snapshotLocked()
}

// Merge folds records into the tracker, keeping the later timestamp per
// character.
func (t *Tracker) Merge(records []room.ActivityRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, record := range records {
		t.touchLocked(record.CharacterID, record.LastActiveAt)
	}
}

// touchLocked never moves a record backwards.
func (t *Tracker) touchLocked(characterID string, at time.Time) {
	last, ok := t.records[characterID]
	if !ok {
		t.order = append(t.order, characterID)
		t.records[characterID] = at
		return
	}
	if at.After(last) {
		t.records[characterID] = at
	}
}

// IsActive reports whether characterID should be shown at now.
func (t *Tracker) IsActive(characterID string, now time.Time) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.isActiveLocked(characterID, now)
}

func (t *Tracker) isActiveLocked(characterID string, now time.Time) bool {
	last, ok := t.records[characterID]
	if !ok {
		return true
	}
	return now.Sub(last) < t.threshold
}

// FilterActive returns the characters that are active at now, keeping their
// order.
func (t *Tracker) FilterActive(characters []room.Character, now time.Time) []room.Character {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return lo.Filter(characters, func(c room.Character, _ int) bool {
		return t.isActiveLocked(c.ID, now)
	})
}

// Records returns a copy of every record in first-seen order.
func (t *Tracker) Records() []room.ActivityRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() []room.ActivityRecord {
	return lo.Map(t.order, func(id string, _ int) room.ActivityRecord {
		return room.ActivityRecord{CharacterID: id, LastActiveAt: t.records[id]}
	})
}

// SetInactivityThreshold changes the window used by later IsActive calls.
func (t *Tracker) SetInactivityThreshold(threshold time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.threshold = threshold
}

// InactivityThreshold returns the current window.
func (t *Tracker) InactivityThreshold() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.threshold
}
