// Package presence ties the room together: it ingests the change feed and
// the initial store snapshot, routes them to activity tracking and speech
// bubbles, and composes the frame a renderer draws.
package presence

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"dollhouse/pkg/activity"
	"dollhouse/pkg/bubble"
	"dollhouse/pkg/feed"
	"dollhouse/pkg/room"
	"dollhouse/pkg/schedule"
	"dollhouse/pkg/store"
)

const (
	DefaultHistoryLimit = store.DefaultRecentMessages
	DefaultFadeInterval = 100 * time.Millisecond

	taskFade = "presence.fade"
)

// BotSource supplies the synthetic half of a frame.
type BotSource interface {
	Bots() []room.BotActor
	Popups(now time.Time) []room.Popup
	Terminal() bool
}

// Option customises a Compositor.
type Option func(*Compositor)

// WithBots adds a chaos event (or any other bot source) to every frame.
func WithBots(bots BotSource) Option {
	return func(c *Compositor) {
		c.bots = bots
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Compositor) {
		if log != nil {
			c.log = log
		}
	}
}

// WithHistoryLimit caps both the initial fetch and the kept history.
func WithHistoryLimit(limit int) Option {
	return func(c *Compositor) {
		if limit > 0 {
			c.historyLimit = limit
		}
	}
}

func WithFadeInterval(interval time.Duration) Option {
	return func(c *Compositor) {
		if interval > 0 {
			c.fadeInterval = interval
		}
	}
}

// WithScheduler runs the fade tick on sched. Without it Start drives a
// private wall-clock scheduler until Close.
func WithScheduler(sched *schedule.Scheduler) Option {
	return func(c *Compositor) {
		c.sched = sched
	}
}

// Compositor is the single long-lived owner of one room view. It is safe
// for concurrent use.
type Compositor struct {
	store   store.Store
	feed    *feed.Bus
	tracker *activity.Tracker
	bubbles *bubble.Manager
	bots    BotSource
	sched   *schedule.Scheduler
	log     *slog.Logger

	historyLimit int
	fadeInterval time.Duration

	mu           sync.RWMutex
	characters   []room.Character
	characterIDs map[string]struct{}
	history      []room.Message
	messageIDs   map[string]struct{}
	loadErr      error

	lifecycleMu sync.Mutex
	started     bool
	closed      bool
	unsubscribe []func()
	fadeTask    *schedule.Task
	stopSched   context.CancelFunc
	wg          sync.WaitGroup
}

// New builds a compositor. feed may be nil for a room without live updates.
func New(st store.Store, bus *feed.Bus, tracker *activity.Tracker, bubbles *bubble.Manager, opts ...Option) *Compositor {
	c := &Compositor{
		store:        st,
		feed:         bus,
		tracker:      tracker,
		bubbles:      bubbles,
		log:          slog.Default(),
		historyLimit: DefaultHistoryLimit,
		fadeInterval: DefaultFadeInterval,
		characterIDs: make(map[string]struct{}),
		messageIDs:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "presence")
	return c
}

// Start subscribes to the feed and arms the bubble fade tick. Calling it
// again, or after Close, does nothing.
func (c *Compositor) Start(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.started || c.closed {
		return nil
	}
	c.started = true

	if c.feed != nil {
		characters, unsubCharacters := c.feed.Subscribe(ctx, feed.TableCharacters, 0)
		messages, unsubMessages := c.feed.Subscribe(ctx, feed.TableMessages, 0)
		c.unsubscribe = append(c.unsubscribe, unsubCharacters, unsubMessages)

		c.wg.Add(2)
		go c.consume(characters)
		go c.consume(messages)
	}

	if c.sched == nil {
		c.sched = schedule.New(schedule.WithLogger(c.log))
		runCtx, cancel := context.WithCancel(ctx)
		c.stopSched = cancel
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			_ = c.sched.Run(runCtx)
		}()
	}
	c.fadeTask = c.sched.Every(taskFade, c.fadeInterval, func(time.Time) {
		c.bubbles.Tick()
	})

	c.log.Info("Presence started", "feed", c.feed != nil, "fade_interval", c.fadeInterval)
	return nil
}

func (c *Compositor) consume(inserts <-chan feed.Insert) {
	defer c.wg.Done()
	for insert := range inserts {
		switch {
		case insert.Table == feed.TableCharacters && insert.Character != nil:
			c.OnCharacterCreated(*insert.Character)
		case insert.Table == feed.TableMessages && insert.Message != nil:
			c.OnMessageCreated(*insert.Message)
		default:
			c.log.Warn("Discarded malformed insert", "table", insert.Table)
		}
	}
}

// Close releases the subscriptions and the fade tick. Only the first call
// does anything.
func (c *Compositor) Close() {
	c.lifecycleMu.Lock()
	if c.closed {
		c.lifecycleMu.Unlock()
		return
	}
	c.closed = true
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	fadeTask := c.fadeTask
	stopSched := c.stopSched
	c.lifecycleMu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	fadeTask.Cancel()
	if stopSched != nil {
		stopSched()
	}
	c.wg.Wait()
	c.log.Info("Presence closed")
}

// LoadInitial fetches the known characters and recent history. Records
// already delivered by the feed are kept and merged by id. On failure the
// error is also shown in every frame until a later load succeeds.
func (c *Compositor) LoadInitial(ctx context.Context) error {
	characters, err := c.store.FetchCharacters(ctx)
	if err != nil {
		return c.failLoad(fmt.Errorf("fetch characters: %w", err))
	}
	c.mergeCharacters(characters)

	messages, err := c.store.FetchRecentMessages(ctx, c.historyLimit)
	if err != nil {
		return c.failLoad(fmt.Errorf("fetch recent messages: %w", err))
	}

	c.tracker.LoadHistory(messages)

	c.mu.Lock()
	for _, m := range messages {
		if m.Character != nil && m.Character.ID == m.CharacterID {
			c.addCharacterLocked(*m.Character)
		}
		c.addHistoryLocked(m)
	}
	slices.SortStableFunc(c.history, func(a, b room.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	c.trimHistoryLocked()
	c.loadErr = nil
	known, kept := len(c.characters), len(c.history)
	c.mu.Unlock()

	c.log.Info("Loaded room", "characters", known, "messages", kept)
	return nil
}

func (c *Compositor) failLoad(err error) error {
	c.mu.Lock()
	c.loadErr = err
	c.mu.Unlock()
	c.log.Error("Initial load failed", "error", err)
	return err
}

// OnCharacterCreated adds a character. It reports false for duplicates and
// for records without an id.
func (c *Compositor) OnCharacterCreated(character room.Character) bool {
	if strings.TrimSpace(character.ID) == "" {
		c.log.Warn("Discarded character without id", "name", character.Name)
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addCharacterLocked(character)
}

func (c *Compositor) mergeCharacters(characters []room.Character) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, character := range characters {
		if strings.TrimSpace(character.ID) != "" {
			c.addCharacterLocked(character)
		}
	}
}

func (c *Compositor) addCharacterLocked(character room.Character) bool {
	if _, ok := c.characterIDs[character.ID]; ok {
		return false
	}
	c.characterIDs[character.ID] = struct{}{}
	c.characters = append(c.characters, character)
	return true
}

// OnMessageCreated shows a message above its speaker and marks the speaker
// active. Messages without a speaker id are dropped; a message id that was
// already handled is ignored.
func (c *Compositor) OnMessageCreated(message room.Message) bool {
	message.CharacterID = strings.TrimSpace(message.CharacterID)
	if message.CharacterID == "" {
		c.log.Warn("Discarded message without character id", "message_id", message.ID)
		return false
	}

	c.mu.Lock()
	if message.ID != "" {
		if _, ok := c.messageIDs[message.ID]; ok {
			c.mu.Unlock()
			return false
		}
	}
	if message.Character != nil && message.Character.ID == message.CharacterID {
		c.addCharacterLocked(*message.Character)
	}
	c.addHistoryLocked(message)
	c.trimHistoryLocked()
	c.mu.Unlock()

	c.bubbles.Post(message.CharacterID, message.Content)
	c.tracker.RecordActivity(message.CharacterID)
	return true
}

func (c *Compositor) addHistoryLocked(message room.Message) {
	if message.ID != "" {
		if _, ok := c.messageIDs[message.ID]; ok {
			return
		}
		c.messageIDs[message.ID] = struct{}{}
	}
	c.history = append(c.history, message)
}

func (c *Compositor) trimHistoryLocked() {
	excess := len(c.history) - c.historyLimit
	if excess <= 0 {
		return
	}
	for _, old := range c.history[:excess] {
		delete(c.messageIDs, old.ID)
	}
	c.history = slices.Clone(c.history[excess:])
}

// ComputeFrame is the renderer's read path. It never mutates state.
func (c *Compositor) ComputeFrame(now time.Time) room.Frame {
	c.mu.RLock()
	characters := slices.Clone(c.characters)
	loadErr := c.loadErr
	c.mu.RUnlock()

	frame := room.Frame{
		At:                now,
		VisibleCharacters: c.tracker.FilterActive(characters, now),
		VisibleBots:       []room.BotActor{},
		DisplayMessages:   c.bubbles.Messages(),
	}
	if c.bots != nil {
		frame.VisibleBots = c.bots.Bots()
		frame.Popups = c.bots.Popups(now)
		frame.Terminal = c.bots.Terminal()
	}
	if loadErr != nil {
		frame.Err = loadErr.Error()
	}
	return frame
}

// Characters returns every known character.
func (c *Compositor) Characters() []room.Character {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.characters)
}

// History returns the kept messages, oldest first.
func (c *Compositor) History() []room.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.history)
}

// Speaker resolves a character id to a display name, including bots.
func (c *Compositor) Speaker(id string) (string, bool) {
	c.mu.RLock()
	character, ok := lo.Find(c.characters, func(ch room.Character) bool { return ch.ID == id })
	c.mu.RUnlock()
	if ok {
		return character.Name, true
	}
	if c.bots != nil {
		if b, ok := lo.Find(c.bots.Bots(), func(b room.BotActor) bool { return b.ID == id }); ok {
			return b.Name, true
		}
	}
	return "", false
}

// LoadErr returns the error of the last failed load, if it has not been
// cleared by a successful one.
func (c *Compositor) LoadErr() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadErr
}
